package main

import (
	"os"

	"github.com/scan-io-git/llmscan/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
