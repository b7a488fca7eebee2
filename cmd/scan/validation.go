package scan

import (
	"fmt"
	"os"
	"strings"
)

// validateScanArgs validates the arguments provided to the scan command.
func validateScanArgs(options *RunOptionsScan, args []string) error {
	if len(args) > 1 {
		return fmt.Errorf("only one target path can be scanned at a time")
	}
	if len(args) == 0 && options.URL == "" {
		return fmt.Errorf("either a target path or the 'url' flag must be specified")
	}
	if len(args) == 1 && options.URL != "" {
		return fmt.Errorf("you cannot use the 'url' flag and a target path at the same time")
	}
	if options.Branch != "" && options.URL == "" {
		return fmt.Errorf("the 'branch' flag can only be used together with 'url'")
	}

	if len(args) == 1 {
		if _, err := os.Stat(args[0]); os.IsNotExist(err) {
			return fmt.Errorf("the target path does not exist: %v", args[0])
		}
	}

	if options.BatchSize < 0 {
		return fmt.Errorf("the 'batch-size' flag must be a positive integer")
	}

	for _, ext := range options.Extensions {
		if !strings.HasPrefix(strings.TrimSpace(ext), ".") {
			return fmt.Errorf("invalid extension %q: extensions must start with a dot", ext)
		}
	}
	return nil
}
