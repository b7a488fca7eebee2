package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/scan-io-git/llmscan/cmd/refine"
	"github.com/scan-io-git/llmscan/cmd/scan"
	"github.com/scan-io-git/llmscan/cmd/version"
	cmdutil "github.com/scan-io-git/llmscan/internal/cmd"
	"github.com/scan-io-git/llmscan/pkg/shared/config"
	errs "github.com/scan-io-git/llmscan/pkg/shared/errors"
)

var (
	cfgFile   string
	AppConfig *config.Config
	rootCmd   = &cobra.Command{
		Use:                   "llmscan [command]",
		SilenceUsage:          true,
		SilenceErrors:         true,
		DisableFlagsInUseLine: true,
		Short:                 "llmscan finds security vulnerabilities in source code with a language model.",
		Long: `llmscan sends every code file of a repository to a language model for a security review,
normalizes the answers into a findings report and, optionally, refines the findings
in batches against the whole repository to remove false positives.
	`,
		PersistentPreRunE: initConfig,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is config.yml)")
	rootCmd.AddCommand(version.NewVersionCmd())
	rootCmd.AddCommand(scan.ScanCmd)
	rootCmd.AddCommand(refine.RefineCmd)
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		return cmdutil.ExitCode(err)
	}
	return cmdutil.ExitOK
}

func initConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return errs.NewCommandError(fmt.Errorf("initializing config file failed: %w", err), cmdutil.ExitFailure)
	}
	config.ApplyDefaults(cfg)
	if err := config.ValidateConfig(cfg); err != nil {
		return errs.NewCommandError(err, cmdutil.ExitFailure)
	}

	AppConfig = cfg
	version.Init(AppConfig)
	scan.Init(AppConfig)
	refine.Init(AppConfig)
	return nil
}
