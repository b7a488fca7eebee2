package refine

import (
	"errors"
	"path"

	"github.com/spf13/cobra"

	cmdutil "github.com/scan-io-git/llmscan/internal/cmd"
	"github.com/scan-io-git/llmscan/internal/collector"
	"github.com/scan-io-git/llmscan/internal/scanner"
	"github.com/scan-io-git/llmscan/internal/store"
	"github.com/scan-io-git/llmscan/pkg/shared/config"
	errs "github.com/scan-io-git/llmscan/pkg/shared/errors"
	"github.com/scan-io-git/llmscan/pkg/shared/logger"
)

// RunOptionsRefine holds the arguments for the refine command.
type RunOptionsRefine struct {
	ReportPath string
	URL        string
	Branch     string
	OutputPath string
	BatchSize  int
	Sarif      bool
}

// Global variables for configuration and command arguments
var (
	AppConfig          *config.Config
	refineOptions      RunOptionsRefine
	exampleRefineUsage = `  # Refining a previous first-pass report against the same local checkout
  llmscan refine --report ./security_vulnerabilities.json /path/to/my_project

  # Refining against a fresh clone and writing results to another folder
  llmscan refine --report ./results/my_project/<scan-id> --output /path/to/results --url https://github.com/scan-io-git/scan-io`
)

// RefineCmd represents the refine command.
var RefineCmd = &cobra.Command{
	Use:                   "refine --report/-r PATH [--output/-o DIR] [--batch-size N] [--sarif] {PATH | --url/-u URL [-b BRANCH]}",
	SilenceUsage:          true,
	DisableFlagsInUseLine: true,
	Example:               exampleRefineUsage,
	Short:                 "Runs only the refinement pass over a persisted first-pass report",
	RunE:                  runRefineCommand,
}

// Init initializes the global configuration variable.
func Init(cfg *config.Config) {
	AppConfig = cfg
}

// runRefineCommand executes the refine command.
func runRefineCommand(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && !cmdutil.HasFlags(cmd.Flags()) {
		return cmd.Help()
	}

	logger := logger.NewLogger(AppConfig, "core-refine")
	ctx := cmd.Context()

	if err := validateRefineArgs(&refineOptions, args); err != nil {
		logger.Error("invalid refine arguments", "error", err)
		return errs.NewCommandError(err, cmdutil.ExitFailure)
	}

	first, err := loadReport(refineOptions.ReportPath)
	if err != nil {
		logger.Error("failed to read first-pass report", "path", refineOptions.ReportPath, "error", err)
		return errs.NewCommandError(err, cmdutil.ExitFailure)
	}
	logger.Info("first-pass report loaded", "files", first.Len(), "findings", first.FindingCount())

	client, err := cmdutil.NewOracleClient(ctx, AppConfig, logger.Named("oracle"))
	if err != nil {
		logger.Error("oracle is not usable", "error", err)
		return errs.NewCommandError(err, cmdutil.ExitFailure)
	}

	coll, err := collector.New(AppConfig.Scan.Extensions, AppConfig.Scan.Exclude, logger.Named("collector"))
	if err != nil {
		logger.Error("invalid collector settings", "error", err)
		return errs.NewCommandError(err, cmdutil.ExitFailure)
	}

	checkout, err := cmdutil.AcquireTarget(ctx, AppConfig, logger, targetPath(args), refineOptions.URL, refineOptions.Branch)
	if err != nil {
		logger.Error("failed to prepare refine target", "error", err)
		return errs.NewCommandError(err, cmdutil.ExitFailure)
	}
	defer func() {
		if err := checkout.Cleanup(); err != nil {
			logger.Warn("failed to clean up", "error", err)
		}
	}()

	outputFolder := config.SetThen(refineOptions.OutputPath, AppConfig.Scan.OutputFolder)
	id := scanner.NewID()
	st, err := store.New(AppConfig, outputFolder, path.Join(checkout.Name, id), logger.Named("store"))
	if err != nil {
		logger.Error("failed to prepare report storage", "error", err)
		return errs.NewCommandError(err, cmdutil.ExitFailure)
	}

	s := scanner.New(client, coll, st, scannerOptions(AppConfig, &refineOptions, id, outputFolder), logger)
	res, refineErr := s.Refine(ctx, scanner.Target{Root: checkout.Root, Name: checkout.Name}, first)

	cmdutil.SaveRunRecord(outputFolder, logger, "refine", res, refineErr)
	if res != nil && res.Stage == scanner.StageReportPersisted {
		if err := cmdutil.PrintSummary(cmd.OutOrStdout(), res); err != nil {
			logger.Warn("failed to print summary", "error", err)
		}
	}

	if refineErr != nil {
		logger.Error("refine command failed", "error", refineErr)
		if ctx.Err() != nil && errors.Is(refineErr, ctx.Err()) {
			return errs.NewCommandError(refineErr, cmdutil.ExitInterrupted)
		}
		return errs.NewCommandError(refineErr, cmdutil.ExitFailure)
	}

	logger.Info("refine command completed successfully", "id", id)
	return nil
}

func init() {
	RefineCmd.Flags().StringVarP(&refineOptions.ReportPath, "report", "r", "", "Path to a security_vulnerabilities.json report, or the folder the scan command wrote it to.")
	RefineCmd.Flags().StringVarP(&refineOptions.URL, "url", "u", "", "URL of a remote repository to clone instead of a local path.")
	RefineCmd.Flags().StringVarP(&refineOptions.Branch, "branch", "b", "", "Branch or commit hash to check out when --url is used.")
	RefineCmd.Flags().StringVarP(&refineOptions.OutputPath, "output", "o", "", "Directory where reports are written. Overrides scan.output_folder.")
	RefineCmd.Flags().IntVar(&refineOptions.BatchSize, "batch-size", 0, "Number of files refined per request. Overrides scan.batch_size.")
	RefineCmd.Flags().BoolVar(&refineOptions.Sarif, "sarif", false, "Write a SARIF copy of the refined report.")
	RefineCmd.Flags().BoolP("help", "h", false, "Show help for the refine command.")
}
