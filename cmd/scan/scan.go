package scan

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

// RunOptionsScan holds the arguments for the scan command.
type RunOptionsScan struct {
	URL        string
	Branch     string
	OutputPath string
	Extensions []string
	Exclude    []string
	BatchSize  int
	Refine     bool
	Sarif      bool
	NoCache    bool
}

// Global variables for configuration and command arguments
var (
	AppConfig        *config.Config
	scanOptions      RunOptionsScan
	exampleScanUsage = `  # First pass over a local checkout, reports written to the current folder
  llmscan scan /path/to/my_project

  # Both passes, reports and repo_content.txt written to a dedicated folder
  llmscan scan --refine --output /path/to/results /path/to/my_project

  # Cloning a remote repository at a branch and exporting SARIF as well
  llmscan scan --refine --sarif -b develop --url https://github.com/scan-io-git/scan-io

  # Restricting the scan to Go and Python files and skipping vendored code
  llmscan scan --ext .go,.py --exclude "vendor/**" /path/to/my_project`
)

// ScanCmd represents the scan command.
var ScanCmd = &cobra.Command{
	Use:                   "scan [--refine] [--sarif] [--output/-o DIR] [--ext LIST] [--exclude GLOB]... [--batch-size N] [--no-cache] {PATH | --url/-u URL [-b BRANCH]}",
	SilenceUsage:          true,
	DisableFlagsInUseLine: true,
	Example:               exampleScanUsage,
	Short:                 "Scans a repository for vulnerabilities with a language model and optionally refines the findings",
	Long: `Scans every code file of a repository with a language model, one request per file,
and writes security_vulnerabilities.json. With --refine the findings are validated in
batches against the whole repository and improved_security_vulnerabilities.json is written.`,
	RunE: runScanCommand,
}

// Init initializes the global configuration variable.
func Init(cfg *config.Config) {
	AppConfig = cfg
}

// runScanCommand executes the scan command.
func runScanCommand(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && !cmdutil.HasFlags(cmd.Flags()) {
		return cmd.Help()
	}

	logger := logger.NewLogger(AppConfig, "core-scan")
	ctx := cmd.Context()

	if err := validateScanArgs(&scanOptions, args); err != nil {
		logger.Error("invalid scan arguments", "error", err)
		return errs.NewCommandError(err, cmdutil.ExitFailure)
	}
	settings := resolveSettings(AppConfig, &scanOptions)

	client, err := cmdutil.NewOracleClient(ctx, AppConfig, logger.Named("oracle"))
	if err != nil {
		logger.Error("oracle is not usable", "error", err)
		return errs.NewCommandError(err, cmdutil.ExitFailure)
	}

	coll, err := collector.New(settings.Extensions, settings.Exclude, logger.Named("collector"))
	if err != nil {
		logger.Error("invalid collector settings", "error", err)
		return errs.NewCommandError(err, cmdutil.ExitFailure)
	}

	checkout, err := cmdutil.AcquireTarget(ctx, AppConfig, logger, targetPath(args), scanOptions.URL, scanOptions.Branch)
	if err != nil {
		logger.Error("failed to prepare scan target", "error", err)
		return errs.NewCommandError(err, cmdutil.ExitFailure)
	}
	defer func() {
		if err := checkout.Cleanup(); err != nil {
			logger.Warn("failed to clean up", "error", err)
		}
	}()

	responseCache, closeCache, err := cmdutil.OpenCache(AppConfig, settings.UseCache, logger.Named("cache"))
	if err != nil {
		logger.Error("failed to open cache", "error", err)
		return errs.NewCommandError(err, cmdutil.ExitFailure)
	}
	defer closeCache()

	id := scanner.NewID()
	st, err := store.New(AppConfig, settings.OutputFolder, path.Join(checkout.Name, id), logger.Named("store"))
	if err != nil {
		logger.Error("failed to prepare report storage", "error", err)
		return errs.NewCommandError(err, cmdutil.ExitFailure)
	}

	opts := settings.scannerOptions(AppConfig, id)
	if responseCache != nil {
		opts.Cache = responseCache
		opts.CacheKey = cmdutil.CacheKey(AppConfig.Oracle.Model)
	}

	s := scanner.New(client, coll, st, opts, logger)
	res, scanErr := s.Run(ctx, scanner.Target{Root: checkout.Root, Name: checkout.Name})

	cmdutil.SaveRunRecord(settings.OutputFolder, logger, "scan", res, scanErr)
	if res != nil && res.Stage == scanner.StageReportPersisted {
		if err := cmdutil.PrintSummary(cmd.OutOrStdout(), res); err != nil {
			logger.Warn("failed to print summary", "error", err)
		}
	}

	if scanErr != nil {
		logger.Error("scan command failed", "error", scanErr)
		if ctx.Err() != nil && errors.Is(scanErr, ctx.Err()) {
			return errs.NewCommandError(scanErr, cmdutil.ExitInterrupted)
		}
		return errs.NewCommandError(scanErr, cmdutil.ExitFailure)
	}

	logger.Info("scan command completed successfully", "id", id)
	return nil
}

func init() {
	ScanCmd.Flags().StringVarP(&scanOptions.URL, "url", "u", "", "URL of a remote repository to clone and scan instead of a local path.")
	ScanCmd.Flags().StringVarP(&scanOptions.Branch, "branch", "b", "", "Branch or commit hash to check out when --url is used.")
	ScanCmd.Flags().StringVarP(&scanOptions.OutputPath, "output", "o", "", "Directory where reports are written. Overrides scan.output_folder.")
	ScanCmd.Flags().StringSliceVar(&scanOptions.Extensions, "ext", nil, "Comma-separated list of file extensions to scan. Overrides scan.extensions.")
	ScanCmd.Flags().StringArrayVar(&scanOptions.Exclude, "exclude", nil, "Glob of paths to skip, relative to the repository root. Can be repeated.")
	ScanCmd.Flags().IntVar(&scanOptions.BatchSize, "batch-size", 0, "Number of files refined per request. Overrides scan.batch_size.")
	ScanCmd.Flags().BoolVar(&scanOptions.Refine, "refine", false, "Run the refinement pass after the first pass.")
	ScanCmd.Flags().BoolVar(&scanOptions.Sarif, "sarif", false, "Write a SARIF copy of every report.")
	ScanCmd.Flags().BoolVar(&scanOptions.NoCache, "no-cache", false, "Ignore the response cache even when cache.enabled is set.")
	ScanCmd.Flags().BoolP("help", "h", false, "Show help for the scan command.")
}
