package refine

import (
	"fmt"
	"os"

	"github.com/scan-io-git/llmscan/internal/scanner"
	"github.com/scan-io-git/llmscan/pkg/shared/files"
)

// validateRefineArgs validates the arguments provided to the refine command.
// The report flag may name the report file or the folder a scan wrote it to.
func validateRefineArgs(options *RunOptionsRefine, args []string) error {
	if options.ReportPath == "" {
		return fmt.Errorf("the 'report' flag must be specified")
	}
	reportPath, _, err := files.DetermineFileFullPath(options.ReportPath, scanner.FirstPassReportName)
	if err != nil {
		return err
	}
	if err := files.ValidatePath(reportPath); err != nil {
		return fmt.Errorf("invalid 'report' flag: %w", err)
	}
	options.ReportPath = reportPath

	if len(args) > 1 {
		return fmt.Errorf("only one target path can be refined at a time")
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
	return nil
}
