package refine

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/scan-io-git/llmscan/cmd/version"
	cmdutil "github.com/scan-io-git/llmscan/internal/cmd"
	"github.com/scan-io-git/llmscan/internal/findings"
	"github.com/scan-io-git/llmscan/internal/refiner"
	"github.com/scan-io-git/llmscan/internal/scanner"
	"github.com/scan-io-git/llmscan/pkg/shared/config"
)

// loadReport reads a persisted first-pass report, keeping its file order.
func loadReport(reportPath string) (*findings.Report, error) {
	data, err := os.ReadFile(reportPath)
	if err != nil {
		return nil, err
	}
	report := findings.NewReport()
	if err := json.Unmarshal(data, report); err != nil {
		return nil, fmt.Errorf("failed to parse report %q: %w", reportPath, err)
	}
	report.Summarize()
	return report, nil
}

// scannerOptions builds the pipeline options for a refinement run.
func scannerOptions(cfg *config.Config, options *RunOptionsRefine, id, outputFolder string) scanner.Options {
	return scanner.Options{
		ID:              id,
		Refine:          true,
		BatchSize:       config.SetThen(options.BatchSize, cfg.Scan.BatchSize),
		MaxContextBytes: cfg.Scan.MaxContextBytes,
		OutputFolder:    outputFolder,
		Sarif:           options.Sarif || config.IsSarifEnabled(cfg),
		Tool:            cmdutil.SarifTool(version.CoreVersion),
		Fallback: refiner.FallbackOptions{
			RateLimit:     config.DurationValue(cfg.Oracle.RefineRateLimit),
			QuotaCooldown: config.DurationValue(cfg.Oracle.QuotaCooldown),
		},
	}
}

// targetPath returns the positional path argument, if any.
func targetPath(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
