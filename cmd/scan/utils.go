package scan

import (
	"github.com/scan-io-git/llmscan/cmd/version"
	cmdutil "github.com/scan-io-git/llmscan/internal/cmd"
	"github.com/scan-io-git/llmscan/internal/refiner"
	"github.com/scan-io-git/llmscan/internal/scanner"
	"github.com/scan-io-git/llmscan/pkg/shared/config"
)

// scanSettings is the configuration merged with the command flags.
type scanSettings struct {
	Extensions   []string
	Exclude      []string
	OutputFolder string
	BatchSize    int
	Refine       bool
	Sarif        bool
	UseCache     bool
}

// resolveSettings lets flags override the configuration file.
func resolveSettings(cfg *config.Config, options *RunOptionsScan) scanSettings {
	s := scanSettings{
		Extensions:   cfg.Scan.Extensions,
		Exclude:      append(append([]string(nil), cfg.Scan.Exclude...), options.Exclude...),
		OutputFolder: config.SetThen(options.OutputPath, cfg.Scan.OutputFolder),
		BatchSize:    config.SetThen(options.BatchSize, cfg.Scan.BatchSize),
		Refine:       options.Refine,
		Sarif:        options.Sarif || config.IsSarifEnabled(cfg),
		UseCache:     config.IsCacheEnabled(cfg) && !options.NoCache,
	}
	if len(options.Extensions) > 0 {
		s.Extensions = options.Extensions
	}
	return s
}

// scannerOptions builds the pipeline options for a scan with the given id.
func (s scanSettings) scannerOptions(cfg *config.Config, id string) scanner.Options {
	return scanner.Options{
		ID:              id,
		Refine:          s.Refine,
		BatchSize:       s.BatchSize,
		MaxContextBytes: cfg.Scan.MaxContextBytes,
		OutputFolder:    s.OutputFolder,
		Sarif:           s.Sarif,
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
