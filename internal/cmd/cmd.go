// Package cmd holds the wiring shared by the scan and refine commands.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/pflag"

	"github.com/scan-io-git/llmscan/internal/cache"
	"github.com/scan-io-git/llmscan/internal/findings"
	"github.com/scan-io-git/llmscan/internal/git"
	"github.com/scan-io-git/llmscan/internal/oracle"
	"github.com/scan-io-git/llmscan/internal/sarif"
	"github.com/scan-io-git/llmscan/internal/scanner"
	"github.com/scan-io-git/llmscan/pkg/shared/config"
	"github.com/scan-io-git/llmscan/pkg/shared/artifacts"
	errs "github.com/scan-io-git/llmscan/pkg/shared/errors"
	"github.com/scan-io-git/llmscan/pkg/shared/httpclient"
	"github.com/scan-io-git/llmscan/pkg/shared/retry"
)

// Mode constants
const (
	ModeLocalPath = "local-path"
	ModeRemoteURL = "remote-url"
)

// Exit codes returned by the commands.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitInterrupted = 2
)

// DetermineMode determines the mode based on the provided arguments.
func DetermineMode(args []string, url string) string {
	if url != "" && len(args) == 0 {
		return ModeRemoteURL
	}
	return ModeLocalPath
}

// HasFlags reports whether any flag was set explicitly.
func HasFlags(flags *pflag.FlagSet) bool {
	set := false
	flags.Visit(func(*pflag.Flag) { set = true })
	return set
}

// RetryPolicy builds the oracle retry policy from the configuration.
func RetryPolicy(cfg *config.Config, logger hclog.Logger) retry.Policy {
	return retry.Policy{
		MaxAttempts: cfg.Oracle.Retry.MaxAttempts,
		BaseDelay:   cfg.Oracle.Retry.BaseDelay,
		MaxDelay:    cfg.Oracle.Retry.MaxDelay,
		Jitter:      config.GetBoolValue(cfg, "Oracle.Retry.Jitter", false),
		Logger:      logger,
	}
}

// NewOracleClient builds the oracle client and checks that the configured
// models answer before any file is processed.
func NewOracleClient(ctx context.Context, cfg *config.Config, logger hclog.Logger) (*oracle.Client, error) {
	if err := config.RequireOracleCredentials(cfg); err != nil {
		return nil, err
	}

	httpc := httpclient.InitializeRestyClient(logger.Named("http"), cfg)
	transport := oracle.NewGeminiTransport(httpc, cfg.Oracle.BaseURL, cfg.Oracle.APIKey)
	client := oracle.NewClient(transport, oracle.Options{
		Model:       cfg.Oracle.Model,
		RefineModel: cfg.Oracle.RefineModel,
		RateLimit:   config.DurationValue(cfg.Oracle.RateLimit),
		Retry:       RetryPolicy(cfg, logger),
		Logger:      logger,
	})

	if err := client.Check(ctx); err != nil {
		return nil, err
	}
	return client, nil
}

// OpenCache opens the first-pass response cache when it is enabled. The
// returned close function is never nil.
func OpenCache(cfg *config.Config, enabled bool, logger hclog.Logger) (*cache.Store, func(), error) {
	if !enabled {
		return nil, func() {}, nil
	}
	store, err := cache.Open(cfg.Cache.Path)
	if err != nil {
		return nil, func() {}, fmt.Errorf("failed to open response cache %q: %w", cfg.Cache.Path, err)
	}
	logger.Debug("response cache opened", "path", cfg.Cache.Path, "entries", store.Len())
	return store, func() {
		if err := store.Close(); err != nil {
			logger.Warn("failed to close response cache", "error", err)
		}
	}, nil
}

// CacheKey binds cached answers to the model that produced them.
func CacheKey(model string) func(path, content string) string {
	return func(path, content string) string {
		return cache.Key(model, path, content)
	}
}

// AcquireTarget resolves a local path or clones a remote URL.
func AcquireTarget(ctx context.Context, cfg *config.Config, logger hclog.Logger, path, url, branch string) (*git.Checkout, error) {
	client := git.New(logger.Named("git"), cfg.GitClient)
	checkout, err := client.Acquire(ctx, git.Source{Path: path, URL: url, Branch: branch})
	if err != nil {
		return nil, err
	}
	if rev := checkout.Revision; rev != nil {
		logger.Info("repository state", "root", rev.Root, "branch", rev.Branch, "commit", rev.Commit)
	}
	return checkout, nil
}

// SarifTool describes this binary inside SARIF documents.
func SarifTool(version string) sarif.ToolMetadata {
	return sarif.ToolMetadata{
		Name:           "llmscan",
		InformationURI: "https://github.com/scan-io-git/llmscan",
		Version:        &version,
	}
}

// PrintSummary renders the threat summary of the final report and the
// locations of the persisted artifacts.
func PrintSummary(w io.Writer, res *scanner.Result) error {
	report := res.Report()
	if report == nil {
		return nil
	}
	summary := report.Summarize()

	table := tablewriter.NewWriter(w)
	table.Header("Threat level", "Findings")
	for i := len(findings.Levels) - 1; i >= 0; i-- {
		level := findings.Levels[i]
		if err := table.Append([]string{string(level), strconv.Itoa(summary[level])}); err != nil {
			return err
		}
	}
	if err := table.Append([]string{"total", strconv.Itoa(summary.Total())}); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}

	names := make([]string, 0, len(res.Artifacts))
	for name := range res.Artifacts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "%s: %s\n", name, res.Artifacts[name])
	}
	return nil
}

// ExitCode maps a command error onto the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var cmdErr *errs.CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.ExitCode
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ExitInterrupted
	}
	return ExitFailure
}

// RunRecord is the machine-readable trace of one command run.
type RunRecord struct {
	Command    string                 `json:"command"`
	ID         string                 `json:"id"`
	Repository string                 `json:"repository"`
	Files      int                    `json:"files"`
	Stages     []scanner.Stage        `json:"stages"`
	Summary    findings.ThreatSummary `json:"threat_summary,omitempty"`
	Refinement *RefinementRecord      `json:"refinement,omitempty"`
	Artifacts  map[string]string      `json:"artifacts"`
	StartedAt  time.Time              `json:"started_at"`
	FinishedAt time.Time              `json:"finished_at"`
	Error      string                 `json:"error,omitempty"`
}

// RefinementRecord mirrors refiner.Stats.
type RefinementRecord struct {
	Batches        int `json:"batches"`
	FailedBatches  int `json:"failed_batches"`
	FalsePositives int `json:"false_positives"`
	Fallbacks      int `json:"fallbacks"`
	ManualReview   int `json:"manual_review"`
}

// NewRunRecord summarises res for the run artifact.
func NewRunRecord(command string, res *scanner.Result, runErr error) RunRecord {
	rec := RunRecord{
		Command:    command,
		ID:         res.ID,
		Repository: res.Target.Name,
		Files:      res.Files,
		Stages:     res.History,
		Artifacts:  res.Artifacts,
		StartedAt:  res.StartedAt,
		FinishedAt: res.FinishedAt,
	}
	if report := res.Report(); report != nil {
		rec.Summary = report.Summary
	}
	if res.Refined != nil {
		rec.Refinement = &RefinementRecord{
			Batches:        res.Stats.Batches,
			FailedBatches:  res.Stats.FailedBatches,
			FalsePositives: res.Stats.FalsePositives,
			Fallbacks:      res.Stats.Fallbacks,
			ManualReview:   res.Stats.ManualReview,
		}
	}
	if runErr != nil {
		rec.Error = runErr.Error()
	}
	return rec
}

// SaveRunRecord writes the run artifact into folder. Failures are only logged.
func SaveRunRecord(folder string, logger hclog.Logger, command string, res *scanner.Result, runErr error) {
	if res == nil {
		return
	}
	if _, err := artifacts.SaveArtifactJSON(folder, logger, command, NewRunRecord(command, res, runErr)); err != nil {
		logger.Warn("failed to save run artifact", "error", err)
	}
}
