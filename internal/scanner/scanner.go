// Package scanner drives one scan from file collection to persisted reports.
package scanner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/scan-io-git/llmscan/internal/analyzer"
	"github.com/scan-io-git/llmscan/internal/collector"
	"github.com/scan-io-git/llmscan/internal/findings"
	"github.com/scan-io-git/llmscan/internal/refiner"
	"github.com/scan-io-git/llmscan/internal/repotext"
	"github.com/scan-io-git/llmscan/internal/sarif"
	"github.com/scan-io-git/llmscan/internal/store"
)

// Names of the persisted artifacts.
const (
	FirstPassReportName = "security_vulnerabilities.json"
	RefinedReportName   = "improved_security_vulnerabilities.json"
	FirstPassSarifName  = "security_vulnerabilities.sarif"
	RefinedSarifName    = "improved_security_vulnerabilities.sarif"
)

// Oracle is everything a scan asks of the oracle client.
type Oracle interface {
	analyzer.Oracle
	refiner.BatchOracle
	refiner.FindingOracle
	UploadRepository(ctx context.Context, name, content string) (string, error)
}

// Target is the tree to scan.
type Target struct {
	Root string
	Name string
}

// Options configures a Scanner.
type Options struct {
	ID              string
	Refine          bool
	BatchSize       int
	MaxContextBytes int
	OutputFolder    string
	Sarif           bool
	Tool            sarif.ToolMetadata

	Fallback refiner.FallbackOptions
	Cache    analyzer.ResponseCache
	CacheKey analyzer.KeyFunc
}

// Result describes a finished, or interrupted, scan.
type Result struct {
	ID         string
	Target     Target
	Files      int
	Stage      Stage
	History    []Stage
	FirstPass  *findings.Report
	Refined    *findings.Report
	Stats      refiner.Stats
	Artifacts  map[string]string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Report returns the most refined report available.
func (r *Result) Report() *findings.Report {
	if r.Refined != nil {
		return r.Refined
	}
	return r.FirstPass
}

func (r *Result) advance(logger hclog.Logger, next Stage) error {
	if !r.Stage.CanAdvance(next) {
		return fmt.Errorf("invalid scan stage transition %s -> %s", r.Stage, next)
	}
	r.Stage = next
	r.History = append(r.History, next)
	logger.Debug("scan stage", "id", r.ID, "stage", next)
	return nil
}

// Scanner wires the collector, the two passes and the store together.
type Scanner struct {
	oracle    Oracle
	collector *collector.Collector
	store     store.Store
	opts      Options
	logger    hclog.Logger
}

// NewID returns a fresh scan identifier.
func NewID() string {
	return uuid.New().String()
}

// New creates a Scanner. The oracle is passed explicitly to every pass.
func New(o Oracle, c *collector.Collector, st store.Store, opts Options, logger hclog.Logger) *Scanner {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if opts.ID == "" {
		opts.ID = NewID()
	}
	if opts.Fallback.Logger == nil {
		opts.Fallback.Logger = logger.Named("fallback")
	}
	return &Scanner{oracle: o, collector: c, store: st, opts: opts, logger: logger}
}

// Run collects files, runs the first pass and, when enabled, the refinement
// pass. Reports are persisted even when ctx is cancelled mid-pass; in that
// case ctx.Err() is returned together with the result.
func (s *Scanner) Run(ctx context.Context, target Target) (*Result, error) {
	res := s.newResult(target)

	paths, err := s.collector.Collect(target.Root)
	if err != nil {
		return res, fmt.Errorf("failed to collect files: %w", err)
	}
	res.Files = len(paths)
	s.logger.Info("files collected", "id", res.ID, "repository", target.Name, "files", len(paths))
	if err := res.advance(s.logger, StageCollected); err != nil {
		return res, err
	}

	var repo refiner.RepoContext
	if s.opts.Refine {
		if repo, err = s.prepareRepository(ctx, target, paths); err != nil {
			return res, err
		}
	}

	if err := res.advance(s.logger, StageFirstPassRunning); err != nil {
		return res, err
	}
	cacheOpts := []analyzer.Option{}
	if s.opts.Cache != nil && s.opts.CacheKey != nil {
		cacheOpts = append(cacheOpts, analyzer.WithCache(s.opts.Cache, s.opts.CacheKey))
	}
	first, runErr := analyzer.New(s.oracle, s.logger.Named("analyzer"), cacheOpts...).Run(ctx, target.Root, target.Name, paths)
	res.FirstPass = first
	if err := res.advance(s.logger, StageFirstPassDone); err != nil {
		return res, err
	}
	if err := s.persist(ctx, res, first, target.Name, FirstPassReportName, FirstPassSarifName); err != nil {
		return res, err
	}

	if runErr != nil || !s.opts.Refine {
		return s.finish(res, runErr)
	}
	return s.refine(ctx, res, repo)
}

// Refine runs only the second pass over a previously persisted first-pass report.
func (s *Scanner) Refine(ctx context.Context, target Target, first *findings.Report) (*Result, error) {
	res := s.newResult(target)
	res.FirstPass = first

	paths, err := s.collector.Collect(target.Root)
	if err != nil {
		return res, fmt.Errorf("failed to collect files: %w", err)
	}
	res.Files = len(paths)
	for _, next := range []Stage{StageCollected, StageFirstPassRunning, StageFirstPassDone} {
		if err := res.advance(s.logger, next); err != nil {
			return res, err
		}
	}

	repo, err := s.prepareRepository(ctx, target, paths)
	if err != nil {
		return res, err
	}
	return s.refine(ctx, res, repo)
}

func (s *Scanner) newResult(target Target) *Result {
	return &Result{
		ID:        s.opts.ID,
		Target:    target,
		Artifacts: make(map[string]string),
		StartedAt: time.Now().UTC(),
	}
}

func (s *Scanner) refine(ctx context.Context, res *Result, repo refiner.RepoContext) (*Result, error) {
	if err := res.advance(s.logger, StageRefinementRunning); err != nil {
		return res, err
	}

	fallback := refiner.NewFallbackRefiner(s.oracle, s.opts.Fallback)
	batches := refiner.New(s.oracle, fallback, s.opts.BatchSize, s.logger.Named("refiner"))
	refined, runErr := batches.Refine(ctx, res.FirstPass, repo)
	res.Refined = refined
	res.Stats = batches.Stats()
	if err := res.advance(s.logger, StageRefinementDone); err != nil {
		return res, err
	}

	s.logger.Info("refinement completed",
		"id", res.ID,
		"batches", res.Stats.Batches,
		"failed_batches", res.Stats.FailedBatches,
		"false_positives", res.Stats.FalsePositives,
		"fallbacks", res.Stats.Fallbacks,
		"manual_review", res.Stats.ManualReview,
	)

	if err := s.persist(ctx, res, refined, res.Target.Name, RefinedReportName, RefinedSarifName); err != nil {
		return res, err
	}
	return s.finish(res, runErr)
}

// finish marks the scan persisted. A skipped refinement is recorded first.
func (s *Scanner) finish(res *Result, runErr error) (*Result, error) {
	if res.Stage == StageFirstPassDone {
		if err := res.advance(s.logger, StageSkipped); err != nil {
			return res, err
		}
	}
	if err := res.advance(s.logger, StageReportPersisted); err != nil {
		return res, err
	}
	res.FinishedAt = time.Now().UTC()
	if runErr != nil {
		s.logger.Warn("scan interrupted, partial reports persisted", "id", res.ID, "error", runErr)
	}
	return res, runErr
}

// prepareRepository renders the repository text, saves it next to the
// reports and uploads it to the oracle file store.
func (s *Scanner) prepareRepository(ctx context.Context, target Target, paths []string) (refiner.RepoContext, error) {
	blob := repotext.Build(target.Root, target.Name, paths, s.opts.MaxContextBytes, s.logger.Named("repotext"))
	if s.opts.OutputFolder != "" {
		saved, err := repotext.Save(s.opts.OutputFolder, blob)
		if err != nil {
			return refiner.RepoContext{}, err
		}
		s.logger.Info("repository content written", "path", saved, "files", blob.Files, "skipped", blob.Skipped, "truncated", blob.Truncated)
	}

	ref, err := s.oracle.UploadRepository(ctx, target.Name+"_"+repotext.FileName, blob.Text)
	if err != nil {
		return refiner.RepoContext{}, err
	}
	return refiner.RepoContext{Text: blob.Text, Ref: ref}, nil
}

// persist stores report as JSON and, when enabled, as SARIF. Mirror upload
// failures are logged and do not fail the scan. Persisting ignores
// cancellation so that partial reports are always written.
func (s *Scanner) persist(ctx context.Context, res *Result, report *findings.Report, repoName, name, sarifName string) error {
	ctx = context.WithoutCancel(ctx)

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}
	if err := s.save(ctx, res, name, data); err != nil {
		return err
	}

	if !s.opts.Sarif {
		return nil
	}
	doc, err := sarif.Build(report, repoName, s.opts.Tool, s.logger.Named("sarif"))
	if err != nil {
		return err
	}
	encoded, err := sarif.Encode(doc)
	if err != nil {
		return err
	}
	return s.save(ctx, res, sarifName, encoded)
}

func (s *Scanner) save(ctx context.Context, res *Result, name string, data []byte) error {
	location, err := s.store.Save(ctx, name, data)
	if err != nil && !errors.Is(err, store.ErrMirror) {
		return fmt.Errorf("failed to persist %s: %w", name, err)
	}
	if err != nil {
		s.logger.Warn("report saved locally only", "name", name, "error", err)
	}
	res.Artifacts[name] = location
	s.logger.Info("report saved", "name", name, "location", location)
	return nil
}
