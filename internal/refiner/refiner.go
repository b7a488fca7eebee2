// Package refiner runs the second pass: batched validation of first-pass
// findings against the full repository, with a per-finding fallback.
package refiner

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/go-hclog"

	"github.com/scan-io-git/llmscan/internal/extract"
	"github.com/scan-io-git/llmscan/internal/findings"
	"github.com/scan-io-git/llmscan/internal/oracle"
)

// DefaultBatchSize is the number of files refined per oracle call.
const DefaultBatchSize = 5

// RepoContext is the repository material sent along with every refinement.
type RepoContext struct {
	Text string
	Ref  string
}

// BatchOracle is the part of the oracle client the batch path needs.
type BatchOracle interface {
	RefineBatch(ctx context.Context, items []oracle.BatchItem, repoText, repoRef string) (string, error)
}

// Fallback refines a single finding the batch answer did not cover.
type Fallback interface {
	Refine(ctx context.Context, item oracle.BatchItem, repo RepoContext) findings.RefinementOutcome
}

// Stats describes what a refinement run did.
type Stats struct {
	Batches        int
	FailedBatches  int
	FalsePositives int
	Fallbacks      int
	ManualReview   int
}

// BatchRefiner refines a first-pass report batch by batch.
type BatchRefiner struct {
	oracle    BatchOracle
	fallback  Fallback
	batchSize int
	logger    hclog.Logger

	stats Stats
}

// New creates a BatchRefiner. A non-positive batchSize falls back to DefaultBatchSize.
func New(o BatchOracle, fallback Fallback, batchSize int, logger hclog.Logger) *BatchRefiner {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &BatchRefiner{oracle: o, fallback: fallback, batchSize: batchSize, logger: logger}
}

// Stats returns the counters of the last Refine call.
func (b *BatchRefiner) Stats() Stats {
	return b.stats
}

// Refine returns a new report in the same file order as report. Error markers
// and empty files are carried over untouched. A batch whose oracle call fails
// keeps its findings unchanged. On cancellation the files not yet refined are
// carried over unchanged and ctx.Err() is returned with the report.
func (b *BatchRefiner) Refine(ctx context.Context, report *findings.Report, repo RepoContext) (*findings.Report, error) {
	b.stats = Stats{}
	out := findings.NewReport()
	defer out.Summarize()

	var candidates []string
	for _, path := range report.Paths() {
		fr, _ := report.Get(path)
		out.Set(path, fr)
		if !fr.IsFailure() && len(fr.List()) > 0 {
			candidates = append(candidates, path)
		}
	}

	total := (len(candidates) + b.batchSize - 1) / b.batchSize
	for start, n := 0, 1; start < len(candidates); start, n = start+b.batchSize, n+1 {
		if err := ctx.Err(); err != nil {
			b.logger.Warn("refinement interrupted", "completed_batches", n-1, "total_batches", total)
			return out, err
		}

		end := start + b.batchSize
		if end > len(candidates) {
			end = len(candidates)
		}
		batch := candidates[start:end]
		b.logger.Info("refining batch", "batch", fmt.Sprintf("%d/%d", n, total), "files", len(batch))

		if err := b.refineBatch(ctx, report, out, batch, repo); err != nil {
			b.logger.Warn("refinement interrupted", "completed_batches", n-1, "total_batches", total)
			return out, err
		}
	}

	b.logger.Info("refinement completed",
		"batches", b.stats.Batches,
		"failed_batches", b.stats.FailedBatches,
		"false_positives", b.stats.FalsePositives,
		"fallbacks", b.stats.Fallbacks,
		"manual_review", b.stats.ManualReview)
	return out, nil
}

// refineBatch only returns an error when ctx was cancelled during the oracle call.
func (b *BatchRefiner) refineBatch(ctx context.Context, in, out *findings.Report, batch []string, repo RepoContext) error {
	b.stats.Batches++

	var items []oracle.BatchItem
	for _, path := range batch {
		fr, _ := in.Get(path)
		for _, f := range fr.List() {
			items = append(items, oracle.BatchItem{FilePath: path, Finding: f})
		}
	}

	text, err := b.oracle.RefineBatch(ctx, items, repo.Text, repo.Ref)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return ctxErr
		}
		b.stats.FailedBatches++
		b.logger.Error("batch refinement failed, findings carried forward unchanged", "files", batch, "error", err)
		return nil
	}
	b.logger.Debug("batch refinement response", "response", text)

	outcomes := parseOutcomes(text)
	if outcomes == nil {
		b.logger.Warn("could not extract valid JSON from batch refinement response", "files", batch)
	}

	for _, path := range batch {
		fr, _ := in.Get(path)
		out.Set(path, findings.Findings(b.reconcile(ctx, path, fr.List(), outcomes[path], repo)))
	}
	return nil
}

// reconcile aligns outcomes with originals by position. Missing or malformed
// outcomes are resolved by the fallback refiner.
func (b *BatchRefiner) reconcile(ctx context.Context, path string, originals []findings.Finding, outcomes []any, repo RepoContext) []findings.Finding {
	refined := make([]findings.Finding, 0, len(originals))
	for i, f := range originals {
		outcome, ok := findings.RefinementOutcome{}, false
		if i < len(outcomes) {
			outcome, ok = findings.OutcomeFromRaw(outcomes[i])
		}
		if !ok {
			b.stats.Fallbacks++
			b.logger.Debug("batch response missing result, refining individually", "file", path, "index", i, "vulnerability", f.VulnerabilityName)
			outcome = b.fallback.Refine(ctx, oracle.BatchItem{FilePath: path, Finding: f}, repo)
		} else if outcome.VulnerabilityName != "" && outcome.VulnerabilityName != f.VulnerabilityName {
			b.logger.Debug("outcome name differs from finding", "file", path, "index", i, "finding", f.VulnerabilityName, "outcome", outcome.VulnerabilityName)
		}

		updated, keep := outcome.Apply(f)
		if !keep {
			b.stats.FalsePositives++
			b.logger.Info("false positive identified and removed", "file", path, "vulnerability", f.VulnerabilityName)
			continue
		}
		if updated.ManualReview {
			b.stats.ManualReview++
		}
		refined = append(refined, updated)
	}
	return refined
}

// parseOutcomes decodes a batch answer into per-file outcome lists. It
// returns nil when the answer holds no JSON object.
func parseOutcomes(text string) map[string][]any {
	data, ok := extract.ExtractObject(text)
	if !ok {
		return nil
	}
	out := make(map[string][]any, len(data))
	for path, value := range data {
		switch v := value.(type) {
		case []any:
			out[path] = v
		case map[string]any:
			out[path] = []any{v}
		}
	}
	return out
}
