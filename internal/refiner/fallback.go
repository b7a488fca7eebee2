package refiner

import (
	"context"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/scan-io-git/llmscan/internal/extract"
	"github.com/scan-io-git/llmscan/internal/findings"
	"github.com/scan-io-git/llmscan/internal/oracle"
	errs "github.com/scan-io-git/llmscan/pkg/shared/errors"
	"github.com/scan-io-git/llmscan/pkg/shared/retry"
)

// Notes attached to findings that could not be refined individually.
const (
	NoteQuotaExhausted = "Quota exhausted during individual refinement; original result retained."
	NoteRefineError    = "Manual review required (error during individual refinement)"
	NoteUnparseable    = "Manual review required (individual refinement returned no usable result)"
)

// FindingOracle is the part of the oracle client the fallback path needs.
type FindingOracle interface {
	RefineFinding(ctx context.Context, item oracle.BatchItem, repoText, repoRef string) (string, error)
}

// FallbackOptions configures a FallbackRefiner.
type FallbackOptions struct {
	RateLimit     time.Duration
	QuotaCooldown time.Duration
	Sleep         retry.SleepFunc
	Logger        hclog.Logger
}

// FallbackRefiner refines one finding at a time when a batch answer left it out.
type FallbackRefiner struct {
	oracle   FindingOracle
	limiter  *oracle.RateLimiter
	cooldown time.Duration
	sleep    retry.SleepFunc
	logger   hclog.Logger
}

// NewFallbackRefiner creates a FallbackRefiner.
func NewFallbackRefiner(o FindingOracle, opts FallbackOptions) *FallbackRefiner {
	logger := opts.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = retry.Sleep
	}
	return &FallbackRefiner{
		oracle:   o,
		limiter:  oracle.NewRateLimiter(opts.RateLimit, sleep),
		cooldown: opts.QuotaCooldown,
		sleep:    sleep,
		logger:   logger,
	}
}

// Refine returns the outcome for item. Infrastructure failures never drop
// the finding: it is retained with the manual review flag set.
func (f *FallbackRefiner) Refine(ctx context.Context, item oracle.BatchItem, repo RepoContext) findings.RefinementOutcome {
	name := item.Finding.VulnerabilityName

	if err := f.limiter.Wait(ctx); err != nil {
		f.logger.Warn("individual refinement skipped", "file", item.FilePath, "vulnerability", name, "error", err)
		return retained(name, NoteRefineError)
	}

	text, err := f.oracle.RefineFinding(ctx, item, repo.Text, repo.Ref)
	if err != nil {
		if errs.IsQuotaExhausted(err) {
			f.logger.Warn("quota exhausted during individual refinement, cooling off", "file", item.FilePath, "vulnerability", name, "cooldown", f.cooldown)
			if f.cooldown > 0 {
				_ = f.sleep(ctx, f.cooldown)
			}
			return retained(name, NoteQuotaExhausted)
		}
		f.logger.Error("error in individual refinement", "file", item.FilePath, "vulnerability", name, "error", err)
		return retained(name, NoteRefineError)
	}

	value, ok := extract.ExtractJSON(text)
	if !ok {
		f.logger.Warn("could not extract valid JSON from individual refinement", "file", item.FilePath, "vulnerability", name)
		return retained(name, NoteUnparseable)
	}
	outcome, ok := findings.OutcomeFromRaw(value)
	if !ok {
		f.logger.Warn("individual refinement is not an object", "file", item.FilePath, "vulnerability", name)
		return retained(name, NoteUnparseable)
	}
	return outcome
}

func retained(name, note string) findings.RefinementOutcome {
	return findings.RefinementOutcome{
		VulnerabilityName: name,
		ManualReview:      true,
		Note:              note,
	}
}
