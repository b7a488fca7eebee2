// Package retry provides the bounded exponential backoff policy used around
// every oracle call.
package retry

import (
	"context"
	"math/rand"
	"time"

	"github.com/hashicorp/go-hclog"

	errs "github.com/scan-io-git/llmscan/pkg/shared/errors"
)

// Default policy values.
const (
	DefaultMaxAttempts = 4
	DefaultBaseDelay   = 4 * time.Second
	DefaultMaxDelay    = 30 * time.Second
)

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the default SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Policy describes how often and how patiently an operation is retried.
//
// The wait before attempt n+1 is BaseDelay*2^(n-1) capped at MaxDelay. With
// Jitter the wait is drawn uniformly from [BaseDelay, that value], so neither
// the floor nor the ceiling is ever crossed.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      bool
	Sleep       SleepFunc
	Logger      hclog.Logger
}

// Default returns the policy used when nothing is configured.
func Default() Policy {
	return Policy{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		MaxDelay:    DefaultMaxDelay,
	}
}

// Backoff returns the wait after the given failed attempt (1-indexed).
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			delay = p.MaxDelay
			break
		}
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	if p.Jitter && delay > p.BaseDelay {
		delay = p.BaseDelay + time.Duration(rand.Int63n(int64(delay-p.BaseDelay)+1))
	}
	return delay
}

// Do runs op until it succeeds, the attempts are exhausted or ctx is done.
// Exhaustion is reported as an AnalysisError naming unit.
func (p Policy) Do(ctx context.Context, unit string, op func(ctx context.Context, attempt int) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = Sleep
	}
	logger := p.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = op(ctx, attempt)
		if lastErr == nil {
			return nil
		}
		if attempt == attempts {
			break
		}

		delay := p.Backoff(attempt)
		logger.Warn("oracle call failed, retrying", "unit", unit, "attempt", attempt, "max_attempts", attempts, "wait", delay, "error", lastErr)
		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}

	return errs.NewAnalysisError(unit, attempts, lastErr)
}
