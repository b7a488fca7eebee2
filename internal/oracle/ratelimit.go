package oracle

import (
	"context"
	"time"

	"github.com/scan-io-git/llmscan/pkg/shared/retry"
)

// RateLimiter enforces a fixed pause between oracle calls.
type RateLimiter struct {
	Interval time.Duration
	Sleep    retry.SleepFunc
}

// NewRateLimiter returns a limiter that pauses for interval.
func NewRateLimiter(interval time.Duration, sleep retry.SleepFunc) *RateLimiter {
	if sleep == nil {
		sleep = retry.Sleep
	}
	return &RateLimiter{Interval: interval, Sleep: sleep}
}

// Wait blocks for the configured interval or until ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if r == nil || r.Interval <= 0 {
		return ctx.Err()
	}
	return r.Sleep(ctx, r.Interval)
}
