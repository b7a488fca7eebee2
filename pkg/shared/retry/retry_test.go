package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "github.com/scan-io-git/llmscan/pkg/shared/errors"
)

type recordingSleeper struct {
	waits []time.Duration
}

func (r *recordingSleeper) sleep(_ context.Context, d time.Duration) error {
	r.waits = append(r.waits, d)
	return nil
}

func (r *recordingSleeper) total() time.Duration {
	var sum time.Duration
	for _, w := range r.waits {
		sum += w
	}
	return sum
}

func TestPolicyBackoff(t *testing.T) {
	p := Policy{BaseDelay: 4 * time.Second, MaxDelay: 30 * time.Second}

	assert.Equal(t, 4*time.Second, p.Backoff(1))
	assert.Equal(t, 8*time.Second, p.Backoff(2))
	assert.Equal(t, 16*time.Second, p.Backoff(3))
	assert.Equal(t, 30*time.Second, p.Backoff(4))
	assert.Equal(t, 30*time.Second, p.Backoff(10))
}

func TestPolicyBackoffJitterStaysInBounds(t *testing.T) {
	p := Policy{BaseDelay: 2 * time.Second, MaxDelay: 10 * time.Second, Jitter: true}

	for attempt := 1; attempt <= 6; attempt++ {
		for i := 0; i < 50; i++ {
			d := p.Backoff(attempt)
			assert.GreaterOrEqual(t, d, p.BaseDelay)
			assert.LessOrEqual(t, d, p.MaxDelay)
		}
	}
}

func TestPolicyDoSucceedsWithinCeiling(t *testing.T) {
	rec := &recordingSleeper{}
	p := Policy{MaxAttempts: 4, BaseDelay: 4 * time.Second, MaxDelay: 30 * time.Second, Sleep: rec.sleep}

	calls := 0
	err := p.Do(context.Background(), "app.py", func(_ context.Context, attempt int) error {
		calls++
		if attempt <= 3 {
			return errors.New("service unavailable")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 4, calls)
	assert.Equal(t, []time.Duration{4 * time.Second, 8 * time.Second, 16 * time.Second}, rec.waits)
	assert.Equal(t, 28*time.Second, rec.total())
}

func TestPolicyDoExhaustsAttempts(t *testing.T) {
	rec := &recordingSleeper{}
	p := Policy{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: 2 * time.Second, Sleep: rec.sleep}
	boom := errors.New("boom")

	calls := 0
	err := p.Do(context.Background(), "batch 1", func(_ context.Context, _ int) error {
		calls++
		return boom
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Len(t, rec.waits, 2)

	var analysisErr *errs.AnalysisError
	require.True(t, errors.As(err, &analysisErr))
	assert.Equal(t, "batch 1", analysisErr.Unit)
	assert.Equal(t, 3, analysisErr.Attempts)
	assert.True(t, errors.Is(err, boom))
}

func TestPolicyDoStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{MaxAttempts: 5, BaseDelay: time.Millisecond, Sleep: func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}}

	calls := 0
	err := p.Do(ctx, "x", func(_ context.Context, _ int) error {
		calls++
		return errors.New("fail")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestSleepHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
	assert.NoError(t, Sleep(context.Background(), 0))
}
