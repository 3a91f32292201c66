package retrylimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type statusErr int

func (e statusErr) Error() string   { return "status" }
func (e statusErr) StatusCode() int { return int(e) }

func fastConfig(attempts int) RetryConfig {
	return RetryConfig{MaxAttempts: attempts, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}
}

func TestWithRetry_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	var retried []int
	cfg := fastConfig(3)
	cfg.OnRetry = func(attempt int, err error) { retried = append(retried, attempt) }

	err := WithRetry(context.Background(), func() error {
		calls++
		if calls < 3 {
			return statusErr(503)
		}
		return nil
	}, nil, cfg)

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestWithRetry_FatalStopsImmediately(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := WithRetry(context.Background(), func() error {
		calls++
		return Fatal(boom)
	}, nil, fastConfig(5))

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestWithRetry_GivesUp(t *testing.T) {
	boom := errors.New("boom")
	err := WithRetry(context.Background(), func() error { return boom }, nil, fastConfig(2))
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "after 2 attempts")
}

func TestWithRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cfg := fastConfig(3)
	cfg.InitialDelay = time.Hour
	err := WithRetry(ctx, func() error { return errors.New("x") }, nil, cfg)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAdaptiveLimiter_AdjustsWithinBounds(t *testing.T) {
	lim := NewAdaptiveLimiter(4, 1, 8, 2, 0.5)
	assert.Equal(t, 4.0, lim.CurrentLimit())

	lim.RateLimited()
	assert.Equal(t, 2.0, lim.CurrentLimit())
	lim.RateLimited()
	lim.RateLimited()
	assert.Equal(t, 1.0, lim.CurrentLimit())

	// success right after an error keeps the rate down
	lim.Success()
	assert.Equal(t, 1.0, lim.CurrentLimit())

	lim.cooldown = 0
	lim.lastError = time.Time{}
	for i := 0; i < 10; i++ {
		lim.Success()
	}
	assert.Equal(t, 8.0, lim.CurrentLimit())
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(statusErr(429)))
	assert.True(t, Retryable(statusErr(502)))
	assert.False(t, Retryable(statusErr(404)))
	assert.False(t, Retryable(errors.New("plain")))
}
