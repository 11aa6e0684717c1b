package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.InitialDelay = time.Millisecond
	cfg.MaxDelay = 5 * time.Millisecond
	cfg.JitterStrategy = JitterNone
	return cfg
}

func TestRetry_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := RetryWithConfig(context.Background(), fastConfig(), func(context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetry_RetriesUntilSuccess(t *testing.T) {
	cfg := fastConfig()
	cfg.IsRetryable = func(error) bool { return true }

	calls := 0
	err := RetryWithConfig(context.Background(), cfg, func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	cfg := fastConfig()
	cfg.MaxAttempts = 2
	cfg.IsRetryable = func(error) bool { return true }

	base := errors.New("always")
	err := RetryWithConfig(context.Background(), cfg, func(context.Context) error {
		return base
	})

	var exceeded *RetriesExceededError
	require.ErrorAs(t, err, &exceeded)
	assert.Equal(t, 2, exceeded.Attempts)
	assert.ErrorIs(t, err, base)
}

func TestRetry_NonRetryableStopsImmediately(t *testing.T) {
	calls := 0
	err := RetryWithConfig(context.Background(), fastConfig(), func(context.Context) error {
		calls++
		return errors.New("permanent")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetry_ContextCancelled(t *testing.T) {
	cfg := fastConfig()
	cfg.MaxAttempts = 100
	cfg.InitialDelay = time.Hour // never completes the backoff wait
	cfg.IsRetryable = func(error) bool { return true }

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := RetryWithConfig(ctx, cfg, func(context.Context) error {
		return errors.New("transient")
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetry_OnRetryHook(t *testing.T) {
	cfg := fastConfig()
	cfg.MaxAttempts = 3
	cfg.IsRetryable = func(error) bool { return true }

	var attempts []int
	cfg.OnRetry = func(attempt int, err error, next time.Duration) {
		attempts = append(attempts, attempt)
	}

	_ = RetryWithConfig(context.Background(), cfg, func(context.Context) error {
		return errors.New("transient")
	})
	assert.Equal(t, []int{1, 2}, attempts)
}

func TestDefaultRetryable(t *testing.T) {
	assert.False(t, DefaultRetryable(nil))
	assert.False(t, DefaultRetryable(context.Canceled))
	assert.True(t, DefaultRetryable(context.DeadlineExceeded))
	assert.True(t, DefaultRetryable(errors.New("database is locked (5) (SQLITE_BUSY)")))
	assert.False(t, DefaultRetryable(errors.New("syntax error")))
}
