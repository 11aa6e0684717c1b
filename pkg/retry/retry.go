package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"
)

// JitterStrategy defines the jitter strategy to use.
type JitterStrategy int

const (
	// JitterNone disables jitter.
	JitterNone JitterStrategy = iota
	// JitterEqual applies uniform jitter (equal chance of any delay in range).
	JitterEqual
	// JitterDecorrelated applies decorrelated jitter (AWS recommended).
	JitterDecorrelated
)

// Config defines retry configuration.
type Config struct {
	// MaxAttempts is the maximum number of attempts (including the first one).
	MaxAttempts int
	// InitialDelay is the initial delay between retries.
	InitialDelay time.Duration
	// MaxDelay is the maximum delay between retries.
	MaxDelay time.Duration
	// Multiplier is the exponential backoff multiplier.
	Multiplier float64
	// JitterStrategy defines the jitter algorithm to use.
	JitterStrategy JitterStrategy
	// Rand is the random source for jitter (optional).
	Rand *rand.Rand
	// OnRetry is called before each retry attempt for observability.
	OnRetry func(attempt int, err error, nextDelay time.Duration)
	// IsRetryable decides whether an error is worth retrying
	// (defaults to DefaultRetryable).
	IsRetryable func(err error) bool
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:    3,
		InitialDelay:   100 * time.Millisecond,
		MaxDelay:       30 * time.Second,
		Multiplier:     2.0,
		JitterStrategy: JitterDecorrelated,
	}
}

// RetriesExceededError is returned when retries are exhausted.
type RetriesExceededError struct {
	LastError error
	Attempts  int
}

func (e *RetriesExceededError) Error() string {
	return fmt.Sprintf("retry: exhausted after %d attempts: %v", e.Attempts, e.LastError)
}

func (e *RetriesExceededError) Unwrap() error {
	return e.LastError
}

// DefaultRetryable reports whether an error is transient: context deadlines,
// timeouts, and SQLite lock contention. Context cancellation never retries.
func DefaultRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	type timeouter interface {
		Timeout() bool
	}
	var te timeouter
	if errors.As(err, &te) && te.Timeout() {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "SQLITE_BUSY")
}

// Retry runs fn with the default configuration.
func Retry(ctx context.Context, fn func(ctx context.Context) error) error {
	return RetryWithConfig(ctx, DefaultConfig(), fn)
}

// RetryWithConfig runs fn until it succeeds, the error is not retryable, the
// attempts are exhausted, or ctx is done.
func RetryWithConfig(ctx context.Context, cfg Config, fn func(ctx context.Context) error) error {
	if cfg.MaxAttempts <= 0 {
		return errors.New("retry: MaxAttempts must be positive")
	}
	if cfg.Multiplier < 1.0 {
		cfg.Multiplier = 2.0
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	retryable := cfg.IsRetryable
	if retryable == nil {
		retryable = DefaultRetryable
	}

	delay := cfg.InitialDelay
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !retryable(lastErr) {
			return lastErr
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		next := cfg.nextDelay(delay)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, lastErr, next)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(next):
		}
		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}
	return &RetriesExceededError{LastError: lastErr, Attempts: cfg.MaxAttempts}
}

// nextDelay applies the configured jitter to the current backoff delay.
func (c Config) nextDelay(delay time.Duration) time.Duration {
	if delay <= 0 {
		return 0
	}
	switch c.JitterStrategy {
	case JitterEqual:
		half := delay / 2
		return half + time.Duration(c.Rand.Int63n(int64(half)+1))
	case JitterDecorrelated:
		lo := int64(c.InitialDelay)
		hi := int64(delay) * 3
		if hi <= lo {
			return time.Duration(lo)
		}
		d := lo + c.Rand.Int63n(hi-lo)
		if d > int64(c.MaxDelay) && c.MaxDelay > 0 {
			d = int64(c.MaxDelay)
		}
		return time.Duration(d)
	default:
		return delay
	}
}
