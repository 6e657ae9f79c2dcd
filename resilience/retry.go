// Package resilience holds the retry helper shared by the HTTP transport and
// the pipeline's polling loop.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

// ErrMaxRetriesExceeded is joined with the last error when every attempt
// failed with a retryable error.
var ErrMaxRetriesExceeded = errors.New("max retries exceeded")

// RetryConfig describes how often and how far apart attempts are made.
type RetryConfig struct {
	// MaxAttempts counts the first call too.
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// BackoffFactor scales the wait after every attempt. 1 keeps it fixed.
	BackoffFactor float64
	// Jitter spreads each wait by up to this fraction in either direction.
	Jitter  float64
	RetryIf func(error) bool
	// OnRetry runs before each wait.
	OnRetry func(attempt int, err error, backoff time.Duration)
}

// DefaultRetryConfig suits short network calls: three attempts, doubling
// from 200ms.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 200 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		BackoffFactor:  2,
		Jitter:         0.1,
		RetryIf:        DefaultRetryIf,
	}
}

// FixedInterval waits the same interval between every attempt.
func FixedInterval(maxAttempts int, interval time.Duration, retryIf func(error) bool) RetryConfig {
	return RetryConfig{
		MaxAttempts:    maxAttempts,
		InitialBackoff: interval,
		MaxBackoff:     interval,
		BackoffFactor:  1,
		RetryIf:        retryIf,
	}
}

// DefaultRetryIf retries everything but context errors.
func DefaultRetryIf(err error) bool {
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = 200 * time.Millisecond
	}
	c.MaxBackoff = max(c.MaxBackoff, c.InitialBackoff)
	if c.BackoffFactor <= 0 {
		c.BackoffFactor = 2
	}
	if c.RetryIf == nil {
		c.RetryIf = DefaultRetryIf
	}
	return c
}

// delay is the wait after the given 1-based attempt.
func (c RetryConfig) delay(attempt int) time.Duration {
	d := float64(c.InitialBackoff) * math.Pow(c.BackoffFactor, float64(attempt-1))
	if c.Jitter > 0 {
		d *= 1 + c.Jitter*(2*rand.Float64()-1)
	}
	return time.Duration(min(d, float64(c.MaxBackoff)))
}

// Retry calls fn with a 1-based attempt number until it succeeds, fails
// with an error RetryIf rejects, ctx is done or MaxAttempts calls were
// made. Running out of attempts returns an error matching both
// ErrMaxRetriesExceeded and the last error.
func Retry[T any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context, attempt int) (T, error)) (T, error) {
	var zero T
	cfg = cfg.withDefaults()

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		result, err := fn(ctx, attempt)
		switch {
		case err == nil:
			return result, nil
		case !cfg.RetryIf(err):
			return zero, err
		case attempt >= cfg.MaxAttempts:
			return zero, fmt.Errorf("%w after %d attempts: %w", ErrMaxRetriesExceeded, attempt, err)
		}

		wait := cfg.delay(attempt)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, wait)
		}
		if err := sleep(ctx, wait); err != nil {
			return zero, err
		}
	}
}

// RetryFunc is Retry for functions without a result.
func RetryFunc(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context, attempt int) error) error {
	_, err := Retry(ctx, cfg, func(ctx context.Context, attempt int) (struct{}, error) {
		return struct{}{}, fn(ctx, attempt)
	})
	return err
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
