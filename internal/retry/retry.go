// Package retry provides bounded-attempt retries with linear backoff for
// downstream calls. It sits behind the circuit breaker, so its defaults are
// intentionally small: sustained failure is the breaker's job.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrExhausted marks a call that failed on every permitted attempt.
var ErrExhausted = errors.New("retry exhausted")

// NonRetryableError wraps errors that must not be retried.
type NonRetryableError struct {
	Err error
}

func (e *NonRetryableError) Error() string {
	return fmt.Sprintf("non-retryable: %v", e.Err)
}

func (e *NonRetryableError) Unwrap() error {
	return e.Err
}

// NonRetryable marks an error as non-retryable.
func NonRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &NonRetryableError{Err: err}
}

// IsNonRetryable checks whether an error carries the non-retryable marker.
func IsNonRetryable(err error) bool {
	var nre *NonRetryableError
	return errors.As(err, &nre)
}

// Config bounds a retried call.
type Config struct {
	// MaxAttempts is the total number of tries, not the number of retries.
	MaxAttempts int
	// Backoff is multiplied by the attempt number between tries, giving a
	// linearly increasing delay.
	Backoff time.Duration
}

// DefaultConfig matches the gateway's proxy policy.
func DefaultConfig() Config {
	return Config{MaxAttempts: 2, Backoff: 100 * time.Millisecond}
}

// Do runs fn until it succeeds, returns a non-retryable error, the context
// ends, or MaxAttempts is reached. The last result is returned alongside the
// error so callers can still relay a final failing response. fn receives the
// 1-based attempt number.
func Do[T any](ctx context.Context, cfg Config, fn func(attempt int) (T, error)) (T, error) {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}

	var last T
	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		last, lastErr = fn(attempt)
		if lastErr == nil {
			return last, nil
		}
		if IsNonRetryable(lastErr) {
			return last, lastErr
		}
		if ctx.Err() != nil {
			return last, fmt.Errorf("retry cancelled after attempt %d: %w", attempt, ctx.Err())
		}
		if attempt == cfg.MaxAttempts {
			break
		}
		if err := sleep(ctx, cfg.Backoff*time.Duration(attempt)); err != nil {
			return last, fmt.Errorf("retry cancelled before attempt %d: %w", attempt+1, err)
		}
	}
	return last, fmt.Errorf("%w after %d attempts: %w", ErrExhausted, cfg.MaxAttempts, lastErr)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	select {
	case <-ctx.Done():
		timer.Stop()
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
