package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	result, err := Do(context.Background(), Config{MaxAttempts: 3, Backoff: time.Millisecond},
		func(attempt int) (string, error) {
			attempts++
			if attempt < 3 {
				return "", errors.New("connection refused")
			}
			return "ok", nil
		})

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 3, attempts)
}

func TestDoExhaustsAttempts(t *testing.T) {
	attempts := 0
	last, err := Do(context.Background(), Config{MaxAttempts: 2, Backoff: time.Millisecond},
		func(int) (int, error) {
			attempts++
			return 500, errors.New("upstream status 500")
		})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, 500, last, "last result must survive exhaustion")
}

func TestDoStopsOnNonRetryable(t *testing.T) {
	attempts := 0
	_, err := Do(context.Background(), Config{MaxAttempts: 5, Backoff: time.Millisecond},
		func(int) (struct{}, error) {
			attempts++
			return struct{}{}, NonRetryable(errors.New("bad request"))
		})

	require.Error(t, err)
	assert.True(t, IsNonRetryable(err))
	assert.NotErrorIs(t, err, ErrExhausted)
	assert.Equal(t, 1, attempts, "non-retryable errors get exactly one attempt")
}

func TestDoPassesAttemptNumber(t *testing.T) {
	var seen []int
	_, _ = Do(context.Background(), Config{MaxAttempts: 3, Backoff: 0},
		func(attempt int) (struct{}, error) {
			seen = append(seen, attempt)
			return struct{}{}, errors.New("again")
		})
	assert.Equal(t, []int{1, 2, 3}, seen)
}

func TestDoRespectsContextDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := Do(ctx, Config{MaxAttempts: 3, Backoff: time.Minute},
		func(int) (struct{}, error) {
			attempts++
			return struct{}{}, errors.New("down")
		})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
}

func TestDoZeroAttemptsRunsOnce(t *testing.T) {
	attempts := 0
	_, err := Do(context.Background(), Config{}, func(int) (struct{}, error) {
		attempts++
		return struct{}{}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
}

func TestNonRetryableUnwraps(t *testing.T) {
	base := errors.New("root cause")
	wrapped := NonRetryable(base)
	assert.ErrorIs(t, wrapped, base)
	assert.True(t, IsNonRetryable(wrapped))
	assert.Nil(t, NonRetryable(nil))
}
