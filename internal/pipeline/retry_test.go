package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 2.0,
		JitterFraction:    0.1,
	}
}

func TestRetry_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := retryWithBackoff(context.Background(), fastRetryConfig(), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_AttemptTimeoutIsRetryable(t *testing.T) {
	// A per-attempt deadline surfacing as a wrapped ctx error must not end
	// the retry loop while the outer context is still alive.
	calls := 0
	err := retryWithBackoff(context.Background(), fastRetryConfig(), func() error {
		calls++
		if calls == 1 {
			return fmt.Errorf("tailoring attempt: %w", context.DeadlineExceeded)
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestRetry_StopsOnCancelledOuterContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := retryWithBackoff(ctx, fastRetryConfig(), func() error {
		calls++
		return errors.New("transient")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetry_FatalStageErrorStopsImmediately(t *testing.T) {
	calls := 0
	fatal := fatal(KindRender, "bad markup", errors.New("boom"))
	err := retryWithBackoff(context.Background(), fastRetryConfig(), func() error {
		calls++
		return fatal
	})

	assert.ErrorIs(t, err, fatal)
	assert.Equal(t, 1, calls)
}
