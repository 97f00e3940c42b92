package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithRetry_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), "test", func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestWithRetry_RetriesRetryableErrors(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), "test", func() error {
		calls++
		if calls < 3 {
			return fmt.Errorf("%w: 503", ErrProvider)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithRetry_ExhaustsAttempts(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), "test", func() error {
		calls++
		return fmt.Errorf("%w: throttled", ErrRateLimited)
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRateLimited))
	assert.Equal(t, maxAttempts, calls)
}

func TestWithRetry_DoesNotRetryAuthErrors(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), "test", func() error {
		calls++
		return fmt.Errorf("%w: bad key", ErrAuth)
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestWithRetry_DoesNotRetryBadRequests(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), "test", func() error {
		calls++
		return fmt.Errorf("%w: schema", ErrBadRequest)
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestWithRetry_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := withRetry(ctx, "test", func() error {
		return fmt.Errorf("%w: flaky", ErrProvider)
	})
	require.Error(t, err)
}

func TestBackoff_CappedAndPositive(t *testing.T) {
	for attempt := 1; attempt <= 10; attempt++ {
		wait := backoff(attempt)
		assert.Greater(t, wait, time.Duration(0), "attempt %d", attempt)
		assert.LessOrEqual(t, wait, retryMaxWait, "attempt %d", attempt)
	}
}
