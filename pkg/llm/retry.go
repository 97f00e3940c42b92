package llm

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"
)

// Retry policy for provider calls: at most maxAttempts tries, exponential
// backoff with full jitter.
const (
	maxAttempts  = 3
	retryBase    = 250 * time.Millisecond
	retryMaxWait = 4 * time.Second
)

// withRetry runs fn up to maxAttempts times, backing off between attempts.
// Only retryable errors (throttling, provider faults) are retried; auth and
// request-shape errors fail immediately.
func withRetry(ctx context.Context, op string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !IsRetryable(lastErr) || attempt == maxAttempts {
			return lastErr
		}

		wait := backoff(attempt)
		slog.Warn("Retrying provider call",
			"op", op, "attempt", attempt, "wait", wait, "error", lastErr)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return classifyTransport(ctx.Err())
		}
	}
	return lastErr
}

// backoff returns the jittered wait before the next attempt: a random value
// in (0, base·2^(attempt-1)], capped at retryMaxWait.
func backoff(attempt int) time.Duration {
	max := retryBase << (attempt - 1)
	if max > retryMaxWait {
		max = retryMaxWait
	}
	return time.Duration(rand.Int64N(int64(max)) + 1)
}
