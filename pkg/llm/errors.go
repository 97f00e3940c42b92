package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	// ErrTimeout is returned when a provider call exceeds its deadline
	ErrTimeout = errors.New("provider call timed out")

	// ErrAuth is returned on credential failures (401/403)
	ErrAuth = errors.New("provider authentication failed")

	// ErrRateLimited is returned when the provider throttles us (429)
	ErrRateLimited = errors.New("provider rate limit exceeded")

	// ErrProvider is returned on provider-side faults (5xx, transport)
	ErrProvider = errors.New("provider error")

	// ErrBadRequest is returned when the provider rejects the request shape
	ErrBadRequest = errors.New("provider rejected request")
)

// IsRetryable reports whether a call may be retried: throttling, provider-side
// faults, and transport errors. Auth and request-shape errors never retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrProvider)
}

// classifyStatus maps an HTTP status code from a provider SDK onto the error
// taxonomy. Unknown codes in the 4xx range are bad requests; everything else
// is a provider fault.
func classifyStatus(status int, err error) error {
	switch {
	case status == 401 || status == 403:
		return fmt.Errorf("%w: %w", ErrAuth, err)
	case status == 429:
		return fmt.Errorf("%w: %w", ErrRateLimited, err)
	case status >= 500:
		return fmt.Errorf("%w: %w", ErrProvider, err)
	case status >= 400:
		return fmt.Errorf("%w: %w", ErrBadRequest, err)
	default:
		return fmt.Errorf("%w: %w", ErrProvider, err)
	}
}

// classifyTransport maps context and network failures. Provider-specific
// wrappers call this after their own status-code mapping.
func classifyTransport(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return fmt.Errorf("%w: %w", ErrTimeout, err)
		}
		return fmt.Errorf("%w: %w", ErrProvider, err)
	}
	return fmt.Errorf("%w: %w", ErrProvider, err)
}
