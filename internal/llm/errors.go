package llm

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/api/googleapi"
)

// RateLimitError indicates the provider rejected the call for rate limiting.
type RateLimitError struct {
	Message string
	Cause   error
}

func (e *RateLimitError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("rate limited: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("rate limited: %s", e.Message)
}

func (e *RateLimitError) Unwrap() error {
	return e.Cause
}

// TimeoutError indicates a model call exceeded its deadline.
type TimeoutError struct {
	Message string
	Cause   error
}

func (e *TimeoutError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("model timeout: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("model timeout: %s", e.Message)
}

func (e *TimeoutError) Unwrap() error {
	return e.Cause
}

// classifyProviderError wraps provider failures in typed errors so retry
// policies can inspect them.
func classifyProviderError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Message: "generate content", Cause: err}
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == 429 {
			return &RateLimitError{Message: "generate content", Cause: err}
		}
		if apiErr.Code >= 500 {
			return &TimeoutError{Message: "provider unavailable", Cause: err}
		}
	}

	return fmt.Errorf("failed to generate content: %w", err)
}

// Transient reports whether an error represents a retryable model failure:
// timeouts, rate limits, and provider 5xx responses. Context cancellation is
// never transient.
func Transient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var rateErr *RateLimitError
	if errors.As(err, &rateErr) {
		return true
	}
	var timeoutErr *TimeoutError
	return errors.As(err, &timeoutErr)
}
