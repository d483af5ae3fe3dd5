package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ProviderError represents an HTTP status error from an AI provider.
type ProviderError struct {
	Provider   string
	Model      string
	StatusCode int
	Body       string
	Err        error
}

func (e *ProviderError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("HTTP %d from %s: %s", e.StatusCode, e.Provider, e.Body)
	}
	if e.Err != nil {
		return fmt.Sprintf("HTTP %d from %s: %v", e.StatusCode, e.Provider, e.Err)
	}
	return fmt.Sprintf("HTTP %d from %s", e.StatusCode, e.Provider)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// ValidationError represents a request that no provider will accept.
type ValidationError struct {
	Provider string
	Message  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error (%s): %s", e.Provider, e.Message)
}

// IsTransient reports whether err should move a request to the next provider.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if IsContentRefused(err) || IsRateLimited(err) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var pErr *ProviderError
	if errors.As(err, &pErr) {
		if pErr.StatusCode >= 500 && pErr.StatusCode < 600 {
			return true
		}
		if pErr.StatusCode == 429 || pErr.StatusCode == 529 {
			return true
		}
		return false
	}

	// Network errors (connection issues, timeouts)
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "network") ||
		strings.Contains(errStr, "eof")
}

// IsFatal reports whether err should stop the request without trying again.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return true
	}

	var valErr *ValidationError
	if errors.As(err, &valErr) {
		return true
	}

	// HTTP 4xx errors (except 429)
	var pErr *ProviderError
	if errors.As(err, &pErr) {
		if pErr.StatusCode >= 400 && pErr.StatusCode < 500 && pErr.StatusCode != 429 {
			return true
		}
	}

	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "invalid request") ||
		strings.Contains(errStr, "bad request") ||
		strings.Contains(errStr, "malformed")
}

// classify names the error class for metrics and logs.
func classify(err error) string {
	switch {
	case err == nil:
		return "success"
	case IsRateLimited(err):
		return "rate_limited"
	case IsFatal(err):
		return "fatal"
	case IsTransient(err):
		return "transient"
	}
	return "unknown"
}
