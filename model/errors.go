package model

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/hupe1980/reactmesh/core"
)

// StatusError wraps a vendor error with its provider and HTTP status code.
// StatusCode is zero for transport level failures.
type StatusError struct {
	Provider   string
	StatusCode int
	Err        error
}

// NewStatusError creates a StatusError.
func NewStatusError(provider string, statusCode int, err error) *StatusError {
	return &StatusError{Provider: provider, StatusCode: statusCode, Err: err}
}

func (e *StatusError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("%s: status %d: %v", e.Provider, e.StatusCode, e.Err)
}

// Unwrap exposes both the vendor error and the orchestration class, so
// errors.Is(err, core.ErrProviderUnavailable) works on a StatusError.
func (e *StatusError) Unwrap() []error {
	if class := e.class(); class != nil {
		return []error{e.Err, class}
	}
	return []error{e.Err}
}

// Temporary reports whether retrying the call may succeed.
func (e *StatusError) Temporary() bool {
	switch {
	case e.StatusCode == http.StatusTooManyRequests:
		return true
	case e.StatusCode == http.StatusRequestTimeout:
		return true
	case e.StatusCode >= 500:
		return true
	case e.StatusCode == 0:
		return !errors.Is(e.Err, context.Canceled)
	default:
		return false
	}
}

func (e *StatusError) class() error {
	switch {
	case e.StatusCode == http.StatusTooManyRequests:
		return core.ErrRateLimited
	case e.StatusCode == http.StatusUnauthorized, e.StatusCode == http.StatusForbidden:
		return core.ErrProviderUnavailable
	case e.StatusCode >= 500:
		return core.ErrProviderUnavailable
	case e.StatusCode == 0:
		if errors.Is(e.Err, context.Canceled) || errors.Is(e.Err, context.DeadlineExceeded) {
			return nil
		}
		return core.ErrProviderUnavailable
	default:
		return nil
	}
}

// ClassifyTransport wraps err as a transport failure of provider when it is a
// network error, leaving other errors untouched.
func ClassifyTransport(provider string, err error) error {
	if err == nil {
		return nil
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return NewStatusError(provider, 0, err)
	}

	return fmt.Errorf("%s: %w", provider, err)
}

// StatusClass returns a short label for metrics ("ok", "rate_limited", ...).
func StatusClass(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, core.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, core.ErrProviderUnavailable):
		return "unavailable"
	case errors.Is(err, core.ErrProtocolViolation):
		return "protocol_violation"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}
