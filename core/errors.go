package core

import (
	"errors"
	"fmt"
)

// Fatal orchestration errors. Only these escape a run; every tool level
// failure is folded back into the conversation as a tool turn.
var (
	// ErrProviderUnavailable signals that the completion provider cannot be
	// reached (transport failure, authentication failure, persistent 5xx).
	ErrProviderUnavailable = errors.New("completion provider unavailable")

	// ErrProtocolViolation signals a provider response whose shape cannot be
	// interpreted (no result, several result kinds, unparsable structured value).
	ErrProtocolViolation = errors.New("completion provider protocol violation")

	// ErrRateLimited signals a throttled provider call. It is retryable and not
	// fatal to a run.
	ErrRateLimited = errors.New("completion provider rate limited")
)

// ToolErrorKind classifies a tool failure.
type ToolErrorKind string

const (
	// ToolErrorUnknownTool is reported when the requested name is not registered.
	ToolErrorUnknownTool ToolErrorKind = "UnknownTool"
	// ToolErrorInvalidArguments is reported for unparsable payloads, missing
	// required parameters and type mismatches that cannot be coerced.
	ToolErrorInvalidArguments ToolErrorKind = "InvalidArguments"
	// ToolErrorExecutionFailure is reported when the capability itself fails.
	ToolErrorExecutionFailure ToolErrorKind = "ExecutionFailure"
)

// ToolError represents a classified tool failure.
type ToolError struct {
	Kind    ToolErrorKind `json:"kind"`
	Tool    string        `json:"tool"`
	Message string        `json:"message"`
	Cause   error         `json:"-"`
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("tool error [%s] in %s: %s", e.Kind, e.Tool, e.Message)
}

// Unwrap exposes the underlying cause (if any).
func (e *ToolError) Unwrap() error { return e.Cause }

// NewToolError creates a ToolError of the given kind.
func NewToolError(kind ToolErrorKind, tool, message string, cause error) *ToolError {
	return &ToolError{
		Kind:    kind,
		Tool:    tool,
		Message: message,
		Cause:   cause,
	}
}

// IsFatal reports whether err must abort a run.
func IsFatal(err error) bool {
	return errors.Is(err, ErrProviderUnavailable) || errors.Is(err, ErrProtocolViolation)
}
