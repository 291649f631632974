package core

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Role identifies the speaker of a Turn.
type Role string

const (
	// RoleSystem marks instructions injected by the orchestrator.
	RoleSystem Role = "system"
	// RoleUser marks the original request or other caller supplied text.
	RoleUser Role = "user"
	// RoleAssistant marks thoughts, rationales, tool call requests and answers.
	RoleAssistant Role = "assistant"
	// RoleTool marks the result (or classified failure) of a tool invocation.
	RoleTool Role = "tool"
)

// ToolCallRequest is a provider supplied request to invoke a named tool.
// RawArguments is kept verbatim (pre-validation) so the dispatcher can classify
// malformed payloads instead of the provider adapter.
type ToolCallRequest struct {
	ID           string `json:"id"`
	ToolName     string `json:"tool_name"`
	RawArguments string `json:"raw_arguments,omitempty"`
}

// Turn is one immutable entry of a run's conversation memory.
//
// Content always carries a textual rendering so providers that only understand
// text can replay the conversation. Structured holds the raw JSON value for
// turns produced from a schema constrained completion.
type Turn struct {
	ID         string            `json:"id"`
	Role       Role              `json:"role"`
	Content    string            `json:"content"`
	Structured json.RawMessage   `json:"structured,omitempty"`
	Sender     string            `json:"sender,omitempty"`       // originating agent (assistant / tool turns)
	ToolCallID string            `json:"tool_call_id,omitempty"` // links a tool turn to its request
	ToolName   string            `json:"tool_name,omitempty"`
	ToolCalls  []ToolCallRequest `json:"tool_calls,omitempty"` // assistant turns requesting tools
	ToolError  *ToolError        `json:"tool_error,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
}

// newTurn creates a bare turn with a fresh ID and UTC timestamp.
func newTurn(role Role, content string) Turn {
	return Turn{
		ID:        NewID(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
}

// NewSystemTurn creates a system turn.
func NewSystemTurn(content string) Turn { return newTurn(RoleSystem, content) }

// NewUserTurn creates a user authored turn.
func NewUserTurn(content string) Turn { return newTurn(RoleUser, content) }

// NewAssistantTurn creates an assistant turn attributed to sender.
func NewAssistantTurn(sender, content string) Turn {
	t := newTurn(RoleAssistant, content)
	t.Sender = sender
	return t
}

// NewStructuredTurn creates an assistant turn carrying a structured value. The
// textual content is the compact JSON encoding of the value.
func NewStructuredTurn(sender string, value json.RawMessage) Turn {
	t := NewAssistantTurn(sender, string(value))
	t.Structured = value
	return t
}

// NewToolCallTurn records the tool invocations an agent requested.
func NewToolCallTurn(sender string, calls []ToolCallRequest) Turn {
	t := newTurn(RoleAssistant, "")
	t.Sender = sender
	t.ToolCalls = append([]ToolCallRequest(nil), calls...)
	return t
}

// NewToolResultTurn records a successful tool invocation.
func NewToolResultTurn(sender string, req ToolCallRequest, content string) Turn {
	t := newTurn(RoleTool, content)
	t.Sender = sender
	t.ToolCallID = req.ID
	t.ToolName = req.ToolName
	return t
}

// NewToolErrorTurn records a failed tool invocation. The error message becomes
// the content so the agent can reason about the failure on its next step.
func NewToolErrorTurn(sender string, req ToolCallRequest, toolErr *ToolError) Turn {
	t := newTurn(RoleTool, toolErr.Error())
	t.Sender = sender
	t.ToolCallID = req.ID
	t.ToolName = req.ToolName
	t.ToolError = toolErr
	return t
}

// IsToolError reports whether the turn is a tool turn carrying a failure.
func (t Turn) IsToolError() bool { return t.Role == RoleTool && t.ToolError != nil }

// NewID generates a new unique identifier for turns, tool calls and runs.
func NewID() string { return uuid.NewString() }
