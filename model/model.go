package model

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hupe1980/reactmesh/core"
)

// ToolDefinition declaratively exposes a callable function to the model.
// Parameters is a JSON Schema object (minimal subset).
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Schema constrains a completion to a JSON value.
type Schema struct {
	Name       string         `json:"name"`
	Definition map[string]any `json:"definition"`
}

// ToolChoiceMode controls whether the provider must call a tool.
type ToolChoiceMode string

const (
	// ToolChoiceAuto lets the provider decide between text and tool calls.
	ToolChoiceAuto ToolChoiceMode = ""
	// ToolChoiceRequired forces at least one tool call.
	ToolChoiceRequired ToolChoiceMode = "required"
)

// Request captures the normalized provider input.
type Request struct {
	Model        string      `json:"model,omitempty"` // opaque; "" means adapter default
	Instructions string      `json:"instructions"`
	Turns        []core.Turn `json:"turns"`

	// Tools offered to the model. When exactly one tool is offered together
	// with ToolChoiceRequired, adapters force that specific tool.
	Tools                  []ToolDefinition `json:"tools,omitempty"`
	ToolChoice             ToolChoiceMode   `json:"tool_choice,omitempty"`
	AllowParallelToolCalls bool             `json:"allow_parallel_tool_calls,omitempty"`

	// Schema requests a structured completion instead of text.
	Schema *Schema `json:"schema,omitempty"`

	// MaxTokens bounds the completion length; zero keeps the adapter default.
	MaxTokens int `json:"max_tokens,omitempty"`
}

// ResponseKind discriminates Response.
type ResponseKind string

const (
	// ResponseText is a free text completion.
	ResponseText ResponseKind = "text"
	// ResponseToolCalls is one or more tool call requests.
	ResponseToolCalls ResponseKind = "tool_calls"
	// ResponseStructured is a JSON value conforming to Request.Schema.
	ResponseStructured ResponseKind = "structured"
)

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is the result of a completion.
type Response struct {
	Kind         ResponseKind           `json:"kind"`
	Text         string                 `json:"text,omitempty"`
	ToolCalls    []core.ToolCallRequest `json:"tool_calls,omitempty"`
	Structured   json.RawMessage        `json:"structured,omitempty"`
	FinishReason string                 `json:"finish_reason,omitempty"`
	Usage        *TokenUsage            `json:"usage,omitempty"`
}

// Info contains metadata about a provider implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", "ollama", ...
	SupportsTools bool   `json:"supports_tools"`
}

// Provider is the blocking completion contract consumed by the engine.
type Provider interface {
	Complete(ctx context.Context, req Request) (*Response, error)

	// Info returns information about the provider implementation.
	Info() Info
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context, req Request) (*Response, error)

// Complete implements Provider.
func (f ProviderFunc) Complete(ctx context.Context, req Request) (*Response, error) {
	return f(ctx, req)
}

// Info implements Provider.
func (f ProviderFunc) Info() Info { return Info{Name: "func", Provider: "func", SupportsTools: true} }

// Check verifies that resp has a shape valid for req. Violations wrap
// core.ErrProtocolViolation.
func Check(req Request, resp *Response) error {
	if resp == nil {
		return fmt.Errorf("%w: empty response", core.ErrProtocolViolation)
	}

	if req.Schema != nil {
		if resp.Kind != ResponseStructured {
			return fmt.Errorf("%w: expected structured response, got %q", core.ErrProtocolViolation, resp.Kind)
		}

		if !json.Valid(resp.Structured) {
			return fmt.Errorf("%w: structured response is not valid JSON", core.ErrProtocolViolation)
		}

		return nil
	}

	switch resp.Kind {
	case ResponseText:
		if len(resp.ToolCalls) > 0 || len(resp.Structured) > 0 {
			return fmt.Errorf("%w: text response carries other results", core.ErrProtocolViolation)
		}
	case ResponseToolCalls:
		if len(req.Tools) == 0 {
			return fmt.Errorf("%w: tool calls returned but no tools offered", core.ErrProtocolViolation)
		}

		if len(resp.ToolCalls) == 0 {
			return fmt.Errorf("%w: tool call response without calls", core.ErrProtocolViolation)
		}

		if resp.Text != "" || len(resp.Structured) > 0 {
			return fmt.Errorf("%w: tool call response carries other results", core.ErrProtocolViolation)
		}
	case ResponseStructured:
		return fmt.Errorf("%w: structured response without schema", core.ErrProtocolViolation)
	default:
		return fmt.Errorf("%w: unknown response kind %q", core.ErrProtocolViolation, resp.Kind)
	}

	return nil
}

// Complete calls p and verifies the response shape.
func Complete(ctx context.Context, p Provider, req Request) (*Response, error) {
	resp, err := p.Complete(ctx, req)
	if err != nil {
		return nil, err
	}

	if err := Check(req, resp); err != nil {
		return nil, err
	}

	return resp, nil
}

// CompleteStructured requests a value conforming to schema and decodes it
// into out.
func CompleteStructured(ctx context.Context, p Provider, req Request, schema Schema, out any) (*Response, error) {
	req.Schema = &schema
	req.Tools = nil

	resp, err := Complete(ctx, p, req)
	if err != nil {
		return nil, err
	}

	if out != nil {
		if err := json.Unmarshal(resp.Structured, out); err != nil {
			return nil, fmt.Errorf("%w: decode %s: %v", core.ErrProtocolViolation, schema.Name, err)
		}
	}

	return resp, nil
}

// TextResponse builds a text response.
func TextResponse(text string) *Response { return &Response{Kind: ResponseText, Text: text} }

// ToolCallsResponse builds a tool call response.
func ToolCallsResponse(calls ...core.ToolCallRequest) *Response {
	return &Response{Kind: ResponseToolCalls, ToolCalls: calls}
}

// StructuredResponse builds a structured response from raw JSON.
func StructuredResponse(raw json.RawMessage) *Response {
	return &Response{Kind: ResponseStructured, Structured: raw}
}

// BuildResponse assembles a response from the pieces an adapter extracted.
// For structured requests the text (or the single tool input when the adapter
// emulates structured output with a forced tool) becomes the value; otherwise
// tool calls win over text.
func BuildResponse(req Request, text string, calls []core.ToolCallRequest) *Response {
	if req.Schema != nil {
		raw := extractJSON(text)
		if len(calls) == 1 && calls[0].ToolName == req.Schema.Name {
			raw = json.RawMessage(calls[0].RawArguments)
		}
		return StructuredResponse(raw)
	}

	if len(calls) > 0 {
		return ToolCallsResponse(calls...)
	}

	return TextResponse(text)
}

// extractJSON strips a surrounding markdown code fence some models add
// around JSON payloads.
func extractJSON(text string) json.RawMessage {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}

	return json.RawMessage(strings.TrimSpace(s))
}
