// Package openaicompat provides a model.Provider for OpenAI compatible chat
// completion endpoints (vLLM, LM Studio, Groq, Azure style gateways) using
// the community go-openai client.
package openaicompat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	openai "github.com/sashabaranov/go-openai"

	"github.com/hupe1980/reactmesh/core"
	"github.com/hupe1980/reactmesh/model"
)

const providerName = "openaicompat"

// Options configures the adapter.
type Options struct {
	Model       string
	BaseURL     string
	APIKey      string
	Temperature float32
	MaxTokens   int
}

// Provider wraps a go-openai client behind model.Provider.
type Provider struct {
	client *openai.Client
	opts   Options
}

// New creates a provider. The API key falls back to OPENAI_API_KEY.
func New(optFns ...func(o *Options)) *Provider {
	opts := Options{
		Model:       openai.GPT4oMini,
		Temperature: 0.7,
		MaxTokens:   4096,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.APIKey == "" {
		opts.APIKey = os.Getenv("OPENAI_API_KEY")
	}

	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}

	return &Provider{client: openai.NewClientWithConfig(cfg), opts: opts}
}

// NewFromClient wraps an existing client.
func NewFromClient(client *openai.Client, optFns ...func(o *Options)) *Provider {
	p := New(optFns...)
	p.client = client
	return p
}

// Complete implements model.Provider.
func (p *Provider) Complete(ctx context.Context, req model.Request) (*model.Response, error) {
	resp, err := p.client.CreateChatCompletion(ctx, p.buildRequest(req))
	if err != nil {
		return nil, classify(err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices returned", core.ErrProtocolViolation)
	}

	msg := resp.Choices[0].Message

	calls := make([]core.ToolCallRequest, 0, len(msg.ToolCalls))
	for _, tc := range msg.ToolCalls {
		calls = append(calls, core.ToolCallRequest{
			ID:           tc.ID,
			ToolName:     tc.Function.Name,
			RawArguments: tc.Function.Arguments,
		})
	}

	out := model.BuildResponse(req, msg.Content, calls)
	out.FinishReason = string(resp.Choices[0].FinishReason)
	out.Usage = &model.TokenUsage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}

	return out, nil
}

func (p *Provider) buildRequest(req model.Request) openai.ChatCompletionRequest {
	modelName := p.opts.Model
	if req.Model != "" {
		modelName = req.Model
	}

	maxTokens := p.opts.MaxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}

	out := openai.ChatCompletionRequest{
		Model:       modelName,
		Messages:    buildMessages(req),
		MaxTokens:   maxTokens,
		Temperature: p.opts.Temperature,
	}

	if req.Schema != nil {
		out.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   req.Schema.Name,
				Schema: schemaMarshaler(req.Schema.Definition),
			},
		}

		return out
	}

	if len(req.Tools) == 0 {
		return out
	}

	for _, t := range req.Tools {
		out.Tools = append(out.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  schemaMarshaler(t.Parameters),
			},
		})
	}

	out.ParallelToolCalls = req.AllowParallelToolCalls

	if req.ToolChoice == model.ToolChoiceRequired {
		if len(req.Tools) == 1 {
			out.ToolChoice = openai.ToolChoice{
				Type:     openai.ToolTypeFunction,
				Function: openai.ToolFunction{Name: req.Tools[0].Name},
			}
		} else {
			out.ToolChoice = "required"
		}
	}

	return out
}

func buildMessages(req model.Request) []openai.ChatCompletionMessage {
	msgs := make([]openai.ChatCompletionMessage, 0, len(req.Turns)+1)

	if req.Instructions != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.Instructions})
	}

	for _, t := range req.Turns {
		switch t.Role {
		case core.RoleSystem:
			msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: t.Content})
		case core.RoleUser:
			msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: t.Content})
		case core.RoleAssistant:
			m := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: t.Content}
			for _, c := range t.ToolCalls {
				m.ToolCalls = append(m.ToolCalls, openai.ToolCall{
					ID:   c.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      c.ToolName,
						Arguments: c.RawArguments,
					},
				})
			}
			msgs = append(msgs, m)
		case core.RoleTool:
			msgs = append(msgs, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    t.Content,
				Name:       t.ToolName,
				ToolCallID: t.ToolCallID,
			})
		}
	}

	return msgs
}

// schemaMarshaler adapts a schema map to the json.Marshaler go-openai expects.
type schemaMarshaler map[string]any

func (s schemaMarshaler) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte(`{"type":"object","properties":{}}`), nil
	}
	return json.Marshal(map[string]any(s))
}

func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return model.NewStatusError(providerName, apiErr.HTTPStatusCode, err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return model.NewStatusError(providerName, reqErr.HTTPStatusCode, err)
	}

	return model.ClassifyTransport(providerName, err)
}

// Info implements model.Provider.
func (p *Provider) Info() model.Info {
	return model.Info{Name: p.opts.Model, Provider: providerName, SupportsTools: true}
}
