// Package ollama provides a model.Provider for local models served by
// Ollama. Tool calls are requested through Ollama's JSON schema output
// format, which works with every model that supports structured output.
package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	ollama "github.com/ollama/ollama/api"

	"github.com/hupe1980/reactmesh/core"
	"github.com/hupe1980/reactmesh/model"
)

const providerName = "ollama"

// Options configures the adapter.
type Options struct {
	Model       string
	Host        string // defaults to OLLAMA_HOST or http://localhost:11434
	Temperature float64
	NumPredict  int
	HTTPClient  *http.Client
}

// Provider wraps the Ollama chat API behind model.Provider.
type Provider struct {
	client *ollama.Client
	opts   Options
}

// New creates a provider.
func New(optFns ...func(o *Options)) (*Provider, error) {
	opts := Options{
		Model:       "llama3.1",
		Host:        os.Getenv("OLLAMA_HOST"),
		Temperature: 0.7,
		NumPredict:  4096,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Host == "" {
		opts.Host = "http://localhost:11434"
	}

	u, err := url.Parse(opts.Host)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama host %q: %w", opts.Host, err)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}

	return &Provider{client: ollama.NewClient(u, httpClient), opts: opts}, nil
}

// toolCallEnvelope is the JSON shape requested when tools are offered.
type toolCallEnvelope struct {
	Calls []struct {
		ToolName  string          `json:"tool_name"`
		Arguments json.RawMessage `json:"arguments"`
	} `json:"calls"`
}

// Complete implements model.Provider.
func (p *Provider) Complete(ctx context.Context, req model.Request) (*model.Response, error) {
	modelName := p.opts.Model
	if req.Model != "" {
		modelName = req.Model
	}

	numPredict := p.opts.NumPredict
	if req.MaxTokens > 0 {
		numPredict = req.MaxTokens
	}

	stream := false
	chatReq := &ollama.ChatRequest{
		Model:    modelName,
		Messages: buildMessages(req),
		Stream:   &stream,
		Options: map[string]any{
			"temperature": p.opts.Temperature,
			"num_predict": numPredict,
		},
	}

	toolMode := req.Schema == nil && len(req.Tools) > 0

	switch {
	case req.Schema != nil:
		format, err := json.Marshal(req.Schema.Definition)
		if err != nil {
			return nil, fmt.Errorf("ollama: encode schema: %w", err)
		}
		chatReq.Format = format
	case toolMode:
		format, err := json.Marshal(toolCallSchema(req))
		if err != nil {
			return nil, fmt.Errorf("ollama: encode tool schema: %w", err)
		}
		chatReq.Format = format
		chatReq.Messages = append(chatReq.Messages, ollama.Message{Role: "system", Content: toolPrompt(req)})
	}

	var (
		text strings.Builder
		last ollama.ChatResponse
	)

	if err := p.client.Chat(ctx, chatReq, func(cr ollama.ChatResponse) error {
		text.WriteString(cr.Message.Content)
		last = cr
		return nil
	}); err != nil {
		return nil, classify(err)
	}

	var out *model.Response

	if toolMode {
		var env toolCallEnvelope
		if err := json.Unmarshal([]byte(text.String()), &env); err != nil {
			return nil, fmt.Errorf("%w: ollama tool call envelope: %v", core.ErrProtocolViolation, err)
		}

		calls := make([]core.ToolCallRequest, 0, len(env.Calls))
		for _, c := range env.Calls {
			args := strings.TrimSpace(string(c.Arguments))
			if args == "" || args == "null" {
				args = "{}"
			}
			calls = append(calls, core.ToolCallRequest{ID: core.NewID(), ToolName: c.ToolName, RawArguments: args})
		}

		if !req.AllowParallelToolCalls && len(calls) > 1 {
			calls = calls[:1]
		}

		out = model.BuildResponse(req, "", calls)
	} else {
		out = model.BuildResponse(req, text.String(), nil)
	}

	out.FinishReason = last.DoneReason
	out.Usage = &model.TokenUsage{
		PromptTokens:     last.PromptEvalCount,
		CompletionTokens: last.EvalCount,
		TotalTokens:      last.PromptEvalCount + last.EvalCount,
	}

	return out, nil
}

func buildMessages(req model.Request) []ollama.Message {
	msgs := make([]ollama.Message, 0, len(req.Turns)+1)

	if req.Instructions != "" {
		msgs = append(msgs, ollama.Message{Role: "system", Content: req.Instructions})
	}

	for _, t := range req.Turns {
		switch t.Role {
		case core.RoleAssistant:
			content := t.Content
			if len(t.ToolCalls) > 0 {
				names := make([]string, 0, len(t.ToolCalls))
				for _, c := range t.ToolCalls {
					names = append(names, fmt.Sprintf("%s(%s)", c.ToolName, c.RawArguments))
				}
				content = "Calling " + strings.Join(names, ", ")
			}
			msgs = append(msgs, ollama.Message{Role: "assistant", Content: content})
		case core.RoleTool:
			msgs = append(msgs, ollama.Message{Role: "tool", Content: t.Content})
		default:
			msgs = append(msgs, ollama.Message{Role: string(t.Role), Content: t.Content})
		}
	}

	return msgs
}

// toolCallSchema constrains output to {"calls":[{"tool_name":..., "arguments":{...}}]}.
func toolCallSchema(req model.Request) map[string]any {
	names := make([]any, 0, len(req.Tools))
	for _, t := range req.Tools {
		names = append(names, t.Name)
	}

	maxItems := 1
	if req.AllowParallelToolCalls {
		maxItems = len(req.Tools)
	}

	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"calls": map[string]any{
				"type":     "array",
				"minItems": 1,
				"maxItems": maxItems,
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"tool_name": map[string]any{"type": "string", "enum": names},
						"arguments": map[string]any{"type": "object"},
					},
					"required": []string{"tool_name", "arguments"},
				},
			},
		},
		"required": []string{"calls"},
	}
}

func toolPrompt(req model.Request) string {
	var b strings.Builder

	b.WriteString("Respond only with the tool calls to make. Available tools and their argument schemas:\n")

	for _, t := range req.Tools {
		schema, _ := json.Marshal(t.Parameters)
		fmt.Fprintf(&b, "- %s: %s\n  arguments: %s\n", t.Name, t.Description, schema)
	}

	return b.String()
}

func classify(err error) error {
	var se ollama.StatusError
	if errors.As(err, &se) {
		return model.NewStatusError(providerName, se.StatusCode, err)
	}

	var sep *ollama.StatusError
	if errors.As(err, &sep) {
		return model.NewStatusError(providerName, sep.StatusCode, err)
	}

	return model.ClassifyTransport(providerName, err)
}

// Info implements model.Provider.
func (p *Provider) Info() model.Info {
	return model.Info{Name: p.opts.Model, Provider: providerName, SupportsTools: true}
}
