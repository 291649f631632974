// Package anthropic provides a model.Provider for the Anthropic Messages API.
// Structured completions are emulated with a single forced tool whose input
// schema is the requested schema.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"github.com/hupe1980/reactmesh/core"
	"github.com/hupe1980/reactmesh/model"
)

const providerName = "anthropic"

// Options configures the Anthropic adapter (temperature, model id,
// max tokens, API key).
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
	BaseURL     string
}

// Provider wraps the Anthropic Messages API behind model.Provider.
type Provider struct {
	client *anthropic.Client
	opts   Options
}

// New creates a new Anthropic provider using the official client. The API
// key falls back to ANTHROPIC_API_KEY when not set.
func New(optFns ...func(o *Options)) *Provider {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}

	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
	}

	client := anthropic.NewClient(clientOpts...)

	return &Provider{client: &client, opts: opts}
}

// NewFromClient creates a new Anthropic provider from an existing client.
func NewFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Provider {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Provider{client: client, opts: opts}
}

func defaultOptions() Options {
	return Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
	}
}

// Complete implements model.Provider.
func (p *Provider) Complete(ctx context.Context, req model.Request) (*model.Response, error) {
	params := p.buildParams(req)

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, classify(err)
	}

	var (
		text  strings.Builder
		calls []core.ToolCallRequest
	)

	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			text.WriteString(block.AsText().Text)
		case "tool_use":
			toolBlock := block.AsToolUse()

			args := "{}"
			if len(toolBlock.Input) > 0 {
				args = string(toolBlock.Input)
			}

			calls = append(calls, core.ToolCallRequest{
				ID:           toolBlock.ID,
				ToolName:     toolBlock.Name,
				RawArguments: args,
			})
		}
	}

	out := model.BuildResponse(req, text.String(), calls)
	out.FinishReason = string(resp.StopReason)
	out.Usage = &model.TokenUsage{
		PromptTokens:     int(resp.Usage.InputTokens),
		CompletionTokens: int(resp.Usage.OutputTokens),
		TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
	}

	return out, nil
}

func (p *Provider) buildParams(req model.Request) anthropic.MessageNewParams {
	modelName := p.opts.Model
	if req.Model != "" {
		modelName = anthropic.Model(req.Model)
	}

	maxTokens := p.opts.MaxTokens
	if req.MaxTokens > 0 {
		maxTokens = int64(req.MaxTokens)
	}

	system, messages := buildMessages(req)

	params := anthropic.MessageNewParams{
		Model:       modelName,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: anthropic.Float(p.opts.Temperature),
	}

	if len(system) > 0 {
		params.System = system
	}

	switch {
	case req.Schema != nil:
		params.Tools = buildTools([]model.ToolDefinition{{
			Name:        req.Schema.Name,
			Description: "Respond with a value matching this schema.",
			Parameters:  req.Schema.Definition,
		}})
		params.ToolChoice = anthropic.ToolChoiceUnionParam{
			OfTool: &anthropic.ToolChoiceToolParam{Name: req.Schema.Name},
		}
	case len(req.Tools) > 0:
		params.Tools = buildTools(req.Tools)
		disableParallel := anthropic.Bool(!req.AllowParallelToolCalls)

		switch {
		case req.ToolChoice == model.ToolChoiceRequired && len(req.Tools) == 1:
			params.ToolChoice = anthropic.ToolChoiceUnionParam{
				OfTool: &anthropic.ToolChoiceToolParam{Name: req.Tools[0].Name, DisableParallelToolUse: disableParallel},
			}
		case req.ToolChoice == model.ToolChoiceRequired:
			params.ToolChoice = anthropic.ToolChoiceUnionParam{
				OfAny: &anthropic.ToolChoiceAnyParam{DisableParallelToolUse: disableParallel},
			}
		default:
			params.ToolChoice = anthropic.ToolChoiceUnionParam{
				OfAuto: &anthropic.ToolChoiceAutoParam{DisableParallelToolUse: disableParallel},
			}
		}
	}

	return params
}

// buildMessages converts turns to Anthropic messages. System turns join the
// system prompt; tool results are sent as user messages following the
// assistant tool_use blocks; consecutive same-role blocks are merged.
func buildMessages(req model.Request) ([]anthropic.TextBlockParam, []anthropic.MessageParam) {
	var system []anthropic.TextBlockParam
	if req.Instructions != "" {
		system = append(system, anthropic.TextBlockParam{Text: req.Instructions})
	}

	var messages []anthropic.MessageParam

	appendBlocks := func(role anthropic.MessageParamRole, blocks ...anthropic.ContentBlockParamUnion) {
		if len(blocks) == 0 {
			return
		}

		if n := len(messages); n > 0 && messages[n-1].Role == role {
			messages[n-1].Content = append(messages[n-1].Content, blocks...)
			return
		}

		messages = append(messages, anthropic.MessageParam{Role: role, Content: blocks})
	}

	for _, t := range req.Turns {
		switch t.Role {
		case core.RoleSystem:
			if t.Content != "" {
				system = append(system, anthropic.TextBlockParam{Text: t.Content})
			}
		case core.RoleUser:
			if t.Content != "" {
				appendBlocks(anthropic.MessageParamRoleUser, anthropic.NewTextBlock(t.Content))
			}
		case core.RoleAssistant:
			if len(t.ToolCalls) == 0 {
				if t.Content != "" {
					appendBlocks(anthropic.MessageParamRoleAssistant, anthropic.NewTextBlock(t.Content))
				}
				continue
			}

			blocks := make([]anthropic.ContentBlockParamUnion, 0, len(t.ToolCalls))
			for _, c := range t.ToolCalls {
				var input any = map[string]any{}
				if c.RawArguments != "" {
					var decoded any
					if err := json.Unmarshal([]byte(c.RawArguments), &decoded); err == nil {
						input = decoded
					}
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(c.ID, input, c.ToolName))
			}
			appendBlocks(anthropic.MessageParamRoleAssistant, blocks...)
		case core.RoleTool:
			appendBlocks(anthropic.MessageParamRoleUser, anthropic.NewToolResultBlock(t.ToolCallID, t.Content, t.ToolError != nil))
		}
	}

	return system, messages
}

// buildTools converts tool definitions to the Anthropic tool format.
func buildTools(tools []model.ToolDefinition) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, len(tools))

	for i, tool := range tools {
		inputSchema := anthropic.ToolInputSchemaParam{
			Type: constant.Object("object"),
		}

		if tool.Parameters != nil {
			if properties, exists := tool.Parameters["properties"]; exists {
				inputSchema.Properties = properties
			}

			switch req := tool.Parameters["required"].(type) {
			case []string:
				inputSchema.Required = req
			case []any:
				for _, r := range req {
					if s, ok := r.(string); ok {
						inputSchema.Required = append(inputSchema.Required, s)
					}
				}
			}
		}

		out[i] = anthropic.ToolUnionParamOfTool(inputSchema, tool.Name)
		if tool.Description != "" {
			out[i].OfTool.Description = anthropic.String(tool.Description)
		}
	}

	return out
}

func classify(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return model.NewStatusError(providerName, apiErr.StatusCode, err)
	}
	return model.ClassifyTransport(providerName, err)
}

// Info returns metadata describing this Anthropic provider.
func (p *Provider) Info() model.Info {
	return model.Info{
		Name:          string(p.opts.Model),
		Provider:      providerName,
		SupportsTools: true,
	}
}
