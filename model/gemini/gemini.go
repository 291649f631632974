// Package gemini adapts Google's Gemini models to model.Provider.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/hupe1980/reactmesh/core"
	"github.com/hupe1980/reactmesh/model"
)

const providerName = "gemini"

// Options configures the adapter.
type Options struct {
	Model           string
	APIKey          string // defaults to GOOGLE_API_KEY
	Temperature     float32
	MaxOutputTokens int32
	ClientOptions   []option.ClientOption
}

// Provider wraps a genai client.
type Provider struct {
	client *genai.Client
	opts   Options
}

// New creates a provider. Close releases the underlying client.
func New(ctx context.Context, optFns ...func(o *Options)) (*Provider, error) {
	opts := Options{
		Model:           "gemini-2.0-flash",
		APIKey:          os.Getenv("GOOGLE_API_KEY"),
		Temperature:     0.7,
		MaxOutputTokens: 4096,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	clientOpts := append([]option.ClientOption{}, opts.ClientOptions...)
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}

	client, err := genai.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &Provider{client: client, opts: opts}, nil
}

// Close releases the client.
func (p *Provider) Close() error { return p.client.Close() }

// Complete implements model.Provider.
func (p *Provider) Complete(ctx context.Context, req model.Request) (*model.Response, error) {
	name := p.opts.Model
	if req.Model != "" {
		name = req.Model
	}

	gm := p.client.GenerativeModel(name)
	p.configure(gm, req)

	history, last := buildContents(req.Turns)

	cs := gm.StartChat()
	cs.History = history

	resp, err := cs.SendMessage(ctx, last...)
	if err != nil {
		return nil, classify(err)
	}

	return parseResponse(req, resp)
}

func (p *Provider) configure(gm *genai.GenerativeModel, req model.Request) {
	gm.SetTemperature(p.opts.Temperature)

	maxTokens := p.opts.MaxOutputTokens
	if req.MaxTokens > 0 {
		maxTokens = int32(req.MaxTokens)
	}
	gm.SetMaxOutputTokens(maxTokens)

	if req.Instructions != "" {
		gm.SystemInstruction = genai.NewUserContent(genai.Text(req.Instructions))
	}

	if req.Schema != nil {
		gm.ResponseMIMEType = "application/json"
		gm.ResponseSchema = toSchema(req.Schema.Definition)
		return
	}

	if len(req.Tools) == 0 {
		return
	}

	decls := make([]*genai.FunctionDeclaration, 0, len(req.Tools))
	for _, t := range req.Tools {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  toSchema(t.Parameters),
		})
	}
	gm.Tools = []*genai.Tool{{FunctionDeclarations: decls}}

	if req.ToolChoice == model.ToolChoiceRequired {
		cfg := &genai.FunctionCallingConfig{Mode: genai.FunctionCallingAny}
		if len(req.Tools) == 1 {
			cfg.AllowedFunctionNames = []string{req.Tools[0].Name}
		}
		gm.ToolConfig = &genai.ToolConfig{FunctionCallingConfig: cfg}
	}
}

// buildContents converts turns into chat history plus the parts of the
// final user message. Consecutive turns of the same role are merged.
func buildContents(turns []core.Turn) ([]*genai.Content, []genai.Part) {
	var contents []*genai.Content

	add := func(role string, parts ...genai.Part) {
		if n := len(contents); n > 0 && contents[n-1].Role == role {
			contents[n-1].Parts = append(contents[n-1].Parts, parts...)
			return
		}
		contents = append(contents, &genai.Content{Role: role, Parts: parts})
	}

	for _, t := range turns {
		switch t.Role {
		case core.RoleAssistant:
			if len(t.ToolCalls) > 0 {
				for _, c := range t.ToolCalls {
					args := map[string]any{}
					_ = json.Unmarshal([]byte(c.RawArguments), &args)
					add("model", genai.FunctionCall{Name: c.ToolName, Args: args})
				}
				continue
			}
			add("model", genai.Text(t.Content))
		case core.RoleTool:
			add("user", genai.FunctionResponse{
				Name:     t.ToolName,
				Response: map[string]any{"result": t.Content, "is_error": t.IsToolError()},
			})
		default:
			add("user", genai.Text(t.Content))
		}
	}

	if len(contents) == 0 {
		return nil, []genai.Part{genai.Text("Continue.")}
	}

	last := contents[len(contents)-1]
	if last.Role != "user" {
		return contents, []genai.Part{genai.Text("Continue.")}
	}

	return contents[:len(contents)-1], last.Parts
}

func parseResponse(req model.Request, resp *genai.GenerateContentResponse) (*model.Response, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("%w: gemini returned no candidates", core.ErrProtocolViolation)
	}

	cand := resp.Candidates[0]

	var (
		text  strings.Builder
		calls []core.ToolCallRequest
	)

	for _, part := range cand.Content.Parts {
		switch v := part.(type) {
		case genai.Text:
			text.WriteString(string(v))
		case genai.FunctionCall:
			args, err := json.Marshal(v.Args)
			if err != nil {
				return nil, fmt.Errorf("%w: gemini function call arguments: %v", core.ErrProtocolViolation, err)
			}
			if v.Args == nil {
				args = []byte("{}")
			}
			calls = append(calls, core.ToolCallRequest{ID: core.NewID(), ToolName: v.Name, RawArguments: string(args)})
		}
	}

	if !req.AllowParallelToolCalls && len(calls) > 1 {
		calls = calls[:1]
	}

	out := model.BuildResponse(req, text.String(), calls)
	out.FinishReason = strings.ToLower(cand.FinishReason.String())

	if u := resp.UsageMetadata; u != nil {
		out.Usage = &model.TokenUsage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}

	return out, nil
}

// toSchema converts a JSON Schema map into a genai schema. Unsupported
// keywords are dropped.
func toSchema(def map[string]any) *genai.Schema {
	if def == nil {
		return nil
	}

	s := &genai.Schema{}

	switch def["type"] {
	case "object":
		s.Type = genai.TypeObject
	case "array":
		s.Type = genai.TypeArray
	case "string":
		s.Type = genai.TypeString
	case "number":
		s.Type = genai.TypeNumber
	case "integer":
		s.Type = genai.TypeInteger
	case "boolean":
		s.Type = genai.TypeBoolean
	}

	if d, ok := def["description"].(string); ok {
		s.Description = d
	}

	s.Enum = stringList(def["enum"])
	s.Required = stringList(def["required"])

	if props, ok := def["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, raw := range props {
			if m, ok := raw.(map[string]any); ok {
				s.Properties[name] = toSchema(m)
			}
		}
	}

	if items, ok := def["items"].(map[string]any); ok {
		s.Items = toSchema(items)
	}

	return s
}

func stringList(v any) []string {
	switch list := v.(type) {
	case []string:
		return append([]string(nil), list...)
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			out = append(out, fmt.Sprint(item))
		}
		return out
	default:
		return nil
	}
}

func classify(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return model.NewStatusError(providerName, gerr.Code, err)
	}

	var coded interface{ HTTPCode() int }
	if errors.As(err, &coded) && coded.HTTPCode() > 0 {
		return model.NewStatusError(providerName, coded.HTTPCode(), err)
	}

	return model.ClassifyTransport(providerName, err)
}

// Info implements model.Provider.
func (p *Provider) Info() model.Info {
	return model.Info{Name: p.opts.Model, Provider: providerName, SupportsTools: true}
}
