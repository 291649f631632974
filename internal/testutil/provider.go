package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/hupe1980/reactmesh/core"
	"github.com/hupe1980/reactmesh/model"
)

// Step names a loop state as seen from the provider.
type Step string

const (
	StepThink   Step = "think"
	StepChoose  Step = "choose"
	StepAct     Step = "act"
	StepObserve Step = "observe"
	StepOutput  Step = "output"
)

// Classify infers the loop state a request was issued for.
func Classify(req model.Request) Step {
	switch {
	case req.Schema != nil && req.Schema.Name == core.ToolChoiceSchemaName:
		return StepChoose
	case req.Schema != nil && req.Schema.Name == core.ReactEndSchemaName:
		return StepObserve
	case req.Schema != nil:
		return StepOutput
	case len(req.Tools) > 0:
		return StepAct
	default:
		return StepThink
	}
}

// Handler answers one request.
type Handler func(ctx context.Context, req model.Request) (*model.Response, error)

// ScriptedProvider is a model.Provider answering each loop state with a
// configurable handler and recording every request it receives.
//
// Example:
//
//	p := NewScriptedProvider().
//	    On(StepChoose, Choose("calculator", "needs math")).
//	    On(StepObserve, Observe(true, "19", 0.9))
type ScriptedProvider struct {
	mu       sync.Mutex
	handlers map[Step][]Handler
	requests []model.Request
	info     model.Info
}

// NewScriptedProvider creates a provider whose default answers are a short
// thought, no tool and a non-stopping observation.
func NewScriptedProvider() *ScriptedProvider {
	return &ScriptedProvider{
		handlers: map[Step][]Handler{},
		info:     model.Info{Name: "scripted", Provider: "test", SupportsTools: true},
	}
}

// On queues handlers for step. The last queued handler keeps answering once
// the queue is drained.
func (p *ScriptedProvider) On(step Step, handlers ...Handler) *ScriptedProvider {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.handlers[step] = append(p.handlers[step], handlers...)

	return p
}

// Complete implements model.Provider.
func (p *ScriptedProvider) Complete(ctx context.Context, req model.Request) (*model.Response, error) {
	step := Classify(req)

	p.mu.Lock()
	p.requests = append(p.requests, req)

	var h Handler
	if queue := p.handlers[step]; len(queue) > 0 {
		h = queue[0]
		if len(queue) > 1 {
			p.handlers[step] = queue[1:]
		}
	}
	p.mu.Unlock()

	if h == nil {
		h = defaultHandler(step)
	}

	return h(ctx, req)
}

// Info implements model.Provider.
func (p *ScriptedProvider) Info() model.Info { return p.info }

// Requests returns every request received so far.
func (p *ScriptedProvider) Requests() []model.Request {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]model.Request(nil), p.requests...)
}

// RequestsFor returns the requests issued for step.
func (p *ScriptedProvider) RequestsFor(step Step) []model.Request {
	var out []model.Request
	for _, r := range p.Requests() {
		if Classify(r) == step {
			out = append(out, r)
		}
	}
	return out
}

// Count returns how many requests were issued for step.
func (p *ScriptedProvider) Count(step Step) int { return len(p.RequestsFor(step)) }

func defaultHandler(step Step) Handler {
	switch step {
	case StepChoose:
		return Choose(core.NoTool, "nothing to do")
	case StepObserve:
		return Observe(false, "", 0)
	case StepOutput:
		return Structured(map[string]any{})
	default:
		return Text("thinking")
	}
}

// Text answers with free text.
func Text(text string) Handler {
	return func(context.Context, model.Request) (*model.Response, error) {
		return model.TextResponse(text), nil
	}
}

// Fail answers with err.
func Fail(err error) Handler {
	return func(context.Context, model.Request) (*model.Response, error) {
		return nil, err
	}
}

// Structured answers with the JSON encoding of v.
func Structured(v any) Handler {
	return func(context.Context, model.Request) (*model.Response, error) {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("testutil: encode structured value: %w", err)
		}
		return model.StructuredResponse(raw), nil
	}
}

// Choose answers a CHOOSE_TOOL request.
func Choose(toolName, reason string) Handler {
	return Structured(core.ToolChoice{ToolName: toolName, ReasonOfChoice: reason})
}

// Observe answers an OBSERVE request.
func Observe(stop bool, answer string, confidence float64) Handler {
	return Structured(core.ReactEnd{Stop: stop, FinalAnswer: answer, Confidence: confidence})
}

// Call answers with a single tool call.
func Call(toolName, rawArguments string) Handler {
	return Calls(core.ToolCallRequest{ToolName: toolName, RawArguments: rawArguments})
}

// Calls answers with tool calls, assigning IDs where missing.
func Calls(calls ...core.ToolCallRequest) Handler {
	return func(context.Context, model.Request) (*model.Response, error) {
		out := make([]core.ToolCallRequest, len(calls))
		for i, c := range calls {
			if c.ID == "" {
				c.ID = core.NewID()
			}
			out[i] = c
		}
		return model.ToolCallsResponse(out...), nil
	}
}
