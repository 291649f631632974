package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/reactmesh/agent"
	"github.com/hupe1980/reactmesh/core"
	"github.com/hupe1980/reactmesh/logging"
	"github.com/hupe1980/reactmesh/memory"
	"github.com/hupe1980/reactmesh/model"
	"github.com/hupe1980/reactmesh/tool"
)

// Step names a state of the loop.
type Step string

const (
	StepThink      Step = "think"
	StepChooseTool Step = "choose_tool"
	StepAct        Step = "act"
	StepObserve    Step = "observe"
)

// run holds the state owned by a single Execute call.
type run struct {
	engine  *Engine
	id      string
	request string
	mem     *memory.Conversation
	budget  *core.InteractionBudget
	router  *agent.Router
	current *agent.Descriptor
	logger  logging.Logger
	started time.Time

	// instructions resolved by the last THINK, reused until the next one.
	instructions string
}

func (r *run) loop(ctx context.Context) (*RunResult, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if r.budget.Exhausted() {
			r.logger.Info("engine.budget.exhausted", "agent", r.current.Name(), "interactions", r.budget.Count())
			return r.result(OutcomeBudgetExhausted, core.ReactEnd{}, nil), nil
		}

		if err := r.budget.Spend(); err != nil {
			return nil, err
		}

		structured, err := r.think(ctx)
		if err != nil {
			return nil, err
		}

		if structured != nil {
			end := core.ReactEnd{Stop: true, FinalAnswer: string(structured), Confidence: 1}
			return r.result(OutcomeStructured, end, structured), nil
		}

		choice, selected, err := r.chooseTool(ctx)
		if err != nil {
			return nil, err
		}

		switch {
		case choice.IsNone():
			if r.engine.config.ObserveOnFallback {
				end, err := r.observe(ctx)
				if err != nil {
					return nil, err
				}

				if end.Stop {
					return r.result(OutcomeCompleted, end, nil), nil
				}
			}

			if err := r.handoff(ctx, nil); err != nil {
				return nil, err
			}

			continue
		case selected != nil && selected.Kind() == agent.CapabilitySubAgent:
			if err := r.handoff(ctx, selected); err != nil {
				return nil, err
			}

			continue
		}

		if err := r.act(ctx, choice.ToolName); err != nil {
			return nil, err
		}

		end, err := r.observe(ctx)
		if err != nil {
			return nil, err
		}

		if end.Stop {
			return r.result(OutcomeCompleted, end, nil), nil
		}
	}
}

// think resolves the instructions and appends one assistant turn. For agents
// with an output schema it returns the structured value.
func (r *run) think(ctx context.Context) (json.RawMessage, error) {
	var structured json.RawMessage

	err := r.step(ctx, StepThink, func(ctx context.Context) ([]core.Turn, error) {
		r.instructions = r.resolveInstructions()

		schema := r.current.OutputSchema()
		if schema == nil {
			req := r.newRequest(thinkDirective)

			resp, err := r.complete(ctx, func(ctx context.Context) (*model.Response, error) {
				return model.Complete(ctx, r.engine.config.Provider, req)
			})
			if err != nil {
				if core.IsFatal(err) {
					return nil, fmt.Errorf("think (%s): %w", r.current.Name(), err)
				}

				r.logger.Warn("engine.think.degraded", "agent", r.current.Name(), "error", err.Error())

				return []core.Turn{core.NewAssistantTurn(r.current.Name(), "")}, nil
			}

			return []core.Turn{core.NewAssistantTurn(r.current.Name(), resp.Text)}, nil
		}

		req := r.newRequest(outputDirective)

		resp, err := r.complete(ctx, func(ctx context.Context) (*model.Response, error) {
			return model.CompleteStructured(ctx, r.engine.config.Provider, req, model.Schema{Name: schema.Name, Definition: schema.Definition}, nil)
		})
		if err != nil {
			if core.IsFatal(err) {
				return nil, fmt.Errorf("think (%s): %w", r.current.Name(), err)
			}

			r.logger.Warn("engine.think.degraded", "agent", r.current.Name(), "error", err.Error())

			return []core.Turn{core.NewAssistantTurn(r.current.Name(), "")}, nil
		}

		structured = resp.Structured

		return []core.Turn{core.NewStructuredTurn(r.current.Name(), resp.Structured)}, nil
	})

	return structured, err
}

// chooseTool asks for a ToolChoice constrained to the capability names. A
// non-fatal provider error selects no tool without appending a turn.
func (r *run) chooseTool(ctx context.Context) (core.ToolChoice, *agent.Capability, error) {
	var (
		choice   = core.ToolChoice{ToolName: core.NoTool}
		selected *agent.Capability
	)

	err := r.step(ctx, StepChooseTool, func(ctx context.Context) ([]core.Turn, error) {
		req := r.newRequest(chooseDirective)

		var c core.ToolChoice

		resp, err := r.complete(ctx, func(ctx context.Context) (*model.Response, error) {
			return model.CompleteStructured(ctx, r.engine.config.Provider, req, toolChoiceSchema(r.current.CapabilityNames()), &c)
		})
		if err != nil {
			if core.IsFatal(err) {
				return nil, fmt.Errorf("choose tool (%s): %w", r.current.Name(), err)
			}

			r.logger.Warn("engine.choose.error", "agent", r.current.Name(), "error", err.Error())

			return nil, nil
		}

		c.ToolName = strings.TrimSpace(c.ToolName)
		choice = c

		if !choice.IsNone() {
			if capability, ok := r.current.Capability(choice.ToolName); ok {
				selected = &capability
			}
		}

		r.logger.Debug("engine.choose.result", "agent", r.current.Name(), "tool", choice.ToolName, "known", selected != nil)

		turn := core.NewAssistantTurn(r.current.Name(), choice.String())
		turn.Structured = resp.Structured

		return []core.Turn{turn}, nil
	})

	return choice, selected, err
}

// act asks the provider for the calls of the chosen tool and dispatches them
// in order. A name the agent does not know is dispatched as is and yields an
// UnknownTool turn.
func (r *run) act(ctx context.Context, toolName string) error {
	var toolTurns []core.Turn

	err := r.step(ctx, StepAct, func(ctx context.Context) ([]core.Turn, error) {
		registry := r.current.Tools()
		sender := r.current.Name()

		t, known := registry.Lookup(toolName)
		if !known {
			call := core.ToolCallRequest{ID: core.NewID(), ToolName: toolName, RawArguments: "{}"}
			toolTurns = []core.Turn{r.engine.dispatcher.Dispatch(ctx, sender, call, registry)}

			return append([]core.Turn{core.NewToolCallTurn(sender, []core.ToolCallRequest{call})}, toolTurns...), nil
		}

		req := r.newRequest(fmt.Sprintf(actDirective, toolName))
		req.ToolChoice = model.ToolChoiceRequired

		if r.current.AllowParallelToolCalls() {
			req.Tools = toolDefinitions(registry.Tools())
			req.AllowParallelToolCalls = true
			req.Turns = []core.Turn{core.NewUserTurn(r.prompt(fmt.Sprintf(actParallelDirective, toolName)))}
		} else {
			req.Tools = toolDefinitions([]tool.Tool{t})
		}

		resp, err := r.complete(ctx, func(ctx context.Context) (*model.Response, error) {
			return model.Complete(ctx, r.engine.config.Provider, req)
		})
		if err != nil {
			if core.IsFatal(err) {
				return nil, fmt.Errorf("act (%s): %w", sender, err)
			}

			r.logger.Warn("engine.act.error", "agent", sender, "tool", toolName, "error", err.Error())

			return nil, nil
		}

		if resp.Kind != model.ResponseToolCalls {
			return []core.Turn{core.NewAssistantTurn(sender, resp.Text)}, nil
		}

		calls := make([]core.ToolCallRequest, len(resp.ToolCalls))
		for i, c := range resp.ToolCalls {
			if c.ID == "" {
				c.ID = core.NewID()
			}
			calls[i] = c
		}

		turns := []core.Turn{core.NewToolCallTurn(sender, calls)}

		for _, call := range calls {
			toolTurns = append(toolTurns, r.engine.dispatcher.Dispatch(ctx, sender, call, registry))
		}

		return append(turns, toolTurns...), nil
	})
	if err != nil {
		return err
	}

	if len(toolTurns) == 0 {
		return nil
	}

	return r.engine.callbacks.ExecuteCallbacks(ctx, CallbackOnToolResult, r.callbackCtx(StepAct, toolTurns, nil))
}

// observe asks for the termination signal. A non-fatal provider error is
// treated as "continue" without appending a turn.
func (r *run) observe(ctx context.Context) (core.ReactEnd, error) {
	var end core.ReactEnd

	err := r.step(ctx, StepObserve, func(ctx context.Context) ([]core.Turn, error) {
		req := r.newRequest(observeDirective)

		var e core.ReactEnd

		resp, err := r.complete(ctx, func(ctx context.Context) (*model.Response, error) {
			return model.CompleteStructured(ctx, r.engine.config.Provider, req, reactEndSchema(), &e)
		})
		if err != nil {
			if core.IsFatal(err) {
				return nil, fmt.Errorf("observe (%s): %w", r.current.Name(), err)
			}

			r.logger.Warn("engine.observe.error", "agent", r.current.Name(), "error", err.Error())

			return nil, nil
		}

		end = e.Normalize()

		r.logger.Debug("engine.observe.result", "agent", r.current.Name(), "stop", end.Stop, "confidence", end.Confidence)

		turn := core.NewAssistantTurn(r.current.Name(), end.String())
		turn.Structured = resp.Structured

		return []core.Turn{turn}, nil
	})

	return end, err
}

// handoff switches the active agent. It never appends a turn.
func (r *run) handoff(ctx context.Context, selected *agent.Capability) error {
	from := r.current
	next := r.router.Resolve(from, selected)
	r.current = next

	reason := "handoff"
	if selected == nil {
		reason = "fallback"
	}

	r.logger.Info("engine.handoff", "from", from.Name(), "to", next.Name(), "reason", reason)
	r.engine.recorder.Handoff(from.Name(), next.Name())

	trace.SpanFromContext(ctx).AddEvent("reactmesh.handoff", trace.WithAttributes(
		attribute.String("reactmesh.from", from.Name()),
		attribute.String("reactmesh.to", next.Name()),
		attribute.String("reactmesh.reason", reason),
	))

	cc := r.callbackCtx("", nil, nil)
	cc.Agent = from.Name()
	cc.Target = next.Name()

	return r.engine.callbacks.ExecuteCallbacks(ctx, CallbackOnHandoff, cc)
}

// step wraps a state with callbacks, a span and step metrics, and appends
// the returned turns to memory.
func (r *run) step(ctx context.Context, step Step, fn func(ctx context.Context) ([]core.Turn, error)) error {
	if err := r.engine.callbacks.ExecuteCallbacks(ctx, CallbackBeforeStep, r.callbackCtx(step, nil, nil)); err != nil {
		return err
	}

	agentName := r.current.Name()

	ctx, span := r.engine.tracer.Start(ctx, "reactmesh."+string(step),
		trace.WithAttributes(
			attribute.String("reactmesh.agent", agentName),
			attribute.Int("reactmesh.interaction", r.budget.Count()),
		),
	)
	defer span.End()

	start := time.Now()

	r.logger.Debug("engine."+string(step)+".start", "agent", agentName, "interaction", r.budget.Count())

	turns, err := fn(ctx)

	r.engine.recorder.StepObserved(agentName, string(step), time.Since(start))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return err
	}

	r.mem.Append(turns...)

	span.SetAttributes(attribute.Int("reactmesh.turns", len(turns)))

	return r.engine.callbacks.ExecuteCallbacks(ctx, CallbackAfterStep, r.callbackCtx(step, turns, nil))
}

// complete issues one provider call under the per-call deadline and records
// its latency.
func (r *run) complete(ctx context.Context, call func(ctx context.Context) (*model.Response, error)) (*model.Response, error) {
	if d := r.engine.config.CallTimeout; d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	start := time.Now()
	resp, err := call(ctx)

	r.engine.recorder.ProviderCall(r.engine.config.Provider.Info().Provider, model.StatusClass(err), time.Since(start))

	return resp, err
}

func (r *run) resolveInstructions() string {
	text, err := r.current.Instruction().Resolve(agent.InstructionContext{
		AgentName:   r.current.Name(),
		Request:     r.request,
		Variables:   r.mem.Variables(),
		Interaction: r.budget.Count(),
	})
	if err != nil {
		r.logger.Warn("engine.instruction.error", "agent", r.current.Name(), "error", err.Error())
		return fmt.Sprintf("You are %s, a helpful AI assistant.", r.current.Name())
	}

	return text
}

func (r *run) prompt(directive string) string {
	return buildPrompt(r.request, r.current.Capabilities(), r.mem.Recall(), directive)
}

func (r *run) newRequest(directive string) model.Request {
	return model.Request{
		Model:        r.current.Model(),
		Instructions: r.instructions,
		Turns:        []core.Turn{core.NewUserTurn(r.prompt(directive))},
		MaxTokens:    r.engine.config.TokenBudget,
	}
}

func (r *run) result(outcome Outcome, end core.ReactEnd, structured json.RawMessage) *RunResult {
	return &RunResult{
		RunID:        r.id,
		Turns:        r.mem.Turns(),
		Agent:        r.current.Name(),
		FinalAnswer:  end.FinalAnswer,
		Confidence:   end.Confidence,
		Structured:   structured,
		Interactions: r.budget.Count(),
		Outcome:      outcome,
		Duration:     time.Since(r.started),
	}
}

func (r *run) callbackCtx(step Step, turns []core.Turn, err error) *CallbackContext {
	return &CallbackContext{
		RunID:       r.id,
		Agent:       r.current.Name(),
		Step:        step,
		Interaction: r.budget.Count(),
		Turns:       turns,
		Err:         err,
	}
}
