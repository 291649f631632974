package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/hupe1980/reactmesh/agent"
	"github.com/hupe1980/reactmesh/core"
	"github.com/hupe1980/reactmesh/internal/testutil"
	"github.com/hupe1980/reactmesh/metrics"
	"github.com/hupe1980/reactmesh/model"
	"github.com/hupe1980/reactmesh/tool"
)

type calcArgs struct {
	Operation string  `json:"operation" enum:"add,subtract,multiply,divide"`
	A         float64 `json:"a"`
	B         float64 `json:"b"`
}

func calculator(calls *int) tool.Tool {
	return tool.NewTypedTool("calculator", "Performs basic arithmetic", func(_ *core.ToolContext, in calcArgs) (float64, error) {
		if calls != nil {
			*calls++
		}
		switch in.Operation {
		case "add":
			return in.A + in.B, nil
		case "subtract":
			return in.A - in.B, nil
		case "multiply":
			return in.A * in.B, nil
		default:
			if in.B == 0 {
				return 0, errors.New("division by zero")
			}
			return in.A / in.B, nil
		}
	})
}

func date() tool.Tool {
	return tool.NewFunctionTool("date", "Returns today's date", nil, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		return "2026-10-19", nil
	})
}

func newEngine(t *testing.T, p model.Provider, maxInteractions int, optFns ...func(o *Options)) *Engine {
	t.Helper()

	cfg := DefaultConfig(p)
	cfg.MaxInteractions = maxInteractions

	e, err := New(cfg, optFns...)
	require.NoError(t, err)

	return e
}

func mathAgent(calls *int) *agent.Descriptor {
	return agent.MustNew("math",
		agent.WithInstruction("You solve arithmetic problems."),
		agent.WithTools(calculator(calls), date()),
	)
}

func TestConfig_Validate(t *testing.T) {
	p := testutil.NewScriptedProvider()

	tests := []struct {
		name string
		cfg  Config
	}{
		{"no provider", Config{MaxInteractions: 1, TokenBudget: 1}},
		{"zero interactions", Config{Provider: p, TokenBudget: 1}},
		{"zero token budget", Config{Provider: p, MaxInteractions: 1}},
		{"negative timeout", Config{Provider: p, MaxInteractions: 1, TokenBudget: 1, CallTimeout: -time.Second}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}

	assert.NoError(t, DefaultConfig(p).Validate())
}

func TestExecute_BudgetExhaustedAfterNThinkCycles(t *testing.T) {
	for n := 1; n <= 4; n++ {
		t.Run(fmt.Sprintf("max=%d", n), func(t *testing.T) {
			p := testutil.NewScriptedProvider().
				On(testutil.StepChoose, testutil.Choose("date", "need the date")).
				On(testutil.StepAct, testutil.Call("date", "{}")).
				On(testutil.StepObserve, testutil.Observe(false, "not yet", 0.2))

			res, err := newEngine(t, p, n).Execute(context.Background(), mathAgent(nil), "What day is it?")
			require.NoError(t, err)

			assert.Equal(t, OutcomeBudgetExhausted, res.Outcome)
			assert.Empty(t, res.FinalAnswer)
			assert.Equal(t, n, res.Interactions)
			assert.Equal(t, n, p.Count(testutil.StepThink))
			assert.Equal(t, n, p.Count(testutil.StepObserve))
			assert.False(t, res.Completed())
		})
	}
}

func TestExecute_SingleInteraction(t *testing.T) {
	p := testutil.NewScriptedProvider()

	res, err := newEngine(t, p, 1).Execute(context.Background(), mathAgent(nil), "anything")
	require.NoError(t, err)

	assert.Equal(t, OutcomeBudgetExhausted, res.Outcome)
	assert.Equal(t, "", res.FinalAnswer)
	assert.Equal(t, 1, p.Count(testutil.StepThink))
	assert.Equal(t, 1, p.Count(testutil.StepChoose))
}

func TestExecute_CalculatorScenario(t *testing.T) {
	calls := 0
	p := testutil.NewScriptedProvider().
		On(testutil.StepThink, testutil.Text("I need to add 7 and 12.")).
		On(testutil.StepChoose, testutil.Choose("calculator", "arithmetic is required")).
		On(testutil.StepAct, testutil.Call("calculator", `{"operation":"add","a":7,"b":12}`)).
		On(testutil.StepObserve, testutil.Observe(true, "7 plus 12 is 19", 1.4))

	res, err := newEngine(t, p, 3).Execute(context.Background(), mathAgent(&calls), "What is 7 plus 12?")
	require.NoError(t, err)

	assert.Equal(t, OutcomeCompleted, res.Outcome)
	assert.Contains(t, res.FinalAnswer, "19")
	assert.Equal(t, 1.0, res.Confidence, "confidence is clamped")
	assert.Equal(t, 1, res.Interactions)
	assert.Equal(t, "math", res.Agent)
	assert.Equal(t, 1, calls)

	require.Len(t, res.Turns, 5)
	assert.Equal(t, "I need to add 7 and 12.", res.Turns[0].Content)
	assert.Equal(t, "Tool choice: calculator. Reason: arithmetic is required", res.Turns[1].Content)
	require.Len(t, res.Turns[2].ToolCalls, 1)
	assert.Equal(t, core.RoleTool, res.Turns[3].Role)
	assert.Equal(t, "19", res.Turns[3].Content)
	assert.Equal(t, res.Turns[2].ToolCalls[0].ID, res.Turns[3].ToolCallID)
	assert.JSONEq(t, `{"stop":true,"final_answer":"7 plus 12 is 19","confidence":1.4}`, string(res.Turns[4].Structured))

	act := p.RequestsFor(testutil.StepAct)
	require.Len(t, act, 1)
	assert.Equal(t, model.ToolChoiceRequired, act[0].ToolChoice)
	require.Len(t, act[0].Tools, 1)
	assert.Equal(t, "calculator", act[0].Tools[0].Name)
}

func TestExecute_ThinkPromptCarriesRequestCapabilitiesAndMemory(t *testing.T) {
	p := testutil.NewScriptedProvider().
		On(testutil.StepThink, testutil.Text("first thought"), testutil.Text("second thought"))

	_, err := newEngine(t, p, 2).Execute(context.Background(), mathAgent(nil), "What is 7 plus 12?")
	require.NoError(t, err)

	thinks := p.RequestsFor(testutil.StepThink)
	require.Len(t, thinks, 2)

	prompt := thinks[1].Turns[0].Content
	assert.Contains(t, prompt, "What is 7 plus 12?")
	assert.Contains(t, prompt, "- calculator - Performs basic arithmetic")
	assert.Contains(t, prompt, "- date - Returns today's date")
	assert.Contains(t, prompt, "assistant: first thought")
	assert.Equal(t, "You solve arithmetic problems.", thinks[1].Instructions)
	assert.Equal(t, 5000, thinks[1].MaxTokens)
}

func TestExecute_ChooseSchemaRestrictsNames(t *testing.T) {
	p := testutil.NewScriptedProvider()

	_, err := newEngine(t, p, 1).Execute(context.Background(), mathAgent(nil), "q")
	require.NoError(t, err)

	choose := p.RequestsFor(testutil.StepChoose)
	require.Len(t, choose, 1)
	require.NotNil(t, choose[0].Schema)

	props := choose[0].Schema.Definition["properties"].(map[string]any)
	assert.Equal(t, []any{"calculator", "date", "none"}, props["tool_name"].(map[string]any)["enum"])
	assert.Empty(t, choose[0].Tools)
}

func TestExecute_UnknownToolChoice(t *testing.T) {
	p := testutil.NewScriptedProvider().
		On(testutil.StepChoose, testutil.Choose("weather", "check the weather")).
		On(testutil.StepObserve, testutil.Observe(true, "no weather tool", 0.3))

	res, err := newEngine(t, p, 2).Execute(context.Background(), mathAgent(nil), "Weather?")
	require.NoError(t, err)

	require.Len(t, res.Turns, 5)
	toolTurn := res.Turns[3]
	require.True(t, toolTurn.IsToolError())
	assert.Equal(t, core.ToolErrorUnknownTool, toolTurn.ToolError.Kind)
	assert.Equal(t, 0, p.Count(testutil.StepAct), "unknown names are dispatched without asking for arguments")
}

func TestExecute_ProviderCallsUnregisteredTool(t *testing.T) {
	p := testutil.NewScriptedProvider().
		On(testutil.StepChoose, testutil.Choose("calculator", "math")).
		On(testutil.StepAct, testutil.Call("abacus", `{}`)).
		On(testutil.StepObserve, testutil.Observe(true, "done", 1))

	res, err := newEngine(t, p, 1).Execute(context.Background(), mathAgent(nil), "q")
	require.NoError(t, err)

	assert.Equal(t, core.ToolErrorUnknownTool, res.Turns[3].ToolError.Kind)
	assert.Equal(t, OutcomeCompleted, res.Outcome)
}

func TestExecute_MalformedArguments(t *testing.T) {
	calls := 0
	p := testutil.NewScriptedProvider().
		On(testutil.StepChoose, testutil.Choose("calculator", "math")).
		On(testutil.StepAct, testutil.Call("calculator", `{"operation":"add",`)).
		On(testutil.StepObserve, testutil.Observe(false, "", 0))

	res, err := newEngine(t, p, 1).Execute(context.Background(), mathAgent(&calls), "q")
	require.NoError(t, err)

	assert.Equal(t, core.ToolErrorInvalidArguments, res.Turns[3].ToolError.Kind)
	assert.Equal(t, 0, calls)
}

func TestExecute_HandoffToSubAgent(t *testing.T) {
	wiki := testutil.NewMockTool("wikipedia", nil)
	people := agent.MustNew("people_search",
		agent.WithDescription("Finds information about people"),
		agent.WithInstruction("You search for people."),
		agent.WithModel("small-model"),
		agent.WithTools(wiki),
	)
	base := agent.MustNew("router", agent.WithTools(date()), agent.WithSubAgents(people))

	var handoffs []string

	p := testutil.NewScriptedProvider().
		On(testutil.StepChoose, testutil.Choose("people_search", "question about a person"), testutil.Choose(core.NoTool, "nothing"))

	e := newEngine(t, p, 2, WithCallbacks(NewFunctionCallback(CallbackOnHandoff, func(_ context.Context, cc *CallbackContext) error {
		handoffs = append(handoffs, cc.Agent+"->"+cc.Target)
		return nil
	})))

	res, err := e.Execute(context.Background(), base, "Who is Ada Lovelace?")
	require.NoError(t, err)

	assert.Equal(t, []string{"router->people_search", "people_search->router"}, handoffs)
	assert.Equal(t, "router", res.Agent)
	assert.Equal(t, 2, res.Interactions)

	// think + rationale per cycle, nothing for the handoffs themselves
	require.Len(t, res.Turns, 4)
	assert.Equal(t, "router", res.Turns[1].Sender)
	assert.Equal(t, "people_search", res.Turns[2].Sender)

	thinks := p.RequestsFor(testutil.StepThink)
	require.Len(t, thinks, 2)
	assert.Equal(t, "You search for people.", thinks[1].Instructions)
	assert.Equal(t, "small-model", thinks[1].Model)
	assert.Contains(t, thinks[1].Turns[0].Content, "- wikipedia - mock wikipedia")
	assert.NotContains(t, thinks[1].Turns[0].Content, "- date -")
	assert.Equal(t, 0, p.Count(testutil.StepObserve))

	wiki.AssertNotCalled(t, "Call", mock.Anything)
}

func TestExecute_HandoffToSelfIsNoOpCycle(t *testing.T) {
	var self *agent.Descriptor
	self = agent.MustNew("loop", agent.WithCapabilities(agent.NewLazySubAgent("loop_again", "Try again", func() *agent.Descriptor { return self })))

	p := testutil.NewScriptedProvider().On(testutil.StepChoose, testutil.Choose("loop_again", "again"))

	res, err := newEngine(t, p, 3).Execute(context.Background(), self, "q")
	require.NoError(t, err)

	assert.Equal(t, OutcomeBudgetExhausted, res.Outcome)
	assert.Equal(t, 3, p.Count(testutil.StepThink))
	assert.Equal(t, "loop", res.Agent)
}

func TestExecute_ObserveOnFallback(t *testing.T) {
	p := testutil.NewScriptedProvider().
		On(testutil.StepObserve, testutil.Observe(true, "Paris", 0.8))

	cfg := DefaultConfig(p)
	cfg.ObserveOnFallback = true

	e, err := New(cfg)
	require.NoError(t, err)

	res, err := e.Execute(context.Background(), mathAgent(nil), "Capital of France?")
	require.NoError(t, err)

	assert.Equal(t, OutcomeCompleted, res.Outcome)
	assert.Equal(t, "Paris", res.FinalAnswer)
	assert.Equal(t, 1, res.Interactions)
}

func TestExecute_ParallelToolCalls(t *testing.T) {
	lookup := testutil.NewMockTool("lookup", nil)
	lookup.On("Call", map[string]any{"q": "a"}).Return("A", nil).Once()
	lookup.On("Call", map[string]any{"q": "b"}).Return("B", nil).Once()

	a := agent.MustNew("researcher", agent.WithTools(lookup, date()), agent.WithParallelToolCalls(true))

	p := testutil.NewScriptedProvider().
		On(testutil.StepChoose, testutil.Choose("lookup", "look both up")).
		On(testutil.StepAct, testutil.Calls(
			core.ToolCallRequest{ToolName: "lookup", RawArguments: `{"q":"a"}`},
			core.ToolCallRequest{ToolName: "lookup", RawArguments: `{"q":"b"}`},
		)).
		On(testutil.StepObserve, testutil.Observe(true, "A and B", 0.9))

	res, err := newEngine(t, p, 1).Execute(context.Background(), a, "q")
	require.NoError(t, err)

	require.Len(t, res.Turns, 6)
	assert.Len(t, res.Turns[2].ToolCalls, 2)
	assert.Equal(t, "A", res.Turns[3].Content)
	assert.Equal(t, "B", res.Turns[4].Content)
	lookup.AssertExpectations(t)

	act := p.RequestsFor(testutil.StepAct)
	require.Len(t, act, 1)
	assert.True(t, act[0].AllowParallelToolCalls)
	assert.Len(t, act[0].Tools, 2)
}

func TestExecute_ActErrorAppendsNothing(t *testing.T) {
	p := testutil.NewScriptedProvider().
		On(testutil.StepChoose, testutil.Choose("date", "date")).
		On(testutil.StepAct, testutil.Fail(model.NewStatusError("test", http.StatusBadRequest, errors.New("bad")))).
		On(testutil.StepObserve, testutil.Observe(true, "ok", 1))

	res, err := newEngine(t, p, 1).Execute(context.Background(), mathAgent(nil), "q")
	require.NoError(t, err)

	// think, choice, observation: the failed act appends nothing
	assert.Len(t, res.Turns, 3)
}

func TestExecute_StructuredOutputAgent(t *testing.T) {
	type person struct {
		Name string `json:"name"`
		Born int    `json:"born"`
	}

	a := agent.MustNew("extractor", agent.WithOutputSchema("person", person{}))

	p := testutil.NewScriptedProvider().
		On(testutil.StepOutput, testutil.Structured(person{Name: "Ada Lovelace", Born: 1815}))

	res, err := newEngine(t, p, 3).Execute(context.Background(), a, "Ada Lovelace, born 1815")
	require.NoError(t, err)

	assert.Equal(t, OutcomeStructured, res.Outcome)
	assert.Equal(t, 1.0, res.Confidence)
	assert.JSONEq(t, `{"name":"Ada Lovelace","born":1815}`, string(res.Structured))
	assert.Equal(t, string(res.Structured), res.FinalAnswer)
	assert.True(t, res.Completed())
	assert.Equal(t, 0, p.Count(testutil.StepChoose))

	out := p.RequestsFor(testutil.StepOutput)
	require.Len(t, out, 1)
	assert.Equal(t, "person", out[0].Schema.Name)
}

func TestExecute_FatalProviderErrors(t *testing.T) {
	unavailable := model.NewStatusError("test", http.StatusServiceUnavailable, errors.New("down"))

	tests := []struct {
		name string
		step testutil.Step
		err  error
		want error
	}{
		{"think unavailable", testutil.StepThink, unavailable, core.ErrProviderUnavailable},
		{"think protocol violation", testutil.StepThink, core.ErrProtocolViolation, core.ErrProtocolViolation},
		{"choose unavailable", testutil.StepChoose, unavailable, core.ErrProviderUnavailable},
		{"observe protocol violation", testutil.StepObserve, fmt.Errorf("bad shape: %w", core.ErrProtocolViolation), core.ErrProtocolViolation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testutil.NewScriptedProvider().
				On(tt.step, testutil.Fail(tt.err)).
				On(testutil.StepChoose, testutil.Choose("date", "date")).
				On(testutil.StepAct, testutil.Call("date", "{}"))

			var reported error
			e := newEngine(t, p, 3, WithCallbacks(NewFunctionCallback(CallbackOnError, func(_ context.Context, cc *CallbackContext) error {
				reported = cc.Err
				return nil
			})))

			res, err := e.Execute(context.Background(), mathAgent(nil), "q")
			assert.Nil(t, res)
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, reported, tt.want)
		})
	}
}

func TestExecute_DegradedThink(t *testing.T) {
	p := testutil.NewScriptedProvider().
		On(testutil.StepThink, testutil.Fail(model.NewStatusError("test", http.StatusTooManyRequests, errors.New("slow down"))))

	res, err := newEngine(t, p, 2).Execute(context.Background(), mathAgent(nil), "q")
	require.NoError(t, err)

	assert.Equal(t, OutcomeBudgetExhausted, res.Outcome)
	require.Len(t, res.Turns, 4)
	assert.Equal(t, core.RoleAssistant, res.Turns[0].Role)
	assert.Empty(t, res.Turns[0].Content)
}

func TestExecute_ChooseErrorFallsBack(t *testing.T) {
	p := testutil.NewScriptedProvider().
		On(testutil.StepChoose, testutil.Fail(errors.New("schema rejected")))

	res, err := newEngine(t, p, 1).Execute(context.Background(), mathAgent(nil), "q")
	require.NoError(t, err)

	assert.Len(t, res.Turns, 1, "only the thought is appended")
	assert.Equal(t, 0, p.Count(testutil.StepAct))
}

func TestExecute_CallbackErrorAborts(t *testing.T) {
	p := testutil.NewScriptedProvider()
	boom := errors.New("stop here")

	var steps []Step
	e := newEngine(t, p, 3, WithCallbacks(
		NewFunctionCallback(CallbackBeforeStep, func(_ context.Context, cc *CallbackContext) error {
			steps = append(steps, cc.Step)
			return nil
		}),
		NewFunctionCallback(CallbackAfterStep, func(_ context.Context, cc *CallbackContext) error {
			if cc.Step == StepChooseTool {
				return boom
			}
			return nil
		}),
	))

	_, err := e.Execute(context.Background(), mathAgent(nil), "q")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []Step{StepThink, StepChooseTool}, steps)
}

func TestExecute_ToolGuard(t *testing.T) {
	p := testutil.NewScriptedProvider().
		On(testutil.StepChoose, testutil.Choose("calculator", "math")).
		On(testutil.StepAct, testutil.Call("calculator", `{"operation":"divide","a":1,"b":0}`))

	guard := NewToolGuardCallback(func(turn core.Turn) error {
		if turn.IsToolError() && turn.ToolError.Kind == core.ToolErrorExecutionFailure {
			return fmt.Errorf("tool %s failed", turn.ToolName)
		}
		return nil
	})

	_, err := newEngine(t, p, 3, WithCallbacks(guard)).Execute(context.Background(), mathAgent(nil), "1/0")
	assert.ErrorContains(t, err, "tool calculator failed")
}

func TestExecute_DynamicInstructions(t *testing.T) {
	a := agent.MustNew("greeter", agent.WithInstructionFunc(func(ic agent.InstructionContext) (string, error) {
		return fmt.Sprintf("Greet %v (step %d).", ic.Variables["user"], ic.Interaction), nil
	}))

	p := testutil.NewScriptedProvider()

	_, err := newEngine(t, p, 2).Execute(context.Background(), a, "hi", WithVariables(map[string]any{"user": "Ada"}))
	require.NoError(t, err)

	thinks := p.RequestsFor(testutil.StepThink)
	require.Len(t, thinks, 2)
	assert.Equal(t, "Greet Ada (step 1).", thinks[0].Instructions)
	assert.Equal(t, "Greet Ada (step 2).", thinks[1].Instructions)
	assert.Equal(t, "Greet Ada (step 1).", p.RequestsFor(testutil.StepChoose)[0].Instructions)
}

func TestExecute_CallTimeoutAndRunID(t *testing.T) {
	var (
		hasDeadline bool
		runID       string
	)

	p := testutil.NewScriptedProvider().
		On(testutil.StepThink, func(ctx context.Context, _ model.Request) (*model.Response, error) {
			_, hasDeadline = ctx.Deadline()
			runID = core.RunIDFromContext(ctx)
			return model.TextResponse("ok"), nil
		})

	cfg := DefaultConfig(p)
	cfg.MaxInteractions = 1
	cfg.CallTimeout = time.Minute

	e, err := New(cfg)
	require.NoError(t, err)

	res, err := e.Execute(context.Background(), mathAgent(nil), "q", WithRunID("run-42"))
	require.NoError(t, err)

	assert.True(t, hasDeadline)
	assert.Equal(t, "run-42", runID)
	assert.Equal(t, "run-42", res.RunID)
}

func TestEngine_Stop(t *testing.T) {
	var e *Engine

	p := testutil.NewScriptedProvider().
		On(testutil.StepThink, func(ctx context.Context, _ model.Request) (*model.Response, error) {
			assert.Contains(t, e.ActiveRuns(), core.RunIDFromContext(ctx))
			require.NoError(t, e.Stop(core.RunIDFromContext(ctx)))
			return nil, ctx.Err()
		})

	e = newEngine(t, p, 3)

	_, err := e.Execute(context.Background(), mathAgent(nil), "q")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, e.ActiveRuns())
	assert.Error(t, e.Stop("missing"))
}

func TestEngine_MaxConcurrentRuns(t *testing.T) {
	var e *Engine

	p := testutil.NewScriptedProvider().
		On(testutil.StepThink, func(ctx context.Context, _ model.Request) (*model.Response, error) {
			_, err := e.Execute(ctx, mathAgent(nil), "nested")
			assert.ErrorIs(t, err, ErrTooManyRuns)
			return model.TextResponse("ok"), nil
		})

	e = newEngine(t, p, 1, WithMaxConcurrentRuns(1))

	_, err := e.Execute(context.Background(), mathAgent(nil), "q")
	require.NoError(t, err)
}

func TestExecute_Tracing(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	p := testutil.NewScriptedProvider().
		On(testutil.StepChoose, testutil.Choose("date", "date")).
		On(testutil.StepAct, testutil.Call("date", "{}")).
		On(testutil.StepObserve, testutil.Observe(true, "today", 1))

	_, err := newEngine(t, p, 1, WithTracer(tp.Tracer("test"))).Execute(context.Background(), mathAgent(nil), "q")
	require.NoError(t, err)

	names := make([]string, 0)
	for _, s := range sr.Ended() {
		names = append(names, s.Name())
	}

	assert.ElementsMatch(t, []string{
		"reactmesh.think", "reactmesh.choose_tool", "reactmesh.act", "reactmesh.observe", "reactmesh.run",
	}, names)
}

func TestExecute_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := metrics.NewPrometheus("test", reg)
	require.NoError(t, err)

	p := testutil.NewScriptedProvider()

	_, err = newEngine(t, p, 2, WithRecorder(rec)).Execute(context.Background(), mathAgent(nil), "q")
	require.NoError(t, err)

	expected := `
# HELP test_handoffs_total Changes of the active agent.
# TYPE test_handoffs_total counter
test_handoffs_total{from="math",to="math"} 2
`
	require.NoError(t, promtestutil.GatherAndCompare(reg, strings.NewReader(expected), "test_handoffs_total"))
}

func TestLoggingCallback(t *testing.T) {
	var lines []string

	p := testutil.NewScriptedProvider()
	e := newEngine(t, p, 1, WithCallbacks(NewLoggingCallback(CallbackAfterStep, func(msg string) { lines = append(lines, msg) })))

	_, err := e.Execute(context.Background(), mathAgent(nil), "q", WithRunID("r1"))
	require.NoError(t, err)

	require.Len(t, lines, 2)
	assert.Equal(t, "[after_step] run=r1 agent=math step=think interaction=1 turns=1", lines[0])
}

func TestExecute_ActTextReply(t *testing.T) {
	p := testutil.NewScriptedProvider().
		On(testutil.StepChoose, testutil.Choose("date", "date")).
		On(testutil.StepAct, testutil.Text("I already know the date.")).
		On(testutil.StepObserve, testutil.Observe(true, "today", 1))

	res, err := newEngine(t, p, 1).Execute(context.Background(), mathAgent(nil), "q")
	require.NoError(t, err)

	require.Len(t, res.Turns, 4)
	assert.Equal(t, "I already know the date.", res.Turns[2].Content)
	assert.Empty(t, res.Turns[2].ToolCalls)
}

func TestBuildPrompt(t *testing.T) {
	prompt := buildPrompt("Who?", nil, "", observeDirective)

	assert.True(t, strings.HasPrefix(prompt, "Request:\nWho?\n\nCapabilities:\n(none)\n"))
	assert.NotContains(t, prompt, "Conversation so far")
	assert.True(t, strings.HasSuffix(prompt, observeDirective))
}
