package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/reactmesh/agent"
	"github.com/hupe1980/reactmesh/core"
	"github.com/hupe1980/reactmesh/logging"
	"github.com/hupe1980/reactmesh/memory"
	"github.com/hupe1980/reactmesh/metrics"
	"github.com/hupe1980/reactmesh/model"
	"github.com/hupe1980/reactmesh/tool"
)

// TracerName is the instrumentation name used when no tracer is configured.
const TracerName = "github.com/hupe1980/reactmesh/engine"

// ErrInvalidConfig is returned for configurations that cannot run.
var ErrInvalidConfig = errors.New("invalid orchestration config")

// ErrTooManyRuns is returned when MaxConcurrentRuns is reached.
var ErrTooManyRuns = errors.New("too many concurrent runs")

// Config holds the per-run orchestration parameters.
//
// A Config is validated when the engine is created and never mutated while
// runs are in flight.
type Config struct {
	// MaxInteractions bounds the number of THINK steps of a run. Handoff
	// cycles count like any other cycle.
	MaxInteractions int

	// TokenBudget is the maximum number of completion tokens requested from
	// the provider on every call.
	TokenBudget int

	// Provider answers every completion of the run.
	Provider model.Provider

	// CallTimeout bounds each provider and tool call. Zero leaves only the
	// caller's context deadline.
	CallTimeout time.Duration

	// ObserveOnFallback runs OBSERVE after a CHOOSE_TOOL step selected no
	// capability, giving the agent a chance to answer directly before control
	// falls back to the base agent. An agent without capabilities always
	// chooses none, so without this flag its runs end only by budget
	// exhaustion.
	ObserveOnFallback bool
}

// DefaultConfig returns the default configuration for provider.
func DefaultConfig(provider model.Provider) Config {
	return Config{
		MaxInteractions: 3,
		TokenBudget:     5000,
		Provider:        provider,
	}
}

// Validate reports configuration errors.
func (c Config) Validate() error {
	switch {
	case c.Provider == nil:
		return fmt.Errorf("%w: provider is required", ErrInvalidConfig)
	case c.MaxInteractions <= 0:
		return fmt.Errorf("%w: max interactions must be positive, got %d", ErrInvalidConfig, c.MaxInteractions)
	case c.TokenBudget <= 0:
		return fmt.Errorf("%w: token budget must be positive, got %d", ErrInvalidConfig, c.TokenBudget)
	case c.CallTimeout < 0:
		return fmt.Errorf("%w: call timeout must not be negative", ErrInvalidConfig)
	}
	return nil
}

// Outcome describes how a run reached DONE.
type Outcome string

const (
	// OutcomeCompleted means OBSERVE signalled stop.
	OutcomeCompleted Outcome = "completed"
	// OutcomeBudgetExhausted means the interaction budget ran out first.
	OutcomeBudgetExhausted Outcome = "budget_exhausted"
	// OutcomeStructured means an agent with an output schema produced its value.
	OutcomeStructured Outcome = "structured"
)

// RunResult is the value returned by a finished run.
type RunResult struct {
	RunID        string          `json:"run_id"`
	Turns        []core.Turn     `json:"turns"`
	Agent        string          `json:"agent"`
	FinalAnswer  string          `json:"final_answer"`
	Confidence   float64         `json:"confidence"`
	Structured   json.RawMessage `json:"structured,omitempty"`
	Interactions int             `json:"interactions"`
	Outcome      Outcome         `json:"outcome"`
	Duration     time.Duration   `json:"duration"`
}

// Completed reports whether the run produced an answer.
func (r *RunResult) Completed() bool {
	return r.Outcome == OutcomeCompleted || r.Outcome == OutcomeStructured
}

// Options configures an Engine using the functional options pattern.
//
// Example:
//
//	eng, err := New(cfg,
//	    WithLogger(logger),
//	    WithRecorder(promRecorder),
//	    WithCallbacks(NewLoggingCallback(CallbackAfterStep, log.Println)),
//	)
type Options struct {
	// Logger provides structured logging. Defaults to NoOp.
	Logger logging.Logger

	// Recorder receives run, step, provider and tool metrics. Defaults to NoOp.
	Recorder metrics.Recorder

	// Tracer creates the run and step spans. Defaults to the global tracer
	// provider.
	Tracer trace.Tracer

	// Callbacks are executed at the run lifecycle points.
	Callbacks []Callback

	// MaxConcurrentRuns limits the number of simultaneous runs. Zero means
	// unlimited.
	MaxConcurrentRuns int
}

// Engine executes ReAct runs. It holds no per-run state and is safe for
// concurrent use; every Execute call owns its memory and counter.
type Engine struct {
	config     Config
	logger     logging.Logger
	recorder   metrics.Recorder
	tracer     trace.Tracer
	callbacks  *CallbackManager
	dispatcher *tool.Dispatcher
	slots      chan struct{}

	activeRuns map[string]context.CancelFunc
	mu         sync.Mutex
}

// New creates an engine for cfg.
func New(cfg Config, optFns ...func(o *Options)) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := Options{
		Logger:   logging.NoOpLogger{},
		Recorder: metrics.NoOp{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer(TracerName)
	}

	e := &Engine{
		config:    cfg,
		logger:    opts.Logger,
		recorder:  opts.Recorder,
		tracer:    opts.Tracer,
		callbacks: NewCallbackManager(opts.Callbacks...),
		dispatcher: tool.NewDispatcher(
			tool.WithDispatcherLogger(opts.Logger),
			tool.WithDispatcherRecorder(opts.Recorder),
			tool.WithCallTimeout(cfg.CallTimeout),
		),
		activeRuns: make(map[string]context.CancelFunc),
	}

	if opts.MaxConcurrentRuns > 0 {
		e.slots = make(chan struct{}, opts.MaxConcurrentRuns)
	}

	return e, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.config }

// RunOptions configures a single run.
type RunOptions struct {
	// RunID overrides the generated run identifier.
	RunID string

	// Variables seed the run memory and are visible to dynamic instructions.
	Variables map[string]any
}

// WithRunID sets the run identifier.
func WithRunID(id string) func(o *RunOptions) {
	return func(o *RunOptions) {
		o.RunID = id
	}
}

// WithVariables seeds the run variables.
func WithVariables(vars map[string]any) func(o *RunOptions) {
	return func(o *RunOptions) {
		o.Variables = vars
	}
}

// Execute runs the loop for request starting with base as the active agent.
//
// It returns a RunResult for both completion and budget exhaustion. Errors
// are returned only for fatal provider failures, context cancellation and
// callback errors.
func (e *Engine) Execute(ctx context.Context, base *agent.Descriptor, request string, optFns ...func(o *RunOptions)) (*RunResult, error) {
	if base == nil {
		return nil, errors.New("base agent is required")
	}

	opts := RunOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.RunID == "" {
		opts.RunID = core.NewID()
	}

	if err := e.acquire(ctx); err != nil {
		return nil, err
	}
	defer e.release()

	ctx, cancel := context.WithCancel(core.WithRunID(ctx, opts.RunID))
	defer cancel()

	e.track(opts.RunID, cancel)
	defer e.untrack(opts.RunID)

	ctx, span := e.tracer.Start(ctx, "reactmesh.run",
		trace.WithAttributes(
			attribute.String("reactmesh.run_id", opts.RunID),
			attribute.String("reactmesh.agent", base.Name()),
			attribute.Int("reactmesh.max_interactions", e.config.MaxInteractions),
		),
	)
	defer span.End()

	r := &run{
		engine:  e,
		id:      opts.RunID,
		request: request,
		mem:     memory.NewConversation(opts.Variables),
		budget:  core.NewInteractionBudget(e.config.MaxInteractions),
		router:  agent.NewRouter(base, logging.With(e.logger, "run_id", opts.RunID)),
		current: base,
		logger:  logging.With(e.logger, "run_id", opts.RunID),
		started: time.Now(),
	}

	r.logger.Info("engine.run.start", "agent", base.Name(), "max_interactions", e.config.MaxInteractions)

	res, err := r.loop(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		r.logger.Error("engine.run.error", "agent", r.current.Name(), "interactions", r.budget.Count(), "error", err.Error())
		e.recorder.RunFinished(r.current.Name(), "error", r.budget.Count(), time.Since(r.started))

		_ = e.callbacks.ExecuteCallbacks(ctx, CallbackOnError, r.callbackCtx("", nil, err))

		return nil, err
	}

	span.SetAttributes(
		attribute.String("reactmesh.outcome", string(res.Outcome)),
		attribute.Int("reactmesh.interactions", res.Interactions),
	)

	r.logger.Info("engine.run.done",
		"agent", res.Agent,
		"outcome", string(res.Outcome),
		"interactions", res.Interactions,
		"confidence", res.Confidence,
	)
	e.recorder.RunFinished(res.Agent, string(res.Outcome), res.Interactions, res.Duration)

	cc := r.callbackCtx("", nil, nil)
	cc.Result = res
	if err := e.callbacks.ExecuteCallbacks(ctx, CallbackOnFinish, cc); err != nil {
		return nil, err
	}

	return res, nil
}

// Stop cancels an active run. It returns an error when no run with the
// given ID is in flight.
func (e *Engine) Stop(runID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	cancel, ok := e.activeRuns[runID]
	if !ok {
		return fmt.Errorf("run %s not found", runID)
	}

	cancel()

	return nil
}

// ActiveRuns returns the IDs of the runs in flight.
func (e *Engine) ActiveRuns() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	ids := make([]string, 0, len(e.activeRuns))
	for id := range e.activeRuns {
		ids = append(ids, id)
	}

	return ids
}

func (e *Engine) track(runID string, cancel context.CancelFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.activeRuns[runID] = cancel
}

func (e *Engine) untrack(runID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.activeRuns, runID)
}

func (e *Engine) acquire(ctx context.Context) error {
	if e.slots == nil {
		return nil
	}

	select {
	case e.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrTooManyRuns
	}
}

func (e *Engine) release() {
	if e.slots != nil {
		<-e.slots
	}
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) func(o *Options) {
	return func(o *Options) {
		if l != nil {
			o.Logger = l
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) func(o *Options) {
	return func(o *Options) {
		if r != nil {
			o.Recorder = r
		}
	}
}

// WithTracer sets the tracer.
func WithTracer(t trace.Tracer) func(o *Options) {
	return func(o *Options) {
		o.Tracer = t
	}
}

// WithCallbacks registers lifecycle callbacks.
func WithCallbacks(cbs ...Callback) func(o *Options) {
	return func(o *Options) {
		o.Callbacks = append(o.Callbacks, cbs...)
	}
}

// WithMaxConcurrentRuns bounds the number of simultaneous runs.
func WithMaxConcurrentRuns(n int) func(o *Options) {
	return func(o *Options) {
		o.MaxConcurrentRuns = n
	}
}
