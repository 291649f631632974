package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/reactmesh/agent"
	"github.com/hupe1980/reactmesh/core"
	"github.com/hupe1980/reactmesh/engine"
	"github.com/hupe1980/reactmesh/logging"
)

// Options holds dependency overrides passed to New().
type Options struct {
	// Store keeps run records. Defaults to an in-memory store with 1000
	// records.
	Store Store
	// RunTimeout bounds every run, synchronous or background. Zero
	// disables the bound.
	RunTimeout time.Duration
	// Logger provides structured logging. Defaults to NoOp.
	Logger logging.Logger
}

// Runner executes runs on an engine and records their lifecycle. Public
// methods are safe for concurrent use.
type Runner struct {
	engine     *engine.Engine
	store      Store
	runTimeout time.Duration
	logger     logging.Logger

	mu         sync.Mutex
	cancels    map[string]context.CancelFunc
	background int
	idle       chan struct{} // closed while no background run is active
}

// New constructs a Runner with optional overrides.
func New(eng *engine.Engine, optFns ...func(o *Options)) *Runner {
	opts := Options{
		Store:  NewInMemoryStore(1000),
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	idle := make(chan struct{})
	close(idle)

	return &Runner{
		engine:     eng,
		store:      opts.Store,
		runTimeout: opts.RunTimeout,
		logger:     opts.Logger,
		cancels:    make(map[string]context.CancelFunc),
		idle:       idle,
	}
}

// Run executes a run synchronously and returns its final record. Fatal run
// errors are reported through the record as well as the returned error.
func (r *Runner) Run(ctx context.Context, base *agent.Descriptor, request string, vars map[string]any) (*Record, error) {
	rec, err := r.begin(base, request)
	if err != nil {
		return nil, err
	}

	ctx, cancel := r.runContext(ctx)
	defer cancel()

	r.track(rec.ID, cancel, false)
	defer r.untrack(rec.ID, false)

	return r.execute(ctx, base, rec, vars)
}

// Start launches a run in the background and returns its ID. The run is
// detached from ctx cancellation; use Cancel to stop it. The run is
// cancellable as soon as Start returns.
func (r *Runner) Start(ctx context.Context, base *agent.Descriptor, request string, vars map[string]any) (string, error) {
	rec, err := r.begin(base, request)
	if err != nil {
		return "", err
	}

	runCtx, cancel := r.runContext(context.WithoutCancel(ctx))
	r.track(rec.ID, cancel, true)

	go func() {
		defer r.untrack(rec.ID, true)
		defer cancel()

		_, _ = r.execute(runCtx, base, rec, vars)
	}()

	return rec.ID, nil
}

// Cancel stops a running run by ID.
func (r *Runner) Cancel(runID string) error {
	rec, err := r.store.Get(runID)
	if err != nil {
		return err
	}

	if rec.Done() {
		return fmt.Errorf("run %s already %s", runID, rec.Status)
	}

	r.mu.Lock()
	cancel, ok := r.cancels[runID]
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("run %s is not owned by this runner", runID)
	}

	cancel()
	r.logger.Debug("runner.run.cancel", "run_id", runID)

	return nil
}

// Get returns the record of a run.
func (r *Runner) Get(runID string) (*Record, error) {
	return r.store.Get(runID)
}

// List returns all known records, newest first.
func (r *Runner) List() ([]*Record, error) {
	return r.store.List()
}

// Wait blocks until all background runs have finished or ctx is done. Runs
// started while waiting are waited for as well.
func (r *Runner) Wait(ctx context.Context) error {
	for {
		r.mu.Lock()
		idle, active := r.idle, r.background
		r.mu.Unlock()

		if active == 0 {
			return nil
		}

		select {
		case <-idle:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (r *Runner) runContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.runTimeout > 0 {
		return context.WithTimeout(ctx, r.runTimeout)
	}

	return context.WithCancel(ctx)
}

func (r *Runner) track(runID string, cancel context.CancelFunc, background bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cancels[runID] = cancel

	if background {
		if r.background == 0 {
			r.idle = make(chan struct{})
		}
		r.background++
	}
}

func (r *Runner) untrack(runID string, background bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.cancels, runID)

	if background {
		r.background--
		if r.background == 0 {
			close(r.idle)
		}
	}
}

func (r *Runner) begin(base *agent.Descriptor, request string) (*Record, error) {
	if base == nil {
		return nil, errors.New("base agent is required")
	}

	rec := &Record{
		ID:        core.NewID(),
		Agent:     base.Name(),
		Request:   request,
		Status:    StatusRunning,
		CreatedAt: time.Now().UTC(),
	}

	if err := r.store.Save(rec); err != nil {
		return nil, fmt.Errorf("failed to save run: %w", err)
	}

	r.logger.Debug("runner.run.accepted", "run_id", rec.ID, "agent", rec.Agent)

	return rec, nil
}

func (r *Runner) execute(ctx context.Context, base *agent.Descriptor, rec *Record, vars map[string]any) (*Record, error) {
	res, runErr := r.engine.Execute(ctx, base, rec.Request, engine.WithRunID(rec.ID), engine.WithVariables(vars))

	finished := time.Now().UTC()
	rec.FinishedAt = &finished
	rec.Result = res

	switch {
	case runErr == nil:
		rec.Status = StatusSucceeded
	case errors.Is(runErr, context.Canceled):
		rec.Status = StatusCancelled
		rec.Error = runErr.Error()
	default:
		rec.Status = StatusFailed
		rec.Error = runErr.Error()
	}

	if err := r.store.Save(rec); err != nil {
		r.logger.Error("runner.run.save_failed", "run_id", rec.ID, "error", err.Error())
	}

	r.logger.Debug("runner.run.finished", "run_id", rec.ID, "status", string(rec.Status))

	return rec.clone(), runErr
}

// WithStore sets the record store.
func WithStore(s Store) func(o *Options) {
	return func(o *Options) {
		o.Store = s
	}
}

// WithRunTimeout bounds every run started by the runner.
func WithRunTimeout(d time.Duration) func(o *Options) {
	return func(o *Options) {
		o.RunTimeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) func(o *Options) {
	return func(o *Options) {
		o.Logger = l
	}
}
