// Package reactmesh provides a high-level façade over the orchestration
// engine. Most applications interact with this package by:
//  1. Describing agents with the agent package (tools, sub-agents, instructions)
//  2. Creating a ReactMesh for a completion provider via New()
//  3. Executing requests synchronously (Execute) or in the background (Start)
//
// The one-shot Execute function runs a single request with an explicit
// configuration and no further setup.
package reactmesh

import (
	"context"
	"time"

	"github.com/hupe1980/reactmesh/agent"
	"github.com/hupe1980/reactmesh/engine"
	"github.com/hupe1980/reactmesh/logging"
	"github.com/hupe1980/reactmesh/metrics"
	"github.com/hupe1980/reactmesh/model"
	"github.com/hupe1980/reactmesh/runner"
)

// Execute runs request starting with base as the active agent.
func Execute(ctx context.Context, base *agent.Descriptor, request string, cfg engine.Config) (*engine.RunResult, error) {
	eng, err := engine.New(cfg)
	if err != nil {
		return nil, err
	}

	return eng.Execute(ctx, base, request)
}

// Options configures the ReactMesh instance.
type Options struct {
	// Config is the orchestration config. Its Provider is replaced by the
	// provider passed to New.
	Config engine.Config

	// MaxConcurrentRuns limits simultaneous runs. Zero means unlimited.
	MaxConcurrentRuns int

	// Callbacks observe the run lifecycle.
	Callbacks []engine.Callback

	// Store keeps run records (defaults to an in-memory store).
	Store runner.Store

	// RunTimeout bounds every run. Zero means unbounded.
	RunTimeout time.Duration

	// Recorder receives metrics (defaults to NoOp).
	Recorder metrics.Recorder

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// ReactMesh aggregates an engine and a runner.
type ReactMesh struct {
	engine *engine.Engine
	runner *runner.Runner
}

// New creates a ReactMesh answering completions with provider.
func New(provider model.Provider, optFns ...func(o *Options)) (*ReactMesh, error) {
	opts := Options{
		Config:   engine.DefaultConfig(provider),
		Store:    runner.NewInMemoryStore(1000),
		Recorder: metrics.NoOp{},
		Logger:   logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	opts.Config.Provider = provider

	eng, err := engine.New(opts.Config,
		engine.WithLogger(opts.Logger),
		engine.WithRecorder(opts.Recorder),
		engine.WithCallbacks(opts.Callbacks...),
		engine.WithMaxConcurrentRuns(opts.MaxConcurrentRuns),
	)
	if err != nil {
		return nil, err
	}

	return &ReactMesh{
		engine: eng,
		runner: runner.New(eng,
			runner.WithStore(opts.Store),
			runner.WithRunTimeout(opts.RunTimeout),
			runner.WithLogger(opts.Logger),
		),
	}, nil
}

// Execute runs request synchronously.
func (m *ReactMesh) Execute(ctx context.Context, base *agent.Descriptor, request string, vars map[string]any) (*engine.RunResult, error) {
	rec, err := m.runner.Run(ctx, base, request, vars)
	if err != nil {
		return nil, err
	}

	return rec.Result, nil
}

// Start runs request in the background and returns the run ID.
func (m *ReactMesh) Start(ctx context.Context, base *agent.Descriptor, request string, vars map[string]any) (string, error) {
	return m.runner.Start(ctx, base, request, vars)
}

// Cancel stops a background run.
func (m *ReactMesh) Cancel(runID string) error { return m.runner.Cancel(runID) }

// Run returns the record of a run.
func (m *ReactMesh) Run(runID string) (*runner.Record, error) { return m.runner.Get(runID) }

// Wait blocks until background runs have finished.
func (m *ReactMesh) Wait(ctx context.Context) error { return m.runner.Wait(ctx) }

// Engine returns the underlying engine.
func (m *ReactMesh) Engine() *engine.Engine { return m.engine }

// Runner returns the underlying runner.
func (m *ReactMesh) Runner() *runner.Runner { return m.runner }
