package main

import (
	"context"
	"errors"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hupe1980/reactmesh/config"
	"github.com/hupe1980/reactmesh/engine"
	"github.com/hupe1980/reactmesh/logging"
	"github.com/hupe1980/reactmesh/metrics"
	"github.com/hupe1980/reactmesh/telemetry"
)

// newProvider is replaced in tests.
var newProvider = config.NewProvider

// app holds the process wide dependencies of a command.
type app struct {
	settings *config.Settings
	logger   logging.Logger
	agents   *config.Agents
	registry *prometheus.Registry
	engine   *engine.Engine

	closers []func(ctx context.Context) error
}

func loadSettings(flags *globalFlags) (*config.Settings, logging.Logger, error) {
	settings, err := config.Load(config.WithDotEnv(flags.envFile), config.WithFile(flags.configFile))
	if err != nil {
		return nil, nil, err
	}

	if flags.logLevel != "" {
		settings.LogLevel = flags.logLevel
	}

	if flags.logFormat != "" {
		settings.LogFormat = flags.logFormat
	}

	if flags.catalog != "" {
		settings.Catalog = flags.catalog
	}

	return settings, newLogger(settings), nil
}

func newLogger(s *config.Settings) logging.Logger {
	level := logging.ParseLevel(s.LogLevel)

	if s.LogFormat == "console" {
		return logging.NewConsoleLogger(level, os.Stderr)
	}

	return logging.NewSlogLogger(level, s.LogFormat, false)
}

func loadAgents(ctx context.Context, s *config.Settings, logger logging.Logger) (*config.Agents, error) {
	if s.Catalog == "" {
		return config.DefaultAgents()
	}

	catalog, err := config.LoadCatalog(s.Catalog)
	if err != nil {
		return nil, err
	}

	return catalog.Build(ctx, config.WithLogger(logger))
}

// newApp wires settings, agents, provider, tracing, metrics and the engine.
func newApp(ctx context.Context, flags *globalFlags) (*app, error) {
	settings, logger, err := loadSettings(flags)
	if err != nil {
		return nil, err
	}

	a := &app{settings: settings, logger: logger}

	a.agents, err = loadAgents(ctx, settings, logger)
	if err != nil {
		return nil, err
	}

	a.closers = append(a.closers, func(context.Context) error { return a.agents.Close() })

	provider, closeProvider, err := newProvider(ctx, settings, logger)
	if err != nil {
		_ = a.close(ctx)
		return nil, err
	}

	a.closers = append(a.closers, func(context.Context) error { return closeProvider() })

	tp, shutdown, err := telemetry.Setup(ctx,
		telemetry.WithEndpoint(settings.OTLPEndpoint),
		telemetry.WithServiceVersion(version),
		telemetry.WithSampleRatio(settings.SampleRatio),
	)
	if err != nil {
		_ = a.close(ctx)
		return nil, err
	}

	a.closers = append(a.closers, shutdown)

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	recorder, err := metrics.NewPrometheus("reactmesh", a.registry)
	if err != nil {
		_ = a.close(ctx)
		return nil, err
	}

	a.engine, err = engine.New(settings.EngineConfig(provider),
		engine.WithLogger(logger),
		engine.WithRecorder(recorder),
		engine.WithTracer(tp.Tracer(engine.TracerName)),
		engine.WithMaxConcurrentRuns(settings.MaxConcurrentRuns),
	)
	if err != nil {
		_ = a.close(ctx)
		return nil, err
	}

	logger.Debug("app.ready", "provider", settings.Provider, "base_agent", a.agents.Base().Name())

	return a, nil
}

// close releases resources in reverse order.
func (a *app) close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i](ctx))
	}

	a.closers = nil

	return errors.Join(errs...)
}
