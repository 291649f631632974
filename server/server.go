// Package server exposes runs over HTTP.
//
// Routes:
//
//	GET    /healthz
//	GET    /metrics
//	GET    /v1/agents
//	POST   /v1/runs
//	GET    /v1/runs
//	GET    /v1/runs/{id}
//	DELETE /v1/runs/{id}
//
// The /v1 routes require a bearer token when one is configured.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hupe1980/reactmesh/agent"
	"github.com/hupe1980/reactmesh/logging"
	"github.com/hupe1980/reactmesh/runner"
)

// Agents resolves the agents runs may start from.
type Agents interface {
	Base() *agent.Descriptor
	Get(name string) (*agent.Descriptor, bool)
	Names() []string
}

// Options configures a Server.
type Options struct {
	Logger logging.Logger

	// Gatherer backs /metrics. Nil disables the route.
	Gatherer prometheus.Gatherer

	// BearerToken protects the /v1 routes. Empty disables auth.
	BearerToken string

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Server is the HTTP front end of a runner.
type Server struct {
	runner *runner.Runner
	agents Agents
	opts   Options
}

// New creates a server.
func New(r *runner.Runner, agents Agents, optFns ...func(o *Options)) *Server {
	opts := Options{
		Logger:          logging.NoOpLogger{},
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    5 * time.Minute,
		ShutdownTimeout: 10 * time.Second,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Server{runner: r, agents: agents, opts: opts}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth())

	if s.opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(r chi.Router) {
		if s.opts.BearerToken != "" {
			r.Use(bearerAuth(s.opts.BearerToken, s.opts.Logger))
		}

		r.Get("/agents", s.handleListAgents())
		r.Post("/runs", s.handleCreateRun())
		r.Get("/runs", s.handleListRuns())
		r.Get("/runs/{id}", s.handleGetRun())
		r.Delete("/runs/{id}", s.handleCancelRun())
	})

	return r
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully and waits for background runs.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	var lc net.ListenConfig

	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return errors.New("server: listen failed: " + err.Error())
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadTimeout:       s.opts.ReadTimeout,
		ReadHeaderTimeout: s.opts.ReadTimeout,
		WriteTimeout:      s.opts.WriteTimeout,
	}

	errCh := make(chan error, 1)

	go func() {
		s.opts.Logger.Info("server.listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.ShutdownTimeout)
	defer cancel()

	s.opts.Logger.Info("server.shutdown")

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	return s.runner.Wait(shutdownCtx)
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) func(o *Options) {
	return func(o *Options) {
		o.Logger = l
	}
}

// WithGatherer enables /metrics.
func WithGatherer(g prometheus.Gatherer) func(o *Options) {
	return func(o *Options) {
		o.Gatherer = g
	}
}

// WithBearerToken protects the /v1 routes.
func WithBearerToken(token string) func(o *Options) {
	return func(o *Options) {
		o.BearerToken = token
	}
}
