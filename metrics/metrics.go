// Package metrics records orchestration metrics. The Recorder interface is
// consumed by the engine and the tool dispatcher; Prometheus backs the
// default implementation.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder receives orchestration measurements.
type Recorder interface {
	// RunFinished records a completed run with its outcome and duration.
	RunFinished(agent, outcome string, interactions int, d time.Duration)
	// StepObserved records one loop state execution (think, choose_tool, act, observe).
	StepObserved(agent, step string, d time.Duration)
	// ProviderCall records a completion provider call; status is "ok" or an error class.
	ProviderCall(provider, status string, d time.Duration)
	// ToolDispatched records a tool dispatch; status is "ok" or a tool error kind.
	ToolDispatched(tool, status string, d time.Duration)
	// Handoff records a change of active agent.
	Handoff(from, to string)
}

// NoOp discards all measurements.
type NoOp struct{}

// RunFinished implements Recorder.
func (NoOp) RunFinished(string, string, int, time.Duration) {}

// StepObserved implements Recorder.
func (NoOp) StepObserved(string, string, time.Duration) {}

// ProviderCall implements Recorder.
func (NoOp) ProviderCall(string, string, time.Duration) {}

// ToolDispatched implements Recorder.
func (NoOp) ToolDispatched(string, string, time.Duration) {}

// Handoff implements Recorder.
func (NoOp) Handoff(string, string) {}

// Prometheus implements Recorder with Prometheus collectors.
type Prometheus struct {
	runs         *prometheus.CounterVec
	runDuration  *prometheus.HistogramVec
	interactions *prometheus.HistogramVec
	steps        *prometheus.HistogramVec
	providers    *prometheus.HistogramVec
	tools        *prometheus.HistogramVec
	handoffs     *prometheus.CounterVec
}

// NewPrometheus creates the collectors and registers them with reg. A nil reg
// registers nothing, which is convenient for tests that inspect collectors
// directly.
func NewPrometheus(namespace string, reg prometheus.Registerer) (*Prometheus, error) {
	if namespace == "" {
		namespace = "reactmesh"
	}

	p := &Prometheus{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Completed orchestration runs by terminating agent and outcome.",
		}, []string{"agent", "outcome"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall clock duration of orchestration runs.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"outcome"}),
		interactions: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_interactions",
			Help:      "THINK steps consumed per run.",
			Buckets:   prometheus.LinearBuckets(1, 1, 10),
		}, []string{"outcome"}),
		steps: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Duration of individual loop states.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"agent", "step"}),
		providers: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_call_duration_seconds",
			Help:      "Completion provider call latency by status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider", "status"}),
		tools: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_dispatch_duration_seconds",
			Help:      "Tool dispatch latency by tool and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tool", "status"}),
		handoffs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handoffs_total",
			Help:      "Changes of the active agent.",
		}, []string{"from", "to"}),
	}

	if reg != nil {
		for _, c := range p.collectors() {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}

	return p, nil
}

func (p *Prometheus) collectors() []prometheus.Collector {
	return []prometheus.Collector{p.runs, p.runDuration, p.interactions, p.steps, p.providers, p.tools, p.handoffs}
}

// RunFinished implements Recorder.
func (p *Prometheus) RunFinished(agent, outcome string, interactions int, d time.Duration) {
	p.runs.WithLabelValues(agent, outcome).Inc()
	p.runDuration.WithLabelValues(outcome).Observe(d.Seconds())
	p.interactions.WithLabelValues(outcome).Observe(float64(interactions))
}

// StepObserved implements Recorder.
func (p *Prometheus) StepObserved(agent, step string, d time.Duration) {
	p.steps.WithLabelValues(agent, step).Observe(d.Seconds())
}

// ProviderCall implements Recorder.
func (p *Prometheus) ProviderCall(provider, status string, d time.Duration) {
	p.providers.WithLabelValues(provider, status).Observe(d.Seconds())
}

// ToolDispatched implements Recorder.
func (p *Prometheus) ToolDispatched(tool, status string, d time.Duration) {
	p.tools.WithLabelValues(tool, status).Observe(d.Seconds())
}

// Handoff implements Recorder.
func (p *Prometheus) Handoff(from, to string) {
	p.handoffs.WithLabelValues(from, to).Inc()
}
