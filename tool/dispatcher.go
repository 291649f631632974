package tool

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/hupe1980/reactmesh/core"
	"github.com/hupe1980/reactmesh/internal/util"
	"github.com/hupe1980/reactmesh/logging"
	"github.com/hupe1980/reactmesh/metrics"
)

// DispatcherOptions configures a Dispatcher.
type DispatcherOptions struct {
	Logger   logging.Logger
	Recorder metrics.Recorder
	// CallTimeout bounds a single tool invocation. Zero means no deadline
	// beyond the caller's context.
	CallTimeout time.Duration
}

// Dispatcher validates tool call requests and invokes the registered tool.
//
// Dispatch never returns an error: every failure is classified into a
// core.ToolError and returned as a tool turn so the agent can react to it.
type Dispatcher struct {
	logger      logging.Logger
	recorder    metrics.Recorder
	callTimeout time.Duration
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(optFns ...func(o *DispatcherOptions)) *Dispatcher {
	opts := DispatcherOptions{
		Logger:   logging.NoOpLogger{},
		Recorder: metrics.NoOp{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Dispatcher{
		logger:      opts.Logger,
		recorder:    opts.Recorder,
		callTimeout: opts.CallTimeout,
	}
}

// Dispatch resolves req against registry, validates its arguments and invokes
// the tool. The returned turn is linked to the request by ToolCallID.
func (d *Dispatcher) Dispatch(ctx context.Context, agentName string, req core.ToolCallRequest, registry Lookup) core.Turn {
	start := time.Now()

	if req.ID == "" {
		req.ID = core.NewID()
	}

	result, toolErr := d.invoke(ctx, agentName, req, registry)

	status := "ok"
	if toolErr != nil {
		status = string(toolErr.Kind)

		d.logger.Warn("tool.dispatch.error",
			"agent", agentName,
			"tool", req.ToolName,
			"fc_id", req.ID,
			"kind", status,
			"error", toolErr.Message,
		)
	} else {
		d.logger.Debug("tool.dispatch.success", "agent", agentName, "tool", req.ToolName, "fc_id", req.ID)
	}

	d.recorder.ToolDispatched(req.ToolName, status, time.Since(start))

	if toolErr != nil {
		return core.NewToolErrorTurn(agentName, req, toolErr)
	}

	return core.NewToolResultTurn(agentName, req, result)
}

func (d *Dispatcher) invoke(ctx context.Context, agentName string, req core.ToolCallRequest, registry Lookup) (string, *ToolError) {
	var (
		t  Tool
		ok bool
	)

	if registry != nil {
		t, ok = registry.Lookup(req.ToolName)
	}

	if !ok {
		return "", NewToolError(core.ToolErrorUnknownTool, req.ToolName, fmt.Sprintf("tool %q is not registered for agent %q", req.ToolName, agentName), nil)
	}

	args, err := ParseArguments(req.RawArguments)
	if err != nil {
		return "", NewToolError(core.ToolErrorInvalidArguments, req.ToolName, err.Error(), err)
	}

	args, err = util.CoerceParameters(args, t.Parameters())
	if err != nil {
		return "", NewToolError(core.ToolErrorInvalidArguments, req.ToolName, err.Error(), err)
	}

	if d.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.callTimeout)
		defer cancel()
	}

	toolCtx := core.NewToolContext(ctx, core.RunIDFromContext(ctx), agentName, req.ID, d.logger)

	out, err := d.safeCall(t, toolCtx, args)
	if err != nil {
		var te *ToolError
		if errors.As(err, &te) {
			return "", te
		}

		return "", NewToolError(core.ToolErrorExecutionFailure, req.ToolName, err.Error(), err)
	}

	text, err := FormatResult(out)
	if err != nil {
		return "", NewToolError(core.ToolErrorExecutionFailure, req.ToolName, err.Error(), err)
	}

	return text, nil
}

// safeCall invokes the tool and converts a panic into an ExecutionFailure.
func (d *Dispatcher) safeCall(t Tool, tc *core.ToolContext, args map[string]any) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("tool.dispatch.panic", "tool", t.Name(), "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
			err = NewToolError(core.ToolErrorExecutionFailure, t.Name(), fmt.Sprintf("tool panicked: %v", r), nil)
		}
	}()

	return t.Call(tc, args)
}

// WithDispatcherLogger sets the dispatcher logger.
func WithDispatcherLogger(l logging.Logger) func(o *DispatcherOptions) {
	return func(o *DispatcherOptions) {
		if l != nil {
			o.Logger = l
		}
	}
}

// WithDispatcherRecorder sets the metrics recorder.
func WithDispatcherRecorder(r metrics.Recorder) func(o *DispatcherOptions) {
	return func(o *DispatcherOptions) {
		if r != nil {
			o.Recorder = r
		}
	}
}

// WithCallTimeout bounds individual tool invocations.
func WithCallTimeout(d time.Duration) func(o *DispatcherOptions) {
	return func(o *DispatcherOptions) { o.CallTimeout = d }
}
