package core

import (
	"context"

	"github.com/hupe1980/reactmesh/logging"
)

// ToolContext is the scoped surface handed to a tool invocation. It exposes
// the cancellation context, the correlating call ID, the invoking agent and a
// logger pre-populated with those attributes.
type ToolContext struct {
	ctx            context.Context
	functionCallID string
	agentName      string
	runID          string
	logger         logging.Logger
}

// NewToolContext constructs a tool context for a single call.
func NewToolContext(ctx context.Context, runID, agentName, functionCallID string, logger logging.Logger) *ToolContext {
	if ctx == nil {
		ctx = context.Background()
	}

	if logger == nil {
		logger = logging.NoOpLogger{}
	}

	return &ToolContext{
		ctx:            ctx,
		functionCallID: functionCallID,
		agentName:      agentName,
		runID:          runID,
		logger:         logger,
	}
}

// Context returns the context associated with the tool invocation.
func (tc *ToolContext) Context() context.Context { return tc.ctx }

// FunctionCallID returns the function call ID associated with the tool invocation.
func (tc *ToolContext) FunctionCallID() string { return tc.functionCallID }

// AgentName returns the name of the agent that requested the call.
func (tc *ToolContext) AgentName() string { return tc.agentName }

// RunID returns the run the call belongs to.
func (tc *ToolContext) RunID() string { return tc.runID }

// Logger returns the logger associated with the tool invocation.
func (tc *ToolContext) Logger() logging.Logger { return tc.logger }

// LogInfo logs at info level with the call attributes attached.
func (tc *ToolContext) LogInfo(msg string, args ...any) {
	tc.logger.Info(msg, tc.attrs(args)...)
}

// LogError logs at error level with the call attributes attached.
func (tc *ToolContext) LogError(msg string, args ...any) {
	tc.logger.Error(msg, tc.attrs(args)...)
}

func (tc *ToolContext) attrs(args []any) []any {
	out := make([]any, 0, len(args)+6)
	out = append(out, "run_id", tc.runID, "agent", tc.agentName, "function_call_id", tc.functionCallID)
	return append(out, args...)
}

type runIDKey struct{}

// WithRunID returns a context carrying the run identifier.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

// RunIDFromContext extracts the run identifier set by WithRunID.
func RunIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}
