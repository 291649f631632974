package tool

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/reactmesh/core"
	"github.com/hupe1980/reactmesh/internal/util"
)

// FunctionTool is a generic adapter that exposes a plain Go function as a tool.
//
// Responsibilities:
//   - Holds a lightweight JSON-Schema-like parameter specification (parameters)
//   - Coerces and validates supplied arguments against that schema before execution
//   - Invokes the wrapped function with a *core.ToolContext (logging, call ID, agent)
//   - Normalizes error handling so callers receive *ToolError with consistent kinds:
//     InvalidArguments  -> schema / argument mismatch
//     ExecutionFailure  -> underlying function returned an error (non-ToolError)
//     (kinds preserved if the function returns *ToolError directly)
//
// A FunctionTool has no internal mutable state after construction and is safe
// for concurrent use by multiple goroutines.
type FunctionTool struct {
	name        string
	description string
	parameters  map[string]any
	fn          func(toolCtx *core.ToolContext, args map[string]any) (any, error)
}

// NewFunctionTool constructs a FunctionTool from explicit schema and function.
//
// Example:
//
//	sumTool := NewFunctionTool(
//	  "calculate_sum",
//	  "Calculate the sum of two numbers",
//	  map[string]any{
//	    "type": "object",
//	    "properties": map[string]any{
//	      "a": map[string]any{"type": "number"},
//	      "b": map[string]any{"type": "number"},
//	    },
//	    "required": []string{"a", "b"},
//	  },
//	  func(tc *core.ToolContext, args map[string]any) (any, error) {
//	    return args["a"].(float64) + args["b"].(float64), nil
//	  },
//	)
func NewFunctionTool(
	name, description string,
	parameters map[string]any,
	fn func(toolCtx *core.ToolContext, args map[string]any) (any, error),
) *FunctionTool {
	if parameters == nil {
		parameters = map[string]any{"type": "object", "properties": map[string]any{}}
	}

	return &FunctionTool{
		name:        name,
		description: description,
		parameters:  parameters,
		fn:          fn,
	}
}

// NewFunctionToolFromStruct derives the parameter schema from a struct using reflection.
func NewFunctionToolFromStruct(
	name, description string,
	structType any,
	fn func(toolCtx *core.ToolContext, args map[string]any) (any, error),
) *FunctionTool {
	return NewFunctionTool(name, description, util.CreateSchema(structType), fn)
}

// NewTypedTool builds a tool whose arguments are decoded into Args. The
// parameter schema is derived from Args (json names, omitempty or pointer
// fields optional, description and enum tags).
//
// Example:
//
//	type SumArgs struct {
//	  A float64 `json:"a" description:"First addend"`
//	  B float64 `json:"b" description:"Second addend"`
//	}
//
//	sumTool := NewTypedTool("calculate_sum", "Calculate the sum of two numbers",
//	  func(tc *core.ToolContext, in SumArgs) (float64, error) { return in.A + in.B, nil })
func NewTypedTool[Args any, Out any](
	name, description string,
	fn func(toolCtx *core.ToolContext, args Args) (Out, error),
) *FunctionTool {
	var zero Args

	return NewFunctionTool(name, description, util.CreateSchema(zero), func(tc *core.ToolContext, raw map[string]any) (any, error) {
		var in Args

		b, err := json.Marshal(raw)
		if err != nil {
			return nil, NewToolError(core.ToolErrorInvalidArguments, name, "encode arguments", err)
		}

		if err := json.Unmarshal(b, &in); err != nil {
			return nil, NewToolError(core.ToolErrorInvalidArguments, name, fmt.Sprintf("decode arguments: %v", err), err)
		}

		return fn(tc, in)
	})
}

// Name returns the unique tool name used in function call declarations and routing.
func (t *FunctionTool) Name() string { return t.name }

// Description returns the short natural language description exposed to models.
func (t *FunctionTool) Description() string { return t.description }

// Parameters returns the (minimal) JSON schema describing expected arguments.
func (t *FunctionTool) Parameters() map[string]any { return t.parameters }

// Call coerces the provided args against the declared schema then invokes the
// underlying function.
//
// Error Semantics:
//
//	*ToolError (returned directly)  -> forwarded unchanged
//	validation failure              -> *ToolError{Kind: InvalidArguments}
//	other error                     -> *ToolError{Kind: ExecutionFailure}
func (t *FunctionTool) Call(toolCtx *core.ToolContext, args map[string]any) (any, error) {
	logger := toolCtx.Logger()
	start := time.Now()

	logger.Debug("tool.call.start", "tool", t.name, "fc_id", toolCtx.FunctionCallID())

	coerced, err := util.CoerceParameters(args, t.parameters)
	if err != nil {
		logger.Warn("tool.call.validation_failed", "tool", t.name, "error", err.Error())

		return nil, NewToolError(core.ToolErrorInvalidArguments, t.name, fmt.Sprintf("parameter validation failed: %v", err), err)
	}

	result, err := t.fn(toolCtx, coerced)
	if err != nil {
		var toolErr *ToolError
		if errors.As(err, &toolErr) {
			logger.Error("tool.call.error", "tool", t.name, "kind", string(toolErr.Kind), "error", toolErr.Message)

			return nil, toolErr
		}

		logger.Error("tool.call.error", "tool", t.name, "error", err.Error())

		return nil, NewToolError(core.ToolErrorExecutionFailure, t.name, err.Error(), err)
	}

	logger.Info("tool.call.success", "tool", t.name, "duration_ms", time.Since(start).Milliseconds())

	return result, nil
}
