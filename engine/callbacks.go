package engine

import (
	"context"
	"fmt"

	"github.com/hupe1980/reactmesh/core"
)

// CallbackType defines the lifecycle points of a run where callbacks are
// executed.
//
// Callbacks run synchronously on the run's goroutine. A callback returning an
// error aborts the run and the error is returned from Execute.
type CallbackType string

const (
	// CallbackBeforeStep is triggered before THINK, CHOOSE_TOOL, ACT and OBSERVE.
	CallbackBeforeStep CallbackType = "before_step"

	// CallbackAfterStep is triggered after a step appended its turns.
	CallbackAfterStep CallbackType = "after_step"

	// CallbackOnHandoff is triggered when the active agent changes or falls
	// back to the base agent.
	CallbackOnHandoff CallbackType = "on_handoff"

	// CallbackOnToolResult is triggered for every tool turn the dispatcher
	// produced, including classified failures.
	CallbackOnToolResult CallbackType = "on_tool_result"

	// CallbackOnFinish is triggered once the run reached DONE.
	CallbackOnFinish CallbackType = "on_finish"

	// CallbackOnError is triggered when a fatal error aborts the run. Errors
	// returned by these callbacks are ignored.
	CallbackOnError CallbackType = "on_error"
)

// CallbackContext carries the run information available to a callback.
type CallbackContext struct {
	// RunID identifies the run.
	RunID string

	// Agent is the name of the active agent.
	Agent string

	// Step is the loop state the callback fires for. Empty for run level
	// callbacks.
	Step Step

	// Interaction is the current value of the interaction counter.
	Interaction int

	// Turns holds the turns appended by the step (after-step and tool
	// result callbacks).
	Turns []core.Turn

	// Target is the agent control is handed to (handoff callbacks).
	Target string

	// Result is set for finish callbacks.
	Result *RunResult

	// Err is set for error callbacks.
	Err error

	// CallbackType indicates which callback type triggered this execution.
	CallbackType CallbackType
}

// Callback defines the interface for run lifecycle hooks.
type Callback interface {
	// Type returns the callback type this implementation handles.
	Type() CallbackType

	// Execute performs the callback logic. Returning an error aborts the run.
	Execute(ctx context.Context, callbackCtx *CallbackContext) error
}

// FunctionCallback wraps a function as a callback implementation.
//
// Example:
//
//	cb := NewFunctionCallback(CallbackAfterStep, func(ctx context.Context, cc *CallbackContext) error {
//	    log.Printf("%s finished %s", cc.Agent, cc.Step)
//	    return nil
//	})
type FunctionCallback struct {
	callbackType CallbackType
	fn           func(ctx context.Context, callbackCtx *CallbackContext) error
}

// NewFunctionCallback creates a new function-based callback.
func NewFunctionCallback(
	callbackType CallbackType,
	fn func(ctx context.Context, callbackCtx *CallbackContext) error,
) *FunctionCallback {
	return &FunctionCallback{
		callbackType: callbackType,
		fn:           fn,
	}
}

// Type returns the callback type this function handles.
func (c *FunctionCallback) Type() CallbackType {
	return c.callbackType
}

// Execute calls the wrapped function with the provided context.
func (c *FunctionCallback) Execute(ctx context.Context, callbackCtx *CallbackContext) error {
	return c.fn(ctx, callbackCtx)
}

// CallbackManager routes callbacks by type.
//
// Callbacks are executed in registration order, and the first error stops
// the remaining callbacks. Register all callbacks before the manager is
// handed to an engine; execution is then safe for concurrent runs.
type CallbackManager struct {
	callbacks map[CallbackType][]Callback
}

// NewCallbackManager creates a new callback manager instance.
func NewCallbackManager(callbacks ...Callback) *CallbackManager {
	cm := &CallbackManager{
		callbacks: make(map[CallbackType][]Callback),
	}

	for _, cb := range callbacks {
		cm.RegisterCallback(cb)
	}

	return cm
}

// RegisterCallback adds a callback to the manager for its type.
func (cm *CallbackManager) RegisterCallback(callback Callback) {
	callbackType := callback.Type()
	cm.callbacks[callbackType] = append(cm.callbacks[callbackType], callback)
}

// Len returns the number of registered callbacks.
func (cm *CallbackManager) Len() int {
	n := 0
	for _, cbs := range cm.callbacks {
		n += len(cbs)
	}
	return n
}

// ExecuteCallbacks executes all registered callbacks for the specified type.
func (cm *CallbackManager) ExecuteCallbacks(
	ctx context.Context,
	callbackType CallbackType,
	callbackCtx *CallbackContext,
) error {
	if cm == nil {
		return nil
	}

	callbacks, exists := cm.callbacks[callbackType]
	if !exists {
		return nil
	}

	callbackCtx.CallbackType = callbackType

	for _, callback := range callbacks {
		if err := callback.Execute(ctx, callbackCtx); err != nil {
			return fmt.Errorf("%s callback: %w", callbackType, err)
		}
	}

	return nil
}

// LoggingCallback forwards a one line description of each event to a
// logging function.
//
// Example:
//
//	callback := NewLoggingCallback(CallbackAfterStep, func(msg string) { log.Print(msg) })
type LoggingCallback struct {
	callbackType CallbackType
	logger       func(message string)
}

// NewLoggingCallback creates a new logging callback.
func NewLoggingCallback(callbackType CallbackType, logger func(message string)) *LoggingCallback {
	return &LoggingCallback{
		callbackType: callbackType,
		logger:       logger,
	}
}

// Type returns the callback type this logger handles.
func (c *LoggingCallback) Type() CallbackType {
	return c.callbackType
}

// Execute logs the event. Without a logger function it silently succeeds.
func (c *LoggingCallback) Execute(ctx context.Context, callbackCtx *CallbackContext) error {
	if c.logger == nil {
		return nil
	}

	message := fmt.Sprintf("[%s] run=%s agent=%s step=%s interaction=%d turns=%d",
		c.callbackType, callbackCtx.RunID, callbackCtx.Agent, callbackCtx.Step,
		callbackCtx.Interaction, len(callbackCtx.Turns))

	if callbackCtx.Target != "" {
		message += " target=" + callbackCtx.Target
	}

	c.logger(message)

	return nil
}

// ToolGuardCallback inspects tool results and aborts the run when the guard
// rejects one, for example to stop on repeated execution failures.
//
// Example:
//
//	guard := NewToolGuardCallback(func(t core.Turn) error {
//	    if t.ToolError != nil && t.ToolError.Kind == core.ToolErrorExecutionFailure {
//	        return fmt.Errorf("tool %s failed", t.ToolName)
//	    }
//	    return nil
//	})
type ToolGuardCallback struct {
	guard func(turn core.Turn) error
}

// NewToolGuardCallback creates a new tool guard callback.
func NewToolGuardCallback(guard func(turn core.Turn) error) *ToolGuardCallback {
	return &ToolGuardCallback{guard: guard}
}

// Type returns CallbackOnToolResult.
func (c *ToolGuardCallback) Type() CallbackType {
	return CallbackOnToolResult
}

// Execute applies the guard to every tool turn.
func (c *ToolGuardCallback) Execute(ctx context.Context, callbackCtx *CallbackContext) error {
	if c.guard == nil {
		return nil
	}

	for _, t := range callbackCtx.Turns {
		if err := c.guard(t); err != nil {
			return err
		}
	}

	return nil
}
