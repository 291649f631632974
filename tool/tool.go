// Package tool implements the tool calling subsystem that lets agents invoke
// structured capabilities (APIs, computations, side effects) with schema
// validated arguments, classified failures and metadata for model guidance.
package tool

import (
	"github.com/hupe1980/reactmesh/core"
	"github.com/hupe1980/reactmesh/internal/util"
)

// Tool defines the interface for extending agent capabilities with external functions.
//
// Tools are registered on agent descriptors. The dispatcher parses and
// coerces the model supplied arguments against Parameters before Call is
// invoked, so implementations receive values of the declared JSON types
// (string, float64, int64, bool, []any, map[string]any).
//
// Tool implementations should:
//   - Provide clear, descriptive names and descriptions
//   - Define proper JSON schema for parameters
//   - Return errors instead of panicking
//   - Be safe for concurrent use; a registry is shared by concurrent runs
type Tool interface {
	// Name returns the unique identifier for this tool.
	// Names should be descriptive and follow function naming conventions (snake_case recommended).
	Name() string

	// Description returns a human-readable description of what this tool does.
	// This description is provided to the LLM to help it understand when and how to use the tool.
	Description() string

	// Parameters returns a JSON schema describing the expected input format.
	// This schema is used for parameter validation and LLM function calling.
	Parameters() map[string]any

	// Call executes the tool with structured arguments and ToolContext.
	Call(toolCtx *core.ToolContext, args map[string]any) (any, error)
}

// ValidationError represents parameter validation errors with detailed information.
type ValidationError = util.ValidationError

// ToolError represents a classified tool failure.
type ToolError = core.ToolError

// NewToolError creates a new ToolError with the specified details.
func NewToolError(kind core.ToolErrorKind, tool, message string, cause error) *ToolError {
	return core.NewToolError(kind, tool, message, cause)
}
