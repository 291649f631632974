package builtin

import (
	"errors"
	"fmt"

	"github.com/hupe1980/reactmesh/core"
	"github.com/hupe1980/reactmesh/tool"
)

// CalculatorArgs are the calculator parameters.
type CalculatorArgs struct {
	Operation string  `json:"operation" enum:"add,subtract,multiply,divide" description:"The arithmetic operation"`
	A         float64 `json:"a" description:"First operand"`
	B         float64 `json:"b" description:"Second operand"`
}

// ErrDivisionByZero is returned for a division by zero.
var ErrDivisionByZero = errors.New("division by zero")

// Calculate applies the operation.
func Calculate(in CalculatorArgs) (float64, error) {
	switch in.Operation {
	case "add":
		return in.A + in.B, nil
	case "subtract":
		return in.A - in.B, nil
	case "multiply":
		return in.A * in.B, nil
	case "divide":
		if in.B == 0 {
			return 0, ErrDivisionByZero
		}
		return in.A / in.B, nil
	default:
		return 0, fmt.Errorf("invalid operation %q", in.Operation)
	}
}

// NewCalculator returns the calculator tool.
func NewCalculator() tool.Tool {
	return tool.NewTypedTool("calculator", "Use this tool to perform calculations.",
		func(_ *core.ToolContext, in CalculatorArgs) (float64, error) {
			return Calculate(in)
		})
}
