package agent

import "github.com/hupe1980/reactmesh/internal/util"

// InstructionContext is the information available when resolving
// instructions for a THINK step.
type InstructionContext struct {
	AgentName   string
	Request     string
	Variables   map[string]any
	Interaction int
}

// Provider supplies dynamic instruction text at runtime.
type Provider interface {
	Instruction(InstructionContext) (string, error)
}

// Func is a functional adapter to allow ordinary functions to be used as Providers.
type Func func(InstructionContext) (string, error)

// Instruction implements Provider.
func (f Func) Instruction(ic InstructionContext) (string, error) { return f(ic) }

// Instruction represents either a static instruction string or a dynamic provider.
type Instruction struct {
	text     string
	provider Provider
}

// NewInstructionFromText creates an Instruction from a static string.
func NewInstructionFromText(text string) Instruction { return Instruction{text: text} }

// NewInstructionFromProvider creates an Instruction from a dynamic provider.
func NewInstructionFromProvider(p Provider) Instruction { return Instruction{provider: p} }

// NewInstructionFromFunc creates an Instruction from a function.
func NewInstructionFromFunc(f func(InstructionContext) (string, error)) Instruction {
	return Instruction{provider: Func(f)}
}

// NewInstructionFromTemplate creates an Instruction rendered with text/template
// against the run variables on every resolution. Text without template
// markers behaves like a static instruction.
func NewInstructionFromTemplate(text string) Instruction {
	return NewInstructionFromFunc(func(ic InstructionContext) (string, error) {
		vars := make(map[string]any, len(ic.Variables)+2)
		for k, v := range ic.Variables {
			vars[k] = v
		}
		vars["agent_name"] = ic.AgentName
		vars["request"] = ic.Request

		return util.RenderTemplate(text, vars)
	})
}

// IsStatic returns true if the instruction is backed by a static string.
func (i Instruction) IsStatic() bool { return i.provider == nil }

// Resolve returns the instruction text, invoking the provider if needed.
func (i Instruction) Resolve(ic InstructionContext) (string, error) {
	if i.provider != nil {
		return i.provider.Instruction(ic)
	}
	return i.text, nil
}
