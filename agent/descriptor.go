package agent

import (
	"errors"
	"fmt"

	"github.com/hupe1980/reactmesh/core"
	"github.com/hupe1980/reactmesh/internal/util"
	"github.com/hupe1980/reactmesh/tool"
)

// OutputSchema declares a structured final output for an agent.
type OutputSchema struct {
	Name       string
	Definition map[string]any
}

// NewOutputSchema derives an OutputSchema from a Go struct.
func NewOutputSchema(name string, structType any) *OutputSchema {
	return &OutputSchema{Name: name, Definition: util.CreateSchema(structType)}
}

// Options configures a Descriptor.
//
// Use functional options with New to override defaults.
type Options struct {
	Description            string
	Model                  string
	Instruction            Instruction
	Capabilities           []Capability
	OutputSchema           *OutputSchema
	AllowParallelToolCalls bool

	errs []error
}

// Descriptor is an immutable agent definition.
type Descriptor struct {
	name         string
	description  string
	model        string
	instruction  Instruction
	capabilities []Capability
	byName       map[string]int
	tools        *tool.Registry
	outputSchema *OutputSchema
	parallel     bool
}

// New creates an agent descriptor.
//
// The agent is initialized with:
//   - a default instruction "You are <name>, a helpful AI assistant."
//   - no capabilities
//   - sequential tool calls
//
// Construction fails for an empty name, empty or duplicate capability names
// and capabilities named like the reserved no-tool choice.
func New(name string, optFns ...func(o *Options)) (*Descriptor, error) {
	if name == "" {
		return nil, fmt.Errorf("agent name must not be empty")
	}

	opts := Options{
		Instruction: NewInstructionFromText(fmt.Sprintf("You are %s, a helpful AI assistant.", name)),
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if err := errors.Join(opts.errs...); err != nil {
		return nil, fmt.Errorf("agent %q: %w", name, err)
	}

	d := &Descriptor{
		name:         name,
		description:  opts.Description,
		model:        opts.Model,
		instruction:  opts.Instruction,
		capabilities: make([]Capability, 0, len(opts.Capabilities)),
		byName:       make(map[string]int, len(opts.Capabilities)),
		outputSchema: opts.OutputSchema,
		parallel:     opts.AllowParallelToolCalls,
	}

	registry, err := tool.NewRegistry()
	if err != nil {
		return nil, err
	}

	for _, c := range opts.Capabilities {
		if c.name == "" {
			return nil, fmt.Errorf("agent %q: capability name must not be empty", name)
		}

		if c.name == core.NoTool {
			return nil, fmt.Errorf("agent %q: capability name %q is reserved", name, core.NoTool)
		}

		if _, dup := d.byName[c.name]; dup {
			return nil, fmt.Errorf("agent %q: duplicate capability name %q", name, c.name)
		}

		if t, ok := c.Tool(); ok {
			if err := registry.Register(t); err != nil {
				return nil, fmt.Errorf("agent %q: %w", name, err)
			}
		}

		d.byName[c.name] = len(d.capabilities)
		d.capabilities = append(d.capabilities, c)
	}

	d.tools = registry

	return d, nil
}

// MustNew is like New but panics on error. Intended for package level
// declarations and examples.
func MustNew(name string, optFns ...func(o *Options)) *Descriptor {
	d, err := New(name, optFns...)
	if err != nil {
		panic(err)
	}
	return d
}

// Name returns the agent's unique name.
func (d *Descriptor) Name() string { return d.name }

// Description returns the text shown when the agent is offered as a sub-agent.
func (d *Descriptor) Description() string { return d.description }

// Model returns the opaque model identifier ("" means provider default).
func (d *Descriptor) Model() string { return d.model }

// Instruction returns the agent's instruction.
func (d *Descriptor) Instruction() Instruction { return d.instruction }

// OutputSchema returns the declared structured output, if any.
func (d *Descriptor) OutputSchema() *OutputSchema { return d.outputSchema }

// AllowParallelToolCalls reports whether the provider may return several tool
// calls in one ACT step.
func (d *Descriptor) AllowParallelToolCalls() bool { return d.parallel }

// Capabilities returns the capabilities in declaration order.
func (d *Descriptor) Capabilities() []Capability {
	return append([]Capability(nil), d.capabilities...)
}

// Capability looks up a capability by name.
func (d *Descriptor) Capability(name string) (Capability, bool) {
	i, ok := d.byName[name]
	if !ok {
		return Capability{}, false
	}
	return d.capabilities[i], true
}

// CapabilityNames returns capability names in declaration order.
func (d *Descriptor) CapabilityNames() []string {
	names := make([]string, 0, len(d.capabilities))
	for _, c := range d.capabilities {
		names = append(names, c.name)
	}
	return names
}

// Tools returns the registry of the agent's tool capabilities.
func (d *Descriptor) Tools() *tool.Registry { return d.tools }

// WithDescription sets the agent description.
func WithDescription(desc string) func(o *Options) {
	return func(o *Options) { o.Description = desc }
}

// WithModel sets the opaque model identifier.
func WithModel(model string) func(o *Options) {
	return func(o *Options) { o.Model = model }
}

// WithInstruction sets a static instruction.
func WithInstruction(text string) func(o *Options) {
	return func(o *Options) { o.Instruction = NewInstructionFromText(text) }
}

// WithInstructionFunc sets a dynamic instruction.
func WithInstructionFunc(fn func(InstructionContext) (string, error)) func(o *Options) {
	return func(o *Options) { o.Instruction = NewInstructionFromFunc(fn) }
}

// WithTools appends tool capabilities.
func WithTools(tools ...tool.Tool) func(o *Options) {
	return func(o *Options) {
		for i, t := range tools {
			if t == nil {
				o.errs = append(o.errs, fmt.Errorf("tool #%d is nil", i))
				continue
			}
			o.Capabilities = append(o.Capabilities, NewToolCapability(t))
		}
	}
}

// WithSubAgents appends sub-agent capabilities.
func WithSubAgents(agents ...*Descriptor) func(o *Options) {
	return func(o *Options) {
		for i, a := range agents {
			if a == nil {
				o.errs = append(o.errs, fmt.Errorf("sub-agent #%d is nil", i))
				continue
			}
			o.Capabilities = append(o.Capabilities, NewSubAgent(a))
		}
	}
}

// WithCapabilities appends arbitrary capabilities.
func WithCapabilities(caps ...Capability) func(o *Options) {
	return func(o *Options) { o.Capabilities = append(o.Capabilities, caps...) }
}

// WithOutputSchema declares a structured output derived from structType.
func WithOutputSchema(name string, structType any) func(o *Options) {
	return func(o *Options) { o.OutputSchema = NewOutputSchema(name, structType) }
}

// WithParallelToolCalls allows several tool calls per ACT step.
func WithParallelToolCalls(allow bool) func(o *Options) {
	return func(o *Options) { o.AllowParallelToolCalls = allow }
}
