package agent

import (
	"fmt"
	"sync"

	"github.com/hupe1980/reactmesh/tool"
)

// CapabilityKind discriminates the Capability variants.
type CapabilityKind int

const (
	// CapabilityTool is an invocable tool.
	CapabilityTool CapabilityKind = iota
	// CapabilitySubAgent is an agent control can be handed to.
	CapabilitySubAgent
)

// String returns the kind name.
func (k CapabilityKind) String() string {
	switch k {
	case CapabilityTool:
		return "tool"
	case CapabilitySubAgent:
		return "agent"
	default:
		return "unknown"
	}
}

// Capability is a tagged variant: either a tool or a sub-agent. The kind is
// fixed when the capability is created.
type Capability struct {
	kind        CapabilityKind
	name        string
	description string
	tool        tool.Tool
	agent       *lazyAgent
}

type lazyAgent struct {
	once     sync.Once
	resolve  func() *Descriptor
	resolved *Descriptor
}

func (l *lazyAgent) get() *Descriptor {
	l.once.Do(func() { l.resolved = l.resolve() })
	return l.resolved
}

// NewToolCapability wraps a tool.
func NewToolCapability(t tool.Tool) Capability {
	return Capability{kind: CapabilityTool, name: t.Name(), description: t.Description(), tool: t}
}

// NewSubAgent wraps an already constructed agent.
func NewSubAgent(d *Descriptor) Capability {
	return Capability{
		kind:        CapabilitySubAgent,
		name:        d.Name(),
		description: d.Description(),
		agent:       &lazyAgent{resolve: func() *Descriptor { return d }},
	}
}

// NewLazySubAgent references an agent by name that is resolved on first use.
// It allows agents to reference each other (including cycles).
func NewLazySubAgent(name, description string, resolve func() *Descriptor) Capability {
	return Capability{
		kind:        CapabilitySubAgent,
		name:        name,
		description: description,
		agent:       &lazyAgent{resolve: resolve},
	}
}

// Kind returns the variant.
func (c Capability) Kind() CapabilityKind { return c.kind }

// Name returns the name the model selects the capability by.
func (c Capability) Name() string { return c.name }

// Description returns the text shown to the model.
func (c Capability) Description() string {
	if c.description != "" {
		return c.description
	}

	if c.kind == CapabilitySubAgent {
		return fmt.Sprintf("Hand off to the %s agent", c.name)
	}

	return c.name
}

// Tool returns the wrapped tool for tool capabilities.
func (c Capability) Tool() (tool.Tool, bool) {
	return c.tool, c.kind == CapabilityTool && c.tool != nil
}

// Agent resolves the wrapped agent for sub-agent capabilities. It reports
// false when the reference cannot be resolved.
func (c Capability) Agent() (*Descriptor, bool) {
	if c.kind != CapabilitySubAgent || c.agent == nil {
		return nil, false
	}

	d := c.agent.get()

	return d, d != nil
}
