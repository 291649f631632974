package agent

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/reactmesh/core"
	"github.com/hupe1980/reactmesh/tool"
)

func echoTool(name string) tool.Tool {
	return tool.NewFunctionTool(name, "Echo "+name, nil, func(_ *core.ToolContext, args map[string]any) (any, error) {
		return args, nil
	})
}

func TestNew_Defaults(t *testing.T) {
	d, err := New("assistant")
	require.NoError(t, err)

	text, err := d.Instruction().Resolve(InstructionContext{})
	require.NoError(t, err)
	assert.Equal(t, "You are assistant, a helpful AI assistant.", text)
	assert.Empty(t, d.Capabilities())
	assert.Nil(t, d.OutputSchema())
	assert.False(t, d.AllowParallelToolCalls())
}

func TestNew_Validation(t *testing.T) {
	_, err := New("")
	assert.Error(t, err)

	_, err = New("a", WithTools(echoTool("x"), echoTool("x")))
	assert.ErrorContains(t, err, "duplicate capability")

	other := MustNew("x")
	_, err = New("a", WithTools(echoTool("x")), WithSubAgents(other))
	assert.ErrorContains(t, err, "duplicate capability")

	_, err = New("a", WithTools(echoTool(core.NoTool)))
	assert.ErrorContains(t, err, "reserved")

	assert.Panics(t, func() { MustNew("") })
}

func TestNew_NilCapabilities(t *testing.T) {
	assert.NotPanics(t, func() {
		_, err := New("a", WithTools(echoTool("x"), nil))
		assert.ErrorContains(t, err, "tool #1 is nil")

		_, err = New("a", WithSubAgents(nil))
		assert.ErrorContains(t, err, "sub-agent #0 is nil")
	})
}

func TestDescriptor_Capabilities(t *testing.T) {
	helper := MustNew("helper", WithDescription("Answers questions about people"))
	d := MustNew("router",
		WithModel("gpt-4o-mini"),
		WithTools(echoTool("date"), echoTool("calculator")),
		WithSubAgents(helper),
		WithParallelToolCalls(true),
	)

	assert.Equal(t, "gpt-4o-mini", d.Model())
	assert.Equal(t, []string{"date", "calculator", "helper"}, d.CapabilityNames())
	assert.Equal(t, []string{"date", "calculator"}, d.Tools().Names())
	assert.True(t, d.AllowParallelToolCalls())

	c, ok := d.Capability("helper")
	require.True(t, ok)
	assert.Equal(t, CapabilitySubAgent, c.Kind())
	assert.Equal(t, "Answers questions about people", c.Description())

	a, ok := c.Agent()
	require.True(t, ok)
	assert.Same(t, helper, a)

	_, isTool := c.Tool()
	assert.False(t, isTool)

	// returned slice is a copy
	caps := d.Capabilities()
	caps[0] = Capability{}
	assert.Equal(t, "date", d.Capabilities()[0].Name())
}

func TestLazySubAgent_Cycle(t *testing.T) {
	var a, b *Descriptor

	a = MustNew("a", WithCapabilities(NewLazySubAgent("b", "", func() *Descriptor { return b })))
	b = MustNew("b", WithCapabilities(NewLazySubAgent("a", "", func() *Descriptor { return a })))

	cb, _ := a.Capability("b")
	got, ok := cb.Agent()
	require.True(t, ok)
	assert.Same(t, b, got)
	assert.Equal(t, "Hand off to the b agent", cb.Description())

	ca, _ := got.Capability("a")
	back, ok := ca.Agent()
	require.True(t, ok)
	assert.Same(t, a, back)
}

func TestInstruction(t *testing.T) {
	static := NewInstructionFromText("static")
	assert.True(t, static.IsStatic())

	calls := 0
	dynamic := NewInstructionFromFunc(func(ic InstructionContext) (string, error) {
		calls++
		return "Help " + ic.Variables["user"].(string), nil
	})
	assert.False(t, dynamic.IsStatic())

	text, err := dynamic.Resolve(InstructionContext{Variables: map[string]any{"user": "ada"}})
	require.NoError(t, err)
	assert.Equal(t, "Help ada", text)
	assert.Equal(t, 1, calls)

	failing := NewInstructionFromFunc(func(InstructionContext) (string, error) { return "", errors.New("no vars") })
	_, err = failing.Resolve(InstructionContext{})
	assert.Error(t, err)
}

func TestInstructionFromTemplate(t *testing.T) {
	ins := NewInstructionFromTemplate("You are {{.agent_name}} helping {{.user}} with: {{.request}}")

	text, err := ins.Resolve(InstructionContext{AgentName: "support", Request: "billing", Variables: map[string]any{"user": "ada"}})
	require.NoError(t, err)
	assert.Equal(t, "You are support helping ada with: billing", text)
}

func TestRouter_Resolve(t *testing.T) {
	specialist := MustNew("specialist")
	base := MustNew("base", WithTools(echoTool("date")), WithSubAgents(specialist))
	r := NewRouter(base, nil)

	assert.Same(t, base, r.Base())

	// no tool falls back to the base agent
	assert.Same(t, base, r.Resolve(specialist, nil))

	// sub-agent selection hands off
	c, _ := base.Capability("specialist")
	assert.Same(t, specialist, r.Resolve(base, &c))

	// tool selection keeps the current agent
	toolCap, _ := base.Capability("date")
	assert.Same(t, base, r.Resolve(base, &toolCap))

	// selecting the active agent is a no-op
	self := NewSubAgent(base)
	assert.Same(t, base, r.Resolve(base, &self))

	// unresolvable lazy reference falls back to base
	dangling := NewLazySubAgent("ghost", "", func() *Descriptor { return nil })
	assert.Same(t, base, r.Resolve(specialist, &dangling))
}

func TestCapabilityKindString(t *testing.T) {
	assert.Equal(t, "tool", CapabilityTool.String())
	assert.Equal(t, "agent", CapabilitySubAgent.String())
	assert.Equal(t, "unknown", CapabilityKind(9).String())
}
