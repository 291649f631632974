package testutil

import "github.com/hupe1980/reactmesh/core"

// TurnBuilder provides a fluent helper for constructing conversations in
// tests.
//
//	turns := NewTurnBuilder("math").User("7+12?").Call("calculator", `{"a":7}`).Result("19").Build()
type TurnBuilder struct {
	sender string
	turns  []core.Turn
	last   *core.ToolCallRequest
}

// NewTurnBuilder creates a builder attributing assistant and tool turns to
// sender.
func NewTurnBuilder(sender string) *TurnBuilder { return &TurnBuilder{sender: sender} }

// User appends a user turn (chainable).
func (b *TurnBuilder) User(text string) *TurnBuilder {
	b.turns = append(b.turns, core.NewUserTurn(text))
	return b
}

// Assistant appends an assistant turn (chainable).
func (b *TurnBuilder) Assistant(text string) *TurnBuilder {
	b.turns = append(b.turns, core.NewAssistantTurn(b.sender, text))
	return b
}

// Call appends an assistant turn requesting one tool call (chainable).
func (b *TurnBuilder) Call(toolName, rawArguments string) *TurnBuilder {
	req := core.ToolCallRequest{ID: core.NewID(), ToolName: toolName, RawArguments: rawArguments}
	b.last = &req
	b.turns = append(b.turns, core.NewToolCallTurn(b.sender, []core.ToolCallRequest{req}))
	return b
}

// Result appends the result of the last requested call (chainable).
func (b *TurnBuilder) Result(content string) *TurnBuilder {
	b.turns = append(b.turns, core.NewToolResultTurn(b.sender, b.lastCall(), content))
	return b
}

// Failure appends a classified failure of the last requested call (chainable).
func (b *TurnBuilder) Failure(kind core.ToolErrorKind, message string) *TurnBuilder {
	req := b.lastCall()
	b.turns = append(b.turns, core.NewToolErrorTurn(b.sender, req, core.NewToolError(kind, req.ToolName, message, nil)))
	return b
}

func (b *TurnBuilder) lastCall() core.ToolCallRequest {
	if b.last == nil {
		return core.ToolCallRequest{ID: core.NewID()}
	}
	return *b.last
}

// Build returns the turns in append order.
func (b *TurnBuilder) Build() []core.Turn {
	return append([]core.Turn(nil), b.turns...)
}
