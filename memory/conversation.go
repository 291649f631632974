package memory

import (
	"fmt"
	"strings"
	"sync"

	"github.com/hupe1980/reactmesh/core"
)

// Conversation is an append-only, ordered sequence of turns plus the run
// variables available to dynamic instructions.
//
// Concurrency: protected by RWMutex so callbacks may read while the loop
// appends. Turns are stored by value and never modified after Append.
type Conversation struct {
	mu    sync.RWMutex
	turns []core.Turn
	vars  map[string]any
}

// NewConversation creates a conversation seeded with optional run variables.
func NewConversation(vars map[string]any) *Conversation {
	c := &Conversation{vars: make(map[string]any, len(vars))}
	for k, v := range vars {
		c.vars[k] = v
	}
	return c
}

// Append adds turns at the end of the conversation.
func (c *Conversation) Append(turns ...core.Turn) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.turns = append(c.turns, turns...)
}

// Turns returns a copy of all turns in append order.
func (c *Conversation) Turns() []core.Turn {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]core.Turn, len(c.turns))
	copy(out, c.turns)
	return out
}

// Since returns a copy of the turns appended after the first n.
func (c *Conversation) Since(n int) []core.Turn {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if n >= len(c.turns) {
		return nil
	}

	if n < 0 {
		n = 0
	}

	out := make([]core.Turn, len(c.turns)-n)
	copy(out, c.turns[n:])
	return out
}

// Len returns the number of turns.
func (c *Conversation) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.turns)
}

// Last returns the most recent turn.
func (c *Conversation) Last() (core.Turn, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.turns) == 0 {
		return core.Turn{}, false
	}
	return c.turns[len(c.turns)-1], true
}

// Variables returns a shallow copy of the run variables.
func (c *Conversation) Variables() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]any, len(c.vars))
	for k, v := range c.vars {
		out[k] = v
	}
	return out
}

// Put merges delta into the run variables.
func (c *Conversation) Put(delta map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for k, v := range delta {
		c.vars[k] = v
	}
}

// Recall renders the conversation as role prefixed lines, the textual form
// used by providers that replay memory inside a single prompt.
func (c *Conversation) Recall() string {
	return Render(c.Turns())
}

// Render formats turns as role prefixed lines.
func Render(turns []core.Turn) string {
	var b strings.Builder

	for i, t := range turns {
		if i > 0 {
			b.WriteByte('\n')
		}

		switch {
		case len(t.ToolCalls) > 0:
			calls := make([]string, 0, len(t.ToolCalls))
			for _, tc := range t.ToolCalls {
				calls = append(calls, fmt.Sprintf("%s(%s)", tc.ToolName, tc.RawArguments))
			}
			fmt.Fprintf(&b, "%s: calling %s", t.Role, strings.Join(calls, ", "))
		case t.Role == core.RoleTool:
			fmt.Fprintf(&b, "%s[%s]: %s", t.Role, t.ToolName, t.Content)
		default:
			fmt.Fprintf(&b, "%s: %s", t.Role, t.Content)
		}
	}

	return b.String()
}
