package core

import (
	"fmt"
	"sync"
)

// InteractionBudget bounds the number of THINK steps of a single run.
type InteractionBudget struct {
	max   int
	count int
	mu    sync.Mutex
}

// NewInteractionBudget creates a budget allowing max interactions. max must be
// positive; callers validate configuration before constructing a budget.
func NewInteractionBudget(max int) *InteractionBudget {
	return &InteractionBudget{max: max}
}

// Exhausted reports whether no further interaction may start.
func (b *InteractionBudget) Exhausted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.count >= b.max
}

// Spend consumes one interaction and returns an error if none is left.
func (b *InteractionBudget) Spend() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count >= b.max {
		return fmt.Errorf("interaction budget of %d exhausted", b.max)
	}

	b.count++

	return nil
}

// Count returns the number of interactions spent.
func (b *InteractionBudget) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.count
}

// Remaining returns how many interactions are left.
func (b *InteractionBudget) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.max - b.count
}
