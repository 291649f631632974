// Package agent defines the immutable agent descriptors driven by the
// orchestration loop and the handoff router that switches between them.
//
// The package focuses on three concerns:
//
//  1. Descriptors: name, opaque model identifier, instructions and an ordered
//     set of capabilities (tools or sub-agents), built with functional options
//  2. Instructions: a static text or a provider evaluated once per THINK step
//     against the run's variables
//  3. Handoff: a pure state transition selecting the next active agent
//
// Descriptors are validated at construction and never mutated afterwards, so
// a single descriptor graph may be shared by any number of concurrent runs.
// Sub-agent references may form cycles; use NewLazySubAgent to reference an
// agent that is constructed later.
package agent
