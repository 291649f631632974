// Package core provides the foundational domain types shared by every layer of
// reactmesh. It defines:
//
//   - Turns (immutable system / user / assistant / tool records of a run)
//   - Tool call requests and their classified failures (ToolError)
//   - The structured signals exchanged with providers (ToolChoice, ReactEnd)
//   - The fatal error taxonomy of the orchestration loop
//   - The interaction budget bounding a run
//   - ToolContext (scoped execution context handed to tools)
//
// The package intentionally keeps implementation concerns (providers, agents,
// the loop itself) out of scope so that every other package can depend on it
// without creating cycles.
package core
