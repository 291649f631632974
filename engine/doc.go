// Package engine implements the bounded ReAct orchestration loop.
//
// A run starts with a base agent and a request and moves through the states
// THINK, CHOOSE_TOOL, ACT and OBSERVE until the agent signals that the
// request is answered or the interaction budget is exhausted.
//
// # Loop
//
// Every cycle first checks the budget. When MaxInteractions cycles have been
// spent the run ends with OutcomeBudgetExhausted and an empty answer; this is
// a regular result, not an error. Otherwise the counter is incremented once
// and the cycle proceeds:
//
//   - THINK resolves the agent's instructions and asks the provider for free
//     text reasoning over the request, the agent's capabilities and the
//     conversation so far. Agents with an output schema produce their value
//     here and end the run with OutcomeStructured.
//   - CHOOSE_TOOL asks for a core.ToolChoice restricted to the capability
//     names plus "none". The rationale becomes an assistant turn.
//   - ACT hands off to a sub-agent, falls back to the base agent when no
//     capability was selected, or asks the provider for tool calls and
//     dispatches them sequentially. Handoff cycles skip OBSERVE.
//   - OBSERVE asks for a core.ReactEnd. Stop ends the run with
//     OutcomeCompleted.
//
// # Errors
//
// Only core.ErrProviderUnavailable and core.ErrProtocolViolation abort a
// run. Other provider failures degrade the step (an empty thought, no tool,
// no stop) and tool failures are folded into tool turns by the dispatcher.
// Context cancellation and callback errors are returned as is.
//
// # Usage
//
//	eng, err := engine.New(engine.DefaultConfig(provider),
//	    engine.WithLogger(logger),
//	    engine.WithRecorder(recorder),
//	)
//	if err != nil {
//	    return err
//	}
//
//	res, err := eng.Execute(ctx, baseAgent, "What is 7 plus 12?")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(res.Outcome, res.FinalAnswer)
//
// # Concurrency
//
// An Engine holds no per-run state and may execute runs concurrently. Each
// run owns its conversation memory and interaction counter; agent
// descriptors, registries and providers are shared read-only.
package engine
