// Package model defines the provider-agnostic completion contract used by the
// orchestration loop, plus helpers shared by the vendor adapters.
//
// Core goals:
//   - One blocking call (Provider.Complete) returning a discriminated Response:
//     free text, tool calls or a schema-constrained structured value
//   - Normalized tool definitions and tool call requests (core.ToolCallRequest)
//   - Uniform error classification (StatusError) so the loop can tell fatal
//     provider failures from retryable or degradable ones
//
// Vendor adapters live in sub-packages (openai, anthropic, openaicompat,
// ollama, gemini); model/retry decorates any Provider with backoff.
package model
