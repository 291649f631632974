// Package logging provides a minimal logging interface and adapters for reactmesh.
//
// The Logger interface defines the structured logging methods (Debug, Info,
// Warn, Error) that the engine, the dispatcher and the provider adapters use
// for observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging (json or text handlers)
//   - ZerologAdapter wrapping rs/zerolog (console output for the CLI)
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	eng := engine.New(engine.WithLogger(logger))
//
// Log messages are dotted event names ("engine.think.start") followed by
// key/value pairs.
package logging
