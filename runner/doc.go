// Package runner tracks runs executed on an engine.
//
// A Runner assigns run IDs, executes runs synchronously (Run) or in the
// background (Start), stores a Record per run and cancels in-flight runs by
// ID. Records live in a Store; InMemoryStore keeps a bounded number of them
// in process memory.
package runner
