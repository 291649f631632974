// Package memory holds the run-local conversation memory of the orchestration
// loop. A Conversation is created per run, appended to by the loop and read by
// the completion provider; it is never shared between runs.
package memory
