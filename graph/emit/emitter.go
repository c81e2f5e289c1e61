// Package emit provides pluggable observability for workflow execution.
// The Executor emits one event per lifecycle point (run start, node
// completion, checkpoint write, run end, failure); emitters forward them to
// a backend without ever failing the run.
package emit

// Event is one observability record from a workflow run.
type Event struct {
	// ThreadID identifies the logical conversation the run belongs to.
	ThreadID string

	// Step is the checkpoint step index the event refers to; -1 for
	// run-level events that precede the first step.
	Step int

	// Node names the node the event refers to; empty for run-level events.
	Node string

	// Msg is a short machine-stable event name ("run_start", "node_end",
	// "checkpoint", "run_end", "run_error").
	Msg string

	// Meta carries event-specific structured data such as durations or
	// error text.
	Meta map[string]any
}

// Emitter receives events from the Executor.
//
// Implementations must be safe for concurrent use (multiple runs share one
// emitter), must not block the run loop on slow backends, and must not
// panic; a broken observability backend never breaks a workflow.
type Emitter interface {
	Emit(event Event)
}
