// Package graph provides the stateful workflow execution engine: schema'd
// state with field-level merge policies, nodes, static and conditional
// edges, a compiling graph builder, and a checkpointing run loop.
package graph

import "fmt"

// SchemaError reports a reference to a state field that the graph's schema
// does not declare, or a value that violates the field's merge policy.
// Schema violations are fatal and never retried.
type SchemaError struct {
	Field  string
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("schema violation: field %q: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("schema violation: unknown state field %q", e.Field)
}

// RoutingError reports a conditional edge whose decision function returned
// a value with no entry in the edge's path map, or a node with no outgoing
// route at all. Routing errors are fatal.
type RoutingError struct {
	Node  string
	Value string
}

func (e *RoutingError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("routing error: no route out of node %q", e.Node)
	}
	return fmt.Sprintf("routing error: node %q returned unmapped value %q", e.Node, e.Value)
}

// RecursionLimitError is the distinguished outcome of a run that hit its
// recursion limit before reaching End. It is reported to the caller, not
// swallowed; the thread's checkpoints are intact, so the caller may resume
// with a higher limit.
type RecursionLimitError struct {
	Limit    int
	ThreadID string
	LastStep int
}

func (e *RecursionLimitError) Error() string {
	return fmt.Sprintf("recursion limit %d exceeded on thread %q (last checkpoint step %d)",
		e.Limit, e.ThreadID, e.LastStep)
}

// NodeError wraps a failure raised inside a node's function. The run aborts,
// but the last successfully checkpointed step is preserved so the thread
// can be resumed rather than restarted.
type NodeError struct {
	Node string
	Step int
	// LastCheckpoint is the step index of the last persisted checkpoint,
	// or -1 when the run failed before its first checkpoint.
	LastCheckpoint int
	Err            error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("node %q failed at step %d (last checkpoint %d): %v",
		e.Node, e.Step, e.LastCheckpoint, e.Err)
}

// Unwrap returns the underlying node failure.
func (e *NodeError) Unwrap() error { return e.Err }

// MissingContextError reports run-scoped configuration that a node or tool
// required but the caller did not supply (e.g. memory tools invoked without
// a user identifier). Surfaced immediately, never silently defaulted.
type MissingContextError struct {
	Key string
}

func (e *MissingContextError) Error() string {
	return fmt.Sprintf("missing run context: %q is required", e.Key)
}
