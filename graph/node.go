package graph

import "context"

// NodeFunc is the unit of computation in a workflow graph.
//
// A node receives the current state and the run-scoped configuration and
// returns a partial state update, which the Executor merges through the
// graph's schema. Side effects (model calls, tool calls, memory store
// reads/writes) are permitted inside the function body, but the only state
// change a node may make is the partial it returns.
//
// A nil, empty partial is valid and means "no state change".
type NodeFunc func(ctx context.Context, state State, cfg RunConfig) (State, error)

// DefaultRecursionLimit bounds a run when the caller does not set one.
const DefaultRecursionLimit = 25

// RunConfig carries per-invocation metadata through a run.
//
// ThreadID groups all checkpoints belonging to one logical conversation.
// UserID is a caller-supplied opaque identifier consumed by memory-store
// nodes and tools; the engine itself never interprets it.
type RunConfig struct {
	ThreadID       string
	RecursionLimit int
	UserID         string

	// Extra holds additional caller-supplied opaque identifiers.
	Extra map[string]string
}

// limit returns the effective recursion limit.
func (c RunConfig) limit() int {
	if c.RecursionLimit > 0 {
		return c.RecursionLimit
	}
	return DefaultRecursionLimit
}

type configContextKey struct{}

// WithRunConfig returns a context carrying the run configuration. The
// Executor installs it before every node invocation so that tools, which do
// not receive RunConfig in their argument list, can still read run-scoped
// identifiers.
func WithRunConfig(ctx context.Context, cfg RunConfig) context.Context {
	return context.WithValue(ctx, configContextKey{}, cfg)
}

// RunConfigFromContext extracts the run configuration installed by the
// Executor. ok is false outside a run.
func RunConfigFromContext(ctx context.Context) (RunConfig, bool) {
	cfg, ok := ctx.Value(configContextKey{}).(RunConfig)
	return cfg, ok
}
