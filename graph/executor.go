package graph

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ashwin-gangadhar-mdb/maap-agent-builder/graph/emit"
	"github.com/ashwin-gangadhar-mdb/maap-agent-builder/graph/store"
)

// Executor walks a compiled graph from its entry node, applying nodes,
// merging their partial updates through the schema, persisting a checkpoint
// after every application, and routing until the End sentinel or the
// recursion limit.
//
// One run executes on a single logical thread of control: a node's external
// calls are awaited to completion before the executor advances. Multiple
// runs on distinct thread identifiers may share one Executor concurrently;
// the Executor itself holds no cross-run mutable state. Callers must not
// start a run for a thread while a prior run on the same thread is in
// flight; the checkpoint store does not arbitrate same-thread writers.
type Executor struct {
	graph   *Graph
	store   store.Store
	emitter emit.Emitter
	metrics *Metrics
	name    string
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithEmitter installs an observability emitter (default: discard).
func WithEmitter(em emit.Emitter) ExecutorOption {
	return func(e *Executor) {
		if em != nil {
			e.emitter = em
		}
	}
}

// WithMetrics installs Prometheus metrics (default: none).
func WithMetrics(m *Metrics) ExecutorOption {
	return func(e *Executor) { e.metrics = m }
}

// WithName sets the graph name used in events and metric labels.
func WithName(name string) ExecutorOption {
	return func(e *Executor) {
		if name != "" {
			e.name = name
		}
	}
}

// NewExecutor creates an Executor over a compiled graph and a checkpoint
// store. The store is required: every step is persisted before routing.
func NewExecutor(g *Graph, st store.Store, opts ...ExecutorOption) (*Executor, error) {
	if g == nil {
		return nil, fmt.Errorf("executor: graph is required")
	}
	if st == nil {
		return nil, fmt.Errorf("executor: checkpoint store is required")
	}
	e := &Executor{
		graph:   g,
		store:   st,
		emitter: emit.NewNullEmitter(),
		name:    "workflow",
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Run executes the graph to completion for one thread.
//
// The initial state is the schema defaults with the caller input merged on
// top. If the thread already has checkpoints (a prior turn of the same
// conversation, or an aborted run), step numbering continues after the
// latest persisted step so history stays append-only.
//
// Returns the final state, or: a *RecursionLimitError when the iteration
// cap is reached; a *NodeError naming the failing node, step, and last
// good checkpoint for any failure inside the loop; a *SchemaError (wrapped)
// when the caller input references undeclared fields.
func (e *Executor) Run(ctx context.Context, input State, cfg RunConfig) (State, error) {
	state, err := e.graph.schema.Init(input)
	if err != nil {
		return nil, err
	}
	startStep := 0
	if rec, err := e.store.Latest(ctx, cfg.ThreadID); err == nil {
		startStep = rec.Step + 1
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("load latest checkpoint: %w", err)
	}
	e.emitter.Emit(emit.Event{ThreadID: cfg.ThreadID, Step: startStep - 1, Msg: "run_start",
		Meta: map[string]any{"graph": e.name, "entry": e.graph.entry}})
	return e.loop(ctx, state, e.graph.entry, startStep, cfg)
}

// Resume continues a thread from its latest checkpoint.
//
// The restored state is routed from the checkpointed node. Decisions are
// pure functions of state, so replay takes the same edge the original run
// would have. If the route is already End, the restored state is returned
// as final without executing anything.
func (e *Executor) Resume(ctx context.Context, cfg RunConfig) (State, error) {
	rec, err := e.store.Latest(ctx, cfg.ThreadID)
	if err != nil {
		return nil, fmt.Errorf("resume thread %q: %w", cfg.ThreadID, err)
	}
	state := State(rec.State)
	next, err := e.graph.route(rec.Node, state)
	if err != nil {
		return nil, err
	}
	e.emitter.Emit(emit.Event{ThreadID: cfg.ThreadID, Step: rec.Step, Node: rec.Node, Msg: "run_resume",
		Meta: map[string]any{"graph": e.name, "next": next}})
	if next == End {
		return state, nil
	}
	return e.loop(ctx, state, next, rec.Step+1, cfg)
}

// LatestState returns the most recently checkpointed state for a thread,
// or store.ErrNotFound when the thread has none. Serving layers use it to
// carry conversation history into the next turn's input.
func (e *Executor) LatestState(ctx context.Context, threadID string) (State, error) {
	rec, err := e.store.Latest(ctx, threadID)
	if err != nil {
		return nil, err
	}
	return State(rec.State), nil
}

// RunWithTimeout bounds the whole run by a wall-clock deadline. Because
// node bodies are the only blocking points, cancellation takes effect at
// node-call granularity: a deadline cannot interrupt a single external
// call unless that call honors its context.
func (e *Executor) RunWithTimeout(ctx context.Context, timeout time.Duration, input State, cfg RunConfig) (State, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return e.Run(ctx, input, cfg)
}

// loop is the run loop shared by Run and Resume. checkpointStep is the
// absolute step index assigned to the first node application; the recursion
// limit counts applications within this invocation only.
func (e *Executor) loop(ctx context.Context, state State, node string, checkpointStep int, cfg RunConfig) (State, error) {
	limit := cfg.limit()
	lastCheckpoint := checkpointStep - 1

	for applied := 0; ; applied++ {
		if node == End {
			e.emitter.Emit(emit.Event{ThreadID: cfg.ThreadID, Step: lastCheckpoint, Msg: "run_end",
				Meta: map[string]any{"graph": e.name}})
			e.metrics.observeRun(e.name, "ok")
			return state, nil
		}
		if applied >= limit {
			e.metrics.observeRun(e.name, "recursion_limit")
			return nil, &RecursionLimitError{Limit: limit, ThreadID: cfg.ThreadID, LastStep: lastCheckpoint}
		}
		if err := ctx.Err(); err != nil {
			e.metrics.observeRun(e.name, "canceled")
			return nil, e.fail(cfg, node, checkpointStep, lastCheckpoint, err)
		}

		fn, ok := e.graph.nodes[node]
		if !ok {
			// Unreachable after Compile; guards a hand-built Graph.
			e.metrics.observeRun(e.name, "routing_error")
			return nil, &RoutingError{Node: node}
		}

		start := time.Now()
		partial, err := fn(WithRunConfig(ctx, cfg), state, cfg)
		e.metrics.observeStep(e.name, node, time.Since(start), err)
		if err != nil {
			e.metrics.observeRun(e.name, "node_error")
			return nil, e.fail(cfg, node, checkpointStep, lastCheckpoint, err)
		}

		state, err = e.graph.schema.Apply(state, partial)
		if err != nil {
			e.metrics.observeRun(e.name, "schema_error")
			return nil, e.fail(cfg, node, checkpointStep, lastCheckpoint, err)
		}

		if err := e.store.PutStep(ctx, cfg.ThreadID, checkpointStep, node, state); err != nil {
			e.metrics.observeRun(e.name, "store_error")
			return nil, e.fail(cfg, node, checkpointStep, lastCheckpoint, fmt.Errorf("persist checkpoint: %w", err))
		}
		lastCheckpoint = checkpointStep
		e.metrics.observeCheckpoint(e.name)
		e.emitter.Emit(emit.Event{ThreadID: cfg.ThreadID, Step: checkpointStep, Node: node, Msg: "node_end",
			Meta: map[string]any{"duration_ms": time.Since(start).Milliseconds()}})

		next, err := e.graph.route(node, state)
		if err != nil {
			e.metrics.observeRun(e.name, "routing_error")
			return nil, e.fail(cfg, node, checkpointStep, lastCheckpoint, err)
		}
		node = next
		checkpointStep++
	}
}

// fail wraps a loop failure with the failing node, the step it failed at,
// and the last good checkpoint, and emits a run_error event. The underlying
// error stays reachable through errors.Is/As.
func (e *Executor) fail(cfg RunConfig, node string, step, lastCheckpoint int, err error) error {
	e.emitter.Emit(emit.Event{ThreadID: cfg.ThreadID, Step: step, Node: node, Msg: "run_error",
		Meta: map[string]any{"error": err.Error(), "last_checkpoint": lastCheckpoint}})
	return &NodeError{Node: node, Step: step, LastCheckpoint: lastCheckpoint, Err: err}
}
