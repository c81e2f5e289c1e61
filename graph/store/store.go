// Package store provides checkpoint persistence for workflow runs.
//
// A checkpoint is a snapshot of run state keyed by (thread, step). Threads
// group every checkpoint belonging to one logical conversation; steps are
// monotonically increasing per thread and assigned solely by the Executor.
// History is append-only: once written, a (thread, step) entry is never
// rewritten, so resuming a thread or branching from its history is always
// reading immutable data.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a thread has no checkpoints.
var ErrNotFound = errors.New("not found")

// ErrDuplicateStep is returned by PutStep for a (thread, step) pair that
// already exists. Steps are append-only; a duplicate write indicates two
// runs racing on the same thread, which callers must not do.
var ErrDuplicateStep = errors.New("duplicate step")

// StepRecord is one persisted checkpoint: the state after a node completed.
type StepRecord struct {
	Step int
	// Node is the name of the node whose output produced this state.
	Node  string
	State map[string]any
}

// Store persists checkpoints. Backing media are pluggable (in-memory for
// tests and short-lived runs, SQLite or MySQL for durable threads) and the
// engine depends only on this contract.
//
// Implementations must support concurrent appends on distinct threads
// without cross-thread interference. They are not required to arbitrate
// concurrent writers to the same thread.
type Store interface {
	// PutStep appends a checkpoint. Returns ErrDuplicateStep if the
	// (thread, step) pair already exists.
	PutStep(ctx context.Context, threadID string, step int, node string, state map[string]any) error

	// Latest returns the checkpoint with the highest step for a thread,
	// or ErrNotFound if the thread has none. The latest step is the
	// thread's resumption point.
	Latest(ctx context.Context, threadID string) (StepRecord, error)

	// History returns all checkpoints for a thread in ascending step
	// order. An unknown thread yields an empty slice, not an error.
	History(ctx context.Context, threadID string) ([]StepRecord, error)
}
