package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// MemStore is an in-memory Store.
//
// Designed for tests, development, and short-lived workflows where
// persistence beyond the process is not required. Snapshots are deep-copied
// through a JSON round-trip on both write and read, so a stored checkpoint
// can never be mutated by later changes to the live state. That matches
// the isolation a durable backend gives for free.
//
// Thread-safe; appends on distinct threads do not interfere.
type MemStore struct {
	mu      sync.RWMutex
	threads map[string]map[int]StepRecord
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{threads: make(map[string]map[int]StepRecord)}
}

// PutStep appends a checkpoint, rejecting duplicate (thread, step) pairs.
func (m *MemStore) PutStep(_ context.Context, threadID string, step int, node string, state map[string]any) error {
	snapshot, err := snapshotState(state)
	if err != nil {
		return fmt.Errorf("snapshot state: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	steps, ok := m.threads[threadID]
	if !ok {
		steps = make(map[int]StepRecord)
		m.threads[threadID] = steps
	}
	if _, exists := steps[step]; exists {
		return fmt.Errorf("thread %q step %d: %w", threadID, step, ErrDuplicateStep)
	}
	steps[step] = StepRecord{Step: step, Node: node, State: snapshot}
	return nil
}

// Latest returns the highest-step checkpoint for the thread.
func (m *MemStore) Latest(_ context.Context, threadID string) (StepRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	steps, ok := m.threads[threadID]
	if !ok || len(steps) == 0 {
		return StepRecord{}, ErrNotFound
	}
	best := -1
	for step := range steps {
		if step > best {
			best = step
		}
	}
	rec := steps[best]
	snapshot, err := snapshotState(rec.State)
	if err != nil {
		return StepRecord{}, fmt.Errorf("snapshot state: %w", err)
	}
	rec.State = snapshot
	return rec, nil
}

// History returns the thread's checkpoints in ascending step order.
func (m *MemStore) History(_ context.Context, threadID string) ([]StepRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	steps := m.threads[threadID]
	records := make([]StepRecord, 0, len(steps))
	for _, rec := range steps {
		snapshot, err := snapshotState(rec.State)
		if err != nil {
			return nil, fmt.Errorf("snapshot state: %w", err)
		}
		rec.State = snapshot
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Step < records[j].Step })
	return records, nil
}

// snapshotState deep-copies a state map via JSON. This matches what the
// durable stores do on disk, so state values behave identically across
// backends: typed slices come back as []any, integers as float64.
func snapshotState(state map[string]any) (map[string]any, error) {
	data, err := json.Marshal(state)
	if err != nil {
		return nil, err
	}
	var copied map[string]any
	if err := json.Unmarshal(data, &copied); err != nil {
		return nil, err
	}
	return copied, nil
}
