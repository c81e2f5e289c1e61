package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// InMemoryStore is a Store for tests and local development. Relevance is
// word overlap with the query, ties broken by insertion order.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries []inMemoryEntry
}

type inMemoryEntry struct {
	id      string
	ownerID string
	content string
}

// NewInMemoryStore creates an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

// Save implements Store.
func (s *InMemoryStore) Save(ctx context.Context, ownerID, content string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id := uuid.NewString()
	s.mu.Lock()
	s.entries = append(s.entries, inMemoryEntry{id: id, ownerID: ownerID, content: content})
	s.mu.Unlock()
	return id, nil
}

// Search implements Store.
func (s *InMemoryStore) Search(ctx context.Context, ownerID, query string, k int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, nil
	}

	queryWords := strings.Fields(strings.ToLower(query))

	s.mu.RLock()
	defer s.mu.RUnlock()

	type scored struct {
		content string
		score   int
		order   int
	}
	var matches []scored
	for i, entry := range s.entries {
		if entry.ownerID != ownerID {
			continue
		}
		matches = append(matches, scored{
			content: entry.content,
			score:   overlap(entry.content, queryWords),
			order:   i,
		})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].score != matches[j].score {
			return matches[i].score > matches[j].score
		}
		return matches[i].order < matches[j].order
	})

	if len(matches) > k {
		matches = matches[:k]
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.content)
	}
	return out, nil
}

// Ready implements Store.
func (s *InMemoryStore) Ready(ctx context.Context) error { return nil }

func overlap(content string, queryWords []string) int {
	lower := strings.ToLower(content)
	score := 0
	for _, w := range queryWords {
		if strings.Contains(lower, w) {
			score++
		}
	}
	return score
}
