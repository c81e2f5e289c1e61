package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/philippgille/chromem-go"
)

// ChromemStore is an embedded vector-backed Store built on chromem-go.
//
// Memories live in a single collection with an owner_id metadata field;
// Search filters on it so owners stay isolated. With no PersistPath the
// store is memory-only, which is what tests use.
type ChromemStore struct {
	db  *chromem.DB
	col *chromem.Collection
	mu  sync.Mutex
}

// ChromemConfig configures the chromem store.
type ChromemConfig struct {
	// PersistPath enables gob file persistence. Empty means in-memory.
	PersistPath string

	// Compress gzips the persisted file.
	Compress bool

	// Embedding computes document and query vectors. Nil selects
	// chromem's default (OpenAI text-embedding-3-small via
	// OPENAI_API_KEY).
	Embedding chromem.EmbeddingFunc
}

// NewChromemStore opens (or creates) the memory collection.
func NewChromemStore(cfg ChromemConfig) (*ChromemStore, error) {
	var db *chromem.DB
	var err error
	if cfg.PersistPath != "" {
		db, err = chromem.NewPersistentDB(cfg.PersistPath, cfg.Compress)
		if err != nil {
			return nil, fmt.Errorf("open persistent vector db: %w", err)
		}
	} else {
		db = chromem.NewDB()
	}

	embedding := cfg.Embedding
	if embedding == nil {
		embedding = chromem.NewEmbeddingFuncDefault()
	}
	col, err := db.GetOrCreateCollection("memories", nil, embedding)
	if err != nil {
		return nil, fmt.Errorf("open memories collection: %w", err)
	}
	return &ChromemStore{db: db, col: col}, nil
}

// Save implements Store.
func (s *ChromemStore) Save(ctx context.Context, ownerID, content string) (string, error) {
	if ownerID == "" {
		return "", fmt.Errorf("memory save: owner id required")
	}
	id := uuid.NewString()
	doc := chromem.Document{
		ID:       id,
		Content:  content,
		Metadata: map[string]string{"owner_id": ownerID},
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.col.AddDocuments(ctx, []chromem.Document{doc}, 1); err != nil {
		return "", fmt.Errorf("add memory: %w", err)
	}
	return id, nil
}

// Search implements Store. k is clamped to the number of stored documents;
// chromem rejects queries asking for more results than exist.
func (s *ChromemStore) Search(ctx context.Context, ownerID, query string, k int) ([]string, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("memory search: owner id required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if count := s.col.Count(); count < k {
		k = count
	}
	if k <= 0 {
		return nil, nil
	}

	results, err := s.col.Query(ctx, query, k, map[string]string{"owner_id": ownerID}, nil)
	if err != nil {
		return nil, fmt.Errorf("query memories: %w", err)
	}
	out := make([]string, 0, len(results))
	for _, res := range results {
		out = append(out, res.Content)
	}
	return out, nil
}

// Ready implements Store. The embedded store is always ready.
func (s *ChromemStore) Ready(ctx context.Context) error { return nil }
