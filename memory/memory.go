// Package memory provides long-term memory storage for agents: free-form
// text snippets saved per owner and recalled by semantic search.
package memory

import (
	"context"
	"fmt"
	"time"
)

// Store persists and recalls memories. Every memory belongs to exactly one
// owner; Search never returns another owner's memories.
type Store interface {
	// Save stores one memory for the owner and returns its id.
	Save(ctx context.Context, ownerID, content string) (string, error)

	// Search returns up to k memories for the owner, most relevant first.
	// Fewer than k stored memories is not an error.
	Search(ctx context.Context, ownerID, query string, k int) ([]string, error)

	// Ready reports whether the backend can serve searches. Embedded
	// backends are always ready; remote ones may index asynchronously.
	Ready(ctx context.Context) error
}

// WaitReady polls the store until it is ready, an attempt budget runs out,
// or the context is canceled. The interval between attempts is fixed.
func WaitReady(ctx context.Context, s Store, attempts int, interval time.Duration) error {
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		if err := s.Ready(ctx); err == nil {
			return nil
		} else {
			lastErr = err
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
	return fmt.Errorf("memory store not ready after %d attempts: %w", attempts, lastErr)
}
