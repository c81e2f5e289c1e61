package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/ashwin-gangadhar-mdb/maap-agent-builder/graph"
)

// DefaultSearchK is how many memories search_recall_memories recalls per query.
const DefaultSearchK = 4

// SaveTool exposes Store.Save as the save_recall_memory tool. The owner is the
// user id carried on the run config; a run without one fails fast with
// *graph.MissingContextError.
type SaveTool struct {
	store Store
}

// NewSaveTool creates the save_recall_memory tool.
func NewSaveTool(store Store) *SaveTool { return &SaveTool{store: store} }

// Name implements tool.Tool.
func (t *SaveTool) Name() string { return "save_recall_memory" }

// Description implements tool.Tool.
func (t *SaveTool) Description() string {
	return "Save a memory about the user for future conversations. Use when the user shares lasting facts or preferences."
}

// Schema implements tool.Tool.
func (t *SaveTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"content": map[string]any{
				"type":        "string",
				"description": "The memory to store, phrased as a standalone fact",
			},
		},
		"required": []string{"content"},
	}
}

// Call implements tool.Tool.
func (t *SaveTool) Call(ctx context.Context, input map[string]any) (string, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return "", err
	}
	content, _ := input["content"].(string)
	if content == "" {
		return "", fmt.Errorf("content parameter required (string)")
	}
	id, err := t.store.Save(ctx, userID, content)
	if err != nil {
		return "", fmt.Errorf("save memory: %w", err)
	}
	return fmt.Sprintf("Saved memory %s", id), nil
}

// SearchTool exposes Store.Search as the search_recall_memories tool, scoped to the
// run's user id.
type SearchTool struct {
	store Store
	k     int
}

// NewSearchTool creates the search_recall_memories tool. k <= 0 selects
// DefaultSearchK.
func NewSearchTool(store Store, k int) *SearchTool {
	if k <= 0 {
		k = DefaultSearchK
	}
	return &SearchTool{store: store, k: k}
}

// Name implements tool.Tool.
func (t *SearchTool) Name() string { return "search_recall_memories" }

// Description implements tool.Tool.
func (t *SearchTool) Description() string {
	return "Search stored memories about the user. Use before answering questions that may depend on earlier conversations."
}

// Schema implements tool.Tool.
func (t *SearchTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "What to look for",
			},
		},
		"required": []string{"query"},
	}
}

// Call implements tool.Tool.
func (t *SearchTool) Call(ctx context.Context, input map[string]any) (string, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return "", err
	}
	query, _ := input["query"].(string)
	if query == "" {
		return "", fmt.Errorf("query parameter required (string)")
	}
	memories, err := t.store.Search(ctx, userID, query, t.k)
	if err != nil {
		return "", fmt.Errorf("search memories: %w", err)
	}
	if len(memories) == 0 {
		return "No memories found.", nil
	}
	return strings.Join(memories, "\n"), nil
}

func userIDFromContext(ctx context.Context) (string, error) {
	cfg, ok := graph.RunConfigFromContext(ctx)
	if !ok || cfg.UserID == "" {
		return "", &graph.MissingContextError{Key: "user_id"}
	}
	return cfg.UserID, nil
}
