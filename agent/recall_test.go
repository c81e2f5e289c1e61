package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/ashwin-gangadhar-mdb/maap-agent-builder/graph"
	"github.com/ashwin-gangadhar-mdb/maap-agent-builder/graph/model"
	"github.com/ashwin-gangadhar-mdb/maap-agent-builder/graph/store"
	"github.com/ashwin-gangadhar-mdb/maap-agent-builder/memory"
)

type failingMemory struct{}

func (failingMemory) Save(context.Context, string, string) (string, error) {
	return "", errors.New("backend down")
}
func (failingMemory) Search(context.Context, string, string, int) ([]string, error) {
	return nil, errors.New("backend down")
}
func (failingMemory) Ready(context.Context) error { return errors.New("backend down") }

func TestLongTermMemoryGraph(t *testing.T) {
	t.Run("requires model and memory store", func(t *testing.T) {
		if _, err := NewLongTermMemoryGraph(Options{Model: &model.MockChatModel{}}); err == nil {
			t.Errorf("expected an error without a memory store")
		}
		if _, err := NewLongTermMemoryGraph(Options{Memory: memory.NewInMemoryStore()}); err == nil {
			t.Errorf("expected an error without a model")
		}
	})

	t.Run("missing user id fails before any model call", func(t *testing.T) {
		m := &model.MockChatModel{Responses: []model.ChatOut{{Text: "hi"}}}
		g, err := NewLongTermMemoryGraph(Options{Model: m, Memory: memory.NewInMemoryStore()})
		if err != nil {
			t.Fatalf("NewLongTermMemoryGraph() error: %v", err)
		}
		exec, _ := graph.NewExecutor(g, store.NewMemStore())
		_, err = exec.Run(context.Background(), graph.State{
			"messages": []model.Message{{Role: model.RoleUser, Content: "hello"}},
		}, graph.RunConfig{ThreadID: "t1"})

		var ctxErr *graph.MissingContextError
		if !errors.As(err, &ctxErr) {
			t.Fatalf("expected *MissingContextError, got %v", err)
		}
		if ctxErr.Key != "user_id" {
			t.Errorf("expected key user_id, got %q", ctxErr.Key)
		}
		if m.CallCount() != 0 {
			t.Errorf("expected no model calls, got %d", m.CallCount())
		}
	})

	t.Run("recalled memories appear in the system prompt", func(t *testing.T) {
		mem := memory.NewInMemoryStore()
		ctx := context.Background()
		if _, err := mem.Save(ctx, "u1", "The user's dog is called Piper."); err != nil {
			t.Fatalf("Save() error: %v", err)
		}

		m := &model.MockChatModel{Responses: []model.ChatOut{{Text: "Piper, of course."}}}
		g, _ := NewLongTermMemoryGraph(Options{Model: m, Memory: mem})
		final := runAgentGraph(t, g, graph.State{
			"messages": []model.Message{{Role: model.RoleUser, Content: "what is my dog called?"}},
		}, graph.RunConfig{UserID: "u1"})

		sent := m.Calls[0].Messages
		if sent[0].Role != model.RoleSystem {
			t.Fatalf("expected a system message first, got %+v", sent[0])
		}
		if !strings.Contains(sent[0].Content, "<recall_memory>") ||
			!strings.Contains(sent[0].Content, "Piper") {
			t.Errorf("expected the recalled memory inside the recall block")
		}
		if strings.Contains(sent[0].Content, "%RECALL%") {
			t.Errorf("recall placeholder was not substituted")
		}

		msgs := stateMessages(t, final)
		if msgs[len(msgs)-1].Content != "Piper, of course." {
			t.Errorf("unexpected final message: %+v", msgs[len(msgs)-1])
		}
	})

	t.Run("memories are scoped to the run's user", func(t *testing.T) {
		mem := memory.NewInMemoryStore()
		ctx := context.Background()
		mustSave := func(owner, content string) {
			if _, err := mem.Save(ctx, owner, content); err != nil {
				t.Fatalf("Save() error: %v", err)
			}
		}
		mustSave("alice", "favorite color is green")
		mustSave("bob", "favorite color is red")

		m := &model.MockChatModel{Responses: []model.ChatOut{{Text: "noted"}}}
		g, _ := NewLongTermMemoryGraph(Options{Model: m, Memory: mem})
		runAgentGraph(t, g, graph.State{
			"messages": []model.Message{{Role: model.RoleUser, Content: "what is my favorite color?"}},
		}, graph.RunConfig{UserID: "alice"})

		system := m.Calls[0].Messages[0].Content
		if !strings.Contains(system, "green") {
			t.Errorf("expected alice's memory recalled")
		}
		if strings.Contains(system, "red") {
			t.Errorf("bob's memory leaked into alice's recall block")
		}
	})

	t.Run("search failure degrades in-band", func(t *testing.T) {
		m := &model.MockChatModel{Responses: []model.ChatOut{{Text: "hello"}}}
		g, _ := NewLongTermMemoryGraph(Options{Model: m, Memory: failingMemory{}})
		final := runAgentGraph(t, g, graph.State{
			"messages": []model.Message{{Role: model.RoleUser, Content: "hi"}},
		}, graph.RunConfig{UserID: "u1"})

		var recall []string
		if err := graph.Decode(final, "recall_memories", &recall); err != nil {
			t.Fatalf("Decode() error: %v", err)
		}
		if len(recall) != 1 || recall[0] != "No relevant memories found." {
			t.Errorf("expected the degraded recall entry, got %v", recall)
		}
		system := m.Calls[0].Messages[0].Content
		if !strings.Contains(system, "No relevant memories found.") {
			t.Errorf("expected the degraded entry in the prompt")
		}
	})

	t.Run("model can save a memory through the tool", func(t *testing.T) {
		mem := memory.NewInMemoryStore()
		m := &model.MockChatModel{Responses: []model.ChatOut{
			{ToolCalls: []model.ToolCall{{
				ID:    "c1",
				Name:  "save_recall_memory",
				Input: map[string]any{"content": "the user plays the cello"},
			}}},
			{Text: "I will remember that."},
		}}
		g, _ := NewLongTermMemoryGraph(Options{Model: m, Memory: mem})
		runAgentGraph(t, g, graph.State{
			"messages": []model.Message{{Role: model.RoleUser, Content: "I play the cello"}},
		}, graph.RunConfig{UserID: "u1"})

		saved, err := mem.Search(context.Background(), "u1", "cello", 1)
		if err != nil {
			t.Fatalf("Search() error: %v", err)
		}
		if len(saved) != 1 || !strings.Contains(saved[0], "cello") {
			t.Errorf("expected the memory persisted, got %v", saved)
		}
	})

	t.Run("recall respects the configured k", func(t *testing.T) {
		mem := memory.NewInMemoryStore()
		ctx := context.Background()
		for i := 0; i < 5; i++ {
			if _, err := mem.Save(ctx, "u1", fmt.Sprintf("apple fact %d", i)); err != nil {
				t.Fatalf("Save() error: %v", err)
			}
		}
		m := &model.MockChatModel{Responses: []model.ChatOut{{Text: "ok"}}}
		g, _ := NewLongTermMemoryGraph(Options{Model: m, Memory: mem, RecallK: 2})
		final := runAgentGraph(t, g, graph.State{
			"messages": []model.Message{{Role: model.RoleUser, Content: "apple"}},
		}, graph.RunConfig{UserID: "u1"})

		var recall []string
		if err := graph.Decode(final, "recall_memories", &recall); err != nil {
			t.Fatalf("Decode() error: %v", err)
		}
		if len(recall) != 2 {
			t.Errorf("expected 2 recalled memories, got %d", len(recall))
		}
	})
}
