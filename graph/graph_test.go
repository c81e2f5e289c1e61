package graph

import (
	"context"
	"strings"
	"testing"
)

func noopNode(ctx context.Context, state State, cfg RunConfig) (State, error) {
	return nil, nil
}

func TestBuilder_Compile(t *testing.T) {
	t.Run("valid linear graph", func(t *testing.T) {
		g, err := NewBuilder(testSchema()).
			AddNode("a", noopNode).
			AddNode("b", noopNode).
			AddEdge("a", "b").
			AddEdge("b", End).
			SetEntryPoint("a").
			Compile()
		if err != nil {
			t.Fatalf("Compile() error: %v", err)
		}
		if g.Entry() != "a" {
			t.Errorf("expected entry a, got %q", g.Entry())
		}
		if !g.HasNode("b") {
			t.Errorf("expected node b to exist")
		}
	})

	t.Run("entry point not set", func(t *testing.T) {
		_, err := NewBuilder(nil).
			AddNode("a", noopNode).
			AddEdge("a", End).
			Compile()
		if err == nil || !strings.Contains(err.Error(), "entry point not set") {
			t.Errorf("expected entry point error, got %v", err)
		}
	})

	t.Run("entry point is not a node", func(t *testing.T) {
		_, err := NewBuilder(nil).
			AddNode("a", noopNode).
			AddEdge("a", End).
			SetEntryPoint("missing").
			Compile()
		if err == nil || !strings.Contains(err.Error(), "entry point") {
			t.Errorf("expected entry point error, got %v", err)
		}
	})

	t.Run("edge to unknown node", func(t *testing.T) {
		_, err := NewBuilder(nil).
			AddNode("a", noopNode).
			AddEdge("a", "ghost").
			SetEntryPoint("a").
			Compile()
		if err == nil || !strings.Contains(err.Error(), "unknown node") {
			t.Errorf("expected unknown node error, got %v", err)
		}
	})

	t.Run("conditional edge to unknown node", func(t *testing.T) {
		_, err := NewBuilder(nil).
			AddNode("a", noopNode).
			AddConditionalEdges("a", func(State) string { return "go" },
				map[string]string{"go": "ghost", "stop": End}).
			SetEntryPoint("a").
			Compile()
		if err == nil || !strings.Contains(err.Error(), "unknown node") {
			t.Errorf("expected unknown node error, got %v", err)
		}
	})

	t.Run("node with both static and conditional edges", func(t *testing.T) {
		_, err := NewBuilder(nil).
			AddNode("a", noopNode).
			AddNode("b", noopNode).
			AddEdge("a", "b").
			AddEdge("b", End).
			AddConditionalEdges("a", func(State) string { return "x" },
				map[string]string{"x": End}).
			SetEntryPoint("a").
			Compile()
		if err == nil || !strings.Contains(err.Error(), "both static and conditional") {
			t.Errorf("expected dual edge error, got %v", err)
		}
	})

	t.Run("end unreachable", func(t *testing.T) {
		_, err := NewBuilder(nil).
			AddNode("a", noopNode).
			AddNode("b", noopNode).
			AddEdge("a", "b").
			AddEdge("b", "a").
			SetEntryPoint("a").
			Compile()
		if err == nil || !strings.Contains(err.Error(), "unreachable") {
			t.Errorf("expected unreachable error, got %v", err)
		}
	})

	t.Run("cycle with an exit compiles", func(t *testing.T) {
		_, err := NewBuilder(nil).
			AddNode("a", noopNode).
			AddNode("b", noopNode).
			AddConditionalEdges("a", func(State) string { return "loop" },
				map[string]string{"loop": "b", "done": End}).
			AddEdge("b", "a").
			SetEntryPoint("a").
			Compile()
		if err != nil {
			t.Errorf("expected cycle with exit to compile, got %v", err)
		}
	})

	t.Run("duplicate node", func(t *testing.T) {
		_, err := NewBuilder(nil).
			AddNode("a", noopNode).
			AddNode("a", noopNode).
			AddEdge("a", End).
			SetEntryPoint("a").
			Compile()
		if err == nil || !strings.Contains(err.Error(), "duplicate node") {
			t.Errorf("expected duplicate node error, got %v", err)
		}
	})

	t.Run("reserved node name", func(t *testing.T) {
		_, err := NewBuilder(nil).
			AddNode(End, noopNode).
			SetEntryPoint(End).
			Compile()
		if err == nil || !strings.Contains(err.Error(), "invalid node name") {
			t.Errorf("expected invalid name error, got %v", err)
		}
	})
}

func TestGraph_Route(t *testing.T) {
	g := NewBuilder(nil).
		AddNode("a", noopNode).
		AddNode("b", noopNode).
		AddConditionalEdges("a", func(s State) string { return StringValue(s, "response") },
			map[string]string{"next": "b", "stop": End}).
		AddEdge("b", End).
		SetEntryPoint("a").
		MustCompile()

	t.Run("conditional routes through path map", func(t *testing.T) {
		next, err := g.route("a", State{"response": "next"})
		if err != nil {
			t.Fatalf("route() error: %v", err)
		}
		if next != "b" {
			t.Errorf("expected b, got %q", next)
		}
	})

	t.Run("unmapped decision value is a routing error", func(t *testing.T) {
		_, err := g.route("a", State{"response": "elsewhere"})
		routingErr, ok := err.(*RoutingError)
		if !ok {
			t.Fatalf("expected *RoutingError, got %v", err)
		}
		if routingErr.Node != "a" || routingErr.Value != "elsewhere" {
			t.Errorf("unexpected routing error: %v", routingErr)
		}
	})

	t.Run("static edge", func(t *testing.T) {
		next, err := g.route("b", State{})
		if err != nil {
			t.Fatalf("route() error: %v", err)
		}
		if next != End {
			t.Errorf("expected End, got %q", next)
		}
	})
}
