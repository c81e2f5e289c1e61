package graph

import (
	"errors"
	"reflect"
	"testing"
)

func testSchema() *Schema {
	return NewSchema().
		AddField("messages", Field{Policy: Append, Default: func() any { return []string{} }}).
		AddField("response", Field{Policy: Overwrite, Default: func() any { return "" }}).
		AddField("count", Field{Policy: Overwrite, Default: func() any { return 0 }})
}

func TestSchema_Init(t *testing.T) {
	t.Run("defaults only", func(t *testing.T) {
		state, err := testSchema().Init(nil)
		if err != nil {
			t.Fatalf("Init() error: %v", err)
		}
		if got := state["response"]; got != "" {
			t.Errorf("expected default response \"\", got %v", got)
		}
		if got := state["count"]; got != 0 {
			t.Errorf("expected default count 0, got %v", got)
		}
		if msgs, ok := state["messages"].([]string); !ok || len(msgs) != 0 {
			t.Errorf("expected empty messages slice, got %v", state["messages"])
		}
	})

	t.Run("input merged over defaults", func(t *testing.T) {
		state, err := testSchema().Init(State{
			"messages": []string{"hello"},
			"count":    3,
		})
		if err != nil {
			t.Fatalf("Init() error: %v", err)
		}
		if msgs := state["messages"].([]string); len(msgs) != 1 || msgs[0] != "hello" {
			t.Errorf("expected messages [hello], got %v", msgs)
		}
		if state["count"] != 3 {
			t.Errorf("expected count 3, got %v", state["count"])
		}
	})

	t.Run("unknown input field is a schema error", func(t *testing.T) {
		_, err := testSchema().Init(State{"bogus": 1})
		var schemaErr *SchemaError
		if !errors.As(err, &schemaErr) {
			t.Fatalf("expected *SchemaError, got %v", err)
		}
		if schemaErr.Field != "bogus" {
			t.Errorf("expected field bogus, got %q", schemaErr.Field)
		}
	})
}

func TestSchema_Apply(t *testing.T) {
	schema := testSchema()

	t.Run("overwrite replaces", func(t *testing.T) {
		state, _ := schema.Init(nil)
		next, err := schema.Apply(state, State{"response": "done"})
		if err != nil {
			t.Fatalf("Apply() error: %v", err)
		}
		if next["response"] != "done" {
			t.Errorf("expected response done, got %v", next["response"])
		}
		if state["response"] != "" {
			t.Errorf("Apply mutated the input state")
		}
	})

	t.Run("append concatenates in order", func(t *testing.T) {
		state, _ := schema.Init(State{"messages": []string{"a"}})
		next, err := schema.Apply(state, State{"messages": []string{"b", "c"}})
		if err != nil {
			t.Fatalf("Apply() error: %v", err)
		}
		want := []string{"a", "b", "c"}
		if got := next["messages"].([]string); !reflect.DeepEqual(got, want) {
			t.Errorf("expected %v, got %v", want, got)
		}
	})

	t.Run("sequential appends equal one combined append", func(t *testing.T) {
		base, _ := schema.Init(nil)

		twice, _ := schema.Apply(base, State{"messages": []string{"x"}})
		twice, _ = schema.Apply(twice, State{"messages": []string{"y"}})

		once, _ := schema.Apply(base, State{"messages": []string{"x", "y"}})

		if !reflect.DeepEqual(twice["messages"], once["messages"]) {
			t.Errorf("sequential appends %v != combined append %v",
				twice["messages"], once["messages"])
		}
	})

	t.Run("append is not idempotent", func(t *testing.T) {
		state, _ := schema.Init(nil)
		partial := State{"messages": []string{"m"}}
		state, _ = schema.Apply(state, partial)
		state, _ = schema.Apply(state, partial)
		if got := len(state["messages"].([]string)); got != 2 {
			t.Errorf("expected double application to append twice, got %d entries", got)
		}
	})

	t.Run("unknown field rejected", func(t *testing.T) {
		state, _ := schema.Init(nil)
		_, err := schema.Apply(state, State{"nope": 1})
		var schemaErr *SchemaError
		if !errors.As(err, &schemaErr) {
			t.Fatalf("expected *SchemaError, got %v", err)
		}
	})

	t.Run("append with non-sequence update rejected", func(t *testing.T) {
		state, _ := schema.Init(nil)
		_, err := schema.Apply(state, State{"messages": "not a slice"})
		var schemaErr *SchemaError
		if !errors.As(err, &schemaErr) {
			t.Fatalf("expected *SchemaError, got %v", err)
		}
	})

	t.Run("mismatched slice types flatten to []any", func(t *testing.T) {
		// A checkpoint round-trip degrades typed slices to []any; appends
		// after a resume must still work.
		state, _ := schema.Init(nil)
		state["messages"] = []any{"restored"}
		next, err := schema.Apply(state, State{"messages": []string{"fresh"}})
		if err != nil {
			t.Fatalf("Apply() error: %v", err)
		}
		got, ok := next["messages"].([]any)
		if !ok {
			t.Fatalf("expected []any, got %T", next["messages"])
		}
		if len(got) != 2 || got[0] != "restored" || got[1] != "fresh" {
			t.Errorf("unexpected merged slice: %v", got)
		}
	})
}

func TestStateHelpers(t *testing.T) {
	t.Run("IntValue accepts json numbers", func(t *testing.T) {
		s := State{"a": 3, "b": float64(4), "c": int64(5)}
		if IntValue(s, "a") != 3 || IntValue(s, "b") != 4 || IntValue(s, "c") != 5 {
			t.Errorf("IntValue mismatch: %d %d %d",
				IntValue(s, "a"), IntValue(s, "b"), IntValue(s, "c"))
		}
		if IntValue(s, "missing") != 0 {
			t.Errorf("expected 0 for missing key")
		}
	})

	t.Run("Decode re-materializes degraded values", func(t *testing.T) {
		s := State{"steps": []any{
			map[string]any{"task": "a", "result": "done"},
		}}
		var steps []struct {
			Task   string `json:"task"`
			Result string `json:"result"`
		}
		if err := Decode(s, "steps", &steps); err != nil {
			t.Fatalf("Decode() error: %v", err)
		}
		if len(steps) != 1 || steps[0].Task != "a" || steps[0].Result != "done" {
			t.Errorf("unexpected decode result: %+v", steps)
		}
	})

	t.Run("Decode of missing key is a no-op", func(t *testing.T) {
		var out []string
		if err := Decode(State{}, "nope", &out); err != nil {
			t.Fatalf("Decode() error: %v", err)
		}
		if out != nil {
			t.Errorf("expected nil, got %v", out)
		}
	})
}
