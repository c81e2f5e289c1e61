package emit

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestLogEmitter_Text(t *testing.T) {
	t.Run("full event", func(t *testing.T) {
		var buf bytes.Buffer
		em := NewLogEmitter(&buf, false)
		em.Emit(Event{ThreadID: "t-1", Step: 2, Node: "agent", Msg: "node_end",
			Meta: map[string]any{"duration_ms": 41}})
		got := buf.String()
		want := "[node_end] thread=t-1 step=2 node=agent meta={\"duration_ms\":41}\n"
		if got != want {
			t.Errorf("expected %q, got %q", want, got)
		}
	})

	t.Run("run-level event omits node and meta", func(t *testing.T) {
		var buf bytes.Buffer
		em := NewLogEmitter(&buf, false)
		em.Emit(Event{ThreadID: "t-1", Step: -1, Msg: "run_start"})
		got := buf.String()
		if strings.Contains(got, "node=") || strings.Contains(got, "meta=") {
			t.Errorf("expected no node/meta fields, got %q", got)
		}
		if !strings.HasPrefix(got, "[run_start] thread=t-1 step=-1") {
			t.Errorf("unexpected line: %q", got)
		}
	})
}

func TestLogEmitter_JSON(t *testing.T) {
	var buf bytes.Buffer
	em := NewLogEmitter(&buf, true)
	em.Emit(Event{ThreadID: "t-1", Step: 0, Node: "agent", Msg: "node_end",
		Meta: map[string]any{"duration_ms": float64(41)}})
	em.Emit(Event{ThreadID: "t-1", Step: 0, Msg: "run_end"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 JSONL lines, got %d", len(lines))
	}

	var first map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("first line is not valid JSON: %v", err)
	}
	if first["thread"] != "t-1" || first["msg"] != "node_end" || first["node"] != "agent" {
		t.Errorf("unexpected first event: %v", first)
	}
	meta, ok := first["meta"].(map[string]any)
	if !ok || meta["duration_ms"] != float64(41) {
		t.Errorf("unexpected meta: %v", first["meta"])
	}

	var second map[string]any
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatalf("second line is not valid JSON: %v", err)
	}
	if _, present := second["node"]; present {
		t.Errorf("expected node omitted for run-level event, got %v", second)
	}
}
