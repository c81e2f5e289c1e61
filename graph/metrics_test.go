package graph

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ashwin-gangadhar-mdb/maap-agent-builder/graph/store"
)

func TestMetrics(t *testing.T) {
	t.Run("a run records outcome, steps, and checkpoints", func(t *testing.T) {
		registry := prometheus.NewRegistry()
		exec, err := NewExecutor(counterGraph(3), store.NewMemStore(),
			WithName("counter"), WithMetrics(NewMetrics(registry)))
		if err != nil {
			t.Fatalf("NewExecutor() error: %v", err)
		}
		if _, err := exec.Run(context.Background(), nil, RunConfig{ThreadID: "t1"}); err != nil {
			t.Fatalf("Run() error: %v", err)
		}

		families, err := registry.Gather()
		if err != nil {
			t.Fatalf("Gather() error: %v", err)
		}
		byName := make(map[string]float64)
		for _, fam := range families {
			for _, m := range fam.GetMetric() {
				if m.GetCounter() != nil {
					byName[fam.GetName()] += m.GetCounter().GetValue()
				}
			}
		}
		if got := byName["agent_workflow_runs_total"]; got != 1 {
			t.Errorf("expected 1 run recorded, got %v", got)
		}
		if got := byName["agent_workflow_steps_total"]; got != 3 {
			t.Errorf("expected 3 steps recorded, got %v", got)
		}
		if got := byName["agent_workflow_checkpoint_writes_total"]; got != 3 {
			t.Errorf("expected 3 checkpoint writes, got %v", got)
		}
	})

	t.Run("nil metrics never panics", func(t *testing.T) {
		exec, _ := NewExecutor(counterGraph(2), store.NewMemStore())
		if _, err := exec.Run(context.Background(), nil, RunConfig{ThreadID: "t1"}); err != nil {
			t.Errorf("Run() error: %v", err)
		}
	})
}
