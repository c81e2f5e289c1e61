package agent

import (
	"strings"
	"testing"

	"github.com/ashwin-gangadhar-mdb/maap-agent-builder/graph"
	"github.com/ashwin-gangadhar-mdb/maap-agent-builder/graph/model"
)

func planExecOptions(m model.ChatModel) Options {
	return Options{
		Model:         m,
		ExecutePrompt: "You execute one plan step at a time.",
	}
}

func TestPlanExecuteGraph(t *testing.T) {
	t.Run("requires model and execute prompt", func(t *testing.T) {
		if _, err := NewPlanExecuteGraph(Options{}); err == nil {
			t.Errorf("expected an error without a model")
		}
		if _, err := NewPlanExecuteGraph(Options{Model: &model.MockChatModel{}}); err == nil {
			t.Errorf("expected an error without an execute prompt")
		}
	})

	t.Run("executes the plan step by step until the replanner answers", func(t *testing.T) {
		m := &model.MockChatModel{Responses: []model.ChatOut{
			{Text: `{"steps": ["find the population of Oslo", "double it"]}`},
			{Text: "Oslo has about 700000 inhabitants."},
			{Text: `{"steps": ["double it"]}`},
			{Text: "Doubled, that is 1400000."},
			{Text: `{"response": "About 1.4 million."}`},
		}}
		g, err := NewPlanExecuteGraph(planExecOptions(m))
		if err != nil {
			t.Fatalf("NewPlanExecuteGraph() error: %v", err)
		}
		final := runAgentGraph(t, g, graph.State{"input": "twice the population of Oslo"}, graph.RunConfig{})

		if got := graph.StringValue(final, "response"); got != "About 1.4 million." {
			t.Errorf("expected final response, got %q", got)
		}
		if m.CallCount() != 5 {
			t.Errorf("expected 5 model calls, got %d", m.CallCount())
		}

		var past []PastStep
		if err := graph.Decode(final, "past_steps", &past); err != nil {
			t.Fatalf("Decode() error: %v", err)
		}
		if len(past) != 2 {
			t.Fatalf("expected 2 past steps, got %+v", past)
		}
		if past[0].Task != "find the population of Oslo" || !strings.Contains(past[0].Result, "700000") {
			t.Errorf("unexpected first past step: %+v", past[0])
		}
		if past[1].Task != "double it" {
			t.Errorf("unexpected second past step: %+v", past[1])
		}
	})

	t.Run("execute consumes the head of the plan", func(t *testing.T) {
		m := &model.MockChatModel{Responses: []model.ChatOut{
			{Text: `{"steps": ["a", "b"]}`},
			{Text: "did a"},
			{Text: `{"response": "done"}`},
		}}
		g, _ := NewPlanExecuteGraph(planExecOptions(m))
		runAgentGraph(t, g, graph.State{"input": "objective"}, graph.RunConfig{})

		// The execute step's task message names the full plan and step 1.
		execMsgs := m.Calls[1].Messages
		task := execMsgs[len(execMsgs)-1].Content
		if !strings.Contains(task, "1. a") || !strings.Contains(task, "2. b") {
			t.Errorf("expected the full numbered plan in the task, got %q", task)
		}
		if !strings.Contains(task, "executing step 1, a.") {
			t.Errorf("expected step 1 to be a, got %q", task)
		}

		// The replanner sees the objective, the remaining plan, and the result.
		replanMsg := m.Calls[2].Messages[0].Content
		if !strings.Contains(replanMsg, "objective") || !strings.Contains(replanMsg, "a: did a") {
			t.Errorf("unexpected replanner prompt: %q", replanMsg)
		}
	})

	t.Run("empty plan short-circuits without a model call", func(t *testing.T) {
		m := &model.MockChatModel{Responses: []model.ChatOut{
			{Text: `{"steps": []}`},
		}}
		g, _ := NewPlanExecuteGraph(planExecOptions(m))
		final := runAgentGraph(t, g, graph.State{"input": "objective"}, graph.RunConfig{})

		if got := graph.StringValue(final, "response"); got != "No steps to execute in the plan." {
			t.Errorf("expected the empty-plan response, got %q", got)
		}
		// Only the planner ran; execute and replan made no model calls.
		if m.CallCount() != 1 {
			t.Errorf("expected 1 model call, got %d", m.CallCount())
		}
	})

	t.Run("fenced JSON replies are tolerated", func(t *testing.T) {
		m := &model.MockChatModel{Responses: []model.ChatOut{
			{Text: "```json\n{\"steps\": [\"only step\"]}\n```"},
			{Text: "did it"},
			{Text: "Here you go: {\"response\": \"all done\"}"},
		}}
		g, _ := NewPlanExecuteGraph(planExecOptions(m))
		final := runAgentGraph(t, g, graph.State{"input": "objective"}, graph.RunConfig{})

		if got := graph.StringValue(final, "response"); got != "all done" {
			t.Errorf("expected \"all done\", got %q", got)
		}
	})
}

func TestDecodeStructured(t *testing.T) {
	t.Run("bare object", func(t *testing.T) {
		var out struct {
			Steps []string `json:"steps"`
		}
		if err := decodeStructured(`{"steps": ["x"]}`, &out); err != nil {
			t.Fatalf("decodeStructured() error: %v", err)
		}
		if len(out.Steps) != 1 || out.Steps[0] != "x" {
			t.Errorf("unexpected decode: %+v", out)
		}
	})

	t.Run("no object at all", func(t *testing.T) {
		var out struct{}
		if err := decodeStructured("I cannot answer that.", &out); err == nil {
			t.Errorf("expected an error for prose with no JSON")
		}
	})
}
