package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ashwin-gangadhar-mdb/maap-agent-builder/graph"
	"github.com/ashwin-gangadhar-mdb/maap-agent-builder/graph/model"
)

const plannerPrompt = `For the given objective, come up with a simple step by step plan. ` +
	`This plan should involve individual tasks, that if executed correctly will yield the correct answer. Do not add any superfluous steps. ` +
	`The result of the final step should be the final answer. Make sure that each step has all the information needed - do not skip steps.

Reply with a JSON object of the form {"steps": ["step 1", "step 2", ...]} and nothing else.`

const replannerPrompt = `For the given objective, come up with a simple step by step plan. ` +
	`This plan should involve individual tasks, that if executed correctly will yield the correct answer. Do not add any superfluous steps. ` +
	`The result of the final step should be the final answer. Make sure that each step has all the information needed - do not skip steps.

Your objective was this:
%s

Your original plan was this:
%s

You have currently done the follow steps:
%s

Update your plan accordingly. If no more steps are needed and you can return to the user, then respond with a JSON object {"response": "<final answer>"}. Otherwise reply with {"steps": ["remaining step", ...]}. Only add steps to the plan that still NEED to be done. Do not return previously done steps as part of the plan. Reply with the JSON object and nothing else.`

// emptyPlanResponse is what execute reports when there is nothing left to
// run; no model call is made for it.
const emptyPlanResponse = "No steps to execute in the plan."

// PastStep records one executed plan step and its result.
type PastStep struct {
	Task   string `json:"task"`
	Result string `json:"result"`
}

// NewPlanExecuteGraph builds the plan-execute-replan loop:
//
//	plan -> execute -> replan -> (End when response is set, else execute)
//
// plan asks the model for an ordered step list, execute runs the first
// remaining step through a react-style sub-loop, and replan either revises
// the remaining plan or produces the final response.
func NewPlanExecuteGraph(opts Options) (*graph.Graph, error) {
	if opts.Model == nil {
		return nil, errors.New("plan-execute agent: chat model is required")
	}
	if opts.ExecutePrompt == "" {
		return nil, errors.New("plan-execute agent: execute prompt is required")
	}

	schema := graph.NewSchema().
		AddField("input", graph.Field{
			Policy:  graph.Overwrite,
			Default: func() any { return "" },
		}).
		AddField("plan", graph.Field{
			Policy:  graph.Overwrite,
			Default: func() any { return []string{} },
		}).
		AddField("past_steps", graph.Field{
			Policy:  graph.Append,
			Default: func() any { return []PastStep{} },
		}).
		AddField("response", graph.Field{
			Policy:  graph.Overwrite,
			Default: func() any { return "" },
		})

	return graph.NewBuilder(schema).
		AddNode("plan", planNode(opts)).
		AddNode("execute", executeNode(opts)).
		AddNode("replan", replanNode(opts)).
		SetEntryPoint("plan").
		AddEdge("plan", "execute").
		AddEdge("execute", "replan").
		AddConditionalEdges("replan", shouldEnd, map[string]string{
			"end":      graph.End,
			"continue": "execute",
		}).
		Compile()
}

func shouldEnd(state graph.State) string {
	if graph.StringValue(state, "response") != "" {
		return "end"
	}
	return "continue"
}

func planNode(opts Options) graph.NodeFunc {
	return func(ctx context.Context, state graph.State, cfg graph.RunConfig) (graph.State, error) {
		input := graph.StringValue(state, "input")
		out, err := opts.Model.Chat(ctx, []model.Message{
			{Role: model.RoleSystem, Content: plannerPrompt},
			{Role: model.RoleUser, Content: input},
		}, nil)
		if err != nil {
			return nil, err
		}
		var plan struct {
			Steps []string `json:"steps"`
		}
		if err := decodeStructured(out.Text, &plan); err != nil {
			return nil, fmt.Errorf("plan: %w", err)
		}
		return graph.State{"plan": plan.Steps}, nil
	}
}

func executeNode(opts Options) graph.NodeFunc {
	return func(ctx context.Context, state graph.State, cfg graph.RunConfig) (graph.State, error) {
		plan := planFrom(state)
		if len(plan) == 0 {
			return graph.State{"response": emptyPlanResponse}, nil
		}

		var planLines []string
		for i, step := range plan {
			planLines = append(planLines, fmt.Sprintf("%d. %s", i+1, step))
		}
		task := plan[0]
		taskMsg := fmt.Sprintf("For the following plan:\n%s\n\nYou are tasked with executing step 1, %s.",
			strings.Join(planLines, "\n"), task)

		result, err := runToolLoop(ctx, opts.Model, opts.Tools, []model.Message{
			{Role: model.RoleSystem, Content: opts.ExecutePrompt},
			{Role: model.RoleUser, Content: taskMsg},
		})
		if err != nil {
			return nil, err
		}
		return graph.State{
			"past_steps": []PastStep{{Task: task, Result: result}},
			"plan":       plan[1:],
		}, nil
	}
}

// replanNode revises the remaining plan or finishes the run. When a
// response is already set (the empty-plan case) it returns no update so
// the router can terminate without another model call.
func replanNode(opts Options) graph.NodeFunc {
	return func(ctx context.Context, state graph.State, cfg graph.RunConfig) (graph.State, error) {
		if graph.StringValue(state, "response") != "" {
			return graph.State{}, nil
		}

		var past []PastStep
		if err := graph.Decode(state, "past_steps", &past); err != nil {
			return nil, fmt.Errorf("replan: read past steps: %w", err)
		}
		var pastLines []string
		for _, p := range past {
			pastLines = append(pastLines, fmt.Sprintf("%s: %s", p.Task, p.Result))
		}

		prompt := fmt.Sprintf(replannerPrompt,
			graph.StringValue(state, "input"),
			strings.Join(planFrom(state), "\n"),
			strings.Join(pastLines, "\n"))
		out, err := opts.Model.Chat(ctx, []model.Message{
			{Role: model.RoleUser, Content: prompt},
		}, nil)
		if err != nil {
			return nil, err
		}

		var act struct {
			Response string   `json:"response"`
			Steps    []string `json:"steps"`
		}
		if err := decodeStructured(out.Text, &act); err != nil {
			return nil, fmt.Errorf("replan: %w", err)
		}
		if act.Response != "" {
			return graph.State{"response": act.Response}, nil
		}
		return graph.State{"plan": act.Steps}, nil
	}
}

func planFrom(state graph.State) []string {
	if plan, ok := state["plan"].([]string); ok {
		return plan
	}
	var plan []string
	if err := graph.Decode(state, "plan", &plan); err != nil {
		return nil
	}
	return plan
}

// decodeStructured parses a JSON object out of model text, tolerating
// surrounding prose and markdown code fences.
func decodeStructured(text string, dest any) error {
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
			trimmed = trimmed[:idx]
		}
		trimmed = strings.TrimSpace(trimmed)
	}
	if !strings.HasPrefix(trimmed, "{") {
		start := strings.Index(trimmed, "{")
		end := strings.LastIndex(trimmed, "}")
		if start < 0 || end <= start {
			return fmt.Errorf("model reply is not a JSON object: %.80q", text)
		}
		trimmed = trimmed[start : end+1]
	}
	if err := json.Unmarshal([]byte(trimmed), dest); err != nil {
		return fmt.Errorf("decode model reply: %w", err)
	}
	return nil
}
