package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/ashwin-gangadhar-mdb/maap-agent-builder/graph"
	"github.com/ashwin-gangadhar-mdb/maap-agent-builder/graph/model"
)

// NewReflectGraph builds the generate-reflect loop:
//
//	generate -> reflect (while itr < max_iterations) -> generate -> ... -> End
//
// Each generate runs a react-style sub-loop against the generate prompt,
// appends a labeled generate_<itr> message, sets final_response and bumps
// itr. Each reflect critiques the full transcript with the reflection
// prompt and appends a labeled reflection_<itr> message. The cap counts
// generations, so a run always ends on a generate step and max_iterations=N
// yields N generate and N-1 reflect steps.
func NewReflectGraph(opts Options) (*graph.Graph, error) {
	if opts.Model == nil {
		return nil, errors.New("reflect agent: chat model is required")
	}
	if opts.GeneratePrompt == "" {
		return nil, errors.New("reflect agent: generate prompt is required")
	}
	if opts.ReflectionPrompt == "" {
		return nil, errors.New("reflect agent: reflection prompt is required")
	}
	maxIterations := opts.MaxIterations
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}

	schema := graph.NewSchema().
		AddField("input", graph.Field{
			Policy:  graph.Overwrite,
			Default: func() any { return "" },
		}).
		AddField("messages", graph.Field{
			Policy:  graph.Append,
			Default: func() any { return []model.Message{} },
		}).
		AddField("final_response", graph.Field{
			Policy:  graph.Overwrite,
			Default: func() any { return "" },
		}).
		AddField("itr", graph.Field{
			Policy:  graph.Overwrite,
			Default: func() any { return 0 },
		}).
		AddField("max_iterations", graph.Field{
			Policy:  graph.Overwrite,
			Default: func() any { return maxIterations },
		})

	return graph.NewBuilder(schema).
		AddNode("generate", generateNode(opts)).
		AddNode("reflect", reflectNode(opts)).
		SetEntryPoint("generate").
		AddConditionalEdges("generate", shouldReflect, map[string]string{
			"continue": "reflect",
			"end":      graph.End,
		}).
		AddEdge("reflect", "generate").
		Compile()
}

// shouldReflect continues into reflection until the generation count
// reaches the cap. itr has already been bumped by the generate step, so
// itr == max_iterations means the final generation just ran.
func shouldReflect(state graph.State) string {
	if graph.IntValue(state, "itr") < graph.IntValue(state, "max_iterations") {
		return "continue"
	}
	return "end"
}

func generateNode(opts Options) graph.NodeFunc {
	return func(ctx context.Context, state graph.State, cfg graph.RunConfig) (graph.State, error) {
		input := graph.StringValue(state, "input")
		if input == "" {
			return nil, errors.New("reflect agent: state must carry a non-empty input")
		}
		itr := graph.IntValue(state, "itr")

		msgs, err := messagesFrom(state)
		if err != nil {
			return nil, err
		}
		prompt := withSystem(opts.GeneratePrompt, msgs)
		prompt = append(prompt, model.Message{
			Role:    model.RoleUser,
			Content: fmt.Sprintf("Input: %s", input),
		})
		text, err := runToolLoop(ctx, opts.Model, opts.Tools, prompt)
		if err != nil {
			return nil, err
		}
		return graph.State{
			"messages": []model.Message{{
				Role:    model.RoleAssistant,
				Content: fmt.Sprintf("generate_%d:\t%s", itr, text),
			}},
			"final_response": text,
			"itr":            itr + 1,
		}, nil
	}
}

func reflectNode(opts Options) graph.NodeFunc {
	return func(ctx context.Context, state graph.State, cfg graph.RunConfig) (graph.State, error) {
		msgs, err := messagesFrom(state)
		if err != nil {
			return nil, err
		}
		out, err := opts.Model.Chat(ctx, withSystem(opts.ReflectionPrompt, msgs), nil)
		if err != nil {
			return nil, err
		}
		return graph.State{
			"messages": []model.Message{{
				Role:    model.RoleUser,
				Content: fmt.Sprintf("reflection_%d:\treflection: %s", graph.IntValue(state, "itr"), out.Text),
			}},
		}, nil
	}
}
