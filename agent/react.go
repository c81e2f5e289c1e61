package agent

import (
	"context"
	"errors"

	"github.com/ashwin-gangadhar-mdb/maap-agent-builder/graph"
	"github.com/ashwin-gangadhar-mdb/maap-agent-builder/graph/model"
	"github.com/ashwin-gangadhar-mdb/maap-agent-builder/graph/tool"
)

// NewReactGraph builds the react/tool-call loop:
//
//	agent -> tools (when the reply requests tool calls) -> agent -> ... -> End
//
// The agent node binds the configured tools to the model and appends its
// reply; the tools node executes the requested calls and appends each
// result. The run ends when a reply carries no tool calls.
func NewReactGraph(opts Options) (*graph.Graph, error) {
	if opts.Model == nil {
		return nil, errors.New("react agent: chat model is required")
	}

	schema := graph.NewSchema().
		AddField("messages", graph.Field{
			Policy:  graph.Append,
			Default: func() any { return []model.Message{} },
		}).
		AddField("final_response", graph.Field{
			Policy:  graph.Overwrite,
			Default: func() any { return "" },
		})

	return graph.NewBuilder(schema).
		AddNode("agent", reactAgentNode(opts.Model, opts.Tools, opts.SystemPrompt)).
		AddNode("tools", toolsNode(opts.Tools)).
		SetEntryPoint("agent").
		AddConditionalEdges("agent", routeAfterModel, map[string]string{
			"tools": "tools",
			"end":   graph.End,
		}).
		AddEdge("tools", "agent").
		Compile()
}

func reactAgentNode(m model.ChatModel, tools []tool.Tool, systemPrompt string) graph.NodeFunc {
	specs := tool.Specs(tools)
	return func(ctx context.Context, state graph.State, cfg graph.RunConfig) (graph.State, error) {
		msgs, err := messagesFrom(state)
		if err != nil {
			return nil, err
		}
		out, err := m.Chat(ctx, withSystem(systemPrompt, msgs), specs)
		if err != nil {
			return nil, err
		}
		partial := graph.State{
			"messages": []model.Message{out.AssistantMessage()},
		}
		if len(out.ToolCalls) == 0 {
			partial["final_response"] = out.Text
		}
		return partial, nil
	}
}
