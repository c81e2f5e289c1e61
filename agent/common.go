package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/ashwin-gangadhar-mdb/maap-agent-builder/graph"
	"github.com/ashwin-gangadhar-mdb/maap-agent-builder/graph/model"
	"github.com/ashwin-gangadhar-mdb/maap-agent-builder/graph/tool"
)

// messagesFrom reads the conversation out of state. After a resume the
// slice may have degraded to []any of maps, so fall back to decoding.
func messagesFrom(state graph.State) ([]model.Message, error) {
	raw, ok := state["messages"]
	if !ok || raw == nil {
		return nil, nil
	}
	if msgs, ok := raw.([]model.Message); ok {
		return msgs, nil
	}
	var msgs []model.Message
	if err := graph.Decode(state, "messages", &msgs); err != nil {
		return nil, fmt.Errorf("read messages: %w", err)
	}
	return msgs, nil
}

// lastToolCalls returns the tool calls requested by the newest message,
// if any.
func lastToolCalls(state graph.State) []model.ToolCall {
	msgs, err := messagesFrom(state)
	if err != nil || len(msgs) == 0 {
		return nil
	}
	return msgs[len(msgs)-1].ToolCalls
}

// withSystem prepends a system message when prompt is non-empty.
func withSystem(prompt string, msgs []model.Message) []model.Message {
	if prompt == "" {
		return msgs
	}
	out := make([]model.Message, 0, len(msgs)+1)
	out = append(out, model.Message{Role: model.RoleSystem, Content: prompt})
	return append(out, msgs...)
}

// toolsNode executes every tool call requested by the newest message and
// appends each result as a tool message. Tool failures stay in-band as
// error text so the conversation can continue; only a missing tool
// registration or a canceled context aborts the run.
func toolsNode(tools []tool.Tool) graph.NodeFunc {
	byName := tool.ByName(tools)
	return func(ctx context.Context, state graph.State, cfg graph.RunConfig) (graph.State, error) {
		calls := lastToolCalls(state)
		if len(calls) == 0 {
			return graph.State{}, nil
		}
		results := make([]model.Message, 0, len(calls))
		for _, call := range calls {
			content, err := runTool(ctx, byName, call)
			if err != nil {
				return nil, err
			}
			results = append(results, model.Message{
				Role:       model.RoleTool,
				Content:    content,
				ToolCallID: call.ID,
				Name:       call.Name,
			})
		}
		return graph.State{"messages": results}, nil
	}
}

func runTool(ctx context.Context, byName map[string]tool.Tool, call model.ToolCall) (string, error) {
	t, ok := byName[call.Name]
	if !ok {
		return "", fmt.Errorf("model requested unknown tool %q", call.Name)
	}
	content, err := t.Call(ctx, call.Input)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return fmt.Sprintf("Error: %v", err), nil
	}
	return content, nil
}

// routeAfterModel is the shared decision for model nodes: run tools when
// the newest message requests them, otherwise finish.
func routeAfterModel(state graph.State) string {
	if len(lastToolCalls(state)) > 0 {
		return "tools"
	}
	return "end"
}

// runToolLoop is the react-style sub-loop some nodes run inside a single
// node application: call the model, execute any requested tools, feed the
// results back, and repeat until the model answers in plain text. The
// transcript stays local to the node; only the final text escapes.
func runToolLoop(ctx context.Context, m model.ChatModel, tools []tool.Tool, msgs []model.Message) (string, error) {
	byName := tool.ByName(tools)
	specs := tool.Specs(tools)
	for round := 0; round < maxToolRounds; round++ {
		out, err := m.Chat(ctx, msgs, specs)
		if err != nil {
			return "", err
		}
		if len(out.ToolCalls) == 0 {
			return out.Text, nil
		}
		msgs = append(msgs, out.AssistantMessage())
		for _, call := range out.ToolCalls {
			content, err := runTool(ctx, byName, call)
			if err != nil {
				return "", err
			}
			msgs = append(msgs, model.Message{
				Role:       model.RoleTool,
				Content:    content,
				ToolCallID: call.ID,
				Name:       call.Name,
			})
		}
	}
	return "", fmt.Errorf("tool loop did not settle within %d rounds", maxToolRounds)
}

// bufferString flattens the conversation into "role: content" lines.
func bufferString(msgs []model.Message) string {
	var b strings.Builder
	for _, msg := range msgs {
		if msg.Content == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(msg.Role)
		b.WriteString(": ")
		b.WriteString(msg.Content)
	}
	return b.String()
}
