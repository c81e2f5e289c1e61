package agent

import (
	"context"
	"errors"
	"strings"

	"github.com/ashwin-gangadhar-mdb/maap-agent-builder/graph"
	"github.com/ashwin-gangadhar-mdb/maap-agent-builder/graph/model"
	"github.com/ashwin-gangadhar-mdb/maap-agent-builder/graph/tool"
	"github.com/ashwin-gangadhar-mdb/maap-agent-builder/internal/tokenutil"
	"github.com/ashwin-gangadhar-mdb/maap-agent-builder/memory"
)

const memoryAgentPrompt = "You are a helpful assistant with advanced long-term memory" +
	" capabilities. Powered by a stateless LLM, you must rely on" +
	" external memory to store information between conversations." +
	" Utilize the available memory tools to store and retrieve" +
	" important details that will help you better attend to the user's" +
	" needs and understand their context.\n\n" +
	"Memory Usage Guidelines:\n" +
	"1. Actively use memory tools (save_recall_memory, search_recall_memories)" +
	" to build a comprehensive understanding of the user.\n" +
	"2. Make informed suppositions and extrapolations based on stored" +
	" memories.\n" +
	"3. Regularly reflect on past interactions to identify patterns and" +
	" preferences.\n" +
	"4. Update your mental model of the user with each new piece of" +
	" information.\n" +
	"5. Cross-reference new information with existing memories for" +
	" consistency.\n" +
	"6. Prioritize storing emotional context and personal values" +
	" alongside facts.\n" +
	"7. Use memory to anticipate needs and tailor responses to the" +
	" user's style.\n" +
	"8. Recognize and acknowledge changes in the user's situation or" +
	" perspectives over time.\n" +
	"9. Leverage memories to provide personalized examples and" +
	" analogies.\n" +
	"10. Recall past challenges or successes to inform current" +
	" problem-solving.\n\n" +
	"## Recall Memories\n" +
	"Recall memories are contextually retrieved based on the current" +
	" conversation:\n%RECALL%\n\n" +
	"## Instructions\n" +
	"Engage with the user naturally, as a trusted colleague or friend." +
	" There's no need to explicitly mention your memory capabilities." +
	" Instead, seamlessly incorporate your understanding of the user" +
	" into your responses. Be attentive to subtle cues and underlying" +
	" emotions. Adapt your communication style to match the user's" +
	" preferences and current emotional state. Use tools to persist" +
	" information you want to retain in the next conversation."

// NewLongTermMemoryGraph builds the memory-augmented loop:
//
//	load_memories -> agent -> tools (when tool calls requested) -> agent -> ... -> End
//
// load_memories queries the memory store with the token-capped
// conversation, scoped to the run's user id. The agent node sees the
// retrieved memories inside its system prompt and carries save_recall_memory and
// search_recall_memories tools alongside any configured ones. A run without a user
// id fails fast with *graph.MissingContextError before any model call.
func NewLongTermMemoryGraph(opts Options) (*graph.Graph, error) {
	if opts.Model == nil {
		return nil, errors.New("long-term-memory agent: chat model is required")
	}
	if opts.Memory == nil {
		return nil, errors.New("long-term-memory agent: memory store is required")
	}
	recallK := opts.RecallK
	if recallK <= 0 {
		recallK = DefaultRecallK
	}
	tokenBudget := opts.TokenBudget
	if tokenBudget <= 0 {
		tokenBudget = DefaultTokenBudget
	}

	allTools := make([]tool.Tool, 0, len(opts.Tools)+2)
	allTools = append(allTools, opts.Tools...)
	allTools = append(allTools, memory.NewSaveTool(opts.Memory), memory.NewSearchTool(opts.Memory, recallK))

	schema := graph.NewSchema().
		AddField("messages", graph.Field{
			Policy:  graph.Append,
			Default: func() any { return []model.Message{} },
		}).
		AddField("recall_memories", graph.Field{
			Policy:  graph.Overwrite,
			Default: func() any { return []string{} },
		})

	counter := tokenutil.NewCounter(opts.TokenModel)

	return graph.NewBuilder(schema).
		AddNode("load_memories", loadMemoriesNode(opts.Memory, counter, recallK, tokenBudget)).
		AddNode("agent", memoryAgentNode(opts.Model, allTools)).
		AddNode("tools", toolsNode(allTools)).
		SetEntryPoint("load_memories").
		AddEdge("load_memories", "agent").
		AddConditionalEdges("agent", routeAfterModel, map[string]string{
			"tools": "tools",
			"end":   graph.End,
		}).
		AddEdge("tools", "agent").
		Compile()
}

// loadMemoriesNode retrieves the memories most relevant to the
// conversation so far. The query is the flattened transcript truncated to
// the token budget. A failed search degrades to an explanatory entry
// rather than aborting the turn.
func loadMemoriesNode(store memory.Store, counter *tokenutil.Counter, k, tokenBudget int) graph.NodeFunc {
	return func(ctx context.Context, state graph.State, cfg graph.RunConfig) (graph.State, error) {
		if cfg.UserID == "" {
			return nil, &graph.MissingContextError{Key: "user_id"}
		}
		msgs, err := messagesFrom(state)
		if err != nil {
			return nil, err
		}
		query := counter.Truncate(bufferString(msgs), tokenBudget)

		memories, err := store.Search(ctx, cfg.UserID, query, k)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			memories = []string{"No relevant memories found."}
		}
		return graph.State{"recall_memories": memories}, nil
	}
}

func memoryAgentNode(m model.ChatModel, tools []tool.Tool) graph.NodeFunc {
	specs := tool.Specs(tools)
	return func(ctx context.Context, state graph.State, cfg graph.RunConfig) (graph.State, error) {
		msgs, err := messagesFrom(state)
		if err != nil {
			return nil, err
		}
		var recall []string
		if err := graph.Decode(state, "recall_memories", &recall); err != nil {
			return nil, err
		}
		recallBlock := "<recall_memory>\n" + strings.Join(recall, "\n") + "\n</recall_memory>"
		prompt := strings.ReplaceAll(memoryAgentPrompt, "%RECALL%", recallBlock)

		out, err := m.Chat(ctx, withSystem(prompt, msgs), specs)
		if err != nil {
			return nil, err
		}
		return graph.State{
			"messages": []model.Message{out.AssistantMessage()},
		}, nil
	}
}
