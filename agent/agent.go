// Package agent builds the four built-in agent graphs on top of the
// graph engine: a react/tool-call loop, a generate-reflect loop, a
// plan-execute-replan loop, and a long-term-memory-augmented loop.
//
// Graph construction goes through a closed registry keyed by Type, so a
// configuration file can select an agent by name without any runtime
// module loading.
package agent

import (
	"fmt"
	"sort"

	"github.com/ashwin-gangadhar-mdb/maap-agent-builder/graph"
	"github.com/ashwin-gangadhar-mdb/maap-agent-builder/graph/model"
	"github.com/ashwin-gangadhar-mdb/maap-agent-builder/graph/tool"
	"github.com/ashwin-gangadhar-mdb/maap-agent-builder/memory"
)

// Type identifies a built-in agent graph.
type Type string

// Built-in agent types. TypeToolCall is an alias topology of TypeReact.
const (
	TypeToolCall          Type = "tool_call"
	TypeReact             Type = "react"
	TypeReflect           Type = "reflect"
	TypePlanExecuteReplan Type = "plan_execute_replan"
	TypeLongTermMemory    Type = "long_term_memory"
)

// Defaults for optional knobs.
const (
	DefaultMaxIterations = 3
	DefaultRecallK       = 3
	DefaultTokenBudget   = 2048

	// maxToolRounds bounds the model/tool sub-loop some nodes run
	// internally; the engine's recursion limit does not see those
	// rounds, so the node enforces its own cap.
	maxToolRounds = 10
)

// Options carries everything an agent builder may need. Each builder
// validates the fields it requires and ignores the rest.
type Options struct {
	// Model is the chat model every agent graph calls. Required.
	Model model.ChatModel

	// Tools the model may invoke. Optional.
	Tools []tool.Tool

	// Memory backs the long-term-memory agent. Required for that type.
	Memory memory.Store

	// SystemPrompt is the react agent's system message. Optional.
	SystemPrompt string

	// GeneratePrompt and ReflectionPrompt drive the reflect agent.
	GeneratePrompt   string
	ReflectionPrompt string

	// ExecutePrompt drives the plan-execute-replan agent's execute step.
	ExecutePrompt string

	// MaxIterations caps the reflect agent's generations. <= 0 selects
	// DefaultMaxIterations.
	MaxIterations int

	// RecallK is how many memories load_memories retrieves. <= 0
	// selects DefaultRecallK.
	RecallK int

	// TokenBudget caps the conversation text used as the memory query.
	// <= 0 selects DefaultTokenBudget.
	TokenBudget int

	// TokenModel names the model whose tokenizer sizes the budget.
	TokenModel string
}

// Builder constructs a compiled graph from options.
type Builder func(Options) (*graph.Graph, error)

var builders = map[Type]Builder{
	TypeToolCall:          NewReactGraph,
	TypeReact:             NewReactGraph,
	TypeReflect:           NewReflectGraph,
	TypePlanExecuteReplan: NewPlanExecuteGraph,
	TypeLongTermMemory:    NewLongTermMemoryGraph,
}

// New builds the graph for the named agent type.
func New(t Type, opts Options) (*graph.Graph, error) {
	build, ok := builders[t]
	if !ok {
		return nil, fmt.Errorf("unknown agent type %q (available: %v)", t, Types())
	}
	return build(opts)
}

// Types lists the registered agent type names, sorted.
func Types() []string {
	out := make([]string, 0, len(builders))
	for t := range builders {
		out = append(out, string(t))
	}
	sort.Strings(out)
	return out
}
