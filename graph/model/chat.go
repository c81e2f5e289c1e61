// Package model defines the chat model abstraction consumed by agent
// graphs, plus the message and tool-spec types shared across providers.
package model

import "context"

// Standard roles for chat messages, aligned with the major providers.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one entry in a conversation.
//
// Assistant messages may carry ToolCalls the model wants executed; tool
// messages carry the result of one call and reference it via ToolCallID.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`

	// ToolCalls are the tool invocations an assistant message requests.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolCallID links a tool-result message back to the call it answers.
	ToolCallID string `json:"tool_call_id,omitempty"`

	// Name is the tool name on tool-result messages.
	Name string `json:"name,omitempty"`
}

// HasToolCalls reports whether the message requests any tool execution.
func (m Message) HasToolCalls() bool { return len(m.ToolCalls) > 0 }

// ToolCall is a model's request to invoke a named tool with arguments.
type ToolCall struct {
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Input map[string]any `json:"input"`
}

// ToolSpec describes a tool the model may call. Schema is JSON Schema for
// the tool's input parameters.
type ToolSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Schema      map[string]any `json:"schema,omitempty"`
}

// ChatOut is a model reply: generated text, tool calls, or both.
type ChatOut struct {
	Text      string
	ToolCalls []ToolCall
}

// AssistantMessage converts the reply into a conversation message.
func (o ChatOut) AssistantMessage() Message {
	return Message{Role: RoleAssistant, Content: o.Text, ToolCalls: o.ToolCalls}
}

// ChatModel is the provider-neutral chat interface.
//
// Implementations convert Message/ToolSpec into the provider wire format,
// invoke the API, honor context cancellation, and report which tools (if
// any) the reply requests. Providers handle their own transient-error
// retries; callers treat any returned error as an external-call failure.
type ChatModel interface {
	Chat(ctx context.Context, messages []Message, tools []ToolSpec) (ChatOut, error)
}
