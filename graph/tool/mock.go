package tool

import (
	"context"
	"sync"
)

// MockTool is a scripted Tool for tests.
//
// Each Call returns the next entry in Responses; once exhausted, the last
// entry repeats. If Err is set it is returned instead. Every invocation is
// recorded in Calls.
type MockTool struct {
	// ToolName is the identifier returned by Name().
	ToolName string

	// ToolDescription is returned by Description().
	ToolDescription string

	// InputSchema is returned by Schema(). May be nil.
	InputSchema map[string]any

	// Responses is the sequence of results to return in order.
	Responses []string

	// Err, if set, is returned by Call() instead of a response.
	Err error

	// Calls records every invocation's input.
	Calls []MockToolCall

	mu        sync.Mutex
	callIndex int
}

// MockToolCall records a single invocation of Call().
type MockToolCall struct {
	Input map[string]any
}

// Name implements Tool.
func (m *MockTool) Name() string { return m.ToolName }

// Description implements Tool.
func (m *MockTool) Description() string { return m.ToolDescription }

// Schema implements Tool.
func (m *MockTool) Schema() map[string]any { return m.InputSchema }

// Call implements Tool. The call is recorded even when Err is returned.
func (m *MockTool) Call(ctx context.Context, input map[string]any) (string, error) {
	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, MockToolCall{Input: input})

	if m.Err != nil {
		return "", m.Err
	}
	if len(m.Responses) == 0 {
		return "", nil
	}

	idx := m.callIndex
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1
	} else {
		m.callIndex++
	}
	return m.Responses[idx], nil
}

// Reset clears the call history and response cursor.
func (m *MockTool) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = nil
	m.callIndex = 0
}

// CallCount returns how many times Call() ran.
func (m *MockTool) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
