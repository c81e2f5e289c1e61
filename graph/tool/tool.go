// Package tool defines the executable-tool interface agent graphs expose
// to chat models, plus ready-made HTTP and mock implementations.
package tool

import (
	"context"

	"github.com/ashwin-gangadhar-mdb/maap-agent-builder/graph/model"
)

// Tool is an action a model can request during a run.
//
// Implementations should validate their input, respect context
// cancellation, and return a plain-text result suitable for appending to
// the conversation as a tool message. Execution errors are returned as
// errors; the calling node decides whether to surface them in-band.
type Tool interface {
	// Name returns the unique identifier the model calls the tool by.
	// Lowercase with underscores, e.g. "search_web".
	Name() string

	// Description tells the model when to use the tool.
	Description() string

	// Schema returns the JSON Schema for the tool's input parameters.
	// A nil schema means the tool takes no parameters.
	Schema() map[string]any

	// Call executes the tool. Input keys match the Schema properties.
	Call(ctx context.Context, input map[string]any) (string, error)
}

// Specs converts tools into the provider-neutral specs sent to the model.
func Specs(tools []Tool) []model.ToolSpec {
	if len(tools) == 0 {
		return nil
	}
	specs := make([]model.ToolSpec, len(tools))
	for i, t := range tools {
		specs[i] = model.ToolSpec{
			Name:        t.Name(),
			Description: t.Description(),
			Schema:      t.Schema(),
		}
	}
	return specs
}

// ByName indexes tools for dispatch of model tool calls.
func ByName(tools []Tool) map[string]Tool {
	out := make(map[string]Tool, len(tools))
	for _, t := range tools {
		out[t.Name()] = t
	}
	return out
}
