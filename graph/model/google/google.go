// Package google adapts the Google Gemini API to the model.ChatModel
// interface.
package google

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"github.com/google/uuid"
	"google.golang.org/api/option"

	"github.com/ashwin-gangadhar-mdb/maap-agent-builder/graph/model"
)

// ChatModel implements model.ChatModel for Google's Gemini API.
//
// The Gemini API does not assign ids to function calls, so the adapter
// generates one per call; callers echo it back on the matching tool-result
// message and the adapter maps it to a FunctionResponse part by tool name.
type ChatModel struct {
	apiKey    string
	modelName string
}

// NewChatModel creates a Gemini chat model. Empty modelName selects the
// default gemini-2.5-flash.
func NewChatModel(apiKey, modelName string) *ChatModel {
	if modelName == "" {
		modelName = "gemini-2.5-flash"
	}
	return &ChatModel{apiKey: apiKey, modelName: modelName}
}

// Chat implements model.ChatModel.
func (m *ChatModel) Chat(ctx context.Context, messages []model.Message, tools []model.ToolSpec) (model.ChatOut, error) {
	if m.apiKey == "" {
		return model.ChatOut{}, errors.New("google API key is required")
	}
	if ctx.Err() != nil {
		return model.ChatOut{}, ctx.Err()
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(m.apiKey))
	if err != nil {
		return model.ChatOut{}, fmt.Errorf("create google client: %w", err)
	}
	defer client.Close()

	genModel := client.GenerativeModel(m.modelName)
	if system := systemInstruction(messages); system != "" {
		genModel.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(system)},
		}
	}
	if len(tools) > 0 {
		genModel.Tools = convertTools(tools)
	}

	history, last := convertMessages(messages)
	session := genModel.StartChat()
	session.History = history

	resp, err := session.SendMessage(ctx, last...)
	if err != nil {
		return model.ChatOut{}, fmt.Errorf("google API error: %w", err)
	}
	return convertResponse(resp), nil
}

func systemInstruction(messages []model.Message) string {
	var out string
	for _, msg := range messages {
		if msg.Role == model.RoleSystem && msg.Content != "" {
			if out != "" {
				out += "\n"
			}
			out += msg.Content
		}
	}
	return out
}

// convertMessages maps the conversation into Gemini chat history plus the
// final turn's parts. Tool results become FunctionResponse parts keyed by
// the tool name recorded on the message.
func convertMessages(messages []model.Message) (history []*genai.Content, last []genai.Part) {
	var contents []*genai.Content
	for _, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			continue
		case model.RoleAssistant:
			parts := assistantParts(msg)
			if len(parts) > 0 {
				contents = append(contents, &genai.Content{Role: "model", Parts: parts})
			}
		case model.RoleTool:
			contents = append(contents, &genai.Content{
				Role: "function",
				Parts: []genai.Part{genai.FunctionResponse{
					Name:     msg.Name,
					Response: map[string]any{"result": msg.Content},
				}},
			})
		default:
			if msg.Content != "" {
				contents = append(contents, &genai.Content{
					Role:  "user",
					Parts: []genai.Part{genai.Text(msg.Content)},
				})
			}
		}
	}
	if len(contents) == 0 {
		return nil, []genai.Part{genai.Text("")}
	}
	tail := contents[len(contents)-1]
	return contents[:len(contents)-1], tail.Parts
}

func assistantParts(msg model.Message) []genai.Part {
	var parts []genai.Part
	if msg.Content != "" {
		parts = append(parts, genai.Text(msg.Content))
	}
	for _, call := range msg.ToolCalls {
		parts = append(parts, genai.FunctionCall{Name: call.Name, Args: call.Input})
	}
	return parts
}

func convertTools(tools []model.ToolSpec) []*genai.Tool {
	declarations := make([]*genai.FunctionDeclaration, len(tools))
	for i, spec := range tools {
		declarations[i] = &genai.FunctionDeclaration{
			Name:        spec.Name,
			Description: spec.Description,
			Parameters:  convertSchema(spec.Schema),
		}
	}
	return []*genai.Tool{{FunctionDeclarations: declarations}}
}

// convertSchema maps a JSON Schema object to genai.Schema. Only the
// object/properties/required subset the agent tools use is covered.
func convertSchema(schema map[string]any) *genai.Schema {
	if schema == nil {
		return nil
	}
	result := &genai.Schema{Type: genai.TypeObject}
	if props, ok := schema["properties"].(map[string]any); ok {
		properties := make(map[string]*genai.Schema, len(props))
		for key, val := range props {
			propMap, ok := val.(map[string]any)
			if !ok {
				continue
			}
			prop := &genai.Schema{}
			if typeStr, ok := propMap["type"].(string); ok {
				prop.Type = schemaType(typeStr)
			}
			if desc, ok := propMap["description"].(string); ok {
				prop.Description = desc
			}
			properties[key] = prop
		}
		result.Properties = properties
	}
	switch required := schema["required"].(type) {
	case []string:
		result.Required = required
	case []any:
		for _, v := range required {
			if s, ok := v.(string); ok {
				result.Required = append(result.Required, s)
			}
		}
	}
	return result
}

func schemaType(typeStr string) genai.Type {
	switch typeStr {
	case "string":
		return genai.TypeString
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeUnspecified
	}
}

func convertResponse(resp *genai.GenerateContentResponse) model.ChatOut {
	out := model.ChatOut{}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return out
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		switch p := part.(type) {
		case genai.Text:
			if out.Text != "" {
				out.Text += "\n"
			}
			out.Text += string(p)
		case genai.FunctionCall:
			out.ToolCalls = append(out.ToolCalls, model.ToolCall{
				ID:    "call_" + uuid.NewString(),
				Name:  p.Name,
				Input: p.Args,
			})
		}
	}
	return out
}
