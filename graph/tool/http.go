package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// HTTPTool makes HTTP requests on behalf of the model.
//
// It supports GET and POST and returns the status code and body as a JSON
// document, which is what models handle best as a tool result.
type HTTPTool struct {
	client *http.Client
}

// NewHTTPTool creates an HTTP tool. Timeouts come from the call context.
func NewHTTPTool() *HTTPTool {
	return &HTTPTool{client: &http.Client{}}
}

// Name returns the tool identifier.
func (h *HTTPTool) Name() string { return "http_request" }

// Description tells the model when to use the tool.
func (h *HTTPTool) Description() string {
	return "Make an HTTP GET or POST request to a URL and return the status code and response body."
}

// Schema describes the tool's input parameters.
func (h *HTTPTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url":    map[string]any{"type": "string", "description": "Target URL"},
			"method": map[string]any{"type": "string", "description": "GET or POST, defaults to GET"},
			"body":   map[string]any{"type": "string", "description": "Request body for POST"},
		},
		"required": []string{"url"},
	}
}

// Call executes the request and returns a JSON result string.
func (h *HTTPTool) Call(ctx context.Context, input map[string]any) (string, error) {
	urlStr, ok := input["url"].(string)
	if !ok || urlStr == "" {
		return "", fmt.Errorf("url parameter required (string)")
	}

	method := "GET"
	if m, ok := input["method"].(string); ok && m != "" {
		method = strings.ToUpper(m)
	}
	if method != "GET" && method != "POST" {
		return "", fmt.Errorf("unsupported HTTP method: %s (supported: GET, POST)", method)
	}

	var body io.Reader
	if bodyStr, ok := input["body"].(string); ok && bodyStr != "" {
		body = bytes.NewBufferString(bodyStr)
	}

	req, err := http.NewRequestWithContext(ctx, method, urlStr, body)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	if headers, ok := input["headers"].(map[string]any); ok {
		for key, value := range headers {
			if valueStr, ok := value.(string); ok {
				req.Header.Set(key, valueStr)
			}
		}
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response body: %w", err)
	}

	result, err := json.Marshal(map[string]any{
		"status_code": resp.StatusCode,
		"body":        string(respBody),
	})
	if err != nil {
		return "", fmt.Errorf("encode result: %w", err)
	}
	return string(result), nil
}
