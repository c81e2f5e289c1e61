// Package tokenutil counts and budgets model tokens using tiktoken
// encodings, with a character-based estimate when no encoding is
// available (air-gapped environments, unknown models).
package tokenutil

import (
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Counter counts tokens for one model's encoding.
type Counter struct {
	encoding *tiktoken.Tiktoken
}

var (
	encodingCache = make(map[string]*tiktoken.Tiktoken)
	cacheMu       sync.Mutex
)

// NewCounter creates a counter for the model. Unknown models fall back to
// cl100k_base; if no encoding can be loaded at all the counter estimates
// at four characters per token.
func NewCounter(model string) *Counter {
	cacheMu.Lock()
	defer cacheMu.Unlock()

	if cached, ok := encodingCache[model]; ok {
		return &Counter{encoding: cached}
	}
	encoding, err := tiktoken.EncodingForModel(model)
	if err != nil {
		encoding, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return &Counter{}
		}
	}
	encodingCache[model] = encoding
	return &Counter{encoding: encoding}
}

// Count returns the token count of text.
func (c *Counter) Count(text string) int {
	if c == nil || c.encoding == nil {
		return estimate(text)
	}
	return len(c.encoding.Encode(text, nil, nil))
}

// FitBudget keeps whole items, newest last, whose combined token count
// stays within maxTokens. Items are dropped oldest-first.
func (c *Counter) FitBudget(items []string, maxTokens int) []string {
	if len(items) == 0 || maxTokens <= 0 {
		return nil
	}
	total := 0
	start := len(items)
	for i := len(items) - 1; i >= 0; i-- {
		n := c.Count(items[i])
		if total+n > maxTokens {
			break
		}
		total += n
		start = i
	}
	if start == len(items) {
		return nil
	}
	return items[start:]
}

// Truncate cuts text down to at most maxTokens tokens, preserving the
// head. Without an encoding the cut falls on the estimated boundary.
func (c *Counter) Truncate(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return ""
	}
	if c == nil || c.encoding == nil {
		limit := maxTokens * 4
		if len(text) <= limit {
			return text
		}
		return text[:limit]
	}
	tokens := c.encoding.Encode(text, nil, nil)
	if len(tokens) <= maxTokens {
		return text
	}
	return c.encoding.Decode(tokens[:maxTokens])
}

func estimate(text string) int {
	n := len(text) / 4
	if n == 0 && strings.TrimSpace(text) != "" {
		n = 1
	}
	return n
}
