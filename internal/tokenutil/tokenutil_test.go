package tokenutil

import (
	"strings"
	"testing"
)

func TestCounter_Count(t *testing.T) {
	c := NewCounter("gpt-4o")

	t.Run("empty text is zero tokens", func(t *testing.T) {
		if got := c.Count(""); got != 0 {
			t.Errorf("expected 0, got %d", got)
		}
	})

	t.Run("longer text counts more tokens", func(t *testing.T) {
		short := c.Count("hello")
		long := c.Count(strings.Repeat("hello world ", 50))
		if short <= 0 {
			t.Errorf("expected a positive count, got %d", short)
		}
		if long <= short {
			t.Errorf("expected %d > %d", long, short)
		}
	})

	t.Run("unknown model still counts", func(t *testing.T) {
		if got := NewCounter("some-future-model").Count("hello world"); got <= 0 {
			t.Errorf("expected a positive count, got %d", got)
		}
	})

	t.Run("nil-encoding counter estimates", func(t *testing.T) {
		var c *Counter
		if got := c.Count("abcdefgh"); got != 2 {
			t.Errorf("expected estimate 2, got %d", got)
		}
		if got := c.Count("a"); got != 1 {
			t.Errorf("expected minimum estimate 1, got %d", got)
		}
	})
}

func TestCounter_Truncate(t *testing.T) {
	c := NewCounter("gpt-4o")

	t.Run("under budget is returned unchanged", func(t *testing.T) {
		text := "short text"
		if got := c.Truncate(text, 100); got != text {
			t.Errorf("expected unchanged text, got %q", got)
		}
	})

	t.Run("over budget is cut to the budget", func(t *testing.T) {
		text := strings.Repeat("one two three four ", 100)
		got := c.Truncate(text, 10)
		if len(got) >= len(text) {
			t.Errorf("expected truncation")
		}
		if n := c.Count(got); n > 10 {
			t.Errorf("expected at most 10 tokens, got %d", n)
		}
		if !strings.HasPrefix(text, got) {
			t.Errorf("expected a head-preserving cut")
		}
	})

	t.Run("zero budget yields empty", func(t *testing.T) {
		if got := c.Truncate("anything", 0); got != "" {
			t.Errorf("expected empty, got %q", got)
		}
	})
}

func TestCounter_FitBudget(t *testing.T) {
	c := NewCounter("gpt-4o")

	t.Run("keeps newest items within budget", func(t *testing.T) {
		items := []string{
			strings.Repeat("old ", 200),
			"middle entry",
			"newest entry",
		}
		budget := c.Count(items[1]) + c.Count(items[2])
		got := c.FitBudget(items, budget)
		if len(got) != 2 {
			t.Fatalf("expected 2 items, got %v", got)
		}
		if got[0] != "middle entry" || got[1] != "newest entry" {
			t.Errorf("expected the newest two in order, got %v", got)
		}
	})

	t.Run("everything fits", func(t *testing.T) {
		items := []string{"a", "b"}
		got := c.FitBudget(items, 1000)
		if len(got) != 2 {
			t.Errorf("expected all items, got %v", got)
		}
	})

	t.Run("budget too small for anything", func(t *testing.T) {
		items := []string{strings.Repeat("word ", 100)}
		if got := c.FitBudget(items, 1); got != nil {
			t.Errorf("expected nil, got %v", got)
		}
	})
}
