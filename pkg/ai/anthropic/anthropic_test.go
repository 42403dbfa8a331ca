package anthropic

import (
	"context"
	"errors"
	"testing"

	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/ai"
)

func TestGraphAnthropicClientUnavailableWithoutKey(t *testing.T) {
	c := NewGraphAnthropicClient(NewGraphAnthropicClientParams{Model: "claude-3-5-haiku-latest"})
	if c.IsAvailable() {
		t.Fatal("expected client without key to be unavailable")
	}
	if _, err := c.GenerateCompletion(context.Background(), "hi"); !errors.Is(err, ai.ErrUnavailable) {
		t.Fatalf("GenerateCompletion() error = %v, want ErrUnavailable", err)
	}
}

func TestNewRequest(t *testing.T) {
	c := NewGraphAnthropicClient(NewGraphAnthropicClientParams{Model: "m", ApiKey: "k"})
	if !c.IsAvailable() {
		t.Fatal("expected client to be available")
	}

	req := c.newRequest("prompt", ai.GenerateOptions{
		Model:         "m",
		SystemPrompts: []string{"a", "b"},
		Temperature:   0.5,
	})
	if req.MaxTokens != defaultMaxTokens {
		t.Fatalf("MaxTokens = %d, want %d", req.MaxTokens, defaultMaxTokens)
	}
	if req.System != "a\n\nb" {
		t.Fatalf("System = %q", req.System)
	}
	if req.Temperature == nil || *req.Temperature != 0.5 {
		t.Fatalf("Temperature = %v", req.Temperature)
	}

	req = c.newRequest("prompt", ai.GenerateOptions{Model: "m", MaxTokens: 64})
	if req.MaxTokens != 64 {
		t.Fatalf("MaxTokens = %d, want 64", req.MaxTokens)
	}
}
