package ai

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable is returned by clients that are not configured or whose
// circuit breaker is open.
var ErrUnavailable = errors.New("text generation unavailable")

// GenerateOptions holds configuration for AI generation requests.
type GenerateOptions struct {
	Model         string   // Model identifier to use for generation
	SystemPrompts []string // System prompts prepended to the request
	Temperature   float64  // Sampling temperature (0.0-2.0)
	MaxTokens     int      // Upper bound for generated tokens, 0 leaves it to the backend
	Thinking      string   // Extended thinking mode configuration
}

// ModelMetrics contains performance metrics from AI model operations.
type ModelMetrics struct {
	Requests       int     `json:"requests"`
	InputTokens    int     `json:"input_tokens"`
	OutputTokens   int     `json:"output_tokens"`
	TotalTokens    int     `json:"total_tokens"`
	DurationMs     int64   `json:"duration_ms"`
	TokenPerSecond float32 `json:"tokens_per_second"`
}

// GenerateOption is a functional option for configuring AI generation requests.
type GenerateOption func(*GenerateOptions)

// WithModel returns a GenerateOption that sets the model to use for generation.
func WithModel(model string) GenerateOption {
	return func(o *GenerateOptions) {
		o.Model = model
	}
}

// WithSystemPrompts returns a GenerateOption that sets the system prompts
// to prepend to the generation request.
func WithSystemPrompts(prompts ...string) GenerateOption {
	return func(o *GenerateOptions) {
		o.SystemPrompts = prompts
	}
}

// WithTemperature returns a GenerateOption that sets the sampling temperature.
// Higher values (e.g., 1.0) produce more random outputs, while lower values
// (e.g., 0.2) make outputs more focused and deterministic.
func WithTemperature(temp float64) GenerateOption {
	return func(o *GenerateOptions) {
		o.Temperature = temp
	}
}

// WithMaxTokens returns a GenerateOption that bounds the response length.
func WithMaxTokens(n int) GenerateOption {
	return func(o *GenerateOptions) {
		o.MaxTokens = n
	}
}

// WithThinking returns a GenerateOption that enables extended thinking mode.
func WithThinking(thinking string) GenerateOption {
	return func(o *GenerateOptions) {
		o.Thinking = thinking
	}
}

// ApplyOptions returns defaults with every option applied in order.
func ApplyOptions(defaults GenerateOptions, opts []GenerateOption) GenerateOptions {
	for _, o := range opts {
		o(&defaults)
	}
	return defaults
}

// GraphAIClient is the text-generation capability used by the pipeline.
// The pipeline only relies on "prompt in, text out" plus an availability
// check and an identity string.
type GraphAIClient interface {
	// Name identifies the backend, e.g. "openai" or "ollama".
	Name() string
	// IsAvailable reports whether the client is configured and currently
	// expected to answer. It never performs network I/O.
	IsAvailable() bool

	GenerateCompletion(
		ctx context.Context,
		prompt string,
		opts ...GenerateOption,
	) (string, error)
	GenerateCompletionWithFormat(
		ctx context.Context,
		name string,
		description string,
		prompt string,
		out any,
		opts ...GenerateOption,
	) error

	ResetMetrics()
	GetMetrics() ModelMetrics
}

// Available reports whether client is non-nil and available.
func Available(client GraphAIClient) bool {
	return client != nil && client.IsAvailable()
}

// TimeoutContext bounds a single generation call. A non-positive d only
// derives a cancelable context from ctx.
func TimeoutContext(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
