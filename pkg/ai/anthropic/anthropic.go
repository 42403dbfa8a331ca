package anthropic

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/ai"

	"github.com/liushuangls/go-anthropic/v2"
)

const defaultMaxTokens = 2048

// GraphAnthropicClient implements ai.GraphAIClient on the Anthropic
// Messages API.
type GraphAnthropicClient struct {
	model string

	metricsLock sync.Mutex
	metrics     ai.ModelMetrics

	Client *anthropic.Client
}

// NewGraphAnthropicClientParams configures a GraphAnthropicClient.
type NewGraphAnthropicClientParams struct {
	Model   string
	BaseURL string
	ApiKey  string
}

// NewGraphAnthropicClient returns a client. Without an API key the client
// reports itself unavailable.
func NewGraphAnthropicClient(params NewGraphAnthropicClientParams) *GraphAnthropicClient {
	c := &GraphAnthropicClient{model: params.Model}
	if params.ApiKey == "" {
		return c
	}

	var opts []anthropic.ClientOption
	if params.BaseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(params.BaseURL))
	}
	c.Client = anthropic.NewClient(params.ApiKey, opts...)
	return c
}

// Name returns "anthropic".
func (c *GraphAnthropicClient) Name() string {
	return "anthropic"
}

// IsAvailable reports whether an API key and a model are configured.
func (c *GraphAnthropicClient) IsAvailable() bool {
	return c.Client != nil && c.model != ""
}

func (c *GraphAnthropicClient) newRequest(prompt string, options ai.GenerateOptions) anthropic.MessagesRequest {
	maxTokens := options.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	temperature := float32(options.Temperature)

	return anthropic.MessagesRequest{
		Model:  anthropic.Model(options.Model),
		System: strings.Join(options.SystemPrompts, "\n\n"),
		Messages: []anthropic.Message{
			{
				Role: anthropic.RoleUser,
				Content: []anthropic.MessageContent{
					anthropic.NewTextMessageContent(prompt),
				},
			},
		},
		MaxTokens:   maxTokens,
		Temperature: &temperature,
	}
}

// GenerateCompletion sends a single-turn prompt and returns the text of the
// first content block.
func (c *GraphAnthropicClient) GenerateCompletion(
	ctx context.Context,
	prompt string,
	opts ...ai.GenerateOption,
) (string, error) {
	if !c.IsAvailable() {
		return "", ai.ErrUnavailable
	}
	options := ai.ApplyOptions(ai.GenerateOptions{
		Model:       c.model,
		Temperature: 0.3,
	}, opts)

	start := time.Now()
	resp, err := c.Client.CreateMessages(ctx, c.newRequest(prompt, options))
	if err != nil {
		return "", err
	}

	c.modifyMetrics(ai.ModelMetrics{
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
		TotalTokens:  resp.Usage.InputTokens + resp.Usage.OutputTokens,
		DurationMs:   time.Since(start).Milliseconds(),
	})

	if len(resp.Content) > 0 && resp.Content[0].Text != nil {
		return *resp.Content[0].Text, nil
	}
	return "", errors.New("no response content")
}

// GenerateCompletionWithFormat asks for JSON in the prompt and parses the
// first object found in the reply into out. The Messages API has no
// response schema parameter.
func (c *GraphAnthropicClient) GenerateCompletionWithFormat(
	ctx context.Context,
	name string,
	description string,
	prompt string,
	out any,
	opts ...ai.GenerateOption,
) error {
	opts = append([]ai.GenerateOption{ai.WithTemperature(0.1)}, opts...)
	text, err := c.GenerateCompletion(ctx, prompt, opts...)
	if err != nil {
		return err
	}
	return ai.ParseJSONResponse(text, out)
}

// ResetMetrics clears all accumulated token and timing metrics to zero.
func (c *GraphAnthropicClient) ResetMetrics() {
	c.metricsLock.Lock()
	c.metrics = ai.ModelMetrics{}
	c.metricsLock.Unlock()
}

// GetMetrics returns the accumulated token usage and timing metrics since the last reset.
func (c *GraphAnthropicClient) GetMetrics() ai.ModelMetrics {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()
	return c.metrics
}

func (c *GraphAnthropicClient) modifyMetrics(m ai.ModelMetrics) {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()
	c.metrics = ai.AddMetrics(c.metrics, m)
}
