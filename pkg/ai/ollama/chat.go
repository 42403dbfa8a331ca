package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"

	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/ai"

	"github.com/ollama/ollama/api"
	"github.com/pkoukk/tiktoken-go"
)

const defaultContextWindow = 4096

// contextWindow estimates the num_ctx needed for prompt plus a reply.
func contextWindow(prompt string, maxTokens int) (int, error) {
	enc, err := tiktoken.GetEncoding("o200k_base")
	if err != nil {
		return 0, err
	}
	reserve := 200
	if maxTokens > 0 {
		reserve = maxTokens
	}
	return len(enc.Encode(prompt, nil, nil)) + reserve, nil
}

func (c *GraphOllamaClient) newRequest(prompt string, options ai.GenerateOptions) (*api.ChatRequest, error) {
	msgs := make([]api.Message, 0, len(options.SystemPrompts)+1)
	for _, sp := range options.SystemPrompts {
		msgs = append(msgs, api.Message{Role: "system", Content: sp})
	}
	msgs = append(msgs, api.Message{Role: "user", Content: prompt})

	stream := false
	req := &api.ChatRequest{
		Model:    options.Model,
		Messages: msgs,
		Stream:   &stream,
		Options:  map[string]any{"temperature": options.Temperature},
	}
	if options.MaxTokens > 0 {
		req.Options["num_predict"] = options.MaxTokens
	}

	if options.Thinking != "" {
		req.Think = &api.ThinkValue{
			Value: options.Thinking,
		}
	}

	tokens, err := contextWindow(prompt, options.MaxTokens)
	if err != nil {
		return nil, err
	}
	if tokens > defaultContextWindow {
		req.Options["num_ctx"] = tokens
	}
	return req, nil
}

func (c *GraphOllamaClient) chat(ctx context.Context, req *api.ChatRequest) (string, error) {
	if !c.IsAvailable() {
		return "", ai.ErrUnavailable
	}
	if err := c.reqLock.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer c.reqLock.Release(1)

	var final api.ChatResponse
	if err := c.Client.Chat(ctx, req, func(cr api.ChatResponse) error {
		final.Message.Content += cr.Message.Content
		if cr.Done {
			final.Done = true
			final.Metrics = cr.Metrics
		}
		return nil
	}); err != nil {
		return "", err
	}

	c.modifyMetrics(ai.ModelMetrics{
		InputTokens:  final.Metrics.PromptEvalCount,
		OutputTokens: final.Metrics.EvalCount,
		TotalTokens:  final.Metrics.PromptEvalCount + final.Metrics.EvalCount,
		DurationMs:   final.Metrics.TotalDuration.Milliseconds(),
	})

	if final.Message.Content == "" {
		return "", errors.New("empty response from model")
	}
	return final.Message.Content, nil
}

// GenerateCompletion sends a single-turn prompt and returns assistant text.
func (c *GraphOllamaClient) GenerateCompletion(
	ctx context.Context,
	prompt string,
	opts ...ai.GenerateOption,
) (string, error) {
	options := ai.ApplyOptions(ai.GenerateOptions{
		Model:       c.model,
		Temperature: 0.3,
	}, opts)

	req, err := c.newRequest(prompt, options)
	if err != nil {
		return "", err
	}
	return c.chat(ctx, req)
}

// GenerateCompletionWithFormat enforces a JSON schema and unmarshals into out.
func (c *GraphOllamaClient) GenerateCompletionWithFormat(
	ctx context.Context,
	name string,
	description string,
	prompt string,
	out any,
	opts ...ai.GenerateOption,
) error {
	if out == nil {
		return errors.New("out must be a non-nil pointer")
	}
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return errors.New("out must be a non-nil pointer")
	}

	formatBytes, err := json.Marshal(ai.GenerateSchema(out))
	if err != nil {
		return err
	}

	options := ai.ApplyOptions(ai.GenerateOptions{
		Model:       c.extractionModel,
		Temperature: 0.1,
	}, opts)

	req, err := c.newRequest(prompt, options)
	if err != nil {
		return err
	}
	req.Format = json.RawMessage(formatBytes)

	content, err := c.chat(ctx, req)
	if err != nil {
		return err
	}
	return ai.UnmarshalFlexible(content, out)
}
