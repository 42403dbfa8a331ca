package openai

import (
	"sync"

	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/ai"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// GraphOpenAIClient generates text through any OpenAI compatible chat
// completions endpoint (OpenAI, DeepSeek, Zhipu and local gateways).
//
// A GraphOpenAIClient should be created using NewGraphOpenAIClient.
type GraphOpenAIClient struct {
	name            string
	model           string
	extractionModel string

	chatURL string

	metricsLock sync.Mutex
	metrics     ai.ModelMetrics

	ChatClient *openai.Client
}

// NewGraphOpenAIClientParams defines the configuration parameters for creating
// a new GraphOpenAIClient.
//
// Name identifies the backend in logs and summaries, defaulting to "openai".
// Model is used for summaries, ExtractionModel for entity extraction and
// falls back to Model when empty.
// ChatURL and ChatKey configure the chat/completion API endpoint.
type NewGraphOpenAIClientParams struct {
	Name            string
	Model           string
	ExtractionModel string

	ChatURL string
	ChatKey string
}

// NewGraphOpenAIClient creates and returns a new GraphOpenAIClient configured with
// the provided parameters. Without an API key the client is created but
// reports itself unavailable.
//
// Example:
//
//	client := openai.NewGraphOpenAIClient(openai.NewGraphOpenAIClientParams{
//		Model:   "gpt-4o-mini",
//		ChatKey: os.Getenv("OPENAI_API_KEY"),
//	})
//	if client.IsAvailable() {
//		text, err := client.GenerateCompletion(ctx, "Summarize this text...")
//	}
func NewGraphOpenAIClient(
	params NewGraphOpenAIClientParams,
) *GraphOpenAIClient {
	name := params.Name
	if name == "" {
		name = "openai"
	}
	extractionModel := params.ExtractionModel
	if extractionModel == "" {
		extractionModel = params.Model
	}

	return &GraphOpenAIClient{
		name:            name,
		model:           params.Model,
		extractionModel: extractionModel,

		chatURL: params.ChatURL,

		metricsLock: sync.Mutex{},
		metrics:     ai.ModelMetrics{},

		ChatClient: newOpenaiClient(params.ChatURL, params.ChatKey),
	}
}

// Name returns the configured backend name.
func (c *GraphOpenAIClient) Name() string {
	return c.name
}

// IsAvailable reports whether an API key and a model are configured.
func (c *GraphOpenAIClient) IsAvailable() bool {
	return c.ChatClient != nil && c.model != ""
}

func newOpenaiClient(
	baseURL string,
	apiKey string,
) *openai.Client {
	if apiKey == "" {
		return nil
	}
	options := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}

	if baseURL != "" {
		options = append(options, option.WithBaseURL(baseURL))
	}

	client := openai.NewClient(options...)

	return &client
}
