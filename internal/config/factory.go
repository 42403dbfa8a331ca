package config

import (
	"context"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/ai"
	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/ai/anthropic"
	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/ai/ollama"
	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/ai/openai"
	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/community"
	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/logger"
	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/store"
	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/store/memory"
	pgxstore "github.com/OFFIS-RIT/kiwi/graphsum/pkg/store/pgx"
	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/summarizer"
)

// OpenAI compatible endpoints used when no base URL is configured.
var defaultBaseURLs = map[string]string{
	"deepseek": "https://api.deepseek.com/v1",
	"zhipu":    "https://open.bigmodel.cn/api/paas/v4/",
}

// NewAIClient builds the configured backend, wrapped in a circuit breaker
// when enabled. The "none" provider returns nil.
func NewAIClient(cfg *Config) (ai.GraphAIClient, error) {
	var client ai.GraphAIClient
	switch cfg.LLM.Provider {
	case "none":
		return nil, nil
	case "ollama":
		c, err := ollama.NewGraphOllamaClient(ollama.NewGraphOllamaClientParams{
			Model:                 cfg.LLM.Model,
			ExtractionModel:       cfg.LLM.ExtractionModel,
			BaseURL:               cfg.LLM.BaseURL,
			ApiKey:                cfg.LLM.APIKey,
			MaxConcurrentRequests: int64(cfg.LLM.MaxConcurrentRequests),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create ollama client: %w", err)
		}
		client = c
	case "anthropic":
		client = anthropic.NewGraphAnthropicClient(anthropic.NewGraphAnthropicClientParams{
			Model:   cfg.LLM.Model,
			BaseURL: cfg.LLM.BaseURL,
			ApiKey:  cfg.LLM.APIKey,
		})
	default:
		baseURL := cfg.LLM.BaseURL
		if baseURL == "" {
			baseURL = defaultBaseURLs[cfg.LLM.Provider]
		}
		client = openai.NewGraphOpenAIClient(openai.NewGraphOpenAIClientParams{
			Name:            cfg.LLM.Provider,
			Model:           cfg.LLM.Model,
			ExtractionModel: cfg.LLM.ExtractionModel,
			ChatURL:         baseURL,
			ChatKey:         cfg.LLM.APIKey,
		})
	}

	if !cfg.Breaker.Enabled {
		return client, nil
	}
	params := ai.DefaultBreakerParams()
	if cfg.Breaker.Timeout > 0 {
		params.Timeout = time.Duration(cfg.Breaker.Timeout)
	}
	if cfg.Breaker.FailureThreshold > 0 {
		params.FailureThreshold = cfg.Breaker.FailureThreshold
	}
	if cfg.Breaker.MinRequests > 0 {
		params.MinRequests = uint32(cfg.Breaker.MinRequests)
	}
	return ai.NewBreakerClient(client, params), nil
}

// NewDetector returns the community detector for the configured algorithm.
func NewDetector(cfg *Config) *community.Detector {
	switch cfg.Pipeline.Algorithm {
	case "label-propagation":
		return community.NewDetector(community.NewLabelPropagation())
	case "components":
		return community.NewDetector(nil)
	default:
		return community.NewDetector(community.NewLouvain())
	}
}

// DetectOptions returns the configured detection options.
func (c *Config) DetectOptions() community.DetectOptions {
	opts := community.DefaultDetectOptions()
	if c.Pipeline.Resolution > 0 {
		opts.Resolution = c.Pipeline.Resolution
	}
	if c.Pipeline.MaxLevels > 0 {
		opts.MaxLevels = c.Pipeline.MaxLevels
	}
	if c.Pipeline.MinSplitSize > 0 {
		opts.MinSplitSize = c.Pipeline.MinSplitSize
	}
	return opts
}

// ApplyGlobals sets the process wide token encoding and segmentation
// dictionary.
func ApplyGlobals(cfg *Config) error {
	if cfg.Pipeline.TokenEncoding != "" {
		if err := summarizer.SetTokenEncoding(cfg.Pipeline.TokenEncoding); err != nil {
			return fmt.Errorf("failed to load token encoding %q: %w", cfg.Pipeline.TokenEncoding, err)
		}
	}
	if cfg.Pipeline.Dictionary != "" {
		summarizer.SetDictionary(cfg.Pipeline.Dictionary)
	}
	logger.Debug("[Config] Globals applied",
		"token_encoding", cfg.Pipeline.TokenEncoding,
		"dictionary", cfg.Pipeline.Dictionary,
	)
	return nil
}

// NewJobStore opens the Postgres job store when a database URL is set,
// running pending migrations first, and an in-memory store otherwise.
// The returned func releases the store.
func NewJobStore(ctx context.Context, cfg *Config) (store.JobStore, func(), error) {
	if cfg.Database.URL == "" {
		logger.Info("[Config] No database configured, keeping jobs in memory")
		return memory.New(), func() {}, nil
	}
	if err := pgxstore.Migrate(cfg.Database.URL); err != nil {
		return nil, nil, err
	}
	pool, err := pgxstore.Connect(ctx, cfg.Database.URL)
	if err != nil {
		return nil, nil, err
	}
	return pgxstore.NewJobDBStore(pool), pool.Close, nil
}
