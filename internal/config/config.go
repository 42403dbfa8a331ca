// Package config assembles the service configuration from an optional TOML
// file and the environment. Environment variables win over the file.
package config

import (
	"fmt"
	"os"
	"regexp"
	"slices"
	"time"

	"github.com/OFFIS-RIT/kiwi/graphsum/internal/util"
	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/ai"
	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/summarizer"

	"github.com/pelletier/go-toml/v2"
)

// Duration reads TOML strings such as "60s".
type Duration time.Duration

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// LLMConfig selects and configures the generation backend.
type LLMConfig struct {
	Provider              string `toml:"provider"`
	Model                 string `toml:"model"`
	ExtractionModel       string `toml:"extraction_model"`
	APIKey                string `toml:"api_key"`
	BaseURL               string `toml:"base_url"`
	MaxConcurrentRequests int    `toml:"max_concurrent_requests"`
}

type BreakerConfig struct {
	Enabled          bool     `toml:"enabled"`
	Timeout          Duration `toml:"timeout"`
	FailureThreshold float64  `toml:"failure_threshold"`
	MinRequests      int      `toml:"min_requests"`
}

// PipelineConfig tunes the graph stages.
type PipelineConfig struct {
	Method          string   `toml:"method"`
	Style           string   `toml:"style"`
	MaxLength       int      `toml:"max_length"`
	UseGlobalSearch bool     `toml:"use_global_search"`
	CommunityLevel  int      `toml:"community_level"`
	Algorithm       string   `toml:"algorithm"`
	Resolution      float64  `toml:"resolution"`
	MaxLevels       int      `toml:"max_levels"`
	MinSplitSize    int      `toml:"min_split_size"`
	ChunkSize       int      `toml:"chunk_size"`
	MaxChunkTokens  int      `toml:"max_chunk_tokens"`
	TokenEncoding   string   `toml:"token_encoding"`
	Dictionary      string   `toml:"dictionary"`
	GenerateTimeout Duration `toml:"generate_timeout"`
}

// PromptConfig overrides the built-in prompts. Each override must keep the
// format verbs of the prompt it replaces.
type PromptConfig struct {
	Extract          string `toml:"extract"`
	CommunitySummary string `toml:"community_summary"`
	LocalSearch      string `toml:"local_search"`
	GlobalSearch     string `toml:"global_search"`
	Summary          string `toml:"summary"`
}

type ServerConfig struct {
	Port      string `toml:"port"`
	APIKey    string `toml:"api_key"`
	AuthURL   string `toml:"auth_url"`
	BodyLimit string `toml:"body_limit"`
}

type QueueConfig struct {
	URL         string `toml:"url"`
	Queue       string `toml:"queue"`
	ResultQueue string `toml:"result_queue"`
	MaxRetries  int    `toml:"max_retries"`
}

type StorageConfig struct {
	Bucket    string `toml:"bucket"`
	Endpoint  string `toml:"endpoint"`
	Region    string `toml:"region"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	Prefix    string `toml:"prefix"`
	// PublicEndpoint is the host download links are signed for when
	// clients reach the bucket through a different address.
	PublicEndpoint string `toml:"public_endpoint"`
}

type DatabaseConfig struct {
	URL string `toml:"url"`
}

type LogConfig struct {
	Debug bool `toml:"debug"`
	JSON  bool `toml:"json"`
}

type Config struct {
	LLM      LLMConfig      `toml:"llm"`
	Breaker  BreakerConfig  `toml:"breaker"`
	Pipeline PipelineConfig `toml:"pipeline"`
	Prompts  PromptConfig   `toml:"prompts"`
	Server   ServerConfig   `toml:"server"`
	Queue    QueueConfig    `toml:"queue"`
	Storage  StorageConfig  `toml:"storage"`
	Database DatabaseConfig `toml:"database"`
	Log      LogConfig      `toml:"log"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:              "openai",
			Model:                 "gpt-4o-mini",
			MaxConcurrentRequests: 4,
		},
		Breaker: BreakerConfig{
			Enabled:          true,
			Timeout:          Duration(30 * time.Second),
			FailureThreshold: 0.6,
			MinRequests:      3,
		},
		Pipeline: PipelineConfig{
			Method:          string(summarizer.MethodGraphRAG),
			Style:           string(summarizer.StyleConcise),
			MaxLength:       500,
			Algorithm:       "louvain",
			Resolution:      1.0,
			MaxLevels:       3,
			MinSplitSize:    4,
			GenerateTimeout: Duration(60 * time.Second),
		},
		Server: ServerConfig{
			Port:      "8080",
			BodyLimit: "20M",
		},
		Queue: QueueConfig{
			Queue:       "summarize_queue",
			ResultQueue: "summarize_result_queue",
			MaxRetries:  5,
		},
		Storage: StorageConfig{
			Prefix: "summaries",
		},
	}
}

// Load reads path (when not empty) over the defaults, applies environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse TOML: %w", err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv loads .env, then the file named by GRAPHSUM_CONFIG if set.
func FromEnv() (*Config, error) {
	util.LoadEnv()
	return Load(util.GetEnv("GRAPHSUM_CONFIG"))
}

func (c *Config) applyEnv() {
	c.LLM.Provider = util.GetEnvString("AI_ADAPTER", c.LLM.Provider)
	c.LLM.Model = util.GetEnvString("AI_CHAT_MODEL", c.LLM.Model)
	c.LLM.ExtractionModel = util.GetEnvString("AI_CHAT_EXTRACT_MODEL", c.LLM.ExtractionModel)
	c.LLM.APIKey = util.GetEnvString("AI_CHAT_KEY", c.LLM.APIKey)
	c.LLM.BaseURL = util.GetEnvString("AI_CHAT_URL", c.LLM.BaseURL)
	c.LLM.MaxConcurrentRequests = int(util.GetEnvNumeric("AI_PARALLEL_REQ", c.LLM.MaxConcurrentRequests))

	c.Breaker.Enabled = util.GetEnvBool("AI_BREAKER", c.Breaker.Enabled)
	c.Breaker.Timeout = Duration(util.GetEnvDuration("AI_BREAKER_TIMEOUT", time.Duration(c.Breaker.Timeout)))

	p := &c.Pipeline
	p.Method = util.GetEnvString("SUMMARY_METHOD", p.Method)
	p.Style = util.GetEnvString("SUMMARY_STYLE", p.Style)
	p.MaxLength = int(util.GetEnvNumeric("SUMMARY_MAX_LENGTH", p.MaxLength))
	p.UseGlobalSearch = util.GetEnvBool("GRAPHRAG_GLOBAL_SEARCH", p.UseGlobalSearch)
	p.CommunityLevel = int(util.GetEnvNumeric("GRAPHRAG_COMMUNITY_LEVEL", p.CommunityLevel))
	p.Algorithm = util.GetEnvString("GRAPHRAG_ALGORITHM", p.Algorithm)
	p.MaxLevels = int(util.GetEnvNumeric("GRAPHRAG_MAX_LEVELS", p.MaxLevels))
	p.TokenEncoding = util.GetEnvString("TOKEN_ENCODING", p.TokenEncoding)
	p.Dictionary = util.GetEnvString("SEGMENT_DICTIONARY", p.Dictionary)
	p.GenerateTimeout = Duration(util.GetEnvDuration("AI_TIMEOUT", time.Duration(p.GenerateTimeout)))

	c.Server.Port = util.GetEnvString("PORT", c.Server.Port)
	c.Server.APIKey = util.GetEnvString("API_KEY", c.Server.APIKey)
	c.Server.AuthURL = util.GetEnvString("AUTH_URL", c.Server.AuthURL)

	c.Queue.URL = util.GetEnvString("RABBITMQ_URL", c.Queue.URL)
	if c.Queue.URL == "" && util.GetEnv("RABBITMQ_HOST") != "" {
		c.Queue.URL = fmt.Sprintf("amqp://%s:%s@%s:%s/",
			util.GetEnv("RABBITMQ_USER"),
			util.GetEnv("RABBITMQ_PASSWORD"),
			util.GetEnv("RABBITMQ_HOST"),
			util.GetEnvString("RABBITMQ_PORT", "5672"),
		)
	}

	c.Storage.Bucket = util.GetEnvString("AWS_BUCKET", c.Storage.Bucket)
	c.Storage.Endpoint = util.GetEnvString("AWS_ENDPOINT", c.Storage.Endpoint)
	c.Storage.Region = util.GetEnvString("AWS_REGION", c.Storage.Region)
	c.Storage.AccessKey = util.GetEnvString("AWS_ACCESS_KEY", c.Storage.AccessKey)
	c.Storage.SecretKey = util.GetEnvString("AWS_SECRET_KEY", c.Storage.SecretKey)
	c.Storage.PublicEndpoint = util.GetEnvString("AWS_PUBLIC_ENDPOINT", c.Storage.PublicEndpoint)

	c.Database.URL = util.GetEnvString("DATABASE_URL", c.Database.URL)

	c.Log.Debug = util.GetEnvBool("DEBUG", c.Log.Debug)
	c.Log.JSON = util.GetEnvBool("LOG_JSON", c.Log.JSON)
}

var (
	providers  = []string{"openai", "deepseek", "zhipu", "ollama", "anthropic", "none"}
	algorithms = []string{"louvain", "label-propagation", "components"}
	formatVerb = regexp.MustCompile(`%[sdv]`)
)

func verbs(s string) []string {
	return formatVerb.FindAllString(s, -1)
}

func checkPrompt(name, override, builtin string) error {
	if override == "" {
		return nil
	}
	if !slices.Equal(verbs(override), verbs(builtin)) {
		return fmt.Errorf("prompt %s must contain the format verbs %v, got %v", name, verbs(builtin), verbs(override))
	}
	return nil
}

// Validate checks enumerations and prompt overrides.
func (c *Config) Validate() error {
	if !slices.Contains(providers, c.LLM.Provider) {
		return fmt.Errorf("unknown llm provider %q", c.LLM.Provider)
	}
	if _, ok := summarizer.ParseMethod(c.Pipeline.Method); !ok {
		return fmt.Errorf("unknown summary method %q", c.Pipeline.Method)
	}
	if _, ok := summarizer.ParseStyle(c.Pipeline.Style); !ok {
		return fmt.Errorf("unknown summary style %q", c.Pipeline.Style)
	}
	if !slices.Contains(algorithms, c.Pipeline.Algorithm) {
		return fmt.Errorf("unknown community algorithm %q", c.Pipeline.Algorithm)
	}
	if c.Pipeline.MaxLength <= 0 {
		return fmt.Errorf("max_length must be positive")
	}
	if c.Pipeline.CommunityLevel < 0 {
		return fmt.Errorf("community_level must not be negative")
	}

	checks := []struct{ name, override, builtin string }{
		{"extract", c.Prompts.Extract, ai.ExtractPrompt},
		{"community_summary", c.Prompts.CommunitySummary, ai.CommunitySummaryPrompt},
		{"local_search", c.Prompts.LocalSearch, ai.LocalSearchPrompt},
		{"global_search", c.Prompts.GlobalSearch, ai.GlobalSearchPrompt},
		{"summary", c.Prompts.Summary, ai.SummaryPrompt},
	}
	for _, ch := range checks {
		if err := checkPrompt(ch.name, ch.override, ch.builtin); err != nil {
			return err
		}
	}
	return nil
}

// Options returns the summarizer options configured as defaults. The
// search mode is left to the GraphRAG setting.
func (c *Config) Options() summarizer.Options {
	style, _ := summarizer.ParseStyle(c.Pipeline.Style)
	return summarizer.Options{Style: style, MaxLength: c.Pipeline.MaxLength}
}

// Method returns the configured default method.
func (c *Config) Method() summarizer.Method {
	m, _ := summarizer.ParseMethod(c.Pipeline.Method)
	return m
}
