package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/ai"
	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/summarizer"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "graphsum.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "summarize_queue", cfg.Queue.Queue)
	assert.Equal(t, summarizer.MethodGraphRAG, cfg.Method())
	assert.Equal(t, summarizer.Options{Style: summarizer.StyleConcise, MaxLength: 500}, cfg.Options())
	assert.Equal(t, 60*time.Second, time.Duration(cfg.Pipeline.GenerateTimeout))
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := writeConfig(t, `
[llm]
provider = "deepseek"
model = "deepseek-chat"

[pipeline]
style = "bullet"
max_length = 300
use_global_search = true
community_level = 1
generate_timeout = "15s"
algorithm = "label-propagation"
`)
	t.Setenv("AI_CHAT_MODEL", "deepseek-reasoner")
	t.Setenv("SUMMARY_MAX_LENGTH", "200")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "deepseek", cfg.LLM.Provider)
	assert.Equal(t, "deepseek-reasoner", cfg.LLM.Model, "env wins over file")
	assert.Equal(t, 200, cfg.Pipeline.MaxLength)
	assert.True(t, cfg.Pipeline.UseGlobalSearch)
	assert.Equal(t, 1, cfg.Pipeline.CommunityLevel)
	assert.Equal(t, 15*time.Second, time.Duration(cfg.Pipeline.GenerateTimeout))
	assert.Equal(t, summarizer.StyleBullet, cfg.Options().Style)
}

func TestLoad_RabbitMQFromParts(t *testing.T) {
	t.Setenv("RABBITMQ_HOST", "mq")
	t.Setenv("RABBITMQ_USER", "u")
	t.Setenv("RABBITMQ_PASSWORD", "p")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "amqp://u:p@mq:5672/", cfg.Queue.URL)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad toml", "[llm\nprovider="},
		{"unknown provider", "[llm]\nprovider = \"nope\""},
		{"unknown method", "[pipeline]\nmethod = \"magic\""},
		{"unknown style", "[pipeline]\nstyle = \"poem\""},
		{"unknown algorithm", "[pipeline]\nalgorithm = \"leiden\""},
		{"bad duration", "[pipeline]\ngenerate_timeout = \"soon\""},
		{"prompt missing verbs", "[prompts]\nglobal_search = \"没有占位符\""},
		{"prompt wrong verbs", "[prompts]\nsummary = \"%s %s %s\""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestLoad_ValidPromptOverride(t *testing.T) {
	cfg, err := Load(writeConfig(t, "[prompts]\nglobal_search = \"社区摘要：\\n%s\\n请总结。\""))
	require.NoError(t, err)
	assert.Contains(t, cfg.Prompts.GlobalSearch, "%s")
}

func TestNewAIClient(t *testing.T) {
	tests := []struct {
		provider string
		breaker  bool
		name     string
	}{
		{"openai", false, "openai"},
		{"deepseek", false, "deepseek"},
		{"zhipu", true, "zhipu"},
		{"anthropic", false, "anthropic"},
		{"ollama", false, "ollama"},
	}
	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			cfg := Default()
			cfg.LLM.Provider = tt.provider
			cfg.Breaker.Enabled = tt.breaker
			client, err := NewAIClient(cfg)
			require.NoError(t, err)
			require.NotNil(t, client)
			assert.Equal(t, tt.name, client.Name())
			if tt.breaker {
				assert.IsType(t, &ai.BreakerClient{}, client)
			}
		})
	}

	cfg := Default()
	cfg.LLM.Provider = "none"
	client, err := NewAIClient(cfg)
	require.NoError(t, err)
	assert.Nil(t, client)
}

func TestDetectOptions(t *testing.T) {
	cfg := Default()
	cfg.Pipeline.MaxLevels = 1
	opts := cfg.DetectOptions()
	assert.Equal(t, 1, opts.MaxLevels)
	assert.Equal(t, 1.0, opts.Resolution)
	assert.NotNil(t, NewDetector(cfg))
}
