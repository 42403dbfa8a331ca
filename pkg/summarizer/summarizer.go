// Package summarizer turns a document into a Summary. Strategies share the
// Summarizer interface: Simple works offline, LLM asks a chat backend and
// GraphRAG builds a knowledge graph first and summarizes from it.
package summarizer

import (
	"context"
	"errors"
	"time"
)

// Method identifies how a summary was produced.
type Method string

const (
	MethodSimple    Method = "simple"
	MethodTextRank  Method = "textrank"
	MethodOllama    Method = "ollama"
	MethodOpenAI    Method = "openai"
	MethodDeepSeek  Method = "deepseek"
	MethodAnthropic Method = "anthropic"
	MethodZhipu     Method = "zhipu"
	MethodRAG       Method = "rag"
	MethodGraphRAG  Method = "graphrag"
)

// Methods lists every known method.
var Methods = []Method{
	MethodSimple, MethodTextRank, MethodOllama, MethodOpenAI, MethodDeepSeek,
	MethodAnthropic, MethodZhipu, MethodRAG, MethodGraphRAG,
}

// Style selects the tone and shape of the summary.
type Style string

const (
	StyleConcise  Style = "concise"
	StyleDetailed Style = "detailed"
	StyleAcademic Style = "academic"
	StyleBusiness Style = "business"
	StyleBullet   Style = "bullet"
)

// SearchMode selects the GraphRAG synthesis path. The zero value uses the
// summarizer's configured default.
type SearchMode string

const (
	SearchDefault SearchMode = ""
	SearchLocal   SearchMode = "local"
	SearchGlobal  SearchMode = "global"
)

const defaultMaxLength = 500

// ErrUnavailable is returned by Summarize when the strategy cannot run.
var ErrUnavailable = errors.New("summarizer unavailable")

// Options are per-call knobs. MaxLength is in runes.
type Options struct {
	Style      Style      `json:"style"`
	MaxLength  int        `json:"max_length"`
	SearchMode SearchMode `json:"search_mode,omitempty"`
}

// DefaultOptions returns the concise style with a 500 rune budget.
func DefaultOptions() Options {
	return Options{Style: StyleConcise, MaxLength: defaultMaxLength}
}

func (o Options) normalize() Options {
	if o.Style == "" {
		o.Style = StyleConcise
	}
	if o.MaxLength <= 0 {
		o.MaxLength = defaultMaxLength
	}
	return o
}

// Summary is the result of one summarization.
type Summary struct {
	Content      string    `json:"content"`
	KeyPoints    []string  `json:"key_points"`
	Tags         []string  `json:"tags"`
	Method       Method    `json:"method"`
	Style        Style     `json:"style"`
	ModelName    string    `json:"model_name"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	CreatedAt    time.Time `json:"created_at"`
}

// Summarizer is implemented by every summarization strategy.
type Summarizer interface {
	Name() string
	Method() Method
	IsAvailable() bool
	Summarize(ctx context.Context, text string, opts Options) (Summary, error)
}

// ParseMethod maps a name to a known Method.
func ParseMethod(s string) (Method, bool) {
	for _, m := range Methods {
		if string(m) == s {
			return m, true
		}
	}
	return "", false
}

// ParseStyle maps a name to a known Style, defaulting to concise.
func ParseStyle(s string) (Style, bool) {
	switch Style(s) {
	case StyleConcise, StyleDetailed, StyleAcademic, StyleBusiness, StyleBullet:
		return Style(s), true
	case "":
		return StyleConcise, true
	}
	return StyleConcise, false
}
