package summarizer

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/ai"
	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/logger"
)

const (
	defaultMaxInputLength = 30000
	summarySystemPrompt   = "你是一个专业的文章摘要助手。"
)

var (
	summarySection   = regexp.MustCompile(`(?s)##\s*摘要\s*\n(.*?)(?:##|$)`)
	keyPointsSection = regexp.MustCompile(`(?s)##\s*关键要点\s*\n(.*?)(?:##|$)`)
	tagsSection      = regexp.MustCompile(`(?s)##\s*标签\s*\n(.*?)(?:##|$)`)
	hashTag          = regexp.MustCompile(`#([\p{L}\p{N}_]+)`)
)

// LLM summarizes through a chat backend.
type LLM struct {
	client         ai.GraphAIClient
	method         Method
	prompt         string
	maxInputLength int
	timeout        time.Duration
}

// NewLLMParams configures an LLM summarizer. Method defaults to the
// client's name when that is a known method, otherwise to openai.
// Prompt overrides ai.SummaryPrompt and must keep its verbs (%s, %d, %s).
// Input longer than MaxInputLength runes is cut.
type NewLLMParams struct {
	Method         Method
	Prompt         string
	MaxInputLength int
	Timeout        time.Duration
}

type llmResponse struct {
	Summary   string   `json:"summary"`
	KeyPoints []string `json:"key_points"`
	Tags      []string `json:"tags"`
}

// NewLLM returns a summarizer backed by client.
func NewLLM(client ai.GraphAIClient, params NewLLMParams) *LLM {
	l := &LLM{
		client:         client,
		method:         params.Method,
		prompt:         params.Prompt,
		maxInputLength: params.MaxInputLength,
		timeout:        params.Timeout,
	}
	if l.method == "" {
		l.method = MethodOpenAI
		if client != nil {
			if m, ok := ParseMethod(client.Name()); ok {
				l.method = m
			}
		}
	}
	if l.prompt == "" {
		l.prompt = ai.SummaryPrompt
	}
	if l.maxInputLength <= 0 {
		l.maxInputLength = defaultMaxInputLength
	}
	return l
}

func (l *LLM) Name() string {
	if l.client == nil {
		return string(l.method)
	}
	return l.client.Name()
}

func (l *LLM) Method() Method { return l.method }

func (l *LLM) IsAvailable() bool { return ai.Available(l.client) }

// Generate sends prompt to the backend as is. GraphRAG uses it for its
// synthesis calls.
func (l *LLM) Generate(ctx context.Context, prompt string) (string, error) {
	if !l.IsAvailable() {
		return "", ErrUnavailable
	}
	ctx, cancel := ai.TimeoutContext(ctx, l.timeout)
	defer cancel()
	return l.client.GenerateCompletion(ctx, prompt, ai.WithSystemPrompts(summarySystemPrompt))
}

// Summarize asks the backend for a summary in the requested style. Any
// failure is returned as an error so a fallback can take over.
func (l *LLM) Summarize(ctx context.Context, text string, opts Options) (Summary, error) {
	opts = opts.normalize()
	if !l.IsAvailable() {
		return Summary{}, fmt.Errorf("%s: %w", l.Name(), ErrUnavailable)
	}

	if utf8.RuneCountInString(text) > l.maxInputLength {
		text = truncateRunes(text, l.maxInputLength) + "..."
	}
	instruction, ok := ai.StyleInstructions[string(opts.Style)]
	if !ok {
		instruction = ai.StyleInstructions[string(StyleConcise)]
	}
	prompt := fmt.Sprintf(l.prompt, instruction, opts.MaxLength, text)

	logger.Debug("[Summarizer] Calling backend", "backend", l.Name(), "style", opts.Style)
	response, err := l.Generate(ctx, prompt)
	if err != nil {
		return Summary{}, fmt.Errorf("%s summarization failed: %w", l.Name(), err)
	}

	parsed := parseSummaryResponse(response)
	if parsed.Summary == "" {
		return Summary{}, fmt.Errorf("%s returned an empty summary", l.Name())
	}

	return Summary{
		Content:      parsed.Summary,
		KeyPoints:    parsed.KeyPoints,
		Tags:         parsed.Tags,
		Method:       l.method,
		Style:        opts.Style,
		ModelName:    l.Name(),
		InputTokens:  CountTokens(prompt),
		OutputTokens: CountTokens(response),
		CreatedAt:    time.Now(),
	}, nil
}

// parseSummaryResponse reads the JSON object the prompt asks for. Markdown
// sections (## 摘要, ## 关键要点, ## 标签) are understood as well, and
// anything else is taken as the summary itself.
func parseSummaryResponse(response string) llmResponse {
	var out llmResponse
	if err := ai.ParseJSONResponse(response, &out); err == nil && strings.TrimSpace(out.Summary) != "" {
		out.Summary = strings.TrimSpace(out.Summary)
		return out
	}

	out = llmResponse{Summary: strings.TrimSpace(response)}
	if m := summarySection.FindStringSubmatch(response); m != nil {
		out.Summary = strings.TrimSpace(m[1])
	}
	if m := keyPointsSection.FindStringSubmatch(response); m != nil {
		for _, line := range strings.Split(m[1], "\n") {
			line = strings.TrimSpace(line)
			if strings.HasPrefix(line, "-") || strings.HasPrefix(line, "•") || strings.HasPrefix(line, "*") {
				if p := strings.TrimSpace(strings.TrimLeft(line, "-•*")); p != "" {
					out.KeyPoints = append(out.KeyPoints, p)
				}
			}
		}
	}
	if m := tagsSection.FindStringSubmatch(response); m != nil {
		for _, t := range hashTag.FindAllStringSubmatch(m[1], -1) {
			out.Tags = append(out.Tags, t[1])
		}
	}
	return out
}
