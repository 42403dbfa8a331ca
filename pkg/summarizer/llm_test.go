package summarizer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/ai"
	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/ai/aitest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSummaryResponse(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     llmResponse
	}{
		{
			name:     "json",
			response: "```json\n{\"summary\": \"摘要\", \"key_points\": [\"要点\"], \"tags\": [\"标签\"]}\n```",
			want:     llmResponse{Summary: "摘要", KeyPoints: []string{"要点"}, Tags: []string{"标签"}},
		},
		{
			name:     "markdown sections",
			response: "## 摘要\n这是摘要\n## 关键要点\n- 第一\n* 第二\n## 标签\n#科技 #创新",
			want:     llmResponse{Summary: "这是摘要", KeyPoints: []string{"第一", "第二"}, Tags: []string{"科技", "创新"}},
		},
		{
			name:     "plain text",
			response: "  只是一段文字  ",
			want:     llmResponse{Summary: "只是一段文字"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, parseSummaryResponse(tc.response))
		})
	}
}

func TestLLMSummarize(t *testing.T) {
	client := aitest.NewMockClient(`{"summary": "模型摘要", "key_points": ["a"], "tags": ["b"]}`)
	l := NewLLM(client, NewLLMParams{Method: MethodDeepSeek})

	sum, err := l.Summarize(context.Background(), "正文内容", Options{Style: StyleAcademic, MaxLength: 120})
	require.NoError(t, err)

	assert.Equal(t, "模型摘要", sum.Content)
	assert.Equal(t, MethodDeepSeek, sum.Method)
	assert.Equal(t, StyleAcademic, sum.Style)
	assert.Equal(t, "mock", sum.ModelName)

	prompts := client.Prompts()
	require.Len(t, prompts, 1)
	assert.Contains(t, prompts[0], ai.StyleInstructions["academic"])
	assert.Contains(t, prompts[0], "120")
	assert.Contains(t, prompts[0], "正文内容")
}

func TestLLMTruncatesInput(t *testing.T) {
	client := aitest.NewMockClient("摘要")
	l := NewLLM(client, NewLLMParams{MaxInputLength: 5})

	_, err := l.Summarize(context.Background(), strings.Repeat("字", 50), Options{})
	require.NoError(t, err)
	prompts := client.Prompts()
	require.Len(t, prompts, 1)
	assert.Contains(t, prompts[0], "字字字字字...")
	assert.NotContains(t, prompts[0], "字字字字字字")
}

func TestLLMErrors(t *testing.T) {
	l := NewLLM(aitest.NewUnavailableClient(), NewLLMParams{})
	assert.False(t, l.IsAvailable())
	_, err := l.Summarize(context.Background(), "text", Options{})
	assert.ErrorIs(t, err, ErrUnavailable)

	failing := &aitest.MockClient{Err: errors.New("boom")}
	_, err = NewLLM(failing, NewLLMParams{}).Summarize(context.Background(), "text", Options{})
	assert.Error(t, err)

	empty := aitest.NewMockClient("   ")
	_, err = NewLLM(empty, NewLLMParams{}).Summarize(context.Background(), "text", Options{})
	assert.Error(t, err)
}

func TestNewLLMMethodFromClient(t *testing.T) {
	assert.Equal(t, MethodOpenAI, NewLLM(aitest.NewMockClient(""), NewLLMParams{}).Method())
	assert.Equal(t, MethodOpenAI, NewLLM(nil, NewLLMParams{}).Method())
	assert.Equal(t, "openai", NewLLM(nil, NewLLMParams{}).Name())
}
