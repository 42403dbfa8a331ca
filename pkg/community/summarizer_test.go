package community

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/ai/aitest"
	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func detectedGraph(t *testing.T) *common.KnowledgeGraph {
	t.Helper()
	kg := newGraph([]string{"A", "B", "C", "D"}, [][2]string{{"A", "B"}, {"C", "D"}})
	for _, c := range NewDetector(nil).Detect(context.Background(), kg, DefaultDetectOptions()) {
		kg.AddCommunity(c)
	}
	require.Equal(t, 2, kg.CommunityCount())
	return kg
}

func TestSummarizeAllWithClient(t *testing.T) {
	kg := detectedGraph(t)
	mock := aitest.NewMockClient("  这是一个关于 A 和 B 的社区。  ")

	summaries := NewSummarizer(mock, NewSummarizerParams{}).SummarizeAll(context.Background(), kg)

	require.Len(t, summaries, 2)
	for _, c := range kg.Communities() {
		assert.Equal(t, "这是一个关于 A 和 B 的社区。", c.Summary)
		assert.Equal(t, c.Summary, summaries[c.ID])
	}

	prompts := mock.Prompts()
	require.Len(t, prompts, 2)
	assert.Contains(t, prompts[0], "组 1")
	assert.Contains(t, prompts[0], "- A (概念): 无描述")
	assert.Contains(t, prompts[0], "- A --[相关]--> B")
}

func TestSummarizeDegradesPerCommunity(t *testing.T) {
	kg := detectedGraph(t)
	calls := 0
	mock := &aitest.MockClient{Respond: func(prompt string) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("timeout")
		}
		return "模型摘要", nil
	}}

	NewSummarizer(mock, NewSummarizerParams{}).SummarizeAll(context.Background(), kg)

	communities := kg.Communities()
	assert.True(t, strings.HasPrefix(communities[0].Summary, "包含 "), communities[0].Summary)
	assert.Equal(t, "模型摘要", communities[1].Summary)
}

func TestSummarizeWithoutClient(t *testing.T) {
	kg := detectedGraph(t)

	for _, s := range []*Summarizer{
		NewSummarizer(nil, NewSummarizerParams{}),
		NewSummarizer(aitest.NewUnavailableClient(), NewSummarizerParams{}),
		NewSummarizer(aitest.NewMockClient("   "), NewSummarizerParams{}),
	} {
		summaries := s.SummarizeAll(context.Background(), kg)
		for _, text := range summaries {
			assert.Equal(t, "包含 A、B。主要涉及 概念。实体间有 1 个关系。", text)
		}
	}
}

func TestSummarizeLevel(t *testing.T) {
	kg := detectedGraph(t)
	kg.AddCommunity(common.Community{ID: "child", Level: 1, EntityIDs: []string{common.EntityID("概念", "A")}, Title: "子社区"})

	summaries := NewSummarizer(nil, NewSummarizerParams{}).SummarizeLevel(context.Background(), kg, 1)

	require.Len(t, summaries, 1)
	assert.Contains(t, summaries, "child")
	c, _ := kg.Community("simple-0")
	assert.Empty(t, c.Summary)
}

func TestSummarizeCapsPromptLines(t *testing.T) {
	var entities []common.Entity
	var rels []common.Relationship
	for i := 0; i < 40; i++ {
		e := common.NewEntity(string(rune('a'+i%26))+string(rune('A'+i/26)), "概念", "")
		entities = append(entities, e)
		if i > 0 {
			rels = append(rels, common.NewRelationship(entities[0].ID, e.ID, "包含", ""))
		}
	}
	c := common.Community{ID: "x", Title: "大社区", EntityIDs: make([]string, 40)}
	mock := aitest.NewMockClient("ok")

	NewSummarizer(mock, NewSummarizerParams{}).Summarize(context.Background(), c, entities, rels)

	prompt := mock.Prompts()[0]
	assert.Equal(t, 20, strings.Count(prompt, "(概念)"))
	assert.Equal(t, 30, strings.Count(prompt, "--[包含]-->"))
	assert.Contains(t, prompt, "成员数量: 40")
}

func TestStatisticalSummary(t *testing.T) {
	assert.Equal(t, "空社区", StatisticalSummary(context.Background(), nil, nil))

	var entities []common.Entity
	for i, typ := range []string{"人物", "人物", "组织", "技术", "技术", "技术", "地点"} {
		entities = append(entities, common.NewEntity(string(rune('A'+i)), typ, ""))
	}
	got := StatisticalSummary(context.Background(), entities, nil)
	assert.Equal(t, "包含 A、B、C、D、E 等 7 个实体。主要涉及 技术、人物、组织。", got)

	// the hub of a star is named first
	hub := common.NewEntity("hub", "概念", "")
	leaves := []common.Entity{common.NewEntity("x", "概念", ""), common.NewEntity("y", "概念", ""), hub}
	rels := []common.Relationship{
		common.NewRelationship(hub.ID, leaves[0].ID, "相关", ""),
		common.NewRelationship(hub.ID, leaves[1].ID, "相关", ""),
	}
	got = StatisticalSummary(context.Background(), leaves, rels)
	assert.True(t, strings.HasPrefix(got, "包含 hub、"), got)
	assert.Contains(t, got, "实体间有 2 个关系")
}
