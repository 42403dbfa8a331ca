package summarizer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/ai/aitest"
	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/common"
	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/community"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	extractionReply = `{"entities": [
		{"name": "张三", "type": "人物", "description": "北京大学教授"},
		{"name": "李四", "type": "人物", "description": "研究员"}
	], "relationships": [
		{"source": "张三", "target": "李四", "type": "合作", "description": "共同研究"}
	]}`
	sampleText = "张三是北京大学的教授。他与李四合作研究人工智能。"
)

// scriptedClient answers each pipeline prompt by its wording.
func scriptedClient(global, local func() (string, error)) *aitest.MockClient {
	return &aitest.MockClient{Respond: func(prompt string) (string, error) {
		switch {
		case strings.Contains(prompt, "基于以下社区摘要信息"):
			return global()
		case strings.Contains(prompt, "知识图谱构建助手"):
			return extractionReply, nil
		case strings.Contains(prompt, "社区生成一个简洁的摘要"):
			return "张三与李四合作的研究社区。", nil
		case strings.Contains(prompt, "基于以下知识图谱上下文"):
			return local()
		}
		return "", errors.New("unexpected prompt")
	}}
}

func newTestGraphRAG(t *testing.T, params NewGraphRAGParams) *GraphRAG {
	t.Helper()
	g, err := NewGraphRAG(params)
	require.NoError(t, err)
	return g
}

func TestNewGraphRAGRequiresBase(t *testing.T) {
	_, err := NewGraphRAG(NewGraphRAGParams{})
	assert.Error(t, err)
}

func TestGraphRAGNaming(t *testing.T) {
	g := newTestGraphRAG(t, NewGraphRAGParams{Base: NewSimple()})
	assert.Equal(t, "graphrag-simple", g.Name())
	assert.Equal(t, MethodGraphRAG, g.Method())
	assert.True(t, g.IsAvailable())
}

func TestGraphRAGTotalFallback(t *testing.T) {
	g := newTestGraphRAG(t, NewGraphRAGParams{
		Base:            NewSimple(),
		Client:          aitest.NewUnavailableClient(),
		UseGlobalSearch: true,
	})

	text := "据报道，李明教授认为人工智能将改变世界。阿里巴巴集团发布了新产品。"
	res, err := g.Run(context.Background(), text, Options{})
	require.NoError(t, err)

	assert.Equal(t, ModeStatistical, res.Mode)
	assert.NotEmpty(t, res.Summary.Content)
	assert.Contains(t, res.Summary.Content, "涉及")
	assert.Equal(t, MethodGraphRAG, res.Summary.Method)
	assert.Positive(t, res.Graph.EntityCount())
	assert.Contains(t, res.Summary.Tags, "人物")
}

func TestGraphRAGGlobalSearch(t *testing.T) {
	client := scriptedClient(
		func() (string, error) { return "全局摘要结果", nil },
		func() (string, error) { return "局部摘要结果", nil },
	)
	g := newTestGraphRAG(t, NewGraphRAGParams{
		Base:            NewLLM(client, NewLLMParams{}),
		Client:          client,
		UseGlobalSearch: true,
	})

	res, err := g.Run(context.Background(), sampleText, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, ModeGlobal, res.Mode)
	assert.Equal(t, "全局摘要结果", res.Summary.Content)
	assert.Equal(t, 2, res.Graph.EntityCount())
	assert.Equal(t, 1, res.Graph.RelationshipCount())
	require.Equal(t, 1, res.Graph.CommunityCount())
	assert.Equal(t, "张三与李四合作的研究社区。", res.Graph.Communities()[0].Summary)

	assert.Contains(t, res.Summary.KeyPoints, "张三: 北京大学教授")
	assert.Contains(t, res.Summary.KeyPoints, "张三与李四合作的研究社区。")
	assert.Equal(t, []string{"人物", "张三", "李四"}, res.Summary.Tags)
	assert.Equal(t, "graphrag-mock", res.Summary.ModelName)
}

func TestGraphRAGGlobalFallsBackToLocal(t *testing.T) {
	client := scriptedClient(
		func() (string, error) { return "", errors.New("synthesis failed") },
		func() (string, error) { return "局部摘要结果", nil },
	)
	g := newTestGraphRAG(t, NewGraphRAGParams{
		Base:            NewLLM(client, NewLLMParams{}),
		Client:          client,
		UseGlobalSearch: true,
	})

	res, err := g.Run(context.Background(), sampleText, Options{})
	require.NoError(t, err)
	assert.Equal(t, ModeLocal, res.Mode)
	assert.Equal(t, "局部摘要结果", res.Summary.Content)

	var localPrompt string
	for _, p := range client.Prompts() {
		if strings.Contains(p, "基于以下知识图谱上下文") {
			localPrompt = p
		}
	}
	assert.Contains(t, localPrompt, "- 人物: 张三(北京大学教授), 李四(研究员)")
	assert.Contains(t, localPrompt, "- 张三 --[合作]--> 李四")
}

func TestGraphRAGLocalFallsBackToStatistics(t *testing.T) {
	client := scriptedClient(
		func() (string, error) { return "", errors.New("down") },
		func() (string, error) { return "", errors.New("down") },
	)
	g := newTestGraphRAG(t, NewGraphRAGParams{
		Base:   NewLLM(client, NewLLMParams{}),
		Client: client,
	})

	res, err := g.Run(context.Background(), sampleText, Options{SearchMode: SearchLocal})
	require.NoError(t, err)
	assert.Equal(t, ModeStatistical, res.Mode)
	assert.Equal(t, "涉及人物: 张三、李四。文章包含 1 个实体关系。", res.Summary.Content)
}

func TestGraphRAGSearchModeOverride(t *testing.T) {
	client := scriptedClient(
		func() (string, error) { return "全局摘要结果", nil },
		func() (string, error) { return "局部摘要结果", nil },
	)
	g := newTestGraphRAG(t, NewGraphRAGParams{
		Base:            NewLLM(client, NewLLMParams{}),
		Client:          client,
		UseGlobalSearch: true,
	})

	res, err := g.Run(context.Background(), sampleText, Options{SearchMode: SearchLocal})
	require.NoError(t, err)
	assert.Equal(t, ModeLocal, res.Mode)
}

type panickingExtractor struct{}

func (panickingExtractor) Name() string      { return "panic" }
func (panickingExtractor) IsAvailable() bool { return true }
func (panickingExtractor) Extract(context.Context, string, []string, []string) common.ExtractionResult {
	panic("extractor exploded")
}

func TestGraphRAGRecoversFromPanic(t *testing.T) {
	g := newTestGraphRAG(t, NewGraphRAGParams{
		Base:      NewSimple(),
		Extractor: panickingExtractor{},
	})

	res, err := g.Run(context.Background(), "第一段内容。", Options{})
	require.NoError(t, err)
	assert.Equal(t, ModeFallback, res.Mode)
	assert.Equal(t, MethodSimple, res.Summary.Method)
	assert.Equal(t, "第一段内容。", res.Summary.Content)
	assert.NotNil(t, res.Graph)
}

func TestGraphRAGFallbackCases(t *testing.T) {
	canceled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name string
		ctx  context.Context
		text string
	}{
		{name: "canceled context", ctx: canceled, text: sampleText},
		{name: "empty text", ctx: context.Background(), text: "  "},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			g := newTestGraphRAG(t, NewGraphRAGParams{Base: NewSimple()})
			res, err := g.Run(tc.ctx, tc.text, Options{})
			require.NoError(t, err)
			assert.Equal(t, ModeFallback, res.Mode)
		})
	}
}

func TestGraphRAGFallbackError(t *testing.T) {
	base := &stubSummarizer{name: "broken", available: true, err: errors.New("down")}
	g := newTestGraphRAG(t, NewGraphRAGParams{Base: base, Extractor: panickingExtractor{}})

	_, err := g.Summarize(context.Background(), sampleText, Options{})
	assert.Error(t, err)
}

func TestRankedCommunitySummaries(t *testing.T) {
	kg := common.NewKnowledgeGraph()
	for i, rank := range []float64{1, 5, 3} {
		kg.AddCommunity(common.Community{
			ID:      common.CommunityID(0, i),
			Title:   []string{"低", "高", "中"}[i],
			Summary: "摘要",
			Rank:    rank,
		})
	}
	kg.AddCommunity(common.Community{ID: "empty", Title: "空", Rank: 9})

	got := formatCommunitySummaries(rankedCommunities(kg, 0))
	want := strings.Join([]string{
		"- **高** (重要度: 5.0): 摘要",
		"- **中** (重要度: 3.0): 摘要",
		"- **低** (重要度: 1.0): 摘要",
	}, "\n")
	assert.Equal(t, want, got)
}

func TestStatisticalSummary(t *testing.T) {
	empty := common.NewKnowledgeGraph()
	assert.Equal(t, "一。二。三。", statisticalSummary(empty, "一。二。三。四。"))
	assert.Equal(t, "no terminals。", statisticalSummary(empty, "no terminals"))
	assert.Equal(t, "", statisticalSummary(empty, "   "))

	kg := common.NewKnowledgeGraph()
	for _, name := range []string{"A", "B", "C", "D", "E", "F"} {
		kg.AddEntity(common.NewEntity(name, "概念", ""))
	}
	assert.Equal(t, "涉及概念: A、B、C、D、E 等 6 项。", statisticalSummary(kg, ""))
}

func TestGraphTags(t *testing.T) {
	kg := common.NewKnowledgeGraph()
	kg.AddEntity(common.NewEntity("张三", "人物", ""))
	kg.AddEntity(common.NewEntity("一个名字非常非常长的组织机构", "组织", ""))
	kg.AddEntity(common.NewEntity("人物", "概念", ""))

	assert.Equal(t, []string{"人物", "组织", "概念", "张三"}, graphTags(kg))
}

// triangleExtractor returns two triangles joined by a bridge for any text.
type triangleExtractor struct{}

func (triangleExtractor) Name() string      { return "triangles" }
func (triangleExtractor) IsAvailable() bool { return true }
func (triangleExtractor) Extract(context.Context, string, []string, []string) common.ExtractionResult {
	var res common.ExtractionResult
	for _, n := range []string{"A", "B", "C", "D", "E", "F"} {
		res.Entities = append(res.Entities, common.NewEntity(n, "概念", ""))
	}
	for _, e := range [][2]string{{"A", "B"}, {"B", "C"}, {"A", "C"}, {"D", "E"}, {"E", "F"}, {"D", "F"}, {"C", "D"}} {
		res.Relationships = append(res.Relationships,
			common.NewRelationship(common.EntityID("概念", e[0]), common.EntityID("概念", e[1]), "相关", ""))
	}
	return res
}

// wholePartitioner keeps all vertices together on its first call and
// delegates to Louvain afterwards.
type wholePartitioner struct{ calls int }

func (p *wholePartitioner) Name() string    { return "whole" }
func (p *wholePartitioner) Available() bool { return true }
func (p *wholePartitioner) Partition(ctx context.Context, n int, edges []community.Edge, res float64) ([][]int, error) {
	p.calls++
	if p.calls == 1 {
		all := make([]int, n)
		for i := range all {
			all[i] = i
		}
		return [][]int{all}, nil
	}
	return community.NewLouvain().Partition(ctx, n, edges, res)
}

func TestGraphRAGAttachesOneCommunityLevel(t *testing.T) {
	tests := []struct {
		name  string
		level int
		want  int
		count int
	}{
		{name: "level 0", level: 0, want: 0, count: 1},
		{name: "level 1", level: 1, want: 1, count: 2},
		{name: "deeper than the hierarchy", level: 5, want: 1, count: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newTestGraphRAG(t, NewGraphRAGParams{
				Base:           NewSimple(),
				Client:         aitest.NewUnavailableClient(),
				Extractor:      triangleExtractor{},
				Detector:       community.NewDetector(&wholePartitioner{}),
				CommunityLevel: tt.level,
			})

			res, err := g.Run(context.Background(), sampleText, Options{})
			require.NoError(t, err)

			communities := res.Graph.Communities()
			require.Len(t, communities, tt.count)
			seen := map[string]int{}
			for _, c := range communities {
				assert.Equal(t, tt.want, c.Level)
				for _, id := range c.EntityIDs {
					seen[id]++
				}
			}
			assert.Len(t, seen, res.Graph.EntityCount())
			for id, n := range seen {
				assert.Equal(t, 1, n, "entity %s", id)
			}
		})
	}
}
