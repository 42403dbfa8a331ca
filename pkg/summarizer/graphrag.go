package summarizer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/ai"
	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/common"
	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/community"
	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/graph"
	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/logger"
)

const localTextExcerpt = 3000

// Stage names a step of the GraphRAG pipeline.
type Stage string

const (
	StageChunking           Stage = "chunking"
	StageExtracting         Stage = "extracting"
	StageGraphBuilding      Stage = "graph-building"
	StageCommunityDetecting Stage = "community-detecting"
	StageSynthesizing       Stage = "synthesizing"
	StageDone               Stage = "done"
)

// Mode records which path produced the content of a GraphRAG summary.
type Mode string

const (
	ModeGlobal      Mode = "global"
	ModeLocal       Mode = "local"
	ModeStatistical Mode = "statistical"
	ModeFallback    Mode = "fallback"
)

// Generator sends a raw prompt to a model. LLM implements it; GraphRAG
// uses its base summarizer for synthesis only when the base does.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Result is a summary together with the knowledge graph it was built from.
type Result struct {
	Summary Summary                `json:"summary"`
	Graph   *common.KnowledgeGraph `json:"graph"`
	Mode    Mode                   `json:"mode"`
}

// GraphRAG summarizes a document through a knowledge graph: the text is
// chunked, entities and relationships are extracted per chunk, merged into
// one graph, grouped into communities and finally synthesized either from
// community summaries (global) or from entity context (local).
//
// Each stage degrades on its own when the model is unavailable. A failing
// or panicking stage hands the original text to the base summarizer.
// GraphRAG keeps no state between calls.
type GraphRAG struct {
	base            Summarizer
	graph           *graph.GraphClient
	extractor       graph.Extractor
	detector        *community.Detector
	detectOptions   community.DetectOptions
	communities     *community.Summarizer
	useGlobalSearch bool
	communityLevel  int
	localPrompt     string
	globalPrompt    string
}

// NewGraphRAGParams configures a GraphRAG summarizer.
//
// Base is required. Client backs extraction and community summaries; when
// it is nil or unavailable, rules and statistics are used instead. Graph,
// Extractor, Detector and Communities default to instances built on Client.
// CommunityLevel selects the hierarchy level used by global search.
type NewGraphRAGParams struct {
	Base            Summarizer
	Client          ai.GraphAIClient
	Graph           *graph.GraphClient
	Extractor       graph.Extractor
	Detector        *community.Detector
	DetectOptions   *community.DetectOptions
	Communities     *community.Summarizer
	UseGlobalSearch bool
	CommunityLevel  int
	GenerateTimeout time.Duration
	LocalPrompt     string
	GlobalPrompt    string
}

// NewGraphRAG creates a GraphRAG summarizer.
//
// Example:
//
//	llm := summarizer.NewLLM(client, summarizer.NewLLMParams{})
//	rag, err := summarizer.NewGraphRAG(summarizer.NewGraphRAGParams{
//		Base:            llm,
//		Client:          client,
//		UseGlobalSearch: true,
//	})
//	res, err := rag.Run(ctx, text, summarizer.DefaultOptions())
func NewGraphRAG(params NewGraphRAGParams) (*GraphRAG, error) {
	if params.Base == nil {
		return nil, fmt.Errorf("graphrag requires a base summarizer")
	}

	g := &GraphRAG{
		base:            params.Base,
		graph:           params.Graph,
		extractor:       params.Extractor,
		detector:        params.Detector,
		communities:     params.Communities,
		useGlobalSearch: params.UseGlobalSearch,
		communityLevel:  params.CommunityLevel,
		localPrompt:     params.LocalPrompt,
		globalPrompt:    params.GlobalPrompt,
	}
	if g.graph == nil {
		g.graph = graph.NewGraphClient(graph.NewGraphClientParams{})
	}
	if g.extractor == nil {
		g.extractor = graph.NewLLMExtractor(params.Client, graph.NewLLMExtractorParams{
			Timeout: params.GenerateTimeout,
		})
	}
	if g.detector == nil {
		g.detector = community.NewDetector(community.NewLouvain())
	}
	if params.DetectOptions != nil {
		g.detectOptions = *params.DetectOptions
	} else {
		g.detectOptions = community.DefaultDetectOptions()
	}
	if g.communities == nil {
		g.communities = community.NewSummarizer(params.Client, community.NewSummarizerParams{
			Timeout: params.GenerateTimeout,
		})
	}
	if g.communityLevel < 0 {
		g.communityLevel = 0
	}
	if g.localPrompt == "" {
		g.localPrompt = ai.LocalSearchPrompt
	}
	if g.globalPrompt == "" {
		g.globalPrompt = ai.GlobalSearchPrompt
	}
	return g, nil
}

func (g *GraphRAG) Name() string { return "graphrag-" + g.base.Name() }

func (g *GraphRAG) Method() Method { return MethodGraphRAG }

func (g *GraphRAG) IsAvailable() bool { return g.base.IsAvailable() }

// Summarize is Run without the graph.
func (g *GraphRAG) Summarize(ctx context.Context, text string, opts Options) (Summary, error) {
	res, err := g.Run(ctx, text, opts)
	if err != nil {
		return Summary{}, err
	}
	return res.Summary, nil
}

// Run executes the pipeline and returns the summary with its graph. It
// only fails when the pipeline had to fall back and the base summarizer
// failed as well.
func (g *GraphRAG) Run(ctx context.Context, text string, opts Options) (res *Result, err error) {
	opts = opts.normalize()
	if strings.TrimSpace(text) == "" {
		return g.fallback(ctx, text, opts, nil, fmt.Errorf("empty input"))
	}

	var kg *common.KnowledgeGraph
	defer func() {
		if r := recover(); r != nil {
			res, err = g.fallback(ctx, text, opts, kg, fmt.Errorf("panic: %v", r))
		}
	}()

	start := time.Now()

	g.stage(StageChunking)
	units, err := g.graph.Chunk(text)
	if err != nil {
		return g.fallback(ctx, text, opts, nil, err)
	}

	g.stage(StageExtracting)
	results := make([]common.ExtractionResult, 0, len(units))
	for _, u := range units {
		if err := ctx.Err(); err != nil {
			return g.fallback(ctx, text, opts, nil, err)
		}
		results = append(results, g.extractor.Extract(ctx, u.Text, nil, nil))
	}

	g.stage(StageGraphBuilding)
	kg = g.graph.Build(results)
	logger.Info("[GraphRAG] Knowledge graph built",
		"entities", kg.EntityCount(), "relationships", kg.RelationshipCount(), "units", len(units))

	g.stage(StageCommunityDetecting)
	if err := ctx.Err(); err != nil {
		return g.fallback(ctx, text, opts, kg, err)
	}
	if kg.EntityCount() > 0 {
		for _, c := range g.detect(ctx, kg) {
			kg.AddCommunity(c)
		}
	}

	g.stage(StageSynthesizing)
	if err := ctx.Err(); err != nil {
		return g.fallback(ctx, text, opts, kg, err)
	}
	level := g.level(kg)
	var content string
	var mode Mode
	if g.globalSearch(opts) && kg.CommunityCount() > 0 {
		content, mode = g.global(ctx, kg, text, level)
	} else {
		content, mode = g.local(ctx, kg, text)
	}

	summary := Summary{
		Content:      content,
		KeyPoints:    graphKeyPoints(ctx, kg, level),
		Tags:         graphTags(kg),
		Method:       MethodGraphRAG,
		Style:        opts.Style,
		ModelName:    g.Name(),
		InputTokens:  CountTokens(text),
		OutputTokens: CountTokens(content),
		CreatedAt:    time.Now(),
	}

	g.stage(StageDone)
	logger.Info("[GraphRAG] Summary generated",
		"mode", mode, "communities", kg.CommunityCount(), "duration", time.Since(start))
	return &Result{Summary: summary, Graph: kg, Mode: mode}, nil
}

func (g *GraphRAG) stage(s Stage) {
	logger.Debug("[GraphRAG] Stage", "stage", s)
}

func (g *GraphRAG) globalSearch(opts Options) bool {
	switch opts.SearchMode {
	case SearchGlobal:
		return true
	case SearchLocal:
		return false
	}
	return g.useGlobalSearch
}

// detect partitions kg at the configured community level, or at the deepest
// level the hierarchy reaches when it is shallower.
func (g *GraphRAG) detect(ctx context.Context, kg *common.KnowledgeGraph) []common.Community {
	if g.communityLevel == 0 {
		return g.detector.Detect(ctx, kg, g.detectOptions)
	}
	levels := g.detector.DetectHierarchy(ctx, kg, g.detectOptions)
	if len(levels) == 0 {
		return nil
	}
	return levels[min(g.communityLevel, len(levels)-1)]
}

// level returns the level of the communities attached to kg.
func (g *GraphRAG) level(kg *common.KnowledgeGraph) int {
	if communities := kg.Communities(); len(communities) > 0 {
		return communities[0].Level
	}
	return 0
}

func (g *GraphRAG) fallback(
	ctx context.Context,
	text string,
	opts Options,
	kg *common.KnowledgeGraph,
	cause error,
) (*Result, error) {
	logger.Error("[GraphRAG] Pipeline failed, using base summarizer", "base", g.base.Name(), "err", cause)
	if kg == nil {
		kg = common.NewKnowledgeGraph()
	}
	s, err := g.base.Summarize(ctx, text, opts)
	if err != nil {
		return nil, fmt.Errorf("graphrag fallback to %s failed: %w", g.base.Name(), err)
	}
	return &Result{Summary: s, Graph: kg, Mode: ModeFallback}, nil
}

func (g *GraphRAG) generate(ctx context.Context, prompt string) (string, error) {
	gen, ok := g.base.(Generator)
	if !ok || !g.base.IsAvailable() {
		return "", ErrUnavailable
	}
	out, err := gen.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", fmt.Errorf("empty synthesis from %s", g.base.Name())
	}
	return out, nil
}

// global synthesizes from ranked community summaries only.
func (g *GraphRAG) global(ctx context.Context, kg *common.KnowledgeGraph, text string, level int) (string, Mode) {
	if _, ok := g.base.(Generator); !ok || !g.base.IsAvailable() {
		return g.local(ctx, kg, text)
	}

	g.communities.SummarizeLevel(ctx, kg, level)
	summaries := formatCommunitySummaries(rankedCommunities(kg, level))
	if summaries == "" {
		return g.local(ctx, kg, text)
	}

	out, err := g.generate(ctx, fmt.Sprintf(g.globalPrompt, summaries))
	if err != nil {
		logger.Error("[GraphRAG] Global search failed", "err", err)
		return g.local(ctx, kg, text)
	}
	return out, ModeGlobal
}

// local synthesizes from entity and relationship context plus an excerpt.
func (g *GraphRAG) local(ctx context.Context, kg *common.KnowledgeGraph, text string) (string, Mode) {
	if _, ok := g.base.(Generator); !ok || !g.base.IsAvailable() {
		return statisticalSummary(kg, text), ModeStatistical
	}

	entities := formatEntities(kg)
	if entities == "" {
		entities = "无实体信息"
	}
	relationships := formatRelationships(kg)
	if relationships == "" {
		relationships = "无关系信息"
	}

	out, err := g.generate(ctx, fmt.Sprintf(g.localPrompt, entities, relationships, truncateRunes(text, localTextExcerpt)))
	if err != nil {
		logger.Error("[GraphRAG] Local search failed", "err", err)
		return statisticalSummary(kg, text), ModeStatistical
	}
	return out, ModeLocal
}
