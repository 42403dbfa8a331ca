package community

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/ai"
	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/common"
	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/logger"
)

const (
	defaultMaxEntities      = 20
	defaultMaxRelationships = 30
	statisticalEntities     = 10
	representativeNames     = 5
	topTypes                = 3
)

// Summarizer writes a short text for every community. It asks the client
// when one is available and falls back, per community, to a deterministic
// statistical sentence.
type Summarizer struct {
	client           ai.GraphAIClient
	prompt           string
	maxEntities      int
	maxRelationships int
	timeout          time.Duration
}

// NewSummarizerParams configures a Summarizer. Prompt overrides
// ai.CommunitySummaryPrompt and must keep its verbs (%s, %d, %s, %s).
type NewSummarizerParams struct {
	Prompt           string
	MaxEntities      int
	MaxRelationships int
	Timeout          time.Duration
}

// NewSummarizer returns a summarizer. A nil client always summarizes statistically.
func NewSummarizer(client ai.GraphAIClient, params NewSummarizerParams) *Summarizer {
	s := &Summarizer{
		client:           client,
		prompt:           params.Prompt,
		maxEntities:      params.MaxEntities,
		maxRelationships: params.MaxRelationships,
		timeout:          params.Timeout,
	}
	if s.prompt == "" {
		s.prompt = ai.CommunitySummaryPrompt
	}
	if s.maxEntities <= 0 {
		s.maxEntities = defaultMaxEntities
	}
	if s.maxRelationships <= 0 {
		s.maxRelationships = defaultMaxRelationships
	}
	return s
}

// Summarize returns the summary of one community. Relationship endpoints
// outside entities are shown by id.
func (s *Summarizer) Summarize(
	ctx context.Context,
	c common.Community,
	entities []common.Entity,
	relationships []common.Relationship,
) string {
	return s.summarize(ctx, c, entities, relationships, nil)
}

// SummarizeAll summarizes every community of kg, stores each summary on
// the graph and returns them keyed by community id.
func (s *Summarizer) SummarizeAll(ctx context.Context, kg *common.KnowledgeGraph) map[string]string {
	return s.summarizeCommunities(ctx, kg, kg.Communities())
}

// SummarizeLevel is SummarizeAll restricted to the communities of one level.
func (s *Summarizer) SummarizeLevel(ctx context.Context, kg *common.KnowledgeGraph, level int) map[string]string {
	return s.summarizeCommunities(ctx, kg, kg.CommunitiesAtLevel(level))
}

func (s *Summarizer) summarizeCommunities(
	ctx context.Context,
	kg *common.KnowledgeGraph,
	communities []*common.Community,
) map[string]string {
	names := make(map[string]string, kg.EntityCount())
	for _, e := range kg.Entities() {
		names[e.ID] = e.Name
	}

	summaries := make(map[string]string, len(communities))
	for _, c := range communities {
		entities := make([]common.Entity, 0, len(c.EntityIDs))
		for _, id := range c.EntityIDs {
			if e, ok := kg.Entity(id); ok {
				entities = append(entities, *e)
			}
		}
		relationships := communityRelationships(kg, *c)

		summary := s.summarize(ctx, *c, entities, relationships, names)
		summaries[c.ID] = summary
		kg.SetCommunitySummary(c.ID, summary)
	}

	logger.Info("[Community] Summarized communities", "communities", len(summaries))
	return summaries
}

// communityRelationships returns every relationship touching a member of c.
func communityRelationships(kg *common.KnowledgeGraph, c common.Community) []common.Relationship {
	members := make(map[string]struct{}, len(c.EntityIDs))
	for _, id := range c.EntityIDs {
		members[id] = struct{}{}
	}
	var out []common.Relationship
	for _, r := range kg.Relationships() {
		_, src := members[r.SourceID]
		_, tgt := members[r.TargetID]
		if src || tgt {
			out = append(out, *r)
		}
	}
	return out
}

func (s *Summarizer) summarize(
	ctx context.Context,
	c common.Community,
	entities []common.Entity,
	relationships []common.Relationship,
	names map[string]string,
) string {
	if !ai.Available(s.client) {
		return StatisticalSummary(ctx, entities, relationships)
	}

	name := func(id string) string {
		for _, e := range entities {
			if e.ID == id {
				return e.Name
			}
		}
		if n, ok := names[id]; ok {
			return n
		}
		return id
	}

	var entityLines []string
	for _, e := range entities[:min(len(entities), s.maxEntities)] {
		desc := e.Description
		if desc == "" {
			desc = "无描述"
		}
		entityLines = append(entityLines, fmt.Sprintf("- %s (%s): %s", e.Name, e.Type, desc))
	}
	var relLines []string
	for _, r := range relationships[:min(len(relationships), s.maxRelationships)] {
		relLines = append(relLines, fmt.Sprintf("- %s --[%s]--> %s", name(r.SourceID), r.Type, name(r.TargetID)))
	}

	entityText := strings.Join(entityLines, "\n")
	if entityText == "" {
		entityText = "无实体"
	}
	relText := strings.Join(relLines, "\n")
	if relText == "" {
		relText = "无明确关系"
	}

	prompt := fmt.Sprintf(s.prompt, c.Title, len(c.EntityIDs), entityText, relText)

	callCtx, cancel := ai.TimeoutContext(ctx, s.timeout)
	defer cancel()
	summary, err := s.client.GenerateCompletion(callCtx, prompt)
	summary = strings.TrimSpace(summary)
	if err != nil || summary == "" {
		logger.Warn("[Community] Summary generation failed, using statistics", "community", c.ID, "err", err)
		return StatisticalSummary(ctx, entities, relationships)
	}
	return summary
}

// StatisticalSummary describes a community without a model: up to five
// representative names (PageRank order when relationships exist), the
// most frequent entity types and the relationship count.
func StatisticalSummary(ctx context.Context, entities []common.Entity, relationships []common.Relationship) string {
	if len(entities) == 0 {
		return "空社区"
	}

	ordered := rankEntities(ctx, entities, relationships)
	sample := ordered[:min(len(ordered), statisticalEntities)]

	counts := make(map[string]int)
	var types []string
	var names []string
	for _, e := range sample {
		if _, ok := counts[e.Type]; !ok {
			types = append(types, e.Type)
		}
		counts[e.Type]++
		names = append(names, e.Name)
	}
	sort.SliceStable(types, func(i, j int) bool { return counts[types[i]] > counts[types[j]] })
	types = types[:min(len(types), topTypes)]

	var parts []string
	preview := strings.Join(names[:min(len(names), representativeNames)], "、")
	if len(names) > representativeNames {
		preview += fmt.Sprintf(" 等 %d 个实体", len(entities))
	}
	parts = append(parts, "包含 "+preview)
	if len(types) > 0 {
		parts = append(parts, "主要涉及 "+strings.Join(types, "、"))
	}
	if len(relationships) > 0 {
		parts = append(parts, fmt.Sprintf("实体间有 %d 个关系", len(relationships)))
	}
	return strings.Join(parts, "。") + "。"
}

// rankEntities orders entities by PageRank over relationships among them,
// keeping the input order when there are none.
func rankEntities(ctx context.Context, entities []common.Entity, relationships []common.Relationship) []common.Entity {
	if len(relationships) == 0 || len(entities) < 2 {
		return entities
	}

	ids := make([]string, len(entities))
	byID := make(map[string]common.Entity, len(entities))
	for i, e := range entities {
		ids[i] = e.ID
		byID[e.ID] = e
	}
	res, err := ComputePageRank(ctx, ids, relationships, DefaultPageRankConfig())
	if err != nil {
		return entities
	}

	out := make([]common.Entity, 0, len(entities))
	for _, id := range res.Ranked {
		out = append(out, byID[id])
	}
	return out
}
