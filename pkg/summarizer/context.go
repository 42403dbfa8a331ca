package summarizer

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/common"
	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/community"
)

const (
	entitiesPerType       = 10
	entityDescriptionCut  = 30
	contextRelationships  = 20
	globalCommunities     = 10
	statisticalNames      = 5
	statisticalSentences  = 3
	statisticalRuneBudget = 200
	graphKeyEntities      = 5
	graphKeyCommunities   = 3
	maxGraphTags          = 10
	tagNameEntities       = 5
	maxTagNameLength      = 10
)

// entitiesByType groups entities by type, types in order of first appearance.
func entitiesByType(kg *common.KnowledgeGraph) ([]string, map[string][]*common.Entity) {
	var types []string
	groups := make(map[string][]*common.Entity)
	for _, e := range kg.Entities() {
		if _, ok := groups[e.Type]; !ok {
			types = append(types, e.Type)
		}
		groups[e.Type] = append(groups[e.Type], e)
	}
	return types, groups
}

func formatEntities(kg *common.KnowledgeGraph) string {
	types, groups := entitiesByType(kg)
	lines := make([]string, 0, len(types))
	for _, t := range types {
		members := groups[t]
		if len(members) > entitiesPerType {
			members = members[:entitiesPerType]
		}
		parts := make([]string, 0, len(members))
		for _, e := range members {
			switch {
			case utf8.RuneCountInString(e.Description) > entityDescriptionCut:
				parts = append(parts, fmt.Sprintf("%s(%s...)", e.Name, truncateRunes(e.Description, entityDescriptionCut)))
			case e.Description != "":
				parts = append(parts, fmt.Sprintf("%s(%s)", e.Name, e.Description))
			default:
				parts = append(parts, e.Name)
			}
		}
		lines = append(lines, fmt.Sprintf("- %s: %s", t, strings.Join(parts, ", ")))
	}
	return strings.Join(lines, "\n")
}

func formatRelationships(kg *common.KnowledgeGraph) string {
	var lines []string
	for i, r := range kg.Relationships() {
		if i >= contextRelationships {
			break
		}
		src, ok := kg.Entity(r.SourceID)
		if !ok {
			continue
		}
		tgt, ok := kg.Entity(r.TargetID)
		if !ok {
			continue
		}
		lines = append(lines, fmt.Sprintf("- %s --[%s]--> %s", src.Name, r.Type, tgt.Name))
	}
	return strings.Join(lines, "\n")
}

// rankedCommunities returns the communities of one level by rank,
// highest first, ties in insertion order.
func rankedCommunities(kg *common.KnowledgeGraph, level int) []*common.Community {
	communities := kg.CommunitiesAtLevel(level)
	sort.SliceStable(communities, func(i, j int) bool {
		return communities[i].Rank > communities[j].Rank
	})
	return communities
}

func formatCommunitySummaries(communities []*common.Community) string {
	var lines []string
	for _, c := range communities {
		if c.Summary == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("- **%s** (重要度: %.1f): %s", c.Title, c.Rank, c.Summary))
		if len(lines) == globalCommunities {
			break
		}
	}
	return strings.Join(lines, "\n")
}

// statisticalSummary describes the graph without a model. A graph without
// entities yields the first sentences of text instead.
func statisticalSummary(kg *common.KnowledgeGraph, text string) string {
	var parts []string
	types, groups := entitiesByType(kg)
	for _, t := range types {
		members := groups[t]
		names := make([]string, 0, statisticalNames)
		for i, e := range members {
			if i == statisticalNames {
				break
			}
			names = append(names, e.Name)
		}
		line := strings.Join(names, "、")
		if len(members) > statisticalNames {
			line += fmt.Sprintf(" 等 %d 项", len(members))
		}
		parts = append(parts, fmt.Sprintf("涉及%s: %s", t, line))
	}
	if n := kg.RelationshipCount(); n > 0 {
		parts = append(parts, fmt.Sprintf("文章包含 %d 个实体关系", n))
	}
	if len(parts) > 0 {
		return strings.Join(parts, "。") + "。"
	}

	var sentences []string
	for _, s := range strings.Split(text, "。") {
		if s = strings.TrimSpace(s); s != "" {
			sentences = append(sentences, s)
		}
		if len(sentences) == statisticalSentences {
			break
		}
	}
	if len(sentences) > 0 {
		return strings.Join(sentences, "。") + "。"
	}
	return truncateRunes(strings.TrimSpace(text), statisticalRuneBudget)
}

// graphKeyPoints lists the descriptions of the highest ranked entities,
// then the summaries of the highest ranked communities.
func graphKeyPoints(ctx context.Context, kg *common.KnowledgeGraph, level int) []string {
	entities := kg.Entities()
	if res, err := community.PageRank(ctx, kg, community.DefaultPageRankConfig()); err == nil && len(res.Ranked) == len(entities) {
		entities = entities[:0]
		for _, id := range res.Ranked {
			if e, ok := kg.Entity(id); ok {
				entities = append(entities, e)
			}
		}
	}

	var points []string
	for i, e := range entities {
		if i == graphKeyEntities {
			break
		}
		if e.Description != "" {
			points = append(points, fmt.Sprintf("%s: %s", e.Name, e.Description))
		}
	}

	added := 0
	for _, c := range rankedCommunities(kg, level) {
		if added == graphKeyCommunities {
			break
		}
		if c.Summary != "" {
			points = append(points, c.Summary)
			added++
		}
	}

	if len(points) > maxKeyPoints {
		points = points[:maxKeyPoints]
	}
	return points
}

// graphTags returns entity types followed by short entity names.
func graphTags(kg *common.KnowledgeGraph) []string {
	seen := make(map[string]struct{})
	var tags []string
	add := func(t string) {
		if t == "" {
			return
		}
		if _, ok := seen[t]; ok {
			return
		}
		seen[t] = struct{}{}
		tags = append(tags, t)
	}

	types, _ := entitiesByType(kg)
	for _, t := range types {
		add(t)
	}
	for i, e := range kg.Entities() {
		if i == tagNameEntities {
			break
		}
		if utf8.RuneCountInString(e.Name) <= maxTagNameLength {
			add(e.Name)
		}
	}

	if len(tags) > maxGraphTags {
		tags = tags[:maxGraphTags]
	}
	return tags
}
