package graph

import (
	"strings"
	"unicode/utf8"

	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/common"
	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/logger"
)

// Build assembles one knowledge graph from the extraction results of a
// document.
//
// Entities are unioned by id: the first occurrence wins, a missing
// description is backfilled from a later duplicate and attribute bags are
// unioned. Relationships are unioned by (source, type, target); duplicates
// and relationships with a missing endpoint are dropped. Unless disabled,
// entities sharing a case-insensitive name are then collapsed into one.
func (g *GraphClient) Build(results []common.ExtractionResult) *common.KnowledgeGraph {
	var (
		order    []string
		entities = make(map[string]*common.Entity)
		rels     []common.Relationship
	)

	for _, res := range results {
		for _, e := range res.Entities {
			existing, ok := entities[e.ID]
			if !ok {
				e.Attributes = common.MergeAttributes(nil, e.Attributes)
				entities[e.ID] = &e
				order = append(order, e.ID)
				continue
			}
			if existing.Description == "" && e.Description != "" {
				existing.Description = e.Description
			}
			existing.Attributes = common.MergeAttributes(existing.Attributes, e.Attributes)
		}
		rels = append(rels, res.Relationships...)
	}

	redirect := map[string]string{}
	if g.mergeSimilar {
		order, redirect = mergeSimilarEntities(order, entities)
	}

	kg := common.NewKnowledgeGraph()
	for _, id := range order {
		kg.AddEntity(*entities[id])
	}

	seen := make(map[string]struct{}, len(rels))
	for _, r := range rels {
		selfLoop := r.SourceID == r.TargetID
		r = rewire(r, redirect)
		if !kg.HasEntity(r.SourceID) || !kg.HasEntity(r.TargetID) {
			continue
		}
		// loops created by collapsing two entities carry no information
		if r.SourceID == r.TargetID && !selfLoop {
			continue
		}
		key := r.Key()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		kg.AddRelationship(r)
	}

	logger.Info("[Graph] Built knowledge graph", "entities", kg.EntityCount(), "relationships", kg.RelationshipCount())
	return kg
}

// mergeSimilarEntities groups entities by trimmed lower case name and keeps,
// per group, the member with the longest description (first on ties). The
// returned map points every dropped id at the id that replaced it.
func mergeSimilarEntities(
	order []string,
	entities map[string]*common.Entity,
) ([]string, map[string]string) {
	var groupOrder []string
	groups := make(map[string][]string)
	for _, id := range order {
		key := strings.ToLower(strings.TrimSpace(entities[id].Name))
		if _, ok := groups[key]; !ok {
			groupOrder = append(groupOrder, key)
		}
		groups[key] = append(groups[key], id)
	}

	redirect := make(map[string]string)
	kept := make([]string, 0, len(groupOrder))
	for _, key := range groupOrder {
		members := groups[key]
		best := members[0]
		for _, id := range members[1:] {
			if utf8.RuneCountInString(entities[id].Description) > utf8.RuneCountInString(entities[best].Description) {
				best = id
			}
		}

		winner := entities[best]
		for _, id := range members {
			if id == best {
				continue
			}
			winner.Attributes = common.MergeAttributes(winner.Attributes, entities[id].Attributes)
			redirect[id] = best
			delete(entities, id)
		}
		kept = append(kept, best)
	}

	if len(redirect) > 0 {
		logger.Debug("[Graph] Merged similar entities", "merged", len(redirect))
	}
	return kept, redirect
}

// rewire moves the endpoints of r onto their replacements and refreshes its id.
func rewire(r common.Relationship, redirect map[string]string) common.Relationship {
	src, srcMoved := redirect[r.SourceID]
	tgt, tgtMoved := redirect[r.TargetID]
	if !srcMoved && !tgtMoved {
		return r
	}
	if srcMoved {
		r.SourceID = src
	}
	if tgtMoved {
		r.TargetID = tgt
	}
	r.ID = common.RelationshipID(r.SourceID, r.Type, r.TargetID)
	return r
}

// Merge unions graphs by id, first occurrence winning, without running the
// similar-entity pass. Relationships whose endpoints are missing from the
// merged entity set are dropped.
func Merge(graphs ...*common.KnowledgeGraph) *common.KnowledgeGraph {
	merged := common.NewKnowledgeGraph()

	for _, kg := range graphs {
		if kg == nil {
			continue
		}
		for _, e := range kg.Entities() {
			if !merged.HasEntity(e.ID) {
				merged.AddEntity(*e)
			}
		}
	}

	for _, kg := range graphs {
		if kg == nil {
			continue
		}
		for _, r := range kg.Relationships() {
			if _, ok := merged.Relationship(r.ID); ok {
				continue
			}
			if !merged.HasEntity(r.SourceID) || !merged.HasEntity(r.TargetID) {
				continue
			}
			merged.AddRelationship(*r)
		}
		for _, c := range kg.Communities() {
			if _, ok := merged.Community(c.ID); !ok {
				merged.AddCommunity(*c)
			}
		}
	}

	logger.Info(
		"[Graph] Merged knowledge graphs",
		"graphs", len(graphs),
		"entities", merged.EntityCount(),
		"relationships", merged.RelationshipCount(),
		"communities", merged.CommunityCount(),
	)
	return merged
}
