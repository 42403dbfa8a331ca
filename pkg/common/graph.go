package common

import "encoding/json"

// KnowledgeGraph holds the entities, relationships and communities built for
// one document. All three collections are keyed by id with last-write-wins
// semantics on collision, and remember insertion order so iteration is
// deterministic.
//
// A KnowledgeGraph is not safe for concurrent mutation. The pipeline owns
// exactly one graph per call.
type KnowledgeGraph struct {
	entities          map[string]*Entity
	entityOrder       []string
	relationships     map[string]*Relationship
	relationshipOrder []string
	communities       map[string]*Community
	communityOrder    []string
}

// NewKnowledgeGraph returns an empty graph.
func NewKnowledgeGraph() *KnowledgeGraph {
	return &KnowledgeGraph{
		entities:      make(map[string]*Entity),
		relationships: make(map[string]*Relationship),
		communities:   make(map[string]*Community),
	}
}

// AddEntity stores e under its id, replacing any entity with the same id.
func (g *KnowledgeGraph) AddEntity(e Entity) {
	if _, ok := g.entities[e.ID]; !ok {
		g.entityOrder = append(g.entityOrder, e.ID)
	}
	g.entities[e.ID] = &e
}

// AddRelationship stores r under its id, replacing any relationship with the same id.
func (g *KnowledgeGraph) AddRelationship(r Relationship) {
	if _, ok := g.relationships[r.ID]; !ok {
		g.relationshipOrder = append(g.relationshipOrder, r.ID)
	}
	g.relationships[r.ID] = &r
}

// AddCommunity stores c under its id, replacing any community with the same id.
func (g *KnowledgeGraph) AddCommunity(c Community) {
	if _, ok := g.communities[c.ID]; !ok {
		g.communityOrder = append(g.communityOrder, c.ID)
	}
	g.communities[c.ID] = &c
}

// Entity returns the entity with the given id.
func (g *KnowledgeGraph) Entity(id string) (*Entity, bool) {
	e, ok := g.entities[id]
	return e, ok
}

// HasEntity reports whether id is a key of the entity set.
func (g *KnowledgeGraph) HasEntity(id string) bool {
	_, ok := g.entities[id]
	return ok
}

// Relationship returns the relationship with the given id.
func (g *KnowledgeGraph) Relationship(id string) (*Relationship, bool) {
	r, ok := g.relationships[id]
	return r, ok
}

// Community returns the community with the given id.
func (g *KnowledgeGraph) Community(id string) (*Community, bool) {
	c, ok := g.communities[id]
	return c, ok
}

// Entities returns all entities in insertion order.
func (g *KnowledgeGraph) Entities() []*Entity {
	out := make([]*Entity, 0, len(g.entityOrder))
	for _, id := range g.entityOrder {
		out = append(out, g.entities[id])
	}
	return out
}

// Relationships returns all relationships in insertion order.
func (g *KnowledgeGraph) Relationships() []*Relationship {
	out := make([]*Relationship, 0, len(g.relationshipOrder))
	for _, id := range g.relationshipOrder {
		out = append(out, g.relationships[id])
	}
	return out
}

// Communities returns all communities in insertion order.
func (g *KnowledgeGraph) Communities() []*Community {
	out := make([]*Community, 0, len(g.communityOrder))
	for _, id := range g.communityOrder {
		out = append(out, g.communities[id])
	}
	return out
}

// CommunitiesAtLevel returns the communities of one hierarchy level in insertion order.
func (g *KnowledgeGraph) CommunitiesAtLevel(level int) []*Community {
	var out []*Community
	for _, id := range g.communityOrder {
		if c := g.communities[id]; c.Level == level {
			out = append(out, c)
		}
	}
	return out
}

// RelationshipsForEntity returns every relationship that has id as source or target.
func (g *KnowledgeGraph) RelationshipsForEntity(id string) []*Relationship {
	var out []*Relationship
	for _, rid := range g.relationshipOrder {
		r := g.relationships[rid]
		if r.SourceID == id || r.TargetID == id {
			out = append(out, r)
		}
	}
	return out
}

// CommunityForEntity returns the first community, in insertion order, that
// contains the entity.
func (g *KnowledgeGraph) CommunityForEntity(id string) (*Community, bool) {
	for _, cid := range g.communityOrder {
		c := g.communities[cid]
		if c.Contains(id) {
			return c, true
		}
	}
	return nil, false
}

// SetCommunitySummary updates the summary of a stored community.
func (g *KnowledgeGraph) SetCommunitySummary(id, summary string) bool {
	c, ok := g.communities[id]
	if !ok {
		return false
	}
	c.Summary = summary
	return true
}

// EntityCount returns the number of entities.
func (g *KnowledgeGraph) EntityCount() int { return len(g.entities) }

// RelationshipCount returns the number of relationships.
func (g *KnowledgeGraph) RelationshipCount() int { return len(g.relationships) }

// CommunityCount returns the number of communities.
func (g *KnowledgeGraph) CommunityCount() int { return len(g.communities) }

type graphJSON struct {
	Entities      []Entity       `json:"entities"`
	Relationships []Relationship `json:"relationships"`
	Communities   []Community    `json:"communities"`
}

// MarshalJSON encodes the graph as three ordered lists.
func (g *KnowledgeGraph) MarshalJSON() ([]byte, error) {
	out := graphJSON{
		Entities:      make([]Entity, 0, len(g.entityOrder)),
		Relationships: make([]Relationship, 0, len(g.relationshipOrder)),
		Communities:   make([]Community, 0, len(g.communityOrder)),
	}
	for _, e := range g.Entities() {
		out.Entities = append(out.Entities, *e)
	}
	for _, r := range g.Relationships() {
		out.Relationships = append(out.Relationships, *r)
	}
	for _, c := range g.Communities() {
		out.Communities = append(out.Communities, *c)
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the form produced by MarshalJSON.
func (g *KnowledgeGraph) UnmarshalJSON(data []byte) error {
	var in graphJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*g = *NewKnowledgeGraph()
	for _, e := range in.Entities {
		g.AddEntity(e)
	}
	for _, r := range in.Relationships {
		g.AddRelationship(r)
	}
	for _, c := range in.Communities {
		g.AddCommunity(c)
	}
	return nil
}
