package common

// Entity represents a node in the knowledge graph. An entity can be a person,
// organization, location, or any other typed thing mentioned in a document.
//
// The ID is a pure function of Type and Name (see EntityID), so extracting
// the same pair from two different chunks always yields the same entity.
type Entity struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Type        string         `json:"type"`
	Description string         `json:"description"`
	Attributes  map[string]any `json:"attributes,omitempty"`
}

// Relationship represents a directed, typed edge between two entities.
// Both SourceID and TargetID must be keys of the owning graph's entity set.
type Relationship struct {
	ID          string         `json:"id"`
	SourceID    string         `json:"source_id"`
	TargetID    string         `json:"target_id"`
	Type        string         `json:"type"`
	Description string         `json:"description"`
	Weight      float64        `json:"weight"`
	Attributes  map[string]any `json:"attributes,omitempty"`
}

// Community is a group of entities that are structurally or topically
// related. Communities are produced by the community detector, level 0
// being the finest complete partition of the graph.
//
// Rank is seeded from the member count and orders communities in
// Global Search. Summary is filled in later by the community summarizer.
type Community struct {
	ID        string   `json:"id"`
	Level     int      `json:"level"`
	EntityIDs []string `json:"entity_ids"`
	Title     string   `json:"title"`
	Summary   string   `json:"summary"`
	Rank      float64  `json:"rank"`
	ParentID  string   `json:"parent_id,omitempty"`
}

// ExtractionResult holds the entities and relationships extracted from a
// single chunk of text. SourceText is kept for provenance only.
type ExtractionResult struct {
	Entities      []Entity       `json:"entities"`
	Relationships []Relationship `json:"relationships"`
	SourceText    string         `json:"source_text"`
}

// IsEmpty reports whether the result carries neither entities nor relationships.
func (r ExtractionResult) IsEmpty() bool {
	return len(r.Entities) == 0 && len(r.Relationships) == 0
}

// Unit represents a contiguous, sentence aligned segment of a document.
// Units are the chunks handed to the extractor one at a time.
type Unit struct {
	ID    string `json:"id"`
	Index int    `json:"index"`
	Start int    `json:"start"`
	End   int    `json:"end"`
	Text  string `json:"text"`
}

// NewEntity creates an entity with its deterministic ID.
func NewEntity(name, entityType, description string) Entity {
	return Entity{
		ID:          EntityID(entityType, name),
		Name:        name,
		Type:        entityType,
		Description: description,
		Attributes:  map[string]any{},
	}
}

// NewRelationship creates a relationship with its deterministic ID and
// the default weight of 1.0.
func NewRelationship(sourceID, targetID, relType, description string) Relationship {
	return Relationship{
		ID:          RelationshipID(sourceID, relType, targetID),
		SourceID:    sourceID,
		TargetID:    targetID,
		Type:        relType,
		Description: description,
		Weight:      1.0,
		Attributes:  map[string]any{},
	}
}

// Key returns the composite dedup key of a relationship.
func (r Relationship) Key() string {
	return r.SourceID + "-" + r.Type + "-" + r.TargetID
}

// Contains reports whether the community has the given entity as a member.
func (c Community) Contains(entityID string) bool {
	for _, id := range c.EntityIDs {
		if id == entityID {
			return true
		}
	}
	return false
}

// MergeAttributes copies every key of src into dst that dst does not
// already have. A nil dst is allocated.
func MergeAttributes(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	for k, v := range src {
		if _, ok := dst[k]; !ok {
			dst[k] = v
		}
	}
	return dst
}
