package common

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntityIDDeterminism(t *testing.T) {
	tests := []struct {
		name       string
		entityType string
		entityName string
	}{
		{name: "chinese person", entityType: "人物", entityName: "张三"},
		{name: "latin term", entityType: "技术", entityName: "Kubernetes"},
		{name: "empty type", entityType: "", entityName: "x"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			a := EntityID(tc.entityType, tc.entityName)
			b := NewEntity(tc.entityName, tc.entityType, "other description").ID
			assert.Equal(t, a, b)
			assert.Len(t, a, 12)
		})
	}

	assert.NotEqual(t, EntityID("人物", "张三"), EntityID("组织", "张三"))
}

func TestCommunityIDStable(t *testing.T) {
	assert.Equal(t, CommunityID(0, 3), CommunityID(0, 3))
	assert.NotEqual(t, CommunityID(0, 3), CommunityID(1, 3))
	assert.Len(t, CommunityID(2, 7), 12)
}

func TestKnowledgeGraphOrderAndLookup(t *testing.T) {
	g := NewKnowledgeGraph()
	a := NewEntity("A", "概念", "")
	b := NewEntity("B", "概念", "")
	c := NewEntity("C", "概念", "")
	g.AddEntity(a)
	g.AddEntity(b)
	g.AddEntity(c)

	// last write wins but keeps original position
	g.AddEntity(Entity{ID: a.ID, Name: "A", Type: "概念", Description: "updated"})

	ents := g.Entities()
	require.Len(t, ents, 3)
	assert.Equal(t, []string{"A", "B", "C"}, []string{ents[0].Name, ents[1].Name, ents[2].Name})
	assert.Equal(t, "updated", ents[0].Description)

	ab := NewRelationship(a.ID, b.ID, "相关", "")
	bc := NewRelationship(b.ID, c.ID, "相关", "")
	g.AddRelationship(ab)
	g.AddRelationship(bc)

	assert.Len(t, g.RelationshipsForEntity(b.ID), 2)
	assert.Len(t, g.RelationshipsForEntity(a.ID), 1)

	g.AddCommunity(Community{ID: "c1", EntityIDs: []string{a.ID, b.ID}, Title: "社区 1", Rank: 2})
	com, ok := g.CommunityForEntity(b.ID)
	require.True(t, ok)
	assert.Equal(t, "c1", com.ID)
	_, ok = g.CommunityForEntity(c.ID)
	assert.False(t, ok)

	assert.True(t, g.SetCommunitySummary("c1", "summary"))
	assert.False(t, g.SetCommunitySummary("missing", "summary"))
	got, _ := g.Community("c1")
	assert.Equal(t, "summary", got.Summary)

	assert.Equal(t, 3, g.EntityCount())
	assert.Equal(t, 2, g.RelationshipCount())
	assert.Equal(t, 1, g.CommunityCount())
}

func TestKnowledgeGraphJSONRoundTripKeepsOrder(t *testing.T) {
	g := NewKnowledgeGraph()
	for _, name := range []string{"Z", "M", "A"} {
		g.AddEntity(NewEntity(name, "概念", name+" desc"))
	}
	data, err := json.Marshal(g)
	require.NoError(t, err)

	var back KnowledgeGraph
	require.NoError(t, json.Unmarshal(data, &back))

	names := []string{}
	for _, e := range back.Entities() {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"Z", "M", "A"}, names)
}
