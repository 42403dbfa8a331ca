package graph

import (
	"testing"

	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertNoDangling(t *testing.T, kg *common.KnowledgeGraph) {
	t.Helper()
	for _, r := range kg.Relationships() {
		assert.True(t, kg.HasEntity(r.SourceID), "relationship %s has missing source %s", r.ID, r.SourceID)
		assert.True(t, kg.HasEntity(r.TargetID), "relationship %s has missing target %s", r.ID, r.TargetID)
	}
}

func TestBuildDeduplicatesAcrossChunks(t *testing.T) {
	zhang := common.NewEntity("张三", "person", "")
	li := common.NewEntity("李四", "person", "设计师")
	zhangAgain := common.NewEntity("张三", "person", "工程师")
	zhangAgain.Attributes["age"] = 30

	results := []common.ExtractionResult{
		{Entities: []common.Entity{zhang}},
		{Entities: []common.Entity{li}},
		{Entities: []common.Entity{zhangAgain}},
	}

	kg := NewGraphClient(NewGraphClientParams{}).Build(results)

	require.Equal(t, 2, kg.EntityCount())
	got, ok := kg.Entity(zhang.ID)
	require.True(t, ok)
	assert.Equal(t, "工程师", got.Description, "missing description is backfilled")
	assert.Equal(t, 30, got.Attributes["age"])
	assert.Equal(t, zhang.ID, kg.Entities()[0].ID, "first occurrence keeps its position")
}

func TestBuildDropsDuplicateAndDanglingRelationships(t *testing.T) {
	a := common.NewEntity("A", "概念", "")
	b := common.NewEntity("B", "概念", "")
	ab := common.NewRelationship(a.ID, b.ID, "相关", "first")
	abAgain := common.NewRelationship(a.ID, b.ID, "相关", "second")
	dangling := common.NewRelationship(a.ID, common.EntityID("概念", "missing"), "相关", "")

	kg := NewGraphClient(NewGraphClientParams{}).Build([]common.ExtractionResult{
		{Entities: []common.Entity{a, b}, Relationships: []common.Relationship{ab, dangling}},
		{Relationships: []common.Relationship{abAgain}},
	})

	require.Equal(t, 1, kg.RelationshipCount())
	got, _ := kg.Relationship(ab.ID)
	assert.Equal(t, "first", got.Description)
	assertNoDangling(t, kg)
}

func TestBuildMergesSimilarEntities(t *testing.T) {
	short := common.NewEntity("OpenAI", "组织", "公司")
	long := common.NewEntity("openai ", "技术", "人工智能研究公司")
	long.Attributes["founded"] = 2015
	other := common.NewEntity("GPT-4", "产品", "")

	r1 := common.NewRelationship(other.ID, short.ID, "属于", "")
	r2 := common.NewRelationship(other.ID, long.ID, "属于", "")
	loop := common.NewRelationship(short.ID, long.ID, "相关", "")

	results := []common.ExtractionResult{{
		Entities:      []common.Entity{short, long, other},
		Relationships: []common.Relationship{r1, r2, loop},
	}}

	kg := NewGraphClient(NewGraphClientParams{}).Build(results)

	require.Equal(t, 2, kg.EntityCount())
	kept, ok := kg.Entity(long.ID)
	require.True(t, ok, "longest description wins")
	assert.Equal(t, 2015, kept.Attributes["founded"])
	assert.False(t, kg.HasEntity(short.ID))

	require.Equal(t, 1, kg.RelationshipCount(), "rewired duplicates collapse and collapse loops are dropped")
	rel := kg.Relationships()[0]
	assert.Equal(t, other.ID, rel.SourceID)
	assert.Equal(t, long.ID, rel.TargetID)
	assert.Equal(t, common.RelationshipID(other.ID, "属于", long.ID), rel.ID)
	assertNoDangling(t, kg)

	kg = NewGraphClient(NewGraphClientParams{DisableMergeSimilar: true}).Build(results)
	assert.Equal(t, 3, kg.EntityCount())
	assert.Equal(t, 3, kg.RelationshipCount())
}

func TestBuildKeepsOriginalSelfLoops(t *testing.T) {
	a := common.NewEntity("A", "概念", "")
	loop := common.NewRelationship(a.ID, a.ID, "影响", "")

	kg := NewGraphClient(NewGraphClientParams{}).Build([]common.ExtractionResult{
		{Entities: []common.Entity{a}, Relationships: []common.Relationship{loop}},
	})
	assert.Equal(t, 1, kg.RelationshipCount())
}

func TestBuildEmpty(t *testing.T) {
	kg := NewGraphClient(NewGraphClientParams{}).Build(nil)
	assert.Equal(t, 0, kg.EntityCount())
	assert.Equal(t, 0, kg.RelationshipCount())
}

func TestMerge(t *testing.T) {
	a := common.NewEntity("A", "概念", "first")
	aOther := common.NewEntity("A", "概念", "second")
	b := common.NewEntity("B", "概念", "")
	c := common.NewEntity("C", "概念", "")
	ab := common.NewRelationship(a.ID, b.ID, "相关", "")
	bc := common.NewRelationship(b.ID, c.ID, "相关", "")

	g1 := common.NewKnowledgeGraph()
	g1.AddEntity(a)
	g1.AddEntity(b)
	g1.AddRelationship(ab)
	g1.AddCommunity(common.Community{ID: "c1", EntityIDs: []string{a.ID, b.ID}, Title: "社区 1", Rank: 2})

	// bc points at C, which only g3 provides
	g2 := common.NewKnowledgeGraph()
	g2.AddEntity(aOther)
	g2.AddEntity(b)
	g2.AddRelationship(bc)

	g3 := common.NewKnowledgeGraph()
	g3.AddEntity(c)

	merged := Merge(g1, g2, nil, g3)

	assert.Equal(t, 3, merged.EntityCount())
	got, _ := merged.Entity(a.ID)
	assert.Equal(t, "first", got.Description)
	assert.Equal(t, 2, merged.RelationshipCount())
	assert.Equal(t, 1, merged.CommunityCount())
	assertNoDangling(t, merged)

	similar := common.NewKnowledgeGraph()
	similar.AddEntity(common.NewEntity("x", "概念", ""))
	similar.AddEntity(common.NewEntity("X", "概念", ""))
	assert.Equal(t, 2, Merge(similar).EntityCount(), "merge does not collapse similar names")
}
