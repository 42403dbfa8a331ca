package community

import (
	"context"
	"fmt"

	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/common"
	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/logger"
)

const defaultMinSplitSize = 4

// DetectOptions tunes community detection.
//
// Resolution is handed to the partitioner. MaxLevels bounds the depth of
// DetectHierarchy and communities smaller than MinSplitSize are never
// subdivided; Detect only uses Resolution.
type DetectOptions struct {
	Resolution   float64
	MaxLevels    int
	MinSplitSize int
}

// DefaultDetectOptions returns Resolution 1.0, MaxLevels 3 and MinSplitSize 4.
func DefaultDetectOptions() DetectOptions {
	return DetectOptions{
		Resolution:   1.0,
		MaxLevels:    3,
		MinSplitSize: defaultMinSplitSize,
	}
}

// Detector partitions the entities of a knowledge graph into communities.
type Detector struct {
	partitioner Partitioner
}

// NewDetector returns a detector using p. A nil p always uses the
// connected-components fallback.
func NewDetector(p Partitioner) *Detector {
	return &Detector{partitioner: p}
}

// Detect returns a complete, disjoint partition of the entities of kg. All
// communities are at level 0.
//
// When no partitioner is available or it fails, connected components are
// returned instead. An empty graph gives an empty slice.
func (d *Detector) Detect(ctx context.Context, kg *common.KnowledgeGraph, opts DetectOptions) []common.Community {
	levels := d.detect(ctx, kg, opts, 1)
	if len(levels) == 0 {
		return []common.Community{}
	}
	return levels[0]
}

// DetectHierarchy returns up to MaxLevels partitions of kg, levels[0] being
// the partition Detect returns. Each further level refines the previous one:
// a community of at least MinSplitSize members that splits into two or more
// parts on its induced subgraph is replaced by those parts, every other
// community is carried down as a single child. Children point at their
// parent via ParentID, and every level covers each entity exactly once.
// Refinement stops at the first level where nothing splits.
func (d *Detector) DetectHierarchy(ctx context.Context, kg *common.KnowledgeGraph, opts DetectOptions) [][]common.Community {
	maxLevels := opts.MaxLevels
	if maxLevels < 1 {
		maxLevels = 1
	}
	levels := d.detect(ctx, kg, opts, maxLevels)
	if levels == nil {
		return [][]common.Community{}
	}
	return levels
}

func (d *Detector) detect(ctx context.Context, kg *common.KnowledgeGraph, opts DetectOptions, maxLevels int) [][]common.Community {
	if kg == nil || kg.EntityCount() == 0 {
		return nil
	}
	if opts.Resolution <= 0 {
		opts.Resolution = 1.0
	}
	if opts.MinSplitSize <= 0 {
		opts.MinSplitSize = defaultMinSplitSize
	}

	entities := kg.Entities()
	ids := make([]string, len(entities))
	for i, e := range entities {
		ids[i] = e.ID
	}
	edges := project(kg, ids)

	if d.partitioner == nil || !d.partitioner.Available() {
		logger.Debug("[Community] No partitioner available, using connected components")
		return [][]common.Community{connectedComponents(ids, edges)}
	}

	parts, err := d.partitioner.Partition(ctx, len(ids), edges, opts.Resolution)
	if err != nil {
		logger.Warn("[Community] Partitioning failed, using connected components", "partitioner", d.partitioner.Name(), "err", err)
		return [][]common.Community{connectedComponents(ids, edges)}
	}
	parts = normalizePartition(len(ids), parts)

	top := make([]common.Community, 0, len(parts))
	for idx, members := range parts {
		top = append(top, newCommunity(0, idx, fmt.Sprintf("社区 %d", idx+1), "", members, ids))
	}

	levels := [][]common.Community{top}
	for level := 1; level < maxLevels; level++ {
		next, split := d.refine(ctx, level, levels[level-1], ids, edges, opts)
		if !split {
			break
		}
		levels = append(levels, next)
	}

	logger.Info("[Community] Detected communities", "partitioner", d.partitioner.Name(), "communities", len(top), "levels", len(levels))
	return levels
}

// refine builds level from parents. split reports whether any parent was
// divided.
func (d *Detector) refine(
	ctx context.Context,
	level int,
	parents []common.Community,
	ids []string,
	edges []Edge,
	opts DetectOptions,
) (children []common.Community, split bool) {
	index := make(map[string]int, len(ids))
	for i, id := range ids {
		index[id] = i
	}

	children = make([]common.Community, 0, len(parents))
	for _, parent := range parents {
		members := make([]int, len(parent.EntityIDs))
		for i, id := range parent.EntityIDs {
			members[i] = index[id]
		}

		parts := d.split(ctx, level, parent, members, edges, opts)
		if len(parts) < 2 {
			children = append(children, newCommunity(level, len(children), parent.Title, parent.ID, members, ids))
			continue
		}

		split = true
		for k, part := range parts {
			global := make([]int, len(part))
			for i, v := range part {
				global[i] = members[v]
			}
			title := fmt.Sprintf("%s-%d", parent.Title, k+1)
			children = append(children, newCommunity(level, len(children), title, parent.ID, global, ids))
		}
	}
	return children, split
}

// split partitions the subgraph induced by members. Parts index into members;
// nil means parent stays whole.
func (d *Detector) split(
	ctx context.Context,
	level int,
	parent common.Community,
	members []int,
	edges []Edge,
	opts DetectOptions,
) [][]int {
	if len(members) < opts.MinSplitSize {
		return nil
	}

	// local vertex i is global vertex members[i]
	local := make(map[int]int, len(members))
	for i, v := range members {
		local[v] = i
	}
	var sub []Edge
	for _, e := range edges {
		s, okS := local[e.Source]
		t, okT := local[e.Target]
		if okS && okT {
			sub = append(sub, Edge{Source: s, Target: t, Weight: e.Weight})
		}
	}
	if len(sub) == 0 {
		return nil
	}

	parts, err := d.partitioner.Partition(ctx, len(members), sub, opts.Resolution)
	if err != nil {
		logger.Warn("[Community] Could not refine community", "community", parent.ID, "level", level, "err", err)
		return nil
	}
	return normalizePartition(len(members), parts)
}

func newCommunity(level, idx int, title, parentID string, members []int, ids []string) common.Community {
	entityIDs := make([]string, len(members))
	for i, v := range members {
		entityIDs[i] = ids[v]
	}
	return common.Community{
		ID:        common.CommunityID(level, idx),
		Level:     level,
		EntityIDs: entityIDs,
		Title:     title,
		Rank:      float64(len(entityIDs)),
		ParentID:  parentID,
	}
}

// connectedComponents runs a breadth-first search over the undirected
// adjacency in entity order. Components are titled "组 N", entities without
// any relationship "孤立实体 N".
func connectedComponents(ids []string, edges []Edge) []common.Community {
	adj := adjacency(len(ids), edges, false)
	visited := make([]bool, len(ids))

	var communities []common.Community
	for start := range ids {
		if visited[start] {
			continue
		}

		var component []string
		queue := []int{start}
		visited[start] = true
		for len(queue) > 0 {
			v := queue[0]
			queue = queue[1:]
			component = append(component, ids[v])
			for _, nb := range adj[v] {
				if !visited[nb.node] {
					visited[nb.node] = true
					queue = append(queue, nb.node)
				}
			}
		}

		idx := len(communities)
		title := fmt.Sprintf("组 %d", idx+1)
		if len(adj[start]) == 0 {
			title = fmt.Sprintf("孤立实体 %d", idx+1)
		}
		communities = append(communities, common.Community{
			ID:        fmt.Sprintf("simple-%d", idx),
			Level:     0,
			EntityIDs: component,
			Title:     title,
			Rank:      float64(len(component)),
		})
	}

	logger.Debug("[Community] Connected components", "communities", len(communities))
	return communities
}
