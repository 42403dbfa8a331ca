package community

import (
	"context"
	"sort"

	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/common"
)

// Edge is an undirected, weighted edge between two vertex indices.
type Edge struct {
	Source int
	Target int
	Weight float64
}

// Partitioner splits the vertices 0..n-1 of an undirected graph into
// disjoint groups. Higher resolution values favour more, smaller groups.
type Partitioner interface {
	Name() string
	Available() bool
	Partition(ctx context.Context, n int, edges []Edge, resolution float64) ([][]int, error)
}

type neighbor struct {
	node   int
	weight float64
}

// adjacency merges parallel edges and returns, per vertex, its neighbours
// sorted by index. Self loops are kept when keepLoops is set.
func adjacency(n int, edges []Edge, keepLoops bool) [][]neighbor {
	weights := make([]map[int]float64, n)
	for i := range weights {
		weights[i] = make(map[int]float64)
	}
	for _, e := range edges {
		if e.Source < 0 || e.Source >= n || e.Target < 0 || e.Target >= n {
			continue
		}
		w := e.Weight
		if w <= 0 {
			w = 1
		}
		if e.Source == e.Target {
			if keepLoops {
				weights[e.Source][e.Source] += 2 * w
			}
			continue
		}
		weights[e.Source][e.Target] += w
		weights[e.Target][e.Source] += w
	}

	adj := make([][]neighbor, n)
	for i, m := range weights {
		list := make([]neighbor, 0, len(m))
		for j, w := range m {
			list = append(list, neighbor{node: j, weight: w})
		}
		sort.Slice(list, func(a, b int) bool { return list[a].node < list[b].node })
		adj[i] = list
	}
	return adj
}

// project maps the entities of kg onto vertex indices in entity order and
// turns every relationship into an undirected edge. Self loops are dropped.
func project(kg *common.KnowledgeGraph, ids []string) []Edge {
	index := make(map[string]int, len(ids))
	for i, id := range ids {
		index[id] = i
	}

	var edges []Edge
	for _, r := range kg.Relationships() {
		s, okS := index[r.SourceID]
		t, okT := index[r.TargetID]
		if !okS || !okT || s == t {
			continue
		}
		edges = append(edges, Edge{Source: s, Target: t, Weight: r.Weight})
	}
	return edges
}

// groupByLabel turns a vertex labelling into groups ordered by their
// smallest member, members ascending.
func groupByLabel(labels []int) [][]int {
	var order []int
	groups := make(map[int][]int)
	for v, l := range labels {
		if _, ok := groups[l]; !ok {
			order = append(order, l)
		}
		groups[l] = append(groups[l], v)
	}
	out := make([][]int, 0, len(order))
	for _, l := range order {
		out = append(out, groups[l])
	}
	return out
}

// normalizePartition drops out-of-range and repeated vertices and empty
// parts, sorts members, and appends every uncovered vertex as a singleton.
func normalizePartition(n int, parts [][]int) [][]int {
	seen := make([]bool, n)
	var out [][]int
	for _, p := range parts {
		var members []int
		for _, v := range p {
			if v < 0 || v >= n || seen[v] {
				continue
			}
			seen[v] = true
			members = append(members, v)
		}
		if len(members) == 0 {
			continue
		}
		sort.Ints(members)
		out = append(out, members)
	}
	for v := 0; v < n; v++ {
		if !seen[v] {
			out = append(out, []int{v})
		}
	}
	return out
}
