package community

import (
	"context"
)

const (
	louvainMaxPasses = 100
	louvainEpsilon   = 1e-12
)

// Louvain partitions a graph by greedy modularity optimisation. Each round
// moves single vertices to the neighbouring community with the best
// modularity gain, then collapses communities into vertices and repeats on
// the smaller graph. Vertices are visited in index order so the result is
// deterministic.
type Louvain struct {
	// MaxRounds bounds the number of aggregation rounds, 0 means unbounded.
	MaxRounds int
}

// NewLouvain returns a Louvain partitioner.
func NewLouvain() *Louvain {
	return &Louvain{}
}

// Name returns "louvain".
func (l *Louvain) Name() string { return "louvain" }

// Available always returns true.
func (l *Louvain) Available() bool { return true }

// Partition implements Partitioner.
func (l *Louvain) Partition(ctx context.Context, n int, edges []Edge, resolution float64) ([][]int, error) {
	if n == 0 {
		return nil, nil
	}
	if resolution <= 0 {
		resolution = 1.0
	}

	adj := adjacency(n, edges, false)

	// membership of every original vertex in the current aggregated graph
	membership := make([]int, n)
	for i := range membership {
		membership[i] = i
	}

	for round := 0; l.MaxRounds == 0 || round < l.MaxRounds; round++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		comm, moved := localMoving(adj, resolution)
		if !moved {
			break
		}

		labels, count := renumber(comm)
		for v := range membership {
			membership[v] = labels[membership[v]]
		}
		if count == len(adj) {
			break
		}
		adj = aggregate(adj, labels, count)
	}

	return groupByLabel(membership), nil
}

// localMoving runs the first Louvain phase and reports whether any vertex
// changed community.
func localMoving(adj [][]neighbor, resolution float64) ([]int, bool) {
	n := len(adj)
	comm := make([]int, n)
	degree := make([]float64, n)
	total := make([]float64, n)
	m2 := 0.0
	for i, list := range adj {
		comm[i] = i
		for _, nb := range list {
			degree[i] += nb.weight
		}
		total[i] = degree[i]
		m2 += degree[i]
	}
	if m2 == 0 {
		return comm, false
	}

	movedAny := false
	linkTo := make(map[int]float64)
	for pass := 0; pass < louvainMaxPasses; pass++ {
		moved := false
		for i := 0; i < n; i++ {
			current := comm[i]
			clear(linkTo)
			var candidates []int
			for _, nb := range adj[i] {
				if nb.node == i {
					continue
				}
				c := comm[nb.node]
				if _, ok := linkTo[c]; !ok {
					candidates = append(candidates, c)
				}
				linkTo[c] += nb.weight
			}

			total[current] -= degree[i]
			best := current
			bestGain := linkTo[current] - resolution*total[current]*degree[i]/m2
			for _, c := range candidates {
				gain := linkTo[c] - resolution*total[c]*degree[i]/m2
				if gain > bestGain+louvainEpsilon {
					best = c
					bestGain = gain
				}
			}
			total[best] += degree[i]

			if best != current {
				comm[i] = best
				moved = true
				movedAny = true
			}
		}
		if !moved {
			break
		}
	}
	return comm, movedAny
}

// renumber maps community labels onto 0..count-1 in order of first use.
func renumber(comm []int) ([]int, int) {
	ids := make(map[int]int)
	labels := make([]int, len(comm))
	for i, c := range comm {
		id, ok := ids[c]
		if !ok {
			id = len(ids)
			ids[c] = id
		}
		labels[i] = id
	}
	return labels, len(ids)
}

// aggregate collapses every community into one vertex. Internal weight
// becomes a self loop so degrees are preserved.
func aggregate(adj [][]neighbor, labels []int, count int) [][]neighbor {
	var edges []Edge
	loops := make([]float64, count)
	for i, list := range adj {
		for _, nb := range list {
			ci, cj := labels[i], labels[nb.node]
			if ci == cj {
				loops[ci] += nb.weight
				continue
			}
			// every undirected edge appears twice in adj
			if i < nb.node {
				edges = append(edges, Edge{Source: ci, Target: cj, Weight: nb.weight})
			}
		}
	}

	next := adjacency(count, edges, false)
	for c, w := range loops {
		if w > 0 {
			next[c] = append(next[c], neighbor{node: c, weight: w})
		}
	}
	return next
}
