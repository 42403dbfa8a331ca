package community

import (
	"context"
	"math"
	"sort"

	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/common"
)

// PageRankConfig tunes PageRank.
//
// The power iteration runs at most Iterations rounds and stops early once
// the scores move by less than Tolerance. DampingFactor is the probability
// of following an edge instead of jumping to a random entity. TopN limits
// Ranked, zero keeping every entity.
type PageRankConfig struct {
	Iterations    int
	DampingFactor float64
	Tolerance     float64
	TopN          int
}

// DefaultPageRankConfig returns 20 iterations, damping 0.85 and tolerance 1e-6.
func DefaultPageRankConfig() PageRankConfig {
	return PageRankConfig{
		Iterations:    20,
		DampingFactor: 0.85,
		Tolerance:     1e-6,
	}
}

// PageRankResult holds the scores of one PageRank run.
//
// Scores maps entity ids to scores summing to 1. Ranked lists the ids by
// descending score, ties kept in entity order. Iterations is the number of
// rounds actually run and Converged reports whether Tolerance was reached
// before the limit.
type PageRankResult struct {
	Scores     map[string]float64
	Ranked     []string
	Iterations int
	Converged  bool
}

// PageRank scores every entity of kg on the undirected projection of its
// relationships, weighted by relationship weight.
func PageRank(ctx context.Context, kg *common.KnowledgeGraph, config PageRankConfig) (*PageRankResult, error) {
	entities := kg.Entities()
	ids := make([]string, len(entities))
	for i, e := range entities {
		ids[i] = e.ID
	}
	rels := kg.Relationships()
	edges := make([]common.Relationship, len(rels))
	for i, r := range rels {
		edges[i] = *r
	}
	return ComputePageRank(ctx, ids, edges, config)
}

// ComputePageRank scores the given entities using only relationships with
// both endpoints among them.
func ComputePageRank(
	ctx context.Context,
	entityIDs []string,
	relationships []common.Relationship,
	config PageRankConfig,
) (*PageRankResult, error) {
	n := len(entityIDs)
	if n == 0 {
		return &PageRankResult{
			Scores:    map[string]float64{},
			Ranked:    []string{},
			Converged: true,
		}, nil
	}
	if config.Iterations <= 0 {
		config.Iterations = 20
	}
	if config.DampingFactor <= 0 || config.DampingFactor >= 1 {
		config.DampingFactor = 0.85
	}

	index := make(map[string]int, n)
	for i, id := range entityIDs {
		index[id] = i
	}
	var edges []Edge
	for _, r := range relationships {
		s, okS := index[r.SourceID]
		t, okT := index[r.TargetID]
		if okS && okT && s != t {
			edges = append(edges, Edge{Source: s, Target: t, Weight: r.Weight})
		}
	}

	adj := adjacency(n, edges, false)
	degree := make([]float64, n)
	for i, list := range adj {
		for _, nb := range list {
			degree[i] += nb.weight
		}
	}

	d := config.DampingFactor
	scores := make([]float64, n)
	for i := range scores {
		scores[i] = 1.0 / float64(n)
	}
	next := make([]float64, n)

	converged := false
	iterations := 0
	for iterations = 0; iterations < config.Iterations; iterations++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		// mass of vertices without edges is spread over the whole graph
		dangling := 0.0
		for i := range scores {
			if degree[i] == 0 {
				dangling += scores[i]
			}
		}
		base := (1.0-d)/float64(n) + d*dangling/float64(n)
		for i := range next {
			next[i] = base
		}
		for j, list := range adj {
			if degree[j] == 0 {
				continue
			}
			share := d * scores[j] / degree[j]
			for _, nb := range list {
				next[nb.node] += share * nb.weight
			}
		}

		maxDiff := 0.0
		for i := range scores {
			maxDiff = math.Max(maxDiff, math.Abs(next[i]-scores[i]))
		}
		scores, next = next, scores
		if maxDiff < config.Tolerance {
			converged = true
			iterations++
			break
		}
	}

	sum := 0.0
	for _, s := range scores {
		sum += s
	}
	scoreMap := make(map[string]float64, n)
	for i, id := range entityIDs {
		scoreMap[id] = scores[i] / sum
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	ranked := make([]string, 0, n)
	for _, i := range order {
		ranked = append(ranked, entityIDs[i])
	}
	if config.TopN > 0 && config.TopN < len(ranked) {
		ranked = ranked[:config.TopN]
	}

	return &PageRankResult{
		Scores:     scoreMap,
		Ranked:     ranked,
		Iterations: iterations,
		Converged:  converged,
	}, nil
}
