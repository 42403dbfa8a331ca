package community

import (
	"context"
)

// LabelPropagation partitions a graph with weighted label propagation.
// Every vertex starts with its own label and repeatedly adopts the label
// with the highest total edge weight among its neighbours. A vertex keeps
// its label when that label is among the best; otherwise ties go to the
// largest label so runs are reproducible.
type LabelPropagation struct {
	MaxIterations int
}

// NewLabelPropagation returns a LabelPropagation partitioner running at
// most 20 iterations.
func NewLabelPropagation() *LabelPropagation {
	return &LabelPropagation{
		MaxIterations: 20,
	}
}

// Name returns "label-propagation".
func (p *LabelPropagation) Name() string { return "label-propagation" }

// Available always returns true.
func (p *LabelPropagation) Available() bool { return true }

// Partition implements Partitioner. Resolution is not used.
func (p *LabelPropagation) Partition(ctx context.Context, n int, edges []Edge, _ float64) ([][]int, error) {
	if n == 0 {
		return nil, nil
	}

	adj := adjacency(n, edges, false)
	labels := make([]int, n)
	for i := range labels {
		labels[i] = i
	}

	counts := make(map[int]float64)
	for iter := 0; iter < p.MaxIterations; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		changed := 0
		for u := 0; u < n; u++ {
			if len(adj[u]) == 0 {
				continue
			}

			clear(counts)
			maxWeight := 0.0
			for _, nb := range adj[u] {
				l := labels[nb.node]
				counts[l] += nb.weight
				if counts[l] > maxWeight {
					maxWeight = counts[l]
				}
			}

			best := labels[u]
			if counts[best] != maxWeight {
				best = -1
				for l, w := range counts {
					if w == maxWeight && l > best {
						best = l
					}
				}
			}

			if labels[u] != best {
				labels[u] = best
				changed++
			}
		}

		if changed == 0 {
			break
		}
	}

	return groupByLabel(labels), nil
}
