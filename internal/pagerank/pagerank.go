// Package pagerank computes a global authority score per document over the
// similarity graph.
package pagerank

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/document"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/similarity"
)

// DanglingPolicy decides what happens to the rank mass of nodes without
// neighbours.
type DanglingPolicy string

const (
	// Leak drops dangling mass each iteration, so the total can fall
	// below 1. This matches previously published scores.
	Leak DanglingPolicy = "leak"
	// Redistribute spreads dangling mass uniformly over all nodes, keeping
	// the total at 1.
	Redistribute DanglingPolicy = "redistribute"
)

// Options parameterises Compute.
type Options struct {
	Damping    float64
	Iterations int
	Dangling   DanglingPolicy
}

// DefaultOptions are damping 0.85, 30 iterations, leaking dangling mass.
func DefaultOptions() Options {
	return Options{Damping: 0.85, Iterations: 30, Dangling: Leak}
}

func (o Options) validate() error {
	if o.Damping <= 0 || o.Damping >= 1 {
		return fmt.Errorf("damping must be in (0,1), got %v", o.Damping)
	}
	if o.Iterations < 0 {
		return fmt.Errorf("iterations must not be negative, got %d", o.Iterations)
	}
	switch o.Dangling {
	case Leak, Redistribute:
		return nil
	default:
		return fmt.Errorf("unknown dangling policy %q", o.Dangling)
	}
}

// Graph is the adjacency view PageRank needs. Edges are symmetric, so a
// node's neighbours are both its in-links and its out-links.
type Graph interface {
	Len() int
	Degree(o document.Ord) int
	Neighbors(o document.Ord) []similarity.Edge
}

// Vector holds one score per document ordinal.
type Vector []float64

// Sum is the total rank mass.
func (v Vector) Sum() float64 {
	var s float64
	for _, x := range v {
		s += x
	}
	return s
}

// Compute runs a fixed number of synchronous power iterations starting from
// the uniform distribution:
//
//	pr'[v] = (1-d)/N + d * Σ_{u ∈ N(v)} pr[u] / deg(u)
//
// No convergence check is made.
func Compute(ctx context.Context, g Graph, opts Options) (Vector, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	start := time.Now()
	n := g.Len()
	if n == 0 {
		return Vector{}, nil
	}
	nf := float64(n)
	pr := make(Vector, n)
	next := make(Vector, n)
	for i := range pr {
		pr[i] = 1 / nf
	}
	share := make([]float64, n)
	for iter := 0; iter < opts.Iterations; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var dangling float64
		for u := 0; u < n; u++ {
			if d := g.Degree(document.Ord(u)); d > 0 {
				share[u] = pr[u] / float64(d)
			} else {
				share[u] = 0
				dangling += pr[u]
			}
		}
		base := (1 - opts.Damping) / nf
		if opts.Dangling == Redistribute {
			base += opts.Damping * dangling / nf
		}
		for v := 0; v < n; v++ {
			var in float64
			for _, e := range g.Neighbors(document.Ord(v)) {
				in += share[e.To]
			}
			next[v] = base + opts.Damping*in
		}
		pr, next = next, pr
	}
	slog.Default().With("component", "pagerank").Info("pagerank computed",
		"nodes", n,
		"iterations", opts.Iterations,
		"dangling_policy", opts.Dangling,
		"mass", pr.Sum(),
		"duration", time.Since(start),
	)
	return pr, nil
}
