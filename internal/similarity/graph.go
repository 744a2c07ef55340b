// Package similarity builds the document similarity graph: an undirected
// graph with an edge between two documents whose term sets have a Jaccard
// similarity at or above a threshold.
package similarity

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/document"
)

// Edge is one neighbour of a node.
type Edge struct {
	To     document.Ord `json:"to"`
	Weight float64      `json:"w"`
}

// Graph stores one association list per node, sorted by weight descending
// and then by ordinal. It is immutable once built.
type Graph struct {
	adj   [][]Edge
	edges int
}

// NewGraph validates adj and wraps it. Every edge must be mirrored with the
// same weight, point at a different node in range, and weigh in (0, 1].
func NewGraph(adj [][]Edge) (*Graph, error) {
	n := len(adj)
	byTo := make([][]Edge, n)
	for i, list := range adj {
		byTo[i] = slices.SortedFunc(slices.Values(list), func(a, b Edge) int {
			return cmp.Compare(a.To, b.To)
		})
	}
	total := 0
	for from, list := range adj {
		for _, e := range list {
			if int(e.To) >= n {
				return nil, fmt.Errorf("node %d: neighbour %d out of range", from, e.To)
			}
			if int(e.To) == from {
				return nil, fmt.Errorf("node %d: self edge", from)
			}
			if !(e.Weight > 0 && e.Weight <= 1) {
				return nil, fmt.Errorf("node %d: weight %v outside (0,1]", from, e.Weight)
			}
			back, ok := findSorted(byTo[e.To], document.Ord(from))
			if !ok || back != e.Weight {
				return nil, fmt.Errorf("edge %d-%d is not symmetric", from, e.To)
			}
		}
		total += len(list)
		sortEdges(list)
	}
	return &Graph{adj: adj, edges: total / 2}, nil
}

func find(list []Edge, to document.Ord) (float64, bool) {
	for _, e := range list {
		if e.To == to {
			return e.Weight, true
		}
	}
	return 0, false
}

// findSorted is find over a list ordered by To.
func findSorted(list []Edge, to document.Ord) (float64, bool) {
	i, ok := slices.BinarySearchFunc(list, to, func(e Edge, t document.Ord) int {
		return cmp.Compare(e.To, t)
	})
	if !ok {
		return 0, false
	}
	return list[i].Weight, true
}

func sortEdges(list []Edge) {
	slices.SortFunc(list, func(a, b Edge) int {
		if c := cmp.Compare(b.Weight, a.Weight); c != 0 {
			return c
		}
		return cmp.Compare(a.To, b.To)
	})
}

// Len is the number of nodes, including isolated ones.
func (g *Graph) Len() int {
	return len(g.adj)
}

// Neighbors returns the edges of o, strongest first. Callers must not
// modify the slice.
func (g *Graph) Neighbors(o document.Ord) []Edge {
	return g.adj[o]
}

// Degree is the number of neighbours of o.
func (g *Graph) Degree(o document.Ord) int {
	return len(g.adj[o])
}

// NumEdges is the number of undirected edges.
func (g *Graph) NumEdges() int {
	return g.edges
}

// Weight returns the weight of edge a-b.
func (g *Graph) Weight(a, b document.Ord) (float64, bool) {
	return find(g.adj[a], b)
}

// Adjacency exposes the raw association lists for serialisation.
func (g *Graph) Adjacency() [][]Edge {
	return g.adj
}
