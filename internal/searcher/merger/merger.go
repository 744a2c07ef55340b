// Package merger selects the top K entries of a scored stream without
// sorting all of it.
package merger

import (
	"container/heap"

	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/document"
)

// Scored is a document with a score.
type Scored struct {
	Doc   document.Ord
	Score float64
}

// TopK returns the k highest-scoring entries of scores, skipping exclude.
// Ties are broken by lower ordinal.
func TopK(scores []float64, k int, exclude func(document.Ord) bool) []Scored {
	if k <= 0 {
		return []Scored{}
	}
	h := &scoredHeap{}
	heap.Init(h)
	for i, s := range scores {
		o := document.Ord(i)
		if exclude != nil && exclude(o) {
			continue
		}
		heap.Push(h, Scored{Doc: o, Score: s})
		if h.Len() > k {
			heap.Pop(h)
		}
	}
	result := make([]Scored, h.Len())
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = heap.Pop(h).(Scored)
	}
	return result
}

// scoredHeap is a min-heap: the worst entry sits at the root.
type scoredHeap []Scored

func (h scoredHeap) Len() int { return len(h) }

func (h scoredHeap) Less(i, j int) bool {
	if h[i].Score != h[j].Score {
		return h[i].Score < h[j].Score
	}
	return h[i].Doc > h[j].Doc
}

func (h scoredHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *scoredHeap) Push(x any) {
	*h = append(*h, x.(Scored))
}

func (h *scoredHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
