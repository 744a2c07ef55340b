// Package ranker scores matched documents under each rank strategy.
package ranker

import (
	"cmp"
	"math"
	"slices"

	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/document"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/searcher/parser"
)

// Hit is one matched document with its sub-scores. TF and TFIDF are summed
// across matched terms.
type Hit struct {
	Doc      document.Ord
	TF       uint32
	TFIDF    float64
	PageRank float64
	Score    float64
	Terms    []string
}

// Accumulator gathers per-document sub-scores across matched terms, keeping
// documents in first-seen order.
type Accumulator struct {
	docCount int
	pos      map[document.Ord]int
	hits     []Hit
}

func NewAccumulator(docCount int) *Accumulator {
	return &Accumulator{docCount: docCount, pos: make(map[document.Ord]int)}
}

// Add folds one term's postings into the accumulator.
func (a *Accumulator) Add(term string, postings index.PostingList) {
	idf := index.IDF(len(postings), a.docCount)
	for _, p := range postings {
		i, ok := a.pos[p.Doc]
		if !ok {
			i = len(a.hits)
			a.pos[p.Doc] = i
			a.hits = append(a.hits, Hit{Doc: p.Doc})
		}
		h := &a.hits[i]
		h.TF += p.Freq
		h.TFIDF += float64(p.Freq) * idf
		h.Terms = append(h.Terms, term)
	}
}

// Hits returns the accumulated hits in enumeration order.
func (a *Accumulator) Hits() []Hit {
	return a.hits
}

// Score computes the final score of a hit under rank.
func Score(rank parser.Rank, h Hit) float64 {
	switch rank {
	case parser.RankPR:
		return h.PageRank
	case parser.RankTFxPR:
		return float64(h.TF) * h.PageRank
	case parser.RankTFIDF:
		return h.TFIDF
	default:
		return float64(h.TF)
	}
}

// Rank scores hits with pagerank lookups and sorts them by score
// descending. The sort is stable, so equal scores keep enumeration order.
func Rank(hits []Hit, rank parser.Rank, pagerank func(document.Ord) float64) []Hit {
	for i := range hits {
		hits[i].PageRank = pagerank(hits[i].Doc)
		hits[i].Score = Score(rank, hits[i])
	}
	slices.SortStableFunc(hits, func(a, b Hit) int {
		return cmp.Compare(b.Score, a.Score)
	})
	return hits
}

// Window returns hits[(page-1)*size : page*size], or an empty slice when the
// page is past the end.
func Window[T any](items []T, page, size int) []T {
	if page < 1 || size < 1 {
		return items[:0:0]
	}
	// compare in pages first so (page-1)*size cannot overflow
	pages := len(items) / size
	if len(items)%size != 0 {
		pages++
	}
	if page > pages {
		return items[:0:0]
	}
	start := (page - 1) * size
	end := start + min(size, len(items)-start)
	return items[start:end]
}

// Round4 rounds a score for presentation.
func Round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
