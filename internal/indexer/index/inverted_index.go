// Package index holds the inverted index: a sorted vocabulary with one
// posting list per term, addressed by dense document ordinals.
package index

import (
	"fmt"
	"iter"
	"math"
	"slices"

	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/document"
)

// InvertedIndex is immutable once built and safe for concurrent readers.
type InvertedIndex struct {
	terms    []string
	postings []PostingList
	lookup   map[string]uint32
	docCount int
}

// New validates entries and builds an index over docCount documents.
// Entries must be sorted by term without duplicates, postings sorted by
// document without duplicates, every frequency positive and every ordinal
// below docCount.
func New(docCount int, entries []TermEntry) (*InvertedIndex, error) {
	ix := &InvertedIndex{
		terms:    make([]string, len(entries)),
		postings: make([]PostingList, len(entries)),
		lookup:   make(map[string]uint32, len(entries)),
		docCount: docCount,
	}
	for i, e := range entries {
		if e.Term == "" {
			return nil, fmt.Errorf("entry %d: empty term", i)
		}
		if i > 0 && entries[i-1].Term >= e.Term {
			return nil, fmt.Errorf("terms not strictly sorted at %q", e.Term)
		}
		if len(e.Postings) == 0 {
			return nil, fmt.Errorf("term %q has no postings", e.Term)
		}
		for j, p := range e.Postings {
			if p.Freq == 0 {
				return nil, fmt.Errorf("term %q: zero frequency for document %d", e.Term, p.Doc)
			}
			if int(p.Doc) >= docCount {
				return nil, fmt.Errorf("term %q: document ordinal %d out of range", e.Term, p.Doc)
			}
			if j > 0 && e.Postings[j-1].Doc >= p.Doc {
				return nil, fmt.Errorf("term %q: postings not strictly sorted", e.Term)
			}
		}
		ix.terms[i] = e.Term
		ix.postings[i] = e.Postings
		ix.lookup[e.Term] = uint32(i)
	}
	return ix, nil
}

// Lookup returns the postings for term, or nil when it is not indexed.
func (ix *InvertedIndex) Lookup(term string) PostingList {
	i, ok := ix.lookup[term]
	if !ok {
		return nil
	}
	return ix.postings[i]
}

// DocFreq is the number of documents containing term.
func (ix *InvertedIndex) DocFreq(term string) int {
	return len(ix.Lookup(term))
}

// DocCount is the corpus size N the index was built over.
func (ix *InvertedIndex) DocCount() int {
	return ix.docCount
}

// NumTerms is the vocabulary size.
func (ix *InvertedIndex) NumTerms() int {
	return len(ix.terms)
}

// Terms returns the sorted vocabulary. Callers must not modify it.
func (ix *InvertedIndex) Terms() []string {
	return ix.terms
}

// Entry returns the term and postings at vocabulary position i.
func (ix *InvertedIndex) Entry(i int) (string, PostingList) {
	return ix.terms[i], ix.postings[i]
}

// All yields every term with its postings in vocabulary order.
func (ix *InvertedIndex) All() iter.Seq2[string, PostingList] {
	return func(yield func(string, PostingList) bool) {
		for i, t := range ix.terms {
			if !yield(t, ix.postings[i]) {
				return
			}
		}
	}
}

// NumPostings is the total number of (term, document) pairs.
func (ix *InvertedIndex) NumPostings() int {
	n := 0
	for _, p := range ix.postings {
		n += len(p)
	}
	return n
}

// DocTermSets returns, for every document, the ascending vocabulary
// positions of the terms it contains. It is the token-set view the
// similarity builder consumes.
func (ix *InvertedIndex) DocTermSets() [][]uint32 {
	sizes := make([]int, ix.docCount)
	for _, list := range ix.postings {
		for _, p := range list {
			sizes[p.Doc]++
		}
	}
	sets := make([][]uint32, ix.docCount)
	for d, n := range sizes {
		sets[d] = make([]uint32, 0, n)
	}
	// vocabulary order is ascending, so each set comes out sorted
	for t, list := range ix.postings {
		for _, p := range list {
			sets[p.Doc] = append(sets[p.Doc], uint32(t))
		}
	}
	return sets
}

// Frequency returns the count of term in doc, or 0.
func (ix *InvertedIndex) Frequency(term string, doc document.Ord) uint32 {
	list := ix.Lookup(term)
	i, found := slices.BinarySearchFunc(list, doc, func(p Posting, d document.Ord) int {
		return int(p.Doc) - int(d)
	})
	if !found {
		return 0
	}
	return list[i].Freq
}

// IDF is the smoothed inverse document frequency ln((n+1)/(df+1)) + 1. It is
// always positive and never increases as df grows.
func IDF(df, n int) float64 {
	return math.Log(float64(n+1)/float64(df+1)) + 1
}
