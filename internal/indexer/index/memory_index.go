package index

import (
	"slices"
	"strings"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/document"
)

// MemoryIndex accumulates postings while a build is running. Documents may
// be added concurrently and in any order; Snapshot sorts everything, so the
// result does not depend on arrival order.
type MemoryIndex struct {
	mu       sync.Mutex
	index    map[string]PostingList
	docCount int
	tokens   int64
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		index: make(map[string]PostingList),
	}
}

// AddDocument records the term counts of one document. Zero counts are
// ignored.
func (m *MemoryIndex) AddDocument(doc document.Ord, counts map[string]uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for term, freq := range counts {
		if freq == 0 {
			continue
		}
		list, exists := m.index[term]
		if !exists {
			term = strings.Clone(term)
		}
		m.index[term] = append(list, Posting{Doc: doc, Freq: freq})
		m.tokens += int64(freq)
	}
	m.docCount++
}

// Snapshot returns the accumulated entries sorted by term, with postings
// sorted by document. remap, when non-nil, rewrites ordinals; it must be
// monotonic and may drop a document by returning false.
func (m *MemoryIndex) Snapshot(remap func(document.Ord) (document.Ord, bool)) []TermEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := make([]TermEntry, 0, len(m.index))
	for term, list := range m.index {
		postings := make(PostingList, 0, len(list))
		for _, p := range list {
			if remap != nil {
				o, keep := remap(p.Doc)
				if !keep {
					continue
				}
				p.Doc = o
			}
			postings = append(postings, p)
		}
		if len(postings) == 0 {
			continue
		}
		slices.SortFunc(postings, func(a, b Posting) int {
			return int(a.Doc) - int(b.Doc)
		})
		entries = append(entries, TermEntry{Term: term, Postings: postings})
	}
	slices.SortFunc(entries, func(a, b TermEntry) int {
		return strings.Compare(a.Term, b.Term)
	})
	return entries
}

func (m *MemoryIndex) DocCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.docCount
}

// TokenCount is the total number of tokens added.
func (m *MemoryIndex) TokenCount() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokens
}
