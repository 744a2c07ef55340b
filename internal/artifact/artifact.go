// Package artifact persists and loads the derived artifact set (metadata,
// inverted index, similarity graph and PageRank vector) as one versioned
// generation, and holds the generation currently being served.
package artifact

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/document"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/pagerank"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/similarity"
)

// Set is one complete, immutable build output. Every artifact is addressed
// by the ordinals of Corpus.
type Set struct {
	Generation uint64
	BuiltAt    time.Time
	Corpus     *document.Corpus
	Index      *index.InvertedIndex
	Graph      *similarity.Graph
	PageRank   pagerank.Vector
}

// Validate checks that all artifacts cover the same documents.
func (s *Set) Validate() error {
	if s.Corpus == nil || s.Index == nil || s.Graph == nil || s.PageRank == nil {
		return fmt.Errorf("artifact set is incomplete")
	}
	n := s.Corpus.Len()
	if s.Index.DocCount() != n {
		return fmt.Errorf("index covers %d documents, metadata has %d", s.Index.DocCount(), n)
	}
	if s.Graph.Len() != n {
		return fmt.Errorf("graph has %d nodes, metadata has %d", s.Graph.Len(), n)
	}
	if len(s.PageRank) != n {
		return fmt.Errorf("pagerank has %d scores, metadata has %d", len(s.PageRank), n)
	}
	return nil
}

// Manifest summarises a generation. It is written after every other
// artifact, so its presence marks the generation as complete.
type Manifest struct {
	Generation uint64            `json:"generation"`
	BuiltAt    time.Time         `json:"built_at"`
	Documents  int               `json:"documents"`
	Terms      int               `json:"terms"`
	Edges      int               `json:"edges"`
	Checksums  map[string]uint32 `json:"checksums,omitempty"`
}

// Manifest describes s.
func (s *Set) Manifest() Manifest {
	return Manifest{
		Generation: s.Generation,
		BuiltAt:    s.BuiltAt.UTC(),
		Documents:  s.Corpus.Len(),
		Terms:      s.Index.NumTerms(),
		Edges:      s.Graph.NumEdges(),
	}
}

// Store persists artifact generations.
type Store interface {
	// Save writes s as a new generation and makes it current. A zero
	// Generation is replaced with the next free number.
	Save(ctx context.Context, s *Set) error
	// Load returns the current generation. A missing or inconsistent
	// artifact is a data integrity error.
	Load(ctx context.Context) (*Set, error)
	// Current returns the current generation number, 0 when none exists.
	Current(ctx context.Context) (uint64, error)
	Close() error
}

// Holder publishes the artifact set being served. Readers take a snapshot
// with Current and keep using it for the whole request; Swap replaces the
// set atomically and is the only mutation.
type Holder struct {
	cur atomic.Pointer[Set]
}

func NewHolder(s *Set) *Holder {
	h := &Holder{}
	if s != nil {
		h.cur.Store(s)
	}
	return h
}

// Current returns the served set, or nil before the first load.
func (h *Holder) Current() *Set {
	return h.cur.Load()
}

// Swap installs s and returns the previous set.
func (h *Holder) Swap(s *Set) *Set {
	return h.cur.Swap(s)
}

// Generation returns the served generation, 0 before the first load.
func (h *Holder) Generation() uint64 {
	if s := h.cur.Load(); s != nil {
		return s.Generation
	}
	return 0
}

// PublishedEvent announces a new generation on the artifacts topic.
type PublishedEvent struct {
	Generation uint64    `json:"generation"`
	Documents  int       `json:"documents"`
	Terms      int       `json:"terms"`
	Edges      int       `json:"edges"`
	BuiltAt    time.Time `json:"built_at"`
	Backend    string    `json:"backend"`
}
