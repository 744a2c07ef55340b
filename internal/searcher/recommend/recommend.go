// Package recommend answers "more like this" requests from the similarity
// graph and "globally popular" requests from the PageRank vector.
package recommend

import (
	"context"
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/artifact"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/document"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/searcher/merger"
	apperrors "github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/pkg/metrics"
)

// Mode labels the recommendation strategy in responses and metrics.
type Mode string

const (
	ModeSimilar Mode = "similar"
	ModePopular Mode = "popular"
)

// Item is one recommended book. Score is the similarity weight in similar
// mode and the PageRank score in popular mode.
type Item struct {
	BookID   document.ID `json:"book_id"`
	Title    string      `json:"title"`
	CoverURL string      `json:"cover_url,omitempty"`
	Score    float64     `json:"score"`
}

// Response lists recommendations for one book.
type Response struct {
	BookID          document.ID `json:"book_id"`
	Mode            Mode        `json:"mode"`
	Recommendations []Item      `json:"recommendations"`
}

// Service is read-only; it never mutates the artifacts it serves.
type Service struct {
	holder       *artifact.Holder
	defaultLimit int
	maxLimit     int
	metrics      *metrics.Metrics
}

// New creates a Service. m may be nil.
func New(holder *artifact.Holder, defaultLimit, maxLimit int, m *metrics.Metrics) *Service {
	if defaultLimit <= 0 {
		defaultLimit = 5
	}
	if maxLimit < defaultLimit {
		maxLimit = defaultLimit
	}
	return &Service{holder: holder, defaultLimit: defaultLimit, maxLimit: maxLimit, metrics: m}
}

func (s *Service) limit(n int) int {
	if n <= 0 {
		return s.defaultLimit
	}
	return min(n, s.maxLimit)
}

func (s *Service) resolve(id document.ID) (*artifact.Set, document.Ord, error) {
	set := s.holder.Current()
	if set == nil {
		return nil, 0, apperrors.New(apperrors.ErrDataIntegrity, http.StatusServiceUnavailable, "no artifacts loaded")
	}
	o, ok := set.Corpus.Lookup(id)
	if !ok {
		return nil, 0, apperrors.NotFoundf("book %d not found in similarity graph", id)
	}
	return set, o, nil
}

func (s *Service) observe(mode Mode, err error) {
	if s.metrics == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	s.metrics.RecommendationsTotal.WithLabelValues(string(mode), outcome).Inc()
}

func item(set *artifact.Set, o document.Ord, score float64) Item {
	meta := set.Corpus.Doc(o)
	return Item{BookID: meta.ID, Title: meta.Title, CoverURL: meta.CoverURL(), Score: score}
}

// Similar returns the book's graph neighbours by weight descending. An
// isolated book yields an empty list.
func (s *Service) Similar(_ context.Context, id document.ID, limit int) (resp *Response, err error) {
	defer func() { s.observe(ModeSimilar, err) }()
	set, o, err := s.resolve(id)
	if err != nil {
		return nil, err
	}
	edges := set.Graph.Neighbors(o)
	edges = edges[:min(len(edges), s.limit(limit))]
	resp = &Response{BookID: id, Mode: ModeSimilar, Recommendations: make([]Item, 0, len(edges))}
	for _, e := range edges {
		resp.Recommendations = append(resp.Recommendations, item(set, e.To, e.Weight))
	}
	return resp, nil
}

// Popular returns the top books by PageRank, excluding the book itself.
// The ranking ignores content similarity entirely.
func (s *Service) Popular(_ context.Context, id document.ID, limit int) (resp *Response, err error) {
	defer func() { s.observe(ModePopular, err) }()
	set, o, err := s.resolve(id)
	if err != nil {
		return nil, err
	}
	top := merger.TopK(set.PageRank, s.limit(limit), func(c document.Ord) bool { return c == o })
	resp = &Response{BookID: id, Mode: ModePopular, Recommendations: make([]Item, 0, len(top))}
	for _, t := range top {
		resp.Recommendations = append(resp.Recommendations, item(set, t.Doc, t.Score))
	}
	return resp, nil
}
