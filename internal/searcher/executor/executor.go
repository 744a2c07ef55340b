// Package executor answers search and document requests against the
// currently loaded artifact generation.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/artifact"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/content"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/document"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/pkg/metrics"
	"github.com/dgraph-io/ristretto/v2"
	"golang.org/x/sync/errgroup"
)

// snippetReaders bounds concurrent content reads within one request.
const snippetReaders = 8

// Result is one search hit as returned to callers.
type Result struct {
	BookID       document.ID `json:"book_id"`
	Title        string      `json:"title"`
	Snippet      string      `json:"snippet"`
	CoverURL     string      `json:"cover_url,omitempty"`
	TF           uint32      `json:"tf"`
	TFIDF        float64     `json:"tfidf"`
	PageRank     float64     `json:"pagerank"`
	MatchedTerms []string    `json:"matched_terms"`
	Score        float64     `json:"score"`
}

// SearchResult is one page of a search. Total counts every match, not just
// the page.
type SearchResult struct {
	Query      string      `json:"query"`
	Mode       parser.Mode `json:"mode"`
	Rank       parser.Rank `json:"rank_mode"`
	Advanced   bool        `json:"advanced"`
	Page       int         `json:"page"`
	PageSize   int         `json:"page_size"`
	Total      int         `json:"total"`
	Generation uint64      `json:"generation"`
	Results    []Result    `json:"results"`
}

// Engine is the query engine. It holds no per-request state; every call
// reads the generation current at its start.
type Engine struct {
	holder   *artifact.Holder
	content  content.Source
	cfg      config.SearchConfig
	snippets *ristretto.Cache[string, string]
	patterns *ristretto.Cache[string, []string]
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// New creates an Engine. m may be nil.
func New(holder *artifact.Holder, src content.Source, cfg config.SearchConfig, m *metrics.Metrics) (*Engine, error) {
	snippetBytes := int64(max(cfg.SnippetCacheBytes, 1<<16))
	snippets, err := ristretto.NewCache(&ristretto.Config[string, string]{
		NumCounters: snippetBytes / 32,
		MaxCost:     snippetBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("creating snippet cache: %w", err)
	}
	patternEntries := int64(max(cfg.PatternCacheSize, 16))
	patterns, err := ristretto.NewCache(&ristretto.Config[string, []string]{
		NumCounters: patternEntries * 10,
		MaxCost:     patternEntries,
		BufferItems: 64,
	})
	if err != nil {
		snippets.Close()
		return nil, fmt.Errorf("creating pattern cache: %w", err)
	}
	return &Engine{
		holder:   holder,
		content:  src,
		cfg:      cfg,
		snippets: snippets,
		patterns: patterns,
		metrics:  m,
		logger:   slog.Default().With("component", "query-executor"),
	}, nil
}

// Close releases the in-process caches.
func (e *Engine) Close() {
	e.snippets.Close()
	e.patterns.Close()
}

// Generation is the generation new requests will see.
func (e *Engine) Generation() uint64 {
	return e.holder.Generation()
}

func (e *Engine) current() (*artifact.Set, error) {
	set := e.holder.Current()
	if set == nil {
		return nil, apperrors.New(apperrors.ErrDataIntegrity, http.StatusServiceUnavailable, "no artifacts loaded")
	}
	return set, nil
}

// Search runs req. An empty query, an unknown term, or a pattern that
// matches no vocabulary term all produce an empty page with total 0.
func (e *Engine) Search(ctx context.Context, req parser.Request) (*SearchResult, error) {
	set, err := e.current()
	if err != nil {
		return nil, err
	}
	out := &SearchResult{
		Query:      req.Query,
		Mode:       req.Mode,
		Rank:       req.Rank,
		Advanced:   req.Mode == parser.ModePattern,
		Page:       req.Page,
		PageSize:   req.PageSize,
		Generation: set.Generation,
		Results:    []Result{},
	}

	terms, err := e.resolveTerms(set, req)
	if err != nil {
		e.observe(req, "invalid")
		return nil, err
	}
	if len(terms) == 0 {
		e.observe(req, "zero_result")
		return out, nil
	}

	acc := ranker.NewAccumulator(set.Corpus.Len())
	for _, term := range terms {
		acc.Add(term, set.Index.Lookup(term))
	}
	hits := ranker.Rank(acc.Hits(), req.Rank, func(o document.Ord) float64 {
		return set.PageRank[o]
	})
	out.Total = len(hits)
	window := ranker.Window(hits, req.Page, req.PageSize)

	snippets, err := e.snippetsFor(ctx, set, window, e.cfg.SnippetLength)
	if err != nil {
		e.observe(req, "error")
		return nil, err
	}
	for i, h := range window {
		meta := set.Corpus.Doc(h.Doc)
		out.Results = append(out.Results, Result{
			BookID:       meta.ID,
			Title:        meta.Title,
			Snippet:      snippets[i],
			CoverURL:     meta.CoverURL(),
			TF:           h.TF,
			TFIDF:        ranker.Round4(h.TFIDF),
			PageRank:     h.PageRank,
			MatchedTerms: h.Terms,
			Score:        h.Score,
		})
	}

	outcome := "hit"
	if out.Total == 0 {
		outcome = "zero_result"
	}
	e.observe(req, outcome)
	e.logger.Debug("query executed",
		"query", req.Query,
		"mode", req.Mode,
		"rank", req.Rank,
		"terms", len(terms),
		"total", out.Total,
		"returned", len(out.Results),
	)
	return out, nil
}

// resolveTerms maps the request onto vocabulary terms.
func (e *Engine) resolveTerms(set *artifact.Set, req parser.Request) ([]string, error) {
	if req.Mode == parser.ModePattern {
		if strings.TrimSpace(req.Query) == "" {
			return nil, nil
		}
		return e.matchPattern(set, req.Query)
	}
	term := parser.NormalizeTerm(req.Query)
	if term == "" || set.Index.DocFreq(term) == 0 {
		return nil, nil
	}
	return []string{term}, nil
}

func (e *Engine) observe(req parser.Request, outcome string) {
	if e.metrics == nil {
		return
	}
	e.metrics.SearchQueriesTotal.WithLabelValues(string(req.Mode), string(req.Rank), outcome).Inc()
}

// snippetsFor reads a snippet for each hit, in parallel.
func (e *Engine) snippetsFor(ctx context.Context, set *artifact.Set, hits []ranker.Hit, length int) ([]string, error) {
	out := make([]string, len(hits))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(snippetReaders)
	for i, h := range hits {
		g.Go(func() error {
			s, err := e.snippet(gctx, set, h.Doc, length)
			if err != nil {
				return err
			}
			out[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// snippet returns the first length characters of a document, cached per
// generation.
func (e *Engine) snippet(ctx context.Context, set *artifact.Set, o document.Ord, length int) (string, error) {
	key := fmt.Sprintf("%d/%d/%d", set.Generation, o, length)
	if s, ok := e.snippets.Get(key); ok {
		return s, nil
	}
	meta := set.Corpus.Doc(o)
	prefix, err := e.content.ReadPrefix(ctx, meta.Locator, length)
	if err != nil {
		return "", apperrors.IOFailure(err, "reading snippet for book %d", meta.ID)
	}
	s := content.Snippet(prefix)
	e.snippets.Set(key, s, int64(len(s)))
	return s, nil
}
