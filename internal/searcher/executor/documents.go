package executor

import (
	"context"
	"slices"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/artifact"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/content"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/document"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/pkg/errors"
)

// Document is the full view of one book.
type Document struct {
	document.Metadata
	CoverURL string  `json:"cover_url,omitempty"`
	PageRank float64 `json:"pagerank"`
	Snippet  string  `json:"snippet"`
	Content  string  `json:"content"`
}

// DocumentPage is one character-offset page of a book.
type DocumentPage struct {
	BookID     document.ID `json:"book_id"`
	Title      string      `json:"title"`
	CoverURL   string      `json:"cover_url,omitempty"`
	Page       int         `json:"page"`
	TotalPages int         `json:"total_pages"`
	PageSize   int         `json:"page_size"`
	Text       string      `json:"text"`
}

// TitleHit is one title-search hit.
type TitleHit struct {
	BookID   document.ID `json:"book_id"`
	Title    string      `json:"title"`
	Snippet  string      `json:"snippet"`
	CoverURL string      `json:"cover_url,omitempty"`
	PageRank float64     `json:"pagerank"`
}

// TitleResult is one page of a title search.
type TitleResult struct {
	Query    string     `json:"query"`
	Page     int        `json:"page"`
	PageSize int        `json:"page_size"`
	Total    int        `json:"total"`
	Results  []TitleHit `json:"results"`
}

func (e *Engine) lookup(id document.ID) (*artifact.Set, document.Ord, error) {
	set, err := e.current()
	if err != nil {
		return nil, 0, err
	}
	o, ok := set.Corpus.Lookup(id)
	if !ok {
		return nil, 0, apperrors.NotFoundf("book %d not found", id)
	}
	return set, o, nil
}

func (e *Engine) readAll(ctx context.Context, meta *document.Metadata) (string, error) {
	text, err := e.content.Read(ctx, meta.Locator)
	if err != nil {
		return "", apperrors.IOFailure(err, "reading book %d", meta.ID)
	}
	return text, nil
}

// Document returns a book's metadata, full text and a detail snippet.
func (e *Engine) Document(ctx context.Context, id document.ID) (*Document, error) {
	set, o, err := e.lookup(id)
	if err != nil {
		return nil, err
	}
	meta := set.Corpus.Doc(o)
	text, err := e.readAll(ctx, meta)
	if err != nil {
		return nil, err
	}
	runes := []rune(text)
	snippet := string(runes[:min(len(runes), e.cfg.DetailSnippet)])
	return &Document{
		Metadata: *meta,
		CoverURL: meta.CoverURL(),
		PageRank: set.PageRank[o],
		Snippet:  content.Snippet(snippet),
		Content:  text,
	}, nil
}

// DocumentPage returns page of a book split into size-character pages. The
// page is clamped to [1, total_pages]; size <= 0 uses the configured
// default.
func (e *Engine) DocumentPage(ctx context.Context, id document.ID, page, size int) (*DocumentPage, error) {
	if size <= 0 {
		size = e.cfg.DocumentPageSize
	}
	set, o, err := e.lookup(id)
	if err != nil {
		return nil, err
	}
	meta := set.Corpus.Doc(o)
	text, err := e.readAll(ctx, meta)
	if err != nil {
		return nil, err
	}
	p := content.Paginate(text, page, size)
	return &DocumentPage{
		BookID:     meta.ID,
		Title:      meta.Title,
		CoverURL:   meta.CoverURL(),
		Page:       p.Page,
		TotalPages: p.TotalPages,
		PageSize:   size,
		Text:       p.Text,
	}, nil
}

// TitleSearch finds books whose title contains q, case-insensitively,
// ranked by PageRank.
func (e *Engine) TitleSearch(ctx context.Context, q string, page, size int) (*TitleResult, error) {
	set, err := e.current()
	if err != nil {
		return nil, err
	}
	out := &TitleResult{Query: q, Page: page, PageSize: size, Results: []TitleHit{}}
	needle := strings.ToLower(strings.TrimSpace(q))
	if needle == "" {
		return out, nil
	}

	var hits []ranker.Hit
	for i, meta := range set.Corpus.Docs() {
		if strings.Contains(strings.ToLower(meta.Title), needle) {
			o := document.Ord(i)
			hits = append(hits, ranker.Hit{Doc: o, PageRank: set.PageRank[o]})
		}
	}
	slices.SortStableFunc(hits, func(a, b ranker.Hit) int {
		switch {
		case a.PageRank > b.PageRank:
			return -1
		case a.PageRank < b.PageRank:
			return 1
		}
		return 0
	})
	out.Total = len(hits)
	window := ranker.Window(hits, page, size)

	snippets, err := e.snippetsFor(ctx, set, window, e.cfg.SnippetLength)
	if err != nil {
		return nil, err
	}
	for i, h := range window {
		meta := set.Corpus.Doc(h.Doc)
		out.Results = append(out.Results, TitleHit{
			BookID:   meta.ID,
			Title:    meta.Title,
			Snippet:  snippets[i],
			CoverURL: meta.CoverURL(),
			PageRank: h.PageRank,
		})
	}
	return out, nil
}
