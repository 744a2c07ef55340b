// Package indexer builds the inverted index from a corpus. Documents are
// tokenized in parallel; a document whose content cannot be read is logged
// and skipped without failing the build.
package indexer

import (
	"cmp"
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/content"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/document"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/pkg/metrics"
)

// Skip records a document left out of the build.
type Skip struct {
	ID     document.ID `json:"book_id"`
	Title  string      `json:"title"`
	Reason string      `json:"reason"`
	Err    error       `json:"-"`
}

// Result is the output of one index build. Corpus holds only the documents
// that were indexed, with ordinals matching the index.
type Result struct {
	Corpus  *document.Corpus
	Index   *index.InvertedIndex
	Skipped []Skip
	Tokens  int64
}

// Engine is the index builder.
type Engine struct {
	tok     *tokenizer.Tokenizer
	src     content.Source
	workers int
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewEngine creates an index builder. workers <= 0 uses GOMAXPROCS; m may
// be nil.
func NewEngine(tok *tokenizer.Tokenizer, src content.Source, workers int, m *metrics.Metrics) *Engine {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Engine{
		tok:     tok,
		src:     src,
		workers: workers,
		metrics: m,
		logger:  slog.Default().With("component", "indexer"),
	}
}

// Build tokenizes every document once and returns a fresh index. It never
// merges with a previous index.
func (e *Engine) Build(ctx context.Context, corpus *document.Corpus) (*Result, error) {
	start := time.Now()
	mem := index.NewMemoryIndex()
	indexed := make([]bool, corpus.Len())
	var (
		skipMu  sync.Mutex
		skipped []Skip
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i := 0; i < corpus.Len(); i++ {
		if gctx.Err() != nil {
			break
		}
		ord := document.Ord(i)
		g.Go(func() error {
			meta := corpus.Doc(ord)
			text, err := e.src.Read(gctx, meta.Locator)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				skip := classifySkip(meta, err)
				e.logger.Warn("skipping document", "book_id", meta.ID, "locator", meta.Locator, "reason", skip.Reason, "error", err)
				if e.metrics != nil {
					e.metrics.DocsSkippedTotal.WithLabelValues(skip.Reason).Inc()
				}
				skipMu.Lock()
				skipped = append(skipped, skip)
				skipMu.Unlock()
				return nil
			}
			mem.AddDocument(ord, e.tok.Counts(text, meta.Languages...))
			indexed[ord] = true
			if e.metrics != nil {
				e.metrics.DocsIndexedTotal.Inc()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	kept := corpus
	var remap func(document.Ord) (document.Ord, bool)
	if len(skipped) > 0 {
		kept = corpus.Subset(func(o document.Ord) bool { return indexed[o] })
		newOrd := make([]document.Ord, corpus.Len())
		next := document.Ord(0)
		for i, ok := range indexed {
			newOrd[i] = next
			if ok {
				next++
			}
		}
		remap = func(o document.Ord) (document.Ord, bool) {
			return newOrd[o], indexed[o]
		}
	}
	slices.SortFunc(skipped, func(a, b Skip) int {
		return cmp.Compare(a.ID, b.ID)
	})

	ix, err := index.New(kept.Len(), mem.Snapshot(remap))
	if err != nil {
		return nil, apperrors.DataIntegrityf("assembling index: %v", err)
	}
	e.logger.Info("index built",
		"documents", kept.Len(),
		"skipped", len(skipped),
		"terms", humanize.Comma(int64(ix.NumTerms())),
		"postings", humanize.Comma(int64(ix.NumPostings())),
		"tokens", humanize.Comma(mem.TokenCount()),
		"duration", time.Since(start),
	)
	return &Result{
		Corpus:  kept,
		Index:   ix,
		Skipped: skipped,
		Tokens:  mem.TokenCount(),
	}, nil
}

func classifySkip(meta *document.Metadata, err error) Skip {
	skip := Skip{ID: meta.ID, Title: meta.Title, Reason: "unreadable", Err: err}
	if errors.Is(err, fs.ErrNotExist) {
		skip.Reason = "missing"
		skip.Err = apperrors.DataIntegrityf("book %d references missing content %q", meta.ID, meta.Locator)
	}
	return skip
}
