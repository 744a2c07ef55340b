package similarity

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/panjf2000/ants/v2"
	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/content"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/document"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/pkg/metrics"
)

// Stats summarises one similarity pass.
type Stats struct {
	Pairs    int64
	Pruned   int64
	Edges    int
	Duration time.Duration
}

// Builder evaluates every unordered document pair on an ants worker pool.
type Builder struct {
	threshold float64
	workers   int
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewBuilder creates a builder. workers <= 0 uses GOMAXPROCS; m may be nil.
func NewBuilder(threshold float64, workers int, m *metrics.Metrics) *Builder {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Builder{
		threshold: threshold,
		workers:   workers,
		metrics:   m,
		logger:    slog.Default().With("component", "similarity"),
	}
}

type pair struct {
	a, b document.Ord
	w    float64
}

// FromSets builds the graph from per-document term sets. sets[i] must be
// ascending and duplicate-free. Rows are striped across workers so each
// unordered pair is owned by exactly one worker; workers collect local edge
// lists that are merged once all of them finish.
func (b *Builder) FromSets(ctx context.Context, sets [][]uint32) (*Graph, Stats, error) {
	start := time.Now()
	n := len(sets)
	stripes := min(b.workers, max(n, 1))

	pool, err := ants.NewPool(stripes)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("creating similarity pool: %w", err)
	}
	defer pool.Release()

	partial := make([][]pair, stripes)
	var (
		wg     sync.WaitGroup
		pairs  atomic.Int64
		pruned atomic.Int64
	)
	for s := 0; s < stripes; s++ {
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			var local []pair
			var evaluated, skipped int64
			for i := s; i < n; i += stripes {
				if ctx.Err() != nil {
					break
				}
				a := sets[i]
				for j := i + 1; j < n; j++ {
					bset := sets[j]
					evaluated++
					if upperBound(len(a), len(bset)) < b.threshold {
						skipped++
						continue
					}
					if w := Jaccard(a, bset); w >= b.threshold && w > 0 {
						local = append(local, pair{a: document.Ord(i), b: document.Ord(j), w: w})
					}
				}
			}
			partial[s] = local
			pairs.Add(evaluated)
			pruned.Add(skipped)
		})
		if err != nil {
			wg.Done()
			wg.Wait()
			return nil, Stats{}, fmt.Errorf("submitting similarity stripe: %w", err)
		}
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, Stats{}, err
	}

	g := merge(n, partial)
	stats := Stats{
		Pairs:    pairs.Load(),
		Pruned:   pruned.Load(),
		Edges:    g.NumEdges(),
		Duration: time.Since(start),
	}
	if b.metrics != nil {
		b.metrics.SimilarityPairsTotal.Add(float64(stats.Pairs))
		b.metrics.GraphEdges.Set(float64(stats.Edges))
	}
	b.logger.Info("similarity graph built",
		"documents", n,
		"pairs", humanize.Comma(stats.Pairs),
		"pruned", humanize.Comma(stats.Pruned),
		"edges", humanize.Comma(int64(stats.Edges)),
		"threshold", b.threshold,
		"workers", stripes,
		"duration", stats.Duration,
	)
	return g, stats, nil
}

// merge turns the per-worker pair lists into symmetric association lists.
// Each pair appears in exactly one partial list, so there are no
// collisions to resolve.
func merge(n int, partial [][]pair) *Graph {
	degree := make([]int, n)
	total := 0
	for _, list := range partial {
		for _, p := range list {
			degree[p.a]++
			degree[p.b]++
		}
		total += len(list)
	}
	adj := make([][]Edge, n)
	for i, d := range degree {
		adj[i] = make([]Edge, 0, d)
	}
	for _, list := range partial {
		for _, p := range list {
			adj[p.a] = append(adj[p.a], Edge{To: p.b, Weight: p.w})
			adj[p.b] = append(adj[p.b], Edge{To: p.a, Weight: p.w})
		}
	}
	for _, list := range adj {
		sortEdges(list)
	}
	return &Graph{adj: adj, edges: total}
}

// FromIndex derives term sets from an existing index so content is read
// only once per build.
func (b *Builder) FromIndex(ctx context.Context, ix *index.InvertedIndex) (*Graph, Stats, error) {
	return b.FromSets(ctx, ix.DocTermSets())
}

// Build tokenizes every document of corpus and builds the graph from the
// resulting term sets. A document whose content cannot be read contributes
// an empty set and ends up isolated.
func (b *Builder) Build(ctx context.Context, corpus *document.Corpus, src content.Source, tok *tokenizer.Tokenizer) (*Graph, Stats, error) {
	tokenSets := make([]map[string]struct{}, corpus.Len())
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)
	for i := 0; i < corpus.Len(); i++ {
		g.Go(func() error {
			meta := corpus.Doc(document.Ord(i))
			text, err := src.Read(gctx, meta.Locator)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				b.logger.Warn("content unreadable, treating as empty", "book_id", meta.ID, "error", err)
				return nil
			}
			set := make(map[string]struct{})
			for term := range tok.Counts(text, meta.Languages...) {
				set[term] = struct{}{}
			}
			tokenSets[i] = set
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, Stats{}, err
	}
	return b.FromSets(ctx, internSets(tokenSets))
}

// internSets maps string sets onto ascending ids in sorted-term order, so
// ids compare the same way the terms do.
func internSets(tokenSets []map[string]struct{}) [][]uint32 {
	vocab := make(map[string]uint32)
	for _, set := range tokenSets {
		for term := range set {
			vocab[term] = 0
		}
	}
	terms := make([]string, 0, len(vocab))
	for term := range vocab {
		terms = append(terms, term)
	}
	slices.Sort(terms)
	for i, term := range terms {
		vocab[term] = uint32(i)
	}
	sets := make([][]uint32, len(tokenSets))
	for d, set := range tokenSets {
		ids := make([]uint32, 0, len(set))
		for term := range set {
			ids = append(ids, vocab[term])
		}
		slices.Sort(ids)
		sets[d] = ids
	}
	return sets
}
