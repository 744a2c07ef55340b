// Package build runs the offline pipeline: metadata, inverted index,
// similarity graph, PageRank, then publication of a new artifact
// generation.
package build

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/artifact"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/content"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/document"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/pagerank"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/similarity"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/pkg/tracing"
)

// Stage names, used for spans and the stage-duration metric.
const (
	StageMetadata   = "metadata"
	StageIndex      = "index"
	StageSimilarity = "similarity"
	StagePageRank   = "pagerank"
	StageSave       = "save"
	StagePublish    = "publish"
)

// publishTimeout bounds the announcement so a broker outage cannot stall a
// finished build.
const publishTimeout = 15 * time.Second

// MetadataSource lists the corpus in its canonical order.
type MetadataSource interface {
	List(ctx context.Context) ([]document.Metadata, error)
}

// Publisher announces new generations.
type Publisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// Deps are the collaborators of a Pipeline. Publisher and Metrics are
// optional.
type Deps struct {
	Metadata  MetadataSource
	Content   content.Source
	Store     artifact.Store
	Publisher Publisher
	Metrics   *metrics.Metrics
	// Backend names the artifact store in published events.
	Backend string
}

// Report summarises a pipeline run.
type Report struct {
	Generation   uint64                   `json:"generation"`
	TraceID      string                   `json:"trace_id"`
	Documents    int                      `json:"documents"`
	Skipped      []indexer.Skip           `json:"skipped"`
	Terms        int                      `json:"terms"`
	Postings     int                      `json:"postings"`
	Tokens       int64                    `json:"tokens"`
	Pairs        int64                    `json:"pairs"`
	Edges        int                      `json:"edges"`
	PageRankMass float64                  `json:"pagerank_mass"`
	Published    bool                     `json:"published"`
	Stages       map[string]time.Duration `json:"stages"`
	Duration     time.Duration            `json:"duration"`
}

type Pipeline struct {
	cfg    config.BuildConfig
	deps   Deps
	tok    *tokenizer.Tokenizer
	logger *slog.Logger
}

func NewPipeline(cfg config.BuildConfig, deps Deps) *Pipeline {
	return &Pipeline{
		cfg:    cfg,
		deps:   deps,
		tok:    tokenizer.New(tokenizer.WithStopWords(cfg.StopWords)),
		logger: slog.Default().With("component", "build"),
	}
}

func (p *Pipeline) pageRankOptions() pagerank.Options {
	return pagerank.Options{
		Damping:    p.cfg.Damping,
		Iterations: p.cfg.Iterations,
		Dangling:   pagerank.DanglingPolicy(p.cfg.DanglingPolicy),
	}
}

// stage runs fn inside a child span and records its duration.
func (p *Pipeline) stage(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	ctx, span := tracing.StartChildSpan(ctx, name)
	err := fn(ctx)
	span.End()
	if err != nil {
		span.SetAttr("error", err.Error())
	}
	if p.deps.Metrics != nil {
		p.deps.Metrics.BuildStageDuration.WithLabelValues(name).Observe(span.Duration.Seconds())
	}
	if err != nil {
		return fmt.Errorf("%s stage: %w", name, err)
	}
	return nil
}

func (p *Pipeline) loadCorpus(ctx context.Context) (*document.Corpus, error) {
	docs, err := p.deps.Metadata.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing metadata: %w", err)
	}
	return document.NewCorpus(docs)
}

// Index runs the metadata and index stages only.
func (p *Pipeline) Index(ctx context.Context) (*indexer.Result, error) {
	var corpus *document.Corpus
	if err := p.stage(ctx, StageMetadata, func(ctx context.Context) error {
		var err error
		corpus, err = p.loadCorpus(ctx)
		return err
	}); err != nil {
		return nil, err
	}
	var res *indexer.Result
	err := p.stage(ctx, StageIndex, func(ctx context.Context) error {
		var err error
		res, err = indexer.NewEngine(p.tok, p.deps.Content, p.cfg.Workers, p.deps.Metrics).Build(ctx, corpus)
		return err
	})
	return res, err
}

// Similarity builds the graph over an index result.
func (p *Pipeline) Similarity(ctx context.Context, res *indexer.Result) (*similarity.Graph, similarity.Stats, error) {
	var (
		g     *similarity.Graph
		stats similarity.Stats
	)
	err := p.stage(ctx, StageSimilarity, func(ctx context.Context) error {
		var err error
		g, stats, err = similarity.NewBuilder(p.cfg.SimilarityThreshold, p.cfg.Workers, p.deps.Metrics).FromIndex(ctx, res.Index)
		return err
	})
	return g, stats, err
}

// Run executes the full pipeline and publishes a new generation.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	ctx, root := tracing.StartSpan(ctx, "build", "")
	defer func() {
		root.End()
		root.Log(p.logger)
	}()

	res, err := p.Index(ctx)
	if err != nil {
		return nil, err
	}
	g, stats, err := p.Similarity(ctx, res)
	if err != nil {
		return nil, err
	}
	var pr pagerank.Vector
	if err := p.stage(ctx, StagePageRank, func(ctx context.Context) error {
		var err error
		pr, err = pagerank.Compute(ctx, g, p.pageRankOptions())
		return err
	}); err != nil {
		return nil, err
	}

	set := &artifact.Set{
		BuiltAt:  time.Now(),
		Corpus:   res.Corpus,
		Index:    res.Index,
		Graph:    g,
		PageRank: pr,
	}
	report := &Report{
		TraceID:      root.TraceID,
		Documents:    res.Corpus.Len(),
		Skipped:      res.Skipped,
		Terms:        res.Index.NumTerms(),
		Postings:     res.Index.NumPostings(),
		Tokens:       res.Tokens,
		Pairs:        stats.Pairs,
		Edges:        stats.Edges,
		PageRankMass: pr.Sum(),
	}
	if err := p.publish(ctx, set, report); err != nil {
		return nil, err
	}
	root.End()
	report.Stages = root.ChildDurations()
	report.Duration = time.Since(start)
	return report, nil
}

// Rerank recomputes PageRank over the current generation's graph with the
// configured options and publishes the result as a new generation.
func (p *Pipeline) Rerank(ctx context.Context) (*Report, error) {
	start := time.Now()
	ctx, root := tracing.StartSpan(ctx, "rerank", "")
	defer func() {
		root.End()
		root.Log(p.logger)
	}()

	current, err := p.deps.Store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading current generation: %w", err)
	}
	var pr pagerank.Vector
	if err := p.stage(ctx, StagePageRank, func(ctx context.Context) error {
		var err error
		pr, err = pagerank.Compute(ctx, current.Graph, p.pageRankOptions())
		return err
	}); err != nil {
		return nil, err
	}
	set := &artifact.Set{
		BuiltAt:  time.Now(),
		Corpus:   current.Corpus,
		Index:    current.Index,
		Graph:    current.Graph,
		PageRank: pr,
	}
	report := &Report{
		TraceID:      root.TraceID,
		Documents:    set.Corpus.Len(),
		Terms:        set.Index.NumTerms(),
		Postings:     set.Index.NumPostings(),
		Edges:        set.Graph.NumEdges(),
		PageRankMass: pr.Sum(),
	}
	if err := p.publish(ctx, set, report); err != nil {
		return nil, err
	}
	root.End()
	report.Stages = root.ChildDurations()
	report.Duration = time.Since(start)
	return report, nil
}

// publish saves set and announces it. An announcement failure is logged
// and never fails the build; the searcher can still pick the generation up
// on restart.
func (p *Pipeline) publish(ctx context.Context, set *artifact.Set, report *Report) error {
	if err := p.stage(ctx, StageSave, func(ctx context.Context) error {
		return p.deps.Store.Save(ctx, set)
	}); err != nil {
		return err
	}
	report.Generation = set.Generation
	if m := p.deps.Metrics; m != nil {
		m.ArtifactGeneration.Set(float64(set.Generation))
		m.PageRankMass.Set(report.PageRankMass)
	}

	if p.deps.Publisher == nil || !p.cfg.PublishEvents {
		return nil
	}
	event := artifact.PublishedEvent{
		Generation: set.Generation,
		Documents:  report.Documents,
		Terms:      report.Terms,
		Edges:      report.Edges,
		BuiltAt:    set.BuiltAt.UTC(),
		Backend:    p.deps.Backend,
	}
	err := p.stage(ctx, StagePublish, func(ctx context.Context) error {
		return resilience.WithTimeout(ctx, publishTimeout, "publish-generation", func(ctx context.Context) error {
			return p.deps.Publisher.Publish(ctx, kafka.Event{
				Key:        strconv.FormatUint(set.Generation, 10),
				Value:      event,
				Generation: set.Generation,
			})
		})
	})
	if err != nil {
		p.logger.Error("generation saved but not announced", "generation", set.Generation, "error", err)
		return nil
	}
	report.Published = true
	return nil
}
