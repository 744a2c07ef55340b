// Command builder runs the offline pipeline: it indexes the catalogued
// books, builds the similarity graph, computes PageRank and publishes a new
// artifact generation.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/bootstrap"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/build"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/content"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/pkg/metrics"
)

func main() {
	var configPath string
	rootCmd := &cobra.Command{
		Use:           "builder",
		Short:         "Build search artifacts from the book catalog",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "configs/development.yaml", "path to config file")
	rootCmd.PersistentFlags().Float64("threshold", 0, "override build.similarityThreshold")
	rootCmd.PersistentFlags().String("dangling", "", "override build.danglingPolicy (leak|redistribute)")
	rootCmd.PersistentFlags().Bool("publish", false, "announce the new generation on Kafka")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "build",
		Short: "Run the full pipeline and save a new generation",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withPipeline(cmd, configPath, func(ctx context.Context, p *build.Pipeline) (any, error) {
				return p.Run(ctx)
			})
		},
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "index",
		Short: "Build the inverted index only and report its size",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withPipeline(cmd, configPath, func(ctx context.Context, p *build.Pipeline) (any, error) {
				res, err := p.Index(ctx)
				if err != nil {
					return nil, err
				}
				return map[string]any{
					"documents": res.Corpus.Len(),
					"terms":     res.Index.NumTerms(),
					"postings":  res.Index.NumPostings(),
					"tokens":    res.Tokens,
					"skipped":   res.Skipped,
				}, nil
			})
		},
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "similarity",
		Short: "Build the index and similarity graph and report graph statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withPipeline(cmd, configPath, func(ctx context.Context, p *build.Pipeline) (any, error) {
				res, err := p.Index(ctx)
				if err != nil {
					return nil, err
				}
				_, stats, err := p.Similarity(ctx, res)
				if err != nil {
					return nil, err
				}
				return map[string]any{
					"documents": res.Corpus.Len(),
					"pairs":     stats.Pairs,
					"pruned":    stats.Pruned,
					"edges":     stats.Edges,
					"duration":  stats.Duration.String(),
				}, nil
			})
		},
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "pagerank",
		Short: "Recompute PageRank over the current generation's graph",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withPipeline(cmd, configPath, func(ctx context.Context, p *build.Pipeline) (any, error) {
				return p.Rerank(ctx)
			})
		},
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "builder: %v\n", err)
		os.Exit(1)
	}
}

func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("threshold") {
		cfg.Build.SimilarityThreshold, _ = flags.GetFloat64("threshold")
	}
	if flags.Changed("dangling") {
		cfg.Build.DanglingPolicy, _ = flags.GetString("dangling")
	}
	if flags.Changed("publish") {
		cfg.Build.PublishEvents, _ = flags.GetBool("publish")
	}
	return cfg.Validate()
}

func withPipeline(cmd *cobra.Command, configPath string, run func(context.Context, *build.Pipeline) (any, error)) error {
	cfg, err := bootstrap.Load(configPath)
	if err != nil {
		return err
	}
	if err := applyFlags(cmd, cfg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := bootstrap.Metrics(cfg)
	if m != nil {
		srv, err := metrics.Listen(fmt.Sprintf(":%d", cfg.Metrics.Port))
		if err != nil {
			slog.Warn("building without a metrics endpoint", "error", err)
		} else {
			defer srv.Shutdown(5 * time.Second)
		}
	}

	meta, closeMeta, err := bootstrap.OpenMetadataStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeMeta()

	store, err := bootstrap.OpenArtifactStore(cfg.Storage)
	if err != nil {
		return err
	}
	defer store.Close()

	deps := build.Deps{
		Metadata: meta,
		Content:  content.NewDir(cfg.Content.Dir),
		Store:    store,
		Metrics:  m,
		Backend:  cfg.Storage.Backend,
	}
	if cfg.Build.PublishEvents && cfg.Kafka.Enabled() {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.ArtifactsPublished)
		defer producer.Close()
		deps.Publisher = producer
	}

	slog.Info("builder starting",
		"command", cmd.Name(),
		"threshold", cfg.Build.SimilarityThreshold,
		"damping", cfg.Build.Damping,
		"iterations", cfg.Build.Iterations,
		"dangling", cfg.Build.DanglingPolicy,
		"storage", cfg.Storage.Backend,
	)
	start := time.Now()
	out, err := run(ctx, build.NewPipeline(cfg.Build, deps))
	if err != nil {
		slog.Error("builder failed", "command", cmd.Name(), "error", err)
		return err
	}
	slog.Info("builder finished", "command", cmd.Name(), "elapsed", time.Since(start).Round(time.Millisecond))

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
