// Command searcher serves queries, book pages and recommendations over the
// current artifact generation, hot-reloading when the builder publishes a
// new one.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/analytics/aggregator"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/analytics/collector"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/artifact"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/bootstrap"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/content"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/searcher/recommend"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/searcher/reload"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/pkg/redis"
)

func main() {
	var configPath string
	rootCmd := &cobra.Command{
		Use:           "searcher",
		Short:         "Serve book search and recommendations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "configs/development.yaml", "path to config file")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := bootstrap.Load(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port, _ = cmd.Flags().GetInt("port")
			}
			return serve(cmd.Context(), cfg)
		},
	}
	serveCmd.Flags().Int("port", 0, "override server.port")
	rootCmd.AddCommand(serveCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "searcher: %v\n", err)
		os.Exit(1)
	}
}

func serve(parent context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("starting search service", "port", cfg.Server.Port, "storage", cfg.Storage.Backend)
	m := bootstrap.Metrics(cfg)

	store, err := bootstrap.OpenArtifactStore(cfg.Storage)
	if err != nil {
		return err
	}
	defer store.Close()

	holder := artifact.NewHolder(nil)
	src := content.NewDir(cfg.Content.Dir)

	var queryCache *cache.QueryCache
	var redisClient *pkgredis.Client
	if cfg.Redis.Enabled {
		redisClient, err = pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
			redisClient = nil
		} else {
			defer redisClient.Close()
			queryCache = cache.New(redisClient, cfg.Redis.CacheTTL, m)
			slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	var invalidator reload.Invalidator
	if queryCache != nil {
		invalidator = queryCache
	}
	reloader := reload.New(store, holder, invalidator, m)
	if _, err := reloader.Reload(ctx); err != nil {
		// keep serving 503s until a generation appears
		slog.Warn("no artifacts loaded at startup", "error", err)
	}

	engine, err := executor.New(holder, src, cfg.Search, m)
	if err != nil {
		return err
	}
	defer engine.Close()
	recommender := recommend.New(holder, cfg.Search.DefaultRecommend, cfg.Search.MaxRecommend, m)

	agg := analytics.NewAggregator()
	var sink analytics.Sink = analytics.LocalSink{Aggregator: agg}
	if cfg.Kafka.Enabled() {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
		defer producer.Close()
		batch := collector.NewBatchCollector(producer, cfg.Analytics.BatchSize, cfg.Analytics.FlushInterval)
		batch.Start(ctx)
		defer batch.Close()
		sink = batch

		analyticsConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents, analytics.HandleEvent(agg))
		go func() {
			if err := analyticsConsumer.Start(ctx); err != nil {
				slog.Error("analytics consumer error", "error", err)
			}
		}()
		slog.Info("analytics shipped to kafka", "topic", cfg.Kafka.Topics.AnalyticsEvents)
	}
	events := analytics.NewCollector(sink, cfg.Analytics.BufferSize)
	events.Start(ctx)
	defer events.Close()

	if cfg.Analytics.SnapshotInterval > 0 {
		pg, err := postgres.New(cfg.Postgres)
		if err != nil {
			slog.Warn("postgres unavailable, analytics snapshots disabled", "error", err)
		} else {
			defer pg.Close()
			snapshots := aggregator.NewStore(pg.DB)
			if err := snapshots.EnsureSchema(ctx); err != nil {
				slog.Warn("analytics snapshot schema", "error", err)
			} else {
				snapshots.StartPeriodicSave(ctx, agg, holder.Generation, cfg.Analytics.SnapshotInterval)
				slog.Info("analytics snapshots enabled", "interval", cfg.Analytics.SnapshotInterval)
			}
		}
	}

	switch {
	case cfg.Kafka.Enabled():
		host, _ := os.Hostname()
		consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.ArtifactsPublished, reloader.HandleMessage(),
			kafka.WithGroupID(fmt.Sprintf("%s-reload-%s", cfg.Kafka.ConsumerGroup, host)))
		go func() {
			if err := consumer.Start(ctx); err != nil {
				slog.Error("artifact consumer error", "error", err)
			}
		}()
		slog.Info("hot reload via kafka", "topic", cfg.Kafka.Topics.ArtifactsPublished)
	case cfg.Storage.PollInterval > 0:
		go reloader.Poll(ctx, cfg.Storage.PollInterval)
		slog.Info("hot reload via polling", "interval", cfg.Storage.PollInterval)
	}

	checker := health.NewChecker()
	checker.ReportGeneration(holder.Generation)
	checker.Register("artifacts", func(ctx context.Context) health.ComponentHealth {
		set := holder.Current()
		if set == nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: "no generation loaded"}
		}
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("generation %d, %d books", set.Generation, set.Corpus.Len()),
		}
	})
	checker.Register("content", health.Ping(func(context.Context) error {
		_, err := os.Stat(src.Root())
		return err
	}, health.StatusDown))
	if redisClient != nil {
		checker.Register("redis", health.Ping(redisClient.Ping, health.StatusDegraded))
	} else {
		checker.Register("redis", func(context.Context) health.ComponentHealth {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		})
	}

	h := handler.New(engine, recommender, parser.Limits{
		DefaultPageSize: cfg.Search.DefaultPageSize,
		MaxPageSize:     cfg.Search.MaxPageSize,
	}, handler.Options{
		Cache:      queryCache,
		Collector:  events,
		Aggregator: agg,
		Metrics:    m,
	})

	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())
	if m != nil {
		mux.Handle("GET /metrics", metrics.Handler())
	}
	if cfg.Catalog.CoverDir != "" {
		mux.Handle("GET /covers/", http.StripPrefix("/covers/", http.FileServer(http.Dir(cfg.Catalog.CoverDir))))
	}

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	if m != nil {
		chain = middleware.Metrics(m)(chain)
	}
	chain = middleware.RequestID(chain)
	chain = middleware.CORS(middleware.DefaultCORSConfig(cfg.Server.CORSOrigins))(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("search service listening", "addr", server.Addr, "generation", holder.Generation())
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	slog.Info("search service stopped")
	return nil
}
