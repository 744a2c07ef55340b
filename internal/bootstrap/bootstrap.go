// Package bootstrap holds the startup wiring shared by the binaries: config
// and logging, artifact store selection, and metadata store selection.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/artifact"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/catalog/jsonstore"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/catalog/pgstore"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/pkg/postgres"
)

// Load reads the config and installs the default logger.
func Load(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	return cfg, nil
}

// Metrics registers the collectors on the default registry when metrics
// are enabled, and returns nil otherwise.
func Metrics(cfg *config.Config) *metrics.Metrics {
	if !cfg.Metrics.Enabled {
		return nil
	}
	return metrics.New(prometheus.DefaultRegisterer)
}

// OpenArtifactStore opens the configured artifact backend.
func OpenArtifactStore(cfg config.StorageConfig) (artifact.Store, error) {
	switch cfg.Backend {
	case config.StorageBadger:
		s, err := artifact.OpenBadgerStore(cfg.Dir, cfg.KeepGenerations)
		if err != nil {
			return nil, err
		}
		slog.Info("artifact store opened", "backend", cfg.Backend, "dir", cfg.Dir)
		return s, nil
	default:
		slog.Info("artifact store opened", "backend", config.StorageFile, "dir", cfg.Dir)
		return artifact.NewFileStore(cfg.Dir, cfg.KeepGenerations), nil
	}
}

// OpenMetadataStore opens the configured catalog backend. The returned
// close function is never nil.
func OpenMetadataStore(ctx context.Context, cfg *config.Config) (catalog.MetadataStore, func() error, error) {
	switch cfg.Catalog.MetadataBackend {
	case config.MetadataPostgres:
		db, err := postgres.New(cfg.Postgres)
		if err != nil {
			return nil, nil, err
		}
		s := pgstore.New(db)
		if err := s.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		slog.Info("metadata store opened", "backend", config.MetadataPostgres, "host", cfg.Postgres.Host)
		return s, db.Close, nil
	default:
		s, err := jsonstore.Open(cfg.Catalog.MetadataPath)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("metadata store opened", "backend", config.MetadataJSON, "path", cfg.Catalog.MetadataPath, "books", s.Len())
		return s, func() error { return nil }, nil
	}
}
