// Package reload swaps freshly published artifact generations into a
// running searcher.
package reload

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/artifact"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/pkg/metrics"
)

// Source is the read side of an artifact.Store.
type Source interface {
	Current(ctx context.Context) (uint64, error)
	Load(ctx context.Context) (*artifact.Set, error)
}

// Invalidator drops cached results; *cache.QueryCache implements it.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Reloader loads the store's current generation and installs it in the
// holder. In-flight requests keep the set they started with.
type Reloader struct {
	source  Source
	holder  *artifact.Holder
	cache   Invalidator
	metrics *metrics.Metrics
	logger  *slog.Logger
	mu      sync.Mutex
}

// New creates a Reloader. cache and m may be nil.
func New(source Source, holder *artifact.Holder, cache Invalidator, m *metrics.Metrics) *Reloader {
	return &Reloader{
		source:  source,
		holder:  holder,
		cache:   cache,
		metrics: m,
		logger:  slog.Default().With("component", "reloader"),
	}
}

func (r *Reloader) observe(status string) {
	if r.metrics != nil {
		r.metrics.ArtifactReloadsTotal.WithLabelValues(status).Inc()
	}
}

// Reload installs the store's current generation if it is newer than the
// one being served. A failed load leaves the served set untouched.
func (r *Reloader) Reload(ctx context.Context) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	served := r.holder.Generation()
	latest, err := r.source.Current(ctx)
	if err != nil {
		r.observe("error")
		return false, fmt.Errorf("reading current generation: %w", err)
	}
	if latest <= served {
		return false, nil
	}

	start := time.Now()
	set, err := r.source.Load(ctx)
	if err != nil {
		r.observe("error")
		return false, fmt.Errorf("loading generation %d: %w", latest, err)
	}
	if set.Generation <= served {
		return false, nil
	}
	r.holder.Swap(set)
	r.observe("ok")
	if r.metrics != nil {
		r.metrics.ArtifactGeneration.Set(float64(set.Generation))
	}
	if r.cache != nil {
		if err := r.cache.Invalidate(ctx); err != nil {
			r.logger.Warn("cache invalidation after reload failed", "error", err)
		}
	}
	r.logger.Info("artifacts reloaded",
		"from_generation", served,
		"to_generation", set.Generation,
		"documents", set.Corpus.Len(),
		"duration", time.Since(start),
	)
	return true, nil
}

// HandleMessage adapts the reloader to the artifacts topic. Announcements
// for generations already served are acknowledged without a reload; a
// failed reload is returned so the message is not committed.
func (r *Reloader) HandleMessage() kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[artifact.PublishedEvent](value)
		if err != nil {
			r.logger.Error("undecodable artifact announcement", "error", err)
			return nil
		}
		if event.Generation <= r.holder.Generation() {
			r.logger.Debug("announcement for served generation ignored", "generation", event.Generation)
			return nil
		}
		_, err = r.Reload(ctx)
		return err
	}
}

// Poll calls Reload every interval until ctx is cancelled.
func (r *Reloader) Poll(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if _, err := r.Reload(ctx); err != nil {
				r.logger.Error("poll reload failed", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}
