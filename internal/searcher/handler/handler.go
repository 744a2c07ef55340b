// Package handler exposes the query engine and recommendation service over
// HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/document"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/searcher/recommend"
	apperrors "github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/pkg/metrics"
)

type Searcher interface {
	Search(ctx context.Context, req parser.Request) (*executor.SearchResult, error)
	TitleSearch(ctx context.Context, q string, page, size int) (*executor.TitleResult, error)
	Document(ctx context.Context, id document.ID) (*executor.Document, error)
	DocumentPage(ctx context.Context, id document.ID, page, size int) (*executor.DocumentPage, error)
	Generation() uint64
}

type Recommender interface {
	Similar(ctx context.Context, id document.ID, limit int) (*recommend.Response, error)
	Popular(ctx context.Context, id document.ID, limit int) (*recommend.Response, error)
}

// Options carries the optional collaborators. Any of them may be nil.
type Options struct {
	Cache      *cache.QueryCache
	Collector  *analytics.Collector
	Aggregator *analytics.Aggregator
	Metrics    *metrics.Metrics
}

type Handler struct {
	searcher    Searcher
	recommender Recommender
	cache       *cache.QueryCache
	collector   *analytics.Collector
	aggregator  *analytics.Aggregator
	metrics     *metrics.Metrics
	limits      parser.Limits
	logger      *slog.Logger
}

func New(s Searcher, r Recommender, limits parser.Limits, opts Options) *Handler {
	return &Handler{
		searcher:    s,
		recommender: r,
		cache:       opts.Cache,
		collector:   opts.Collector,
		aggregator:  opts.Aggregator,
		metrics:     opts.Metrics,
		limits:      limits,
		logger:      slog.Default().With("component", "search-handler"),
	}
}

// Register mounts every route on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/search/title", h.TitleSearch)
	mux.HandleFunc("GET /api/v1/documents/{id}", h.Document)
	mux.HandleFunc("GET /api/v1/documents/{id}/pages", h.DocumentPage)
	mux.HandleFunc("GET /api/v1/documents/{id}/recommendations", h.Recommendations)
	mux.HandleFunc("GET /api/v1/documents/{id}/popular", h.Popular)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
	mux.HandleFunc("GET /api/v1/analytics", h.Analytics)
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	req, err := parser.Parse(r.URL.Query(), h.limits)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}

	var result *executor.SearchResult
	cacheStatus := "bypass"
	if h.cache != nil && strings.TrimSpace(req.Query) != "" {
		var hit bool
		result, hit, err = h.cache.GetOrCompute(ctx, h.searcher.Generation(), req, func(ctx context.Context) (*executor.SearchResult, error) {
			return h.searcher.Search(ctx, req)
		})
		cacheStatus = "miss"
		if hit {
			cacheStatus = "hit"
		}
	} else {
		result, err = h.searcher.Search(ctx, req)
	}
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}

	latency := time.Since(start)
	if h.metrics != nil {
		h.metrics.SearchLatency.WithLabelValues(string(req.Mode), cacheStatus).Observe(latency.Seconds())
		h.metrics.SearchResultsCount.Observe(float64(result.Total))
	}
	log.Info("search completed",
		"query", req.Query,
		"mode", req.Mode,
		"rank", req.Rank,
		"total", result.Total,
		"returned", len(result.Results),
		"cache", cacheStatus,
		"latency_ms", latency.Milliseconds(),
	)
	h.track(r, analytics.Event{
		Type:       analytics.EventSearch,
		Query:      req.Query,
		Mode:       string(req.Mode),
		Rank:       string(req.Rank),
		Total:      result.Total,
		Returned:   len(result.Results),
		LatencyMs:  latency.Milliseconds(),
		CacheHit:   cacheStatus == "hit",
		Generation: result.Generation,
	})

	w.Header().Set("X-Cache", cacheStatus)
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) TitleSearch(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	q := r.URL.Query()
	page, err := parser.PositiveInt(q, "page", 1)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	size, err := parser.PositiveInt(q, "page_size", h.limits.DefaultPageSize)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	size = min(size, h.limits.MaxPageSize)

	result, err := h.searcher.TitleSearch(r.Context(), q.Get("q"), page, size)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	h.track(r, analytics.Event{
		Type:       analytics.EventTitleSearch,
		Query:      result.Query,
		Total:      result.Total,
		Returned:   len(result.Results),
		LatencyMs:  time.Since(start).Milliseconds(),
		Generation: h.searcher.Generation(),
	})
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) Document(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	doc, err := h.searcher.Document(r.Context(), id)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, doc)
}

// DocumentPage serves ?page&size; size 0 means the engine default.
func (h *Handler) DocumentPage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	q := r.URL.Query()
	page, err := parser.PositiveInt(q, "page", 1)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	size, err := parser.PositiveInt(q, "size", 0)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	p, err := h.searcher.DocumentPage(r.Context(), id, page, size)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, p)
}

func (h *Handler) Recommendations(w http.ResponseWriter, r *http.Request) {
	h.recommend(w, r, h.recommender.Similar)
}

func (h *Handler) Popular(w http.ResponseWriter, r *http.Request) {
	h.recommend(w, r, h.recommender.Popular)
}

func (h *Handler) recommend(w http.ResponseWriter, r *http.Request, fn func(context.Context, document.ID, int) (*recommend.Response, error)) {
	id, err := pathID(r)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	limit, err := parser.PositiveInt(r.URL.Query(), "limit", 0)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	resp, err := fn(r.Context(), id, limit)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	h.track(r, analytics.Event{
		Type:       analytics.EventRecommend,
		Mode:       string(resp.Mode),
		BookID:     int64(id),
		Returned:   len(resp.Recommendations),
		Generation: h.searcher.Generation(),
	})
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":       hits,
		"misses":     misses,
		"total":      total,
		"hit_rate":   fmt.Sprintf("%.1f%%", hitRate),
		"generation": h.searcher.Generation(),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}

	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (h *Handler) Analytics(w http.ResponseWriter, r *http.Request) {
	if h.aggregator == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	h.writeJSON(w, http.StatusOK, h.aggregator.Stats())
}

func (h *Handler) track(r *http.Request, event analytics.Event) {
	if h.collector == nil {
		return
	}
	event.Timestamp = time.Now().UTC()
	event.RequestID = logger.RequestID(r.Context())
	h.collector.Track(event)
}

func pathID(r *http.Request) (document.ID, error) {
	raw := r.PathValue("id")
	id, err := document.ParseID(raw)
	if err != nil {
		return 0, apperrors.InvalidInputf("book id must be an integer, got %q", raw)
	}
	return id, nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// writeAppError maps err onto a status code. Client errors echo their
// message; server errors are logged and answered generically.
func (h *Handler) writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatusCode(err)
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("request failed",
			"path", r.URL.Path,
			"status", status,
			"error", err,
		)
		h.writeError(w, status, http.StatusText(status))
		return
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		h.writeError(w, status, appErr.Message)
		return
	}
	h.writeError(w, status, err.Error())
}
