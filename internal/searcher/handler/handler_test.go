package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/artifact"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/artifact/artifacttest"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/searcher/recommend"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *mapStore) GetJSON(_ context.Context, key string, dst any) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dst)
}

func (m *mapStore) SetJSON(_ context.Context, key string, value any, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = raw
	return nil
}

func (m *mapStore) FlushByPattern(context.Context, string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := int64(len(m.data))
	m.data = make(map[string][]byte)
	return n, nil
}

type fixture struct {
	mux        *http.ServeMux
	collector  *analytics.Collector
	aggregator *analytics.Aggregator
	cache      *cache.QueryCache
}

func newFixture(t *testing.T, withCache bool) *fixture {
	t.Helper()
	set, dir := artifacttest.Build(t, artifacttest.CatCorpus, 0.15)
	holder := artifact.NewHolder(set)

	cfg := config.SearchConfig{
		DefaultPageSize:   20,
		MaxPageSize:       50,
		SnippetLength:     300,
		DetailSnippet:     800,
		DocumentPageSize:  5000,
		SnippetCacheBytes: 1 << 20,
		PatternCacheSize:  64,
	}
	engine, err := executor.New(holder, dir, cfg, nil)
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	agg := analytics.NewAggregator()
	collector := analytics.NewCollector(analytics.LocalSink{Aggregator: agg}, 64)
	collector.Start(context.Background())

	f := &fixture{collector: collector, aggregator: agg}
	if withCache {
		f.cache = cache.New(&mapStore{data: make(map[string][]byte)}, time.Minute, nil)
	}
	h := New(engine, recommend.New(holder, 5, 50, nil),
		parser.Limits{DefaultPageSize: cfg.DefaultPageSize, MaxPageSize: cfg.MaxPageSize},
		Options{Cache: f.cache, Collector: collector, Aggregator: agg},
	)
	f.mux = http.NewServeMux()
	h.Register(f.mux)
	return f
}

func (f *fixture) get(t *testing.T, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestSearchEndpoint(t *testing.T) {
	f := newFixture(t, false)

	rec := f.get(t, "/api/v1/search?q=cat&rank=tfidf")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	body := decode[map[string]any](t, rec)
	assert.Equal(t, "cat", body["query"])
	assert.Equal(t, "tfidf", body["rank_mode"])
	assert.Equal(t, float64(2), body["total"])
	assert.Equal(t, float64(1), body["page"])
	assert.Equal(t, float64(20), body["page_size"])
	assert.Equal(t, false, body["advanced"])

	results := body["results"].([]any)
	require.Len(t, results, 2)
	first := results[0].(map[string]any)
	for _, k := range []string{"book_id", "title", "snippet", "tf", "pagerank", "matched_terms", "score"} {
		assert.Contains(t, first, k)
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	f := newFixture(t, true)

	rec := f.get(t, "/api/v1/search?q=&rank=pr")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[executor.SearchResult](t, rec)
	assert.Equal(t, 0, body.Total)
	assert.Empty(t, body.Results)
	assert.Contains(t, rec.Body.String(), `"results":[]`)
}

func TestSearchErrors(t *testing.T) {
	f := newFixture(t, false)

	tests := []struct {
		target string
		status int
	}{
		{"/api/v1/search?q=(&advanced=true", http.StatusBadRequest},
		{"/api/v1/search?q=cat&rank=bm25", http.StatusBadRequest},
		{"/api/v1/search?q=cat&page=0", http.StatusBadRequest},
		{"/api/v1/documents/abc", http.StatusBadRequest},
		{"/api/v1/documents/999", http.StatusNotFound},
		{"/api/v1/documents/999/recommendations", http.StatusNotFound},
		{"/api/v1/documents/999/popular", http.StatusNotFound},
		{"/api/v1/documents/1/recommendations?limit=x", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rec := f.get(t, tt.target)
			assert.Equal(t, tt.status, rec.Code)
			body := decode[map[string]string](t, rec)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestSearchUsesCache(t *testing.T) {
	f := newFixture(t, true)

	first := f.get(t, "/api/v1/search?q=dog")
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "miss", first.Header().Get("X-Cache"))
	second := f.get(t, "/api/v1/search?q=DOG")
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "hit", second.Header().Get("X-Cache"))

	hits, misses := f.cache.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)

	rec := f.get(t, "/api/v1/cache/stats")
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "50.0%", body["hit_rate"])

	rec = httptest.NewRecorder()
	f.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/cache/invalidate", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCacheDisabled(t *testing.T) {
	f := newFixture(t, false)

	body := decode[map[string]string](t, f.get(t, "/api/v1/cache/stats"))
	assert.Equal(t, "disabled", body["status"])

	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/cache/invalidate", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestDocumentEndpoints(t *testing.T) {
	f := newFixture(t, false)

	doc := decode[map[string]any](t, f.get(t, "/api/v1/documents/3"))
	assert.Equal(t, "Cat and Dog", doc["title"])
	assert.Equal(t, "/covers/3.jpg", doc["cover_url"])
	assert.Equal(t, "a cat and a dog", doc["content"])
	assert.Equal(t, "a cat and a dog...", doc["snippet"])

	page := decode[executor.DocumentPage](t, f.get(t, "/api/v1/documents/1/pages?page=2&size=4"))
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, "cat ", page.Text)

	title := decode[executor.TitleResult](t, f.get(t, "/api/v1/search/title?q=dog"))
	assert.Equal(t, 2, title.Total)
}

func TestRecommendationEndpoints(t *testing.T) {
	f := newFixture(t, false)

	similar := decode[recommend.Response](t, f.get(t, "/api/v1/documents/1/recommendations?limit=1"))
	assert.Equal(t, recommend.ModeSimilar, similar.Mode)
	require.Len(t, similar.Recommendations, 1)
	assert.EqualValues(t, 2, similar.Recommendations[0].BookID)

	popular := decode[recommend.Response](t, f.get(t, "/api/v1/documents/4/popular"))
	assert.Equal(t, recommend.ModePopular, popular.Mode)
	assert.Len(t, popular.Recommendations, 3)
}

func TestAnalyticsEndpoint(t *testing.T) {
	f := newFixture(t, false)

	f.get(t, "/api/v1/search?q=cat")
	f.get(t, "/api/v1/search?q=unicorn")
	f.get(t, "/api/v1/documents/1/recommendations")
	f.collector.Close()

	stats := decode[analytics.AggregatedStats](t, f.get(t, "/api/v1/analytics"))
	assert.Equal(t, int64(2), stats.TotalSearches)
	assert.Equal(t, int64(1), stats.ZeroResultCount)
	assert.Equal(t, int64(1), stats.Recommendations)
}
