// Package cache is the shared search-result cache. Entries live in Redis,
// keyed by artifact generation and the full request, so results from two
// generations never mix.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/pkg/resilience"
	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/singleflight"
)

const keyPrefix = "search:"

// computeTimeout bounds a shared computation, which no longer follows the
// cancellation of the request that started it.
const computeTimeout = 30 * time.Second

// Store is the subset of the Redis client the cache needs.
type Store interface {
	GetJSON(ctx context.Context, key string, dst any) (bool, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

type QueryCache struct {
	store   Store
	ttl     time.Duration
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// New creates a QueryCache. m may be nil.
func New(store Store, ttl time.Duration, m *metrics.Metrics) *QueryCache {
	return &QueryCache{
		store:   store,
		ttl:     ttl,
		metrics: m,
		logger:  slog.Default().With("component", "query-cache"),
	}
}

func (c *QueryCache) recordHit() {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
}

func (c *QueryCache) recordMiss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

// Get returns the cached result for req at generation gen. Store errors
// count as misses.
func (c *QueryCache) Get(ctx context.Context, gen uint64, req parser.Request) (*executor.SearchResult, bool) {
	key := BuildKey(gen, req)
	var result executor.SearchResult
	found, err := c.store.GetJSON(ctx, key, &result)
	if err != nil {
		c.logger.Error("cache get failed", "key", key, "error", err)
		c.recordMiss()
		return nil, false
	}
	if !found {
		c.recordMiss()
		return nil, false
	}
	c.recordHit()
	c.logger.Debug("cache hit", "query", req.Query, "key", key)
	return &result, true
}

func (c *QueryCache) Set(ctx context.Context, gen uint64, req parser.Request, result *executor.SearchResult) {
	key := BuildKey(gen, req)
	if err := c.store.SetJSON(ctx, key, result, c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached result or runs computeFn once per key,
// however many callers ask concurrently. Errors are never cached.
//
// computeFn runs detached from the caller's cancellation: a client that
// goes away only stops waiting, and callers sharing the computation still
// get its result.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	gen uint64,
	req parser.Request,
	computeFn func(ctx context.Context) (*executor.SearchResult, error),
) (*executor.SearchResult, bool, error) {
	if result, ok := c.Get(ctx, gen, req); ok {
		return withQuery(result, req), true, nil
	}
	key := BuildKey(gen, req)
	ch := c.group.DoChan(key, func() (any, error) {
		detached := context.WithoutCancel(ctx)
		result, err := resilience.Call(detached, computeTimeout, "search", computeFn)
		if err != nil {
			return nil, err
		}
		// a swap during the computation means result may belong to a
		// newer generation than the key says
		if result.Generation == gen {
			c.Set(detached, gen, req, result)
		}
		return result, nil
	})
	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, false, res.Err
		}
		return withQuery(res.Val.(*executor.SearchResult), req), false, nil
	}
}

// withQuery echoes the caller's own query text. Exact-mode callers share
// an entry whatever their casing, and a shared result must not be mutated.
func withQuery(result *executor.SearchResult, req parser.Request) *executor.SearchResult {
	if result.Query == req.Query {
		return result
	}
	out := *result
	out.Query = req.Query
	return &out
}

// Invalidate drops every cached search result.
func (c *QueryCache) Invalidate(ctx context.Context) error {
	deleted, err := c.store.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidate", "keys_deleted", deleted)
	return nil
}

func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// BuildKey derives the Redis key for req at generation gen. The query is
// kept verbatim: pattern queries are case-insensitive but otherwise
// sensitive to every byte.
func BuildKey(gen uint64, req parser.Request) string {
	query := req.Query
	if req.Mode == parser.ModeExact {
		query = parser.NormalizeTerm(query)
	}
	raw := strings.Join([]string{
		string(req.Mode),
		string(req.Rank),
		strconv.Itoa(req.Page),
		strconv.Itoa(req.PageSize),
		query,
	}, "\x00")
	return fmt.Sprintf("%sg%d:%016x", keyPrefix, gen, xxhash.Sum64String(raw))
}
