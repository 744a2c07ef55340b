package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/pkg/resilience"
)

// ErrUnavailable means the catalog answered but had nothing usable.
var ErrUnavailable = errors.New("catalog resource unavailable")

// maxBodyBytes bounds a single downloaded text.
const maxBodyBytes = 64 << 20

// Client talks to a Gutendex-compatible API and the mirrors it links to.
type Client struct {
	http     *http.Client
	baseURL  string
	pageSize int
	retry    resilience.RetryPolicy
	breaker  *resilience.CircuitBreaker
	cache    Cache
	metrics  *metrics.Metrics
	logger   *slog.Logger

	// fallbacks returns mirror URLs tried when a record lists no usable
	// plain-text format.
	fallbacks func(id int64) []string
}

// NewClient creates a Client. cache and m may be nil.
func NewClient(cfg config.CatalogConfig, cache Cache, m *metrics.Metrics) *Client {
	c := &Client{
		http:     &http.Client{Timeout: cfg.RequestTimeout},
		baseURL:  cfg.BaseURL,
		pageSize: cfg.PageSize,
		retry: resilience.RetryPolicy{
			MaxAttempts:    cfg.MaxAttempts,
			InitialDelay:   cfg.InitialBackoff,
			MaxDelay:       cfg.MaxBackoff,
			Multiplier:     2,
			JitterFraction: 0.1,
		},
		cache:     cache,
		metrics:   m,
		logger:    slog.Default().With("component", "catalog-client"),
		fallbacks: gutenbergMirrors,
	}
	c.breaker = resilience.NewCircuitBreaker("catalog", resilience.CircuitBreakerConfig{
		FailureThreshold: cfg.BreakerThreshold,
		ResetTimeout:     cfg.MaxBackoff,
		OnStateChange: func(name string, to resilience.State) {
			if m != nil {
				m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			}
		},
	})
	return c
}

func gutenbergMirrors(id int64) []string {
	return []string{
		fmt.Sprintf("https://www.gutenberg.org/files/%d/%d-0.txt", id, id),
		fmt.Sprintf("https://www.gutenberg.org/files/%d/%d.txt", id, id),
		fmt.Sprintf("https://www.gutenberg.org/cache/epub/%d/pg%d.txt", id, id),
	}
}

// Page fetches one page (1-based) of catalog results.
func (c *Client) Page(ctx context.Context, n int) (*Page, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(n))
	if c.pageSize > 0 {
		q.Set("page_size", strconv.Itoa(c.pageSize))
	}
	body, err := c.get(ctx, "page", c.baseURL+"?"+q.Encode(), true)
	if err != nil {
		return nil, err
	}
	var p Page
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("decoding catalog page %d: %w", n, err)
	}
	return &p, nil
}

// Text downloads the plain-text body of b, trying its advertised formats
// and then the mirror fallbacks.
func (c *Client) Text(ctx context.Context, b *Book) (string, error) {
	candidates := append(b.TextURLs(), c.fallbacks(b.ID)...)
	var lastErr error
	for _, u := range candidates {
		body, err := c.get(ctx, "text", u, false)
		if err == nil && len(body) > 0 {
			c.logger.Debug("text downloaded", "book_id", b.ID, "url", u, "size", humanize.Bytes(uint64(len(body))))
			return string(body), nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if errors.Is(err, resilience.ErrCircuitOpen) {
			return "", err
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = ErrUnavailable
	}
	return "", fmt.Errorf("no usable text for book %d: %w", b.ID, lastErr)
}

// Cover downloads the JPEG cover of b. It returns ErrUnavailable when the
// record has none.
func (c *Client) Cover(ctx context.Context, b *Book) ([]byte, error) {
	u := b.CoverURL()
	if u == "" {
		return nil, ErrUnavailable
	}
	return c.get(ctx, "cover", u, false)
}

// get fetches u with retry behind the circuit breaker. Transport errors,
// 429 and 5xx are retried and count against the breaker; other non-200
// statuses fail at once.
func (c *Client) get(ctx context.Context, kind, u string, cacheable bool) ([]byte, error) {
	if cacheable && c.cache != nil {
		if body, ok := c.cache.Get(u); ok {
			c.observe(kind, "cached")
			return body, nil
		}
	}
	var body []byte
	err := resilience.Retry(ctx, "catalog-"+kind, c.retry, func() error {
		var status int
		err := c.breaker.Execute(func() error {
			var err error
			body, status, err = c.do(ctx, u)
			if err != nil {
				return err
			}
			if status == http.StatusTooManyRequests || status >= 500 {
				return fmt.Errorf("%s: status %d", u, status)
			}
			return nil
		})
		if errors.Is(err, resilience.ErrCircuitOpen) {
			return resilience.Permanent(err)
		}
		if err != nil {
			return err
		}
		if status != http.StatusOK {
			return resilience.Permanent(fmt.Errorf("%w: %s status %d", ErrUnavailable, u, status))
		}
		return nil
	})
	if err != nil {
		c.observe(kind, "error")
		return nil, err
	}
	c.observe(kind, "ok")
	if cacheable && c.cache != nil {
		c.cache.Set(u, body)
	}
	return body, nil
}

func (c *Client) do(ctx context.Context, u string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, 0, resilience.Permanent(fmt.Errorf("building request: %w", err))
	}
	req.Header.Set("User-Agent", "book-search-engine-catalog/1.0")
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("requesting %s: %w", u, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, resp.StatusCode, nil
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("reading %s: %w", u, err)
	}
	c.logger.Debug("catalog request", "url", u, "duration", time.Since(start))
	return body, resp.StatusCode, nil
}

func (c *Client) observe(kind, status string) {
	if c.metrics != nil {
		c.metrics.CatalogRequestsTotal.WithLabelValues(kind, status).Inc()
	}
}
