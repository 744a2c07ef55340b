// Command loadtest drives a running searcher with a mix of search, title
// and recommendation requests and reports latency percentiles.
package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

type Config struct {
	BaseURL     string
	Concurrency int
	Duration    time.Duration
	BookIDs     []int
}

// request is one entry of the traffic mix.
type request struct {
	kind string
	path string
}

type kindStats struct {
	count     atomic.Int64
	errors    atomic.Int64
	latencies []time.Duration
	mu        sync.Mutex
}

type Stats struct {
	totalRequests atomic.Int64
	cacheHits     atomic.Int64
	byKind        map[string]*kindStats
	statusCodes   map[int]*atomic.Int64
	statusCodesMu sync.Mutex
}

func NewStats(kinds []string) *Stats {
	s := &Stats{
		byKind:      make(map[string]*kindStats, len(kinds)),
		statusCodes: make(map[int]*atomic.Int64),
	}
	for _, k := range kinds {
		s.byKind[k] = &kindStats{latencies: make([]time.Duration, 0, 10000)}
	}
	return s
}

func (s *Stats) RecordRequest(kind string, duration time.Duration, statusCode int, cache string, err error) {
	s.totalRequests.Add(1)
	ks := s.byKind[kind]
	ks.count.Add(1)
	if err != nil || statusCode >= 500 {
		ks.errors.Add(1)
	}
	if err != nil {
		return
	}
	if cache == "hit" {
		s.cacheHits.Add(1)
	}
	ks.mu.Lock()
	ks.latencies = append(ks.latencies, duration)
	ks.mu.Unlock()

	s.statusCodesMu.Lock()
	if _, ok := s.statusCodes[statusCode]; !ok {
		s.statusCodes[statusCode] = &atomic.Int64{}
	}
	s.statusCodes[statusCode].Add(1)
	s.statusCodesMu.Unlock()
}

var queries = []string{
	"whale",
	"love",
	"sea voyage",
	"pride prejudice",
	"war",
	"monster",
	"detective",
	"island",
}

var patterns = []string{
	"^whal",
	"ing$",
	"^detect",
	"sh[aeiou]p",
}

var ranks = []string{"tf", "pr", "tfxpr", "tfidf"}

func buildMix(ids []int) []request {
	var mix []request
	for i, q := range queries {
		v := url.Values{"q": {q}, "rank": {ranks[i%len(ranks)]}, "page_size": {"10"}}
		mix = append(mix, request{kind: "search", path: "/api/v1/search?" + v.Encode()})
	}
	for i, p := range patterns {
		v := url.Values{"q": {p}, "advanced": {"true"}, "rank": {ranks[i%len(ranks)]}}
		mix = append(mix, request{kind: "pattern", path: "/api/v1/search?" + v.Encode()})
	}
	for _, q := range queries[:3] {
		mix = append(mix, request{kind: "title", path: "/api/v1/search/title?" + url.Values{"q": {q}}.Encode()})
	}
	for _, id := range ids {
		mix = append(mix,
			request{kind: "recommend", path: fmt.Sprintf("/api/v1/documents/%d/recommendations?limit=5", id)},
			request{kind: "recommend", path: fmt.Sprintf("/api/v1/documents/%d/popular?limit=5", id)},
		)
	}
	return mix
}

func main() {
	var cfg Config
	cmd := &cobra.Command{
		Use:          "loadtest",
		Short:        "Load test the search API",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			stats := runLoadTest(cmd.Context(), cfg)
			return printReport(stats, cfg.Duration)
		},
	}
	cmd.Flags().StringVar(&cfg.BaseURL, "url", "http://localhost:8000", "base URL of the search service")
	cmd.Flags().IntVar(&cfg.Concurrency, "concurrency", 10, "number of concurrent workers")
	cmd.Flags().DurationVar(&cfg.Duration, "duration", 30*time.Second, "test duration")
	cmd.Flags().IntSliceVar(&cfg.BookIDs, "books", []int{1342, 2701, 84}, "book ids used for recommendation requests")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runLoadTest(parent context.Context, cfg Config) *Stats {
	mix := buildMix(cfg.BookIDs)
	stats := NewStats([]string{"search", "pattern", "title", "recommend"})
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.Concurrency * 2,
			MaxIdleConnsPerHost: cfg.Concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	fmt.Println("=== Book Search Load Test ===")
	fmt.Printf("Target:      %s\n", cfg.BaseURL)
	fmt.Printf("Concurrency: %d\n", cfg.Concurrency)
	fmt.Printf("Duration:    %s\n", cfg.Duration)
	fmt.Printf("Requests:    %d distinct\n\n", len(mix))

	ctx, cancel := context.WithTimeout(parent, cfg.Duration)
	defer cancel()

	var wg sync.WaitGroup
	for w := 0; w < cfg.Concurrency; w++ {
		wg.Add(1)
		go func(next int) {
			defer wg.Done()
			for ctx.Err() == nil {
				r := mix[next%len(mix)]
				next++
				req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.BaseURL+r.path, nil)
				if err != nil {
					stats.RecordRequest(r.kind, 0, 0, "", err)
					continue
				}
				start := time.Now()
				resp, err := client.Do(req)
				duration := time.Since(start)
				if err != nil {
					if ctx.Err() == nil {
						stats.RecordRequest(r.kind, duration, 0, "", err)
					}
					continue
				}
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				stats.RecordRequest(r.kind, duration, resp.StatusCode, resp.Header.Get("X-Cache"), nil)
			}
		}(w)
	}
	wg.Wait()
	return stats
}

func printReport(stats *Stats, duration time.Duration) error {
	total := stats.totalRequests.Load()
	fmt.Println("=== Results ===")
	fmt.Printf("Total Requests:  %s\n", humanize.Comma(total))
	if total > 0 {
		fmt.Printf("Requests/sec:    %.2f\n", float64(total)/duration.Seconds())
		fmt.Printf("Cache hits:      %s\n", humanize.Comma(stats.cacheHits.Load()))
	}

	fmt.Println()
	fmt.Printf("%-10s %8s %7s %10s %10s %10s %10s\n", "kind", "count", "errors", "p50", "p95", "p99", "stddev")
	for _, kind := range []string{"search", "pattern", "title", "recommend"} {
		ks := stats.byKind[kind]
		ks.mu.Lock()
		lat := slices.Clone(ks.latencies)
		ks.mu.Unlock()
		slices.Sort(lat)
		fmt.Printf("%-10s %8d %7d %10s %10s %10s %10s\n", kind,
			ks.count.Load(), ks.errors.Load(),
			percentile(lat, 50), percentile(lat, 95), percentile(lat, 99), stddev(lat))
	}

	fmt.Println()
	fmt.Println("=== Status Codes ===")
	stats.statusCodesMu.Lock()
	codes := make([]int, 0, len(stats.statusCodes))
	for code := range stats.statusCodes {
		codes = append(codes, code)
	}
	slices.Sort(codes)
	for _, code := range codes {
		fmt.Printf("  %d: %d\n", code, stats.statusCodes[code].Load())
	}
	stats.statusCodesMu.Unlock()

	if total == 0 {
		return fmt.Errorf("no requests completed; is the searcher running?")
	}
	return nil
}

func stddev(lat []time.Duration) time.Duration {
	if len(lat) == 0 {
		return 0
	}
	var sum time.Duration
	for _, l := range lat {
		sum += l
	}
	avg := float64(sum) / float64(len(lat))
	var sq float64
	for _, l := range lat {
		d := float64(l) - avg
		sq += d * d
	}
	return time.Duration(math.Sqrt(sq / float64(len(lat))))
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	idx = max(0, min(idx, len(sorted)-1))
	return sorted[idx]
}
