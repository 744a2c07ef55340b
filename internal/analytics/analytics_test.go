package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/pkg/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregatorStats(t *testing.T) {
	agg := NewAggregator()
	agg.Record(Event{Type: EventSearch, Query: "whale", Mode: "exact", Rank: "tf", Total: 3, LatencyMs: 10})
	agg.Record(Event{Type: EventSearch, Query: "whale", Mode: "exact", Rank: "tf", Total: 3, LatencyMs: 20, CacheHit: true})
	agg.Record(Event{Type: EventSearch, Query: "^xyz", Mode: "pattern", Rank: "tfidf", Total: 0, LatencyMs: 30})
	agg.Record(Event{Type: EventTitleSearch, Query: "moby", Total: 1, LatencyMs: 5})
	agg.Record(Event{Type: EventRecommend, BookID: 2701})
	agg.Record(Event{Type: EventRecommend, BookID: 2701})

	stats := agg.Stats()
	assert.Equal(t, int64(3), stats.TotalSearches)
	assert.Equal(t, int64(1), stats.TitleSearches)
	assert.Equal(t, int64(2), stats.Recommendations)
	assert.Equal(t, int64(1), stats.CacheHits)
	assert.Equal(t, int64(2), stats.CacheMisses)
	assert.Equal(t, int64(1), stats.ZeroResultCount)
	assert.Equal(t, map[string]int64{"tf": 2, "tfidf": 1}, stats.SearchesByRank)
	assert.Equal(t, map[string]int64{"exact": 2, "pattern": 1}, stats.SearchesByMode)
	assert.InDelta(t, 16.25, stats.AvgLatencyMs, 1e-9)
	assert.Equal(t, QueryCount{Query: "whale", Count: 2}, stats.TopQueries[0])
	assert.Equal(t, []QueryCount{{Query: "^xyz", Count: 1}}, stats.ZeroResultQueries)
	assert.Equal(t, []QueryCount{{Query: "2701", Count: 2}}, stats.TopRecommended)
}

func TestLatencyWindowIsBounded(t *testing.T) {
	agg := NewAggregator()
	for i := 0; i < maxLatencies+10; i++ {
		agg.Record(Event{Type: EventSearch, Query: "q", LatencyMs: int64(i)})
	}
	agg.mu.RLock()
	n := len(agg.latencies)
	agg.mu.RUnlock()
	assert.LessOrEqual(t, n, maxLatencies)
}

func TestHandleEvent(t *testing.T) {
	agg := NewAggregator()
	handler := HandleEvent(agg)

	raw, err := json.Marshal(Event{Type: EventSearch, Query: "sea", Total: 4})
	require.NoError(t, err)
	require.NoError(t, handler(context.Background(), nil, raw))
	require.NoError(t, handler(context.Background(), nil, []byte("not json")))

	assert.Equal(t, int64(1), agg.Stats().TotalSearches)
}

type recordingSink struct {
	mu     sync.Mutex
	events []kafka.Event
	err    error
}

func (s *recordingSink) Publish(_ context.Context, e kafka.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return s.err
}

func TestCollectorForwardsToSink(t *testing.T) {
	sink := &recordingSink{err: errors.New("ignored")}
	c := NewCollector(sink, 8)
	c.Start(context.Background())

	c.Track(Event{Type: EventSearch, Query: "a"})
	c.Track(Event{Type: EventRecommend, BookID: 1})
	c.Close()

	require.Len(t, sink.events, 2)
	assert.Equal(t, "search", sink.events[0].Key)
	assert.Equal(t, "recommend", sink.events[1].Key)
}

func TestCollectorDropsWhenFull(t *testing.T) {
	sink := &recordingSink{}
	c := NewCollector(sink, 1)
	// not started: the second event has nowhere to go
	c.Track(Event{Type: EventSearch})
	c.Track(Event{Type: EventSearch})
	assert.Len(t, c.eventCh, 1)
}

func TestLocalSink(t *testing.T) {
	agg := NewAggregator()
	c := NewCollector(LocalSink{Aggregator: agg}, 8)
	c.Start(context.Background())
	c.Track(Event{Type: EventTitleSearch, Query: "moby", Total: 1})
	c.Close()

	assert.Equal(t, int64(1), agg.Stats().TitleSearches)
}
