// Package analytics tracks what readers search for and which
// recommendations they ask for. Events flow from the searcher's handlers
// through a Collector to a Sink: Kafka for a fleet, or the in-process
// Aggregator for a single node.
package analytics

import "time"

type EventType string

const (
	EventSearch      EventType = "search"
	EventTitleSearch EventType = "title_search"
	EventRecommend   EventType = "recommend"
)

// Event is the envelope every analytics message carries. Fields not
// relevant to Type stay zero.
type Event struct {
	Type       EventType `json:"type"`
	Query      string    `json:"query,omitempty"`
	Mode       string    `json:"mode,omitempty"`
	Rank       string    `json:"rank,omitempty"`
	BookID     int64     `json:"book_id,omitempty"`
	Total      int       `json:"total"`
	Returned   int       `json:"returned"`
	LatencyMs  int64     `json:"latency_ms"`
	CacheHit   bool      `json:"cache_hit"`
	Generation uint64    `json:"generation"`
	Timestamp  time.Time `json:"timestamp"`
	RequestID  string    `json:"request_id,omitempty"`
}
