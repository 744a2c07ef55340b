package catalog

import (
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// Cache holds raw catalog responses keyed by URL.
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte)
}

// TTLCache is a size-bounded Cache whose entries expire after a fixed TTL.
type TTLCache struct {
	c   *ristretto.Cache[string, []byte]
	ttl time.Duration
}

// NewTTLCache creates a cache holding up to maxBytes of responses.
func NewTTLCache(maxBytes int64, ttl time.Duration) (*TTLCache, error) {
	c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: 10_000,
		MaxCost:     maxBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("creating catalog cache: %w", err)
	}
	return &TTLCache{c: c, ttl: ttl}, nil
}

func (t *TTLCache) Get(key string) ([]byte, bool) {
	return t.c.Get(key)
}

// Set stores value and waits for the write to become visible.
func (t *TTLCache) Set(key string, value []byte) {
	t.c.SetWithTTL(key, value, int64(len(value)), t.ttl)
	t.c.Wait()
}

func (t *TTLCache) Close() {
	t.c.Close()
}
