package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/pkg/config"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	addr := os.Getenv("BSE_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("BSE_TEST_REDIS_ADDR not set")
	}
	c, err := NewClient(config.RedisConfig{Addr: addr, PoolSize: 2})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestJSONRoundTripAndFlush(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	type hit struct{ ID int64 }
	require.NoError(t, c.SetJSON(ctx, "bse-test:g1:a", []hit{{ID: 84}}, time.Minute))
	require.NoError(t, c.SetJSON(ctx, "bse-test:g1:b", []hit{{ID: 11}}, time.Minute))

	var got []hit
	ok, err := c.GetJSON(ctx, "bse-test:g1:a", &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []hit{{ID: 84}}, got)

	n, err := c.FlushByPattern(ctx, "bse-test:g1:*")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	ok, err = c.GetJSON(ctx, "bse-test:g1:a", &got)
	require.NoError(t, err)
	assert.False(t, ok)
}
