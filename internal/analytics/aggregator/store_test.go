package aggregator

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/analytics"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Requires a reachable PostgreSQL; set BSE_TEST_POSTGRES_DSN to run.
func TestStoreSnapshots(t *testing.T) {
	dsn := os.Getenv("BSE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("BSE_TEST_POSTGRES_DSN not set")
	}
	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	s := NewStore(db)
	require.NoError(t, s.EnsureSchema(ctx))

	agg := analytics.NewAggregator()
	agg.Record(analytics.Event{Type: analytics.EventSearch, Query: "whale", Total: 3})
	require.NoError(t, s.SaveSnapshot(ctx, 7, agg.Stats()))

	snap, err := s.LatestSnapshot(ctx)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, uint64(7), snap.Generation)
	assert.Equal(t, int64(1), snap.Stats.TotalSearches)
}
