package pgstore

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/document"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/pkg/postgres"
)

// Requires a reachable PostgreSQL; set BSE_TEST_POSTGRES_HOST to run.
func TestStoreRoundTrip(t *testing.T) {
	host := os.Getenv("BSE_TEST_POSTGRES_HOST")
	if host == "" {
		t.Skip("BSE_TEST_POSTGRES_HOST not set")
	}
	db, err := postgres.New(config.PostgresConfig{
		Host: host, Port: 5432, Database: "booksearch", User: "booksearch",
		Password: "localdev", SSLMode: "disable", MaxOpenConns: 2,
	})
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	s := New(db)
	require.NoError(t, s.EnsureSchema(ctx))
	_, err = db.DB.ExecContext(ctx, `TRUNCATE books`)
	require.NoError(t, err)

	added, err := s.Import(ctx, []document.Metadata{
		{ID: 2701, Title: "Moby Dick", Locator: "m.txt", WordCount: 215000, Languages: []string{"en"}},
		{ID: 84, Title: "Frankenstein", Locator: "f.txt", WordCount: 75000, Cover: "cover_84.jpg"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, added)

	err = s.Append(ctx, document.Metadata{ID: 84, Title: "Dup", Locator: "d.txt", WordCount: 1})
	assert.ErrorIs(t, err, catalog.ErrDuplicate)

	docs, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, document.ID(2701), docs[0].ID)
	assert.Equal(t, []string{"en"}, docs[0].Languages)
	assert.Equal(t, "cover_84.jpg", docs[1].Cover)
}
