// Package artifacttest builds small artifact sets from literal text for
// tests of the serving layer.
package artifacttest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/artifact"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/content"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/document"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/pagerank"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/similarity"
	"github.com/stretchr/testify/require"
)

// Book is one fixture document.
type Book struct {
	ID    document.ID
	Title string
	Text  string
	Cover string
}

// CatCorpus is the three-document corpus used throughout the serving
// tests, plus a book with no overlap at all.
var CatCorpus = []Book{
	{ID: 1, Title: "The Cat", Text: "the cat sat"},
	{ID: 2, Title: "The Dog", Text: "the dog sat"},
	{ID: 3, Title: "Cat and Dog", Text: "a cat and a dog", Cover: "3.jpg"},
	{ID: 4, Title: "Whale Songs", Text: "whales\nsing\nbeneath"},
}

// Build writes books into a temporary content directory and runs the full
// pipeline over them with the given similarity threshold.
func Build(t testing.TB, books []Book, threshold float64) (*artifact.Set, *content.Dir) {
	t.Helper()
	dir := content.NewDir(t.TempDir())
	meta := make([]document.Metadata, 0, len(books))
	for _, b := range books {
		locator := fmt.Sprintf("%d.txt", b.ID)
		require.NoError(t, dir.Write(locator, b.Text))
		meta = append(meta, document.Metadata{
			ID:        b.ID,
			Title:     b.Title,
			Locator:   locator,
			Languages: []string{"en"},
			Cover:     b.Cover,
		})
	}
	corpus, err := document.NewCorpus(meta)
	require.NoError(t, err)

	ctx := context.Background()
	res, err := indexer.NewEngine(tokenizer.New(), dir, 2, nil).Build(ctx, corpus)
	require.NoError(t, err)
	g, _, err := similarity.NewBuilder(threshold, 2, nil).FromIndex(ctx, res.Index)
	require.NoError(t, err)
	pr, err := pagerank.Compute(ctx, g, pagerank.DefaultOptions())
	require.NoError(t, err)

	return &artifact.Set{
		Generation: 1,
		BuiltAt:    time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		Corpus:     res.Corpus,
		Index:      res.Index,
		Graph:      g,
		PageRank:   pr,
	}, dir
}
