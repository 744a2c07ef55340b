package artifact

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/document"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/pagerank"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/similarity"
	apperrors "github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/pkg/errors"
)

func testSet(t *testing.T) *Set {
	t.Helper()
	corpus, err := document.NewCorpus([]document.Metadata{
		{ID: 11, Title: "Doc One", Locator: "11.txt", WordCount: 3, Languages: []string{"en"}},
		{ID: 22, Title: "Doc Two", Locator: "22.txt", WordCount: 3, Languages: []string{"en"}},
		{ID: 33, Title: "Doc Three", Locator: "33.txt", WordCount: 5, Languages: []string{"en"}, Authors: []string{"Anon"}},
		{ID: 44, Title: "Empty", Locator: "44.txt"},
	})
	require.NoError(t, err)
	mem := index.NewMemoryIndex()
	mem.AddDocument(0, map[string]uint32{"the": 1, "cat": 1, "sat": 1})
	mem.AddDocument(1, map[string]uint32{"the": 1, "dog": 1, "sat": 1})
	mem.AddDocument(2, map[string]uint32{"a": 2, "cat": 1, "and": 1, "dog": 1})
	ix, err := index.New(corpus.Len(), mem.Snapshot(nil))
	require.NoError(t, err)
	g, _, err := similarity.NewBuilder(0.15, 2, nil).FromIndex(context.Background(), ix)
	require.NoError(t, err)
	pr, err := pagerank.Compute(context.Background(), g, pagerank.DefaultOptions())
	require.NoError(t, err)
	return &Set{
		BuiltAt:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Corpus:   corpus,
		Index:    ix,
		Graph:    g,
		PageRank: pr,
	}
}

func assertSameSet(t *testing.T, want, got *Set) {
	t.Helper()
	assert.Equal(t, want.Generation, got.Generation)
	assert.True(t, want.BuiltAt.Equal(got.BuiltAt))
	assert.Equal(t, want.Corpus.Docs(), got.Corpus.Docs())
	assert.Equal(t, want.Index.Terms(), got.Index.Terms())
	for term, postings := range want.Index.All() {
		assert.Equal(t, postings, got.Index.Lookup(term), term)
	}
	assert.Equal(t, want.Graph.Adjacency(), got.Graph.Adjacency())
	assert.Equal(t, want.PageRank, got.PageRank)
}

func stores(t *testing.T) map[string]Store {
	t.Helper()
	b, err := OpenBadgerStore("", 1)
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	return map[string]Store{
		"file":   NewFileStore(t.TempDir(), 1),
		"badger": b,
	}
}

func TestStoreRoundTrip(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			gen, err := store.Current(ctx)
			require.NoError(t, err)
			assert.Zero(t, gen)

			_, err = store.Load(ctx)
			assert.True(t, errors.Is(err, apperrors.ErrDataIntegrity))

			set := testSet(t)
			require.NoError(t, store.Save(ctx, set))
			assert.Equal(t, uint64(1), set.Generation)

			loaded, err := store.Load(ctx)
			require.NoError(t, err)
			assertSameSet(t, set, loaded)
			assert.Equal(t, 0, loaded.Graph.Degree(3), "isolated node survives the round trip")

			next := testSet(t)
			require.NoError(t, store.Save(ctx, next))
			assert.Equal(t, uint64(2), next.Generation)
			gen, err = store.Current(ctx)
			require.NoError(t, err)
			assert.Equal(t, uint64(2), gen)
		})
	}
}

func TestStoreRejectsIncompleteSet(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			set := testSet(t)
			set.PageRank = set.PageRank[:2]
			assert.Error(t, store.Save(context.Background(), set))
		})
	}
}

func TestFileStorePrunesOldGenerations(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir, 1)
	for i := 0; i < 4; i++ {
		require.NoError(t, store.Save(context.Background(), testSet(t)))
	}
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"gen-000003", "gen-000004", "manifest.seg"}, names)
}

func TestFileStoreDetectsCorruption(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir, 0)
	require.NoError(t, store.Save(context.Background(), testSet(t)))

	path := filepath.Join(dir, "gen-000001", "graph.seg")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[len(data)-1] ^= 0xff
	require.NoError(t, os.WriteFile(path, data, 0o644))

	_, err = store.Load(context.Background())
	assert.True(t, errors.Is(err, apperrors.ErrDataIntegrity))
	assert.Equal(t, 500, apperrors.HTTPStatusCode(err))
}

func TestFileStoreMissingArtifact(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir, 0)
	require.NoError(t, store.Save(context.Background(), testSet(t)))
	require.NoError(t, os.Remove(filepath.Join(dir, "gen-000001", "pagerank.seg")))

	_, err := store.Load(context.Background())
	assert.True(t, errors.Is(err, apperrors.ErrDataIntegrity))
}

func TestAssembleValidation(t *testing.T) {
	meta := []document.Metadata{{ID: 1}, {ID: 2}}
	manifest := Manifest{Documents: 2, Terms: 1, Edges: 1}
	goodIndex := IndexWire{"cat": {"1": 1, "2": 3}}
	goodGraph := GraphWire{"1": {"2": 0.5}, "2": {"1": 0.5}}
	goodPR := PageRankWire{"1": 0.5, "2": 0.5}

	set, err := assemble(manifest, meta, goodIndex, goodGraph, goodPR)
	require.NoError(t, err)
	assert.Equal(t, index.PostingList{{Doc: 0, Freq: 1}, {Doc: 1, Freq: 3}}, set.Index.Lookup("cat"))

	tests := []struct {
		name string
		iw   IndexWire
		gw   GraphWire
		pw   PageRankWire
	}{
		{"unknown id in index", IndexWire{"cat": {"9": 1}}, goodGraph, goodPR},
		{"zero frequency", IndexWire{"cat": {"1": 0}}, goodGraph, goodPR},
		{"non numeric id", IndexWire{"cat": {"x": 1}}, goodGraph, goodPR},
		{"asymmetric graph", goodIndex, GraphWire{"1": {"2": 0.5}}, goodPR},
		{"unknown id in graph", goodIndex, GraphWire{"1": {"7": 0.5}, "7": {"1": 0.5}}, goodPR},
		{"negative pagerank", goodIndex, goodGraph, PageRankWire{"1": -0.1}},
		{"unknown id in pagerank", goodIndex, goodGraph, PageRankWire{"5": 0.1}},
		{"manifest mismatch", IndexWire{"cat": {"1": 1}, "dog": {"2": 1}}, goodGraph, goodPR},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := assemble(manifest, meta, tt.iw, tt.gw, tt.pw)
			assert.True(t, errors.Is(err, apperrors.ErrDataIntegrity), "got %v", err)
		})
	}
}

func TestHolderSwap(t *testing.T) {
	h := NewHolder(nil)
	assert.Nil(t, h.Current())
	assert.Zero(t, h.Generation())

	first := testSet(t)
	first.Generation = 1
	assert.Nil(t, h.Swap(first))
	assert.Same(t, first, h.Current())

	second := testSet(t)
	second.Generation = 2
	assert.Same(t, first, h.Swap(second))
	assert.Equal(t, uint64(2), h.Generation())
}
