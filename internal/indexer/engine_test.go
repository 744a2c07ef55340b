package indexer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/content"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/document"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/pkg/metrics"
)

func writeCorpus(t *testing.T, texts map[string]string) *content.Dir {
	t.Helper()
	root := t.TempDir()
	for name, text := range texts {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte(text), 0o644))
	}
	return content.NewDir(root)
}

func TestBuildCatDog(t *testing.T) {
	src := writeCorpus(t, map[string]string{
		"1.txt": "the cat sat",
		"2.txt": "the dog sat",
		"3.txt": "a cat and a dog",
	})
	corpus, err := document.NewCorpus([]document.Metadata{
		{ID: 1, Locator: "1.txt"},
		{ID: 2, Locator: "2.txt"},
		{ID: 3, Locator: "3.txt"},
	})
	require.NoError(t, err)

	res, err := NewEngine(tokenizer.New(), src, 2, nil).Build(context.Background(), corpus)
	require.NoError(t, err)
	assert.Empty(t, res.Skipped)
	assert.Equal(t, 3, res.Corpus.Len())
	assert.Equal(t, int64(11), res.Tokens)

	cat := res.Index.Lookup("cat")
	require.Len(t, cat, 2)
	assert.Equal(t, document.ID(1), res.Corpus.Doc(cat[0].Doc).ID)
	assert.Equal(t, document.ID(3), res.Corpus.Doc(cat[1].Doc).ID)
	assert.Equal(t, uint32(1), cat[0].Freq)
	assert.Equal(t, 2, res.Index.DocFreq("cat"))
	assert.Equal(t, uint32(2), res.Index.Frequency("a", 2))
}

func TestBuildSkipsMissingContent(t *testing.T) {
	src := writeCorpus(t, map[string]string{
		"1.txt": "whale ship",
		"3.txt": "ship sea",
	})
	corpus, err := document.NewCorpus([]document.Metadata{
		{ID: 1, Locator: "1.txt"},
		{ID: 2, Title: "Lost", Locator: "2.txt"},
		{ID: 3, Locator: "3.txt"},
	})
	require.NoError(t, err)
	m := metrics.New(prometheus.NewRegistry())

	res, err := NewEngine(tokenizer.New(), src, 4, m).Build(context.Background(), corpus)
	require.NoError(t, err)

	require.Len(t, res.Skipped, 1)
	assert.Equal(t, document.ID(2), res.Skipped[0].ID)
	assert.Equal(t, "missing", res.Skipped[0].Reason)
	assert.True(t, errors.Is(res.Skipped[0].Err, apperrors.ErrDataIntegrity))

	assert.Equal(t, 2, res.Corpus.Len())
	_, ok := res.Corpus.Lookup(2)
	assert.False(t, ok)
	o, ok := res.Corpus.Lookup(3)
	require.True(t, ok)
	assert.Equal(t, document.Ord(1), o)
	assert.Equal(t, index.PostingList{{Doc: 0, Freq: 1}, {Doc: 1, Freq: 1}}, res.Index.Lookup("ship"))
	assert.Equal(t, 2, res.Index.DocCount())

	assert.Equal(t, 1.0, testutil.ToFloat64(m.DocsSkippedTotal.WithLabelValues("missing")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.DocsIndexedTotal))
}

type failingSource struct{ content.Source }

func (failingSource) Read(ctx context.Context, locator string) (string, error) {
	if locator == "bad" {
		return "", errors.New("disk on fire")
	}
	return "word", nil
}

func TestBuildSkipsUnreadable(t *testing.T) {
	corpus, err := document.NewCorpus([]document.Metadata{{ID: 1, Locator: "bad"}, {ID: 2, Locator: "ok"}})
	require.NoError(t, err)
	res, err := NewEngine(tokenizer.New(), failingSource{}, 1, nil).Build(context.Background(), corpus)
	require.NoError(t, err)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, "unreadable", res.Skipped[0].Reason)
	assert.False(t, errors.Is(res.Skipped[0].Err, fs.ErrNotExist))
}

func TestBuildHonoursCancellation(t *testing.T) {
	src := writeCorpus(t, map[string]string{"1.txt": "x"})
	corpus, err := document.NewCorpus([]document.Metadata{{ID: 1, Locator: "1.txt"}})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewEngine(tokenizer.New(), src, 1, nil).Build(ctx, corpus)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuildIsOrderIndependent(t *testing.T) {
	texts := map[string]string{}
	var forward, reverse []document.Metadata
	for i := 1; i <= 20; i++ {
		name := fmt.Sprintf("%d.txt", i)
		texts[name] = fmt.Sprintf("book %d shares words with book %d and more words", i, i%3)
		forward = append(forward, document.Metadata{ID: document.ID(i), Locator: name})
	}
	for i := len(forward) - 1; i >= 0; i-- {
		reverse = append(reverse, forward[i])
	}
	src := writeCorpus(t, texts)
	a, err := document.NewCorpus(forward)
	require.NoError(t, err)
	b, err := document.NewCorpus(reverse)
	require.NoError(t, err)

	ra, err := NewEngine(tokenizer.New(), src, 8, nil).Build(context.Background(), a)
	require.NoError(t, err)
	rb, err := NewEngine(tokenizer.New(), src, 3, nil).Build(context.Background(), b)
	require.NoError(t, err)

	require.Equal(t, ra.Index.Terms(), rb.Index.Terms())
	for term, pa := range ra.Index.All() {
		byID := map[document.ID]uint32{}
		for _, p := range pa {
			byID[ra.Corpus.Doc(p.Doc).ID] = p.Freq
		}
		for _, p := range rb.Index.Lookup(term) {
			assert.Equal(t, byID[rb.Corpus.Doc(p.Doc).ID], p.Freq, term)
		}
		assert.Len(t, rb.Index.Lookup(term), len(pa))
	}
}
