package similarity

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/content"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/document"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/indexer/tokenizer"
)

func TestJaccard(t *testing.T) {
	tests := []struct {
		name string
		a, b []uint32
		want float64
	}{
		{"identical", []uint32{1, 2, 3}, []uint32{1, 2, 3}, 1},
		{"half", []uint32{1, 2, 3}, []uint32{1, 2, 4}, 0.5},
		{"disjoint", []uint32{1}, []uint32{2}, 0},
		{"empty left", nil, []uint32{1}, 0},
		{"both empty", nil, nil, 0},
		{"subset", []uint32{2}, []uint32{1, 2, 3, 4}, 0.25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Jaccard(tt.a, tt.b), 1e-12)
			assert.Equal(t, Jaccard(tt.a, tt.b), Jaccard(tt.b, tt.a))
		})
	}
}

func TestUpperBoundNeverBelowJaccard(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 200; i++ {
		a, b := randomSet(r, 40), randomSet(r, 40)
		j := Jaccard(a, b)
		assert.GreaterOrEqual(t, upperBound(len(a), len(b)), j)
		assert.GreaterOrEqual(t, j, 0.0)
		assert.LessOrEqual(t, j, 1.0)
	}
}

func randomSet(r *rand.Rand, universe int) []uint32 {
	var s []uint32
	for v := 0; v < universe; v++ {
		if r.IntN(3) == 0 {
			s = append(s, uint32(v))
		}
	}
	return s
}

func TestFromSetsCatDog(t *testing.T) {
	// the=0 cat=1 sat=2 dog=3 a=4 and=5
	sets := [][]uint32{
		{0, 1, 2},
		{0, 2, 3},
		{1, 3, 4, 5},
	}
	g, stats, err := NewBuilder(0.15, 2, nil).FromSets(context.Background(), sets)
	require.NoError(t, err)

	w, ok := g.Weight(0, 1)
	require.True(t, ok)
	assert.InDelta(t, 0.5, w, 1e-12)
	w, ok = g.Weight(0, 2)
	require.True(t, ok)
	assert.InDelta(t, 1.0/6.0, w, 1e-12)
	assert.Equal(t, int64(3), stats.Pairs)
	assert.Equal(t, 3, g.NumEdges())

	g, _, err = NewBuilder(0.2, 2, nil).FromSets(context.Background(), sets)
	require.NoError(t, err)
	_, ok = g.Weight(0, 2)
	assert.False(t, ok)
	assert.Equal(t, 1, g.NumEdges())
	assert.Equal(t, 0, g.Degree(2))
}

func TestFromSetsSymmetricAndWorkerIndependent(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 9))
	sets := make([][]uint32, 60)
	for i := range sets {
		sets[i] = randomSet(r, 30)
	}
	sets[5] = nil

	ref, _, err := NewBuilder(0.3, 1, nil).FromSets(context.Background(), sets)
	require.NoError(t, err)
	for _, workers := range []int{2, 3, 8, 100} {
		g, _, err := NewBuilder(0.3, workers, nil).FromSets(context.Background(), sets)
		require.NoError(t, err)
		assert.Equal(t, ref.Adjacency(), g.Adjacency(), "workers=%d", workers)
	}

	for from := 0; from < ref.Len(); from++ {
		for _, e := range ref.Neighbors(document.Ord(from)) {
			assert.NotEqual(t, document.Ord(from), e.To)
			back, ok := ref.Weight(e.To, document.Ord(from))
			require.True(t, ok)
			assert.Equal(t, e.Weight, back)
			assert.GreaterOrEqual(t, e.Weight, 0.3)
		}
		assert.True(t, slices.IsSortedFunc(ref.Neighbors(document.Ord(from)), func(a, b Edge) int {
			if a.Weight != b.Weight {
				if a.Weight > b.Weight {
					return -1
				}
				return 1
			}
			return int(a.To) - int(b.To)
		}))
	}
	assert.Equal(t, 0, ref.Degree(5))

	// brute force agreement
	edges := 0
	for i := range sets {
		for j := i + 1; j < len(sets); j++ {
			if Jaccard(sets[i], sets[j]) >= 0.3 {
				edges++
			}
		}
	}
	assert.Equal(t, edges, ref.NumEdges())
}

func TestFromSetsCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := NewBuilder(0.1, 2, nil).FromSets(ctx, [][]uint32{{1}, {1}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFromSetsEmpty(t *testing.T) {
	g, _, err := NewBuilder(0.1, 4, nil).FromSets(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, g.Len())
}

func TestBuildMatchesFromIndex(t *testing.T) {
	root := t.TempDir()
	texts := []string{
		"the cat sat on the mat",
		"the dog sat on the log",
		"a cat and a dog",
		"whales swim in the sea",
		"the sea is where whales swim",
	}
	var docs []document.Metadata
	for i, text := range texts {
		name := fmt.Sprintf("%d.txt", i)
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte(text), 0o644))
		docs = append(docs, document.Metadata{ID: document.ID(i + 1), Locator: name})
	}
	corpus, err := document.NewCorpus(docs)
	require.NoError(t, err)
	src := content.NewDir(root)
	tok := tokenizer.New()

	res, err := indexer.NewEngine(tok, src, 2, nil).Build(context.Background(), corpus)
	require.NoError(t, err)

	b := NewBuilder(0.12, 3, nil)
	fromIndex, _, err := b.FromIndex(context.Background(), res.Index)
	require.NoError(t, err)
	direct, _, err := b.Build(context.Background(), corpus, src, tok)
	require.NoError(t, err)
	assert.Equal(t, fromIndex.Adjacency(), direct.Adjacency())
	assert.Positive(t, direct.NumEdges())
}

func TestNewGraphValidation(t *testing.T) {
	_, err := NewGraph([][]Edge{{{To: 1, Weight: 0.5}}, {{To: 0, Weight: 0.5}}})
	assert.NoError(t, err)

	tests := []struct {
		name string
		adj  [][]Edge
	}{
		{"asymmetric", [][]Edge{{{To: 1, Weight: 0.5}}, {}}},
		{"weight mismatch", [][]Edge{{{To: 1, Weight: 0.5}}, {{To: 0, Weight: 0.4}}}},
		{"self edge", [][]Edge{{{To: 0, Weight: 1}}}},
		{"out of range", [][]Edge{{{To: 3, Weight: 0.5}}}},
		{"weight above one", [][]Edge{{{To: 1, Weight: 1.5}}, {{To: 0, Weight: 1.5}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewGraph(tt.adj)
			assert.Error(t, err)
		})
	}
}

// completeGraph links every pair of n nodes, with weights that do not
// follow ordinal order.
func completeGraph(n int) [][]Edge {
	adj := make([][]Edge, n)
	for a := range n {
		for b := range n {
			if a != b {
				w := float64((a+b)%97+1) / 100
				adj[a] = append(adj[a], Edge{To: document.Ord(b), Weight: w})
			}
		}
	}
	return adj
}

func TestNewGraphDense(t *testing.T) {
	g, err := NewGraph(completeGraph(600))
	require.NoError(t, err)
	assert.Equal(t, 600*599/2, g.NumEdges())

	w, ok := g.Weight(10, 20)
	require.True(t, ok)
	assert.InDelta(t, 0.31, w, 1e-12)
	for _, list := range g.Adjacency()[:5] {
		assert.True(t, slices.IsSortedFunc(list, func(a, b Edge) int {
			if a.Weight != b.Weight {
				if a.Weight > b.Weight {
					return -1
				}
				return 1
			}
			return int(a.To) - int(b.To)
		}))
	}

	adj := completeGraph(50)
	adj[7][3].Weight += 0.001
	_, err = NewGraph(adj)
	assert.Error(t, err)
}

func BenchmarkNewGraph(b *testing.B) {
	for b.Loop() {
		if _, err := NewGraph(completeGraph(1664)); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkFromSets(b *testing.B) {
	r := rand.New(rand.NewPCG(3, 4))
	sets := make([][]uint32, 400)
	for i := range sets {
		sets[i] = randomSet(r, 3000)
	}
	builder := NewBuilder(0.12, 0, nil)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, err := builder.FromSets(context.Background(), sets); err != nil {
			b.Fatal(err)
		}
	}
}
