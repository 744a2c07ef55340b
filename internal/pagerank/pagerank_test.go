package pagerank

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/document"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/similarity"
)

func graph(t *testing.T, n int, edges ...[2]int) *similarity.Graph {
	t.Helper()
	adj := make([][]similarity.Edge, n)
	for i := range adj {
		adj[i] = []similarity.Edge{}
	}
	for _, e := range edges {
		adj[e[0]] = append(adj[e[0]], similarity.Edge{To: document.Ord(e[1]), Weight: 0.5})
		adj[e[1]] = append(adj[e[1]], similarity.Edge{To: document.Ord(e[0]), Weight: 0.5})
	}
	g, err := similarity.NewGraph(adj)
	require.NoError(t, err)
	return g
}

func TestNoDanglingSumsToOne(t *testing.T) {
	// triangle plus a tail: 0-1, 1-2, 2-0, 2-3
	g := graph(t, 4, [2]int{0, 1}, [2]int{1, 2}, [2]int{2, 0}, [2]int{2, 3})
	for _, policy := range []DanglingPolicy{Leak, Redistribute} {
		pr, err := Compute(context.Background(), g, Options{Damping: 0.85, Iterations: 30, Dangling: policy})
		require.NoError(t, err)
		assert.InDelta(t, 1.0, pr.Sum(), 1e-9, policy)
		for _, s := range pr {
			assert.GreaterOrEqual(t, s, 0.0)
		}
		assert.Greater(t, pr[2], pr[3], "hub outranks leaf")
		assert.InDelta(t, pr[0], pr[1], 1e-12, "symmetric nodes score equally")
	}
}

func TestDanglingPolicies(t *testing.T) {
	// 0-1 connected, 2 isolated
	g := graph(t, 3, [2]int{0, 1})

	leak, err := Compute(context.Background(), g, DefaultOptions())
	require.NoError(t, err)
	assert.Less(t, leak.Sum(), 1.0)
	assert.InDelta(t, 0.15/3, leak[2], 1e-12, "isolated node keeps only the teleport share")

	redist, err := Compute(context.Background(), g, Options{Damping: 0.85, Iterations: 30, Dangling: Redistribute})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, redist.Sum(), 1e-9)
	assert.Greater(t, redist[2], leak[2])
}

func TestSingleIterationByHand(t *testing.T) {
	g := graph(t, 2, [2]int{0, 1})
	pr, err := Compute(context.Background(), g, Options{Damping: 0.85, Iterations: 1, Dangling: Leak})
	require.NoError(t, err)
	// (1-0.85)/2 + 0.85 * 0.5/1
	assert.InDelta(t, 0.5, pr[0], 1e-12)
	assert.InDelta(t, 0.5, pr[1], 1e-12)

	pr, err = Compute(context.Background(), g, Options{Damping: 0.85, Iterations: 0, Dangling: Leak})
	require.NoError(t, err)
	assert.Equal(t, Vector{0.5, 0.5}, pr)
}

func TestEmptyGraph(t *testing.T) {
	pr, err := Compute(context.Background(), graph(t, 0), DefaultOptions())
	require.NoError(t, err)
	assert.Empty(t, pr)
}

func TestInvalidOptions(t *testing.T) {
	g := graph(t, 1)
	for _, opts := range []Options{
		{Damping: 1, Iterations: 30, Dangling: Leak},
		{Damping: 0.85, Iterations: -1, Dangling: Leak},
		{Damping: 0.85, Iterations: 30, Dangling: "ignore"},
	} {
		_, err := Compute(context.Background(), g, opts)
		assert.Error(t, err)
	}
}

func TestComputeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Compute(ctx, graph(t, 2, [2]int{0, 1}), DefaultOptions())
	assert.ErrorIs(t, err, context.Canceled)
}
