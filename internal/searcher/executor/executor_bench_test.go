package executor

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/artifact"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/artifact/artifacttest"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/document"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/searcher/parser"
)

var benchVocabulary = strings.Fields(`whale sea ship captain harpoon voyage island storm
	love letter marriage estate ball sister fortune monster creature laboratory
	detective murder clue inspector river garden winter village war battle`)

func syntheticBooks(n, words int) []artifacttest.Book {
	r := rand.New(rand.NewPCG(7, 11))
	books := make([]artifacttest.Book, n)
	for i := range books {
		var b strings.Builder
		for range words {
			b.WriteString(benchVocabulary[r.IntN(len(benchVocabulary))])
			b.WriteByte(' ')
		}
		books[i] = artifacttest.Book{
			ID:    document.ID(i + 1),
			Title: fmt.Sprintf("Book %d", i+1),
			Text:  b.String(),
		}
	}
	return books
}

func BenchmarkSearch(b *testing.B) {
	set, dir := artifacttest.Build(b, syntheticBooks(500, 400), 0.5)
	e, err := New(artifact.NewHolder(set), dir, searchConfig(), nil)
	if err != nil {
		b.Fatal(err)
	}
	defer e.Close()
	ctx := context.Background()

	cases := []struct {
		name string
		req  parser.Request
	}{
		{"exact_tf", request("whale", parser.ModeExact, parser.RankTF)},
		{"exact_tfidf", request("harpoon", parser.ModeExact, parser.RankTFIDF)},
		{"exact_tfxpr", request("storm", parser.ModeExact, parser.RankTFxPR)},
		{"pattern_prefix", request("^s", parser.ModePattern, parser.RankPR)},
		{"pattern_class", request("[aeiou]r$", parser.ModePattern, parser.RankTF)},
	}
	for _, c := range cases {
		b.Run(c.name, func(b *testing.B) {
			b.ReportAllocs()
			for b.Loop() {
				if _, err := e.Search(ctx, c.req); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
