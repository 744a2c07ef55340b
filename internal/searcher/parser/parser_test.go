package parser

import (
	"net/url"
	"testing"

	apperrors "github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var limits = Limits{DefaultPageSize: 20, MaxPageSize: 100}

func TestParseDefaults(t *testing.T) {
	req, err := Parse(url.Values{"q": {"whale"}}, limits)
	require.NoError(t, err)
	assert.Equal(t, Request{Query: "whale", Mode: ModeExact, Rank: RankTF, Page: 1, PageSize: 20}, req)
}

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  Request
	}{
		{"pattern mode", "q=wh.*&mode=pattern&rank=tfidf", Request{Query: "wh.*", Mode: ModePattern, Rank: RankTFIDF, Page: 1, PageSize: 20}},
		{"advanced flag", "q=a&advanced=true", Request{Query: "a", Mode: ModePattern, Rank: RankTF, Page: 1, PageSize: 20}},
		{"advanced false keeps exact", "q=a&advanced=false", Request{Query: "a", Mode: ModeExact, Rank: RankTF, Page: 1, PageSize: 20}},
		{"tfpr alias", "q=a&rank=TFPR", Request{Query: "a", Mode: ModeExact, Rank: RankTFxPR, Page: 1, PageSize: 20}},
		{"page size capped", "q=a&page=3&page_size=500", Request{Query: "a", Mode: ModeExact, Rank: RankTF, Page: 3, PageSize: 100}},
		{"empty query is valid", "", Request{Mode: ModeExact, Rank: RankTF, Page: 1, PageSize: 20}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values, err := url.ParseQuery(tt.query)
			require.NoError(t, err)
			got, err := Parse(values, limits)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRejects(t *testing.T) {
	for _, q := range []string{
		"q=a&mode=fuzzy",
		"q=a&rank=bm25",
		"q=a&page=0",
		"q=a&page=x",
		"q=a&page_size=-1",
		"q=a&advanced=maybe",
	} {
		t.Run(q, func(t *testing.T) {
			values, err := url.ParseQuery(q)
			require.NoError(t, err)
			_, err = Parse(values, limits)
			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
			assert.Equal(t, 400, apperrors.HTTPStatusCode(err))
		})
	}
}

func TestNormalizeTerm(t *testing.T) {
	assert.Equal(t, "whale", NormalizeTerm("  WHALE \n"))
	assert.Equal(t, "café", NormalizeTerm("CAFÉ"))
	assert.Equal(t, "", NormalizeTerm("   "))
}
