// Package parser turns raw search parameters into a validated Request.
package parser

import (
	"net/url"
	"strconv"
	"strings"
	"unicode"

	apperrors "github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/pkg/errors"
	"golang.org/x/text/unicode/norm"
)

// Mode selects how the query string is matched against the vocabulary.
type Mode string

const (
	ModeExact   Mode = "exact"
	ModePattern Mode = "pattern"
)

// Rank selects the scoring strategy.
type Rank string

const (
	RankTF      Rank = "tf"
	RankPR      Rank = "pr"
	RankTFxPR   Rank = "tfxpr"
	RankTFIDF   Rank = "tfidf"
	rankTFPRAlt Rank = "tfpr"
)

// Request is a parsed search request.
type Request struct {
	Query    string `json:"query"`
	Mode     Mode   `json:"mode"`
	Rank     Rank   `json:"rank_mode"`
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
}

// Limits bound pagination parameters.
type Limits struct {
	DefaultPageSize int
	MaxPageSize     int
}

// ParseMode accepts "exact" or "pattern", case-insensitively. An empty
// string is exact mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeExact:
		return ModeExact, nil
	case ModePattern:
		return ModePattern, nil
	}
	return "", apperrors.InvalidInputf("mode must be %q or %q, got %q", ModeExact, ModePattern, s)
}

// ParseRank accepts tf, pr, tfxpr (or tfpr) and tfidf. An empty string is tf.
func ParseRank(s string) (Rank, error) {
	switch r := Rank(strings.ToLower(strings.TrimSpace(s))); r {
	case "":
		return RankTF, nil
	case RankTF, RankPR, RankTFxPR, RankTFIDF:
		return r, nil
	case rankTFPRAlt:
		return RankTFxPR, nil
	}
	return "", apperrors.InvalidInputf("rank must be one of tf, pr, tfxpr, tfidf, got %q", s)
}

// Parse reads q, mode, advanced, rank, page and page_size. advanced=true is
// shorthand for pattern mode. page_size is capped at the limit maximum.
func Parse(values url.Values, limits Limits) (Request, error) {
	req := Request{Query: values.Get("q")}

	mode, err := ParseMode(values.Get("mode"))
	if err != nil {
		return Request{}, err
	}
	if adv := values.Get("advanced"); adv != "" {
		on, err := strconv.ParseBool(adv)
		if err != nil {
			return Request{}, apperrors.InvalidInputf("advanced must be a boolean, got %q", adv)
		}
		if on {
			mode = ModePattern
		}
	}
	req.Mode = mode

	if req.Rank, err = ParseRank(values.Get("rank")); err != nil {
		return Request{}, err
	}
	if req.Page, err = PositiveInt(values, "page", 1); err != nil {
		return Request{}, err
	}
	if req.PageSize, err = PositiveInt(values, "page_size", limits.DefaultPageSize); err != nil {
		return Request{}, err
	}
	if limits.MaxPageSize > 0 && req.PageSize > limits.MaxPageSize {
		req.PageSize = limits.MaxPageSize
	}
	return req, nil
}

// PositiveInt reads key from values, returning def when absent.
func PositiveInt(values url.Values, key string, def int) (int, error) {
	raw := values.Get(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, apperrors.InvalidInputf("%s must be a positive integer, got %q", key, raw)
	}
	return n, nil
}

// NormalizeTerm lower-cases and trims an exact-mode query so it compares
// equal to an indexed token.
func NormalizeTerm(q string) string {
	q = strings.ToLower(strings.TrimFunc(q, unicode.IsSpace))
	return norm.NFC.String(q)
}
