// Package tokenizer turns document text into lower-cased alphabetic tokens.
// Both the index builder and the similarity builder tokenize through it so
// they agree on what a term is.
package tokenizer

import (
	"iter"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Tokenizer is safe for concurrent use. The zero value tokenizes without
// stop-word filtering.
type Tokenizer struct {
	stopWords bool
}

// Option configures a Tokenizer.
type Option func(*Tokenizer)

// WithStopWords enables filtering of stop words for the languages a
// document declares.
func WithStopWords(enabled bool) Option {
	return func(t *Tokenizer) {
		t.stopWords = enabled
	}
}

func New(opts ...Option) *Tokenizer {
	t := &Tokenizer{}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// All yields the tokens of text from left to right. The sequence can be
// ranged over more than once. Invalid UTF-8 is dropped, letters are kept
// with any combining marks that follow them, and tokens are lower-cased and
// NFC-composed.
func (t *Tokenizer) All(text string, languages ...string) iter.Seq[string] {
	stop := t.stopSet(languages)
	return func(yield func(string) bool) {
		lowered := strings.ToLower(strings.ToValidUTF8(text, ""))
		start := -1
		for i, r := range lowered {
			if unicode.IsLetter(r) || (start >= 0 && unicode.Is(unicode.Mn, r)) {
				if start < 0 {
					start = i
				}
				continue
			}
			if start >= 0 {
				if !emit(lowered[start:i], stop, yield) {
					return
				}
				start = -1
			}
		}
		if start >= 0 {
			emit(lowered[start:], stop, yield)
		}
	}
}

// Tokens collects All into a slice.
func (t *Tokenizer) Tokens(text string, languages ...string) []string {
	var out []string
	for tok := range t.All(text, languages...) {
		out = append(out, tok)
	}
	return out
}

// Counts returns the frequency of every distinct token in text. Keys are
// copied so they do not pin text in memory.
func (t *Tokenizer) Counts(text string, languages ...string) map[string]uint32 {
	counts := make(map[string]uint32)
	for tok := range t.All(text, languages...) {
		if n, ok := counts[tok]; ok {
			counts[tok] = n + 1
			continue
		}
		counts[strings.Clone(tok)] = 1
	}
	return counts
}

func emit(tok string, stop map[string]struct{}, yield func(string) bool) bool {
	if !isASCII(tok) {
		tok = norm.NFC.String(tok)
	}
	if _, skip := stop[tok]; skip {
		return true
	}
	return yield(tok)
}

func (t *Tokenizer) stopSet(languages []string) map[string]struct{} {
	if !t.stopWords || len(languages) == 0 {
		return nil
	}
	if len(languages) == 1 {
		return stopWords[strings.ToLower(languages[0])]
	}
	merged := make(map[string]struct{})
	for _, lang := range languages {
		for w := range stopWords[strings.ToLower(lang)] {
			merged[w] = struct{}{}
		}
	}
	return merged
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
