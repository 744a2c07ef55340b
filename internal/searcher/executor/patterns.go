package executor

import (
	"regexp"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/artifact"
	apperrors "github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/pkg/errors"
)

// matchPattern returns every vocabulary term the case-insensitive pattern
// finds a match in, in vocabulary order. Results are memoised per
// generation.
func (e *Engine) matchPattern(set *artifact.Set, pattern string) ([]string, error) {
	key := strconv.FormatUint(set.Generation, 10) + "\x00" + pattern
	if terms, ok := e.patterns.Get(key); ok {
		return terms, nil
	}

	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, apperrors.InvalidQueryf("invalid pattern %q: %v", pattern, err)
	}
	var terms []string
	for _, term := range set.Index.Terms() {
		if re.MatchString(term) {
			terms = append(terms, term)
		}
	}
	e.patterns.Set(key, terms, 1)
	return terms, nil
}
