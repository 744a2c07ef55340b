package catalog

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/document"
)

const maxTitleLength = 1024

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	var parts []string
	for _, field := range slices.Sorted(maps.Keys(e.Fields)) {
		parts = append(parts, fmt.Sprintf("%s:%s", field, e.Fields[field]))
	}
	return strings.Join(parts, "; ")
}

// Validate checks a metadata record before it is stored.
func Validate(m *document.Metadata) error {
	errs := make(map[string]string)

	if m.ID <= 0 {
		errs["book_id"] = "book id must be positive"
	}
	title := strings.TrimSpace(m.Title)
	if title == "" {
		errs["title"] = "title is required"
	} else if len(title) > maxTitleLength {
		errs["title"] = fmt.Sprintf("title must be at most %d characters", maxTitleLength)
	}
	if m.WordCount <= 0 {
		errs["word_count"] = "word count must be positive"
	}
	if strings.TrimSpace(m.Locator) == "" {
		errs["filename"] = "content locator is required"
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
