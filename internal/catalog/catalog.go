// Package catalog acquires raw books and their metadata from a
// Gutendex-compatible catalog API and records them for the offline build.
package catalog

import (
	"context"
	"errors"
	"slices"
	"strings"
	"unicode"

	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/document"
)

// ErrDuplicate is returned by a MetadataStore asked to append an id it
// already holds.
var ErrDuplicate = errors.New("book already catalogued")

// MetadataStore holds the catalog in acquisition order. The order is the
// canonical corpus order used by the build.
type MetadataStore interface {
	List(ctx context.Context) ([]document.Metadata, error)
	Append(ctx context.Context, m document.Metadata) error
}

// Person is a Gutendex author or translator.
type Person struct {
	Name      string `json:"name"`
	BirthYear *int   `json:"birth_year"`
	DeathYear *int   `json:"death_year"`
}

// Book is one Gutendex catalog record.
type Book struct {
	ID            int64             `json:"id"`
	Title         string            `json:"title"`
	Authors       []Person          `json:"authors"`
	Summaries     []string          `json:"summaries"`
	Languages     []string          `json:"languages"`
	Formats       map[string]string `json:"formats"`
	DownloadCount int               `json:"download_count"`
}

// TextURLs returns the plain-text format links the record advertises.
func (b *Book) TextURLs() []string {
	var urls []string
	for mime, url := range b.Formats {
		if strings.Contains(mime, "text/plain") {
			urls = append(urls, url)
		}
	}
	// map order is random; keep retries deterministic
	slices.Sort(urls)
	return urls
}

// CoverURL returns the JPEG cover link, if any.
func (b *Book) CoverURL() string {
	return b.Formats["image/jpeg"]
}

// Page is one page of catalog results.
type Page struct {
	Count    int    `json:"count"`
	Next     string `json:"next"`
	Previous string `json:"previous"`
	Results  []Book `json:"results"`
}

// SafeFilename keeps letters, digits, spaces, underscores and hyphens and
// truncates to 60 characters.
func SafeFilename(name string) string {
	var b strings.Builder
	n := 0
	for _, r := range name {
		if n == 60 {
			break
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '_' || r == '-' {
			b.WriteRune(r)
			n++
		}
	}
	return b.String()
}
