// Package content resolves document locators to full text.
package content

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// Source reads document text by locator. Implementations must be safe for
// concurrent use; a slow read blocks only its caller.
type Source interface {
	// Read returns the whole document with invalid UTF-8 dropped.
	Read(ctx context.Context, locator string) (string, error)
	// ReadPrefix returns at most n characters from the start of the document.
	ReadPrefix(ctx context.Context, locator string, n int) (string, error)
}

// Dir serves documents stored as files under a root directory.
type Dir struct {
	root string
}

func NewDir(root string) *Dir {
	return &Dir{root: root}
}

// Root returns the directory documents are read from.
func (d *Dir) Root() string {
	return d.root
}

func (d *Dir) path(locator string) (string, error) {
	if locator == "" || !filepath.IsLocal(locator) {
		return "", fmt.Errorf("invalid content locator %q", locator)
	}
	return filepath.Join(d.root, locator), nil
}

func (d *Dir) Read(ctx context.Context, locator string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p, err := d.path(locator)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", locator, err)
	}
	if utf8.Valid(data) {
		return string(data), nil
	}
	return strings.ToValidUTF8(string(data), ""), nil
}

func (d *Dir) ReadPrefix(ctx context.Context, locator string, n int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p, err := d.path(locator)
	if err != nil {
		return "", err
	}
	f, err := os.Open(p)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", locator, err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var b strings.Builder
	for count := 0; count < n; {
		ch, size, err := r.ReadRune()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", locator, err)
		}
		if ch == utf8.RuneError && size == 1 {
			continue
		}
		b.WriteRune(ch)
		count++
	}
	return b.String(), nil
}

// Write stores text under locator, creating parent directories. The
// catalog downloader uses it to populate the corpus.
func (d *Dir) Write(locator string, text string) error {
	p, err := d.path(locator)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("creating content directory: %w", err)
	}
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, []byte(text), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", locator, err)
	}
	if err := os.Rename(tmp, p); err != nil {
		return fmt.Errorf("renaming %s: %w", locator, err)
	}
	return nil
}

// Exists reports whether a locator resolves to a regular file.
func (d *Dir) Exists(locator string) bool {
	p, err := d.path(locator)
	if err != nil {
		return false
	}
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}

// Snippet collapses newlines to spaces and appends a truncation marker.
func Snippet(prefix string) string {
	return strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(prefix) + "..."
}

// Page is one character-offset page of a document.
type Page struct {
	Page       int
	TotalPages int
	Text       string
}

// Paginate splits text into pages of size characters and returns the
// requested page, clamped to [1, TotalPages]. Empty text has zero pages and
// yields page 1 with no text.
func Paginate(text string, page, size int) Page {
	if size < 1 {
		size = 1
	}
	runes := []rune(text)
	total := len(runes) / size
	if len(runes)%size != 0 {
		total++
	}
	if page > total {
		page = total
	}
	if page < 1 {
		page = 1
	}
	start := (page - 1) * size
	end := start + min(size, len(runes)-start)
	return Page{Page: page, TotalPages: total, Text: string(runes[start:end])}
}
