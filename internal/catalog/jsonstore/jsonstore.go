// Package jsonstore keeps the catalog as an ordered JSON array on disk,
// rewritten atomically after every append.
package jsonstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/document"
)

type Store struct {
	path string
	mu   sync.Mutex
	docs []document.Metadata
	ids  map[document.ID]struct{}
}

// Open loads path if it exists. A missing file is an empty catalog.
func Open(path string) (*Store, error) {
	s := &Store{path: path, ids: make(map[document.ID]struct{})}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading metadata %s: %w", path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(data, &s.docs); err != nil {
		return nil, fmt.Errorf("parsing metadata %s: %w", path, err)
	}
	for _, m := range s.docs {
		if _, dup := s.ids[m.ID]; dup {
			return nil, fmt.Errorf("metadata %s: duplicate book id %d", path, m.ID)
		}
		s.ids[m.ID] = struct{}{}
	}
	return s, nil
}

func (s *Store) List(ctx context.Context) ([]document.Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]document.Metadata, len(s.docs))
	copy(out, s.docs)
	return out, nil
}

func (s *Store) Append(ctx context.Context, m document.Metadata) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := catalog.Validate(&m); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.ids[m.ID]; dup {
		return fmt.Errorf("%w: %d", catalog.ErrDuplicate, m.ID)
	}
	docs := append(s.docs, m)
	if err := s.save(docs); err != nil {
		return err
	}
	s.docs = docs
	s.ids[m.ID] = struct{}{}
	return nil
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.docs)
}

func (s *Store) save(docs []document.Metadata) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(docs); err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating metadata directory: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing metadata: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replacing metadata: %w", err)
	}
	return nil
}
