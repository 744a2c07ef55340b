package artifact

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/document"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/indexer/segment"
	apperrors "github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/pkg/errors"
)

const (
	manifestFile = "manifest.seg"
	genPrefix    = "gen-"
)

// FileStore keeps each generation in its own directory of segment files.
// The root manifest is replaced last, by rename, so readers only ever see
// complete generations.
type FileStore struct {
	dir    string
	keep   int
	logger *slog.Logger
}

// NewFileStore stores generations under dir and retains keep older
// generations after each save.
func NewFileStore(dir string, keep int) *FileStore {
	return &FileStore{
		dir:    dir,
		keep:   max(keep, 0),
		logger: slog.Default().With("component", "artifact-store", "backend", "file"),
	}
}

func (s *FileStore) genDir(gen uint64) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s%06d", genPrefix, gen))
}

func (s *FileStore) readManifest() (Manifest, error) {
	var m Manifest
	_, err := segment.ReadFile(filepath.Join(s.dir, manifestFile), KindManifest, &m)
	return m, err
}

func (s *FileStore) Current(ctx context.Context) (uint64, error) {
	m, err := s.readManifest()
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, apperrors.DataIntegrityf("reading manifest: %v", err)
	}
	return m.Generation, nil
}

func (s *FileStore) Save(ctx context.Context, set *Set) error {
	if err := set.Validate(); err != nil {
		return fmt.Errorf("refusing to save: %w", err)
	}
	start := time.Now()
	prev, err := s.Current(ctx)
	if err != nil {
		return err
	}
	if set.Generation == 0 {
		set.Generation = prev + 1
	}
	if set.BuiltAt.IsZero() {
		set.BuiltAt = time.Now()
	}
	dir := s.genDir(set.Generation)

	manifest := set.Manifest()
	manifest.Checksums = make(map[string]uint32, 4)
	var written uint64
	artifacts := []struct {
		kind  string
		value func() any
	}{
		{KindMetadata, func() any { return set.Corpus.Docs() }},
		{KindIndex, func() any { return indexToWire(set.Corpus, set.Index) }},
		{KindGraph, func() any { return graphToWire(set.Corpus, set.Graph) }},
		{KindPageRank, func() any { return pageRankToWire(set.Corpus, set.PageRank) }},
	}
	for _, a := range artifacts {
		if err := ctx.Err(); err != nil {
			return err
		}
		h, err := segment.WriteFile(filepath.Join(dir, a.kind+".seg"), a.kind, a.value())
		if err != nil {
			return fmt.Errorf("writing %s artifact: %w", a.kind, err)
		}
		manifest.Checksums[a.kind] = h.Checksum
		written += h.DataLen
	}
	if _, err := segment.WriteFile(filepath.Join(s.dir, manifestFile), KindManifest, manifest); err != nil {
		return fmt.Errorf("publishing manifest: %w", err)
	}
	s.logger.Info("generation saved",
		"generation", set.Generation,
		"dir", dir,
		"size", humanize.Bytes(written),
		"duration", time.Since(start),
	)
	s.prune(set.Generation)
	return nil
}

// prune removes generation directories older than the retained window.
func (s *FileStore) prune(current uint64) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		s.logger.Warn("listing generations failed", "error", err)
		return
	}
	var gens []uint64
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), genPrefix) {
			continue
		}
		var g uint64
		if _, err := fmt.Sscanf(strings.TrimPrefix(e.Name(), genPrefix), "%d", &g); err == nil && g < current {
			gens = append(gens, g)
		}
	}
	sort.Slice(gens, func(i, j int) bool { return gens[i] > gens[j] })
	for i, g := range gens {
		if i < s.keep {
			continue
		}
		if err := os.RemoveAll(s.genDir(g)); err != nil {
			s.logger.Warn("removing old generation failed", "generation", g, "error", err)
			continue
		}
		s.logger.Info("old generation removed", "generation", g)
	}
}

func (s *FileStore) Load(ctx context.Context) (*Set, error) {
	m, err := s.readManifest()
	if errors.Is(err, fs.ErrNotExist) {
		return nil, apperrors.DataIntegrityf("no artifact generation published in %s", s.dir)
	}
	if err != nil {
		return nil, apperrors.DataIntegrityf("reading manifest: %v", err)
	}
	dir := s.genDir(m.Generation)

	var (
		meta []document.Metadata
		iw   IndexWire
		gw   GraphWire
		pw   PageRankWire
	)
	targets := []struct {
		kind string
		dst  any
	}{
		{KindMetadata, &meta},
		{KindIndex, &iw},
		{KindGraph, &gw},
		{KindPageRank, &pw},
	}
	for _, t := range targets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		h, err := segment.ReadFile(filepath.Join(dir, t.kind+".seg"), t.kind, t.dst)
		if err != nil {
			return nil, apperrors.DataIntegrityf("generation %d: %s artifact: %v", m.Generation, t.kind, err)
		}
		if want, ok := m.Checksums[t.kind]; ok && want != h.Checksum {
			return nil, apperrors.DataIntegrityf("generation %d: %s checksum %08x does not match manifest %08x", m.Generation, t.kind, h.Checksum, want)
		}
	}
	set, err := assemble(m, meta, iw, gw, pw)
	if err != nil {
		return nil, err
	}
	s.logger.Info("generation loaded", "generation", set.Generation, "documents", set.Corpus.Len(), "terms", set.Index.NumTerms())
	return set, nil
}

func (s *FileStore) Close() error {
	return nil
}
