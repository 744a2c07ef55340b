package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/content"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/document"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/pkg/config"
)

// Fetcher is the network side of the downloader. *Client implements it.
type Fetcher interface {
	Page(ctx context.Context, n int) (*Page, error)
	Text(ctx context.Context, b *Book) (string, error)
	Cover(ctx context.Context, b *Book) ([]byte, error)
}

// Report summarises one downloader run.
type Report struct {
	Existing int           `json:"existing"`
	Added    int           `json:"added"`
	Skipped  int           `json:"skipped"`
	NoText   int           `json:"no_text"`
	TooShort int           `json:"too_short"`
	Invalid  int           `json:"invalid"`
	Pages    int           `json:"pages"`
	Total    int           `json:"total"`
	Duration time.Duration `json:"duration"`
}

// Downloader fills the content directory and metadata store until the
// target count is reached or the catalog runs out. Progress is recorded
// after every book, so an interrupted run resumes where it stopped.
type Downloader struct {
	fetcher Fetcher
	store   MetadataStore
	content *content.Dir
	cfg     config.CatalogConfig
	logger  *slog.Logger
	sleep   func(ctx context.Context, d time.Duration) error
}

func NewDownloader(f Fetcher, store MetadataStore, dir *content.Dir, cfg config.CatalogConfig) *Downloader {
	return &Downloader{
		fetcher: f,
		store:   store,
		content: dir,
		cfg:     cfg,
		logger:  slog.Default().With("component", "catalog-downloader"),
		sleep:   sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Downloader) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	existing, err := d.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing catalogued books: %w", err)
	}
	have := make(map[document.ID]struct{}, len(existing))
	for _, m := range existing {
		have[m.ID] = struct{}{}
	}
	rep := &Report{Existing: len(existing)}
	count := len(existing)
	d.logger.Info("catalog download starting", "existing", count, "target", d.cfg.TargetCount)

	for page := 1; count < d.cfg.TargetCount; page++ {
		p, err := d.fetcher.Page(ctx, page)
		if err != nil {
			if ctx.Err() != nil {
				return rep, ctx.Err()
			}
			d.logger.Warn("catalog page failed, stopping", "page", page, "error", err)
			break
		}
		rep.Pages++
		if len(p.Results) == 0 {
			d.logger.Info("catalog exhausted", "page", page)
			break
		}
		for i := range p.Results {
			b := &p.Results[i]
			if _, ok := have[document.ID(b.ID)]; ok {
				rep.Skipped++
				continue
			}
			added, err := d.acquire(ctx, b, count, rep)
			if err != nil {
				return rep, err
			}
			if !added {
				continue
			}
			have[document.ID(b.ID)] = struct{}{}
			count++
			rep.Added++
			if count >= d.cfg.TargetCount {
				break
			}
			if err := d.sleep(ctx, d.cfg.PoliteDelay); err != nil {
				return rep, err
			}
		}
		if p.Next == "" {
			break
		}
		if err := d.sleep(ctx, 2*d.cfg.PoliteDelay); err != nil {
			return rep, err
		}
	}

	rep.Total = count
	rep.Duration = time.Since(start)
	d.logger.Info("catalog download finished",
		"added", rep.Added,
		"total", count,
		"too_short", rep.TooShort,
		"no_text", rep.NoText,
		"duration", rep.Duration,
	)
	return rep, nil
}

// acquire downloads and records one book. A book that cannot be used is
// counted and skipped; only store and filesystem failures abort the run.
func (d *Downloader) acquire(ctx context.Context, b *Book, count int, rep *Report) (bool, error) {
	log := d.logger.With("book_id", b.ID, "title", b.Title)
	text, err := d.fetcher.Text(ctx, b)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		log.Warn("no usable text", "error", err)
		rep.NoText++
		return false, nil
	}
	words := len(strings.Fields(text))
	if words < d.cfg.MinWords {
		log.Info("too short", "words", words, "min_words", d.cfg.MinWords)
		rep.TooShort++
		return false, nil
	}

	meta := document.Metadata{
		ID:        document.ID(b.ID),
		Title:     b.Title,
		Locator:   fmt.Sprintf("book_%04d_%d_%s.txt", count+1, b.ID, SafeFilename(b.Title)),
		WordCount: words,
		Languages: b.Languages,
	}
	for _, a := range b.Authors {
		meta.Authors = append(meta.Authors, a.Name)
	}
	if len(b.Summaries) > 0 {
		meta.Summary = b.Summaries[0]
	}
	if err := Validate(&meta); err != nil {
		log.Warn("invalid record", "error", err)
		rep.Invalid++
		return false, nil
	}
	if d.cfg.DownloadCovers {
		meta.Cover = d.cover(ctx, b, log)
	}

	if err := d.content.Write(meta.Locator, text); err != nil {
		return false, err
	}
	if err := d.store.Append(ctx, meta); err != nil {
		if errors.Is(err, ErrDuplicate) {
			rep.Skipped++
			return false, nil
		}
		return false, fmt.Errorf("recording book %d: %w", b.ID, err)
	}
	log.Info("book saved", "words", words, "locator", meta.Locator)
	return true, nil
}

// cover returns the stored cover file name, or "" when there is none.
func (d *Downloader) cover(ctx context.Context, b *Book, log *slog.Logger) string {
	name := fmt.Sprintf("cover_%d.jpg", b.ID)
	path := filepath.Join(d.cfg.CoverDir, name)
	if _, err := os.Stat(path); err == nil {
		return name
	}
	data, err := d.fetcher.Cover(ctx, b)
	if err != nil {
		if !errors.Is(err, ErrUnavailable) {
			log.Warn("cover download failed", "error", err)
		}
		return ""
	}
	if err := os.MkdirAll(d.cfg.CoverDir, 0o755); err != nil {
		log.Warn("creating cover directory", "error", err)
		return ""
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		log.Warn("writing cover", "error", err)
		return ""
	}
	return name
}
