package artifact

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/document"
	apperrors "github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/pkg/errors"
)

// Key layout:
//
//	current                     8-byte big-endian generation
//	g/<gen>/manifest            JSON Manifest
//	g/<gen>/meta/<ord>          JSON document.Metadata
//	g/<gen>/idx/<term>          JSON map[id]freq
//	g/<gen>/graph/<id>          JSON map[id]weight
//	g/<gen>/pr/<id>             8-byte IEEE-754 score
const (
	currentKey      = "current"
	sectionMeta     = "meta/"
	sectionIndex    = "idx/"
	sectionGraph    = "graph/"
	sectionPR       = "pr/"
	sectionManifest = "manifest"
)

func genPrefixKey(gen uint64) string {
	return fmt.Sprintf("g/%020d/", gen)
}

type badgerLoggerAdapter struct {
	logger *slog.Logger
}

var _ badger.Logger = (*badgerLoggerAdapter)(nil)

func (bl *badgerLoggerAdapter) Errorf(msg string, items ...any) {
	bl.logger.Error(strings.TrimSpace(fmt.Sprintf(msg, items...)))
}

func (bl *badgerLoggerAdapter) Warningf(msg string, items ...any) {
	bl.logger.Warn(strings.TrimSpace(fmt.Sprintf(msg, items...)))
}

func (bl *badgerLoggerAdapter) Infof(msg string, items ...any) {
	bl.logger.Debug(strings.TrimSpace(fmt.Sprintf(msg, items...)))
}

func (bl *badgerLoggerAdapter) Debugf(msg string, items ...any) {
	bl.logger.Debug(strings.TrimSpace(fmt.Sprintf(msg, items...)))
}

// BadgerStore keeps generations in a BadgerDB keyspace. A generation
// becomes visible when the current key is switched in a single
// transaction after all of its keys are written.
type BadgerStore struct {
	db     *badger.DB
	keep   int
	logger *slog.Logger
}

// OpenBadgerStore opens (or creates) a store at path. An empty path opens
// an in-memory database.
func OpenBadgerStore(path string, keep int) (*BadgerStore, error) {
	logger := slog.Default().With("component", "artifact-store", "backend", "badger")
	var opts badger.Options
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return nil, fmt.Errorf("creating badger directory: %w", err)
		}
		opts = badger.DefaultOptions(path)
	}
	opts.Logger = &badgerLoggerAdapter{logger: logger}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger store: %w", err)
	}
	return &BadgerStore{db: db, keep: max(keep, 0), logger: logger}, nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func (s *BadgerStore) Current(ctx context.Context) (uint64, error) {
	var gen uint64
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(currentKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) != 8 {
				return fmt.Errorf("current key holds %d bytes", len(val))
			}
			gen = binary.BigEndian.Uint64(val)
			return nil
		})
	})
	if err != nil {
		return 0, apperrors.DataIntegrityf("reading current generation: %v", err)
	}
	return gen, nil
}

func (s *BadgerStore) Save(ctx context.Context, set *Set) error {
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
	prefix := genPrefixKey(set.Generation)
	c := set.Corpus

	// a half-written generation from a crashed save must not leak keys
	if err := s.db.DropPrefix([]byte(prefix)); err != nil {
		return fmt.Errorf("clearing generation %d: %w", set.Generation, err)
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	put := func(key string, v any) error {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encoding %s: %w", key, err)
		}
		return wb.Set([]byte(key), data)
	}

	for i, meta := range c.Docs() {
		if err := put(fmt.Sprintf("%s%s%010d", prefix, sectionMeta, i), meta); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	for term, postings := range indexToWire(c, set.Index) {
		if err := put(prefix+sectionIndex+term, postings); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	for id, edges := range graphToWire(c, set.Graph) {
		if err := put(prefix+sectionGraph+id, edges); err != nil {
			return err
		}
	}
	for id, score := range pageRankToWire(c, set.PageRank) {
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, math.Float64bits(score))
		if err := wb.Set([]byte(prefix+sectionPR+id), buf); err != nil {
			return err
		}
	}
	if err := put(prefix+sectionManifest, set.Manifest()); err != nil {
		return err
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("writing generation %d: %w", set.Generation, err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, set.Generation)
		return txn.Set([]byte(currentKey), buf)
	})
	if err != nil {
		return fmt.Errorf("switching current generation: %w", err)
	}
	s.logger.Info("generation saved", "generation", set.Generation, "duration", time.Since(start))
	s.prune(set.Generation)
	return nil
}

func (s *BadgerStore) prune(current uint64) {
	if current <= uint64(s.keep)+1 {
		return
	}
	for gen := current - uint64(s.keep) - 1; gen >= 1; gen-- {
		prefix := []byte(genPrefixKey(gen))
		exists := false
		_ = s.db.View(func(txn *badger.Txn) error {
			_, err := txn.Get(append(prefix, sectionManifest...))
			exists = err == nil
			return nil
		})
		if !exists {
			break
		}
		if err := s.db.DropPrefix(prefix); err != nil {
			s.logger.Warn("dropping old generation failed", "generation", gen, "error", err)
			return
		}
		s.logger.Info("old generation removed", "generation", gen)
	}
}

func (s *BadgerStore) Load(ctx context.Context) (*Set, error) {
	gen, err := s.Current(ctx)
	if err != nil {
		return nil, err
	}
	if gen == 0 {
		return nil, apperrors.DataIntegrityf("no artifact generation published")
	}
	prefix := []byte(genPrefixKey(gen))

	var (
		manifest    Manifest
		hasManifest bool
		meta        []document.Metadata
		iw          = IndexWire{}
		gw          = GraphWire{}
		pw          = PageRankWire{}
	)
	err = s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			rest := string(bytes.TrimPrefix(item.Key(), prefix))
			err := item.Value(func(val []byte) error {
				switch {
				case rest == sectionManifest:
					hasManifest = true
					return json.Unmarshal(val, &manifest)
				case strings.HasPrefix(rest, sectionMeta):
					var m document.Metadata
					if err := json.Unmarshal(val, &m); err != nil {
						return err
					}
					meta = append(meta, m)
				case strings.HasPrefix(rest, sectionIndex):
					var postings map[string]uint32
					if err := json.Unmarshal(val, &postings); err != nil {
						return err
					}
					iw[strings.TrimPrefix(rest, sectionIndex)] = postings
				case strings.HasPrefix(rest, sectionGraph):
					var edges map[string]float64
					if err := json.Unmarshal(val, &edges); err != nil {
						return err
					}
					gw[strings.TrimPrefix(rest, sectionGraph)] = edges
				case strings.HasPrefix(rest, sectionPR):
					if len(val) != 8 {
						return fmt.Errorf("pagerank value for %s is %d bytes", rest, len(val))
					}
					pw[strings.TrimPrefix(rest, sectionPR)] = math.Float64frombits(binary.BigEndian.Uint64(val))
				default:
					return fmt.Errorf("unexpected key %q", rest)
				}
				return nil
			})
			if err != nil {
				return fmt.Errorf("key %s: %w", item.Key(), err)
			}
		}
		return nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, apperrors.DataIntegrityf("generation %d: %v", gen, err)
	}
	if !hasManifest {
		return nil, apperrors.DataIntegrityf("generation %d has no manifest", gen)
	}
	set, err := assemble(manifest, meta, iw, gw, pw)
	if err != nil {
		return nil, err
	}
	s.logger.Info("generation loaded", "generation", gen, "documents", set.Corpus.Len())
	return set, nil
}
