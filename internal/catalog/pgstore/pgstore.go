// Package pgstore keeps the catalog in PostgreSQL. Insertion order is
// preserved by a serial column so List returns the canonical corpus order.
package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/document"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/pkg/postgres"
)

const schema = `
CREATE TABLE IF NOT EXISTS books (
	seq         BIGSERIAL,
	book_id     BIGINT PRIMARY KEY,
	title       TEXT NOT NULL,
	locator     TEXT NOT NULL,
	word_count  INTEGER NOT NULL,
	languages   TEXT[] NOT NULL DEFAULT '{}',
	authors     TEXT[] NOT NULL DEFAULT '{}',
	summary     TEXT,
	cover       TEXT,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_books_seq ON books (seq);
`

const insertBook = `
INSERT INTO books (book_id, title, locator, word_count, languages, authors, summary, cover)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (book_id) DO NOTHING`

type Store struct {
	db     *postgres.Client
	logger *slog.Logger
}

func New(db *postgres.Client) *Store {
	return &Store{db: db, logger: slog.Default().With("component", "catalog-pgstore")}
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating books table: %w", err)
	}
	return nil
}

func (s *Store) List(ctx context.Context) ([]document.Metadata, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT book_id, title, locator, word_count, languages, authors, summary, cover
		FROM books ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("querying books: %w", err)
	}
	defer rows.Close()

	var docs []document.Metadata
	for rows.Next() {
		var (
			m       document.Metadata
			summary sql.NullString
			cover   sql.NullString
		)
		if err := rows.Scan(&m.ID, &m.Title, &m.Locator, &m.WordCount,
			pq.Array(&m.Languages), pq.Array(&m.Authors), &summary, &cover); err != nil {
			return nil, fmt.Errorf("scanning book: %w", err)
		}
		m.Summary = summary.String
		m.Cover = cover.String
		docs = append(docs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating books: %w", err)
	}
	return docs, nil
}

func (s *Store) Append(ctx context.Context, m document.Metadata) error {
	if err := catalog.Validate(&m); err != nil {
		return err
	}
	res, err := s.db.DB.ExecContext(ctx, insertBook, args(m)...)
	if err != nil {
		return fmt.Errorf("inserting book %d: %w", m.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %d", catalog.ErrDuplicate, m.ID)
	}
	return nil
}

// Import inserts docs in one transaction, in order, skipping ids already
// present. It returns how many rows were added.
func (s *Store) Import(ctx context.Context, docs []document.Metadata) (int, error) {
	added := 0
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, insertBook)
		if err != nil {
			return fmt.Errorf("preparing insert: %w", err)
		}
		defer stmt.Close()
		for _, m := range docs {
			if err := catalog.Validate(&m); err != nil {
				return fmt.Errorf("book %d: %w", m.ID, err)
			}
			res, err := stmt.ExecContext(ctx, args(m)...)
			if err != nil {
				return fmt.Errorf("inserting book %d: %w", m.ID, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			added += int(n)
		}
		return nil
	})
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			s.logger.Error("catalog import failed", "code", pqErr.Code, "detail", pqErr.Detail)
		}
		return 0, err
	}
	return added, nil
}

func args(m document.Metadata) []any {
	return []any{
		int64(m.ID), m.Title, m.Locator, m.WordCount,
		pq.Array(nonNil(m.Languages)), pq.Array(nonNil(m.Authors)),
		nullableString(m.Summary), nullableString(m.Cover),
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// nullableString treats the empty string as NULL.
func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
