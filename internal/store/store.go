// Package store provides the SQLite-backed ingestion manifest. It records a
// content hash and chunk count per ingested source so that re-running
// ingestion skips unchanged sources and prunes chunks a shrunken source no
// longer produces.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// Entry is the manifest record of one ingested source.
type Entry struct {
	// Source is the file path or URL the chunks came from.
	Source string
	// Collection is the vector store collection the chunks were written to.
	Collection string
	// Hash is the hex SHA-256 of the source content.
	Hash string
	// Chunks is the number of chunks written.
	Chunks int
	// IngestedAt is when the entry was recorded.
	IngestedAt time.Time
}

// Manifest tracks ingested sources. Implementations must be safe for
// concurrent use.
type Manifest interface {
	// Lookup returns the entry for source in collection. ok is false when
	// the source has never been ingested there.
	Lookup(ctx context.Context, collection, source string) (entry Entry, ok bool, err error)
	// Record inserts or replaces the entry for e.Source in e.Collection.
	Record(ctx context.Context, e Entry) error
	// List returns every entry for collection ordered by source.
	List(ctx context.Context, collection string) ([]Entry, error)
	// Close releases any resources held by the manifest.
	Close() error
}

// SQLiteStore is a Manifest backed by a local SQLite database.
type SQLiteStore struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

// DefaultDBPath returns the default path for the manifest database.
// It resolves to ~/.sushi-rag/manifest.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("store: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".sushi-rag")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("store: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "manifest.db"), nil
}

// Open opens (or creates) a SQLiteStore at the given path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*SQLiteStore, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// A single connection keeps ":memory:" databases shared and avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS sources (
    collection   TEXT    NOT NULL,
    source       TEXT    NOT NULL,
    hash         TEXT    NOT NULL,
    chunks       INTEGER NOT NULL CHECK(chunks >= 0),
    ingested_at  INTEGER NOT NULL,  -- Unix timestamp (seconds)
    PRIMARY KEY (collection, source)
);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// Lookup returns the entry for source in collection.
func (s *SQLiteStore) Lookup(ctx context.Context, collection, source string) (Entry, bool, error) {
	const q = `SELECT hash, chunks, ingested_at FROM sources WHERE collection = ? AND source = ?`

	e := Entry{Source: source, Collection: collection}
	var ts int64
	err := s.db.QueryRowContext(ctx, q, collection, source).Scan(&e.Hash, &e.Chunks, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("store: lookup: %w", err)
	}
	e.IngestedAt = time.Unix(ts, 0)
	return e, true, nil
}

// Record inserts or replaces the entry. A zero IngestedAt is set to now.
func (s *SQLiteStore) Record(ctx context.Context, e Entry) error {
	if e.IngestedAt.IsZero() {
		e.IngestedAt = time.Now()
	}
	const q = `
INSERT INTO sources (collection, source, hash, chunks, ingested_at) VALUES (?, ?, ?, ?, ?)
ON CONFLICT (collection, source) DO UPDATE SET
    hash = excluded.hash, chunks = excluded.chunks, ingested_at = excluded.ingested_at`
	if _, err := s.db.ExecContext(ctx, q, e.Collection, e.Source, e.Hash, e.Chunks, e.IngestedAt.Unix()); err != nil {
		return fmt.Errorf("store: record: %w", err)
	}
	return nil
}

// List returns every entry for collection ordered by source.
func (s *SQLiteStore) List(ctx context.Context, collection string) ([]Entry, error) {
	const q = `SELECT source, hash, chunks, ingested_at FROM sources WHERE collection = ? ORDER BY source`

	rows, err := s.db.QueryContext(ctx, q, collection)
	if err != nil {
		return nil, fmt.Errorf("store: list: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e := Entry{Collection: collection}
		var ts int64
		if err := rows.Scan(&e.Source, &e.Hash, &e.Chunks, &ts); err != nil {
			return nil, fmt.Errorf("store: list scan: %w", err)
		}
		e.IngestedAt = time.Unix(ts, 0)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list rows: %w", err)
	}
	return out, nil
}

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}

var _ Manifest = (*SQLiteStore)(nil)
