package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/c360studio/semdigest/record"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS articles (
	id         INTEGER PRIMARY KEY,
	title      TEXT NOT NULL,
	url        TEXT NOT NULL,
	indexed_at TEXT NOT NULL,
	data       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_articles_indexed_at ON articles(indexed_at);
`

const upsertArticle = `
INSERT INTO articles (id, title, url, indexed_at, data) VALUES (?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	title = excluded.title,
	url = excluded.url,
	indexed_at = excluded.indexed_at,
	data = excluded.data`

// SQLiteStore stores records in a SQLite file. The full record is kept as
// JSON next to a few queryable columns.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens or creates the database at path, creating the parent
// directory if needed. ":memory:" opens a private in-memory database.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("sqlite index requires a path")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create index dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer; also keeps ":memory:" to a single database.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Persist implements Store.
func (s *SQLiteStore) Persist(ctx context.Context, rec *record.Record) error {
	stamp(rec, s.now)
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	_, err = s.db.ExecContext(ctx, upsertArticle,
		rec.ID, rec.Title, rec.URL, rec.IndexedAt.Format(time.RFC3339Nano), string(data))
	if err != nil {
		return fmt.Errorf("upsert article %d: %w", rec.ID, err)
	}
	return nil
}

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, id int64) (*record.Record, error) {
	var data string
	err := s.db.QueryRowContext(ctx, "SELECT data FROM articles WHERE id = ?", id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get article %d: %w", id, err)
	}

	var rec record.Record
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("unmarshal article %d: %w", id, err)
	}
	return &rec, nil
}

// List implements Store.
func (s *SQLiteStore) List(ctx context.Context) ([]*record.Record, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT data FROM articles ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}
	defer rows.Close()

	recs := []*record.Record{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var rec record.Record
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			return nil, fmt.Errorf("unmarshal article: %w", err)
		}
		recs = append(recs, &rec)
	}
	return recs, rows.Err()
}

// Close implements Store.
func (s *SQLiteStore) Close() error { return s.db.Close() }
