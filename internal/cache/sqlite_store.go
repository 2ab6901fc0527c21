package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// query_date is stored as unix nanoseconds so range comparisons stay numeric.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS response_cache (
	url TEXT PRIMARY KEY NOT NULL,
	response TEXT NOT NULL,
	query_date INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_response_cache_query_date ON response_cache(query_date);
`

// SQLiteStore is a file backed cache store for single node deployments and
// the operator CLI.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache database: %w", err)
	}
	// SQLite allows one writer; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping cache database: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteSchema)
	return err
}

func (s *SQLiteStore) Get(ctx context.Context, url string) (Entry, bool, error) {
	var (
		e       Entry
		fetched int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT url, response, query_date FROM response_cache WHERE url = ?`, url,
	).Scan(&e.URL, &e.Response, &fetched)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	e.FetchedAt = time.Unix(0, fetched)
	return e, true, nil
}

func (s *SQLiteStore) Insert(ctx context.Context, e Entry) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO response_cache (url, response, query_date) VALUES (?, ?, ?)`,
		e.URL, e.Response, e.FetchedAt.UnixNano(),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, url string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM response_cache WHERE url = ?`, url)
	return err
}

func (s *SQLiteStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM response_cache WHERE query_date < ?`, cutoff.UnixNano())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
