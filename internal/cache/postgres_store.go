package cache

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS response_cache (
	url TEXT NOT NULL UNIQUE,
	response TEXT NOT NULL,
	query_date TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_response_cache_query_date ON response_cache(query_date);`

type PostgresStore struct {
	db      *pgxpool.Pool
	timeout time.Duration
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db, timeout: 3 * time.Second}
}

func (s *PostgresStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	_, err := s.db.Exec(ctx, postgresSchema)
	return err
}

func (s *PostgresStore) Get(ctx context.Context, url string) (Entry, bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	const query = `SELECT url, response, query_date FROM response_cache WHERE url = $1`
	var e Entry
	err := s.db.QueryRow(ctx, query, url).Scan(&e.URL, &e.Response, &e.FetchedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	return e, true, nil
}

func (s *PostgresStore) Insert(ctx context.Context, e Entry) (bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	const query = `
		INSERT INTO response_cache (url, response, query_date)
		VALUES ($1, $2, $3)
		ON CONFLICT (url) DO NOTHING`
	tag, err := s.db.Exec(ctx, query, e.URL, e.Response, e.FetchedAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) Delete(ctx context.Context, url string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	_, err := s.db.Exec(ctx, `DELETE FROM response_cache WHERE url = $1`, url)
	return err
}

func (s *PostgresStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	tag, err := s.db.Exec(ctx, `DELETE FROM response_cache WHERE query_date < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
