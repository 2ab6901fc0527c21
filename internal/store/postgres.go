package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bookcatalog/internal/catalog"
	apperrors "bookcatalog/internal/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SQLSTATE codes that mean another transaction won a race.
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgUniqueViolation      = "23505"
)

// Postgres runs every unit of work in a SERIALIZABLE transaction. Conflicts
// are reported, never retried.
type Postgres struct {
	db      *pgxpool.Pool
	timeout time.Duration
}

func NewPostgres(db *pgxpool.Pool, timeout time.Duration) *Postgres {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Postgres{db: db, timeout: timeout}
}

func (s *Postgres) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

func (s *Postgres) WithinTx(ctx context.Context, fn catalog.TxFunc) (err error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if err = fn(ctx, &pgRepo{q: tx}); err != nil {
		return classify(err)
	}
	if err = tx.Commit(ctx); err != nil {
		return classify(fmt.Errorf("commit tx: %w", err))
	}
	return nil
}

func (s *Postgres) GetBook(ctx context.Context, id string) (catalog.Book, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return (&pgRepo{q: s.db}).GetBook(ctx, id)
}

// classify turns lost races into StorageConflictError and leaves every
// other error untouched.
func classify(err error) error {
	if apperrors.IsStorageConflictError(err) {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgSerializationFailure, pgDeadlockDetected, pgUniqueViolation:
			return apperrors.NewStorageConflictError(err)
		}
	}
	return err
}
