package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"bookcatalog/internal/book"
	"bookcatalog/internal/cache"
	"bookcatalog/internal/catalog"
	"bookcatalog/internal/config"
	"bookcatalog/internal/platform/openlibrary"
	"bookcatalog/internal/reconcile"
	"bookcatalog/internal/store"

	"github.com/jackc/pgx/v5/pgxpool"
)

// CatalogStore is what both the engine and the read side need from storage.
type CatalogStore interface {
	catalog.Store
	book.Repository
}

// App is the wired object graph shared by the api server and catalogctl.
type App struct {
	Config     *config.Config
	Logger     *slog.Logger
	DB         *pgxpool.Pool // nil with DB_DRIVER=memory
	Store      CatalogStore
	Cache      *cache.Cache
	Client     *openlibrary.Client
	Reconciler *reconcile.Service
	Books      *book.Service

	closers []func()
}

// New opens storage, the response cache and the Open Library client.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}

	switch cfg.DB.Driver {
	case "postgres":
		pool, err := OpenDB(ctx, cfg.DB.DSN, logger)
		if err != nil {
			return nil, err
		}
		a.DB = pool
		a.closers = append(a.closers, pool.Close)
		a.Store = store.NewPostgres(pool, cfg.DB.Timeout)
	case "memory":
		logger.Warn("Using in-memory catalogue, data is lost on exit")
		a.Store = store.NewMemory()
	default:
		return nil, fmt.Errorf("unknown DB_DRIVER %q", cfg.DB.Driver)
	}

	responses, err := a.openCache(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Cache = responses

	a.Client = openlibrary.NewClient(openlibrary.Config{
		BaseURL:           cfg.OpenLibrary.BaseURL,
		UserAgent:         cfg.OpenLibrary.UserAgent,
		Timeout:           cfg.OpenLibrary.Timeout,
		RequestsPerSecond: cfg.OpenLibrary.RPS,
	}, responses, logger)
	a.Reconciler = reconcile.NewService(a.Client, a.Store, logger)
	a.Books = book.NewService(a.Store)
	return a, nil
}

func (a *App) openCache(ctx context.Context) (*cache.Cache, error) {
	cfg := a.Config.Cache
	opts := []cache.Option{cache.WithLogger(a.Logger)}

	switch cfg.Driver {
	case "none":
		return cache.Disabled(), nil
	case "postgres":
		if a.DB == nil {
			return nil, errors.New("postgres response cache needs a postgres database")
		}
		return cache.New(ctx, cache.NewPostgresStore(a.DB), cfg.TTL, opts...)
	case "sqlite":
		s, err := cache.NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = s.Close() })
		return cache.New(ctx, s, cfg.TTL, opts...)
	default:
		return nil, fmt.Errorf("unknown CACHE_DRIVER %q", cfg.Driver)
	}
}

// Ready reports whether the backing database answers.
func (a *App) Ready(ctx context.Context) error {
	if a.DB == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	return a.DB.Ping(ctx)
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// OpenDB creates a pool and checks the database answers.
func OpenDB(ctx context.Context, dsn string, logger *slog.Logger) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create db pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database (%s): %w", config.RedactDSN(dsn), err)
	}
	logger.Info("Database connection OK", "dsn", config.RedactDSN(dsn))
	return pool, nil
}
