package cache

import (
	"context"
	"log/slog"
	"time"

	apperrors "bookcatalog/internal/errors"
)

// DefaultTTL is how long a cached provider response stays fresh.
const DefaultTTL = 720 * time.Hour

// Entry is one cached provider response, keyed by its canonical URL.
type Entry struct {
	URL       string
	Response  string
	FetchedAt time.Time
}

// Store is the durable backing for the response cache.
type Store interface {
	EnsureSchema(ctx context.Context) error
	Get(ctx context.Context, url string) (Entry, bool, error)
	// Insert stores e unless an entry for e.URL already exists. It reports
	// whether the row was written.
	Insert(ctx context.Context, e Entry) (bool, error)
	Delete(ctx context.Context, url string) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Cache is a URL keyed response cache with an optional expiry window.
// A zero TTL disables expiry.
type Cache struct {
	store  Store
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

type Option func(*Cache)

// WithClock overrides the time source used for stamping and expiry.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

// New prepares the backing table and runs a single expiry sweep.
func New(ctx context.Context, store Store, ttl time.Duration, opts ...Option) (*Cache, error) {
	c := &Cache{
		store:  store,
		ttl:    ttl,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if err := store.EnsureSchema(ctx); err != nil {
		return nil, apperrors.NewCacheError("ensure schema", err)
	}

	removed, err := c.Sweep(ctx)
	if err != nil {
		return nil, err
	}
	if removed > 0 {
		c.logger.Info("Swept expired cache entries", "removed", removed, "ttl", ttl)
	}
	return c, nil
}

// Disabled returns a cache that never stores anything.
func Disabled() *Cache {
	return &Cache{store: nopStore{}, now: time.Now, logger: slog.Default()}
}

// Get returns the cached body for url when present and fresh.
func (c *Cache) Get(ctx context.Context, url string) (string, bool, error) {
	e, ok, err := c.store.Get(ctx, url)
	if err != nil {
		return "", false, apperrors.NewCacheError("get", err)
	}
	if !ok {
		return "", false, nil
	}
	if c.expired(e) {
		return "", false, nil
	}
	return e.Response, true, nil
}

// Put records body for url unless a fresh entry already exists. The first
// writer wins and later writes are silently dropped. An expired entry is
// removed first so the URL can be cached again before the next sweep.
func (c *Cache) Put(ctx context.Context, url, body string) error {
	if c.ttl > 0 {
		e, ok, err := c.store.Get(ctx, url)
		if err != nil {
			return apperrors.NewCacheError("put", err)
		}
		if ok && c.expired(e) {
			if err := c.store.Delete(ctx, url); err != nil {
				return apperrors.NewCacheError("put", err)
			}
		}
	}

	stored, err := c.store.Insert(ctx, Entry{URL: url, Response: body, FetchedAt: c.now()})
	if err != nil {
		return apperrors.NewCacheError("put", err)
	}
	if !stored {
		c.logger.Debug("Cache entry already present", "url", url)
	}
	return nil
}

// Invalidate drops the entry for url.
func (c *Cache) Invalidate(ctx context.Context, url string) error {
	if err := c.store.Delete(ctx, url); err != nil {
		return apperrors.NewCacheError("invalidate", err)
	}
	return nil
}

// Sweep deletes every entry older than the expiry window.
func (c *Cache) Sweep(ctx context.Context) (int64, error) {
	if c.ttl <= 0 {
		return 0, nil
	}
	n, err := c.store.DeleteOlderThan(ctx, c.now().Add(-c.ttl))
	if err != nil {
		return 0, apperrors.NewCacheError("sweep", err)
	}
	return n, nil
}

func (c *Cache) TTL() time.Duration {
	return c.ttl
}

func (c *Cache) expired(e Entry) bool {
	if c.ttl <= 0 {
		return false
	}
	return c.now().Sub(e.FetchedAt) > c.ttl
}

type nopStore struct{}

func (nopStore) EnsureSchema(context.Context) error { return nil }

func (nopStore) Get(context.Context, string) (Entry, bool, error) { return Entry{}, false, nil }

func (nopStore) Insert(context.Context, Entry) (bool, error) { return false, nil }

func (nopStore) Delete(context.Context, string) error { return nil }

func (nopStore) DeleteOlderThan(context.Context, time.Time) (int64, error) { return 0, nil }
