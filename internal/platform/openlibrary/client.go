package openlibrary

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"bookcatalog/internal/cache"
	apperrors "bookcatalog/internal/errors"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL        = "https://openlibrary.org"
	DefaultTimeout        = 30 * time.Second
	DefaultSearchPageSize = 100
	DefaultMaxSearchPages = 20

	maxErrorPayload = 64 << 10
)

type Config struct {
	BaseURL   string
	UserAgent string
	// Timeout bounds each HTTP call, connect through body read.
	Timeout           time.Duration
	RequestsPerSecond float64
	SearchPageSize    int
	// MaxSearchPages caps title search pagination when the provider keeps
	// reporting more results than it returns.
	MaxSearchPages int
}

// Client talks to the Open Library JSON API. Responses are served from the
// response cache when possible. Failed calls are never retried.
type Client struct {
	httpClient     *http.Client
	userAgent      string
	baseURL        string
	limiter        *rate.Limiter
	cache          *cache.Cache
	inflight       singleflight.Group
	logger         *slog.Logger
	searchPageSize int
	maxSearchPages int
}

func NewClient(cfg Config, responses *cache.Cache, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "bookcatalog/1.0"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.SearchPageSize <= 0 {
		cfg.SearchPageSize = DefaultSearchPageSize
	}
	if cfg.MaxSearchPages <= 0 {
		cfg.MaxSearchPages = DefaultMaxSearchPages
	}
	if responses == nil {
		responses = cache.Disabled()
	}
	if logger == nil {
		logger = slog.Default()
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		userAgent:      cfg.UserAgent,
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		limiter:        rate.NewLimiter(limit, 1),
		cache:          responses,
		logger:         logger,
		searchPageSize: cfg.SearchPageSize,
		maxSearchPages: cfg.MaxSearchPages,
	}
}

func (c *Client) FetchEdition(ctx context.Context, editionID string) (Edition, error) {
	id := trimKey(editionID, "/books/")
	return fetch[Edition](ctx, c, c.canonicalURL("/books/"+url.PathEscape(id)+".json", nil))
}

func (c *Client) FetchEditionByISBN(ctx context.Context, isbn string) (Edition, error) {
	return fetch[Edition](ctx, c, c.canonicalURL("/isbn/"+url.PathEscape(isbn)+".json", nil))
}

func (c *Client) FetchWork(ctx context.Context, workID string) (Work, error) {
	id := trimKey(workID, "/works/")
	return fetch[Work](ctx, c, c.canonicalURL("/works/"+url.PathEscape(id)+".json", nil))
}

func (c *Client) FetchAuthor(ctx context.Context, authorID string) (Author, error) {
	id := trimKey(authorID, "/authors/")
	return fetch[Author](ctx, c, c.canonicalURL("/authors/"+url.PathEscape(id)+".json", nil))
}

// SearchByTitle collects every work matching title across result pages.
func (c *Client) SearchByTitle(ctx context.Context, title string) ([]Work, error) {
	var works []Work
	for page := 0; page < c.maxSearchPages; page++ {
		q := url.Values{}
		q.Set("title", title)
		q.Set("limit", strconv.Itoa(c.searchPageSize))
		q.Set("offset", strconv.Itoa(len(works)))

		res, err := fetch[SearchResponse](ctx, c, c.canonicalURL("/search.json", q))
		if err != nil {
			return nil, err
		}
		for _, doc := range res.Docs {
			works = append(works, doc.Work())
		}

		if len(res.Docs) == 0 || len(res.Docs) < c.searchPageSize || len(works) >= res.NumFound {
			return works, nil
		}
	}

	c.logger.Warn("Search page limit reached",
		"title", title,
		"pages", c.maxSearchPages,
		"collected", len(works),
	)
	return works, nil
}

// canonicalURL keeps cache keys stable: url.Values.Encode sorts by key.
func (c *Client) canonicalURL(path string, query url.Values) string {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func fetch[T any](ctx context.Context, c *Client, rawURL string) (T, error) {
	var zero T

	body, hit, err := c.cache.Get(ctx, rawURL)
	if err != nil {
		c.logger.Warn("Cache lookup failed, fetching live", "url", rawURL, "error", err)
	}
	if hit {
		var cached T
		if err := json.Unmarshal([]byte(body), &cached); err == nil {
			return cached, nil
		}
		c.logger.Warn("Discarding undecodable cache entry", "url", rawURL)
		if err := c.cache.Invalidate(ctx, rawURL); err != nil {
			c.logger.Warn("Cache invalidate failed", "url", rawURL, "error", err)
		}
	}

	raw, err := c.get(ctx, rawURL)
	if err != nil {
		return zero, err
	}

	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return zero, apperrors.NewServiceError(rawURL, fmt.Errorf("decode response: %w", err))
	}

	if err := c.cache.Put(ctx, rawURL, string(raw)); err != nil {
		c.logger.Warn("Failed to cache response", "url", rawURL, "error", err)
	}
	return out, nil
}

// get performs the live request. Identical concurrent requests share one
// round trip, which runs detached from any single caller's cancellation and
// is bounded by the HTTP client timeout. Each caller still stops waiting when
// its own context ends.
func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	shared := context.WithoutCancel(ctx)
	ch := c.inflight.DoChan(rawURL, func() (interface{}, error) {
		return c.do(shared, rawURL)
	})

	select {
	case <-ctx.Done():
		return nil, apperrors.NewServiceError(rawURL, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	}
}

func (c *Client) do(ctx context.Context, rawURL string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, apperrors.NewServiceError(rawURL, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, apperrors.NewServiceError(rawURL, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.NewServiceError(rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorPayload))
		c.logger.Warn("Open Library request failed", "url", rawURL, "status", resp.StatusCode)
		return nil, apperrors.NewServiceStatusError(rawURL, resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.NewServiceError(rawURL, err)
	}
	c.logger.Debug("Open Library request", "url", rawURL, "status", resp.StatusCode, "duration", time.Since(start))
	return body, nil
}
