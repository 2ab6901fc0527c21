package main

import (
	"context"
	"net/http"

	"bookcatalog/internal/app"
	"bookcatalog/internal/book"
	"bookcatalog/internal/httpx"
	"bookcatalog/internal/reconcile"
)

const maxBodyBytes = 1 << 20

func newRouter(ctx context.Context, a *app.App) http.Handler {
	cfg := a.Config
	bookHandler := book.NewHTTPHandler(a.Books, a.Logger)
	reconcileHandler := reconcile.NewHTTPHandler(a.Reconciler, a.Logger)
	protect := httpx.AuthMiddleware(cfg.JWT.Secret, a.Logger)

	router := http.NewServeMux()

	router.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := a.Ready(r.Context()); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	router.HandleFunc("GET /v1/books/{id}", bookHandler.Get)
	router.HandleFunc("GET /v1/openlibrary/search", reconcileHandler.Search)
	router.Handle("POST /v1/books/import", protect(http.HandlerFunc(reconcileHandler.Import)))
	router.Handle("POST /v1/books/{id}/refresh", protect(http.HandlerFunc(reconcileHandler.Refresh)))

	limiter := httpx.NewRateLimiter(ctx, cfg.HTTP.RateLimitRPS, cfg.HTTP.RateBurst)

	return httpx.Chain(router,
		httpx.RequestIDMiddleware,
		httpx.AccessLogMiddleware(a.Logger),
		httpx.RecoveryMiddleware(a.Logger),
		httpx.SecurityHeadersMiddleware(cfg.HTTP.EnableHSTS),
		httpx.CORSMiddleware(cfg.HTTP.CORSOrigins),
		limiter.Middleware,
		httpx.RequestSizeLimitMiddleware(maxBodyBytes),
	)
}
