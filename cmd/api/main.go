package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bookcatalog/internal/app"
	"bookcatalog/internal/config"
	"bookcatalog/internal/platform/logging"
)

func main() {
	cfg, err := config.Load(".")
	if err != nil {
		logging.Init(os.Stderr, "human", "info").Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	logger := logging.Init(os.Stdout, cfg.Log.Format, cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to start", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	httpServer := &http.Server{
		Addr:         cfg.App.Addr,
		Handler:      newRouter(ctx, a),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 2 * cfg.OpenLibrary.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("Starting server", "addr", cfg.App.Addr, "db_driver", cfg.DB.Driver, "cache_driver", cfg.Cache.Driver)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped")
}
