package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"bookcatalog/internal/app"
	"bookcatalog/internal/config"
	"bookcatalog/internal/platform/logging"

	"github.com/alecthomas/kong"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

type CLI struct {
	Dir string `help:"Migrations directory, overrides MIGRATIONS_DIR." type:"path"`

	Up     UpCmd     `cmd:"" default:"1" help:"Apply all pending migrations."`
	Down   DownCmd   `cmd:"" help:"Roll back the latest migration."`
	Status StatusCmd `cmd:"" help:"Print migration status."`
	Create CreateCmd `cmd:"" help:"Create a new SQL migration."`
}

type env struct {
	cfg    *config.Config
	dir    string
	logger *slog.Logger
}

type gooseFunc func(db *sql.DB, dir string, opts ...goose.OptionsFunc) error

type UpCmd struct{}

func (c *UpCmd) Run(e *env) error {
	return e.migrate(goose.Up, "Migrations applied")
}

type DownCmd struct{}

func (c *DownCmd) Run(e *env) error {
	return e.migrate(goose.Down, "Migration rolled back")
}

type StatusCmd struct{}

func (c *StatusCmd) Run(e *env) error {
	return e.migrate(goose.Status, "")
}

type CreateCmd struct {
	Name string `arg:"" help:"Migration name."`
}

func (c *CreateCmd) Run(e *env) error {
	if err := goose.Create(nil, e.dir, c.Name, "sql"); err != nil {
		return fmt.Errorf("create migration: %w", err)
	}
	e.logger.Info("Migration created", "name", c.Name, "dir", e.dir)
	return nil
}

func (e *env) migrate(fn gooseFunc, done string) error {
	ctx := context.Background()
	pool, err := app.OpenDB(ctx, e.cfg.DB.DSN, e.logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	goose.SetBaseFS(nil)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	if err := fn(db, e.dir); err != nil {
		return fmt.Errorf("migrate %s: %w", e.dir, err)
	}
	if done != "" {
		e.logger.Info(done, "dir", e.dir)
	}
	return nil
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("migrate"),
		kong.Description("Manage the catalogue database schema."),
		kong.UsageOnError(),
	)

	cfg, err := config.Load(".")
	if err != nil {
		logging.Init(os.Stderr, "human", "info").Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	logger := logging.Init(os.Stdout, cfg.Log.Format, cfg.Log.Level)

	dir := cfg.Migrations.Dir
	if cli.Dir != "" {
		dir = cli.Dir
	}

	if err := ctx.Run(&env{cfg: cfg, dir: dir, logger: logger}); err != nil {
		logger.Error("Migration failed", "error", err)
		os.Exit(1)
	}
}
