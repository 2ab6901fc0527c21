package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"bookcatalog/internal/app"
	"bookcatalog/internal/auth"
	"bookcatalog/internal/config"
	"bookcatalog/internal/platform/logging"
	"bookcatalog/internal/reconcile"

	"github.com/alecthomas/kong"
)

type CLI struct {
	ConfigDir string `help:"Directory holding config.yaml." default:"." type:"path"`

	Import  ImportCmd  `cmd:"" help:"Catalogue a book from Open Library."`
	Refresh RefreshCmd `cmd:"" help:"Re-apply Open Library data to a catalogued book."`
	Search  SearchCmd  `cmd:"" help:"Search Open Library works by title."`
	Cache   CacheCmd   `cmd:"" help:"Response cache maintenance."`
	Token   TokenCmd   `cmd:"" help:"Mint a bearer token for the write routes."`
}

// runtime is bound into every command's Run method.
type runtime struct {
	ctx    context.Context
	cfg    *config.Config
	out    io.Writer
	open   func(ctx context.Context, cfg *config.Config) (*app.App, error)
	appRef *app.App
}

func (r *runtime) app() (*app.App, error) {
	if r.appRef != nil {
		return r.appRef, nil
	}
	a, err := r.open(r.ctx, r.cfg)
	if err != nil {
		return nil, err
	}
	r.appRef = a
	return a, nil
}

func (r *runtime) close() {
	if r.appRef != nil {
		r.appRef.Close()
	}
}

func (r *runtime) print(v any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type ImportCmd struct {
	ISBN      string `help:"ISBN-10 or ISBN-13." xor:"id" required:""`
	Edition   string `name:"olid" help:"Open Library edition id, e.g. OL26399409M." xor:"id" required:""`
	Collected bool   `help:"Mark the book as collected."`
}

func (c *ImportCmd) Run(rt *runtime) error {
	a, err := rt.app()
	if err != nil {
		return err
	}
	book, err := a.Reconciler.Import(rt.ctx, reconcile.ImportRequest{
		ISBN:          c.ISBN,
		EditionID:     c.Edition,
		MarkCollected: c.Collected,
	})
	if err != nil {
		return err
	}
	return rt.print(book)
}

type RefreshCmd struct {
	ID string `arg:"" help:"Book id."`
}

func (c *RefreshCmd) Run(rt *runtime) error {
	a, err := rt.app()
	if err != nil {
		return err
	}
	book, err := a.Reconciler.Refresh(rt.ctx, c.ID)
	if err != nil {
		return err
	}
	return rt.print(book)
}

type SearchCmd struct {
	Title string `arg:"" help:"Title to search for."`
}

func (c *SearchCmd) Run(rt *runtime) error {
	a, err := rt.app()
	if err != nil {
		return err
	}
	works, err := a.Reconciler.Search(rt.ctx, c.Title)
	if err != nil {
		return err
	}
	return rt.print(works)
}

type CacheCmd struct {
	Sweep CacheSweepCmd `cmd:"" help:"Delete expired cache entries."`
}

type CacheSweepCmd struct{}

func (c *CacheSweepCmd) Run(rt *runtime) error {
	a, err := rt.app()
	if err != nil {
		return err
	}
	removed, err := a.Cache.Sweep(rt.ctx)
	if err != nil {
		return err
	}
	return rt.print(map[string]any{"removed": removed, "ttl": a.Cache.TTL().String()})
}

type TokenCmd struct {
	Subject string        `help:"Operator id." default:"catalogctl"`
	Role    string        `help:"Token role." enum:"EDITOR,ADMIN" default:"EDITOR"`
	TTL     time.Duration `help:"Token lifetime." default:"24h"`
}

func (c *TokenCmd) Run(rt *runtime) error {
	if rt.cfg.JWT.Secret == "" {
		return errors.New("JWT_SECRET is not set")
	}
	token, jti, err := auth.GenerateToken(rt.cfg.JWT.Secret, c.Subject, c.Role, c.TTL)
	if err != nil {
		return fmt.Errorf("sign token: %w", err)
	}
	return rt.print(map[string]string{"token": token, "jti": jti})
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("catalogctl"),
		kong.Description("Operate the book catalogue without the HTTP API."),
		kong.UsageOnError(),
	)

	cfg, err := config.Load(cli.ConfigDir)
	if err != nil {
		logging.Init(os.Stderr, "human", "info").Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	logger := logging.Init(os.Stderr, cfg.Log.Format, cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rt := &runtime{
		ctx: ctx,
		cfg: cfg,
		out: os.Stdout,
		open: func(ctx context.Context, cfg *config.Config) (*app.App, error) {
			return app.New(ctx, cfg, logger)
		},
	}
	err = kctx.Run(rt)
	rt.close()
	if err != nil {
		logger.Error("Command failed", "command", kctx.Command(), "error", err)
		os.Exit(1)
	}
}
