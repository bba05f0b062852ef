// Package app builds the render service's components from a loaded Config.
package app

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"cardrender/internal/browser"
	"cardrender/internal/config"
	"cardrender/internal/pipeline"
	"cardrender/internal/pkg/errors"
	"cardrender/internal/pkg/logger"
	"cardrender/internal/pkg/shutdown"
	"cardrender/internal/ports"
	"cardrender/internal/publisher"
	"cardrender/internal/render"
	"cardrender/internal/repositories"
	"cardrender/internal/resolver"
	"cardrender/internal/storage"
)

type cleanup struct {
	name string
	fn   func(ctx context.Context) error
}

// App holds the wired components. Pool and Ledger are nil without a database URL.
type App struct {
	Config     *config.Config
	Log        *logger.Logger
	Templates  *resolver.Local
	Resolver   *resolver.Resolver
	Renderer   *render.Renderer
	Rasterizer *browser.Rasterizer
	Storage    ports.StorageProvider
	Publisher  *publisher.Publisher
	Pool       *pgxpool.Pool
	Ledger     *repositories.RenderRepository
	Pipeline   *pipeline.Pipeline

	cleanups []cleanup
}

// Build wires every component. On error, whatever was already opened is closed.
func Build(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	if log == nil {
		log = logger.NewNop()
	}
	a := &App{Config: cfg, Log: log}

	a.Templates, a.Resolver = NewResolver(cfg, log)
	a.Renderer = render.New(nil)

	rast, closeBrowser, err := NewRasterizer(cfg, log)
	if err != nil {
		return nil, err
	}
	a.Rasterizer = rast
	a.onClose("browser", func(context.Context) error { return closeBrowser() })

	log.Info("initializing storage provider")
	a.Storage, err = storage.NewProvider(cfg)
	if err != nil {
		a.Close(ctx)
		return nil, errors.WrapWithCode(err, errors.CodeValidation, "app.storage", "initialize storage provider")
	}
	log.Info("storage provider initialized", "provider", a.Storage.Provider())
	a.Publisher = publisher.New(a.Storage, cfg.PublicBaseURL(), log)

	var ledger pipeline.Ledger
	if cfg.Database.URL != "" {
		if err := a.openLedger(ctx); err != nil {
			a.Close(ctx)
			return nil, err
		}
		ledger = a.Ledger
	}

	a.Pipeline = pipeline.New(pipeline.Deps{
		Resolver:   a.Resolver,
		Renderer:   a.Renderer,
		Rasterizer: a.Rasterizer,
		Publisher:  a.Publisher,
		Ledger:     ledger,
		Folder:     cfg.Storage.Folder,
		Log:        log,
	})
	return a, nil
}

func (a *App) openLedger(ctx context.Context) error {
	log := a.Log

	log.Info("connecting to PostgreSQL")
	pool, err := pgxpool.New(ctx, a.Config.Database.URL)
	if err != nil {
		return errors.Wrap(err, "app.ledger", "connect to PostgreSQL")
	}
	a.onClose("postgres", func(context.Context) error {
		pool.Close()
		return nil
	})

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		return errors.Wrap(err, "app.ledger", "ping PostgreSQL")
	}
	log.Info("PostgreSQL connected")

	a.Pool = pool
	a.Ledger = repositories.NewRenderRepository(pool)
	if err := a.Ledger.EnsureSchema(ctx); err != nil {
		// Renders still publish; GET /renders reports the table as unavailable.
		log.LogError(ctx, "render ledger schema setup failed", err)
	}
	return nil
}

// NewResolver returns the local template directory and a resolver that
// tries it before the remote host. Explicit template URLs are always allowed.
func NewResolver(cfg *config.Config, log *logger.Logger) (*resolver.Local, *resolver.Resolver) {
	local := resolver.NewLocal(cfg.Template.Dir)
	remote := resolver.NewRemote(resolver.RemoteOptions{
		BaseURL:   cfg.Template.BaseURL,
		CacheBust: cfg.Template.CacheBust,
		Timeout:   cfg.Template.FetchTimeout,
		Retries:   cfg.Template.FetchRetries,
	})

	strategies := []resolver.Strategy{local}
	if cfg.Template.BaseURL != "" {
		strategies = append(strategies, remote)
	}

	return local, resolver.New(resolver.Deps{
		Log:        log,
		Strategies: strategies,
		Fetcher:    remote,
	})
}

// NewRasterizer builds the Chrome launcher for cfg.Browser.Mode. The
// returned func releases the shared browser, if any.
func NewRasterizer(cfg *config.Config, log *logger.Logger) (*browser.Rasterizer, func() error, error) {
	opt := browser.ChromeOptions{
		ExecPath:          cfg.Browser.ExecutablePath,
		NoSandbox:         cfg.Browser.NoSandbox,
		DeviceScaleFactor: cfg.Browser.DeviceScaleFactor,
		Idle:              cfg.Render.Idle,
	}

	var (
		launcher browser.Launcher
		closeFn  = func() error { return nil }
	)
	switch cfg.Browser.Mode {
	case config.BrowserShared:
		shared, err := browser.NewShared(opt)
		if err != nil {
			return nil, nil, errors.WrapWithCode(err, errors.CodeBrowserLaunch, "app.browser", "start shared browser")
		}
		launcher, closeFn = shared, shared.Close
	default:
		launcher = browser.NewIsolated(opt)
	}

	log.Info("browser configured",
		"mode", cfg.Browser.Mode,
		"max_concurrency", cfg.Browser.MaxConcurrency,
		"device_scale_factor", cfg.Browser.DeviceScaleFactor,
	)
	return browser.New(launcher, browser.Options{
		Timeout:        cfg.Render.Timeout,
		MaxConcurrency: cfg.Browser.MaxConcurrency,
	}, log), closeFn, nil
}

func (a *App) onClose(name string, fn func(ctx context.Context) error) {
	a.cleanups = append(a.cleanups, cleanup{name: name, fn: fn})
}

// RegisterShutdown hands the App's cleanups to m in opening order, so
// LIFO shutdown closes them newest first.
func (a *App) RegisterShutdown(m *shutdown.Manager) {
	for _, c := range a.cleanups {
		m.Register(c.name, c.fn)
	}
	a.cleanups = nil
}

// Close runs the cleanups directly, newest first. Used when Build fails
// and by the CLI.
func (a *App) Close(ctx context.Context) {
	for i := len(a.cleanups) - 1; i >= 0; i-- {
		c := a.cleanups[i]
		a.Log.LogError(ctx, "cleanup failed", c.fn(ctx), "name", c.name)
	}
	a.cleanups = nil
}
