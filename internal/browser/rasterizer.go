// Package browser rasterizes rendered HTML into PNG bytes with headless Chrome.
package browser

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"

	"cardrender/internal/pkg/errors"
	"cardrender/internal/pkg/logger"
)

// Session is one page ready to capture. Close releases the page and, for
// isolated sessions, the browser process behind it.
type Session interface {
	Capture(ctx context.Context, html string, width, height int) ([]byte, error)
	Close() error
}

// Launcher opens sessions.
type Launcher interface {
	Launch(ctx context.Context) (Session, error)
}

type Options struct {
	// Timeout bounds launch plus capture for one request.
	Timeout time.Duration
	// MaxConcurrency caps simultaneous sessions.
	MaxConcurrency int64
}

type Rasterizer struct {
	launcher Launcher
	sem      *semaphore.Weighted
	timeout  time.Duration
	log      *logger.Logger
}

func New(l Launcher, opt Options, log *logger.Logger) *Rasterizer {
	if opt.MaxConcurrency < 1 {
		opt.MaxConcurrency = 1
	}
	if opt.Timeout <= 0 {
		opt.Timeout = 30 * time.Second
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Rasterizer{
		launcher: l,
		sem:      semaphore.NewWeighted(opt.MaxConcurrency),
		timeout:  opt.Timeout,
		log:      log.WithComponent("browser"),
	}
}

// Rasterize captures html at width x height CSS pixels. The session is
// closed before any error is returned.
func (r *Rasterizer) Rasterize(ctx context.Context, html string, width, height int) ([]byte, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.BadRequest("width", "width and height must be positive")
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	log := r.log.FromContext(ctx)
	start := time.Now()

	if err := r.sem.Acquire(ctx, 1); err != nil {
		return nil, classify(ctx, err, errors.CodeRenderTimeout, "wait for browser slot")
	}
	defer r.sem.Release(1)

	sess, err := r.launcher.Launch(ctx)
	if err != nil {
		if errors.IsCode(err, errors.CodeBrowserLaunch) {
			return nil, err
		}
		return nil, classify(ctx, err, errors.CodeBrowserLaunch, "launch browser")
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			log.Warn("browser session close failed", "error", cerr.Error())
		}
	}()

	png, err := sess.Capture(ctx, html, width, height)
	if err != nil {
		return nil, classify(ctx, err, errors.CodeRasterize, "capture screenshot")
	}

	log.Debug("page captured",
		"width", width,
		"height", height,
		"bytes", len(png),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return png, nil
}

// classify maps deadline expiry to RenderTimeout and everything else to code.
func classify(ctx context.Context, err error, code errors.Code, msg string) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errors.WrapWithCode(err, errors.CodeRenderTimeout, "browser.rasterize", "render timed out: "+msg)
	}
	return errors.WrapWithCode(err, code, "browser.rasterize", msg)
}
