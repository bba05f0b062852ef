// Package pipeline runs one render request end to end:
// resolve -> render -> rasterize -> publish -> ledger.
package pipeline

import (
	"context"
	"time"

	"cardrender/internal/models"
	"cardrender/internal/pkg/errors"
	"cardrender/internal/pkg/ids"
	"cardrender/internal/pkg/logger"
	"cardrender/internal/publisher"
	"cardrender/internal/resolver"
)

type Resolver interface {
	Resolve(ctx context.Context, id string) (resolver.Source, error)
	ResolveURL(ctx context.Context, rawURL string) (resolver.Source, error)
}

type Renderer interface {
	Render(name, src string, data any) (string, error)
}

type Rasterizer interface {
	Rasterize(ctx context.Context, html string, width, height int) ([]byte, error)
}

type Publisher interface {
	Publish(ctx context.Context, png []byte, key string) (publisher.Result, error)
}

// Ledger records published renders. Optional.
type Ledger interface {
	Record(ctx context.Context, m *models.Render) error
}

type Deps struct {
	Resolver   Resolver
	Renderer   Renderer
	Rasterizer Rasterizer
	Publisher  Publisher
	Ledger     Ledger
	// Folder is the key prefix every image is stored under.
	Folder string
	Log    *logger.Logger
	Now    func() time.Time
}

// Job is one render request after defaults have been applied.
type Job struct {
	Kind           string
	Template       string
	TemplateURL    string
	Data           any
	Width          int
	Height         int
	FilenamePrefix string
}

type Result struct {
	ID       string
	Template string
	Key      string
	URL      string
	Bytes    int64
	Duration time.Duration
}

type Pipeline struct {
	resolver   Resolver
	renderer   Renderer
	rasterizer Rasterizer
	publisher  Publisher
	ledger     Ledger
	folder     string
	log        *logger.Logger
	now        func() time.Time
}

func New(d Deps) *Pipeline {
	log := d.Log
	if log == nil {
		log = logger.NewNop()
	}
	now := d.Now
	if now == nil {
		now = time.Now
	}
	return &Pipeline{
		resolver:   d.Resolver,
		renderer:   d.Renderer,
		rasterizer: d.Rasterizer,
		publisher:  d.Publisher,
		ledger:     d.Ledger,
		folder:     d.Folder,
		log:        log.WithComponent("pipeline"),
		now:        now,
	}
}

// Capture resolves, renders and rasterizes job without publishing it.
func (p *Pipeline) Capture(ctx context.Context, job Job) ([]byte, resolver.Source, error) {
	log := p.log.FromContext(ctx)

	if job.Template == "" && job.TemplateURL == "" {
		return nil, resolver.Source{}, errors.BadRequest("template", "template is required")
	}
	if job.Width <= 0 || job.Height <= 0 {
		return nil, resolver.Source{}, errors.BadRequest("width", "width and height must be positive integers")
	}

	// 1. Resolve
	var (
		src resolver.Source
		err error
	)
	if job.TemplateURL != "" {
		src, err = p.resolver.ResolveURL(ctx, job.TemplateURL)
	} else {
		src, err = p.resolver.Resolve(ctx, job.Template)
	}
	if err != nil {
		return nil, src, errors.Wrap(err, "pipeline.resolve", "resolve template")
	}
	log.Debug("template resolved", "template", src.Name, "origin", src.Origin)

	// 2. Render
	html, err := p.renderer.Render(src.Name, src.Text, job.Data)
	if err != nil {
		return nil, src, errors.Wrap(err, "pipeline.render", "render template")
	}
	log.Debug("template rendered", "template", src.Name, "html_bytes", len(html))

	// 3. Rasterize
	png, err := p.rasterizer.Rasterize(ctx, html, job.Width, job.Height)
	if err != nil {
		return nil, src, errors.Wrap(err, "pipeline.rasterize", "rasterize page")
	}
	return png, src, nil
}

// Run executes the whole pipeline. Nothing is stored unless every stage
// before the upload succeeded.
func (p *Pipeline) Run(ctx context.Context, job Job) (Result, error) {
	start := p.now()
	id := ids.NewID("rnd")
	ctx = logger.ContextWithRenderID(ctx, id)
	log := p.log.FromContext(ctx)

	log.Info("render started",
		"kind", job.Kind,
		"template", job.Template,
		"template_url", job.TemplateURL,
		"width", job.Width,
		"height", job.Height,
	)

	png, src, err := p.Capture(ctx, job)
	if err != nil {
		return Result{}, err
	}

	// 4. Publish
	key := publisher.ObjectKey(p.folder, Filename(job.FilenamePrefix, start))
	pub, err := p.publisher.Publish(ctx, png, key)
	if err != nil {
		return Result{}, errors.Wrap(err, "pipeline.publish", "publish image")
	}

	res := Result{
		ID:       id,
		Template: src.Name,
		Key:      pub.Key,
		URL:      pub.URL,
		Bytes:    pub.Size,
		Duration: p.now().Sub(start),
	}

	// 5. Ledger. The image is already public, so a failed write only gets logged.
	if p.ledger != nil {
		reqID, _ := ctx.Value(logger.RequestIDKey).(string)
		err := p.ledger.Record(ctx, &models.Render{
			ID:         res.ID,
			Kind:       job.Kind,
			Template:   res.Template,
			ObjectKey:  res.Key,
			URL:        res.URL,
			Width:      job.Width,
			Height:     job.Height,
			Bytes:      res.Bytes,
			DurationMS: res.Duration.Milliseconds(),
			RequestID:  reqID,
		})
		log.LogError(ctx, "render ledger write failed", err, "key", res.Key)
	}

	log.Info("render completed",
		"template", res.Template,
		"key", res.Key,
		"url", res.URL,
		"bytes", res.Bytes,
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}
