// Package resolver turns a template identifier into template source text.
//
// Strategies are tried in order and report a miss as a Result, not an
// error; only context cancellation and programming errors abort the chain.
package resolver

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"

	"cardrender/internal/pkg/errors"
	"cardrender/internal/pkg/logger"
)

// Extensions lists the template file extensions the renderer understands.
var Extensions = []string{".hbs", ".handlebars", ".html", ".tmpl", ".gohtml"}

// DefaultExtension is appended to identifiers without a known extension.
const DefaultExtension = ".hbs"

// Source is resolved template text.
type Source struct {
	Name   string
	Text   string
	Origin string
}

// Result is the outcome of one strategy lookup.
type Result struct {
	Source Source
	Found  bool
	Reason string
}

func miss(format string, args ...any) Result {
	return Result{Reason: fmt.Sprintf(format, args...)}
}

// Strategy is one place templates can come from.
type Strategy interface {
	Name() string
	Lookup(ctx context.Context, name string) (Result, error)
}

// Fetcher retrieves a template from an absolute URL.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (Result, error)
}

type Deps struct {
	Log        *logger.Logger
	Strategies []Strategy
	// Fetcher serves explicit template URLs; nil disables them.
	Fetcher Fetcher
}

type Resolver struct {
	log        *logger.Logger
	strategies []Strategy
	fetcher    Fetcher
}

func New(d Deps) *Resolver {
	log := d.Log
	if log == nil {
		log = logger.NewNop()
	}
	return &Resolver{
		log:        log.WithComponent("resolver"),
		strategies: d.Strategies,
		fetcher:    d.Fetcher,
	}
}

// NormalizeName trims id and appends DefaultExtension unless it already
// ends in one of Extensions.
func NormalizeName(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return ""
	}
	if HasKnownExtension(id) {
		return id
	}
	return id + DefaultExtension
}

// HasKnownExtension reports whether name ends in one of Extensions.
func HasKnownExtension(name string) bool {
	ext := strings.ToLower(path.Ext(name))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Resolve returns the first strategy hit for id.
func (r *Resolver) Resolve(ctx context.Context, id string) (Source, error) {
	name := NormalizeName(id)
	if name == "" {
		return Source{}, errors.BadRequest("template", "template is required")
	}

	var reasons []string
	for _, s := range r.strategies {
		res, err := s.Lookup(ctx, name)
		if err != nil {
			return Source{}, err
		}
		if res.Found {
			r.log.FromContext(ctx).Debug("template resolved",
				"template", name,
				"strategy", s.Name(),
				"origin", res.Source.Origin,
			)
			return res.Source, nil
		}
		reasons = append(reasons, s.Name()+": "+res.Reason)
	}

	return Source{}, errors.TemplateNotFound(name, reasons)
}

// ResolveURL fetches a template from an explicit http(s) URL. The template
// name, and so the engine, comes from the last path segment.
func (r *Resolver) ResolveURL(ctx context.Context, rawURL string) (Source, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Source{}, errors.BadRequest("template_url", "template_url must be an absolute http(s) URL")
	}

	name := NormalizeName(path.Base(u.Path))
	if r.fetcher == nil {
		return Source{}, errors.TemplateNotFound(name, []string{"url: template urls are disabled"})
	}

	res, err := r.fetcher.Fetch(ctx, u.String())
	if err != nil {
		return Source{}, err
	}
	if !res.Found {
		return Source{}, errors.TemplateNotFound(name, []string{"url: " + res.Reason})
	}

	res.Source.Name = name
	r.log.FromContext(ctx).Debug("template fetched by url", "template", name, "origin", res.Source.Origin)
	return res.Source, nil
}
