package resolver

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// maxTemplateBytes caps a fetched template body.
const maxTemplateBytes = 4 << 20

type RemoteOptions struct {
	// BaseURL is the content host prefix. Empty makes Lookup always miss.
	BaseURL   string
	CacheBust bool
	Timeout   time.Duration
	// Retries beyond the first attempt. Zero means exactly one GET.
	Retries int
}

// Remote fetches templates over HTTP from a content host.
type Remote struct {
	base      string
	cacheBust bool
	client    *retryablehttp.Client
	now       func() time.Time
}

func NewRemote(opt RemoteOptions) *Remote {
	c := retryablehttp.NewClient()
	c.RetryMax = opt.Retries
	c.Logger = nil
	c.ErrorHandler = retryablehttp.PassthroughErrorHandler
	if opt.Timeout > 0 {
		c.HTTPClient.Timeout = opt.Timeout
	}

	return &Remote{
		base:      opt.BaseURL,
		cacheBust: opt.CacheBust,
		client:    c,
		now:       time.Now,
	}
}

func (r *Remote) Name() string { return "remote" }

// URL builds {base}/{basename(name)}, plus t=<unix ms> when cache busting.
func (r *Remote) URL(name string) string {
	u := r.base + "/" + url.PathEscape(path.Base(name))
	if r.cacheBust {
		u += "?t=" + strconv.FormatInt(r.now().UnixMilli(), 10)
	}
	return u
}

func (r *Remote) Lookup(ctx context.Context, name string) (Result, error) {
	if r.base == "" {
		return miss("no base url configured"), nil
	}
	res, err := r.Fetch(ctx, r.URL(name))
	if res.Found {
		res.Source.Name = name
	}
	return res, err
}

// Fetch performs the GET. Network failures and non-2xx answers are misses;
// a canceled ctx is returned as an error.
func (r *Remote) Fetch(ctx context.Context, rawURL string) (Result, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return miss("build request: %v", err), nil
	}

	resp, err := r.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		return miss("GET %s: %v", rawURL, err), nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return miss("GET %s: status %d", rawURL, resp.StatusCode), nil
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxTemplateBytes+1))
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		return miss("read %s: %v", rawURL, err), nil
	}
	if len(b) > maxTemplateBytes {
		return miss("GET %s: body exceeds %d bytes", rawURL, maxTemplateBytes), nil
	}

	return Result{
		Found:  true,
		Source: Source{Name: path.Base(req.URL.Path), Text: string(b), Origin: rawURL},
	}, nil
}
