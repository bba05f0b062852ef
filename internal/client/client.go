// Package client calls a running render service over HTTP.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	renderv1 "cardrender/internal/contracts/render/v1"
	"cardrender/internal/pkg/errors"
)

// Renders include a browser launch; keep this above RENDER_TIMEOUT.
const defaultTimeout = 2 * time.Minute

type Options struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	// Retries beyond the first attempt. Retried renders may publish twice.
	Retries int
}

type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *retryablehttp.Client
}

func New(opt Options) *HTTPClient {
	c := retryablehttp.NewClient()
	c.RetryMax = opt.Retries
	c.Logger = nil
	c.ErrorHandler = retryablehttp.PassthroughErrorHandler
	c.HTTPClient.Timeout = opt.Timeout
	if c.HTTPClient.Timeout <= 0 {
		c.HTTPClient.Timeout = defaultTimeout
	}

	return &HTTPClient{
		baseURL: strings.TrimRight(opt.BaseURL, "/"),
		apiKey:  opt.APIKey,
		client:  c,
	}
}

// Render calls POST /render and returns the published image URL.
func (c *HTTPClient) Render(ctx context.Context, req renderv1.RenderRequest) (string, error) {
	return c.post(ctx, renderv1.PathRender, req)
}

// RenderLeaderboard posts body as-is to the leaderboard endpoint.
func (c *HTTPClient) RenderLeaderboard(ctx context.Context, body map[string]any) (string, error) {
	return c.post(ctx, renderv1.PathLeaderboard, body)
}

func (c *HTTPClient) RenderPersonal(ctx context.Context, body map[string]any) (string, error) {
	return c.post(ctx, renderv1.PathPersonal, body)
}

func (c *HTTPClient) post(ctx context.Context, path string, payload any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", errors.WrapWithCode(err, errors.CodeBadRequest, "client.post", "encode request")
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, "client.post", "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	res, err := c.client.Do(req)
	if err != nil {
		return "", errors.WrapWithCode(err, errors.CodeUnavailable, "client.post", "render service unreachable")
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return "", errors.Wrap(err, "client.post", "read response")
	}

	var out renderv1.Response
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", errors.Newf(errors.CodeInternal, "render service http %d: unexpected body", res.StatusCode)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 || !out.OK {
		code := errors.Code(out.Code)
		if code == "" {
			code = errors.CodeInternal
		}
		return "", errors.New(code, fmt.Sprintf("render service http %d: %s", res.StatusCode, out.Error)).
			WithField("status", res.StatusCode)
	}
	return out.ImageURL, nil
}
