package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardrender/internal/config"
	"cardrender/internal/pkg/errors"
	"cardrender/internal/pkg/shutdown"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Server:   config.ServerConfig{Port: "3000"},
		Template: config.TemplateConfig{Dir: t.TempDir(), CacheBust: true, FetchTimeout: time.Second},
		Storage: config.StorageConfig{
			Provider:  config.ProviderLocalFS,
			Folder:    "reports",
			LocalRoot: t.TempDir(),
		},
		Browser: config.BrowserConfig{Mode: config.BrowserIsolated, MaxConcurrency: 1, DeviceScaleFactor: 1},
		Render:  config.RenderConfig{Timeout: time.Second},
	}
}

func TestBuildLocalFS(t *testing.T) {
	cfg := testConfig(t)

	a, err := Build(context.Background(), cfg, nil)
	require.NoError(t, err)

	assert.Equal(t, "localfs", a.Storage.Provider())
	assert.Nil(t, a.Pool)
	assert.Nil(t, a.Ledger)
	assert.NotNil(t, a.Pipeline)

	m := shutdown.NewManager(nil, time.Second)
	a.RegisterShutdown(m)
	assert.NoError(t, m.Shutdown())
}

func TestBuildUnknownProvider(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Provider = "gcs"

	_, err := Build(context.Background(), cfg, nil)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeValidation))
}

func TestNewResolverLocalThenRemote(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte("<p>remote</p>"))
	}))
	defer srv.Close()

	cfg := testConfig(t)
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Template.Dir, "a.hbs"), []byte("<p>local</p>"), 0o644))

	_, res := NewResolver(cfg, nil)
	_, err := res.Resolve(context.Background(), "b")
	assert.True(t, errors.IsCode(err, errors.CodeTemplateMissing), "no base url means no remote lookup")

	cfg.Template.BaseURL = srv.URL
	_, res = NewResolver(cfg, nil)

	src, err := res.Resolve(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, "<p>local</p>", src.Text)
	assert.Zero(t, hits.Load())

	src, err = res.Resolve(context.Background(), "b")
	require.NoError(t, err)
	assert.Equal(t, "<p>remote</p>", src.Text)
	assert.EqualValues(t, 1, hits.Load())
}
