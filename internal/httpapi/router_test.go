package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardrender/internal/adapters/storage/localfs"
	"cardrender/internal/pipeline"
	"cardrender/internal/publisher"
	"cardrender/internal/render"
	"cardrender/internal/resolver"
)

const testKey = "s3cret"

type recordingRasterizer struct {
	mu    sync.Mutex
	calls int
	html  string
	w, h  int
}

func (r *recordingRasterizer) Rasterize(ctx context.Context, html string, w, h int) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.html, r.w, r.h = html, w, h
	return []byte("\x89PNG\r\n\x1a\n"), nil
}

type server struct {
	t       *testing.T
	handler http.Handler
	ras     *recordingRasterizer
	store   string
}

func newServer(t *testing.T) *server {
	t.Helper()

	tplDir := t.TempDir()
	write := func(name, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(tplDir, name), []byte(body), 0o644))
	}
	write("personal_progress_v1.hbs", `<h1>{{player.name}}</h1><p>{{view.delta_weight_text}}</p>`)
	write("daily_leaderboard_v1.hbs", `<ol>{{#each view.players}}<li>{{rank_text}} {{name}}</li>{{/each}}</ol>`)
	write("hello.hbs", `<p>hi {{who}}</p>`)

	store := t.TempDir()
	sp := localfs.New(store)
	ras := &recordingRasterizer{}
	local := resolver.NewLocal(tplDir)

	p := pipeline.New(pipeline.Deps{
		Resolver:   resolver.New(resolver.Deps{Strategies: []resolver.Strategy{local}}),
		Renderer:   render.New(nil),
		Rasterizer: ras,
		Publisher:  publisher.New(sp, "https://cdn.example.com/cards", nil),
		Folder:     "reports",
	})

	h := NewRouter(Deps{
		Pipeline:   p,
		Templates:  local,
		SP:         sp,
		Version:    "test",
		APIKey:     testKey,
		ServeFiles: true,
	})
	return &server{t: t, handler: h, ras: ras, store: store}
}

func (s *server) do(method, target, body string, authed bool) (*httptest.ResponseRecorder, map[string]any) {
	s.t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if authed {
		req.Header.Set("x-api-key", testKey)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	var out map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func (s *server) uploads() []string {
	var files []string
	_ = filepath.WalkDir(s.store, func(p string, d os.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			rel, _ := filepath.Rel(s.store, p)
			files = append(files, filepath.ToSlash(rel))
		}
		return nil
	})
	return files
}

func TestHealthIsPublic(t *testing.T) {
	s := newServer(t)

	for _, path := range []string{"/", "/healthz"} {
		rec, body := s.do(http.MethodGet, path, "", false)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, true, body["ok"])
		assert.Equal(t, "localfs", body["storage"])
		assert.Equal(t, "test", body["version"])
	}
}

func TestDeepHealth(t *testing.T) {
	s := newServer(t)

	rec, body := s.do(http.MethodGet, "/healthz?deep=true", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])

	checks := body["checks"].(map[string]any)
	assert.Equal(t, "ok", checks["storage"].(map[string]any)["status"])
	assert.Equal(t, "disabled", checks["ledger"].(map[string]any)["status"])
}

func TestRenderPersonal(t *testing.T) {
	s := newServer(t)

	rec, body := s.do(http.MethodPost, "/render/personal",
		`{"player":{"name":"Anh A","stats":{"start_weight":80,"current_weight":78.5,"delta_weight":-1.5}}}`, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, true, body["ok"])
	url, _ := body["image_url"].(string)
	assert.True(t, strings.HasPrefix(url, "https://cdn.example.com/cards/reports/personal-Anh_A-"), url)
	assert.True(t, strings.HasSuffix(url, ".png"), url)

	assert.Equal(t, 1080, s.ras.w)
	assert.Equal(t, 1350, s.ras.h)
	assert.Contains(t, s.ras.html, "<h1>Anh A</h1>")

	uploads := s.uploads()
	require.Len(t, uploads, 1)
	assert.True(t, strings.HasSuffix(url, uploads[0]))
}

func TestRenderLeaderboardDefaults(t *testing.T) {
	s := newServer(t)

	rec, body := s.do(http.MethodPost, "/render/leaderboard",
		`{"name":"Round 1","players":[{"name":"B","delta_weight":-0.2},{"name":"A","delta_weight":-1.1}]}`, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Contains(t, body["image_url"], "/reports/daily-Round_1-")
	assert.Equal(t, 1600, s.ras.h)
	assert.Contains(t, s.ras.html, "<li>1 A</li><li>2 B</li>")
}

func TestRenderGeneric(t *testing.T) {
	s := newServer(t)

	rec, body := s.do(http.MethodPost, "/render",
		`{"template":"hello","data":{"who":"there"},"width":600,"height":315,"filename_prefix":"og card"}`, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Contains(t, body["image_url"], "/reports/og_card-")
	assert.Equal(t, "<p>hi there</p>", s.ras.html)
	assert.Equal(t, 600, s.ras.w)
	assert.Equal(t, 315, s.ras.h)
}

func TestRenderRequiresAPIKey(t *testing.T) {
	s := newServer(t)

	rec, body := s.do(http.MethodPost, "/render/personal", `{"name":"x"}`, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, false, body["ok"])
	assert.Equal(t, "UNAUTHORIZED", body["code"])
	assert.Zero(t, s.ras.calls)
	assert.Empty(t, s.uploads())

	req := httptest.NewRequest(http.MethodPost, "/render?api_key="+testKey, strings.NewReader(`{"template":"hello"}`))
	rec2 := httptest.NewRecorder()
	s.handler.ServeHTTP(rec2, req)
	assert.Equal(t, http.StatusOK, rec2.Code)
}

func TestRenderUnknownTemplate(t *testing.T) {
	s := newServer(t)

	rec, body := s.do(http.MethodPost, "/render", `{"template":"missing_v9"}`, true)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, false, body["ok"])
	assert.Equal(t, "TEMPLATE_NOT_FOUND", body["code"])
	assert.Contains(t, body["error"], "missing_v9")
	assert.NotContains(t, body["error"], os.TempDir())
	assert.NotContains(t, body["error"], "no such file")
	assert.Zero(t, s.ras.calls)
	assert.Empty(t, s.uploads())
}

func TestRenderBadRequests(t *testing.T) {
	s := newServer(t)

	tests := []struct {
		name string
		path string
		body string
	}{
		{"missing template", "/render", `{"data":{}}`},
		{"invalid json", "/render", `{"template":`},
		{"fractional width", "/render", `{"template":"hello","width":10.5}`},
		{"negative height", "/render/personal", `{"height":-1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := s.do(http.MethodPost, tt.path, tt.body, true)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, false, body["ok"])
			assert.Equal(t, "BAD_REQUEST", body["code"])
		})
	}
	assert.Zero(t, s.ras.calls)
}

func TestListTemplates(t *testing.T) {
	s := newServer(t)

	rec, body := s.do(http.MethodGet, "/templates", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{"daily_leaderboard_v1.hbs", "hello.hbs", "personal_progress_v1.hbs"}, body["templates"])
}

func TestListRendersWithoutLedger(t *testing.T) {
	s := newServer(t)

	rec, body := s.do(http.MethodGet, "/renders", "", true)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "UNAVAILABLE", body["code"])
}

func TestServeFiles(t *testing.T) {
	s := newServer(t)

	_, body := s.do(http.MethodPost, "/render", `{"template":"hello"}`, true)
	url := body["image_url"].(string)
	path := "/files/" + strings.TrimPrefix(url, "https://cdn.example.com/cards/")

	rec, _ := s.do(http.MethodGet, path, "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "\x89PNG\r\n\x1a\n", rec.Body.String())

	rec, body = s.do(http.MethodGet, "/files/reports/nope.png", "", false)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", body["code"])
}

func TestCORSPreflight(t *testing.T) {
	h := NewRouter(Deps{
		SP:             localfs.New(t.TempDir()),
		AllowedOrigins: []string{"https://app.example.com"},
	})

	req := httptest.NewRequest(http.MethodOptions, "/render", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "X-API-Key")
}

func TestRenderPersonalEmptyBody(t *testing.T) {
	s := newServer(t)

	rec, body := s.do(http.MethodPost, "/render/personal", "", true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, body["image_url"], "/reports/personal-anon-")
}

func TestRenderBodyLimit(t *testing.T) {
	s := newServer(t)
	h := NewRouter(Deps{SP: localfs.New(t.TempDir()), MaxBodyBytes: 16})
	s.handler = h

	rec, body := s.do(http.MethodPost, "/render", `{"template":"hello","data":{"who":"a long enough value"}}`, false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["error"], "exceeds 16 bytes")
}
