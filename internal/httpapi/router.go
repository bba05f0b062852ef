package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	renderv1 "cardrender/internal/contracts/render/v1"
	"cardrender/internal/httpapi/handlers"
	"cardrender/internal/httpkit"
	"cardrender/internal/pkg/logger"
	"cardrender/internal/pkg/middleware"
	"cardrender/internal/ports"
)

type Deps struct {
	Pipeline  handlers.Pipeline
	Templates handlers.TemplateLister
	Ledger    handlers.Ledger
	SP        ports.StorageProvider
	Log       *logger.Logger

	Version        string
	APIKey         string
	AllowedOrigins []string
	MaxBodyBytes   int64
	// ServeFiles mounts GET /files/* over SP; used with the localfs provider.
	ServeFiles bool
}

func NewRouter(d Deps) http.Handler {
	log := d.Log
	if log == nil {
		log = logger.NewNop()
	}

	r := chi.NewRouter()

	r.Use(httpkit.CORS(httpkit.CORSOptions{
		AllowedOrigins: d.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization", middleware.APIKeyHeader, middleware.RequestIDHeader},
		MaxAgeSeconds:  600,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(log))
	r.Use(middleware.Recovery(log))

	h := handlers.New(handlers.Deps{
		Pipeline:     d.Pipeline,
		Templates:    d.Templates,
		Ledger:       d.Ledger,
		SP:           d.SP,
		Log:          log,
		Version:      d.Version,
		MaxBodyBytes: d.MaxBodyBytes,
	})
	wrap := func(fn middleware.ErrorHandlerFunc) http.HandlerFunc {
		return middleware.WrapHandler(log, fn)
	}

	// ---- HEALTH ----
	r.Get("/", h.Health)
	r.Get(renderv1.PathHealth, h.Health)

	// ---- FILES ----
	if d.ServeFiles {
		r.Get("/files/*", wrap(h.StreamFile))
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.APIKey(log, d.APIKey))

		// ---- RENDER ----
		r.Post(renderv1.PathRender, wrap(h.Render))
		r.Post(renderv1.PathLeaderboard, wrap(h.RenderLeaderboard))
		r.Post(renderv1.PathPersonal, wrap(h.RenderPersonal))

		// ---- TEMPLATES ----
		r.Get("/templates", wrap(h.ListTemplates))

		// ---- LEDGER ----
		r.Get("/renders", wrap(h.ListRenders))
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpkit.WriteFail(w, http.StatusNotFound, "NOT_FOUND", "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpkit.WriteFail(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
	})

	return r
}
