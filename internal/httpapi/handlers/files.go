package handlers

import (
	"io"
	"net/http"
	"os"
	"strconv"

	"github.com/go-chi/chi/v5"

	"cardrender/internal/pkg/errors"
)

// StreamFile serves a stored object so localfs URLs resolve in development.
func (h *Handler) StreamFile(w http.ResponseWriter, r *http.Request) error {
	key := chi.URLParam(r, "*")
	if key == "" {
		return errors.New(errors.CodeNotFound, "file not found")
	}

	rc, ct, size, err := h.sp.GetObject(r.Context(), key)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.New(errors.CodeNotFound, "file not found").WithField("key", key)
		}
		return errors.Wrap(err, "handlers.files", "read object").WithField("key", key)
	}
	defer rc.Close()

	if ct == "" {
		ct = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ct)
	if size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	}
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	_, _ = io.Copy(w, rc)
	return nil
}
