package handlers

import (
	"net/http"

	"cardrender/internal/httpkit"
	"cardrender/internal/pkg/errors"
)

// ListTemplates returns the local template names relative to the template dir.
func (h *Handler) ListTemplates(w http.ResponseWriter, r *http.Request) error {
	names, err := h.templates.List()
	if err != nil {
		return errors.Wrap(err, "handlers.templates", "list templates")
	}
	httpkit.WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "templates": names})
	return nil
}
