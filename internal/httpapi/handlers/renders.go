package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"cardrender/internal/httpkit"
	"cardrender/internal/pkg/errors"
)

// ListRenders returns recent ledger entries, newest first.
func (h *Handler) ListRenders(w http.ResponseWriter, r *http.Request) error {
	if h.ledger == nil {
		return errors.Unavailable("render ledger")
	}

	limit := 0
	if s := strings.TrimSpace(r.URL.Query().Get("limit")); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v <= 0 {
			return errors.BadRequest("limit", "limit must be a positive integer")
		}
		limit = v
	}

	renders, err := h.ledger.List(r.Context(), limit)
	if err != nil {
		if httpkit.IsUndefinedTable(err) {
			return errors.WrapWithCode(err, errors.CodeUnavailable, "handlers.renders", "render ledger table is missing")
		}
		return errors.Wrap(err, "handlers.renders", "list renders")
	}

	httpkit.WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "renders": renders})
	return nil
}
