package handlers

import (
	"context"
	"net/http"
	"time"

	"cardrender/internal/httpkit"
)

const checkTimeout = 5 * time.Second

// Health reports liveness. With ?deep=true it also pings storage and the ledger.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := h.log.FromContext(ctx)

	health := map[string]any{
		"ok":      true,
		"status":  "ok",
		"service": h.service,
		"version": h.version,
		"storage": h.sp.Provider(),
	}

	if r.URL.Query().Get("deep") == "true" {
		checks := h.deepHealthCheck(ctx)
		health["checks"] = checks

		for _, check := range checks {
			if check["status"] == "error" {
				health["status"] = "degraded"
				log.Warn("health check degraded", "checks", checks)
				break
			}
		}
	}

	httpkit.WriteJSON(w, http.StatusOK, health)
}

func (h *Handler) deepHealthCheck(ctx context.Context) map[string]map[string]any {
	checks := map[string]map[string]any{
		"storage": h.check(ctx, h.sp.Ping),
	}
	checks["storage"]["provider"] = h.sp.Provider()

	if h.ledger != nil {
		checks["ledger"] = h.check(ctx, h.ledger.Ping)
	} else {
		checks["ledger"] = map[string]any{"status": "disabled"}
	}
	return checks
}

func (h *Handler) check(ctx context.Context, ping func(context.Context) error) map[string]any {
	start := time.Now()
	result := map[string]any{"status": "ok"}

	checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	if err := ping(checkCtx); err != nil {
		result["status"] = "error"
		result["error"] = err.Error()
	}

	result["latency_ms"] = time.Since(start).Milliseconds()
	return result
}
