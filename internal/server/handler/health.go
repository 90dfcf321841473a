package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/updownlabs/updownd/internal/domain"
)

// HealthHandler serves the health-check endpoint.
type HealthHandler struct {
	heights   domain.HeightSource
	startedAt time.Time
	logger    *slog.Logger
}

// NewHealthHandler creates a HealthHandler. heights may be nil, in which case
// the response omits the current block height.
func NewHealthHandler(heights domain.HeightSource, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		heights:   heights,
		startedAt: time.Now().UTC(),
		logger:    logger,
	}
}

// HealthCheck reports liveness plus the daemon's view of the chain: uptime
// and the current block height driving prediction windows.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":         "ok",
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
	}

	if h.heights != nil {
		height, err := h.heights.Height(r.Context())
		if err != nil {
			h.logger.WarnContext(r.Context(), "health: height source unavailable", slog.Any("error", err))
		} else {
			resp["block_height"] = height
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
