package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/updownlabs/updownd/internal/domain"
)

// ClaimEngine defines the engine methods the claim handler uses.
type ClaimEngine interface {
	ResolveMarket(ctx context.Context, caller domain.Address, marketID, endPrice uint64) error
	ClaimWinnings(ctx context.Context, caller domain.Address, marketID uint64) (uint64, error)
}

// ClaimHandler serves resolution and claim endpoints.
type ClaimHandler struct {
	engine ClaimEngine
	logger *slog.Logger
}

// NewClaimHandler creates a ClaimHandler.
func NewClaimHandler(engine ClaimEngine, logger *slog.Logger) *ClaimHandler {
	return &ClaimHandler{engine: engine, logger: logger}
}

// resolveRequest is the JSON body accepted by Resolve.
type resolveRequest struct {
	EndPrice uint64 `json:"end_price"`
}

// Resolve records the terminal price for a closed market. Oracle only.
// POST /api/markets/{id}/resolve
func (h *ClaimHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	addr, ok := caller(w, r)
	if !ok {
		return
	}

	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid market id")
		return
	}

	var req resolveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.engine.ResolveMarket(r.Context(), addr, id, req.EndPrice); err != nil {
		h.logger.InfoContext(r.Context(), "handler: resolve rejected",
			slog.Uint64("market_id", id),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"market_id": id,
		"end_price": req.EndPrice,
		"resolved":  true,
	})
}

// Claim pays out the caller's winnings on a resolved market.
// POST /api/markets/{id}/claim
func (h *ClaimHandler) Claim(w http.ResponseWriter, r *http.Request) {
	addr, ok := caller(w, r)
	if !ok {
		return
	}

	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid market id")
		return
	}

	payout, err := h.engine.ClaimWinnings(r.Context(), addr, id)
	if err != nil {
		h.logger.InfoContext(r.Context(), "handler: claim rejected",
			slog.Uint64("market_id", id),
			slog.String("account", string(addr)),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"market_id": id,
		"account":   addr,
		"payout":    payout,
	})
}
