package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/updownlabs/updownd/internal/domain"
)

// PredictionEngine defines the engine methods the prediction handler uses.
type PredictionEngine interface {
	SubmitPrediction(ctx context.Context, caller domain.Address, marketID uint64, dir domain.Direction, stake uint64) error
	GetPrediction(ctx context.Context, marketID uint64, account domain.Address) (domain.Prediction, error)
}

// PredictionHandler serves prediction submission and lookup endpoints.
type PredictionHandler struct {
	engine PredictionEngine
	logger *slog.Logger
}

// NewPredictionHandler creates a PredictionHandler.
func NewPredictionHandler(engine PredictionEngine, logger *slog.Logger) *PredictionHandler {
	return &PredictionHandler{engine: engine, logger: logger}
}

// submitPredictionRequest is the JSON body accepted by Submit.
type submitPredictionRequest struct {
	Direction string `json:"direction"`
	Stake     uint64 `json:"stake"`
}

// Submit places a stake on a market direction for the calling account.
// POST /api/markets/{id}/predictions
func (h *PredictionHandler) Submit(w http.ResponseWriter, r *http.Request) {
	addr, ok := caller(w, r)
	if !ok {
		return
	}

	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid market id")
		return
	}

	var req submitPredictionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.engine.SubmitPrediction(r.Context(), addr, id, domain.Direction(req.Direction), req.Stake)
	if err != nil {
		h.logger.InfoContext(r.Context(), "handler: submit prediction rejected",
			slog.Uint64("market_id", id),
			slog.String("account", string(addr)),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"market_id": id,
		"account":   addr,
		"direction": req.Direction,
		"stake":     req.Stake,
	})
}

// Get returns the prediction one account holds on a market.
// GET /api/markets/{id}/predictions/{account}
func (h *PredictionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid market id")
		return
	}
	account, ok := accountAddress(pathParam(r, "account"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid account address")
		return
	}

	p, err := h.engine.GetPrediction(r.Context(), id, account)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "prediction not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get prediction failed",
			slog.Uint64("market_id", id),
			slog.String("account", string(account)),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get prediction")
		return
	}

	writeJSON(w, http.StatusOK, p)
}
