package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/updownlabs/updownd/internal/domain"
)

// MarketQueries defines the read-side methods the market handler requires.
// It is declared locally so the handler package does not depend on the
// concrete service implementation.
type MarketQueries interface {
	GetMarket(ctx context.Context, id uint64) (domain.Market, error)
	ListMarkets(ctx context.Context, opts domain.ListOpts) ([]domain.Market, error)
	Count(ctx context.Context) (int64, error)
	ListPredictions(ctx context.Context, marketID uint64, opts domain.ListOpts) ([]domain.Prediction, error)
}

// MarketCreator defines the write-side method the market handler requires.
type MarketCreator interface {
	CreateMarket(ctx context.Context, caller domain.Address, startPrice, startBlock, endBlock uint64) (uint64, error)
}

// MarketHandler serves market-related HTTP endpoints.
type MarketHandler struct {
	queries MarketQueries
	creator MarketCreator
	logger  *slog.Logger
}

// NewMarketHandler creates a MarketHandler with the given collaborators.
func NewMarketHandler(queries MarketQueries, creator MarketCreator, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{
		queries: queries,
		creator: creator,
		logger:  logger,
	}
}

// listMarketsResponse wraps the list endpoint output with metadata.
type listMarketsResponse struct {
	Markets []domain.Market `json:"markets"`
	Total   int64           `json:"total"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
}

// ListMarkets returns markets with pagination and an optional resolved filter.
// GET /api/markets?limit=50&offset=0&resolved=false
func (h *MarketHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	markets, err := h.queries.ListMarkets(r.Context(), opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list markets failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list markets")
		return
	}

	total, err := h.queries.Count(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: count markets failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to count markets")
		return
	}

	writeJSON(w, http.StatusOK, listMarketsResponse{
		Markets: markets,
		Total:   total,
		Limit:   opts.Limit,
		Offset:  opts.Offset,
	})
}

// GetMarket returns a single market by its ID.
// GET /api/markets/{id}
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid market id")
		return
	}

	market, err := h.queries.GetMarket(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "market not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get market failed",
			slog.Uint64("market_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get market")
		return
	}

	writeJSON(w, http.StatusOK, market)
}

// ListPredictions returns the predictions recorded against a market.
// GET /api/markets/{id}/predictions
func (h *MarketHandler) ListPredictions(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid market id")
		return
	}

	preds, err := h.queries.ListPredictions(r.Context(), id, parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list predictions failed",
			slog.Uint64("market_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list predictions")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"predictions": preds})
}

// createMarketRequest is the JSON body accepted by CreateMarket.
type createMarketRequest struct {
	StartPrice uint64 `json:"start_price"`
	StartBlock uint64 `json:"start_block"`
	EndBlock   uint64 `json:"end_block"`
}

// CreateMarket opens a new market. Owner only.
// POST /api/markets
func (h *MarketHandler) CreateMarket(w http.ResponseWriter, r *http.Request) {
	addr, ok := caller(w, r)
	if !ok {
		return
	}

	var req createMarketRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id, err := h.creator.CreateMarket(r.Context(), addr, req.StartPrice, req.StartBlock, req.EndBlock)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"market_id": id})
}
