package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/updownlabs/updownd/internal/domain"
)

// PoolQueries defines the engine read methods the pool handler uses.
type PoolQueries interface {
	PoolBalance(ctx context.Context) (uint64, error)
	Height(ctx context.Context) (uint64, error)
}

// BalanceReader reads account balances.
type BalanceReader interface {
	BalanceOf(ctx context.Context, account domain.Address) (uint64, error)
}

// PoolHandler serves pool, height, and account balance endpoints.
type PoolHandler struct {
	queries PoolQueries
	bank    BalanceReader
	logger  *slog.Logger
}

// NewPoolHandler creates a PoolHandler.
func NewPoolHandler(queries PoolQueries, bank BalanceReader, logger *slog.Logger) *PoolHandler {
	return &PoolHandler{queries: queries, bank: bank, logger: logger}
}

// GetPool returns the escrowed pool balance.
// GET /api/pool
func (h *PoolHandler) GetPool(w http.ResponseWriter, r *http.Request) {
	balance, err := h.queries.PoolBalance(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: get pool failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get pool balance")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"balance": balance})
}

// GetHeight returns the current chain height.
// GET /api/height
func (h *PoolHandler) GetHeight(w http.ResponseWriter, r *http.Request) {
	height, err := h.queries.Height(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: get height failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get height")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"height": height})
}

// GetBalance returns the balance of a single account.
// GET /api/accounts/{account}/balance
func (h *PoolHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	account, ok := accountAddress(pathParam(r, "account"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid account address")
		return
	}

	balance, err := h.bank.BalanceOf(r.Context(), account)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: get balance failed",
			slog.String("account", string(account)),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get balance")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"account": account,
		"balance": balance,
	})
}
