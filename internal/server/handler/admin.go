package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/updownlabs/updownd/internal/domain"
)

// AdminEngine defines the owner-gated engine methods the admin handler uses.
type AdminEngine interface {
	SetOracle(ctx context.Context, caller, oracle domain.Address) error
	SetMinStake(ctx context.Context, caller domain.Address, minStake uint64) error
	SetFeePercent(ctx context.Context, caller domain.Address, feePercent uint64) error
	WithdrawFees(ctx context.Context, caller domain.Address, amount uint64) error
	Credit(ctx context.Context, caller, account domain.Address, amount uint64) error
	Params(ctx context.Context) (domain.ProtocolParams, error)
}

// HeightAdvancer advances a manually driven chain height. Nil when the
// deployment uses an interval height source.
type HeightAdvancer interface {
	Advance(delta uint64) uint64
}

// AdminHandler serves protocol parameter and treasury endpoints.
type AdminHandler struct {
	engine   AdminEngine
	heights  HeightAdvancer
	audit    domain.AuditStore
	archives domain.BlobReader
	logger   *slog.Logger
}

// NewAdminHandler creates an AdminHandler. heights, audit, and archives may
// be nil.
func NewAdminHandler(engine AdminEngine, heights HeightAdvancer, audit domain.AuditStore, archives domain.BlobReader, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		engine:   engine,
		heights:  heights,
		audit:    audit,
		archives: archives,
		logger:   logger,
	}
}

// GetParams returns the current protocol parameters.
// GET /api/params
func (h *AdminHandler) GetParams(w http.ResponseWriter, r *http.Request) {
	params, err := h.engine.Params(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: get params failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get params")
		return
	}
	writeJSON(w, http.StatusOK, params)
}

// updateParamsRequest carries the updatable protocol parameters. Each request
// updates exactly the fields present.
type updateParamsRequest struct {
	Oracle     *string `json:"oracle,omitempty"`
	MinStake   *uint64 `json:"min_stake,omitempty"`
	FeePercent *uint64 `json:"fee_percent,omitempty"`
}

// UpdateParams updates protocol parameters. Owner only.
// PUT /api/params
func (h *AdminHandler) UpdateParams(w http.ResponseWriter, r *http.Request) {
	addr, ok := caller(w, r)
	if !ok {
		return
	}

	var req updateParamsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Oracle == nil && req.MinStake == nil && req.FeePercent == nil {
		writeError(w, http.StatusBadRequest, "no parameters to update")
		return
	}

	if req.Oracle != nil {
		if err := h.engine.SetOracle(r.Context(), addr, domain.Address(*req.Oracle)); err != nil {
			writeDomainError(w, err)
			return
		}
	}
	if req.MinStake != nil {
		if err := h.engine.SetMinStake(r.Context(), addr, *req.MinStake); err != nil {
			writeDomainError(w, err)
			return
		}
	}
	if req.FeePercent != nil {
		if err := h.engine.SetFeePercent(r.Context(), addr, *req.FeePercent); err != nil {
			writeDomainError(w, err)
			return
		}
	}

	params, err := h.engine.Params(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to reload params")
		return
	}
	writeJSON(w, http.StatusOK, params)
}

// withdrawRequest is the JSON body accepted by WithdrawFees.
type withdrawRequest struct {
	Amount uint64 `json:"amount"`
}

// WithdrawFees moves accumulated fees from the pool to the owner. Owner only.
// POST /api/admin/withdraw
func (h *AdminHandler) WithdrawFees(w http.ResponseWriter, r *http.Request) {
	addr, ok := caller(w, r)
	if !ok {
		return
	}

	var req withdrawRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.engine.WithdrawFees(r.Context(), addr, req.Amount); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"withdrawn": req.Amount})
}

// creditRequest is the JSON body accepted by Credit.
type creditRequest struct {
	Account string `json:"account"`
	Amount  uint64 `json:"amount"`
}

// Credit mints balance into an account. Owner only; intended for sandbox
// deployments and operator corrections.
// POST /api/admin/credit
func (h *AdminHandler) Credit(w http.ResponseWriter, r *http.Request) {
	addr, ok := caller(w, r)
	if !ok {
		return
	}

	var req creditRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	account, ok := accountAddress(req.Account)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid account address")
		return
	}

	if err := h.engine.Credit(r.Context(), addr, account, req.Amount); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"account": account,
		"amount":  req.Amount,
	})
}

// advanceRequest is the JSON body accepted by AdvanceHeight.
type advanceRequest struct {
	Delta uint64 `json:"delta"`
}

// AdvanceHeight moves the manual height source forward. Owner only; returns
// 409 when the deployment runs on an interval height source.
// POST /api/admin/height/advance
func (h *AdminHandler) AdvanceHeight(w http.ResponseWriter, r *http.Request) {
	addr, ok := caller(w, r)
	if !ok {
		return
	}

	params, err := h.engine.Params(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load params")
		return
	}
	if addr != params.Owner {
		writeError(w, http.StatusForbidden, "unauthorized")
		return
	}

	if h.heights == nil {
		writeError(w, http.StatusConflict, "height source is not manually driven")
		return
	}

	var req advanceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Delta == 0 {
		writeError(w, http.StatusBadRequest, "delta must be positive")
		return
	}

	height := h.heights.Advance(req.Delta)
	writeJSON(w, http.StatusOK, map[string]any{"height": height})
}

// ListArchives enumerates settled-market archive objects. Owner only;
// returns 409 when no archive storage is configured.
// GET /api/admin/archives
func (h *AdminHandler) ListArchives(w http.ResponseWriter, r *http.Request) {
	addr, ok := caller(w, r)
	if !ok {
		return
	}

	params, err := h.engine.Params(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load params")
		return
	}
	if addr != params.Owner {
		writeError(w, http.StatusForbidden, "unauthorized")
		return
	}

	if h.archives == nil {
		writeError(w, http.StatusConflict, "archive storage is not configured")
		return
	}

	infos, err := h.archives.List(r.Context(), "archive/settled/")
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list archives failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list archives")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"archives": infos})
}

// ListAudit returns audit log entries, newest first. Owner only.
// GET /api/admin/audit
func (h *AdminHandler) ListAudit(w http.ResponseWriter, r *http.Request) {
	addr, ok := caller(w, r)
	if !ok {
		return
	}

	params, err := h.engine.Params(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load params")
		return
	}
	if addr != params.Owner {
		writeError(w, http.StatusForbidden, "unauthorized")
		return
	}

	if h.audit == nil {
		writeJSON(w, http.StatusOK, map[string]any{"entries": []domain.AuditEntry{}})
		return
	}

	entries, err := h.audit.List(r.Context(), parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list audit failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list audit log")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}
