package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	memcache "github.com/updownlabs/updownd/internal/cache/memory"
	"github.com/updownlabs/updownd/internal/domain"
	"github.com/updownlabs/updownd/internal/engine"
	"github.com/updownlabs/updownd/internal/height"
	"github.com/updownlabs/updownd/internal/server/handler"
	"github.com/updownlabs/updownd/internal/service"
	"github.com/updownlabs/updownd/internal/store/memory"
)

// Digit-only hex addresses are already in checksummed form, so they survive
// the caller-address normalization unchanged.
const (
	ownerAddr  = "0x1111111111111111111111111111111111111111"
	oracleAddr = "0x2222222222222222222222222222222222222222"
	aliceAddr  = "0x3333333333333333333333333333333333333333"
	bobAddr    = "0x4444444444444444444444444444444444444444"
)

type testServer struct {
	url     string
	client  *http.Client
	heights *height.Manual
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := memory.NewStore()
	params := memory.NewParamsStore(st)
	require.NoError(t, params.Init(context.Background(), domain.ProtocolParams{
		Owner:      ownerAddr,
		Oracle:     oracleAddr,
		MinStake:   10,
		FeePercent: 2,
	}))

	markets := memory.NewMarketStore(st)
	preds := memory.NewPredictionStore(st)
	bank := memory.NewBank(st)
	audit := memory.NewAuditStore(st)
	heights := height.NewManual(0)
	bus := memcache.NewSignalBus()

	eng := engine.New(engine.Deps{
		Markets:     markets,
		Predictions: preds,
		Params:      params,
		Bank:        bank,
		Heights:     heights,
		Locks:       memcache.NewLockManager(),
		Audit:       audit,
		Bus:         bus,
	}, logger)

	svc := service.NewMarketService(markets, preds, nil, logger)
	srv := NewServer(Config{Port: 0}, Handlers{
		Health:      handler.NewHealthHandler(heights, logger),
		Markets:     handler.NewMarketHandler(svc, eng, logger),
		Predictions: handler.NewPredictionHandler(eng, logger),
		Claims:      handler.NewClaimHandler(eng, logger),
		Admin:       handler.NewAdminHandler(eng, heights, audit, nil, logger),
		Pool:        handler.NewPoolHandler(eng, bank, logger),
		Events:      handler.NewEventsHandler(bus, logger),
	}, nil, nil, logger)

	ts := httptest.NewServer(srv.httpServer.Handler)
	t.Cleanup(ts.Close)

	return &testServer{url: ts.URL, client: ts.Client(), heights: heights}
}

// do issues a request with an optional caller address and JSON body, and
// decodes the JSON response.
func (ts *testServer) do(t *testing.T, method, path, caller string, body any) (int, map[string]any) {
	t.Helper()

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reqBody = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, ts.url+path, reqBody)
	require.NoError(t, err)
	if caller != "" {
		req.Header.Set("X-Caller-Address", caller)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := ts.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp.StatusCode, decoded
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t)
	status, body := ts.do(t, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(0), body["block_height"])
}

func TestMarketLifecycleOverHTTP(t *testing.T) {
	ts := newTestServer(t)

	// Fund the participants.
	status, _ := ts.do(t, http.MethodPost, "/api/admin/credit", ownerAddr,
		map[string]any{"account": aliceAddr, "amount": 1_000_000})
	require.Equal(t, http.StatusOK, status)
	status, _ = ts.do(t, http.MethodPost, "/api/admin/credit", ownerAddr,
		map[string]any{"account": bobAddr, "amount": 3_000_000})
	require.Equal(t, http.StatusOK, status)

	// Create a market.
	status, body := ts.do(t, http.MethodPost, "/api/markets", ownerAddr,
		map[string]any{"start_price": 50_000, "start_block": 10, "end_block": 20})
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, float64(0), body["market_id"])

	// Non-owners cannot create markets.
	status, _ = ts.do(t, http.MethodPost, "/api/markets", aliceAddr,
		map[string]any{"start_price": 50_000, "start_block": 10, "end_block": 20})
	assert.Equal(t, http.StatusForbidden, status)

	// Open the staking window.
	status, body = ts.do(t, http.MethodPost, "/api/admin/height/advance", ownerAddr,
		map[string]any{"delta": 10})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(10), body["height"])

	// Stake both sides.
	status, _ = ts.do(t, http.MethodPost, "/api/markets/0/predictions", aliceAddr,
		map[string]any{"direction": "up", "stake": 1_000_000})
	require.Equal(t, http.StatusCreated, status)
	status, _ = ts.do(t, http.MethodPost, "/api/markets/0/predictions", bobAddr,
		map[string]any{"direction": "down", "stake": 3_000_000})
	require.Equal(t, http.StatusCreated, status)

	// The pool now escrows all stakes.
	status, body = ts.do(t, http.MethodGet, "/api/pool", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(4_000_000), body["balance"])

	// Resolving before the window closes conflicts.
	status, _ = ts.do(t, http.MethodPost, "/api/markets/0/resolve", oracleAddr,
		map[string]any{"end_price": 60_000})
	assert.Equal(t, http.StatusConflict, status)

	ts.heights.Advance(10)

	// Only the oracle may resolve.
	status, _ = ts.do(t, http.MethodPost, "/api/markets/0/resolve", ownerAddr,
		map[string]any{"end_price": 60_000})
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = ts.do(t, http.MethodPost, "/api/markets/0/resolve", oracleAddr,
		map[string]any{"end_price": 60_000})
	require.Equal(t, http.StatusOK, status)

	// Alice wins the whole pool net of the 2% fee.
	status, body = ts.do(t, http.MethodPost, "/api/markets/0/claim", aliceAddr, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(3_920_000), body["payout"])

	// A second claim conflicts; the loser is rejected.
	status, _ = ts.do(t, http.MethodPost, "/api/markets/0/claim", aliceAddr, nil)
	assert.Equal(t, http.StatusConflict, status)
	status, _ = ts.do(t, http.MethodPost, "/api/markets/0/claim", bobAddr, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	// The fee landed with the owner.
	status, body = ts.do(t, http.MethodGet, "/api/accounts/"+ownerAddr+"/balance", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(80_000), body["balance"])

	// The market reads back resolved.
	status, body = ts.do(t, http.MethodGet, "/api/markets/0", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["resolved"])
	assert.Equal(t, float64(60_000), body["end_price"])
}

func TestCallerAddressValidation(t *testing.T) {
	ts := newTestServer(t)

	// Mutations without a caller address are rejected.
	status, _ := ts.do(t, http.MethodPost, "/api/markets", "",
		map[string]any{"start_price": 1, "start_block": 0, "end_block": 10})
	assert.Equal(t, http.StatusBadRequest, status)

	// Malformed addresses never reach the handlers.
	status, _ = ts.do(t, http.MethodPost, "/api/markets", "not-an-address",
		map[string]any{"start_price": 1, "start_block": 0, "end_block": 10})
	assert.Equal(t, http.StatusBadRequest, status)

	// A well-formed caller reaches the handler.
	status, _ = ts.do(t, http.MethodPost, "/api/admin/credit", ownerAddr,
		map[string]any{"account": aliceAddr, "amount": 100})
	require.Equal(t, http.StatusOK, status)
}

func TestAccountAddressCasing(t *testing.T) {
	ts := newTestServer(t)

	// Two spellings of the same account. Every surface that takes an
	// address must fold them onto one ledger key.
	const (
		carolLower = "0x00000000000000000000000000000000000000ab"
		carolUpper = "0x00000000000000000000000000000000000000AB"
	)

	// Credit with one casing, spend with the other.
	status, _ := ts.do(t, http.MethodPost, "/api/admin/credit", ownerAddr,
		map[string]any{"account": carolLower, "amount": 1_000})
	require.Equal(t, http.StatusOK, status)

	status, _ = ts.do(t, http.MethodPost, "/api/markets", ownerAddr,
		map[string]any{"start_price": 50_000, "start_block": 0, "end_block": 10})
	require.Equal(t, http.StatusCreated, status)

	status, _ = ts.do(t, http.MethodPost, "/api/markets/0/predictions", carolUpper,
		map[string]any{"direction": "up", "stake": 100})
	require.Equal(t, http.StatusCreated, status)

	// Reads resolve through either spelling.
	status, body := ts.do(t, http.MethodGet, "/api/markets/0/predictions/"+carolLower, "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(100), body["stake"])

	status, body = ts.do(t, http.MethodGet, "/api/accounts/"+carolUpper+"/balance", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(900), body["balance"])

	// Malformed addresses are rejected before any lookup.
	status, _ = ts.do(t, http.MethodGet, "/api/accounts/not-an-address/balance", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	status, _ = ts.do(t, http.MethodGet, "/api/markets/0/predictions/not-an-address", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	status, _ = ts.do(t, http.MethodPost, "/api/admin/credit", ownerAddr,
		map[string]any{"account": "not-an-address", "amount": 1})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestListEndpoints(t *testing.T) {
	ts := newTestServer(t)

	for i := 0; i < 3; i++ {
		status, _ := ts.do(t, http.MethodPost, "/api/markets", ownerAddr,
			map[string]any{"start_price": 50_000, "start_block": 0, "end_block": 10})
		require.Equal(t, http.StatusCreated, status)
	}

	status, body := ts.do(t, http.MethodGet, "/api/markets?limit=2", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(3), body["total"])
	assert.Len(t, body["markets"], 2)

	status, body = ts.do(t, http.MethodGet, "/api/markets/1/predictions", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, body["predictions"])

	status, _ = ts.do(t, http.MethodGet, "/api/markets/99", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestParamsEndpoints(t *testing.T) {
	ts := newTestServer(t)

	status, body := ts.do(t, http.MethodGet, "/api/params", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, ownerAddr, body["owner"])
	assert.Equal(t, float64(10), body["min_stake"])

	// Partial update touches only the named fields.
	status, body = ts.do(t, http.MethodPut, "/api/params", ownerAddr,
		map[string]any{"min_stake": 500})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(500), body["min_stake"])
	assert.Equal(t, oracleAddr, body["oracle"])

	status, _ = ts.do(t, http.MethodPut, "/api/params", aliceAddr,
		map[string]any{"min_stake": 1})
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = ts.do(t, http.MethodPut, "/api/params", ownerAddr, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestAuditEndpoint(t *testing.T) {
	ts := newTestServer(t)

	status, _ := ts.do(t, http.MethodPost, "/api/markets", ownerAddr,
		map[string]any{"start_price": 50_000, "start_block": 0, "end_block": 10})
	require.Equal(t, http.StatusCreated, status)

	// Owner only.
	status, _ = ts.do(t, http.MethodGet, "/api/admin/audit", aliceAddr, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, body := ts.do(t, http.MethodGet, "/api/admin/audit", ownerAddr, nil)
	require.Equal(t, http.StatusOK, status)
	entries, ok := body["entries"].([]any)
	require.True(t, ok)
	require.NotEmpty(t, entries)
	first, ok := entries[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "market.created", first["event"])
}

func TestEventsEndpoint(t *testing.T) {
	ts := newTestServer(t)

	status, body := ts.do(t, http.MethodGet, "/api/events?channel=bogus", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["error"], "unknown event channel")

	// Empty history.
	status, body = ts.do(t, http.MethodGet, "/api/events?channel=markets", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "0", body["next"])
	assert.Empty(t, body["events"])

	status, _ = ts.do(t, http.MethodPost, "/api/markets", ownerAddr,
		map[string]any{"start_price": 50_000, "start_block": 0, "end_block": 10})
	require.Equal(t, http.StatusCreated, status)

	status, body = ts.do(t, http.MethodGet, "/api/events?channel=markets", "", nil)
	require.Equal(t, http.StatusOK, status)
	events, ok := body["events"].([]any)
	require.True(t, ok)
	require.Len(t, events, 1)
	first, ok := events[0].(map[string]any)
	require.True(t, ok)
	ev, ok := first["event"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "market_created", ev["type"])

	// The cursor pages strictly past what was already seen.
	next, ok := body["next"].(string)
	require.True(t, ok)
	status, body = ts.do(t, http.MethodGet, "/api/events?channel=markets&after="+next, "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, body["events"])
}

// With no archive storage wired, the endpoint reports a conflict rather
// than an empty listing.
func TestArchivesEndpointUnconfigured(t *testing.T) {
	ts := newTestServer(t)
	status, _ := ts.do(t, http.MethodGet, "/api/admin/archives", ownerAddr, nil)
	assert.Equal(t, http.StatusConflict, status)
}
