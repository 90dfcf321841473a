// Package server exposes the settlement engine over HTTP and WebSocket.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/updownlabs/updownd/internal/domain"
	"github.com/updownlabs/updownd/internal/server/handler"
	"github.com/updownlabs/updownd/internal/server/middleware"
	"github.com/updownlabs/updownd/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKeyHash  string // bcrypt hash; if empty, authentication is disabled

	// RateLimit caps requests per caller (falling back to client IP) per
	// RateWindow. Zero disables rate limiting.
	RateLimit  int
	RateWindow time.Duration
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health      *handler.HealthHandler
	Markets     *handler.MarketHandler
	Predictions *handler.PredictionHandler
	Claims      *handler.ClaimHandler
	Admin       *handler.AdminHandler
	Pool        *handler.PoolHandler
	Events      *handler.EventsHandler
}

// Server is the HTTP + WebSocket API server for the settlement engine.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux.
// It wires up middleware (logging, CORS, auth, caller extraction, optional
// rate limiting) and attaches the WebSocket hub.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check.
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Market lifecycle.
	mux.HandleFunc("GET /api/markets", handlers.Markets.ListMarkets)
	mux.HandleFunc("POST /api/markets", handlers.Markets.CreateMarket)
	mux.HandleFunc("GET /api/markets/{id}", handlers.Markets.GetMarket)
	mux.HandleFunc("POST /api/markets/{id}/resolve", handlers.Claims.Resolve)

	// Predictions and claims.
	mux.HandleFunc("GET /api/markets/{id}/predictions", handlers.Markets.ListPredictions)
	mux.HandleFunc("POST /api/markets/{id}/predictions", handlers.Predictions.Submit)
	mux.HandleFunc("GET /api/markets/{id}/predictions/{account}", handlers.Predictions.Get)
	mux.HandleFunc("POST /api/markets/{id}/claim", handlers.Claims.Claim)

	// Pool, height, and balances.
	mux.HandleFunc("GET /api/pool", handlers.Pool.GetPool)
	mux.HandleFunc("GET /api/height", handlers.Pool.GetHeight)
	mux.HandleFunc("GET /api/accounts/{account}/balance", handlers.Pool.GetBalance)

	// Event replay from the durable streams.
	mux.HandleFunc("GET /api/events", handlers.Events.ListEvents)

	// Protocol parameters and admin.
	mux.HandleFunc("GET /api/params", handlers.Admin.GetParams)
	mux.HandleFunc("PUT /api/params", handlers.Admin.UpdateParams)
	mux.HandleFunc("POST /api/admin/withdraw", handlers.Admin.WithdrawFees)
	mux.HandleFunc("POST /api/admin/credit", handlers.Admin.Credit)
	mux.HandleFunc("POST /api/admin/height/advance", handlers.Admin.AdvanceHeight)
	mux.HandleFunc("GET /api/admin/audit", handlers.Admin.ListAudit)
	mux.HandleFunc("GET /api/admin/archives", handlers.Admin.ListArchives)

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain, innermost first.
	var h http.Handler = mux

	h = middleware.CallerAddress()(h)
	h = middleware.Auth(cfg.APIKeyHash)(h)
	if limiter != nil && cfg.RateLimit > 0 {
		h = middleware.RateLimit(limiter, cfg.RateLimit, cfg.RateWindow)(h)
	}
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
