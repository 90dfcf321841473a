package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/updownlabs/updownd/internal/domain"
	"github.com/updownlabs/updownd/internal/engine"
	"github.com/updownlabs/updownd/internal/notify"
	"github.com/updownlabs/updownd/internal/server"
	"github.com/updownlabs/updownd/internal/server/handler"
	"github.com/updownlabs/updownd/internal/server/ws"
	"github.com/updownlabs/updownd/internal/service"
)

// ServerMode runs the full production stack: the settlement engine backed by
// Postgres and Redis, the HTTP + WebSocket API server, the notification
// watcher, and the periodic settled-market archiver.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	eng, err := a.buildEngine(ctx, deps)
	if err != nil {
		return fmt.Errorf("server mode: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	if deps.Notifier != nil {
		watcher := notify.NewWatcher(deps.SignalBus, deps.Notifier, a.logger)
		g.Go(func() error {
			return watcher.Run(ctx)
		})
	}

	if deps.Archiver != nil && a.cfg.Archive.Enabled {
		a.startArchiveLoop(ctx, g, deps.Archiver)
	}

	if a.cfg.Server.Enabled {
		a.startAPIServer(ctx, g, deps, eng)
	} else {
		a.logger.WarnContext(ctx, "server.enabled is false; the API is not reachable")
	}

	return g.Wait()
}

// SandboxMode runs the engine against in-memory stores with no external
// dependencies. The HTTP server always starts so the API can be exercised
// locally.
func (a *App) SandboxMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting sandbox mode")

	eng, err := a.buildEngine(ctx, deps)
	if err != nil {
		return fmt.Errorf("sandbox mode: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	if deps.Notifier != nil {
		watcher := notify.NewWatcher(deps.SignalBus, deps.Notifier, a.logger)
		g.Go(func() error {
			return watcher.Run(ctx)
		})
	}

	a.startAPIServer(ctx, g, deps, eng)

	return g.Wait()
}

// buildEngine seeds the protocol parameter singleton and constructs the
// settlement engine. Seeding is idempotent: once a deployment has
// initialized its parameters, the configured bootstrap values are ignored.
func (a *App) buildEngine(ctx context.Context, deps *Dependencies) (*engine.Engine, error) {
	// Addresses are normalized to their checksummed form so that config
	// values compare equal to the addresses extracted from API requests.
	bootstrap := domain.ProtocolParams{
		Owner:      domain.Address(common.HexToAddress(a.cfg.Engine.Owner).Hex()),
		Oracle:     domain.Address(common.HexToAddress(a.cfg.Engine.Oracle).Hex()),
		MinStake:   a.cfg.Engine.MinStake,
		FeePercent: a.cfg.Engine.FeePercent,
	}
	if err := deps.ParamsStore.Init(ctx, bootstrap); err != nil {
		return nil, fmt.Errorf("init protocol params: %w", err)
	}

	return engine.New(engine.Deps{
		Markets:     deps.MarketStore,
		Predictions: deps.PredictionStore,
		Params:      deps.ParamsStore,
		Bank:        deps.Bank,
		Heights:     deps.HeightSource,
		Locks:       deps.LockManager,
		Audit:       deps.AuditStore,
		Bus:         deps.SignalBus,
		Cache:       deps.MarketCache,
	}, a.logger), nil
}

// startAPIServer adds the HTTP server and WebSocket hub goroutines to the
// given errgroup. The server is shut down gracefully when the context is
// cancelled.
func (a *App) startAPIServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, eng *engine.Engine) {
	hub := ws.NewHub(deps.SignalBus, a.logger, ws.Config{
		Mode:      a.cfg.Mode,
		StartedAt: time.Now().UTC(),
		Origins:   a.cfg.Server.CORSOrigins,
	})
	g.Go(func() error {
		return hub.Run(ctx)
	})

	marketSvc := service.NewMarketService(deps.MarketStore, deps.PredictionStore, deps.MarketCache, a.logger)

	// The manual height source doubles as the advance endpoint's backend;
	// with an interval source the endpoint reports a conflict instead.
	var heights handler.HeightAdvancer
	if deps.ManualHeight != nil {
		heights = deps.ManualHeight
	}

	handlers := server.Handlers{
		Health:      handler.NewHealthHandler(deps.HeightSource, a.logger),
		Markets:     handler.NewMarketHandler(marketSvc, eng, a.logger),
		Predictions: handler.NewPredictionHandler(eng, a.logger),
		Claims:      handler.NewClaimHandler(eng, a.logger),
		Admin:       handler.NewAdminHandler(eng, heights, deps.AuditStore, deps.BlobReader, a.logger),
		Pool:        handler.NewPoolHandler(eng, deps.Bank, a.logger),
		Events:      handler.NewEventsHandler(deps.SignalBus, a.logger),
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKeyHash:  a.cfg.Server.APIKeyHash,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
	}, handlers, hub, deps.RateLimiter, a.logger)

	g.Go(func() error {
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		a.logger.InfoContext(ctx, "HTTP server shutting down")
		return srv.Shutdown(shutCtx)
	})
}

// startArchiveLoop periodically exports markets that were resolved before the
// retention cutoff to blob storage. One export runs at startup so a long
// interval does not delay the initial backlog.
func (a *App) startArchiveLoop(ctx context.Context, g *errgroup.Group, archiver domain.Archiver) {
	interval := a.cfg.Archive.Interval.Duration
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	retention := a.cfg.Archive.RetentionDays
	if retention <= 0 {
		retention = 30
	}

	runOnce := func() {
		cutoff := time.Now().UTC().AddDate(0, 0, -retention)
		n, err := archiver.ArchiveSettled(ctx, cutoff)
		if err != nil {
			a.logger.ErrorContext(ctx, "archive: export failed",
				slog.String("error", err.Error()),
			)
			return
		}
		if n > 0 {
			a.logger.InfoContext(ctx, "archive: exported settled markets",
				slog.Int64("markets", n),
				slog.Time("cutoff", cutoff),
			)
		}
	}

	g.Go(func() error {
		runOnce()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				runOnce()
			}
		}
	})

	a.logger.InfoContext(ctx, "archive loop started",
		slog.Duration("interval", interval),
		slog.Int("retention_days", retention),
	)
}
