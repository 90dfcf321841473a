package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	s3blob "github.com/updownlabs/updownd/internal/blob/s3"
	memcache "github.com/updownlabs/updownd/internal/cache/memory"
	"github.com/updownlabs/updownd/internal/cache/redis"
	"github.com/updownlabs/updownd/internal/config"
	"github.com/updownlabs/updownd/internal/domain"
	"github.com/updownlabs/updownd/internal/height"
	"github.com/updownlabs/updownd/internal/notify"
	"github.com/updownlabs/updownd/internal/store/memory"
	"github.com/updownlabs/updownd/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency that the application
// modes need to operate. It is constructed by Wire and torn down by the
// returned cleanup function.
type Dependencies struct {
	// Stores
	MarketStore     domain.MarketStore
	PredictionStore domain.PredictionStore
	ParamsStore     domain.ParamsStore
	AuditStore      domain.AuditStore
	Bank            domain.Bank

	// SettledMarkets is non-nil when the market store supports archival
	// queries.
	SettledMarkets domain.SettledMarketStore

	// Height
	HeightSource domain.HeightSource
	// ManualHeight is non-nil when the height source is manually driven.
	ManualHeight *height.Manual

	// Caches
	MarketCache domain.MarketCache
	RateLimiter domain.RateLimiter
	LockManager domain.LockManager
	SignalBus   domain.SignalBus

	// Blob storage
	BlobWriter domain.BlobWriter
	BlobReader domain.BlobReader
	Archiver   domain.Archiver

	// Notifications
	Notifier *notify.Notifier
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
//
// Server mode uses PostgreSQL, Redis, and optionally S3; sandbox mode runs
// entirely on in-memory substitutes.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}
	sandbox := strings.ToLower(cfg.Mode) == "sandbox"

	// --- Stores ---
	if sandbox {
		st := memory.NewStore()
		marketStore := memory.NewMarketStore(st)
		deps.MarketStore = marketStore
		deps.PredictionStore = memory.NewPredictionStore(st)
		deps.ParamsStore = memory.NewParamsStore(st)
		deps.AuditStore = memory.NewAuditStore(st)
		deps.Bank = memory.NewBank(st)
		deps.SettledMarkets = marketStore

		// No cache layer in sandbox; reads hit the in-memory store directly.
		deps.LockManager = memcache.NewLockManager()
		deps.SignalBus = memcache.NewSignalBus()
	} else {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		marketStore := postgres.NewMarketStore(pool)
		deps.MarketStore = marketStore
		deps.PredictionStore = postgres.NewPredictionStore(pool)
		deps.ParamsStore = postgres.NewParamsStore(pool)
		deps.AuditStore = postgres.NewAuditStore(pool)
		deps.Bank = postgres.NewAccountStore(pool)
		deps.SettledMarkets = marketStore

		// --- Redis ---
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.MarketCache = redis.NewMarketCache(redisClient)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		deps.LockManager = redis.NewLockManager(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient)
	}

	// --- Height source ---
	switch strings.ToLower(cfg.Height.Source) {
	case "manual":
		manual := height.NewManual(cfg.Height.Start)
		deps.HeightSource = manual
		deps.ManualHeight = manual
	case "interval":
		genesis := time.Now().UTC()
		if cfg.Height.Genesis != "" {
			t, err := time.Parse(time.RFC3339, cfg.Height.Genesis)
			if err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: parse genesis: %w", err)
			}
			genesis = t
		}
		interval, err := height.NewInterval(genesis, cfg.Height.BlockInterval.Duration, cfg.Height.Start)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: interval height: %w", err)
		}
		deps.HeightSource = interval
	default:
		cleanup()
		return nil, nil, fmt.Errorf("wire: unknown height source %q", cfg.Height.Source)
	}

	// --- S3 blob storage (server mode with archive enabled) ---
	if !sandbox && cfg.Archive.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		if err := s3Client.Health(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.BlobWriter = s3blob.NewWriter(s3Client)
		deps.BlobReader = s3blob.NewReader(s3Client)
		deps.Archiver = s3blob.NewArchiver(
			deps.BlobWriter,
			deps.SettledMarkets,
			deps.PredictionStore,
			deps.AuditStore,
		)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
