package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies UPDOWND_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known UPDOWND_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Engine ──
	setStr(&cfg.Engine.Owner, "UPDOWND_ENGINE_OWNER")
	setStr(&cfg.Engine.Oracle, "UPDOWND_ENGINE_ORACLE")
	setUint64(&cfg.Engine.MinStake, "UPDOWND_ENGINE_MIN_STAKE")
	setUint64(&cfg.Engine.FeePercent, "UPDOWND_ENGINE_FEE_PERCENT")

	// ── Height ──
	setStr(&cfg.Height.Source, "UPDOWND_HEIGHT_SOURCE")
	setUint64(&cfg.Height.Start, "UPDOWND_HEIGHT_START")
	setDuration(&cfg.Height.BlockInterval, "UPDOWND_HEIGHT_BLOCK_INTERVAL")
	setStr(&cfg.Height.Genesis, "UPDOWND_HEIGHT_GENESIS")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "UPDOWND_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "UPDOWND_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "UPDOWND_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "UPDOWND_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "UPDOWND_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "UPDOWND_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "UPDOWND_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "UPDOWND_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "UPDOWND_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "UPDOWND_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "UPDOWND_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "UPDOWND_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "UPDOWND_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "UPDOWND_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "UPDOWND_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "UPDOWND_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "UPDOWND_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "UPDOWND_S3_REGION")
	setStr(&cfg.S3.Bucket, "UPDOWND_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "UPDOWND_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "UPDOWND_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "UPDOWND_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "UPDOWND_S3_FORCE_PATH_STYLE")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "UPDOWND_ARCHIVE_ENABLED")
	setDuration(&cfg.Archive.Interval, "UPDOWND_ARCHIVE_INTERVAL")
	setInt(&cfg.Archive.RetentionDays, "UPDOWND_ARCHIVE_RETENTION_DAYS")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "UPDOWND_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "UPDOWND_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "UPDOWND_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKeyHash, "UPDOWND_SERVER_API_KEY_HASH")
	setInt(&cfg.Server.RateLimit, "UPDOWND_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "UPDOWND_SERVER_RATE_WINDOW")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "UPDOWND_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "UPDOWND_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "UPDOWND_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "UPDOWND_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "UPDOWND_MODE")
	setStr(&cfg.LogLevel, "UPDOWND_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setUint64(dst *uint64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
