package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies KALSHIBOT_* environment variable overrides, and
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

// applyEnvOverrides reads well-known KALSHIBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Kalshi ──
	setStr(&cfg.Kalshi.ApiKey, "KALSHIBOT_KALSHI_API_KEY")
	setStr(&cfg.Kalshi.RsaPrivateKeyPath, "KALSHIBOT_KALSHI_RSA_PRIVATE_KEY_PATH")
	setStr(&cfg.Kalshi.EncryptedKeyPath, "KALSHIBOT_KALSHI_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Kalshi.KeyPassword, "KALSHIBOT_KALSHI_KEY_PASSWORD")
	setStr(&cfg.Kalshi.BaseURL, "KALSHIBOT_KALSHI_BASE_URL")

	// ── Coinbase ──
	setStr(&cfg.Coinbase.RestHost, "KALSHIBOT_COINBASE_REST_HOST")
	setStr(&cfg.Coinbase.WsHost, "KALSHIBOT_COINBASE_WS_HOST")
	setStr(&cfg.Coinbase.ProductID, "KALSHIBOT_COINBASE_PRODUCT_ID")

	// ── Market ──
	setStr(&cfg.Market.Series, "KALSHIBOT_MARKET_SERIES")
	setStr(&cfg.Market.Timezone, "KALSHIBOT_MARKET_TIMEZONE")
	setInt(&cfg.Market.TradingCutoffMinutes, "KALSHIBOT_MARKET_TRADING_CUTOFF_MINUTES")
	setFloat64(&cfg.Market.SpotSanityMin, "KALSHIBOT_MARKET_SPOT_SANITY_MIN")
	setFloat64(&cfg.Market.SpotSanityMax, "KALSHIBOT_MARKET_SPOT_SANITY_MAX")

	// ── Strategy ──
	setFloat64(&cfg.Strategy.MinEdgePct, "KALSHIBOT_STRATEGY_MIN_EDGE_PCT")
	setFloat64(&cfg.Strategy.ExitEdgePct, "KALSHIBOT_STRATEGY_EXIT_EDGE_PCT")
	setFloat64(&cfg.Strategy.EdgeIncreaseThreshold, "KALSHIBOT_STRATEGY_EDGE_INCREASE_THRESHOLD")
	setFloat64(&cfg.Strategy.KellyCap, "KALSHIBOT_STRATEGY_KELLY_CAP")
	setInt(&cfg.Strategy.MaxContracts, "KALSHIBOT_STRATEGY_MAX_CONTRACTS")
	setFloat64(&cfg.Strategy.MaxExposureFraction, "KALSHIBOT_STRATEGY_MAX_EXPOSURE_FRACTION")
	setInt(&cfg.Strategy.MaxSlippageCents, "KALSHIBOT_STRATEGY_MAX_SLIPPAGE_CENTS")
	setInt(&cfg.Strategy.MinVolSamples, "KALSHIBOT_STRATEGY_MIN_VOL_SAMPLES")
	setFloat64(&cfg.Strategy.PaperStartingBalance, "KALSHIBOT_STRATEGY_PAPER_STARTING_BALANCE")
	setInt(&cfg.Strategy.RefreshIntervalSec, "KALSHIBOT_STRATEGY_REFRESH_INTERVAL_SEC")

	// ── Executor ──
	setInt(&cfg.Executor.OrderTimeoutSec, "KALSHIBOT_EXECUTOR_ORDER_TIMEOUT_SEC")
	setInt(&cfg.Executor.PollIntervalSec, "KALSHIBOT_EXECUTOR_POLL_INTERVAL_SEC")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "KALSHIBOT_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "KALSHIBOT_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "KALSHIBOT_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "KALSHIBOT_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "KALSHIBOT_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "KALSHIBOT_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "KALSHIBOT_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "KALSHIBOT_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "KALSHIBOT_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "KALSHIBOT_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "KALSHIBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "KALSHIBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "KALSHIBOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "KALSHIBOT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "KALSHIBOT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "KALSHIBOT_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "KALSHIBOT_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "KALSHIBOT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "KALSHIBOT_S3_REGION")
	setStr(&cfg.S3.Bucket, "KALSHIBOT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "KALSHIBOT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "KALSHIBOT_S3_SECRET_KEY")
	setBool(&cfg.S3.ForcePathStyle, "KALSHIBOT_S3_FORCE_PATH_STYLE")
	setInt(&cfg.S3.RetentionDays, "KALSHIBOT_S3_RETENTION_DAYS")
	setInt(&cfg.S3.ArchiveHourUTC, "KALSHIBOT_S3_ARCHIVE_HOUR_UTC")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "KALSHIBOT_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "KALSHIBOT_SERVER_PORT")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "KALSHIBOT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "KALSHIBOT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "KALSHIBOT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "KALSHIBOT_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "KALSHIBOT_MODE")
	setStr(&cfg.LogLevel, "KALSHIBOT_LOG_LEVEL")
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

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
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
