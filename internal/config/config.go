// Package config defines the top-level configuration for the kalshi bot and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by KALSHIBOT_* environment variables.
type Config struct {
	Kalshi   KalshiConfig   `toml:"kalshi"`
	Coinbase CoinbaseConfig `toml:"coinbase"`
	Market   MarketConfig   `toml:"market"`
	Strategy StrategyConfig `toml:"strategy"`
	Executor ExecutorConfig `toml:"executor"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// KalshiConfig holds Kalshi exchange API credentials.
type KalshiConfig struct {
	ApiKey            string `toml:"api_key"`
	RsaPrivateKeyPath string `toml:"rsa_private_key_path"`
	EncryptedKeyPath  string `toml:"encrypted_key_path"`
	KeyPassword       string `toml:"key_password"`
	BaseURL           string `toml:"base_url"`
}

// CoinbaseConfig holds Coinbase market-data endpoints.
type CoinbaseConfig struct {
	RestHost  string `toml:"rest_host"`
	WsHost    string `toml:"ws_host"`
	ProductID string `toml:"product_id"`
}

// MarketConfig describes the contract series being traded.
type MarketConfig struct {
	// Series is the Kalshi series ticker for hourly BTC settlement markets.
	Series string `toml:"series"`
	// Timezone is the IANA zone the exchange uses to stamp event tickers.
	Timezone string `toml:"timezone"`
	// TradingCutoffMinutes stops entries when fewer minutes remain before
	// settlement.
	TradingCutoffMinutes int `toml:"trading_cutoff_minutes"`
	// SpotSanityMin / SpotSanityMax bound plausible BTC spot prices.
	SpotSanityMin float64 `toml:"spot_sanity_min"`
	SpotSanityMax float64 `toml:"spot_sanity_max"`
}

// StrategyConfig holds the edge-model and risk parameters.
type StrategyConfig struct {
	MinEdgePct            float64 `toml:"min_edge_pct"`
	ExitEdgePct           float64 `toml:"exit_edge_pct"`
	EdgeIncreaseThreshold float64 `toml:"edge_increase_threshold"`
	KellyCap              float64 `toml:"kelly_cap"`
	MaxContracts          int     `toml:"max_contracts"`
	MaxExposureFraction   float64 `toml:"max_exposure_fraction"`
	MaxSlippageCents      int     `toml:"max_slippage_cents"`
	MinVolSamples         int     `toml:"min_vol_samples"`
	PaperStartingBalance  float64 `toml:"paper_starting_balance"`
	RefreshIntervalSec    int     `toml:"refresh_interval_sec"`
}

// ExecutorConfig holds order lifecycle timing parameters.
type ExecutorConfig struct {
	OrderTimeoutSec int `toml:"order_timeout_sec"`
	PollIntervalSec int `toml:"poll_interval_sec"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for trade archives.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	ForcePathStyle bool   `toml:"force_path_style"`
	RetentionDays  int    `toml:"retention_days"`
	// ArchiveHourUTC is the UTC hour (0-23) at which the daily archive run
	// starts.
	ArchiveHourUTC int `toml:"archive_hour_utc"`
}

// ServerConfig holds the health/metrics HTTP server parameters.
type ServerConfig struct {
	Enabled bool `toml:"enabled"`
	Port    int  `toml:"port"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// RefreshInterval returns the decision-cycle period as a time.Duration.
func (s StrategyConfig) RefreshInterval() time.Duration {
	return time.Duration(s.RefreshIntervalSec) * time.Second
}

// OrderTimeout returns the fill-wait deadline as a time.Duration.
func (e ExecutorConfig) OrderTimeout() time.Duration {
	return time.Duration(e.OrderTimeoutSec) * time.Second
}

// PollInterval returns the fill-poll period as a time.Duration.
func (e ExecutorConfig) PollInterval() time.Duration {
	return time.Duration(e.PollIntervalSec) * time.Second
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Kalshi: KalshiConfig{
			BaseURL: "https://api.elections.kalshi.com/trade-api/v2",
		},
		Coinbase: CoinbaseConfig{
			RestHost:  "https://api.coinbase.com",
			WsHost:    "wss://ws-feed.exchange.coinbase.com",
			ProductID: "BTC-USD",
		},
		Market: MarketConfig{
			Series:               "KXBTCD",
			Timezone:             "America/New_York",
			TradingCutoffMinutes: 15,
			SpotSanityMin:        10_000,
			SpotSanityMax:        500_000,
		},
		Strategy: StrategyConfig{
			MinEdgePct:            10.0,
			ExitEdgePct:           1.0,
			EdgeIncreaseThreshold: 5.0,
			KellyCap:              0.25,
			MaxContracts:          10,
			MaxExposureFraction:   0.50,
			MaxSlippageCents:      5,
			MinVolSamples:         10,
			PaperStartingBalance:  200.0,
			RefreshIntervalSec:    10,
		},
		Executor: ExecutorConfig{
			OrderTimeoutSec: 30,
			PollIntervalSec: 2,
		},
		Postgres: PostgresConfig{
			DSN:           "",
			Host:          "localhost",
			Port:          5432,
			Database:      "kalshibot",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "kalshibot-data",
			ForcePathStyle: true,
			RetentionDays:  90,
			ArchiveHourUTC: 3,
		},
		Server: ServerConfig{
			Enabled: true,
			Port:    8000,
		},
		Notify: NotifyConfig{
			Events: []string{"position_opened", "position_added", "position_closed", "liquidation_unconfirmed", "error"},
		},
		Mode:     "paper",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"paper": true,
	"live":  true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// Mode
	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: paper, live)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Kalshi — credentials are mandatory in live mode. Paper mode still reads
	// real quotes, so the base URL must always be set.
	if c.Kalshi.BaseURL == "" {
		errs = append(errs, "kalshi: base_url must not be empty")
	}
	if strings.ToLower(c.Mode) == "live" {
		if c.Kalshi.ApiKey == "" {
			errs = append(errs, "kalshi: api_key is required for live mode")
		}
		if c.Kalshi.RsaPrivateKeyPath == "" && c.Kalshi.EncryptedKeyPath == "" {
			errs = append(errs, "kalshi: either rsa_private_key_path or encrypted_key_path must be set for live mode")
		}
		if c.Kalshi.EncryptedKeyPath != "" && c.Kalshi.KeyPassword == "" {
			errs = append(errs, "kalshi: key_password is required when encrypted_key_path is set")
		}
	}

	// Coinbase
	if c.Coinbase.RestHost == "" {
		errs = append(errs, "coinbase: rest_host must not be empty")
	}
	if c.Coinbase.ProductID == "" {
		errs = append(errs, "coinbase: product_id must not be empty")
	}

	// Market
	if c.Market.Series == "" {
		errs = append(errs, "market: series must not be empty")
	}
	if c.Market.TradingCutoffMinutes < 0 || c.Market.TradingCutoffMinutes >= 60 {
		errs = append(errs, fmt.Sprintf("market: trading_cutoff_minutes must be 0-59, got %d", c.Market.TradingCutoffMinutes))
	}
	if c.Market.SpotSanityMin <= 0 || c.Market.SpotSanityMax <= c.Market.SpotSanityMin {
		errs = append(errs, "market: spot sanity bounds must satisfy 0 < min < max")
	}

	// Strategy
	if c.Strategy.MinEdgePct <= 0 {
		errs = append(errs, "strategy: min_edge_pct must be > 0")
	}
	if c.Strategy.ExitEdgePct < 0 || c.Strategy.ExitEdgePct >= c.Strategy.MinEdgePct {
		errs = append(errs, "strategy: exit_edge_pct must be >= 0 and below min_edge_pct")
	}
	if c.Strategy.KellyCap <= 0 || c.Strategy.KellyCap > 1 {
		errs = append(errs, fmt.Sprintf("strategy: kelly_cap must be in (0, 1], got %g", c.Strategy.KellyCap))
	}
	if c.Strategy.MaxContracts < 1 {
		errs = append(errs, "strategy: max_contracts must be >= 1")
	}
	if c.Strategy.MaxExposureFraction <= 0 || c.Strategy.MaxExposureFraction > 1 {
		errs = append(errs, fmt.Sprintf("strategy: max_exposure_fraction must be in (0, 1], got %g", c.Strategy.MaxExposureFraction))
	}
	if c.Strategy.MaxSlippageCents < 0 {
		errs = append(errs, "strategy: max_slippage_cents must be >= 0")
	}
	if c.Strategy.MinVolSamples < 2 {
		errs = append(errs, "strategy: min_vol_samples must be >= 2")
	}
	if c.Strategy.RefreshIntervalSec < 1 {
		errs = append(errs, "strategy: refresh_interval_sec must be >= 1")
	}
	if strings.ToLower(c.Mode) == "paper" && c.Strategy.PaperStartingBalance <= 0 {
		errs = append(errs, "strategy: paper_starting_balance must be > 0 for paper mode")
	}

	// Executor
	if c.Executor.OrderTimeoutSec < 1 {
		errs = append(errs, "executor: order_timeout_sec must be >= 1")
	}
	if c.Executor.PollIntervalSec < 1 || c.Executor.PollIntervalSec > c.Executor.OrderTimeoutSec {
		errs = append(errs, "executor: poll_interval_sec must be >= 1 and not exceed order_timeout_sec")
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when enabled")
		}
		if c.S3.ArchiveHourUTC < 0 || c.S3.ArchiveHourUTC > 23 {
			errs = append(errs, fmt.Sprintf("s3: archive_hour_utc must be 0-23, got %d", c.S3.ArchiveHourUTC))
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
