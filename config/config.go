// Package config loads and validates the market-making engine's runtime
// configuration from YAML, with environment overrides for secrets and an
// fsnotify-driven hot-reload path for tunables that are safe to change
// without a restart.
package config

import "perpmm/infrastructure/logger"

// AppConfig is the complete configuration surface: the enumerated
// market-making tunables plus the ambient stack (venue connectivity,
// signing, persistence, archiving, logging, metrics).
type AppConfig struct {
	Strategy    StrategyConfig    `yaml:"strategy"`
	Risk        RiskConfig        `yaml:"risk"`
	Venue       VenueConfig       `yaml:"venue"`
	Signing     SigningConfig     `yaml:"signing"`
	Persistence PersistenceConfig `yaml:"persistence"`
	Archive     ArchiveConfig     `yaml:"archive"`
	Logger      logger.Config     `yaml:"logger"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Alert       AlertConfig       `yaml:"alert"`
}

// StrategyConfig holds the quoting tunables for one market.
type StrategyConfig struct {
	Market                   string  `yaml:"market_making_market"`
	NotionalUSD              float64 `yaml:"market_making_notional_usd"`
	Gamma                    float64 `yaml:"market_making_gamma"`
	MinimumSpreadBps         float64 `yaml:"minimum_spread_bps"`
	TimeHorizonHours         float64 `yaml:"time_horizon_hours"`
	WindowHours              float64 `yaml:"window_hours"`
	SpreadCalcIntervalSec    float64 `yaml:"spread_calc_interval_sec"`
	OrderRefreshIntervalSec  float64 `yaml:"order_refresh_interval_sec"`
	RepricingThresholdBps    float64 `yaml:"repricing_threshold_bps"`
	ForceReplaceIntervalSec  float64 `yaml:"force_replace_interval_sec"`
	KEstimationMethod        string  `yaml:"k_estimation_method"`
	KMinSamplesPerLevel      int     `yaml:"k_min_samples_per_level"`
	SigmaEstimationMethod    string  `yaml:"sigma_estimation_method"`
	SigmaOraclePath          string  `yaml:"sigma_oracle_path"`
	PingPongEnabled          bool    `yaml:"ping_pong_enabled"`
	RestBackupIntervalSec    float64 `yaml:"rest_backup_interval_sec"`
	TradingEnabled           bool    `yaml:"trading_enabled"`
	ShutdownGraceSec         float64 `yaml:"shutdown_grace_sec"`
}

// RiskConfig bounds what a single quote cycle may expose. Zero disables a
// limit.
type RiskConfig struct {
	MaxOrderNotionalUSD float64 `yaml:"max_order_notional_usd"`
	MaxInventorySkew    float64 `yaml:"max_inventory_skew"`
}

// VenueConfig is the REST/WebSocket connectivity surface.
type VenueConfig struct {
	RESTBaseURL     string  `yaml:"rest_base_url"`
	WSBaseURL       string  `yaml:"ws_base_url"`
	RecvWindowMs    int     `yaml:"recv_window_ms"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
}

// SigningConfig carries the order-signing parameters the signing oracle
// contract requires on every POST /orders: chain id, vault id, Stark
// public key, fee rate, time-in-force, and order expiry.
type SigningConfig struct {
	OracleBinaryPath    string  `yaml:"oracle_binary_path"`
	Chain               string  `yaml:"chain"` // SN_MAIN or SN_SEPOLIA
	VaultID             string  `yaml:"vault_id"`
	StarkPublicKey      string  `yaml:"stark_public_key"`
	FeeRate             float64 `yaml:"fee_rate"`
	TimeInForce         string  `yaml:"time_in_force"` // GTC or IOC
	ExpirySec           int64   `yaml:"expiry_sec"`
	ClientOrderIDPrefix string  `yaml:"client_order_id_prefix"`
	OrderPollTimeoutSec float64 `yaml:"order_poll_timeout_sec"`
}

// PersistenceConfig locates the cross-restart state files: the P&L anchor
// and the feed-resume cursor, plus the cursor's batching thresholds.
type PersistenceConfig struct {
	PnLStatePath               string  `yaml:"pnl_state_path"`
	ResumeCursorPath           string  `yaml:"resume_cursor_path"`
	ResumeCursorMinUpdates     int     `yaml:"resume_cursor_min_updates"`
	ResumeCursorMinIntervalSec float64 `yaml:"resume_cursor_min_interval_sec"`
}

// ArchiveConfig locates the CSV archive files for trades and book
// snapshots, and their shared flush cadence.
type ArchiveConfig struct {
	TradesPath       string  `yaml:"trades_path"`
	SnapshotsPath    string  `yaml:"snapshots_path"`
	FlushIntervalSec float64 `yaml:"flush_interval_sec"`
}

// MetricsConfig is the Prometheus exposition listen address.
type MetricsConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// AlertConfig configures emergency notification on Auth/Fatal errors.
type AlertConfig struct {
	WebhookURL          string  `yaml:"webhook_url"`
	ThrottleIntervalSec float64 `yaml:"throttle_interval_sec"`
}

// DefaultAppConfig returns the engine defaults
// (force_replace_interval=60s, rest_backup_interval=2s, etc.) so a config
// file only needs to specify what differs.
func DefaultAppConfig() AppConfig {
	return AppConfig{
		Strategy: StrategyConfig{
			SpreadCalcIntervalSec:   60,
			OrderRefreshIntervalSec: 0.25,
			ForceReplaceIntervalSec: 60,
			KEstimationMethod:       "depth",
			KMinSamplesPerLevel:     5,
			SigmaEstimationMethod:   "garch_t",
			RestBackupIntervalSec:   2,
			TradingEnabled:          true,
			ShutdownGraceSec:        5,
			WindowHours:             24,
		},
		Venue: VenueConfig{
			RecvWindowMs:    5000,
			RateLimitPerSec: 10,
			RateLimitBurst:  20,
		},
		Signing: SigningConfig{
			Chain:               "SN_MAIN",
			TimeInForce:         "GTC",
			ExpirySec:           3600,
			ClientOrderIDPrefix: "mm",
			OrderPollTimeoutSec: 5,
		},
		Persistence: PersistenceConfig{
			PnLStatePath:               "pnl_state.json",
			ResumeCursorPath:           "resume_cursor.json",
			ResumeCursorMinUpdates:     10,
			ResumeCursorMinIntervalSec: 1,
		},
		Archive: ArchiveConfig{
			TradesPath:       "archive/trades.csv",
			SnapshotsPath:    "archive/snapshots.csv",
			FlushIntervalSec: 1,
		},
		Logger:  logger.DefaultConfig(),
		Metrics: MetricsConfig{ListenAddr: ":9090"},
		Alert:   AlertConfig{ThrottleIntervalSec: 30},
	}
}
