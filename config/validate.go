package config

import (
	"fmt"
)

// Validate checks every enumerated tunable's documented bound and every
// ambient field a running engine needs. A Validate failure at startup is
// Fatal per the error taxonomy: config invalid halts before any order can
// be placed.
func Validate(cfg AppConfig) error {
	s := cfg.Strategy
	if s.Market == "" {
		return fmt.Errorf("strategy.market_making_market is required")
	}
	if s.NotionalUSD <= 0 {
		return fmt.Errorf("strategy.market_making_notional_usd must be > 0")
	}
	if s.Gamma < 0.001 || s.Gamma > 1.0 {
		return fmt.Errorf("strategy.market_making_gamma must be in [0.001, 1.0], got %v", s.Gamma)
	}
	if s.MinimumSpreadBps <= 0 {
		return fmt.Errorf("strategy.minimum_spread_bps must be > 0")
	}
	if s.TimeHorizonHours <= 0 {
		return fmt.Errorf("strategy.time_horizon_hours must be > 0")
	}
	if s.WindowHours <= 0 {
		return fmt.Errorf("strategy.window_hours must be > 0")
	}
	if s.SpreadCalcIntervalSec <= 0 {
		return fmt.Errorf("strategy.spread_calc_interval_sec must be > 0")
	}
	if s.OrderRefreshIntervalSec <= 0 {
		return fmt.Errorf("strategy.order_refresh_interval_sec must be > 0")
	}
	if s.RepricingThresholdBps <= 0 {
		return fmt.Errorf("strategy.repricing_threshold_bps must be > 0")
	}
	if s.ForceReplaceIntervalSec <= 0 {
		return fmt.Errorf("strategy.force_replace_interval_sec must be > 0")
	}
	switch s.KEstimationMethod {
	case "simple", "virtual", "depth":
	default:
		return fmt.Errorf("strategy.k_estimation_method must be one of simple|virtual|depth, got %q", s.KEstimationMethod)
	}
	if s.KMinSamplesPerLevel <= 0 {
		return fmt.Errorf("strategy.k_min_samples_per_level must be > 0")
	}
	switch s.SigmaEstimationMethod {
	case "simple", "garch", "garch_t", "external":
	default:
		return fmt.Errorf("strategy.sigma_estimation_method must be one of simple|garch|garch_t|external, got %q", s.SigmaEstimationMethod)
	}
	if s.SigmaEstimationMethod == "external" && s.SigmaOraclePath == "" {
		return fmt.Errorf("strategy.sigma_oracle_path is required when sigma_estimation_method is external")
	}
	if s.RestBackupIntervalSec <= 0 {
		return fmt.Errorf("strategy.rest_backup_interval_sec must be > 0")
	}
	if s.ShutdownGraceSec <= 0 {
		return fmt.Errorf("strategy.shutdown_grace_sec must be > 0")
	}

	r := cfg.Risk
	if r.MaxOrderNotionalUSD < 0 {
		return fmt.Errorf("risk.max_order_notional_usd must be >= 0")
	}
	if r.MaxInventorySkew < 0 {
		return fmt.Errorf("risk.max_inventory_skew must be >= 0")
	}

	v := cfg.Venue
	if v.RESTBaseURL == "" {
		return fmt.Errorf("venue.rest_base_url is required")
	}
	if v.WSBaseURL == "" {
		return fmt.Errorf("venue.ws_base_url is required")
	}
	if v.RateLimitPerSec <= 0 {
		return fmt.Errorf("venue.rate_limit_per_sec must be > 0")
	}
	if v.RateLimitBurst <= 0 {
		return fmt.Errorf("venue.rate_limit_burst must be > 0")
	}

	sg := cfg.Signing
	if sg.OracleBinaryPath == "" {
		return fmt.Errorf("signing.oracle_binary_path is required")
	}
	switch sg.Chain {
	case "SN_MAIN", "SN_SEPOLIA":
	default:
		return fmt.Errorf("signing.chain must be SN_MAIN or SN_SEPOLIA, got %q", sg.Chain)
	}
	if sg.VaultID == "" {
		return fmt.Errorf("signing.vault_id is required")
	}
	if sg.StarkPublicKey == "" {
		return fmt.Errorf("signing.stark_public_key is required")
	}
	if sg.FeeRate < 0 {
		return fmt.Errorf("signing.fee_rate must be >= 0")
	}
	switch sg.TimeInForce {
	case "GTC", "IOC":
	default:
		return fmt.Errorf("signing.time_in_force must be GTC or IOC, got %q", sg.TimeInForce)
	}
	if sg.ExpirySec <= 0 {
		return fmt.Errorf("signing.expiry_sec must be > 0")
	}
	if sg.ClientOrderIDPrefix == "" {
		return fmt.Errorf("signing.client_order_id_prefix is required")
	}
	if sg.OrderPollTimeoutSec <= 0 {
		return fmt.Errorf("signing.order_poll_timeout_sec must be > 0")
	}

	p := cfg.Persistence
	if p.PnLStatePath == "" {
		return fmt.Errorf("persistence.pnl_state_path is required")
	}
	if p.ResumeCursorPath == "" {
		return fmt.Errorf("persistence.resume_cursor_path is required")
	}
	if p.ResumeCursorMinUpdates <= 0 {
		return fmt.Errorf("persistence.resume_cursor_min_updates must be > 0")
	}
	if p.ResumeCursorMinIntervalSec <= 0 {
		return fmt.Errorf("persistence.resume_cursor_min_interval_sec must be > 0")
	}

	a := cfg.Archive
	if a.TradesPath == "" {
		return fmt.Errorf("archive.trades_path is required")
	}
	if a.SnapshotsPath == "" {
		return fmt.Errorf("archive.snapshots_path is required")
	}
	if a.FlushIntervalSec <= 0 {
		return fmt.Errorf("archive.flush_interval_sec must be > 0")
	}

	if cfg.Metrics.ListenAddr == "" {
		return fmt.Errorf("metrics.listen_addr is required")
	}
	if cfg.Alert.ThrottleIntervalSec <= 0 {
		return fmt.Errorf("alert.throttle_interval_sec must be > 0")
	}

	return nil
}
