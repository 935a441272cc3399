package config

import (
	"context"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads AppConfig from disk whenever Path changes, debounced by
// Cooldown so a burst of writes from an editor doesn't reload repeatedly.
// Generalizes internal/config/hot_reload.go's fsnotify watcher loop,
// replacing its map[string]interface{} validator/applier registry with a
// single typed reload: the caller decides, via ApplyTunables, which fields
// of the freshly parsed config are safe to adopt live.
type Watcher struct {
	Path     string
	Cooldown time.Duration
}

// Start watches Path until ctx is cancelled, invoking onUpdate with each
// successfully parsed and validated reload. A parse or validation failure
// is skipped silently (nothing is logged and onUpdate is not called) and
// Start keeps watching, since a malformed edit-in-progress config file must
// never crash the running engine.
func (w Watcher) Start(ctx context.Context, onUpdate func(AppConfig)) error {
	if w.Cooldown <= 0 {
		w.Cooldown = 2 * time.Second
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.Path); err != nil {
		return fmt.Errorf("watch config path %s: %w", w.Path, err)
	}

	var lastReload time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if time.Since(lastReload) < w.Cooldown {
				continue
			}
			cfg, err := LoadWithEnvOverrides(w.Path)
			if err != nil {
				continue
			}
			lastReload = time.Now()
			if onUpdate != nil {
				onUpdate(cfg)
			}
		case _, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
		}
	}
}

// ApplyTunables returns base with only the non-identity strategy tunables
// overwritten from incoming: gamma, spread/interval/threshold knobs,
// estimation method selection, ping-pong and trading toggles. Market
// identity, venue connectivity, signing material, and file paths never
// change without a restart.
func ApplyTunables(base, incoming AppConfig) AppConfig {
	out := base
	out.Strategy.NotionalUSD = incoming.Strategy.NotionalUSD
	out.Strategy.Gamma = incoming.Strategy.Gamma
	out.Strategy.MinimumSpreadBps = incoming.Strategy.MinimumSpreadBps
	out.Strategy.TimeHorizonHours = incoming.Strategy.TimeHorizonHours
	out.Strategy.WindowHours = incoming.Strategy.WindowHours
	out.Strategy.SpreadCalcIntervalSec = incoming.Strategy.SpreadCalcIntervalSec
	out.Strategy.OrderRefreshIntervalSec = incoming.Strategy.OrderRefreshIntervalSec
	out.Strategy.RepricingThresholdBps = incoming.Strategy.RepricingThresholdBps
	out.Strategy.ForceReplaceIntervalSec = incoming.Strategy.ForceReplaceIntervalSec
	out.Strategy.KEstimationMethod = incoming.Strategy.KEstimationMethod
	out.Strategy.KMinSamplesPerLevel = incoming.Strategy.KMinSamplesPerLevel
	out.Strategy.SigmaEstimationMethod = incoming.Strategy.SigmaEstimationMethod
	out.Strategy.PingPongEnabled = incoming.Strategy.PingPongEnabled
	out.Strategy.RestBackupIntervalSec = incoming.Strategy.RestBackupIntervalSec
	out.Strategy.TradingEnabled = incoming.Strategy.TradingEnabled
	return out
}
