package config

import (
	"context"
	"os"
	"testing"
	"time"
)

func TestWatcherTriggersOnChange(t *testing.T) {
	path := writeTempConfig(t, validConfigYAML)

	w := Watcher{Path: path, Cooldown: time.Millisecond}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := make(chan AppConfig, 1)
	go func() {
		_ = w.Start(ctx, func(cfg AppConfig) { ch <- cfg })
	}()

	// Give the watcher time to register before the edit.
	time.Sleep(50 * time.Millisecond)
	updated := validConfigYAML + "\n"
	if err := os.WriteFile(path, []byte(updated+"# touch\n"), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	select {
	case cfg := <-ch:
		if cfg.Strategy.Market != "ETH-USD" {
			t.Fatalf("unexpected reloaded config: %+v", cfg.Strategy)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("expected update callback after file change")
	}
}

func TestWatcherStopsOnContextCancel(t *testing.T) {
	path := writeTempConfig(t, validConfigYAML)
	w := Watcher{Path: path, Cooldown: time.Millisecond}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := w.Start(ctx, nil); err == nil {
		t.Fatalf("expected context cancellation error")
	}
}

func TestApplyTunablesLeavesIdentityFieldsAlone(t *testing.T) {
	base := DefaultAppConfig()
	base.Strategy.Market = "ETH-USD"
	base.Venue.RESTBaseURL = "https://api.test"
	base.Signing.VaultID = "1"

	incoming := base
	incoming.Strategy.Market = "BTC-USD" // identity change must be ignored
	incoming.Venue.RESTBaseURL = "https://evil.test"
	incoming.Strategy.Gamma = 0.5
	incoming.Strategy.TradingEnabled = false

	out := ApplyTunables(base, incoming)
	if out.Strategy.Market != "ETH-USD" {
		t.Fatalf("expected market identity preserved, got %s", out.Strategy.Market)
	}
	if out.Venue.RESTBaseURL != "https://api.test" {
		t.Fatalf("expected venue base URL preserved, got %s", out.Venue.RESTBaseURL)
	}
	if out.Strategy.Gamma != 0.5 {
		t.Fatalf("expected gamma tunable to update, got %v", out.Strategy.Gamma)
	}
	if out.Strategy.TradingEnabled {
		t.Fatalf("expected trading_enabled tunable to update to false")
	}
}
