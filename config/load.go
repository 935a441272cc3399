package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads YAML config from path over DefaultAppConfig, then validates
// the merged result.
func Load(path string) (AppConfig, error) {
	cfg := DefaultAppConfig()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadWithEnvOverrides loads config then overrides secrets from env vars,
// so signing material and webhook URLs never need to sit in a config file
// checked into a repo.
func LoadWithEnvOverrides(path string) (AppConfig, error) {
	cfg, err := Load(path)
	if err != nil {
		return cfg, err
	}
	if v := os.Getenv("MM_VENUE_REST_BASE_URL"); v != "" {
		cfg.Venue.RESTBaseURL = v
	}
	if v := os.Getenv("MM_VENUE_WS_BASE_URL"); v != "" {
		cfg.Venue.WSBaseURL = v
	}
	if v := os.Getenv("MM_SIGNING_VAULT_ID"); v != "" {
		cfg.Signing.VaultID = v
	}
	if v := os.Getenv("MM_SIGNING_STARK_PUBLIC_KEY"); v != "" {
		cfg.Signing.StarkPublicKey = v
	}
	if v := os.Getenv("MM_ALERT_WEBHOOK_URL"); v != "" {
		cfg.Alert.WebhookURL = v
	}
	return cfg, Validate(cfg)
}
