package config

import (
	"testing"
	"time"

	env "github.com/caarlos0/env/v11"
)

func TestAppConfig_Defaults(t *testing.T) {
	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("env.Parse: %v", err)
	}
	cfg.Sanitize()

	if cfg.HTTP.Addr != ":8080" {
		t.Errorf("HTTP.Addr = %q, want :8080", cfg.HTTP.Addr)
	}
	if cfg.Postgres.Port != 5432 {
		t.Errorf("Postgres.Port = %d, want 5432", cfg.Postgres.Port)
	}
	if cfg.Redis.Enabled() {
		t.Error("Redis should be disabled by default")
	}
	if cfg.Poller.Interval != 2500*time.Millisecond {
		t.Errorf("Poller.Interval = %v, want 2.5s", cfg.Poller.Interval)
	}
	if cfg.Poller.Ceiling != 5*time.Minute {
		t.Errorf("Poller.Ceiling = %v, want 5m", cfg.Poller.Ceiling)
	}
	if cfg.Delivery.Lease != 5*time.Minute {
		t.Errorf("Delivery.Lease = %v, want 5m", cfg.Delivery.Lease)
	}
	if cfg.Provider.MaxAttempts != 3 {
		t.Errorf("Provider.MaxAttempts = %d, want 3", cfg.Provider.MaxAttempts)
	}
}

func TestAppConfig_EnvOverrides(t *testing.T) {
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("REDIS_ADDR", "cache.internal:6379")
	t.Setenv("PROVIDER_BASE_URL", "https://api.provider.example/")
	t.Setenv("POLLER_CEILING", "10m")
	t.Setenv("SINK_WEBHOOK_URL", " https://hooks.example/relay ")

	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("env.Parse: %v", err)
	}
	cfg.Sanitize()

	if cfg.Postgres.Host != "db.internal" {
		t.Errorf("Postgres.Host = %q", cfg.Postgres.Host)
	}
	if !cfg.Redis.Enabled() || cfg.Redis.Addr != "cache.internal:6379" {
		t.Errorf("Redis.Addr = %q", cfg.Redis.Addr)
	}
	if cfg.Provider.BaseURL != "https://api.provider.example" {
		t.Errorf("Provider.BaseURL = %q, trailing slash should be stripped", cfg.Provider.BaseURL)
	}
	if cfg.Poller.Ceiling != 10*time.Minute {
		t.Errorf("Poller.Ceiling = %v, want 10m", cfg.Poller.Ceiling)
	}
	if cfg.Sink.WebhookURL != "https://hooks.example/relay" {
		t.Errorf("Sink.WebhookURL = %q, should be trimmed", cfg.Sink.WebhookURL)
	}
}

func TestSanitize_Guardrails(t *testing.T) {
	cfg := AppConfig{
		Provider: ProviderConfig{MaxAttempts: -1},
		Poller:   PollerConfig{Interval: -time.Second, MaxFetchFailures: 0},
		Delivery: DeliveryConfig{Lease: 0},
	}
	cfg.Sanitize()

	if cfg.Provider.MaxAttempts != 1 {
		t.Errorf("Provider.MaxAttempts = %d, want 1", cfg.Provider.MaxAttempts)
	}
	if cfg.Poller.Interval != 2500*time.Millisecond {
		t.Errorf("Poller.Interval = %v", cfg.Poller.Interval)
	}
	if cfg.Poller.MaxFetchFailures != 5 {
		t.Errorf("Poller.MaxFetchFailures = %d, want 5", cfg.Poller.MaxFetchFailures)
	}
	if cfg.Delivery.Lease != 5*time.Minute {
		t.Errorf("Delivery.Lease = %v, want 5m", cfg.Delivery.Lease)
	}
}

func TestDetectDevMode(t *testing.T) {
	t.Setenv("NODE_ENV", "development")

	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("env.Parse: %v", err)
	}
	cfg.Sanitize()

	if !cfg.IsDev {
		t.Error("NODE_ENV=development should enable dev mode")
	}
}
