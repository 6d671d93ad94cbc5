package config

import (
	"strings"
	"time"
)

// ProviderConfig contains compute provider client configuration.
type ProviderConfig struct {
	// BaseURL is the provider API root, e.g. "https://api.provider.example".
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:9090"`

	// APIKey authenticates submit and status calls.
	APIKey string `env:"API_KEY" envDefault:""`

	// Timeout bounds each individual HTTP request to the provider.
	Timeout time.Duration `env:"TIMEOUT" envDefault:"30s"`

	// MaxAttempts caps transport-level retries per call.
	MaxAttempts int `env:"MAX_ATTEMPTS" envDefault:"3"`

	// Backoff is the initial retry backoff; it doubles per attempt.
	Backoff time.Duration `env:"BACKOFF" envDefault:"500ms"`
}

// Sanitize applies guardrails to provider configuration values.
func (c *ProviderConfig) Sanitize() {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxAttempts < 1 {
		c.MaxAttempts = 1
	}
	if c.Backoff <= 0 {
		c.Backoff = 500 * time.Millisecond
	}
}
