package config

import (
	"strings"
	"time"
)

// PollerConfig contains per-job polling loop configuration.
type PollerConfig struct {
	// Interval between provider status fetches.
	Interval time.Duration `env:"INTERVAL" envDefault:"2500ms"`

	// Ceiling is the wall-clock budget since submission before a job is
	// marked timeout.
	Ceiling time.Duration `env:"CEILING" envDefault:"5m"`

	// HeartbeatInterval throttles owner-facing progress notes.
	HeartbeatInterval time.Duration `env:"HEARTBEAT_INTERVAL" envDefault:"12s"`

	// MaxFetchFailures is how many consecutive transient fetch failures are
	// tolerated before the job is failed.
	MaxFetchFailures int `env:"MAX_FETCH_FAILURES" envDefault:"5"`
}

// Sanitize applies guardrails to poller configuration values.
func (c *PollerConfig) Sanitize() {
	if c.Interval <= 0 {
		c.Interval = 2500 * time.Millisecond
	}
	if c.Ceiling <= 0 {
		c.Ceiling = 5 * time.Minute
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 12 * time.Second
	}
	if c.MaxFetchFailures < 1 {
		c.MaxFetchFailures = 5
	}
}

// DeliveryConfig contains delivery arbitration configuration.
type DeliveryConfig struct {
	// Lease is how long a delivery claim blocks other actors before it is
	// considered abandoned and may be reclaimed.
	Lease time.Duration `env:"LEASE" envDefault:"5m"`
}

// Sanitize applies guardrails to delivery configuration values.
func (c *DeliveryConfig) Sanitize() {
	if c.Lease <= 0 {
		c.Lease = 5 * time.Minute
	}
}

// SinkConfig contains result sink configuration. With no webhook URL the
// process falls back to a logging sink, which is only useful in development.
type SinkConfig struct {
	// WebhookURL receives result hand-offs, heartbeats, and failure reports.
	WebhookURL string `env:"WEBHOOK_URL" envDefault:""`

	// AuthToken is sent as a bearer token on webhook requests when set.
	AuthToken string `env:"AUTH_TOKEN" envDefault:""`

	// Timeout bounds each webhook request.
	Timeout time.Duration `env:"TIMEOUT" envDefault:"10s"`
}

// Sanitize applies guardrails to sink configuration values.
func (c *SinkConfig) Sanitize() {
	c.WebhookURL = strings.TrimSpace(c.WebhookURL)
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
}
