package bootstrap

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/redis/go-redis/v9"

	"github.com/stokehq/genrelay/config"
	"github.com/stokehq/genrelay/internal/adapters/logsink"
	"github.com/stokehq/genrelay/internal/adapters/webhooksink"
	"github.com/stokehq/genrelay/internal/core"
	"github.com/stokehq/genrelay/internal/data"
	"github.com/stokehq/genrelay/internal/observability/statsd"
	"github.com/stokehq/genrelay/internal/provider"
	"github.com/stokehq/genrelay/internal/service"
)

// ServiceContainer holds all constructed services and their shared
// collaborators.
type ServiceContainer struct {
	Repo      *data.JobRepo
	Provider  *provider.Client
	Sink      core.ResultSink
	Delivery  *service.DeliveryService
	Jobs      *service.JobService
	Poller    *service.PollerService
	Callbacks *service.CallbackService
	Tracker   *service.Tracker
	Metrics   statsd.Sink
}

// ServiceDeps contains the shared infrastructure services are built on.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient *redis.Client // nil when Redis is not configured
	Logger      *slog.Logger
}

// NewServices wires the full service graph.
func NewServices(deps *ServiceDeps) (ServiceContainer, error) {
	if deps == nil || deps.Config == nil {
		return ServiceContainer{}, errors.New("service deps with config are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := deps.Config

	metrics := buildMetrics(logger, cfg.Observability)
	throttle := buildThrottle(deps.RedisClient)

	repo := data.NewJobRepo(deps.DB, data.RepoConfig{Logger: logger})

	providerClient, err := provider.NewClient(provider.ClientOptions{
		BaseURL:     cfg.Provider.BaseURL,
		APIKey:      cfg.Provider.APIKey,
		HTTPClient:  &http.Client{Timeout: cfg.Provider.Timeout},
		Logger:      logger,
		MaxAttempts: cfg.Provider.MaxAttempts,
		Backoff:     cfg.Provider.Backoff,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("build provider client: %w", err)
	}

	sink, err := buildSink(cfg, logger)
	if err != nil {
		return ServiceContainer{}, err
	}

	delivery, err := service.NewDeliveryService(service.DeliveryServiceOptions{
		Repo:    repo,
		Sink:    sink,
		Config:  service.DeliveryConfig{Lease: cfg.Delivery.Lease},
		Logger:  logger,
		Metrics: metrics,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("build delivery service: %w", err)
	}

	jobs, err := service.NewJobService(service.JobServiceOptions{
		Repo:     repo,
		Provider: providerClient,
		Logger:   logger,
		Metrics:  metrics,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("build job service: %w", err)
	}

	poller, err := service.NewPollerService(service.PollerServiceOptions{
		Repo:     repo,
		Provider: providerClient,
		Delivery: delivery,
		Sink:     sink,
		Config: service.PollerConfig{
			Interval:          cfg.Poller.Interval,
			Ceiling:           cfg.Poller.Ceiling,
			HeartbeatInterval: cfg.Poller.HeartbeatInterval,
			MaxFetchFailures:  cfg.Poller.MaxFetchFailures,
		},
		Throttle: throttle,
		Logger:   logger,
		Metrics:  metrics,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("build poller service: %w", err)
	}

	callbacks, err := service.NewCallbackService(service.CallbackServiceOptions{
		Repo:     repo,
		Delivery: delivery,
		Provider: providerClient,
		Throttle: throttle,
		Logger:   logger,
		Metrics:  metrics,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("build callback service: %w", err)
	}

	tracker, err := service.NewTracker(service.TrackerOptions{
		Poller: poller,
		Logger: logger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("build tracker: %w", err)
	}

	return ServiceContainer{
		Repo:      repo,
		Provider:  providerClient,
		Sink:      sink,
		Delivery:  delivery,
		Jobs:      jobs,
		Poller:    poller,
		Callbacks: callbacks,
		Tracker:   tracker,
		Metrics:   metrics,
	}, nil
}

// buildSink picks the configured webhook sink, falling back to the logging
// sink for local development.
func buildSink(cfg *config.AppConfig, logger *slog.Logger) (core.ResultSink, error) {
	if cfg.Sink.WebhookURL == "" {
		logger.Warn("no result webhook configured, deliveries will only be logged")
		return logsink.New(logger), nil
	}
	sink, err := webhooksink.New(webhooksink.Options{
		URL:        cfg.Sink.WebhookURL,
		AuthToken:  cfg.Sink.AuthToken,
		HTTPClient: &http.Client{Timeout: cfg.Sink.Timeout},
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build webhook sink: %w", err)
	}
	return sink, nil
}

func buildMetrics(logger *slog.Logger, cfg config.ObservabilityConfig) statsd.Sink {
	client, err := statsd.NewClient(statsd.Config{
		Enabled: cfg.Metrics.IsEnabled(),
		Address: cfg.Metrics.StatsdAddress,
		Prefix:  "genrelay",
		Logger:  logger,
	})
	if err != nil {
		logger.Warn("statsd client disabled", "error", err)
		return nil
	}
	return client
}

// buildThrottle returns nil when Redis is absent; services fall back to
// always-allow.
func buildThrottle(client *redis.Client) core.ThrottleCache {
	if client == nil {
		return nil
	}
	return data.NewRedisThrottleCache(client, "")
}
