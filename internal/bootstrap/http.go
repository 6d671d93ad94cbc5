package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/stokehq/genrelay/config"
	httpx "github.com/stokehq/genrelay/internal/http"
)

const httpShutdownTimeout = 10 * time.Second

// NewHTTPServer builds the API server with the standard timeouts.
func NewHTTPServer(cfg config.HTTPConfig, services ServiceContainer, logger *slog.Logger) *http.Server {
	router := httpx.NewRouter(httpx.RouterServices{
		Jobs:      services.Jobs,
		Callbacks: services.Callbacks,
		Tracker:   services.Tracker,
		Logger:    logger,
	})

	addr := cfg.Addr
	if addr == "" {
		addr = ":8080"
	}

	return &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
}

// ShutdownHTTPServer drains in-flight requests, bounded by a timeout.
func ShutdownHTTPServer(server *http.Server, logger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
	defer cancel()

	logger.Info("shutting down HTTP server")
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}
