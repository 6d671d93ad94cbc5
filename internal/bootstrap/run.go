package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/stokehq/genrelay/config"
)

const trackerDrainTimeout = 30 * time.Second

// RunWithShutdown starts the tracker and the HTTP server, resumes any
// unfinished jobs from the store, and blocks until SIGINT/SIGTERM or a fatal
// server error. Shutdown drains HTTP first, then waits for in-flight polling
// goroutines, bounded by trackerDrainTimeout.
func RunWithShutdown(cfg *config.AppConfig, services ServiceContainer, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	services.Tracker.Start(ctx)
	if err := services.Tracker.Resume(ctx); err != nil {
		return fmt.Errorf("resume unfinished jobs: %w", err)
	}

	server := NewHTTPServer(cfg.HTTP, services, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting HTTP server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return ShutdownHTTPServer(server, logger)
	})

	err := g.Wait()

	drainTracker(services.Tracker, logger)
	return err
}

// drainTracker waits for active polling goroutines without holding shutdown
// hostage to a stuck provider.
func drainTracker(tracker trackerWaiter, logger *slog.Logger) {
	done := make(chan struct{})
	go func() {
		tracker.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("tracker drained")
	case <-time.After(trackerDrainTimeout):
		logger.Warn("tracker drain timed out", "active", tracker.ActiveCount())
	}
}

type trackerWaiter interface {
	Wait()
	ActiveCount() int
}
