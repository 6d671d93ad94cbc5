package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// resumeBatchSize bounds how many in-flight jobs are reloaded on startup.
const resumeBatchSize = 500

// TrackerOptions groups dependencies for Tracker.
type TrackerOptions struct {
	Poller *PollerService // Required
	Logger *slog.Logger   // Optional
}

// Tracker owns one polling goroutine per in-flight job. Track is idempotent
// per job id, so the submit path and the startup resume path can both ask for
// tracking without double-polling.
type Tracker struct {
	poller *PollerService
	logger *slog.Logger

	mu      sync.Mutex
	baseCtx context.Context
	active  map[string]struct{}
	wg      sync.WaitGroup
}

// NewTracker constructs a new Tracker.
func NewTracker(opts TrackerOptions) (*Tracker, error) {
	if opts.Poller == nil {
		return nil, errors.New("PollerService is required")
	}
	return &Tracker{
		poller:  opts.Poller,
		logger:  opts.Logger,
		baseCtx: context.Background(),
		active:  make(map[string]struct{}),
	}, nil
}

// Start binds the tracker to the process lifetime context. Polling goroutines
// launched afterwards stop when ctx is canceled, not when the request that
// triggered them ends.
func (t *Tracker) Start(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.baseCtx = ctx
}

// Track launches a polling goroutine for the job unless one is already
// running.
func (t *Tracker) Track(jobID string) {
	t.mu.Lock()
	if _, running := t.active[jobID]; running {
		t.mu.Unlock()
		return
	}
	t.active[jobID] = struct{}{}
	ctx := t.baseCtx
	t.mu.Unlock()

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer func() {
			t.mu.Lock()
			delete(t.active, jobID)
			t.mu.Unlock()
		}()

		if err := t.poller.Poll(ctx, jobID); err != nil && t.logger != nil {
			t.logger.ErrorContext(ctx, "job polling stopped", "job_id", jobID, "error", err)
		}
	}()
}

// Resume restarts tracking for every non-terminal job in the store. Called
// once at startup so jobs submitted before a restart are not orphaned.
func (t *Tracker) Resume(ctx context.Context) error {
	jobs, err := t.poller.repo.ListUnfinished(ctx, resumeBatchSize)
	if err != nil {
		return fmt.Errorf("list unfinished jobs: %w", err)
	}
	for _, job := range jobs {
		t.Track(job.ID)
	}
	if len(jobs) > 0 && t.logger != nil {
		t.logger.InfoContext(ctx, "resumed tracking of in-flight jobs", "count", len(jobs))
	}
	return nil
}

// Wait blocks until all polling goroutines have stopped.
func (t *Tracker) Wait() {
	t.wg.Wait()
}

// ActiveCount reports how many jobs are currently being polled.
func (t *Tracker) ActiveCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.active)
}
