package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/stokehq/genrelay/internal/core"
	"github.com/stokehq/genrelay/internal/data"
	"github.com/stokehq/genrelay/internal/domain/model"
	"github.com/stokehq/genrelay/internal/domain/status"
	apperrors "github.com/stokehq/genrelay/internal/errors"
	"github.com/stokehq/genrelay/internal/observability/statsd"
)

// PollerConfig tunes the per-job polling loop.
type PollerConfig struct {
	// Interval between status fetches.
	Interval time.Duration
	// Ceiling is the wall-clock budget since submission before the job is
	// marked timeout.
	Ceiling time.Duration
	// HeartbeatInterval throttles progress notes to the owner.
	HeartbeatInterval time.Duration
	// MaxFetchFailures bounds consecutive transient fetch failures before the
	// job is failed with a network error.
	MaxFetchFailures int
}

// Sanitize applies defaults to unset fields.
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
	if c.MaxFetchFailures <= 0 {
		c.MaxFetchFailures = 5
	}
}

// PollerServiceOptions groups dependencies for PollerService.
type PollerServiceOptions struct {
	Repo     core.JobRepository  // Required
	Provider core.ProviderClient // Required
	Delivery *DeliveryService    // Required
	Sink     core.ResultSink     // Required: heartbeat side channel
	Config   PollerConfig
	Throttle core.ThrottleCache // Optional: heartbeat throttle, defaults to always-allow
	Logger   *slog.Logger       // Optional
	Metrics  statsd.Sink        // Optional
	Clock    data.TimeProvider  // Optional: defaults to real time
}

// PollerService is the active, pull-based completion-detection path. One Poll
// call owns one job and runs until the job reaches a terminal outcome, the
// ceiling elapses, or the context is canceled.
type PollerService struct {
	repo     core.JobRepository
	provider core.ProviderClient
	delivery *DeliveryService
	sink     core.ResultSink
	cfg      PollerConfig
	throttle core.ThrottleCache
	logger   *slog.Logger
	metrics  statsd.Sink
	clock    data.TimeProvider
}

// NewPollerService constructs a new PollerService.
func NewPollerService(opts PollerServiceOptions) (*PollerService, error) {
	if opts.Repo == nil {
		return nil, errors.New("JobRepository is required")
	}
	if opts.Provider == nil {
		return nil, errors.New("ProviderClient is required")
	}
	if opts.Delivery == nil {
		return nil, errors.New("DeliveryService is required")
	}
	if opts.Sink == nil {
		return nil, errors.New("ResultSink is required")
	}

	cfg := opts.Config
	cfg.Sanitize()

	throttle := opts.Throttle
	if throttle == nil {
		throttle = data.AlwaysAllow{}
	}
	clock := opts.Clock
	if clock == nil {
		clock = &data.RealTimeProvider{}
	}

	return &PollerService{
		repo:     opts.Repo,
		provider: opts.Provider,
		delivery: opts.Delivery,
		sink:     opts.Sink,
		cfg:      cfg,
		throttle: throttle,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
		clock:    clock,
	}, nil
}

// Poll tracks one job to completion. It returns nil both on a delivered
// result and on a reported terminal failure; an error means the loop itself
// could not proceed (store failure, context canceled).
func (s *PollerService) Poll(ctx context.Context, jobID string) error {
	consecutiveFailures := 0

	for {
		job, err := s.repo.GetByID(ctx, jobID)
		if err != nil {
			return fmt.Errorf("reload job %s: %w", jobID, err)
		}

		// The ingester may have finished the job between ticks. Exit rather
		// than polling on, re-delivering, or reporting a duplicate
		// completion. A recorded success whose hand-off has not happened yet
		// is re-driven from the stored refs first.
		if job.Terminal() {
			if !pendingDelivery(job) {
				return nil
			}
			if _, err := s.delivery.Deliver(ctx, job.ID, job.ResultRefs); err != nil {
				s.warnDeliveryRetry(ctx, job.ID, err)
				if serr := s.sleep(ctx); serr != nil {
					return serr
				}
				continue
			}
			return nil
		}

		if s.clock.Now().Sub(job.CreatedAt) >= s.cfg.Ceiling {
			return s.reportTimeout(ctx, job)
		}

		st, fetchErr := s.provider.FetchStatus(ctx, job.ProviderTaskID)
		if fetchErr != nil {
			consecutiveFailures++
			done, err := s.handleFetchError(ctx, job, fetchErr, consecutiveFailures)
			if done || err != nil {
				return err
			}
			if err := s.sleep(ctx); err != nil {
				return err
			}
			continue
		}
		consecutiveFailures = 0

		done, err := s.handleStatus(ctx, job, st)
		if done || err != nil {
			return err
		}
		if err := s.sleep(ctx); err != nil {
			return err
		}
	}
}

// pendingDelivery reports whether the job's result still needs the hand-off:
// success recorded, refs stored, delivered_at not yet written. This is the
// state a crashed winner or a failed sink attempt leaves behind.
func pendingDelivery(job *model.Job) bool {
	return job.Status == model.JobStatusSuccess && !job.Delivered() && len(job.ResultRefs) > 0
}

// warnDeliveryRetry logs a failed hand-off attempt. The loop stays alive and
// retries on the next tick, so a transient sink failure never strands the job
// as permanently undelivered.
func (s *PollerService) warnDeliveryRetry(ctx context.Context, jobID string, err error) {
	if s.logger != nil {
		s.logger.WarnContext(ctx, "delivery attempt failed, will retry",
			"job_id", jobID, "error", err)
	}
}

func (s *PollerService) handleStatus(ctx context.Context, job *model.Job, st *core.ProviderStatus) (bool, error) {
	canonical := status.Normalize(st.RawStatus)
	s.countTick(canonical)

	switch canonical {
	case status.CanonicalRunning:
		if err := s.repo.MarkRunning(ctx, job.ID); err != nil {
			return false, fmt.Errorf("mark running: %w", err)
		}
		s.heartbeat(ctx, job)
		return false, nil

	case status.CanonicalSuccess:
		if len(st.ResultRefs) == 0 {
			// A success without locators is unusable; treat as a provider failure.
			_, err := s.delivery.ReportFailure(ctx, core.SetFailureParams{
				JobID:  job.ID,
				Status: model.JobStatusFailed,
				Err:    model.JobError{Code: "empty_result", Message: "provider reported success without result locators"},
			})
			return true, err
		}
		if _, err := s.repo.MarkSuccess(ctx, job.ID, st.ResultRefs); err != nil {
			return true, fmt.Errorf("mark success: %w", err)
		}
		if _, err := s.delivery.Deliver(ctx, job.ID, st.ResultRefs); err != nil {
			// The success is durably recorded; keep the loop alive so the
			// next tick re-drives the hand-off from the stored refs.
			s.warnDeliveryRetry(ctx, job.ID, err)
			return false, nil
		}
		return true, nil

	default: // status.CanonicalFailed
		_, err := s.delivery.ReportFailure(ctx, core.SetFailureParams{
			JobID:  job.ID,
			Status: model.JobStatusFailed,
			Err:    providerJobError(st),
		})
		return true, err
	}
}

// handleFetchError classifies a failed status fetch. Provider application
// errors end the job immediately; transient failures are tolerated up to the
// configured budget.
func (s *PollerService) handleFetchError(
	ctx context.Context,
	job *model.Job,
	fetchErr error,
	consecutive int,
) (bool, error) {
	if apperrors.IsProvider(fetchErr) {
		_, err := s.delivery.ReportFailure(ctx, core.SetFailureParams{
			JobID:  job.ID,
			Status: model.JobStatusFailed,
			Err:    model.JobError{Code: string(apperrors.ErrCodeProvider), Message: fetchErr.Error()},
		})
		return true, err
	}

	if s.logger != nil {
		s.logger.WarnContext(ctx, "status fetch failed",
			"job_id", job.ID, "consecutive", consecutive, "error", fetchErr)
	}
	if consecutive < s.cfg.MaxFetchFailures {
		return false, nil
	}

	_, err := s.delivery.ReportFailure(ctx, core.SetFailureParams{
		JobID:  job.ID,
		Status: model.JobStatusFailed,
		Err: model.JobError{
			Code:    string(apperrors.ErrCodeNetwork),
			Message: fmt.Sprintf("status fetch failed %d consecutive times: %v", consecutive, fetchErr),
		},
	})
	return true, err
}

// reportTimeout marks the job timed out. This is reported once and never
// retried; a late success callback may still deliver while delivered_at is
// null.
func (s *PollerService) reportTimeout(ctx context.Context, job *model.Job) error {
	_, err := s.delivery.ReportFailure(ctx, core.SetFailureParams{
		JobID:  job.ID,
		Status: model.JobStatusTimeout,
		Err: model.JobError{
			Code:    string(apperrors.ErrCodeTimeout),
			Message: fmt.Sprintf("no terminal state within %s", s.cfg.Ceiling),
		},
	})
	if err != nil {
		return fmt.Errorf("report timeout: %w", err)
	}
	return nil
}

// heartbeat emits a throttled progress note to the owner's side channel.
func (s *PollerService) heartbeat(ctx context.Context, job *model.Job) {
	allowed, err := s.throttle.Allow(ctx, "hb:"+job.ID, s.cfg.HeartbeatInterval)
	if err != nil || !allowed {
		return
	}
	elapsed := s.clock.Now().Sub(job.CreatedAt).Round(time.Second)
	if err := s.sink.Heartbeat(ctx, job, fmt.Sprintf("still generating (%s elapsed)", elapsed)); err != nil {
		if s.logger != nil {
			s.logger.DebugContext(ctx, "heartbeat not delivered", "job_id", job.ID, "error", err)
		}
	}
}

func (s *PollerService) sleep(ctx context.Context) error {
	timer := time.NewTimer(s.cfg.Interval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (s *PollerService) countTick(c status.Canonical) {
	if s.metrics != nil {
		s.metrics.Count("poller.tick", 1, map[string]string{"canonical": string(c)})
	}
}

func providerJobError(st *core.ProviderStatus) model.JobError {
	code := st.FailureCode
	if code == "" {
		code = string(apperrors.ErrCodeProvider)
	}
	msg := st.FailureMessage
	if msg == "" {
		msg = "provider reported the task as failed"
	}
	return model.JobError{Code: code, Message: msg}
}
