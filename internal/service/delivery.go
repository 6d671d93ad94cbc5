// Package service contains the business logic of genrelay: job submission,
// the status poller, the callback ingester, and the delivery coordinator
// that arbitrates between them.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/stokehq/genrelay/internal/core"
	"github.com/stokehq/genrelay/internal/observability/statsd"
)

// DefaultDeliveryLease is how long a delivery claim is honored before another
// actor may assume the claimant died and retry.
const DefaultDeliveryLease = 5 * time.Minute

// DeliveryOutcome reports how a Deliver call resolved. Losing the delivery
// race is an expected outcome, never an error.
type DeliveryOutcome struct {
	// Delivered is true when this call performed the actual hand-off.
	Delivered bool
	// AlreadyDelivered is true when another actor holds or completed the
	// delivery and this call was a no-op.
	AlreadyDelivered bool
}

// DeliveryServiceOptions groups dependencies for DeliveryService.
type DeliveryServiceOptions struct {
	Repo    core.JobRepository // Required: durable job store
	Sink    core.ResultSink    // Required: user-facing hand-off collaborator
	Config  DeliveryConfig
	Logger  *slog.Logger // Optional: structured logger
	Metrics statsd.Sink  // Optional: metrics sink
}

// DeliveryConfig tunes the coordinator.
type DeliveryConfig struct {
	// Lease bounds how long a claimed delivery may remain unfinished before
	// the claim expires.
	Lease time.Duration
}

// DeliveryService arbitrates between the poller and the callback ingester so
// the result sink is invoked meaningfully once per job. All coordination goes
// through the job store's atomic conditional updates; the service holds no
// in-process state, so it stays correct when the two detection paths run in
// different processes.
type DeliveryService struct {
	repo    core.JobRepository
	sink    core.ResultSink
	lease   time.Duration
	logger  *slog.Logger
	metrics statsd.Sink
}

// NewDeliveryService constructs a new DeliveryService.
func NewDeliveryService(opts DeliveryServiceOptions) (*DeliveryService, error) {
	if opts.Repo == nil {
		return nil, errors.New("JobRepository is required")
	}
	if opts.Sink == nil {
		return nil, errors.New("ResultSink is required")
	}

	lease := opts.Config.Lease
	if lease <= 0 {
		lease = DefaultDeliveryLease
	}

	return &DeliveryService{
		repo:    opts.Repo,
		sink:    opts.Sink,
		lease:   lease,
		logger:  opts.Logger,
		metrics: opts.Metrics,
	}, nil
}

// Deliver performs exactly-once arbitration and, on winning, hands the result
// refs to the sink. Both detection paths call this on observing success;
// whichever wins performs the real delivery and the loser exits silently with
// AlreadyDelivered.
func (s *DeliveryService) Deliver(ctx context.Context, jobID string, resultRefs []string) (DeliveryOutcome, error) {
	if len(resultRefs) == 0 {
		return DeliveryOutcome{}, errors.New("result refs are required")
	}

	won, err := s.repo.ClaimDelivery(ctx, jobID, s.lease)
	if err != nil {
		return DeliveryOutcome{}, fmt.Errorf("claim delivery: %w", err)
	}
	if !won {
		s.count("delivery.lost", jobID)
		return DeliveryOutcome{AlreadyDelivered: true}, nil
	}

	job, err := s.repo.GetByID(ctx, jobID)
	if err != nil {
		// Leave the job retryable rather than stranding the lease.
		s.release(ctx, jobID)
		return DeliveryOutcome{}, fmt.Errorf("load job for delivery: %w", err)
	}

	if err := s.sink.Deliver(ctx, job, resultRefs); err != nil {
		s.release(ctx, jobID)
		s.count("delivery.sink_failed", jobID)
		return DeliveryOutcome{}, fmt.Errorf("sink delivery: %w", err)
	}

	set, err := s.repo.MarkDelivered(ctx, jobID)
	if err != nil {
		return DeliveryOutcome{}, fmt.Errorf("mark delivered: %w", err)
	}
	if !set {
		// A resurrected previous claimant beat us to the marker after its
		// lease had expired. The owner may have received the result twice;
		// delivered_at itself was still written exactly once.
		s.count("delivery.marker_race", jobID)
		return DeliveryOutcome{AlreadyDelivered: true}, nil
	}

	s.count("delivery.won", jobID)
	if s.logger != nil {
		s.logger.InfoContext(ctx, "result delivered",
			"job_id", jobID, "owner_ref", job.OwnerRef, "result_count", len(resultRefs))
	}
	return DeliveryOutcome{Delivered: true}, nil
}

// ReportFailure performs one-shot terminal failure reporting. The conditional
// status transition decides which path reports; the loser is a no-op. status
// must be failed or timeout.
func (s *DeliveryService) ReportFailure(
	ctx context.Context,
	params core.SetFailureParams,
) (bool, error) {
	transitioned, err := s.repo.MarkFailed(ctx, params)
	if err != nil {
		return false, fmt.Errorf("mark failed: %w", err)
	}
	if !transitioned {
		return false, nil
	}

	job, err := s.repo.GetByID(ctx, params.JobID)
	if err != nil {
		return false, fmt.Errorf("load job for failure report: %w", err)
	}

	if err := s.sink.ReportFailure(ctx, job, params.Err); err != nil {
		// The terminal status is already recorded; a lost failure notice is
		// logged, not retried.
		if s.logger != nil {
			s.logger.WarnContext(ctx, "failure report not delivered",
				"job_id", params.JobID, "error", err)
		}
	}
	s.count("delivery.failure_reported", params.JobID)
	return true, nil
}

func (s *DeliveryService) release(ctx context.Context, jobID string) {
	if err := s.repo.ReleaseDelivery(ctx, jobID); err != nil && s.logger != nil {
		s.logger.ErrorContext(ctx, "release delivery lease failed",
			"job_id", jobID, "error", err)
	}
}

func (s *DeliveryService) count(name, jobID string) {
	if s.metrics != nil {
		s.metrics.Count(name, 1, map[string]string{"job_id": jobID})
	}
}
