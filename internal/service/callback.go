package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/stokehq/genrelay/internal/core"
	"github.com/stokehq/genrelay/internal/data"
	"github.com/stokehq/genrelay/internal/domain/callback"
	"github.com/stokehq/genrelay/internal/domain/model"
	"github.com/stokehq/genrelay/internal/domain/status"
	"github.com/stokehq/genrelay/internal/observability/statsd"
)

// dedupWindow suppresses duplicate processing of identical notifications.
// Short on purpose: the delivery coordinator owns correctness, this only
// saves work when the provider redelivers in quick succession.
const dedupWindow = 30 * time.Second

// CallbackAck describes how an inbound notification was resolved. The HTTP
// layer acknowledges every ack with success so the provider stops retrying.
type CallbackAck struct {
	// Routed is true when a job was found for the payload.
	Routed bool
	// Duplicate is true when an identical notification was processed moments ago.
	Duplicate bool
	// JobID is set when Routed.
	JobID string
}

// CallbackServiceOptions groups dependencies for CallbackService.
type CallbackServiceOptions struct {
	Repo     core.JobRepository  // Required
	Delivery *DeliveryService    // Required
	Provider core.ProviderClient // Optional: result refs fallback fetch
	Throttle core.ThrottleCache  // Optional: duplicate suppression
	Logger   *slog.Logger        // Optional
	Metrics  statsd.Sink         // Optional
}

// CallbackService is the passive, push-based completion-detection path. It
// converges on the same normalizer, job mutations, and delivery coordinator
// as the poller, so arbitration is the only place race handling lives.
type CallbackService struct {
	repo      core.JobRepository
	delivery  *DeliveryService
	provider  core.ProviderClient
	extractor *callback.Extractor
	throttle  core.ThrottleCache
	logger    *slog.Logger
	metrics   statsd.Sink
}

// NewCallbackService constructs a new CallbackService.
func NewCallbackService(opts CallbackServiceOptions) (*CallbackService, error) {
	if opts.Repo == nil {
		return nil, errors.New("JobRepository is required")
	}
	if opts.Delivery == nil {
		return nil, errors.New("DeliveryService is required")
	}

	throttle := opts.Throttle
	if throttle == nil {
		throttle = data.AlwaysAllow{}
	}

	return &CallbackService{
		repo:      opts.Repo,
		delivery:  opts.Delivery,
		provider:  opts.Provider,
		extractor: callback.NewExtractor(nil),
		throttle:  throttle,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
	}, nil
}

// Ingest processes one push notification. Unroutable payloads (no extractable
// task id, unknown task id, malformed body) resolve to a successful ack with
// Routed=false and mutate nothing; an error return means a store or delivery
// problem worth surfacing to the provider as a retryable server error.
func (s *CallbackService) Ingest(ctx context.Context, payload []byte) (CallbackAck, error) {
	n, ok, err := s.extractor.Extract(payload)
	if err != nil || !ok {
		s.logUnroutable(ctx, err)
		s.count("callback.unroutable")
		return CallbackAck{}, nil
	}

	job, err := s.repo.GetByProviderTaskID(ctx, n.TaskID)
	if err != nil {
		if errors.Is(err, data.ErrJobNotFound) {
			s.logUnroutable(ctx, fmt.Errorf("no job for task id %q", n.TaskID))
			s.count("callback.unroutable")
			return CallbackAck{}, nil
		}
		return CallbackAck{}, fmt.Errorf("route callback: %w", err)
	}

	ack := CallbackAck{Routed: true, JobID: job.ID}

	dedupKey := "cb:" + n.TaskID + ":" + n.RawStatus
	allowed, throttleErr := s.throttle.Allow(ctx, dedupKey, dedupWindow)
	if throttleErr == nil && !allowed {
		ack.Duplicate = true
		s.count("callback.duplicate")
		return ack, nil
	}

	if err := s.processNotification(ctx, job, n); err != nil {
		// The key was claimed but the work behind it failed. Reopen the
		// suppression window so the provider's retry is processed instead of
		// acked as a duplicate.
		s.forget(ctx, dedupKey)
		return ack, err
	}
	return ack, nil
}

func (s *CallbackService) processNotification(ctx context.Context, job *model.Job, n callback.Notification) error {
	canonical := status.Normalize(n.RawStatus)
	s.count("callback." + string(canonical))

	switch canonical {
	case status.CanonicalRunning:
		if err := s.repo.MarkRunning(ctx, job.ID); err != nil {
			return fmt.Errorf("mark running: %w", err)
		}
		return nil

	case status.CanonicalSuccess:
		return s.ingestSuccess(ctx, job, n)

	default: // status.CanonicalFailed
		_, err := s.delivery.ReportFailure(ctx, core.SetFailureParams{
			JobID:  job.ID,
			Status: model.JobStatusFailed,
			Err:    callbackJobError(n),
		})
		return err
	}
}

// forget is best effort; a stuck key only delays reprocessing until the TTL
// lapses.
func (s *CallbackService) forget(ctx context.Context, key string) {
	if err := s.throttle.Forget(ctx, key); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "release dedup key failed", "key", key, "error", err)
	}
}

// ingestSuccess mirrors the poller's terminal-success handling. A success
// arriving after the job was marked timeout still attempts delivery while
// delivered_at is null; the status stays timeout, only the hand-off happens.
func (s *CallbackService) ingestSuccess(ctx context.Context, job *model.Job, n callback.Notification) error {
	refs := n.ResultRefs
	if len(refs) == 0 {
		refs = s.recoverResultRefs(ctx, job)
	}
	if len(refs) == 0 {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "success callback without result locators",
				"job_id", job.ID, "provider_task_id", job.ProviderTaskID)
		}
		return nil
	}

	if _, err := s.repo.MarkSuccess(ctx, job.ID, refs); err != nil {
		return fmt.Errorf("mark success: %w", err)
	}
	if _, err := s.delivery.Deliver(ctx, job.ID, refs); err != nil {
		return fmt.Errorf("deliver result: %w", err)
	}
	return nil
}

// recoverResultRefs falls back to previously recorded refs, then to a status
// fetch, for providers whose callbacks omit the locators.
func (s *CallbackService) recoverResultRefs(ctx context.Context, job *model.Job) []string {
	if len(job.ResultRefs) > 0 {
		return job.ResultRefs
	}
	if s.provider == nil {
		return nil
	}
	st, err := s.provider.FetchStatus(ctx, job.ProviderTaskID)
	if err != nil {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "result ref recovery fetch failed",
				"job_id", job.ID, "error", err)
		}
		return nil
	}
	return st.ResultRefs
}

func (s *CallbackService) logUnroutable(ctx context.Context, cause error) {
	if s.logger == nil {
		return
	}
	if cause != nil {
		s.logger.WarnContext(ctx, "discarding unroutable callback", "reason", cause)
		return
	}
	s.logger.WarnContext(ctx, "discarding unroutable callback", "reason", "no task id found")
}

func (s *CallbackService) count(name string) {
	if s.metrics != nil {
		s.metrics.Count(name, 1, nil)
	}
}

func callbackJobError(n callback.Notification) model.JobError {
	code := n.FailureCode
	if code == "" {
		code = "provider_error"
	}
	msg := n.FailureMessage
	if msg == "" {
		msg = "provider reported the task as failed"
	}
	return model.JobError{Code: code, Message: msg}
}
