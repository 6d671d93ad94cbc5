package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/stokehq/genrelay/internal/core"
	"github.com/stokehq/genrelay/internal/domain/model"
	apperrors "github.com/stokehq/genrelay/internal/errors"
	"github.com/stokehq/genrelay/internal/observability/statsd"
)

// JobServiceOptions groups dependencies for JobService.
type JobServiceOptions struct {
	Repo     core.JobRepository  // Required: durable job store
	Provider core.ProviderClient // Required: remote submission client
	Logger   *slog.Logger        // Optional: structured logger
	Metrics  statsd.Sink         // Optional: metrics sink
}

// JobService creates jobs and submits them to the compute provider.
type JobService struct {
	repo     core.JobRepository
	provider core.ProviderClient
	logger   *slog.Logger
	metrics  statsd.Sink
}

// NewJobService constructs a new JobService.
func NewJobService(opts JobServiceOptions) (*JobService, error) {
	if opts.Repo == nil {
		return nil, errors.New("JobRepository is required")
	}
	if opts.Provider == nil {
		return nil, errors.New("ProviderClient is required")
	}
	return &JobService{
		repo:     opts.Repo,
		provider: opts.Provider,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
	}, nil
}

// Submit creates the job record, submits the task to the provider, and
// records the provider task id. The record is created before the remote call
// so a crash mid-submission leaves a durable trace; a provider rejection
// surfaces as a failed job with the provider's error preserved, never
// retried.
func (s *JobService) Submit(ctx context.Context, req *model.CreateJobRequest) (*model.Job, error) {
	if req == nil {
		return nil, errors.New("create job request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid job request")
	}

	job, err := s.repo.Create(ctx, core.CreateJobParams{
		ID:            uuid.NewString(),
		OwnerRef:      req.OwnerRef,
		ProviderModel: req.ProviderModel,
	})
	if err != nil {
		return nil, fmt.Errorf("create job record: %w", err)
	}

	taskID, submitErr := s.provider.Submit(ctx, req.ProviderModel, req.Parameters)
	if submitErr != nil {
		return s.failSubmission(ctx, job, submitErr)
	}

	if err := s.repo.SetProviderTaskID(ctx, job.ID, taskID); err != nil {
		return nil, fmt.Errorf("record provider task id: %w", err)
	}
	job.ProviderTaskID = taskID

	if s.metrics != nil {
		s.metrics.Count("job.submitted", 1, map[string]string{"provider_model": req.ProviderModel})
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "job submitted",
			"job_id", job.ID, "provider_task_id", taskID, "owner_ref", job.OwnerRef)
	}
	return job, nil
}

// failSubmission marks the job failed with the submission error and returns
// the terminal job to the caller alongside the original error.
func (s *JobService) failSubmission(ctx context.Context, job *model.Job, submitErr error) (*model.Job, error) {
	jobErr := model.JobError{
		Code:    string(apperrors.CodeOf(submitErr)),
		Message: submitErr.Error(),
	}
	if _, markErr := s.repo.MarkFailed(ctx, core.SetFailureParams{
		JobID:  job.ID,
		Status: model.JobStatusFailed,
		Err:    jobErr,
	}); markErr != nil && s.logger != nil {
		s.logger.ErrorContext(ctx, "mark submission failure failed",
			"job_id", job.ID, "error", markErr)
	}
	if s.metrics != nil {
		s.metrics.Count("job.submit_failed", 1, map[string]string{"code": jobErr.Code})
	}
	return nil, fmt.Errorf("submit task: %w", submitErr)
}

// GetByID returns a job by its id.
func (s *JobService) GetByID(ctx context.Context, id string) (*model.Job, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}
