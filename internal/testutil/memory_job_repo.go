// Package testutil provides in-memory fakes and builders shared by the
// service and HTTP tests.
package testutil

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/stokehq/genrelay/internal/core"
	"github.com/stokehq/genrelay/internal/data"
	"github.com/stokehq/genrelay/internal/domain/model"
)

// MemoryJobRepo is an in-memory core.JobRepository. Conditional updates hold
// a single mutex for the whole check-and-set, mirroring the atomicity the
// PostgreSQL implementation gets from single-statement conditional UPDATEs,
// so it is valid for exercising racing delivery paths.
type MemoryJobRepo struct {
	mu    sync.Mutex
	jobs  map[string]*model.Job
	clock data.TimeProvider
}

var _ core.JobRepository = (*MemoryJobRepo)(nil)

// NewMemoryJobRepo constructs an empty in-memory repo. A nil clock uses real time.
func NewMemoryJobRepo(clock data.TimeProvider) *MemoryJobRepo {
	if clock == nil {
		clock = &data.RealTimeProvider{}
	}
	return &MemoryJobRepo{
		jobs:  make(map[string]*model.Job),
		clock: clock,
	}
}

func cloneJob(j *model.Job) *model.Job {
	c := *j
	if j.ResultRefs != nil {
		c.ResultRefs = append([]string(nil), j.ResultRefs...)
	}
	if j.Error != nil {
		e := *j.Error
		c.Error = &e
	}
	if j.DeliveringAt != nil {
		t := *j.DeliveringAt
		c.DeliveringAt = &t
	}
	if j.DeliveredAt != nil {
		t := *j.DeliveredAt
		c.DeliveredAt = &t
	}
	return &c
}

// Create inserts a queued job.
func (r *MemoryJobRepo) Create(_ context.Context, params core.CreateJobParams) (*model.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if params.ID == "" {
		return nil, data.ErrJobIDRequired
	}
	if _, ok := r.jobs[params.ID]; ok {
		return nil, errors.New("duplicate job id")
	}

	now := r.clock.Now().UTC()
	job := &model.Job{
		ID:             params.ID,
		ProviderTaskID: params.ProviderTaskID,
		OwnerRef:       params.OwnerRef,
		ProviderModel:  params.ProviderModel,
		Status:         model.JobStatusQueued,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	r.jobs[job.ID] = job
	return cloneJob(job), nil
}

// GetByID returns a copy of the stored job.
func (r *MemoryJobRepo) GetByID(_ context.Context, id string) (*model.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return nil, data.ErrJobNotFound
	}
	return cloneJob(job), nil
}

// GetByProviderTaskID returns the job carrying the given provider task id.
func (r *MemoryJobRepo) GetByProviderTaskID(_ context.Context, taskID string) (*model.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if taskID == "" {
		return nil, data.ErrTaskIDRequired
	}
	var found *model.Job
	for _, job := range r.jobs {
		if job.ProviderTaskID != taskID {
			continue
		}
		if found == nil || job.CreatedAt.After(found.CreatedAt) {
			found = job
		}
	}
	if found == nil {
		return nil, data.ErrJobNotFound
	}
	return cloneJob(found), nil
}

// ListUnfinished returns unresolved jobs, oldest first: non-terminal jobs
// plus recorded successes not yet delivered.
func (r *MemoryJobRepo) ListUnfinished(_ context.Context, limit int) ([]*model.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if limit <= 0 {
		limit = 100
	}
	var jobs []*model.Job
	for _, job := range r.jobs {
		unresolved := !job.Terminal() ||
			(job.Status == model.JobStatusSuccess && !job.Delivered())
		if unresolved {
			jobs = append(jobs, cloneJob(job))
		}
	}
	for i := 0; i < len(jobs); i++ {
		for j := i + 1; j < len(jobs); j++ {
			if jobs[j].CreatedAt.Before(jobs[i].CreatedAt) {
				jobs[i], jobs[j] = jobs[j], jobs[i]
			}
		}
	}
	if len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

// SetProviderTaskID records the provider task id.
func (r *MemoryJobRepo) SetProviderTaskID(_ context.Context, jobID, taskID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[jobID]
	if !ok {
		return data.ErrJobNotFound
	}
	job.ProviderTaskID = taskID
	job.UpdatedAt = r.clock.Now().UTC()
	return nil
}

// MarkRunning transitions queued → running.
func (r *MemoryJobRepo) MarkRunning(_ context.Context, jobID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[jobID]
	if !ok {
		return data.ErrJobNotFound
	}
	if job.Status == model.JobStatusQueued {
		job.Status = model.JobStatusRunning
		job.UpdatedAt = r.clock.Now().UTC()
	}
	return nil
}

// MarkSuccess transitions a non-terminal job to success.
func (r *MemoryJobRepo) MarkSuccess(_ context.Context, jobID string, resultRefs []string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[jobID]
	if !ok {
		return false, data.ErrJobNotFound
	}
	if job.Terminal() {
		return false, nil
	}
	job.Status = model.JobStatusSuccess
	job.ResultRefs = append([]string(nil), resultRefs...)
	job.Error = nil
	job.UpdatedAt = r.clock.Now().UTC()
	return true, nil
}

// MarkFailed transitions a non-terminal job to failed or timeout.
func (r *MemoryJobRepo) MarkFailed(_ context.Context, params core.SetFailureParams) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[params.JobID]
	if !ok {
		return false, data.ErrJobNotFound
	}
	if job.Terminal() {
		return false, nil
	}
	job.Status = params.Status
	err := params.Err
	job.Error = &err
	job.UpdatedAt = r.clock.Now().UTC()
	return true, nil
}

// ClaimDelivery acquires the delivery lease under the repo mutex.
func (r *MemoryJobRepo) ClaimDelivery(_ context.Context, jobID string, lease time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[jobID]
	if !ok {
		return false, data.ErrJobNotFound
	}
	now := r.clock.Now().UTC()
	if job.DeliveredAt != nil {
		return false, nil
	}
	if job.DeliveringAt != nil && now.Sub(*job.DeliveringAt) < lease {
		return false, nil
	}
	job.DeliveringAt = &now
	job.UpdatedAt = now
	return true, nil
}

// MarkDelivered sets the permanent delivered marker at most once.
func (r *MemoryJobRepo) MarkDelivered(_ context.Context, jobID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[jobID]
	if !ok {
		return false, data.ErrJobNotFound
	}
	if job.DeliveredAt != nil {
		return false, nil
	}
	now := r.clock.Now().UTC()
	job.DeliveredAt = &now
	job.UpdatedAt = now
	return true, nil
}

// ReleaseDelivery clears the lease unless the job has been delivered.
func (r *MemoryJobRepo) ReleaseDelivery(_ context.Context, jobID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[jobID]
	if !ok {
		return data.ErrJobNotFound
	}
	if job.DeliveredAt == nil {
		job.DeliveringAt = nil
		job.UpdatedAt = r.clock.Now().UTC()
	}
	return nil
}
