// Package core contains the port interfaces between the service layer and
// its collaborators. Service implementations depend on these interfaces, not
// concrete implementations.
package core

import (
	"context"
	"time"

	"github.com/stokehq/genrelay/internal/domain/model"
)

// CreateJobParams groups parameters for JobRepository.Create.
type CreateJobParams struct {
	ID             string
	OwnerRef       string
	ProviderModel  string
	ProviderTaskID string
}

// SetFailureParams groups parameters for JobRepository.MarkFailed.
type SetFailureParams struct {
	JobID  string
	Status model.JobStatus
	Err    model.JobError
}

// JobRepository defines the durable job store. It is the single shared
// mutable resource through which the poller and the callback ingester
// coordinate; every mutation guarded by a current-state predicate must be a
// single conditional write, because the two detection paths may run in
// different processes.
type JobRepository interface {
	Create(ctx context.Context, params CreateJobParams) (*model.Job, error)
	GetByID(ctx context.Context, id string) (*model.Job, error)
	GetByProviderTaskID(ctx context.Context, taskID string) (*model.Job, error)
	// ListUnfinished returns unresolved jobs, oldest first: non-terminal jobs
	// plus recorded successes whose delivery marker is not yet set.
	ListUnfinished(ctx context.Context, limit int) ([]*model.Job, error)

	// SetProviderTaskID records the provider's task id after submission succeeds.
	SetProviderTaskID(ctx context.Context, jobID, taskID string) error
	// MarkRunning transitions queued → running; a no-op if the job has moved on.
	MarkRunning(ctx context.Context, jobID string) error
	// MarkSuccess transitions a non-terminal job to success and stores the
	// result refs. Returns false if the job was already terminal.
	MarkSuccess(ctx context.Context, jobID string, resultRefs []string) (bool, error)
	// MarkFailed transitions a non-terminal job to failed or timeout with a
	// structured error. Returns false if the job was already terminal.
	MarkFailed(ctx context.Context, params SetFailureParams) (bool, error)

	// ClaimDelivery atomically sets delivering_at = now only if delivered_at
	// is null and any existing lease is older than the given duration.
	// Returns true when the caller won the lease.
	ClaimDelivery(ctx context.Context, jobID string, lease time.Duration) (bool, error)
	// MarkDelivered atomically sets delivered_at = now where it is still null.
	// Returns true when this call set the marker.
	MarkDelivered(ctx context.Context, jobID string) (bool, error)
	// ReleaseDelivery clears delivering_at so another actor may retry, unless
	// delivered_at has been set.
	ReleaseDelivery(ctx context.Context, jobID string) error
}

// ResultSink performs the user-facing hand-off of results. Its internal
// idempotency against duplicate sends is its own concern; genrelay only
// guarantees it is invoked meaningfully once per job.
type ResultSink interface {
	Deliver(ctx context.Context, job *model.Job, resultRefs []string) error
	Heartbeat(ctx context.Context, job *model.Job, note string) error
	ReportFailure(ctx context.Context, job *model.Job, jobErr model.JobError) error
}

// ProviderClient talks to the remote compute provider.
type ProviderClient interface {
	Submit(ctx context.Context, providerModel string, parameters map[string]any) (string, error)
	FetchStatus(ctx context.Context, taskID string) (*ProviderStatus, error)
}

// ProviderStatus is the raw status fetch response before normalization.
type ProviderStatus struct {
	RawStatus      string
	ResultRefs     []string
	FailureCode    string
	FailureMessage string
}

// ThrottleCache rate-limits repeated side-channel emissions (heartbeats,
// duplicate callback processing). Best effort only; correctness never rests
// on it.
type ThrottleCache interface {
	// Allow reports whether the key is currently unclaimed and claims it for ttl.
	Allow(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Forget releases a claimed key so the next Allow succeeds. Callers use it
	// to reopen a suppression window when the work behind the claim failed.
	Forget(ctx context.Context, key string) error
}
