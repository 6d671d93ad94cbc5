// Package model defines the core data types used throughout the genrelay job system.
package model

import (
	"errors"
	"strings"
	"time"
)

// JobStatus represents the current lifecycle state of a job.
type JobStatus string

const (
	// JobStatusQueued indicates a job has been accepted but no status fetch has succeeded yet.
	JobStatusQueued JobStatus = "queued"
	// JobStatusRunning indicates the provider reported the job as in progress.
	JobStatusRunning JobStatus = "running"
	// JobStatusSuccess indicates the provider produced a usable result.
	JobStatusSuccess JobStatus = "success"
	// JobStatusFailed indicates the job failed, either provider-side or after
	// exhausting local retries on a transport failure.
	JobStatusFailed JobStatus = "failed"
	// JobStatusTimeout indicates the polling ceiling elapsed before a terminal
	// provider state was observed.
	JobStatusTimeout JobStatus = "timeout"
)

// Valid returns true if the JobStatus is one of the defined states.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusQueued, JobStatusRunning, JobStatusSuccess, JobStatusFailed, JobStatusTimeout:
		return true
	}
	return false
}

// Terminal returns true if no further status transitions can occur.
func (s JobStatus) Terminal() bool {
	return s == JobStatusSuccess || s == JobStatusFailed || s == JobStatusTimeout
}

// JobError is the structured failure descriptor attached to failed and
// timed-out jobs.
type JobError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrJobTerminal is returned when a mutation targets a job already in a
// terminal state.
var ErrJobTerminal = errors.New("job is already in a terminal state")

// Job represents one generation request and its tracked lifecycle.
//
// DeliveringAt and DeliveredAt together model the delivery lease: a
// time-bounded claim granting one actor the right to perform delivery.
// DeliveringAt may be set and cleared repeatedly; DeliveredAt is set at most
// once and never cleared.
type Job struct {
	ID             string     `json:"id"                         db:"id"`
	ProviderTaskID string     `json:"provider_task_id"           db:"provider_task_id"`
	OwnerRef       string     `json:"owner_ref"                  db:"owner_ref"`
	ProviderModel  string     `json:"provider_model"             db:"provider_model"`
	Status         JobStatus  `json:"status"                     db:"status"`
	ResultRefs     []string   `json:"result_refs,omitempty"      db:"result_refs"`
	Error          *JobError  `json:"error,omitempty"            db:"error"`
	DeliveringAt   *time.Time `json:"delivering_at,omitempty"    db:"delivering_at"`
	DeliveredAt    *time.Time `json:"delivered_at,omitempty"     db:"delivered_at"`
	CreatedAt      time.Time  `json:"created_at"                 db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"                 db:"updated_at"`
}

// Terminal reports whether the job has reached a terminal status.
func (j *Job) Terminal() bool {
	return j.Status.Terminal()
}

// Delivered reports whether the result has been handed off to the owner.
func (j *Job) Delivered() bool {
	return j.DeliveredAt != nil
}

// LeaseHeldAt reports whether a delivery lease acquired at DeliveringAt is
// still live at the given instant.
func (j *Job) LeaseHeldAt(now time.Time, lease time.Duration) bool {
	if j.DeliveringAt == nil {
		return false
	}
	return now.Sub(*j.DeliveringAt) < lease
}

// CreateJobRequest represents a request to create and submit a new job.
type CreateJobRequest struct {
	OwnerRef      string         `json:"owner_ref"`
	ProviderModel string         `json:"provider_model"`
	Parameters    map[string]any `json:"parameters"`
}

// Validate validates the CreateJobRequest fields.
func (r *CreateJobRequest) Validate() error {
	if strings.TrimSpace(r.OwnerRef) == "" {
		return errors.New("owner ref is required")
	}
	if strings.TrimSpace(r.ProviderModel) == "" {
		return errors.New("provider model is required")
	}
	return nil
}
