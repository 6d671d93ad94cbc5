package testutil

import (
	"context"
	"sync"

	"github.com/stokehq/genrelay/internal/core"
	"github.com/stokehq/genrelay/internal/domain/model"
)

// RecordingSink is a core.ResultSink that records invocations and can be
// made to fail.
type RecordingSink struct {
	mu sync.Mutex

	DeliverErr error

	deliveries []SinkDelivery
	heartbeats []string
	failures   []model.JobError
}

// SinkDelivery captures one Deliver invocation.
type SinkDelivery struct {
	JobID      string
	OwnerRef   string
	ResultRefs []string
}

var _ core.ResultSink = (*RecordingSink)(nil)

// Deliver records the hand-off, failing when DeliverErr is set.
func (s *RecordingSink) Deliver(_ context.Context, job *model.Job, resultRefs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.DeliverErr != nil {
		return s.DeliverErr
	}
	s.deliveries = append(s.deliveries, SinkDelivery{
		JobID:      job.ID,
		OwnerRef:   job.OwnerRef,
		ResultRefs: append([]string(nil), resultRefs...),
	})
	return nil
}

// Heartbeat records a progress note.
func (s *RecordingSink) Heartbeat(_ context.Context, job *model.Job, note string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.heartbeats = append(s.heartbeats, note)
	return nil
}

// ReportFailure records a terminal failure report.
func (s *RecordingSink) ReportFailure(_ context.Context, _ *model.Job, jobErr model.JobError) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, jobErr)
	return nil
}

// Deliveries returns the recorded Deliver invocations.
func (s *RecordingSink) Deliveries() []SinkDelivery {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SinkDelivery(nil), s.deliveries...)
}

// Heartbeats returns the recorded heartbeat notes.
func (s *RecordingSink) Heartbeats() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.heartbeats...)
}

// Failures returns the recorded failure reports.
func (s *RecordingSink) Failures() []model.JobError {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.JobError(nil), s.failures...)
}

// SetDeliverErr changes the delivery failure injected into subsequent calls.
func (s *RecordingSink) SetDeliverErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.DeliverErr = err
}

// StatusStep is one scripted FetchStatus outcome.
type StatusStep struct {
	Status *core.ProviderStatus
	Err    error
}

// ScriptedProviderClient replays a fixed sequence of provider responses. The
// final step repeats once the script is exhausted.
type ScriptedProviderClient struct {
	mu sync.Mutex

	SubmitTaskID string
	SubmitErr    error
	Steps        []StatusStep

	submits int
	fetches int
}

var _ core.ProviderClient = (*ScriptedProviderClient)(nil)

// Submit returns the scripted task id or error.
func (c *ScriptedProviderClient) Submit(context.Context, string, map[string]any) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.submits++
	if c.SubmitErr != nil {
		return "", c.SubmitErr
	}
	return c.SubmitTaskID, nil
}

// FetchStatus pops the next scripted step.
func (c *ScriptedProviderClient) FetchStatus(context.Context, string) (*core.ProviderStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.Steps) == 0 {
		return &core.ProviderStatus{RawStatus: "running"}, nil
	}
	i := c.fetches
	if i >= len(c.Steps) {
		i = len(c.Steps) - 1
	}
	c.fetches++
	step := c.Steps[i]
	return step.Status, step.Err
}

// Fetches returns how many FetchStatus calls were made.
func (c *ScriptedProviderClient) Fetches() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fetches
}
