package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stokehq/genrelay/internal/core"
	"github.com/stokehq/genrelay/internal/data"
	"github.com/stokehq/genrelay/internal/domain/model"
	apperrors "github.com/stokehq/genrelay/internal/errors"
	"github.com/stokehq/genrelay/internal/testutil"
)

type pollerFixture struct {
	clock *data.FixedTimeProvider
	repo  *testutil.MemoryJobRepo
	sink  *testutil.RecordingSink
	svc   *PollerService
}

func newPollerFixture(t *testing.T, provider core.ProviderClient, cfg PollerConfig) *pollerFixture {
	t.Helper()

	clock := data.NewFixedTimeProvider(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	repo := testutil.NewMemoryJobRepo(clock)
	sink := &testutil.RecordingSink{}

	delivery, err := NewDeliveryService(DeliveryServiceOptions{Repo: repo, Sink: sink})
	require.NoError(t, err)

	if cfg.Interval == 0 {
		cfg.Interval = time.Millisecond
	}

	svc, err := NewPollerService(PollerServiceOptions{
		Repo:     repo,
		Provider: provider,
		Delivery: delivery,
		Sink:     sink,
		Config:   cfg,
		Clock:    clock,
	})
	require.NoError(t, err)

	return &pollerFixture{clock: clock, repo: repo, sink: sink, svc: svc}
}

func (f *pollerFixture) createJob(t *testing.T, id string) *model.Job {
	t.Helper()
	job, err := f.repo.Create(context.Background(), core.CreateJobParams{
		ID:             id,
		OwnerRef:       "chat:7",
		ProviderModel:  "render-v2",
		ProviderTaskID: "task-" + id,
	})
	require.NoError(t, err)
	return job
}

// Three running fetches, then succeed: the poller normalizes, records the
// result refs, and delivers exactly once.
func TestPollerService_Poll_SuccessAfterRunning(t *testing.T) {
	provider := &testutil.ScriptedProviderClient{
		Steps: []testutil.StatusStep{
			{Status: &core.ProviderStatus{RawStatus: "running"}},
			{Status: &core.ProviderStatus{RawStatus: "running"}},
			{Status: &core.ProviderStatus{RawStatus: "running"}},
			{Status: &core.ProviderStatus{RawStatus: "succeed", ResultRefs: []string{"r1"}}},
		},
	}
	f := newPollerFixture(t, provider, PollerConfig{})
	f.createJob(t, "a")

	require.NoError(t, f.svc.Poll(context.Background(), "a"))

	assert.Equal(t, 4, provider.Fetches())
	require.Len(t, f.sink.Deliveries(), 1)
	assert.Equal(t, []string{"r1"}, f.sink.Deliveries()[0].ResultRefs)

	job, err := f.repo.GetByID(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusSuccess, job.Status)
	assert.Equal(t, []string{"r1"}, job.ResultRefs)
	assert.NotNil(t, job.DeliveredAt)
	assert.NotEmpty(t, f.sink.Heartbeats(), "running ticks emit heartbeats")
}

func TestPollerService_Poll_ProviderFailure(t *testing.T) {
	provider := &testutil.ScriptedProviderClient{
		Steps: []testutil.StatusStep{
			{Status: &core.ProviderStatus{RawStatus: "running"}},
			{Status: &core.ProviderStatus{
				RawStatus:      "error",
				FailureCode:    "NSFW",
				FailureMessage: "content rejected",
			}},
		},
	}
	f := newPollerFixture(t, provider, PollerConfig{})
	f.createJob(t, "a")

	require.NoError(t, f.svc.Poll(context.Background(), "a"))

	assert.Empty(t, f.sink.Deliveries())
	require.Len(t, f.sink.Failures(), 1)
	assert.Equal(t, "NSFW", f.sink.Failures()[0].Code)

	job, err := f.repo.GetByID(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusFailed, job.Status)
	require.NotNil(t, job.Error)
	assert.Equal(t, "content rejected", job.Error.Message)
}

// Five consecutive connection failures escalate to a terminal network error;
// no delivery is attempted.
func TestPollerService_Poll_PersistentFetchFailure(t *testing.T) {
	provider := &testutil.ScriptedProviderClient{
		Steps: []testutil.StatusStep{
			{Err: apperrors.Network("connection refused")},
		},
	}
	f := newPollerFixture(t, provider, PollerConfig{MaxFetchFailures: 5})
	f.createJob(t, "a")

	require.NoError(t, f.svc.Poll(context.Background(), "a"))

	assert.Equal(t, 5, provider.Fetches())
	assert.Empty(t, f.sink.Deliveries())

	job, err := f.repo.GetByID(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusFailed, job.Status)
	require.NotNil(t, job.Error)
	assert.Equal(t, string(apperrors.ErrCodeNetwork), job.Error.Code)
}

// Transient failures below the budget do not end the loop.
func TestPollerService_Poll_TransientFetchFailureRecovers(t *testing.T) {
	provider := &testutil.ScriptedProviderClient{
		Steps: []testutil.StatusStep{
			{Err: apperrors.Network("connection reset")},
			{Err: apperrors.Network("connection reset")},
			{Status: &core.ProviderStatus{RawStatus: "succeed", ResultRefs: []string{"r1"}}},
		},
	}
	f := newPollerFixture(t, provider, PollerConfig{MaxFetchFailures: 5})
	f.createJob(t, "a")

	require.NoError(t, f.svc.Poll(context.Background(), "a"))
	assert.Len(t, f.sink.Deliveries(), 1)
}

// A provider application error during polling is terminal immediately.
func TestPollerService_Poll_ProviderAppErrorNotRetried(t *testing.T) {
	provider := &testutil.ScriptedProviderClient{
		Steps: []testutil.StatusStep{
			{Err: apperrors.Provider("provider_404", "task not found")},
		},
	}
	f := newPollerFixture(t, provider, PollerConfig{MaxFetchFailures: 5})
	f.createJob(t, "a")

	require.NoError(t, f.svc.Poll(context.Background(), "a"))

	assert.Equal(t, 1, provider.Fetches())
	job, err := f.repo.GetByID(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusFailed, job.Status)
}

// clockAdvancingProvider moves the shared fake clock forward on every fetch
// so ceiling expiry is deterministic.
type clockAdvancingProvider struct {
	clock *data.FixedTimeProvider
	step  time.Duration
	mu    sync.Mutex
	calls int
}

func (p *clockAdvancingProvider) Submit(context.Context, string, map[string]any) (string, error) {
	return "", nil
}

func (p *clockAdvancingProvider) FetchStatus(context.Context, string) (*core.ProviderStatus, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.clock.AddTime(p.step)
	return &core.ProviderStatus{RawStatus: "running"}, nil
}

func TestPollerService_Poll_CeilingTimeout(t *testing.T) {
	f := newPollerFixture(t, &testutil.ScriptedProviderClient{}, PollerConfig{})
	provider := &clockAdvancingProvider{clock: f.clock, step: time.Minute}

	// Rebuild the poller around the clock-advancing provider.
	delivery, err := NewDeliveryService(DeliveryServiceOptions{Repo: f.repo, Sink: f.sink})
	require.NoError(t, err)
	svc, err := NewPollerService(PollerServiceOptions{
		Repo:     f.repo,
		Provider: provider,
		Delivery: delivery,
		Sink:     f.sink,
		Config:   PollerConfig{Interval: time.Millisecond, Ceiling: 5 * time.Minute},
		Clock:    f.clock,
	})
	require.NoError(t, err)

	f.createJob(t, "a")
	require.NoError(t, svc.Poll(context.Background(), "a"))

	job, err := f.repo.GetByID(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusTimeout, job.Status)
	require.NotNil(t, job.Error)
	assert.Equal(t, string(apperrors.ErrCodeTimeout), job.Error.Code)
	assert.Empty(t, f.sink.Deliveries())
	require.Len(t, f.sink.Failures(), 1)
}

// Once the ingester has finished a job, the poller's next tick exits without
// another delivery or another provider fetch.
func TestPollerService_Poll_ExitsWhenAlreadyDelivered(t *testing.T) {
	provider := &testutil.ScriptedProviderClient{}
	f := newPollerFixture(t, provider, PollerConfig{})
	f.createJob(t, "a")

	ctx := context.Background()
	_, err := f.repo.MarkSuccess(ctx, "a", []string{"r1"})
	require.NoError(t, err)
	won, err := f.repo.ClaimDelivery(ctx, "a", time.Minute)
	require.NoError(t, err)
	require.True(t, won)
	set, err := f.repo.MarkDelivered(ctx, "a")
	require.NoError(t, err)
	require.True(t, set)

	require.NoError(t, f.svc.Poll(ctx, "a"))
	assert.Equal(t, 0, provider.Fetches())
	assert.Empty(t, f.sink.Deliveries())
}

// A success recorded by another actor that crashed before delivering is
// re-driven into the coordinator.
func TestPollerService_Poll_RedeliversRecordedSuccess(t *testing.T) {
	provider := &testutil.ScriptedProviderClient{}
	f := newPollerFixture(t, provider, PollerConfig{})
	f.createJob(t, "a")

	ctx := context.Background()
	_, err := f.repo.MarkSuccess(ctx, "a", []string{"r1"})
	require.NoError(t, err)

	require.NoError(t, f.svc.Poll(ctx, "a"))
	assert.Equal(t, 0, provider.Fetches())
	require.Len(t, f.sink.Deliveries(), 1)
}

func TestPollerService_Poll_CancelableDuringSleep(t *testing.T) {
	provider := &testutil.ScriptedProviderClient{
		Steps: []testutil.StatusStep{{Status: &core.ProviderStatus{RawStatus: "running"}}},
	}
	f := newPollerFixture(t, provider, PollerConfig{Interval: time.Hour})
	f.createJob(t, "a")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- f.svc.Poll(ctx, "a")
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not stop after cancellation")
	}

	// In-flight state survives in the store for a restarted poller.
	job, err := f.repo.GetByID(context.Background(), "a")
	require.NoError(t, err)
	assert.False(t, job.Terminal())
}

// flakySink fails a fixed number of Deliver calls before recovering.
type flakySink struct {
	*testutil.RecordingSink
	mu       sync.Mutex
	failures int
}

func (s *flakySink) Deliver(ctx context.Context, job *model.Job, refs []string) error {
	s.mu.Lock()
	if s.failures > 0 {
		s.failures--
		s.mu.Unlock()
		return apperrors.Network("webhook unavailable")
	}
	s.mu.Unlock()
	return s.RecordingSink.Deliver(ctx, job, refs)
}

// A transient sink failure on the success hand-off must not strand the job:
// the loop stays alive and the next tick re-drives delivery from the stored
// refs.
func TestPollerService_Poll_RetriesDeliveryAfterSinkFailure(t *testing.T) {
	provider := &testutil.ScriptedProviderClient{
		Steps: []testutil.StatusStep{
			{Status: &core.ProviderStatus{RawStatus: "succeed", ResultRefs: []string{"r1"}}},
		},
	}
	f := newPollerFixture(t, provider, PollerConfig{})
	sink := &flakySink{RecordingSink: f.sink, failures: 1}

	// Rebuild the poller around the failing sink.
	delivery, err := NewDeliveryService(DeliveryServiceOptions{Repo: f.repo, Sink: sink})
	require.NoError(t, err)
	svc, err := NewPollerService(PollerServiceOptions{
		Repo:     f.repo,
		Provider: provider,
		Delivery: delivery,
		Sink:     sink,
		Config:   PollerConfig{Interval: time.Millisecond},
		Clock:    f.clock,
	})
	require.NoError(t, err)

	f.createJob(t, "a")
	require.NoError(t, svc.Poll(context.Background(), "a"))

	require.Len(t, f.sink.Deliveries(), 1)
	assert.Equal(t, []string{"r1"}, f.sink.Deliveries()[0].ResultRefs)

	job, err := f.repo.GetByID(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusSuccess, job.Status)
	assert.NotNil(t, job.DeliveredAt)
}
