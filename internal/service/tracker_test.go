package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stokehq/genrelay/internal/core"
	"github.com/stokehq/genrelay/internal/domain/model"
	"github.com/stokehq/genrelay/internal/testutil"
)

func newTracker(t *testing.T, f *pollerFixture) *Tracker {
	t.Helper()
	tracker, err := NewTracker(TrackerOptions{Poller: f.svc})
	require.NoError(t, err)
	return tracker
}

func TestTracker_Track_PollsToCompletion(t *testing.T) {
	provider := &testutil.ScriptedProviderClient{
		Steps: []testutil.StatusStep{
			{Status: &core.ProviderStatus{RawStatus: "running"}},
			{Status: &core.ProviderStatus{RawStatus: "succeed", ResultRefs: []string{"r1"}}},
		},
	}
	f := newPollerFixture(t, provider, PollerConfig{})
	f.createJob(t, "a")

	tracker := newTracker(t, f)
	tracker.Start(context.Background())
	tracker.Track("a")
	tracker.Wait()

	assert.Equal(t, 0, tracker.ActiveCount())
	require.Len(t, f.sink.Deliveries(), 1)

	job, err := f.repo.GetByID(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusSuccess, job.Status)
}

// Track while a poll for the same job is in flight must not start a second
// polling goroutine.
func TestTracker_Track_IdempotentPerJob(t *testing.T) {
	release := make(chan struct{})
	provider := &blockingProvider{release: release, started: make(chan struct{})}
	f := newPollerFixture(t, provider, PollerConfig{})
	f.createJob(t, "a")

	tracker := newTracker(t, f)
	tracker.Start(context.Background())
	tracker.Track("a")

	// Wait for the goroutine to reach the provider before re-tracking.
	select {
	case <-provider.started:
	case <-time.After(5 * time.Second):
		t.Fatal("poller never reached the provider")
	}
	tracker.Track("a")
	assert.Equal(t, 1, tracker.ActiveCount())

	close(release)
	tracker.Wait()

	assert.Equal(t, 1, provider.fetches, "second Track must not fetch again")
	require.Len(t, f.sink.Deliveries(), 1)
}

func TestTracker_Resume_TracksUnfinishedJobs(t *testing.T) {
	provider := &testutil.ScriptedProviderClient{
		Steps: []testutil.StatusStep{
			{Status: &core.ProviderStatus{RawStatus: "succeed", ResultRefs: []string{"r1"}}},
		},
	}
	f := newPollerFixture(t, provider, PollerConfig{})
	f.createJob(t, "a")
	f.createJob(t, "b")

	done, err := f.repo.MarkSuccess(context.Background(), "b", []string{"pre"})
	require.NoError(t, err)
	require.True(t, done)
	claimed, err := f.repo.ClaimDelivery(context.Background(), "b", time.Minute)
	require.NoError(t, err)
	require.True(t, claimed)
	wrote, err := f.repo.MarkDelivered(context.Background(), "b")
	require.NoError(t, err)
	require.True(t, wrote)

	tracker := newTracker(t, f)
	ctx := context.Background()
	tracker.Start(ctx)
	require.NoError(t, tracker.Resume(ctx))
	tracker.Wait()

	// Only the unfinished job was resumed, and it ran to delivery.
	require.Len(t, f.sink.Deliveries(), 1)
	job, err := f.repo.GetByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusSuccess, job.Status)
}

// A success recorded before a crash, with no delivery marker, is still part
// of the resume scan so the hand-off completes after a restart.
func TestTracker_Resume_RedeliversUndeliveredSuccess(t *testing.T) {
	provider := &testutil.ScriptedProviderClient{}
	f := newPollerFixture(t, provider, PollerConfig{})
	f.createJob(t, "a")

	done, err := f.repo.MarkSuccess(context.Background(), "a", []string{"r1"})
	require.NoError(t, err)
	require.True(t, done)

	tracker := newTracker(t, f)
	ctx := context.Background()
	tracker.Start(ctx)
	require.NoError(t, tracker.Resume(ctx))
	tracker.Wait()

	assert.Equal(t, 0, provider.Fetches())
	require.Len(t, f.sink.Deliveries(), 1)

	job, err := f.repo.GetByID(ctx, "a")
	require.NoError(t, err)
	assert.NotNil(t, job.DeliveredAt)
}

func TestNewTracker_RequiresPoller(t *testing.T) {
	_, err := NewTracker(TrackerOptions{})
	require.Error(t, err)
}

// blockingProvider parks the first FetchStatus call until released, then
// reports success.
type blockingProvider struct {
	release <-chan struct{}
	started chan struct{}
	fetches int
}

func (p *blockingProvider) Submit(context.Context, string, map[string]any) (string, error) {
	return "task-block", nil
}

func (p *blockingProvider) FetchStatus(ctx context.Context, _ string) (*core.ProviderStatus, error) {
	p.fetches++
	if p.started != nil {
		close(p.started)
		p.started = nil
	}
	select {
	case <-p.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &core.ProviderStatus{RawStatus: "succeed", ResultRefs: []string{"r1"}}, nil
}
