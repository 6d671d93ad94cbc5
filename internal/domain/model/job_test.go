package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobStatus_Valid(t *testing.T) {
	for _, s := range []JobStatus{
		JobStatusQueued, JobStatusRunning, JobStatusSuccess, JobStatusFailed, JobStatusTimeout,
	} {
		assert.True(t, s.Valid(), "status %q should be valid", s)
	}
	assert.False(t, JobStatus("pending").Valid())
	assert.False(t, JobStatus("").Valid())
}

func TestJobStatus_Terminal(t *testing.T) {
	assert.False(t, JobStatusQueued.Terminal())
	assert.False(t, JobStatusRunning.Terminal())
	assert.True(t, JobStatusSuccess.Terminal())
	assert.True(t, JobStatusFailed.Terminal())
	assert.True(t, JobStatusTimeout.Terminal())
}

func TestJob_LeaseHeldAt(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	lease := 5 * time.Minute

	t.Run("no lease", func(t *testing.T) {
		j := &Job{}
		assert.False(t, j.LeaseHeldAt(now, lease))
	})

	t.Run("live lease", func(t *testing.T) {
		at := now.Add(-time.Minute)
		j := &Job{DeliveringAt: &at}
		assert.True(t, j.LeaseHeldAt(now, lease))
	})

	t.Run("expired lease", func(t *testing.T) {
		at := now.Add(-6 * time.Minute)
		j := &Job{DeliveringAt: &at}
		assert.False(t, j.LeaseHeldAt(now, lease))
	})
}

func TestCreateJobRequest_Validate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		req := &CreateJobRequest{
			OwnerRef:      "chat:42",
			ProviderModel: "render-v2",
			Parameters:    map[string]any{"prompt": "a lighthouse"},
		}
		require.NoError(t, req.Validate())
	})

	t.Run("missing owner ref", func(t *testing.T) {
		req := &CreateJobRequest{ProviderModel: "render-v2"}
		require.Error(t, req.Validate())
	})

	t.Run("missing provider model", func(t *testing.T) {
		req := &CreateJobRequest{OwnerRef: "chat:42"}
		require.Error(t, req.Validate())
	})
}
