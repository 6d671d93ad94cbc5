package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stokehq/genrelay/internal/data"
	"github.com/stokehq/genrelay/internal/domain/model"
	apperrors "github.com/stokehq/genrelay/internal/errors"
	"github.com/stokehq/genrelay/internal/testutil"
)

func newJobService(t *testing.T, provider *testutil.ScriptedProviderClient) (*JobService, *testutil.MemoryJobRepo) {
	t.Helper()
	clock := data.NewFixedTimeProvider(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	repo := testutil.NewMemoryJobRepo(clock)
	svc, err := NewJobService(JobServiceOptions{Repo: repo, Provider: provider})
	require.NoError(t, err)
	return svc, repo
}

func TestJobService_Submit(t *testing.T) {
	t.Run("creates and submits", func(t *testing.T) {
		provider := &testutil.ScriptedProviderClient{SubmitTaskID: "t-1"}
		svc, repo := newJobService(t, provider)

		job, err := svc.Submit(context.Background(), &model.CreateJobRequest{
			OwnerRef:      "chat:7",
			ProviderModel: "render-v2",
			Parameters:    map[string]any{"prompt": "a red fox"},
		})
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusQueued, job.Status)
		assert.Equal(t, "t-1", job.ProviderTaskID)

		stored, err := repo.GetByProviderTaskID(context.Background(), "t-1")
		require.NoError(t, err)
		assert.Equal(t, job.ID, stored.ID)
		assert.Equal(t, "chat:7", stored.OwnerRef)
	})

	t.Run("provider rejection fails the job without retry", func(t *testing.T) {
		provider := &testutil.ScriptedProviderClient{
			SubmitErr: apperrors.Provider("provider_400", "model not available"),
		}
		svc, repo := newJobService(t, provider)

		job, err := svc.Submit(context.Background(), &model.CreateJobRequest{
			OwnerRef:      "chat:7",
			ProviderModel: "render-v2",
		})
		require.Error(t, err)
		assert.Nil(t, job)
		assert.Equal(t, apperrors.ErrCodeProvider, apperrors.CodeOf(err))

		jobs, err := repo.ListUnfinished(context.Background(), 0)
		require.NoError(t, err)
		assert.Empty(t, jobs, "rejected submission must be terminal")
	})

	t.Run("invalid request never reaches the provider", func(t *testing.T) {
		provider := &testutil.ScriptedProviderClient{SubmitTaskID: "t-1"}
		svc, repo := newJobService(t, provider)

		_, err := svc.Submit(context.Background(), &model.CreateJobRequest{ProviderModel: "render-v2"})
		require.Error(t, err)
		assert.True(t, apperrors.IsValidation(err))

		jobs, err := repo.ListUnfinished(context.Background(), 0)
		require.NoError(t, err)
		assert.Empty(t, jobs)
	})

	t.Run("nil request", func(t *testing.T) {
		svc, _ := newJobService(t, &testutil.ScriptedProviderClient{SubmitTaskID: "t-1"})
		_, err := svc.Submit(context.Background(), nil)
		require.Error(t, err)
	})
}

func TestJobService_GetByID(t *testing.T) {
	provider := &testutil.ScriptedProviderClient{SubmitTaskID: "t-1"}
	svc, _ := newJobService(t, provider)

	created, err := svc.Submit(context.Background(), &model.CreateJobRequest{
		OwnerRef:      "chat:7",
		ProviderModel: "render-v2",
	})
	require.NoError(t, err)

	job, err := svc.GetByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, job.ID)

	_, err = svc.GetByID(context.Background(), "missing")
	require.Error(t, err)
}

func TestNewJobService_Validation(t *testing.T) {
	_, err := NewJobService(JobServiceOptions{})
	require.Error(t, err)

	_, err = NewJobService(JobServiceOptions{Repo: testutil.NewMemoryJobRepo(nil)})
	require.Error(t, err)
}
