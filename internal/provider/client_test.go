package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/stokehq/genrelay/internal/errors"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(ClientOptions{
		BaseURL:     srv.URL,
		APIKey:      "test-key",
		MaxAttempts: 3,
		Backoff:     time.Millisecond,
		MaxBackoff:  5 * time.Millisecond,
	})
	require.NoError(t, err)
	return client, srv
}

func TestClient_Submit(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/v1/tasks", r.URL.Path)
			assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
			_, _ = w.Write([]byte(`{"code":200,"data":{"taskId":"task-1"}}`))
		}))

		taskID, err := client.Submit(context.Background(), "render-v2", map[string]any{"prompt": "p"})
		require.NoError(t, err)
		assert.Equal(t, "task-1", taskID)
	})

	t.Run("retries transient 500 then succeeds", func(t *testing.T) {
		var calls atomic.Int32
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			_, _ = w.Write([]byte(`{"code":200,"data":{"taskId":"task-2"}}`))
		}))

		taskID, err := client.Submit(context.Background(), "render-v2", nil)
		require.NoError(t, err)
		assert.Equal(t, "task-2", taskID)
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("exhausts retry budget on persistent network failure", func(t *testing.T) {
		var calls atomic.Int32
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusBadGateway)
		}))

		_, err := client.Submit(context.Background(), "render-v2", nil)
		require.Error(t, err)
		assert.True(t, apperrors.IsNetwork(err))
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("application error is terminal and not retried", func(t *testing.T) {
		var calls atomic.Int32
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"code":422,"message":"insufficient balance"}`))
		}))

		_, err := client.Submit(context.Background(), "render-v2", nil)
		require.Error(t, err)
		assert.True(t, apperrors.IsProvider(err))
		assert.Contains(t, err.Error(), "insufficient balance")
		assert.Equal(t, int32(1), calls.Load(), "application errors must not be retried")
	})

	t.Run("envelope error with HTTP 200", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"code":501,"message":"model not supported"}`))
		}))

		_, err := client.Submit(context.Background(), "render-v2", nil)
		require.Error(t, err)
		assert.True(t, apperrors.IsProvider(err))
	})

	t.Run("missing task id", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"code":200,"data":{}}`))
		}))

		_, err := client.Submit(context.Background(), "render-v2", nil)
		require.Error(t, err)
		assert.True(t, apperrors.IsProvider(err))
	})

	t.Run("empty model rejected locally", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("no request expected")
		}))

		_, err := client.Submit(context.Background(), "  ", nil)
		require.Error(t, err)
		assert.True(t, apperrors.IsValidation(err))
	})
}

func TestClient_FetchStatus(t *testing.T) {
	t.Run("running", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/tasks/task-3", r.URL.Path)
			_, _ = w.Write([]byte(`{"code":200,"data":{"taskId":"task-3","status":"generating"}}`))
		}))

		st, err := client.FetchStatus(context.Background(), "task-3")
		require.NoError(t, err)
		assert.Equal(t, "generating", st.RawStatus)
		assert.Empty(t, st.ResultRefs)
	})

	t.Run("terminal with results", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"code":200,"data":{"taskId":"task-4","status":"succeed","resultUrls":["r1","r2"]}}`))
		}))

		st, err := client.FetchStatus(context.Background(), "task-4")
		require.NoError(t, err)
		assert.Equal(t, "succeed", st.RawStatus)
		assert.Equal(t, []string{"r1", "r2"}, st.ResultRefs)
	})

	t.Run("failure carries provider code and message", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"code":200,"data":{"taskId":"task-5","status":"error","errorCode":"NSFW","errorMessage":"content rejected"}}`))
		}))

		st, err := client.FetchStatus(context.Background(), "task-5")
		require.NoError(t, err)
		assert.Equal(t, "error", st.RawStatus)
		assert.Equal(t, "NSFW", st.FailureCode)
		assert.Equal(t, "content rejected", st.FailureMessage)
	})

	t.Run("context cancellation stops retries", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := client.FetchStatus(ctx, "task-6")
		require.Error(t, err)
	})
}
