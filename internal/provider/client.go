// Package provider implements the HTTP client for the remote asynchronous
// compute provider: task submission and status fetch.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/stokehq/genrelay/internal/core"
	apperrors "github.com/stokehq/genrelay/internal/errors"
)

const maxResponseBodyBytes = 64 * 1024

// ClientOptions configures the provider client.
type ClientOptions struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	Logger     *slog.Logger

	// Retry settings for transient transport failures. Provider application
	// errors are never retried.
	MaxAttempts int           // defaults to 3
	Backoff     time.Duration // initial backoff, doubled per attempt; defaults to 500ms
	MaxBackoff  time.Duration // backoff cap; defaults to 5s
}

// Client talks to the provider's task API.
type Client struct {
	baseURL     string
	apiKey      string
	http        *http.Client
	logger      *slog.Logger
	maxAttempts int
	backoff     time.Duration
	maxBackoff  time.Duration
}

var _ core.ProviderClient = (*Client)(nil)

// NewClient constructs a provider client.
func NewClient(opts ClientOptions) (*Client, error) {
	if strings.TrimSpace(opts.BaseURL) == "" {
		return nil, errors.New("provider base url is required")
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	backoff := opts.Backoff
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	maxBackoff := opts.MaxBackoff
	if maxBackoff <= 0 {
		maxBackoff = 5 * time.Second
	}

	return &Client{
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		apiKey:      opts.APIKey,
		http:        hc,
		logger:      logger,
		maxAttempts: maxAttempts,
		backoff:     backoff,
		maxBackoff:  maxBackoff,
	}, nil
}

// envelope is the provider's response wrapper. Code 200 means the request was
// accepted at the application level; anything else carries an error message.
type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type submitData struct {
	TaskID string `json:"taskId"`
}

type statusData struct {
	TaskID       string   `json:"taskId"`
	Status       string   `json:"status"`
	ResultURLs   []string `json:"resultUrls"`
	ErrorCode    string   `json:"errorCode"`
	ErrorMessage string   `json:"errorMessage"`
}

// Submit creates a remote task and returns the provider task id. Transient
// transport failures are retried up to the attempt budget with doubling
// backoff; provider-reported application errors surface immediately.
func (c *Client) Submit(ctx context.Context, providerModel string, parameters map[string]any) (string, error) {
	if strings.TrimSpace(providerModel) == "" {
		return "", apperrors.Validation("provider model is required")
	}

	body, err := json.Marshal(map[string]any{
		"model": providerModel,
		"input": parameters,
	})
	if err != nil {
		return "", fmt.Errorf("encode submit request: %w", err)
	}

	env, err := c.doWithRetry(ctx, http.MethodPost, "/v1/tasks", body)
	if err != nil {
		return "", err
	}

	var data submitData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return "", fmt.Errorf("decode submit response: %w", err)
	}
	if data.TaskID == "" {
		return "", apperrors.Provider("empty_task_id", "provider accepted the task but returned no task id")
	}
	return data.TaskID, nil
}

// FetchStatus fetches the raw status of a previously submitted task.
func (c *Client) FetchStatus(ctx context.Context, taskID string) (*core.ProviderStatus, error) {
	if strings.TrimSpace(taskID) == "" {
		return nil, apperrors.Validation("task id is required")
	}

	env, err := c.doWithRetry(ctx, http.MethodGet, "/v1/tasks/"+taskID, nil)
	if err != nil {
		return nil, err
	}

	var data statusData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("decode status response: %w", err)
	}
	return &core.ProviderStatus{
		RawStatus:      data.Status,
		ResultRefs:     data.ResultURLs,
		FailureCode:    data.ErrorCode,
		FailureMessage: data.ErrorMessage,
	}, nil
}

// doWithRetry performs the request, retrying transient failures. The returned
// envelope always has application code 200.
func (c *Client) doWithRetry(ctx context.Context, method, path string, body []byte) (*envelope, error) {
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			if err := c.sleep(ctx, attempt); err != nil {
				return nil, err
			}
		}

		env, err := c.do(ctx, method, path, body)
		if err == nil {
			return env, nil
		}
		if !retryable(err) {
			return nil, err
		}

		lastErr = err
		c.logger.WarnContext(ctx, "provider call failed, will retry",
			"method", method, "path", path, "attempt", attempt, "error", err)
	}
	return nil, apperrors.Wrapf(lastErr, apperrors.ErrCodeNetwork,
		"provider unreachable after %d attempts", c.maxAttempts)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (*envelope, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build provider request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeNetwork, "provider request failed")
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyBytes))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeNetwork, "read provider response")
	}

	if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
		return nil, apperrors.Network(fmt.Sprintf("provider returned HTTP %d", resp.StatusCode))
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrCodeNetwork,
			"malformed provider response (HTTP %d)", resp.StatusCode)
	}

	// Non-2xx HTTP or non-200 envelope code is an application rejection:
	// terminal, never retried, never billed as success.
	if resp.StatusCode >= http.StatusBadRequest || env.Code != http.StatusOK {
		code := fmt.Sprintf("provider_%d", env.Code)
		if env.Code == 0 {
			code = fmt.Sprintf("http_%d", resp.StatusCode)
		}
		msg := env.Message
		if msg == "" {
			msg = "provider rejected the request"
		}
		return nil, apperrors.Provider(code, msg)
	}

	return &env, nil
}

// sleep waits for the backoff belonging to the given attempt, honoring
// context cancellation.
func (c *Client) sleep(ctx context.Context, attempt int) error {
	d := c.backoff
	for i := 2; i < attempt; i++ {
		d *= 2
	}
	if d > c.maxBackoff {
		d = c.maxBackoff
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// retryable reports whether the error is a transport-level failure worth
// retrying. Provider application errors are terminal.
func retryable(err error) bool {
	return apperrors.IsNetwork(err)
}
