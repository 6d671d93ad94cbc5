// Package webhooksink delivers job outcomes to the owner's webhook endpoint.
package webhooksink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/stokehq/genrelay/internal/core"
	"github.com/stokehq/genrelay/internal/domain/model"
	apperrors "github.com/stokehq/genrelay/internal/errors"
)

const defaultTimeout = 10 * time.Second

// Options groups configuration for Sink.
type Options struct {
	URL        string       // Required: webhook endpoint
	AuthToken  string       // Optional: sent as a bearer token
	HTTPClient *http.Client // Optional
	Logger     *slog.Logger // Optional
}

// Sink posts result hand-offs, progress notes, and failure reports to a
// single webhook URL. The receiving side distinguishes them by the event
// type field.
type Sink struct {
	url    string
	token  string
	client *http.Client
	logger *slog.Logger
}

var _ core.ResultSink = (*Sink)(nil)

// New constructs a webhook sink.
func New(opts Options) (*Sink, error) {
	if opts.URL == "" {
		return nil, errors.New("webhook URL is required")
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &Sink{
		url:    opts.URL,
		token:  opts.AuthToken,
		client: client,
		logger: opts.Logger,
	}, nil
}

type event struct {
	Type       string          `json:"type"`
	JobID      string          `json:"job_id"`
	OwnerRef   string          `json:"owner_ref"`
	ResultRefs []string        `json:"result_refs,omitempty"`
	Note       string          `json:"note,omitempty"`
	Error      *model.JobError `json:"error,omitempty"`
}

// Deliver posts the final result locators.
func (s *Sink) Deliver(ctx context.Context, job *model.Job, resultRefs []string) error {
	return s.post(ctx, event{
		Type:       "result",
		JobID:      job.ID,
		OwnerRef:   job.OwnerRef,
		ResultRefs: resultRefs,
	})
}

// Heartbeat posts a progress note.
func (s *Sink) Heartbeat(ctx context.Context, job *model.Job, note string) error {
	return s.post(ctx, event{
		Type:     "progress",
		JobID:    job.ID,
		OwnerRef: job.OwnerRef,
		Note:     note,
	})
}

// ReportFailure posts a terminal failure report.
func (s *Sink) ReportFailure(ctx context.Context, job *model.Job, jobErr model.JobError) error {
	return s.post(ctx, event{
		Type:     "failure",
		JobID:    job.ID,
		OwnerRef: job.OwnerRef,
		Error:    &jobErr,
	})
}

func (s *Sink) post(ctx context.Context, ev event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode webhook event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeNetwork, "post webhook event")
	}
	defer resp.Body.Close()

	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apperrors.Network(fmt.Sprintf("webhook returned status %d for %s event", resp.StatusCode, ev.Type))
	}

	if s.logger != nil {
		s.logger.DebugContext(ctx, "webhook event posted", "type", ev.Type, "job_id", ev.JobID)
	}
	return nil
}
