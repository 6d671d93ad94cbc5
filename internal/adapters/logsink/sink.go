// Package logsink is a development ResultSink that writes hand-offs to the
// structured log instead of an external endpoint.
package logsink

import (
	"context"
	"log/slog"

	"github.com/stokehq/genrelay/internal/core"
	"github.com/stokehq/genrelay/internal/domain/model"
)

// Sink logs every delivery, heartbeat, and failure report.
type Sink struct {
	logger *slog.Logger
}

var _ core.ResultSink = (*Sink)(nil)

// New constructs a logging sink. A nil logger falls back to slog.Default.
func New(logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{logger: logger}
}

// Deliver logs the final result locators.
func (s *Sink) Deliver(ctx context.Context, job *model.Job, resultRefs []string) error {
	s.logger.InfoContext(ctx, "result delivered",
		"job_id", job.ID, "owner_ref", job.OwnerRef, "result_refs", resultRefs)
	return nil
}

// Heartbeat logs a progress note.
func (s *Sink) Heartbeat(ctx context.Context, job *model.Job, note string) error {
	s.logger.InfoContext(ctx, "job progress",
		"job_id", job.ID, "owner_ref", job.OwnerRef, "note", note)
	return nil
}

// ReportFailure logs a terminal failure report.
func (s *Sink) ReportFailure(ctx context.Context, job *model.Job, jobErr model.JobError) error {
	s.logger.WarnContext(ctx, "job failed",
		"job_id", job.ID, "owner_ref", job.OwnerRef, "code", jobErr.Code, "message", jobErr.Message)
	return nil
}
