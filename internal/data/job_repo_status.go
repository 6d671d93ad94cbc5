package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/stokehq/genrelay/internal/core"
	"github.com/stokehq/genrelay/internal/domain/model"
	apperrors "github.com/stokehq/genrelay/internal/errors"
)

// Status transitions are guarded by current-state predicates in SQL so that
// terminal states absorb: a late poller tick or a duplicate callback can
// never move a job backwards.

// MarkRunning transitions queued → running. A no-op when the job already
// progressed, which is the common case once the first poll tick has landed.
func (r *JobRepo) MarkRunning(ctx context.Context, jobID string) error {
	if strings.TrimSpace(jobID) == "" {
		return ErrJobIDRequired
	}

	_, err := r.DB.ExecContext(ctx, `
		UPDATE jobs
		SET status = $2, updated_at = $3
		WHERE id = $1 AND status = $4`,
		jobID, model.JobStatusRunning, r.now(), model.JobStatusQueued)
	if err != nil {
		return apperrors.MapDBError(fmt.Errorf("mark job running: %w", err))
	}
	return nil
}

// MarkSuccess transitions a non-terminal job to success and stores the result
// refs. Returns false when the job was already terminal, in which case
// nothing is written.
func (r *JobRepo) MarkSuccess(ctx context.Context, jobID string, resultRefs []string) (bool, error) {
	if strings.TrimSpace(jobID) == "" {
		return false, ErrJobIDRequired
	}
	if len(resultRefs) == 0 {
		return false, errors.New("result refs are required for a success transition")
	}

	refs, err := json.Marshal(resultRefs)
	if err != nil {
		return false, fmt.Errorf("encode result refs: %w", err)
	}

	res, err := r.DB.ExecContext(ctx, `
		UPDATE jobs
		SET status = $2, result_refs = $3, error_code = NULL, error_message = NULL, updated_at = $4
		WHERE id = $1 AND status IN ($5, $6)`,
		jobID, model.JobStatusSuccess, refs, r.now(),
		model.JobStatusQueued, model.JobStatusRunning)
	if err != nil {
		return false, apperrors.MapDBError(fmt.Errorf("mark job success: %w", err))
	}
	return r.rowsAffected(res, "mark job success")
}

// MarkFailed transitions a non-terminal job to failed or timeout with a
// structured error. Returns false when the job was already terminal.
func (r *JobRepo) MarkFailed(ctx context.Context, params core.SetFailureParams) (bool, error) {
	if strings.TrimSpace(params.JobID) == "" {
		return false, ErrJobIDRequired
	}
	if params.Status != model.JobStatusFailed && params.Status != model.JobStatusTimeout {
		return false, fmt.Errorf("invalid failure status %q", params.Status)
	}

	res, err := r.DB.ExecContext(ctx, `
		UPDATE jobs
		SET status = $2, error_code = $3, error_message = $4, updated_at = $5
		WHERE id = $1 AND status IN ($6, $7)`,
		params.JobID, params.Status, params.Err.Code, params.Err.Message, r.now(),
		model.JobStatusQueued, model.JobStatusRunning)
	if err != nil {
		return false, apperrors.MapDBError(fmt.Errorf("mark job failed: %w", err))
	}
	return r.rowsAffected(res, "mark job failed")
}
