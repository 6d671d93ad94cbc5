package data

import (
	"context"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/stokehq/genrelay/internal/errors"
)

// The delivery lease is the pair (delivering_at, delivered_at) on the job
// row. Acquisition must be a single conditional UPDATE: two concurrent
// callers racing through separate connections cannot both see zero rows
// affected as winners, so exactly one claims the lease.

// ClaimDelivery atomically acquires the delivery lease for a job. It succeeds
// only while delivered_at is null and any existing lease is older than the
// given duration, and returns true when this caller won.
func (r *JobRepo) ClaimDelivery(ctx context.Context, jobID string, lease time.Duration) (bool, error) {
	if strings.TrimSpace(jobID) == "" {
		return false, ErrJobIDRequired
	}

	now := r.now()
	res, err := r.DB.ExecContext(ctx, `
		UPDATE jobs
		SET delivering_at = $2, updated_at = $2
		WHERE id = $1
		  AND delivered_at IS NULL
		  AND (delivering_at IS NULL OR delivering_at < $3)`,
		jobID, now, now.Add(-lease))
	if err != nil {
		return false, apperrors.MapDBError(fmt.Errorf("claim delivery lease: %w", err))
	}
	return r.rowsAffected(res, "claim delivery lease")
}

// MarkDelivered sets the permanent delivered_at marker. Guarded by
// delivered_at IS NULL so the marker is written at most once; returns true
// when this call wrote it.
func (r *JobRepo) MarkDelivered(ctx context.Context, jobID string) (bool, error) {
	if strings.TrimSpace(jobID) == "" {
		return false, ErrJobIDRequired
	}

	now := r.now()
	res, err := r.DB.ExecContext(ctx, `
		UPDATE jobs
		SET delivered_at = $2, updated_at = $2
		WHERE id = $1 AND delivered_at IS NULL`,
		jobID, now)
	if err != nil {
		return false, apperrors.MapDBError(fmt.Errorf("mark delivered: %w", err))
	}
	return r.rowsAffected(res, "mark delivered")
}

// ReleaseDelivery clears the lease after a failed sink hand-off so a future
// attempt by either path may retry. Never touches delivered rows.
func (r *JobRepo) ReleaseDelivery(ctx context.Context, jobID string) error {
	if strings.TrimSpace(jobID) == "" {
		return ErrJobIDRequired
	}

	_, err := r.DB.ExecContext(ctx, `
		UPDATE jobs
		SET delivering_at = NULL, updated_at = $2
		WHERE id = $1 AND delivered_at IS NULL`,
		jobID, r.now())
	if err != nil {
		return apperrors.MapDBError(fmt.Errorf("release delivery lease: %w", err))
	}
	return nil
}
