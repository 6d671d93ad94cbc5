// Package data implements the durable job store on PostgreSQL. Every
// cross-path coordination primitive is a single conditional statement so the
// store stays correct when the poller and the callback receiver run in
// separate processes.
package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/stokehq/genrelay/internal/core"
	"github.com/stokehq/genrelay/internal/domain/model"
	apperrors "github.com/stokehq/genrelay/internal/errors"
)

// RepoConfig holds configuration options for the job repository.
type RepoConfig struct {
	Logger       *slog.Logger
	TimeProvider TimeProvider
}

// JobRepo provides database operations for job coordination.
type JobRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
	logger       *slog.Logger
}

var _ core.JobRepository = (*JobRepo)(nil)

// NewJobRepo creates a new JobRepo instance with the given database connection and configuration.
func NewJobRepo(db *sql.DB, cfg RepoConfig) *JobRepo {
	tp := cfg.TimeProvider
	if tp == nil {
		tp = &RealTimeProvider{}
	}

	return &JobRepo{
		DB:           db,
		timeProvider: tp,
		logger:       cfg.Logger,
	}
}

const jobColumns = `
  id,
  provider_task_id,
  owner_ref,
  provider_model,
  status,
  result_refs,
  error_code,
  error_message,
  delivering_at,
  delivered_at,
  created_at,
  updated_at
`

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*model.Job, error) {
	var (
		job          model.Job
		resultRefs   []byte
		errCode      sql.NullString
		errMessage   sql.NullString
		deliveringAt sql.NullTime
		deliveredAt  sql.NullTime
	)

	err := row.Scan(
		&job.ID,
		&job.ProviderTaskID,
		&job.OwnerRef,
		&job.ProviderModel,
		&job.Status,
		&resultRefs,
		&errCode,
		&errMessage,
		&deliveringAt,
		&deliveredAt,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(resultRefs) > 0 {
		if uerr := json.Unmarshal(resultRefs, &job.ResultRefs); uerr != nil {
			return nil, fmt.Errorf("decode result refs: %w", uerr)
		}
	}
	if errCode.Valid || errMessage.Valid {
		job.Error = &model.JobError{Code: errCode.String, Message: errMessage.String}
	}
	if deliveringAt.Valid {
		t := deliveringAt.Time
		job.DeliveringAt = &t
	}
	if deliveredAt.Valid {
		t := deliveredAt.Time
		job.DeliveredAt = &t
	}

	return &job, nil
}

// Create inserts a new job record in state queued.
func (r *JobRepo) Create(ctx context.Context, params core.CreateJobParams) (*model.Job, error) {
	if strings.TrimSpace(params.ID) == "" {
		return nil, ErrJobIDRequired
	}
	if strings.TrimSpace(params.OwnerRef) == "" {
		return nil, errors.New("owner ref is required")
	}

	now := r.timeProvider.Now().UTC()
	row := r.DB.QueryRowContext(ctx, `
		INSERT INTO jobs (id, provider_task_id, owner_ref, provider_model, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		RETURNING `+jobColumns,
		params.ID, params.ProviderTaskID, params.OwnerRef, params.ProviderModel,
		model.JobStatusQueued, now,
	)

	job, err := scanJob(row)
	if err != nil {
		return nil, apperrors.MapDBError(fmt.Errorf("insert job: %w", err))
	}
	return job, nil
}

// GetByID retrieves a job by its process-local identifier.
func (r *JobRepo) GetByID(ctx context.Context, id string) (*model.Job, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrJobIDRequired
	}

	row := r.DB.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, apperrors.MapDBError(fmt.Errorf("get job: %w", err))
	}
	return job, nil
}

// GetByProviderTaskID retrieves a job by the identifier the provider assigned
// at submission. Used to route callback payloads.
func (r *JobRepo) GetByProviderTaskID(ctx context.Context, taskID string) (*model.Job, error) {
	if strings.TrimSpace(taskID) == "" {
		return nil, ErrTaskIDRequired
	}

	row := r.DB.QueryRowContext(ctx, `
		SELECT `+jobColumns+`
		FROM jobs
		WHERE provider_task_id = $1
		ORDER BY created_at DESC
		LIMIT 1`, taskID)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, apperrors.MapDBError(fmt.Errorf("get job by task id: %w", err))
	}
	return job, nil
}

// ListUnfinished returns unresolved jobs, oldest first: every non-terminal
// job plus recorded successes whose hand-off has not completed. The poll
// resumer uses this after a restart to pick both groups back up.
func (r *JobRepo) ListUnfinished(ctx context.Context, limit int) ([]*model.Job, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.DB.QueryContext(ctx, `
		SELECT `+jobColumns+`
		FROM jobs
		WHERE status IN ($1, $2)
		   OR (status = $3 AND delivered_at IS NULL)
		ORDER BY created_at ASC
		LIMIT $4`,
		model.JobStatusQueued, model.JobStatusRunning, model.JobStatusSuccess, limit)
	if err != nil {
		return nil, apperrors.MapDBError(fmt.Errorf("list unfinished jobs: %w", err))
	}
	defer func() {
		_ = rows.Close()
	}()

	var jobs []*model.Job
	for rows.Next() {
		job, scanErr := scanJob(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan unfinished job: %w", scanErr)
		}
		jobs = append(jobs, job)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("iterate unfinished jobs: %w", rowsErr)
	}
	return jobs, nil
}

// SetProviderTaskID records the provider task id once submission has succeeded.
func (r *JobRepo) SetProviderTaskID(ctx context.Context, jobID, taskID string) error {
	if strings.TrimSpace(jobID) == "" {
		return ErrJobIDRequired
	}
	if strings.TrimSpace(taskID) == "" {
		return ErrTaskIDRequired
	}

	res, err := r.DB.ExecContext(ctx, `
		UPDATE jobs
		SET provider_task_id = $2, updated_at = $3
		WHERE id = $1`,
		jobID, taskID, r.timeProvider.Now().UTC())
	if err != nil {
		return apperrors.MapDBError(fmt.Errorf("set provider task id: %w", err))
	}
	return r.requireRow(res)
}

func (r *JobRepo) requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrJobNotFound
	}
	return nil
}

func (r *JobRepo) rowsAffected(res sql.Result, op string) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s rows affected: %w", op, err)
	}
	return n > 0, nil
}

// now is a small convenience used by the conditional updates.
func (r *JobRepo) now() time.Time {
	return r.timeProvider.Now().UTC()
}
