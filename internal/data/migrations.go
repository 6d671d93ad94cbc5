package data

import (
	"context"
	"database/sql"
	"fmt"
)

// migrations are applied in order at startup. Each entry is idempotent so
// repeated application is safe without a version table.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS jobs (
		id               UUID PRIMARY KEY,
		provider_task_id TEXT NOT NULL DEFAULT '',
		owner_ref        TEXT NOT NULL,
		provider_model   TEXT NOT NULL,
		status           TEXT NOT NULL DEFAULT 'queued',
		result_refs      JSONB,
		error_code       TEXT,
		error_message    TEXT,
		delivering_at    TIMESTAMPTZ,
		delivered_at     TIMESTAMPTZ,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_provider_task_id ON jobs (provider_task_id)
		WHERE provider_task_id <> ''`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_unfinished ON jobs (created_at)
		WHERE status IN ('queued', 'running')
		   OR (status = 'success' AND delivered_at IS NULL)`,
}

// RunMigrations sets up the jobs schema. It is safe to call multiple times.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	for i, stmt := range migrations {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply migration %d: %w", i, err)
		}
	}
	return nil
}
