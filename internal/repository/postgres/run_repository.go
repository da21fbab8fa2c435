package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/andresuchdata/autopo-py/replenishment/internal/domain"
	"github.com/jmoiron/sqlx"
)

// RunRepository archives run records in replenishment_runs.
type RunRepository struct {
	db *DB
}

func NewRunRepository(db *DB) *RunRepository {
	return &RunRepository{db: db}
}

// SaveRun upserts the record; it is called once at start and once at finish.
func (r *RunRepository) SaveRun(ctx context.Context, run *domain.RunRecord) error {
	artifacts, err := json.Marshal(run.Artifacts)
	if err != nil {
		return fmt.Errorf("failed to encode artifacts: %w", err)
	}

	query := `
		INSERT INTO replenishment_runs (
			run_id, kind, status, started_at, finished_at, error_count, artifacts, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (run_id)
		DO UPDATE SET
			status = EXCLUDED.status,
			finished_at = EXCLUDED.finished_at,
			error_count = EXCLUDED.error_count,
			artifacts = EXCLUDED.artifacts,
			updated_at = NOW()
	`

	_, err = r.db.ExecContext(ctx, query,
		run.RunID,
		string(run.Kind),
		string(run.Status),
		run.StartedAt,
		run.FinishedAt,
		len(run.Artifacts.Errors),
		artifacts,
	)
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", run.RunID, err)
	}
	return nil
}

type runRow struct {
	RunID      string       `db:"run_id"`
	Kind       string       `db:"kind"`
	Status     string       `db:"status"`
	StartedAt  time.Time    `db:"started_at"`
	FinishedAt sql.NullTime `db:"finished_at"`
	Artifacts  []byte       `db:"artifacts"`
}

func (r runRow) toDomain() (domain.RunRecord, error) {
	record := domain.RunRecord{
		RunID:     r.RunID,
		Kind:      domain.RunKind(r.Kind),
		Status:    domain.RunStatus(r.Status),
		StartedAt: r.StartedAt,
	}
	if r.FinishedAt.Valid {
		finished := r.FinishedAt.Time
		record.FinishedAt = &finished
	}
	if len(r.Artifacts) > 0 {
		if err := json.Unmarshal(r.Artifacts, &record.Artifacts); err != nil {
			return domain.RunRecord{}, fmt.Errorf("failed to decode artifacts of %s: %w", r.RunID, err)
		}
	}
	return record, nil
}

// ListRuns returns the most recent runs of a kind, newest first.
func (r *RunRepository) ListRuns(ctx context.Context, kind domain.RunKind, limit int) ([]domain.RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 200 {
		limit = 200
	}

	query := `
		SELECT run_id, kind, status, started_at, finished_at, artifacts
		FROM replenishment_runs
		WHERE kind = $1
		ORDER BY started_at DESC
		LIMIT $2
	`

	var rows []runRow
	if err := sqlx.SelectContext(ctx, r.db, &rows, query, string(kind), limit); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	out := make([]domain.RunRecord, 0, len(rows))
	for _, row := range rows {
		record, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, record)
	}
	return out, nil
}
