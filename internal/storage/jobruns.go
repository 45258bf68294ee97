package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fodmapworks/fodmap-flow/internal/model"
)

// StartJobRun records the beginning of a classification pass.
func (s *SQLiteStorage) StartJobRun(ctx context.Context, id string, startedAt time.Time) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO job_runs (id, started_at) VALUES (?, ?)`,
		id, startedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to record job start: %w", err)
	}
	return nil
}

// FinishJobRun records the outcome of a classification pass.
func (s *SQLiteStorage) FinishJobRun(ctx context.Context, id string, processed, failed int, runErr error) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var errText any
	if runErr != nil {
		errText = runErr.Error()
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE job_runs SET finished_at = ?, processed = ?, failed = ?, error = ? WHERE id = ?`,
		time.Now().UTC(), processed, failed, errText, id)
	if err != nil {
		return fmt.Errorf("failed to record job finish: %w", err)
	}
	return nil
}

// RecentJobRuns returns the latest classification passes, newest first.
func (s *SQLiteStorage) RecentJobRuns(ctx context.Context, limit int) ([]model.JobRun, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, processed, failed, error
		FROM job_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query job runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []model.JobRun
	for rows.Next() {
		var (
			run        model.JobRun
			finishedAt sql.NullTime
			errText    sql.NullString
		)
		if err := rows.Scan(&run.ID, &run.StartedAt, &finishedAt,
			&run.Processed, &run.Failed, &errText); err != nil {
			return nil, fmt.Errorf("failed to scan job run: %w", err)
		}
		if finishedAt.Valid {
			t := finishedAt.Time
			run.FinishedAt = &t
		}
		if errText.Valid {
			run.Error = errText.String
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
