// Package repository persists pipeline runs in the SQLite run journal.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nmfs-ost/dismap/internal/domain"
)

const timeLayout = "2006-01-02 15:04:05.000"

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}

func nullStr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// RunRepo implements domain.RunJournal on SQLite.
type RunRepo struct {
	db  *sql.DB
	now func() time.Time
}

var _ domain.RunJournal = (*RunRepo)(nil)

// NewRunRepo creates a RunRepo on a migrated journal database.
func NewRunRepo(db *sql.DB) *RunRepo {
	return &RunRepo{db: db, now: time.Now}
}

// StartRun inserts run in the RUNNING state. StartedAt defaults to now.
func (r *RunRepo) StartRun(ctx context.Context, run *domain.Run) error {
	if run.StartedAt.IsZero() {
		run.StartedAt = r.now()
	}
	run.Status = domain.RunStatusRunning
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO runs (id, store_path, command, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.StorePath, run.Command, string(run.Status), formatTime(run.StartedAt))
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// RecordStep appends a step to the run. The detail column carries the
// payload of a successful step or the error text of a failed one.
func (r *RunRepo) RecordStep(ctx context.Context, runID string, step domain.StepResult) error {
	detail := step.Result.Value
	if step.Result.Err != nil {
		detail = step.Result.Err.Error()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO run_steps (run_id, seq, op, entity, status, detail, created_at)
		 VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM run_steps WHERE run_id = ?), ?, ?, ?, ?, ?)`,
		runID, runID, step.Op, step.Entity, string(step.Result.Status), detail, formatTime(r.now()))
	if err != nil {
		return fmt.Errorf("insert run step: %w", err)
	}
	return nil
}

// RecordDiscrepancies stores every count mismatch found by a run.
func (r *RunRepo) RecordDiscrepancies(ctx context.Context, runID string, ds []domain.Discrepancy) error {
	if len(ds) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO discrepancies (run_id, entity, companion, main_count, companion_count, difference)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close() //nolint:errcheck

	for _, d := range ds {
		if _, err := stmt.ExecContext(ctx, runID, d.Entity, d.Companion, d.MainCount, d.CompanionCount, d.Difference); err != nil {
			return fmt.Errorf("insert discrepancy %s: %w", d.Entity, err)
		}
	}
	return tx.Commit()
}

// FinishRun closes the run with its final status.
func (r *RunRepo) FinishRun(ctx context.Context, runID string, status domain.ResultStatus, errMsg *string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error = ?, finished_at = ? WHERE id = ?`,
		string(status), nullStr(errMsg), formatTime(r.now()), runID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrMissingResource("run %q not found", runID)
	}
	return nil
}

const runColumns = `id, store_path, command, status, error, started_at, finished_at`

// GetRun returns a run by ID.
func (r *RunRepo) GetRun(ctx context.Context, runID string) (*domain.Run, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrMissingResource("run %q not found", runID)
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns returns one page of runs, most recent first, and the total count.
func (r *RunRepo) ListRuns(ctx context.Context, page domain.PageRequest) ([]domain.Run, int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ? OFFSET ?`,
		page.Limit(), page.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close() //nolint:errcheck

	var runs []domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, 0, err
		}
		runs = append(runs, *run)
	}
	return runs, total, rows.Err()
}

// ListSteps returns the steps of a run in execution order.
func (r *RunRepo) ListSteps(ctx context.Context, runID string) ([]domain.RunStep, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT run_id, seq, op, entity, status, detail, created_at
		 FROM run_steps WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var steps []domain.RunStep
	for rows.Next() {
		var s domain.RunStep
		var status, created string
		if err := rows.Scan(&s.RunID, &s.Seq, &s.Op, &s.Entity, &status, &s.Detail, &created); err != nil {
			return nil, err
		}
		s.Status = domain.ResultStatus(status)
		s.CreatedAt = parseTime(created)
		steps = append(steps, s)
	}
	return steps, rows.Err()
}

// ListDiscrepancies returns the count mismatches recorded by a run.
func (r *RunRepo) ListDiscrepancies(ctx context.Context, runID string) ([]domain.Discrepancy, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT entity, companion, main_count, companion_count, difference
		 FROM discrepancies WHERE run_id = ? ORDER BY entity`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var out []domain.Discrepancy
	for rows.Next() {
		var d domain.Discrepancy
		if err := rows.Scan(&d.Entity, &d.Companion, &d.MainCount, &d.CompanionCount, &d.Difference); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*domain.Run, error) {
	var run domain.Run
	var status, started string
	var errMsg, finished sql.NullString
	if err := s.Scan(&run.ID, &run.StorePath, &run.Command, &status, &errMsg, &started, &finished); err != nil {
		return nil, err
	}
	run.Status = domain.ResultStatus(status)
	run.StartedAt = parseTime(started)
	if errMsg.Valid {
		run.Error = &errMsg.String
	}
	if finished.Valid {
		t := parseTime(finished.String)
		run.FinishedAt = &t
	}
	return &run, nil
}
