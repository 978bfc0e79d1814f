package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/musicsnap/internal/model"
)

// ErrRunNotFound is returned by GetRun for an unknown id.
var ErrRunNotFound = errors.New("run not found")

// Run is one recorded fetch run.
type Run struct {
	ID         string           `json:"id"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Outcome    model.RunOutcome `json:"outcome"`
	Summary    model.RunSummary `json:"summary"`
	// Error is set when the run aborted and the whole-process fallback ran.
	Error string `json:"error,omitempty"`
	// Fallback holds the per-range states of that fallback pass.
	Fallback []model.RangeResult `json:"fallback,omitempty"`
}

// Fixed-width so that stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// RecordRun assigns an id to run (if it has none), stores it with all its
// range results and outcomes in a single transaction, and returns the id.
func (l *Ledger) RecordRun(ctx context.Context, run Run) (string, error) {
	if run.ID == "" {
		run.ID = l.ids.Generate()
	}
	if run.Outcome == "" {
		run.Outcome = run.Summary.Outcome()
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("record run: begin tx: %w", err)
	}
	defer tx.Rollback() // no-op after commit

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, finished_at, outcome, total_success, total_requests, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.StartedAt.UTC().Format(timeLayout),
		run.FinishedAt.UTC().Format(timeLayout),
		string(run.Outcome),
		run.Summary.TotalSuccess,
		run.Summary.TotalRequests,
		run.Error,
	)
	if err != nil {
		return "", fmt.Errorf("record run: insert run: %w", err)
	}

	for i, rr := range run.Summary.Ranges {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO range_results (run_id, range_name, position, state, success_count, total_count)
			VALUES (?, ?, ?, ?, ?, ?)
		`, run.ID, string(rr.Range), i, string(rr.State), rr.SuccessCount, rr.TotalCount)
		if err != nil {
			return "", fmt.Errorf("record run: insert range %s: %w", rr.Range, err)
		}

		for j, o := range rr.Results {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO fetch_outcomes
				(run_id, range_name, position, endpoint, success, error, error_kind, bytes, digest, duration_ns)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, run.ID, string(rr.Range), j, o.Endpoint, o.Success, o.Error, o.ErrorKind, o.Bytes, o.Digest, int64(o.Duration))
			if err != nil {
				return "", fmt.Errorf("record run: insert outcome %s/%s: %w", rr.Range, o.Endpoint, err)
			}
		}
	}

	for i, fb := range run.Fallback {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO fallback_results (run_id, range_name, position, state)
			VALUES (?, ?, ?, ?)
		`, run.ID, string(fb.Range), i, string(fb.State))
		if err != nil {
			return "", fmt.Errorf("record run: insert fallback %s: %w", fb.Range, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("record run: commit: %w", err)
	}
	return run.ID, nil
}

// ListRuns returns up to limit runs, newest first, without range details.
// A limit <= 0 returns every run.
func (l *Ledger) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `
		SELECT id, started_at, finished_at, outcome, total_success, total_requests, error
		FROM runs
		ORDER BY started_at DESC, id DESC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// GetRun returns a run with its range results and outcomes.
func (l *Ledger) GetRun(ctx context.Context, id string) (Run, error) {
	row := l.db.QueryRowContext(ctx, `
		SELECT id, started_at, finished_at, outcome, total_success, total_requests, error
		FROM runs WHERE id = ?
	`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return Run{}, err
	}

	ranges, err := l.readRanges(ctx, id)
	if err != nil {
		return Run{}, err
	}
	run.Summary.Ranges = ranges

	fallback, err := l.readFallback(ctx, id)
	if err != nil {
		return Run{}, err
	}
	run.Fallback = fallback
	return run, nil
}

// LatestRun returns the most recent run with details.
func (l *Ledger) LatestRun(ctx context.Context) (Run, error) {
	runs, err := l.ListRuns(ctx, 1)
	if err != nil {
		return Run{}, err
	}
	if len(runs) == 0 {
		return Run{}, ErrRunNotFound
	}
	return l.GetRun(ctx, runs[0].ID)
}

func (l *Ledger) readRanges(ctx context.Context, runID string) ([]model.RangeResult, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT range_name, state, success_count, total_count
		FROM range_results
		WHERE run_id = ?
		ORDER BY position ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query range results: %w", err)
	}
	defer rows.Close()

	var ranges []model.RangeResult
	for rows.Next() {
		var rr model.RangeResult
		var name, state string
		if err := rows.Scan(&name, &state, &rr.SuccessCount, &rr.TotalCount); err != nil {
			return nil, fmt.Errorf("scan range result: %w", err)
		}
		rr.Range = model.Range(name)
		rr.State = model.RangeState(state)
		ranges = append(ranges, rr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate range results: %w", err)
	}
	rows.Close()

	for i := range ranges {
		outcomes, err := l.readOutcomes(ctx, runID, ranges[i].Range)
		if err != nil {
			return nil, err
		}
		ranges[i].Results = outcomes
	}
	return ranges, nil
}

func (l *Ledger) readFallback(ctx context.Context, runID string) ([]model.RangeResult, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT range_name, state
		FROM fallback_results
		WHERE run_id = ?
		ORDER BY position ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query fallback results: %w", err)
	}
	defer rows.Close()

	var results []model.RangeResult
	for rows.Next() {
		var name, state string
		if err := rows.Scan(&name, &state); err != nil {
			return nil, fmt.Errorf("scan fallback result: %w", err)
		}
		results = append(results, model.RangeResult{
			Range:      model.Range(name),
			TotalCount: len(model.Endpoints),
			State:      model.RangeState(state),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fallback results: %w", err)
	}
	return results, nil
}

func (l *Ledger) readOutcomes(ctx context.Context, runID string, r model.Range) ([]model.FetchOutcome, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT endpoint, success, error, error_kind, bytes, digest, duration_ns
		FROM fetch_outcomes
		WHERE run_id = ? AND range_name = ?
		ORDER BY position ASC
	`, runID, string(r))
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	outcomes := []model.FetchOutcome{}
	for rows.Next() {
		var o model.FetchOutcome
		var duration int64
		if err := rows.Scan(&o.Endpoint, &o.Success, &o.Error, &o.ErrorKind, &o.Bytes, &o.Digest, &duration); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		o.Duration = time.Duration(duration)
		outcomes = append(outcomes, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcomes: %w", err)
	}
	return outcomes, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (Run, error) {
	var (
		run               Run
		started, finished string
		outcome           string
	)
	if err := s.Scan(&run.ID, &started, &finished, &outcome, &run.Summary.TotalSuccess, &run.Summary.TotalRequests, &run.Error); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	var err error
	if run.StartedAt, err = time.Parse(timeLayout, started); err != nil {
		return Run{}, fmt.Errorf("parse started_at: %w", err)
	}
	if run.FinishedAt, err = time.Parse(timeLayout, finished); err != nil {
		return Run{}, fmt.Errorf("parse finished_at: %w", err)
	}
	run.Outcome = model.RunOutcome(outcome)
	return run, nil
}
