package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// File statuses.
const (
	StatusConverted = "converted"
	StatusFailed    = "failed"
)

// ErrRunNotFound is returned when a run id is not in the catalog.
var ErrRunNotFound = errors.New("conversion run not found")

// Run is one invocation of the converter.
type Run struct {
	ID          string
	StartedAt   time.Time
	FinishedAt  time.Time // zero while the run is in progress
	FilesOK     int
	FilesFailed int
}

// FileRecord is the outcome of converting one recording.
type FileRecord struct {
	RunID           string
	InputPath       string
	OutputPath      string
	Participant     string
	Trials          int
	Status          string
	Error           string
	Lines           int
	MalformedLines  int
	TrialsDiscarded int
}

// TrialRecord summarizes one emitted trial.
type TrialRecord struct {
	TrialID      string
	Stimulus     string
	Samples      int
	Fixations    int
	Interpolated int
}

// StartRun inserts a run row.
func (db *DB) StartRun(id string, startedAt time.Time) error {
	_, err := db.Exec(`INSERT INTO conversion_runs (run_id, started_at) VALUES (?, ?)`, id, startedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to start run %s: %w", id, err)
	}
	return nil
}

// FinishRun stores the end time and file counts of a run.
func (db *DB) FinishRun(id string, finishedAt time.Time, filesOK, filesFailed int) error {
	res, err := db.Exec(
		`UPDATE conversion_runs SET finished_at = ?, files_ok = ?, files_failed = ? WHERE run_id = ?`,
		finishedAt.UnixNano(), filesOK, filesFailed, id,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finish run %s: %w", id, ErrRunNotFound)
	}
	return nil
}

// RecordFile stores a file outcome and its trials in one transaction.
// Recording the same input twice in a run replaces the earlier entry.
func (db *DB) RecordFile(rec FileRecord, trials []TrialRecord) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM converted_trials WHERE run_id = ? AND input_path = ?`, rec.RunID, rec.InputPath); err != nil {
		return fmt.Errorf("failed to clear trials: %w", err)
	}
	_, err = tx.Exec(
		`INSERT OR REPLACE INTO converted_files (
			run_id, input_path, output_path, participant, trials, status, error,
			lines, malformed_lines, trials_discarded
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.InputPath, rec.OutputPath, rec.Participant, rec.Trials, rec.Status, rec.Error,
		rec.Lines, rec.MalformedLines, rec.TrialsDiscarded,
	)
	if err != nil {
		return fmt.Errorf("failed to record file %s: %w", rec.InputPath, err)
	}

	stmt, err := tx.Prepare(`INSERT INTO converted_trials (
		run_id, input_path, seq, trial_id, stimulus, samples, fixations, interpolated
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare trial insert: %w", err)
	}
	defer stmt.Close()

	for i, t := range trials {
		if _, err := stmt.Exec(rec.RunID, rec.InputPath, i, t.TrialID, t.Stimulus, t.Samples, t.Fixations, t.Interpolated); err != nil {
			return fmt.Errorf("failed to record trial %q: %w", t.TrialID, err)
		}
	}

	return tx.Commit()
}

// GetRun returns a run by id.
func (db *DB) GetRun(id string) (Run, error) {
	var (
		r        Run
		started  int64
		finished sql.NullInt64
	)
	err := db.QueryRow(
		`SELECT run_id, started_at, finished_at, files_ok, files_failed FROM conversion_runs WHERE run_id = ?`, id,
	).Scan(&r.ID, &started, &finished, &r.FilesOK, &r.FilesFailed)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("run %s: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return Run{}, err
	}
	r.StartedAt = time.Unix(0, started).UTC()
	if finished.Valid {
		r.FinishedAt = time.Unix(0, finished.Int64).UTC()
	}
	return r, nil
}

// ListRuns returns the most recent runs first.
func (db *DB) ListRuns(limit int) ([]Run, error) {
	rows, err := db.Query(`SELECT run_id FROM conversion_runs ORDER BY started_at DESC, run_id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	runs := make([]Run, 0, len(ids))
	for _, id := range ids {
		r, err := db.GetRun(id)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, nil
}

// Files returns the file outcomes of a run ordered by input path.
func (db *DB) Files(runID string) ([]FileRecord, error) {
	rows, err := db.Query(`SELECT
		run_id, input_path, output_path, participant, trials, status, error,
		lines, malformed_lines, trials_discarded
		FROM converted_files WHERE run_id = ? ORDER BY input_path`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FileRecord
	for rows.Next() {
		var f FileRecord
		if err := rows.Scan(&f.RunID, &f.InputPath, &f.OutputPath, &f.Participant, &f.Trials, &f.Status, &f.Error,
			&f.Lines, &f.MalformedLines, &f.TrialsDiscarded); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// Trials returns the trials recorded for one file of a run, in output order.
func (db *DB) Trials(runID, inputPath string) ([]TrialRecord, error) {
	rows, err := db.Query(`SELECT trial_id, stimulus, samples, fixations, interpolated
		FROM converted_trials WHERE run_id = ? AND input_path = ? ORDER BY seq`, runID, inputPath)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TrialRecord
	for rows.Next() {
		var t TrialRecord
		if err := rows.Scan(&t.TrialID, &t.Stimulus, &t.Samples, &t.Fixations, &t.Interpolated); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
