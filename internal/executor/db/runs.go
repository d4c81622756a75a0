package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// RunStatus is the lifecycle state of an agent run
type RunStatus string

const (
	RunStatusRunning     RunStatus = "running"
	RunStatusCompleted   RunStatus = "completed"
	RunStatusFailed      RunStatus = "failed"
	RunStatusAborted     RunStatus = "aborted"
	RunStatusInterrupted RunStatus = "interrupted"
)

// Run is one execution attempt of a feature
type Run struct {
	ID          string
	FeatureID   string
	Status      RunStatus
	StartedAt   time.Time
	CompletedAt *time.Time
	Error       *string
}

// CreateRun inserts a running run for a feature and returns it
func (db *DB) CreateRun(featureID string) (*Run, error) {
	run := &Run{
		ID:        ulid.Make().String(),
		FeatureID: featureID,
		Status:    RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}

	query := `INSERT INTO runs (id, feature_id, status, started_at) VALUES (?, ?, ?, ?)`
	if _, err := db.conn.Exec(query, run.ID, run.FeatureID, run.Status, run.StartedAt); err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	return run, nil
}

// FinishRun records the final status of a run.
// errMsg is stored only when non-empty.
func (db *DB) FinishRun(id string, status RunStatus, errMsg string) error {
	var errPtr *string
	if errMsg != "" {
		errPtr = &errMsg
	}

	query := `UPDATE runs SET status = ?, completed_at = ?, error = ? WHERE id = ?`
	result, err := db.conn.Exec(query, status, time.Now().UTC(), errPtr, id)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("run not found: %s", id)
	}

	return nil
}

// ListRuns returns a feature's runs, oldest first
func (db *DB) ListRuns(featureID string) ([]*Run, error) {
	query := `
		SELECT id, feature_id, status, started_at, completed_at, error
		FROM runs
		WHERE feature_id = ?
		ORDER BY id
	`

	rows, err := db.conn.Query(query, featureID)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run := &Run{}
		if err := rows.Scan(&run.ID, &run.FeatureID, &run.Status, &run.StartedAt, &run.CompletedAt, &run.Error); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, nil
}

// RecoverInterruptedRuns marks runs left running by a previous process
// as interrupted and moves their features back to the backlog.
// Returns the IDs of the affected features.
func (db *DB) RecoverInterruptedRuns() ([]string, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	featureIDs, err := runningFeatureIDs(tx)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if _, err := tx.Exec(
		`UPDATE runs SET status = ?, completed_at = ? WHERE status = ?`,
		RunStatusInterrupted, now, RunStatusRunning,
	); err != nil {
		return nil, fmt.Errorf("failed to mark runs interrupted: %w", err)
	}

	for _, id := range featureIDs {
		if _, err := tx.Exec(
			`UPDATE features SET status = 'backlog', updated_at = ? WHERE id = ?`,
			now, id,
		); err != nil {
			return nil, fmt.Errorf("failed to reset feature %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return featureIDs, nil
}

func runningFeatureIDs(tx *sql.Tx) ([]string, error) {
	rows, err := tx.Query(`SELECT DISTINCT feature_id FROM runs WHERE status = ? ORDER BY feature_id`, RunStatusRunning)
	if err != nil {
		return nil, fmt.Errorf("failed to query running runs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan feature id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
