package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// EventRecord is a journaled event
type EventRecord struct {
	ID          int64
	Project     string
	Sequence    int
	EventType   string
	FeatureID   *string
	PayloadJSON *string
	CreatedAt   time.Time
}

// AppendEvent records a new event with an auto-assigned sequence number.
// The sequence number is calculated within a transaction to avoid races.
// Payload is JSON-serialized if non-nil.
func (db *DB) AppendEvent(project, eventType string, featureID *string, payload any) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	sequence, err := nextSequenceInTx(tx, project)
	if err != nil {
		return fmt.Errorf("failed to get next sequence: %w", err)
	}

	var payloadJSON *string
	if payload != nil {
		jsonBytes, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to serialize payload: %w", err)
		}
		jsonStr := string(jsonBytes)
		payloadJSON = &jsonStr
	}

	query := `
		INSERT INTO events (project, sequence, event_type, feature_id, payload_json)
		VALUES (?, ?, ?, ?, ?)
	`
	if _, err := tx.Exec(query, project, sequence, eventType, featureID, payloadJSON); err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// ListEventsAfter returns a project's events with sequence > afterSeq,
// ordered by sequence. limit <= 0 means no limit.
func (db *DB) ListEventsAfter(project string, afterSeq, limit int) ([]*EventRecord, error) {
	query := `
		SELECT id, project, sequence, event_type, feature_id, payload_json, created_at
		FROM events
		WHERE project = ? AND sequence > ?
		ORDER BY sequence ASC
	`
	args := []any{project, afterSeq}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []*EventRecord
	for rows.Next() {
		e := &EventRecord{}
		if err := rows.Scan(&e.ID, &e.Project, &e.Sequence, &e.EventType, &e.FeatureID, &e.PayloadJSON, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}

	return events, nil
}

func nextSequenceInTx(tx *sql.Tx, project string) (int, error) {
	var seq int
	err := tx.QueryRow(`SELECT COALESCE(MAX(sequence), 0) + 1 FROM events WHERE project = ?`, project).Scan(&seq)
	if err != nil {
		return 0, err
	}
	return seq, nil
}
