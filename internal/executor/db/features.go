package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/DelicateHug/DMaker-sub000/internal/feature"
)

const featureColumns = `
	id, project, title, description, status, priority, depends_on,
	branch_ref, is_favorite, plan_approval_pending, error,
	started_at, completed_at, updated_at`

// CreateFeature inserts a new feature. An empty ID is filled with a ULID
// and UpdatedAt is set to now; both are written back to f.
func (db *DB) CreateFeature(f *feature.Feature) error {
	if f.ID == "" {
		f.ID = ulid.Make().String()
	}
	f.UpdatedAt = time.Now().UTC()

	deps, err := encodeDeps(f.DependsOn)
	if err != nil {
		return err
	}

	query := `INSERT INTO features (` + featureColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = db.conn.Exec(
		query,
		f.ID,
		f.ProjectRef,
		f.Title,
		f.Description,
		string(f.Status),
		f.Priority,
		deps,
		f.BranchRef,
		f.IsFavorite,
		f.PlanApprovalPending,
		f.Error,
		f.StartedAt,
		f.CompletedAt,
		f.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create feature: %w", err)
	}

	return nil
}

// GetFeature retrieves a feature by its ID.
// Returns ErrNotFound if the feature does not exist.
func (db *DB) GetFeature(id string) (*feature.Feature, error) {
	query := `SELECT ` + featureColumns + ` FROM features WHERE id = ?`

	f, err := scanFeature(db.conn.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feature: %w", err)
	}

	return f, nil
}

// ListFeatures returns a project's features in creation order.
// When excludeCompleted is set, completed features are skipped.
func (db *DB) ListFeatures(project string, excludeCompleted bool) ([]feature.Feature, error) {
	query := `SELECT ` + featureColumns + ` FROM features WHERE project = ?`
	args := []any{project}
	if excludeCompleted {
		query += ` AND status != ?`
		args = append(args, string(feature.StatusCompleted))
	}
	query += ` ORDER BY id`

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list features: %w", err)
	}
	defer rows.Close()

	var features []feature.Feature
	for rows.Next() {
		f, err := scanFeature(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feature: %w", err)
		}
		features = append(features, *f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating features: %w", err)
	}

	return features, nil
}

// UpdateFeature writes every mutable column of f and stamps UpdatedAt.
// Returns ErrNotFound if no row has f.ID.
func (db *DB) UpdateFeature(f *feature.Feature) error {
	f.UpdatedAt = time.Now().UTC()

	deps, err := encodeDeps(f.DependsOn)
	if err != nil {
		return err
	}

	query := `
		UPDATE features
		SET title = ?, description = ?, status = ?, priority = ?, depends_on = ?,
		    branch_ref = ?, is_favorite = ?, plan_approval_pending = ?, error = ?,
		    started_at = ?, completed_at = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := db.conn.Exec(
		query,
		f.Title,
		f.Description,
		string(f.Status),
		f.Priority,
		deps,
		f.BranchRef,
		f.IsFavorite,
		f.PlanApprovalPending,
		f.Error,
		f.StartedAt,
		f.CompletedAt,
		f.UpdatedAt,
		f.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update feature: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// DeleteFeature removes a feature and its runs.
// Returns ErrNotFound if the feature does not exist.
func (db *DB) DeleteFeature(id string) error {
	result, err := db.conn.Exec(`DELETE FROM features WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete feature: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFeature(row rowScanner) (*feature.Feature, error) {
	var (
		f        feature.Feature
		status   string
		priority sql.NullInt64
		deps     string
	)
	err := row.Scan(
		&f.ID,
		&f.ProjectRef,
		&f.Title,
		&f.Description,
		&status,
		&priority,
		&deps,
		&f.BranchRef,
		&f.IsFavorite,
		&f.PlanApprovalPending,
		&f.Error,
		&f.StartedAt,
		&f.CompletedAt,
		&f.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	f.Status = feature.ParseStatus(status)
	if priority.Valid {
		p := int(priority.Int64)
		f.Priority = &p
	}
	if err := json.Unmarshal([]byte(deps), &f.DependsOn); err != nil {
		return nil, fmt.Errorf("decode depends_on: %w", err)
	}

	return &f, nil
}

func encodeDeps(deps []string) (string, error) {
	if deps == nil {
		deps = []string{}
	}
	data, err := json.Marshal(deps)
	if err != nil {
		return "", fmt.Errorf("failed to serialize depends_on: %w", err)
	}
	return string(data), nil
}
