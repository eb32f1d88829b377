package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jengzang/tripwatch/internal/models"
)

// RunRepository handles database operations for segmentation runs
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository creates a new run repository
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Create inserts a run and sets its ID
func (r *RunRepository) Create(ctx context.Context, run *models.SegmentationRun) error {
	query := `
		INSERT INTO segmentation_runs (
			subject_id, window_from, window_to, status, ping_count, trip_count,
			error_message, params_json, started_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		run.SubjectID,
		run.WindowFrom,
		run.WindowTo,
		run.Status,
		run.PingCount,
		run.TripCount,
		run.ErrorMessage,
		run.ParamsJSON,
		run.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create segmentation run: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	run.ID = id
	return nil
}

// MarkCompleted marks a run as completed with its counts
func (r *RunRepository) MarkCompleted(ctx context.Context, id int64, pingCount, tripCount int, completedAt int64) error {
	query := `
		UPDATE segmentation_runs
		SET status = ?, ping_count = ?, trip_count = ?, completed_at = ?
		WHERE id = ?
	`

	if _, err := r.db.ExecContext(ctx, query, models.RunStatusCompleted, pingCount, tripCount, completedAt, id); err != nil {
		return fmt.Errorf("failed to mark run completed: %w", err)
	}
	return nil
}

// MarkFailed marks a run as failed with an error message
func (r *RunRepository) MarkFailed(ctx context.Context, id int64, errorMessage string, completedAt int64) error {
	query := `
		UPDATE segmentation_runs
		SET status = ?, error_message = ?, completed_at = ?
		WHERE id = ?
	`

	if _, err := r.db.ExecContext(ctx, query, models.RunStatusFailed, errorMessage, completedAt, id); err != nil {
		return fmt.Errorf("failed to mark run failed: %w", err)
	}
	return nil
}

// GetByID retrieves a run by ID, nil when it does not exist
func (r *RunRepository) GetByID(ctx context.Context, id int64) (*models.SegmentationRun, error) {
	row := r.db.QueryRowContext(ctx, runSelect+" WHERE id = ?", id)

	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// List retrieves runs, newest first
func (r *RunRepository) List(ctx context.Context, filter models.RunFilter) ([]*models.SegmentationRun, error) {
	query := runSelect + " WHERE 1=1"
	var args []interface{}

	if filter.SubjectID != "" {
		query += " AND subject_id = ?"
		args = append(args, filter.SubjectID)
	}
	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, filter.Status)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list segmentation runs: %w", err)
	}
	defer rows.Close()

	runs := []*models.SegmentationRun{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

const runSelect = `
		SELECT id, subject_id, window_from, window_to, status, ping_count, trip_count,
			   error_message, params_json, started_at, completed_at
		FROM segmentation_runs`

func scanRun(row rowScanner) (*models.SegmentationRun, error) {
	run := &models.SegmentationRun{}
	var completedAt sql.NullInt64
	err := row.Scan(
		&run.ID,
		&run.SubjectID,
		&run.WindowFrom,
		&run.WindowTo,
		&run.Status,
		&run.PingCount,
		&run.TripCount,
		&run.ErrorMessage,
		&run.ParamsJSON,
		&run.StartedAt,
		&completedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan segmentation run: %w", err)
	}
	run.CompletedAt = completedAt.Int64
	return run, nil
}
