package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jengzang/tripwatch/internal/database"
	"github.com/jengzang/tripwatch/internal/models"
)

const tripColumns = `id, subject_id, start_ts, end_ts, duration_ms, point_count, distance_meters,
		origin_lat, origin_lon, origin_address, dest_lat, dest_lon, dest_address,
		min_lat, min_lon, max_lat, max_lon, center_lat, center_lon,
		trailing, points_json, algo_version, created_at, updated_at`

// TripRepository handles database operations for trips
type TripRepository struct {
	db *sql.DB
}

// NewTripRepository creates a new trip repository
func NewTripRepository(db *sql.DB) *TripRepository {
	return &TripRepository{db: db}
}

// UpsertTrips stores trips of one subject. A stored trip with the same start
// timestamp is replaced, so re-segmenting an overlapping window updates trips
// instead of duplicating them. A closed stored trip is never replaced by a
// trailing one, which happens when a window ends inside the trip. IDs of the
// stored rows are set on the records.
func (r *TripRepository) UpsertTrips(ctx context.Context, trips []*models.Trip) error {
	if len(trips) == 0 {
		return nil
	}

	return database.Transaction(ctx, r.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO trips (
				subject_id, start_ts, end_ts, duration_ms, point_count, distance_meters,
				origin_lat, origin_lon, origin_address, dest_lat, dest_lon, dest_address,
				min_lat, min_lon, max_lat, max_lon, center_lat, center_lon,
				trailing, points_json, algo_version
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (subject_id, start_ts) DO UPDATE SET
				end_ts = excluded.end_ts,
				duration_ms = excluded.duration_ms,
				point_count = excluded.point_count,
				distance_meters = excluded.distance_meters,
				dest_lat = excluded.dest_lat,
				dest_lon = excluded.dest_lon,
				dest_address = excluded.dest_address,
				min_lat = excluded.min_lat,
				min_lon = excluded.min_lon,
				max_lat = excluded.max_lat,
				max_lon = excluded.max_lon,
				center_lat = excluded.center_lat,
				center_lon = excluded.center_lon,
				trailing = excluded.trailing,
				points_json = excluded.points_json,
				algo_version = excluded.algo_version,
				updated_at = CURRENT_TIMESTAMP
			WHERE trips.trailing = 1 OR excluded.trailing = 0
			RETURNING id
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare trip upsert: %w", err)
		}
		defer stmt.Close()

		for _, t := range trips {
			err := stmt.QueryRowContext(ctx,
				t.SubjectID, t.StartTs, t.EndTs, t.DurationMs, t.PointCount, t.DistanceMeters,
				t.OriginLat, t.OriginLon, t.OriginAddress, t.DestLat, t.DestLon, t.DestAddress,
				t.MinLat, t.MinLon, t.MaxLat, t.MaxLon, t.CenterLat, t.CenterLon,
				t.Trailing, t.PointsJSON, t.AlgoVersion,
			).Scan(&t.ID)
			if err == sql.ErrNoRows {
				// Update skipped, the stored closed trip is kept
				err = tx.QueryRowContext(ctx,
					"SELECT id FROM trips WHERE subject_id = ? AND start_ts = ?",
					t.SubjectID, t.StartTs,
				).Scan(&t.ID)
			}
			if err != nil {
				return fmt.Errorf("failed to upsert trip starting at %d: %w", t.StartTs, err)
			}
		}
		return nil
	})
}

// SpanningStart returns the start of the earliest stored trip of the subject
// that begins before ts and either is still running at ts or was left
// trailing. ok is false when there is none.
func (r *TripRepository) SpanningStart(ctx context.Context, subjectID string, ts int64) (start int64, ok bool, err error) {
	var earliest sql.NullInt64
	err = r.db.QueryRowContext(ctx, `
		SELECT MIN(start_ts) FROM trips
		WHERE subject_id = ? AND start_ts < ? AND (end_ts >= ? OR trailing = 1)
	`, subjectID, ts, ts).Scan(&earliest)
	if err != nil {
		return 0, false, fmt.Errorf("failed to find spanning trip: %w", err)
	}
	return earliest.Int64, earliest.Valid, nil
}

// GetTrips retrieves trips with filtering and pagination, newest first
func (r *TripRepository) GetTrips(ctx context.Context, filter models.TripFilter) ([]models.Trip, int64, error) {
	query := "SELECT " + tripColumns + " FROM trips"

	var conditions []string
	var args []interface{}

	if filter.SubjectID != "" {
		conditions = append(conditions, "subject_id = ?")
		args = append(args, filter.SubjectID)
	}
	if filter.StartTime > 0 {
		conditions = append(conditions, "start_ts >= ?")
		args = append(args, filter.StartTime)
	}
	if filter.EndTime > 0 {
		conditions = append(conditions, "end_ts <= ?")
		args = append(args, filter.EndTime)
	}
	if filter.MinPoints > 0 {
		conditions = append(conditions, "point_count >= ?")
		args = append(args, filter.MinPoints)
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM trips"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count trips: %w", err)
	}

	filter.Normalize()
	offset := (filter.Page - 1) * filter.PageSize
	query += where + " ORDER BY start_ts DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, filter.PageSize, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query trips: %w", err)
	}
	defer rows.Close()

	trips := []models.Trip{}
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, 0, err
		}
		trips = append(trips, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate trips: %w", err)
	}

	return trips, total, nil
}

// GetTripByID retrieves a single trip by ID, nil when it does not exist
func (r *TripRepository) GetTripByID(ctx context.Context, id int64) (*models.Trip, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+tripColumns+" FROM trips WHERE id = ?", id)

	t, err := scanTrip(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return t, nil
}

// GetTripMeasures returns duration, distance and point count of every trip of a
// subject that starts in [from, to]. Zero bounds are open.
func (r *TripRepository) GetTripMeasures(ctx context.Context, subjectID string, from, to int64) ([]models.TripMeasure, error) {
	query := "SELECT duration_ms, distance_meters, point_count FROM trips WHERE subject_id = ?"
	args := []interface{}{subjectID}
	if from > 0 {
		query += " AND start_ts >= ?"
		args = append(args, from)
	}
	if to > 0 {
		query += " AND start_ts <= ?"
		args = append(args, to)
	}
	query += " ORDER BY start_ts"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query trip measures: %w", err)
	}
	defer rows.Close()

	measures := []models.TripMeasure{}
	for rows.Next() {
		var m models.TripMeasure
		if err := rows.Scan(&m.DurationMs, &m.DistanceMeters, &m.PointCount); err != nil {
			return nil, fmt.Errorf("failed to scan trip measure: %w", err)
		}
		measures = append(measures, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate trip measures: %w", err)
	}
	return measures, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTrip(row rowScanner) (*models.Trip, error) {
	var t models.Trip
	err := row.Scan(
		&t.ID, &t.SubjectID, &t.StartTs, &t.EndTs, &t.DurationMs, &t.PointCount, &t.DistanceMeters,
		&t.OriginLat, &t.OriginLon, &t.OriginAddress, &t.DestLat, &t.DestLon, &t.DestAddress,
		&t.MinLat, &t.MinLon, &t.MaxLat, &t.MaxLon, &t.CenterLat, &t.CenterLon,
		&t.Trailing, &t.PointsJSON, &t.AlgoVersion, &t.CreatedAt, &t.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan trip: %w", err)
	}
	return &t, nil
}
