package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jengzang/tripwatch/internal/database"
	"github.com/jengzang/tripwatch/internal/segmentation"
)

// PingRepository stores the raw pings fetched for each subject
type PingRepository struct {
	db *sql.DB
}

// NewPingRepository creates a new ping repository
func NewPingRepository(db *sql.DB) *PingRepository {
	return &PingRepository{db: db}
}

// UpsertPings stores pings, replacing any stored ping with the same timestamp
func (r *PingRepository) UpsertPings(ctx context.Context, subjectID string, pings []segmentation.Ping) error {
	if len(pings) == 0 {
		return nil
	}

	return database.Transaction(ctx, r.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO pings (subject_id, timestamp, latitude, longitude, address)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (subject_id, timestamp) DO UPDATE SET
				latitude = excluded.latitude,
				longitude = excluded.longitude,
				address = excluded.address
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare ping upsert: %w", err)
		}
		defer stmt.Close()

		for _, p := range pings {
			if _, err := stmt.ExecContext(ctx, subjectID, p.Timestamp, p.Latitude, p.Longitude, p.Address); err != nil {
				return fmt.Errorf("failed to upsert ping %d: %w", p.Timestamp, err)
			}
		}
		return nil
	})
}

// GetPings returns a subject's pings with from <= timestamp <= to in chronological order
func (r *PingRepository) GetPings(ctx context.Context, subjectID string, from, to int64) ([]segmentation.Ping, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT timestamp, latitude, longitude, address
		FROM pings
		WHERE subject_id = ? AND timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp
	`, subjectID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query pings: %w", err)
	}
	defer rows.Close()

	var pings []segmentation.Ping
	for rows.Next() {
		var p segmentation.Ping
		if err := rows.Scan(&p.Timestamp, &p.Latitude, &p.Longitude, &p.Address); err != nil {
			return nil, fmt.Errorf("failed to scan ping: %w", err)
		}
		pings = append(pings, p)
	}

	return pings, rows.Err()
}

// CountPings returns the number of stored pings of a subject
func (r *PingRepository) CountPings(ctx context.Context, subjectID string) (int64, error) {
	var count int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM pings WHERE subject_id = ?", subjectID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count pings: %w", err)
	}
	return count, nil
}
