package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jengzang/tripwatch/internal/segmentation"
	"github.com/jengzang/tripwatch/internal/spatial"
	"github.com/jengzang/tripwatch/internal/stats"
)

// AlgoVersion identifies the segmentation algorithm that produced a stored trip
const AlgoVersion = "hysteresis-v1"

// Trip represents a stored trip of one subject
type Trip struct {
	ID        int64  `json:"id" db:"id"`
	SubjectID string `json:"subject_id" db:"subject_id"`

	// Temporal info
	StartTs    int64 `json:"start_ts" db:"start_ts"`       // Unix milliseconds
	EndTs      int64 `json:"end_ts" db:"end_ts"`           // Unix milliseconds
	DurationMs int64 `json:"duration_ms" db:"duration_ms"` // EndTs - StartTs

	PointCount     int     `json:"point_count" db:"point_count"`
	DistanceMeters float64 `json:"distance_meters" db:"distance_meters"`

	// Origin and destination
	OriginLat     float64 `json:"origin_lat" db:"origin_lat"`
	OriginLon     float64 `json:"origin_lon" db:"origin_lon"`
	OriginAddress string  `json:"origin_address,omitempty" db:"origin_address"`
	DestLat       float64 `json:"dest_lat" db:"dest_lat"`
	DestLon       float64 `json:"dest_lon" db:"dest_lon"`
	DestAddress   string  `json:"dest_address,omitempty" db:"dest_address"`

	// Bounding box and its center
	MinLat    float64 `json:"min_lat" db:"min_lat"`
	MinLon    float64 `json:"min_lon" db:"min_lon"`
	MaxLat    float64 `json:"max_lat" db:"max_lat"`
	MaxLon    float64 `json:"max_lon" db:"max_lon"`
	CenterLat float64 `json:"center_lat" db:"center_lat"`
	CenterLon float64 `json:"center_lon" db:"center_lon"`

	// Trailing trips were still open when the run ended and may be extended by a later run
	Trailing bool `json:"trailing" db:"trailing"`

	PointsJSON string `json:"-" db:"points_json"` // JSON array of annotated pings

	AlgoVersion string    `json:"algo_version,omitempty" db:"algo_version"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// NewTrip builds the stored form of a segmented trip
func NewTrip(subjectID string, trip segmentation.Trip, trailing bool) (*Trip, error) {
	if trip.Len() == 0 {
		return nil, fmt.Errorf("trip has no pings")
	}

	points, err := json.Marshal(trip.Pings)
	if err != nil {
		return nil, fmt.Errorf("failed to encode trip points: %w", err)
	}

	start, end := trip.Start(), trip.End()
	bounds := spatial.Bounds(trip.Path())
	center := spatial.Midpoint(
		spatial.LatLng{Lat: bounds.MinLat, Lon: bounds.MinLon},
		spatial.LatLng{Lat: bounds.MaxLat, Lon: bounds.MaxLon},
	)

	return &Trip{
		SubjectID:      subjectID,
		StartTs:        start.Timestamp,
		EndTs:          end.Timestamp,
		DurationMs:     trip.Duration().Milliseconds(),
		PointCount:     trip.Len(),
		DistanceMeters: trip.DistanceMeters(),
		OriginLat:      start.Latitude,
		OriginLon:      start.Longitude,
		OriginAddress:  start.Address,
		DestLat:        end.Latitude,
		DestLon:        end.Longitude,
		DestAddress:    end.Address,
		MinLat:         bounds.MinLat,
		MinLon:         bounds.MinLon,
		MaxLat:         bounds.MaxLat,
		MaxLon:         bounds.MaxLon,
		CenterLat:      center.Lat,
		CenterLon:      center.Lon,
		Trailing:       trailing,
		PointsJSON:     string(points),
		AlgoVersion:    AlgoVersion,
	}, nil
}

// Segmented decodes the stored pings back into a trip
func (t *Trip) Segmented() (segmentation.Trip, error) {
	var pings []segmentation.AnnotatedPing
	if err := json.Unmarshal([]byte(t.PointsJSON), &pings); err != nil {
		return segmentation.Trip{}, fmt.Errorf("failed to decode points of trip %d: %w", t.ID, err)
	}
	return segmentation.Trip{Pings: pings}, nil
}

// TripsResponse represents a paginated response of trips
type TripsResponse struct {
	Data       []Trip `json:"data"`
	Total      int64  `json:"total"`
	Page       int    `json:"page"`
	PageSize   int    `json:"pageSize"`
	TotalPages int    `json:"totalPages"`
}

// TripFilter is defined in filters.go

// TripMeasure holds the per-trip values that trip statistics are computed from
type TripMeasure struct {
	DurationMs     int64
	DistanceMeters float64
	PointCount     int
}

// TripStats summarizes the stored trips of one subject
type TripStats struct {
	SubjectID       string        `json:"subject_id"`
	From            int64         `json:"from,omitempty"`
	To              int64         `json:"to,omitempty"`
	Trips           int           `json:"trips"`
	DurationMinutes stats.Summary `json:"duration_minutes"`
	DistanceKm      stats.Summary `json:"distance_km"`
	Points          stats.Summary `json:"points"`
}

// NewTripStats summarizes the given measures
func NewTripStats(subjectID string, from, to int64, measures []TripMeasure) *TripStats {
	durations := make([]float64, len(measures))
	distances := make([]float64, len(measures))
	points := make([]float64, len(measures))
	for i, m := range measures {
		durations[i] = float64(m.DurationMs) / 60000
		distances[i] = m.DistanceMeters / 1000
		points[i] = float64(m.PointCount)
	}

	return &TripStats{
		SubjectID:       subjectID,
		From:            from,
		To:              to,
		Trips:           len(measures),
		DurationMinutes: stats.Summarize(durations),
		DistanceKm:      stats.Summarize(distances),
		Points:          stats.Summarize(points),
	}
}
