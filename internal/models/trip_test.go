package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jengzang/tripwatch/internal/segmentation"
)

func TestNewTrip(t *testing.T) {
	params := segmentation.DefaultParams()
	pings := []segmentation.Ping{
		{Timestamp: 1000, Latitude: 10, Longitude: 20, Address: "A"},
		{Timestamp: 61_000, Latitude: 10.01, Longitude: 20.02},
		{Timestamp: 121_000, Latitude: 10.02, Longitude: 20.01, Address: "B"},
	}
	annotated := []segmentation.AnnotatedPing{{Ping: pings[0]}}
	for i := 1; i < len(pings); i++ {
		annotated = append(annotated, segmentation.Annotate(pings[i-1], pings[i], params))
	}
	trip := segmentation.Trip{Pings: annotated}

	record, err := NewTrip("s1", trip, true)
	require.NoError(t, err)

	assert.Equal(t, int64(1000), record.StartTs)
	assert.Equal(t, int64(121_000), record.EndTs)
	assert.Equal(t, int64(120_000), record.DurationMs)
	assert.Equal(t, 3, record.PointCount)
	assert.InDelta(t, trip.DistanceMeters(), record.DistanceMeters, 1e-9)
	assert.Equal(t, "A", record.OriginAddress)
	assert.Equal(t, "B", record.DestAddress)
	assert.InDelta(t, 10.0, record.MinLat, 1e-9)
	assert.InDelta(t, 20.02, record.MaxLon, 1e-9)
	assert.InDelta(t, 10.01, record.CenterLat, 1e-3)
	assert.True(t, record.Trailing)

	decoded, err := record.Segmented()
	require.NoError(t, err)
	assert.Equal(t, trip, decoded)
}

func TestNewTripEmpty(t *testing.T) {
	_, err := NewTrip("s1", segmentation.Trip{}, false)
	require.Error(t, err)
}

func TestTripFilterNormalize(t *testing.T) {
	f := TripFilter{Page: -1, PageSize: 5000}
	f.Normalize()
	assert.Equal(t, 1, f.Page)
	assert.Equal(t, 1000, f.PageSize)

	f = TripFilter{}
	f.Normalize()
	assert.Equal(t, 100, f.PageSize)
}

func TestNewTripStats(t *testing.T) {
	s := NewTripStats("u1", 0, 0, []TripMeasure{
		{DurationMs: 10 * 60000, DistanceMeters: 2000, PointCount: 20},
		{DurationMs: 30 * 60000, DistanceMeters: 8000, PointCount: 40},
	})

	assert.Equal(t, 2, s.Trips)
	assert.Equal(t, 20.0, s.DurationMinutes.Mean)
	assert.Equal(t, 10.0, s.DistanceKm.Sum)
	assert.Equal(t, 40.0, s.Points.Max)

	empty := NewTripStats("u2", 0, 0, nil)
	assert.Zero(t, empty.Trips)
	assert.Zero(t, empty.DistanceKm.Count)
}
