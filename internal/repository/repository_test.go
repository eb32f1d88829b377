package repository

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jengzang/tripwatch/internal/database"
	"github.com/jengzang/tripwatch/internal/logging"
	"github.com/jengzang/tripwatch/internal/models"
	"github.com/jengzang/tripwatch/internal/segmentation"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:", logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func pingsAlong(start int64, n int, lon float64) []segmentation.Ping {
	pings := make([]segmentation.Ping, n)
	for i := range pings {
		pings[i] = segmentation.Ping{
			Timestamp: start + int64(i)*30_000,
			Latitude:  50,
			Longitude: lon + float64(i)*0.003,
		}
	}
	pings[0].Address = "Home"
	pings[n-1].Address = "Work"
	return pings
}

func tripRecord(t *testing.T, subject string, pings []segmentation.Ping, trailing bool) *models.Trip {
	t.Helper()
	params := segmentation.DefaultParams()
	annotated := []segmentation.AnnotatedPing{{Ping: pings[0]}}
	for i := 1; i < len(pings); i++ {
		annotated = append(annotated, segmentation.Annotate(pings[i-1], pings[i], params))
	}
	record, err := models.NewTrip(subject, segmentation.Trip{Pings: annotated}, trailing)
	require.NoError(t, err)
	return record
}

func TestPingRepositoryUpsertAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewPingRepository(openTestDB(t))

	pings := pingsAlong(1000, 5, 8)
	require.NoError(t, repo.UpsertPings(ctx, "alice", pings))

	// Overlapping window: one changed ping, one new.
	again := []segmentation.Ping{pings[4], {Timestamp: pings[4].Timestamp + 30_000, Latitude: 51, Longitude: 9}}
	again[0].Address = "Office"
	require.NoError(t, repo.UpsertPings(ctx, "alice", again))
	require.NoError(t, repo.UpsertPings(ctx, "bob", pings[:2]))
	require.NoError(t, repo.UpsertPings(ctx, "bob", nil))

	got, err := repo.GetPings(ctx, "alice", 0, 1<<62)
	require.NoError(t, err)
	require.Len(t, got, 6)
	assert.Equal(t, "Office", got[4].Address)
	assert.Equal(t, pings[0], got[0])

	window, err := repo.GetPings(ctx, "alice", pings[1].Timestamp, pings[3].Timestamp)
	require.NoError(t, err)
	assert.Equal(t, pings[1:4], window)

	count, err := repo.CountPings(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestTripRepositoryUpsertReplacesSameStart(t *testing.T) {
	ctx := context.Background()
	repo := NewTripRepository(openTestDB(t))

	pings := pingsAlong(1_000_000, 30, 8)
	partial := tripRecord(t, "alice", pings[:22], true)
	require.NoError(t, repo.UpsertTrips(ctx, []*models.Trip{partial}))
	require.NotZero(t, partial.ID)

	full := tripRecord(t, "alice", pings, false)
	require.NoError(t, repo.UpsertTrips(ctx, []*models.Trip{full}))
	assert.Equal(t, partial.ID, full.ID)

	stored, err := repo.GetTripByID(ctx, full.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, 30, stored.PointCount)
	assert.False(t, stored.Trailing)
	assert.Equal(t, "Home", stored.OriginAddress)
	assert.Equal(t, "Work", stored.DestAddress)
	assert.Equal(t, models.AlgoVersion, stored.AlgoVersion)

	trip, err := stored.Segmented()
	require.NoError(t, err)
	assert.Equal(t, pings[29], trip.End().Ping)

	_, total, err := repo.GetTrips(ctx, models.TripFilter{SubjectID: "alice"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestTripRepositoryKeepsClosedTripOverTrailing(t *testing.T) {
	ctx := context.Background()
	repo := NewTripRepository(openTestDB(t))

	pings := pingsAlong(1_000_000, 30, 8)
	full := tripRecord(t, "alice", pings, false)
	require.NoError(t, repo.UpsertTrips(ctx, []*models.Trip{full}))

	truncated := tripRecord(t, "alice", pings[:22], true)
	require.NoError(t, repo.UpsertTrips(ctx, []*models.Trip{truncated}))
	assert.Equal(t, full.ID, truncated.ID)

	stored, err := repo.GetTripByID(ctx, full.ID)
	require.NoError(t, err)
	assert.Equal(t, 30, stored.PointCount)
	assert.False(t, stored.Trailing)
}

func TestTripRepositorySpanningStart(t *testing.T) {
	ctx := context.Background()
	repo := NewTripRepository(openTestDB(t))

	closed := tripRecord(t, "alice", pingsAlong(1_000_000, 30, 8), false)
	trailing := tripRecord(t, "alice", pingsAlong(5_000_000, 25, 8), true)
	require.NoError(t, repo.UpsertTrips(ctx, []*models.Trip{closed, trailing}))

	start, ok, err := repo.SpanningStart(ctx, "alice", 1_000_000+10*30_000)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(1_000_000), start)

	// Nothing spans the stop between the trips.
	_, ok, err = repo.SpanningStart(ctx, "alice", 4_000_000)
	require.NoError(t, err)
	require.False(t, ok)

	start, ok, err = repo.SpanningStart(ctx, "alice", 9_000_000)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(5_000_000), start)

	_, ok, err = repo.SpanningStart(ctx, "alice", 1_000_000)
	require.NoError(t, err)
	assert.False(t, ok, "a trip starting at ts does not span it")

	_, ok, err = repo.SpanningStart(ctx, "bob", 9_000_000)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTripRepositoryGetTripByIDMissing(t *testing.T) {
	trip, err := NewTripRepository(openTestDB(t)).GetTripByID(context.Background(), 42)
	require.NoError(t, err)
	assert.Nil(t, trip)
}

func TestTripRepositoryFilterAndPaginate(t *testing.T) {
	ctx := context.Background()
	repo := NewTripRepository(openTestDB(t))

	var records []*models.Trip
	for i := 0; i < 5; i++ {
		records = append(records, tripRecord(t, "alice", pingsAlong(int64(i)*10_000_000, 22+i, 8), false))
	}
	records = append(records, tripRecord(t, "bob", pingsAlong(0, 25, 9), false))
	require.NoError(t, repo.UpsertTrips(ctx, records))

	page, total, err := repo.GetTrips(ctx, models.TripFilter{SubjectID: "alice", Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, page, 2)
	assert.Equal(t, int64(40_000_000), page[0].StartTs)
	assert.Equal(t, int64(30_000_000), page[1].StartTs)

	page, _, err = repo.GetTrips(ctx, models.TripFilter{SubjectID: "alice", Page: 3, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, int64(0), page[0].StartTs)

	_, total, err = repo.GetTrips(ctx, models.TripFilter{MinPoints: 25})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)

	_, total, err = repo.GetTrips(ctx, models.TripFilter{StartTime: 20_000_000, EndTime: 30_000_000 + 30*30_000})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	empty, total, err := repo.GetTrips(ctx, models.TripFilter{SubjectID: "carol"})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.NotNil(t, empty)
}

func TestRunRepositoryLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewRunRepository(openTestDB(t))

	ok := &models.SegmentationRun{SubjectID: "alice", WindowFrom: 1, WindowTo: 2, Status: models.RunStatusRunning, ParamsJSON: "{}", StartedAt: 100}
	require.NoError(t, repo.Create(ctx, ok))
	require.NoError(t, repo.MarkCompleted(ctx, ok.ID, 40, 2, 150))

	bad := &models.SegmentationRun{SubjectID: "bob", Status: models.RunStatusRunning, StartedAt: 200}
	require.NoError(t, repo.Create(ctx, bad))
	require.NoError(t, repo.MarkFailed(ctx, bad.ID, "location api error 401", 210))

	running := &models.SegmentationRun{SubjectID: "alice", Status: models.RunStatusRunning, StartedAt: 300}
	require.NoError(t, repo.Create(ctx, running))

	got, err := repo.GetByID(ctx, ok.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, got.Status)
	assert.Equal(t, 40, got.PingCount)
	assert.Equal(t, 2, got.TripCount)
	assert.Equal(t, int64(150), got.CompletedAt)

	runs, err := repo.List(ctx, models.RunFilter{SubjectID: "alice"})
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, running.ID, runs[0].ID)
	assert.Zero(t, runs[0].CompletedAt)

	failed, err := repo.List(ctx, models.RunFilter{Status: models.RunStatusFailed, Limit: 10})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "location api error 401", failed[0].ErrorMessage)

	missing, err := repo.GetByID(ctx, 999)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestTripRepositoryGetTripMeasures(t *testing.T) {
	ctx := context.Background()
	repo := NewTripRepository(openTestDB(t))

	require.NoError(t, repo.UpsertTrips(ctx, []*models.Trip{
		tripRecord(t, "alice", pingsAlong(0, 21, 8), false),
		tripRecord(t, "alice", pingsAlong(10_000_000, 31, 8), false),
		tripRecord(t, "bob", pingsAlong(0, 25, 9), false),
	}))

	measures, err := repo.GetTripMeasures(ctx, "alice", 0, 0)
	require.NoError(t, err)
	require.Len(t, measures, 2)
	assert.Equal(t, 21, measures[0].PointCount)
	assert.Equal(t, int64(20*30_000), measures[0].DurationMs)
	assert.Equal(t, 31, measures[1].PointCount)

	measures, err = repo.GetTripMeasures(ctx, "alice", 1, 0)
	require.NoError(t, err)
	require.Len(t, measures, 1)
	assert.Equal(t, 31, measures[0].PointCount)

	measures, err = repo.GetTripMeasures(ctx, "carol", 0, 0)
	require.NoError(t, err)
	assert.NotNil(t, measures)
	assert.Empty(t, measures)
}
