package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/paulmach/orb/geojson"
	"github.com/sirupsen/logrus"

	"github.com/jengzang/tripwatch/internal/locations"
	"github.com/jengzang/tripwatch/internal/models"
	"github.com/jengzang/tripwatch/internal/observability"
	"github.com/jengzang/tripwatch/internal/render"
	"github.com/jengzang/tripwatch/internal/repository"
	"github.com/jengzang/tripwatch/internal/segmentation"
)

// ErrTripNotFound is returned for unknown trip ids
var ErrTripNotFound = errors.New("trip not found")

// LocationSource fetches ping series from the location API
type LocationSource interface {
	LocationsInTimespan(ctx context.Context, subjectIDs []string, from, to time.Time) (locations.Series, error)
}

// TripAnnouncer publishes trip events
type TripAnnouncer interface {
	Announce(ctx context.Context, subjectID, name string, trip segmentation.Trip, trailing bool) (int, error)
}

// Subject is a tracked subject with the name used in announcements
type Subject struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (s Subject) displayName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.ID
}

// SegmentResult is the outcome of an ad-hoc segmentation request
type SegmentResult struct {
	SubjectID string              `json:"subject_id"`
	Pings     int                 `json:"pings"`
	Trailing  bool                `json:"trailing"`
	Trips     []segmentation.Trip `json:"trips"`
}

// TripService handles segmentation runs and stored trips
type TripService struct {
	tripRepo  *repository.TripRepository
	pingRepo  *repository.PingRepository
	runRepo   *repository.RunRepository
	source    LocationSource
	announcer TripAnnouncer
	params    segmentation.Params
	metrics   *observability.Metrics
	logger    *logrus.Logger
	now       func() time.Time
}

// NewTripService creates a new trip service. announcer may be nil.
func NewTripService(
	tripRepo *repository.TripRepository,
	pingRepo *repository.PingRepository,
	runRepo *repository.RunRepository,
	source LocationSource,
	announcer TripAnnouncer,
	params segmentation.Params,
	metrics *observability.Metrics,
	logger *logrus.Logger,
) *TripService {
	return &TripService{
		tripRepo:  tripRepo,
		pingRepo:  pingRepo,
		runRepo:   runRepo,
		source:    source,
		announcer: announcer,
		params:    params,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
}

// Params returns the default segmentation parameters
func (s *TripService) Params() segmentation.Params {
	return s.params
}

// RunSubject fetches the subject's pings in [from, to], segments them, stores
// pings and trips and announces the trips. When a stored trip was still running
// at from, segmentation starts at that trip's first stored ping. The run is
// recorded either way; a window without pings completes with no trips.
func (s *TripService) RunSubject(ctx context.Context, subject Subject, from, to time.Time) (*models.SegmentationRun, []segmentation.Trip, error) {
	if !from.Before(to) {
		return nil, nil, fmt.Errorf("%w: window start must be before its end", segmentation.ErrInvalidInput)
	}

	series, err := s.fetch(ctx, subject, from, to)
	return s.run(ctx, subject, from, to, func() ([]segmentation.Ping, error) {
		if err != nil {
			return nil, err
		}
		return locations.Project(series, subject.ID)
	}, true)
}

// ReplayStored re-segments pings already stored for the subject in [from, to]
// without contacting the location API.
func (s *TripService) ReplayStored(ctx context.Context, subject Subject, from, to time.Time) (*models.SegmentationRun, []segmentation.Trip, error) {
	if !from.Before(to) {
		return nil, nil, fmt.Errorf("%w: window start must be before its end", segmentation.ErrInvalidInput)
	}

	return s.run(ctx, subject, from, to, func() ([]segmentation.Ping, error) {
		pings, err := s.pingRepo.GetPings(ctx, subject.ID, from.UnixMilli(), to.UnixMilli())
		if err != nil {
			return nil, err
		}
		if len(pings) == 0 {
			return nil, fmt.Errorf("%w: %w stored for subject %s", segmentation.ErrInvalidInput, locations.ErrNoPings, subject.ID)
		}
		return pings, nil
	}, false)
}

func (s *TripService) fetch(ctx context.Context, subject Subject, from, to time.Time) (locations.Series, error) {
	series, err := s.source.LocationsInTimespan(ctx, []string{subject.ID}, from, to)
	if err != nil {
		s.metrics.LocationRequestErrors.Inc()
		return nil, fmt.Errorf("failed to fetch locations: %w", err)
	}
	return series, nil
}

func (s *TripService) run(ctx context.Context, subject Subject, from, to time.Time, load func() ([]segmentation.Ping, error), storePings bool) (*models.SegmentationRun, []segmentation.Trip, error) {
	started := s.now()
	paramsJSON, _ := json.Marshal(s.params)

	run := &models.SegmentationRun{
		SubjectID:  subject.ID,
		WindowFrom: from.UnixMilli(),
		WindowTo:   to.UnixMilli(),
		Status:     models.RunStatusRunning,
		ParamsJSON: string(paramsJSON),
		StartedAt:  started.UnixMilli(),
	}
	if err := s.runRepo.Create(ctx, run); err != nil {
		return nil, nil, err
	}

	log := s.logger.WithFields(logrus.Fields{
		"component": "segmentation",
		"subject":   subject.ID,
		"run_id":    run.ID,
	})

	fail := func(err error) (*models.SegmentationRun, []segmentation.Trip, error) {
		completed := s.now()
		run.Status = models.RunStatusFailed
		run.ErrorMessage = err.Error()
		run.CompletedAt = completed.UnixMilli()
		// The run context may already be cancelled; the failure is still recorded.
		if markErr := s.runRepo.MarkFailed(context.WithoutCancel(ctx), run.ID, run.ErrorMessage, run.CompletedAt); markErr != nil {
			log.WithError(markErr).Error("Failed to record failed run")
		}
		s.metrics.RecordRun(models.RunStatusFailed, completed.Sub(started))
		log.WithError(err).Warn("Segmentation run failed")
		return run, nil, err
	}

	pings, err := load()
	if errors.Is(err, locations.ErrNoPings) {
		log.Debug("No pings in window")
		return s.complete(ctx, run, started, 0, []segmentation.Trip{}, log)
	}
	if err != nil {
		return fail(err)
	}

	if storePings {
		if err := s.pingRepo.UpsertPings(ctx, subject.ID, pings); err != nil {
			return fail(err)
		}
	}

	pings, err = s.withSpanningTrip(ctx, subject.ID, from, pings)
	if err != nil {
		return fail(err)
	}

	result, err := segmentation.Run(pings, s.params)
	if err != nil {
		return fail(err)
	}
	s.metrics.RecordSegmentation(result.Pings, len(result.Trips), result.Discarded)

	records := make([]*models.Trip, 0, len(result.Trips))
	for i, trip := range result.Trips {
		trailing := result.Trailing && i == len(result.Trips)-1
		record, err := models.NewTrip(subject.ID, trip, trailing)
		if err != nil {
			return fail(err)
		}
		records = append(records, record)
	}
	if err := s.tripRepo.UpsertTrips(ctx, records); err != nil {
		return fail(err)
	}

	if s.announcer != nil {
		for i, trip := range result.Trips {
			if _, err := s.announcer.Announce(ctx, subject.ID, subject.displayName(), trip, records[i].Trailing); err != nil {
				// Unpublished events are retried by the next run over the same window.
				log.WithError(err).WithField("trip_start", trip.Start().Timestamp).Warn("Failed to announce trip")
			}
		}
	}

	return s.complete(ctx, run, started, result.Pings, result.Trips, log)
}

// withSpanningTrip prepends the stored pings of a trip that began before the
// window and was still running at its start. Segmenting from the trip's first
// ping reproduces its start, so a sliding window updates the stored trip
// instead of opening a second one mid-way.
func (s *TripService) withSpanningTrip(ctx context.Context, subjectID string, from time.Time, pings []segmentation.Ping) ([]segmentation.Ping, error) {
	start, ok, err := s.tripRepo.SpanningStart(ctx, subjectID, from.UnixMilli())
	if err != nil || !ok {
		return pings, err
	}

	first := pings[0].Timestamp
	for _, p := range pings[1:] {
		if p.Timestamp < first {
			first = p.Timestamp
		}
	}
	if start >= first {
		return pings, nil
	}

	prefix, err := s.pingRepo.GetPings(ctx, subjectID, start, first-1)
	if err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{
		"component": "segmentation",
		"subject":   subjectID,
		"from":      start,
		"pings":     len(prefix),
	}).Debug("Window extended to the start of a running trip")
	return append(prefix, pings...), nil
}

func (s *TripService) complete(ctx context.Context, run *models.SegmentationRun, started time.Time, pings int, trips []segmentation.Trip, log *logrus.Entry) (*models.SegmentationRun, []segmentation.Trip, error) {
	completed := s.now()
	if err := s.runRepo.MarkCompleted(ctx, run.ID, pings, len(trips), completed.UnixMilli()); err != nil {
		return run, trips, err
	}
	run.Status = models.RunStatusCompleted
	run.PingCount = pings
	run.TripCount = len(trips)
	run.CompletedAt = completed.UnixMilli()

	s.metrics.RecordRun(models.RunStatusCompleted, completed.Sub(started))
	s.metrics.LastSuccessfulRun.Set(float64(completed.Unix()))

	log.WithFields(logrus.Fields{
		"pings": pings,
		"trips": len(trips),
	}).Info("Segmentation run completed")
	return run, trips, nil
}

// Segment runs the engine over a series supplied by the caller. Nothing is
// stored. A nil params uses the service defaults.
func (s *TripService) Segment(series locations.Series, subjectID string, params *segmentation.Params) (*SegmentResult, error) {
	p := s.params
	if params != nil {
		p = *params
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	if subjectID == "" {
		if subjects := series.Subjects(); len(subjects) == 1 {
			subjectID = subjects[0]
		}
	}

	pings, err := locations.Project(series, subjectID)
	if err != nil {
		return nil, err
	}

	result, err := segmentation.Run(pings, p)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordSegmentation(result.Pings, len(result.Trips), result.Discarded)

	return &SegmentResult{
		SubjectID: subjectID,
		Pings:     result.Pings,
		Trailing:  result.Trailing,
		Trips:     result.Trips,
	}, nil
}

// GetTrips retrieves stored trips with filtering and pagination
func (s *TripService) GetTrips(ctx context.Context, filter models.TripFilter) (*models.TripsResponse, error) {
	filter.Normalize()

	trips, total, err := s.tripRepo.GetTrips(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to get trips: %w", err)
	}

	return &models.TripsResponse{
		Data:       trips,
		Total:      total,
		Page:       filter.Page,
		PageSize:   filter.PageSize,
		TotalPages: int(math.Ceil(float64(total) / float64(filter.PageSize))),
	}, nil
}

// GetTripByID retrieves a single stored trip
func (s *TripService) GetTripByID(ctx context.Context, id int64) (*models.Trip, error) {
	trip, err := s.tripRepo.GetTripByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get trip: %w", err)
	}
	if trip == nil {
		return nil, ErrTripNotFound
	}
	return trip, nil
}

// GetTripFeature renders a stored trip as GeoJSON
func (s *TripService) GetTripFeature(ctx context.Context, id int64) (*geojson.Feature, error) {
	trip, err := s.GetTripByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return render.RecordFeature(trip)
}

// GetTripStats summarizes the stored trips of a subject starting in [from, to]
func (s *TripService) GetTripStats(ctx context.Context, subjectID string, from, to int64) (*models.TripStats, error) {
	if from > 0 && to > 0 && from > to {
		return nil, fmt.Errorf("%w: from %d is after to %d", segmentation.ErrInvalidInput, from, to)
	}

	measures, err := s.tripRepo.GetTripMeasures(ctx, subjectID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to get trip stats: %w", err)
	}
	return models.NewTripStats(subjectID, from, to, measures), nil
}

// ListRuns lists recorded segmentation runs, newest first
func (s *TripService) ListRuns(ctx context.Context, filter models.RunFilter) ([]*models.SegmentationRun, error) {
	return s.runRepo.List(ctx, filter)
}
