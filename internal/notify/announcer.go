package notify

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jengzang/tripwatch/internal/observability"
	"github.com/jengzang/tripwatch/internal/segmentation"
)

// Announcer publishes trip events at most once per trip and kind
type Announcer struct {
	sink    Sink
	claims  ClaimStore
	opts    Options
	ttl     time.Duration
	metrics *observability.Metrics
	logger  *logrus.Logger
}

// NewAnnouncer creates a new announcer. Claims expire after ttl; zero keeps them forever.
func NewAnnouncer(sink Sink, claims ClaimStore, opts Options, ttl time.Duration, metrics *observability.Metrics, logger *logrus.Logger) *Announcer {
	return &Announcer{
		sink:    sink,
		claims:  claims,
		opts:    opts,
		ttl:     ttl,
		metrics: metrics,
		logger:  logger,
	}
}

// Announce publishes the events of one trip that were not announced before
// and returns how many were published. A failed publication releases its
// claim so a later run retries it.
func (a *Announcer) Announce(ctx context.Context, subjectID, name string, trip segmentation.Trip, trailing bool) (int, error) {
	events, err := BuildEvents(a.opts, subjectID, name, trip, trailing)
	if err != nil {
		return 0, err
	}

	log := a.logger.WithFields(logrus.Fields{
		"component":  "notify",
		"subject":    subjectID,
		"trip_start": trip.Start().Timestamp,
	})

	published := 0
	var errs []error
	for _, event := range events {
		key := event.Key()

		claimed, err := a.claims.Claim(ctx, key, a.ttl)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !claimed {
			a.metrics.EventsSuppressed.Inc()
			log.WithField("kind", event.Kind).Debug("Trip event already announced")
			continue
		}

		if err := a.sink.Publish(ctx, event); err != nil {
			a.metrics.PublishErrors.WithLabelValues(string(event.Kind)).Inc()
			if relErr := a.claims.Release(ctx, key); relErr != nil {
				log.WithError(relErr).Warn("Failed to release claim of unpublished event")
			}
			errs = append(errs, err)
			continue
		}

		a.metrics.EventsPublished.WithLabelValues(string(event.Kind)).Inc()
		published++
	}

	return published, errors.Join(errs...)
}

// Close closes the sink
func (a *Announcer) Close() error {
	return a.sink.Close()
}
