// Package notify announces detected trips to downstream consumers.
package notify

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jengzang/tripwatch/internal/render"
	"github.com/jengzang/tripwatch/internal/segmentation"
)

// EventType is the type of every trip event
const EventType = "Traveled"

// Kind tells whether an event marks the start or the end of a trip
type Kind string

const (
	KindStart Kind = "start"
	KindEnd   Kind = "end"
)

// Event is one trip announcement
type Event struct {
	ID        string          `json:"id"`
	App       string          `json:"app"`
	Type      string          `json:"type"`
	Kind      Kind            `json:"kind"`
	SubjectID string          `json:"subject_id"`
	Text      string          `json:"text"`
	Time      int64           `json:"time"` // Unix milliseconds
	TripStart int64           `json:"trip_start"`
	Points    int             `json:"points,omitempty"`
	Media     json.RawMessage `json:"media,omitempty"` // GeoJSON Feature of the trip line
}

// Options controls how events are built
type Options struct {
	App    string
	Points int
	// Trips lasting longer than LongTrip also get an end event
	LongTrip       time.Duration
	IncludeMedia   bool
	MediaTolerance float64 // Douglas-Peucker tolerance in degrees
}

// DefaultOptions returns the standard event options
func DefaultOptions() Options {
	return Options{
		App:            "tripwatch",
		LongTrip:       20 * time.Minute,
		IncludeMedia:   true,
		MediaTolerance: 0.0001,
	}
}

// Text is the human readable trip sentence
func Text(name string, trip segmentation.Trip) string {
	return fmt.Sprintf("%s traveled from %s to %s", name, addressOrUnknown(trip.Start().Address), addressOrUnknown(trip.End().Address))
}

func addressOrUnknown(address string) string {
	if address == "" {
		return "unknown"
	}
	return address
}

// BuildEvents returns the events for a trip. Every trip gets a start event
// timed at its first ping. Long trips also get an end event timed at the last
// ping, unless the trip is trailing and its end is not final yet.
func BuildEvents(opts Options, subjectID, name string, trip segmentation.Trip, trailing bool) ([]Event, error) {
	if trip.Len() == 0 {
		return nil, fmt.Errorf("cannot announce an empty trip")
	}

	var media json.RawMessage
	if opts.IncludeMedia {
		data, err := render.Media(trip, opts.MediaTolerance)
		if err != nil {
			return nil, fmt.Errorf("failed to render trip media: %w", err)
		}
		media = data
	}

	newEvent := func(kind Kind, at int64) Event {
		return Event{
			ID:        uuid.NewString(),
			App:       opts.App,
			Type:      EventType,
			Kind:      kind,
			SubjectID: subjectID,
			Text:      Text(name, trip),
			Time:      at,
			TripStart: trip.Start().Timestamp,
			Points:    opts.Points,
			Media:     media,
		}
	}

	events := []Event{newEvent(KindStart, trip.Start().Timestamp)}
	if !trailing && trip.Duration() > opts.LongTrip {
		events = append(events, newEvent(KindEnd, trip.End().Timestamp))
	}
	return events, nil
}

// Key identifies an announcement across polling windows
func (e Event) Key() string {
	return fmt.Sprintf("tripwatch:announced:%s:%d:%s", e.SubjectID, e.TripStart, e.Kind)
}
