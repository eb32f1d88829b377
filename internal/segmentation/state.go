package segmentation

import (
	"slices"

	"github.com/jengzang/tripwatch/internal/spatial"
)

// Transition describes what a single Step did to the state
type Transition int

const (
	// Idle: not moving and no trip open
	Idle Transition = iota
	// Opened: movement started a new trip seeded with the previous ping
	Opened
	// Extended: movement continued an open trip
	Extended
	// Decelerating: a non-moving ping was absorbed by the hysteresis window
	Decelerating
	// Closed: the open trip ended and was kept
	Closed
	// Discarded: the open trip ended but was too short to keep
	Discarded
)

func (t Transition) String() string {
	switch t {
	case Idle:
		return "idle"
	case Opened:
		return "opened"
	case Extended:
		return "extended"
	case Decelerating:
		return "decelerating"
	case Closed:
		return "closed"
	case Discarded:
		return "discarded"
	default:
		return "unknown"
	}
}

// State is the running value threaded through the ping fold.
// Step never modifies the slices of the State it is given.
type State struct {
	Previous  AnnotatedPing
	Open      []AnnotatedPing // nil when no trip is open
	Countdown int
	Trips     []Trip
}

// NewState starts a fold at the first (earliest) ping
func NewState(first Ping) State {
	return State{Previous: AnnotatedPing{Ping: first}}
}

// Tripping reports whether a trip is currently open
func (s State) Tripping() bool {
	return s.Open != nil
}

// Annotate derives distance, threshold and elapsed time of p relative to prev
func Annotate(prev Ping, p Ping, params Params) AnnotatedPing {
	elapsed := p.Timestamp - prev.Timestamp
	return AnnotatedPing{
		Ping:                 p,
		DistanceFromPrevious: spatial.DistanceMeters(prev.Latitude, prev.Longitude, p.Latitude, p.Longitude),
		SpeedThreshold:       float64(elapsed) * params.SpeedThresholdMetersPerMs,
		ElapsedSincePrevious: elapsed,
	}
}

// Step applies one ping to the state and returns the next state
func Step(s State, p Ping, params Params) (State, Transition) {
	current := Annotate(s.Previous.Ping, p, params)
	withinReasonableTimeFrame := current.ElapsedSincePrevious < params.MaxGapMs
	moving := current.DistanceFromPrevious >= current.SpeedThreshold && withinReasonableTimeFrame

	next := State{
		Previous:  current,
		Open:      s.Open,
		Countdown: s.Countdown,
		Trips:     s.Trips,
	}

	switch {
	case moving:
		transition := Extended
		if !s.Tripping() {
			next.Open = []AnnotatedPing{s.Previous}
			transition = Opened
		}
		next.Open = extend(next.Open, current)
		next.Countdown = params.HysteresisTicks
		return next, transition

	case s.Tripping() && !withinReasonableTimeFrame:
		// A data gap ends the trip at the last ping before the gap.
		return closeTrip(next, s.Open, params.MinTripLength)

	case s.Tripping():
		open := extend(s.Open, current)
		if s.Countdown <= 0 {
			return closeTrip(next, open, params.MinTripLength)
		}
		next.Open = open
		next.Countdown = s.Countdown - 1
		return next, Decelerating

	default:
		return next, Idle
	}
}

// Finish flushes a trip still open at the end of the series
func Finish(s State, params Params) []Trip {
	trips := slices.Clip(s.Trips)
	if !s.Tripping() {
		return trips
	}
	if params.FilterTrailingTrip && len(s.Open) <= params.MinTripLength {
		return trips
	}
	return append(trips, Trip{Pings: s.Open})
}

func closeTrip(next State, pings []AnnotatedPing, minLength int) (State, Transition) {
	next.Open = nil
	next.Countdown = 0
	if len(pings) <= minLength {
		return next, Discarded
	}
	next.Trips = append(slices.Clip(next.Trips), Trip{Pings: pings})
	return next, Closed
}

func extend(pings []AnnotatedPing, p AnnotatedPing) []AnnotatedPing {
	return append(slices.Clip(pings), p)
}
