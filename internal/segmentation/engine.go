// Package segmentation cuts a subject's ping series into trips.
//
// A consecutive ping pair counts as movement when the great-circle distance
// between the pings is at least the elapsed time multiplied by the speed
// threshold, and the gap between them is below MaxGapMs. Movement opens a
// trip seeded with the departure ping. Once movement stops the open trip
// absorbs up to HysteresisTicks further pings before it is closed, and only
// trips longer than MinTripLength are kept. A data gap closes the open trip
// immediately.
package segmentation

import (
	"cmp"
	"slices"
)

// Result is the outcome of segmenting one series
type Result struct {
	Trips []Trip
	// Trailing is set when the last trip was still open at the end of the
	// series and may grow once more pings arrive.
	Trailing bool
	// Pings is the number of pings folded
	Pings int
	// Discarded counts trips dropped for being too short
	Discarded int
}

// Segment converts one subject's pings into trips in chronological order.
// The input may be given in any order; it is not modified.
func Segment(pings []Ping, params Params) ([]Trip, error) {
	result, err := Run(pings, params)
	if err != nil {
		return nil, err
	}
	return result.Trips, nil
}

// Run is Segment that also reports whether the final trip was left open
func Run(pings []Ping, params Params) (Result, error) {
	if err := params.Validate(); err != nil {
		return Result{}, err
	}
	if len(pings) == 0 {
		return Result{}, ErrInvalidInput
	}
	for _, p := range pings {
		if err := p.validate(); err != nil {
			return Result{}, err
		}
	}

	sorted := slices.Clone(pings)
	slices.SortStableFunc(sorted, func(a, b Ping) int {
		return cmp.Compare(a.Timestamp, b.Timestamp)
	})

	state := NewState(sorted[0])
	discarded := 0
	for _, p := range sorted[1:] {
		var transition Transition
		state, transition = Step(state, p, params)
		if transition == Discarded {
			discarded++
		}
	}

	trips := Finish(state, params)
	if trips == nil {
		trips = []Trip{}
	}
	return Result{
		Trips:     trips,
		Trailing:  state.Tripping() && len(trips) > len(state.Trips),
		Pings:     len(sorted),
		Discarded: discarded,
	}, nil
}
