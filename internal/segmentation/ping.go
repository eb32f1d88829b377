package segmentation

import (
	"math"
	"time"

	"github.com/jengzang/tripwatch/internal/spatial"
)

// Ping is one timestamped geolocation observation for a subject
type Ping struct {
	Timestamp int64   `json:"timestamp"` // Unix epoch in milliseconds
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address,omitempty"`
}

// Time returns the ping timestamp as time.Time
func (p Ping) Time() time.Time {
	return time.UnixMilli(p.Timestamp)
}

// LatLng returns the ping position
func (p Ping) LatLng() spatial.LatLng {
	return spatial.LatLng{Lat: p.Latitude, Lon: p.Longitude}
}

func (p Ping) validate() error {
	if math.IsNaN(p.Latitude) || math.IsInf(p.Latitude, 0) {
		return &MalformedPingError{Timestamp: p.Timestamp, Reason: "latitude is not finite"}
	}
	if math.IsNaN(p.Longitude) || math.IsInf(p.Longitude, 0) {
		return &MalformedPingError{Timestamp: p.Timestamp, Reason: "longitude is not finite"}
	}
	return nil
}

// AnnotatedPing is a ping together with the values derived from its predecessor
type AnnotatedPing struct {
	Ping
	DistanceFromPrevious float64 `json:"distance"`             // Meters
	SpeedThreshold       float64 `json:"threshold"`            // Meters required to count as movement
	ElapsedSincePrevious int64   `json:"elapsedSincePrevious"` // Milliseconds
}

// Trip is a contiguous run of pings classified as one movement episode
type Trip struct {
	Pings []AnnotatedPing `json:"pings"`
}

// Len returns the number of pings in the trip
func (t Trip) Len() int {
	return len(t.Pings)
}

// Start returns the first ping of the trip
func (t Trip) Start() AnnotatedPing {
	return t.Pings[0]
}

// End returns the last ping of the trip
func (t Trip) End() AnnotatedPing {
	return t.Pings[len(t.Pings)-1]
}

// Duration returns the time between the first and last ping
func (t Trip) Duration() time.Duration {
	if len(t.Pings) == 0 {
		return 0
	}
	return time.Duration(t.End().Timestamp-t.Start().Timestamp) * time.Millisecond
}

// DistanceMeters sums the distance covered after the departure ping
func (t Trip) DistanceMeters() float64 {
	total := 0.0
	for i := 1; i < len(t.Pings); i++ {
		total += t.Pings[i].DistanceFromPrevious
	}
	return total
}

// Path returns the trip coordinates in chronological order
func (t Trip) Path() []spatial.LatLng {
	path := make([]spatial.LatLng, len(t.Pings))
	for i, p := range t.Pings {
		path[i] = p.LatLng()
	}
	return path
}
