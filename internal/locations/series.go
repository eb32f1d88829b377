package locations

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/jengzang/tripwatch/internal/segmentation"
)

var (
	// ErrAmbiguousSubject is returned when no subject was named and the series holds several
	ErrAmbiguousSubject = errors.New("series contains several subjects, a subject id is required")
	// ErrSubjectNotFound is returned when a subject name cannot be resolved
	ErrSubjectNotFound = errors.New("subject not found")
	// ErrNoPings is returned with segmentation.ErrInvalidInput when a series holds no pings of the subject
	ErrNoPings = errors.New("no pings")
)

// Coordinate is a decimal degree value that arrives either as a JSON number or
// as a numeric string
type Coordinate struct {
	Value float64
	Valid bool
	Raw   string // Original text when the value could not be parsed
}

// UnmarshalJSON accepts 12.5, "12.5" and null. Text that is not a number
// leaves the coordinate invalid so the offending ping can be reported.
func (c *Coordinate) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*c = Coordinate{}
		return nil
	}

	raw := string(data)
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		raw = strings.TrimSpace(s)
		if raw == "" {
			*c = Coordinate{}
			return nil
		}
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		*c = Coordinate{Raw: raw}
		return nil
	}
	*c = Coordinate{Value: v, Valid: true}
	return nil
}

// MarshalJSON writes the coordinate as a number, or null when unset
func (c Coordinate) MarshalJSON() ([]byte, error) {
	if !c.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(c.Value)
}

func (c Coordinate) problem(field string) string {
	switch {
	case c.Valid:
		return ""
	case c.Raw != "":
		return fmt.Sprintf("%s %q is not a number", field, c.Raw)
	default:
		return field + " is missing"
	}
}

// Num builds a valid coordinate
func Num(v float64) Coordinate {
	return Coordinate{Value: v, Valid: true}
}

// LocationRecord is one subject's position at one timestamp
type LocationRecord struct {
	Latitude  Coordinate `json:"latitude"`
	Longitude Coordinate `json:"longitude"`
	Address   string     `json:"address,omitempty"`
}

// Series maps an epoch-millisecond timestamp key to the positions of every
// subject seen at that time
type Series map[string]map[string]LocationRecord

// Subjects returns the sorted ids of all subjects present in the series
func (s Series) Subjects() []string {
	seen := make(map[string]struct{})
	for _, bySubject := range s {
		for id := range bySubject {
			seen[id] = struct{}{}
		}
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Project selects one subject's pings from the series. An empty subjectID
// picks the only subject present.
func Project(series Series, subjectID string) ([]segmentation.Ping, error) {
	if subjectID == "" {
		subjects := series.Subjects()
		switch len(subjects) {
		case 0:
			return nil, fmt.Errorf("%w: %w in series", segmentation.ErrInvalidInput, ErrNoPings)
		case 1:
			subjectID = subjects[0]
		default:
			return nil, fmt.Errorf("%w: %s", ErrAmbiguousSubject, strings.Join(subjects, ", "))
		}
	}

	type entry struct {
		key    string
		ts     int64
		record LocationRecord
	}

	entries := make([]entry, 0, len(series))
	var badKeys []string
	for key, bySubject := range series {
		record, ok := bySubject[subjectID]
		if !ok {
			continue
		}
		ts, err := parseTimestamp(key)
		if err != nil {
			badKeys = append(badKeys, key)
			continue
		}
		entries = append(entries, entry{key: key, ts: ts, record: record})
	}

	if len(badKeys) > 0 {
		sort.Strings(badKeys)
		_, err := parseTimestamp(badKeys[0])
		return nil, fmt.Errorf("%w: timestamp key %q: %v", segmentation.ErrInvalidInput, badKeys[0], err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: %w for subject %s", segmentation.ErrInvalidInput, ErrNoPings, subjectID)
	}

	// Validate in time order so the earliest malformed ping is reported
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].ts != entries[j].ts {
			return entries[i].ts < entries[j].ts
		}
		return entries[i].key < entries[j].key
	})

	pings := make([]segmentation.Ping, 0, len(entries))
	for _, e := range entries {
		if reason := e.record.Latitude.problem("latitude"); reason != "" {
			return nil, &segmentation.MalformedPingError{Timestamp: e.ts, Reason: reason}
		}
		if reason := e.record.Longitude.problem("longitude"); reason != "" {
			return nil, &segmentation.MalformedPingError{Timestamp: e.ts, Reason: reason}
		}

		pings = append(pings, segmentation.Ping{
			Timestamp: e.ts,
			Latitude:  e.record.Latitude.Value,
			Longitude: e.record.Longitude.Value,
			Address:   e.record.Address,
		})
	}
	return pings, nil
}

// FromPings builds a single-subject series, the inverse of Project
func FromPings(subjectID string, pings []segmentation.Ping) Series {
	series := make(Series, len(pings))
	for _, p := range pings {
		series[strconv.FormatInt(p.Timestamp, 10)] = map[string]LocationRecord{
			subjectID: {
				Latitude:  Num(p.Latitude),
				Longitude: Num(p.Longitude),
				Address:   p.Address,
			},
		}
	}
	return series
}

const maxExactFloat = 1 << 53

// parseTimestamp accepts integer keys as well as float renderings like "1.6e12"
func parseTimestamp(key string) (int64, error) {
	key = strings.TrimSpace(key)
	if ts, err := strconv.ParseInt(key, 10, 64); err == nil {
		return ts, nil
	}
	f, err := strconv.ParseFloat(key, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, fmt.Errorf("not an integer millisecond timestamp")
	}
	// Beyond 2^53 a float no longer holds every integer exactly
	if math.Abs(f) > maxExactFloat {
		return 0, fmt.Errorf("timestamp %s is out of range", key)
	}
	return int64(f), nil
}
