package segmentation

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is returned when there is no ping to segment
	ErrInvalidInput = errors.New("invalid input: no subject data available")
	// ErrMalformedPing matches every *MalformedPingError
	ErrMalformedPing = errors.New("malformed ping")
	// ErrInvalidParams is returned by Params.Validate
	ErrInvalidParams = errors.New("invalid segmentation params")
)

// MalformedPingError identifies a ping whose coordinates are missing or not finite
type MalformedPingError struct {
	Timestamp int64
	Reason    string
}

func (e *MalformedPingError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("malformed ping at %d", e.Timestamp)
	}
	return fmt.Sprintf("malformed ping at %d: %s", e.Timestamp, e.Reason)
}

// Is lets errors.Is(err, ErrMalformedPing) match
func (e *MalformedPingError) Is(target error) bool {
	return target == ErrMalformedPing
}
