package segmentation

import "fmt"

// Default segmentation parameters
const (
	// DefaultSpeedThresholdMetersPerMs is the distance per elapsed millisecond a
	// ping pair must cover to count as movement.
	DefaultSpeedThresholdMetersPerMs = 0.00005556
	DefaultHysteresisTicks           = 15
	DefaultMaxGapMs                  = 15 * 60 * 1000
	DefaultMinTripLength             = 20
)

// Params holds the tunable options of the segmentation engine
type Params struct {
	SpeedThresholdMetersPerMs float64 `json:"speed_threshold_m_per_ms" mapstructure:"speed_threshold_m_per_ms"`
	HysteresisTicks           int     `json:"hysteresis_ticks" mapstructure:"hysteresis_ticks"`
	MaxGapMs                  int64   `json:"max_gap_ms" mapstructure:"max_gap_ms"`
	MinTripLength             int     `json:"min_trip_length" mapstructure:"min_trip_length"`

	// FilterTrailingTrip applies the MinTripLength rule to a trip that is
	// still open when the series ends.
	FilterTrailingTrip bool `json:"filter_trailing_trip" mapstructure:"filter_trailing_trip"`
}

// DefaultParams returns the canonical parameter set
func DefaultParams() Params {
	return Params{
		SpeedThresholdMetersPerMs: DefaultSpeedThresholdMetersPerMs,
		HysteresisTicks:           DefaultHysteresisTicks,
		MaxGapMs:                  DefaultMaxGapMs,
		MinTripLength:             DefaultMinTripLength,
		FilterTrailingTrip:        true,
	}
}

// Validate checks that the parameters describe a usable state machine
func (p Params) Validate() error {
	if !(p.SpeedThresholdMetersPerMs > 0) {
		return fmt.Errorf("%w: speed threshold must be positive, got %v", ErrInvalidParams, p.SpeedThresholdMetersPerMs)
	}
	if p.HysteresisTicks < 0 {
		return fmt.Errorf("%w: hysteresis ticks must not be negative, got %d", ErrInvalidParams, p.HysteresisTicks)
	}
	if p.MaxGapMs <= 0 {
		return fmt.Errorf("%w: max gap must be positive, got %d", ErrInvalidParams, p.MaxGapMs)
	}
	if p.MinTripLength < 0 {
		return fmt.Errorf("%w: min trip length must not be negative, got %d", ErrInvalidParams, p.MinTripLength)
	}
	return nil
}
