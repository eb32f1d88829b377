package models

// SegmentationRun records one segmentation of a subject over a time window
type SegmentationRun struct {
	ID        int64  `json:"id" db:"id"`
	SubjectID string `json:"subject_id" db:"subject_id"`

	// Window of the fetched series, Unix milliseconds
	WindowFrom int64 `json:"window_from" db:"window_from"`
	WindowTo   int64 `json:"window_to" db:"window_to"`

	Status       string `json:"status" db:"status"` // running, completed, failed
	PingCount    int    `json:"ping_count" db:"ping_count"`
	TripCount    int    `json:"trip_count" db:"trip_count"`
	ErrorMessage string `json:"error_message,omitempty" db:"error_message"`
	ParamsJSON   string `json:"params_json,omitempty" db:"params_json"`

	StartedAt   int64 `json:"started_at" db:"started_at"`               // Unix milliseconds
	CompletedAt int64 `json:"completed_at,omitempty" db:"completed_at"` // Unix milliseconds, 0 while running
}

// RunStatus constants
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)
