package models

// TripFilter represents filter parameters for querying trips
type TripFilter struct {
	SubjectID string `form:"subjectId"`
	StartTime int64  `form:"startTime"` // Unix milliseconds, trips starting at or after
	EndTime   int64  `form:"endTime"`   // Unix milliseconds, trips ending at or before
	MinPoints int    `form:"minPoints"`
	Page      int    `form:"page"`
	PageSize  int    `form:"pageSize"`
}

// Normalize applies pagination defaults and bounds
func (f *TripFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = 100
	}
	if f.PageSize > 1000 {
		f.PageSize = 1000
	}
}

// RunFilter represents filter parameters for listing segmentation runs
type RunFilter struct {
	SubjectID string `form:"subjectId"`
	Status    string `form:"status"`
	Limit     int    `form:"limit"`
}
