package models

// Section is one continuous walking session bounded by a start and end track point
type Section struct {
	ID              int64    `json:"sectionId" db:"section_id"`
	TrackStartID    *int64   `json:"trackStartId,omitempty" db:"track_start_id"`
	TrackEndID      *int64   `json:"trackEndId,omitempty" db:"track_end_id"`
	DistanceMeters  *float64 `json:"distanceMeters,omitempty" db:"distance_meters"`
	DurationSeconds *int64   `json:"durationSeconds,omitempty" db:"duration_seconds"`
	AverageSpeedKmh *float64 `json:"averageSpeedKmh,omitempty" db:"average_speed_kmh"`
	CreatedAt       int64    `json:"createdAt" db:"created_at"` // Unix milliseconds
	EndedAt         *int64   `json:"endedAt,omitempty" db:"ended_at"` // Unix milliseconds, nil while recording
}

// IsOpen reports whether the section is still being recorded. A closed
// section may lack track bounds when no accurate fix was stored.
func (s *Section) IsOpen() bool {
	return s.EndedAt == nil
}

// HasTrackBounds reports whether both track ids are known
func (s *Section) HasTrackBounds() bool {
	return s.TrackStartID != nil && s.TrackEndID != nil
}

// SectionSummary is the compact listing row for a section
type SectionSummary struct {
	SectionID       int64    `json:"sectionId"`
	StartTimeMillis int64    `json:"startTimeMillis"`
	Steps           int      `json:"steps"`
	TrackPointCount int      `json:"trackPointCount"`
	DistanceMeters  *float64 `json:"distanceMeters,omitempty"`
	TrackStartID    *int64   `json:"trackStartId,omitempty"`
	TrackEndID      *int64   `json:"trackEndId,omitempty"`
}

// SectionGroup is a section with its steps and the breakpoints left visible after dedup
type SectionGroup struct {
	SectionID      int64           `json:"sectionId"`
	CreatedAt      int64           `json:"createdAt"`
	DistanceMeters *float64        `json:"distanceMeters,omitempty"`
	Steps          int             `json:"steps"`
	Addresses      []AddressRecord `json:"addresses"`
}

// StepSegment summarizes the steps counted within a section
type StepSegment struct {
	ID        int64 `json:"id" db:"id"`
	SectionID int64 `json:"sectionId" db:"section_id"`
	Steps     int   `json:"steps" db:"steps"`
	StartTime int64 `json:"startTime" db:"start_time"` // Unix milliseconds
	EndTime   int64 `json:"endTime" db:"end_time"`     // Unix milliseconds
}

// SectionTrack is the smoothed track of a section prepared for display
type SectionTrack struct {
	SectionID      int64           `json:"sectionId"`
	Points         []LatLng        `json:"points"`
	DistanceMeters *float64        `json:"distanceMeters,omitempty"`
	StoredPoints   int             `json:"storedPoints"` // every stored point in the bounds, accurate or not
	Breakpoints    []AddressRecord `json:"breakpoints"`
}
