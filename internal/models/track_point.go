package models

// TrackPoint is a persisted GPS fix recorded while a session is active
type TrackPoint struct {
	ID               int64    `json:"id" db:"id"`
	Time             int64    `json:"time" db:"time"` // Unix milliseconds
	Latitude         float64  `json:"latitude" db:"latitude"`
	Longitude        float64  `json:"longitude" db:"longitude"`
	Altitude         float64  `json:"altitude" db:"altitude"`
	Speed            float64  `json:"speed" db:"speed"`       // m/s
	Accuracy         float64  `json:"accuracy" db:"accuracy"` // horizontal, meters
	VerticalAccuracy *float64 `json:"verticalAccuracy,omitempty" db:"vertical_accuracy"`
	Heading          *float64 `json:"heading,omitempty" db:"heading"` // degrees 0-360
}

// LatLng returns the point's coordinates
func (p TrackPoint) LatLng() LatLng {
	return LatLng{Latitude: p.Latitude, Longitude: p.Longitude}
}

// LatLng is a bare coordinate pair
type LatLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Fix is a raw location update delivered by a location source
type Fix struct {
	Time             int64    `json:"time"` // Unix milliseconds
	Latitude         float64  `json:"latitude" binding:"min=-90,max=90"`
	Longitude        float64  `json:"longitude" binding:"min=-180,max=180"`
	Altitude         float64  `json:"altitude"`
	Speed            float64  `json:"speed"`
	Accuracy         float64  `json:"accuracy"`
	VerticalAccuracy *float64 `json:"verticalAccuracy,omitempty"`
	Heading          *float64 `json:"heading,omitempty"`
}

// LatLng returns the fix's coordinates
func (f Fix) LatLng() LatLng {
	return LatLng{Latitude: f.Latitude, Longitude: f.Longitude}
}

// TrackPoint converts the fix into an unsaved track point stamped at timeMs
func (f Fix) TrackPoint(timeMs int64) TrackPoint {
	return TrackPoint{
		Time:             timeMs,
		Latitude:         f.Latitude,
		Longitude:        f.Longitude,
		Altitude:         f.Altitude,
		Speed:            f.Speed,
		Accuracy:         f.Accuracy,
		VerticalAccuracy: f.VerticalAccuracy,
		Heading:          f.Heading,
	}
}
