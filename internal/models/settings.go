package models

import (
	"fmt"
	"time"
)

// Settings holds the runtime tuning stored in the app_settings singleton row
type Settings struct {
	AccuracyLimitMeters    float64 `json:"accuracyLimitMeters"`
	MedianWindowSize       int     `json:"medianWindowSize"`
	AddressCheckIntervalMs int64   `json:"addressCheckIntervalMs"`
	StationaryRadiusMeters float64 `json:"stationaryRadiusMeters"`
	MovementOverrideMeters float64 `json:"movementOverrideMeters"`
	DisplayUnit            string  `json:"displayUnit"`
}

// Display units
const (
	UnitKilometers = "km"
	UnitMiles      = "mile"
)

// DefaultSettings returns the values used before anything has been saved
func DefaultSettings() Settings {
	return Settings{
		AccuracyLimitMeters:    20.0,
		MedianWindowSize:       7,
		AddressCheckIntervalMs: 60 * 1000,
		StationaryRadiusMeters: 5.0,
		MovementOverrideMeters: 200.0,
		DisplayUnit:            UnitKilometers,
	}
}

// AddressCheckInterval returns the debounce interval as a duration
func (s Settings) AddressCheckInterval() time.Duration {
	return time.Duration(s.AddressCheckIntervalMs) * time.Millisecond
}

// Validate checks the settings against the supported ranges
func (s Settings) Validate() error {
	if s.AccuracyLimitMeters <= 0 {
		return fmt.Errorf("accuracy limit must be positive, got %v", s.AccuracyLimitMeters)
	}
	if w := s.MedianWindowSize; w != 0 && (w < 3 || w > 19 || w%2 == 0) {
		return fmt.Errorf("median window size must be 0 or an odd number between 3 and 19, got %d", w)
	}
	if s.AddressCheckIntervalMs < 1000 {
		return fmt.Errorf("address check interval must be at least 1000 ms, got %d", s.AddressCheckIntervalMs)
	}
	if s.StationaryRadiusMeters < 0 || s.MovementOverrideMeters <= 0 {
		return fmt.Errorf("distance thresholds must be positive")
	}
	if s.DisplayUnit != UnitKilometers && s.DisplayUnit != UnitMiles {
		return fmt.Errorf("display unit must be %q or %q, got %q", UnitKilometers, UnitMiles, s.DisplayUnit)
	}
	return nil
}
