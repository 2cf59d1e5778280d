package config

import (
	"context"
	"sync"

	"github.com/jengzang/walkaround-go/internal/models"
	"github.com/jengzang/walkaround-go/internal/monitoring"
)

var settingsLog = monitoring.Component("Settings")

// SettingsSource supplies the runtime tuning. Values may change between
// reads, so callers read it on every use.
type SettingsSource interface {
	Settings(ctx context.Context) models.Settings
}

// SettingsLoader loads settings from persistent storage
type SettingsLoader interface {
	Get(ctx context.Context) (models.Settings, error)
}

// StoredSettings reads settings through a loader and falls back to the last
// good value (or the defaults) when the read fails.
type StoredSettings struct {
	loader SettingsLoader

	mu   sync.Mutex
	last models.Settings
}

// NewStoredSettings creates a SettingsSource backed by loader
func NewStoredSettings(loader SettingsLoader) *StoredSettings {
	return &StoredSettings{loader: loader, last: models.DefaultSettings()}
}

// Settings implements SettingsSource
func (s *StoredSettings) Settings(ctx context.Context) models.Settings {
	current, err := s.loader.Get(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		settingsLog.Printf("failed to read settings, using last known values: %v", err)
		return s.last
	}
	if verr := current.Validate(); verr != nil {
		settingsLog.Printf("stored settings are invalid, using last known values: %v", verr)
		return s.last
	}
	s.last = current
	return current
}

// StaticSettings is a fixed SettingsSource
type StaticSettings models.Settings

// Settings implements SettingsSource
func (s StaticSettings) Settings(context.Context) models.Settings {
	return models.Settings(s)
}
