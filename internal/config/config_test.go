package config

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jengzang/walkaround-go/internal/models"
	"github.com/jengzang/walkaround-go/internal/monitoring"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"PORT", "DB_PATH", "JWT_SECRET", "GEOCODER_URL", "GEOCODER_USER_AGENT", "GEOCODER_TIMEOUT", "DEFAULT_LOCALE", "STEP_SOURCE", "INGEST_RATE_LIMIT"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	assert.Equal(t, ":8080", cfg.Port)
	assert.Equal(t, "./data/walkaround/walkaround.db", cfg.DBPath)
	assert.Empty(t, cfg.JWTSecret)
	assert.Equal(t, "https://nominatim.openstreetmap.org", cfg.GeocoderURL)
	assert.Equal(t, 10*time.Second, cfg.GeocoderTimeout)
	assert.Equal(t, "en", cfg.DefaultLocale)
	assert.Equal(t, "DETECTOR", cfg.StepSource)
	assert.Equal(t, 600, cfg.IngestRateLimit)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", ":9090")
	t.Setenv("DB_PATH", "/tmp/w.db")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("GEOCODER_URL", "http://localhost:7070")
	t.Setenv("GEOCODER_TIMEOUT", "2s")
	t.Setenv("DEFAULT_LOCALE", "ja")
	t.Setenv("STEP_SOURCE", "COUNTER")
	t.Setenv("INGEST_RATE_LIMIT", "0")

	cfg := Load()
	assert.Equal(t, ":9090", cfg.Port)
	assert.Equal(t, "/tmp/w.db", cfg.DBPath)
	assert.Equal(t, "s3cret", cfg.JWTSecret)
	assert.Equal(t, "http://localhost:7070", cfg.GeocoderURL)
	assert.Equal(t, 2*time.Second, cfg.GeocoderTimeout)
	assert.Equal(t, "ja", cfg.DefaultLocale)
	assert.Equal(t, "COUNTER", cfg.StepSource)
	assert.Zero(t, cfg.IngestRateLimit)
}

func TestLoad_InvalidValues(t *testing.T) {
	t.Setenv("GEOCODER_TIMEOUT", "soon")
	t.Setenv("INGEST_RATE_LIMIT", "-3")
	cfg := Load()
	assert.Equal(t, 10*time.Second, cfg.GeocoderTimeout)
	assert.Equal(t, 600, cfg.IngestRateLimit)
}

type stubLoader struct {
	settings models.Settings
	err      error
}

func (l *stubLoader) Get(context.Context) (models.Settings, error) {
	return l.settings, l.err
}

func TestStoredSettings(t *testing.T) {
	monitoring.SetLogger(nil)

	ctx := context.Background()
	custom := models.DefaultSettings()
	custom.AccuracyLimitMeters = 50

	loader := &stubLoader{settings: custom}
	src := NewStoredSettings(loader)
	assert.Equal(t, custom, src.Settings(ctx))

	loader.err = errors.New("disk gone")
	assert.Equal(t, custom, src.Settings(ctx), "read failure keeps the last good value")

	loader.err = nil
	loader.settings.MedianWindowSize = 4
	assert.Equal(t, custom, src.Settings(ctx), "invalid values are ignored")

	fresh := NewStoredSettings(&stubLoader{err: errors.New("no db")})
	assert.Equal(t, models.DefaultSettings(), fresh.Settings(ctx))
}

func TestStaticSettings(t *testing.T) {
	s := models.DefaultSettings()
	assert.Equal(t, s, StaticSettings(s).Settings(context.Background()))
}
