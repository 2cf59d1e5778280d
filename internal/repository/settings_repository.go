package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jengzang/walkaround-go/internal/models"
)

// SettingsRepository reads and writes the app_settings singleton row
type SettingsRepository struct {
	db dbtx
}

// NewSettingsRepository creates a new settings repository
func NewSettingsRepository(db *sql.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get returns the stored settings, or the defaults when nothing was saved yet
func (r *SettingsRepository) Get(ctx context.Context) (models.Settings, error) {
	query := `
		SELECT accuracy_limit_m, median_window_size, address_check_interval_ms,
			   stationary_radius_m, movement_override_m, display_unit
		FROM app_settings
		WHERE id = 1
	`

	var s models.Settings
	err := r.db.QueryRowContext(ctx, query).Scan(
		&s.AccuracyLimitMeters,
		&s.MedianWindowSize,
		&s.AddressCheckIntervalMs,
		&s.StationaryRadiusMeters,
		&s.MovementOverrideMeters,
		&s.DisplayUnit,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return models.DefaultSettings(), nil
	}
	if err != nil {
		return models.Settings{}, fmt.Errorf("failed to get settings: %w", err)
	}
	return s, nil
}

// Save upserts the settings row. The cached locale is left untouched.
func (r *SettingsRepository) Save(ctx context.Context, s models.Settings) error {
	query := `
		INSERT INTO app_settings (
			id, accuracy_limit_m, median_window_size, address_check_interval_ms,
			stationary_radius_m, movement_override_m, display_unit, updated_at
		) VALUES (1, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			accuracy_limit_m = excluded.accuracy_limit_m,
			median_window_size = excluded.median_window_size,
			address_check_interval_ms = excluded.address_check_interval_ms,
			stationary_radius_m = excluded.stationary_radius_m,
			movement_override_m = excluded.movement_override_m,
			display_unit = excluded.display_unit,
			updated_at = CURRENT_TIMESTAMP
	`

	_, err := r.db.ExecContext(ctx, query,
		s.AccuracyLimitMeters,
		s.MedianWindowSize,
		s.AddressCheckIntervalMs,
		s.StationaryRadiusMeters,
		s.MovementOverrideMeters,
		s.DisplayUnit,
	)
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

// LoadLocale returns the cached display locale, or "" when none was learned
func (r *SettingsRepository) LoadLocale(ctx context.Context) (string, error) {
	var locale sql.NullString
	err := r.db.QueryRowContext(ctx, `SELECT cached_locale FROM app_settings WHERE id = 1`).Scan(&locale)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load cached locale: %w", err)
	}
	return locale.String, nil
}

// SaveLocale stores the learned display locale
func (r *SettingsRepository) SaveLocale(ctx context.Context, tag string) error {
	query := `
		INSERT INTO app_settings (id, cached_locale, updated_at) VALUES (1, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET cached_locale = excluded.cached_locale, updated_at = CURRENT_TIMESTAMP
	`
	if _, err := r.db.ExecContext(ctx, query, tag); err != nil {
		return fmt.Errorf("failed to save cached locale: %w", err)
	}
	return nil
}
