package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jengzang/walkaround-go/internal/models"
	"github.com/jengzang/walkaround-go/internal/repository"
)

// ErrInvalidSettings wraps validation failures of submitted settings
var ErrInvalidSettings = errors.New("invalid settings")

// SettingsService reads and updates the runtime tuning
type SettingsService struct {
	repo *repository.SettingsRepository
}

// NewSettingsService creates a new settings service
func NewSettingsService(repo *repository.SettingsRepository) *SettingsService {
	return &SettingsService{repo: repo}
}

// Get returns the stored settings
func (s *SettingsService) Get(ctx context.Context) (models.Settings, error) {
	return s.repo.Get(ctx)
}

// Update validates and stores settings. Changes apply to the running
// session on its next read.
func (s *SettingsService) Update(ctx context.Context, settings models.Settings) (models.Settings, error) {
	if err := settings.Validate(); err != nil {
		return models.Settings{}, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	if err := s.repo.Save(ctx, settings); err != nil {
		return models.Settings{}, err
	}
	return settings, nil
}
