package repository

import (
	"context"
	"database/sql"

	"github.com/jengzang/walkaround-go/internal/models"
)

// Store groups the repositories over one database and exposes the
// operations the session tracker persists through.
type Store struct {
	db *sql.DB

	Tracks    *TrackRepository
	Sections  *SectionRepository
	Addresses *AddressRepository
	Steps     *StepRepository
	Settings  *SettingsRepository
}

// NewStore creates a Store over db
func NewStore(db *sql.DB) *Store {
	return &Store{
		db:        db,
		Tracks:    NewTrackRepository(db),
		Sections:  NewSectionRepository(db),
		Addresses: NewAddressRepository(db),
		Steps:     NewStepRepository(db),
		Settings:  NewSettingsRepository(db),
	}
}

// DB returns the underlying database
func (s *Store) DB() *sql.DB {
	return s.db
}

// CreateSection opens a new section
func (s *Store) CreateSection(ctx context.Context, createdAt int64) (*models.Section, error) {
	return s.Sections.Create(ctx, createdAt)
}

// InsertTrackPoint persists a track point
func (s *Store) InsertTrackPoint(ctx context.Context, p *models.TrackPoint) error {
	return s.Tracks.Insert(ctx, p)
}

// SetStartTrackIfUnset sets a section's start track when it is still unset
func (s *Store) SetStartTrackIfUnset(ctx context.Context, sectionID, trackID int64) (bool, error) {
	return s.Sections.SetStartTrackIfUnset(ctx, sectionID, trackID)
}

// InsertAddress persists an address breakpoint
func (s *Store) InsertAddress(ctx context.Context, rec *models.AddressRecord) error {
	return s.Addresses.Insert(ctx, rec)
}

// InsertStepSegment persists a step segment
func (s *Store) InsertStepSegment(ctx context.Context, seg *models.StepSegment) error {
	return s.Steps.Insert(ctx, seg)
}

// AccurateTrack returns the accurate points between two track ids in time order
func (s *Store) AccurateTrack(ctx context.Context, startID, endID int64, maxAccuracy float64) ([]models.TrackPoint, error) {
	return s.Tracks.AccurateBetween(ctx, startID, endID, maxAccuracy)
}

// FinalizeSection stores the closing fields of a section
func (s *Store) FinalizeSection(ctx context.Context, section *models.Section) error {
	return s.Sections.Finalize(ctx, section)
}
