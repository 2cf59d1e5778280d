package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jengzang/walkaround-go/internal/models"
)

// SectionRepository handles database operations for sections
type SectionRepository struct {
	db dbtx
}

// NewSectionRepository creates a new section repository
func NewSectionRepository(db *sql.DB) *SectionRepository {
	return &SectionRepository{db: db}
}

// WithTx returns a repository bound to tx
func (r *SectionRepository) WithTx(tx *sql.Tx) *SectionRepository {
	return &SectionRepository{db: tx}
}

const sectionColumns = `section_id, track_start_id, track_end_id, distance_meters, duration_seconds, average_speed_kmh, created_at, ended_at`

// Create opens a new section with no track bounds
func (r *SectionRepository) Create(ctx context.Context, createdAt int64) (*models.Section, error) {
	result, err := r.db.ExecContext(ctx, `INSERT INTO sections (created_at) VALUES (?)`, createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create section: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert id: %w", err)
	}

	return &models.Section{ID: id, CreatedAt: createdAt}, nil
}

// GetByID retrieves a section by ID
func (r *SectionRepository) GetByID(ctx context.Context, id int64) (*models.Section, error) {
	query := `SELECT ` + sectionColumns + ` FROM sections WHERE section_id = ?`

	s, err := scanSection(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrSectionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get section: %w", err)
	}
	return s, nil
}

// List returns all sections, newest first
func (r *SectionRepository) List(ctx context.Context) ([]models.Section, error) {
	query := `SELECT ` + sectionColumns + ` FROM sections ORDER BY created_at DESC, section_id DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query sections: %w", err)
	}
	defer rows.Close()

	var sections []models.Section
	for rows.Next() {
		s, err := scanSection(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan section: %w", err)
		}
		sections = append(sections, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sections: %w", err)
	}
	return sections, nil
}

// SetStartTrackIfUnset sets track_start_id only when it is still NULL.
// Returns true when this call set it.
func (r *SectionRepository) SetStartTrackIfUnset(ctx context.Context, sectionID, trackID int64) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE sections SET track_start_id = ? WHERE section_id = ? AND track_start_id IS NULL`,
		trackID, sectionID)
	if err != nil {
		return false, fmt.Errorf("failed to set section start track: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n == 1, nil
}

// Finalize records the end track, distance, duration and average speed of a
// section and closes it. Without EndedAt the close time is derived from the
// creation time and duration.
func (r *SectionRepository) Finalize(ctx context.Context, s *models.Section) error {
	query := `
		UPDATE sections
		SET track_end_id = ?, distance_meters = ?, duration_seconds = ?, average_speed_kmh = ?,
		    ended_at = COALESCE(?, created_at + COALESCE(?, 0) * 1000)
		WHERE section_id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		s.TrackEndID,
		s.DistanceMeters,
		s.DurationSeconds,
		s.AverageSpeedKmh,
		s.EndedAt,
		s.DurationSeconds,
		s.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to finalize section: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %d", ErrSectionNotFound, s.ID)
	}
	return nil
}

// UpdateDistance stores the total distance of a section
func (r *SectionRepository) UpdateDistance(ctx context.Context, sectionID int64, meters float64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE sections SET distance_meters = ? WHERE section_id = ?`, meters, sectionID)
	if err != nil {
		return fmt.Errorf("failed to update section distance: %w", err)
	}
	return nil
}

// Delete removes a section. Address records and step segments cascade.
func (r *SectionRepository) Delete(ctx context.Context, sectionID int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM sections WHERE section_id = ?`, sectionID)
	if err != nil {
		return fmt.Errorf("failed to delete section: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %d", ErrSectionNotFound, sectionID)
	}
	return nil
}

// Summaries returns one row per section, newest first. Open sections count
// their track points up to the latest stored point.
func (r *SectionRepository) Summaries(ctx context.Context) ([]models.SectionSummary, error) {
	query := `
		SELECT
			s.section_id,
			COALESCE((SELECT t.time FROM tracks t WHERE t.id = s.track_start_id), s.created_at),
			COALESCE((SELECT SUM(st.steps) FROM step_segments st WHERE st.section_id = s.section_id), 0),
			CASE WHEN s.track_start_id IS NULL THEN 0 ELSE (
				SELECT COUNT(*) FROM tracks t
				WHERE t.id >= s.track_start_id
				  AND t.id <= COALESCE(s.track_end_id, (SELECT MAX(id) FROM tracks))
			) END,
			s.distance_meters,
			s.track_start_id,
			s.track_end_id
		FROM sections s
		ORDER BY s.created_at DESC, s.section_id DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query section summaries: %w", err)
	}
	defer rows.Close()

	var summaries []models.SectionSummary
	for rows.Next() {
		var s models.SectionSummary
		if err := rows.Scan(
			&s.SectionID, &s.StartTimeMillis, &s.Steps, &s.TrackPointCount,
			&s.DistanceMeters, &s.TrackStartID, &s.TrackEndID,
		); err != nil {
			return nil, fmt.Errorf("failed to scan section summary: %w", err)
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate section summaries: %w", err)
	}
	return summaries, nil
}

func scanSection(row rowScanner) (*models.Section, error) {
	var s models.Section
	err := row.Scan(
		&s.ID, &s.TrackStartID, &s.TrackEndID, &s.DistanceMeters,
		&s.DurationSeconds, &s.AverageSpeedKmh, &s.CreatedAt, &s.EndedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
