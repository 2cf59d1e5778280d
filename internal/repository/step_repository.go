package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jengzang/walkaround-go/internal/models"
)

// StepRepository handles database operations for step segments
type StepRepository struct {
	db dbtx
}

// NewStepRepository creates a new step repository
func NewStepRepository(db *sql.DB) *StepRepository {
	return &StepRepository{db: db}
}

// Insert persists a step segment and assigns its ID
func (r *StepRepository) Insert(ctx context.Context, seg *models.StepSegment) error {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO step_segments (section_id, steps, start_time, end_time) VALUES (?, ?, ?, ?)`,
		seg.SectionID, seg.Steps, seg.StartTime, seg.EndTime)
	if err != nil {
		return fmt.Errorf("failed to insert step segment: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	seg.ID = id
	return nil
}

// TotalForSection sums the steps recorded for a section
func (r *StepRepository) TotalForSection(ctx context.Context, sectionID int64) (int, error) {
	var total int
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(steps), 0) FROM step_segments WHERE section_id = ?`, sectionID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum section steps: %w", err)
	}
	return total, nil
}

// TotalSince sums the steps of sections created at or after sinceMs
func (r *StepRepository) TotalSince(ctx context.Context, sinceMs int64) (int, error) {
	query := `
		SELECT COALESCE(SUM(st.steps), 0)
		FROM step_segments st
		JOIN sections s ON s.section_id = st.section_id
		WHERE s.created_at >= ?
	`

	var total int
	if err := r.db.QueryRowContext(ctx, query, sinceMs).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to sum steps: %w", err)
	}
	return total, nil
}
