package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jengzang/walkaround-go/internal/models"
)

// TrackRepository handles database operations for track points
type TrackRepository struct {
	db dbtx
}

// NewTrackRepository creates a new track repository
func NewTrackRepository(db *sql.DB) *TrackRepository {
	return &TrackRepository{db: db}
}

// WithTx returns a repository bound to tx
func (r *TrackRepository) WithTx(tx *sql.Tx) *TrackRepository {
	return &TrackRepository{db: tx}
}

const trackColumns = `id, time, latitude, longitude, altitude, speed, accuracy, vertical_accuracy, heading`

// Insert persists a track point and assigns its ID
func (r *TrackRepository) Insert(ctx context.Context, p *models.TrackPoint) error {
	query := `
		INSERT INTO tracks (time, latitude, longitude, altitude, speed, accuracy, vertical_accuracy, heading)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		p.Time,
		p.Latitude,
		p.Longitude,
		p.Altitude,
		p.Speed,
		p.Accuracy,
		p.VerticalAccuracy,
		p.Heading,
	)
	if err != nil {
		return fmt.Errorf("failed to insert track point: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	p.ID = id
	return nil
}

// GetByID retrieves a single track point by ID
func (r *TrackRepository) GetByID(ctx context.Context, id int64) (*models.TrackPoint, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks WHERE id = ?`

	p, err := scanTrack(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrTrackNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get track point: %w", err)
	}
	return p, nil
}

// Between returns all points with startID <= id <= endID in time order
func (r *TrackRepository) Between(ctx context.Context, startID, endID int64) ([]models.TrackPoint, error) {
	query := `SELECT ` + trackColumns + `
		FROM tracks
		WHERE id BETWEEN ? AND ?
		ORDER BY time ASC, id ASC`
	return r.queryTracks(ctx, query, startID, endID)
}

// AccurateBetween is Between restricted to points whose accuracy is within maxAccuracy meters
func (r *TrackRepository) AccurateBetween(ctx context.Context, startID, endID int64, maxAccuracy float64) ([]models.TrackPoint, error) {
	query := `SELECT ` + trackColumns + `
		FROM tracks
		WHERE id BETWEEN ? AND ? AND accuracy <= ?
		ORDER BY time ASC, id ASC`
	return r.queryTracks(ctx, query, startID, endID, maxAccuracy)
}

// LastAccurate returns the most recent point with id >= minID whose accuracy
// is within maxAccuracy. Returns nil when there is none.
func (r *TrackRepository) LastAccurate(ctx context.Context, minID int64, maxAccuracy float64) (*models.TrackPoint, error) {
	query := `SELECT ` + trackColumns + `
		FROM tracks
		WHERE id >= ? AND accuracy <= ?
		ORDER BY time DESC, id DESC
		LIMIT 1`

	p, err := scanTrack(r.db.QueryRowContext(ctx, query, minID, maxAccuracy))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last accurate track point: %w", err)
	}
	return p, nil
}

// CountBetween counts the points with startID <= id <= endID
func (r *TrackRepository) CountBetween(ctx context.Context, startID, endID int64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tracks WHERE id BETWEEN ? AND ?`, startID, endID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count track points: %w", err)
	}
	return n, nil
}

// DeleteBetween removes the points with startID <= id <= endID
func (r *TrackRepository) DeleteBetween(ctx context.Context, startID, endID int64) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM tracks WHERE id BETWEEN ? AND ?`, startID, endID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete track points: %w", err)
	}
	return result.RowsAffected()
}

func (r *TrackRepository) queryTracks(ctx context.Context, query string, args ...interface{}) ([]models.TrackPoint, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query track points: %w", err)
	}
	defer rows.Close()

	var points []models.TrackPoint
	for rows.Next() {
		p, err := scanTrack(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan track point: %w", err)
		}
		points = append(points, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate track points: %w", err)
	}

	return points, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTrack(row rowScanner) (*models.TrackPoint, error) {
	var p models.TrackPoint
	err := row.Scan(
		&p.ID, &p.Time, &p.Latitude, &p.Longitude, &p.Altitude,
		&p.Speed, &p.Accuracy, &p.VerticalAccuracy, &p.Heading,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
