package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jengzang/walkaround-go/internal/models"
)

// AddressRepository handles database operations for address breakpoints
type AddressRepository struct {
	db dbtx
}

// NewAddressRepository creates a new address repository
func NewAddressRepository(db *sql.DB) *AddressRepository {
	return &AddressRepository{db: db}
}

// WithTx returns a repository bound to tx
func (r *AddressRepository) WithTx(tx *sql.Tx) *AddressRepository {
	return &AddressRepository{db: tx}
}

const addressColumns = `id, time, section_id, track_id, lat, lng, name, address_line, admin_area,
	country_name, locality, sub_locality, thoroughfare, sub_thoroughfare, postal_code`

// Insert persists an address breakpoint and assigns its ID
func (r *AddressRepository) Insert(ctx context.Context, rec *models.AddressRecord) error {
	query := `
		INSERT INTO address_records (
			time, section_id, track_id, lat, lng, name, address_line, admin_area,
			country_name, locality, sub_locality, thoroughfare, sub_thoroughfare, postal_code
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		rec.Time,
		rec.SectionID,
		rec.TrackID,
		rec.Lat,
		rec.Lng,
		nullString(rec.Name),
		nullString(rec.AddressLine),
		nullString(rec.AdminArea),
		nullString(rec.CountryName),
		nullString(rec.Locality),
		nullString(rec.SubLocality),
		nullString(rec.Thoroughfare),
		nullString(rec.SubThoroughfare),
		nullString(rec.PostalCode),
	)
	if err != nil {
		return fmt.Errorf("failed to insert address record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	rec.ID = id
	return nil
}

// BySection returns a section's breakpoints in time order
func (r *AddressRepository) BySection(ctx context.Context, sectionID int64) ([]models.AddressRecord, error) {
	query := `SELECT ` + addressColumns + `
		FROM address_records
		WHERE section_id = ?
		ORDER BY time ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, sectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query address records: %w", err)
	}
	defer rows.Close()

	var records []models.AddressRecord
	for rows.Next() {
		rec, err := scanAddress(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan address record: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate address records: %w", err)
	}
	return records, nil
}

// ExistsForTrack reports whether a breakpoint of the section references trackID
func (r *AddressRepository) ExistsForTrack(ctx context.Context, sectionID, trackID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM address_records WHERE section_id = ? AND track_id = ?)`,
		sectionID, trackID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check address record: %w", err)
	}
	return exists, nil
}

// DeleteBySection removes every breakpoint of a section
func (r *AddressRepository) DeleteBySection(ctx context.Context, sectionID int64) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM address_records WHERE section_id = ?`, sectionID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete address records: %w", err)
	}
	return result.RowsAffected()
}

func scanAddress(row rowScanner) (*models.AddressRecord, error) {
	var (
		rec                                               models.AddressRecord
		name, line, admin, country, locality, subLocality sql.NullString
		thoroughfare, subThoroughfare, postal             sql.NullString
	)
	err := row.Scan(
		&rec.ID, &rec.Time, &rec.SectionID, &rec.TrackID, &rec.Lat, &rec.Lng,
		&name, &line, &admin, &country, &locality, &subLocality,
		&thoroughfare, &subThoroughfare, &postal,
	)
	if err != nil {
		return nil, err
	}
	rec.Name = name.String
	rec.AddressLine = line.String
	rec.AdminArea = admin.String
	rec.CountryName = country.String
	rec.Locality = locality.String
	rec.SubLocality = subLocality.String
	rec.Thoroughfare = thoroughfare.String
	rec.SubThoroughfare = subThoroughfare.String
	rec.PostalCode = postal.String
	return &rec, nil
}
