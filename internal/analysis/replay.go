package analysis

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/jengzang/walkaround-go/internal/config"
	"github.com/jengzang/walkaround-go/internal/database"
	"github.com/jengzang/walkaround-go/internal/geocode"
	"github.com/jengzang/walkaround-go/internal/models"
	"github.com/jengzang/walkaround-go/internal/repository"
)

// Resolver resolves coordinates to a localized address, nil on failure
type Resolver interface {
	ResolveLocalized(ctx context.Context, lat, lng float64) *models.Address
}

// RebuildResult describes one replay run
type RebuildResult struct {
	SectionID   int64                  `json:"sectionId"`
	Skipped     bool                   `json:"skipped"`
	Reason      string                 `json:"reason,omitempty"`
	TrackPoints int                    `json:"trackPoints"`
	Resolutions int                    `json:"resolutions"`
	Breakpoints []models.AddressRecord `json:"breakpoints"`
}

// Segmenter regenerates a section's address breakpoints by replaying its
// stored track through the change detection policy.
type Segmenter struct {
	db       *sql.DB
	store    *repository.Store
	resolver Resolver
	settings config.SettingsSource
}

// NewSegmenter creates a Segmenter
func NewSegmenter(store *repository.Store, resolver Resolver, settings config.SettingsSource) *Segmenter {
	return &Segmenter{
		db:       store.DB(),
		store:    store,
		resolver: resolver,
		settings: settings,
	}
}

// Rebuild replaces every breakpoint of the section with ones derived from
// its track. The first point is always recorded; later points are checked
// once per debounce interval and recorded when the address key changes; the
// last point closes the sequence when its key is new. All lookups happen
// before the old breakpoints are replaced in a single transaction.
func (s *Segmenter) Rebuild(ctx context.Context, sectionID int64) (*RebuildResult, error) {
	section, err := s.store.Sections.GetByID(ctx, sectionID)
	if err != nil {
		return nil, err
	}

	result := &RebuildResult{SectionID: sectionID}
	if !section.HasTrackBounds() {
		log.Printf("[SectionReplay] section %d has no track bounds, skipping rebuild", sectionID)
		result.Skipped = true
		result.Reason = "section has no start or end track point"
		return result, nil
	}

	points, err := s.store.Tracks.Between(ctx, *section.TrackStartID, *section.TrackEndID)
	if err != nil {
		return nil, err
	}
	result.TrackPoints = len(points)

	records := s.segment(ctx, sectionID, points, result)

	err = database.Transaction(ctx, s.db, func(tx *sql.Tx) error {
		addresses := s.store.Addresses.WithTx(tx)
		if _, err := addresses.DeleteBySection(ctx, sectionID); err != nil {
			return err
		}
		for i := range records {
			if err := addresses.Insert(ctx, &records[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to replace address records: %w", err)
	}

	result.Breakpoints = records
	log.Printf("[SectionReplay] section %d rebuilt: %d points, %d lookups, %d breakpoints",
		sectionID, len(points), result.Resolutions, len(records))
	return result, nil
}

func (s *Segmenter) segment(ctx context.Context, sectionID int64, points []models.TrackPoint, result *RebuildResult) []models.AddressRecord {
	if len(points) == 0 {
		return nil
	}

	interval := s.settings.Settings(ctx).AddressCheckIntervalMs
	resolve := func(p models.TrackPoint) *models.Address {
		result.Resolutions++
		return s.resolver.ResolveLocalized(ctx, p.Latitude, p.Longitude)
	}
	record := func(p models.TrackPoint, addr *models.Address) models.AddressRecord {
		sid, tid := sectionID, p.ID
		return models.NewAddressRecord(addr, p.Time, &sid, &tid, p.Latitude, p.Longitude)
	}

	first := points[0]
	firstAddr := resolve(first)
	records := []models.AddressRecord{record(first, firstAddr)}
	lastKey := geocode.Key(firstAddr)
	lastProcessedTime := first.Time
	lastSavedID := first.ID

	for _, p := range points[1:] {
		if p.Time-lastProcessedTime < interval {
			continue
		}
		lastProcessedTime = p.Time

		addr := resolve(p)
		if addr == nil {
			continue
		}
		if key := geocode.Key(addr); key != lastKey {
			records = append(records, record(p, addr))
			lastKey = key
			lastSavedID = p.ID
		}
	}

	last := points[len(points)-1]
	if last.ID != lastSavedID {
		if addr := resolve(last); addr != nil && geocode.Key(addr) != lastKey {
			records = append(records, record(last, addr))
		}
	}

	return records
}
