package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jengzang/walkaround-go/internal/analysis"
	"github.com/jengzang/walkaround-go/internal/config"
	"github.com/jengzang/walkaround-go/internal/database"
	"github.com/jengzang/walkaround-go/internal/geocode"
	"github.com/jengzang/walkaround-go/internal/models"
	"github.com/jengzang/walkaround-go/internal/monitoring"
	"github.com/jengzang/walkaround-go/internal/repository"
	"github.com/jengzang/walkaround-go/internal/spatial"
	"github.com/jengzang/walkaround-go/internal/tracking"
)

var sectionLog = monitoring.Component("SectionService")

// ErrSectionRecording is returned when an operation needs a closed section
var ErrSectionRecording = errors.New("section is still recording")

// Resolver resolves coordinates to a localized address
type Resolver interface {
	ResolveLocalized(ctx context.Context, lat, lng float64) *models.Address
}

// SessionStatus reports the tracker state
type SessionStatus interface {
	Status() tracking.Status
}

// SectionService handles business logic for recorded sections
type SectionService struct {
	store     *repository.Store
	resolver  Resolver
	settings  config.SettingsSource
	segmenter *analysis.Segmenter
	session   SessionStatus
}

// NewSectionService creates a new section service. session may be nil.
func NewSectionService(store *repository.Store, resolver Resolver, settings config.SettingsSource, segmenter *analysis.Segmenter, session SessionStatus) *SectionService {
	return &SectionService{
		store:     store,
		resolver:  resolver,
		settings:  settings,
		segmenter: segmenter,
		session:   session,
	}
}

// recording returns the open section of the running session, if any
func (s *SectionService) recording() (int64, bool) {
	if s.session == nil {
		return 0, false
	}
	st := s.session.Status()
	if st.State != tracking.StateRecording {
		return 0, false
	}
	return st.SectionID, true
}

// PrepareTrack loads the accurate points of a section, makes sure its first
// and last points carry a breakpoint and returns the smoothed track. The
// total distance is stored when the section has none yet.
func (s *SectionService) PrepareTrack(ctx context.Context, sectionID int64) (*models.SectionTrack, error) {
	section, err := s.store.Sections.GetByID(ctx, sectionID)
	if err != nil {
		return nil, err
	}

	result := &models.SectionTrack{
		SectionID:      section.ID,
		Points:         []models.LatLng{},
		DistanceMeters: section.DistanceMeters,
	}
	if !section.HasTrackBounds() {
		result.Breakpoints, err = s.store.Addresses.BySection(ctx, section.ID)
		if err != nil {
			return nil, err
		}
		return result, nil
	}

	settings := s.settings.Settings(ctx)
	points, err := s.store.Tracks.AccurateBetween(ctx, *section.TrackStartID, *section.TrackEndID, settings.AccuracyLimitMeters)
	if err != nil {
		return nil, fmt.Errorf("failed to load section track: %w", err)
	}

	if result.StoredPoints, err = s.store.Tracks.CountBetween(ctx, *section.TrackStartID, *section.TrackEndID); err != nil {
		return nil, fmt.Errorf("failed to count section track: %w", err)
	}

	breakpoints, err := s.store.Addresses.BySection(ctx, section.ID)
	if err != nil {
		return nil, err
	}

	if len(points) > 0 {
		ends := []models.TrackPoint{points[0]}
		if len(points) > 1 {
			ends = append(ends, points[len(points)-1])
		}
		for i, p := range ends {
			added, err := s.ensureBreakpoint(ctx, section.ID, p, breakpoints, i == 0)
			if err != nil {
				return nil, err
			}
			if added {
				if breakpoints, err = s.store.Addresses.BySection(ctx, section.ID); err != nil {
					return nil, err
				}
			}
		}

		result.Points = spatial.MedianSmooth(spatial.TrackLatLngs(points), settings.MedianWindowSize)
		if section.DistanceMeters == nil || *section.DistanceMeters == 0 {
			distance := spatial.PathLength(result.Points)
			if err := s.store.Sections.UpdateDistance(ctx, section.ID, distance); err != nil {
				return nil, err
			}
			result.DistanceMeters = &distance
		}
	}

	result.Breakpoints = breakpoints
	return result, nil
}

// ensureBreakpoint resolves and stores a breakpoint for p unless one already
// references it. A resolution with the same key as its neighbour is not
// stored, so consecutive breakpoints never repeat a key.
func (s *SectionService) ensureBreakpoint(ctx context.Context, sectionID int64, p models.TrackPoint, existing []models.AddressRecord, isStart bool) (bool, error) {
	exists, err := s.store.Addresses.ExistsForTrack(ctx, sectionID, p.ID)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	addr := s.resolver.ResolveLocalized(ctx, p.Latitude, p.Longitude)
	if addr == nil {
		return false, nil
	}

	if len(existing) > 0 {
		neighbour := existing[len(existing)-1]
		if isStart {
			neighbour = existing[0]
		}
		if geocode.RecordKey(&neighbour) == geocode.Key(addr) {
			return false, nil
		}
	}

	trackID := p.ID
	rec := models.NewAddressRecord(addr, p.Time, &sectionID, &trackID, p.Latitude, p.Longitude)
	if err := s.store.Addresses.Insert(ctx, &rec); err != nil {
		return false, err
	}
	sectionLog.Printf("added missing breakpoint for section %d at track %d", sectionID, p.ID)
	return true, nil
}

// ListSections returns all sections newest first with their step totals and
// display breakpoints
func (s *SectionService) ListSections(ctx context.Context) ([]models.SectionGroup, error) {
	sections, err := s.store.Sections.List(ctx)
	if err != nil {
		return nil, err
	}

	groups := make([]models.SectionGroup, 0, len(sections))
	for _, section := range sections {
		steps, err := s.store.Steps.TotalForSection(ctx, section.ID)
		if err != nil {
			return nil, err
		}
		records, err := s.store.Addresses.BySection(ctx, section.ID)
		if err != nil {
			return nil, err
		}
		groups = append(groups, models.SectionGroup{
			SectionID:      section.ID,
			CreatedAt:      section.CreatedAt,
			DistanceMeters: section.DistanceMeters,
			Steps:          steps,
			Addresses:      analysis.FilterRepeated(records),
		})
	}
	return groups, nil
}

// Summaries returns the per-section summary rows
func (s *SectionService) Summaries(ctx context.Context) ([]models.SectionSummary, error) {
	return s.store.Sections.Summaries(ctx)
}

// DeleteSection removes a section with its track points. Breakpoints and
// step segments go with it.
func (s *SectionService) DeleteSection(ctx context.Context, sectionID int64) error {
	if open, ok := s.recording(); ok && open == sectionID {
		return fmt.Errorf("%w: %d", ErrSectionRecording, sectionID)
	}

	section, err := s.store.Sections.GetByID(ctx, sectionID)
	if err != nil {
		return err
	}

	err = database.Transaction(ctx, s.store.DB(), func(tx *sql.Tx) error {
		if section.HasTrackBounds() {
			n, err := s.store.Tracks.WithTx(tx).DeleteBetween(ctx, *section.TrackStartID, *section.TrackEndID)
			if err != nil {
				return err
			}
			sectionLog.Printf("deleting section %d with %d track points", sectionID, n)
		}
		return s.store.Sections.WithTx(tx).Delete(ctx, sectionID)
	})
	if err != nil {
		return fmt.Errorf("failed to delete section %d: %w", sectionID, err)
	}
	return nil
}

// Rebuild regenerates the breakpoints of a closed section from its track
func (s *SectionService) Rebuild(ctx context.Context, sectionID int64) (*analysis.RebuildResult, error) {
	if open, ok := s.recording(); ok && open == sectionID {
		return nil, fmt.Errorf("%w: %d", ErrSectionRecording, sectionID)
	}
	return s.segmenter.Rebuild(ctx, sectionID)
}

// StepsToday is the step count of the local day
type StepsToday struct {
	Since  int64 `json:"since"` // Unix milliseconds
	Stored int   `json:"stored"`
	Live   int   `json:"live"`
	Total  int   `json:"total"`
}

// TodaySteps sums the stored step segments of sections created since the
// start of now's day, plus the running session when it started today.
func (s *SectionService) TodaySteps(ctx context.Context, now time.Time) (*StepsToday, error) {
	y, m, d := now.Date()
	since := time.Date(y, m, d, 0, 0, 0, 0, now.Location()).UnixMilli()

	stored, err := s.store.Steps.TotalSince(ctx, since)
	if err != nil {
		return nil, err
	}

	result := &StepsToday{Since: since, Stored: stored}
	if s.session != nil {
		if st := s.session.Status(); st.State == tracking.StateRecording && st.StartedAt >= since {
			result.Live = st.Steps
		}
	}
	result.Total = result.Stored + result.Live
	return result, nil
}
