package tracking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jengzang/walkaround-go/internal/config"
	"github.com/jengzang/walkaround-go/internal/models"
	"github.com/jengzang/walkaround-go/internal/monitoring"
	"github.com/jengzang/walkaround-go/internal/spatial"
	"github.com/jengzang/walkaround-go/internal/timeutil"
)

var trackerLog = monitoring.Component("SessionTracker")

// Store is the persistence the tracker writes through
type Store interface {
	BreakpointStore
	CreateSection(ctx context.Context, createdAt int64) (*models.Section, error)
	InsertTrackPoint(ctx context.Context, p *models.TrackPoint) error
	SetStartTrackIfUnset(ctx context.Context, sectionID, trackID int64) (bool, error)
	InsertStepSegment(ctx context.Context, seg *models.StepSegment) error
	AccurateTrack(ctx context.Context, startID, endID int64, maxAccuracy float64) ([]models.TrackPoint, error)
	FinalizeSection(ctx context.Context, section *models.Section) error
}

// State of the tracker
type State string

const (
	StateIdle      State = "idle"
	StateRecording State = "recording"
)

// Status is a snapshot of the tracker for display
type Status struct {
	State             State                 `json:"state"`
	Stopping          bool                  `json:"stopping"`
	RunID             string                `json:"runId,omitempty"`
	SectionID         int64                 `json:"sectionId,omitempty"`
	StartedAt         int64                 `json:"startedAt,omitempty"` // Unix milliseconds
	Steps             int                   `json:"steps"`
	TrackPointCount   int                   `json:"trackPointCount"`
	LocationAvailable bool                  `json:"locationAvailable"`
	StepsAvailable    bool                  `json:"stepsAvailable"`
	LastLocation      *models.LatLng        `json:"lastLocation,omitempty"`
	LastAddress       *models.AddressRecord `json:"lastAddress,omitempty"`
}

// Summary describes a stopped session
type Summary struct {
	RunID           string   `json:"runId"`
	SectionID       int64    `json:"sectionId"`
	Steps           int      `json:"steps"`
	DurationSeconds int64    `json:"durationSeconds"`
	DistanceMeters  *float64 `json:"distanceMeters,omitempty"`
	TrackEndID      *int64   `json:"trackEndId,omitempty"`
}

// Options tune a Tracker
type Options struct {
	Clock        timeutil.Clock
	OnBreakpoint func(rec models.AddressRecord, initial bool)
}

// Tracker owns the single recording session: it consumes location and step
// streams, persists accurate fixes and drives the address change detector.
type Tracker struct {
	store     Store
	resolver  AddressResolver
	settings  config.SettingsSource
	locations LocationSource
	steps     StepSource
	clock     timeutil.Clock

	onBreakpoint func(rec models.AddressRecord, initial bool)

	mu       sync.Mutex
	session  *session
	stopping bool
}

type session struct {
	runID     string
	section   *models.Section
	startedAt time.Time
	detector  *Detector

	// ctx outlives the stream loops so in-flight work can finish after stop
	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group
	work   sync.WaitGroup

	locationAvailable bool
	stepsAvailable    bool

	// set once the initial evaluation has run; later triggers wait for it
	initialDone atomic.Bool

	mu              sync.Mutex
	counter         *stepCounter
	steps           int
	trackPointCount int
	startTrackID    *int64
	lastTrackID     *int64
	lastAccurate    *Observation
	startSeen       bool
}

func (s *session) latestObservation() (Observation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastAccurate == nil {
		return Observation{}, false
	}
	return *s.lastAccurate, true
}

// NewTracker creates an idle tracker. steps may be nil when the host has no step sensor.
func NewTracker(store Store, resolver AddressResolver, settings config.SettingsSource, locations LocationSource, steps StepSource, opts Options) *Tracker {
	clock := opts.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Tracker{
		store:        store,
		resolver:     resolver,
		settings:     settings,
		locations:    locations,
		steps:        steps,
		clock:        clock,
		onBreakpoint: opts.OnBreakpoint,
	}
}

// Start opens a new section and begins consuming the input streams.
// It is a no-op while a session is recording.
func (t *Tracker) Start(ctx context.Context) (Status, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.session != nil {
		return t.statusLocked(), nil
	}

	base := context.WithoutCancel(ctx)
	startedAt := t.clock.Now()

	section, err := t.store.CreateSection(base, startedAt.UnixMilli())
	if err != nil {
		return Status{State: StateIdle}, fmt.Errorf("failed to open section: %w", err)
	}

	s := &session{
		runID:     uuid.NewString(),
		section:   section,
		startedAt: startedAt,
		ctx:       base,
		counter:   newStepCounter(StepModeUnavailable),
	}
	s.detector = NewDetector(section.ID, t.resolver, t.store, t.settings, t.clock)
	s.detector.OnBreakpoint = t.onBreakpoint

	loopCtx, cancel := context.WithCancel(base)
	s.cancel = cancel
	g, gctx := errgroup.WithContext(loopCtx)
	s.group = g

	if fixes, err := t.subscribeLocations(gctx); err == nil {
		s.locationAvailable = true
		g.Go(func() error { return t.runLocations(gctx, s, fixes) })
	}
	if events, mode, err := t.subscribeSteps(gctx); err == nil {
		s.stepsAvailable = true
		s.counter = newStepCounter(mode)
		g.Go(func() error { return t.runSteps(gctx, s, events) })
	}
	g.Go(func() error { return t.runAddressTimer(gctx, s) })

	t.session = s
	trackerLog.Printf("started run %s section %d (location=%v steps=%v)",
		s.runID, section.ID, s.locationAvailable, s.stepsAvailable)
	return t.statusLocked(), nil
}

func (t *Tracker) subscribeLocations(ctx context.Context) (<-chan models.Fix, error) {
	if t.locations == nil {
		return nil, ErrSourceUnavailable
	}
	fixes, err := t.locations.Locations(ctx)
	if err != nil {
		trackerLog.Printf("location source unavailable: %v", err)
		return nil, err
	}
	return fixes, nil
}

func (t *Tracker) subscribeSteps(ctx context.Context) (<-chan StepEvent, StepMode, error) {
	if t.steps == nil || t.steps.Mode() == StepModeUnavailable {
		return nil, StepModeUnavailable, ErrSourceUnavailable
	}
	events, err := t.steps.Steps(ctx)
	if err != nil {
		trackerLog.Printf("step source unavailable: %v", err)
		return nil, StepModeUnavailable, err
	}
	return events, t.steps.Mode(), nil
}

// Stop ends the session and persists its closing records. It is a no-op
// when idle. Persistence failures are logged and returned joined, but the
// tracker is always idle afterwards.
func (t *Tracker) Stop(ctx context.Context) (*Summary, error) {
	t.mu.Lock()
	s := t.session
	if s == nil || t.stopping {
		t.mu.Unlock()
		return nil, nil
	}
	t.stopping = true
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		t.session = nil
		t.stopping = false
		t.mu.Unlock()
	}()

	s.cancel()
	_ = s.group.Wait()
	s.detector.Close()

	summary, err := t.finish(s, t.clock.Now())
	s.work.Wait()

	if err != nil {
		trackerLog.Printf("run %s stopped with errors: %v", s.runID, err)
	} else {
		trackerLog.Printf("run %s stopped: section %d steps=%d", s.runID, s.section.ID, summary.Steps)
	}
	return summary, err
}

func (t *Tracker) finish(s *session, end time.Time) (*Summary, error) {
	ctx := s.ctx
	settings := t.settings.Settings(ctx)
	var errs []error

	s.mu.Lock()
	steps := s.steps
	startTrackID := s.startTrackID
	lastTrackID := s.lastTrackID
	last := s.lastAccurate
	s.mu.Unlock()

	if last != nil {
		if outcome := s.detector.Final(ctx, *last); outcome == OutcomeFailed {
			errs = append(errs, errors.New("failed to save final address record"))
		}
	}

	seg := &models.StepSegment{
		SectionID: s.section.ID,
		Steps:     steps,
		StartTime: s.startedAt.UnixMilli(),
		EndTime:   end.UnixMilli(),
	}
	if err := t.store.InsertStepSegment(ctx, seg); err != nil {
		errs = append(errs, err)
	}

	duration := int64(end.Sub(s.startedAt) / time.Second)
	endedAt := end.UnixMilli()
	section := *s.section
	section.TrackStartID = startTrackID
	section.TrackEndID = lastTrackID
	section.DurationSeconds = &duration
	section.EndedAt = &endedAt

	if startTrackID != nil && lastTrackID != nil {
		points, err := t.store.AccurateTrack(ctx, *startTrackID, *lastTrackID, settings.AccuracyLimitMeters)
		if err != nil {
			errs = append(errs, err)
		} else {
			smoothed := spatial.MedianSmooth(spatial.TrackLatLngs(points), settings.MedianWindowSize)
			distance := spatial.PathLength(smoothed)
			section.DistanceMeters = &distance
			if duration > 0 {
				speed := (distance / 1000) / (float64(duration) / 3600)
				section.AverageSpeedKmh = &speed
			}
		}
	}

	if err := t.store.FinalizeSection(ctx, &section); err != nil {
		errs = append(errs, err)
	}

	return &Summary{
		RunID:           s.runID,
		SectionID:       section.ID,
		Steps:           steps,
		DurationSeconds: duration,
		DistanceMeters:  section.DistanceMeters,
		TrackEndID:      section.TrackEndID,
	}, errors.Join(errs...)
}

// Status returns a snapshot of the tracker
func (t *Tracker) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.statusLocked()
}

func (t *Tracker) statusLocked() Status {
	s := t.session
	if s == nil {
		return Status{State: StateIdle}
	}

	st := Status{
		State:             StateRecording,
		Stopping:          t.stopping,
		RunID:             s.runID,
		SectionID:         s.section.ID,
		StartedAt:         s.startedAt.UnixMilli(),
		LocationAvailable: s.locationAvailable,
		StepsAvailable:    s.stepsAvailable,
		LastAddress:       s.detector.LatestBreakpoint(),
	}

	s.mu.Lock()
	st.Steps = s.steps
	st.TrackPointCount = s.trackPointCount
	if s.lastAccurate != nil {
		loc := s.lastAccurate.Location
		st.LastLocation = &loc
	}
	s.mu.Unlock()
	return st
}

// LastAccurate returns the latest accurate observation of the recording session
func (t *Tracker) LastAccurate() (Observation, bool) {
	t.mu.Lock()
	s := t.session
	t.mu.Unlock()
	if s == nil {
		return Observation{}, false
	}
	return s.latestObservation()
}

// dispatch runs fn off the stream loop with the session's detached context
func (t *Tracker) dispatch(s *session, fn func(ctx context.Context)) {
	s.work.Add(1)
	go func() {
		defer s.work.Done()
		fn(s.ctx)
	}()
}

func (t *Tracker) runLocations(ctx context.Context, s *session, fixes <-chan models.Fix) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case fix, ok := <-fixes:
			if !ok {
				return nil
			}
			t.handleFix(s, fix)
		}
	}
}

func (t *Tracker) handleFix(s *session, fix models.Fix) {
	settings := t.settings.Settings(s.ctx)

	s.mu.Lock()
	s.trackPointCount++
	s.mu.Unlock()

	if fix.Accuracy > settings.AccuracyLimitMeters {
		return
	}

	ts := fix.Time
	if ts <= 0 {
		ts = t.clock.Now().UnixMilli()
	}
	point := fix.TrackPoint(ts)

	var trackID *int64
	if err := t.store.InsertTrackPoint(s.ctx, &point); err != nil {
		trackerLog.Printf("failed to save track point: %v", err)
	} else {
		id := point.ID
		trackID = &id
		t.markStartTrack(s, id)
	}

	obs := Observation{Location: fix.LatLng(), TrackID: trackID}

	s.mu.Lock()
	s.lastAccurate = &obs
	if trackID != nil {
		s.lastTrackID = trackID
	}
	initial := !s.startSeen
	s.startSeen = true
	s.mu.Unlock()

	if initial {
		t.dispatch(s, func(ctx context.Context) {
			t.resolver.PrimeLocaleCache(ctx, obs.Location.Latitude, obs.Location.Longitude)
			s.detector.Observe(ctx, obs, true)
			s.initialDone.Store(true)
		})
		return
	}

	if s.initialDone.Load() && s.detector.DistanceFromProcessed(obs.Location) >= settings.MovementOverrideMeters {
		t.dispatch(s, func(ctx context.Context) {
			s.detector.Observe(ctx, obs, false)
		})
	}
}

func (t *Tracker) markStartTrack(s *session, trackID int64) {
	s.mu.Lock()
	known := s.startTrackID != nil
	s.mu.Unlock()
	if known {
		return
	}

	if _, err := t.store.SetStartTrackIfUnset(s.ctx, s.section.ID, trackID); err != nil {
		trackerLog.Printf("failed to set section start track: %v", err)
		return
	}
	s.mu.Lock()
	s.startTrackID = &trackID
	s.mu.Unlock()
}

func (t *Tracker) runSteps(ctx context.Context, s *session, events <-chan StepEvent) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			s.mu.Lock()
			s.steps = s.counter.observe(ev.Value)
			s.mu.Unlock()
		}
	}
}

func (t *Tracker) runAddressTimer(ctx context.Context, s *session) error {
	interval := t.settings.Settings(ctx).AddressCheckInterval()
	ticker := t.clock.NewTicker(interval)
	defer func() { ticker.Stop() }()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C():
			if obs, ok := s.latestObservation(); ok && s.initialDone.Load() {
				t.dispatch(s, func(ctx context.Context) {
					s.detector.Observe(ctx, obs, false)
				})
			}
			if next := t.settings.Settings(ctx).AddressCheckInterval(); next > 0 && next != interval {
				ticker.Stop()
				interval = next
				ticker = t.clock.NewTicker(interval)
			}
		}
	}
}
