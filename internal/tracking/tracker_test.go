package tracking

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jengzang/walkaround-go/internal/config"
	"github.com/jengzang/walkaround-go/internal/database"
	"github.com/jengzang/walkaround-go/internal/models"
	"github.com/jengzang/walkaround-go/internal/repository"
	"github.com/jengzang/walkaround-go/internal/spatial"
	"github.com/jengzang/walkaround-go/internal/timeutil"
)

const (
	waitFor = 5 * time.Second
	tick    = 10 * time.Millisecond
)

type trackerHarness struct {
	db        *sql.DB
	store     *repository.Store
	clock     *timeutil.MockClock
	resolver  *fakeResolver
	locations *PushLocationSource
	steps     *PushStepSource
	tracker   *Tracker
}

func newHarness(t *testing.T, resolver *fakeResolver, settings models.Settings) *trackerHarness {
	t.Helper()
	db := database.OpenTest(t)
	h := &trackerHarness{
		db:        db,
		store:     repository.NewStore(db),
		clock:     timeutil.NewMockClock(time.Unix(1700000000, 0)),
		resolver:  resolver,
		locations: NewPushLocationSource(64),
		steps:     NewPushStepSource(StepModeCounter, 64),
	}
	h.tracker = NewTracker(h.store, resolver, config.StaticSettings(settings), h.locations, h.steps,
		Options{Clock: h.clock})
	return h
}

func (h *trackerHarness) fix(m, accuracy float64) models.Fix {
	loc := north(m)
	return models.Fix{
		Time:      h.clock.Now().UnixMilli(),
		Latitude:  loc.Latitude,
		Longitude: loc.Longitude,
		Accuracy:  accuracy,
	}
}

func (h *trackerHarness) breakpoints(t *testing.T, sectionID int64) []models.AddressRecord {
	t.Helper()
	records, err := h.store.Addresses.BySection(context.Background(), sectionID)
	require.NoError(t, err)
	return records
}

func (h *trackerHarness) countRows(t *testing.T, table string) int {
	t.Helper()
	var n int
	require.NoError(t, h.db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

func TestTracker_WalkScenario(t *testing.T) {
	settings := models.DefaultSettings()
	h := newHarness(t, constantResolver(addressNamed("Omotesando")), settings)
	ctx := context.Background()

	st, err := h.tracker.Start(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateRecording, st.State)
	assert.NotEmpty(t, st.RunID)
	assert.True(t, st.StepsAvailable)
	assert.True(t, st.LocationAvailable)

	h.steps.Push(StepEvent{Value: 1000})
	for i := 0; i < 5; i++ {
		require.True(t, h.locations.Push(h.fix(float64(i)*10, 5)))
	}
	h.steps.Push(StepEvent{Value: 1020})
	h.steps.Push(StepEvent{Value: 1042})

	require.Eventually(t, func() bool {
		s := h.tracker.Status()
		return s.TrackPointCount == 5 && s.Steps == 42 && len(h.breakpoints(t, st.SectionID)) == 1
	}, waitFor, tick)

	h.clock.Advance(2 * time.Minute)
	summary, err := h.tracker.Stop(ctx)
	require.NoError(t, err)
	require.NotNil(t, summary)
	assert.Equal(t, StateIdle, h.tracker.Status().State)

	assert.Equal(t, 1, h.countRows(t, "sections"))
	assert.Len(t, h.breakpoints(t, st.SectionID), 1, "same address is recorded once")

	total, err := h.store.Steps.TotalForSection(ctx, st.SectionID)
	require.NoError(t, err)
	assert.Equal(t, 42, total)
	assert.Equal(t, 1, h.countRows(t, "step_segments"))

	section, err := h.store.Sections.GetByID(ctx, st.SectionID)
	require.NoError(t, err)
	require.True(t, section.HasTrackBounds())
	assert.Equal(t, int64(120), *section.DurationSeconds)

	points, err := h.store.Tracks.Between(ctx, *section.TrackStartID, *section.TrackEndID)
	require.NoError(t, err)
	require.Len(t, points, 5)

	smoothed := spatial.MedianSmooth(spatial.TrackLatLngs(points), settings.MedianWindowSize)
	var legs float64
	for i := 1; i < len(smoothed); i++ {
		legs += spatial.DistanceMeters(smoothed[i-1], smoothed[i])
	}
	require.NotNil(t, section.DistanceMeters)
	assert.InDelta(t, legs, *section.DistanceMeters, 1e-9)
	assert.Equal(t, summary.DistanceMeters, section.DistanceMeters)
	require.NotNil(t, section.AverageSpeedKmh)
	assert.InDelta(t, legs/1000/(120.0/3600), *section.AverageSpeedKmh, 1e-9)
}

func TestTracker_DistanceWithoutSmoothing(t *testing.T) {
	settings := models.DefaultSettings()
	settings.MedianWindowSize = 0
	h := newHarness(t, constantResolver(addressNamed("Omotesando")), settings)
	ctx := context.Background()

	st, err := h.tracker.Start(ctx)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		h.locations.Push(h.fix(float64(i)*10, 5))
	}
	require.Eventually(t, func() bool { return h.tracker.Status().TrackPointCount == 5 }, waitFor, tick)

	_, err = h.tracker.Stop(ctx)
	require.NoError(t, err)

	section, err := h.store.Sections.GetByID(ctx, st.SectionID)
	require.NoError(t, err)
	assert.InDelta(t, 40.0, *section.DistanceMeters, 0.1)
}

func TestTracker_InaccurateFixIsNeverInitial(t *testing.T) {
	resolver := constantResolver(addressNamed("Omotesando"))
	h := newHarness(t, resolver, models.DefaultSettings())
	ctx := context.Background()

	st, err := h.tracker.Start(ctx)
	require.NoError(t, err)

	h.locations.Push(h.fix(0, 50))
	require.Eventually(t, func() bool { return h.tracker.Status().TrackPointCount == 1 }, waitFor, tick)
	assert.Zero(t, resolver.calls.Load())
	assert.Zero(t, resolver.primes.Load())
	assert.Zero(t, h.countRows(t, "tracks"), "inaccurate fixes are not persisted")
	assert.Nil(t, h.tracker.Status().LastLocation)

	h.locations.Push(h.fix(30, 8))
	require.Eventually(t, func() bool { return len(h.breakpoints(t, st.SectionID)) == 1 }, waitFor, tick)
	assert.Equal(t, int32(1), resolver.primes.Load())

	records := h.breakpoints(t, st.SectionID)
	assert.InDelta(t, north(30).Latitude, records[0].Lat, 1e-12)

	_, err = h.tracker.Stop(ctx)
	require.NoError(t, err)

	section, err := h.store.Sections.GetByID(ctx, st.SectionID)
	require.NoError(t, err)
	assert.Equal(t, *records[0].TrackID, *section.TrackStartID)
	assert.Equal(t, 1, h.countRows(t, "tracks"))
}

func TestTracker_MovementOverride(t *testing.T) {
	resolver := &fakeResolver{fn: func(lat, lng float64) *models.Address {
		if (lat-35.0)*metersPerDegreeLat < 100 {
			return addressNamed("X")
		}
		return addressNamed("Y")
	}}
	h := newHarness(t, resolver, models.DefaultSettings())
	ctx := context.Background()

	st, err := h.tracker.Start(ctx)
	require.NoError(t, err)

	h.locations.Push(h.fix(0, 5))
	require.Eventually(t, func() bool { return len(h.breakpoints(t, st.SectionID)) == 1 }, waitFor, tick)

	h.locations.Push(h.fix(300, 5))
	h.locations.Push(h.fix(301, 5))
	require.Eventually(t, func() bool { return len(h.breakpoints(t, st.SectionID)) == 2 }, waitFor, tick)

	_, err = h.tracker.Stop(ctx)
	require.NoError(t, err)

	records := h.breakpoints(t, st.SectionID)
	require.Len(t, records, 2)
	assert.Equal(t, "X", records[0].Thoroughfare)
	assert.Equal(t, "Y", records[1].Thoroughfare)
}

func TestTracker_TimerTrigger(t *testing.T) {
	resolver := &fakeResolver{fn: func(lat, lng float64) *models.Address {
		if (lat-35.0)*metersPerDegreeLat < 10 {
			return addressNamed("X")
		}
		return addressNamed("Y")
	}}
	h := newHarness(t, resolver, models.DefaultSettings())
	ctx := context.Background()

	st, err := h.tracker.Start(ctx)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return h.clock.TickerCount() == 1 }, waitFor, tick)

	h.locations.Push(h.fix(0, 5))
	require.Eventually(t, func() bool { return len(h.breakpoints(t, st.SectionID)) == 1 }, waitFor, tick)

	// 20 m is below the movement override, so only the timer picks it up
	h.locations.Push(h.fix(20, 5))
	require.Eventually(t, func() bool { return h.tracker.Status().TrackPointCount == 2 }, waitFor, tick)
	assert.Len(t, h.breakpoints(t, st.SectionID), 1)

	require.Eventually(t, func() bool {
		h.clock.Advance(time.Minute)
		return len(h.breakpoints(t, st.SectionID)) == 2
	}, waitFor, tick)

	_, err = h.tracker.Stop(ctx)
	require.NoError(t, err)
	assert.Len(t, h.breakpoints(t, st.SectionID), 2)
}

func TestTracker_StartStopIdempotent(t *testing.T) {
	h := newHarness(t, constantResolver(addressNamed("Omotesando")), models.DefaultSettings())
	ctx := context.Background()

	summary, err := h.tracker.Stop(ctx)
	assert.NoError(t, err)
	assert.Nil(t, summary, "stop while idle is a no-op")

	first, err := h.tracker.Start(ctx)
	require.NoError(t, err)
	second, err := h.tracker.Start(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.RunID, second.RunID)
	assert.Equal(t, 1, h.countRows(t, "sections"))

	_, err = h.tracker.Stop(ctx)
	require.NoError(t, err)
	summary, err = h.tracker.Stop(ctx)
	assert.NoError(t, err)
	assert.Nil(t, summary)

	third, err := h.tracker.Start(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, first.RunID, third.RunID)
	assert.NotEqual(t, first.SectionID, third.SectionID)
	_, err = h.tracker.Stop(ctx)
	require.NoError(t, err)
}

func TestTracker_StopWithoutAccurateFixesClosesSection(t *testing.T) {
	h := newHarness(t, constantResolver(addressNamed("Omotesando")), models.DefaultSettings())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := h.tracker.Start(ctx)
		require.NoError(t, err)

		h.locations.Push(h.fix(float64(i*10), 500))
		require.Eventually(t, func() bool { return h.tracker.Status().TrackPointCount == 1 }, waitFor, tick)

		h.clock.Advance(40 * time.Second)
		summary, err := h.tracker.Stop(ctx)
		require.NoError(t, err)
		assert.Nil(t, summary.TrackEndID)
	}

	sections, err := h.store.Sections.List(ctx)
	require.NoError(t, err)
	require.Len(t, sections, 2)
	for _, s := range sections {
		assert.False(t, s.IsOpen(), "section %d stays open", s.ID)
		assert.False(t, s.HasTrackBounds())
		require.NotNil(t, s.DurationSeconds)
		assert.Equal(t, int64(40), *s.DurationSeconds)
		assert.Equal(t, s.CreatedAt+40_000, *s.EndedAt)
	}
	assert.Zero(t, h.countRows(t, "tracks"))
}

func TestTracker_StepsUnavailable(t *testing.T) {
	db := database.OpenTest(t)
	store := repository.NewStore(db)
	locations := NewPushLocationSource(8)
	tr := NewTracker(store, constantResolver(addressNamed("Omotesando")),
		config.StaticSettings(models.DefaultSettings()), locations, NewPushStepSource(StepModeUnavailable, 1), Options{})

	st, err := tr.Start(context.Background())
	require.NoError(t, err)
	assert.False(t, st.StepsAvailable)
	assert.True(t, st.LocationAvailable)

	summary, err := tr.Stop(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.Steps)
	assert.Nil(t, summary.TrackEndID)
}

// failingStore fails to write step segments
type failingStore struct {
	*repository.Store
}

func (s failingStore) InsertStepSegment(ctx context.Context, seg *models.StepSegment) error {
	return errors.New("step table locked")
}

func TestTracker_StopSurvivesPersistenceFailure(t *testing.T) {
	db := database.OpenTest(t)
	store := failingStore{repository.NewStore(db)}
	locations := NewPushLocationSource(8)
	tr := NewTracker(store, constantResolver(addressNamed("Omotesando")),
		config.StaticSettings(models.DefaultSettings()), locations, nil, Options{})
	ctx := context.Background()

	st, err := tr.Start(ctx)
	require.NoError(t, err)
	locations.Push(models.Fix{Latitude: 35, Longitude: 139, Accuracy: 3})
	require.Eventually(t, func() bool { return tr.Status().TrackPointCount == 1 }, waitFor, tick)

	summary, err := tr.Stop(ctx)
	assert.Error(t, err)
	require.NotNil(t, summary)
	assert.Equal(t, StateIdle, tr.Status().State)

	section, err := store.Sections.GetByID(ctx, st.SectionID)
	require.NoError(t, err)
	assert.NotNil(t, section.TrackEndID, "section is still closed")

	_, err = tr.Start(ctx)
	require.NoError(t, err, "tracker can record again")
	_, _ = tr.Stop(ctx)
}

func TestTracker_LastAccurate(t *testing.T) {
	h := newHarness(t, constantResolver(addressNamed("Omotesando")), models.DefaultSettings())
	ctx := context.Background()

	_, ok := h.tracker.LastAccurate()
	assert.False(t, ok)

	_, err := h.tracker.Start(ctx)
	require.NoError(t, err)
	h.locations.Push(h.fix(5, 4))
	require.Eventually(t, func() bool {
		_, ok := h.tracker.LastAccurate()
		return ok
	}, waitFor, tick)

	obs, _ := h.tracker.LastAccurate()
	assert.InDelta(t, north(5).Latitude, obs.Location.Latitude, 1e-12)
	require.NotNil(t, obs.TrackID)

	_, err = h.tracker.Stop(ctx)
	require.NoError(t, err)
	_, ok = h.tracker.LastAccurate()
	assert.False(t, ok)
}
