package tracking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jengzang/walkaround-go/internal/config"
	"github.com/jengzang/walkaround-go/internal/geocode"
	"github.com/jengzang/walkaround-go/internal/models"
	"github.com/jengzang/walkaround-go/internal/timeutil"
)

func newTestDetector(resolver AddressResolver, store BreakpointStore) (*Detector, *timeutil.MockClock) {
	clock := timeutil.NewMockClock(time.Unix(1700000000, 0))
	settings := config.StaticSettings(models.DefaultSettings())
	return NewDetector(7, resolver, store, settings, clock), clock
}

func obsAt(m float64, trackID int64) Observation {
	return Observation{Location: north(m), TrackID: &trackID}
}

func TestDetector_SameAddressRecordsOnce(t *testing.T) {
	store := &memBreakpoints{}
	resolver := constantResolver(addressNamed("Omotesando"))
	d, _ := newTestDetector(resolver, store)
	ctx := context.Background()

	const n = 20
	for i := 0; i < n; i++ {
		d.Observe(ctx, obsAt(float64(i)*10, int64(i+1)), i == 0)
	}

	records := store.all()
	require.Len(t, records, 1)
	assert.Equal(t, int64(1), *records[0].TrackID)
	assert.Equal(t, int64(7), *records[0].SectionID)
	assert.Equal(t, int32(n), resolver.calls.Load(), "each moved location is resolved")
}

func TestDetector_AlternatingAddresses(t *testing.T) {
	store := &memBreakpoints{}
	resolver := &fakeResolver{fn: func(lat, lng float64) *models.Address {
		// bands of 100 m alternate between two streets
		band := int((lat - 35.0) * metersPerDegreeLat / 100)
		if band%2 == 0 {
			return addressNamed("X")
		}
		return addressNamed("Y")
	}}
	d, clock := newTestDetector(resolver, store)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		d.Observe(ctx, obsAt(float64(i)*100+50, int64(i+1)), false)
		clock.Advance(time.Minute)
	}

	records := store.all()
	require.Len(t, records, 4)
	var keys []string
	for i := range records {
		keys = append(keys, geocode.RecordKey(&records[i]))
	}
	assert.Equal(t, []string{"ShibuyaX", "ShibuyaY", "ShibuyaX", "ShibuyaY"}, keys)
	for i := 1; i < len(records); i++ {
		assert.Equal(t, records[i-1].Time+int64(time.Minute/time.Millisecond), records[i].Time)
	}
}

func TestDetector_StationarySkip(t *testing.T) {
	store := &memBreakpoints{}
	resolver := constantResolver(addressNamed("Omotesando"))
	d, _ := newTestDetector(resolver, store)
	ctx := context.Background()

	assert.Equal(t, OutcomeRecorded, d.Observe(ctx, obsAt(0, 1), true))
	assert.Equal(t, OutcomeSkipped, d.Observe(ctx, obsAt(2, 2), false))
	assert.Equal(t, int32(1), resolver.calls.Load())

	// the initial flag bypasses the skip and always records
	assert.Equal(t, OutcomeRecorded, d.Observe(ctx, obsAt(2, 3), true))
	assert.Len(t, store.all(), 2)
}

func TestDetector_UnresolvedLeavesState(t *testing.T) {
	store := &memBreakpoints{}
	var fail bool
	resolver := &fakeResolver{fn: func(float64, float64) *models.Address {
		if fail {
			return nil
		}
		return addressNamed("Omotesando")
	}}
	d, _ := newTestDetector(resolver, store)
	ctx := context.Background()

	fail = true
	assert.Equal(t, OutcomeUnresolved, d.Observe(ctx, obsAt(0, 1), true))
	_, ok := d.LastProcessed()
	assert.False(t, ok)
	assert.Empty(t, store.all())

	// the retry is not skipped even though the location did not move
	fail = false
	assert.Equal(t, OutcomeRecorded, d.Observe(ctx, obsAt(0, 1), false))
	loc, ok := d.LastProcessed()
	require.True(t, ok)
	assert.Equal(t, north(0), loc)
}

func TestDetector_StoreFailureRetries(t *testing.T) {
	store := &memBreakpoints{}
	d, _ := newTestDetector(constantResolver(addressNamed("Omotesando")), store)
	ctx := context.Background()

	store.setErr(errors.New("disk full"))
	assert.Equal(t, OutcomeFailed, d.Observe(ctx, obsAt(0, 1), true))

	store.setErr(nil)
	assert.Equal(t, OutcomeRecorded, d.Observe(ctx, obsAt(10, 2), false))
	assert.Len(t, store.all(), 1)
}

// blockingResolver blocks every call until release is closed
type blockingResolver struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newBlockingResolver() *blockingResolver {
	return &blockingResolver{entered: make(chan struct{}), release: make(chan struct{})}
}

func (r *blockingResolver) ResolveLocalized(ctx context.Context, lat, lng float64) *models.Address {
	r.once.Do(func() { close(r.entered) })
	<-r.release
	return addressNamed("Omotesando")
}

func (r *blockingResolver) PrimeLocaleCache(ctx context.Context, lat, lng float64) {}

func TestDetector_DropsWhileBusy(t *testing.T) {
	store := &memBreakpoints{}
	resolver := newBlockingResolver()
	d, _ := newTestDetector(resolver, store)
	ctx := context.Background()

	first := make(chan Outcome, 1)
	go func() { first <- d.Observe(ctx, obsAt(0, 1), false) }()
	<-resolver.entered

	assert.Equal(t, OutcomeDropped, d.Observe(ctx, obsAt(300, 2), false))

	initial := make(chan Outcome, 1)
	go func() { initial <- d.Observe(ctx, obsAt(300, 3), true) }()

	select {
	case <-initial:
		t.Fatal("initial evaluation must wait for the lock")
	case <-time.After(50 * time.Millisecond):
	}

	close(resolver.release)
	assert.Equal(t, OutcomeRecorded, <-first)
	assert.Equal(t, OutcomeRecorded, <-initial)
	assert.Len(t, store.all(), 2)
}

func TestDetector_DiscardsAfterClose(t *testing.T) {
	store := &memBreakpoints{}
	resolver := newBlockingResolver()
	d, _ := newTestDetector(resolver, store)
	ctx := context.Background()

	done := make(chan Outcome, 1)
	go func() { done <- d.Observe(ctx, obsAt(0, 1), true) }()
	<-resolver.entered

	d.Close()
	close(resolver.release)

	assert.Equal(t, OutcomeDiscarded, <-done)
	assert.Empty(t, store.all())
	_, ok := d.LastProcessed()
	assert.False(t, ok)
}

func TestDetector_Final(t *testing.T) {
	ctx := context.Background()

	t.Run("same key is not recorded again", func(t *testing.T) {
		store := &memBreakpoints{}
		d, _ := newTestDetector(constantResolver(addressNamed("Omotesando")), store)
		d.Observe(ctx, obsAt(0, 1), true)
		d.Close()

		assert.Equal(t, OutcomeUnchanged, d.Final(ctx, obsAt(1, 2)))
		assert.Len(t, store.all(), 1)
	})

	t.Run("new key is recorded after close", func(t *testing.T) {
		store := &memBreakpoints{}
		var street = "Omotesando"
		resolver := &fakeResolver{fn: func(float64, float64) *models.Address { return addressNamed(street) }}
		d, _ := newTestDetector(resolver, store)
		d.Observe(ctx, obsAt(0, 1), true)
		d.Close()

		street = "Meiji-dori"
		assert.Equal(t, OutcomeRecorded, d.Final(ctx, obsAt(1, 2)), "final ignores the stationary radius")
		records := store.all()
		require.Len(t, records, 2)
		assert.Equal(t, int64(2), *records[1].TrackID)
		assert.Equal(t, "Meiji-dori", d.LatestBreakpoint().Thoroughfare)
	})
}

func TestDetector_OnBreakpoint(t *testing.T) {
	store := &memBreakpoints{}
	d, _ := newTestDetector(constantResolver(addressNamed("Omotesando")), store)

	var got []bool
	d.OnBreakpoint = func(rec models.AddressRecord, initial bool) {
		got = append(got, initial)
	}
	d.Observe(context.Background(), obsAt(0, 1), true)
	assert.Equal(t, []bool{true}, got)
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "dropped", OutcomeDropped.String())
	assert.Equal(t, "recorded", OutcomeRecorded.String())
	assert.Equal(t, "unknown", Outcome(99).String())
}
