package tracking

import (
	"context"
	"math"
	"sync"
	"sync/atomic"

	"github.com/jengzang/walkaround-go/internal/config"
	"github.com/jengzang/walkaround-go/internal/geocode"
	"github.com/jengzang/walkaround-go/internal/models"
	"github.com/jengzang/walkaround-go/internal/monitoring"
	"github.com/jengzang/walkaround-go/internal/spatial"
	"github.com/jengzang/walkaround-go/internal/timeutil"
)

var detectorLog = monitoring.Component("AddressChangeDetector")

// AddressResolver resolves coordinates to a localized address. A nil result
// means "try again later".
type AddressResolver interface {
	ResolveLocalized(ctx context.Context, lat, lng float64) *models.Address
	PrimeLocaleCache(ctx context.Context, lat, lng float64)
}

// BreakpointStore persists address breakpoints
type BreakpointStore interface {
	InsertAddress(ctx context.Context, rec *models.AddressRecord) error
}

// Observation is an accurate location handed to the detector
type Observation struct {
	Location models.LatLng
	TrackID  *int64
}

// Outcome reports what an evaluation did
type Outcome int

const (
	// OutcomeDropped means another evaluation was in flight
	OutcomeDropped Outcome = iota
	// OutcomeSkipped means the location barely moved since the last resolution
	OutcomeSkipped
	// OutcomeUnresolved means the resolver returned nothing; state is unchanged
	OutcomeUnresolved
	// OutcomeDiscarded means the session closed while resolving
	OutcomeDiscarded
	// OutcomeUnchanged means the address key did not change
	OutcomeUnchanged
	// OutcomeRecorded means a new breakpoint was persisted
	OutcomeRecorded
	// OutcomeFailed means the breakpoint could not be persisted
	OutcomeFailed
)

var outcomeNames = [...]string{"dropped", "skipped", "unresolved", "discarded", "unchanged", "recorded", "failed"}

func (o Outcome) String() string {
	if int(o) < len(outcomeNames) {
		return outcomeNames[o]
	}
	return "unknown"
}

// Detector decides when a location deserves a new address breakpoint.
// At most one evaluation runs at a time; the lock is held across the
// resolver call.
type Detector struct {
	sectionID int64
	resolver  AddressResolver
	store     BreakpointStore
	settings  config.SettingsSource
	clock     timeutil.Clock

	// OnBreakpoint is called after a breakpoint is persisted
	OnBreakpoint func(rec models.AddressRecord, initial bool)

	mu            sync.Mutex
	lastProcessed *models.LatLng
	lastKey       string
	hasKey        bool

	processed atomic.Pointer[models.LatLng]
	latest    atomic.Pointer[models.AddressRecord]
	closed    atomic.Bool
}

// NewDetector creates a detector for one section
func NewDetector(sectionID int64, resolver AddressResolver, store BreakpointStore, settings config.SettingsSource, clock timeutil.Clock) *Detector {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Detector{
		sectionID: sectionID,
		resolver:  resolver,
		store:     store,
		settings:  settings,
		clock:     clock,
	}
}

// Observe evaluates obs. A non-initial call arriving while another
// evaluation holds the lock is dropped. The initial call waits for it.
func (d *Detector) Observe(ctx context.Context, obs Observation, isInitial bool) Outcome {
	if isInitial {
		d.mu.Lock()
	} else if !d.mu.TryLock() {
		return OutcomeDropped
	}
	defer d.mu.Unlock()

	return d.evaluate(ctx, obs, isInitial, false)
}

// Final records the closing breakpoint of a session. It waits for any
// in-flight evaluation and persists only when the key differs from the
// last recorded one.
func (d *Detector) Final(ctx context.Context, obs Observation) Outcome {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.evaluate(ctx, obs, false, true)
}

// Close marks the session as stopped. Results of evaluations still in
// flight are discarded.
func (d *Detector) Close() {
	d.closed.Store(true)
}

// LastProcessed returns the last location that resolved successfully.
// It does not wait for an in-flight evaluation.
func (d *Detector) LastProcessed() (models.LatLng, bool) {
	p := d.processed.Load()
	if p == nil {
		return models.LatLng{}, false
	}
	return *p, true
}

// DistanceFromProcessed returns the distance from the last processed
// location, or +Inf when nothing has resolved yet.
func (d *Detector) DistanceFromProcessed(loc models.LatLng) float64 {
	last, ok := d.LastProcessed()
	if !ok {
		return math.Inf(1)
	}
	return spatial.DistanceMeters(last, loc)
}

// LatestBreakpoint returns the most recently persisted breakpoint
func (d *Detector) LatestBreakpoint() *models.AddressRecord {
	return d.latest.Load()
}

func (d *Detector) evaluate(ctx context.Context, obs Observation, isInitial, final bool) Outcome {
	s := d.settings.Settings(ctx)

	if !isInitial && !final && d.lastProcessed != nil && d.hasKey {
		if spatial.DistanceMeters(*d.lastProcessed, obs.Location) < s.StationaryRadiusMeters {
			return OutcomeSkipped
		}
	}

	lat, lng := obs.Location.Latitude, obs.Location.Longitude
	addr := d.resolver.ResolveLocalized(ctx, lat, lng)
	if addr == nil {
		detectorLog.Printf("address fetch failed at %.6f,%.6f, will retry", lat, lng)
		return OutcomeUnresolved
	}
	if !final && d.closed.Load() {
		return OutcomeDiscarded
	}

	loc := obs.Location
	d.lastProcessed = &loc
	d.processed.Store(&loc)

	key := geocode.Key(addr)
	changed := !d.hasKey || key != d.lastKey
	if !changed && !isInitial {
		return OutcomeUnchanged
	}

	sectionID := d.sectionID
	rec := models.NewAddressRecord(addr, d.clock.Now().UnixMilli(), &sectionID, obs.TrackID, lat, lng)
	if err := d.store.InsertAddress(ctx, &rec); err != nil {
		detectorLog.Printf("failed to save address record: %v", err)
		return OutcomeFailed
	}
	d.lastKey, d.hasKey = key, true
	d.latest.Store(&rec)

	detectorLog.Printf("section %d breakpoint %d key=%q initial=%v final=%v",
		d.sectionID, rec.ID, key, isInitial, final)
	if d.OnBreakpoint != nil {
		d.OnBreakpoint(rec, isInitial)
	}
	return OutcomeRecorded
}
