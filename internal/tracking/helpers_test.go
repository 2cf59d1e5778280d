package tracking

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/jengzang/walkaround-go/internal/models"
	"github.com/jengzang/walkaround-go/internal/monitoring"
)

func init() {
	monitoring.SetLogger(nil)
}

const metersPerDegreeLat = 111195.0

// north returns a coordinate m meters north of the base point
func north(m float64) models.LatLng {
	return models.LatLng{Latitude: 35.0 + m/metersPerDegreeLat, Longitude: 139.0}
}

func addressNamed(name string) *models.Address {
	return &models.Address{
		Locality:     "Shibuya",
		Thoroughfare: name,
		AddressLine:  "Japan, Tokyo, Shibuya, " + name,
		CountryCode:  "JP",
	}
}

// fakeResolver answers with fn and counts calls
type fakeResolver struct {
	fn     func(lat, lng float64) *models.Address
	calls  atomic.Int32
	primes atomic.Int32
}

func (r *fakeResolver) ResolveLocalized(ctx context.Context, lat, lng float64) *models.Address {
	r.calls.Add(1)
	return r.fn(lat, lng)
}

func (r *fakeResolver) PrimeLocaleCache(ctx context.Context, lat, lng float64) {
	r.primes.Add(1)
}

func constantResolver(addr *models.Address) *fakeResolver {
	return &fakeResolver{fn: func(float64, float64) *models.Address {
		out := *addr
		return &out
	}}
}

// memBreakpoints is an in-memory BreakpointStore
type memBreakpoints struct {
	mu      sync.Mutex
	records []models.AddressRecord
	err     error
}

func (m *memBreakpoints) InsertAddress(ctx context.Context, rec *models.AddressRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	rec.ID = int64(len(m.records) + 1)
	m.records = append(m.records, *rec)
	return nil
}

func (m *memBreakpoints) all() []models.AddressRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.AddressRecord(nil), m.records...)
}

func (m *memBreakpoints) setErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}
