package geocode

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/text/language"

	"github.com/jengzang/walkaround-go/internal/models"
	"github.com/jengzang/walkaround-go/internal/monitoring"
)

var resolverLog = monitoring.Component("AddressResolver")

// ErrNoResult is returned by a Provider when nothing is found at a coordinate
var ErrNoResult = errors.New("no address found")

// Provider performs the actual reverse-geocoding lookup
type Provider interface {
	ReverseGeocode(ctx context.Context, lat, lng float64, locale language.Tag) (*models.Address, error)
}

// ProviderFunc adapts a function to the Provider interface
type ProviderFunc func(ctx context.Context, lat, lng float64, locale language.Tag) (*models.Address, error)

// ReverseGeocode calls f
func (f ProviderFunc) ReverseGeocode(ctx context.Context, lat, lng float64, locale language.Tag) (*models.Address, error) {
	return f(ctx, lat, lng, locale)
}

// Resolver turns coordinates into a localized address. Lookups for the same
// coordinate and locale that overlap share one provider call.
type Resolver struct {
	provider      Provider
	locales       *LocaleCache
	defaultLocale language.Tag
	timeout       time.Duration

	group singleflight.Group
}

// ResolverConfig configures a Resolver
type ResolverConfig struct {
	DefaultLocale language.Tag  // used until a locale is learned
	Timeout       time.Duration // per lookup, 0 means none
}

// NewResolver creates a Resolver
func NewResolver(provider Provider, locales *LocaleCache, cfg ResolverConfig) *Resolver {
	if locales == nil {
		locales = NewLocaleCache(nil)
	}
	if cfg.DefaultLocale == language.Und {
		cfg.DefaultLocale = language.English
	}
	return &Resolver{
		provider:      provider,
		locales:       locales,
		defaultLocale: cfg.DefaultLocale,
		timeout:       cfg.Timeout,
	}
}

// ResolveLocalized returns the address at (lat, lng) in the cached locale,
// learning it first when none is cached. Failures yield nil.
func (r *Resolver) ResolveLocalized(ctx context.Context, lat, lng float64) *models.Address {
	if tag, ok := r.locales.Get(ctx); ok {
		return r.Resolve(ctx, lat, lng, tag)
	}

	addr, tag, learned := r.learn(ctx, lat, lng)
	if addr == nil {
		return nil
	}
	if !learned || tag.String() == r.defaultLocale.String() {
		return addr
	}
	return r.Resolve(ctx, lat, lng, tag)
}

// PrimeLocaleCache resolves (lat, lng) in the default locale and caches the
// locale of the country found there.
func (r *Resolver) PrimeLocaleCache(ctx context.Context, lat, lng float64) {
	r.learn(ctx, lat, lng)
}

func (r *Resolver) learn(ctx context.Context, lat, lng float64) (*models.Address, language.Tag, bool) {
	addr := r.Resolve(ctx, lat, lng, r.defaultLocale)
	if addr == nil || addr.CountryCode == "" {
		return addr, language.Und, false
	}
	tag, ok := LocaleForCountry(addr.CountryCode)
	if !ok {
		resolverLog.Printf("no locale for country code %q", addr.CountryCode)
		return addr, language.Und, false
	}
	if err := r.locales.Set(ctx, tag); err != nil {
		resolverLog.Printf("failed to persist locale %s: %v", tag, err)
	}
	resolverLog.Printf("locale updated and cached: %s", tag)
	return addr, tag, true
}

// Resolve looks up (lat, lng) in the given locale. Errors and empty results
// are logged and reported as nil.
func (r *Resolver) Resolve(ctx context.Context, lat, lng float64, locale language.Tag) *models.Address {
	key := fmt.Sprintf("%.6f,%.6f|%s", lat, lng, locale)

	v, err, _ := r.group.Do(key, func() (interface{}, error) {
		callCtx := ctx
		if r.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, r.timeout)
			defer cancel()
		}
		return r.provider.ReverseGeocode(callCtx, lat, lng, locale)
	})
	if err != nil {
		if !errors.Is(err, ErrNoResult) {
			resolverLog.Printf("geocoder error at %.6f,%.6f: %v", lat, lng, err)
		}
		return nil
	}

	addr, _ := v.(*models.Address)
	if addr == nil {
		return nil
	}
	// shared callers must not alias each other's result
	out := *addr
	return &out
}
