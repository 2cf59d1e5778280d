package geocode

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/text/language"
)

// LocaleStore persists the learned locale across restarts
type LocaleStore interface {
	LoadLocale(ctx context.Context) (string, error)
	SaveLocale(ctx context.Context, tag string) error
}

// LocaleCache holds the display locale learned from the first resolved
// country code. It is loaded lazily from the store.
type LocaleCache struct {
	store LocaleStore

	mu     sync.RWMutex
	loaded bool
	tag    language.Tag
	set    bool
}

// NewLocaleCache creates a cache backed by store. A nil store keeps the
// locale in memory only.
func NewLocaleCache(store LocaleStore) *LocaleCache {
	return &LocaleCache{store: store}
}

// Get returns the cached locale. ok is false when nothing has been learned yet.
func (c *LocaleCache) Get(ctx context.Context) (tag language.Tag, ok bool) {
	c.mu.RLock()
	if c.loaded {
		tag, ok = c.tag, c.set
		c.mu.RUnlock()
		return tag, ok
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.loaded {
		c.load(ctx)
	}
	return c.tag, c.set
}

func (c *LocaleCache) load(ctx context.Context) {
	c.loaded = true
	if c.store == nil {
		return
	}
	raw, err := c.store.LoadLocale(ctx)
	if err != nil {
		resolverLog.Printf("failed to load cached locale: %v", err)
		return
	}
	if raw == "" {
		return
	}
	tag, err := language.Parse(raw)
	if err != nil {
		resolverLog.Printf("ignoring invalid cached locale %q: %v", raw, err)
		return
	}
	c.tag, c.set = tag, true
}

// Set replaces the cached locale and persists it when it changed
func (c *LocaleCache) Set(ctx context.Context, tag language.Tag) error {
	c.mu.Lock()
	changed := !c.set || c.tag.String() != tag.String()
	c.tag, c.set, c.loaded = tag, true, true
	c.mu.Unlock()

	if !changed || c.store == nil {
		return nil
	}
	return c.store.SaveLocale(ctx, tag.String())
}

// LocaleForCountry maps an ISO 3166-1 alpha-2 country code to the most
// likely locale spoken there, e.g. "JP" -> ja-JP.
func LocaleForCountry(countryCode string) (language.Tag, bool) {
	region, err := language.ParseRegion(strings.TrimSpace(countryCode))
	if err != nil {
		return language.Und, false
	}
	und, err := language.Compose(region)
	if err != nil {
		return language.Und, false
	}
	base, conf := und.Base()
	if conf == language.No {
		return language.Und, false
	}
	tag, err := language.Compose(base, region)
	if err != nil {
		return language.Und, false
	}
	return tag, true
}
