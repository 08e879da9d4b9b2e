package ocr

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// LanguageCatalog caches the engine's installed-language set process-wide.
// Call Invalidate after the engine's language packs change.
type LanguageCatalog struct {
	engine Engine
	ttl    time.Duration
	now    func() time.Time

	mu       sync.RWMutex
	langs    []string
	loadedAt time.Time
	loaded   bool

	group singleflight.Group
}

// NewLanguageCatalog creates a catalog over engine. A zero ttl caches until
// Invalidate is called.
func NewLanguageCatalog(engine Engine, ttl time.Duration) *LanguageCatalog {
	return &LanguageCatalog{engine: engine, ttl: ttl, now: time.Now}
}

// Languages returns the installed language codes, sorted. Concurrent callers
// share a single engine query.
func (c *LanguageCatalog) Languages(ctx context.Context) ([]string, error) {
	if langs, ok := c.cached(); ok {
		return langs, nil
	}

	v, err, _ := c.group.Do("languages", func() (interface{}, error) {
		if langs, ok := c.cached(); ok {
			return langs, nil
		}
		langs, err := c.engine.InstalledLanguages(ctx)
		if err != nil {
			return nil, WrapOCRError("InstalledLanguages", err, "failed to query engine languages")
		}
		langs = dedupeSorted(langs)

		c.mu.Lock()
		c.langs = langs
		c.loadedAt = c.now()
		c.loaded = true
		c.mu.Unlock()
		return langs, nil
	})
	if err != nil {
		return nil, err
	}
	return copyStrings(v.([]string)), nil
}

// Invalidate drops the cached set; the next Languages call re-queries the engine.
func (c *LanguageCatalog) Invalidate() {
	c.mu.Lock()
	c.langs = nil
	c.loaded = false
	c.mu.Unlock()
}

func (c *LanguageCatalog) cached() ([]string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.loaded {
		return nil, false
	}
	if c.ttl > 0 && c.now().Sub(c.loadedAt) > c.ttl {
		return nil, false
	}
	return copyStrings(c.langs), true
}

func dedupeSorted(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, l := range in {
		if l == "" || seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

func copyStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
