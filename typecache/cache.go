// Package typecache owns the authoritative set of record-type names valid on
// the connected instance. The set starts from a compiled-in baseline and is
// extended by a live, paginated discovery call; population is single-flight
// and refreshed on a TTL.
package typecache

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// DefaultTTL is how long a discovered type set is trusted before a refresh.
const DefaultTTL = 15 * time.Minute

// Lister is the discovery call, implemented by api.Client.
type Lister interface {
	ListEntityTypes(ctx context.Context) ([]string, error)
}

// Cache is the process-wide record-type set. All mutation happens through
// population and invalidation; callers only read snapshots.
type Cache struct {
	lister Lister
	ttl    time.Duration

	mu        sync.RWMutex
	names     map[string]struct{}
	fetchedAt time.Time
	populated bool
	degraded  bool

	group singleflight.Group
}

// New creates a cache seeded with the static baseline. Until discovery runs,
// only baseline types validate.
func New(lister Lister, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Cache{
		lister: lister,
		ttl:    ttl,
		names:  baselineSet(),
	}
	return c
}

func baselineSet() map[string]struct{} {
	names := make(map[string]struct{}, len(BaselineTypes))
	for _, name := range BaselineTypes {
		names[name] = struct{}{}
	}
	return names
}

func (c *Cache) fresh() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.populated && time.Since(c.fetchedAt) < c.ttl
}

// EnsurePopulated runs discovery if the set is missing or expired. Callers
// arriving while a population is in flight wait for that same result; a
// duplicate fetch is never issued.
func (c *Cache) EnsurePopulated(ctx context.Context) error {
	if c.fresh() {
		return nil
	}

	_, err, _ := c.group.Do("populate", func() (any, error) {
		// Double-check under the flight: a waiter may arrive just after the
		// previous population completed.
		if c.fresh() {
			return nil, nil
		}

		discovered, err := c.lister.ListEntityTypes(ctx)
		now := time.Now()

		c.mu.Lock()
		defer c.mu.Unlock()

		if err != nil {
			// Fall back to whatever we already have; the baseline at minimum.
			c.populated = true
			c.fetchedAt = now
			c.degraded = true
			log.WithContext(ctx).WithError(err).Warn("entity type discovery failed, using baseline types only")
			return nil, fmt.Errorf("discovering entity types: %w", err)
		}

		names := baselineSet()
		custom := 0
		for _, name := range discovered {
			if _, known := names[name]; !known {
				custom++
			}
			names[name] = struct{}{}
		}

		c.names = names
		c.populated = true
		c.fetchedAt = now
		c.degraded = false

		log.WithContext(ctx).WithFields(log.Fields{
			"total":  len(names),
			"custom": custom,
		}).Debug("entity type cache populated")
		return nil, nil
	})
	return err
}

// IsValid reports whether a record type exists on this instance. The first
// call blocks on population; after TTL expiry the stale set still answers
// while a background refresh runs. It never returns an error: an unknown
// type is simply false.
func (c *Cache) IsValid(ctx context.Context, name string) bool {
	c.mu.RLock()
	populated := c.populated
	expired := populated && time.Since(c.fetchedAt) >= c.ttl
	c.mu.RUnlock()

	if !populated {
		// Discovery errors degrade to the baseline set; nothing to do here.
		_ = c.EnsurePopulated(ctx)
	} else if expired {
		// Staleness is preferred over blocking a validation call.
		go func() {
			bg := context.WithoutCancel(ctx)
			_ = c.EnsurePopulated(bg)
		}()
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.names[name]
	return ok
}

// Invalidate discards discovered state. The next validation repopulates;
// until then only baseline types validate.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.names = baselineSet()
	c.populated = false
	c.degraded = false
	c.fetchedAt = time.Time{}
}

// Names returns a sorted snapshot of the current set.
func (c *Cache) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.names))
	for name := range c.names {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Degraded reports whether the last population fell back to the baseline.
func (c *Cache) Degraded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.degraded
}
