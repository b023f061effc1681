// Package geo defines the landscape-coordinate projection boundary.
//
// Converting the simulator's landscape-local XY metres into WGS84 requires
// the landscape's terrain calibration, which lives behind a proprietary
// library in the real deployment. The decoder core never projects; callers
// supply a Projector and apply it to decoded telemetry afterwards.
package geo

import (
	"errors"
	"math"
	"sync"
)

// ErrProjection is returned by projector implementations that cannot
// convert a coordinate pair. The decoder core never produces it.
var ErrProjection = errors.New("coordinate projection failed")

// Projector converts landscape-local XY metres to latitude/longitude.
type Projector func(x, y float64) (lat, lon float64, err error)

// CachePrecisionM is the grid the caching projector rounds to. Glider
// positions within 10 m project to the same pixel at map zoom levels that
// matter, and rounding cuts projection-library calls by roughly 95%.
const CachePrecisionM = 10.0

// cacheMaxEntries bounds cache growth; beyond it the cache drops a batch
// of arbitrary entries rather than tracking recency.
const (
	cacheMaxEntries = 10000
	cacheEvictBatch = 2000
)

type gridKey struct {
	x, y int64
}

type latLon struct {
	lat, lon float64
}

// Cache wraps a Projector with a rounded-grid memoization layer. Safe for
// concurrent use.
type Cache struct {
	project Projector

	mu      sync.Mutex
	entries map[gridKey]latLon
	hits    uint64
	misses  uint64
}

// NewCache creates a caching wrapper around project.
func NewCache(project Projector) *Cache {
	return &Cache{
		project: project,
		entries: make(map[gridKey]latLon),
	}
}

// Project converts x/y, consulting the grid cache first.
func (c *Cache) Project(x, y float64) (float64, float64, error) {
	key := gridKey{
		x: int64(math.Round(x / CachePrecisionM)),
		y: int64(math.Round(y / CachePrecisionM)),
	}

	c.mu.Lock()
	if ll, ok := c.entries[key]; ok {
		c.hits++
		c.mu.Unlock()
		return ll.lat, ll.lon, nil
	}
	c.mu.Unlock()

	lat, lon, err := c.project(x, y)
	if err != nil {
		return 0, 0, err
	}

	c.mu.Lock()
	c.misses++
	if len(c.entries) >= cacheMaxEntries {
		dropped := 0
		for k := range c.entries {
			delete(c.entries, k)
			dropped++
			if dropped >= cacheEvictBatch {
				break
			}
		}
	}
	c.entries[key] = latLon{lat: lat, lon: lon}
	c.mu.Unlock()

	return lat, lon, nil
}

// Stats returns cache hit/miss counters and the current entry count.
func (c *Cache) Stats() (hits, misses uint64, entries int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses, len(c.entries)
}
