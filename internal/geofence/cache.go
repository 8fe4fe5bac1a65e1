// Package geofence provides the process-wide cache of named geofence
// polygons. Polygons are loaded lazily from an external source on first
// lookup and held until explicitly invalidated; a polygon, once loaded, is
// assumed static for the life of the process.
package geofence

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/manolocortes/evTrak/internal/geo"
	"github.com/manolocortes/evTrak/internal/metrics"
)

// ErrNotFound is returned by a PolygonSource when no geofence exists under
// the requested name. Absence is a valid outcome, not a store failure.
var ErrNotFound = errors.New("geofence: not found")

// PolygonSource loads a geofence polygon definition by name from the
// external store. Implementations return ErrNotFound when no geofence
// exists under the name.
type PolygonSource interface {
	LookupPolygon(ctx context.Context, name string) (geo.Polygon, error)
}

// cacheEntry records one resolved lookup. found=false entries cache the
// not-found outcome so a missing name does not hit the store on every
// report.
type cacheEntry struct {
	polygon geo.Polygon
	found   bool
}

// Cache maps geofence names to their polygons. Lookups that miss perform a
// single load through a circuit breaker so a dead store cannot stall
// ingestion. The benign race where two callers both load the same missing
// name is tolerated: both loads model the same source of truth and the last
// write wins.
//
// There is no eviction and no TTL. Invalidate/InvalidateAll exist for
// administrative updates of the underlying polygons and are never called
// automatically; this is a deliberate design choice, not an oversight.
type Cache struct {
	source  PolygonSource
	breaker *gobreaker.CircuitBreaker[geo.Polygon]
	logger  *slog.Logger

	mu      sync.RWMutex
	entries map[string]cacheEntry
}

// NewCache creates a Cache backed by the given source.
func NewCache(source PolygonSource, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}

	cb := gobreaker.NewCircuitBreaker[geo.Polygon](gobreaker.Settings{
		Name:        "geofence-store",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		// A not-found row is a valid outcome and must not trip the breaker.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNotFound)
		},
	})

	return &Cache{
		source:  source,
		breaker: cb,
		logger:  logger,
		entries: make(map[string]cacheEntry),
	}
}

// GetByName resolves a geofence polygon by name.
//
// Returns (polygon, true, nil) when the geofence exists, (nil, false, nil)
// when it does not (including the cached not-found case and the empty name),
// and (nil, false, err) when the store load itself failed. Load failures are
// not cached; the next lookup retries, subject to the circuit breaker.
func (c *Cache) GetByName(ctx context.Context, name string) (geo.Polygon, bool, error) {
	if name == "" {
		return nil, false, nil
	}

	c.mu.RLock()
	entry, ok := c.entries[name]
	c.mu.RUnlock()
	if ok {
		metrics.GeofenceCacheHitsTotal.Inc()
		return entry.polygon, entry.found, nil
	}

	metrics.GeofenceCacheMissesTotal.Inc()

	polygon, err := c.breaker.Execute(func() (geo.Polygon, error) {
		return c.source.LookupPolygon(ctx, name)
	})
	if errors.Is(err, ErrNotFound) {
		c.store(name, cacheEntry{found: false})
		c.logger.Info("geofence not found; caching negative result", "geofence", name)
		return nil, false, nil
	}
	if err != nil {
		metrics.GeofenceLoadFailuresTotal.Inc()
		return nil, false, err
	}

	c.store(name, cacheEntry{polygon: polygon, found: true})
	c.logger.Info("geofence loaded", "geofence", name, "vertices", len(polygon))
	return polygon, true, nil
}

// Invalidate removes a single name from the cache so the next lookup
// reloads it from the store. Removing an unknown name is a no-op.
func (c *Cache) Invalidate(name string) {
	c.mu.Lock()
	delete(c.entries, name)
	c.mu.Unlock()
}

// InvalidateAll empties the cache.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
}

// Len returns the number of cached entries, counting negative entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) store(name string, entry cacheEntry) {
	c.mu.Lock()
	c.entries[name] = entry
	c.mu.Unlock()
}
