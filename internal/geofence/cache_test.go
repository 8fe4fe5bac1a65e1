package geofence

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manolocortes/evTrak/internal/geo"
)

// countingSource is a PolygonSource that records how many loads it served.
type countingSource struct {
	polygons map[string]geo.Polygon
	err      error
	calls    atomic.Int64
}

func (s *countingSource) LookupPolygon(_ context.Context, name string) (geo.Polygon, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	polygon, ok := s.polygons[name]
	if !ok {
		return nil, ErrNotFound
	}
	return polygon, nil
}

var testPolygon = geo.Polygon{
	{X: 0, Y: 0},
	{X: 10, Y: 0},
	{X: 10, Y: 10},
	{X: 0, Y: 10},
}

func TestCache_GetByName_LoadsOnce(t *testing.T) {
	source := &countingSource{polygons: map[string]geo.Polygon{"SAS": testPolygon}}
	cache := NewCache(source, nil)

	for i := 0; i < 5; i++ {
		polygon, found, err := cache.GetByName(context.Background(), "SAS")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, testPolygon, polygon)
	}

	assert.Equal(t, int64(1), source.calls.Load(), "repeated lookups must hit the store once")
	assert.Equal(t, 1, cache.Len())
}

func TestCache_GetByName_NegativeCaching(t *testing.T) {
	source := &countingSource{polygons: map[string]geo.Polygon{}}
	cache := NewCache(source, nil)

	for i := 0; i < 3; i++ {
		polygon, found, err := cache.GetByName(context.Background(), "Nowhere")
		require.NoError(t, err)
		assert.False(t, found)
		assert.Nil(t, polygon)
	}

	assert.Equal(t, int64(1), source.calls.Load(), "not-found must be cached too")
}

func TestCache_GetByName_EmptyName(t *testing.T) {
	source := &countingSource{}
	cache := NewCache(source, nil)

	polygon, found, err := cache.GetByName(context.Background(), "")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, polygon)
	assert.Equal(t, int64(0), source.calls.Load())
}

func TestCache_GetByName_LoadFailureNotCached(t *testing.T) {
	source := &countingSource{err: errors.New("connection refused")}
	cache := NewCache(source, nil)

	_, found, err := cache.GetByName(context.Background(), "SAS")
	require.Error(t, err)
	assert.False(t, found)
	assert.Equal(t, 0, cache.Len())

	// The failure is transient: once the store recovers, the next lookup
	// loads and caches.
	source.err = nil
	source.polygons = map[string]geo.Polygon{"SAS": testPolygon}

	polygon, found, err := cache.GetByName(context.Background(), "SAS")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, testPolygon, polygon)
	assert.Equal(t, int64(2), source.calls.Load())
}

func TestCache_BreakerTripsAfterConsecutiveFailures(t *testing.T) {
	source := &countingSource{err: errors.New("connection refused")}
	cache := NewCache(source, nil)

	// Six consecutive failures trip the breaker.
	for i := 0; i < 6; i++ {
		_, _, err := cache.GetByName(context.Background(), "SAS")
		require.Error(t, err)
	}
	callsBefore := source.calls.Load()

	// With the breaker open, lookups fail fast without touching the store.
	_, _, err := cache.GetByName(context.Background(), "SAS")
	require.Error(t, err)
	assert.Equal(t, callsBefore, source.calls.Load())
}

func TestCache_Invalidate(t *testing.T) {
	source := &countingSource{polygons: map[string]geo.Polygon{"SAS": testPolygon}}
	cache := NewCache(source, nil)

	_, _, err := cache.GetByName(context.Background(), "SAS")
	require.NoError(t, err)
	require.Equal(t, int64(1), source.calls.Load())

	cache.Invalidate("SAS")

	_, found, err := cache.GetByName(context.Background(), "SAS")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int64(2), source.calls.Load(), "invalidated name must reload")
}

func TestCache_Invalidate_UnknownNameIsNoop(t *testing.T) {
	cache := NewCache(&countingSource{}, nil)
	cache.Invalidate("never-loaded")
	assert.Equal(t, 0, cache.Len())
}

func TestCache_InvalidateAll(t *testing.T) {
	source := &countingSource{polygons: map[string]geo.Polygon{
		"SAS":    testPolygon,
		"Portal": testPolygon,
	}}
	cache := NewCache(source, nil)

	_, _, _ = cache.GetByName(context.Background(), "SAS")
	_, _, _ = cache.GetByName(context.Background(), "Portal")
	require.Equal(t, 2, cache.Len())

	cache.InvalidateAll()
	assert.Equal(t, 0, cache.Len())
}

func TestCache_ConcurrentLookups(t *testing.T) {
	source := &countingSource{polygons: map[string]geo.Polygon{"SAS": testPolygon}}
	cache := NewCache(source, nil)

	done := make(chan struct{})
	for i := 0; i < 20; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			polygon, found, err := cache.GetByName(context.Background(), "SAS")
			assert.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, testPolygon, polygon)
		}()
	}
	for i := 0; i < 20; i++ {
		<-done
	}
}
