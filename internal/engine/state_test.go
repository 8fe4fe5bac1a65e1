package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manolocortes/evTrak/internal/types"
)

func TestMemoryStateStore_GetMissing(t *testing.T) {
	store := NewMemoryStateStore()

	_, ok := store.Get("7")
	assert.False(t, ok)
	assert.Equal(t, 0, store.Len())
}

func TestMemoryStateStore_PutReplaces(t *testing.T) {
	store := NewMemoryStateStore()

	first := EntityState{
		LastPosition: &types.EntityPosition{EntityID: "7", Longitude: 1, Latitude: 2, ObservedAt: time.Now()},
		Containment:  map[string]bool{"SAS": true},
	}
	store.Put("7", first)

	second := EntityState{
		LastPosition: &types.EntityPosition{EntityID: "7", Longitude: 3, Latitude: 4, ObservedAt: time.Now()},
		Containment:  map[string]bool{"SAS": false, "Portal": true},
	}
	store.Put("7", second)

	got, ok := store.Get("7")
	require.True(t, ok)
	assert.Equal(t, second, got)
	assert.Equal(t, 1, store.Len())
}

func TestMemoryStateStore_ConcurrentAccess(t *testing.T) {
	store := NewMemoryStateStore()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			store.Put(id, EntityState{Containment: map[string]bool{}})
			_, _ = store.Get(id)
		}(string(rune('a' + i%26)))
	}
	wg.Wait()

	assert.Equal(t, 26, store.Len())
}

func TestShardedLock_SameKeySameMutex(t *testing.T) {
	var locks shardedLock

	assert.Same(t, locks.forKey("7"), locks.forKey("7"))
}

func TestShardedLock_MutualExclusion(t *testing.T) {
	var locks shardedLock

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			mu := locks.forKey("7")
			mu.Lock()
			counter++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, counter)
}
