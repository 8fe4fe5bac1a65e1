// Package engine implements the geofence transition engine: the per-entity
// position/state store and the detector that compares consecutive positions
// against watched geofences and fires enter/exit events exactly once per
// boundary crossing.
package engine

import (
	"hash/fnv"
	"sync"

	"github.com/manolocortes/evTrak/internal/types"
)

// EntityState holds everything the engine remembers about one entity: its
// last accepted position and its last known containment per watched
// geofence. A geofence absent from the Containment map is in the "unknown"
// state. States are created on first report and never destroyed; the map is
// process-lifetime and unbounded by design.
type EntityState struct {
	LastPosition *types.EntityPosition
	Containment  map[string]bool
}

// StateStore is the entity state storage contract. Implementations must be
// safe for concurrent use; the detector additionally serializes the
// read-compute-write sequence per entity id, so a plain locked map suffices.
type StateStore interface {
	Get(entityID string) (EntityState, bool)
	Put(entityID string, state EntityState)
}

// MemoryStateStore is the production StateStore: an in-process map guarded
// by a RWMutex.
type MemoryStateStore struct {
	mu     sync.RWMutex
	states map[string]EntityState
}

// NewMemoryStateStore creates an empty MemoryStateStore.
func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{states: make(map[string]EntityState)}
}

// Get returns the state for an entity and whether one exists.
func (s *MemoryStateStore) Get(entityID string) (EntityState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[entityID]
	return state, ok
}

// Put replaces the state for an entity as a single atomic operation.
func (s *MemoryStateStore) Put(entityID string, state EntityState) {
	s.mu.Lock()
	s.states[entityID] = state
	s.mu.Unlock()
}

// Len returns the number of tracked entities.
func (s *MemoryStateStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.states)
}

// lockShards is the size of the sharded mutex table. Reports for entity ids
// hashing to different shards proceed fully in parallel.
const lockShards = 64

// shardedLock provides a per-key critical section sharded by FNV-1a hash.
// Two distinct keys may share a shard; that only costs contention, never
// correctness.
type shardedLock struct {
	shards [lockShards]sync.Mutex
}

// forKey returns the mutex guarding the given key.
func (l *shardedLock) forKey(key string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &l.shards[h.Sum32()%lockShards]
}
