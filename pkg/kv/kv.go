package kv

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/easyharun/easyharun/pkg/metrics"
	"github.com/easyharun/easyharun/pkg/types"
)

// ContainerState is what the store knows about one container
type ContainerState struct {
	ShouldBeDeleted bool
}

// HealthState is the last reported outcome for one health target
type HealthState struct {
	ContainerID types.ContainerID
	Target      string
	Healthy     bool
}

// Store is the state shared between the container, health and proxy loops:
// deletion markers per container and health per target. Entries are never
// removed. Every method is safe for concurrent use.
type Store struct {
	containerMu sync.RWMutex
	containers  map[types.ContainerID]ContainerState

	healthMu sync.RWMutex
	health   map[string]HealthState

	writes atomic.Uint64
}

// New creates an empty store
func New() *Store {
	return &Store{
		containers: make(map[types.ContainerID]ContainerState),
		health:     make(map[string]HealthState),
	}
}

// MarkToBeDeleted flags a container for removal. The flag never reverts.
func (s *Store) MarkToBeDeleted(id types.ContainerID) {
	if s.IsMarkedToBeDeleted(id) {
		return
	}

	s.containerMu.Lock()
	defer s.containerMu.Unlock()
	s.containers[id] = ContainerState{ShouldBeDeleted: true}
	s.countWrite("container")
}

// IsMarkedToBeDeleted reports whether a container was flagged for removal
func (s *Store) IsMarkedToBeDeleted(id types.ContainerID) bool {
	s.containerMu.RLock()
	defer s.containerMu.RUnlock()
	return s.containers[id].ShouldBeDeleted
}

// MarkedToBeDeleted returns every flagged container id, sorted
func (s *Store) MarkedToBeDeleted() []types.ContainerID {
	s.containerMu.RLock()
	defer s.containerMu.RUnlock()

	ids := make([]types.ContainerID, 0, len(s.containers))
	for id, st := range s.containers {
		if st.ShouldBeDeleted {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// MarkTargetHealthy records the outcome of a health probe. The current value
// is checked under the read lock first and the write lock is only taken when
// the value changes. It reports whether a write happened.
func (s *Store) MarkTargetHealthy(id types.ContainerID, target string, healthy bool) bool {
	s.healthMu.RLock()
	cur, ok := s.health[target]
	s.healthMu.RUnlock()
	if ok && cur.Healthy == healthy && cur.ContainerID == id {
		return false
	}

	s.healthMu.Lock()
	defer s.healthMu.Unlock()

	// another writer may have won the race between the locks
	if cur, ok := s.health[target]; ok && cur.Healthy == healthy && cur.ContainerID == id {
		return false
	}
	s.health[target] = HealthState{ContainerID: id, Target: target, Healthy: healthy}
	s.countWrite("health")
	return true
}

// IsTargetHealthy reports the last outcome for target. Unknown targets are unhealthy.
func (s *Store) IsTargetHealthy(target string) bool {
	s.healthMu.RLock()
	defer s.healthMu.RUnlock()
	return s.health[target].Healthy
}

// AllHealthy reports whether every target is healthy. An empty list is healthy.
func (s *Store) AllHealthy(targets []string) bool {
	s.healthMu.RLock()
	defer s.healthMu.RUnlock()
	for _, t := range targets {
		if !s.health[t].Healthy {
			return false
		}
	}
	return true
}

// Writes returns the number of write lock acquisitions that changed state
func (s *Store) Writes() uint64 {
	return s.writes.Load()
}

func (s *Store) countWrite(m string) {
	s.writes.Add(1)
	metrics.KVWritesTotal.WithLabelValues(m).Inc()
}

// Snapshot is a point-in-time copy of the store
type Snapshot struct {
	Containers map[types.ContainerID]ContainerState
	Health     []HealthState
}

// Snapshot copies the store. Health entries are sorted by target.
func (s *Store) Snapshot() Snapshot {
	snap := Snapshot{Containers: make(map[types.ContainerID]ContainerState)}

	s.containerMu.RLock()
	for id, st := range s.containers {
		snap.Containers[id] = st
	}
	s.containerMu.RUnlock()

	s.healthMu.RLock()
	snap.Health = make([]HealthState, 0, len(s.health))
	for _, h := range s.health {
		snap.Health = append(snap.Health, h)
	}
	s.healthMu.RUnlock()

	sort.Slice(snap.Health, func(i, j int) bool { return snap.Health[i].Target < snap.Health[j].Target })
	return snap
}

// Target returns the health target key of a check on a container
func Target(check string, id types.ContainerID) string {
	return check + "-" + id.String()
}
