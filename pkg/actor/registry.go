package actor

import (
	"sort"
	"sync"
)

// Info describes a registered task
type Info struct {
	ID       uint64
	Name     string
	Kind     string
	Alive    bool
	Failures uint64
}

// Registry lists the running tasks of one daemon
type Registry struct {
	mu     sync.RWMutex
	actors map[uint64]Ref
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{actors: make(map[uint64]Ref)}
}

func (r *Registry) register(ref Ref) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actors[ref.ID()] = ref
}

func (r *Registry) unregister(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.actors, id)
}

// List returns the registered tasks ordered by id
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]Info, 0, len(r.actors))
	for _, a := range r.actors {
		infos = append(infos, Info{
			ID:       a.ID(),
			Name:     a.Name(),
			Kind:     a.Kind(),
			Alive:    a.IsAlive(),
			Failures: a.Failures(),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

// Len returns the number of registered tasks
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.actors)
}

// ShutdownAll requests every registered task to stop and waits for all of them
func (r *Registry) ShutdownAll() {
	r.mu.RLock()
	refs := make([]Ref, 0, len(r.actors))
	for _, a := range r.actors {
		refs = append(refs, a)
	}
	r.mu.RUnlock()

	dones := make([]<-chan struct{}, 0, len(refs))
	for _, a := range refs {
		dones = append(dones, a.RequestShutdown())
	}
	for _, d := range dones {
		<-d
	}
}
