package runtime

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/easyharun/easyharun/pkg/types"
)

// ExecFunc answers Exec calls on a MemoryRuntime
type ExecFunc func(ctx context.Context, id types.ContainerID, cmd []string) (ExecResult, error)

// MemoryRuntime is an in-process Runtime. Containers start in the running
// state and get sequential host ports. It backs `--runtime memory` dry runs
// and the reconciler tests.
type MemoryRuntime struct {
	mu         sync.Mutex
	containers map[types.ContainerID]Container
	order      []types.ContainerID
	nextPort   uint16
	startErr   error
	exec       ExecFunc
	starts     int
	removed    []types.ContainerID
}

var _ Runtime = (*MemoryRuntime)(nil)

// NewMemoryRuntime creates an empty runtime handing out host ports from firstPort
func NewMemoryRuntime(firstPort uint16) *MemoryRuntime {
	if firstPort == 0 {
		firstPort = 30000
	}
	return &MemoryRuntime{
		containers: make(map[types.ContainerID]Container),
		nextPort:   firstPort,
	}
}

// Add inserts a container as-is, replacing any container with the same id
func (m *MemoryRuntime) Add(c Container) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.containers[c.ID]; !exists {
		m.order = append(m.order, c.ID)
	}
	m.containers[c.ID] = c
}

// SetState changes the state of a container
func (m *MemoryRuntime) SetState(id types.ContainerID, state string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.containers[id]; ok {
		c.State = state
		m.containers[id] = c
	}
}

// FailStarts makes every following Start return err. nil clears it.
func (m *MemoryRuntime) FailStarts(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startErr = err
}

// SetExec installs the handler for Exec
func (m *MemoryRuntime) SetExec(fn ExecFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exec = fn
}

// Starts returns how many containers were started
func (m *MemoryRuntime) Starts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.starts
}

// Removed returns the ids removed so far, in order
func (m *MemoryRuntime) Removed() []types.ContainerID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.removed)
}

// List returns all containers in insertion order
func (m *MemoryRuntime) List(ctx context.Context) ([]Container, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Container, 0, len(m.order))
	for _, id := range m.order {
		c := m.containers[id]
		c.Labels = maps.Clone(c.Labels)
		c.Ports = slices.Clone(c.Ports)
		out = append(out, c)
	}
	return out, nil
}

// Start registers a running container with one host port per declared port
func (m *MemoryRuntime) Start(ctx context.Context, spec ContainerSpec) (types.ContainerID, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.startErr != nil {
		return "", fmt.Errorf("failed to start container %s: %w", spec.Name, m.startErr)
	}

	id := types.ContainerID(strings.ReplaceAll(uuid.NewString(), "-", ""))
	c := Container{
		ID:     id,
		Name:   spec.Name,
		Image:  spec.Image,
		State:  StateRunning,
		Labels: maps.Clone(spec.Labels),
	}
	for _, p := range spec.Ports {
		c.Ports = append(c.Ports, Port{Private: p, Public: m.nextPort, Proto: "tcp"})
		m.nextPort++
	}

	m.containers[id] = c
	m.order = append(m.order, id)
	m.starts++
	return id, nil
}

// StopAndRemove deletes the container if it exists
func (m *MemoryRuntime) StopAndRemove(ctx context.Context, id types.ContainerID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.containers[id]; !ok {
		return nil
	}
	delete(m.containers, id)
	m.order = slices.DeleteFunc(m.order, func(o types.ContainerID) bool { return o == id })
	m.removed = append(m.removed, id)
	return nil
}

// Exec delegates to the installed ExecFunc. Without one every command exits 0.
func (m *MemoryRuntime) Exec(ctx context.Context, id types.ContainerID, cmd []string) (ExecResult, error) {
	m.mu.Lock()
	_, ok := m.containers[id]
	exec := m.exec
	m.mu.Unlock()

	if !ok {
		return ExecResult{}, fmt.Errorf("%w: %s", ErrNotFound, id.Short())
	}
	if exec == nil {
		return ExecResult{}, nil
	}
	return exec(ctx, id, cmd)
}

// Close is a no-op
func (m *MemoryRuntime) Close() error {
	return nil
}
