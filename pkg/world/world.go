package world

import (
	"slices"

	"github.com/easyharun/easyharun/pkg/types"
)

// Container is one container in a World snapshot. An empty ID means the
// container does not exist in the runtime yet.
type Container struct {
	internalID int

	ID             types.ContainerID
	Name           string
	Image          string
	ReplicaID      int
	ContainerPorts []uint16
	HealthChecks   []string
	Proxies        []types.ProxyRef

	// HostPorts maps a container port to the host port the runtime published it on
	HostPorts map[uint16]uint16
}

// InternalID identifies the container within its World only
func (c Container) InternalID() int {
	return c.internalID
}

// HostPort returns the host port published for a container port
func (c Container) HostPort(containerPort uint16) (uint16, bool) {
	p, ok := c.HostPorts[containerPort]
	return p, ok
}

// FirstPort returns the first declared container port
func (c Container) FirstPort() (uint16, bool) {
	if len(c.ContainerPorts) == 0 {
		return 0, false
	}
	return c.ContainerPorts[0], true
}

// ProxyPort resolves the container port a proxy ref targets
func (c Container) ProxyPort(ref types.ProxyRef) (uint16, bool) {
	if ref.ContainerPort != 0 {
		return ref.ContainerPort, true
	}
	return c.FirstPort()
}

// World is an immutable snapshot of containers, either observed in the
// runtime (current) or derived from config (expected)
type World struct {
	containers []Container
}

// New builds a World, assigning per-snapshot internal ids in order
func New(containers []Container) World {
	cs := make([]Container, len(containers))
	for i, c := range containers {
		c.internalID = i
		cs[i] = c
	}
	return World{containers: cs}
}

// Containers returns the snapshot's containers in order
func (w World) Containers() []Container {
	return slices.Clone(w.containers)
}

// Len returns the number of containers
func (w World) Len() int {
	return len(w.containers)
}

// IDs returns the runtime ids of all containers that have one
func (w World) IDs() []types.ContainerID {
	ids := make([]types.ContainerID, 0, len(w.containers))
	for _, c := range w.containers {
		if !c.ID.IsZero() {
			ids = append(ids, c.ID)
		}
	}
	return ids
}

// Worlds pairs the observed and desired snapshots of one tick
type Worlds struct {
	Current  World
	Expected World
}

// Diff matches the two worlds with key
func (w Worlds) Diff(key KeyFunc) WorldDiff {
	return DiffBy(key, w.Current, w.Expected)
}
