package runtime

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/easyharun/easyharun/pkg/types"
)

// Container states reported by the runtime
const (
	StateCreated = "created"
	StateRunning = "running"
	StateExited  = "exited"
	StateDead    = "dead"
)

// ErrNotFound is returned when a container does not exist
var ErrNotFound = errors.New("container not found")

// Port is a published container port
type Port struct {
	Private uint16
	Public  uint16
	Proto   string
}

// Container is a runtime container as seen by a list call
type Container struct {
	ID     types.ContainerID
	Name   string
	Image  string
	State  string
	Labels map[string]string
	Ports  []Port
}

// HostPort returns the host port published for a private tcp port
func (c Container) HostPort(private uint16) (uint16, bool) {
	for _, p := range c.Ports {
		if p.Private == private && p.Public != 0 && (p.Proto == "" || p.Proto == "tcp") {
			return p.Public, true
		}
	}
	return 0, false
}

// Gone reports whether the container has stopped for good
func (c Container) Gone() bool {
	return c.State == StateExited || c.State == StateDead
}

// ContainerSpec describes a container to create and start. Every port is
// published on an OS-chosen host port.
type ContainerSpec struct {
	Name   string
	Image  string
	Ports  []uint16
	Labels map[string]string
}

// ExecResult is the outcome of a command run inside a container
type ExecResult struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
}

// Runtime is the container runtime easyharun drives
type Runtime interface {
	// List returns every container owned by easyharun, including stopped ones
	List(ctx context.Context) ([]Container, error)

	// Start creates and starts a container
	Start(ctx context.Context, spec ContainerSpec) (types.ContainerID, error)

	// StopAndRemove stops and removes a container. Missing containers are not an error.
	StopAndRemove(ctx context.Context, id types.ContainerID) error

	// Exec runs cmd inside a running container
	Exec(ctx context.Context, id types.ContainerID, cmd []string) (ExecResult, error)

	Close() error
}

// ContainerName builds a unique runtime name for a replica:
// easyharun-<name>-<replica>-<8 hex chars>
func ContainerName(name string, replica int) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("easyharun-%s-%d-%s", name, replica, suffix)
}
