package health

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/easyharun/easyharun/pkg/runtime"
	"github.com/easyharun/easyharun/pkg/types"
)

// Execer runs a command inside a container
type Execer interface {
	Exec(ctx context.Context, id types.ContainerID, cmd []string) (runtime.ExecResult, error)
}

// ExecChecker runs a command inside the container; exit code 0 is healthy
type ExecChecker struct {
	// Command is the command to execute (e.g., ["pg_isready", "-U", "postgres"])
	Command []string

	// ContainerID is the container to exec into
	ContainerID types.ContainerID

	runtime Execer
}

// NewExecChecker creates a new exec health checker
func NewExecChecker(rt Execer, id types.ContainerID, command []string) *ExecChecker {
	return &ExecChecker{
		Command:     command,
		ContainerID: id,
		runtime:     rt,
	}
}

// Check performs the exec health check
func (e *ExecChecker) Check(ctx context.Context) Result {
	start := time.Now()

	if len(e.Command) == 0 {
		return failed(start, "no command specified")
	}

	res, err := e.runtime.Exec(ctx, e.ContainerID, e.Command)
	if err != nil {
		return failed(start, fmt.Sprintf("exec %v: %v", e.Command, err))
	}

	if res.ExitCode != 0 {
		message := fmt.Sprintf("exec %v: exit code %d", e.Command, res.ExitCode)
		if stderr := strings.TrimSpace(string(res.Stderr)); stderr != "" {
			message = fmt.Sprintf("%s: %s", message, truncate(stderr, 100))
		}
		return failed(start, message)
	}

	return ok(start, fmt.Sprintf("exec %v: exit code 0", e.Command))
}

// Type returns the health check type
func (e *ExecChecker) Type() CheckType {
	return CheckTypeExec
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
