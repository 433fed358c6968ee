package runtime

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-connections/nat"
	"github.com/rs/zerolog"

	"github.com/easyharun/easyharun/pkg/log"
	"github.com/easyharun/easyharun/pkg/types"
)

const (
	pullMaxRetries    = 3
	pullInitialDelay  = 500 * time.Millisecond
	stopTimeoutSecond = 10
)

// DockerRuntime implements Runtime against the Docker Engine API
type DockerRuntime struct {
	cli    client.APIClient
	logger zerolog.Logger
}

var _ Runtime = (*DockerRuntime)(nil)

// NewDockerRuntime creates a Docker client from the environment
// (DOCKER_HOST, DOCKER_CERT_PATH, ...)
func NewDockerRuntime() (*DockerRuntime, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return NewDockerRuntimeFromClient(cli), nil
}

// NewDockerRuntimeFromClient wraps an existing Docker client
func NewDockerRuntimeFromClient(cli client.APIClient) *DockerRuntime {
	return &DockerRuntime{
		cli:    cli,
		logger: log.WithComponent("runtime"),
	}
}

// Ping checks that the Docker daemon is reachable
func (r *DockerRuntime) Ping(ctx context.Context) error {
	if _, err := r.cli.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping docker: %w", err)
	}
	return nil
}

// Close closes the Docker client
func (r *DockerRuntime) Close() error {
	return r.cli.Close()
}

// List returns all containers carrying the easyharun ownership label
func (r *DockerRuntime) List(ctx context.Context) ([]Container, error) {
	summaries, err := r.cli.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filters.NewArgs(filters.Arg("label", types.OwnerFilter())),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}

	containers := make([]Container, 0, len(summaries))
	for _, s := range summaries {
		c := Container{
			ID:     types.ContainerID(s.ID),
			Image:  s.Image,
			State:  strings.ToLower(string(s.State)),
			Labels: s.Labels,
		}
		if len(s.Names) > 0 {
			c.Name = strings.TrimPrefix(s.Names[0], "/")
		}

		// docker reports one entry per host address family; keep the first
		seen := make(map[string]bool)
		for _, p := range s.Ports {
			key := strconv.Itoa(int(p.PrivatePort)) + "/" + p.Type
			if seen[key] || p.PublicPort == 0 {
				continue
			}
			seen[key] = true
			c.Ports = append(c.Ports, Port{Private: p.PrivatePort, Public: p.PublicPort, Proto: p.Type})
		}
		containers = append(containers, c)
	}
	return containers, nil
}

// Start creates and starts a container. When the image is missing locally it
// is pulled and the create is retried once.
func (r *DockerRuntime) Start(ctx context.Context, spec ContainerSpec) (types.ContainerID, error) {
	exposed := make(nat.PortSet, len(spec.Ports))
	bindings := make(nat.PortMap, len(spec.Ports))
	for _, p := range spec.Ports {
		port := nat.Port(fmt.Sprintf("%d/tcp", p))
		exposed[port] = struct{}{}
		bindings[port] = []nat.PortBinding{{HostIP: "0.0.0.0", HostPort: ""}}
	}

	containerCfg := &container.Config{
		Image:        spec.Image,
		Labels:       spec.Labels,
		ExposedPorts: exposed,
	}
	hostCfg := &container.HostConfig{
		PortBindings: bindings,
	}

	resp, err := r.cli.ContainerCreate(ctx, containerCfg, hostCfg, nil, nil, spec.Name)
	if err != nil {
		if !errdefs.IsNotFound(err) {
			return "", fmt.Errorf("failed to create container %s: %w", spec.Name, err)
		}
		if err := r.pullImage(ctx, spec.Image); err != nil {
			return "", err
		}
		resp, err = r.cli.ContainerCreate(ctx, containerCfg, hostCfg, nil, nil, spec.Name)
		if err != nil {
			return "", fmt.Errorf("failed to create container %s after pull: %w", spec.Name, err)
		}
	}

	id := types.ContainerID(resp.ID)
	if err := r.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		// don't leave a created but never started container behind
		if rmErr := r.cli.ContainerRemove(ctx, resp.ID, container.RemoveOptions{Force: true}); rmErr != nil {
			r.logger.Warn().Err(rmErr).Str("container_id", id.Short()).Msg("Failed to remove container after start failure")
		}
		return "", fmt.Errorf("failed to start container %s: %w", spec.Name, err)
	}

	r.logger.Info().
		Str("container_id", id.Short()).
		Str("name", spec.Name).
		Str("image", spec.Image).
		Msg("Container started")
	return id, nil
}

// pullImage pulls an image, retrying transient failures with exponential backoff
func (r *DockerRuntime) pullImage(ctx context.Context, ref string) error {
	r.logger.Info().Str("image", ref).Msg("Pulling image")

	pull := func() error {
		rc, err := r.cli.ImagePull(ctx, ref, image.PullOptions{})
		if err != nil {
			if errdefs.IsNotFound(err) || errdefs.IsUnauthorized(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		defer rc.Close()
		_, err = io.Copy(io.Discard, rc)
		return err
	}

	b := backoff.NewExponentialBackOff(backoff.WithInitialInterval(pullInitialDelay))
	if err := backoff.Retry(pull, backoff.WithContext(backoff.WithMaxRetries(b, pullMaxRetries), ctx)); err != nil {
		return fmt.Errorf("failed to pull image %s: %w", ref, err)
	}
	return nil
}

// StopAndRemove stops and removes a container. NotFound is ignored at both steps.
func (r *DockerRuntime) StopAndRemove(ctx context.Context, id types.ContainerID) error {
	timeout := stopTimeoutSecond
	if err := r.cli.ContainerStop(ctx, id.String(), container.StopOptions{Timeout: &timeout}); err != nil {
		if !errdefs.IsNotFound(err) {
			return fmt.Errorf("failed to stop container %s: %w", id.Short(), err)
		}
	}
	if err := r.cli.ContainerRemove(ctx, id.String(), container.RemoveOptions{Force: true}); err != nil {
		if !errdefs.IsNotFound(err) {
			return fmt.Errorf("failed to remove container %s: %w", id.Short(), err)
		}
	}
	return nil
}

// Exec runs cmd inside the container and waits for it to finish
func (r *DockerRuntime) Exec(ctx context.Context, id types.ContainerID, cmd []string) (ExecResult, error) {
	resp, err := r.cli.ContainerExecCreate(ctx, id.String(), container.ExecOptions{
		Cmd:          cmd,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		if errdefs.IsNotFound(err) {
			return ExecResult{}, fmt.Errorf("%w: %s", ErrNotFound, id.Short())
		}
		return ExecResult{}, fmt.Errorf("failed to create exec %v: %w", cmd, err)
	}

	attach, err := r.cli.ContainerExecAttach(ctx, resp.ID, container.ExecAttachOptions{})
	if err != nil {
		return ExecResult{}, fmt.Errorf("failed to attach exec %v: %w", cmd, err)
	}
	defer attach.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, attach.Reader); err != nil {
		return ExecResult{}, fmt.Errorf("failed to read exec output %v: %w", cmd, err)
	}

	info, err := r.cli.ContainerExecInspect(ctx, resp.ID)
	if err != nil {
		return ExecResult{}, fmt.Errorf("failed to inspect exec %v: %w", cmd, err)
	}

	return ExecResult{
		ExitCode: info.ExitCode,
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
	}, nil
}
