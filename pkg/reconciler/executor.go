package reconciler

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/easyharun/easyharun/pkg/brain"
	"github.com/easyharun/easyharun/pkg/events"
	"github.com/easyharun/easyharun/pkg/kv"
	"github.com/easyharun/easyharun/pkg/log"
	"github.com/easyharun/easyharun/pkg/runtime"
	"github.com/easyharun/easyharun/pkg/world"
)

// Executor carries out brain actions against the runtime and the KV
type Executor struct {
	runtime runtime.Runtime
	store   *kv.Store
	events  events.Publisher
	logger  zerolog.Logger
}

// NewExecutor creates an executor
func NewExecutor(rt runtime.Runtime, store *kv.Store, publisher events.Publisher) *Executor {
	return &Executor{
		runtime: rt,
		store:   store,
		events:  publisher,
		logger:  log.WithComponent("executor"),
	}
}

// Execute runs one action. Stop only marks the container; the reaper
// removes it later so health checks and proxies drop it first.
func (e *Executor) Execute(ctx context.Context, action brain.Action) error {
	switch a := action.(type) {
	case brain.Start:
		return e.start(ctx, a.Container)

	case brain.Stop:
		e.store.MarkToBeDeleted(a.ID)
		e.logger.Info().
			Str("container_id", a.ID.Short()).
			Str("name", a.Container.Name).
			Msg("Container marked for deletion")
		events.Publish(e.events, events.EventContainerMarked, a.Container.Name, map[string]string{
			"container_id": a.ID.String(),
			"image":        a.Container.Image,
		})
		return nil

	case brain.NoOp:
		return nil

	default:
		return fmt.Errorf("unknown action %T", action)
	}
}

func (e *Executor) start(ctx context.Context, c world.Container) error {
	spec := runtime.ContainerSpec{
		Name:   runtime.ContainerName(c.Name, c.ReplicaID),
		Image:  c.Image,
		Ports:  c.ContainerPorts,
		Labels: world.Labels(c),
	}

	id, err := e.runtime.Start(ctx, spec)
	if err != nil {
		events.Publish(e.events, events.EventContainerStartFailed, err.Error(), map[string]string{
			"name":  c.Name,
			"image": c.Image,
		})
		return fmt.Errorf("failed to start container %s: %w", spec.Name, err)
	}

	logger := log.WithContainerID(e.logger, id.Short())
	logger.Info().
		Str("name", spec.Name).
		Str("image", c.Image).
		Msg("Container started")
	events.Publish(e.events, events.EventContainerStarted, spec.Name, map[string]string{
		"container_id": id.String(),
		"image":        c.Image,
		"replica_id":   strconv.Itoa(c.ReplicaID),
	})
	return nil
}
