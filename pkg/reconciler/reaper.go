package reconciler

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/easyharun/easyharun/pkg/config"
	"github.com/easyharun/easyharun/pkg/events"
	"github.com/easyharun/easyharun/pkg/kv"
	"github.com/easyharun/easyharun/pkg/log"
	"github.com/easyharun/easyharun/pkg/metrics"
	"github.com/easyharun/easyharun/pkg/runtime"
)

// Reaper stops and removes containers marked for deletion, and exited or
// dead containers left behind by failed starts
type Reaper struct {
	provider *config.Provider
	runtime  runtime.Runtime
	store    *kv.Store
	events   events.Publisher
	logger   zerolog.Logger
}

// NewReaper creates a reaper
func NewReaper(provider *config.Provider, rt runtime.Runtime, store *kv.Store, publisher events.Publisher) *Reaper {
	return &Reaper{
		provider: provider,
		runtime:  rt,
		store:    store,
		events:   publisher,
		logger:   log.WithComponent("reaper"),
	}
}

func (r *Reaper) OnMessage(ctx context.Context, _ struct{}) error {
	return r.Reap(ctx)
}

func (r *Reaper) OnTimer(ctx context.Context) error {
	return r.Reap(ctx)
}

// Reap removes every marked container still present, along with owned
// containers that have exited or died. It keeps going after a failed removal
// and returns the joined errors.
func (r *Reaper) Reap(ctx context.Context) error {
	if !r.provider.Get().Engine.ReapEnabled() {
		return nil
	}

	containers, err := r.runtime.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list containers: %w", err)
	}

	var errs []error
	for _, c := range containers {
		reason := ""
		switch {
		case r.store.IsMarkedToBeDeleted(c.ID):
			reason = "marked"
		case c.Gone():
			reason = "gone"
		default:
			continue
		}

		if err := r.runtime.StopAndRemove(ctx, c.ID); err != nil {
			errs = append(errs, fmt.Errorf("failed to remove container %s: %w", c.ID.Short(), err))
			continue
		}

		metrics.ContainersReapedTotal.Inc()
		logger := log.WithContainerID(r.logger, c.ID.Short())
		logger.Info().Str("reason", reason).Str("state", c.State).Msg("Container removed")
		events.Publish(r.events, events.EventContainerReaped, c.ID.Short(), map[string]string{
			"container_id": c.ID.String(),
			"reason":       reason,
		})
	}
	return errors.Join(errs...)
}
