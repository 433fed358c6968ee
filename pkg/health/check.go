package health

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/easyharun/easyharun/pkg/actor"
	"github.com/easyharun/easyharun/pkg/config"
	"github.com/easyharun/easyharun/pkg/events"
	"github.com/easyharun/easyharun/pkg/kv"
	"github.com/easyharun/easyharun/pkg/log"
	"github.com/easyharun/easyharun/pkg/metrics"
	"github.com/easyharun/easyharun/pkg/types"
)

// CheckSpec is one (container, check) pair with its resolved checker
type CheckSpec struct {
	ContainerID types.ContainerID
	Check       config.HealthCheck
	Checker     Checker
}

// Target is the KV key the check reports to
func (s CheckSpec) Target() string {
	return kv.Target(s.Check.Name, s.ContainerID)
}

// checkTask probes one target on its own timer and reports to the KV
type checkTask struct {
	spec    CheckSpec
	target  string
	store   *kv.Store
	events  events.Publisher
	timeout time.Duration
	logger  zerolog.Logger
}

func newCheckTask(spec CheckSpec, store *kv.Store, publisher events.Publisher) *checkTask {
	target := spec.Target()
	return &checkTask{
		spec:    spec,
		target:  target,
		store:   store,
		events:  publisher,
		timeout: spec.Check.Timeout(),
		logger:  log.WithTarget(log.WithContainerID(log.WithComponent("health_check"), spec.ContainerID.Short()), target),
	}
}

func (c *checkTask) OnMessage(ctx context.Context, _ struct{}) error {
	return c.OnTimer(ctx)
}

// OnTimer runs one probe. A failing probe is an outcome, not a task failure.
func (c *checkTask) OnTimer(ctx context.Context) error {
	probeCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	res := c.spec.Checker.Check(probeCtx)
	if ctx.Err() != nil {
		// killed mid-probe, the result says nothing about the container
		return nil
	}

	outcome := "ok"
	if !res.Healthy {
		outcome = "failed"
	}
	metrics.HealthCheckResultsTotal.WithLabelValues(c.spec.Check.Name, outcome).Inc()
	metrics.HealthCheckDuration.WithLabelValues(string(c.spec.Checker.Type())).Observe(res.Duration.Seconds())

	if !c.store.MarkTargetHealthy(c.spec.ContainerID, c.target, res.Healthy) {
		return nil
	}

	if res.Healthy {
		c.logger.Info().Msg("Health check ok")
	} else {
		c.logger.Warn().Str("reason", res.Message).Msg("Health check failed")
	}
	events.Publish(c.events, events.EventHealthChanged, res.Message, map[string]string{
		"container_id": c.spec.ContainerID.String(),
		"target":       c.target,
		"healthy":      boolString(res.Healthy),
	})
	return nil
}

// SpawnFunc starts the task running one check. Tests replace it to observe
// spawns and kills without real probes.
type SpawnFunc func(parent context.Context, spec CheckSpec) actor.Ref

// DefaultSpawner returns a SpawnFunc that runs real check tasks
func DefaultSpawner(store *kv.Store, registry *actor.Registry, publisher events.Publisher, backoff time.Duration) SpawnFunc {
	return func(parent context.Context, spec CheckSpec) actor.Ref {
		return actor.Spawn[struct{}](parent, newCheckTask(spec, store, publisher), actor.Options{
			Name:           spec.Target(),
			Kind:           "health_check",
			MailboxSize:    1,
			Tick:           spec.Check.Interval(),
			FailureBackoff: backoff,
			Registry:       registry,
		})
	}
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
