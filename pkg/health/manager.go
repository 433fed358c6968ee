package health

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/easyharun/easyharun/pkg/actor"
	"github.com/easyharun/easyharun/pkg/config"
	"github.com/easyharun/easyharun/pkg/events"
	"github.com/easyharun/easyharun/pkg/kv"
	"github.com/easyharun/easyharun/pkg/log"
	"github.com/easyharun/easyharun/pkg/metrics"
	"github.com/easyharun/easyharun/pkg/runtime"
	"github.com/easyharun/easyharun/pkg/types"
	"github.com/easyharun/easyharun/pkg/world"
)

// Manager keeps exactly one check task running per (container, declared check)
// pair of the runtime's live containers. It is the Behavior of the health
// manager task.
type Manager struct {
	parent   context.Context
	provider *config.Provider
	runtime  runtime.Runtime
	store    *kv.Store
	events   events.Publisher
	spawn    SpawnFunc
	logger   zerolog.Logger

	tasks map[types.ContainerID]map[string]actor.Ref
}

// NewManager creates a manager. Check tasks are spawned under parent, so
// cancelling parent stops them all.
func NewManager(parent context.Context, provider *config.Provider, rt runtime.Runtime, store *kv.Store, publisher events.Publisher, spawn SpawnFunc) *Manager {
	return &Manager{
		parent:   parent,
		provider: provider,
		runtime:  rt,
		store:    store,
		events:   publisher,
		spawn:    spawn,
		logger:   log.WithComponent("health_manager"),
		tasks:    make(map[types.ContainerID]map[string]actor.Ref),
	}
}

// OnMessage triggers an immediate reconcile
func (m *Manager) OnMessage(ctx context.Context, _ struct{}) error {
	return m.Reconcile(ctx)
}

// OnTimer reconciles on every tick
func (m *Manager) OnTimer(ctx context.Context) error {
	return m.Reconcile(ctx)
}

// OnStop kills every running check
func (m *Manager) OnStop(ctx context.Context) {
	for id := range m.tasks {
		m.killContainer(id)
	}
}

// Reconcile spawns checks for new pairs and kills the checks of containers
// that left the runtime
func (m *Manager) Reconcile(ctx context.Context) error {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.ReconciliationDuration, "health")
	metrics.ReconciliationCyclesTotal.WithLabelValues("health").Inc()

	containers, err := m.runtime.List(ctx)
	if err != nil {
		metrics.ReconciliationErrorsTotal.WithLabelValues("health").Inc()
		return fmt.Errorf("failed to list containers: %w", err)
	}

	current, buildErrs := world.FromRuntime(containers, m.store.IsMarkedToBeDeleted)
	for _, err := range buildErrs {
		m.logger.Debug().Err(err).Msg("Skipping container")
	}

	cfg := m.provider.Get()
	live := make(map[types.ContainerID]bool, current.Len())

	for _, c := range current.Containers() {
		live[c.ID] = true
		for _, name := range c.HealthChecks {
			if m.running(c.ID, name) {
				continue
			}

			hc, ok := cfg.HealthCheck(name)
			if !ok {
				m.logger.Warn().
					Str("container_id", c.ID.Short()).
					Str("check", name).
					Msg("Container references unknown health check")
				continue
			}

			checker, err := NewChecker(hc, c, m.runtime)
			if err != nil {
				m.logger.Warn().Err(err).
					Str("container_id", c.ID.Short()).
					Str("check", name).
					Msg("Cannot build health check yet")
				continue
			}

			m.start(CheckSpec{ContainerID: c.ID, Check: hc, Checker: checker})
		}
	}

	for id := range m.tasks {
		if !live[id] {
			m.killContainer(id)
		}
	}

	metrics.HealthChecksRunning.Set(float64(m.Count()))
	return nil
}

func (m *Manager) running(id types.ContainerID, check string) bool {
	ref, ok := m.tasks[id][check]
	return ok && ref.IsAlive()
}

func (m *Manager) start(spec CheckSpec) {
	checks := getOrInsert(m.tasks, spec.ContainerID, func() map[string]actor.Ref {
		return make(map[string]actor.Ref)
	})
	checks[spec.Check.Name] = m.spawn(m.parent, spec)

	m.logger.Info().
		Str("container_id", spec.ContainerID.Short()).
		Str("target", spec.Target()).
		Msg("Started health check")
	events.Publish(m.events, events.EventHealthCheckStarted, spec.Target(), map[string]string{
		"container_id": spec.ContainerID.String(),
		"check":        spec.Check.Name,
	})
}

func (m *Manager) killContainer(id types.ContainerID) {
	for name, ref := range m.tasks[id] {
		ref.RequestShutdown()
		m.logger.Info().
			Str("container_id", id.Short()).
			Str("check", name).
			Msg("Stopped health check")
		events.Publish(m.events, events.EventHealthCheckStopped, kv.Target(name, id), map[string]string{
			"container_id": id.String(),
			"check":        name,
		})
	}
	delete(m.tasks, id)
}

// Count returns the number of tracked check tasks
func (m *Manager) Count() int {
	n := 0
	for _, checks := range m.tasks {
		n += len(checks)
	}
	return n
}

// Pairs returns the tracked (container, check) targets, sorted
func (m *Manager) Pairs() []string {
	var out []string
	for id, checks := range m.tasks {
		for name := range checks {
			out = append(out, kv.Target(name, id))
		}
	}
	sort.Strings(out)
	return out
}

func getOrInsert[K comparable, V any](m map[K]V, key K, create func() V) V {
	if v, ok := m[key]; ok {
		return v
	}
	v := create()
	m[key] = v
	return v
}
