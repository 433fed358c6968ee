package reconciler

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/easyharun/easyharun/pkg/brain"
	"github.com/easyharun/easyharun/pkg/config"
	"github.com/easyharun/easyharun/pkg/kv"
	"github.com/easyharun/easyharun/pkg/log"
	"github.com/easyharun/easyharun/pkg/metrics"
	"github.com/easyharun/easyharun/pkg/runtime"
	"github.com/easyharun/easyharun/pkg/world"
)

// Reconciler drives containers towards the configured world, one action
// per tick. It is the Behavior of the container task.
type Reconciler struct {
	provider *config.Provider
	runtime  runtime.Runtime
	store    *kv.Store
	executor *Executor
	health   *metrics.HealthChecker
	logger   zerolog.Logger
}

// NewReconciler creates a reconciler. health may be nil.
func NewReconciler(provider *config.Provider, rt runtime.Runtime, store *kv.Store, executor *Executor, health *metrics.HealthChecker) *Reconciler {
	return &Reconciler{
		provider: provider,
		runtime:  rt,
		store:    store,
		executor: executor,
		health:   health,
		logger:   log.WithComponent("reconciler"),
	}
}

// OnMessage triggers an immediate reconcile
func (r *Reconciler) OnMessage(ctx context.Context, _ struct{}) error {
	return r.Reconcile(ctx)
}

// OnTimer reconciles on every tick
func (r *Reconciler) OnTimer(ctx context.Context) error {
	return r.Reconcile(ctx)
}

// Reconcile observes both worlds, decides and executes at most one action
func (r *Reconciler) Reconcile(ctx context.Context) error {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.ReconciliationDuration, "container")
	metrics.ReconciliationCyclesTotal.WithLabelValues("container").Inc()

	action, err := r.plan(ctx)
	if err != nil {
		metrics.ReconciliationErrorsTotal.WithLabelValues("container").Inc()
		r.report(metrics.ComponentReconciler, err)
		return err
	}

	metrics.BrainActionsTotal.WithLabelValues(action.Kind()).Inc()
	if err := r.executor.Execute(ctx, action); err != nil {
		metrics.ReconciliationErrorsTotal.WithLabelValues("container").Inc()
		r.report(metrics.ComponentReconciler, err)
		return err
	}

	r.report(metrics.ComponentReconciler, nil)
	return nil
}

func (r *Reconciler) plan(ctx context.Context) (brain.Action, error) {
	cfg := r.provider.Get()

	key, err := world.KeyFor(cfg.Engine.Match)
	if err != nil {
		return nil, err
	}

	containers, err := r.runtime.List(ctx)
	r.report(metrics.ComponentRuntime, err)
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}

	current, buildErrs := world.FromRuntime(containers, r.store.IsMarkedToBeDeleted)
	for _, err := range buildErrs {
		metrics.ContainerBuildErrorsTotal.Inc()
		r.logger.Warn().Err(err).Msg("Skipping container with malformed labels")
	}
	expected := world.FromConfig(cfg)

	metrics.ContainersCurrent.Set(float64(current.Len()))
	metrics.ContainersExpected.Set(float64(expected.Len()))

	diff := world.DiffBy(key, current, expected)
	action, err := brain.Decide(diff)
	if errors.Is(err, brain.ErrStopWithoutID) {
		r.logger.Error().Err(err).Msg("Dropping action")
		return brain.NoOp{}, nil
	}
	if err != nil {
		return nil, err
	}

	if !diff.IsEmpty() {
		r.logger.Debug().
			Int("missing", len(diff.Missing)).
			Int("extra", len(diff.Extra)).
			Str("action", action.Kind()).
			Msg("Worlds differ")
	}
	return action, nil
}

func (r *Reconciler) report(component string, err error) {
	if r.health == nil {
		return
	}
	if err != nil {
		r.health.Update(component, false, err.Error())
		return
	}
	r.health.Update(component, true, "")
}
