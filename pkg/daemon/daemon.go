package daemon

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/easyharun/easyharun/pkg/actor"
	"github.com/easyharun/easyharun/pkg/api"
	"github.com/easyharun/easyharun/pkg/config"
	"github.com/easyharun/easyharun/pkg/events"
	"github.com/easyharun/easyharun/pkg/health"
	"github.com/easyharun/easyharun/pkg/kv"
	"github.com/easyharun/easyharun/pkg/log"
	"github.com/easyharun/easyharun/pkg/metrics"
	"github.com/easyharun/easyharun/pkg/proxy"
	"github.com/easyharun/easyharun/pkg/reconciler"
	"github.com/easyharun/easyharun/pkg/runtime"
)

// Options configures a daemon
type Options struct {
	// ConfigPath is watched for changes when set
	ConfigPath string

	// APIAddr and HTTPAddr disable their server when empty
	APIAddr  string
	HTTPAddr string

	Version string
}

// Daemon owns the shared handles and runs every loop
type Daemon struct {
	opts     Options
	provider *config.Provider
	runtime  runtime.Runtime
	store    *kv.Store
	registry *actor.Registry
	broker   *events.Broker
	health   *metrics.HealthChecker
	proxies  atomic.Pointer[proxy.Manager]
	logger   zerolog.Logger
}

// New creates a daemon for cfg on rt
func New(cfg *config.Config, rt runtime.Runtime, opts Options) *Daemon {
	return &Daemon{
		opts:     opts,
		provider: config.NewProvider(cfg),
		runtime:  rt,
		store:    kv.New(),
		registry: actor.NewRegistry(),
		broker:   events.NewBroker(),
		health:   metrics.NewHealthChecker(opts.Version),
		logger:   log.WithComponent("daemon"),
	}
}

// Provider returns the config provider
func (d *Daemon) Provider() *config.Provider { return d.provider }

// Store returns the shared KV store
func (d *Daemon) Store() *kv.Store { return d.store }

// Registry returns the task registry
func (d *Daemon) Registry() *actor.Registry { return d.registry }

// Broker returns the event broker
func (d *Daemon) Broker() *events.Broker { return d.broker }

// Health returns the component health tracker
func (d *Daemon) Health() *metrics.HealthChecker { return d.health }

// Proxies returns the proxy manager once Run has started it
func (d *Daemon) Proxies() *proxy.Manager { return d.proxies.Load() }

// Run spawns the container, reaper, health and proxy tasks, starts the
// servers and the config watcher, and blocks until ctx is cancelled or a
// server fails. Tick intervals are read once at start.
func (d *Daemon) Run(ctx context.Context) error {
	d.broker.Start()
	defer d.broker.Stop()

	g, ctx := errgroup.WithContext(ctx)

	engine := d.provider.Get().Engine
	spawn := func(name string, b actor.Behavior[struct{}], tick time.Duration) *actor.Task[struct{}] {
		return actor.Spawn[struct{}](ctx, b, actor.Options{
			Name:           name,
			Kind:           name,
			MailboxSize:    engine.MailboxSize,
			Tick:           tick,
			FailureBackoff: engine.FailureBackoff(),
			Registry:       d.registry,
		})
	}

	executor := reconciler.NewExecutor(d.runtime, d.store, d.broker)
	spawn("reconciler",
		reconciler.NewReconciler(d.provider, d.runtime, d.store, executor, d.health),
		engine.ContainerTick())

	if engine.ReapEnabled() {
		spawn("reaper",
			reconciler.NewReaper(d.provider, d.runtime, d.store, d.broker),
			engine.ReapTick())
	}

	healthManager := health.NewManager(ctx, d.provider, d.runtime, d.store, d.broker,
		health.DefaultSpawner(d.store, d.registry, d.broker, engine.FailureBackoff()))
	spawn("health_manager", healthManager, engine.HealthTick())
	d.health.Update(metrics.ComponentHealthChecks, true, "")

	proxies := proxy.NewManager(ctx, d.provider, d.runtime, d.store, d.broker,
		proxy.DefaultStarter(d.store, d.registry, d.broker, engine))
	d.proxies.Store(proxies)
	spawn("proxy_manager", proxies, engine.ProxyTick())
	d.health.Update(metrics.ComponentProxy, true, "")

	d.health.Update(metrics.ComponentConfig, true, d.opts.ConfigPath)
	if d.opts.ConfigPath != "" {
		watcher := config.NewWatcher(d.opts.ConfigPath, d.provider, d.broker)
		g.Go(func() error { return watcher.Run(ctx) })
	}

	if d.opts.APIAddr != "" {
		srv := api.NewServer(api.Deps{
			Registry: d.registry,
			Store:    d.store,
			Proxies:  proxies,
			Broker:   d.broker,
			Provider: d.provider,
			Health:   d.health,
		})
		g.Go(func() error { return srv.ListenAndServe(ctx, d.opts.APIAddr) })
	}

	if d.opts.HTTPAddr != "" {
		hs := api.NewHealthServer(d.health)
		g.Go(func() error { return hs.ListenAndServe(ctx, d.opts.HTTPAddr) })
	}

	g.Go(func() error {
		<-ctx.Done()
		d.logger.Info().Msg("Shutting down")
		d.registry.ShutdownAll()
		return nil
	})

	d.logger.Info().
		Int("containers", len(d.provider.Get().Containers)).
		Int("proxies", len(d.provider.Get().Proxies)).
		Msg("Daemon started")

	if err := g.Wait(); err != nil {
		return fmt.Errorf("daemon stopped: %w", err)
	}
	return nil
}
