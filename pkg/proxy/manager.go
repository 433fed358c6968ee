package proxy

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/easyharun/easyharun/pkg/actor"
	"github.com/easyharun/easyharun/pkg/config"
	"github.com/easyharun/easyharun/pkg/events"
	"github.com/easyharun/easyharun/pkg/kv"
	"github.com/easyharun/easyharun/pkg/log"
	"github.com/easyharun/easyharun/pkg/metrics"
	"github.com/easyharun/easyharun/pkg/runtime"
	"github.com/easyharun/easyharun/pkg/world"
)

// Instancer is what the manager needs from a running proxy
type Instancer interface {
	Send(ctx context.Context, msg Msg) error
	IsAlive() bool
	RequestShutdown() <-chan struct{}
}

// StartFunc starts the proxy for one configured listen address
type StartFunc func(parent context.Context, p config.Proxy) (Instancer, error)

// Handle is the manager's view of one proxy. It tracks the backends the
// manager has sent so the current world never has to ask the proxy.
type Handle struct {
	Listen   string
	instance Instancer
	backends map[string]Backend
}

func newHandle(listen string, instance Instancer) *Handle {
	return &Handle{Listen: listen, instance: instance, backends: make(map[string]Backend)}
}

// Add sends Add to the proxy and records the backend once delivered
func (h *Handle) Add(ctx context.Context, b Backend) error {
	if err := h.instance.Send(ctx, Add{Listen: h.Listen, Backend: b}); err != nil {
		return err
	}
	h.backends[b.Addr] = b
	return nil
}

// RemoveAsk sends RemoveAsk to the proxy and forgets the backend once delivered
func (h *Handle) RemoveAsk(ctx context.Context, addr string) error {
	if err := h.instance.Send(ctx, RemoveAsk{Listen: h.Listen, Addr: addr}); err != nil {
		return err
	}
	delete(h.backends, addr)
	return nil
}

// Backends returns the tracked backends ordered by address
func (h *Handle) Backends() []Backend {
	e := &Entry{Listen: h.Listen, Backends: h.backends}
	return e.Sorted()
}

// Status is a snapshot of one proxy for the control plane
type Status struct {
	Listen   string
	Alive    bool
	Backends []Backend
}

// Manager keeps one TCP proxy per listen address the live containers need
// and feeds them backend changes. It is the Behavior of the proxy manager task.
type Manager struct {
	parent   context.Context
	provider *config.Provider
	runtime  runtime.Runtime
	store    *kv.Store
	events   events.Publisher
	start    StartFunc
	logger   zerolog.Logger

	handles  map[string]*Handle
	snapshot atomic.Pointer[[]Status]
}

// NewManager creates a proxy manager. Proxies are started under parent.
func NewManager(parent context.Context, provider *config.Provider, rt runtime.Runtime, store *kv.Store, publisher events.Publisher, start StartFunc) *Manager {
	m := &Manager{
		parent:   parent,
		provider: provider,
		runtime:  rt,
		store:    store,
		events:   publisher,
		start:    start,
		logger:   log.WithComponent("proxy_manager"),
		handles:  make(map[string]*Handle),
	}
	m.snapshot.Store(&[]Status{})
	return m
}

// DefaultStarter returns a StartFunc that binds real TCP proxies
func DefaultStarter(store *kv.Store, registry *actor.Registry, publisher events.Publisher, engine config.Engine) StartFunc {
	return func(parent context.Context, p config.Proxy) (Instancer, error) {
		inst, err := StartTCPProxy(parent, TCPProxyOptions{
			Listen:             p.Listen,
			Store:              store,
			RateLimitPerSecond: p.RateLimitPerSecond,
			RateLimitBurst:     p.RateLimitBurst,
			FailureBackoff:     engine.FailureBackoff(),
			MailboxSize:        engine.MailboxSize,
			Registry:           registry,
			Events:             publisher,
		})
		if err != nil {
			return nil, err
		}
		return inst, nil
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

// OnStop shuts every proxy down
func (m *Manager) OnStop(context.Context) {
	for listen, h := range m.handles {
		<-h.instance.RequestShutdown()
		delete(m.handles, listen)
	}
	m.publishSnapshot()
}

// Reconcile diffs the running proxies against the ones the live containers
// declare and applies the resulting Add and RemoveAsk actions
func (m *Manager) Reconcile(ctx context.Context) error {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.ReconciliationDuration, "proxy")
	metrics.ReconciliationCyclesTotal.WithLabelValues("proxy").Inc()
	defer m.publishSnapshot()

	containers, err := m.runtime.List(ctx)
	if err != nil {
		metrics.ReconciliationErrorsTotal.WithLabelValues("proxy").Inc()
		return fmt.Errorf("failed to list containers: %w", err)
	}

	live, buildErrs := world.FromRuntime(containers, m.store.IsMarkedToBeDeleted)
	for _, err := range buildErrs {
		m.logger.Debug().Err(err).Msg("Skipping container")
	}

	cfg := m.provider.Get()
	expected, warnings := Expected(cfg, live)
	for _, w := range warnings {
		m.logger.Warn().Msg(w)
	}

	m.dropDead()

	for _, action := range Think(Worlds{Current: m.current(), Expected: expected}) {
		switch a := action.(type) {
		case Add:
			h, err := m.handle(a.Listen, cfg)
			if err != nil {
				m.logger.Error().Err(err).Str("listen_addr", a.Listen).Msg("Failed to start proxy, retrying next tick")
				continue
			}
			if err := h.Add(ctx, a.Backend); err != nil {
				return fmt.Errorf("failed to add backend %s to %s: %w", a.Backend.Addr, a.Listen, err)
			}
			events.Publish(m.events, events.EventProxyBackendAdded, a.Backend.Addr, map[string]string{
				"listen":       a.Listen,
				"backend":      a.Backend.Addr,
				"container_id": a.Backend.ContainerID.String(),
			})

		case RemoveAsk:
			h, ok := m.handles[a.Listen]
			if !ok {
				m.logger.Warn().Str("listen_addr", a.Listen).Str("backend", a.Addr).Msg("RemoveAsk for unknown proxy")
				continue
			}
			if err := h.RemoveAsk(ctx, a.Addr); err != nil {
				return fmt.Errorf("failed to remove backend %s from %s: %w", a.Addr, a.Listen, err)
			}
			events.Publish(m.events, events.EventProxyBackendRemoved, a.Addr, map[string]string{
				"listen":  a.Listen,
				"backend": a.Addr,
			})
		}
	}

	m.stopIdle(expected)
	return nil
}

// current is the proxy world as the handles remember it
func (m *Manager) current() World {
	w := make(World, len(m.handles))
	for listen, h := range m.handles {
		e := &Entry{Listen: listen, Backends: make(map[string]Backend, len(h.backends))}
		for addr, b := range h.backends {
			e.Backends[addr] = b
		}
		w[listen] = e
	}
	return w
}

// handle returns the proxy for listen, starting it when needed
func (m *Manager) handle(listen string, cfg *config.Config) (*Handle, error) {
	if h, ok := m.handles[listen]; ok {
		return h, nil
	}

	p := proxyForListen(cfg, listen)
	instance, err := m.start(m.parent, p)
	if err != nil {
		return nil, err
	}
	h := newHandle(listen, instance)
	m.handles[listen] = h
	return h, nil
}

// dropDead forgets proxies whose task has stopped. Their backends are
// re-added to a fresh instance in the same pass.
func (m *Manager) dropDead() {
	for listen, h := range m.handles {
		if !h.instance.IsAlive() {
			m.logger.Warn().Str("listen_addr", listen).Msg("Proxy is not alive, restarting")
			delete(m.handles, listen)
		}
	}
}

// stopIdle shuts down proxies no container asks for any more
func (m *Manager) stopIdle(expected World) {
	for listen, h := range m.handles {
		if _, ok := expected[listen]; ok || len(h.backends) > 0 {
			continue
		}
		h.instance.RequestShutdown()
		delete(m.handles, listen)
		m.logger.Info().Str("listen_addr", listen).Msg("Stopped idle proxy")
	}
}

func (m *Manager) publishSnapshot() {
	out := make([]Status, 0, len(m.handles))
	for listen, h := range m.handles {
		out = append(out, Status{Listen: listen, Alive: h.instance.IsAlive(), Backends: h.Backends()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Listen < out[j].Listen })
	m.snapshot.Store(&out)
}

// Status returns the proxies as of the last reconcile. Safe to call from any
// goroutine.
func (m *Manager) Status() []Status {
	return *m.snapshot.Load()
}

// proxyForListen finds the configured proxy on listen. Several proxies may
// share an address; the first one's rate limit wins.
func proxyForListen(cfg *config.Config, listen string) config.Proxy {
	for _, p := range cfg.Proxies {
		if p.Listen == listen {
			return p
		}
	}
	return config.Proxy{Listen: listen}
}
