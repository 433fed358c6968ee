package health

import (
	"context"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/easyharun/easyharun/pkg/actor"
	"github.com/easyharun/easyharun/pkg/config"
	"github.com/easyharun/easyharun/pkg/kv"
	"github.com/easyharun/easyharun/pkg/runtime"
	"github.com/easyharun/easyharun/pkg/types"
	"github.com/easyharun/easyharun/pkg/world"
)

type fakeRef struct {
	name   string
	killed atomic.Bool
	done   chan struct{}
}

func (f *fakeRef) ID() uint64       { return 0 }
func (f *fakeRef) Name() string     { return f.name }
func (f *fakeRef) Kind() string     { return "health_check" }
func (f *fakeRef) IsAlive() bool    { return !f.killed.Load() }
func (f *fakeRef) Failures() uint64 { return 0 }
func (f *fakeRef) RequestShutdown() <-chan struct{} {
	if f.killed.CompareAndSwap(false, true) {
		close(f.done)
	}
	return f.done
}

type spawnRecorder struct {
	refs []*fakeRef
}

func (s *spawnRecorder) spawn(parent context.Context, spec CheckSpec) actor.Ref {
	ref := &fakeRef{name: spec.Target(), done: make(chan struct{})}
	s.refs = append(s.refs, ref)
	return ref
}

func testConfig() *config.Config {
	cfg := &config.Config{
		HealthChecks: []config.HealthCheck{
			{Name: "a", Check: config.CheckTCP, Address: "127.0.0.1:{{container.port_dynamic_host}}"},
			{Name: "b", Check: config.CheckExec, Command: []string{"true"}},
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

func addContainer(rt *runtime.MemoryRuntime, id types.ContainerID, checks ...string) {
	labels := world.Labels(world.Container{
		Name: "x", Image: "img", ContainerPorts: []uint16{80}, HealthChecks: checks,
	})
	rt.Add(runtime.Container{
		ID: id, State: runtime.StateRunning, Labels: labels,
		Ports: []runtime.Port{{Private: 80, Public: 31000, Proto: "tcp"}},
	})
}

func TestManager_SpawnsAndKillsChecks(t *testing.T) {
	ctx := context.Background()
	rt := runtime.NewMemoryRuntime(0)
	store := kv.New()
	rec := &spawnRecorder{}
	m := NewManager(ctx, config.NewProvider(testConfig()), rt, store, nil, rec.spawn)

	addContainer(rt, "X", "a", "b")
	require.NoError(t, m.Reconcile(ctx))

	assert.Equal(t, 2, m.Count())
	assert.Equal(t, []string{"a-X", "b-X"}, m.Pairs())
	require.Len(t, rec.refs, 2)

	// steady state spawns nothing new
	require.NoError(t, m.Reconcile(ctx))
	assert.Len(t, rec.refs, 2)

	require.NoError(t, rt.StopAndRemove(ctx, "X"))
	require.NoError(t, m.Reconcile(ctx))

	assert.Equal(t, 0, m.Count())
	for _, ref := range rec.refs {
		assert.True(t, ref.killed.Load(), ref.name)
	}
}

func TestManager_UnknownCheckIsSkipped(t *testing.T) {
	ctx := context.Background()
	rt := runtime.NewMemoryRuntime(0)
	rec := &spawnRecorder{}
	m := NewManager(ctx, config.NewProvider(testConfig()), rt, kv.New(), nil, rec.spawn)

	addContainer(rt, "X", "a", "missing")
	require.NoError(t, m.Reconcile(ctx))
	require.NoError(t, m.Reconcile(ctx))

	assert.Equal(t, []string{"a-X"}, m.Pairs())
	assert.Len(t, rec.refs, 1)
}

func TestManager_MarkedContainerLosesChecks(t *testing.T) {
	ctx := context.Background()
	rt := runtime.NewMemoryRuntime(0)
	store := kv.New()
	rec := &spawnRecorder{}
	m := NewManager(ctx, config.NewProvider(testConfig()), rt, store, nil, rec.spawn)

	addContainer(rt, "X", "a")
	require.NoError(t, m.Reconcile(ctx))
	require.Equal(t, 1, m.Count())

	store.MarkToBeDeleted("X")
	require.NoError(t, m.Reconcile(ctx))
	assert.Equal(t, 0, m.Count())
}

func TestManager_RespawnsDeadTask(t *testing.T) {
	ctx := context.Background()
	rt := runtime.NewMemoryRuntime(0)
	rec := &spawnRecorder{}
	m := NewManager(ctx, config.NewProvider(testConfig()), rt, kv.New(), nil, rec.spawn)

	addContainer(rt, "X", "a")
	require.NoError(t, m.Reconcile(ctx))
	rec.refs[0].RequestShutdown()

	require.NoError(t, m.Reconcile(ctx))
	assert.Len(t, rec.refs, 2)
	assert.Equal(t, 1, m.Count())
}

func TestManager_OnStopKillsAll(t *testing.T) {
	ctx := context.Background()
	rt := runtime.NewMemoryRuntime(0)
	rec := &spawnRecorder{}
	m := NewManager(ctx, config.NewProvider(testConfig()), rt, kv.New(), nil, rec.spawn)

	addContainer(rt, "X", "a", "b")
	addContainer(rt, "Y", "a")
	require.NoError(t, m.Reconcile(ctx))
	require.Equal(t, 3, m.Count())

	m.OnStop(ctx)
	assert.Equal(t, 0, m.Count())
}

type staticChecker struct {
	healthy atomic.Bool
}

func (s *staticChecker) Check(ctx context.Context) Result {
	return Result{Healthy: s.healthy.Load(), Message: "static"}
}

func (s *staticChecker) Type() CheckType { return CheckTypeTCP }

func TestCheckTask_ReportsToKV(t *testing.T) {
	store := kv.New()
	checker := &staticChecker{}
	checker.healthy.Store(true)

	task := newCheckTask(CheckSpec{
		ContainerID: "abc",
		Check:       config.HealthCheck{Name: "http_ok"},
		Checker:     checker,
	}, store, nil)

	require.NoError(t, task.OnTimer(context.Background()))
	require.NoError(t, task.OnTimer(context.Background()))
	assert.True(t, store.IsTargetHealthy("http_ok-abc"))
	assert.Equal(t, uint64(1), store.Writes())

	checker.healthy.Store(false)
	require.NoError(t, task.OnTimer(context.Background()))
	assert.False(t, store.IsTargetHealthy("http_ok-abc"))
	assert.Equal(t, uint64(2), store.Writes())
}

func TestDefaultSpawner_ProbesTCP(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	store := kv.New()
	registry := actor.NewRegistry()
	spawn := DefaultSpawner(store, registry, nil, time.Millisecond)

	hc := config.HealthCheck{Name: "tcp_ok", Check: config.CheckTCP, IntervalMS: 10, TimeoutMS: 200}
	ref := spawn(context.Background(), CheckSpec{
		ContainerID: "abc",
		Check:       hc,
		Checker:     NewTCPChecker(ln.Addr().String()),
	})
	defer func() { <-ref.RequestShutdown() }()

	assert.Eventually(t, func() bool { return store.IsTargetHealthy("tcp_ok-abc") }, 2*time.Second, 10*time.Millisecond)
	require.Len(t, registry.List(), 1)
	assert.Equal(t, "tcp_ok-abc", registry.List()[0].Name)
}
