package proxy

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/easyharun/easyharun/pkg/config"
	"github.com/easyharun/easyharun/pkg/kv"
	"github.com/easyharun/easyharun/pkg/runtime"
	"github.com/easyharun/easyharun/pkg/types"
	"github.com/easyharun/easyharun/pkg/world"
)

type fakeInstance struct {
	mu     sync.Mutex
	msgs   []Msg
	killed atomic.Bool
	done   chan struct{}
}

func newFakeInstance() *fakeInstance {
	return &fakeInstance{done: make(chan struct{})}
}

func (f *fakeInstance) Send(_ context.Context, msg Msg) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msg)
	return nil
}

func (f *fakeInstance) IsAlive() bool { return !f.killed.Load() }

func (f *fakeInstance) RequestShutdown() <-chan struct{} {
	if f.killed.CompareAndSwap(false, true) {
		close(f.done)
	}
	return f.done
}

func (f *fakeInstance) messages() []Msg {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Msg(nil), f.msgs...)
}

type starter struct {
	fail      error
	instances map[string]*fakeInstance
	starts    int
}

func (s *starter) start(_ context.Context, p config.Proxy) (Instancer, error) {
	s.starts++
	if s.fail != nil {
		return nil, s.fail
	}
	inst := newFakeInstance()
	s.instances[p.Listen] = inst
	return inst, nil
}

func proxyConfig() *config.Config {
	cfg := &config.Config{
		Proxies: []config.Proxy{{Name: "web", Listen: "0.0.0.0:8080"}},
	}
	cfg.ApplyDefaults()
	return cfg
}

func addWeb(rt *runtime.MemoryRuntime, id types.ContainerID, hostPort uint16) {
	rt.Add(runtime.Container{
		ID:    id,
		State: runtime.StateRunning,
		Labels: world.Labels(world.Container{
			Name: "web", Image: "img", ContainerPorts: []uint16{80},
			Proxies: []types.ProxyRef{{Name: "web"}},
		}),
		Ports: []runtime.Port{{Private: 80, Public: hostPort, Proto: "tcp"}},
	})
}

func newTestManager(rt runtime.Runtime, store *kv.Store, s *starter) *Manager {
	return NewManager(context.Background(), config.NewProvider(proxyConfig()), rt, store, nil, s.start)
}

func TestManager_StartsProxyAndAddsBackends(t *testing.T) {
	ctx := context.Background()
	rt := runtime.NewMemoryRuntime(0)
	s := &starter{instances: map[string]*fakeInstance{}}
	m := newTestManager(rt, kv.New(), s)

	addWeb(rt, "aaa", 31000)
	addWeb(rt, "bbb", 31001)
	require.NoError(t, m.Reconcile(ctx))

	inst := s.instances["0.0.0.0:8080"]
	require.NotNil(t, inst)
	assert.Len(t, inst.messages(), 2)

	status := m.Status()
	require.Len(t, status, 1)
	assert.Equal(t, "0.0.0.0:8080", status[0].Listen)
	assert.Len(t, status[0].Backends, 2)

	// second pass is a no-op
	require.NoError(t, m.Reconcile(ctx))
	assert.Len(t, inst.messages(), 2)
	assert.Equal(t, 1, s.starts)
}

func TestManager_RemovesMarkedContainers(t *testing.T) {
	ctx := context.Background()
	rt := runtime.NewMemoryRuntime(0)
	store := kv.New()
	s := &starter{instances: map[string]*fakeInstance{}}
	m := newTestManager(rt, store, s)

	addWeb(rt, "aaa", 31000)
	addWeb(rt, "bbb", 31001)
	require.NoError(t, m.Reconcile(ctx))

	store.MarkToBeDeleted("aaa")
	require.NoError(t, m.Reconcile(ctx))

	msgs := s.instances["0.0.0.0:8080"].messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, RemoveAsk{Listen: "0.0.0.0:8080", Addr: "127.0.0.1:31000"}, msgs[2])
}

func TestManager_StopsIdleProxy(t *testing.T) {
	ctx := context.Background()
	rt := runtime.NewMemoryRuntime(0)
	s := &starter{instances: map[string]*fakeInstance{}}
	m := newTestManager(rt, kv.New(), s)

	addWeb(rt, "aaa", 31000)
	require.NoError(t, m.Reconcile(ctx))
	rt.SetState("aaa", runtime.StateExited)
	require.NoError(t, m.Reconcile(ctx))

	assert.False(t, s.instances["0.0.0.0:8080"].IsAlive())
	assert.Empty(t, m.Status())
}

func TestManager_BindFailureRetriesNextTick(t *testing.T) {
	ctx := context.Background()
	rt := runtime.NewMemoryRuntime(0)
	s := &starter{instances: map[string]*fakeInstance{}, fail: errors.New("address in use")}
	m := newTestManager(rt, kv.New(), s)

	addWeb(rt, "aaa", 31000)
	require.NoError(t, m.Reconcile(ctx))
	assert.Empty(t, m.Status())

	s.fail = nil
	require.NoError(t, m.Reconcile(ctx))
	assert.Len(t, m.Status(), 1)
	assert.Equal(t, 2, s.starts)
}

func TestManager_RestartsDeadProxy(t *testing.T) {
	ctx := context.Background()
	rt := runtime.NewMemoryRuntime(0)
	s := &starter{instances: map[string]*fakeInstance{}}
	m := newTestManager(rt, kv.New(), s)

	addWeb(rt, "aaa", 31000)
	require.NoError(t, m.Reconcile(ctx))
	first := s.instances["0.0.0.0:8080"]
	first.RequestShutdown()

	require.NoError(t, m.Reconcile(ctx))
	second := s.instances["0.0.0.0:8080"]
	assert.NotSame(t, first, second)
	assert.Len(t, second.messages(), 1)
}
