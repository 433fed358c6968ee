package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/easyharun/easyharun/pkg/events"
)

type recordingPublisher struct {
	events []*events.Event
}

func (r *recordingPublisher) Publish(ev *events.Event) {
	r.events = append(r.events, ev)
}

func TestWatcher_ReloadKeepsOldConfigOnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "easyharun.toml")
	require.NoError(t, os.WriteFile(path, []byte(sampleTOML), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	provider := NewProvider(cfg)
	pub := &recordingPublisher{}
	w := NewWatcher(path, provider, pub)

	require.NoError(t, os.WriteFile(path, []byte("[[container]\n"), 0o644))
	require.Error(t, w.Reload())
	assert.Same(t, cfg, provider.Get())
	assert.Equal(t, uint64(1), provider.Version())

	updated := strings.Replace(sampleTOML, "replicas = 2", "replicas = 5", 1)
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))
	require.NoError(t, w.Reload())
	assert.Equal(t, 5, provider.Get().Containers[0].Replicas)

	require.Len(t, pub.events, 2)
	assert.Equal(t, events.EventConfigRejected, pub.events[0].Type)
	assert.Equal(t, events.EventConfigReloaded, pub.events[1].Type)
}

func TestWatcher_RunPicksUpChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "easyharun.toml")
	require.NoError(t, os.WriteFile(path, []byte(sampleTOML), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	provider := NewProvider(cfg)
	w := NewWatcher(path, provider, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// give the watcher time to register before writing
	time.Sleep(100 * time.Millisecond)
	updated := strings.Replace(sampleTOML, "replicas = 2", "replicas = 3", 1)
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))

	require.Eventually(t, func() bool {
		return provider.Get().Containers[0].Replicas == 3
	}, 3*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop")
	}
}
