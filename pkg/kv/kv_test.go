package kv

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/easyharun/easyharun/pkg/types"
)

func TestMarkTargetHealthy_WritesOnlyOnChange(t *testing.T) {
	s := New()
	target := Target("http_ok", "abc")

	assert.True(t, s.MarkTargetHealthy("abc", target, true))
	assert.False(t, s.MarkTargetHealthy("abc", target, true))
	assert.Equal(t, uint64(1), s.Writes())
	assert.True(t, s.IsTargetHealthy(target))

	assert.True(t, s.MarkTargetHealthy("abc", target, false))
	assert.Equal(t, uint64(2), s.Writes())
	assert.False(t, s.IsTargetHealthy(target))
}

func TestMarkTargetHealthy_FirstUnhealthyReportIsWritten(t *testing.T) {
	s := New()
	assert.True(t, s.MarkTargetHealthy("abc", "t", false))
	assert.False(t, s.IsTargetHealthy("t"))
	assert.Len(t, s.Snapshot().Health, 1)
}

func TestIsTargetHealthy_Unknown(t *testing.T) {
	assert.False(t, New().IsTargetHealthy("nope"))
}

func TestAllHealthy(t *testing.T) {
	s := New()
	s.MarkTargetHealthy("a", "a1", true)
	s.MarkTargetHealthy("a", "a2", false)

	assert.True(t, s.AllHealthy(nil))
	assert.True(t, s.AllHealthy([]string{"a1"}))
	assert.False(t, s.AllHealthy([]string{"a1", "a2"}))
	assert.False(t, s.AllHealthy([]string{"a1", "unknown"}))
}

func TestMarkToBeDeleted(t *testing.T) {
	s := New()
	id := types.ContainerID("abc")

	assert.False(t, s.IsMarkedToBeDeleted(id))
	s.MarkToBeDeleted(id)
	s.MarkToBeDeleted(id)

	assert.True(t, s.IsMarkedToBeDeleted(id))
	assert.Equal(t, uint64(1), s.Writes())
	assert.Equal(t, []types.ContainerID{id}, s.MarkedToBeDeleted())
}

func TestSnapshot(t *testing.T) {
	s := New()
	s.MarkToBeDeleted("x")
	s.MarkTargetHealthy("b", "check-b", true)
	s.MarkTargetHealthy("a", "check-a", false)

	snap := s.Snapshot()
	require.Len(t, snap.Health, 2)
	assert.Equal(t, "check-a", snap.Health[0].Target)
	assert.Equal(t, types.ContainerID("a"), snap.Health[0].ContainerID)
	assert.True(t, snap.Containers["x"].ShouldBeDeleted)
}

func TestConcurrentAccess(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.MarkTargetHealthy("c", "t", j%2 == 0)
				s.IsTargetHealthy("t")
				s.MarkToBeDeleted(types.ContainerID("c"))
			}
		}(i)
	}
	wg.Wait()

	assert.True(t, s.IsMarkedToBeDeleted("c"))
}

func TestTarget(t *testing.T) {
	assert.Equal(t, "http_ok-abc123", Target("http_ok", "abc123"))
}
