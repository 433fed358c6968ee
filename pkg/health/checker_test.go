package health

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/easyharun/easyharun/pkg/config"
	"github.com/easyharun/easyharun/pkg/runtime"
	"github.com/easyharun/easyharun/pkg/types"
	"github.com/easyharun/easyharun/pkg/world"
)

func TestTCPChecker(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()

	result := NewTCPChecker(addr).Check(context.Background())
	assert.True(t, result.Healthy, result.Message)
	assert.Equal(t, CheckTypeTCP, NewTCPChecker(addr).Type())

	require.NoError(t, ln.Close())
	result = NewTCPChecker(addr).Check(context.Background())
	assert.False(t, result.Healthy)
	assert.Contains(t, result.Message, "connection failed")
}

type fakeExecer struct {
	res runtime.ExecResult
	err error
	got []string
	id  types.ContainerID
}

func (f *fakeExecer) Exec(ctx context.Context, id types.ContainerID, cmd []string) (runtime.ExecResult, error) {
	f.id = id
	f.got = cmd
	return f.res, f.err
}

func TestExecChecker(t *testing.T) {
	tests := []struct {
		name    string
		execer  *fakeExecer
		command []string
		healthy bool
		message string
	}{
		{
			name:    "exit zero",
			execer:  &fakeExecer{},
			command: []string{"pg_isready"},
			healthy: true,
		},
		{
			name:    "non zero exit",
			execer:  &fakeExecer{res: runtime.ExecResult{ExitCode: 2, Stderr: []byte("no response\n")}},
			command: []string{"pg_isready"},
			message: "exit code 2: no response",
		},
		{
			name:    "exec error",
			execer:  &fakeExecer{err: errors.New("container not running")},
			command: []string{"true"},
			message: "container not running",
		},
		{
			name:    "empty command",
			execer:  &fakeExecer{},
			message: "no command specified",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NewExecChecker(tt.execer, "abc", tt.command).Check(context.Background())
			assert.Equal(t, tt.healthy, result.Healthy)
			if tt.message != "" {
				assert.Contains(t, result.Message, tt.message)
			}
		})
	}
}

func TestExecChecker_RunsInContainer(t *testing.T) {
	execer := &fakeExecer{}
	NewExecChecker(execer, "abc", []string{"cat", "/ready"}).Check(context.Background())

	assert.Equal(t, types.ContainerID("abc"), execer.id)
	assert.Equal(t, []string{"cat", "/ready"}, execer.got)
}

func TestRender(t *testing.T) {
	c := world.Container{
		ContainerPorts: []uint16{80, 9090},
		HostPorts:      map[uint16]uint16{80: 32001, 9090: 32002},
	}

	tests := []struct {
		tmpl    string
		want    string
		wantErr error
	}{
		{tmpl: "http://127.0.0.1:{{container.port_dynamic_host}}/health", want: "http://127.0.0.1:32001/health"},
		{tmpl: "127.0.0.1:{{container.port_dynamic_host_9090}}", want: "127.0.0.1:32002"},
		{tmpl: "{{ container.port_dynamic_host }}-{{container.port_dynamic_host_80}}", want: "32001-32001"},
		{tmpl: "http://example.com/static", want: "http://example.com/static"},
		{tmpl: "127.0.0.1:{{container.port_dynamic_host_8080}}", wantErr: ErrPortNotPublished},
	}

	for _, tt := range tests {
		t.Run(tt.tmpl, func(t *testing.T) {
			got, err := Render(tt.tmpl, c)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRender_NoPorts(t *testing.T) {
	_, err := Render("{{container.port_dynamic_host}}", world.Container{})
	assert.ErrorIs(t, err, ErrPortNotPublished)
}

func TestNewChecker(t *testing.T) {
	c := world.Container{
		ID:             "abc",
		ContainerPorts: []uint16{80},
		HostPorts:      map[uint16]uint16{80: 32001},
	}

	checker, err := NewChecker(config.HealthCheck{
		Name: "h", Check: config.CheckHTTP, URL: "http://127.0.0.1:{{container.port_dynamic_host}}/", TimeoutMS: 300,
	}, c, nil)
	require.NoError(t, err)
	httpChecker, ok := checker.(*HTTPChecker)
	require.True(t, ok)
	assert.Equal(t, "http://127.0.0.1:32001/", httpChecker.URL)
	assert.Equal(t, 300*time.Millisecond, httpChecker.Client.Timeout)

	checker, err = NewChecker(config.HealthCheck{
		Name: "t", Check: config.CheckTCP, Address: "127.0.0.1:{{container.port_dynamic_host_80}}",
	}, c, nil)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:32001", checker.(*TCPChecker).Address)

	checker, err = NewChecker(config.HealthCheck{Name: "e", Check: config.CheckExec, Command: []string{"true"}}, c, &fakeExecer{})
	require.NoError(t, err)
	assert.Equal(t, types.ContainerID("abc"), checker.(*ExecChecker).ContainerID)

	_, err = NewChecker(config.HealthCheck{Name: "x", Check: "grpc"}, c, nil)
	assert.ErrorIs(t, err, ErrUnknownCheckType)

	_, err = NewChecker(config.HealthCheck{Name: "p", Check: config.CheckTCP, Address: "127.0.0.1:{{container.port_dynamic_host_81}}"}, c, nil)
	assert.ErrorIs(t, err, ErrPortNotPublished)
}
