package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTOML = `
[engine]
container_tick_ms = 200
match = "name_image"

[[proxy]]
name = "web"
listen = "127.0.0.1:8080"
rate_limit_per_second = 50.0
rate_limit_burst = 10

[[health_check]]
name = "http_ok"
check = "http"
url = "http://127.0.0.1:{{container.port_dynamic_host}}/health"

[[container]]
name = "web"
image = "nginx:alpine"
replicas = 2
container_ports = [80, 443]
health_checks = ["http_ok"]
proxies = [{ name = "web", container_port = 80 }]
`

const sampleYAML = `
proxy:
  - name: web
    listen: 127.0.0.1:8080
health_check:
  - name: tcp_ok
    check: tcp
    address: "127.0.0.1:{{container.port_dynamic_host_80}}"
    interval_ms: 500
container:
  - name: web
    image: nginx:alpine
    replicas: 1
    container_ports: [80]
    health_checks: [tcp_ok]
    proxies:
      - name: web
`

func TestParse_TOML(t *testing.T) {
	cfg, err := Parse([]byte(sampleTOML), FormatTOML)
	require.NoError(t, err)

	assert.Equal(t, 200*time.Millisecond, cfg.Engine.ContainerTick())
	assert.Equal(t, time.Duration(DefaultHealthTickMS)*time.Millisecond, cfg.Engine.HealthTick())
	assert.Equal(t, MatchNameImage, cfg.Engine.Match)
	assert.True(t, cfg.Engine.ReapEnabled())

	require.Len(t, cfg.Containers, 1)
	ct := cfg.Containers[0]
	assert.Equal(t, []uint16{80, 443}, ct.ContainerPorts)
	assert.Equal(t, []ContainerProxy{{Name: "web", ContainerPort: 80}}, ct.Proxies)

	p, ok := cfg.Proxy("web")
	require.True(t, ok)
	assert.Equal(t, 50.0, p.RateLimitPerSecond)

	hc, ok := cfg.HealthCheck("http_ok")
	require.True(t, ok)
	assert.Equal(t, 250*time.Millisecond, hc.Interval())
	assert.Equal(t, time.Second, hc.Timeout())
}

func TestParse_YAML(t *testing.T) {
	cfg, err := Parse([]byte(sampleYAML), FormatYAML)
	require.NoError(t, err)

	assert.Equal(t, MatchImagePort, cfg.Engine.Match)
	hc, ok := cfg.HealthCheck("tcp_ok")
	require.True(t, ok)
	assert.Equal(t, 500*time.Millisecond, hc.Interval())
	assert.Equal(t, []ContainerProxy{{Name: "web"}}, cfg.Containers[0].Proxies)
}

func TestParse_EmptyYAML(t *testing.T) {
	cfg, err := Parse(nil, FormatYAML)
	require.NoError(t, err)
	assert.Empty(t, cfg.Containers)
}

func TestParse_RejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("[[container]]\nname = \"a\"\nimage = \"b\"\ncontainer_ports = [1]\nbogus = 1\n"), FormatTOML)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bogus")

	_, err = Parse([]byte("container:\n  - name: a\n    bogus: 1\n"), FormatYAML)
	require.Error(t, err)
}

func TestParse_ReapDisabled(t *testing.T) {
	cfg, err := Parse([]byte("[engine]\nreap = false\n"), FormatTOML)
	require.NoError(t, err)
	assert.False(t, cfg.Engine.ReapEnabled())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr []string
	}{
		{
			name: "valid",
			cfg: Config{
				Containers: []Container{{Name: "a", Image: "img", Replicas: 1, ContainerPorts: []uint16{80}}},
			},
		},
		{
			name: "multiple problems joined",
			cfg: Config{
				Engine: Engine{Match: "random"},
				Proxies: []Proxy{
					{Name: "p", Listen: "nope"},
					{Name: "p", Listen: "127.0.0.1:1"},
				},
				HealthChecks: []HealthCheck{{Name: "h", Check: "grpc"}},
				Containers: []Container{
					{Name: "a", Replicas: -1, ContainerPorts: []uint16{0}},
				},
			},
			wantErr: []string{
				`unknown match strategy "random"`,
				`proxy "p": invalid listen address`,
				`proxy "p": duplicate name`,
				`unknown check type "grpc"`,
				`container "a": image is required`,
				`replicas must not be negative`,
				`container port 0 is invalid`,
			},
		},
		{
			name: "proxy on undeclared port",
			cfg: Config{
				Containers: []Container{{
					Name: "a", Image: "img", ContainerPorts: []uint16{80},
					Proxies: []ContainerProxy{{Name: "p", ContainerPort: 81}},
				}},
			},
			wantErr: []string{"targets undeclared port 81"},
		},
		{
			name: "check without target",
			cfg: Config{
				HealthChecks: []HealthCheck{
					{Name: "h1", Check: CheckHTTP},
					{Name: "h2", Check: CheckTCP},
					{Name: "h3", Check: CheckExec},
				},
			},
			wantErr: []string{"url is required", "address is required", "command is required"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if len(tt.wantErr) == 0 {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			for _, want := range tt.wantErr {
				assert.Contains(t, err.Error(), want)
			}
		})
	}
}

func TestWarnings(t *testing.T) {
	cfg := Config{
		HealthChecks: []HealthCheck{{Name: "known", Check: CheckTCP, Address: "x:1"}},
		Containers: []Container{{
			Name:         "a",
			HealthChecks: []string{"known", "missing"},
			Proxies:      []ContainerProxy{{Name: "nowhere"}},
		}},
	}

	assert.Equal(t, []string{
		`container "a": unknown health check "missing"`,
		`container "a": unknown proxy "nowhere"`,
	}, cfg.Warnings())
}

func TestFormatFromPath(t *testing.T) {
	f, err := FormatFromPath("/etc/easyharun.TOML")
	require.NoError(t, err)
	assert.Equal(t, FormatTOML, f)

	f, err = FormatFromPath("easyharun.yml")
	require.NoError(t, err)
	assert.Equal(t, FormatYAML, f)

	_, err = FormatFromPath("easyharun.json")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "easyharun.toml")
	require.NoError(t, os.WriteFile(path, []byte(sampleTOML), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, cfg.Containers, 1)

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestProvider(t *testing.T) {
	first := &Config{}
	p := NewProvider(first)
	assert.Same(t, first, p.Get())
	assert.Equal(t, uint64(1), p.Version())

	second := &Config{}
	p.Set(second)
	assert.Same(t, second, p.Get())
	assert.Equal(t, uint64(2), p.Version())
}

func TestLoad_ExampleConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "easyharun.example.toml"))
	require.NoError(t, err)

	assert.Empty(t, cfg.Warnings())
	require.Len(t, cfg.Containers, 1)
	assert.Equal(t, 3, cfg.Containers[0].Replicas)
	assert.Equal(t, uint16(80), cfg.Containers[0].Proxies[0].ContainerPort)

	p, ok := cfg.Proxy("web")
	require.True(t, ok)
	assert.Equal(t, 50, p.RateLimitBurst)
}
