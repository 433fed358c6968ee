package config

import (
	"time"
)

// Health check types
const (
	CheckHTTP = "http"
	CheckTCP  = "tcp"
	CheckExec = "exec"
)

// Match strategies used to pair current and expected containers
const (
	MatchImagePort = "image_port"
	MatchNameImage = "name_image"
)

// Engine defaults
const (
	DefaultContainerTickMS  = 500
	DefaultHealthTickMS     = 500
	DefaultProxyTickMS      = 500
	DefaultReapTickMS       = 2000
	DefaultFailureBackoffMS = 1000
	DefaultMailboxSize      = 1000
	DefaultCheckIntervalMS  = 250
	DefaultCheckTimeoutMS   = 1000
)

// Config is the declarative desired state of one easyharun node.
// A loaded Config is shared read-only; build a new one instead of mutating it.
type Config struct {
	Engine       Engine        `toml:"engine" yaml:"engine"`
	Proxies      []Proxy       `toml:"proxy" yaml:"proxy"`
	HealthChecks []HealthCheck `toml:"health_check" yaml:"health_check"`
	Containers   []Container   `toml:"container" yaml:"container"`
}

// Engine tunes the reconciliation loops
type Engine struct {
	ContainerTickMS  int    `toml:"container_tick_ms" yaml:"container_tick_ms"`
	HealthTickMS     int    `toml:"health_tick_ms" yaml:"health_tick_ms"`
	ProxyTickMS      int    `toml:"proxy_tick_ms" yaml:"proxy_tick_ms"`
	ReapTickMS       int    `toml:"reap_tick_ms" yaml:"reap_tick_ms"`
	Match            string `toml:"match" yaml:"match"`
	FailureBackoffMS int    `toml:"failure_backoff_ms" yaml:"failure_backoff_ms"`
	MailboxSize      int    `toml:"mailbox_size" yaml:"mailbox_size"`
	Reap             *bool  `toml:"reap" yaml:"reap"`
}

// Proxy is a TCP listen address that load-balances across container backends
type Proxy struct {
	Name               string  `toml:"name" yaml:"name"`
	Listen             string  `toml:"listen" yaml:"listen"`
	RateLimitPerSecond float64 `toml:"rate_limit_per_second" yaml:"rate_limit_per_second"`
	RateLimitBurst     int     `toml:"rate_limit_burst" yaml:"rate_limit_burst"`
}

// HealthCheck is a named probe that containers reference by name.
// URL and Address may contain {{container.port_dynamic_host}} placeholders.
type HealthCheck struct {
	Name       string   `toml:"name" yaml:"name"`
	Check      string   `toml:"check" yaml:"check"`
	URL        string   `toml:"url" yaml:"url"`
	Address    string   `toml:"address" yaml:"address"`
	Command    []string `toml:"command" yaml:"command"`
	TimeoutMS  int      `toml:"timeout_ms" yaml:"timeout_ms"`
	IntervalMS int      `toml:"interval_ms" yaml:"interval_ms"`
}

// Container declares a replicated container
type Container struct {
	Name           string           `toml:"name" yaml:"name"`
	Image          string           `toml:"image" yaml:"image"`
	Replicas       int              `toml:"replicas" yaml:"replicas"`
	ContainerPorts []uint16         `toml:"container_ports" yaml:"container_ports"`
	HealthChecks   []string         `toml:"health_checks" yaml:"health_checks"`
	Proxies        []ContainerProxy `toml:"proxies" yaml:"proxies"`
}

// ContainerProxy routes a proxy to one container port. A zero port means
// the container's first declared port.
type ContainerProxy struct {
	Name          string `toml:"name" yaml:"name"`
	ContainerPort uint16 `toml:"container_port" yaml:"container_port"`
}

// ApplyDefaults fills zero values with their defaults
func (c *Config) ApplyDefaults() {
	e := &c.Engine
	if e.ContainerTickMS <= 0 {
		e.ContainerTickMS = DefaultContainerTickMS
	}
	if e.HealthTickMS <= 0 {
		e.HealthTickMS = DefaultHealthTickMS
	}
	if e.ProxyTickMS <= 0 {
		e.ProxyTickMS = DefaultProxyTickMS
	}
	if e.ReapTickMS <= 0 {
		e.ReapTickMS = DefaultReapTickMS
	}
	if e.Match == "" {
		e.Match = MatchImagePort
	}
	if e.FailureBackoffMS <= 0 {
		e.FailureBackoffMS = DefaultFailureBackoffMS
	}
	if e.MailboxSize <= 0 {
		e.MailboxSize = DefaultMailboxSize
	}
	if e.Reap == nil {
		reap := true
		e.Reap = &reap
	}

	for i := range c.HealthChecks {
		hc := &c.HealthChecks[i]
		if hc.IntervalMS <= 0 {
			hc.IntervalMS = DefaultCheckIntervalMS
		}
		if hc.TimeoutMS <= 0 {
			hc.TimeoutMS = DefaultCheckTimeoutMS
		}
	}
}

// Proxy looks up a proxy by name
func (c *Config) Proxy(name string) (Proxy, bool) {
	for _, p := range c.Proxies {
		if p.Name == name {
			return p, true
		}
	}
	return Proxy{}, false
}

// HealthCheck looks up a health check by name
func (c *Config) HealthCheck(name string) (HealthCheck, bool) {
	for _, hc := range c.HealthChecks {
		if hc.Name == name {
			return hc, true
		}
	}
	return HealthCheck{}, false
}

// ContainerTick returns the container reconciliation interval
func (e Engine) ContainerTick() time.Duration { return ms(e.ContainerTickMS, DefaultContainerTickMS) }

// HealthTick returns the health check manager interval
func (e Engine) HealthTick() time.Duration { return ms(e.HealthTickMS, DefaultHealthTickMS) }

// ProxyTick returns the proxy reconciliation interval
func (e Engine) ProxyTick() time.Duration { return ms(e.ProxyTickMS, DefaultProxyTickMS) }

// ReapTick returns the reaper interval
func (e Engine) ReapTick() time.Duration { return ms(e.ReapTickMS, DefaultReapTickMS) }

// FailureBackoff returns the sleep after a failed task handler
func (e Engine) FailureBackoff() time.Duration {
	return ms(e.FailureBackoffMS, DefaultFailureBackoffMS)
}

// ReapEnabled reports whether containers marked for deletion are removed
func (e Engine) ReapEnabled() bool {
	return e.Reap == nil || *e.Reap
}

// Interval returns the probe interval
func (hc HealthCheck) Interval() time.Duration { return ms(hc.IntervalMS, DefaultCheckIntervalMS) }

// Timeout returns the per-probe timeout
func (hc HealthCheck) Timeout() time.Duration { return ms(hc.TimeoutMS, DefaultCheckTimeoutMS) }

func ms(v, def int) time.Duration {
	if v <= 0 {
		v = def
	}
	return time.Duration(v) * time.Millisecond
}
