package proxy

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/easyharun/easyharun/pkg/config"
	"github.com/easyharun/easyharun/pkg/kv"
	"github.com/easyharun/easyharun/pkg/types"
	"github.com/easyharun/easyharun/pkg/world"
)

// Backend is one container port a proxy forwards to. It is only picked while
// every target in Targets is healthy; a backend without targets always is.
type Backend struct {
	Addr        string
	ContainerID types.ContainerID
	Targets     []string
}

// Entry is the backend set of one listen address, keyed by backend address
type Entry struct {
	Listen   string
	Backends map[string]Backend
}

// World maps listen addresses to their backend sets
type World map[string]*Entry

// Worlds pairs the running proxies with the ones the containers ask for
type Worlds struct {
	Current  World
	Expected World
}

// Add puts b into the entry for listen, creating it when needed
func (w World) Add(listen string, b Backend) {
	e := getOrInsert(w, listen, func() *Entry {
		return &Entry{Listen: listen, Backends: make(map[string]Backend)}
	})
	e.Backends[b.Addr] = b
}

// Listens returns the listen addresses in sorted order
func (w World) Listens() []string {
	out := make([]string, 0, len(w))
	for listen := range w {
		out = append(out, listen)
	}
	sort.Strings(out)
	return out
}

// Sorted returns the entry's backends ordered by address
func (e *Entry) Sorted() []Backend {
	out := make([]Backend, 0, len(e.Backends))
	for _, b := range e.Backends {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Addr < out[j].Addr })
	return out
}

// Expected builds the proxy world the live containers declare. References
// that cannot be resolved are skipped and reported as warnings.
func Expected(cfg *config.Config, containers world.World) (World, []string) {
	w := make(World)
	var warnings []string

	for _, c := range containers.Containers() {
		targets := make([]string, 0, len(c.HealthChecks))
		for _, check := range c.HealthChecks {
			targets = append(targets, kv.Target(check, c.ID))
		}

		for _, ref := range c.Proxies {
			p, ok := cfg.Proxy(ref.Name)
			if !ok {
				warnings = append(warnings, fmt.Sprintf("container %s uses proxy %q which does not exist in config", c.ID.Short(), ref.Name))
				continue
			}

			port, ok := c.ProxyPort(ref)
			if !ok {
				warnings = append(warnings, fmt.Sprintf("container %s has no port for proxy %q", c.ID.Short(), ref.Name))
				continue
			}

			hostPort, ok := c.HostPort(port)
			if !ok {
				warnings = append(warnings, fmt.Sprintf("container %s has not published port %d for proxy %q", c.ID.Short(), port, ref.Name))
				continue
			}

			w.Add(p.Listen, Backend{
				Addr:        BackendAddr(hostPort),
				ContainerID: c.ID,
				Targets:     targets,
			})
		}
	}
	return w, warnings
}

// BackendAddr is the loopback address of a published host port
func BackendAddr(hostPort uint16) string {
	return "127.0.0.1:" + strconv.Itoa(int(hostPort))
}

func getOrInsert[K comparable, V any](m map[K]V, key K, create func() V) V {
	if v, ok := m[key]; ok {
		return v
	}
	v := create()
	m[key] = v
	return v
}
