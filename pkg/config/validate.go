package config

import (
	"errors"
	"fmt"
	"net"
	"slices"
)

// Validate reports every structural problem in the config at once.
// References to unknown proxies or health checks are not errors, see Warnings.
func (c *Config) Validate() error {
	var errs []error

	switch c.Engine.Match {
	case "", MatchImagePort, MatchNameImage:
	default:
		errs = append(errs, fmt.Errorf("engine: unknown match strategy %q", c.Engine.Match))
	}

	seen := make(map[string]bool)
	for i, p := range c.Proxies {
		if p.Name == "" {
			errs = append(errs, fmt.Errorf("proxy[%d]: name is required", i))
			continue
		}
		if seen[p.Name] {
			errs = append(errs, fmt.Errorf("proxy %q: duplicate name", p.Name))
		}
		seen[p.Name] = true
		if _, _, err := net.SplitHostPort(p.Listen); err != nil {
			errs = append(errs, fmt.Errorf("proxy %q: invalid listen address %q: %w", p.Name, p.Listen, err))
		}
		if p.RateLimitPerSecond < 0 || p.RateLimitBurst < 0 {
			errs = append(errs, fmt.Errorf("proxy %q: rate limit must not be negative", p.Name))
		}
	}

	seen = make(map[string]bool)
	for i, hc := range c.HealthChecks {
		if hc.Name == "" {
			errs = append(errs, fmt.Errorf("health_check[%d]: name is required", i))
			continue
		}
		if seen[hc.Name] {
			errs = append(errs, fmt.Errorf("health_check %q: duplicate name", hc.Name))
		}
		seen[hc.Name] = true

		switch hc.Check {
		case CheckHTTP:
			if hc.URL == "" {
				errs = append(errs, fmt.Errorf("health_check %q: url is required for http checks", hc.Name))
			}
		case CheckTCP:
			if hc.Address == "" {
				errs = append(errs, fmt.Errorf("health_check %q: address is required for tcp checks", hc.Name))
			}
		case CheckExec:
			if len(hc.Command) == 0 {
				errs = append(errs, fmt.Errorf("health_check %q: command is required for exec checks", hc.Name))
			}
		default:
			errs = append(errs, fmt.Errorf("health_check %q: unknown check type %q", hc.Name, hc.Check))
		}
	}

	seen = make(map[string]bool)
	for i, ct := range c.Containers {
		if ct.Name == "" {
			errs = append(errs, fmt.Errorf("container[%d]: name is required", i))
			continue
		}
		if seen[ct.Name] {
			errs = append(errs, fmt.Errorf("container %q: duplicate name", ct.Name))
		}
		seen[ct.Name] = true

		if ct.Image == "" {
			errs = append(errs, fmt.Errorf("container %q: image is required", ct.Name))
		}
		if ct.Replicas < 0 {
			errs = append(errs, fmt.Errorf("container %q: replicas must not be negative", ct.Name))
		}
		if len(ct.ContainerPorts) == 0 {
			errs = append(errs, fmt.Errorf("container %q: at least one container port is required", ct.Name))
		}
		for _, port := range ct.ContainerPorts {
			if port == 0 {
				errs = append(errs, fmt.Errorf("container %q: container port 0 is invalid", ct.Name))
			}
		}
		for _, ref := range ct.Proxies {
			if ref.Name == "" {
				errs = append(errs, fmt.Errorf("container %q: proxy reference without name", ct.Name))
			}
			if ref.ContainerPort != 0 && !slices.Contains(ct.ContainerPorts, ref.ContainerPort) {
				errs = append(errs, fmt.Errorf("container %q: proxy %q targets undeclared port %d", ct.Name, ref.Name, ref.ContainerPort))
			}
		}
	}

	return errors.Join(errs...)
}

// Warnings lists references that are legal but resolve to nothing. The
// reconcilers log the same conditions on every tick.
func (c *Config) Warnings() []string {
	var warnings []string
	for _, ct := range c.Containers {
		for _, name := range ct.HealthChecks {
			if _, ok := c.HealthCheck(name); !ok {
				warnings = append(warnings, fmt.Sprintf("container %q: unknown health check %q", ct.Name, name))
			}
		}
		for _, ref := range ct.Proxies {
			if _, ok := c.Proxy(ref.Name); !ok {
				warnings = append(warnings, fmt.Sprintf("container %q: unknown proxy %q", ct.Name, ref.Name))
			}
		}
	}
	return warnings
}
