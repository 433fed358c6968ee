package config

import (
	"sync"
)

// Provider holds the current config. Readers get the latest snapshot on each
// call; the watcher replaces it atomically on reload.
type Provider struct {
	mu      sync.RWMutex
	cfg     *Config
	version uint64
}

// NewProvider creates a provider holding cfg
func NewProvider(cfg *Config) *Provider {
	return &Provider{cfg: cfg, version: 1}
}

// Get returns the current config. The result must not be modified.
func (p *Provider) Get() *Config {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cfg
}

// Set replaces the current config
func (p *Provider) Set(cfg *Config) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cfg = cfg
	p.version++
}

// Version increments on every Set
func (p *Provider) Version() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.version
}
