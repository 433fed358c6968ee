package proxy

import (
	"errors"
)

// ErrEmptyBackends is returned when a proxy has no backend to pick
var ErrEmptyBackends = errors.New("no backends")

// Balancer picks backends round-robin, preferring healthy ones
type Balancer struct {
	index uint64
}

// Pick returns the next healthy backend starting from the rotating index.
// When no backend is healthy it falls back to plain round-robin so traffic
// still flows while health state is unknown.
func (b *Balancer) Pick(backends []Backend, healthy func(Backend) bool) (Backend, error) {
	n := uint64(len(backends))
	if n == 0 {
		return Backend{}, ErrEmptyBackends
	}

	start := b.index
	b.index++

	for i := uint64(0); i < n; i++ {
		candidate := backends[(start+i)%n]
		if healthy(candidate) {
			return candidate, nil
		}
	}
	return backends[start%n], nil
}
