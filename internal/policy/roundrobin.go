package policy

import (
	"github.com/lordbasex/semalb/internal/registry"
)

// RoundRobin cycles through the registry's live backends in registration
// order. The cursor is clamped against the current backend count on every
// Pick, which is how invariant I3 ("cursor indexes a live backend or wraps
// to 0 when empty") survives concurrent registrations and evictions without
// the policy needing eviction callbacks. cursor is only ever touched while
// holding the registry lock (every Pick call takes it), so it needs no lock
// of its own.
type RoundRobin struct {
	reg    *registry.Registry
	cursor int
}

// NewRoundRobin builds a round-robin policy over reg.
func NewRoundRobin(reg *registry.Registry) *RoundRobin {
	return &RoundRobin{reg: reg}
}

func (p *RoundRobin) Name() string { return "round-robin" }

// Pick returns backends[cursor], advances cursor = (cursor+1) mod n, and
// increments the chosen backend's in-flight counter, all under the
// registry's lock.
func (p *RoundRobin) Pick() (*registry.Backend, error) {
	p.reg.Lock()
	defer p.reg.Unlock()

	backends := p.reg.OrderedLocked()
	n := len(backends)
	if n == 0 {
		return nil, ErrNoBackendsAvailable
	}

	if p.cursor >= n {
		p.cursor = 0
	}
	chosen := backends[p.cursor]
	p.cursor = (p.cursor + 1) % n

	p.reg.IncrLocked(chosen)
	return chosen, nil
}
