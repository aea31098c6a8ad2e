package policy

import (
	"github.com/lordbasex/semalb/internal/registry"
)

// LeastConnections picks the live backend with the smallest in-flight
// counter, ties broken by registration order (spec.md §4.3: "argmin over
// the Live set ... ties broken by insertion order"). The registry's order
// slice is already in registration order, so a single linear scan keeping
// the first-seen minimum gives a stable argmin without a heap — the spec
// only requires the behavioural contract, not the data structure.
type LeastConnections struct {
	reg *registry.Registry
}

// NewLeastConnections builds a least-connections policy over reg.
func NewLeastConnections(reg *registry.Registry) *LeastConnections {
	return &LeastConnections{reg: reg}
}

func (p *LeastConnections) Name() string { return "least-connections" }

// Pick scans the live backends for the minimum in-flight count and
// increments it, all under the registry's lock so the selection and the
// increment observe a consistent in-flight snapshot.
func (p *LeastConnections) Pick() (*registry.Backend, error) {
	p.reg.Lock()
	defer p.reg.Unlock()

	backends := p.reg.OrderedLocked()
	if len(backends) == 0 {
		return nil, ErrNoBackendsAvailable
	}

	chosen := backends[0]
	for _, b := range backends[1:] {
		if b.InFlight() < chosen.InFlight() {
			chosen = b
		}
	}

	p.reg.IncrLocked(chosen)
	return chosen, nil
}
