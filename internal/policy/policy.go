// Package policy implements the balancer's pluggable backend selection
// strategies (spec.md §4.3): round-robin and least-connections, behind a
// common interface so the dispatcher never needs to know which one is
// active.
package policy

import (
	"errors"

	"github.com/lordbasex/semalb/internal/registry"
)

// ErrNoBackendsAvailable is returned by Pick when the registry holds no live
// backends. The caller (the client proxy) closes the client connection with
// no reply and does not retry (spec.md §4.6).
var ErrNoBackendsAvailable = errors.New("no backends available")

// Policy selects a backend for a new proxy session. Pick is atomic with
// respect to the registry and with respect to itself across concurrent
// callers: it increments the chosen backend's in-flight counter before
// returning, and the caller guarantees a matching decrement on session
// close (spec.md §4.3).
type Policy interface {
	// Pick selects a backend and increments its in-flight counter.
	Pick() (*registry.Backend, error)

	// Name identifies the policy for logging/CLI (e.g. "round-robin").
	Name() string
}

// New builds the policy named by the CLI argument (spec.md §6): "" or "r"
// for round-robin, "c" for least-connections. It returns an error for any
// other value so the caller can exit with the CLI-misuse exit code.
func New(arg string, reg *registry.Registry) (Policy, error) {
	switch arg {
	case "", "r":
		return NewRoundRobin(reg), nil
	case "c":
		return NewLeastConnections(reg), nil
	default:
		return nil, errors.New("unknown algorithm type: " + arg)
	}
}
