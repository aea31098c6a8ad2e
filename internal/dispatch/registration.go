package dispatch

import (
	"context"
	"errors"
	"log"
	"net"
	"time"

	"github.com/lordbasex/semalb/internal/metrics"
	"github.com/lordbasex/semalb/internal/registry"
	"github.com/lordbasex/semalb/internal/wire"
)

// RegisterBackend completes the registration handshake for one connection
// already classified as a backend control channel, then runs its heartbeat
// monitor loop until the backend goes silent or disconnects (spec.md §4.2).
// This is the retarget of the teacher's ServerHeartbeatManager
// (server/heartbeat.go): the same "track last-seen, evict on silence" shape,
// collapsed from a per-client map polled on a ticker into one goroutine per
// connection blocking on its own deadline, since here the connection itself
// is the liveness channel rather than a side queue of PING messages.
func RegisterBackend(ctx context.Context, conn net.Conn, payload string, reg *registry.Registry, validator *wire.Validator, m *metrics.Metrics, heartbeatDeadline time.Duration) {
	host, port, ok := wire.ParseRegistration(payload)
	if !ok {
		if validator != nil {
			validator.RecordMalformedRegister()
		}
		conn.Write([]byte(wire.InvalidRegister))
		conn.Close()
		return
	}

	backend, err := reg.Add(host, port, conn)
	if err != nil {
		log.Printf("[dispatch] registration of %s:%s rejected: %v", host, port, err)
		conn.Write([]byte(wire.InvalidRegister))
		conn.Close()
		return
	}

	if _, err := conn.Write([]byte(wire.Registered)); err != nil {
		log.Printf("[dispatch] failed to ack registration for %s: %v", backend.Addr(), err)
		reg.Remove(host, port)
		conn.Close()
		return
	}

	if m != nil {
		m.BackendsLive.Inc()
	}

	log.Printf("[dispatch] Started heartbeat listener for %s", backend.Addr())
	runHeartbeatLoop(ctx, conn, backend, reg, m, heartbeatDeadline)
}

// runHeartbeatLoop reads from conn until a timeout, EOF, or error occurs,
// then evicts the backend. Any non-empty read is a liveness signal; its
// content is never inspected (spec.md §4.2).
func runHeartbeatLoop(ctx context.Context, conn net.Conn, backend *registry.Backend, reg *registry.Registry, m *metrics.Metrics, deadline time.Duration) {
	buf := make([]byte, wire.MaxDataSize)
	for {
		if ctx.Err() != nil {
			break
		}
		if err := conn.SetReadDeadline(time.Now().Add(deadline)); err != nil {
			break
		}
		n, err := conn.Read(buf)
		if n > 0 {
			continue
		}
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				log.Printf("[dispatch] backend %s heartbeat timeout", backend.Addr())
			} else {
				log.Printf("[dispatch] backend %s heartbeat channel closed: %v", backend.Addr(), err)
			}
			break
		}
	}

	reg.Remove(backend.Host, backend.Port)
	conn.Close()
	if m != nil {
		m.BackendsLive.Dec()
		m.BackendEvictions.Inc()
	}
}
