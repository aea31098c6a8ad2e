// Package dispatch implements the balancer's connection-handling core: the
// accept loop that classifies each inbound connection (spec.md §4.1), the
// registration handshake and heartbeat monitor (§4.2), and the client
// proxy's forward/reverse pumps with cache interception and correlation
// (§4.4). It is the retarget of the teacher's Handler/WorkerPool
// (server/server.go, server/worker_pool.go): one goroutine pair per session
// instead of one task per AMQP message, coordinated with a context for
// shutdown, an errgroup joining each session's two pumps, and panic
// recovery per handled connection.
package dispatch

import (
	"context"
	"errors"
	"io"
	"log"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/lordbasex/semalb/internal/cache"
	"github.com/lordbasex/semalb/internal/correlation"
	"github.com/lordbasex/semalb/internal/metrics"
	"github.com/lordbasex/semalb/internal/policy"
	"github.com/lordbasex/semalb/internal/registry"
	"github.com/lordbasex/semalb/internal/wire"
)

// Session wires together everything one client proxy needs: the selected
// backend, the process-wide singletons it consults, and the metrics sink.
// Constructed fresh per accepted client connection (spec.md §9 "process-wide
// singletons... thread them explicitly through handlers").
type Session struct {
	Registry    *registry.Registry
	Cache       *cache.SemanticCache
	Correlation *correlation.Table
	Metrics     *metrics.Metrics
	Validator   *wire.Validator
	DialTimeout time.Duration
}

// Serve runs one client connection end to end: picks a backend, dials it,
// and pumps both directions until either side closes or errors (spec.md
// §4.4). It never returns an error to the caller — every failure mode here
// terminates only this session, per spec.md §7's "errors never cross the
// session boundary".
func (s *Session) Serve(ctx context.Context, client net.Conn, pick policy.Policy) {
	defer client.Close()

	backend, err := pick.Pick()
	if err != nil {
		log.Printf("[proxy] no backend available for %s: %v", client.RemoteAddr(), err)
		s.countSession("no_backend")
		return
	}
	s.setInFlight(backend)

	backendConn, err := net.DialTimeout("tcp", backend.Addr(), s.dialTimeout())
	if err != nil {
		log.Printf("[proxy] dial %s failed: %v", backend.Addr(), err)
		s.Registry.Decr(backend)
		s.setInFlight(backend)
		s.countSession("dial_failed")
		return
	}
	defer backendConn.Close()

	if s.Metrics != nil {
		s.Metrics.ActiveConnections.Inc()
		defer s.Metrics.ActiveConnections.Dec()
	}

	sess := &session{
		parent:  s,
		client:  client,
		backend: backend,
		conn:    backendConn,
	}
	reason := sess.run(ctx)

	s.Registry.Decr(backend)
	s.setInFlight(backend)
	s.countSession(reason)
}

// setInFlight mirrors a backend's current in-flight count into the
// per-backend Prometheus gauge, keyed by its dial address.
func (s *Session) setInFlight(backend *registry.Backend) {
	if s.Metrics == nil {
		return
	}
	s.Metrics.BackendInFlight.WithLabelValues(backend.Addr()).Set(float64(backend.InFlight()))
}

func (s *Session) dialTimeout() time.Duration {
	if s.DialTimeout > 0 {
		return s.DialTimeout
	}
	return 10 * time.Second
}

func (s *Session) countSession(reason string) {
	if s.Metrics == nil {
		return
	}
	s.Metrics.SessionsTotal.WithLabelValues(reason).Inc()
}

// setCorrelationEntries mirrors the correlation table's current size into
// its Prometheus gauge.
func (s *Session) setCorrelationEntries() {
	if s.Metrics == nil {
		return
	}
	s.Metrics.CorrelationEntries.Set(float64(s.Correlation.Len()))
}

// session is the live state of one proxied connection: a client, its chosen
// backend, and the ids this session has minted that are still pending a
// reply, so Forget can clean them up on termination (spec.md §4.4
// "delete any residual correlation entries belonging to the session").
type session struct {
	parent  *Session
	client  net.Conn
	backend *registry.Backend
	conn    net.Conn

	pendingMu sync.Mutex
	pending   map[string]struct{}
}

func (sess *session) run(ctx context.Context) string {
	sess.pending = make(map[string]struct{})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := sess.forward(gctx)
		// Unblock the reverse pump's socket read: neither pump observes
		// context cancellation while parked in net.Conn.Read, so whichever
		// direction ends first closes both sockets for the other.
		sess.client.Close()
		sess.conn.Close()
		return err
	})
	g.Go(func() error {
		err := sess.reverse(gctx)
		sess.client.Close()
		sess.conn.Close()
		return err
	})

	err := g.Wait()
	sess.cleanupPending()

	if err != nil && !errors.Is(err, io.EOF) {
		log.Printf("[proxy] session %s<->%s ended: %v", sess.client.RemoteAddr(), sess.backend.Addr(), err)
		return "error"
	}
	return "closed"
}

// forward implements the client-to-backend pump with cache interception
// (spec.md §4.4). A cache hit is written directly to the client and the
// chunk is never forwarded; a miss mints a correlation id and frames the
// payload to the backend.
func (sess *session) forward(ctx context.Context) error {
	buf := make([]byte, wire.MaxDataSize)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		n, err := sess.client.Read(buf)
		if n > 0 {
			chunk := string(buf[:n])

			if sess.parent.Cache != nil {
				if resp, hit := sess.parent.Cache.Get(chunk); hit {
					if sess.parent.Metrics != nil {
						sess.parent.Metrics.CacheHits.Inc()
					}
					if _, werr := sess.client.Write([]byte(resp)); werr != nil {
						return werr
					}
					continue
				}
				if sess.parent.Metrics != nil {
					sess.parent.Metrics.CacheMisses.Inc()
				}
			}

			id := uuid.NewString()
			sess.parent.Correlation.Put(id, chunk)
			sess.markPending(id)
			sess.parent.setCorrelationEntries()

			frame := wire.EncodeRequest(id, chunk)
			if _, werr := sess.conn.Write([]byte(frame)); werr != nil {
				return werr
			}
		}
		if err != nil {
			return err
		}
	}
}

// reverse implements the backend-to-client pump with cache insertion
// (spec.md §4.4). A reply whose id is not in the correlation table (already
// resolved, or never ours) is written through without a cache insert.
func (sess *session) reverse(ctx context.Context) error {
	buf := make([]byte, wire.MaxDataSize)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		n, err := sess.conn.Read(buf)
		if n > 0 {
			frame := string(buf[:n])
			id, payload, ok := wire.ParseResponse(frame)
			if !ok {
				if sess.parent.Validator != nil {
					sess.parent.Validator.RecordMalformedResponse()
				}
				return errors.New("malformed response frame: missing '|'")
			}

			if text, found := sess.parent.Correlation.Resolve(id); found {
				sess.unmarkPending(id)
				sess.parent.setCorrelationEntries()
				if sess.parent.Cache != nil {
					if sess.parent.Cache.Add(text, payload) && sess.parent.Metrics != nil {
						sess.parent.Metrics.CacheEvictions.Inc()
					}
				}
			}

			if _, werr := sess.client.Write([]byte(payload)); werr != nil {
				return werr
			}
		}
		if err != nil {
			return err
		}
	}
}

func (sess *session) markPending(id string) {
	sess.pendingMu.Lock()
	sess.pending[id] = struct{}{}
	sess.pendingMu.Unlock()
}

func (sess *session) unmarkPending(id string) {
	sess.pendingMu.Lock()
	delete(sess.pending, id)
	sess.pendingMu.Unlock()
}

// cleanupPending forgets every correlation entry this session minted but
// never received a reply for, per spec.md §4.4's termination contract.
func (sess *session) cleanupPending() {
	sess.pendingMu.Lock()
	ids := make([]string, 0, len(sess.pending))
	for id := range sess.pending {
		ids = append(ids, id)
	}
	sess.pendingMu.Unlock()

	for _, id := range ids {
		sess.parent.Correlation.Forget(id)
	}
	if len(ids) > 0 {
		sess.parent.setCorrelationEntries()
	}
}
