package dispatch

import (
	"context"
	"log"
	"net"
	"time"

	"github.com/lordbasex/semalb/internal/cache"
	"github.com/lordbasex/semalb/internal/correlation"
	"github.com/lordbasex/semalb/internal/metrics"
	"github.com/lordbasex/semalb/internal/policy"
	"github.com/lordbasex/semalb/internal/ratelimit"
	"github.com/lordbasex/semalb/internal/registry"
	"github.com/lordbasex/semalb/internal/wire"
)

// InitialFrameDeadline bounds how long the dispatcher waits for a new
// connection's first frame before giving up and closing it (spec.md §4.1).
const InitialFrameDeadline = 5 * time.Second

// Dispatcher accepts inbound connections and routes each to either the
// registration handler or a client proxy session, based on the first
// frame's shape. Grounded on the worker-pool/handler split in the teacher's
// server/worker_pool.go: a bounded pool of goroutines draining an accept
// queue, rather than one unbounded goroutine per connection.
type Dispatcher struct {
	Registry    *registry.Registry
	Policy      policy.Policy
	Cache       *cache.SemanticCache
	Correlation *correlation.Table
	Metrics     *metrics.Metrics
	Validator   *wire.Validator
	RateLimiter *ratelimit.Limiter

	HeartbeatDeadline time.Duration
	Workers           int
	QueueSize         int

	queue chan net.Conn
}

// Run accepts connections from ln until ctx is cancelled or the listener is
// closed. It blocks until the accept loop and all worker goroutines have
// drained.
func (d *Dispatcher) Run(ctx context.Context, ln net.Listener) error {
	if d.Workers <= 0 {
		d.Workers = 64
	}
	if d.QueueSize <= 0 {
		d.QueueSize = 256
	}
	if d.HeartbeatDeadline <= 0 {
		d.HeartbeatDeadline = 10 * time.Second
	}
	d.queue = make(chan net.Conn, d.QueueSize)

	done := make(chan struct{})
	for i := 0; i < d.Workers; i++ {
		go d.worker(ctx, i, done)
	}

	log.Printf("[dispatch] accepting on %s with %d workers", ln.Addr(), d.Workers)

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	var acceptErr error
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				acceptErr = nil
			} else {
				acceptErr = err
			}
			break
		}

		select {
		case d.queue <- conn:
		default:
			log.Printf("[dispatch] accept queue full, rejecting %s", conn.RemoteAddr())
			conn.Close()
		}
	}

	close(d.queue)
	for i := 0; i < d.Workers; i++ {
		<-done
	}
	return acceptErr
}

func (d *Dispatcher) worker(ctx context.Context, id int, done chan<- struct{}) {
	defer func() { done <- struct{}{} }()
	for conn := range d.queue {
		d.handle(ctx, conn)
	}
}

// handle classifies one accepted connection per spec.md §4.1 and dispatches
// it to the registration or client-proxy path. Ownership of conn transfers
// to whichever handler is chosen; handle itself never returns early without
// closing conn on an error path.
func (d *Dispatcher) handle(ctx context.Context, conn net.Conn) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[dispatch] recovered panic handling %s: %v", conn.RemoteAddr(), r)
			conn.Close()
		}
	}()

	if d.RateLimiter != nil {
		host, _, _ := net.SplitHostPort(conn.RemoteAddr().String())
		if !d.RateLimiter.Allow(host) {
			log.Printf("[dispatch] rate limit exceeded for %s", host)
			conn.Close()
			return
		}
	}

	if err := conn.SetReadDeadline(time.Now().Add(InitialFrameDeadline)); err != nil {
		conn.Close()
		return
	}

	buf := make([]byte, wire.MaxDataSize)
	n, err := conn.Read(buf)
	if d.Validator != nil {
		d.Validator.CheckSize(n)
	}
	if err != nil || n == 0 {
		conn.Close()
		return
	}
	payload := string(buf[:n])

	if wire.IsRegistration(payload) {
		RegisterBackend(ctx, conn, payload, d.Registry, d.Validator, d.Metrics, d.HeartbeatDeadline)
		return
	}

	// Client path: clear the deadline imposed for classification; the proxy
	// pumps block on reads/writes with no further timeout (spec.md §5).
	if err := conn.SetReadDeadline(time.Time{}); err != nil {
		conn.Close()
		return
	}

	sess := &Session{
		Registry:    d.Registry,
		Cache:       d.Cache,
		Correlation: d.Correlation,
		Metrics:     d.Metrics,
		Validator:   d.Validator,
	}

	// The classification read already consumed the client's first chunk;
	// replay it through a pre-seeded reader so the proxy sees the full
	// stream starting from that chunk instead of losing it.
	sess.Serve(ctx, &firstChunkConn{Conn: conn, first: buf[:n]}, d.Policy)
}

// firstChunkConn replays a buffered first read before falling through to
// the underlying connection, used to hand a client connection to the proxy
// without losing the bytes consumed during classification.
type firstChunkConn struct {
	net.Conn
	first []byte
}

func (c *firstChunkConn) Read(p []byte) (int, error) {
	if len(c.first) > 0 {
		n := copy(p, c.first)
		c.first = c.first[n:]
		return n, nil
	}
	return c.Conn.Read(p)
}
