// Package backendsdk is a reference client library for processes that want
// to register with semalb as a backend worker. A backend plays two
// distinct roles on the wire (spec.md §3/§4.2/§4.4): it dials out to the
// balancer on one control connection to register and keep a heartbeat
// flowing, and it listens on its own advertised (host, port) for the
// separate request connections the balancer dials in per proxy session
// (confirmed by original_source/load_balancer.py's
// asyncio.open_connection(server_host, backend_port) against
// original_source/server.py, which listens). The backend worker itself is
// out of spec.md's scope (§1 "treated as a black-box process"), but an SDK
// for building one is squarely in scope for the repo that fronts it.
//
// Retargeted from the teacher's ConnectionManager/HeartbeatManager
// (client/reconnect.go, client/heartbeat.go): the same
// mutex-guarded-state + exponential-backoff-reconnect-loop +
// connected/disconnected-callback shape, swapped from an AMQP connection
// onto the control connection that carries registration and heartbeats,
// paired with a plain net.Listener for the request side.
package backendsdk

import (
	"context"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"github.com/lordbasex/semalb/internal/wire"
)

// Handler answers one request frame's payload and returns the response
// text to send back. Called synchronously on the request connection that
// carried the frame, so a slow handler throttles only that connection;
// other request connections are served on their own goroutines.
type Handler func(requestText string) (responseText string)

// ReconnectConfig controls the client's reconnection backoff, mirroring the
// teacher's ReconnectConfig shape.
type ReconnectConfig struct {
	Enabled           bool
	MaxAttempts       int // 0 = unlimited
	InitialInterval   time.Duration
	MaxInterval       time.Duration
	BackoffMultiplier float64
}

// DefaultReconnectConfig returns an unlimited-retry exponential backoff
// starting at one second and capping at one minute.
func DefaultReconnectConfig() ReconnectConfig {
	return ReconnectConfig{
		Enabled:           true,
		MaxAttempts:       0,
		InitialInterval:   time.Second,
		MaxInterval:       time.Minute,
		BackoffMultiplier: 2.0,
	}
}

// Config describes one backend's identity and behavior.
type Config struct {
	BalancerAddr      string // host:port of the balancer's listening socket
	Host              string // sent in REGISTER, and the host Run listens requests on
	Port              string // sent in REGISTER, and the port Run listens requests on
	HeartbeatInterval time.Duration
	Reconnect         ReconnectConfig
}

// Client is a registered backend worker. Construct with New, then call Run
// to listen for the balancer's request connections, register and
// heartbeat on the control connection, and reconnect the control
// connection on failure until ctx is cancelled.
type Client struct {
	cfg     Config
	handler Handler

	mu        sync.RWMutex
	conn      net.Conn
	connected bool

	onConnected    func()
	onDisconnected func(error)
}

// New builds a Client. handler answers every request frame the balancer
// forwards once registered.
func New(cfg Config, handler Handler) *Client {
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 5 * time.Second
	}
	return &Client{cfg: cfg, handler: handler}
}

// SetCallbacks installs optional connect/disconnect notifications, mirroring
// the teacher's ConnectionManager.SetCallbacks.
func (c *Client) SetCallbacks(onConnected func(), onDisconnected func(error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onConnected = onConnected
	c.onDisconnected = onDisconnected
}

// IsConnected reports the client's current connection state.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Run opens the request listener on (Host, Port), then registers and
// heartbeats on the control connection until ctx is cancelled, reconnecting
// the control connection with backoff on any failure in between (spec.md
// §4.2's registration/heartbeat contract from the backend's point of view).
// The request listener and the control connection run independently: a
// control-connection reconnect does not interrupt request connections the
// balancer already has open, matching original_source/server.py's two
// separate sockets.
func (c *Client) Run(ctx context.Context) error {
	addr := net.JoinHostPort(c.cfg.Host, c.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("backendsdk: listen %s: %w", addr, err)
	}
	defer ln.Close()

	go func() {
		<-ctx.Done()
		ln.Close()
	}()
	go c.acceptLoop(ctx, ln)

	backoff := c.cfg.Reconnect.InitialInterval
	if backoff <= 0 {
		backoff = time.Second
	}
	attempts := 0

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err := c.registerAndHeartbeat(ctx)
		c.setConnected(false, err)

		if !c.cfg.Reconnect.Enabled {
			return err
		}
		if c.cfg.Reconnect.MaxAttempts > 0 && attempts >= c.cfg.Reconnect.MaxAttempts {
			return fmt.Errorf("backendsdk: giving up after %d attempts: %w", attempts, err)
		}
		attempts++

		log.Printf("[backendsdk] disconnected (%v), reconnecting in %v (attempt %d)", err, backoff, attempts)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff = time.Duration(float64(backoff) * c.cfg.Reconnect.BackoffMultiplier)
		if max := c.cfg.Reconnect.MaxInterval; max > 0 && backoff > max {
			backoff = max
		}
	}
}

// registerAndHeartbeat dials the balancer's control port once, registers,
// and blocks sending heartbeats until the connection fails or ctx is
// cancelled. It never carries request frames (those arrive on the
// listener started by Run).
func (c *Client) registerAndHeartbeat(ctx context.Context) error {
	conn, err := net.Dial("tcp", c.cfg.BalancerAddr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.cfg.BalancerAddr, err)
	}
	defer conn.Close()

	register := wire.RegisterPrefix + c.cfg.Host + "|" + c.cfg.Port
	if _, err := conn.Write([]byte(register)); err != nil {
		return fmt.Errorf("send registration: %w", err)
	}

	buf := make([]byte, wire.MaxDataSize)
	n, err := conn.Read(buf)
	if err != nil {
		return fmt.Errorf("read registration reply: %w", err)
	}
	reply := string(buf[:n])
	if reply != wire.Registered {
		return fmt.Errorf("registration rejected: %s", reply)
	}

	c.setConn(conn)
	c.setConnected(true, nil)
	log.Printf("[backendsdk] registered with %s as %s:%s", c.cfg.BalancerAddr, c.cfg.Host, c.cfg.Port)

	return c.heartbeatLoop(ctx, conn)
}

// acceptLoop accepts the balancer's per-session request connections and
// serves each on its own goroutine until ln is closed.
func (c *Client) acceptLoop(ctx context.Context, ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("[backendsdk] accept failed: %v", err)
			return
		}
		go func() {
			defer conn.Close()
			if err := c.serveRequests(ctx, conn); err != nil {
				log.Printf("[backendsdk] request connection from %s ended: %v", conn.RemoteAddr(), err)
			}
		}()
	}
}

// serveRequests reads "<id>|<payload>" frames off one request connection
// and writes back "<id>|<response>" using handler (spec.md §6's request
// protocol), for as long as the balancer keeps that connection open.
func (c *Client) serveRequests(ctx context.Context, conn net.Conn) error {
	buf := make([]byte, wire.MaxDataSize)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		n, err := conn.Read(buf)
		if n > 0 {
			frame := string(buf[:n])
			id, payload, ok := wire.ParseResponse(frame)
			if !ok {
				continue
			}
			resp := c.handler(payload)
			out := wire.EncodeRequest(id, resp)
			if _, werr := conn.Write([]byte(out)); werr != nil {
				return werr
			}
		}
		if err != nil {
			return err
		}
	}
}

// heartbeatLoop sends a non-empty payload on conn every HeartbeatInterval
// until ctx is cancelled or the write fails, satisfying the balancer's
// liveness check (spec.md §4.2: "sent at least every 10 seconds").
func (c *Client) heartbeatLoop(ctx context.Context, conn net.Conn) error {
	ticker := time.NewTicker(c.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := conn.Write([]byte("PING")); err != nil {
				return err
			}
		}
	}
}

func (c *Client) setConn(conn net.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
}

func (c *Client) setConnected(connected bool, err error) {
	c.mu.Lock()
	wasConnected := c.connected
	c.connected = connected
	onConnected := c.onConnected
	onDisconnected := c.onDisconnected
	c.mu.Unlock()

	if connected && !wasConnected && onConnected != nil {
		go onConnected()
	}
	if !connected && wasConnected && onDisconnected != nil {
		go onDisconnected(err)
	}
}
