// Package balancer wires the registry, policy, cache, correlation table,
// dispatcher, and monitor into one running process, and owns its startup
// and graceful-shutdown sequence. Retargeted from the teacher's
// ServerFactory (server/server_factory.go): the same
// "Config -> New*Config() per component -> CreateServer() -> Start()"
// shape, generalized from one Handler to the balancer's several
// collaborators.
package balancer

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lordbasex/semalb/internal/cache"
	"github.com/lordbasex/semalb/internal/config"
	"github.com/lordbasex/semalb/internal/correlation"
	"github.com/lordbasex/semalb/internal/dispatch"
	"github.com/lordbasex/semalb/internal/metrics"
	"github.com/lordbasex/semalb/internal/monitor"
	"github.com/lordbasex/semalb/internal/policy"
	"github.com/lordbasex/semalb/internal/ratelimit"
	"github.com/lordbasex/semalb/internal/registry"
	"github.com/lordbasex/semalb/internal/wire"
)

// Balancer is a fully constructed, not-yet-started load balancer process.
type Balancer struct {
	cfg config.Config

	Registry    *registry.Registry
	Policy      policy.Policy
	Cache       *cache.SemanticCache
	Correlation *correlation.Table
	Metrics     *metrics.Metrics
	Validator   *wire.Validator
	RateLimiter *ratelimit.Limiter
	Monitor     *monitor.Monitor
	Dispatcher  *dispatch.Dispatcher

	spawned   []*exec.Cmd
	stopSweep chan struct{}
}

// New builds a Balancer from cfg and an algorithm selector (spec.md §6's
// CLI argument), registering every component's collaborators the way
// ServerFactory.CreateServer wires Handler's.
func New(cfg config.Config, algorithm string) (*Balancer, error) {
	reg := registry.New()

	pol, err := policy.New(algorithm, reg)
	if err != nil {
		return nil, err
	}

	var sc *cache.SemanticCache
	if cfg.CacheEnabled {
		embedder := cache.NewHashEmbedder(cfg.EmbeddingDims)
		sc = cache.New(embedder, cfg.ToCacheConfig())
	}

	corr := correlation.New()
	// Each Balancer gets its own Prometheus registry so that more than one
	// can be constructed in the same process without duplicate-registration
	// panics.
	m := metrics.NewWithRegisterer(prometheus.NewRegistry())
	validator := wire.NewValidator(cfg.ToValidatorConfig())

	var limiter *ratelimit.Limiter
	if cfg.RateLimitEnabled {
		limiter = ratelimit.New(cfg.ToRateLimitConfig())
	}

	var mon *monitor.Monitor
	if cfg.MonitoringEnabled {
		mon = monitor.New(reg, sc, corr, cfg.MonitoringInterval)
	}

	d := &dispatch.Dispatcher{
		Registry:          reg,
		Policy:            pol,
		Cache:             sc,
		Correlation:       corr,
		Metrics:           m,
		Validator:         validator,
		RateLimiter:       limiter,
		HeartbeatDeadline: cfg.HeartbeatDeadline,
		Workers:           cfg.DispatchWorkers,
		QueueSize:         cfg.DispatchQueueSize,
	}

	return &Balancer{
		cfg:         cfg,
		Registry:    reg,
		Policy:      pol,
		Cache:       sc,
		Correlation: corr,
		Metrics:     m,
		Validator:   validator,
		RateLimiter: limiter,
		Monitor:     mon,
		Dispatcher:  d,
		stopSweep:   make(chan struct{}),
	}, nil
}

// Start binds the listening socket, spawns any configured backend
// subprocesses (SPEC_FULL.md §4's supplemented feature, grounded on
// original_source/load_balancer.py's start_servers), and runs the
// dispatcher's accept loop until ctx is cancelled. It returns once the
// listener and all in-flight sessions have drained.
func (b *Balancer) Start(ctx context.Context) error {
	addr := net.JoinHostPort(b.cfg.Host, b.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	b.spawnBackends()

	if b.Monitor != nil {
		monitor.PrintStartupBanner(b.cfg, b.Policy.Name())
		b.Monitor.Start()
	}

	b.Correlation.StartSweeper(b.cfg.CorrelationSweepInterval, b.cfg.CorrelationMaxAge, b.stopSweep)

	err = b.Dispatcher.Run(ctx, ln)

	b.shutdown()
	return err
}

// shutdown stops ancillary loops and terminates any spawned backend
// subprocesses (spec.md §5: "backend subprocesses... are asked to
// terminate").
func (b *Balancer) shutdown() {
	close(b.stopSweep)
	if b.Monitor != nil {
		b.Monitor.Stop()
	}
	if b.RateLimiter != nil {
		b.RateLimiter.Stop()
	}

	var wg sync.WaitGroup
	for _, cmd := range b.spawned {
		if cmd.Process == nil {
			continue
		}
		wg.Add(1)
		go func(c *exec.Cmd) {
			defer wg.Done()
			c.Process.Signal(os.Interrupt)
			done := make(chan struct{})
			go func() { c.Wait(); close(done) }()
			select {
			case <-done:
			case <-time.After(5 * time.Second):
				c.Process.Kill()
			}
		}(cmd)
	}
	wg.Wait()
}

// spawnBackends launches each configured command as a subprocess backend.
// Spawn failures are logged, not fatal: the balancer still runs and will
// simply have no backends registered until one dials in.
func (b *Balancer) spawnBackends() {
	for _, cmdline := range b.cfg.SpawnCommands {
		cmd := exec.Command("/bin/sh", "-c", cmdline)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		if err := cmd.Start(); err != nil {
			log.Printf("[balancer] failed to spawn backend %q: %v", cmdline, err)
			continue
		}
		b.spawned = append(b.spawned, cmd)
	}
}
