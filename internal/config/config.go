// Package config builds a Config from flags and environment variables,
// following the teacher's pattern in server/config.go: a flat struct of
// defaults, a LoadFromFlags constructor, env-var overrides, and a set of
// To*Config helpers that hand each subsystem its own typed configuration.
package config

import (
	"flag"
	"os"
	"strconv"
	"time"

	"github.com/lordbasex/semalb/internal/cache"
	"github.com/lordbasex/semalb/internal/correlation"
	"github.com/lordbasex/semalb/internal/ratelimit"
	"github.com/lordbasex/semalb/internal/wire"
)

// Config holds every tunable of the balancer process (spec.md §6 plus the
// ambient/domain-stack additions in SPEC_FULL.md).
type Config struct {
	// Listening socket (spec.md §6).
	Host string
	Port string

	// Selection policy: "" or "r" for round-robin, "c" for least-connections.
	Algorithm string

	// Cache configuration (spec.md §4.5).
	CacheEnabled    bool
	CacheMaxEntries int
	CacheThreshold  float64
	EmbeddingDims   int

	// Dispatcher worker pool (adapted from the teacher's WorkerPoolConfig).
	DispatchWorkers   int
	DispatchQueueSize int

	// Deadlines (spec.md §5). RegisterDeadline is parsed but not passed to
	// the dispatcher, which always applies its fixed InitialFrameDeadline
	// (5s) to a connection's first frame.
	RegisterDeadline  time.Duration
	HeartbeatDeadline time.Duration

	// Correlation table sweep backstop (spec.md §4.4 termination cleanup).
	CorrelationSweepInterval time.Duration
	CorrelationMaxAge        time.Duration

	// Rate limiting (optional, supplemental — see SPEC_FULL.md §4).
	RateLimitEnabled bool
	RateLimitPerSec  float64
	RateLimitBurst   float64

	// Frame validation.
	ValidationEnabled bool

	// Monitoring (observability hooks).
	MonitoringEnabled  bool
	MonitoringInterval time.Duration

	// MetricsAddr is parsed from -metrics-addr but nothing reads it: the
	// balancer starts no HTTP listener, and its Prometheus collectors are
	// not served over the network.
	MetricsAddr string

	// SpawnCommands optionally launches backend subprocesses at startup and
	// terminates them on shutdown (original_source/load_balancer.py
	// start_servers/stop_servers, supplemented per SPEC_FULL.md §4).
	SpawnCommands []string
}

// Default returns semalb's default configuration: spec.md's fixed
// LB_HOST/LB_PORT, round-robin, and the cache's default threshold.
func Default() Config {
	return Config{
		Host:      "localhost",
		Port:      "1234",
		Algorithm: "r",

		CacheEnabled:    true,
		CacheMaxEntries: 256,
		CacheThreshold:  0.95,
		EmbeddingDims:   64,

		DispatchWorkers:   64,
		DispatchQueueSize: 256,

		RegisterDeadline:  5 * time.Second,
		HeartbeatDeadline: 10 * time.Second,

		CorrelationSweepInterval: time.Minute,
		CorrelationMaxAge:        10 * time.Minute,

		RateLimitEnabled: false,
		RateLimitPerSec:  50,
		RateLimitBurst:   100,

		ValidationEnabled: true,

		MonitoringEnabled:  true,
		MonitoringInterval: 60 * time.Second,

		MetricsAddr: "",
	}
}

// LoadFromFlags parses os.Args (minus the positional algorithm argument,
// which main.go consumes per spec.md §6's "<program> [r|c]" CLI) into a
// Config, then applies environment variable overrides.
func LoadFromFlags(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := Default()

	fs.StringVar(&cfg.Host, "host", cfg.Host, "Listening host")
	fs.StringVar(&cfg.Port, "port", cfg.Port, "Listening port")

	fs.BoolVar(&cfg.CacheEnabled, "cache-enabled", cfg.CacheEnabled, "Enable the semantic cache")
	fs.IntVar(&cfg.CacheMaxEntries, "cache-max-entries", cfg.CacheMaxEntries, "Maximum cached entries")
	fs.Float64Var(&cfg.CacheThreshold, "cache-threshold", cfg.CacheThreshold, "Cosine similarity threshold (tau)")
	fs.IntVar(&cfg.EmbeddingDims, "embedding-dims", cfg.EmbeddingDims, "Dimensionality of the default hashing embedder")

	fs.IntVar(&cfg.DispatchWorkers, "dispatch-workers", cfg.DispatchWorkers, "Number of dispatcher worker goroutines")
	fs.IntVar(&cfg.DispatchQueueSize, "dispatch-queue-size", cfg.DispatchQueueSize, "Dispatcher accept queue size")

	fs.DurationVar(&cfg.RegisterDeadline, "register-deadline", cfg.RegisterDeadline, "Deadline for a connection's first frame (not applied: the dispatcher uses a fixed 5s)")
	fs.DurationVar(&cfg.HeartbeatDeadline, "heartbeat-deadline", cfg.HeartbeatDeadline, "Deadline between backend heartbeats")

	fs.DurationVar(&cfg.CorrelationSweepInterval, "correlation-sweep-interval", cfg.CorrelationSweepInterval, "Interval between correlation-table sweeps")
	fs.DurationVar(&cfg.CorrelationMaxAge, "correlation-max-age", cfg.CorrelationMaxAge, "Maximum age of a pending correlation entry")

	fs.BoolVar(&cfg.RateLimitEnabled, "rate-limit-enabled", cfg.RateLimitEnabled, "Enable per-client-IP connection rate limiting")
	fs.Float64Var(&cfg.RateLimitPerSec, "rate-limit-per-sec", cfg.RateLimitPerSec, "Allowed connections per second per client IP")
	fs.Float64Var(&cfg.RateLimitBurst, "rate-limit-burst", cfg.RateLimitBurst, "Burst allowance per client IP")

	fs.BoolVar(&cfg.ValidationEnabled, "validation-enabled", cfg.ValidationEnabled, "Enable wire frame validation")

	fs.BoolVar(&cfg.MonitoringEnabled, "monitoring-enabled", cfg.MonitoringEnabled, "Enable periodic stats reporting")
	fs.DurationVar(&cfg.MonitoringInterval, "monitoring-interval", cfg.MonitoringInterval, "Stats reporting interval")

	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "Metrics address (accepted but unused: no metrics listener is started)")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg.Host = getEnv("LB_HOST", cfg.Host)
	cfg.Port = getEnv("LB_PORT", cfg.Port)
	cfg.MonitoringEnabled = getEnvBool("MONITORING_ENABLED", cfg.MonitoringEnabled)
	cfg.RateLimitEnabled = getEnvBool("RATE_LIMIT_ENABLED", cfg.RateLimitEnabled)

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

// ToCacheConfig converts Config to the cache package's Config.
func (c Config) ToCacheConfig() cache.Config {
	return cache.Config{
		MaxEntries: c.CacheMaxEntries,
		Threshold:  c.CacheThreshold,
	}
}

// ToRateLimitConfig converts Config to the ratelimit package's Config.
func (c Config) ToRateLimitConfig() ratelimit.Config {
	return ratelimit.Config{
		Enabled:           c.RateLimitEnabled,
		RequestsPerSecond: c.RateLimitPerSec,
		BurstSize:         c.RateLimitBurst,
		CleanupInterval:   5 * time.Minute,
		MaxIdle:           10 * time.Minute,
	}
}

// ToValidatorConfig converts Config to the wire package's ValidatorConfig.
func (c Config) ToValidatorConfig() wire.ValidatorConfig {
	return wire.ValidatorConfig{
		Enabled:       c.ValidationEnabled,
		MaxFrameBytes: wire.MaxDataSize,
		LogViolations: true,
	}
}

// StartCorrelationSweeper starts table's sweeper with this config's sweep
// interval and maximum entry age.
func (c Config) StartCorrelationSweeper(table *correlation.Table, stop <-chan struct{}) {
	table.StartSweeper(c.CorrelationSweepInterval, c.CorrelationMaxAge, stop)
}
