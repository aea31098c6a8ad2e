// Package monitor prints periodic human-readable stats reports, retargeted
// from the teacher's MonitoringManager (server/monitoring.go): same
// ticker-driven loop and startup configuration banner, swapping SQL
// cache/validation stats for registry/cache/correlation stats and trading
// raw emoji fmt.Printf calls for github.com/fatih/color section headers
// (github.com/nabbar/golib's console/color.go shows this pattern in the
// retrieval pack; the teacher itself never imports a color library).
package monitor

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/lordbasex/semalb/internal/cache"
	"github.com/lordbasex/semalb/internal/config"
	"github.com/lordbasex/semalb/internal/correlation"
	"github.com/lordbasex/semalb/internal/registry"
)

var (
	headerColor = color.New(color.FgCyan, color.Bold)
	labelColor  = color.New(color.FgYellow)
	valueColor  = color.New(color.FgGreen)
)

// Monitor periodically reports registry, cache, and correlation-table
// statistics to stdout.
type Monitor struct {
	Registry    *registry.Registry
	Cache       *cache.SemanticCache
	Correlation *correlation.Table
	Interval    time.Duration

	startTime time.Time
	stopCh    chan struct{}
}

// New builds a Monitor with the given interval. Interval <= 0 falls back to
// one minute.
func New(reg *registry.Registry, c *cache.SemanticCache, corr *correlation.Table, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Monitor{
		Registry:    reg,
		Cache:       c,
		Correlation: corr,
		Interval:    interval,
		startTime:   time.Now(),
		stopCh:      make(chan struct{}),
	}
}

// Start begins the reporting loop in its own goroutine.
func (m *Monitor) Start() {
	go m.loop()
}

// Stop halts the reporting loop.
func (m *Monitor) Stop() {
	close(m.stopCh)
}

func (m *Monitor) loop() {
	ticker := time.NewTicker(m.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.report()
		}
	}
}

func (m *Monitor) report() {
	var cacheStats cache.Stats
	if m.Cache != nil {
		cacheStats = m.Cache.GetStats()
	}
	total := cacheStats.Hits + cacheStats.Misses

	if total == 0 && m.Registry.Len() == 0 {
		fmt.Printf("system idle (uptime %v)\n", time.Since(m.startTime).Round(time.Second))
		return
	}

	headerColor.Printf("\n%s\n", strings.Repeat("=", 60))
	headerColor.Printf("balancer status report - %s\n", time.Now().Format("15:04:05"))
	headerColor.Printf("%s\n", strings.Repeat("=", 60))

	labelColor.Print("uptime: ")
	valueColor.Printf("%v\n", time.Since(m.startTime).Round(time.Second))

	labelColor.Println("backends:")
	for _, b := range m.Registry.Snapshot() {
		valueColor.Printf("  %s  in_flight=%d\n", b.Addr(), b.InFlight())
	}
	if m.Registry.Len() == 0 {
		valueColor.Println("  (none registered)")
	}

	labelColor.Println("cache:")
	if m.Cache == nil {
		valueColor.Println("  (disabled)")
	} else {
		valueColor.Printf("  hits=%d misses=%d evictions=%d size=%d\n",
			cacheStats.Hits, cacheStats.Misses, cacheStats.Evictions, m.Cache.Len())
		if total > 0 {
			valueColor.Printf("  hit ratio=%.2f%%\n", float64(cacheStats.Hits)/float64(total)*100)
		}
	}

	labelColor.Print("pending correlations: ")
	valueColor.Printf("%d\n", m.Correlation.Len())
}

// PrintStartupBanner prints a one-shot configuration summary at process
// start, the retarget of the teacher's DisplayConfiguration.
func PrintStartupBanner(cfg config.Config, policyName string) {
	headerColor.Println("semalb load balancer")
	headerColor.Println(strings.Repeat("=", 40))
	labelColor.Print("listening: ")
	valueColor.Printf("%s:%s\n", cfg.Host, cfg.Port)
	labelColor.Print("policy: ")
	valueColor.Printf("%s\n", policyName)
	labelColor.Print("cache: ")
	valueColor.Printf("enabled=%v max_entries=%d threshold=%.2f\n", cfg.CacheEnabled, cfg.CacheMaxEntries, cfg.CacheThreshold)
	labelColor.Print("dispatcher: ")
	valueColor.Printf("workers=%d queue=%d\n", cfg.DispatchWorkers, cfg.DispatchQueueSize)
	labelColor.Print("rate limiting: ")
	valueColor.Printf("%v\n", cfg.RateLimitEnabled)
	if len(cfg.SpawnCommands) > 0 {
		labelColor.Print("spawned backends: ")
		valueColor.Printf("%d\n", len(cfg.SpawnCommands))
	}
}
