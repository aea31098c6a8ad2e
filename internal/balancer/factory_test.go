package balancer

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lordbasex/semalb/internal/config"
)

// ============================================================================
// BALANCER WIRING TESTS
// ============================================================================

func TestNew_UnknownAlgorithmIsRejected(t *testing.T) {
	cfg := config.Default()
	_, err := New(cfg, "z")
	assert.Error(t, err)
}

func TestNew_WiresCollaborators(t *testing.T) {
	cfg := config.Default()
	b, err := New(cfg, "r")
	require.NoError(t, err)

	assert.NotNil(t, b.Registry)
	assert.NotNil(t, b.Policy)
	assert.NotNil(t, b.Cache)
	assert.NotNil(t, b.Correlation)
	assert.NotNil(t, b.Dispatcher)
	assert.Equal(t, "round-robin", b.Policy.Name())
}

func TestNew_CacheDisabledLeavesItNil(t *testing.T) {
	cfg := config.Default()
	cfg.CacheEnabled = false
	b, err := New(cfg, "c")
	require.NoError(t, err)

	assert.Nil(t, b.Cache)
	assert.Equal(t, "least-connections", b.Policy.Name())
}

func TestStart_BindsAndShutsDownCleanly(t *testing.T) {
	cfg := config.Default()
	cfg.Host = "127.0.0.1"
	cfg.Port = "0" // let the OS assign a free port isn't directly supported by this CLI shape
	cfg.MonitoringEnabled = false

	// Find a free port up front since Balancer.Start binds cfg.Host:cfg.Port
	// directly rather than accepting a pre-built listener.
	probe, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	_, port, err := net.SplitHostPort(probe.Addr().String())
	require.NoError(t, err)
	probe.Close()
	cfg.Port = port

	b, err := New(cfg, "r")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Start(ctx) }()

	// Give the listener a moment to bind, then trigger shutdown.
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("balancer did not shut down within timeout")
	}
}
