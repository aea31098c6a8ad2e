package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lordbasex/semalb/internal/registry"
)

// ============================================================================
// SELECTION POLICY UNIT TESTS
// ============================================================================

func TestNew_UnknownAlgorithmIsAnError(t *testing.T) {
	_, err := New("x", registry.New())
	assert.Error(t, err)
}

func TestNew_DefaultAndExplicitRoundRobin(t *testing.T) {
	reg := registry.New()
	p1, err := New("", reg)
	require.NoError(t, err)
	assert.Equal(t, "round-robin", p1.Name())

	p2, err := New("r", reg)
	require.NoError(t, err)
	assert.Equal(t, "round-robin", p2.Name())
}

func TestRoundRobin_NoBackendsAvailable(t *testing.T) {
	p := NewRoundRobin(registry.New())
	_, err := p.Pick()
	assert.ErrorIs(t, err, ErrNoBackendsAvailable)
}

// TestRoundRobin_Rotation covers scenario 1 from spec.md §8: four picks
// against two backends rotate B1, B2, B1, B2 in registration order.
func TestRoundRobin_Rotation(t *testing.T) {
	reg := registry.New()
	_, err := reg.Add("localhost", "2001", nil)
	require.NoError(t, err)
	_, err = reg.Add("localhost", "2002", nil)
	require.NoError(t, err)

	p := NewRoundRobin(reg)

	var picks []string
	for i := 0; i < 4; i++ {
		b, err := p.Pick()
		require.NoError(t, err)
		picks = append(picks, b.Addr())
	}

	assert.Equal(t, []string{"localhost:2001", "localhost:2002", "localhost:2001", "localhost:2002"}, picks)
}

func TestRoundRobin_FairnessOverKRounds(t *testing.T) {
	reg := registry.New()
	for _, port := range []string{"2001", "2002", "2003"} {
		_, err := reg.Add("localhost", port, nil)
		require.NoError(t, err)
	}
	p := NewRoundRobin(reg)

	counts := map[string]int{}
	const k = 5
	for i := 0; i < k*3; i++ {
		b, err := p.Pick()
		require.NoError(t, err)
		counts[b.Addr()]++
	}

	for addr, c := range counts {
		assert.Equal(t, k, c, "backend %s should be picked exactly k times", addr)
	}
}

func TestRoundRobin_CursorClampsAfterRemoval(t *testing.T) {
	reg := registry.New()
	_, err := reg.Add("localhost", "2001", nil)
	require.NoError(t, err)
	_, err = reg.Add("localhost", "2002", nil)
	require.NoError(t, err)
	_, err = reg.Add("localhost", "2003", nil)
	require.NoError(t, err)

	p := NewRoundRobin(reg)
	_, err = p.Pick() // cursor -> 1
	require.NoError(t, err)
	_, err = p.Pick() // cursor -> 2
	require.NoError(t, err)

	reg.Remove("localhost", "2003") // n = 2, cursor 2 is past the end

	b, err := p.Pick()
	require.NoError(t, err)
	assert.Equal(t, "localhost:2001", b.Addr(), "cursor must not index past the shrunk registry")
}

func TestLeastConnections_NoBackendsAvailable(t *testing.T) {
	p := NewLeastConnections(registry.New())
	_, err := p.Pick()
	assert.ErrorIs(t, err, ErrNoBackendsAvailable)
}

// TestLeastConnections_PrefersIdle covers scenario 2 from spec.md §8: once
// one backend is holding a session, the next pick goes to the other.
func TestLeastConnections_PrefersIdle(t *testing.T) {
	reg := registry.New()
	_, err := reg.Add("localhost", "2001", nil)
	require.NoError(t, err)
	_, err = reg.Add("localhost", "2002", nil)
	require.NoError(t, err)

	p := NewLeastConnections(reg)

	first, err := p.Pick()
	require.NoError(t, err)

	second, err := p.Pick()
	require.NoError(t, err)

	assert.NotEqual(t, first.Addr(), second.Addr())
}

func TestLeastConnections_TiesBrokenByInsertionOrder(t *testing.T) {
	reg := registry.New()
	_, err := reg.Add("localhost", "2001", nil)
	require.NoError(t, err)
	_, err = reg.Add("localhost", "2002", nil)
	require.NoError(t, err)

	p := NewLeastConnections(reg)
	b, err := p.Pick()
	require.NoError(t, err)
	assert.Equal(t, "localhost:2001", b.Addr(), "equal in_flight ties go to the earliest-registered backend")
}
