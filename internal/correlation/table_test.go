package correlation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// CORRELATION TABLE UNIT TESTS
// ============================================================================

func TestPutResolve_RoundTrips(t *testing.T) {
	tbl := New()
	tbl.Put("id-1", "hello")

	text, ok := tbl.Resolve("id-1")
	require.True(t, ok)
	assert.Equal(t, "hello", text)
}

// TestResolve_ConsumesEntryAtMostOnce covers spec.md §8's "correlation
// purity": a second Resolve for the same id finds nothing.
func TestResolve_ConsumesEntryAtMostOnce(t *testing.T) {
	tbl := New()
	tbl.Put("id-1", "hello")

	_, ok := tbl.Resolve("id-1")
	require.True(t, ok)

	_, ok = tbl.Resolve("id-1")
	assert.False(t, ok, "a resolved entry must not be resolvable again")
}

func TestResolve_UnknownIDMisses(t *testing.T) {
	tbl := New()
	_, ok := tbl.Resolve("nope")
	assert.False(t, ok)
}

func TestForget_RemovesWithoutReturning(t *testing.T) {
	tbl := New()
	tbl.Put("id-1", "hello")
	tbl.Forget("id-1")

	assert.Equal(t, 0, tbl.Len())
	_, ok := tbl.Resolve("id-1")
	assert.False(t, ok)
}

func TestForget_UnknownIDIsANoop(t *testing.T) {
	tbl := New()
	assert.NotPanics(t, func() { tbl.Forget("nope") })
}

func TestSweepOlderThan_RemovesOnlyStaleEntries(t *testing.T) {
	tbl := New()
	tbl.Put("stale", "old request")
	tbl.entries["stale"].CreatedAt = time.Now().Add(-time.Hour)
	tbl.Put("fresh", "new request")

	removed := tbl.SweepOlderThan(time.Minute)

	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, tbl.Len())
	_, ok := tbl.Resolve("fresh")
	assert.True(t, ok)
}

func TestLen_ReflectsPendingEntries(t *testing.T) {
	tbl := New()
	assert.Equal(t, 0, tbl.Len())
	tbl.Put("id-1", "a")
	tbl.Put("id-2", "b")
	assert.Equal(t, 2, tbl.Len())
}
