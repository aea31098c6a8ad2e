package registry

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// REGISTRY UNIT TESTS
// ============================================================================

func TestAdd_RejectsDuplicateLiveBackend(t *testing.T) {
	r := New()
	_, err := r.Add("localhost", "2001", nil)
	require.NoError(t, err)

	_, err = r.Add("localhost", "2001", nil)
	assert.ErrorIs(t, err, ErrDuplicateBackend)
}

func TestAdd_AllowsReregistrationAfterRemove(t *testing.T) {
	r := New()
	_, err := r.Add("localhost", "2001", nil)
	require.NoError(t, err)

	r.Remove("localhost", "2001")

	_, err = r.Add("localhost", "2001", nil)
	assert.NoError(t, err, "a removed address should be re-registerable")
}

func TestRemove_IsAbsentFromSnapshotAndByAddr(t *testing.T) {
	r := New()
	_, err := r.Add("localhost", "2001", nil)
	require.NoError(t, err)

	r.Remove("localhost", "2001")

	assert.Equal(t, 0, r.Len())
	_, ok := r.ByAddr("localhost", "2001")
	assert.False(t, ok)
	assert.Empty(t, r.Snapshot())
}

func TestRemove_UnknownAddressIsANoop(t *testing.T) {
	r := New()
	assert.NotPanics(t, func() { r.Remove("localhost", "9999") })
}

func TestSnapshot_PreservesRegistrationOrder(t *testing.T) {
	r := New()
	_, err := r.Add("localhost", "2001", nil)
	require.NoError(t, err)
	_, err = r.Add("localhost", "2002", nil)
	require.NoError(t, err)
	_, err = r.Add("localhost", "2003", nil)
	require.NoError(t, err)

	snap := r.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, "localhost:2001", snap[0].Addr())
	assert.Equal(t, "localhost:2002", snap[1].Addr())
	assert.Equal(t, "localhost:2003", snap[2].Addr())
}

func TestIncrDecrLocked_TrackInFlight(t *testing.T) {
	r := New()
	b, err := r.Add("localhost", "2001", nil)
	require.NoError(t, err)

	r.Lock()
	r.IncrLocked(b)
	r.IncrLocked(b)
	r.Unlock()
	assert.EqualValues(t, 2, b.InFlight())

	r.Decr(b)
	assert.EqualValues(t, 1, b.InFlight())
}

func TestDecrLocked_NeverGoesNegative(t *testing.T) {
	r := New()
	b, err := r.Add("localhost", "2001", nil)
	require.NoError(t, err)

	r.Decr(b)
	assert.EqualValues(t, 0, b.InFlight(), "in_flight must never go negative (I2)")
}

func TestByAddr_ConnIsPreserved(t *testing.T) {
	r := New()
	client, _ := net.Pipe()
	defer client.Close()

	b, err := r.Add("localhost", "2001", client)
	require.NoError(t, err)
	assert.Equal(t, client, b.Conn)
}

func TestGeneration_IncrementsPerRegistration(t *testing.T) {
	r := New()
	b1, err := r.Add("localhost", "2001", nil)
	require.NoError(t, err)
	r.Remove("localhost", "2001")
	b2, err := r.Add("localhost", "2001", nil)
	require.NoError(t, err)

	assert.NotEqual(t, b1.Generation(), b2.Generation())
	assert.False(t, b1.Live())
	assert.True(t, b2.Live())
}
