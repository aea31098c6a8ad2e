package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// ============================================================================
// WIRE FRAMING UNIT TESTS
// ============================================================================

func TestIsRegistration(t *testing.T) {
	assert.True(t, IsRegistration("REGISTER|localhost|2001"))
	assert.False(t, IsRegistration("hello world"))
}

func TestParseRegistration_WellFormed(t *testing.T) {
	host, port, ok := ParseRegistration("REGISTER|localhost|2001")
	assert.True(t, ok)
	assert.Equal(t, "localhost", host)
	assert.Equal(t, "2001", port)
}

// TestParseRegistration_Malformed covers scenario 4 from spec.md §8: a
// registration frame missing its port field is rejected.
func TestParseRegistration_Malformed(t *testing.T) {
	cases := []string{
		"REGISTER|localhost",
		"REGISTER|localhost|2001|extra",
		"REGISTER||2001",
		"REGISTER|localhost|",
		"not even close",
	}
	for _, c := range cases {
		_, _, ok := ParseRegistration(c)
		assert.False(t, ok, "expected %q to be malformed", c)
	}
}

func TestEncodeRequest(t *testing.T) {
	assert.Equal(t, "abc123|hello", EncodeRequest("abc123", "hello"))
}

func TestParseResponse_WellFormed(t *testing.T) {
	id, payload, ok := ParseResponse("abc123|world")
	assert.True(t, ok)
	assert.Equal(t, "abc123", id)
	assert.Equal(t, "world", payload)
}

func TestParseResponse_PayloadMayContainPipes(t *testing.T) {
	id, payload, ok := ParseResponse("abc123|a|b|c")
	assert.True(t, ok)
	assert.Equal(t, "abc123", id)
	assert.Equal(t, "a|b|c", payload)
}

func TestParseResponse_MissingPipeIsMalformed(t *testing.T) {
	_, _, ok := ParseResponse("no pipe here")
	assert.False(t, ok)
}
