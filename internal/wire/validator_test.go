package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// ============================================================================
// FRAME VALIDATOR UNIT TESTS
// ============================================================================

func TestCheckSize_AllowsWithinBound(t *testing.T) {
	v := NewValidator(DefaultValidatorConfig())
	assert.True(t, v.CheckSize(100))
	assert.True(t, v.CheckSize(MaxDataSize))
}

func TestCheckSize_RejectsOversize(t *testing.T) {
	v := NewValidator(DefaultValidatorConfig())
	assert.False(t, v.CheckSize(MaxDataSize+1))

	stats := v.Stats()
	assert.EqualValues(t, 1, stats.OversizeFrames)
	assert.EqualValues(t, 1, stats.TotalFrames)
}

func TestCheckSize_DisabledAlwaysAllows(t *testing.T) {
	v := NewValidator(ValidatorConfig{Enabled: false, MaxFrameBytes: 10})
	assert.True(t, v.CheckSize(1000))
}

func TestRecordMalformed_UpdatesStats(t *testing.T) {
	v := NewValidator(DefaultValidatorConfig())
	v.RecordMalformedRegister()
	v.RecordMalformedRegister()
	v.RecordMalformedResponse()

	stats := v.Stats()
	assert.EqualValues(t, 2, stats.MalformedRegister)
	assert.EqualValues(t, 1, stats.MalformedResponse)
}
