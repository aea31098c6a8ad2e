package wire

import (
	"sync"
)

// Validator tracks frame-level protocol violations, retargeted from the
// teacher's SQLValidator (server/sql_validator.go): the same
// enable/disable + violation-statistics shape, but checking wire-frame
// shape (field counts, size bounds) instead of SQL command whitelists.
type Validator struct {
	cfg ValidatorConfig

	mu    sync.Mutex
	stats ValidatorStats
}

// ValidatorConfig controls which checks run and whether violations are
// logged.
type ValidatorConfig struct {
	Enabled       bool
	MaxFrameBytes int
	LogViolations bool
}

// DefaultValidatorConfig enables validation with the protocol's fixed frame
// bound (spec.md §4.1).
func DefaultValidatorConfig() ValidatorConfig {
	return ValidatorConfig{
		Enabled:       true,
		MaxFrameBytes: MaxDataSize,
		LogViolations: true,
	}
}

// ValidatorStats counts how many frames were validated and why any were
// rejected.
type ValidatorStats struct {
	TotalFrames       int64
	OversizeFrames    int64
	MalformedRegister int64
	MalformedResponse int64
}

// NewValidator builds a Validator from cfg.
func NewValidator(cfg ValidatorConfig) *Validator {
	return &Validator{cfg: cfg}
}

// CheckSize records and enforces the MAX_DATA_SIZE bound on a raw read. It
// returns false if the frame exceeds the configured limit.
func (v *Validator) CheckSize(n int) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.stats.TotalFrames++
	if v.cfg.Enabled && n > v.cfg.MaxFrameBytes {
		v.stats.OversizeFrames++
		return false
	}
	return true
}

// RecordMalformedRegister notes a registration frame that failed
// ParseRegistration.
func (v *Validator) RecordMalformedRegister() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.stats.MalformedRegister++
}

// RecordMalformedResponse notes a backend response frame with no '|'.
func (v *Validator) RecordMalformedResponse() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.stats.MalformedResponse++
}

// Stats returns a snapshot of the validator's counters.
func (v *Validator) Stats() ValidatorStats {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.stats
}
