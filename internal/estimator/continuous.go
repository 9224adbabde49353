package estimator

import (
	"time"

	"gonum.org/v1/gonum/spatial/r3"
)

// Defaults for the continuous strategy.
const (
	DefaultMinInterval  = 10 * time.Millisecond
	DefaultMaxInterval  = 500 * time.Millisecond
	DefaultMinMagnitude = 1e-6
)

// ContinuousConfig parameterises the two-sample strategy. Zero values select
// the package defaults.
type ContinuousConfig struct {
	Gain         float64
	MinInterval  time.Duration
	MaxInterval  time.Duration
	MinMagnitude float64
}

// Continuous differentiates each sample against the previous one and scales by
// Gain / |B|. Every call replaces the reference sample, including rejected ones.
type Continuous struct {
	cfg    ContinuousConfig
	prev   Sample
	primed bool
}

// NewContinuous returns an unprimed continuous estimator.
func NewContinuous(cfg ContinuousConfig) *Continuous {
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = DefaultMinInterval
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = DefaultMaxInterval
	}
	if cfg.MinMagnitude <= 0 {
		cfg.MinMagnitude = DefaultMinMagnitude
	}
	return &Continuous{cfg: cfg}
}

// DipoleMoment computes gain * dB/dt / |B| for the new field sample.
func (c *Continuous) DipoleMoment(field r3.Vec, timestamp uint64, gain float64) (r3.Vec, error) {
	prev, primed := c.prev, c.primed
	c.prev = Sample{Field: field, Timestamp: timestamp}
	c.primed = true

	if !primed {
		return r3.Vec{}, ErrInsufficientHistory
	}

	dtMicros := int64(timestamp - prev.Timestamp)
	if timestamp < prev.Timestamp || dtMicros < c.cfg.MinInterval.Microseconds() {
		return r3.Vec{}, ErrSampleTooSoon
	}
	if dtMicros > c.cfg.MaxInterval.Microseconds() {
		return r3.Vec{}, ErrInsufficientHistory
	}

	dt := float64(dtMicros) / 1e6
	derivative := r3.Scale(1/dt, r3.Sub(field, prev.Field))

	magnitude := r3.Norm(field)
	if magnitude < c.cfg.MinMagnitude {
		return r3.Vec{}, ErrDegenerateMagnitude
	}
	return r3.Scale(gain/magnitude, derivative), nil
}

// Estimate runs DipoleMoment with the configured gain.
func (c *Continuous) Estimate(s Sample) (r3.Vec, error) {
	return c.DipoleMoment(s.Field, s.Timestamp, c.cfg.Gain)
}

// Reset drops the reference sample.
func (c *Continuous) Reset() {
	c.prev = Sample{}
	c.primed = false
}

var _ Estimator = (*Continuous)(nil)
