package estimator

import (
	"time"

	"gonum.org/v1/gonum/spatial/r3"
)

// WindowSize is the number of samples the five-point stencil needs.
const WindowSize = 5

// WindowedConfig parameterises the windowed strategy.
type WindowedConfig struct {
	Gain   float64
	Period time.Duration
}

// Windowed estimates dB/dt with a five-point central difference over the most
// recent WindowSize samples, assumed evenly spaced at Period. The moment is
// -Gain * dB/dt per axis.
type Windowed struct {
	cfg     WindowedConfig
	history [WindowSize]Sample
	next    int
	count   int
}

// NewWindowed returns an empty windowed estimator.
func NewWindowed(cfg WindowedConfig) *Windowed {
	return &Windowed{cfg: cfg}
}

// AddSample appends to the window, overwriting the oldest sample once full.
func (w *Windowed) AddSample(field r3.Vec, timestamp uint64) {
	w.history[w.next] = Sample{Field: field, Timestamp: timestamp}
	w.next = (w.next + 1) % WindowSize
	if w.count < WindowSize {
		w.count++
	}
}

// SamplingComplete reports whether the window is full.
func (w *Windowed) SamplingComplete() bool {
	return w.count == WindowSize
}

// MagneticMoment returns the moment over the current window.
func (w *Windowed) MagneticMoment() (r3.Vec, error) {
	if !w.SamplingComplete() {
		return r3.Vec{}, ErrInsufficientHistory
	}
	h := w.cfg.Period.Seconds()
	if h <= 0 {
		return r3.Vec{}, ErrSampleTooSoon
	}

	// oldest to newest
	var s [WindowSize]r3.Vec
	for i := range s {
		s[i] = w.history[(w.next+i)%WindowSize].Field
	}

	// f'(x2) = (f0 - 8 f1 + 8 f3 - f4) / 12h
	num := r3.Add(r3.Sub(s[0], s[4]), r3.Scale(8, r3.Sub(s[3], s[1])))
	derivative := r3.Scale(1/(12*h), num)
	return r3.Scale(-w.cfg.Gain, derivative), nil
}

// EmptySampleSet clears the window so the instance can be refilled.
func (w *Windowed) EmptySampleSet() {
	w.history = [WindowSize]Sample{}
	w.next = 0
	w.count = 0
}

// Estimate adds s and returns the moment once the window is full.
func (w *Windowed) Estimate(s Sample) (r3.Vec, error) {
	w.AddSample(s.Field, s.Timestamp)
	return w.MagneticMoment()
}

// Reset is EmptySampleSet.
func (w *Windowed) Reset() {
	w.EmptySampleSet()
}

var _ Estimator = (*Windowed)(nil)
