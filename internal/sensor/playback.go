package sensor

import (
	"context"

	"gonum.org/v1/gonum/spatial/r3"

	"bdot-detumbler/internal/clock"
)

// Frame is one recorded set of sensor readings.
type Frame struct {
	Clock clock.Reading
	Field r3.Vec
	Rate  r3.Vec
}

// Playback serves a loaded frame to every sensor interface and records the
// commands it receives.
type Playback struct {
	frame    Frame
	loaded   bool
	Commands []Command
}

// Load makes f the current frame.
func (p *Playback) Load(f Frame) {
	p.frame = f
	p.loaded = true
}

// ReadField implements Magnetometer.
func (p *Playback) ReadField(ctx context.Context) (r3.Vec, error) {
	if !p.loaded {
		return r3.Vec{}, ErrNoFrame
	}
	return p.frame.Field, nil
}

// ReadRate implements Gyroscope.
func (p *Playback) ReadRate(ctx context.Context) (r3.Vec, error) {
	if !p.loaded {
		return r3.Vec{}, ErrNoFrame
	}
	return p.frame.Rate, nil
}

// ReadClock implements Clock.
func (p *Playback) ReadClock(ctx context.Context) (clock.Reading, error) {
	if !p.loaded {
		return clock.Reading{}, ErrNoFrame
	}
	return p.frame.Clock, nil
}

// Apply implements Actuator.
func (p *Playback) Apply(ctx context.Context, cmd Command) error {
	p.Commands = append(p.Commands, cmd)
	return nil
}

// Suite exposes the playback as every endpoint.
func (p *Playback) Suite() Suite {
	return Suite{Magnetometer: p, Gyroscope: p, Clock: p, Actuator: p}
}
