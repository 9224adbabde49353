// Package sim models a tumbling rigid spacecraft with three magnetic torque
// rods, closing the loop around the controller without hardware.
package sim

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"bdot-detumbler/internal/actuator"
	"bdot-detumbler/internal/clock"
	"bdot-detumbler/internal/sensor"
)

const maxSubstep = 10 * time.Millisecond

// Config parameterises the spacecraft model. Vectors are body axes except
// Field, which is the inertial-frame geomagnetic field in tesla.
type Config struct {
	Step              time.Duration
	Inertia           r3.Vec
	InitialRate       r3.Vec
	Field             r3.Vec
	FieldNoise        float64
	FieldRotationRate float64
	Seed              int64
	SubsecondStart    uint32
	ClockJitter       time.Duration
}

// Spacecraft integrates attitude and body rate under the torque produced by
// the last applied drive command.
type Spacecraft struct {
	cfg      Config
	torquers actuator.Torquers
	rng      *rand.Rand

	attitude quat.Number
	rate     r3.Vec
	elapsed  time.Duration
	drive    [3]int8
	applied  int
}

// New places the spacecraft at identity attitude with the initial rate.
func New(cfg Config, torquers actuator.Torquers) (*Spacecraft, error) {
	if cfg.Step <= 0 {
		return nil, fmt.Errorf("simulation step must be positive")
	}
	if cfg.Inertia.X <= 0 || cfg.Inertia.Y <= 0 || cfg.Inertia.Z <= 0 {
		return nil, fmt.Errorf("simulation inertia must be positive")
	}
	if cfg.ClockJitter > cfg.Step/2 {
		cfg.ClockJitter = cfg.Step / 2
	}
	return &Spacecraft{
		cfg:      cfg,
		torquers: torquers,
		rng:      rand.New(rand.NewSource(cfg.Seed)),
		attitude: quat.Number{Real: 1},
		rate:     cfg.InitialRate,
	}, nil
}

// Advance integrates one configured step.
func (s *Spacecraft) Advance() {
	remaining := s.cfg.Step
	for remaining > 0 {
		dt := maxSubstep
		if remaining < dt {
			dt = remaining
		}
		s.integrate(dt.Seconds())
		remaining -= dt
	}
	s.elapsed += s.cfg.Step
}

func (s *Spacecraft) integrate(dt float64) {
	I := s.cfg.Inertia
	w := s.rate

	torque := r3.Cross(s.torquers.Dipole(s.drive), s.bodyField())
	h := r3.Vec{X: I.X * w.X, Y: I.Y * w.Y, Z: I.Z * w.Z}
	net := r3.Sub(torque, r3.Cross(w, h))

	s.rate = r3.Vec{
		X: w.X + net.X/I.X*dt,
		Y: w.Y + net.Y/I.Y*dt,
		Z: w.Z + net.Z/I.Z*dt,
	}

	half := r3.Scale(0.5*dt, w)
	dq := quat.Exp(quat.Number{Imag: half.X, Jmag: half.Y, Kmag: half.Z})
	s.attitude = normalise(quat.Mul(s.attitude, dq))
}

func normalise(q quat.Number) quat.Number {
	n := quat.Abs(q)
	if n == 0 {
		return quat.Number{Real: 1}
	}
	return quat.Scale(1/n, q)
}

// inertialField rotates the configured field about inertial Z to stand in for
// orbital motion.
func (s *Spacecraft) inertialField() r3.Vec {
	f := s.cfg.Field
	if s.cfg.FieldRotationRate == 0 {
		return f
	}
	angle := s.cfg.FieldRotationRate * s.elapsed.Seconds()
	sin, cos := math.Sincos(angle)
	return r3.Vec{X: cos*f.X - sin*f.Y, Y: sin*f.X + cos*f.Y, Z: f.Z}
}

// bodyField is q* B q.
func (s *Spacecraft) bodyField() r3.Vec {
	f := s.inertialField()
	p := quat.Number{Imag: f.X, Jmag: f.Y, Kmag: f.Z}
	r := quat.Mul(quat.Mul(quat.Conj(s.attitude), p), s.attitude)
	return r3.Vec{X: r.Imag, Y: r.Jmag, Z: r.Kmag}
}

// Rate returns the true body rate.
func (s *Spacecraft) Rate() r3.Vec {
	return s.rate
}

// Elapsed returns simulated time.
func (s *Spacecraft) Elapsed() time.Duration {
	return s.elapsed
}

// Applied returns how many commands were applied.
func (s *Spacecraft) Applied() int {
	return s.applied
}

// ReadField implements sensor.Magnetometer.
func (s *Spacecraft) ReadField(ctx context.Context) (r3.Vec, error) {
	b := s.bodyField()
	if s.cfg.FieldNoise > 0 {
		b = r3.Add(b, r3.Vec{
			X: s.rng.NormFloat64() * s.cfg.FieldNoise,
			Y: s.rng.NormFloat64() * s.cfg.FieldNoise,
			Z: s.rng.NormFloat64() * s.cfg.FieldNoise,
		})
	}
	return b, nil
}

// ReadRate implements sensor.Gyroscope.
func (s *Spacecraft) ReadRate(ctx context.Context) (r3.Vec, error) {
	return s.rate, nil
}

// ReadClock implements sensor.Clock as a free-running RTC.
func (s *Spacecraft) ReadClock(ctx context.Context) (clock.Reading, error) {
	us := uint64(s.cfg.SubsecondStart) + uint64(s.elapsed.Microseconds())
	if s.cfg.ClockJitter > 0 {
		us += uint64(s.rng.Int63n(s.cfg.ClockJitter.Microseconds() + 1))
	}
	return clock.Reading{
		Seconds:    uint32(us / clock.SubsecondModulus),
		Subseconds: uint32(us % clock.SubsecondModulus),
	}, nil
}

// Apply implements sensor.Actuator.
func (s *Spacecraft) Apply(ctx context.Context, cmd sensor.Command) error {
	s.drive = cmd.Drive
	s.applied++
	return nil
}

// Suite exposes the spacecraft as every endpoint.
func (s *Spacecraft) Suite() sensor.Suite {
	return sensor.Suite{Magnetometer: s, Gyroscope: s, Clock: s, Actuator: s}
}
