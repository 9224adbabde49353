// Package actuator converts commanded dipole moments into signed torque rod
// drive values.
package actuator

import (
	"fmt"
	"math"
	"strings"
)

// MaxDrive is the full-scale drive value; outputs lie in [-MaxDrive, MaxDrive].
const MaxDrive = 127

// Shape is the coil cross-section.
type Shape int

const (
	Rectangular Shape = iota
	Circular
)

func (s Shape) String() string {
	switch s {
	case Rectangular:
		return "rectangular"
	case Circular:
		return "circular"
	default:
		return fmt.Sprintf("shape(%d)", int(s))
	}
}

// ParseShape accepts "rectangular" or "circular", case-insensitively.
func ParseShape(v string) (Shape, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "rectangular", "rect":
		return Rectangular, nil
	case "circular", "circle":
		return Circular, nil
	default:
		return 0, fmt.Errorf("unknown coil shape %q", v)
	}
}

// CoilConfig describes one torque rod. Width and Length (metres) apply to
// rectangular coils, Diameter to circular ones. Direction is +1 or -1.
type CoilConfig struct {
	Shape      Shape
	Width      float64
	Length     float64
	Diameter   float64
	Turns      int
	Voltage    float64
	Resistance float64
	Direction  int
}

// Area returns the coil cross-section in m².
func (c CoilConfig) Area() float64 {
	switch c.Shape {
	case Rectangular:
		return c.Width * c.Length
	case Circular:
		r := c.Diameter / 2
		return math.Pi * r * r
	default:
		return 0
	}
}

// Mapper maps a dipole request for one coil onto its drive range.
type Mapper struct {
	cfg       CoilConfig
	maxDipole float64
}

// NewMapper precomputes the maximum deliverable dipole of cfg.
func NewMapper(cfg CoilConfig) Mapper {
	return Mapper{cfg: cfg, maxDipole: maxDipole(cfg)}
}

func maxDipole(cfg CoilConfig) float64 {
	area := cfg.Area()
	if area == 0 || cfg.Turns == 0 || cfg.Resistance == 0 {
		return 0
	}
	current := cfg.Voltage / cfg.Resistance
	return float64(cfg.Turns) * current * area
}

// MaxDipole returns turns * V/R * area in A·m², or 0 for a degenerate coil.
func (m Mapper) MaxDipole() float64 {
	return m.maxDipole
}

// Config returns the coil configuration.
func (m Mapper) Config() CoilConfig {
	return m.cfg
}

// Drive returns the signed drive value for the requested dipole. Requests
// beyond the coil's capability saturate at ±MaxDrive.
func (m Mapper) Drive(dipole float64) int8 {
	if m.maxDipole == 0 || math.IsNaN(dipole) {
		return 0
	}

	fraction := dipole / m.maxDipole
	fraction = math.Max(-1, math.Min(1, fraction))

	out := int8(math.Round(fraction * MaxDrive))
	if m.cfg.Direction < 0 {
		out = -out
	}
	return out
}

// Dipole is the inverse of Drive: the moment produced when the coil is driven
// at value.
func (m Mapper) Dipole(value int8) float64 {
	d := float64(value) / MaxDrive * m.maxDipole
	if m.cfg.Direction < 0 {
		d = -d
	}
	return d
}
