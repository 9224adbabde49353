package actuator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func referenceCoil() CoilConfig {
	return CoilConfig{
		Shape:      Rectangular,
		Width:      0.1,
		Length:     0.2,
		Turns:      100,
		Voltage:    5,
		Resistance: 10,
		Direction:  1,
	}
}

func TestMaxDipole(t *testing.T) {
	m := NewMapper(referenceCoil())
	assert.InDelta(t, 1.0, m.MaxDipole(), 1e-12)
}

func TestDriveScaling(t *testing.T) {
	m := NewMapper(referenceCoil())

	assert.Equal(t, int8(127), m.Drive(1.0))
	assert.InDelta(t, 64, int(m.Drive(0.5)), 1)
	assert.Equal(t, int8(-127), m.Drive(-1.0))
	assert.Equal(t, int8(127), m.Drive(2.0))
	assert.Equal(t, int8(-127), m.Drive(-50))
	assert.Equal(t, int8(0), m.Drive(0))
	assert.Equal(t, int8(0), m.Drive(math.NaN()))
}

func TestDriveDirection(t *testing.T) {
	cfg := referenceCoil()
	cfg.Direction = -1
	m := NewMapper(cfg)

	assert.Equal(t, int8(-127), m.Drive(1.0))
	assert.Equal(t, int8(127), m.Drive(-3.0))
}

func TestDriveDegenerateCoil(t *testing.T) {
	tests := map[string]func(*CoilConfig){
		"zero resistance": func(c *CoilConfig) { c.Resistance = 0 },
		"zero turns":      func(c *CoilConfig) { c.Turns = 0 },
		"zero area":       func(c *CoilConfig) { c.Width = 0 },
	}

	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := referenceCoil()
			mutate(&cfg)
			m := NewMapper(cfg)
			assert.Zero(t, m.MaxDipole())
			for _, req := range []float64{-10, -1, 0, 0.5, 1, 10} {
				assert.Equal(t, int8(0), m.Drive(req))
			}
		})
	}
}

func TestCircularArea(t *testing.T) {
	cfg := CoilConfig{Shape: Circular, Diameter: 0.2, Turns: 200, Voltage: 3.3, Resistance: 33, Direction: 1}
	m := NewMapper(cfg)
	assert.InDelta(t, math.Pi*0.01, cfg.Area(), 1e-12)
	assert.InDelta(t, 200*0.1*math.Pi*0.01, m.MaxDipole(), 1e-12)
	assert.Equal(t, int8(127), m.Drive(m.MaxDipole()))
}

func TestDipoleInverse(t *testing.T) {
	cfg := referenceCoil()
	cfg.Direction = -1
	m := NewMapper(cfg)

	for _, req := range []float64{-1, -0.25, 0, 0.4, 1} {
		got := m.Dipole(m.Drive(req))
		assert.InDelta(t, req, got, 1.0/MaxDrive)
	}
}

func TestParseShape(t *testing.T) {
	s, err := ParseShape("Circular")
	require.NoError(t, err)
	assert.Equal(t, Circular, s)

	s, err = ParseShape("rectangular")
	require.NoError(t, err)
	assert.Equal(t, Rectangular, s)

	_, err = ParseShape("hexagonal")
	assert.Error(t, err)
}

func TestTorquers(t *testing.T) {
	coil := referenceCoil()
	flipped := coil
	flipped.Direction = -1
	tq := NewTorquers(coil, flipped, coil)

	drive := tq.Drive(r3.Vec{X: 0.25, Y: 0.25, Z: -4})
	assert.Equal(t, [3]int8{32, -32, -127}, drive)

	dipole := tq.Dipole(drive)
	assert.InDelta(t, 0.25, dipole.X, 0.01)
	assert.InDelta(t, 0.25, dipole.Y, 0.01)
	assert.InDelta(t, -1, dipole.Z, 1e-12)
}
