package sim_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"bdot-detumbler/internal/actuator"
	"bdot-detumbler/internal/clock"
	"bdot-detumbler/internal/config"
	"bdot-detumbler/internal/estimator"
	"bdot-detumbler/internal/mode"
	"bdot-detumbler/internal/service"
	"bdot-detumbler/internal/sim"
)

func rodCoil() actuator.CoilConfig {
	return actuator.CoilConfig{
		Shape: actuator.Rectangular, Width: 0.08, Length: 0.08, Turns: 250,
		Voltage: 5, Resistance: 25, Direction: 1,
	}
}

func baseConfig() sim.Config {
	return sim.Config{
		Step:        100 * time.Millisecond,
		Inertia:     r3.Vec{X: 0.002, Y: 0.002, Z: 0.002},
		InitialRate: r3.Vec{X: 0.1},
		Field:       r3.Vec{Z: 4e-5},
	}
}

func TestFreeRotationConservesRate(t *testing.T) {
	tq := actuator.NewTorquers(rodCoil(), rodCoil(), rodCoil())
	cfg := baseConfig()
	cfg.InitialRate = r3.Vec{X: 0.05, Y: -0.02, Z: 0.03}
	sc, err := sim.New(cfg, tq)
	require.NoError(t, err)

	ctx := context.Background()
	start := r3.Norm(sc.Rate())
	for i := 0; i < 200; i++ {
		sc.Advance()
		b, err := sc.ReadField(ctx)
		require.NoError(t, err)
		assert.InDelta(t, 4e-5, r3.Norm(b), 1e-9)
	}
	assert.InDelta(t, start, r3.Norm(sc.Rate()), 1e-9)
	assert.Equal(t, 20*time.Second, sc.Elapsed())
}

func TestClockWrapsSubseconds(t *testing.T) {
	tq := actuator.NewTorquers(rodCoil(), rodCoil(), rodCoil())
	cfg := baseConfig()
	cfg.SubsecondStart = 999_950
	sc, err := sim.New(cfg, tq)
	require.NoError(t, err)

	ctx := context.Background()
	r := clock.NewRescaler()
	first, _ := sc.ReadClock(ctx)
	assert.Equal(t, clock.Reading{Seconds: 0, Subseconds: 999_950}, first)
	r.Rescale(first)

	sc.Advance()
	next, _ := sc.ReadClock(ctx)
	assert.Equal(t, clock.Reading{Seconds: 1, Subseconds: 99_950}, next)
	assert.Equal(t, uint64(100_000), r.Rescale(next))
}

func TestNewRejectsBadConfig(t *testing.T) {
	tq := actuator.NewTorquers(rodCoil(), rodCoil(), rodCoil())
	cfg := baseConfig()
	cfg.Step = 0
	_, err := sim.New(cfg, tq)
	assert.Error(t, err)

	cfg = baseConfig()
	cfg.Inertia.Y = 0
	_, err = sim.New(cfg, tq)
	assert.Error(t, err)
}

func TestClosedLoopDetumbles(t *testing.T) {
	coil := config.CoilConfig{
		Shape: "rectangular", Width: 0.08, Length: 0.08, Turns: 250,
		Voltage: 5, Resistance: 25, Direction: 1,
	}
	cfg := &config.Config{
		Estimator: estimator.Config{
			Strategy:    estimator.StrategyContinuous,
			Gain:        -1000,
			MinInterval: 10 * time.Millisecond,
			MaxInterval: 500 * time.Millisecond,
		},
		Mode:     mode.Thresholds{Lower: 0.02, Upper: 0.05, Max: 0.5},
		Actuator: config.ActuatorConfig{X: coil, Y: coil, Z: coil},
	}

	tq, err := cfg.Actuator.Torquers()
	require.NoError(t, err)
	sc, err := sim.New(baseConfig(), tq)
	require.NoError(t, err)

	svc, err := service.New(cfg, nil, sc.Suite(), nil, nil, nil, zerolog.Nop())
	require.NoError(t, err)

	ctx := context.Background()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var last service.Result
	for i := 0; i < 600; i++ {
		last, err = svc.Step(ctx, start.Add(sc.Elapsed()))
		require.NoError(t, err)
		sc.Advance()
	}

	assert.Less(t, r3.Norm(sc.Rate()), 0.02)
	assert.Equal(t, mode.Idle, last.Mode)
	stats := svc.Stats()
	assert.Greater(t, stats.Actuated, int64(0))
	assert.Equal(t, int64(2), stats.Transitions)
}
