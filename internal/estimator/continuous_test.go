package estimator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func newTestContinuous() *Continuous {
	return NewContinuous(ContinuousConfig{
		MinInterval: 10 * time.Millisecond,
		MaxInterval: 500 * time.Millisecond,
	})
}

func TestContinuousFirstCall(t *testing.T) {
	c := newTestContinuous()
	m, err := c.DipoleMoment(r3.Vec{X: 10}, 0, -1000)
	assert.ErrorIs(t, err, ErrInsufficientHistory)
	assert.Equal(t, r3.Vec{}, m)
}

func TestContinuousGating(t *testing.T) {
	tests := []struct {
		name    string
		dt      uint64
		wantErr error
	}{
		{name: "too soon", dt: 5_000, wantErr: ErrSampleTooSoon},
		{name: "gap too large", dt: 600_000, wantErr: ErrInsufficientHistory},
		{name: "minimum spacing", dt: 10_000},
		{name: "maximum spacing", dt: 500_000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestContinuous()
			_, _ = c.DipoleMoment(r3.Vec{X: 10}, 1_000_000, -1000)

			m, err := c.DipoleMoment(r3.Vec{X: 15}, 1_000_000+tt.dt, -1000)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, r3.Vec{}, m)
				return
			}
			assert.NoError(t, err)
			assert.NotEqual(t, r3.Vec{}, m)
		})
	}
}

func TestContinuousMoment(t *testing.T) {
	c := newTestContinuous()
	_, _ = c.DipoleMoment(r3.Vec{X: 10}, 0, -1000)

	m, err := c.DipoleMoment(r3.Vec{X: 15}, 100_000, -1000)
	require.NoError(t, err)
	assert.InDelta(t, -3333.333, m.X, 1e-3)
	assert.InDelta(t, 0, m.Y, 1e-9)
	assert.InDelta(t, 0, m.Z, 1e-9)
}

func TestContinuousDegenerateMagnitude(t *testing.T) {
	c := newTestContinuous()
	_, _ = c.DipoleMoment(r3.Vec{X: 2e-7}, 0, 1)

	m, err := c.DipoleMoment(r3.Vec{X: 1e-7}, 100_000, 1)
	assert.ErrorIs(t, err, ErrDegenerateMagnitude)
	assert.Equal(t, r3.Vec{}, m)
}

func TestContinuousRejectedSampleBecomesReference(t *testing.T) {
	c := newTestContinuous()
	_, _ = c.DipoleMoment(r3.Vec{X: 10}, 0, 1)

	// rejected, but now the reference
	_, err := c.DipoleMoment(r3.Vec{X: 20}, 5_000, 1)
	require.ErrorIs(t, err, ErrSampleTooSoon)

	m, err := c.DipoleMoment(r3.Vec{X: 25}, 105_000, 1)
	require.NoError(t, err)
	assert.InDelta(t, 50.0/25.0, m.X, 1e-9)

	_, err = c.DipoleMoment(r3.Vec{X: 25}, 2_000_000, 1)
	require.ErrorIs(t, err, ErrInsufficientHistory)

	_, err = c.DipoleMoment(r3.Vec{X: 30}, 2_100_000, 1)
	assert.NoError(t, err)
}

func TestContinuousReset(t *testing.T) {
	c := newTestContinuous()
	_, _ = c.Estimate(Sample{Field: r3.Vec{Z: 1}, Timestamp: 0})
	c.Reset()
	_, err := c.Estimate(Sample{Field: r3.Vec{Z: 2}, Timestamp: 100_000})
	assert.ErrorIs(t, err, ErrInsufficientHistory)
}

func TestNewStrategy(t *testing.T) {
	est, err := New(Config{Strategy: StrategyWindowed, Gain: 1, Period: time.Second})
	require.NoError(t, err)
	assert.IsType(t, &Windowed{}, est)

	est, err = New(Config{Strategy: StrategyContinuous, Gain: 1})
	require.NoError(t, err)
	assert.IsType(t, &Continuous{}, est)

	_, err = New(Config{Strategy: "kalman"})
	assert.Error(t, err)
}

func TestKind(t *testing.T) {
	assert.Equal(t, "ok", Kind(nil))
	assert.Equal(t, "sample_too_soon", Kind(ErrSampleTooSoon))
	assert.Equal(t, "insufficient_history", Kind(ErrInsufficientHistory))
	assert.Equal(t, "degenerate_magnitude", Kind(ErrDegenerateMagnitude))
}
