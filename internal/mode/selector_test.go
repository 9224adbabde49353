package mode

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var testThresholds = Thresholds{Lower: 1, Upper: 5, Max: 10}

func TestSelectSingleReadings(t *testing.T) {
	tests := []struct {
		w    float64
		want Mode
	}{
		{0.5, Idle},
		{15, Hysteresis},
		{8, Bdot},
		{10, Hysteresis},
		{3, Idle},
	}
	for _, tt := range tests {
		s := NewSelector(testThresholds)
		assert.Equal(t, tt.want, s.Select(tt.w), "w=%v", tt.w)
	}
}

func TestSelectDeadband(t *testing.T) {
	s := NewSelector(testThresholds)
	steps := []struct {
		w    float64
		want Mode
	}{
		{0.5, Idle},
		{3.0, Idle},
		{6.0, Bdot},
		{3.0, Bdot},
		{0.5, Idle},
	}
	for i, st := range steps {
		assert.Equal(t, st.want, s.Select(st.w), "step %d w=%v", i, st.w)
		assert.Equal(t, st.want, s.Mode())
	}
}

func TestSelectBoundaries(t *testing.T) {
	s := NewSelector(testThresholds)
	assert.Equal(t, Bdot, s.Select(8))
	assert.Equal(t, Hysteresis, s.Select(10.0))
	// target is still Lower, so the lower bound is inclusive
	assert.Equal(t, Bdot, s.Select(1.0))

	s.target = targetUpper
	assert.Equal(t, Bdot, s.Select(5.0))
}

func TestSelectHysteresisHoldsInDeadband(t *testing.T) {
	s := NewSelector(testThresholds)
	assert.Equal(t, Hysteresis, s.Select(12))
	assert.Equal(t, Hysteresis, s.Select(3))
	assert.Equal(t, Bdot, s.Select(6))
	assert.Equal(t, Idle, s.Select(0.9))
}

func TestReset(t *testing.T) {
	s := NewSelector(testThresholds)
	s.Select(7)
	s.Reset()
	assert.Equal(t, Idle, s.Mode())
	assert.Equal(t, Idle, s.Select(4))
}

func TestModeString(t *testing.T) {
	for _, m := range []Mode{Idle, Bdot, Hysteresis} {
		parsed, ok := Parse(m.String())
		assert.True(t, ok)
		assert.Equal(t, m, parsed)
	}
	_, ok := Parse("SPIN")
	assert.False(t, ok)
	assert.Equal(t, "UNKNOWN", Mode(9).String())
}
