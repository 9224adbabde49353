package clock

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRescaleFirstCallIsZero(t *testing.T) {
	r := NewRescaler()
	assert.Equal(t, uint64(0), r.Rescale(Reading{Seconds: 42, Subseconds: 123456}))
}

func TestRescaleSubsecondWrap(t *testing.T) {
	r := NewRescaler()
	r.Rescale(Reading{Seconds: 0, Subseconds: 999999})
	assert.Equal(t, uint64(86), r.Rescale(Reading{Seconds: 0, Subseconds: 85}))
}

func TestRescaleCounterWrap(t *testing.T) {
	r := NewRescaler()
	r.Rescale(Reading{Seconds: 0, Subseconds: 4294967290})
	assert.Equal(t, uint64(11), r.Rescale(Reading{Seconds: 0, Subseconds: 5}))
}

func TestRescaleSecondRollover(t *testing.T) {
	r := NewRescaler()
	r.Rescale(Reading{Seconds: 7, Subseconds: 999900})
	assert.Equal(t, uint64(150), r.Rescale(Reading{Seconds: 8, Subseconds: 50}))
	assert.Equal(t, uint64(1_000_150), r.Rescale(Reading{Seconds: 9, Subseconds: 50}))
}

func TestRescaleMonotonic(t *testing.T) {
	readings := []Reading{
		{0, 0}, {0, 10}, {0, 500000}, {0, 999999}, {1, 3}, {1, 3}, {1, 700000},
		{2, 100}, {5, 0}, {5, 999999}, {6, 0},
	}

	r := NewRescaler()
	var last uint64
	for i, rd := range readings {
		got := r.Rescale(rd)
		if i == 0 {
			assert.Equal(t, uint64(0), got)
		}
		assert.GreaterOrEqual(t, got, last, "reading %d", i)
		last = got
	}
	assert.Equal(t, uint64(6_000_000), last)
	assert.Equal(t, last, r.Elapsed())
}

func TestRescaleReset(t *testing.T) {
	r := NewRescaler()
	r.Rescale(Reading{Seconds: 1})
	r.Rescale(Reading{Seconds: 2})
	r.Reset()
	assert.Equal(t, uint64(0), r.Rescale(Reading{Seconds: 9, Subseconds: 1}))
	assert.Equal(t, uint64(1), r.Rescale(Reading{Seconds: 9, Subseconds: 2}))
}

func TestRescaleBackwardSecond(t *testing.T) {
	tests := map[string]struct {
		prev, next Reading
		want       uint64
	}{
		"second steps back":             {Reading{Seconds: 5, Subseconds: 100}, Reading{Seconds: 4, Subseconds: 200}, 100},
		"second steps back, sub wraps":  {Reading{Seconds: 5, Subseconds: 999_900}, Reading{Seconds: 4, Subseconds: 50}, 150},
		"seconds counter wraps to zero": {Reading{Seconds: 4294967295, Subseconds: 10}, Reading{Seconds: 0, Subseconds: 30}, 20},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			r := NewRescaler()
			r.Rescale(tc.prev)
			assert.Equal(t, tc.want, r.Rescale(tc.next))
		})
	}
}
