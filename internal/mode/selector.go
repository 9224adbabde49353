// Package mode decides when the detumble law should run, using a hysteresis
// deadband on the body angular rate.
package mode

// Mode is the control mode chosen for a cycle.
type Mode int

const (
	// Idle means the rate is low enough that no actuation is needed.
	Idle Mode = iota
	// Bdot means the B-dot law drives the torque rods.
	Bdot
	// Hysteresis means the rate is above Max and the rods are held off.
	Hysteresis
)

func (m Mode) String() string {
	switch m {
	case Idle:
		return "IDLE"
	case Bdot:
		return "BDOT"
	case Hysteresis:
		return "HYSTERESIS"
	default:
		return "UNKNOWN"
	}
}

// Parse maps a String() value back to a Mode.
func Parse(s string) (Mode, bool) {
	for _, m := range []Mode{Idle, Bdot, Hysteresis} {
		if m.String() == s {
			return m, true
		}
	}
	return Idle, false
}

// Thresholds must satisfy Lower < Upper < Max; the selector does not check.
type Thresholds struct {
	Lower float64 `mapstructure:"lower"`
	Upper float64 `mapstructure:"upper"`
	Max   float64 `mapstructure:"max"`
}

type target int

const (
	targetUpper target = iota
	targetLower
)

// Selector holds the current mode and the threshold it is waiting to cross.
type Selector struct {
	th     Thresholds
	mode   Mode
	target target
}

// NewSelector starts in Idle, waiting for Upper.
func NewSelector(th Thresholds) *Selector {
	return &Selector{th: th, mode: Idle, target: targetUpper}
}

// Select updates the mode for angular rate w and returns it.
func (s *Selector) Select(w float64) Mode {
	if w >= s.th.Max {
		s.mode = Hysteresis
		return s.mode
	}

	if w < s.th.Lower {
		s.mode = Idle
		s.target = targetUpper
		return s.mode
	}

	if w >= s.threshold() {
		s.mode = Bdot
		s.target = targetLower
	}
	return s.mode
}

// Mode returns the mode chosen by the last Select.
func (s *Selector) Mode() Mode {
	return s.mode
}

// Thresholds returns the configured thresholds.
func (s *Selector) Thresholds() Thresholds {
	return s.th
}

// Reset returns to Idle, waiting for Upper.
func (s *Selector) Reset() {
	s.mode = Idle
	s.target = targetUpper
}

func (s *Selector) threshold() float64 {
	if s.target == targetLower {
		return s.th.Lower
	}
	return s.th.Upper
}
