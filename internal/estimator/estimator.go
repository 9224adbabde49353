// Package estimator derives the commanded magnetic dipole moment from the time
// derivative of the sensed magnetic field (B-dot).
package estimator

import (
	"errors"
	"fmt"
	"time"

	"gonum.org/v1/gonum/spatial/r3"
)

var (
	// ErrInsufficientHistory means there is no trusted reference sample: either
	// none was seen yet or the gap since the last one is too large.
	ErrInsufficientHistory = errors.New("estimator: insufficient sample history")
	// ErrSampleTooSoon means the gap since the last sample is below the minimum
	// trusted spacing.
	ErrSampleTooSoon = errors.New("estimator: sample too soon after previous")
	// ErrDegenerateMagnitude means the field magnitude is too small to normalise.
	ErrDegenerateMagnitude = errors.New("estimator: field magnitude too small")
)

// Sample is one magnetometer vector stamped with a monotonic microsecond time.
type Sample struct {
	Field     r3.Vec
	Timestamp uint64
}

// Estimator produces a dipole moment from successive field samples. On failure
// the returned moment is the zero vector and means "no actuation this cycle".
type Estimator interface {
	Estimate(s Sample) (r3.Vec, error)
	Reset()
}

// Strategy selects the derivative scheme.
type Strategy string

const (
	// StrategyWindowed smooths over a fixed five-sample window.
	StrategyWindowed Strategy = "windowed"
	// StrategyContinuous differentiates consecutive samples and normalises by |B|.
	StrategyContinuous Strategy = "continuous"
)

// Config selects a strategy and carries its parameters.
type Config struct {
	Strategy     Strategy      `mapstructure:"strategy"`
	Gain         float64       `mapstructure:"gain"`
	Period       time.Duration `mapstructure:"period"`
	MinInterval  time.Duration `mapstructure:"min_interval"`
	MaxInterval  time.Duration `mapstructure:"max_interval"`
	MinMagnitude float64       `mapstructure:"min_magnitude"`
}

// New builds the estimator named by cfg.Strategy.
func New(cfg Config) (Estimator, error) {
	switch cfg.Strategy {
	case StrategyWindowed:
		return NewWindowed(WindowedConfig{Gain: cfg.Gain, Period: cfg.Period}), nil
	case StrategyContinuous, "":
		return NewContinuous(ContinuousConfig{
			Gain:         cfg.Gain,
			MinInterval:  cfg.MinInterval,
			MaxInterval:  cfg.MaxInterval,
			MinMagnitude: cfg.MinMagnitude,
		}), nil
	default:
		return nil, fmt.Errorf("unknown estimator strategy %q", cfg.Strategy)
	}
}

// Kind returns a short label for an estimator error, suitable for telemetry.
func Kind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInsufficientHistory):
		return "insufficient_history"
	case errors.Is(err, ErrSampleTooSoon):
		return "sample_too_soon"
	case errors.Is(err, ErrDegenerateMagnitude):
		return "degenerate_magnitude"
	default:
		return "error"
	}
}
