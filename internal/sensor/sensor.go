// Package sensor declares the boundary to the magnetometer, gyroscope, RTC and
// torque rod drivers.
package sensor

import (
	"context"
	"errors"

	"gonum.org/v1/gonum/spatial/r3"

	"bdot-detumbler/internal/clock"
	"bdot-detumbler/internal/mode"
)

// ErrNoFrame is returned by Playback before the first frame is loaded.
var ErrNoFrame = errors.New("sensor: no frame loaded")

// Magnetometer returns the body-frame field vector.
type Magnetometer interface {
	ReadField(ctx context.Context) (r3.Vec, error)
}

// Gyroscope returns the body angular rate in rad/s.
type Gyroscope interface {
	ReadRate(ctx context.Context) (r3.Vec, error)
}

// Clock returns the raw hardware RTC reading.
type Clock interface {
	ReadClock(ctx context.Context) (clock.Reading, error)
}

// Command is one torque rod drive command.
type Command struct {
	Drive     [3]int8   `json:"drive"`
	Mode      mode.Mode `json:"-"`
	ModeName  string    `json:"mode"`
	Timestamp uint64    `json:"timestamp_us"`
}

// NewCommand stamps the drive values with the mode and rescaled time.
func NewCommand(drive [3]int8, m mode.Mode, timestamp uint64) Command {
	return Command{Drive: drive, Mode: m, ModeName: m.String(), Timestamp: timestamp}
}

// Actuator applies drive commands to the rods.
type Actuator interface {
	Apply(ctx context.Context, cmd Command) error
}

// Suite bundles the sensor and actuator endpoints a controller needs.
type Suite struct {
	Magnetometer Magnetometer
	Gyroscope    Gyroscope
	Clock        Clock
	Actuator     Actuator
}
