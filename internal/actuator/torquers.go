package actuator

import "gonum.org/v1/gonum/spatial/r3"

// Torquers is one rod per body axis.
type Torquers struct {
	X, Y, Z Mapper
}

// NewTorquers builds mappers for the three axis coils.
func NewTorquers(x, y, z CoilConfig) Torquers {
	return Torquers{X: NewMapper(x), Y: NewMapper(y), Z: NewMapper(z)}
}

// Drive maps each moment component onto its axis rod.
func (t Torquers) Drive(moment r3.Vec) [3]int8 {
	return [3]int8{t.X.Drive(moment.X), t.Y.Drive(moment.Y), t.Z.Drive(moment.Z)}
}

// Dipole returns the moment the rods produce for the given drive values.
func (t Torquers) Dipole(drive [3]int8) r3.Vec {
	return r3.Vec{X: t.X.Dipole(drive[0]), Y: t.Y.Dipole(drive[1]), Z: t.Z.Dipole(drive[2])}
}
