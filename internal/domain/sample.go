package domain

import "math"

// SensorSample is one telemetry-cadence snapshot of the monitored machine.
// It is constructed and consumed within a single sensor cycle, never retained.
type SensorSample struct {
	Timestamp     uint32 // monotonic milliseconds since boot
	DeviceID      string
	MotorCurrents [2]float64 // amps
	Vibration     Vibration
	Temperature   float64 // celsius
}

// Vibration is an accelerometer reading in m/s². Available is false when the
// inertial sensor could not be read; a zero vector with Available=false must
// never be mistaken for a real reading.
type Vibration struct {
	X, Y, Z   float64
	Available bool
}

// Magnitude returns the euclidean norm of the acceleration vector.
func (v Vibration) Magnitude() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}
