// Package publish builds the outbound wire messages. Serialization is
// schema-tagged JSON decoupled from any transport buffer sizing, so payload
// growth can never silently truncate.
package publish

import (
	"encoding/json"
	"fmt"

	"github.com/Thomas-Heisig/MODAX/internal/domain"
)

type vibrationPayload struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Z         float64 `json:"z"`
	Magnitude float64 `json:"magnitude"`
}

type telemetryPayload struct {
	Timestamp     uint32            `json:"timestamp"`
	DeviceID      string            `json:"device_id"`
	MotorCurrents [2]float64        `json:"motor_currents"`
	Vibration     *vibrationPayload `json:"vibration,omitempty"`
	Temperatures  []float64         `json:"temperatures"`
}

type safetyPayload struct {
	Timestamp        uint32 `json:"timestamp"`
	DeviceID         string `json:"device_id"`
	EmergencyStop    bool   `json:"emergency_stop"`
	DoorClosed       bool   `json:"door_closed"`
	OverloadDetected bool   `json:"overload_detected"`
	TemperatureOK    bool   `json:"temperature_ok"`
}

// Telemetry packages periodic sensor readings for the telemetry channel.
type Telemetry struct {
	deviceID string
}

func NewTelemetry(deviceID string) *Telemetry {
	return &Telemetry{deviceID: deviceID}
}

// Build serializes the sample. When the inertial sensor was unavailable the
// vibration object is omitted entirely; consumers must treat a missing field
// as "no reading", never as zero.
func (t *Telemetry) Build(s domain.SensorSample) (*domain.Message, error) {
	p := telemetryPayload{
		Timestamp:     s.Timestamp,
		DeviceID:      t.deviceID,
		MotorCurrents: s.MotorCurrents,
		Temperatures:  []float64{s.Temperature},
	}
	if s.Vibration.Available {
		p.Vibration = &vibrationPayload{
			X:         s.Vibration.X,
			Y:         s.Vibration.Y,
			Z:         s.Vibration.Z,
			Magnitude: s.Vibration.Magnitude(),
		}
	}

	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal telemetry: %w", err)
	}
	return &domain.Message{
		Channel:   domain.ChannelTelemetry,
		Payload:   raw,
		Timestamp: s.Timestamp,
	}, nil
}

// Safety packages the safety state for the high-priority safety channel.
type Safety struct {
	deviceID string
}

func NewSafety(deviceID string) *Safety {
	return &Safety{deviceID: deviceID}
}

func (s *Safety) Build(state domain.SafetyState, now uint32) (*domain.Message, error) {
	raw, err := json.Marshal(safetyPayload{
		Timestamp:        now,
		DeviceID:         s.deviceID,
		EmergencyStop:    state.EmergencyStop,
		DoorClosed:       state.DoorClosed,
		OverloadDetected: state.OverloadDetected,
		TemperatureOK:    state.TemperatureOK,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal safety state: %w", err)
	}
	return &domain.Message{
		Channel:   domain.ChannelSafety,
		Payload:   raw,
		Timestamp: now,
	}, nil
}
