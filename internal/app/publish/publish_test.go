package publish

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/Thomas-Heisig/MODAX/internal/domain"
)

func TestTelemetryBuild(t *testing.T) {
	pub := NewTelemetry("MODAX_FIELD_001")

	msg, err := pub.Build(domain.SensorSample{
		Timestamp:     12345,
		DeviceID:      "MODAX_FIELD_001",
		MotorCurrents: [2]float64{1.5, 2.25},
		Temperature:   42.5,
		Vibration:     domain.Vibration{X: 3, Y: 4, Z: 0, Available: true},
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if msg.Channel != domain.ChannelTelemetry {
		t.Fatalf("expected channel %s, got %s", domain.ChannelTelemetry, msg.Channel)
	}
	if msg.Timestamp != 12345 {
		t.Fatalf("expected message timestamp 12345, got %d", msg.Timestamp)
	}

	var p struct {
		Timestamp     uint32     `json:"timestamp"`
		DeviceID      string     `json:"device_id"`
		MotorCurrents [2]float64 `json:"motor_currents"`
		Vibration     *struct {
			X         float64 `json:"x"`
			Y         float64 `json:"y"`
			Z         float64 `json:"z"`
			Magnitude float64 `json:"magnitude"`
		} `json:"vibration"`
		Temperatures []float64 `json:"temperatures"`
	}
	if err := json.Unmarshal(msg.Payload, &p); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if p.DeviceID != "MODAX_FIELD_001" || p.Timestamp != 12345 {
		t.Fatalf("unexpected header fields: %+v", p)
	}
	if p.MotorCurrents != [2]float64{1.5, 2.25} {
		t.Fatalf("unexpected currents: %v", p.MotorCurrents)
	}
	if len(p.Temperatures) != 1 || p.Temperatures[0] != 42.5 {
		t.Fatalf("unexpected temperatures: %v", p.Temperatures)
	}
	if p.Vibration == nil || p.Vibration.Magnitude != 5 {
		t.Fatalf("expected vibration with magnitude 5, got %+v", p.Vibration)
	}
}

func TestTelemetryBuildOmitsUnavailableVibration(t *testing.T) {
	pub := NewTelemetry("MODAX_FIELD_001")

	msg, err := pub.Build(domain.SensorSample{
		Timestamp: 1,
		Vibration: domain.Vibration{Available: false},
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	// The field must be absent, not present-with-zeros: a consumer cannot
	// tell a still machine from a dead sensor otherwise.
	if strings.Contains(string(msg.Payload), "vibration") {
		t.Fatalf("expected no vibration key in payload: %s", msg.Payload)
	}
}

func TestSafetyBuild(t *testing.T) {
	pub := NewSafety("MODAX_FIELD_001")

	msg, err := pub.Build(domain.SafetyState{
		EmergencyStop:    true,
		DoorClosed:       false,
		OverloadDetected: true,
		TemperatureOK:    false,
	}, 777)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if msg.Channel != domain.ChannelSafety {
		t.Fatalf("expected channel %s, got %s", domain.ChannelSafety, msg.Channel)
	}

	var p struct {
		Timestamp        uint32 `json:"timestamp"`
		DeviceID         string `json:"device_id"`
		EmergencyStop    bool   `json:"emergency_stop"`
		DoorClosed       bool   `json:"door_closed"`
		OverloadDetected bool   `json:"overload_detected"`
		TemperatureOK    bool   `json:"temperature_ok"`
	}
	if err := json.Unmarshal(msg.Payload, &p); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if p.Timestamp != 777 || p.DeviceID != "MODAX_FIELD_001" {
		t.Fatalf("unexpected header fields: %+v", p)
	}
	if !p.EmergencyStop || p.DoorClosed || !p.OverloadDetected || p.TemperatureOK {
		t.Fatalf("unexpected flags: %+v", p)
	}
}
