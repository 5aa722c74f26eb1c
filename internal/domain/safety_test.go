package domain

import "testing"

func TestUnsafeComposite(t *testing.T) {
	safe := SafetyState{DoorClosed: true, TemperatureOK: true}
	if safe.Unsafe() {
		t.Fatalf("expected nominal state to be safe")
	}

	cases := []SafetyState{
		{EmergencyStop: true, DoorClosed: true, TemperatureOK: true},
		{DoorClosed: false, TemperatureOK: true},
		{DoorClosed: true, OverloadDetected: true, TemperatureOK: true},
		{DoorClosed: true, TemperatureOK: false},
	}
	for i, s := range cases {
		if !s.Unsafe() {
			t.Fatalf("case %d: expected unsafe for %+v", i, s)
		}
	}
}
