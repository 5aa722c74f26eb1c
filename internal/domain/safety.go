package domain

// SafetyState holds the four monitored safety conditions. There is exactly
// one instance, owned by the safety evaluator; all four fields are replaced
// together so no consumer ever observes a partially updated state.
type SafetyState struct {
	EmergencyStop    bool
	DoorClosed       bool
	OverloadDetected bool
	TemperatureOK    bool
}

// Unsafe reports whether any monitored condition requires the local
// hardware safety action.
func (s SafetyState) Unsafe() bool {
	return s.EmergencyStop || !s.DoorClosed || s.OverloadDetected || !s.TemperatureOK
}
