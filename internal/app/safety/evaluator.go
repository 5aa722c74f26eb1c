// Package safety implements the deterministic safety evaluation that runs on
// the fast cadence. Nothing in this package is adaptive, probabilistic, or
// retried: every decision is a fixed-threshold comparison on live reads, and
// the local actuator is driven on the same cycle the verdict is computed.
package safety

import (
	"github.com/Thomas-Heisig/MODAX/internal/app/acquire"
	"github.com/Thomas-Heisig/MODAX/internal/domain"
	"github.com/Thomas-Heisig/MODAX/internal/ports"
)

// Thresholds are the fixed trip levels. A zero hysteresis band means a flag
// trips and clears on single instantaneous samples, with no debounce.
type Thresholds struct {
	OverloadAmps      float64
	TemperatureMaxC   float64
	HysteresisAmps    float64 // optional dead-band below OverloadAmps
	HysteresisCelsius float64 // optional dead-band below TemperatureMaxC
}

// Evaluator owns the single SafetyState instance. Evaluate composes a fresh
// state from live reads and replaces the previous one wholesale, so no
// consumer ever sees a mix of stale and fresh fields.
type Evaluator struct {
	acq      *acquire.Acquisition
	actuator ports.Actuator
	obs      ports.Observability
	thr      Thresholds

	heartbeatMillis uint32
	lastPublish     uint32

	state domain.SafetyState
}

func NewEvaluator(acq *acquire.Acquisition, actuator ports.Actuator, obs ports.Observability, thr Thresholds, heartbeatMillis uint32) *Evaluator {
	return &Evaluator{
		acq:             acq,
		actuator:        actuator,
		obs:             obs,
		thr:             thr,
		heartbeatMillis: heartbeatMillis,
		// Power-on defaults: stop not asserted, door shut, no faults.
		state: domain.SafetyState{DoorClosed: true, TemperatureOK: true},
	}
}

// State returns the current fully-composed safety state.
func (e *Evaluator) State() domain.SafetyState { return e.state }

// Evaluate runs one safety cycle at monotonic time now. It returns the new
// state and whether a safety publish is due, either because the emergency
// stop edge-transitioned or because the heartbeat interval elapsed.
func (e *Evaluator) Evaluate(now uint32) (domain.SafetyState, bool) {
	prevStop := e.state.EmergencyStop

	next := domain.SafetyState{
		EmergencyStop:    e.readEmergencyStop(),
		DoorClosed:       e.readDoorClosed(),
		OverloadDetected: e.evalOverload(),
		TemperatureOK:    e.evalTemperature(),
	}

	// Atomic replacement: all four fields change together.
	e.state = next

	if err := e.actuator.Apply(next.Unsafe()); err != nil {
		e.obs.LogError("actuator_apply_failed", err)
	}
	if next.Unsafe() {
		e.obs.IncCounter("modax_safety_trips_total", 1)
		e.obs.SetGauge("modax_safety_unsafe", 1)
	} else {
		e.obs.SetGauge("modax_safety_unsafe", 0)
	}

	publish := prevStop != next.EmergencyStop || now-e.lastPublish > e.heartbeatMillis
	if publish {
		e.lastPublish = now
	}
	return next, publish
}

// readEmergencyStop reads the active-low stop input. An unreadable input
// behaves like the unpowered pull-up: electrically high, not asserted.
func (e *Evaluator) readEmergencyStop() bool {
	level, err := e.acq.ReadDigital(ports.InputEmergencyStop)
	if err != nil {
		e.obs.IncCounter("modax_sensor_read_failures_total", 1)
		return false
	}
	return !level
}

// readDoorClosed reads the active-low door switch: the shut door pulls the
// input low. An unreadable input defaults to "closed".
func (e *Evaluator) readDoorClosed() bool {
	level, err := e.acq.ReadDigital(ports.InputDoorSwitch)
	if err != nil {
		e.obs.IncCounter("modax_sensor_read_failures_total", 1)
		return true
	}
	return !level
}

func (e *Evaluator) evalOverload() bool {
	c1, err1 := e.acq.ReadCurrent(ports.ChannelCurrent1)
	c2, err2 := e.acq.ReadCurrent(ports.ChannelCurrent2)
	if err1 != nil || err2 != nil {
		e.obs.IncCounter("modax_sensor_read_failures_total", 1)
		// Retain the previous verdict rather than fabricating a zero read.
		return e.state.OverloadDetected
	}

	trip := e.thr.OverloadAmps
	if e.state.OverloadDetected {
		// Already tripped: clear only below the hysteresis band.
		trip -= e.thr.HysteresisAmps
	}
	return c1 > trip || c2 > trip
}

func (e *Evaluator) evalTemperature() bool {
	t, err := e.acq.ReadTemperature(ports.ChannelTemperature1)
	if err != nil {
		e.obs.IncCounter("modax_sensor_read_failures_total", 1)
		return e.state.TemperatureOK
	}

	limit := e.thr.TemperatureMaxC
	if !e.state.TemperatureOK {
		limit -= e.thr.HysteresisCelsius
	}
	return t < limit
}
