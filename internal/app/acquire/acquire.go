// Package acquire converts raw transducer reads into engineering units.
// All functions are pure with respect to hardware state: one read per call,
// no caching, no side effects.
package acquire

import (
	"fmt"
	"math"

	"github.com/Thomas-Heisig/MODAX/internal/domain"
	"github.com/Thomas-Heisig/MODAX/internal/ports"
)

const (
	adcVref    = 3.3
	adcMaxCode = 4095.0 // 12-bit

	// ACS712-style hall sensor: 0 A sits at mid-rail, 100 mV per ampere.
	currentZeroVolts   = 1.65
	currentVoltsPerAmp = 0.1

	// NTC thermistor against a 10 kΩ divider reference. The temperature
	// model is a linear approximation around 25 °C / 10 kΩ at 100 Ω per
	// degree — intentionally not a Steinhart-Hart fit, so expect drift
	// away from the reference point.
	dividerRefOhms = 10_000.0
	refTempC       = 25.0
	ohmsPerDegree  = 100.0
)

type Acquisition struct {
	bus ports.SensorBus
}

func New(bus ports.SensorBus) *Acquisition {
	return &Acquisition{bus: bus}
}

// ReadCurrent returns the absolute current on the channel in amperes.
// Direction is not distinguished.
func (a *Acquisition) ReadCurrent(ch ports.AnalogChannel) (float64, error) {
	raw, err := a.bus.ReadADC(ch)
	if err != nil {
		return 0, fmt.Errorf("read current channel %d: %w", ch, err)
	}
	voltage := float64(raw) * (adcVref / adcMaxCode)
	return math.Abs((voltage - currentZeroVolts) / currentVoltsPerAmp), nil
}

// ReadTemperature returns the channel temperature in °C using the linear
// thermistor approximation described above.
func (a *Acquisition) ReadTemperature(ch ports.AnalogChannel) (float64, error) {
	raw, err := a.bus.ReadADC(ch)
	if err != nil {
		return 0, fmt.Errorf("read temperature channel %d: %w", ch, err)
	}
	voltage := float64(raw) * (adcVref / adcMaxCode)
	if voltage >= adcVref {
		// Divider inversion is undefined at full scale; report the
		// hottest representable reading instead of +Inf.
		voltage = adcVref - adcVref/adcMaxCode
	}
	resistance := dividerRefOhms * voltage / (adcVref - voltage)
	return refTempC + (resistance-dividerRefOhms)/ohmsPerDegree, nil
}

// ReadDigital exposes the raw electrical level of a digital input. The
// safety inputs are active-low; interpreting the level is the caller's job.
func (a *Acquisition) ReadDigital(in ports.DigitalInput) (bool, error) {
	return a.bus.ReadDigital(in)
}

// ReadVibration queries the inertial sensor. On transducer failure the
// returned Vibration has Available=false; callers must not treat the zero
// vector as a real reading.
func (a *Acquisition) ReadVibration() domain.Vibration {
	x, y, z, err := a.bus.ReadAccel()
	if err != nil {
		return domain.Vibration{}
	}
	return domain.Vibration{X: x, Y: y, Z: z, Available: true}
}
