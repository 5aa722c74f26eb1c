// Package sim provides an in-memory sensor bus for bench runs and tests.
// Values are set in engineering units and served back as the raw codes a
// real transducer would produce, so the whole conversion path is exercised.
package sim

import (
	"errors"
	"math"
	"sync"

	"github.com/Thomas-Heisig/MODAX/internal/ports"
)

var errInjectedFault = errors.New("sim: injected transducer fault")

const (
	vref    = 3.3
	maxCode = 4095.0
)

type Bus struct {
	mu sync.Mutex

	adc        map[ports.AnalogChannel]uint16
	digital    map[ports.DigitalInput]bool
	ax, ay, az float64

	failADC     map[ports.AnalogChannel]bool
	failDigital map[ports.DigitalInput]bool
	failAccel   bool
}

func NewBus() *Bus {
	b := &Bus{
		adc:         make(map[ports.AnalogChannel]uint16),
		digital:     make(map[ports.DigitalInput]bool),
		failADC:     make(map[ports.AnalogChannel]bool),
		failDigital: make(map[ports.DigitalInput]bool),
	}
	// Idle bench defaults: 0 A mid-rail on the current channels, 25 °C on
	// the thermistor divider, both safety inputs at the pull-up level.
	b.SetCurrentAmps(ports.ChannelCurrent1, 0)
	b.SetCurrentAmps(ports.ChannelCurrent2, 0)
	b.SetTemperatureC(ports.ChannelTemperature1, 25)
	b.digital[ports.InputEmergencyStop] = true
	b.digital[ports.InputDoorSwitch] = false // door shut pulls low
	return b
}

// SetCurrentAmps programs the channel with the ADC code an ACS712 would
// produce for the given current (0 A = 1.65 V, 100 mV/A).
func (b *Bus) SetCurrentAmps(ch ports.AnalogChannel, amps float64) {
	voltage := 1.65 + amps*0.1
	b.setCode(ch, voltage)
}

// SetTemperatureC programs the channel with the divider code matching the
// linear thermistor model (25 °C = 10 kΩ, 100 Ω/°C).
func (b *Bus) SetTemperatureC(ch ports.AnalogChannel, celsius float64) {
	resistance := 10_000.0 + (celsius-25.0)*100.0
	voltage := vref * resistance / (resistance + 10_000.0)
	b.setCode(ch, voltage)
}

func (b *Bus) setCode(ch ports.AnalogChannel, voltage float64) {
	code := math.Round(voltage / vref * maxCode)
	if code < 0 {
		code = 0
	}
	if code > maxCode {
		code = maxCode
	}
	b.mu.Lock()
	b.adc[ch] = uint16(code)
	b.mu.Unlock()
}

// SetDigitalLevel sets the electrical level of an input (true = high).
func (b *Bus) SetDigitalLevel(in ports.DigitalInput, level bool) {
	b.mu.Lock()
	b.digital[in] = level
	b.mu.Unlock()
}

// PressEmergencyStop asserts or releases the stop input (active-low).
func (b *Bus) PressEmergencyStop(pressed bool) {
	b.SetDigitalLevel(ports.InputEmergencyStop, !pressed)
}

// SetDoorClosed shuts or opens the door switch (shut pulls low).
func (b *Bus) SetDoorClosed(closed bool) {
	b.SetDigitalLevel(ports.InputDoorSwitch, !closed)
}

func (b *Bus) SetAccel(x, y, z float64) {
	b.mu.Lock()
	b.ax, b.ay, b.az = x, y, z
	b.mu.Unlock()
}

// Fault injection.

func (b *Bus) FailADC(ch ports.AnalogChannel, fail bool) {
	b.mu.Lock()
	b.failADC[ch] = fail
	b.mu.Unlock()
}

func (b *Bus) FailDigital(in ports.DigitalInput, fail bool) {
	b.mu.Lock()
	b.failDigital[in] = fail
	b.mu.Unlock()
}

func (b *Bus) FailAccel(fail bool) {
	b.mu.Lock()
	b.failAccel = fail
	b.mu.Unlock()
}

// ports.SensorBus

func (b *Bus) ReadADC(ch ports.AnalogChannel) (uint16, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failADC[ch] {
		return 0, errInjectedFault
	}
	return b.adc[ch], nil
}

func (b *Bus) ReadDigital(in ports.DigitalInput) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failDigital[in] {
		return false, errInjectedFault
	}
	return b.digital[in], nil
}

func (b *Bus) ReadAccel() (x, y, z float64, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failAccel {
		return 0, 0, 0, errInjectedFault
	}
	return b.ax, b.ay, b.az, nil
}

var _ ports.SensorBus = (*Bus)(nil)
