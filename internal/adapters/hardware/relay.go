package hardware

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"

	"github.com/Thomas-Heisig/MODAX/internal/ports"
)

// Relay drives the safety cutoff output. The output is energized while the
// machine is safe and drops on trip, so a wiring or power fault fails safe.
type Relay struct {
	pin gpio.PinOut
}

func NewRelay(pinName string) (*Relay, error) {
	pin := gpioreg.ByName(pinName)
	if pin == nil {
		return nil, fmt.Errorf("gpio pin %q not found", pinName)
	}
	if err := pin.Out(gpio.High); err != nil {
		return nil, fmt.Errorf("configure relay pin %q: %w", pinName, err)
	}
	return &Relay{pin: pin}, nil
}

func (r *Relay) Apply(tripped bool) error {
	return r.pin.Out(gpio.Level(!tripped))
}

var _ ports.Actuator = (*Relay)(nil)
