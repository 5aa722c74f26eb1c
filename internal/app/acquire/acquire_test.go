package acquire

import (
	"math"
	"testing"

	"github.com/Thomas-Heisig/MODAX/internal/adapters/sim"
	"github.com/Thomas-Heisig/MODAX/internal/ports"
)

// Quantization error of one ADC code mapped into engineering units.
const (
	ampTolerance  = 0.02
	tempTolerance = 0.2
)

func TestReadCurrentRoundTrip(t *testing.T) {
	bus := sim.NewBus()
	acq := New(bus)

	for _, amps := range []float64{0, 1.5, 5, 10, 12} {
		bus.SetCurrentAmps(ports.ChannelCurrent1, amps)
		got, err := acq.ReadCurrent(ports.ChannelCurrent1)
		if err != nil {
			t.Fatalf("read current at %.1f A: %v", amps, err)
		}
		if math.Abs(got-amps) > ampTolerance {
			t.Fatalf("expected ~%.2f A, got %.4f A", amps, got)
		}
	}
}

func TestReadCurrentIsMagnitude(t *testing.T) {
	bus := sim.NewBus()
	acq := New(bus)

	// A reversed-phase sensor sits below mid-rail; the conversion must
	// still report positive amps.
	bus.SetCurrentAmps(ports.ChannelCurrent1, -8)
	got, err := acq.ReadCurrent(ports.ChannelCurrent1)
	if err != nil {
		t.Fatalf("read current: %v", err)
	}
	if math.Abs(got-8) > ampTolerance {
		t.Fatalf("expected ~8 A magnitude, got %.4f A", got)
	}
}

func TestReadCurrentRailCodes(t *testing.T) {
	bus := sim.NewBus()
	acq := New(bus)

	// Both rails decode to the same 16.5 A magnitude: |0 - 1.65|/0.1 and
	// |3.3 - 1.65|/0.1.
	bus.SetCurrentAmps(ports.ChannelCurrent1, -16.5)
	lo, err := acq.ReadCurrent(ports.ChannelCurrent1)
	if err != nil {
		t.Fatalf("read at low rail: %v", err)
	}
	bus.SetCurrentAmps(ports.ChannelCurrent1, 16.5)
	hi, err := acq.ReadCurrent(ports.ChannelCurrent1)
	if err != nil {
		t.Fatalf("read at high rail: %v", err)
	}
	if math.Abs(lo-16.5) > ampTolerance || math.Abs(hi-16.5) > ampTolerance {
		t.Fatalf("expected 16.5 A at both rails, got %.4f and %.4f", lo, hi)
	}
}

func TestReadTemperatureRoundTrip(t *testing.T) {
	bus := sim.NewBus()
	acq := New(bus)

	for _, celsius := range []float64{0, 25, 50, 85, 100} {
		bus.SetTemperatureC(ports.ChannelTemperature1, celsius)
		got, err := acq.ReadTemperature(ports.ChannelTemperature1)
		if err != nil {
			t.Fatalf("read temperature at %.0f °C: %v", celsius, err)
		}
		if math.Abs(got-celsius) > tempTolerance {
			t.Fatalf("expected ~%.1f °C, got %.4f °C", celsius, got)
		}
	}
}

// A full-scale code would put the divider math at a zero denominator; the
// conversion must clamp and return a finite value.
func TestReadTemperatureFullScaleIsFinite(t *testing.T) {
	bus := fixedBus{code: 4095}
	acq := New(bus)

	got, err := acq.ReadTemperature(ports.ChannelTemperature1)
	if err != nil {
		t.Fatalf("read temperature: %v", err)
	}
	if math.IsInf(got, 0) || math.IsNaN(got) {
		t.Fatalf("expected finite temperature at full-scale code, got %v", got)
	}
}

func TestReadCurrentPropagatesBusError(t *testing.T) {
	bus := sim.NewBus()
	acq := New(bus)

	bus.FailADC(ports.ChannelCurrent1, true)
	if _, err := acq.ReadCurrent(ports.ChannelCurrent1); err == nil {
		t.Fatalf("expected error from failing channel")
	}
}

func TestReadVibrationUnavailableOnError(t *testing.T) {
	bus := sim.NewBus()
	acq := New(bus)

	bus.SetAccel(0.1, -0.2, 9.8)
	v := acq.ReadVibration()
	if !v.Available {
		t.Fatalf("expected vibration available")
	}
	if v.Z != 9.8 {
		t.Fatalf("expected z=9.8, got %v", v.Z)
	}

	bus.FailAccel(true)
	v = acq.ReadVibration()
	if v.Available {
		t.Fatalf("expected vibration unavailable after accel fault")
	}
	if v.X != 0 || v.Y != 0 || v.Z != 0 {
		t.Fatalf("unavailable vibration must carry zero axes, got %+v", v)
	}
}

func TestVibrationMagnitude(t *testing.T) {
	bus := sim.NewBus()
	acq := New(bus)

	bus.SetAccel(3, 4, 0)
	v := acq.ReadVibration()
	if math.Abs(v.Magnitude()-5) > 1e-9 {
		t.Fatalf("expected magnitude 5, got %v", v.Magnitude())
	}
}

// fixedBus serves one hard-coded code on every analog channel.
type fixedBus struct {
	code uint16
}

func (f fixedBus) ReadADC(ports.AnalogChannel) (uint16, error)  { return f.code, nil }
func (f fixedBus) ReadDigital(ports.DigitalInput) (bool, error) { return true, nil }
func (f fixedBus) ReadAccel() (x, y, z float64, err error)      { return 0, 0, 0, nil }
