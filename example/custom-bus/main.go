// Demonstrates swapping the sensor bus for a custom implementation: here a
// synthetic load profile that ramps motor current up and down so the safety
// trip and recovery can be watched happening on a live broker.
package main

import (
	"context"
	"log"
	"math"
	"os/signal"
	"syscall"
	"time"

	"github.com/Thomas-Heisig/MODAX"
	"github.com/Thomas-Heisig/MODAX/internal/ports"
)

type rampBus struct {
	start time.Time
}

func (r *rampBus) ReadADC(ch ports.AnalogChannel) (uint16, error) {
	elapsed := time.Since(r.start).Seconds()
	switch ch {
	case ports.ChannelCurrent1, ports.ChannelCurrent2:
		// 0..12A triangle wave with a 60s period; crosses the 10A default
		// overload threshold near each peak.
		amps := 12 * math.Abs(math.Mod(elapsed/30, 2)-1)
		volts := 1.65 + amps*0.1
		return uint16(volts / 3.3 * 4095), nil
	case ports.ChannelTemperature1:
		// Steady 40°C.
		ohms := 10000.0 + (40-25)*100
		volts := 3.3 * ohms / (ohms + 10000)
		return uint16(volts / 3.3 * 4095), nil
	}
	return 0, nil
}

func (r *rampBus) ReadDigital(in ports.DigitalInput) (bool, error) {
	// Pull-up idle levels: e-stop released, door closed.
	switch in {
	case ports.InputEmergencyStop:
		return true, nil
	case ports.InputDoorSwitch:
		return false, nil
	}
	return false, nil
}

func (r *rampBus) ReadAccel() (x, y, z float64, err error) {
	return 0.02, -0.01, 9.81, nil
}

func main() {
	cfg, err := modax.LoadConfig("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	node, err := modax.New(cfg, modax.WithSensorBus(&rampBus{start: time.Now()}))
	if err != nil {
		log.Fatalf("build node: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := node.Run(ctx); err != nil && err != context.Canceled {
		log.Fatalf("field node exited: %v", err)
	}
}
