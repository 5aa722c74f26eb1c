// Package hardware implements the sensor bus on real transducers: an
// ADS1115 ADC and an MPU6050 accelerometer on I²C, safety switches on GPIO.
package hardware

import (
	"encoding/binary"
	"fmt"
	"time"

	"periph.io/x/conn/v3/driver/driverreg"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"

	"github.com/Thomas-Heisig/MODAX/internal/ports"
)

// ADS1115 register map and config bits (single-shot, ±4.096 V, 860 SPS).
const (
	adsRegConversion = 0x00
	adsRegConfig     = 0x01

	adsConfigOS         = 0x8000 // start single conversion / conversion done
	adsConfigMuxSingle  = 0x4000 // AINx vs GND, channel in bits 12..13
	adsConfigPGA4V      = 0x0200
	adsConfigModeSingle = 0x0100
	adsConfigDR860      = 0x00E0
	adsConfigCompOff    = 0x0003

	adsFullScaleVolts = 4.096
)

// MPU6050 registers. The accelerometer runs at ±8 g (4096 LSB/g).
const (
	mpuRegPwrMgmt1    = 0x6B
	mpuRegAccelConfig = 0x1C
	mpuRegAccelXOutH  = 0x3B

	mpuAccelRange8G = 0x10
	mpuLSBPerG      = 4096.0
	standardGravity = 9.80665
)

const (
	adcVref    = 3.3
	adcMaxCode = 4095.0
)

type Bus struct {
	adc   *i2c.Dev
	accel *i2c.Dev
	bus   i2c.BusCloser

	estop gpio.PinIn
	door  gpio.PinIn
}

// NewBus opens the I²C bus, wakes the accelerometer and configures the
// safety inputs with their pull-ups.
func NewBus(cfg Config) (*Bus, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if _, err := driverreg.Init(); err != nil {
		return nil, fmt.Errorf("periph init: %w", err)
	}

	i2cBus, err := i2creg.Open(cfg.I2CBus)
	if err != nil {
		return nil, fmt.Errorf("open i2c bus %q: %w", cfg.I2CBus, err)
	}

	b := &Bus{
		adc:   &i2c.Dev{Bus: i2cBus, Addr: cfg.ADS1115Addr},
		accel: &i2c.Dev{Bus: i2cBus, Addr: cfg.MPU6050Addr},
		bus:   i2cBus,
	}

	// Wake the MPU6050 out of sleep and select the ±8 g range.
	if err := b.accel.Tx([]byte{mpuRegPwrMgmt1, 0x00}, nil); err != nil {
		_ = i2cBus.Close()
		return nil, fmt.Errorf("wake mpu6050: %w", err)
	}
	if err := b.accel.Tx([]byte{mpuRegAccelConfig, mpuAccelRange8G}, nil); err != nil {
		_ = i2cBus.Close()
		return nil, fmt.Errorf("configure mpu6050 range: %w", err)
	}

	b.estop, err = openInput(cfg.EmergencyStopPin)
	if err != nil {
		_ = i2cBus.Close()
		return nil, err
	}
	b.door, err = openInput(cfg.DoorPin)
	if err != nil {
		_ = i2cBus.Close()
		return nil, err
	}

	return b, nil
}

func openInput(name string) (gpio.PinIn, error) {
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("gpio pin %q not found", name)
	}
	if err := pin.In(gpio.PullUp, gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("configure pin %q: %w", name, err)
	}
	return pin, nil
}

func (b *Bus) Close() error {
	return b.bus.Close()
}

// ReadADC runs a single-shot conversion and rescales the result to the
// 12-bit / 3.3 V code space the conversion formulas expect.
func (b *Bus) ReadADC(ch ports.AnalogChannel) (uint16, error) {
	mux, err := channelMux(ch)
	if err != nil {
		return 0, err
	}

	cfg := uint16(adsConfigOS | adsConfigMuxSingle | mux |
		adsConfigPGA4V | adsConfigModeSingle | adsConfigDR860 | adsConfigCompOff)

	var out [3]byte
	out[0] = adsRegConfig
	binary.BigEndian.PutUint16(out[1:], cfg)
	if err := b.adc.Tx(out[:], nil); err != nil {
		return 0, fmt.Errorf("ads1115 start conversion: %w", err)
	}

	// 860 SPS finishes in ~1.2 ms; poll the OS bit with a small budget.
	var status [2]byte
	for i := 0; i < 10; i++ {
		time.Sleep(200 * time.Microsecond)
		if err := b.adc.Tx([]byte{adsRegConfig}, status[:]); err != nil {
			return 0, fmt.Errorf("ads1115 poll: %w", err)
		}
		if binary.BigEndian.Uint16(status[:])&adsConfigOS != 0 {
			break
		}
	}

	var raw [2]byte
	if err := b.adc.Tx([]byte{adsRegConversion}, raw[:]); err != nil {
		return 0, fmt.Errorf("ads1115 read conversion: %w", err)
	}

	volts := float64(int16(binary.BigEndian.Uint16(raw[:]))) * adsFullScaleVolts / 32768.0
	code := volts / adcVref * adcMaxCode
	if code < 0 {
		code = 0
	}
	if code > adcMaxCode {
		code = adcMaxCode
	}
	return uint16(code), nil
}

func channelMux(ch ports.AnalogChannel) (uint16, error) {
	switch ch {
	case ports.ChannelCurrent1:
		return 0 << 12, nil
	case ports.ChannelCurrent2:
		return 1 << 12, nil
	case ports.ChannelTemperature1:
		return 2 << 12, nil
	default:
		return 0, fmt.Errorf("no ADC channel mapped for %d", ch)
	}
}

func (b *Bus) ReadDigital(in ports.DigitalInput) (bool, error) {
	switch in {
	case ports.InputEmergencyStop:
		return b.estop.Read() == gpio.High, nil
	case ports.InputDoorSwitch:
		return b.door.Read() == gpio.High, nil
	default:
		return false, fmt.Errorf("no digital input mapped for %d", in)
	}
}

func (b *Bus) ReadAccel() (x, y, z float64, err error) {
	var raw [6]byte
	if err := b.accel.Tx([]byte{mpuRegAccelXOutH}, raw[:]); err != nil {
		return 0, 0, 0, fmt.Errorf("mpu6050 read accel: %w", err)
	}
	toMS2 := func(hi, lo byte) float64 {
		return float64(int16(uint16(hi)<<8|uint16(lo))) / mpuLSBPerG * standardGravity
	}
	return toMS2(raw[0], raw[1]), toMS2(raw[2], raw[3]), toMS2(raw[4], raw[5]), nil
}

var _ ports.SensorBus = (*Bus)(nil)
