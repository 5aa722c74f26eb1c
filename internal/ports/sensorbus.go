package ports

// AnalogChannel names a logical ADC input. Backends map these to physical
// channels or remote tags.
type AnalogChannel int

const (
	ChannelCurrent1 AnalogChannel = iota
	ChannelCurrent2
	ChannelTemperature1
)

// DigitalInput names a logical digital input. Both safety inputs are wired
// active-low with pull-up biasing: the electrical level read here is the
// inverse of the logical assertion.
type DigitalInput int

const (
	InputEmergencyStop DigitalInput = iota
	InputDoorSwitch
)

// SensorBus is the raw hardware access port. Reads are side-effect free;
// conversion to engineering units happens in the acquisition layer.
type SensorBus interface {
	// ReadADC returns the raw 12-bit code (0..4095) for the channel.
	ReadADC(ch AnalogChannel) (uint16, error)
	// ReadDigital returns the electrical level of the input (true = high).
	ReadDigital(in DigitalInput) (bool, error)
	// ReadAccel returns acceleration in m/s² per axis.
	ReadAccel() (x, y, z float64, err error)
}
