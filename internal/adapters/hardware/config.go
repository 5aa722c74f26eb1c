package hardware

import "errors"

// Config names the physical resources of the field node. ADC channels are
// fixed by the board layout: AIN0/AIN1 carry the hall current sensors, AIN2
// the thermistor divider.
type Config struct {
	I2CBus           string `yaml:"i2c_bus"` // empty selects the first registered bus
	ADS1115Addr      uint16 `yaml:"ads1115_addr"`
	MPU6050Addr      uint16 `yaml:"mpu6050_addr"`
	EmergencyStopPin string `yaml:"emergency_stop_pin"`
	DoorPin          string `yaml:"door_pin"`
	RelayPin         string `yaml:"relay_pin"`
}

func (c *Config) ApplyDefaults() {
	if c.ADS1115Addr == 0 {
		c.ADS1115Addr = 0x48
	}
	if c.MPU6050Addr == 0 {
		c.MPU6050Addr = 0x68
	}
}

func (c *Config) Validate() error {
	if c.EmergencyStopPin == "" {
		return errors.New("emergency_stop_pin is required")
	}
	if c.DoorPin == "" {
		return errors.New("door_pin is required")
	}
	return nil
}
