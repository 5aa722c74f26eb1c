package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Thomas-Heisig/MODAX/internal/adapters/hardware"
	"github.com/Thomas-Heisig/MODAX/internal/adapters/opcuabus"
	"github.com/Thomas-Heisig/MODAX/internal/adapters/serialbus"
)

type Config struct {
	Device      DeviceConfig      `yaml:"device"`
	MQTT        MQTTConfig        `yaml:"mqtt"`
	Cadence     CadenceConfig     `yaml:"cadence"`
	Thresholds  ThresholdsConfig  `yaml:"thresholds"`
	Acquisition AcquisitionConfig `yaml:"acquisition"`
	Spool       SpoolConfig       `yaml:"spool"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Status      StatusConfig      `yaml:"status"`
	Archive     ArchiveConfig     `yaml:"archive"`
}

type DeviceConfig struct {
	ID string `yaml:"id"`
}

type MQTTConfig struct {
	BrokerURL     string        `yaml:"broker_url"`
	ClientID      string        `yaml:"client_id"`
	QoS           byte          `yaml:"qos"`
	RetryInterval time.Duration `yaml:"retry_interval"`
}

type CadenceConfig struct {
	SafetyMillis    uint32        `yaml:"safety_millis"`
	SensorMillis    uint32        `yaml:"sensor_millis"`
	HeartbeatMillis uint32        `yaml:"heartbeat_millis"`
	IdleSleep       time.Duration `yaml:"idle_sleep"`
}

type ThresholdsConfig struct {
	OverloadAmps      float64 `yaml:"overload_amps"`
	TemperatureMaxC   float64 `yaml:"temperature_max_c"`
	HysteresisAmps    float64 `yaml:"hysteresis_amps"`
	HysteresisCelsius float64 `yaml:"hysteresis_celsius"`
}

type AcquisitionConfig struct {
	// Backend selects the sensor bus: "sim", "hardware", "opcua", "serial".
	Backend  string           `yaml:"backend"`
	Hardware hardware.Config  `yaml:"hardware"`
	OPCUA    opcuabus.Config  `yaml:"opcua"`
	Serial   serialbus.Config `yaml:"serial"`
}

type SpoolConfig struct {
	Dir           string `yaml:"dir"`
	MaxQueueLen   int    `yaml:"max_queue_len"`
	DispatchBatch int    `yaml:"dispatch_batch"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

type StatusConfig struct {
	Addr string `yaml:"addr"` // empty disables the status server
}

type ArchiveConfig struct {
	Enabled    bool          `yaml:"enabled"`
	ConnString string        `yaml:"conn_string"`
	Table      string        `yaml:"table"`
	BatchSize  int           `yaml:"batch_size"`
	FlushEvery time.Duration `yaml:"flush_every"`
}

func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) ApplyDefaults() {
	if c.Device.ID == "" {
		c.Device.ID = "MODAX_FIELD_001"
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = c.Device.ID
	}
	if c.MQTT.RetryInterval == 0 {
		c.MQTT.RetryInterval = 5 * time.Second
	}
	if c.Cadence.SafetyMillis == 0 {
		c.Cadence.SafetyMillis = 50
	}
	if c.Cadence.SensorMillis == 0 {
		c.Cadence.SensorMillis = 100
	}
	if c.Cadence.HeartbeatMillis == 0 {
		c.Cadence.HeartbeatMillis = 1000
	}
	if c.Cadence.IdleSleep == 0 {
		c.Cadence.IdleSleep = time.Millisecond
	}
	if c.Thresholds.OverloadAmps == 0 {
		c.Thresholds.OverloadAmps = 10.0
	}
	if c.Thresholds.TemperatureMaxC == 0 {
		c.Thresholds.TemperatureMaxC = 85.0
	}
	if c.Acquisition.Backend == "" {
		c.Acquisition.Backend = "sim"
	}
	if c.Spool.Dir == "" {
		c.Spool.Dir = "./data/spool"
	}
	if c.Spool.MaxQueueLen == 0 {
		c.Spool.MaxQueueLen = 10_000
	}
	if c.Spool.DispatchBatch == 0 {
		c.Spool.DispatchBatch = 64
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9100"
	}
	if c.Archive.Table == "" {
		c.Archive.Table = "telemetry"
	}
	if c.Archive.BatchSize == 0 {
		c.Archive.BatchSize = 100
	}
	if c.Archive.FlushEvery == 0 {
		c.Archive.FlushEvery = 5 * time.Second
	}

	c.Acquisition.Hardware.ApplyDefaults()
	c.Acquisition.OPCUA.ApplyDefaults()
	c.Acquisition.Serial.ApplyDefaults()
}

func (c *Config) Validate() error {
	if c.MQTT.BrokerURL == "" {
		return fmt.Errorf("mqtt.broker_url is required")
	}
	if c.Cadence.SafetyMillis > c.Cadence.SensorMillis {
		return fmt.Errorf("cadence.safety_millis must not exceed cadence.sensor_millis")
	}
	switch c.Acquisition.Backend {
	case "sim":
	case "hardware":
		if err := c.Acquisition.Hardware.Validate(); err != nil {
			return fmt.Errorf("acquisition.hardware: %w", err)
		}
	case "opcua":
		if err := c.Acquisition.OPCUA.Validate(); err != nil {
			return fmt.Errorf("acquisition.opcua: %w", err)
		}
	case "serial":
		if err := c.Acquisition.Serial.Validate(); err != nil {
			return fmt.Errorf("acquisition.serial: %w", err)
		}
	default:
		return fmt.Errorf("acquisition.backend %q is not one of sim, hardware, opcua, serial", c.Acquisition.Backend)
	}
	if c.Archive.Enabled && c.Archive.ConnString == "" {
		return fmt.Errorf("archive.conn_string is required when archive is enabled")
	}
	return nil
}
