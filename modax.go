// Package modax is the embedding API for the MODAX field node: a motor
// monitoring unit that samples currents, temperature and vibration, derives
// a deterministic safety state, and publishes both over MQTT. Importers can
// run a whole node with the default adapters or swap any port for their own.
package modax

import (
	"context"

	"github.com/Thomas-Heisig/MODAX/internal/app/config"
	"github.com/Thomas-Heisig/MODAX/internal/app/loop"
	"github.com/Thomas-Heisig/MODAX/internal/app/node"
	"github.com/Thomas-Heisig/MODAX/internal/domain"
	"github.com/Thomas-Heisig/MODAX/internal/ports"
)

// Type aliases so consumers can import github.com/Thomas-Heisig/MODAX directly.
type (
	Config       = config.Config
	Node         = node.Node
	Option       = node.Option
	Hooks        = loop.Hooks
	SensorSample = domain.SensorSample
	SafetyState  = domain.SafetyState
	Vibration    = domain.Vibration
	Message      = domain.Message

	SensorBus     = ports.SensorBus
	Transport     = ports.Transport
	Actuator      = ports.Actuator
	Clock         = ports.Clock
	Spool         = ports.Spool
	Outbox        = ports.Outbox
	Observability = ports.Observability
	ConnState     = ports.ConnState
)

// Wire channels.
const (
	ChannelTelemetry = domain.ChannelTelemetry
	ChannelSafety    = domain.ChannelSafety
)

// Transport connection states.
const (
	Disconnected = ports.Disconnected
	Connecting   = ports.Connecting
	Connected    = ports.Connected
)

// LoadConfig reads, defaults and validates a YAML node configuration.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// New assembles a node from the configuration, honoring any overrides.
func New(cfg *Config, opts ...Option) (*Node, error) {
	return node.New(cfg, opts...)
}

// Run is the one-call entry point: load the config, build the node with the
// given options, and run it until the context is cancelled.
func Run(ctx context.Context, configPath string, opts ...Option) error {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return err
	}
	n, err := New(cfg, opts...)
	if err != nil {
		return err
	}
	return n.Run(ctx)
}

// Adapter overrides, re-exported from the node package.
var (
	WithSensorBus     = node.WithSensorBus
	WithTransport     = node.WithTransport
	WithClock         = node.WithClock
	WithActuator      = node.WithActuator
	WithObservability = node.WithObservability
	WithSpool         = node.WithSpool
	WithOutbox        = node.WithOutbox
	WithHooks         = node.WithHooks
)
