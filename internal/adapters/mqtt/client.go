// Package mqtt adapts the paho client to the transport port. Association is
// a polled state machine — Disconnected, Connecting, Connected — so the
// scheduling loop is never parked inside a broker retry.
package mqtt

import (
	"errors"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/Thomas-Heisig/MODAX/internal/ports"
)

// ErrNotConnected is returned by Publish while the broker session is down.
// Callers treat it as non-fatal.
var ErrNotConnected = errors.New("mqtt: not connected")

type Config struct {
	BrokerURL     string
	ClientID      string
	QoS           byte
	RetryInterval time.Duration
}

type Client struct {
	cfg Config
	cli paho.Client
	obs ports.Observability

	mu         sync.Mutex
	connecting bool
}

func NewClient(cfg Config, obs ports.Observability) *Client {
	c := &Client{cfg: cfg, obs: obs}

	opts := paho.NewClientOptions()
	opts.AddBroker(cfg.BrokerURL)
	opts.SetClientID(cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(cfg.RetryInterval)
	opts.OnConnect = func(paho.Client) {
		c.mu.Lock()
		c.connecting = false
		c.mu.Unlock()
		obs.SetGauge("modax_transport_connected", 1)
		log.Printf("mqtt: connected to %s", cfg.BrokerURL)
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		obs.SetGauge("modax_transport_connected", 0)
		obs.LogError("mqtt_connection_lost", err)
	}

	c.cli = paho.NewClient(opts)
	return c
}

// Connect starts the broker association without waiting for it to finish;
// paho retries in the background until the session is up.
func (c *Client) Connect() error {
	c.mu.Lock()
	if c.connecting {
		c.mu.Unlock()
		return nil
	}
	c.connecting = true
	c.mu.Unlock()

	c.obs.IncCounter("modax_transport_reconnects_total", 1)
	c.cli.Connect() // token deliberately not waited on
	return nil
}

func (c *Client) State() ports.ConnState {
	if c.cli.IsConnected() {
		return ports.Connected
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connecting {
		return ports.Connecting
	}
	return ports.Disconnected
}

func (c *Client) IsConnected() bool {
	return c.cli.IsConnected()
}

// Publish hands the payload to paho fire-and-forget; delivery tracking for
// QoS>0 happens on paho's own goroutines, never on the caller's.
func (c *Client) Publish(channel string, payload []byte) error {
	if !c.cli.IsConnected() {
		return ErrNotConnected
	}
	c.cli.Publish(channel, c.cfg.QoS, false, payload)
	return nil
}

// Service drives the association state machine once per loop iteration.
// Keepalive itself runs on paho's goroutines; this only re-arms a connect
// after a terminal disconnect.
func (c *Client) Service() {
	if c.State() == ports.Disconnected {
		_ = c.Connect()
	}
}

func (c *Client) Close() error {
	c.cli.Disconnect(250)
	return nil
}

var _ ports.Transport = (*Client)(nil)
