package mqtt

import (
	"errors"
	"testing"
	"time"

	"github.com/Thomas-Heisig/MODAX/internal/ports"
)

func newOfflineClient() *Client {
	return NewClient(Config{
		BrokerURL:     "tcp://127.0.0.1:1", // nothing listens here
		ClientID:      "test",
		RetryInterval: time.Hour, // keep paho from retrying during the test
	}, &mockObs{})
}

func TestStateBeforeConnect(t *testing.T) {
	c := newOfflineClient()
	if got := c.State(); got != ports.Disconnected {
		t.Fatalf("expected disconnected before Connect, got %s", got)
	}
	if c.IsConnected() {
		t.Fatalf("expected not connected before Connect")
	}
}

func TestPublishWhileDownReturnsErrNotConnected(t *testing.T) {
	c := newOfflineClient()
	err := c.Publish("modax/sensor/data", []byte("{}"))
	if !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestConnStateString(t *testing.T) {
	cases := map[ports.ConnState]string{
		ports.Disconnected: "disconnected",
		ports.Connecting:   "connecting",
		ports.Connected:    "connected",
	}
	for state, want := range cases {
		if state.String() != want {
			t.Fatalf("expected %q, got %q", want, state.String())
		}
	}
}

type mockObs struct{}

func (m *mockObs) LogInfo(string, ...ports.Field)            {}
func (m *mockObs) LogError(string, error, ...ports.Field)    {}
func (m *mockObs) LogCritical(string, error, ...ports.Field) {}
func (m *mockObs) IncCounter(string, float64)                {}
func (m *mockObs) SetGauge(string, float64)                  {}
func (m *mockObs) ObserveLatency(string, float64)            {}
