package ports

// ConnState is the transport association state machine. Reconnects are
// driven by Service and never block the scheduling loop.
type ConnState int

const (
	Disconnected ConnState = iota
	Connecting
	Connected
)

func (s ConnState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Transport is the pub/sub message client collaborator. Publish failures are
// non-fatal to callers; retry and backoff live behind this port.
type Transport interface {
	// Connect begins association with the broker. It must not block.
	Connect() error
	State() ConnState
	IsConnected() bool
	// Publish hands the payload to the broker on the given channel,
	// fire-and-forget.
	Publish(channel string, payload []byte) error
	// Service drives protocol keepalive and reconnection. It is invoked
	// once per loop iteration and must return promptly.
	Service()
	Close() error
}
