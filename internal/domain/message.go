package domain

// Outbound logical channels. Each publisher writes to its own fixed channel
// so downstream consumers can apply per-channel retention and priority.
const (
	ChannelTelemetry = "modax/sensor/data"
	ChannelSafety    = "modax/sensor/safety"
)

// Message is a serialized payload bound for a transport channel.
type Message struct {
	Channel   string `json:"channel"`
	Payload   []byte `json:"payload"`
	Timestamp uint32 `json:"timestamp"` // monotonic ms at build time
}
