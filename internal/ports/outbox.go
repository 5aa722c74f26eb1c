package ports

import "github.com/Thomas-Heisig/MODAX/internal/domain"

type QueuedMessage struct {
	ID  SpoolEntryID
	Msg *domain.Message
}

// Outbox buffers telemetry messages while the transport is down. Safety
// messages never pass through here.
type Outbox interface {
	Enqueue(id SpoolEntryID, m *domain.Message) bool
	DequeueBatch(max int) []QueuedMessage
	Requeue(items []QueuedMessage) bool
	Len() int
}
