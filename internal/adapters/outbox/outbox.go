package outbox

import (
	"sync"

	"github.com/Thomas-Heisig/MODAX/internal/domain"
	"github.com/Thomas-Heisig/MODAX/internal/ports"
)

// MemOutbox is a bounded in-memory FIFO of pending transport messages.
type MemOutbox struct {
	mu   sync.Mutex
	data []ports.QueuedMessage
	cap  int
}

func NewMemOutbox(capacity int) *MemOutbox {
	return &MemOutbox{
		data: make([]ports.QueuedMessage, 0, capacity),
		cap:  capacity,
	}
}

func (q *MemOutbox) Enqueue(id ports.SpoolEntryID, m *domain.Message) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.data) >= q.cap {
		return false
	}
	q.data = append(q.data, ports.QueuedMessage{ID: id, Msg: m})
	return true
}

func (q *MemOutbox) DequeueBatch(max int) []ports.QueuedMessage {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.data) == 0 {
		return nil
	}
	if max <= 0 || max > len(q.data) {
		max = len(q.data)
	}
	out := make([]ports.QueuedMessage, max)
	copy(out, q.data[:max])
	q.data = append(q.data[:0], q.data[max:]...)
	return out
}

// Requeue puts undelivered messages back at the head of the queue,
// preserving their original order. It fails if they no longer fit.
func (q *MemOutbox) Requeue(items []ports.QueuedMessage) bool {
	if len(items) == 0 {
		return true
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.data)+len(items) > q.cap {
		return false
	}
	q.data = append(append(make([]ports.QueuedMessage, 0, len(items)+len(q.data)), items...), q.data...)
	return true
}

func (q *MemOutbox) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.data)
}

var _ ports.Outbox = (*MemOutbox)(nil)
