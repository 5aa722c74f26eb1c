package outbox

import (
	"testing"

	"github.com/Thomas-Heisig/MODAX/internal/domain"
	"github.com/Thomas-Heisig/MODAX/internal/ports"
)

func msg(ts uint32) *domain.Message {
	return &domain.Message{Channel: domain.ChannelTelemetry, Timestamp: ts}
}

func TestMemOutboxEnqueueDequeueOrder(t *testing.T) {
	ob := NewMemOutbox(4)

	if !ob.Enqueue(1, msg(100)) || !ob.Enqueue(2, msg(200)) {
		t.Fatalf("expected successful enqueue")
	}

	batch := ob.DequeueBatch(1)
	if len(batch) != 1 || batch[0].ID != 1 || batch[0].Msg.Timestamp != 100 {
		t.Fatalf("unexpected first batch: %+v", batch)
	}

	remaining := ob.DequeueBatch(10)
	if len(remaining) != 1 || remaining[0].ID != 2 {
		t.Fatalf("unexpected second batch: %+v", remaining)
	}

	if ob.Len() != 0 {
		t.Fatalf("outbox should be empty, got %d", ob.Len())
	}
}

func TestMemOutboxCapacity(t *testing.T) {
	ob := NewMemOutbox(2)

	if !ob.Enqueue(1, msg(1)) || !ob.Enqueue(2, msg(2)) {
		t.Fatalf("expected enqueue within capacity")
	}
	if ob.Enqueue(3, msg(3)) {
		t.Fatalf("enqueue should fail when capacity exceeded")
	}

	ob.DequeueBatch(1)
	if !ob.Enqueue(4, msg(4)) {
		t.Fatalf("expected enqueue to succeed after dequeue")
	}
}

func TestMemOutboxRequeuePreservesOrder(t *testing.T) {
	ob := NewMemOutbox(8)

	for i := ports.SpoolEntryID(1); i <= 4; i++ {
		ob.Enqueue(i, msg(uint32(i)))
	}

	// A failed dispatch puts the unsent tail back in front of anything
	// enqueued in the meantime.
	batch := ob.DequeueBatch(4)
	ob.Enqueue(5, msg(5))
	if !ob.Requeue(batch[2:]) {
		t.Fatalf("expected requeue to succeed")
	}

	drained := ob.DequeueBatch(10)
	wantIDs := []ports.SpoolEntryID{3, 4, 5}
	if len(drained) != len(wantIDs) {
		t.Fatalf("expected %d messages, got %d", len(wantIDs), len(drained))
	}
	for i, want := range wantIDs {
		if drained[i].ID != want {
			t.Fatalf("position %d: expected id %d, got %d", i, want, drained[i].ID)
		}
	}
}

func TestMemOutboxRequeueFailsWhenFull(t *testing.T) {
	ob := NewMemOutbox(2)
	ob.Enqueue(1, msg(1))
	ob.Enqueue(2, msg(2))

	overflow := []ports.QueuedMessage{{ID: 3, Msg: msg(3)}}
	if ob.Requeue(overflow) {
		t.Fatalf("expected requeue to fail when the batch does not fit")
	}
	if ob.Len() != 2 {
		t.Fatalf("failed requeue must not disturb queued messages, got %d", ob.Len())
	}
}
