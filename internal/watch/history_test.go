package watch

import (
	"testing"
	"time"
)

func TestBufferRingBehavior(t *testing.T) {
	b := NewBuffer(3)
	now := time.Now()

	for i := 1; i <= 5; i++ {
		b.Push(float64(i), now.Add(time.Duration(i)*time.Second))
	}

	if len(b.Points) != 3 {
		t.Fatalf("expected buffer capped at 3, got %d", len(b.Points))
	}
	if b.Last() != 5 {
		t.Fatalf("expected last value 5, got %v", b.Last())
	}
	if got := b.LastN(2); len(got) != 2 || got[0] != 4 || got[1] != 5 {
		t.Fatalf("expected last two values [4 5], got %v", got)
	}
	// Min and peak track all pushed values, including evicted ones.
	if b.Min != 1 || b.Peak != 5 {
		t.Fatalf("expected min 1 peak 5, got %v/%v", b.Min, b.Peak)
	}
}

func TestBufferAvg(t *testing.T) {
	b := NewBuffer(4)
	now := time.Now()
	for _, v := range []float64{2, 4, 6} {
		b.Push(v, now)
	}
	if b.Avg() != 4 {
		t.Fatalf("expected avg 4, got %v", b.Avg())
	}
}

func TestStoreCreatesBuffersOnDemand(t *testing.T) {
	s := NewStore(8)
	now := time.Now()

	s.Record("current_1", 1.5, now)
	s.Record("current_1", 2.5, now)
	s.Record("temperature", 30, now)

	if b := s.Get("current_1"); b == nil || b.Last() != 2.5 {
		t.Fatalf("unexpected current_1 buffer: %+v", b)
	}
	if b := s.Get("temperature"); b == nil || b.Last() != 30 {
		t.Fatalf("unexpected temperature buffer: %+v", b)
	}
	if s.Get("vibration") != nil {
		t.Fatalf("expected nil buffer for unseen series")
	}
}

func TestSparkline(t *testing.T) {
	// Monotonic ramp maps to ascending bar runes; equal values map to a
	// flat line without dividing by zero.
	out := sparkline([]float64{1, 2, 3, 4}, 4)
	if out == "" {
		t.Fatalf("expected rendered sparkline")
	}
	flat := sparkline([]float64{5, 5, 5}, 3)
	if flat == "" {
		t.Fatalf("expected rendered flat sparkline")
	}
	if sparkline(nil, 0) != "" {
		t.Fatalf("expected empty output for zero width")
	}
}
