package serialbus

import (
	"errors"
	"testing"
	"time"

	"github.com/Thomas-Heisig/MODAX/internal/ports"
)

func TestParseFrame(t *testing.T) {
	f, err := parseFrame("S,2048,2100,1987,1,0,0.02,-0.01,9.81")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if f.adc != [3]uint16{2048, 2100, 1987} {
		t.Fatalf("unexpected adc codes: %v", f.adc)
	}
	if !f.estop || f.door {
		t.Fatalf("unexpected digital levels: estop=%v door=%v", f.estop, f.door)
	}
	if f.accel != [3]float64{0.02, -0.01, 9.81} {
		t.Fatalf("unexpected accel: %v", f.accel)
	}
}

func TestParseFrameRejectsMalformed(t *testing.T) {
	for _, line := range []string{
		"",
		"S,1,2,3",              // short
		"X,1,2,3,0,0,0,0,0",    // wrong tag
		"S,1,2,3,0,0,0,0,0,9",  // long
		"S,9999,2,3,0,0,0,0,0", // code above 12-bit range
		"S,a,2,3,0,0,0,0,0",    // non-numeric adc
		"S,1,2,3,2,0,0,0,0",    // digital not 0/1
		"S,1,2,3,0,0,x,0,0",    // non-numeric accel
	} {
		if _, err := parseFrame(line); err == nil {
			t.Fatalf("expected error for %q", line)
		}
	}
}

func TestSnapshotStaleness(t *testing.T) {
	b, err := NewBus(Config{Port: "/dev/null", MaxAge: 50 * time.Millisecond})
	if err != nil {
		t.Fatalf("new bus: %v", err)
	}

	// Nothing received yet.
	if _, err := b.ReadADC(ports.ChannelCurrent1); !errors.Is(err, ErrStale) {
		t.Fatalf("expected ErrStale before first frame, got %v", err)
	}

	f, err := parseFrame("S,100,200,300,1,0,0,0,0")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	b.mu.Lock()
	b.last = f
	b.seen = true
	b.mu.Unlock()

	code, err := b.ReadADC(ports.ChannelCurrent2)
	if err != nil {
		t.Fatalf("read fresh frame: %v", err)
	}
	if code != 200 {
		t.Fatalf("expected code 200, got %d", code)
	}

	estop, err := b.ReadDigital(ports.InputEmergencyStop)
	if err != nil || !estop {
		t.Fatalf("expected estop level high, got %v err=%v", estop, err)
	}

	// Age the frame past MaxAge.
	b.mu.Lock()
	b.last.at = time.Now().Add(-time.Second)
	b.mu.Unlock()
	if _, err := b.ReadADC(ports.ChannelCurrent1); !errors.Is(err, ErrStale) {
		t.Fatalf("expected ErrStale for aged frame, got %v", err)
	}
}
