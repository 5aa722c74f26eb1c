//go:build linux

package clockmono

import (
	"golang.org/x/sys/unix"

	"github.com/Thomas-Heisig/MODAX/internal/ports"
)

// Clock reads CLOCK_MONOTONIC directly so the millisecond counter tracks
// time since boot and keeps ticking across NTP steps of the wall clock.
type Clock struct{}

func New() Clock { return Clock{} }

// Millis returns monotonic milliseconds truncated to uint32; it wraps every
// ~49.7 days, which callers handle via unsigned subtraction.
func (Clock) Millis() uint32 {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return 0
	}
	return uint32(ts.Sec*1000 + ts.Nsec/1e6)
}

var _ ports.Clock = Clock{}
