//go:build !linux

package clockmono

import (
	"time"

	"github.com/Thomas-Heisig/MODAX/internal/ports"
)

var processStart = time.Now()

// Clock derives monotonic milliseconds from the process start time; the Go
// runtime guarantees time.Since uses the monotonic reading.
type Clock struct{}

func New() Clock { return Clock{} }

func (Clock) Millis() uint32 {
	return uint32(time.Since(processStart) / time.Millisecond)
}

var _ ports.Clock = Clock{}
