package ports

// Clock reports monotonic milliseconds since boot. The counter wraps at the
// uint32 width; elapsed time must be computed with unsigned subtraction
// (now - then), never by direct comparison.
type Clock interface {
	Millis() uint32
}
