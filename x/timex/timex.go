package timex

import "time"

// Mono is a monotonic time base whose zero is the moment it was created.
type Mono struct{ start time.Time }

func NewMono() Mono { return Mono{start: time.Now()} }

// Now is the time elapsed since the base was created.
func (m Mono) Now() time.Duration { return time.Since(m.start) }

// Until returns at-now, or 0 once at has passed.
func Until(at, now time.Duration) time.Duration {
	if at <= now {
		return 0
	}
	return at - now
}

// CharTime is the time one character of bits (start, data, parity and stop
// bits) takes on the wire. baud==0 is coerced to 1 to avoid division by zero.
func CharTime(baud uint32, bits uint8) time.Duration {
	if baud == 0 {
		baud = 1
	}
	return time.Duration(uint64(bits) * uint64(time.Second) / uint64(baud))
}
