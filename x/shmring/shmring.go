package shmring

import (
	"sync/atomic"
)

// Ring is a single-producer, single-consumer byte ring.
//
// The producer (an interrupt handler or the goroutine standing in for one)
// only calls Push. The consumer only calls Drain, Reset and the observers.
// When the ring is full Push drops the new byte and counts it in Dropped;
// bytes already accepted are never overwritten.
type Ring struct {
	buf  []byte
	mask uint32
	rd   atomic.Uint32 // consumer index (monotonic)
	wr   atomic.Uint32 // producer index (monotonic)

	dropped atomic.Uint32
}

// New allocates a ring of the given power-of-two size (>= 2).
func New(size int) *Ring {
	if size < 2 || (size&(size-1)) != 0 {
		panic("shmring: size must be power of two >= 2")
	}
	return &Ring{
		buf:  make([]byte, size),
		mask: uint32(size - 1),
	}
}

func (r *Ring) size() uint32 { return uint32(len(r.buf)) }

// Cap returns the ring capacity in bytes.
func (r *Ring) Cap() int { return len(r.buf) }

func (r *Ring) Available() int {
	rd := r.rd.Load()
	wr := r.wr.Load()
	return int(wr - rd)
}

// Dropped reports how many bytes Push rejected because the ring was full.
func (r *Ring) Dropped() uint32 { return r.dropped.Load() }

// Producer side

// Push appends one byte. It never blocks and touches no channel; it returns false and counts a drop
// when the ring is full.
func (r *Ring) Push(b byte) bool {
	rd := r.rd.Load()
	wr := r.wr.Load()
	if wr-rd >= r.size() {
		r.dropped.Add(1)
		return false
	}
	r.buf[wr&r.mask] = b
	r.wr.Store(wr + 1) // release
	return true
}

// Consumer side

// Drain copies exactly len(dst) bytes out of the ring. If fewer are buffered
// it consumes nothing and returns false.
func (r *Ring) Drain(dst []byte) bool {
	n := len(dst)
	if n == 0 {
		return true
	}
	rd := r.rd.Load()
	wr := r.wr.Load() // acquire
	if int(wr-rd) < n {
		return false
	}

	rdIdx := rd & r.mask
	first := int(r.size() - rdIdx)
	if first > n {
		first = n
	}
	copy(dst[:first], r.buf[rdIdx:rdIdx+uint32(first)])
	if second := n - first; second > 0 {
		copy(dst[first:n], r.buf[:second])
	}
	r.rd.Store(rd + uint32(n)) // release
	return true
}

// Reset discards buffered bytes and clears the drop counter.
func (r *Ring) Reset() {
	r.rd.Store(r.wr.Load())
	r.dropped.Store(0)
}
