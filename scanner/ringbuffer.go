package scanner

import "sync/atomic"

// RingBuffer is a single-producer/single-consumer circular buffer of
// complex samples decoupling the tuner callback thread from the PSD frame
// extractor (§4.1). Producer and consumer must be distinct goroutines; the
// write/read positions and available count are published with atomics so
// neither side blocks the other.
type RingBuffer struct {
	buf      []complex64
	capacity uint64

	writePos  atomic.Uint64
	readPos   atomic.Uint64
	available atomic.Int64
	drops     atomic.Uint64
}

// NewRingBuffer allocates a ring buffer of the given capacity. Callers
// feeding a PSD engine of frame size N must use a capacity of at least 4*N
// to tolerate burst jitter (§4.1).
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		panic("scanner: ring buffer capacity must be positive")
	}
	return &RingBuffer{
		buf:      make([]complex64, capacity),
		capacity: uint64(capacity),
	}
}

// Write copies samples into the buffer. On overflow the oldest samples are
// dropped and the drop counter advances; Write never blocks or allocates.
func (rb *RingBuffer) Write(samples []complex64) {
	n := len(samples)
	if n == 0 {
		return
	}
	if uint64(n) > rb.capacity {
		// Only the most recent capacity samples can ever be read back;
		// count the rest as dropped and keep only the tail.
		rb.drops.Add(uint64(n) - rb.capacity)
		samples = samples[n-int(rb.capacity):]
		n = len(samples)
	}

	wp := rb.writePos.Load()
	for i, s := range samples {
		rb.buf[(wp+uint64(i))%rb.capacity] = s
	}
	rb.writePos.Store(wp + uint64(n))

	avail := rb.available.Load() + int64(n)
	if avail > int64(rb.capacity) {
		overflow := avail - int64(rb.capacity)
		rb.readPos.Add(uint64(overflow))
		rb.drops.Add(uint64(overflow))
		avail = int64(rb.capacity)
	}
	rb.available.Store(avail)
}

// TryReadFrame copies n samples starting at the read position into out
// without advancing the read position. It returns false if fewer than n
// samples are available.
func (rb *RingBuffer) TryReadFrame(out []complex64, n int) bool {
	if int64(n) > rb.available.Load() {
		return false
	}
	rp := rb.readPos.Load()
	for i := 0; i < n; i++ {
		out[i] = rb.buf[(rp+uint64(i))%rb.capacity]
	}
	return true
}

// Advance drops k samples from the read side. k is clamped to
// [0, available] so a caller computing k independently can never
// under- or over-run the buffer.
func (rb *RingBuffer) Advance(k int) {
	if k <= 0 {
		return
	}
	avail := rb.available.Load()
	if int64(k) > avail {
		k = int(avail)
	}
	rb.readPos.Add(uint64(k))
	rb.available.Add(-int64(k))
}

// Available returns the number of samples currently readable.
func (rb *RingBuffer) Available() int { return int(rb.available.Load()) }

// Capacity returns the buffer's fixed capacity.
func (rb *RingBuffer) Capacity() int { return int(rb.capacity) }

// Drops returns the cumulative number of samples overwritten by overflow.
func (rb *RingBuffer) Drops() uint64 { return rb.drops.Load() }
