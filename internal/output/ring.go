// ABOUTME: Fixed-capacity byte ring buffer for audio awaiting delivery
// ABOUTME: Tracks queued bytes and the chunk currently mid-write to hardware
package output

// ring holds not-yet-delivered audio between the producer and the feeder.
// It has no lock of its own: every method assumes the engine's mutex is
// held. Invariants: 0 <= length <= cap(data), inFlight <= length.
type ring struct {
	data     []byte
	start    int // offset of the first queued byte
	length   int // bytes currently queued
	inFlight int // bytes mid-transfer to the device, 0 when idle
}

func newRing(capacity int) *ring {
	return &ring{data: make([]byte, capacity)}
}

func (r *ring) capacity() int { return len(r.data) }

func (r *ring) free() int { return len(r.data) - r.length }

// contiguous returns the queued bytes readable without wrapping.
func (r *ring) contiguous() int {
	if n := len(r.data) - r.start; n < r.length {
		return n
	}
	return r.length
}

// push copies as much of p as fits, wrapping once if the write crosses the
// end, and returns the number of bytes copied.
func (r *ring) push(p []byte) int {
	writable := r.free()
	if writable > len(p) {
		writable = len(p)
	}

	pos := (r.start + r.length) % len(r.data)
	if part := len(r.data) - pos; writable > part {
		copy(r.data[pos:], p[:part])
		copy(r.data, p[part:writable])
	} else {
		copy(r.data[pos:], p[:writable])
	}

	r.length += writable
	return writable
}

// window returns the in-flight region for the feeder to hand to the device.
// The caller must have marked it first; the region never wraps.
func (r *ring) window() []byte {
	return r.data[r.start : r.start+r.inFlight]
}

// mark reserves n queued bytes as in-flight.
func (r *ring) mark(n int) {
	r.inFlight = n
}

// complete retires n delivered bytes and clears the in-flight marker.
// n may be less than the marked amount when the device accepted a short
// write or failed entirely.
func (r *ring) complete(n int) {
	r.start = (r.start + n) % len(r.data)
	r.length -= n
	r.inFlight = 0
}

// reset discards all queued audio. Must not be called while bytes are in
// flight.
func (r *ring) reset() {
	r.start = 0
	r.length = 0
}
