// ABOUTME: Playback device session abstraction
// ABOUTME: Defines the hardware primitives the output engine feeds into
package device

import (
	"errors"

	"github.com/tonearm/tonearm-go/pkg/audio"
)

// Error classes surfaced by Open. Mid-stream write errors are not in this
// taxonomy; they are recovered in place via Recover.
var (
	// ErrUnavailable means the requested format/rate/channel combination
	// could not be negotiated with the device.
	ErrUnavailable = errors.New("device unavailable")
	// ErrBusy means the device is already claimed elsewhere.
	ErrBusy = errors.New("device busy")
)

// Params describes one open request.
type Params struct {
	// Device is the PCM name in "hw:C,D" form.
	Device string
	Format audio.Format
	// BufferMs is the total buffering target; the hardware buffer is
	// negotiated toward half of it.
	BufferMs int
	// MaxHardwareMs caps the negotiated hardware buffer. Zero means no cap.
	// Used with the skip-drain workaround to limit end-of-track audio loss.
	MaxHardwareMs int
}

// Session is one open playback stream. The feeder is its only writer.
type Session interface {
	// Start transitions the stream from prepared or paused to running.
	Start() error

	// Write delivers interleaved frames and blocks until the hardware
	// accepts them. Returns the number of frames accepted.
	Write(buf []byte) (int, error)

	// Pause pauses or resumes the hardware stream.
	Pause(enable bool) error

	// Drop discards hardware-buffered audio immediately.
	Drop() error

	// Drain blocks until the hardware buffer empties.
	Drain() error

	// Delay reports hardware-internal latency in frames: audio accepted by
	// Write but not yet audible.
	Delay() (int, error)

	// Recover attempts to reset the stream after a transient error (xrun,
	// bad state). Returns the original error if unrecoverable.
	Recover(err error) error

	// PeriodBytes is the device-preferred transfer chunk in bytes.
	PeriodBytes() int

	// HardwareMs is the negotiated hardware buffer duration in ms.
	HardwareMs() int

	// Close releases the device handle.
	Close() error
}

// Opener opens a playback session; swapped out in tests.
type Opener func(p Params) (Session, error)

// SoftBufferMs derives the software ring-buffer duration from the buffering
// target and the negotiated hardware buffer: the soft buffer shrinks to
// compensate for latency already living in hardware, with a floor of half
// the target.
func SoftBufferMs(targetMs, hardwareMs int) int {
	soft := targetMs - hardwareMs
	if half := targetMs / 2; soft < half {
		soft = half
	}
	return soft
}
