// ABOUTME: Audio output engine with ring buffering and playback clock
// ABOUTME: Implements open/write/pause/flush/drain over a device session
package output

import (
	"errors"
	"log"
	"sync"

	"github.com/tonearm/tonearm-go/internal/config"
	"github.com/tonearm/tonearm-go/internal/device"
	"github.com/tonearm/tonearm-go/internal/mixer"
	"github.com/tonearm/tonearm-go/pkg/audio"
)

// ErrAlreadyOpen means a second Open arrived while a session is active.
// One session exists at a time; the caller must Close first.
var ErrAlreadyOpen = errors.New("output already open")

// Engine is the output backend: it accepts decoded PCM from the playback
// engine and delivers it to the device with correct timing. One mutex
// guards the ring buffer, the clock state and the feeder's flags; one
// broadcast condition variable wakes whichever side is waiting. The
// feeder goroutine is the sole reader of the ring and the sole writer to
// the device.
type Engine struct {
	mu   sync.Mutex
	cond *sync.Cond

	cfg *config.Config

	openDevice device.Opener
	openMixer  func() (*mixer.Session, error)

	dev    device.Session
	format audio.Format
	buf    *ring

	writtenTime int64 // microseconds of audio ever enqueued
	buffering   bool  // from open or flush until the first blocked write
	paused      bool  // user pause
	pausedTime  int   // output time (ms) frozen while buffering or paused
	hwPaused    bool  // hardware stream is in the paused state

	quit       bool
	feederUp   bool
	feederDone chan struct{}

	mixOnce sync.Once
	mix     *mixer.Session
}

// New creates an engine bound to the given configuration. No device is
// opened until Open.
func New(cfg *config.Config) *Engine {
	e := &Engine{
		cfg:        cfg,
		openDevice: device.Open,
	}
	e.cond = sync.NewCond(&e.mu)
	e.openMixer = func() (*mixer.Session, error) {
		return mixer.Open(cfg.Mixer.Card, cfg.Mixer.Element)
	}
	return e
}

// Open negotiates the device and allocates the ring buffer. The session
// starts in a buffering state: playback begins the first time a Write
// would block, not after a fixed prefill. Fails with ErrAlreadyOpen while
// a session is active; device errors propagate to the caller with no
// resources left allocated.
func (e *Engine) Open(f audio.Format) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.dev != nil {
		return ErrAlreadyOpen
	}

	maxHardwareMs := 0
	if e.cfg.Workarounds.SkipDrain {
		// Without drain we lose whatever sits in hardware at end of
		// track; a small hardware buffer limits the damage.
		maxHardwareMs = 100
	}

	dev, err := e.openDevice(device.Params{
		Device:        e.cfg.Output.Device,
		Format:        f,
		BufferMs:      e.cfg.Output.BufferMs,
		MaxHardwareMs: maxHardwareMs,
	})
	if err != nil {
		log.Printf("output: open: %v", err)
		return err
	}

	soft := device.SoftBufferMs(e.cfg.Output.BufferMs, dev.HardwareMs())
	log.Printf("output: hardware buffer %d ms, software buffer %d ms",
		dev.HardwareMs(), soft)

	e.dev = dev
	e.format = f
	e.buf = newRing(f.MillisToBytes(soft))
	e.writtenTime = 0
	e.buffering = true // until the first blocked write
	e.paused = false
	e.hwPaused = false
	e.pausedTime = 0
	e.quit = false
	e.feederDone = make(chan struct{})

	go e.feed()
	for !e.feederUp {
		e.cond.Wait()
	}
	return nil
}

// Write queues interleaved PCM bytes. It blocks while the ring buffer is
// full and returns once every byte is queued; a zero-length write is a
// no-op. The first time a write must block, buffering is considered
// complete and playback starts.
func (e *Engine) Write(data []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.dev == nil {
		return
	}

	for {
		n := e.buf.push(data)
		data = data[n:]
		e.writtenTime += e.format.BytesToMicros(n)

		if len(data) == 0 {
			break
		}

		if e.buffering { // buffer full: buffering is complete
			e.startPlayback()
		}
		e.cond.Broadcast()
		e.cond.Wait()
	}

	e.cond.Broadcast()
}

// Pause freezes or resumes playback. Pausing snapshots the output time,
// which is then returned verbatim until resume; it does not wait for an
// in-flight transfer to finish. During initial buffering the hardware
// stream is not running and only the flag toggles: the start trigger
// stays with the first blocked write.
func (e *Engine) Pause(pause bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.dev == nil {
		return
	}

	if pause {
		if !e.paused {
			if !e.buffering {
				e.pausedTime = e.outputTimeLocked()
			}
			e.paused = true
		}
		if !e.buffering {
			if err := e.dev.Pause(true); err != nil {
				log.Printf("output: pause: %v", err)
			} else {
				e.hwPaused = true
			}
		}
	} else if e.paused {
		e.paused = false
		if e.hwPaused && !e.buffering {
			if err := e.dev.Pause(false); err != nil {
				log.Printf("output: resume: %v", err)
			}
			e.hwPaused = false
		}
	}

	e.cond.Broadcast()
}

// Flush discards all queued audio and resets the clock to the seek
// target. It waits for any in-flight transfer to clear so the feeder is
// never mid-write while the buffer is reset, then re-enters the
// buffering state.
func (e *Engine) Flush(timeMs int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.dev == nil {
		return
	}

	log.Printf("output: flush to %d ms", timeMs)

	e.writtenTime = int64(timeMs) * 1000
	e.buffering = true // until the next blocked write
	e.pausedTime = timeMs

	if !e.cfg.Workarounds.SkipDrop {
		if err := e.dev.Drop(); err != nil {
			log.Printf("output: drop: %v", err)
		}
		e.hwPaused = false
	}

	for e.buf.inFlight != 0 {
		e.cond.Wait()
	}
	e.buf.reset()

	e.cond.Broadcast()
}

// Drain blocks until the ring buffer empties, then waits for the
// hardware buffer unless the skip-drain workaround is on.
func (e *Engine) Drain() {
	e.mu.Lock()

	if e.dev == nil {
		e.mu.Unlock()
		return
	}

	log.Printf("output: drain")

	for e.buf.length > 0 {
		if e.buffering { // the buffer never filled: start the feeder ourselves
			e.startPlayback()
		} else {
			e.cond.Broadcast()
		}
		e.cond.Wait()
	}

	dev := e.dev
	e.mu.Unlock()

	if !e.cfg.Workarounds.SkipDrain {
		if err := dev.Drain(); err != nil {
			log.Printf("output: drain: %v", err)
		}
	}
}

// Close stops the feeder, joins it, and releases the device. The lock is
// dropped around the join so the feeder can run to completion.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.dev == nil {
		e.mu.Unlock()
		return
	}

	log.Printf("output: closing")
	e.quit = true

	if !e.cfg.Workarounds.SkipDrop {
		if err := e.dev.Drop(); err != nil {
			log.Printf("output: drop: %v", err)
		}
	}

	e.cond.Broadcast()
	e.mu.Unlock()

	<-e.feederDone

	e.mu.Lock()
	if err := e.dev.Close(); err != nil {
		log.Printf("output: close: %v", err)
	}
	e.dev = nil
	e.buf = nil
	e.mu.Unlock()
}

// SetWrittenTime resets the written-time counter to the given position.
func (e *Engine) SetWrittenTime(ms int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.writtenTime = int64(ms) * 1000
}

// WrittenTime returns the total audio ever enqueued, in ms.
func (e *Engine) WrittenTime() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return int(e.writtenTime / 1000)
}

// OutputTime returns the playback position currently audible, in ms.
// While buffering or paused it returns the frozen snapshot.
func (e *Engine) OutputTime() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.dev == nil {
		return 0
	}
	if e.buffering || e.paused {
		return e.pausedTime
	}
	return e.outputTimeLocked()
}

// outputTimeLocked reconstructs the audible position: audio ever
// submitted minus audio not yet physically played (queued bytes not in
// flight plus the hardware's internal delay).
func (e *Engine) outputTimeLocked() int {
	delay := 0
	if d, err := e.dev.Delay(); err == nil {
		delay = d
	} else {
		log.Printf("output: delay query: %v", err)
	}

	queued := e.buf.length - e.buf.inFlight
	us := e.writtenTime - (e.format.BytesToMicros(queued) + e.format.FramesToMicros(delay))
	return int(us / 1000)
}

// startPlayback leaves the buffering state: a hardware-paused stream is
// released, anything else is (re)started. Caller holds the lock.
func (e *Engine) startPlayback() {
	log.Printf("output: starting playback")

	var err error
	if e.hwPaused {
		err = e.dev.Pause(false)
		e.hwPaused = false
	} else {
		err = e.dev.Start()
	}
	if err != nil {
		log.Printf("output: start: %v", err)
	}

	e.buffering = false
	e.cond.Broadcast()
}

// Volume returns the hardware volume, or (0, 0) when no mixer element is
// available.
func (e *Engine) Volume() (int, int) {
	e.softInitMixer()
	return e.mix.Volume()
}

// SetVolume sets the hardware volume; a no-op without a mixer element.
func (e *Engine) SetVolume(left, right int) {
	e.softInitMixer()
	e.mix.SetVolume(left, right)
}

// softInitMixer opens the mixer on first volume access. Failure disables
// volume control but never playback.
func (e *Engine) softInitMixer() {
	e.mixOnce.Do(func() {
		mix, err := e.openMixer()
		if err != nil {
			log.Printf("output: mixer unavailable, volume control disabled: %v", err)
			return
		}
		e.mix = mix
	})
}

// Cleanup releases the mixer handle. Call once at plugin shutdown; it is
// independent of any playback session.
func (e *Engine) Cleanup() {
	if err := e.mix.Close(); err != nil {
		log.Printf("output: mixer close: %v", err)
	}
}
