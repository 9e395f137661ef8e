// ABOUTME: Tests for the output engine
// ABOUTME: Tests ordering, blocking writes, flush/pause/drain and the clock
package output

import (
	"bytes"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/tonearm/tonearm-go/internal/config"
	"github.com/tonearm/tonearm-go/internal/device"
	"github.com/tonearm/tonearm-go/internal/mixer"
	"github.com/tonearm/tonearm-go/pkg/audio"
)

// testFormat keeps the math easy: 1000 frames/s, 2 bytes/frame, so
// 1 ms == 1 frame == 2 bytes.
var testFormat = audio.Format{Sample: audio.FormatS16LE, Rate: 1000, Channels: 1}

// fakeDevice is an in-memory device session recording everything the
// feeder hands to it.
type fakeDevice struct {
	mu          sync.Mutex
	delivered   bytes.Buffer
	frameBytes  int
	periodBytes int
	hardwareMs  int
	delayFrames int

	writeErr   error
	startCount int
	hwPaused   bool
	dropped    bool
	drained    bool
	recovered  int
	closed     bool
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{
		frameBytes:  testFormat.FrameBytes(),
		periodBytes: 64,
	}
}

func (d *fakeDevice) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.startCount++
	return nil
}

func (d *fakeDevice) Write(buf []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.writeErr != nil {
		err := d.writeErr
		d.writeErr = nil
		return 0, err
	}
	d.delivered.Write(buf)
	return len(buf) / d.frameBytes, nil
}

func (d *fakeDevice) Pause(enable bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hwPaused = enable
	return nil
}

func (d *fakeDevice) Drop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dropped = true
	return nil
}

func (d *fakeDevice) Drain() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.drained = true
	return nil
}

func (d *fakeDevice) Delay() (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.delayFrames, nil
}

func (d *fakeDevice) Recover(err error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.recovered++
	return nil
}

func (d *fakeDevice) PeriodBytes() int { return d.periodBytes }

func (d *fakeDevice) HardwareMs() int { return d.hardwareMs }

func (d *fakeDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

func (d *fakeDevice) bytesDelivered() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]byte(nil), d.delivered.Bytes()...)
}

// newTestEngine wires an engine to a fake device. BufferMs 100 with a
// zero hardware buffer gives a 100 ms (200 byte) ring.
func newTestEngine(t *testing.T, dev *fakeDevice) *Engine {
	t.Helper()
	cfg := config.Default()
	cfg.Output.BufferMs = 100

	e := New(cfg)
	e.openDevice = func(p device.Params) (device.Session, error) {
		return dev, nil
	}
	e.openMixer = func() (*mixer.Session, error) {
		return nil, nil
	}
	return e
}

func pattern(n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(i % 251)
	}
	return out
}

func TestOpenTwiceFails(t *testing.T) {
	e := newTestEngine(t, newFakeDevice())
	require.NoError(t, e.Open(testFormat))
	assert.ErrorIs(t, e.Open(testFormat), ErrAlreadyOpen)

	e.Close()
	require.NoError(t, e.Open(testFormat))
	e.Close()
}

func TestOpenFailureLeavesNoResources(t *testing.T) {
	dev := newFakeDevice()
	e := newTestEngine(t, dev)

	fail := true
	e.openDevice = func(p device.Params) (device.Session, error) {
		if fail {
			return nil, device.ErrUnavailable
		}
		return dev, nil
	}

	assert.ErrorIs(t, e.Open(testFormat), device.ErrUnavailable)

	// The failed attempt must not block a subsequent open.
	fail = false
	require.NoError(t, e.Open(testFormat))
	e.Close()
}

func TestWriteDeliversInOrder(t *testing.T) {
	dev := newFakeDevice()
	e := newTestEngine(t, dev)
	require.NoError(t, e.Open(testFormat))

	// Five times the ring capacity, in uneven slices.
	data := pattern(1000)
	for off := 0; off < len(data); {
		n := 86
		if off+n > len(data) {
			n = len(data) - off
		}
		e.Write(data[off : off+n])
		off += n
	}

	e.Drain()
	e.Close()

	assert.Equal(t, data, dev.bytesDelivered())
	assert.Equal(t, 500, e.WrittenTime()) // 1000 bytes = 500 frames = 500 ms
	assert.True(t, dev.drained)
	assert.True(t, dev.closed)
}

func TestZeroLengthWriteIsNoop(t *testing.T) {
	dev := newFakeDevice()
	e := newTestEngine(t, dev)
	require.NoError(t, e.Open(testFormat))

	e.Write(nil)
	e.Write([]byte{})

	assert.Equal(t, 0, e.WrittenTime())
	assert.Equal(t, 0, dev.startCount, "a zero write must not start playback")
	e.Close()
}

func TestPlaybackStartsOnlyWhenWriteBlocks(t *testing.T) {
	dev := newFakeDevice()
	e := newTestEngine(t, dev)
	require.NoError(t, e.Open(testFormat))

	// Fills half the ring: no blocking, so still buffering.
	e.Write(pattern(100))
	assert.Equal(t, 0, dev.startCount)

	// Overflows the ring: the write blocks, which is the start trigger.
	// It returns only once the feeder has drained enough space.
	e.Write(pattern(200))
	assert.Equal(t, 1, dev.startCount)

	e.Close()
}

func TestPauseDuringBufferingDoesNotStartPlayback(t *testing.T) {
	dev := newFakeDevice()
	e := newTestEngine(t, dev)
	require.NoError(t, e.Open(testFormat))

	e.Write(pattern(100)) // half the ring: still buffering

	// Neither a pause/unpause cycle nor a stray unpause may begin
	// playback of an underfilled buffer.
	e.Pause(true)
	e.Pause(false)
	e.Pause(false)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, dev.startCount, "unpause started an underfilled buffer")
	assert.Empty(t, dev.bytesDelivered())

	// The start trigger still belongs to the first blocked write.
	e.Write(pattern(200))
	assert.Equal(t, 1, dev.startCount)

	e.Drain()
	e.Close()
	assert.Equal(t, append(pattern(100), pattern(200)...), dev.bytesDelivered())
}

func TestFlushResetsClockAndBuffer(t *testing.T) {
	dev := newFakeDevice()
	e := newTestEngine(t, dev)
	require.NoError(t, e.Open(testFormat))

	e.Write(pattern(100))
	e.Flush(4567)

	assert.Equal(t, 4567, e.WrittenTime())
	assert.Equal(t, 4567, e.OutputTime()) // frozen at the seek target
	assert.True(t, dev.dropped)

	// Nothing queued before the flush may reach the device afterwards.
	delivered := len(dev.bytesDelivered())
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, delivered, len(dev.bytesDelivered()))

	e.Close()
}

func TestFlushSkipsDropUnderWorkaround(t *testing.T) {
	dev := newFakeDevice()
	e := newTestEngine(t, dev)
	e.cfg.Workarounds.SkipDrop = true
	require.NoError(t, e.Open(testFormat))

	e.Write(pattern(50))
	e.Flush(0)

	assert.False(t, dev.dropped)
	e.Close()
}

func TestPauseFreezesOutputTime(t *testing.T) {
	dev := newFakeDevice()
	e := newTestEngine(t, dev)
	require.NoError(t, e.Open(testFormat))

	e.Write(pattern(300)) // exceeds capacity: playback starts
	e.Pause(true)

	first := e.OutputTime()
	dev.mu.Lock()
	dev.delayFrames = 77 // hardware reports movement; the snapshot must not
	dev.mu.Unlock()

	for i := 0; i < 5; i++ {
		assert.Equal(t, first, e.OutputTime())
	}
	assert.True(t, dev.hwPaused)

	e.Pause(false)
	assert.False(t, dev.hwPaused)

	e.Drain()
	e.Close()
}

func TestOutputTimeMonotonic(t *testing.T) {
	dev := newFakeDevice()
	e := newTestEngine(t, dev)
	require.NoError(t, e.Open(testFormat))

	last := e.OutputTime()
	for i := 0; i < 40; i++ {
		e.Write(pattern(50))
		now := e.OutputTime()
		assert.GreaterOrEqual(t, now, last, "output time went backwards at write %d", i)
		last = now
	}

	e.Drain()
	assert.GreaterOrEqual(t, e.OutputTime(), last)
	e.Close()
}

func TestTransientWriteErrorDoesNotLoseAudio(t *testing.T) {
	dev := newFakeDevice()
	e := newTestEngine(t, dev)
	require.NoError(t, e.Open(testFormat))

	dev.mu.Lock()
	dev.writeErr = unix.EPIPE // first device write underruns
	dev.mu.Unlock()

	data := pattern(400)
	e.Write(data)
	e.Drain()
	e.Close()

	assert.Equal(t, data, dev.bytesDelivered(), "failed chunk must be retried, not dropped")
	assert.Equal(t, 1, dev.recovered)
}

func TestSetWrittenTime(t *testing.T) {
	e := newTestEngine(t, newFakeDevice())
	require.NoError(t, e.Open(testFormat))

	e.SetWrittenTime(1234)
	assert.Equal(t, 1234, e.WrittenTime())
	e.Close()
}

func TestScenarioOneSecondWrite(t *testing.T) {
	// Open at 44100 Hz stereo 16-bit with a 0.5 s ring; one 1 s write
	// must block until enough has drained, then report 1000 ms written.
	format := audio.Format{Sample: audio.FormatS16LE, Rate: 44100, Channels: 2}
	dev := newFakeDevice()
	dev.frameBytes = format.FrameBytes()
	dev.periodBytes = format.FramesToBytes(1024)

	cfg := config.Default()
	cfg.Output.BufferMs = 500
	e := New(cfg)
	e.openDevice = func(p device.Params) (device.Session, error) { return dev, nil }
	e.openMixer = func() (*mixer.Session, error) { return nil, nil }

	require.NoError(t, e.Open(format))

	second := pattern(44100 * 4)
	e.Write(second)

	assert.Equal(t, 1000, e.WrittenTime())
	assert.Equal(t, 1, dev.startCount)

	e.Drain()
	assert.Equal(t, second, dev.bytesDelivered())
	e.Close()
}

// fakeVolume is a minimal mixer control for wiring tests.
type fakeVolume struct{ left, right int }

func (c *fakeVolume) NumValues() uint { return 2 }

func (c *fakeVolume) Percent(id uint) (int, error) {
	if id == 0 {
		return c.left, nil
	}
	return c.right, nil
}

func (c *fakeVolume) SetPercent(id uint, percent int) error {
	if id == 0 {
		c.left = percent
	} else {
		c.right = percent
	}
	return nil
}

func (c *fakeVolume) SetValue(id uint, value int) error { return nil }

func TestVolumeDelegatesToMixer(t *testing.T) {
	vol := &fakeVolume{}
	e := newTestEngine(t, newFakeDevice())
	e.openMixer = func() (*mixer.Session, error) {
		return mixer.New(vol, nil, nil), nil
	}

	e.SetVolume(70, 40)
	left, right := e.Volume()
	assert.Equal(t, 70, left)
	assert.Equal(t, 40, right)
}

func TestVolumeWithoutMixer(t *testing.T) {
	e := newTestEngine(t, newFakeDevice())
	e.openMixer = func() (*mixer.Session, error) {
		return nil, errors.New("no such card")
	}

	e.SetVolume(80, 80) // must not panic
	left, right := e.Volume()
	assert.Equal(t, 0, left)
	assert.Equal(t, 0, right)
	e.Cleanup()
}
