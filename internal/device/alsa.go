// ABOUTME: ALSA-backed device session
// ABOUTME: Negotiates PCM hardware parameters and wraps write/drain/drop/delay
package device

import (
	"errors"
	"fmt"
	"log"

	"github.com/gen2brain/alsa"
	"golang.org/x/sys/unix"

	"github.com/tonearm/tonearm-go/pkg/audio"
)

// pcmFormats maps stream sample formats to ALSA PCM formats.
var pcmFormats = map[audio.SampleFormat]alsa.PcmFormat{
	audio.FormatS8:        alsa.SNDRV_PCM_FORMAT_S8,
	audio.FormatU8:        alsa.SNDRV_PCM_FORMAT_U8,
	audio.FormatS16LE:     alsa.SNDRV_PCM_FORMAT_S16_LE,
	audio.FormatS16BE:     alsa.SNDRV_PCM_FORMAT_S16_BE,
	audio.FormatU16LE:     alsa.SNDRV_PCM_FORMAT_U16_LE,
	audio.FormatU16BE:     alsa.SNDRV_PCM_FORMAT_U16_BE,
	audio.FormatS24LE:     alsa.SNDRV_PCM_FORMAT_S24_LE,
	audio.FormatS24BE:     alsa.SNDRV_PCM_FORMAT_S24_BE,
	audio.FormatU24LE:     alsa.SNDRV_PCM_FORMAT_U24_LE,
	audio.FormatU24BE:     alsa.SNDRV_PCM_FORMAT_U24_BE,
	audio.FormatS32LE:     alsa.SNDRV_PCM_FORMAT_S32_LE,
	audio.FormatS32BE:     alsa.SNDRV_PCM_FORMAT_S32_BE,
	audio.FormatU32LE:     alsa.SNDRV_PCM_FORMAT_U32_LE,
	audio.FormatU32BE:     alsa.SNDRV_PCM_FORMAT_U32_BE,
	audio.FormatFloat32LE: alsa.SNDRV_PCM_FORMAT_FLOAT_LE,
}

const periodsPerBuffer = 4

type alsaSession struct {
	pcm        *alsa.PCM
	format     audio.Format
	hardwareMs int
}

// Open negotiates a playback stream on the named ALSA device.
func Open(p Params) (Session, error) {
	pcmFormat, ok := pcmFormats[p.Format.Sample]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported sample format %s", ErrUnavailable, p.Format.Sample)
	}

	// Target half the buffering budget for hardware; the ring buffer
	// covers the rest.
	hwTargetMs := p.BufferMs / 2
	if p.MaxHardwareMs > 0 && hwTargetMs > p.MaxHardwareMs {
		hwTargetMs = p.MaxHardwareMs
	}

	periodFrames := uint32(int64(hwTargetMs) * int64(p.Format.Rate) / 1000 / periodsPerBuffer)
	if periodFrames < 64 {
		periodFrames = 64
	}

	cfg := &alsa.Config{
		Channels:    uint32(p.Format.Channels),
		Rate:        uint32(p.Format.Rate),
		PeriodSize:  periodFrames,
		PeriodCount: periodsPerBuffer,
		Format:      pcmFormat,
	}

	log.Printf("device: opening %s for %s, %d channels, %d Hz",
		p.Device, p.Format.Sample, p.Format.Channels, p.Format.Rate)

	pcm, err := alsa.PcmOpenByName(p.Device, alsa.PCM_OUT, cfg)
	if err != nil {
		if errors.Is(err, unix.EBUSY) {
			return nil, fmt.Errorf("%w: %s: %v", ErrBusy, p.Device, err)
		}
		return nil, fmt.Errorf("%w: open %s: %v", ErrUnavailable, p.Device, err)
	}

	if err := pcm.Prepare(); err != nil {
		pcm.Close()
		return nil, fmt.Errorf("%w: prepare %s: %v", ErrUnavailable, p.Device, err)
	}

	hardwareMs := int(int64(pcm.BufferSize()) * 1000 / int64(p.Format.Rate))
	log.Printf("device: hardware buffer %d ms (%d frames/period x %d)",
		hardwareMs, pcm.PeriodSize(), pcm.PeriodCount())

	return &alsaSession{
		pcm:        pcm,
		format:     p.Format,
		hardwareMs: hardwareMs,
	}, nil
}

func (s *alsaSession) Start() error {
	// A drop or drain leaves the stream unprepared; Prepare on an already
	// prepared stream is harmless.
	if err := s.pcm.Prepare(); err != nil {
		return err
	}
	return s.pcm.Start()
}

func (s *alsaSession) Write(buf []byte) (int, error) {
	return s.pcm.Write(buf)
}

func (s *alsaSession) Pause(enable bool) error {
	return s.pcm.Pause(enable)
}

func (s *alsaSession) Drop() error {
	return s.pcm.Stop()
}

func (s *alsaSession) Drain() error {
	return s.pcm.Drain()
}

func (s *alsaSession) Delay() (int, error) {
	return s.pcm.Delay()
}

// Recover resets the stream after an underrun or a suspend. Unrecoverable
// errors are returned unchanged.
func (s *alsaSession) Recover(err error) error {
	switch {
	case errors.Is(err, unix.EPIPE), errors.Is(err, unix.EBADFD):
		if perr := s.pcm.Prepare(); perr != nil {
			return fmt.Errorf("recover: %w", perr)
		}
		return nil
	case errors.Is(err, unix.ESTRPIPE):
		if rerr := s.pcm.Resume(); rerr != nil {
			return fmt.Errorf("recover: %w", rerr)
		}
		return nil
	default:
		return err
	}
}

func (s *alsaSession) PeriodBytes() int {
	return int(alsa.PcmFramesToBytes(s.pcm, s.pcm.PeriodSize()))
}

func (s *alsaSession) HardwareMs() int {
	return s.hardwareMs
}

func (s *alsaSession) Close() error {
	return s.pcm.Close()
}
