// ABOUTME: Audio type definitions
// ABOUTME: Defines sample formats, stream formats and frame/time math
package audio

import "time"

// SampleFormat identifies the PCM sample encoding of a stream.
type SampleFormat int

const (
	FormatS8 SampleFormat = iota
	FormatU8
	FormatS16LE
	FormatS16BE
	FormatU16LE
	FormatU16BE
	FormatS24LE
	FormatS24BE
	FormatU24LE
	FormatU24BE
	FormatS32LE
	FormatS32BE
	FormatU32LE
	FormatU32BE
	FormatFloat32LE
)

var formatNames = map[SampleFormat]string{
	FormatS8:        "S8",
	FormatU8:        "U8",
	FormatS16LE:     "S16_LE",
	FormatS16BE:     "S16_BE",
	FormatU16LE:     "U16_LE",
	FormatU16BE:     "U16_BE",
	FormatS24LE:     "S24_LE",
	FormatS24BE:     "S24_BE",
	FormatU24LE:     "U24_LE",
	FormatU24BE:     "U24_BE",
	FormatS32LE:     "S32_LE",
	FormatS32BE:     "S32_BE",
	FormatU32LE:     "U32_LE",
	FormatU32BE:     "U32_BE",
	FormatFloat32LE: "FLOAT_LE",
}

// String returns the ALSA-style name of the format.
func (f SampleFormat) String() string {
	if name, ok := formatNames[f]; ok {
		return name
	}
	return "UNKNOWN"
}

// Bytes returns the storage size of one sample in bytes.
// 24-bit formats use a 4-byte container, matching how ALSA stores them.
func (f SampleFormat) Bytes() int {
	switch f {
	case FormatS8, FormatU8:
		return 1
	case FormatS16LE, FormatS16BE, FormatU16LE, FormatU16BE:
		return 2
	default:
		return 4
	}
}

// Format describes a PCM stream: sample encoding, rate and channel count.
// It is fixed for the lifetime of one open output session.
type Format struct {
	Sample   SampleFormat
	Rate     int
	Channels int
}

// FrameBytes returns the size of one interleaved frame in bytes.
func (f Format) FrameBytes() int {
	return f.Sample.Bytes() * f.Channels
}

// BytesToFrames converts a byte count to whole frames.
func (f Format) BytesToFrames(n int) int {
	return n / f.FrameBytes()
}

// FramesToBytes converts a frame count to bytes.
func (f Format) FramesToBytes(frames int) int {
	return frames * f.FrameBytes()
}

// BytesToMicros returns the playback duration of n bytes in microseconds.
func (f Format) BytesToMicros(n int) int64 {
	return int64(f.BytesToFrames(n)) * 1000000 / int64(f.Rate)
}

// FramesToMicros returns the playback duration of a frame count in microseconds.
func (f Format) FramesToMicros(frames int) int64 {
	return int64(frames) * 1000000 / int64(f.Rate)
}

// MillisToBytes returns the byte count covering ms milliseconds of audio,
// rounded down to a whole frame.
func (f Format) MillisToBytes(ms int) int {
	return f.FramesToBytes(int(int64(ms) * int64(f.Rate) / 1000))
}

// Duration returns the playback duration of n bytes.
func (f Format) Duration(n int) time.Duration {
	return time.Duration(f.BytesToMicros(n)) * time.Microsecond
}

// SampleToInt16 converts an int sample from a decoded buffer to int16,
// clipping out-of-range values.
func SampleToInt16(sample int) int16 {
	if sample > 32767 {
		return 32767
	}
	if sample < -32768 {
		return -32768
	}
	return int16(sample)
}

// Int16Bytes packs int16 samples as little-endian interleaved PCM bytes.
func Int16Bytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		out[i*2] = byte(s)
		out[i*2+1] = byte(uint16(s) >> 8)
	}
	return out
}
