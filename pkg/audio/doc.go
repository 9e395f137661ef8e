// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines SampleFormat, Format and frame/byte/time conversions
// Package audio provides fundamental audio types shared by the output engine.
//
// This package defines the types used throughout the tonearm backend:
//   - SampleFormat: PCM sample encodings (S16_LE, S24_LE, ...)
//   - Format: Describes a stream (encoding, sample rate, channels)
//
// It also provides the frame/byte/time arithmetic the playback clock is
// built on.
//
// Example:
//
//	format := audio.Format{
//	    Sample:   audio.FormatS16LE,
//	    Rate:     44100,
//	    Channels: 2,
//	}
//
//	// One second of audio in bytes
//	n := format.FramesToBytes(format.Rate)
package audio
