// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines Format, ChannelLayout, SampleFormat and sample packing helpers
// Package audio provides fundamental audio types and utilities for the
// playque playback pipeline.
//
// This package defines core types used throughout the library:
//   - Format: the (sample rate, channel layout, sample format) triple
//   - ChannelLayout: a bitmask of speaker positions
//   - SampleFormat: the in-memory representation of one sample
//   - Rational: exact fractions used for stream time bases
//
// It also provides utilities for packing float64 samples into each
// supported wire format and back.
//
// Example:
//
//	format := audio.Format{
//	    SampleRate:   44100,
//	    Layout:       audio.LayoutStereo,
//	    SampleFormat: audio.SampleS16,
//	}
//
//	bytes := format.Layout.Channels() * format.SampleFormat.BytesPerSample()
package audio
