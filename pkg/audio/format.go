// ABOUTME: Audio format type definitions
// ABOUTME: Defines Format, ChannelLayout, SampleFormat and Rational
package audio

import (
	"fmt"
	"math/bits"
)

// ChannelLayout is a bitmask of speaker positions, one bit per channel.
type ChannelLayout uint64

// Speaker position bits.
const (
	ChFrontLeft   ChannelLayout = 1 << 0
	ChFrontRight  ChannelLayout = 1 << 1
	ChFrontCenter ChannelLayout = 1 << 2
	ChLowFreq     ChannelLayout = 1 << 3
	ChBackLeft    ChannelLayout = 1 << 4
	ChBackRight   ChannelLayout = 1 << 5
)

// Common layouts.
const (
	LayoutMono       = ChFrontCenter
	LayoutStereo     = ChFrontLeft | ChFrontRight
	LayoutQuad       = ChFrontLeft | ChFrontRight | ChBackLeft | ChBackRight
	LayoutSurround51 = ChFrontLeft | ChFrontRight | ChFrontCenter | ChLowFreq | ChBackLeft | ChBackRight
)

// Channels returns the number of channels in the layout.
func (l ChannelLayout) Channels() int {
	return bits.OnesCount64(uint64(l))
}

// DefaultLayout returns the conventional layout for a channel count.
// Counts without a conventional layout get the lowest bits set.
func DefaultLayout(channels int) ChannelLayout {
	switch channels {
	case 1:
		return LayoutMono
	case 2:
		return LayoutStereo
	case 4:
		return LayoutQuad
	case 6:
		return LayoutSurround51
	default:
		return ChannelLayout(1)<<channels - 1
	}
}

// SampleFormat identifies the in-memory representation of one sample.
// All multi-byte formats are little-endian and interleaved.
type SampleFormat int

const (
	SampleNone SampleFormat = iota
	SampleU8                // unsigned 8-bit
	SampleS16               // signed 16-bit
	SampleS32               // signed 32-bit
	SampleF32               // 32-bit float
	SampleF64               // 64-bit float
)

// BytesPerSample returns the storage size of one sample.
func (f SampleFormat) BytesPerSample() int {
	switch f {
	case SampleU8:
		return 1
	case SampleS16:
		return 2
	case SampleS32, SampleF32:
		return 4
	case SampleF64:
		return 8
	default:
		return 0
	}
}

func (f SampleFormat) String() string {
	switch f {
	case SampleU8:
		return "u8"
	case SampleS16:
		return "s16"
	case SampleS32:
		return "s32"
	case SampleF32:
		return "f32"
	case SampleF64:
		return "f64"
	default:
		return "none"
	}
}

// Format describes a decoded audio stream: how fast, how many
// channels, and how each sample is stored.
type Format struct {
	SampleRate   int
	Layout       ChannelLayout
	SampleFormat SampleFormat
}

// Equal reports component-wise equality.
func (f Format) Equal(other Format) bool {
	return f.SampleRate == other.SampleRate &&
		f.Layout == other.Layout &&
		f.SampleFormat == other.SampleFormat
}

// BytesPerFrame returns the byte size of one frame (one sample per channel).
func (f Format) BytesPerFrame() int {
	return f.Layout.Channels() * f.SampleFormat.BytesPerSample()
}

// BytesPerSec returns the byte rate of a continuous stream in this format.
func (f Format) BytesPerSec() int {
	return f.SampleRate * f.BytesPerFrame()
}

func (f Format) String() string {
	return fmt.Sprintf("%dHz %dch %s", f.SampleRate, f.Layout.Channels(), f.SampleFormat)
}

// Rational is an exact fraction, used for stream time bases.
type Rational struct {
	Num int
	Den int
}

// Float returns the rational as a float64.
func (r Rational) Float() float64 {
	return float64(r.Num) / float64(r.Den)
}

// Equal reports exact equality of numerator and denominator.
func (r Rational) Equal(other Rational) bool {
	return r.Num == other.Num && r.Den == other.Den
}
