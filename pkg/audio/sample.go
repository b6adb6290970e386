// ABOUTME: Sample packing and unpacking helpers
// ABOUTME: Converts between float64 samples and each wire sample format
package audio

import (
	"encoding/binary"
	"math"
)

// PackSamples writes len(src) samples into dst in format f. dst must
// have room for len(src) * f.BytesPerSample() bytes. Integer formats
// clamp to their representable range.
func (f SampleFormat) PackSamples(dst []byte, src []float64) {
	switch f {
	case SampleU8:
		for i, v := range src {
			dst[i] = byte(clampSample(v)*127.5 + 127.5)
		}
	case SampleS16:
		for i, v := range src {
			s := int16(clampSample(v) * 32767.0)
			binary.LittleEndian.PutUint16(dst[i*2:], uint16(s))
		}
	case SampleS32:
		for i, v := range src {
			s := int32(clampSample(v) * 2147483647.0)
			binary.LittleEndian.PutUint32(dst[i*4:], uint32(s))
		}
	case SampleF32:
		for i, v := range src {
			binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(float32(v)))
		}
	case SampleF64:
		for i, v := range src {
			binary.LittleEndian.PutUint64(dst[i*8:], math.Float64bits(v))
		}
	}
}

// UnpackSamples reads len(dst) samples from src in format f into the
// normalized [-1, 1] float64 range.
func (f SampleFormat) UnpackSamples(dst []float64, src []byte) {
	switch f {
	case SampleU8:
		for i := range dst {
			dst[i] = (float64(src[i]) - 127.5) / 127.5
		}
	case SampleS16:
		for i := range dst {
			s := int16(binary.LittleEndian.Uint16(src[i*2:]))
			dst[i] = float64(s) / 32768.0
		}
	case SampleS32:
		for i := range dst {
			s := int32(binary.LittleEndian.Uint32(src[i*4:]))
			dst[i] = float64(s) / 2147483648.0
		}
	case SampleF32:
		for i := range dst {
			dst[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(src[i*4:])))
		}
	case SampleF64:
		for i := range dst {
			dst[i] = math.Float64frombits(binary.LittleEndian.Uint64(src[i*8:]))
		}
	}
}

func clampSample(v float64) float64 {
	if v > 1.0 {
		return 1.0
	}
	if v < -1.0 {
		return -1.0
	}
	return v
}
