// ABOUTME: FLAC packet stream
// ABOUTME: Wraps mewkiz/flac with sample-accurate seek and native bit depth
package decode

import (
	"fmt"
	"os"

	"github.com/Resonate-Protocol/playque-go/pkg/audio"
	"github.com/mewkiz/flac"
)

// FLACStream reads packets from a FLAC file, one FLAC frame per packet.
type FLACStream struct {
	file   *os.File
	stream *flac.Stream
	pos    int64 // next sample number
}

// OpenFLAC opens a FLAC file as a packet stream.
func OpenFLAC(path string) (*FLACStream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("decode: failed to open FLAC file: %w", err)
	}

	stream, err := flac.NewSeek(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("decode: failed to decode FLAC: %w", err)
	}

	return &FLACStream{file: f, stream: stream}, nil
}

func (s *FLACStream) ReadPacket() (Packet, error) {
	frame, err := s.stream.ParseNext()
	if err != nil {
		return Packet{}, err
	}

	channels := len(frame.Subframes)
	blockSize := int(frame.BlockSize)
	fmtInfo := s.Format()
	bps := fmtInfo.SampleFormat.BytesPerSample()

	samples := make([]float64, blockSize*channels)
	scale := float64(int64(1) << (s.stream.Info.BitsPerSample - 1))
	for i := 0; i < blockSize; i++ {
		for ch := 0; ch < channels; ch++ {
			samples[i*channels+ch] = float64(frame.Subframes[ch].Samples[i]) / scale
		}
	}

	data := make([]byte, len(samples)*bps)
	fmtInfo.SampleFormat.PackSamples(data, samples)

	pkt := Packet{Data: data, PTS: s.pos}
	s.pos += int64(blockSize)
	return pkt, nil
}

func (s *FLACStream) Format() audio.Format {
	sf := audio.SampleS32
	if s.stream.Info.BitsPerSample <= 16 {
		sf = audio.SampleS16
	}
	return audio.Format{
		SampleRate:   int(s.stream.Info.SampleRate),
		Layout:       audio.DefaultLayout(int(s.stream.Info.NChannels)),
		SampleFormat: sf,
	}
}

func (s *FLACStream) TimeBase() audio.Rational {
	return audio.Rational{Num: 1, Den: int(s.stream.Info.SampleRate)}
}

func (s *FLACStream) Seek(pos int64) error {
	actual, err := s.stream.Seek(uint64(pos))
	if err != nil {
		return fmt.Errorf("decode: FLAC seek failed: %w", err)
	}
	s.pos = int64(actual)
	return nil
}

func (s *FLACStream) SetReadPaused(bool) {}

func (s *FLACStream) Duration() float64 {
	if s.stream.Info.NSamples == 0 {
		return -1
	}
	return float64(s.stream.Info.NSamples) / float64(s.stream.Info.SampleRate)
}

func (s *FLACStream) Close() error {
	return s.file.Close()
}
