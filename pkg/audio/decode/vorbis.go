// ABOUTME: Ogg/Vorbis packet stream
// ABOUTME: Wraps jfreymuth/oggvorbis with position-based seek
package decode

import (
	"fmt"
	"os"

	"github.com/Resonate-Protocol/playque-go/pkg/audio"
	"github.com/jfreymuth/oggvorbis"
)

// vorbisPacketFrames is the target packet size in frames.
const vorbisPacketFrames = 4096

// VorbisStream reads packets from an Ogg/Vorbis file.
type VorbisStream struct {
	file   *os.File
	reader *oggvorbis.Reader
}

// OpenVorbis opens an Ogg/Vorbis file as a packet stream.
func OpenVorbis(path string) (*VorbisStream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("decode: failed to open Vorbis file: %w", err)
	}

	r, err := oggvorbis.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("decode: failed to decode Vorbis: %w", err)
	}

	return &VorbisStream{file: f, reader: r}, nil
}

func (s *VorbisStream) ReadPacket() (Packet, error) {
	channels := s.reader.Channels()
	pts := s.reader.Position()

	buf := make([]float32, vorbisPacketFrames*channels)
	n, err := s.reader.Read(buf)
	if n == 0 {
		return Packet{}, err
	}
	n -= n % channels

	samples := make([]float64, n)
	for i := 0; i < n; i++ {
		samples[i] = float64(buf[i])
	}
	data := make([]byte, n*4)
	audio.SampleF32.PackSamples(data, samples)

	return Packet{Data: data, PTS: pts}, nil
}

func (s *VorbisStream) Format() audio.Format {
	return audio.Format{
		SampleRate:   s.reader.SampleRate(),
		Layout:       audio.DefaultLayout(s.reader.Channels()),
		SampleFormat: audio.SampleF32,
	}
}

func (s *VorbisStream) TimeBase() audio.Rational {
	return audio.Rational{Num: 1, Den: s.reader.SampleRate()}
}

func (s *VorbisStream) Seek(pos int64) error {
	if err := s.reader.SetPosition(pos); err != nil {
		return fmt.Errorf("decode: Vorbis seek failed: %w", err)
	}
	return nil
}

func (s *VorbisStream) SetReadPaused(bool) {}

func (s *VorbisStream) Duration() float64 {
	length := s.reader.Length()
	if length <= 0 {
		return -1
	}
	return float64(length) / float64(s.reader.SampleRate())
}

func (s *VorbisStream) Close() error {
	return s.file.Close()
}
