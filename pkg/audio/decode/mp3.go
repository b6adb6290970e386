// ABOUTME: MP3 packet stream
// ABOUTME: Wraps hajimehoshi/go-mp3 with sample-position PTS and seek
package decode

import (
	"fmt"
	"io"
	"os"

	"github.com/Resonate-Protocol/playque-go/pkg/audio"
	"github.com/hajimehoshi/go-mp3"
)

// mp3BytesPerFrame is go-mp3's fixed output: 16-bit stereo.
const mp3BytesPerFrame = 4

// mp3PacketFrames is one MPEG granule worth of output frames.
const mp3PacketFrames = 1152

// MP3Stream reads packets from an MP3 file.
type MP3Stream struct {
	file *os.File
	dec  *mp3.Decoder
	pos  int64 // next frame to read, in output frames
}

// OpenMP3 opens an MP3 file as a packet stream.
func OpenMP3(path string) (*MP3Stream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("decode: failed to open MP3 file: %w", err)
	}

	dec, err := mp3.NewDecoder(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("decode: failed to decode MP3: %w", err)
	}

	return &MP3Stream{file: f, dec: dec}, nil
}

func (s *MP3Stream) ReadPacket() (Packet, error) {
	buf := make([]byte, mp3PacketFrames*mp3BytesPerFrame)

	n, err := io.ReadFull(s.dec, buf)
	if n == 0 {
		if err == io.ErrUnexpectedEOF {
			err = io.EOF
		}
		return Packet{}, err
	}
	n -= n % mp3BytesPerFrame

	pkt := Packet{Data: buf[:n], PTS: s.pos}
	s.pos += int64(n / mp3BytesPerFrame)
	return pkt, nil
}

func (s *MP3Stream) Format() audio.Format {
	return audio.Format{
		SampleRate:   s.dec.SampleRate(),
		Layout:       audio.LayoutStereo,
		SampleFormat: audio.SampleS16,
	}
}

func (s *MP3Stream) TimeBase() audio.Rational {
	return audio.Rational{Num: 1, Den: s.dec.SampleRate()}
}

func (s *MP3Stream) Seek(pos int64) error {
	if _, err := s.dec.Seek(pos*mp3BytesPerFrame, io.SeekStart); err != nil {
		return fmt.Errorf("decode: MP3 seek failed: %w", err)
	}
	s.pos = pos
	return nil
}

func (s *MP3Stream) SetReadPaused(bool) {}

func (s *MP3Stream) Duration() float64 {
	return float64(s.dec.Length()/mp3BytesPerFrame) / float64(s.dec.SampleRate())
}

func (s *MP3Stream) Close() error {
	return s.file.Close()
}
