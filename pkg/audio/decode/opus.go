// ABOUTME: Ogg/Opus packet stream
// ABOUTME: Wraps hraban/opus; decodes at 48kHz stereo, no seek support
package decode

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Resonate-Protocol/playque-go/pkg/audio"
	"gopkg.in/hraban/opus.v2"
)

// opusSampleRate is the decoder's fixed output rate.
const opusSampleRate = 48000

// opusMaxFrame is the largest Opus frame: 120ms at 48kHz, stereo.
const opusMaxFrame = 5760

// ErrSeekUnsupported is returned by streams that cannot reposition.
var ErrSeekUnsupported = errors.New("decode: seek not supported")

// OpusStream reads packets from an Ogg/Opus file. The opus stream
// API exposes no channel map before the first read, so output is
// always decoded as 48kHz stereo.
type OpusStream struct {
	file   *os.File
	stream *opus.Stream
	pos    int64
}

// OpenOpus opens an Ogg/Opus file as a packet stream.
func OpenOpus(path string) (*OpusStream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("decode: failed to open Opus file: %w", err)
	}

	stream, err := opus.NewStream(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("decode: failed to decode Opus: %w", err)
	}

	return &OpusStream{file: f, stream: stream}, nil
}

func (s *OpusStream) ReadPacket() (Packet, error) {
	buf := make([]int16, opusMaxFrame*2)

	var n int
	var err error
	for {
		n, err = s.stream.Read(buf)
		if n > 0 || err != nil {
			break
		}
	}
	if n == 0 {
		if err == nil {
			err = io.EOF
		}
		return Packet{}, err
	}

	// n counts samples per channel
	pcm := buf[:n*2]
	data := make([]byte, len(pcm)*2)
	for i, v := range pcm {
		data[i*2] = byte(v)
		data[i*2+1] = byte(v >> 8)
	}

	pkt := Packet{Data: data, PTS: s.pos}
	s.pos += int64(n)
	return pkt, nil
}

func (s *OpusStream) Format() audio.Format {
	return audio.Format{
		SampleRate:   opusSampleRate,
		Layout:       audio.LayoutStereo,
		SampleFormat: audio.SampleS16,
	}
}

func (s *OpusStream) TimeBase() audio.Rational {
	return audio.Rational{Num: 1, Den: opusSampleRate}
}

func (s *OpusStream) Seek(int64) error {
	return ErrSeekUnsupported
}

func (s *OpusStream) SetReadPaused(bool) {}

func (s *OpusStream) Duration() float64 {
	return -1
}

func (s *OpusStream) Close() error {
	return s.file.Close()
}
