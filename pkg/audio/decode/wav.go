// ABOUTME: WAV/RIFF packet stream
// ABOUTME: Parses RIFF headers and serves raw PCM packets with exact seek
package decode

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/Resonate-Protocol/playque-go/pkg/audio"
)

// wavPacketFrames is the packet size in frames.
const wavPacketFrames = 4096

const (
	wavFormatPCM   = 1
	wavFormatFloat = 3
)

// WAVStream reads packets from a RIFF/WAVE source.
type WAVStream struct {
	r      io.ReadSeeker
	closer io.Closer

	format     audio.Format
	dataStart  int64
	dataLen    int64
	pos        int64 // next frame, relative to data start
	readPaused bool
}

// OpenWAV opens a WAV file as a packet stream.
func OpenWAV(path string) (*WAVStream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("decode: failed to open WAV file: %w", err)
	}

	s, err := NewWAV(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	s.closer = f
	return s, nil
}

// NewWAV parses the RIFF header of r and returns a packet stream over
// its data chunk.
func NewWAV(r io.ReadSeeker) (*WAVStream, error) {
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return nil, fmt.Errorf("decode: failed to read RIFF header: %w", err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return nil, fmt.Errorf("decode: not a RIFF/WAVE stream")
	}

	s := &WAVStream{r: r}
	haveFmt := false

	for {
		var hdr [8]byte
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			return nil, fmt.Errorf("decode: failed to read chunk header: %w", err)
		}
		id := string(hdr[0:4])
		size := int64(binary.LittleEndian.Uint32(hdr[4:8]))

		switch id {
		case "fmt ":
			var chunk [16]byte
			if size < 16 {
				return nil, fmt.Errorf("decode: fmt chunk too short")
			}
			if _, err := io.ReadFull(r, chunk[:]); err != nil {
				return nil, fmt.Errorf("decode: failed to read fmt chunk: %w", err)
			}
			code := binary.LittleEndian.Uint16(chunk[0:2])
			channels := int(binary.LittleEndian.Uint16(chunk[2:4]))
			rate := int(binary.LittleEndian.Uint32(chunk[4:8]))
			bits := int(binary.LittleEndian.Uint16(chunk[14:16]))

			sf, err := wavSampleFormat(code, bits)
			if err != nil {
				return nil, err
			}
			s.format = audio.Format{
				SampleRate:   rate,
				Layout:       audio.DefaultLayout(channels),
				SampleFormat: sf,
			}
			haveFmt = true
			if size > 16 {
				if _, err := r.Seek(size-16, io.SeekCurrent); err != nil {
					return nil, err
				}
			}
		case "data":
			if !haveFmt {
				return nil, fmt.Errorf("decode: data chunk before fmt chunk")
			}
			pos, err := r.Seek(0, io.SeekCurrent)
			if err != nil {
				return nil, err
			}
			s.dataStart = pos
			s.dataLen = size
			return s, nil
		default:
			if size%2 == 1 {
				size++ // chunks are word-aligned
			}
			if _, err := r.Seek(size, io.SeekCurrent); err != nil {
				return nil, err
			}
		}
	}
}

func wavSampleFormat(code uint16, bits int) (audio.SampleFormat, error) {
	switch {
	case code == wavFormatPCM && bits == 8:
		return audio.SampleU8, nil
	case code == wavFormatPCM && bits == 16:
		return audio.SampleS16, nil
	case code == wavFormatPCM && bits == 32:
		return audio.SampleS32, nil
	case code == wavFormatFloat && bits == 32:
		return audio.SampleF32, nil
	default:
		return audio.SampleNone, fmt.Errorf("decode: unsupported WAV format (code %d, %d bits)", code, bits)
	}
}

func (s *WAVStream) ReadPacket() (Packet, error) {
	bpf := int64(s.format.BytesPerFrame())
	totalFrames := s.dataLen / bpf
	if s.pos >= totalFrames {
		return Packet{}, io.EOF
	}

	n := int64(wavPacketFrames)
	if remaining := totalFrames - s.pos; n > remaining {
		n = remaining
	}

	buf := make([]byte, n*bpf)
	read, err := io.ReadFull(s.r, buf)
	if read == 0 {
		if err == io.ErrUnexpectedEOF {
			err = io.EOF
		}
		return Packet{}, err
	}
	read -= read % int(bpf)

	pkt := Packet{Data: buf[:read], PTS: s.pos}
	s.pos += int64(read) / bpf
	return pkt, nil
}

func (s *WAVStream) Format() audio.Format {
	return s.format
}

func (s *WAVStream) TimeBase() audio.Rational {
	return audio.Rational{Num: 1, Den: s.format.SampleRate}
}

func (s *WAVStream) Seek(pos int64) error {
	bpf := int64(s.format.BytesPerFrame())
	if pos < 0 {
		pos = 0
	}
	if end := s.dataLen / bpf; pos > end {
		pos = end
	}
	if _, err := s.r.Seek(s.dataStart+pos*bpf, io.SeekStart); err != nil {
		return fmt.Errorf("decode: WAV seek failed: %w", err)
	}
	s.pos = pos
	return nil
}

func (s *WAVStream) SetReadPaused(paused bool) {
	s.readPaused = paused
}

func (s *WAVStream) Duration() float64 {
	bpf := int64(s.format.BytesPerFrame())
	return float64(s.dataLen/bpf) / float64(s.format.SampleRate)
}

func (s *WAVStream) Close() error {
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}
