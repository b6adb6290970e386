// ABOUTME: Tests for the WAV packet stream
// ABOUTME: Tests RIFF parsing, packet PTS monotonicity and seek
package decode

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/Resonate-Protocol/playque-go/pkg/audio"
)

// makeWAV builds a minimal 16-bit PCM WAV with the given frame count.
func makeWAV(sampleRate, channels, frames int) []byte {
	dataLen := frames * channels * 2

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataLen))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(channels))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*channels*2))
	binary.Write(&buf, binary.LittleEndian, uint16(channels*2))
	binary.Write(&buf, binary.LittleEndian, uint16(16))

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(dataLen))
	buf.Write(make([]byte, dataLen))

	return buf.Bytes()
}

func TestWAVHeaderParsing(t *testing.T) {
	s, err := NewWAV(bytes.NewReader(makeWAV(44100, 2, 1000)))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	want := audio.Format{SampleRate: 44100, Layout: audio.LayoutStereo, SampleFormat: audio.SampleS16}
	if !s.Format().Equal(want) {
		t.Errorf("expected format %v, got %v", want, s.Format())
	}
	if s.Duration() != 1000.0/44100.0 {
		t.Errorf("unexpected duration %f", s.Duration())
	}
	if tb := s.TimeBase(); !tb.Equal(audio.Rational{Num: 1, Den: 44100}) {
		t.Errorf("unexpected time base %v", tb)
	}
}

func TestWAVRejectsGarbage(t *testing.T) {
	if _, err := NewWAV(bytes.NewReader([]byte("not a wav file at all"))); err == nil {
		t.Error("expected error for non-WAV input")
	}
}

func TestWAVPacketPTSMonotonic(t *testing.T) {
	frames := wavPacketFrames*2 + 100
	s, err := NewWAV(bytes.NewReader(makeWAV(44100, 2, frames)))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	var lastPTS int64 = -1
	total := 0
	for {
		pkt, err := s.ReadPacket()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("read failed: %v", err)
		}
		if pkt.PTS <= lastPTS {
			t.Errorf("PTS not monotonic: %d after %d", pkt.PTS, lastPTS)
		}
		lastPTS = pkt.PTS
		total += len(pkt.Data) / 4
	}

	if total != frames {
		t.Errorf("expected %d frames, got %d", frames, total)
	}
}

func TestWAVSeek(t *testing.T) {
	s, err := NewWAV(bytes.NewReader(makeWAV(44100, 2, 10000)))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	if err := s.Seek(5000); err != nil {
		t.Fatalf("seek failed: %v", err)
	}

	pkt, err := s.ReadPacket()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if pkt.PTS != 5000 {
		t.Errorf("expected PTS 5000 after seek, got %d", pkt.PTS)
	}

	// seeking past the end clamps
	if err := s.Seek(1 << 30); err != nil {
		t.Fatalf("seek failed: %v", err)
	}
	if _, err := s.ReadPacket(); err != io.EOF {
		t.Errorf("expected EOF after end seek, got %v", err)
	}
}
