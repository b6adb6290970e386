// ABOUTME: Stream interface definition and file-opening dispatch
// ABOUTME: Common interface for all seekable audio packet streams
package decode

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Resonate-Protocol/playque-go/pkg/audio"
)

// NoPTS marks a packet without a presentation timestamp.
const NoPTS int64 = -1

// Packet is one read unit of decoded audio: raw PCM bytes in the
// stream's native format, with an optional timestamp in time-base
// units.
type Packet struct {
	Data []byte
	PTS  int64
}

// Stream is a seekable source of audio packets. Implementations are
// driven by a single decoder goroutine and need not be safe for
// concurrent use.
type Stream interface {
	// ReadPacket returns the next packet, or io.EOF at end of stream.
	ReadPacket() (Packet, error)

	// Format returns the native format of packet data.
	Format() audio.Format

	// TimeBase returns the unit of packet timestamps.
	TimeBase() audio.Rational

	// Seek repositions the stream to pos in time-base units and
	// resets any internal decoder state.
	Seek(pos int64) error

	// SetReadPaused pauses or resumes pulling from the underlying
	// source. File-backed streams treat this as a no-op; it matters
	// for network sources.
	SetReadPaused(paused bool)

	// Duration returns the stream length in seconds, negative if
	// unknown.
	Duration() float64

	// Close releases the stream.
	Close() error
}

// Drainer is implemented by streams whose codec buffers frames
// internally. After ReadPacket reports io.EOF, Drain surfaces the
// buffered remainder one packet at a time until it returns false.
type Drainer interface {
	Drain() (Packet, bool)
}

// Open opens path with the codec selected by file extension.
func Open(path string) (Stream, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		return OpenMP3(path)
	case ".flac":
		return OpenFLAC(path)
	case ".ogg", ".oga":
		return OpenVorbis(path)
	case ".opus":
		return OpenOpus(path)
	case ".wav":
		return OpenWAV(path)
	default:
		return nil, fmt.Errorf("decode: unsupported audio format: %s", path)
	}
}
