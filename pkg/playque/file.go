// ABOUTME: File handle wrapping a decode stream with seek/abort state
// ABOUTME: Carries the audio clock and the pending-seek protocol fields
package playque

import (
	"sync"
	"sync/atomic"

	"github.com/Resonate-Protocol/playque-go/pkg/audio/decode"
)

// File is an opened audio stream ready for playlist insertion. The
// same File must not be inserted into two playlists at once; the
// caller keeps ownership and closes it after removing it.
type File struct {
	stream decode.Stream
	path   string

	// audioClock is the decode position in seconds, maintained by the
	// decoder goroutine from packet timestamps.
	audioClock float64

	// seekMu guards the pending-seek protocol fields below. It is
	// always taken inside the playlist mutex when both are needed.
	seekMu    sync.Mutex
	seekPos   int64 // pending seek target in time-base units, -1 none
	seekFlush bool
	eof       bool

	abort atomic.Bool
}

// Open opens path with the codec matching its extension.
func Open(path string) (*File, error) {
	stream, err := decode.Open(path)
	if err != nil {
		return nil, err
	}
	f := NewFile(stream)
	f.path = path
	return f, nil
}

// NewFile wraps an existing stream, for custom sources.
func NewFile(stream decode.Stream) *File {
	return &File{stream: stream, seekPos: -1}
}

// Path returns the path the file was opened from, if any.
func (f *File) Path() string {
	return f.path
}

// Duration returns the stream length in seconds, negative if unknown.
func (f *File) Duration() float64 {
	return f.stream.Duration()
}

// Abort makes the decoder skip the rest of this file. The playlist
// advances to the next item on the decoder's next decode step; while
// every sink is full the decoder takes no decode step.
func (f *File) Abort() {
	f.abort.Store(true)
}

// Close releases the underlying stream. The file must no longer be
// part of a playlist.
func (f *File) Close() error {
	return f.stream.Close()
}

// queueSeek records a pending seek for the decoder goroutine.
func (f *File) queueSeek(pos int64, flush bool) {
	f.seekMu.Lock()
	f.seekPos = pos
	f.seekFlush = flush
	f.seekMu.Unlock()
}
