// ABOUTME: Reference-counted buffer of converted audio
// ABOUTME: Carries one filter output frame from the decoder to sinks
package playque

import (
	"sync/atomic"

	"github.com/Resonate-Protocol/playque-go/pkg/audio"
	"github.com/Resonate-Protocol/playque-go/pkg/audio/filter"
)

// Buffer is one decoded, format-converted block of audio. The decoder
// increments the reference count once per sink that accepted it; every
// consumer that dequeues a buffer must Unref it when done.
type Buffer struct {
	// Data is interleaved sample data packed in Format.
	Data []byte
	// FrameCount is the number of frames in Data.
	FrameCount int
	// Size is len(Data) in bytes.
	Size int
	// Format describes Data.
	Format audio.Format
	// Pos is the presentation position in seconds within the file.
	Pos float64
	// Item is the playlist item this audio came from. It is a weak
	// association kept for purge matching only: after the item is
	// removed from its playlist the pointer must not be dereferenced.
	Item *Item

	refs  atomic.Int32
	frame *filter.OutputFrame
}

// endOfQueue marks the end of the playlist in a sink's queue. It is
// never handed to callers and carries no audio.
var endOfQueue = new(Buffer)

func newBuffer(item *Item, pos float64, frame *filter.OutputFrame) *Buffer {
	return &Buffer{
		Data:       frame.Data,
		FrameCount: frame.FrameCount,
		Size:       len(frame.Data),
		Format:     frame.Format,
		Pos:        pos,
		Item:       item,
		frame:      frame,
	}
}

// Ref increments the reference count.
func (b *Buffer) Ref() {
	b.refs.Add(1)
}

// Unref decrements the reference count and releases the underlying
// frame when it reaches zero. Unref on a nil buffer is a no-op.
func (b *Buffer) Unref() {
	if b == nil {
		return
	}
	if b.refs.Add(-1) == 0 {
		b.frame = nil
		b.Data = nil
	}
}
