// ABOUTME: Sink: a consumer endpoint with a format and a bounded queue
// ABOUTME: Implements attach/detach and the buffer read interface
package playque

import (
	"errors"
	"log"
	"sync/atomic"

	"github.com/Resonate-Protocol/playque-go/internal/queue"
	"github.com/Resonate-Protocol/playque-go/pkg/audio"
	"github.com/google/uuid"
)

// defaultBufferSize is the backpressure threshold in frames.
const defaultBufferSize = 8192

var (
	// ErrEndOfPlaylist is returned by ReadBuffer when the playlist is
	// exhausted: every queued buffer has been consumed and no item
	// remains to decode.
	ErrEndOfPlaylist = errors.New("playque: end of playlist")

	// ErrNoBuffer is returned by ReadBuffer when no buffer is
	// available: the queue is momentarily empty (non-blocking) or the
	// sink was detached while waiting.
	ErrNoBuffer = errors.New("playque: no buffer available")

	// ErrNotAttached is returned by Detach on a sink that is not
	// attached to a playlist.
	ErrNotAttached = errors.New("playque: sink not attached")
)

// Sink receives converted buffers from a playlist. Format and
// BufferSize must be set before Attach and not changed afterwards.
type Sink struct {
	// Format is the output format this sink wants to receive.
	Format audio.Format

	// BufferSize is the backpressure threshold in frames. The decoder
	// stops producing when every attached sink holds at least this
	// much audio.
	BufferSize int

	// FlushFunc, if set, runs after the sink's queue is flushed
	// because of a seek.
	FlushFunc func(*Sink)

	// PurgeFunc, if set, runs after buffers of a removed item have
	// been evicted from the queue.
	PurgeFunc func(*Sink, *Item)

	id       string
	playlist *Playlist

	bytesPerSec   int
	minQueueBytes int

	q        *queue.Queue[*Buffer]
	bufCount atomic.Int64
	qSize    atomic.Int64
}

// NewSink creates a detached sink for the given output format.
func NewSink(format audio.Format) *Sink {
	s := &Sink{
		Format:     format,
		BufferSize: defaultBufferSize,
		id:         uuid.New().String(),
	}

	s.q = queue.New[*Buffer]()
	s.q.OnPut = func(b *Buffer) {
		if b == endOfQueue {
			return
		}
		s.bufCount.Add(1)
		s.qSize.Add(int64(b.Size))
	}
	s.q.OnGet = func(b *Buffer) {
		if b == endOfQueue {
			return
		}
		s.bufCount.Add(-1)
		s.qSize.Add(-int64(b.Size))
	}
	s.q.OnCleanup = func(b *Buffer) {
		if b == endOfQueue {
			return
		}
		s.bufCount.Add(-1)
		s.qSize.Add(-int64(b.Size))
		b.Unref()
	}

	return s
}

// ID returns the sink's identifier, used in log output.
func (s *Sink) ID() string {
	return s.id
}

// Attach computes the sink's derived rates and registers it with the
// playlist. Sinks sharing an output format share one filter branch.
func (s *Sink) Attach(p *Playlist) error {
	channels := s.Format.Layout.Channels()
	bps := s.Format.SampleFormat.BytesPerSample()
	if channels == 0 || bps == 0 || s.Format.SampleRate <= 0 {
		return errors.New("playque: sink has invalid format")
	}

	s.bytesPerSec = channels * s.Format.SampleRate * bps
	s.minQueueBytes = s.BufferSize * channels * bps
	log.Printf("playque: sink %s queue threshold: %d bytes", s.id, s.minQueueBytes)

	// in case a previous detach aborted the queue
	s.q.Reset()

	p.mu.Lock()
	p.addSinkToMap(s)
	// an idle playlist has already signalled its end to the other
	// sinks; a sink joining now gets the same signal
	if p.decodeHead == nil && p.sentEndOfQ {
		s.signalEnd()
	}
	p.mu.Unlock()

	s.playlist = p
	return nil
}

// Detach aborts and flushes the sink's queue, unblocking any waiter,
// and removes the sink from the playlist.
func (s *Sink) Detach() error {
	p := s.playlist
	if p == nil {
		return ErrNotAttached
	}

	s.q.Abort()
	s.q.Flush()

	p.mu.Lock()
	err := p.removeSinkFromMap(s)
	p.mu.Unlock()

	s.playlist = nil
	return err
}

// ReadBuffer dequeues the next buffer. With block set it waits until
// audio arrives, the playlist ends, or the sink is detached.
// Ownership of the returned buffer transfers to the caller, which
// must Unref it. ErrEndOfPlaylist reports playlist exhaustion;
// ErrNoBuffer reports an empty queue or a detached sink.
func (s *Sink) ReadBuffer(block bool) (*Buffer, error) {
	buf, ok := s.q.Get(block)
	if !ok {
		return nil, ErrNoBuffer
	}
	if buf == endOfQueue {
		return nil, ErrEndOfPlaylist
	}
	return buf, nil
}

// BufferedBytes returns the byte count of queued audio.
func (s *Sink) BufferedBytes() int {
	return int(s.qSize.Load())
}

// BufferedCount returns the number of queued buffers.
func (s *Sink) BufferedCount() int {
	return int(s.bufCount.Load())
}

// BytesPerSec returns the sink's byte rate, valid after Attach.
func (s *Sink) BytesPerSec() int {
	return s.bytesPerSec
}

// full reports whether the sink is at or above its backpressure
// threshold.
func (s *Sink) full() bool {
	return s.qSize.Load() >= int64(s.minQueueBytes)
}

// signalEnd enqueues the end-of-queue marker.
func (s *Sink) signalEnd() {
	if err := s.q.Put(endOfQueue); err != nil {
		log.Printf("playque: sink %s: unable to signal end: %v", s.id, err)
	}
}

// flush drops all queued audio and notifies the sink.
func (s *Sink) flush() {
	s.q.Flush()
	if s.FlushFunc != nil {
		s.FlushFunc(s)
	}
}

// purge evicts all buffers originating from item.
func (s *Sink) purge(item *Item) {
	s.q.Purge(func(b *Buffer) bool {
		return b != endOfQueue && b.Item == item
	})
	if s.PurgeFunc != nil {
		s.PurgeFunc(s, item)
	}
}
