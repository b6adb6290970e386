// ABOUTME: Playlist and the decoder goroutine
// ABOUTME: Mutation API plus the decode/filter/fan-out loop
package playque

import (
	"errors"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Resonate-Protocol/playque-go/pkg/audio"
	"github.com/Resonate-Protocol/playque-go/pkg/audio/decode"
	"github.com/Resonate-Protocol/playque-go/pkg/audio/filter"
)

// noopDelay is how long the decoder sleeps when it has nothing to do:
// no item to decode, or every sink full.
const noopDelay = 5 * time.Millisecond

// Item is one entry of a playlist: a file and a gain. Items are owned
// by their playlist and become invalid once removed.
type Item struct {
	playlist *Playlist
	file     *File
	gain     float64

	prev, next *Item
}

// File returns the item's file.
func (it *Item) File() *File {
	return it.file
}

// Gain returns the item's gain at the time of the call.
func (it *Item) Gain() float64 {
	it.playlist.mu.Lock()
	defer it.playlist.mu.Unlock()
	return it.gain
}

// sinkMapEntry groups the sinks sharing one output format. sinks[0]
// is the example sink whose derived rates parameterize the branch.
type sinkMapEntry struct {
	sinks  []*Sink
	branch *filter.Branch
}

func (e *sinkMapEntry) format() audio.Format {
	return e.sinks[0].Format
}

// Playlist is an ordered sequence of audio files decoded continuously
// by a dedicated goroutine. All methods are safe for concurrent use.
type Playlist struct {
	// mu guards the list structure, the decode head, the sink map,
	// the volumes and the filter graph. The decoder holds it for the
	// body of each iteration and releases it while sleeping.
	mu   sync.Mutex
	head *Item
	tail *Item

	volume     float64 // user volume multiplier
	decodeHead *Item
	compVolume float64 // decodeHead.gain * volume
	sinkMap    []*sinkMapEntry

	// filter graph state, compared against the live input on every
	// iteration to decide whether a rebuild is due
	graph       *filter.Graph
	graphVolume float64
	rebuildFlag bool
	inFormat    audio.Format
	inTimeBase  audio.Rational

	sentEndOfQ bool
	lastPaused bool

	paused atomic.Bool
	abort  atomic.Bool
	done   chan struct{}
}

// New creates a playlist and starts its decoder goroutine. Volume
// starts at 1.0.
func New() *Playlist {
	p := &Playlist{
		volume:     1.0,
		compVolume: 1.0,
		done:       make(chan struct{}),
	}
	go p.decodeLoop()
	return p
}

// Close clears the playlist, stops the decoder goroutine and detaches
// every sink. Files inserted by the caller are not closed.
func (p *Playlist) Close() {
	p.Clear()

	p.abort.Store(true)
	<-p.done

	for _, s := range p.attachedSinks() {
		if err := s.Detach(); err != nil {
			log.Printf("playque: detach on close: %v", err)
		}
	}

	p.mu.Lock()
	p.graph = nil
	p.mu.Unlock()
}

// Play resumes decoding after Pause.
func (p *Playlist) Play() {
	p.paused.Store(false)
}

// Pause pauses the source read of the current file. Already-queued
// buffers stay available to sinks.
func (p *Playlist) Pause() {
	p.paused.Store(true)
}

// Playing reports whether the playlist is not paused.
func (p *Playlist) Playing() bool {
	return !p.paused.Load()
}

// Insert adds file before next, or at the tail when next is nil, and
// returns the new item. Inserting into an empty playlist makes the
// new item the decode head, starting from the top of the file.
func (p *Playlist) Insert(file *File, gain float64, next *Item) *Item {
	item := &Item{playlist: p, file: file, gain: gain, next: next}

	p.mu.Lock()
	defer p.mu.Unlock()

	switch {
	case next != nil:
		item.prev = next.prev
		if next.prev != nil {
			next.prev.next = item
		} else {
			p.head = item
		}
		next.prev = item
	case p.head == nil:
		p.head = item
		p.tail = item
		p.decodeHead = item
		file.queueSeek(0, false)
	default:
		item.prev = p.tail
		p.tail.next = item
		p.tail = item
	}

	return item
}

// Remove unlinks item and evicts every buffer referencing it from
// every sink before returning. If item is the decode head, decoding
// moves to the following item.
func (p *Playlist) Remove(item *Item) {
	p.mu.Lock()

	if item == p.decodeHead {
		p.decodeHead = item.next
	}

	if item.prev != nil {
		item.prev.next = item.next
	} else {
		p.head = item.next
	}
	if item.next != nil {
		item.next.prev = item.prev
	} else {
		p.tail = item.prev
	}

	// every queued reference to item must be gone before the caller
	// may close the file
	p.forEachSink(func(s *Sink) {
		s.purge(item)
	})

	p.mu.Unlock()

	item.prev = nil
	item.next = nil
}

// Clear removes every item, head first.
func (p *Playlist) Clear() {
	for {
		p.mu.Lock()
		head := p.head
		p.mu.Unlock()
		if head == nil {
			return
		}
		p.Remove(head)
	}
}

// Count returns the number of items.
func (p *Playlist) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	count := 0
	for it := p.head; it != nil; it = it.next {
		count++
	}
	return count
}

// Seek moves decoding to item at the given position in seconds. All
// queued buffers are discarded once the decoder honors the seek.
func (p *Playlist) Seek(item *Item, seconds float64) {
	f := item.file
	tb := f.stream.TimeBase()
	ts := int64(seconds * float64(tb.Den) / float64(tb.Num))

	p.mu.Lock()
	f.queueSeek(ts, true)
	p.decodeHead = item
	p.mu.Unlock()
}

// SetGain updates the item's gain. If the item is currently decoding,
// the composite volume changes and the filter graph rebuilds on the
// next iteration.
func (p *Playlist) SetGain(item *Item, gain float64) {
	p.mu.Lock()
	item.gain = gain
	if item == p.decodeHead {
		p.compVolume = p.volume * item.gain
	}
	p.mu.Unlock()
}

// SetVolume updates the playlist-wide volume multiplier.
func (p *Playlist) SetVolume(volume float64) {
	p.mu.Lock()
	p.volume = volume
	if p.decodeHead != nil {
		p.compVolume = volume * p.decodeHead.gain
	} else {
		p.compVolume = volume
	}
	p.mu.Unlock()
}

// Volume returns the playlist-wide volume multiplier.
func (p *Playlist) Volume() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

// Position returns the currently decoding item and the decode
// position in seconds within its file. The item is nil when the
// playlist is exhausted.
func (p *Playlist) Position() (*Item, float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.decodeHead == nil {
		return nil, 0
	}
	return p.decodeHead, p.decodeHead.file.audioClock
}

// First returns the first item, or nil.
func (p *Playlist) First() *Item {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.head
}

// Items returns a snapshot of the items in order.
func (p *Playlist) Items() []*Item {
	p.mu.Lock()
	defer p.mu.Unlock()

	var items []*Item
	for it := p.head; it != nil; it = it.next {
		items = append(items, it)
	}
	return items
}

// addSinkToMap registers a sink under the entry matching its format,
// prepending a new entry when no format matches. Called with p.mu
// held.
func (p *Playlist) addSinkToMap(s *Sink) {
	for _, entry := range p.sinkMap {
		if entry.format().Equal(s.Format) {
			entry.sinks = append([]*Sink{s}, entry.sinks...)
			return
		}
	}

	entry := &sinkMapEntry{sinks: []*Sink{s}}
	p.sinkMap = append([]*sinkMapEntry{entry}, p.sinkMap...)
	// the output format set changed
	p.rebuildFlag = true
}

// removeSinkFromMap unregisters a sink, dropping its map entry when
// the entry empties. Called with p.mu held.
func (p *Playlist) removeSinkFromMap(s *Sink) error {
	for mi, entry := range p.sinkMap {
		for si, sink := range entry.sinks {
			if sink != s {
				continue
			}
			entry.sinks = append(entry.sinks[:si], entry.sinks[si+1:]...)
			if len(entry.sinks) == 0 {
				p.sinkMap = append(p.sinkMap[:mi], p.sinkMap[mi+1:]...)
				// the output format set changed
				p.rebuildFlag = true
			}
			return nil
		}
	}
	return ErrNotAttached
}

// forEachSink visits every attached sink. Called with p.mu held.
func (p *Playlist) forEachSink(fn func(*Sink)) {
	for _, entry := range p.sinkMap {
		for _, s := range entry.sinks {
			fn(s)
		}
	}
}

// everySinkFull reports whether all sinks are at their backpressure
// threshold. With no sinks attached there is nowhere to put decoded
// audio, so the decoder treats that as full. Called with p.mu held.
func (p *Playlist) everySinkFull() bool {
	full := true
	p.forEachSink(func(s *Sink) {
		if !s.full() {
			full = false
		}
	})
	return full
}

// attachedSinks snapshots the attached sinks.
func (p *Playlist) attachedSinks() []*Sink {
	p.mu.Lock()
	defer p.mu.Unlock()

	var sinks []*Sink
	p.forEachSink(func(s *Sink) {
		sinks = append(sinks, s)
	})
	return sinks
}

// decodeLoop is the decoder goroutine: it decodes from the decode
// head and inserts buffers of converted audio into each sink.
func (p *Playlist) decodeLoop() {
	defer close(p.done)

	for !p.abort.Load() {
		p.mu.Lock()

		// nothing to decode: tell every sink the playlist is done,
		// exactly once, then idle
		if p.decodeHead == nil {
			if !p.sentEndOfQ {
				p.forEachSink(func(s *Sink) {
					s.signalEnd()
				})
				p.sentEndOfQ = true
			}
			p.mu.Unlock()
			time.Sleep(noopDelay)
			continue
		}
		p.sentEndOfQ = false

		// if all sinks are filled up, no need to read more
		if p.everySinkFull() {
			p.mu.Unlock()
			time.Sleep(noopDelay)
			continue
		}

		file := p.decodeHead.file
		p.compVolume = p.decodeHead.gain * p.volume

		if p.decodeOneFrame(file) < 0 {
			// this file is done; restart the next one from the top
			p.decodeHead = p.decodeHead.next
			if p.decodeHead != nil {
				p.decodeHead.file.queueSeek(0, false)
			}
		}

		p.mu.Unlock()
	}
}

// decodeOneFrame reads and decodes one packet from file, honoring
// pending pause, seek and abort state first. It returns a negative
// value when the file is finished and the playlist should advance.
// Called with p.mu held.
func (p *Playlist) decodeOneFrame(file *File) int {
	if p.maybeRebuildGraph(file) < 0 {
		// retried next iteration
		return 0
	}

	if file.abort.Load() {
		return -1
	}

	// latch pause transitions into the stream's read state
	paused := p.paused.Load()
	if paused != p.lastPaused {
		p.lastPaused = paused
		file.stream.SetReadPaused(paused)
	}

	file.seekMu.Lock()
	if file.seekPos >= 0 {
		if err := file.stream.Seek(file.seekPos); err != nil {
			log.Printf("playque: %s: error while seeking: %v", file.path, err)
		} else if file.seekFlush {
			p.forEachSink(func(s *Sink) {
				s.flush()
			})
		}
		file.seekPos = -1
		file.eof = false
	}
	file.seekMu.Unlock()

	if file.eof {
		if d, ok := file.stream.(decode.Drainer); ok {
			if pkt, more := d.Drain(); more {
				if p.audioDecodeFrame(file, pkt) > 0 {
					// keep draining the codec's buffered frames
					return 0
				}
			}
		}
		return -1
	}

	pkt, err := file.stream.ReadPacket()
	if err != nil {
		// treat all errors as EOF, but log non-EOF errors
		if !errors.Is(err, io.EOF) {
			log.Printf("playque: %s: error reading packets: %v", file.path, err)
		}
		file.eof = true
		return 0
	}

	p.audioDecodeFrame(file, pkt)
	return 0
}

// audioDecodeFrame pushes one packet through the filter graph and
// fans the converted output out to every sink. It returns the largest
// byte count produced on any branch. Called with p.mu held.
func (p *Playlist) audioDecodeFrame(file *File, pkt decode.Packet) int {
	// update the audio clock with the pts if we can
	if pkt.PTS != decode.NoPTS {
		file.audioClock = file.stream.TimeBase().Float() * float64(pkt.PTS)
	}
	if len(pkt.Data) == 0 {
		return 0
	}

	in := file.stream.Format()
	samples := make([]float64, len(pkt.Data)/in.SampleFormat.BytesPerSample())
	in.SampleFormat.UnpackSamples(samples, pkt.Data)

	frame := &filter.Frame{Data: samples, Rate: in.SampleRate, Layout: in.Layout}
	if err := p.graph.WriteFrame(frame); err != nil {
		log.Printf("playque: error writing frame to filter graph: %v", err)
		return -1
	}

	maxDataSize := 0
	clockAdjustment := 0.0

	for _, entry := range p.sinkMap {
		exampleSink := entry.sinks[0]
		dataSize := 0

		for {
			out, err := entry.branch.ReadFrame()
			if errors.Is(err, filter.ErrNeedMore) || errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				log.Printf("playque: error reading frame from branch: %v", err)
				return -1
			}

			buffer := newBuffer(p.decodeHead, file.audioClock, out)
			dataSize += buffer.Size

			for _, sink := range entry.sinks {
				if err := sink.q.Put(buffer); err != nil {
					log.Printf("playque: unable to queue buffer for sink %s: %v", sink.id, err)
				} else {
					buffer.Ref()
				}
			}
			// a ref/unref pair triggers cleanup if no sink accepted it
			buffer.Ref()
			buffer.Unref()
		}

		if dataSize > maxDataSize {
			maxDataSize = dataSize
			clockAdjustment = float64(dataSize) / float64(exampleSink.bytesPerSec)
		}
	}

	// if no pts, then estimate the clock from the produced bytes
	if pkt.PTS == decode.NoPTS {
		file.audioClock += clockAdjustment
	}
	return maxDataSize
}

// maybeRebuildGraph rebuilds the filter graph when the input format,
// the time base, the output format set or the composite volume has
// changed since the last build. Called with p.mu held.
func (p *Playlist) maybeRebuildGraph(file *File) int {
	in := file.stream.Format()
	tb := file.stream.TimeBase()

	if p.graph != nil && !p.rebuildFlag &&
		p.inFormat.Equal(in) && p.inTimeBase.Equal(tb) &&
		p.compVolume == p.graphVolume {
		return 0
	}

	outputs := make([]audio.Format, len(p.sinkMap))
	for i, entry := range p.sinkMap {
		outputs[i] = entry.format()
	}

	graph, err := filter.New(filter.Config{
		Input:    in,
		TimeBase: tb,
		Volume:   p.compVolume,
		Outputs:  outputs,
	})
	if err != nil {
		log.Printf("playque: error building filter graph: %v", err)
		return -1
	}
	log.Printf("playque: filter graph: input %v, volume %.3f, %d branch(es)",
		in, p.compVolume, len(outputs))

	for i, entry := range p.sinkMap {
		entry.branch = graph.Branch(i)
	}

	p.graph = graph
	p.graphVolume = p.compVolume
	p.inFormat = in
	p.inTimeBase = tb
	p.rebuildFlag = false
	return 0
}
