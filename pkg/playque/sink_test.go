// ABOUTME: Tests for sinks
// ABOUTME: Tests attach/detach, queue accounting and the end sentinel
package playque

import (
	"errors"
	"testing"
	"time"

	"github.com/Resonate-Protocol/playque-go/pkg/audio"
)

func mapFormats(p *Playlist) []audio.Format {
	p.mu.Lock()
	defer p.mu.Unlock()

	var formats []audio.Format
	for _, entry := range p.sinkMap {
		formats = append(formats, entry.format())
	}
	return formats
}

func TestAttachDetachRestoresMap(t *testing.T) {
	p := New()
	defer p.Close()

	sink1 := NewSink(testFormat)
	if err := sink1.Attach(p); err != nil {
		t.Fatalf("attach failed: %v", err)
	}
	defer sink1.Detach()

	before := mapFormats(p)

	sink2 := NewSink(audio.Format{SampleRate: 48000, Layout: audio.LayoutMono, SampleFormat: audio.SampleF32})
	if err := sink2.Attach(p); err != nil {
		t.Fatalf("attach failed: %v", err)
	}
	if got := mapFormats(p); len(got) != 2 {
		t.Fatalf("expected 2 map entries, got %d", len(got))
	}
	if err := sink2.Detach(); err != nil {
		t.Fatalf("detach failed: %v", err)
	}

	after := mapFormats(p)
	if len(after) != len(before) {
		t.Fatalf("map entry count changed: %d -> %d", len(before), len(after))
	}
	for i := range after {
		if !after[i].Equal(before[i]) {
			t.Errorf("map entry %d changed: %v -> %v", i, before[i], after[i])
		}
	}
}

func TestSinksShareFormatEntry(t *testing.T) {
	p := New()
	defer p.Close()

	sink1 := NewSink(testFormat)
	sink2 := NewSink(testFormat)
	if err := sink1.Attach(p); err != nil {
		t.Fatalf("attach failed: %v", err)
	}
	if err := sink2.Attach(p); err != nil {
		t.Fatalf("attach failed: %v", err)
	}
	defer sink1.Detach()

	if got := mapFormats(p); len(got) != 1 {
		t.Fatalf("expected shared map entry, got %d entries", len(got))
	}

	if err := sink2.Detach(); err != nil {
		t.Fatalf("detach failed: %v", err)
	}
	if got := mapFormats(p); len(got) != 1 {
		t.Errorf("entry vanished while a sink remains, %d entries", len(got))
	}
}

func TestDetachUnattached(t *testing.T) {
	sink := NewSink(testFormat)
	if err := sink.Detach(); !errors.Is(err, ErrNotAttached) {
		t.Errorf("expected ErrNotAttached, got %v", err)
	}
}

func TestAttachRejectsInvalidFormat(t *testing.T) {
	p := New()
	defer p.Close()

	sink := NewSink(audio.Format{})
	if err := sink.Attach(p); err == nil {
		t.Error("expected error for invalid sink format")
	}
}

func TestDerivedRates(t *testing.T) {
	p := New()
	defer p.Close()

	sink := NewSink(testFormat)
	if err := sink.Attach(p); err != nil {
		t.Fatalf("attach failed: %v", err)
	}
	defer sink.Detach()

	if got := sink.BytesPerSec(); got != 44100*2*2 {
		t.Errorf("expected 176400 bytes/sec, got %d", got)
	}
	if sink.minQueueBytes != 8192*2*2 {
		t.Errorf("expected default threshold 32768, got %d", sink.minQueueBytes)
	}
}

func TestQueueAccountingMatchesContents(t *testing.T) {
	p := New()
	defer p.Close()

	file, _ := testFile(60)
	p.Insert(file, 1.0, nil)

	sink := NewSink(testFormat)
	if err := sink.Attach(p); err != nil {
		t.Fatalf("attach failed: %v", err)
	}
	defer sink.Detach()

	waitFor(t, 5*time.Second, "queue to fill", func() bool {
		return sink.BufferedCount() > 2
	})

	// freeze the decoder, then check that the accounting matches what
	// is actually queued
	p.mu.Lock()
	defer p.mu.Unlock()

	wantBytes := sink.BufferedBytes()
	wantCount := sink.BufferedCount()

	gotBytes, gotCount := 0, 0
	for {
		buf, err := sink.ReadBuffer(false)
		if err != nil {
			break
		}
		gotBytes += buf.Size
		gotCount++
		buf.Unref()
	}

	if gotBytes != wantBytes {
		t.Errorf("byte accounting %d does not match contents %d", wantBytes, gotBytes)
	}
	if gotCount != wantCount {
		t.Errorf("count accounting %d does not match contents %d", wantCount, gotCount)
	}
}

func TestEndSentinelLatch(t *testing.T) {
	p := New()
	defer p.Close()

	sink := NewSink(testFormat)
	if err := sink.Attach(p); err != nil {
		t.Fatalf("attach failed: %v", err)
	}
	defer sink.Detach()

	// empty playlist: the end signal arrives exactly once
	if _, err := sink.ReadBuffer(true); !errors.Is(err, ErrEndOfPlaylist) {
		t.Fatalf("expected end of playlist, got %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	if _, err := sink.ReadBuffer(false); !errors.Is(err, ErrNoBuffer) {
		t.Errorf("expected no second sentinel while idle, got %v", err)
	}

	// new audio clears the latch; exhaustion signals again
	file, _ := testFile(0.05)
	p.Insert(file, 1.0, nil)

	sawBuffer := false
	for {
		buf, err := sink.ReadBuffer(true)
		if errors.Is(err, ErrEndOfPlaylist) {
			break
		}
		if err != nil {
			t.Fatalf("read buffer: %v", err)
		}
		sawBuffer = true
		buf.Unref()
	}
	if !sawBuffer {
		t.Error("expected audio before the second end signal")
	}
}

func TestDetachUnblocksReader(t *testing.T) {
	p := New()
	defer p.Close()

	file, _ := testFile(60)
	p.Insert(file, 1.0, nil)

	sink := NewSink(testFormat)
	sink.BufferSize = 64
	if err := sink.Attach(p); err != nil {
		t.Fatalf("attach failed: %v", err)
	}

	// drain whatever is there, then block on an empty queue
	for {
		buf, err := sink.ReadBuffer(false)
		if err != nil {
			break
		}
		buf.Unref()
	}

	result := make(chan error, 1)
	go func() {
		for {
			buf, err := sink.ReadBuffer(true)
			if err != nil {
				result <- err
				return
			}
			buf.Unref()
		}
	}()

	time.Sleep(20 * time.Millisecond)
	if err := sink.Detach(); err != nil {
		t.Fatalf("detach failed: %v", err)
	}

	select {
	case err := <-result:
		if !errors.Is(err, ErrNoBuffer) {
			t.Errorf("expected ErrNoBuffer after detach, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("detach did not unblock reader")
	}
}
