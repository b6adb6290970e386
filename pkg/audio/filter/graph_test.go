// ABOUTME: Tests for the filter graph
// ABOUTME: Tests volume stage, split arity, conversion and draining
package filter

import (
	"errors"
	"io"
	"math"
	"testing"

	"github.com/Resonate-Protocol/playque-go/pkg/audio"
)

var testInput = audio.Format{SampleRate: 44100, Layout: audio.LayoutStereo, SampleFormat: audio.SampleS16}

func testFrame(frames int, value float64) *Frame {
	data := make([]float64, frames*2)
	for i := range data {
		data[i] = value
	}
	return &Frame{Data: data, Rate: 44100, Layout: audio.LayoutStereo}
}

func drain(t *testing.T, b *Branch) []*OutputFrame {
	t.Helper()
	var out []*OutputFrame
	for {
		f, err := b.ReadFrame()
		if errors.Is(err, ErrNeedMore) || errors.Is(err, io.EOF) {
			return out
		}
		if err != nil {
			t.Fatalf("read frame: %v", err)
		}
		out = append(out, f)
	}
}

func TestVolumeStageOmittedAtUnity(t *testing.T) {
	g, err := New(Config{
		Input:    testInput,
		TimeBase: audio.Rational{Num: 1, Den: 44100},
		Volume:   1.0,
		Outputs:  []audio.Format{testInput},
	})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if g.HasVolumeStage() {
		t.Error("expected no volume stage at volume 1.0")
	}

	// values above 1.0 clamp back to unity
	g, err = New(Config{Input: testInput, Volume: 1.5, Outputs: []audio.Format{testInput}})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if g.HasVolumeStage() {
		t.Error("expected no volume stage for clamped volume 1.5")
	}
}

func TestVolumeScalesSamples(t *testing.T) {
	g, err := New(Config{Input: testInput, Volume: 0.5, Outputs: []audio.Format{
		{SampleRate: 44100, Layout: audio.LayoutStereo, SampleFormat: audio.SampleF64},
	}})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if !g.HasVolumeStage() {
		t.Fatal("expected volume stage at 0.5")
	}

	if err := g.WriteFrame(testFrame(16, 0.8)); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	frames := drain(t, g.Branch(0))
	if len(frames) == 0 {
		t.Fatal("no output frames")
	}

	samples := make([]float64, frames[0].FrameCount*2)
	audio.SampleF64.UnpackSamples(samples, frames[0].Data)
	if math.Abs(samples[0]-0.4) > 1e-9 {
		t.Errorf("expected 0.4 after volume, got %f", samples[0])
	}
}

func TestSplitArity(t *testing.T) {
	single, err := New(Config{Input: testInput, Volume: 1.0, Outputs: []audio.Format{testInput}})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if got := single.SplitArity(); got != 0 {
		t.Errorf("expected split omitted for one branch, arity %d", got)
	}

	double, err := New(Config{Input: testInput, Volume: 1.0, Outputs: []audio.Format{
		testInput,
		{SampleRate: 48000, Layout: audio.LayoutMono, SampleFormat: audio.SampleF32},
	}})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if got := double.SplitArity(); got != 2 {
		t.Errorf("expected split arity 2, got %d", got)
	}
}

func TestPassthroughPreservesFrameCount(t *testing.T) {
	g, err := New(Config{Input: testInput, Volume: 1.0, Outputs: []audio.Format{testInput}})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	total := 0
	for i := 0; i < 3; i++ {
		if err := g.WriteFrame(testFrame(4096, 0.1)); err != nil {
			t.Fatalf("write failed: %v", err)
		}
		for _, f := range drain(t, g.Branch(0)) {
			total += f.FrameCount
			if !f.Format.Equal(testInput) {
				t.Errorf("unexpected output format %v", f.Format)
			}
		}
	}

	if total != 3*4096 {
		t.Errorf("expected %d frames, got %d", 3*4096, total)
	}
}

func TestOutputFrameCap(t *testing.T) {
	g, err := New(Config{Input: testInput, Volume: 1.0, Outputs: []audio.Format{testInput}})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if err := g.WriteFrame(testFrame(4096, 0.1)); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	for _, f := range drain(t, g.Branch(0)) {
		if f.FrameCount > outputFrameSize {
			t.Errorf("frame exceeds cap: %d", f.FrameCount)
		}
	}
}

func TestConversionRateAndLayout(t *testing.T) {
	out := audio.Format{SampleRate: 48000, Layout: audio.LayoutMono, SampleFormat: audio.SampleF32}
	g, err := New(Config{Input: testInput, Volume: 1.0, Outputs: []audio.Format{out}})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	inFrames := 44100 // one second
	for written := 0; written < inFrames; written += 4410 {
		if err := g.WriteFrame(testFrame(4410, 0.2)); err != nil {
			t.Fatalf("write failed: %v", err)
		}
	}
	g.Close()

	total := 0
	for {
		f, err := g.Branch(0).ReadFrame()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("read frame: %v", err)
		}
		if !f.Format.Equal(out) {
			t.Errorf("unexpected output format %v", f.Format)
		}
		total += f.FrameCount
	}

	// one second of input resampled to 48kHz, minus the interpolation tail
	if total < 47900 || total > 48000 {
		t.Errorf("expected about 48000 output frames, got %d", total)
	}
}

func TestMonoDownmixAverages(t *testing.T) {
	out := audio.Format{SampleRate: 44100, Layout: audio.LayoutMono, SampleFormat: audio.SampleF64}
	g, err := New(Config{Input: testInput, Volume: 1.0, Outputs: []audio.Format{out}})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	// left 0.6, right 0.2 -> mono 0.4
	data := make([]float64, 8*2)
	for i := 0; i < 8; i++ {
		data[i*2] = 0.6
		data[i*2+1] = 0.2
	}
	if err := g.WriteFrame(&Frame{Data: data, Rate: 44100, Layout: audio.LayoutStereo}); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	frames := drain(t, g.Branch(0))
	if len(frames) == 0 {
		t.Fatal("no output frames")
	}
	samples := make([]float64, frames[0].FrameCount)
	audio.SampleF64.UnpackSamples(samples, frames[0].Data)
	if math.Abs(samples[0]-0.4) > 1e-9 {
		t.Errorf("expected mono 0.4, got %f", samples[0])
	}
}

func TestWriteFrameRejectsMismatch(t *testing.T) {
	g, err := New(Config{Input: testInput, Volume: 1.0, Outputs: []audio.Format{testInput}})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	bad := &Frame{Data: make([]float64, 8), Rate: 48000, Layout: audio.LayoutStereo}
	if err := g.WriteFrame(bad); err == nil {
		t.Error("expected error for mismatched frame rate")
	}
}

func TestNewRejectsEmptyOutputs(t *testing.T) {
	if _, err := New(Config{Input: testInput, Volume: 1.0}); err == nil {
		t.Error("expected error for empty output set")
	}
}
