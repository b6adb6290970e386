// ABOUTME: Filter graph transforming one input stream into N output formats
// ABOUTME: Stages: source -> optional volume -> split -> per-branch convert
package filter

import (
	"errors"
	"fmt"
	"io"

	"github.com/Resonate-Protocol/playque-go/pkg/audio"
)

// ErrNeedMore is returned by Branch.ReadFrame when the branch has
// less than one frame buffered and the graph is still open.
var ErrNeedMore = errors.New("filter: need more input")

// outputFrameSize caps the frame count of one OutputFrame.
const outputFrameSize = 1024

// Config parameterizes a graph build.
type Config struct {
	// Input is the decoded stream format feeding the graph.
	Input audio.Format
	// TimeBase is the input stream's time base.
	TimeBase audio.Rational
	// Volume is the unclamped composite volume. It is clamped to
	// [0, 1] here; a clamped value of exactly 1.0 omits the stage.
	Volume float64
	// Outputs lists the distinct output formats, one branch each.
	Outputs []audio.Format
}

// Graph is the transform from one input format to N parallel output
// streams. It is rebuilt from scratch whenever the input format, the
// output set or the composite volume changes; it is not safe for
// concurrent use.
type Graph struct {
	input     audio.Format
	volume    float64
	hasVolume bool
	branches  []*Branch
	closed    bool
}

// Branch is one output leg of the graph.
type Branch struct {
	graph  *Graph
	format audio.Format
	conv   *converter
}

// New builds a graph from the config.
func New(cfg Config) (*Graph, error) {
	if len(cfg.Outputs) == 0 {
		return nil, errors.New("filter: no output formats")
	}
	if cfg.Input.SampleRate <= 0 || cfg.Input.Layout.Channels() == 0 || cfg.Input.SampleFormat.BytesPerSample() == 0 {
		return nil, fmt.Errorf("filter: invalid input format %v", cfg.Input)
	}

	vol := cfg.Volume
	if vol > 1.0 {
		vol = 1.0
	}
	if vol < 0.0 {
		vol = 0.0
	}

	g := &Graph{
		input:     cfg.Input,
		volume:    vol,
		hasVolume: vol != 1.0,
	}

	for _, out := range cfg.Outputs {
		if out.SampleRate <= 0 || out.Layout.Channels() == 0 || out.SampleFormat.BytesPerSample() == 0 {
			return nil, fmt.Errorf("filter: invalid output format %v", out)
		}
		g.branches = append(g.branches, &Branch{
			graph:  g,
			format: out,
			conv:   newConverter(cfg.Input, out),
		})
	}

	return g, nil
}

// WriteFrame pushes one decoded frame through the graph: the volume
// stage scales it in place, then every branch converts its own copy.
func (g *Graph) WriteFrame(f *Frame) error {
	if g.closed {
		return errors.New("filter: graph closed")
	}
	if f.Rate != g.input.SampleRate || f.Layout != g.input.Layout {
		return fmt.Errorf("filter: frame format %dHz/%dch does not match graph input %v",
			f.Rate, f.Layout.Channels(), g.input)
	}

	if g.hasVolume {
		for i := range f.Data {
			f.Data[i] *= g.volume
		}
	}

	for _, b := range g.branches {
		b.conv.write(f)
	}
	return nil
}

// Close marks the graph drained; branches then hand out the converted
// audio they still hold and report io.EOF afterwards. A resampling
// branch's held-back interpolation frame is not emitted.
func (g *Graph) Close() {
	g.closed = true
}

// HasVolumeStage reports whether the build included a volume stage.
func (g *Graph) HasVolumeStage() bool {
	return g.hasVolume
}

// SplitArity returns the output count of the split stage, or 0 when
// the split is omitted because there is a single branch.
func (g *Graph) SplitArity() int {
	if len(g.branches) < 2 {
		return 0
	}
	return len(g.branches)
}

// Branches returns the output branches in build order.
func (g *Graph) Branches() []*Branch {
	return g.branches
}

// Branch returns the i-th output branch.
func (g *Graph) Branch(i int) *Branch {
	return g.branches[i]
}

// Format returns the branch's output format.
func (b *Branch) Format() audio.Format {
	return b.format
}

// ReadFrame pops the next converted frame. It returns ErrNeedMore
// when the branch is waiting on more input, and io.EOF once the graph
// is closed and the remainder is drained.
func (b *Branch) ReadFrame() (*OutputFrame, error) {
	if f := b.conv.take(outputFrameSize); f != nil {
		return f, nil
	}
	if b.graph.closed {
		return nil, io.EOF
	}
	return nil, ErrNeedMore
}
