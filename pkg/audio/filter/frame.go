// ABOUTME: Frame types flowing through the filter graph
// ABOUTME: Defines the float64 input frame and the packed output frame
package filter

import "github.com/Resonate-Protocol/playque-go/pkg/audio"

// Frame is one block of decoded audio inside the graph: interleaved
// float64 samples in the [-1, 1] range.
type Frame struct {
	Data   []float64
	Rate   int
	Layout audio.ChannelLayout
}

// FrameCount returns the number of frames (samples per channel).
func (f *Frame) FrameCount() int {
	ch := f.Layout.Channels()
	if ch == 0 {
		return 0
	}
	return len(f.Data) / ch
}

// OutputFrame is one block of converted audio leaving a branch,
// packed in the branch's output format.
type OutputFrame struct {
	Data       []byte
	FrameCount int
	Format     audio.Format
}
