// ABOUTME: Per-branch format converter
// ABOUTME: Remaps channels, resamples by linear interpolation, packs samples
package filter

import "github.com/Resonate-Protocol/playque-go/pkg/audio"

// converter turns input-format float64 audio into the branch's output
// format. It keeps fractional resampler state and unconsumed samples
// between frames so output is continuous across frame boundaries.
type converter struct {
	inRate   int
	inLayout audio.ChannelLayout
	out      audio.Format

	ratio float64 // input frames consumed per output frame
	pos   float64 // fractional read position into input

	input   []float64 // unconsumed samples, input rate, output layout
	pending []float64 // converted samples awaiting packing, output rate and layout
}

func newConverter(in audio.Format, out audio.Format) *converter {
	return &converter{
		inRate:   in.SampleRate,
		inLayout: in.Layout,
		out:      out,
		ratio:    float64(in.SampleRate) / float64(out.SampleRate),
	}
}

// write feeds one input frame through the remap and resample stages.
func (c *converter) write(f *Frame) {
	remapped := remapChannels(f.Data, f.Layout.Channels(), c.out.Layout.Channels())

	if c.inRate == c.out.SampleRate {
		c.pending = append(c.pending, remapped...)
		return
	}

	c.input = append(c.input, remapped...)
	c.resample()
}

// resample consumes c.input into c.pending by linear interpolation.
// One input frame is always held back as the interpolation endpoint.
func (c *converter) resample() {
	ch := c.out.Layout.Channels()
	inFrames := len(c.input) / ch

	for {
		idx := int(c.pos)
		if idx >= inFrames-1 {
			break
		}
		frac := c.pos - float64(idx)
		for i := 0; i < ch; i++ {
			a := c.input[idx*ch+i]
			b := c.input[(idx+1)*ch+i]
			c.pending = append(c.pending, a*(1.0-frac)+b*frac)
		}
		c.pos += c.ratio
	}

	// drop fully consumed input frames, keeping the interpolation tail
	drop := int(c.pos)
	if drop > inFrames-1 {
		drop = inFrames - 1
	}
	if drop > 0 {
		c.input = c.input[drop*ch:]
		c.pos -= float64(drop)
	}
}

// take removes up to maxFrames frames of converted audio and packs
// them into an OutputFrame. It returns nil when nothing is pending.
func (c *converter) take(maxFrames int) *OutputFrame {
	ch := c.out.Layout.Channels()
	avail := len(c.pending) / ch
	if avail == 0 {
		return nil
	}

	n := avail
	if n > maxFrames {
		n = maxFrames
	}

	samples := c.pending[:n*ch]
	data := make([]byte, len(samples)*c.out.SampleFormat.BytesPerSample())
	c.out.SampleFormat.PackSamples(data, samples)
	c.pending = c.pending[n*ch:]

	return &OutputFrame{Data: data, FrameCount: n, Format: c.out}
}

// remapChannels converts interleaved samples between channel counts:
// mono fans out to every output channel, downmix to mono averages,
// anything else maps each output channel to its nearest input channel.
func remapChannels(data []float64, inCh, outCh int) []float64 {
	if inCh == outCh {
		out := make([]float64, len(data))
		copy(out, data)
		return out
	}

	frames := len(data) / inCh
	out := make([]float64, frames*outCh)

	switch {
	case inCh == 1:
		for i := 0; i < frames; i++ {
			for c := 0; c < outCh; c++ {
				out[i*outCh+c] = data[i]
			}
		}
	case outCh == 1:
		for i := 0; i < frames; i++ {
			var sum float64
			for c := 0; c < inCh; c++ {
				sum += data[i*inCh+c]
			}
			out[i] = sum / float64(inCh)
		}
	default:
		for i := 0; i < frames; i++ {
			for c := 0; c < outCh; c++ {
				src := c
				if src >= inCh {
					src = inCh - 1
				}
				out[i*outCh+c] = data[i*inCh+src]
			}
		}
	}
	return out
}
