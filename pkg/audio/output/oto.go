// ABOUTME: Oto-based audio output implementation
// ABOUTME: Streams 16-bit PCM to the default device through a pipe
package output

import (
	"fmt"
	"io"
	"log"

	"github.com/Resonate-Protocol/playque-go/pkg/audio"
	"github.com/ebitengine/oto/v3"
)

// Oto plays 16-bit PCM through the ebitengine/oto backend.
type Oto struct {
	otoCtx     *oto.Context
	player     *oto.Player
	pipeReader *io.PipeReader
	pipeWriter *io.PipeWriter
	format     audio.Format
}

// NewOto creates an unopened Oto output.
func NewOto() *Oto {
	return &Oto{}
}

// Open initializes the device. Only the s16 sample format is
// supported; oto allows a single context per process, so a second
// Open with a different format keeps the first context.
func (o *Oto) Open(format audio.Format) error {
	if format.SampleFormat != audio.SampleS16 {
		return fmt.Errorf("output: oto supports s16 only, got %s", format.SampleFormat)
	}

	if o.otoCtx != nil {
		if !o.format.Equal(format) {
			log.Printf("output: format change %v -> %v ignored, oto context is fixed", o.format, format)
		}
		return nil
	}

	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   format.SampleRate,
		ChannelCount: format.Layout.Channels(),
		Format:       oto.FormatSignedInt16LE,
	})
	if err != nil {
		return fmt.Errorf("output: failed to create oto context: %w", err)
	}
	<-ready

	o.otoCtx = ctx
	o.format = format
	o.pipeReader, o.pipeWriter = io.Pipe()
	o.player = ctx.NewPlayer(o.pipeReader)
	o.player.Play()

	log.Printf("output: device open: %v", format)
	return nil
}

// Write feeds packed s16 samples to the device.
func (o *Oto) Write(data []byte) error {
	if o.pipeWriter == nil {
		return fmt.Errorf("output: not open")
	}
	_, err := o.pipeWriter.Write(data)
	return err
}

// Close stops playback and releases the device.
func (o *Oto) Close() error {
	if o.pipeWriter != nil {
		o.pipeWriter.Close()
	}
	if o.player != nil {
		o.player.Close()
	}
	return nil
}
