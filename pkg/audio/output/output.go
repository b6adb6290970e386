// ABOUTME: Audio output interface definition
// ABOUTME: Common interface for audio playback backends used by the tools
package output

import "github.com/Resonate-Protocol/playque-go/pkg/audio"

// Output represents an audio output device. The playback engine never
// uses one; outputs exist for the command-line tools and examples
// that consume sink buffers.
type Output interface {
	// Open initializes the output device for the given format.
	Open(format audio.Format) error

	// Write outputs packed sample data (blocks until consumed).
	Write(data []byte) error

	// Close releases output resources.
	Close() error
}
