// ABOUTME: Playlist playback engine package
// ABOUTME: Decodes a playlist and fans converted buffers out to sinks
// Package playque implements a playlist playback engine. A Playlist
// owns a decoder goroutine that walks an ordered sequence of audio
// files, runs the decoded stream through a filter graph (volume,
// split, per-format conversion) and delivers reference-counted
// Buffers to every attached Sink.
//
// Sinks declare their output format; sinks sharing a format share one
// branch of the filter graph. The engine produces buffers only — it
// never writes to an audio device. A minimal consumer:
//
//	p := playque.New()
//	defer p.Close()
//
//	file, _ := playque.Open("song.flac")
//	p.Insert(file, 1.0, nil)
//
//	sink := playque.NewSink(audio.Format{
//	    SampleRate:   44100,
//	    Layout:       audio.LayoutStereo,
//	    SampleFormat: audio.SampleS16,
//	})
//	sink.Attach(p)
//
//	for {
//	    buf, err := sink.ReadBuffer(true)
//	    if err != nil {
//	        break // playlist exhausted or sink detached
//	    }
//	    play(buf.Data)
//	    buf.Unref()
//	}
package playque
