// ABOUTME: Entry point for the playque command-line player
// ABOUTME: Parses CLI flags, builds a playlist and plays it to the default device
package main

import (
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Resonate-Protocol/playque-go/pkg/audio"
	"github.com/Resonate-Protocol/playque-go/pkg/audio/output"
	"github.com/Resonate-Protocol/playque-go/pkg/playque"
)

var (
	volume     = flag.Float64("volume", 1.0, "Playlist volume (0.0-1.0)")
	gain       = flag.Float64("gain", 1.0, "Per-track gain applied to every file")
	sampleRate = flag.Int("rate", 44100, "Output sample rate")
	channels   = flag.Int("channels", 2, "Output channel count")
)

func main() {
	flag.Parse()

	if flag.NArg() == 0 {
		log.Fatal("usage: playque [flags] file...")
	}

	format := audio.Format{
		SampleRate:   *sampleRate,
		Layout:       audio.DefaultLayout(*channels),
		SampleFormat: audio.SampleS16,
	}

	playlist := playque.New()
	defer playlist.Close()
	playlist.SetVolume(*volume)

	var files []*playque.File
	for _, path := range flag.Args() {
		file, err := playque.Open(path)
		if err != nil {
			log.Fatalf("Failed to open %s: %v", path, err)
		}
		files = append(files, file)
		playlist.Insert(file, *gain, nil)
		if dur := file.Duration(); dur > 0 {
			log.Printf("Queued %s (%.1fs)", path, dur)
		} else {
			log.Printf("Queued %s", path)
		}
	}
	defer func() {
		for _, f := range files {
			f.Close()
		}
	}()

	sink := playque.NewSink(format)
	if err := sink.Attach(playlist); err != nil {
		log.Fatalf("Failed to attach sink: %v", err)
	}
	defer sink.Detach()

	out := output.NewOto()
	if err := out.Open(format); err != nil {
		log.Fatalf("Failed to open audio output: %v", err)
	}
	defer out.Close()

	// Ctrl-C stops playback
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Printf("Interrupted, stopping")
		sink.Detach()
	}()

	var current *playque.Item
	for {
		buf, err := sink.ReadBuffer(true)
		if errors.Is(err, playque.ErrEndOfPlaylist) {
			log.Printf("Playlist finished")
			return
		}
		if err != nil {
			return
		}

		if buf.Item != current {
			current = buf.Item
			log.Printf("Now playing: %s", current.File().Path())
		}

		if err := out.Write(buf.Data); err != nil {
			buf.Unref()
			log.Fatalf("Playback error: %v", err)
		}
		buf.Unref()
	}
}
