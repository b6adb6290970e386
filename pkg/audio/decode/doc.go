// ABOUTME: Decode package documentation
// ABOUTME: Seekable packet streams over the supported codecs
// Package decode provides seekable packet streams over audio files.
//
// A Stream yields Packets of decoded PCM in the codec's native format
// with sample-accurate timestamps. Supported codecs:
//   - MP3 (hajimehoshi/go-mp3)
//   - FLAC (mewkiz/flac)
//   - Ogg/Vorbis (jfreymuth/oggvorbis)
//   - Ogg/Opus (hraban/opus, no seek)
//   - WAV/RIFF PCM
//
// Open dispatches on the file extension. Custom sources implement
// Stream directly and wrap it with playque.NewFile.
package decode
