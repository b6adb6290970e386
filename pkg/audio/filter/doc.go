// ABOUTME: Filter package documentation
// ABOUTME: The input-to-N-outputs transform graph
// Package filter implements the transform graph between the decoder
// and the sinks: one input stream is scaled by a composite volume,
// split, and converted per branch to each requested output format
// (sample rate, channel layout, sample format).
//
// A Graph is built for one fixed input format, volume and output set;
// the playback engine rebuilds it whenever any of those change.
package filter
