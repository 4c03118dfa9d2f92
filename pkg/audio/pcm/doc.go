// Package pcm provides types and utilities for working with 16-bit linear PCM
// audio as exchanged with live conversational services.
//
// Key types:
//   - Format: sample rate, channel count and bit depth of a stream
//   - Buffer: decoded, de-interleaved float32 samples ready for playback
//   - DecodeError: returned when inbound bytes are not valid PCM16
//
// Samples travel as float32 in [-1, 1] inside the process and as little-endian
// signed 16-bit integers on the wire:
//
//	data := pcm.Encode(frame)                  // float32 -> PCM16 LE
//	buf, err := pcm.Decode(data, pcm.L16Mono24K) // PCM16 LE -> Buffer
//
// Format.MIMEType and ParseMIMEType convert between formats and the
// "audio/pcm;rate=N" tags carried next to the payload.
package pcm
