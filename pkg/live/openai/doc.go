// Package openai implements a live.Transport over the OpenAI Realtime
// websocket API.
//
// The session is configured for audio-only conversation with server-side
// voice activity detection. Microphone audio is resampled to 24 kHz PCM16
// and appended to the input buffer; response audio deltas are delivered as
// live.EventMessage audio. When the server detects that the user started
// speaking, the in-flight response is reported as interrupted.
//
// The Realtime API takes no image input, so Accepts(live.MediaImage) is
// false and the session never opens a camera.
package openai
