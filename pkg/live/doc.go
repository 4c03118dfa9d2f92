// Package live runs a real-time multimodal conversation with a remote model.
//
// A Session captures microphone audio and camera frames, streams them to a
// Transport, and plays the model's streamed audio replies back gaplessly
// through a playback.Scheduler. The remote service may interrupt its own
// turn when the user starts speaking; the session then cancels everything
// still queued for playback.
//
// Lifecycle:
//
//	Idle -> Connecting -> Active -> Closing -> Closed
//	                 \________\________\____-> Errored
//
// Start acquires devices and opens the transport. The transport delivers
// typed events on a channel which the session consumes on one goroutine, in
// receipt order. Stop, a remote close, a transport error and cancellation of
// the Start context all end in the same idempotent teardown.
//
// Transports live in subpackages (gemini, openai); record wraps any of them
// to capture a session to disk.
package live
