// Package buffer provides a thread-safe, fixed-size ring buffer that
// overwrites its oldest element when full.
//
// It backs the session log (a sliding window of the newest messages) and the
// outbound media queues, where a slow network must never stall capture and
// stale media is worth less than fresh media.
//
//	rb := buffer.RingN[string](10)
//	rb.Add("hello")
//	newest := rb.Newest(10)
//
// Consumers block in Next until an element arrives. CloseWrite lets them
// drain what is left; CloseWithError stops them immediately.
package buffer
