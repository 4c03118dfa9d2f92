// Package playback schedules decoded audio buffers back to back on a single
// playback timeline.
//
// A Scheduler owns the timeline: each buffer starts at max(next, now) and
// pushes next forward by its duration, so streamed chunks play gaplessly in
// arrival order. Interrupt cancels everything that is playing or queued.
//
// A Mixer is the in-process Output and Clock for a Scheduler. It renders
// every scheduled buffer at its exact sample position when Read is called, so
// the device driver pulling from it defines the clock:
//
//	mx := playback.NewMixer(pcm.L16Mono24K)
//	sched := playback.NewScheduler(mx, mx)
//	sched.Schedule(buf, mx.Now())
//	io.Copy(speaker, mx)
package playback
