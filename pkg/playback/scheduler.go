package playback

import (
	"cmp"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/haivivi/gizlive/pkg/audio/pcm"
)

// ErrClosed is returned by Schedule after Shutdown.
var ErrClosed = errors.New("playback: scheduler closed")

// Output plays buffers at positions on its own timeline.
//
// Play must not call done synchronously; done is invoked exactly once when
// the buffer finished playing naturally and never after Voice.Stop.
type Output interface {
	Play(buf *pcm.Buffer, at time.Duration, done func()) (Voice, error)
}

// Voice is a handle to one buffer started on an Output.
type Voice interface {
	Stop()
}

// Clock reports the current position of the playback timeline.
type Clock interface {
	Now() time.Duration
}

// InterruptPolicy decides where the timeline restarts after Interrupt.
type InterruptPolicy int

const (
	// ResetToZero sets the next start time to zero. The next buffer then
	// starts at the current clock reading.
	ResetToZero InterruptPolicy = iota
	// Reanchor sets the next start time to the clock reading at the moment
	// of interruption.
	Reanchor
)

func (p InterruptPolicy) String() string {
	switch p {
	case ResetToZero:
		return "reset"
	case Reanchor:
		return "reanchor"
	}
	return fmt.Sprintf("InterruptPolicy(%d)", int(p))
}

// ParseInterruptPolicy parses "reset" or "reanchor".
func ParseInterruptPolicy(s string) (InterruptPolicy, error) {
	switch s {
	case "", "reset":
		return ResetToZero, nil
	case "reanchor":
		return Reanchor, nil
	}
	return 0, fmt.Errorf("playback: unknown interrupt policy %q", s)
}

// Entry is one buffer on the timeline.
type Entry struct {
	ID       uint64
	Start    time.Duration
	Duration time.Duration
	Buffer   *pcm.Buffer

	voice Voice
}

// End returns the time the entry stops playing.
func (e *Entry) End() time.Duration {
	return e.Start + e.Duration
}

// Option configures a Scheduler.
type Option interface {
	apply(*Scheduler)
}

type interruptPolicyOption InterruptPolicy

func (o interruptPolicyOption) apply(s *Scheduler) {
	s.policy = InterruptPolicy(o)
}

// WithInterruptPolicy sets the timeline policy used by Interrupt. Defaults
// to ResetToZero.
func WithInterruptPolicy(p InterruptPolicy) Option {
	return interruptPolicyOption(p)
}

type onFinishedOption func(*Entry)

func (o onFinishedOption) apply(s *Scheduler) {
	s.onFinished = o
}

// WithOnFinished sets a callback invoked after an entry finished naturally.
func WithOnFinished(fn func(*Entry)) Option {
	return onFinishedOption(fn)
}

// Scheduler places buffers gaplessly on one playback timeline.
//
// It is safe to call methods on Scheduler from multiple goroutines.
type Scheduler struct {
	out        Output
	clock      Clock
	policy     InterruptPolicy
	onFinished func(*Entry)

	mu     sync.Mutex
	next   time.Duration
	seq    uint64
	active map[uint64]*Entry
	closed bool
}

// NewScheduler creates a Scheduler that starts buffers on out and reads the
// current time from clock.
func NewScheduler(out Output, clock Clock, opts ...Option) *Scheduler {
	s := &Scheduler{
		out:    out,
		clock:  clock,
		active: make(map[uint64]*Entry),
	}
	for _, opt := range opts {
		opt.apply(s)
	}
	return s
}

// Policy returns the interrupt policy.
func (s *Scheduler) Policy() InterruptPolicy {
	return s.policy
}

// Schedule starts buf at max(next, now), rounded to the nearest sample, and
// advances the timeline by the buffer's length. Buffers are placed strictly
// in call order.
func (s *Scheduler) Schedule(buf *pcm.Buffer, now time.Duration) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	// Start and end sit on the buffer's sample grid so that consecutive
	// entries meet at an exact sample.
	f := buf.Format
	first := f.SamplesInDuration(max(s.next, now))
	start := f.SampleDuration(first)
	s.seq++
	e := &Entry{
		ID:       s.seq,
		Start:    start,
		Duration: f.SampleDuration(first+int64(buf.Len())) - start,
		Buffer:   buf,
	}
	v, err := s.out.Play(buf, start, func() { s.Finished(e) })
	if err != nil {
		return nil, fmt.Errorf("playback: play entry %d: %w", e.ID, err)
	}
	e.voice = v
	s.active[e.ID] = e
	s.next = e.End()
	return e, nil
}

// Finished removes an entry that completed naturally. The timeline is not
// touched. Unknown or already removed entries are ignored.
func (s *Scheduler) Finished(e *Entry) {
	s.mu.Lock()
	_, ok := s.active[e.ID]
	delete(s.active, e.ID)
	fn := s.onFinished
	s.mu.Unlock()
	if ok && fn != nil {
		fn(e)
	}
}

// Interrupt stops and removes every active entry and resets the timeline
// according to the interrupt policy. It returns the number of entries
// cancelled.
func (s *Scheduler) Interrupt() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.stopAllLocked()
	switch s.policy {
	case Reanchor:
		s.next = s.clock.Now()
	default:
		s.next = 0
	}
	return n
}

func (s *Scheduler) stopAllLocked() int {
	n := len(s.active)
	for id, e := range s.active {
		if e.voice != nil {
			e.voice.Stop()
		}
		delete(s.active, id)
	}
	return n
}

// Shutdown stops all entries, resets the timeline to zero and closes the
// Output if it implements io.Closer. Subsequent calls are no-ops.
//
// The Output is closed without holding the scheduler's lock, so its Close
// may wait for a goroutine that is delivering done callbacks.
func (s *Scheduler) Shutdown() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.stopAllLocked()
	s.next = 0
	s.mu.Unlock()

	if c, ok := s.out.(io.Closer); ok {
		if err := c.Close(); err != nil {
			return fmt.Errorf("playback: close output: %w", err)
		}
	}
	return nil
}

// NextStartTime returns the earliest start time of the next buffer.
func (s *Scheduler) NextStartTime() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}

// Active returns the active entries ordered by start time.
func (s *Scheduler) Active() []*Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Entry, 0, len(s.active))
	for _, e := range s.active {
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b *Entry) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// Closed reports whether Shutdown was called.
func (s *Scheduler) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
