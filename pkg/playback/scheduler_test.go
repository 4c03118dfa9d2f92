package playback

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/haivivi/gizlive/pkg/audio/pcm"
)

type fakeClock struct{ now time.Duration }

func (c *fakeClock) Now() time.Duration { return c.now }

type fakeVoice struct {
	out     *fakeOutput
	at      time.Duration
	done    func()
	stopped bool
}

func (v *fakeVoice) Stop() { v.stopped = true }

type fakeOutput struct {
	voices  []*fakeVoice
	closed  int
	playErr error
}

func (o *fakeOutput) Play(buf *pcm.Buffer, at time.Duration, done func()) (Voice, error) {
	if o.playErr != nil {
		return nil, o.playErr
	}
	v := &fakeVoice{out: o, at: at, done: done}
	o.voices = append(o.voices, v)
	return v, nil
}

func (o *fakeOutput) Close() error {
	o.closed++
	return nil
}

// chunk returns a 24kHz mono buffer of 6144 samples (0.256s).
func chunk() *pcm.Buffer {
	return pcm.NewBuffer(pcm.L16Mono24K, 6144)
}

func secs(s float64) time.Duration {
	return time.Duration(math.Round(s * float64(time.Second)))
}

func TestScheduleGapless(t *testing.T) {
	out := &fakeOutput{}
	s := NewScheduler(out, &fakeClock{})

	arrivals := []float64{0.0, 0.10, 0.40}
	want := []float64{0.0, 0.256, 0.512}
	for i, at := range arrivals {
		e, err := s.Schedule(chunk(), secs(at))
		if err != nil {
			t.Fatalf("Schedule #%d: %v", i, err)
		}
		if e.Start != secs(want[i]) {
			t.Errorf("entry %d start = %v, want %v", i, e.Start, secs(want[i]))
		}
		if out.voices[i].at != e.Start {
			t.Errorf("voice %d started at %v, entry says %v", i, out.voices[i].at, e.Start)
		}
	}
	if got := s.NextStartTime(); got != secs(0.768) {
		t.Errorf("NextStartTime() = %v, want 768ms", got)
	}
	if n := len(s.Active()); n != 3 {
		t.Errorf("active = %d, want 3", n)
	}
}

func TestScheduleLateArrivalStartsNow(t *testing.T) {
	s := NewScheduler(&fakeOutput{}, &fakeClock{})
	s.Schedule(chunk(), 0)
	e, _ := s.Schedule(chunk(), secs(1))
	if e.Start != secs(1) {
		t.Errorf("start = %v, want 1s", e.Start)
	}
}

func TestScheduleChainProperty(t *testing.T) {
	s := NewScheduler(&fakeOutput{}, &fakeClock{})
	arrivals := []time.Duration{secs(0.3), secs(0.1), secs(0.9), secs(0.95), secs(2)}
	var prevEnd time.Duration
	for i, at := range arrivals {
		e, err := s.Schedule(chunk(), at)
		if err != nil {
			t.Fatal(err)
		}
		want := max(prevEnd, at)
		if e.Start != want {
			t.Errorf("entry %d start = %v, want %v", i, e.Start, want)
		}
		prevEnd = e.End()
	}
}

func TestFinishedRemovesWithoutTouchingTimeline(t *testing.T) {
	out := &fakeOutput{}
	var finished []uint64
	s := NewScheduler(out, &fakeClock{}, WithOnFinished(func(e *Entry) {
		finished = append(finished, e.ID)
	}))
	e1, _ := s.Schedule(chunk(), 0)
	s.Schedule(chunk(), 0)
	next := s.NextStartTime()

	out.voices[0].done()
	if got := s.Active(); len(got) != 1 || got[0].ID == e1.ID {
		t.Errorf("active after finish = %v", got)
	}
	if s.NextStartTime() != next {
		t.Errorf("timeline moved on finish: %v -> %v", next, s.NextStartTime())
	}
	// Second completion of the same entry is ignored.
	s.Finished(e1)
	if len(finished) != 1 || finished[0] != e1.ID {
		t.Errorf("finished callbacks = %v", finished)
	}
}

func TestInterrupt(t *testing.T) {
	tests := []struct {
		policy   InterruptPolicy
		wantNext time.Duration
	}{
		{ResetToZero, 0},
		{Reanchor, secs(0.3)},
	}
	for _, tt := range tests {
		t.Run(tt.policy.String(), func(t *testing.T) {
			out := &fakeOutput{}
			clock := &fakeClock{}
			s := NewScheduler(out, clock, WithInterruptPolicy(tt.policy))
			for i := 0; i < 3; i++ {
				s.Schedule(chunk(), 0)
			}
			clock.now = secs(0.3)

			if n := s.Interrupt(); n != 3 {
				t.Errorf("Interrupt() = %d, want 3", n)
			}
			if len(s.Active()) != 0 {
				t.Error("active set not empty after Interrupt")
			}
			for i, v := range out.voices {
				if !v.stopped {
					t.Errorf("voice %d not stopped", i)
				}
			}
			if got := s.NextStartTime(); got != tt.wantNext {
				t.Errorf("NextStartTime() = %v, want %v", got, tt.wantNext)
			}

			// A buffer arriving at 0.5s starts at 0.5s under either policy.
			e, err := s.Schedule(chunk(), secs(0.5))
			if err != nil {
				t.Fatal(err)
			}
			if e.Start != secs(0.5) {
				t.Errorf("start after interrupt = %v, want 500ms", e.Start)
			}
		})
	}
}

func TestInterruptEmpty(t *testing.T) {
	s := NewScheduler(&fakeOutput{}, &fakeClock{})
	if n := s.Interrupt(); n != 0 {
		t.Errorf("Interrupt() = %d, want 0", n)
	}
}

func TestShutdown(t *testing.T) {
	out := &fakeOutput{}
	s := NewScheduler(out, &fakeClock{})
	s.Schedule(chunk(), 0)
	s.Schedule(chunk(), 0)

	for i := 0; i < 3; i++ {
		if err := s.Shutdown(); err != nil {
			t.Fatalf("Shutdown #%d: %v", i, err)
		}
	}
	if out.closed != 1 {
		t.Errorf("output closed %d times, want 1", out.closed)
	}
	if len(s.Active()) != 0 || s.NextStartTime() != 0 {
		t.Error("Shutdown left state behind")
	}
	if !out.voices[0].stopped || !out.voices[1].stopped {
		t.Error("voices not stopped by Shutdown")
	}
	if _, err := s.Schedule(chunk(), 0); !errors.Is(err, ErrClosed) {
		t.Errorf("Schedule after Shutdown err = %v, want ErrClosed", err)
	}
	if !s.Closed() {
		t.Error("Closed() = false")
	}
}

func TestSchedulePlayError(t *testing.T) {
	out := &fakeOutput{playErr: errors.New("device gone")}
	s := NewScheduler(out, &fakeClock{})
	if _, err := s.Schedule(chunk(), 0); err == nil {
		t.Fatal("Schedule should fail when Play fails")
	}
	if s.NextStartTime() != 0 || len(s.Active()) != 0 {
		t.Error("failed Schedule changed state")
	}
}

func TestParseInterruptPolicy(t *testing.T) {
	for in, want := range map[string]InterruptPolicy{"": ResetToZero, "reset": ResetToZero, "reanchor": Reanchor} {
		got, err := ParseInterruptPolicy(in)
		if err != nil || got != want {
			t.Errorf("ParseInterruptPolicy(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseInterruptPolicy("rewind"); err == nil {
		t.Error("unknown policy should fail")
	}
}
