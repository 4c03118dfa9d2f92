package live

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/haivivi/gizlive/pkg/audio/pcm"
	"github.com/haivivi/gizlive/pkg/audio/resampler"
	"github.com/haivivi/gizlive/pkg/playback"
)

// Status is a snapshot of a Session for display.
type Status struct {
	ID        string
	State     State
	Connected bool
	// Err is the cause of the last failed start or connection loss.
	Err error
	// Warning is the last send failure, kept only with SendFailureSurface.
	Warning string
	// Logs holds the newest status messages, newest first.
	Logs []string
}

// Session owns one live conversation at a time: its devices, its transport
// connection, its capture workers and its playback timeline.
//
// It is safe to call methods on Session from multiple goroutines.
type Session struct {
	transport Transport
	devices   Devices
	cfg       Config
	logger    *slog.Logger
	metrics   *Metrics
	logs      *LogRing
	warnLimit *rate.Limiter

	mu      sync.Mutex
	state   State
	err     error
	warning string
	run     *run

	updated chan struct{}
}

// NewSession creates an idle Session.
func NewSession(t Transport, d Devices, cfg Config, opts ...Option) *Session {
	s := &Session{
		transport: t,
		devices:   d,
		cfg:       cfg.withDefaults(),
		logs:      NewLogRing(),
		warnLimit: rate.NewLimiter(rate.Every(5*time.Second), 1),
		updated:   make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt.apply(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.metrics == nil {
		s.metrics = NewMetrics(nil)
	}
	return s
}

// Start acquires the microphone, the camera (unless video is disabled or the
// transport takes no images) and the speaker, then opens the transport. It
// returns once the connection is open; the session turns Active when the
// remote side reports ready.
//
// Device failures leave the session Errored with an error matching
// ErrPermissionDenied; transport failures with a *ConnectionError. Both may
// be retried with another Start. Cancelling ctx ends the session.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state.busy() {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	r := newRun(ctx)
	s.run = r
	s.state = StateConnecting
	s.err, s.warning = nil, ""
	s.mu.Unlock()

	s.logger.Info("session starting", "session", r.id)
	s.logf("Requesting media permissions...")

	if err := s.acquire(r); err != nil {
		if errors.Is(err, ErrStopped) || !s.finish(r, StateErrored, err, "Media permission denied") {
			return ErrStopped
		}
		return err
	}

	s.logf("Connecting to live service...")
	conn, err := s.transport.Connect(r.ctx)
	if err != nil {
		cerr := &ConnectionError{Op: "connect", Err: err}
		if !s.finish(r, StateErrored, cerr, "Connection failed") {
			return ErrStopped
		}
		return cerr
	}
	r.conn = conn
	if !r.attach("transport", conn.Close) {
		return ErrStopped
	}
	if !r.goLoop(func() { s.loop(r) }) {
		return ErrStopped
	}
	return nil
}

func (s *Session) acquire(r *run) error {
	mic, err := s.devices.OpenMicrophone(r.ctx, InputFormat, FrameSize)
	if err != nil {
		return permissionDenied("microphone", err)
	}
	r.mic = mic
	if !r.attach("microphone", mic.Close) {
		return ErrStopped
	}

	if !s.cfg.DisableVideo && s.transport.Accepts(MediaImage) {
		cam, err := s.devices.OpenCamera(r.ctx)
		if err != nil {
			return permissionDenied("camera", err)
		}
		r.cam = cam
		if !r.attach("camera", cam.Close) {
			return ErrStopped
		}
	}

	spk, err := s.devices.OpenSpeaker(r.ctx, OutputFormat)
	if err != nil {
		return permissionDenied("speaker", err)
	}
	r.clock = spk
	r.sched = playback.NewScheduler(spk, spk,
		playback.WithInterruptPolicy(s.cfg.InterruptPolicy),
		playback.WithOnFinished(func(*playback.Entry) {
			s.metrics.BuffersPlayed.Inc()
		}),
	)
	if !r.attach("playback", r.sched.Shutdown) {
		return ErrStopped
	}
	return nil
}

// Stop ends the session and releases every resource. It is idempotent, a
// no-op on an idle session, and safe to call concurrently with a remote
// close or error. When it returns no device, worker or playback buffer of
// the session is left.
func (s *Session) Stop() {
	s.mu.Lock()
	r := s.run
	s.mu.Unlock()
	if r == nil {
		return
	}
	if !s.finish(r, StateClosed, nil, "Session disconnected") {
		// Another teardown owns the run; wait for it before settling the
		// final state.
		<-r.done
		s.mu.Lock()
		if s.run == r && s.state == StateErrored {
			s.state = StateClosed
		}
		s.mu.Unlock()
		s.changed()
	}
	r.loop.Wait()
}

// loop consumes transport events in receipt order until the run ends.
func (s *Session) loop(r *run) {
	events := r.conn.Events()
	for {
		select {
		case <-r.ctx.Done():
			s.finish(r, StateClosed, nil, "Session disconnected")
			return
		case ev, ok := <-events:
			if !ok {
				s.finish(r, StateClosed, nil, "Connection closed by server")
				return
			}
			if s.handle(r, ev) {
				return
			}
		}
	}
}

// handle processes one event and reports whether the run ended.
func (s *Session) handle(r *run, ev Event) bool {
	switch ev.Type {
	case EventOpen:
		s.activate(r)
	case EventMessage:
		if ev.Audio != nil {
			s.playAudio(r, *ev.Audio)
		}
		if ev.Interrupted {
			n := r.sched.Interrupt()
			s.metrics.Interruptions.Inc()
			s.metrics.BuffersCancelled.Add(float64(n))
			s.logger.Info("model interrupted", "session", r.id, "cancelled", n)
			s.logf("Model interrupted")
		}
	case EventClose:
		s.finish(r, StateClosed, nil, "Connection closed by server")
		return true
	case EventError:
		s.finish(r, StateErrored, &ConnectionError{Op: "receive", Err: ev.Err}, "Connection error occurred")
		return true
	}
	return false
}

func (s *Session) activate(r *run) {
	s.mu.Lock()
	if s.run != r || s.state != StateConnecting {
		s.mu.Unlock()
		return
	}
	s.state = StateActive
	r.active = true
	s.logs.Push("Connection opened!")
	s.mu.Unlock()
	s.changed()

	s.metrics.ActiveSessions.Inc()
	s.logger.Info("session active", "session", r.id)
	s.startCapture(r)
}

func (s *Session) startCapture(r *run) {
	audio := newSender(MediaAudio, r.conn, s.cfg.AudioQueueSize, s.cfg, s.metrics, s.sendFailed)
	enc := NewAudioCaptureEncoder(r.mic, InputFormat, audio.Offer)
	r.workers.Go(func() error { return audio.run(r.ctx) })
	r.workers.Go(func() error {
		if err := enc.Run(r.ctx); err != nil {
			s.logger.Warn("audio capture stopped", "session", r.id, "err", err)
			s.logf("Microphone stopped")
		}
		return nil
	})

	if r.cam != nil {
		image := newSender(MediaImage, r.conn, 1, s.cfg, s.metrics, s.sendFailed)
		sampler := NewVideoFrameSampler(r.cam, s.cfg, image.Offer, s.logger)
		r.workers.Go(func() error { return image.run(r.ctx) })
		r.workers.Go(func() error { return sampler.Run(r.ctx) })
	}
	r.attach("capture", r.workers.Wait)
}

func (s *Session) playAudio(r *run, m Media) {
	buf, err := DecodeAudio(m)
	if err == nil && buf.Format != OutputFormat {
		buf, err = r.resample(buf)
	}
	if err != nil {
		s.metrics.DecodeErrors.Inc()
		s.logger.Warn("dropped audio chunk", "session", r.id, "err", err)
		s.logf("Dropped audio chunk: %v", err)
		return
	}
	if buf.Len() == 0 {
		return
	}
	now := r.clock.Now()
	e, err := r.sched.Schedule(buf, now)
	if err != nil {
		s.logger.Debug("schedule audio", "session", r.id, "err", err)
		return
	}
	s.metrics.BuffersScheduled.Inc()
	s.metrics.ScheduleLead.Observe((e.Start - now).Seconds())
}

func (s *Session) sendFailed(err *SendError) {
	if s.warnLimit.Allow() {
		s.logger.Warn("send failed", "kind", err.Kind, "err", err.Err)
	}
	if s.cfg.SendFailure != SendFailureSurface {
		return
	}
	s.mu.Lock()
	s.warning = err.Error()
	s.mu.Unlock()
	s.logf("Send failed: %v", err)
}

// finish moves r through Closing to final after releasing everything it
// holds. Only the first caller for a run does the work; it reports whether
// that was this call.
func (s *Session) finish(r *run, final State, cause error, msg string) bool {
	s.mu.Lock()
	if s.run != r || r.finishing {
		s.mu.Unlock()
		return false
	}
	r.finishing = true
	wasActive := r.active
	s.state = StateClosing
	s.mu.Unlock()
	s.changed()

	r.release(s.logger)

	if msg != "" {
		s.logs.Push(msg)
	}
	s.mu.Lock()
	s.state = final
	s.err = cause
	s.mu.Unlock()
	close(r.done)
	s.changed()

	if wasActive {
		s.metrics.ActiveSessions.Dec()
	}
	s.metrics.SessionsEnded.WithLabelValues(final.String()).Inc()
	if cause != nil {
		s.logger.Warn("session ended", "session", r.id, "state", final, "err", cause)
	} else {
		s.logger.Info("session ended", "session", r.id, "state", final)
	}
	return true
}

// Status returns a snapshot of the session.
func (s *Session) Status() Status {
	s.mu.Lock()
	st := Status{
		State:     s.state,
		Connected: s.state == StateActive,
		Err:       s.err,
		Warning:   s.warning,
	}
	if s.run != nil {
		st.ID = s.run.id
	}
	s.mu.Unlock()
	st.Logs = s.logs.Entries()
	return st
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Logs returns the newest status messages, newest first.
func (s *Session) Logs() []string {
	return s.logs.Entries()
}

// Updated returns a channel that receives a value after the status changed.
// Notifications are coalesced.
func (s *Session) Updated() <-chan struct{} {
	return s.updated
}

func (s *Session) logf(format string, args ...any) {
	s.logs.Push(fmt.Sprintf(format, args...))
	s.changed()
}

func (s *Session) changed() {
	select {
	case s.updated <- struct{}{}:
	default:
	}
}

// run holds the resources of one Start. Resources are attached as they are
// acquired and released once, newest first.
type run struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	closers  []closer
	released bool
	loop     sync.WaitGroup
	workers  errgroup.Group
	done     chan struct{} // closed when finish settled the final state

	// guarded by Session.mu
	finishing bool
	active    bool

	conn       Conn
	mic        Microphone
	cam        Camera
	clock      playback.Clock
	sched      *playback.Scheduler
	resamplers map[pcm.Format]*resampler.Resampler
}

type closer struct {
	name string
	fn   func() error
}

func newRun(ctx context.Context) *run {
	ctx, cancel := context.WithCancel(ctx)
	return &run{
		id:     uuid.NewString(),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// attach registers fn to run on release. If the run is already released fn
// runs immediately and attach returns false.
func (r *run) attach(name string, fn func() error) bool {
	r.mu.Lock()
	if r.released {
		r.mu.Unlock()
		fn()
		return false
	}
	r.closers = append(r.closers, closer{name: name, fn: fn})
	r.mu.Unlock()
	return true
}

func (r *run) goLoop(fn func()) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return false
	}
	r.loop.Add(1)
	go func() {
		defer r.loop.Done()
		fn()
	}()
	return true
}

func (r *run) release(logger *slog.Logger) {
	r.cancel()
	r.mu.Lock()
	if r.released {
		r.mu.Unlock()
		return
	}
	r.released = true
	closers := r.closers
	r.closers = nil
	r.mu.Unlock()

	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].fn(); err != nil {
			logger.Debug("release", "session", r.id, "resource", closers[i].name, "err", err)
		}
	}
}

// resample converts inbound audio to the playback format. Only the event
// loop calls it.
func (r *run) resample(buf *pcm.Buffer) (*pcm.Buffer, error) {
	rs, ok := r.resamplers[buf.Format]
	if !ok {
		var err error
		if rs, err = resampler.New(buf.Format, OutputFormat); err != nil {
			return nil, err
		}
		if r.resamplers == nil {
			r.resamplers = make(map[pcm.Format]*resampler.Resampler)
		}
		r.resamplers[buf.Format] = rs
	}
	return rs.Process(buf)
}
