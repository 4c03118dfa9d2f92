package live

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync"
	"testing"
	"time"

	"github.com/haivivi/gizlive/pkg/audio/pcm"
	"github.com/haivivi/gizlive/pkg/playback"
)

type fakeConn struct {
	events chan Event

	mu       sync.Mutex
	sent     []Media
	attempts int
	sendErr  error
	closed   int
}

func newFakeConn() *fakeConn {
	return &fakeConn{events: make(chan Event, 64)}
}

func (c *fakeConn) Events() <-chan Event { return c.events }

func (c *fakeConn) Send(ctx context.Context, m Media) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempts++
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, m)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	c.closed++
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) setSendErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendErr = err
}

func (c *fakeConn) sentOf(kind MediaKind) []Media {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Media
	for _, m := range c.sent {
		if m.Kind == kind {
			out = append(out, m)
		}
	}
	return out
}

func (c *fakeConn) sendAttempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

func (c *fakeConn) closeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type fakeTransport struct {
	mu         sync.Mutex
	conns      []*fakeConn
	connectErr error
	block      bool
	images     bool
}

func (t *fakeTransport) Connect(ctx context.Context) (Conn, error) {
	t.mu.Lock()
	block, err := t.block, t.connectErr
	t.mu.Unlock()
	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	c := newFakeConn()
	t.mu.Lock()
	t.conns = append(t.conns, c)
	t.mu.Unlock()
	return c, nil
}

func (t *fakeTransport) Accepts(kind MediaKind) bool {
	return kind == MediaAudio || t.images
}

func (t *fakeTransport) last() *fakeConn {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.conns) == 0 {
		return nil
	}
	return t.conns[len(t.conns)-1]
}

// fakeMic yields frames pushed on its channel.
type fakeMic struct {
	frames chan []float32
	closed chan struct{}
	once   sync.Once
	gate   chan struct{} // Close waits on it when set
}

func newFakeMic() *fakeMic {
	return &fakeMic{frames: make(chan []float32, 16), closed: make(chan struct{})}
}

func (m *fakeMic) ReadFrame(ctx context.Context) ([]float32, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-m.closed:
		return nil, errors.New("microphone closed")
	case f := <-m.frames:
		return f, nil
	}
}

func (m *fakeMic) Close() error {
	if m.gate != nil {
		<-m.gate
	}
	m.once.Do(func() { close(m.closed) })
	return nil
}

type fakeCamera struct {
	mu     sync.Mutex
	img    image.Image
	seq    uint64
	closed int
}

func (c *fakeCamera) Latest() (image.Image, uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.img, c.seq, c.img != nil
}

func (c *fakeCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed++
	return nil
}

func (c *fakeCamera) push(img image.Image) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.img = img
	c.seq++
}

// fakeSpeaker is a playback.Mixer that counts Close calls.
type fakeSpeaker struct {
	*playback.Mixer
	mu     sync.Mutex
	closed int
	gate   chan struct{} // Close waits on it when set
}

func (s *fakeSpeaker) Close() error {
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	s.closed++
	s.mu.Unlock()
	return s.Mixer.Close()
}

type fakeDevices struct {
	mu      sync.Mutex
	micErr  error
	camErr  error
	mics    []*fakeMic
	cams    []*fakeCamera
	speaker []*fakeSpeaker

	// closeGate, when set, holds the Close of every microphone and speaker.
	closeGate chan struct{}
}

func (d *fakeDevices) OpenMicrophone(ctx context.Context, f pcm.Format, frameSize int) (Microphone, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.micErr != nil {
		return nil, d.micErr
	}
	m := newFakeMic()
	m.gate = d.closeGate
	d.mics = append(d.mics, m)
	return m, nil
}

func (d *fakeDevices) OpenCamera(ctx context.Context) (Camera, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.camErr != nil {
		return nil, d.camErr
	}
	c := &fakeCamera{}
	d.cams = append(d.cams, c)
	return c, nil
}

func (d *fakeDevices) OpenSpeaker(ctx context.Context, f pcm.Format) (Speaker, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := &fakeSpeaker{Mixer: playback.NewMixer(f), gate: d.closeGate}
	d.speaker = append(d.speaker, s)
	return s, nil
}

func (d *fakeDevices) lastMic() *fakeMic {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mics[len(d.mics)-1]
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func testFrame(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	return img
}

// audioChunk returns an inbound 24kHz chunk of n samples.
func audioChunk(n int) *Media {
	m := EncodeAudio(make([]float32, n), pcm.L16Mono24K)
	return &m
}
