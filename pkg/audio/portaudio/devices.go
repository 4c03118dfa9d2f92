package portaudio

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/haivivi/gizlive/pkg/audio/pcm"
	"github.com/haivivi/gizlive/pkg/live"
	"github.com/haivivi/gizlive/pkg/playback"
)

// SpeakerBuffer is the duration of one speaker write.
const SpeakerBuffer = 20 * time.Millisecond

// Devices opens the default PortAudio input and output devices. Camera, when
// set, supplies the video source; otherwise OpenCamera fails.
type Devices struct {
	Camera func(ctx context.Context) (live.Camera, error)
	Logger *slog.Logger
}

var _ live.Devices = (*Devices)(nil)

// ErrNoCamera is returned by OpenCamera when no camera source is set.
var ErrNoCamera = errors.New("portaudio: no camera configured")

func (d *Devices) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

func (d *Devices) OpenMicrophone(ctx context.Context, f pcm.Format, frameSize int) (live.Microphone, error) {
	return OpenMicrophone(f, frameSize)
}

func (d *Devices) OpenCamera(ctx context.Context) (live.Camera, error) {
	if d.Camera == nil {
		return nil, ErrNoCamera
	}
	return d.Camera(ctx)
}

func (d *Devices) OpenSpeaker(ctx context.Context, f pcm.Format) (live.Speaker, error) {
	return OpenSpeaker(f, d.logger())
}

// Microphone captures frames from the default input device.
type Microphone struct {
	s      *stream
	format pcm.Format
	buf    []int16
}

// OpenMicrophone starts capturing frames of frameSize samples per channel.
func OpenMicrophone(f pcm.Format, frameSize int) (*Microphone, error) {
	s, err := openStream(true, f.Channels(), float64(f.SampleRate()), frameSize)
	if err != nil {
		return nil, err
	}
	return &Microphone{s: s, format: f, buf: make([]int16, frameSize*f.Channels())}, nil
}

// ReadFrame blocks for one frame. Multi-channel input is downmixed to mono.
// Only one goroutine may read at a time.
func (m *Microphone) ReadFrame(ctx context.Context) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := m.s.read(m.buf); err != nil {
		if errors.Is(err, errStreamClosed) {
			return nil, io.EOF
		}
		return nil, err
	}
	ch := m.format.Channels()
	frame := make([]float32, len(m.buf)/ch)
	for i := range frame {
		var sum float32
		for c := 0; c < ch; c++ {
			sum += float32(m.buf[i*ch+c]) / 32768
		}
		frame[i] = sum / float32(ch)
	}
	return frame, nil
}

func (m *Microphone) Close() error {
	return m.s.close()
}

// Speaker plays a playback.Mixer through the default output device. The
// device's blocking writes pace the mixer, so its clock follows real
// playback.
type Speaker struct {
	*playback.Mixer
	s      *stream
	logger *slog.Logger

	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

var _ live.Speaker = (*Speaker)(nil)

// OpenSpeaker opens the output device and starts rendering.
func OpenSpeaker(f pcm.Format, logger *slog.Logger) (*Speaker, error) {
	frames := int(f.SamplesInDuration(SpeakerBuffer))
	s, err := openStream(false, f.Channels(), float64(f.SampleRate()), frames)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	sp := &Speaker{
		Mixer:  playback.NewMixer(f),
		s:      s,
		logger: logger,
		done:   make(chan struct{}),
	}
	go sp.pump(frames * f.Channels())
	return sp, nil
}

func (sp *Speaker) pump(samples int) {
	defer close(sp.done)
	raw := make([]byte, samples*2)
	out := make([]int16, samples)
	for {
		n, err := io.ReadFull(sp.Mixer, raw)
		if err != nil {
			return
		}
		for i := 0; i < n/2; i++ {
			out[i] = int16(uint16(raw[2*i]) | uint16(raw[2*i+1])<<8)
		}
		if err := sp.s.write(out[:n/2]); err != nil {
			if !errors.Is(err, errStreamClosed) {
				sp.logger.Warn("speaker write failed", "err", err)
			}
			return
		}
	}
}

// Close stops playback and releases the device.
func (sp *Speaker) Close() error {
	sp.closeOnce.Do(func() {
		sp.Mixer.Close()
		sp.closeErr = sp.s.close()
		<-sp.done
	})
	return sp.closeErr
}
