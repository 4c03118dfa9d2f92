package playback

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/haivivi/gizlive/pkg/audio/pcm"
)

// Mixer renders buffers placed at absolute sample positions into a single
// PCM16 stream. It implements Output and Clock: the clock is the position of
// the next sample Read will produce.
//
// It is safe to call methods on Mixer from multiple goroutines.
type Mixer struct {
	output    pcm.Format
	readChunk int
	gain      atomicFloat32

	mu       sync.Mutex
	pos      int64
	voices   []*mixerVoice
	closeErr error

	buf []float32
}

type mixerVoice struct {
	mx    *Mixer
	buf   *pcm.Buffer
	start int64
	done  func()
}

func (v *mixerVoice) end() int64 {
	return v.start + int64(v.buf.Len())
}

// Stop removes the voice from the mixer. Its done callback is never called.
func (v *mixerVoice) Stop() {
	v.mx.mu.Lock()
	defer v.mx.mu.Unlock()
	v.mx.removeLocked(v)
}

// NewMixer creates a Mixer producing audio in the given format.
func NewMixer(output pcm.Format) *Mixer {
	mx := &Mixer{
		output:    output,
		readChunk: int(output.BytesInDuration(60 * time.Millisecond)),
	}
	mx.gain.Store(1)
	return mx
}

// Output returns the output format of the mixer.
func (mx *Mixer) Output() pcm.Format {
	return mx.output
}

// SetGain sets the output gain applied to the mix. Defaults to 1.
func (mx *Mixer) SetGain(g float32) {
	mx.gain.Store(g)
}

// Gain returns the output gain.
func (mx *Mixer) Gain() float32 {
	return mx.gain.Load()
}

// Now returns the timeline position of the next sample to be read.
func (mx *Mixer) Now() time.Duration {
	mx.mu.Lock()
	defer mx.mu.Unlock()
	return mx.output.SampleDuration(mx.pos)
}

// Voices returns the number of buffers playing or waiting to play.
func (mx *Mixer) Voices() int {
	mx.mu.Lock()
	defer mx.mu.Unlock()
	return len(mx.voices)
}

// Play places buf at timeline position at, rounded to the nearest sample.
// A position already rendered is moved to the current position so no samples
// are lost. The buffer's sample rate must match the mixer's; channels are
// mapped by index modulo the buffer's channel count.
func (mx *Mixer) Play(buf *pcm.Buffer, at time.Duration, done func()) (Voice, error) {
	if buf.Format.SampleRate() != mx.output.SampleRate() {
		return nil, fmt.Errorf("playback/mixer: buffer rate %d, want %d", buf.Format.SampleRate(), mx.output.SampleRate())
	}
	mx.mu.Lock()
	defer mx.mu.Unlock()
	if mx.closeErr != nil {
		return nil, mx.closeErr
	}
	v := &mixerVoice{
		mx:    mx,
		buf:   buf,
		start: max(mx.output.SamplesInDuration(at), mx.pos),
		done:  done,
	}
	mx.voices = append(mx.voices, v)
	return v, nil
}

// Read renders the next len(p) bytes of the timeline. Silence is produced
// where no voice is playing. Done callbacks of voices that end within the
// rendered window are called before Read returns, outside the mixer's lock.
// The method implements io.Reader and returns io.EOF after Close.
func (mx *Mixer) Read(p []byte) (int, error) {
	frameBytes := mx.output.FrameBytes()
	if len(p) > mx.readChunk {
		p = p[:mx.readChunk]
	}
	p = p[:len(p)/frameBytes*frameBytes]
	if len(p) == 0 {
		return 0, io.ErrShortBuffer
	}

	finished, err := mx.render(p)
	for _, fn := range finished {
		fn()
	}
	if err != nil {
		return 0, err
	}
	return len(p), nil
}

func (mx *Mixer) render(p []byte) ([]func(), error) {
	mx.mu.Lock()
	defer mx.mu.Unlock()
	if mx.closeErr != nil {
		return nil, mx.closeErr
	}

	channels := mx.output.Channels()
	frames := len(p) / mx.output.FrameBytes()
	if cap(mx.buf) < frames*channels {
		mx.buf = make([]float32, frames*channels)
	}
	mix := mx.buf[:frames*channels]
	clear(mix)

	from, to := mx.pos, mx.pos+int64(frames)
	var finished []func()
	kept := mx.voices[:0]
	for _, v := range mx.voices {
		if s, e := max(v.start, from), min(v.end(), to); s < e {
			for i := s; i < e; i++ {
				off := int(i - v.start)
				out := int(i-from) * channels
				for c := 0; c < channels; c++ {
					mix[out+c] += v.buf.Data[c%len(v.buf.Data)][off]
				}
			}
		}
		if v.end() <= to {
			if v.done != nil {
				finished = append(finished, v.done)
			}
			continue
		}
		kept = append(kept, v)
	}
	clear(mx.voices[len(kept):])
	mx.voices = kept
	mx.pos = to

	gain := mx.gain.Load()
	for i, s := range mix {
		s *= gain
		q := pcm.Quantize(s)
		p[i*2] = byte(q)
		p[i*2+1] = byte(uint16(q) >> 8)
	}
	return finished, nil
}

func (mx *Mixer) removeLocked(v *mixerVoice) {
	for i, o := range mx.voices {
		if o == v {
			mx.voices = append(mx.voices[:i], mx.voices[i+1:]...)
			return
		}
	}
}

// Close stops all voices without calling their done callbacks. Read returns
// io.EOF afterwards.
func (mx *Mixer) Close() error {
	mx.mu.Lock()
	defer mx.mu.Unlock()
	if mx.closeErr != nil {
		return nil
	}
	mx.closeErr = io.EOF
	mx.voices = nil
	return nil
}
