// Package portaudio binds the PortAudio library for microphone capture and
// speaker playback.
//
// Building requires PortAudio discoverable through pkg-config
// (brew install portaudio, apt install portaudio19-dev).
package portaudio

/*
#cgo pkg-config: portaudio-2.0

#include <portaudio.h>
#include <stdlib.h>
#include <string.h>

// PaStream is passed as void* to keep cgo away from the opaque typedef.
static PaError gz_open(void **stream,
                       const PaStreamParameters *in,
                       const PaStreamParameters *out,
                       double rate,
                       unsigned long frames) {
    return Pa_OpenStream((PaStream**)stream, in, out, rate, frames, paClipOff, NULL, NULL);
}

static PaError gz_start(void *stream) { return Pa_StartStream((PaStream*)stream); }
static PaError gz_abort(void *stream) { return Pa_AbortStream((PaStream*)stream); }
static PaError gz_close(void *stream) { return Pa_CloseStream((PaStream*)stream); }

static PaError gz_read(void *stream, void *buf, unsigned long frames) {
    return Pa_ReadStream((PaStream*)stream, buf, frames);
}

static PaError gz_write(void *stream, const void *buf, unsigned long frames) {
    return Pa_WriteStream((PaStream*)stream, buf, frames);
}
*/
import "C"

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"
)

var (
	initOnce sync.Once
	initErr  error
)

// Error is a PortAudio error code.
type Error struct {
	Code int
	Text string
}

func (e *Error) Error() string {
	return "portaudio: " + e.Text
}

func paError(code C.PaError) error {
	if code == C.paNoError {
		return nil
	}
	return &Error{Code: int(code), Text: C.GoString(C.Pa_GetErrorText(code))}
}

// Initialize initializes PortAudio once per process.
func Initialize() error {
	initOnce.Do(func() {
		initErr = paError(C.Pa_Initialize())
	})
	return initErr
}

// Terminate releases PortAudio. Call it once on exit.
func Terminate() error {
	return paError(C.Pa_Terminate())
}

// DeviceInfo describes an audio device.
type DeviceInfo struct {
	Index             int
	Name              string
	MaxInputChannels  int
	MaxOutputChannels int
	DefaultSampleRate float64
	IsDefaultInput    bool
	IsDefaultOutput   bool
}

// ListDevices returns all devices known to PortAudio.
func ListDevices() ([]DeviceInfo, error) {
	if err := Initialize(); err != nil {
		return nil, err
	}
	count := int(C.Pa_GetDeviceCount())
	if count < 0 {
		return nil, paError(C.PaError(count))
	}
	defIn := int(C.Pa_GetDefaultInputDevice())
	defOut := int(C.Pa_GetDefaultOutputDevice())

	devices := make([]DeviceInfo, 0, count)
	for i := 0; i < count; i++ {
		info := C.Pa_GetDeviceInfo(C.PaDeviceIndex(i))
		if info == nil {
			continue
		}
		devices = append(devices, DeviceInfo{
			Index:             i,
			Name:              C.GoString(info.name),
			MaxInputChannels:  int(info.maxInputChannels),
			MaxOutputChannels: int(info.maxOutputChannels),
			DefaultSampleRate: float64(info.defaultSampleRate),
			IsDefaultInput:    i == defIn,
			IsDefaultOutput:   i == defOut,
		})
	}
	return devices, nil
}

var errStreamClosed = errors.New("portaudio: stream closed")

// stream is a blocking int16 stream in one direction.
type stream struct {
	closing  atomic.Bool
	mu       sync.Mutex
	pa       unsafe.Pointer
	buf      unsafe.Pointer
	frames   int
	channels int
	closed   bool
}

func openStream(input bool, channels int, rate float64, frames int) (*stream, error) {
	if err := Initialize(); err != nil {
		return nil, err
	}
	var dev C.PaDeviceIndex
	if input {
		dev = C.Pa_GetDefaultInputDevice()
	} else {
		dev = C.Pa_GetDefaultOutputDevice()
	}
	if dev == C.paNoDevice {
		if input {
			return nil, errors.New("portaudio: no default input device")
		}
		return nil, errors.New("portaudio: no default output device")
	}
	info := C.Pa_GetDeviceInfo(dev)
	if info == nil {
		return nil, fmt.Errorf("portaudio: no info for device %d", int(dev))
	}
	params := &C.PaStreamParameters{
		device:       dev,
		channelCount: C.int(channels),
		sampleFormat: C.paInt16,
	}

	var pa unsafe.Pointer
	var err error
	if input {
		params.suggestedLatency = info.defaultLowInputLatency
		err = paError(C.gz_open(&pa, params, nil, C.double(rate), C.ulong(frames)))
	} else {
		params.suggestedLatency = info.defaultLowOutputLatency
		err = paError(C.gz_open(&pa, nil, params, C.double(rate), C.ulong(frames)))
	}
	if err != nil {
		return nil, err
	}
	if err := paError(C.gz_start(pa)); err != nil {
		C.gz_close(pa)
		return nil, err
	}
	return &stream{
		pa:       pa,
		buf:      C.malloc(C.size_t(frames * channels * 2)),
		frames:   frames,
		channels: channels,
	}, nil
}

// read fills dst with one buffer of interleaved samples.
func (s *stream) read(dst []int16) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errStreamClosed
	}
	n := s.frames * s.channels
	if len(dst) < n {
		return fmt.Errorf("portaudio: read buffer holds %d samples, need %d", len(dst), n)
	}
	if err := paError(C.gz_read(s.pa, s.buf, C.ulong(s.frames))); err != nil {
		return err
	}
	C.memcpy(unsafe.Pointer(&dst[0]), s.buf, C.size_t(n*2))
	return nil
}

// write plays one buffer of interleaved samples. Short input is padded with
// silence.
func (s *stream) write(src []int16) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errStreamClosed
	}
	n := s.frames * s.channels
	m := min(len(src), n)
	if m > 0 {
		C.memcpy(s.buf, unsafe.Pointer(&src[0]), C.size_t(m*2))
	}
	if m < n {
		C.memset(unsafe.Add(s.buf, m*2), 0, C.size_t((n-m)*2))
	}
	return paError(C.gz_write(s.pa, s.buf, C.ulong(s.frames)))
}

// close aborts pending I/O and releases the stream.
func (s *stream) close() error {
	if !s.closing.CompareAndSwap(false, true) {
		return nil
	}
	C.gz_abort(s.pa)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	err := paError(C.gz_close(s.pa))
	C.free(s.buf)
	return err
}
