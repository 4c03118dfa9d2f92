package live

import (
	"context"
	"image"

	"github.com/haivivi/gizlive/pkg/audio/pcm"
	"github.com/haivivi/gizlive/pkg/playback"
)

// FrameSize is the number of samples per captured audio frame.
const FrameSize = 4096

const (
	// InputFormat is the format of captured and transmitted audio.
	InputFormat = pcm.L16Mono16K
	// OutputFormat is the playback format; inbound audio at other rates is
	// resampled to it.
	OutputFormat = pcm.L16Mono24K
)

// Devices acquires the platform's capture and playback devices. Acquisition
// failures are reported to the user as permission errors.
type Devices interface {
	OpenMicrophone(ctx context.Context, f pcm.Format, frameSize int) (Microphone, error)
	OpenCamera(ctx context.Context) (Camera, error)
	OpenSpeaker(ctx context.Context, f pcm.Format) (Speaker, error)
}

// Microphone yields fixed-size frames of float32 samples at the device's
// cadence.
type Microphone interface {
	// ReadFrame blocks until the next frame is captured.
	ReadFrame(ctx context.Context) ([]float32, error)
	Close() error
}

// Camera holds the most recent frame of a video source.
type Camera interface {
	// Latest returns the newest frame and its sequence number. ok is false
	// until the first frame arrives.
	Latest() (img image.Image, seq uint64, ok bool)
	Close() error
}

// Speaker plays scheduled buffers and provides the playback clock. The
// playback scheduler closes it on teardown.
type Speaker interface {
	playback.Output
	playback.Clock
	Close() error
}
