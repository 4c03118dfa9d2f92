package live

import (
	"context"
	"fmt"

	"github.com/haivivi/gizlive/pkg/audio/pcm"
)

// AudioCaptureEncoder reads microphone frames and hands each one, encoded as
// PCM16, to send. send must not block.
type AudioCaptureEncoder struct {
	mic    Microphone
	format pcm.Format
	send   func(Media)
}

// NewAudioCaptureEncoder returns an encoder for frames captured in format f.
func NewAudioCaptureEncoder(mic Microphone, f pcm.Format, send func(Media)) *AudioCaptureEncoder {
	return &AudioCaptureEncoder{mic: mic, format: f, send: send}
}

// Run captures until ctx is done. It returns nil on cancellation and the
// microphone's error otherwise.
func (e *AudioCaptureEncoder) Run(ctx context.Context) error {
	for {
		frame, err := e.mic.ReadFrame(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("live: read microphone: %w", err)
		}
		e.send(EncodeAudio(frame, e.format))
	}
}
