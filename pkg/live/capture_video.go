package live

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"time"

	"golang.org/x/image/draw"
)

// VideoFrameSampler sends at most one downscaled JPEG camera frame per
// interval, and only when the camera produced a frame since the last one
// sent.
type VideoFrameSampler struct {
	cam      Camera
	interval time.Duration
	scale    int
	quality  int
	send     func(Media)
	logger   *slog.Logger

	lastSeq uint64
	sent    bool
}

// NewVideoFrameSampler returns a sampler using the frame settings of cfg.
func NewVideoFrameSampler(cam Camera, cfg Config, send func(Media), logger *slog.Logger) *VideoFrameSampler {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &VideoFrameSampler{
		cam:      cam,
		interval: cfg.FrameInterval,
		scale:    cfg.FrameScale,
		quality:  cfg.JPEGQuality,
		send:     send,
		logger:   logger,
	}
}

// Run samples on every tick until ctx is done.
func (v *VideoFrameSampler) Run(ctx context.Context) error {
	t := time.NewTicker(v.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if _, err := v.sample(); err != nil {
				v.logger.Warn("video frame skipped", "err", err)
			}
		}
	}
}

// sample handles one tick and reports whether a frame was sent.
func (v *VideoFrameSampler) sample() (bool, error) {
	img, seq, ok := v.cam.Latest()
	if !ok || (v.sent && seq == v.lastSeq) {
		return false, nil
	}
	v.lastSeq, v.sent = seq, true
	data, err := EncodeFrame(img, v.scale, v.quality)
	if err != nil {
		return false, err
	}
	v.send(Media{Kind: MediaImage, MIMEType: "image/jpeg", Data: data})
	return true, nil
}

// EncodeFrame divides both dimensions of img by scale and encodes the result
// as JPEG at the given quality.
func EncodeFrame(img image.Image, scale, quality int) ([]byte, error) {
	b := img.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("live: empty frame")
	}
	w, h := max(b.Dx()/scale, 1), max(b.Dy()/scale, 1)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("live: encode frame: %w", err)
	}
	return buf.Bytes(), nil
}
