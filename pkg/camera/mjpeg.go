package camera

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"log/slog"
	"os/exec"
	"runtime"
	"strconv"
	"sync"
)

// MaxFrameSize bounds a single JPEG frame in an MJPEG stream.
const MaxFrameSize = 4 << 20

var (
	soi = []byte{0xFF, 0xD8}
	eoi = []byte{0xFF, 0xD9}
)

// SplitJPEG is a bufio.SplitFunc that yields complete JPEG images from a
// motion-JPEG stream. Bytes before a start-of-image marker are skipped.
func SplitJPEG(data []byte, atEOF bool) (advance int, token []byte, err error) {
	start := bytes.Index(data, soi)
	if start < 0 {
		if atEOF {
			return len(data), nil, nil
		}
		// Keep a trailing 0xFF that may begin a marker.
		if n := len(data); n > 0 && data[n-1] == 0xFF {
			return n - 1, nil, nil
		}
		return len(data), nil, nil
	}
	end := bytes.Index(data[start+len(soi):], eoi)
	if end < 0 {
		if atEOF {
			return len(data), nil, nil
		}
		return start, nil, nil
	}
	end += start + len(soi) + len(eoi)
	return end, data[start:end], nil
}

// MJPEG is a camera fed by a motion-JPEG stream.
type MJPEG struct {
	r      io.Reader
	logger *slog.Logger

	mu    sync.Mutex
	frame image.Image
	seq   uint64
	err   error

	done      chan struct{}
	closeOnce sync.Once
	closeFn   func() error
}

// NewMJPEG starts decoding frames from r. If r is an io.Closer it is closed
// by Close.
func NewMJPEG(r io.Reader, logger *slog.Logger) *MJPEG {
	if logger == nil {
		logger = slog.Default()
	}
	c := &MJPEG{r: r, logger: logger, done: make(chan struct{})}
	if rc, ok := r.(io.Closer); ok {
		c.closeFn = rc.Close
	}
	go c.readLoop()
	return c
}

func (c *MJPEG) readLoop() {
	defer close(c.done)
	sc := bufio.NewScanner(c.r)
	sc.Buffer(make([]byte, 0, 256<<10), MaxFrameSize)
	sc.Split(SplitJPEG)
	for sc.Scan() {
		img, err := jpeg.Decode(bytes.NewReader(sc.Bytes()))
		if err != nil {
			c.logger.Debug("skip undecodable frame", "size", len(sc.Bytes()), "err", err)
			continue
		}
		c.mu.Lock()
		c.frame = img
		c.seq++
		c.mu.Unlock()
	}
	err := sc.Err()
	if err == nil {
		err = io.EOF
	}
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
}

// Latest returns the newest decoded frame and its sequence number.
func (c *MJPEG) Latest() (image.Image, uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frame, c.seq, c.frame != nil
}

// Err returns the error that ended the stream, or nil while it is running.
func (c *MJPEG) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Done is closed when the stream ends.
func (c *MJPEG) Done() <-chan struct{} { return c.done }

// Close stops the source. The last frame stays available.
func (c *MJPEG) Close() error {
	var err error
	c.closeOnce.Do(func() {
		if c.closeFn != nil {
			err = c.closeFn()
		}
	})
	return err
}

// FFmpegConfig selects a capture device for OpenFFmpeg.
type FFmpegConfig struct {
	Device int
	Width  int
	Height int
	FPS    int
}

// OpenFFmpeg starts ffmpeg capturing from the platform camera and returns an
// MJPEG source reading its output.
func OpenFFmpeg(ctx context.Context, cfg FFmpegConfig, logger *slog.Logger) (*MJPEG, error) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return nil, fmt.Errorf("camera: ffmpeg not found: %w", err)
	}
	args, err := ffmpegArgs(runtime.GOOS, cfg)
	if err != nil {
		return nil, err
	}
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("camera: ffmpeg stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("camera: start ffmpeg: %w", err)
	}
	c := NewMJPEG(stdout, logger)
	c.closeFn = func() error {
		cmd.Process.Kill()
		<-c.done
		if err := cmd.Wait(); err != nil {
			var exit *exec.ExitError
			if !errors.As(err, &exit) {
				return err
			}
		}
		return nil
	}
	return c, nil
}

func ffmpegArgs(goos string, cfg FFmpegConfig) ([]string, error) {
	if cfg.Width == 0 {
		cfg.Width = 640
	}
	if cfg.Height == 0 {
		cfg.Height = 480
	}
	if cfg.FPS == 0 {
		cfg.FPS = 5
	}
	size := fmt.Sprintf("%dx%d", cfg.Width, cfg.Height)
	var args []string
	switch goos {
	case "darwin":
		args = []string{"-f", "avfoundation", "-framerate", "30", "-video_size", size, "-i", strconv.Itoa(cfg.Device)}
	case "linux":
		args = []string{"-f", "v4l2", "-framerate", "30", "-video_size", size, "-i", fmt.Sprintf("/dev/video%d", cfg.Device)}
	case "windows":
		args = []string{"-f", "dshow", "-framerate", "30", "-video_size", size, "-i", fmt.Sprintf("video=%d", cfg.Device)}
	default:
		return nil, fmt.Errorf("camera: unsupported platform %s", goos)
	}
	args = append(args,
		"-loglevel", "error",
		"-an",
		"-vf", fmt.Sprintf("fps=%d", cfg.FPS),
		"-f", "mjpeg",
		"-q:v", "10",
		"-",
	)
	return args, nil
}
