package camera

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"sync"
	"time"
)

// DefaultPollInterval is how often File checks its path for changes.
const DefaultPollInterval = 200 * time.Millisecond

// File is a camera backed by an image file. Each change of the file's
// modification time produces a new frame.
type File struct {
	path     string
	interval time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	frame   image.Image
	seq     uint64
	modTime time.Time

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// OpenFile loads path and starts polling it. interval <= 0 uses
// DefaultPollInterval.
func OpenFile(path string, interval time.Duration, logger *slog.Logger) (*File, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	f := &File{
		path:     path,
		interval: interval,
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	if _, err := f.poll(); err != nil {
		return nil, err
	}
	go f.loop()
	return f, nil
}

func (f *File) loop() {
	defer close(f.done)
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()
	for {
		select {
		case <-f.stop:
			return
		case <-ticker.C:
			if _, err := f.poll(); err != nil {
				f.logger.Debug("poll camera file", "path", f.path, "err", err)
			}
		}
	}
}

// poll reloads the file if it changed and reports whether it did.
func (f *File) poll() (bool, error) {
	info, err := os.Stat(f.path)
	if err != nil {
		return false, fmt.Errorf("camera: %w", err)
	}
	f.mu.Lock()
	same := info.ModTime().Equal(f.modTime)
	f.mu.Unlock()
	if same {
		return false, nil
	}

	r, err := os.Open(f.path)
	if err != nil {
		return false, fmt.Errorf("camera: %w", err)
	}
	defer r.Close()
	img, _, err := image.Decode(r)
	if err != nil {
		return false, fmt.Errorf("camera: decode %s: %w", f.path, err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.frame = img
	f.modTime = info.ModTime()
	f.seq++
	return true, nil
}

// Latest returns the current image and its sequence number.
func (f *File) Latest() (image.Image, uint64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.frame, f.seq, f.frame != nil
}

// Close stops polling.
func (f *File) Close() error {
	f.closeOnce.Do(func() {
		close(f.stop)
		<-f.done
	})
	return nil
}
