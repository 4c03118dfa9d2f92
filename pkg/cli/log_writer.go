package cli

import (
	"strings"
	"sync"

	"github.com/haivivi/gizlive/pkg/buffer"
)

// LogWriter is an io.Writer that keeps the last lines written to it, for
// showing logs inside a redrawn terminal panel.
type LogWriter struct {
	mu      sync.Mutex
	partial string
	lines   *buffer.RingBuffer[string]
	notify  chan struct{}
}

// NewLogWriter keeps up to maxLines lines.
func NewLogWriter(maxLines int) *LogWriter {
	return &LogWriter{
		lines:  buffer.RingN[string](maxLines),
		notify: make(chan struct{}, 1),
	}
}

// Write splits p into lines. A trailing partial line is held until its
// newline arrives.
func (w *LogWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	text := w.partial + string(p)
	parts := strings.Split(text, "\n")
	w.partial = parts[len(parts)-1]
	for _, line := range parts[:len(parts)-1] {
		w.lines.Add(line)
	}
	w.mu.Unlock()
	if len(parts) > 1 {
		select {
		case w.notify <- struct{}{}:
		default:
		}
	}
	return len(p), nil
}

// Lines returns the kept lines, oldest first.
func (w *LogWriter) Lines() []string {
	return w.lines.Snapshot()
}

// Updated receives a value after new complete lines are written.
func (w *LogWriter) Updated() <-chan struct{} {
	return w.notify
}
