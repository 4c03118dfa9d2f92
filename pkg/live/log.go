package live

import (
	"github.com/haivivi/gizlive/pkg/buffer"
)

// LogCapacity is the number of messages kept by a LogRing.
const LogCapacity = 10

// LogRing keeps the newest human-readable status messages of a session.
type LogRing struct {
	rb *buffer.RingBuffer[string]
}

// NewLogRing returns an empty LogRing holding up to LogCapacity messages.
func NewLogRing() *LogRing {
	return &LogRing{rb: buffer.RingN[string](LogCapacity)}
}

// Push appends msg, dropping the oldest message when full.
func (l *LogRing) Push(msg string) {
	l.rb.Add(msg)
}

// Entries returns the messages newest first.
func (l *LogRing) Entries() []string {
	return l.rb.Newest(LogCapacity)
}

// Len returns the number of stored messages.
func (l *LogRing) Len() int {
	return l.rb.Len()
}
