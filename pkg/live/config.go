package live

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/haivivi/gizlive/pkg/playback"
)

// SendFailurePolicy decides what happens to an outbound chunk whose send
// failed.
type SendFailurePolicy int

const (
	// SendFailureDrop drops the chunk and logs a rate-limited warning.
	SendFailureDrop SendFailurePolicy = iota
	// SendFailureRetry retries the send with exponential backoff, then drops.
	SendFailureRetry
	// SendFailureSurface drops the chunk and reports it in the session
	// status and log.
	SendFailureSurface
)

func (p SendFailurePolicy) String() string {
	switch p {
	case SendFailureDrop:
		return "drop"
	case SendFailureRetry:
		return "retry"
	case SendFailureSurface:
		return "surface"
	}
	return fmt.Sprintf("SendFailurePolicy(%d)", int(p))
}

// ParseSendFailurePolicy parses "drop", "retry" or "surface".
func ParseSendFailurePolicy(s string) (SendFailurePolicy, error) {
	switch s {
	case "", "drop":
		return SendFailureDrop, nil
	case "retry":
		return SendFailureRetry, nil
	case "surface":
		return SendFailureSurface, nil
	}
	return 0, fmt.Errorf("live: unknown send failure policy %q", s)
}

// Config tunes a Session. The zero value is usable.
type Config struct {
	// DisableVideo skips camera acquisition and frame sampling.
	DisableVideo bool

	// InterruptPolicy is passed to the playback scheduler.
	InterruptPolicy playback.InterruptPolicy

	SendFailure      SendFailurePolicy
	SendRetries      int           // default 3
	SendRetryBackoff time.Duration // default 100ms, doubled per attempt

	// AudioQueueSize bounds outbound audio chunks waiting for the network.
	// The oldest chunk is dropped when full. Default 32.
	AudioQueueSize int

	FrameInterval time.Duration // default 500ms
	FrameScale    int           // default 4
	JPEGQuality   int           // default 50
}

func (c Config) withDefaults() Config {
	if c.SendRetries <= 0 {
		c.SendRetries = 3
	}
	if c.SendRetryBackoff <= 0 {
		c.SendRetryBackoff = 100 * time.Millisecond
	}
	if c.AudioQueueSize <= 0 {
		c.AudioQueueSize = 32
	}
	if c.FrameInterval <= 0 {
		c.FrameInterval = 500 * time.Millisecond
	}
	if c.FrameScale <= 0 {
		c.FrameScale = 4
	}
	if c.JPEGQuality <= 0 {
		c.JPEGQuality = 50
	}
	return c
}

// Option configures a Session.
type Option interface {
	apply(*Session)
}

type loggerOption struct{ l *slog.Logger }

func (o loggerOption) apply(s *Session) { s.logger = o.l }

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return loggerOption{l}
}

type metricsOption struct{ m *Metrics }

func (o metricsOption) apply(s *Session) { s.metrics = o.m }

// WithMetrics sets the metrics sink. Defaults to metrics on a private
// registry.
func WithMetrics(m *Metrics) Option {
	return metricsOption{m}
}
