package live

import (
	"context"
	"time"

	"github.com/haivivi/gizlive/pkg/buffer"
)

// sender drains one media kind's queue into the transport. One sender per
// kind keeps chunks of that kind in order while capture never waits for the
// network.
type sender struct {
	kind    MediaKind
	conn    Conn
	queue   *buffer.RingBuffer[Media]
	policy  SendFailurePolicy
	retries int
	backoff time.Duration
	metrics *Metrics

	// reportEvictions reports chunks pushed out of a full queue as send
	// failures. Image queues hold only the newest frame, so evictions there
	// are expected.
	reportEvictions bool
	onFailure       func(*SendError)
}

func newSender(kind MediaKind, conn Conn, size int, cfg Config, m *Metrics, onFailure func(*SendError)) *sender {
	return &sender{
		kind:            kind,
		conn:            conn,
		queue:           buffer.RingN[Media](size),
		policy:          cfg.SendFailure,
		retries:         cfg.SendRetries,
		backoff:         cfg.SendRetryBackoff,
		metrics:         m,
		reportEvictions: kind == MediaAudio,
		onFailure:       onFailure,
	}
}

// Offer queues m without blocking.
func (s *sender) Offer(m Media) {
	evicted, err := s.queue.Add(m)
	if err != nil {
		return
	}
	if evicted && s.reportEvictions {
		s.fail(ErrQueueFull)
	}
}

func (s *sender) run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		s.queue.CloseWithError(ctx.Err())
	})
	defer stop()
	for {
		m, err := s.queue.Next()
		if err != nil {
			return nil
		}
		s.send(ctx, m)
	}
}

func (s *sender) send(ctx context.Context, m Media) {
	attempts := 1
	if s.policy == SendFailureRetry {
		attempts += s.retries
	}
	backoff := s.backoff
	var err error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			s.metrics.SendRetries.WithLabelValues(s.kind.String()).Inc()
			t := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				t.Stop()
				return
			case <-t.C:
			}
			backoff *= 2
		}
		if err = s.conn.Send(ctx, m); err == nil {
			s.metrics.ChunksSent.WithLabelValues(s.kind.String()).Inc()
			return
		}
		if ctx.Err() != nil {
			return
		}
	}
	s.fail(err)
}

func (s *sender) fail(err error) {
	s.metrics.SendFailures.WithLabelValues(s.kind.String()).Inc()
	if s.onFailure != nil {
		s.onFailure(&SendError{Kind: s.kind, Err: err})
	}
}
