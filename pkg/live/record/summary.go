package record

import (
	"time"

	"github.com/haivivi/gizlive/pkg/audio/pcm"
)

// Summary aggregates a recording.
type Summary struct {
	Entries       int
	Counts        map[Kind]int
	SentBytes     map[string]int
	ReceivedAudio time.Duration
	Duration      time.Duration
	Errors        []string
}

// Add folds e into the summary.
func (s *Summary) Add(e *Entry) {
	if s.Counts == nil {
		s.Counts = make(map[Kind]int)
		s.SentBytes = make(map[string]int)
	}
	s.Entries++
	s.Counts[e.Kind]++
	s.Duration = max(s.Duration, e.Offset)
	switch e.Kind {
	case KindSend:
		s.SentBytes[e.MIMEType] += len(e.Data)
	case KindAudio:
		if f, err := pcm.ParseMIMEType(e.MIMEType); err == nil {
			s.ReceivedAudio += f.Duration(int64(len(e.Data)))
		}
	case KindError:
		s.Errors = append(s.Errors, e.Err)
	}
}
