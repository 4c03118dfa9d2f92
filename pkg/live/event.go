package live

import "fmt"

// EventType identifies an inbound transport event.
type EventType int

const (
	// EventOpen means the remote session is ready for media.
	EventOpen EventType = iota
	// EventMessage carries an audio chunk, an interruption signal, or both.
	EventMessage
	// EventClose means the remote side closed the session.
	EventClose
	// EventError means the transport failed. Err holds the cause.
	EventError
)

func (t EventType) String() string {
	switch t {
	case EventOpen:
		return "open"
	case EventMessage:
		return "message"
	case EventClose:
		return "close"
	case EventError:
		return "error"
	}
	return fmt.Sprintf("EventType(%d)", int(t))
}

// Event is delivered by a Conn in receipt order. When a message carries both
// audio and an interruption, the audio is handled first.
type Event struct {
	Type        EventType
	Audio       *Media
	Interrupted bool
	Err         error
}
