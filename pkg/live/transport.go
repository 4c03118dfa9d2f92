package live

import "context"

// Transport opens sessions with a remote conversational service.
type Transport interface {
	// Connect opens a session. The returned Conn delivers EventOpen once the
	// remote side is ready.
	Connect(ctx context.Context) (Conn, error)
	// Accepts reports whether the service takes media of the given kind.
	Accepts(kind MediaKind) bool
}

// Conn is one open transport session.
type Conn interface {
	// Events returns the inbound event stream. It is closed after the final
	// EventClose or EventError, or after Close.
	Events() <-chan Event
	// Send transmits one chunk. It is safe for concurrent use.
	Send(ctx context.Context, m Media) error
	// Close closes the session. It is best-effort and idempotent.
	Close() error
}
