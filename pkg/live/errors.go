package live

import (
	"errors"
	"fmt"
)

var (
	// ErrPermissionDenied is returned when a capture or playback device
	// cannot be acquired. Start may be retried.
	ErrPermissionDenied = errors.New("live: permission denied")

	// ErrAlreadyStarted is returned by Start while a session is running.
	ErrAlreadyStarted = errors.New("live: session already started")

	// ErrStopped is returned by Start when Stop was called before the
	// session finished connecting.
	ErrStopped = errors.New("live: session stopped")

	// ErrQueueFull is the cause of a SendError for a chunk evicted from a
	// full outbound queue.
	ErrQueueFull = errors.New("live: outbound queue full")
)

// ConnectionError reports a transport failure. It ends the session.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("live: connection %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// SendError reports an outbound chunk that was not transmitted. It never ends
// the session.
type SendError struct {
	Kind MediaKind
	Err  error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("live: send %s: %v", e.Kind, e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}

func permissionDenied(device string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrPermissionDenied, device, err)
}
