package buffer

import (
	"fmt"
	"io"
	"sync"
)

// RingBuffer is a thread-safe ring buffer of fixed capacity. Unlike a
// blocking queue, RingBuffer overwrites the oldest element when it is full,
// making it suitable for maintaining a sliding window of the most recent data.
//
// The buffer uses monotonically increasing head and tail counters; an element
// lives at index counter%capacity.
type RingBuffer[T any] struct {
	writeNotify chan struct{}

	mu         sync.Mutex
	buf        []T
	head, tail int64
	evicted    int64
	closeWrite bool
	closeErr   error
}

// RingN creates a new RingBuffer with the specified capacity. It panics if
// size is not positive.
func RingN[T any](size int) *RingBuffer[T] {
	if size <= 0 {
		panic("buffer: ring size must be positive")
	}
	return &RingBuffer[T]{
		writeNotify: make(chan struct{}, 1),

		buf: make([]T, size),
	}
}

// Add appends t. If the buffer is full the oldest element is dropped and
// evicted reports true.
func (rb *RingBuffer[T]) Add(t T) (evicted bool, err error) {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	if rb.closeErr != nil {
		return false, fmt.Errorf("buffer: write to closed buffer: %w", rb.closeErr)
	}
	if rb.closeWrite {
		return false, fmt.Errorf("buffer: write to closed buffer: %w", io.ErrClosedPipe)
	}
	size := int64(len(rb.buf))
	if rb.tail-rb.head == size {
		rb.head++
		rb.evicted++
		evicted = true
	}
	rb.buf[rb.tail%size] = t
	rb.tail++
	select {
	case rb.writeNotify <- struct{}{}:
	default:
	}
	return evicted, nil
}

// Next removes and returns the oldest element. It blocks until an element is
// available or the buffer is closed. Returns ErrIteratorDone when the buffer
// is closed for writing and empty.
func (rb *RingBuffer[T]) Next() (t T, err error) {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	if rb.closeErr != nil {
		err = fmt.Errorf("buffer: read from closed buffer: %w", rb.closeErr)
		return
	}
	for rb.head == rb.tail {
		if rb.closeWrite {
			err = ErrIteratorDone
			return
		}
		rb.mu.Unlock()
		<-rb.writeNotify
		rb.mu.Lock()
		if rb.closeErr != nil {
			err = fmt.Errorf("buffer: read from closed buffer: %w", rb.closeErr)
			return
		}
	}
	idx := rb.head % int64(len(rb.buf))
	t = rb.buf[idx]
	var zero T
	rb.buf[idx] = zero
	rb.head++
	return t, nil
}

// Newest returns up to n elements, newest first. The buffer is not modified.
func (rb *RingBuffer[T]) Newest(n int) []T {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	avail := int(rb.tail - rb.head)
	if n > avail {
		n = avail
	}
	out := make([]T, 0, n)
	for i := int64(1); i <= int64(n); i++ {
		out = append(out, rb.buf[(rb.tail-i)%int64(len(rb.buf))])
	}
	return out
}

// Snapshot returns a copy of all buffered elements, oldest first.
func (rb *RingBuffer[T]) Snapshot() []T {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	out := make([]T, 0, rb.tail-rb.head)
	for i := rb.head; i < rb.tail; i++ {
		out = append(out, rb.buf[i%int64(len(rb.buf))])
	}
	return out
}

// Len returns the number of elements currently in the buffer.
func (rb *RingBuffer[T]) Len() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return int(rb.tail - rb.head)
}

// Cap returns the capacity of the buffer.
func (rb *RingBuffer[T]) Cap() int {
	return len(rb.buf)
}

// Evicted returns how many elements were dropped by Add on a full buffer.
func (rb *RingBuffer[T]) Evicted() int64 {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.evicted
}

// Reset discards all buffered elements.
func (rb *RingBuffer[T]) Reset() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	clear(rb.buf)
	rb.head = 0
	rb.tail = 0
}

// CloseWrite closes the write side of the buffer. Next keeps returning the
// remaining elements, then ErrIteratorDone.
func (rb *RingBuffer[T]) CloseWrite() error {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	if rb.closeWrite {
		return nil
	}
	rb.closeWrite = true
	close(rb.writeNotify)
	return nil
}

// CloseWithError closes the buffer with the specified error. Pending and
// future calls to Next and Add return this error.
func (rb *RingBuffer[T]) CloseWithError(err error) error {
	if err == nil {
		err = io.ErrClosedPipe
	}
	rb.mu.Lock()
	defer rb.mu.Unlock()
	if rb.closeErr != nil {
		return nil
	}
	rb.closeErr = err
	if !rb.closeWrite {
		rb.closeWrite = true
		close(rb.writeNotify)
	}
	return nil
}

// Close is equivalent to CloseWithError(io.ErrClosedPipe).
func (rb *RingBuffer[T]) Close() error {
	return rb.CloseWithError(io.ErrClosedPipe)
}

// Error returns the error that caused the buffer to be closed, if any.
func (rb *RingBuffer[T]) Error() error {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.closeErr
}
