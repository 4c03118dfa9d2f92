package buffer

import "errors"

// ErrIteratorDone is returned by Next when the buffer is closed for writing
// and empty.
var ErrIteratorDone = errors.New("buffer: iterator done")
