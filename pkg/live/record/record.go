// Package record captures live sessions to a msgpack stream.
//
// Wrap a live.Transport with a Recorder to log every chunk sent and every
// event received. The stream is a sequence of msgpack-encoded Entry values
// and can be read back with a Reader.
package record

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/haivivi/gizlive/pkg/live"
)

// Kind identifies a recorded entry.
type Kind string

const (
	KindSend      Kind = "send"
	KindOpen      Kind = "open"
	KindAudio     Kind = "audio"
	KindInterrupt Kind = "interrupt"
	KindClose     Kind = "close"
	KindError     Kind = "error"
)

// IsValid reports whether k is a known kind.
func (k Kind) IsValid() bool {
	switch k {
	case KindSend, KindOpen, KindAudio, KindInterrupt, KindClose, KindError:
		return true
	}
	return false
}

// UnmarshalMsgpack implements msgpack.Unmarshaler with validation.
func (k *Kind) UnmarshalMsgpack(data []byte) error {
	var s string
	if err := msgpack.Unmarshal(data, &s); err != nil {
		return err
	}
	if !Kind(s).IsValid() {
		return fmt.Errorf("record: invalid entry kind %q", s)
	}
	*k = Kind(s)
	return nil
}

// Entry is one recorded item. Offset is measured from the recorder start.
type Entry struct {
	Offset   time.Duration `msgpack:"t"`
	Kind     Kind          `msgpack:"kind"`
	MIMEType string        `msgpack:"mime,omitempty"`
	Data     []byte        `msgpack:"data,omitempty"`
	Err      string        `msgpack:"err,omitempty"`
}

// Recorder appends entries to a writer. It is safe for concurrent use. The
// first write error is kept and all later writes are skipped.
type Recorder struct {
	mu    sync.Mutex
	enc   *msgpack.Encoder
	start time.Time
	err   error
}

// NewRecorder returns a Recorder writing to w.
func NewRecorder(w io.Writer) *Recorder {
	enc := msgpack.NewEncoder(w)
	enc.UseCompactInts(true)
	return &Recorder{enc: enc, start: time.Now()}
}

// Write appends e, stamping its offset.
func (r *Recorder) Write(e Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	e.Offset = time.Since(r.start)
	if err := r.enc.Encode(&e); err != nil {
		r.err = fmt.Errorf("record: write: %w", err)
	}
	return r.err
}

// Err returns the first write error.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Transport records the sessions of an underlying transport.
type Transport struct {
	live.Transport
	rec *Recorder
}

// Wrap returns t with recording to rec.
func Wrap(t live.Transport, rec *Recorder) *Transport {
	return &Transport{Transport: t, rec: rec}
}

func (t *Transport) Connect(ctx context.Context) (live.Conn, error) {
	inner, err := t.Transport.Connect(ctx)
	if err != nil {
		return nil, err
	}
	c := &conn{
		Conn:   inner,
		rec:    t.rec,
		events: make(chan live.Event),
		done:   make(chan struct{}),
	}
	go c.forward()
	return c, nil
}

type conn struct {
	live.Conn
	rec    *Recorder
	events chan live.Event

	done      chan struct{}
	closeOnce sync.Once
}

func (c *conn) Events() <-chan live.Event { return c.events }

func (c *conn) Send(ctx context.Context, m live.Media) error {
	if err := c.Conn.Send(ctx, m); err != nil {
		return err
	}
	c.rec.Write(Entry{Kind: KindSend, MIMEType: m.MIMEType, Data: m.Data})
	return nil
}

func (c *conn) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	return c.Conn.Close()
}

func (c *conn) forward() {
	defer close(c.events)
	for ev := range c.Conn.Events() {
		for _, e := range entries(ev) {
			c.rec.Write(e)
		}
		select {
		case c.events <- ev:
		case <-c.done:
			return
		}
	}
}

// entries converts an event into the entries recorded for it.
func entries(ev live.Event) []Entry {
	switch ev.Type {
	case live.EventOpen:
		return []Entry{{Kind: KindOpen}}
	case live.EventClose:
		return []Entry{{Kind: KindClose}}
	case live.EventError:
		e := Entry{Kind: KindError}
		if ev.Err != nil {
			e.Err = ev.Err.Error()
		}
		return []Entry{e}
	}
	var out []Entry
	if ev.Audio != nil {
		out = append(out, Entry{Kind: KindAudio, MIMEType: ev.Audio.MIMEType, Data: ev.Audio.Data})
	}
	if ev.Interrupted {
		out = append(out, Entry{Kind: KindInterrupt})
	}
	return out
}

// Reader reads entries written by a Recorder.
type Reader struct {
	dec *msgpack.Decoder
}

// NewReader returns a Reader over r.
func NewReader(r io.Reader) *Reader {
	return &Reader{dec: msgpack.NewDecoder(r)}
}

// Next returns the next entry, or io.EOF at the end of the stream.
func (r *Reader) Next() (*Entry, error) {
	var e Entry
	if err := r.dec.Decode(&e); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("record: read: %w", err)
	}
	return &e, nil
}

// All iterates over the remaining entries. Iteration stops after the first
// error, which is yielded.
func (r *Reader) All() iter.Seq2[*Entry, error] {
	return func(yield func(*Entry, error) bool) {
		for {
			e, err := r.Next()
			if err == io.EOF {
				return
			}
			if !yield(e, err) || err != nil {
				return
			}
		}
	}
}
