package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/haivivi/gizlive/pkg/audio/pcm"
	"github.com/haivivi/gizlive/pkg/audio/resampler"
	"github.com/haivivi/gizlive/pkg/encoding"
	"github.com/haivivi/gizlive/pkg/live"
)

const (
	DefaultURL          = "wss://api.openai.com/v1/realtime"
	DefaultModel        = "gpt-4o-realtime-preview"
	DefaultVoice        = "alloy"
	DefaultInstructions = "You are a helpful AI teaching assistant. Be concise."
)

// AudioFormat is the PCM format the Realtime API takes and produces.
var AudioFormat = pcm.L16Mono24K

const handshakeTimeout = 10 * time.Second

// Event types used by the transport.
const (
	eventSessionUpdate    = "session.update"
	eventInputAudioAppend = "input_audio_buffer.append"
	eventSessionCreated   = "session.created"
	eventSpeechStarted    = "input_audio_buffer.speech_started"
	eventResponseAudio    = "response.audio.delta"
	eventError            = "error"
)

// Transport connects to the OpenAI Realtime API.
type Transport struct {
	APIKey       string
	Model        string
	Voice        string
	Instructions string

	// URL overrides the websocket endpoint.
	URL string

	Logger *slog.Logger
}

var _ live.Transport = (*Transport)(nil)

// Accepts reports true only for audio.
func (t *Transport) Accepts(kind live.MediaKind) bool {
	return kind == live.MediaAudio
}

// Connect dials the Realtime endpoint and configures the session. EventOpen
// is delivered when the server reports session.created.
func (t *Transport) Connect(ctx context.Context) (live.Conn, error) {
	if t.APIKey == "" {
		return nil, errors.New("openai: api key is required")
	}
	endpoint := t.URL
	if endpoint == "" {
		endpoint = DefaultURL
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("openai: parse url: %w", err)
	}
	model := or(t.Model, DefaultModel)
	q := u.Query()
	q.Set("model", model)
	u.RawQuery = q.Encode()

	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+t.APIKey)
	headers.Set("OpenAI-Beta", "realtime=v1")

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	ws, resp, err := dialer.DialContext(ctx, u.String(), headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("openai: connect: %w (status %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("openai: connect: %w", err)
	}

	logger := t.Logger
	if logger == nil {
		logger = slog.Default()
	}
	c := &conn{
		ws:      ws,
		logger:  logger.With("transport", "openai", "model", model),
		events:  make(chan live.Event, 64),
		closeCh: make(chan struct{}),
	}
	if err := c.writeEvent(t.sessionUpdate()); err != nil {
		ws.Close()
		return nil, fmt.Errorf("openai: session update: %w", err)
	}
	go c.readLoop()
	return c, nil
}

type sessionConfig struct {
	Modalities        []string       `json:"modalities"`
	Instructions      string         `json:"instructions,omitempty"`
	Voice             string         `json:"voice,omitempty"`
	InputAudioFormat  string         `json:"input_audio_format"`
	OutputAudioFormat string         `json:"output_audio_format"`
	TurnDetection     *turnDetection `json:"turn_detection"`
}

type turnDetection struct {
	Type string `json:"type"`
}

type clientEvent struct {
	EventID string                 `json:"event_id"`
	Type    string                 `json:"type"`
	Session *sessionConfig         `json:"session,omitempty"`
	Audio   encoding.StdBase64Data `json:"audio,omitempty"`
}

type serverEvent struct {
	Type  string                 `json:"type"`
	Delta encoding.StdBase64Data `json:"delta,omitempty"`
	Error *serverError           `json:"error,omitempty"`
}

type serverError struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *serverError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("openai: %s (%s): %s", e.Type, e.Code, e.Message)
	}
	return fmt.Sprintf("openai: %s: %s", e.Type, e.Message)
}

func (t *Transport) sessionUpdate() clientEvent {
	return clientEvent{
		EventID: newEventID(),
		Type:    eventSessionUpdate,
		Session: &sessionConfig{
			Modalities:        []string{"audio", "text"},
			Instructions:      or(t.Instructions, DefaultInstructions),
			Voice:             or(t.Voice, DefaultVoice),
			InputAudioFormat:  "pcm16",
			OutputAudioFormat: "pcm16",
			TurnDetection:     &turnDetection{Type: "server_vad"},
		},
	}
}

func newEventID() string {
	return "evt_" + uuid.New().String()[:12]
}

type conn struct {
	ws     *websocket.Conn
	logger *slog.Logger
	events chan live.Event

	mu         sync.Mutex
	resamplers map[pcm.Format]*resampler.Resampler

	closeCh   chan struct{}
	closeOnce sync.Once
}

func (c *conn) Events() <-chan live.Event { return c.events }

// Send appends one audio chunk to the input buffer, resampling it to
// AudioFormat first.
func (c *conn) Send(ctx context.Context, m live.Media) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.Kind != live.MediaAudio {
		return fmt.Errorf("openai: unsupported media kind %v", m.Kind)
	}
	if c.closed() {
		return net.ErrClosed
	}
	buf, err := live.DecodeAudio(m)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if buf.Format != AudioFormat {
		if buf, err = c.resample(buf); err != nil {
			return err
		}
	}
	if buf.Len() == 0 {
		return nil
	}
	return c.writeEventLocked(clientEvent{
		EventID: newEventID(),
		Type:    eventInputAudioAppend,
		Audio:   pcm.Encode(buf.Mono()),
	})
}

func (c *conn) resample(buf *pcm.Buffer) (*pcm.Buffer, error) {
	rs, ok := c.resamplers[buf.Format]
	if !ok {
		var err error
		if rs, err = resampler.New(buf.Format, AudioFormat); err != nil {
			return nil, err
		}
		if c.resamplers == nil {
			c.resamplers = make(map[pcm.Format]*resampler.Resampler)
		}
		c.resamplers[buf.Format] = rs
	}
	return rs.Process(buf)
}

func (c *conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closeCh)
		c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		err = c.ws.Close()
	})
	return err
}

func (c *conn) closed() bool {
	select {
	case <-c.closeCh:
		return true
	default:
		return false
	}
}

func (c *conn) writeEvent(ev clientEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writeEventLocked(ev)
}

func (c *conn) writeEventLocked(ev clientEvent) error {
	if c.logger.Enabled(context.Background(), slog.LevelDebug) && ev.Type != eventInputAudioAppend {
		if b, err := json.Marshal(ev); err == nil {
			c.logger.Debug("sending event", "content", truncate(string(b), 500))
		}
	}
	return c.ws.WriteJSON(ev)
}

func (c *conn) readLoop() {
	defer close(c.events)
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if c.closed() {
				return
			}
			c.emit(closeEvent(err))
			return
		}
		var msg serverEvent
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Warn("invalid server event", "err", err)
			continue
		}
		if msg.Type != eventResponseAudio && c.logger.Enabled(context.Background(), slog.LevelDebug) {
			c.logger.Debug("received event", "type", msg.Type, "content", truncate(string(data), 1000))
		}
		ev, ok := toEvent(&msg)
		if !ok {
			continue
		}
		if !c.emit(ev) || ev.Type == live.EventError {
			return
		}
	}
}

func (c *conn) emit(ev live.Event) bool {
	select {
	case <-c.closeCh:
		return false
	case c.events <- ev:
		return true
	}
}

// toEvent maps a server event to a session event. Events the session does
// not act on report false.
func toEvent(msg *serverEvent) (live.Event, bool) {
	switch msg.Type {
	case eventSessionCreated:
		return live.Event{Type: live.EventOpen}, true
	case eventResponseAudio:
		if len(msg.Delta) == 0 {
			return live.Event{}, false
		}
		return live.Event{
			Type: live.EventMessage,
			Audio: &live.Media{
				Kind:     live.MediaAudio,
				MIMEType: AudioFormat.MIMEType(),
				Data:     msg.Delta,
			},
		}, true
	case eventSpeechStarted:
		return live.Event{Type: live.EventMessage, Interrupted: true}, true
	case eventError:
		err := error(errors.New("openai: server error"))
		if msg.Error != nil {
			err = msg.Error
		}
		return live.Event{Type: live.EventError, Err: err}, true
	}
	return live.Event{}, false
}

func closeEvent(err error) live.Event {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return live.Event{Type: live.EventClose}
	}
	return live.Event{Type: live.EventError, Err: err}
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}

func or(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
