package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"google.golang.org/genai"

	"github.com/haivivi/gizlive/pkg/live"
)

// Defaults used when the matching Transport field is empty.
const (
	DefaultModel        = "gemini-2.5-flash-native-audio-preview-09-2025"
	DefaultVoice        = "Kore"
	DefaultInstructions = "You are a helpful AI teaching assistant. Be concise."
	DefaultAPIVersion   = "v1beta"
)

// Transport connects to the Gemini Live API.
type Transport struct {
	APIKey       string
	Model        string
	Voice        string
	Instructions string

	// BaseURL overrides the service endpoint. Mostly useful for tests.
	BaseURL    string
	APIVersion string

	Logger *slog.Logger
}

var _ live.Transport = (*Transport)(nil)

// Accepts reports true for both audio and images.
func (t *Transport) Accepts(kind live.MediaKind) bool {
	return kind == live.MediaAudio || kind == live.MediaImage
}

// Connect opens a Live session. The returned Conn emits EventOpen when the
// server acknowledges the setup.
func (t *Transport) Connect(ctx context.Context) (live.Conn, error) {
	if t.APIKey == "" {
		return nil, errors.New("gemini: api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  t.APIKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL:    t.BaseURL,
			APIVersion: or(t.APIVersion, DefaultAPIVersion),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}

	model := or(t.Model, DefaultModel)
	session, err := client.Live.Connect(ctx, model, t.connectConfig())
	if err != nil {
		return nil, fmt.Errorf("gemini: connect: %w", err)
	}

	logger := t.Logger
	if logger == nil {
		logger = slog.Default()
	}
	c := &conn{
		session: session,
		logger:  logger.With("transport", "gemini", "model", model),
		events:  make(chan live.Event, 64),
		closeCh: make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func (t *Transport) connectConfig() *genai.LiveConnectConfig {
	return &genai.LiveConnectConfig{
		ResponseModalities: []genai.Modality{genai.ModalityAudio},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: or(t.Voice, DefaultVoice)},
			},
		},
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: or(t.Instructions, DefaultInstructions)}},
		},
	}
}

type conn struct {
	session *genai.Session
	logger  *slog.Logger
	events  chan live.Event

	// genai writes the websocket directly, so concurrent sends must be
	// serialized here.
	mu sync.Mutex

	closeCh   chan struct{}
	closeOnce sync.Once
}

func (c *conn) Events() <-chan live.Event { return c.events }

func (c *conn) Send(ctx context.Context, m live.Media) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	input, err := realtimeInput(m)
	if err != nil {
		return err
	}
	select {
	case <-c.closeCh:
		return net.ErrClosed
	default:
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.SendRealtimeInput(input)
}

func (c *conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closeCh)
		err = c.session.Close()
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

func (c *conn) readLoop() {
	defer close(c.events)
	for {
		msg, err := c.session.Receive()
		if err != nil {
			if c.closed() {
				return
			}
			c.emit(closeEvent(err))
			return
		}
		if msg.GoAway != nil {
			c.logger.Warn("server going away", "time_left", msg.GoAway.TimeLeft)
		}
		for _, ev := range events(msg) {
			if !c.emit(ev) {
				return
			}
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

// realtimeInput maps an outbound chunk to a realtime input message.
func realtimeInput(m live.Media) (genai.LiveRealtimeInput, error) {
	blob := &genai.Blob{Data: m.Data, MIMEType: m.MIMEType}
	switch m.Kind {
	case live.MediaAudio:
		return genai.LiveRealtimeInput{Audio: blob}, nil
	case live.MediaImage:
		return genai.LiveRealtimeInput{Video: blob}, nil
	}
	return genai.LiveRealtimeInput{}, fmt.Errorf("gemini: unsupported media kind %v", m.Kind)
}

// events converts one server message into session events. Audio parts come
// first; the interruption flag rides on the last event.
func events(msg *genai.LiveServerMessage) []live.Event {
	var out []live.Event
	if msg.SetupComplete != nil {
		out = append(out, live.Event{Type: live.EventOpen})
	}
	sc := msg.ServerContent
	if sc == nil {
		return out
	}
	if sc.ModelTurn != nil {
		for _, part := range sc.ModelTurn.Parts {
			if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
				continue
			}
			if !strings.HasPrefix(part.InlineData.MIMEType, "audio/") {
				continue
			}
			out = append(out, live.Event{
				Type: live.EventMessage,
				Audio: &live.Media{
					Kind:     live.MediaAudio,
					MIMEType: part.InlineData.MIMEType,
					Data:     part.InlineData.Data,
				},
			})
		}
	}
	if sc.Interrupted {
		n := len(out)
		if n > 0 && out[n-1].Type == live.EventMessage {
			out[n-1].Interrupted = true
		} else {
			out = append(out, live.Event{Type: live.EventMessage, Interrupted: true})
		}
	}
	return out
}

// closeEvent classifies a receive error. A normal websocket closure from the
// server is a close; anything else is an error.
func closeEvent(err error) live.Event {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return live.Event{Type: live.EventClose}
	}
	return live.Event{Type: live.EventError, Err: err}
}

func or(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
