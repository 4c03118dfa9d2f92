package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/haivivi/gizlive/pkg/audio/pcm"
	"github.com/haivivi/gizlive/pkg/live"
)

func TestToEvent(t *testing.T) {
	tests := []struct {
		name   string
		msg    serverEvent
		ok     bool
		typ    live.EventType
		audio  bool
		interr bool
	}{
		{"session created", serverEvent{Type: "session.created"}, true, live.EventOpen, false, false},
		{"audio delta", serverEvent{Type: "response.audio.delta", Delta: []byte{1, 2}}, true, live.EventMessage, true, false},
		{"empty delta", serverEvent{Type: "response.audio.delta"}, false, 0, false, false},
		{"speech started", serverEvent{Type: "input_audio_buffer.speech_started"}, true, live.EventMessage, false, true},
		{"error", serverEvent{Type: "error", Error: &serverError{Type: "invalid_request_error", Message: "bad"}}, true, live.EventError, false, false},
		{"transcript ignored", serverEvent{Type: "response.audio_transcript.delta"}, false, 0, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, ok := toEvent(&tt.msg)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if !ok {
				return
			}
			if ev.Type != tt.typ {
				t.Errorf("type = %v, want %v", ev.Type, tt.typ)
			}
			if (ev.Audio != nil) != tt.audio {
				t.Errorf("audio = %v, want %v", ev.Audio != nil, tt.audio)
			}
			if ev.Interrupted != tt.interr {
				t.Errorf("interrupted = %v, want %v", ev.Interrupted, tt.interr)
			}
			if ev.Type == live.EventError && ev.Err == nil {
				t.Error("error event without cause")
			}
			if ev.Audio != nil && ev.Audio.MIMEType != "audio/pcm;rate=24000" {
				t.Errorf("audio MIME = %q", ev.Audio.MIMEType)
			}
		})
	}
}

func TestAccepts(t *testing.T) {
	tr := &Transport{}
	if !tr.Accepts(live.MediaAudio) || tr.Accepts(live.MediaImage) {
		t.Error("transport should accept audio only")
	}
}

type fakeRealtime struct {
	*httptest.Server
	header   chan http.Header
	received chan map[string]any
	send     chan string
}

func newFakeRealtime(t *testing.T) *fakeRealtime {
	t.Helper()
	f := &fakeRealtime{
		header:   make(chan http.Header, 1),
		received: make(chan map[string]any, 16),
		send:     make(chan string, 16),
	}
	upgrader := websocket.Upgrader{}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.header <- r.Header.Clone()
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		go func() {
			for {
				_, data, err := ws.ReadMessage()
				if err != nil {
					return
				}
				var m map[string]any
				json.Unmarshal(data, &m)
				f.received <- m
			}
		}()
		for msg := range f.send {
			if msg == "close" {
				ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			ws.WriteMessage(websocket.TextMessage, []byte(msg))
		}
	}))
	return f
}

func (f *fakeRealtime) wsURL() string {
	return "ws" + strings.TrimPrefix(f.URL, "http")
}

func (f *fakeRealtime) next(t *testing.T) map[string]any {
	t.Helper()
	select {
	case m := <-f.received:
		return m
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for client event")
	}
	return nil
}

func nextEvent(t *testing.T, c live.Conn) (live.Event, bool) {
	t.Helper()
	select {
	case ev, ok := <-c.Events():
		return ev, ok
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return live.Event{}, false
}

func TestTransportSession(t *testing.T) {
	f := newFakeRealtime(t)
	defer f.Close()
	defer close(f.send)

	c, err := (&Transport{APIKey: "sk-test", Voice: "verse", URL: f.wsURL()}).Connect(context.Background())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer c.Close()

	h := <-f.header
	if got := h.Get("Authorization"); got != "Bearer sk-test" {
		t.Errorf("Authorization = %q", got)
	}

	update := f.next(t)
	if update["type"] != "session.update" {
		t.Fatalf("first client event = %v, want session.update", update["type"])
	}
	session, _ := update["session"].(map[string]any)
	if session["voice"] != "verse" || session["input_audio_format"] != "pcm16" {
		t.Errorf("session = %v", session)
	}

	f.send <- `{"type":"session.created","session":{"id":"sess_1"}}`
	if ev, ok := nextEvent(t, c); !ok || ev.Type != live.EventOpen {
		t.Fatalf("event = %v, %v; want open", ev.Type, ok)
	}

	frame := make([]float32, 240)
	frame[0] = 0.5
	if err := c.Send(context.Background(), live.EncodeAudio(frame, pcm.L16Mono24K)); err != nil {
		t.Fatalf("Send: %v", err)
	}
	appendEv := f.next(t)
	if appendEv["type"] != "input_audio_buffer.append" {
		t.Fatalf("client event = %v, want append", appendEv["type"])
	}
	audio, _ := base64.StdEncoding.DecodeString(appendEv["audio"].(string))
	if len(audio) != 480 {
		t.Errorf("appended %d bytes, want 480", len(audio))
	}

	if err := c.Send(context.Background(), live.Media{Kind: live.MediaImage}); err == nil {
		t.Error("Send of an image should fail")
	}

	f.send <- `{"type":"response.audio.delta","delta":"AAABAA=="}`
	f.send <- `{"type":"response.audio_transcript.delta","delta":"hi"}`
	f.send <- `{"type":"input_audio_buffer.speech_started"}`
	ev, _ := nextEvent(t, c)
	if ev.Type != live.EventMessage || ev.Audio == nil || len(ev.Audio.Data) != 4 {
		t.Fatalf("event = %+v, want 4 bytes of audio", ev)
	}
	ev, _ = nextEvent(t, c)
	if ev.Type != live.EventMessage || !ev.Interrupted {
		t.Fatalf("event = %+v, want interruption", ev)
	}

	f.send <- "close"
	if ev, ok := nextEvent(t, c); !ok || ev.Type != live.EventClose {
		t.Fatalf("event = %+v, %v; want close", ev, ok)
	}
	if _, ok := nextEvent(t, c); ok {
		t.Error("events channel should be closed")
	}
}

func TestTransportServerError(t *testing.T) {
	f := newFakeRealtime(t)
	defer f.Close()
	defer close(f.send)

	c, err := (&Transport{APIKey: "sk-test", URL: f.wsURL()}).Connect(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	f.send <- `{"type":"error","error":{"type":"server_error","message":"boom"}}`
	ev, ok := nextEvent(t, c)
	if !ok || ev.Type != live.EventError || !strings.Contains(ev.Err.Error(), "boom") {
		t.Fatalf("event = %+v, %v; want server error", ev, ok)
	}
	if _, ok := nextEvent(t, c); ok {
		t.Error("events channel should be closed after an error")
	}
}

func TestConnectRequiresKey(t *testing.T) {
	if _, err := (&Transport{}).Connect(context.Background()); err == nil {
		t.Error("Connect without an api key should fail")
	}
}
