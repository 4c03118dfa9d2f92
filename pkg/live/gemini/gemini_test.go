package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"google.golang.org/genai"

	"github.com/haivivi/gizlive/pkg/live"
)

func audioPart(data []byte) *genai.Part {
	return &genai.Part{InlineData: &genai.Blob{Data: data, MIMEType: "audio/pcm;rate=24000"}}
}

func TestEvents(t *testing.T) {
	tests := []struct {
		name  string
		msg   *genai.LiveServerMessage
		types []live.EventType
		audio []bool
		intr  []bool
	}{
		{
			name:  "setup",
			msg:   &genai.LiveServerMessage{SetupComplete: &genai.LiveServerSetupComplete{}},
			types: []live.EventType{live.EventOpen},
			audio: []bool{false},
			intr:  []bool{false},
		},
		{
			name: "two audio parts",
			msg: &genai.LiveServerMessage{ServerContent: &genai.LiveServerContent{
				ModelTurn: &genai.Content{Parts: []*genai.Part{audioPart([]byte{1, 2}), audioPart([]byte{3, 4})}},
			}},
			types: []live.EventType{live.EventMessage, live.EventMessage},
			audio: []bool{true, true},
			intr:  []bool{false, false},
		},
		{
			name: "audio then interrupt",
			msg: &genai.LiveServerMessage{ServerContent: &genai.LiveServerContent{
				ModelTurn:   &genai.Content{Parts: []*genai.Part{audioPart([]byte{1, 2})}},
				Interrupted: true,
			}},
			types: []live.EventType{live.EventMessage},
			audio: []bool{true},
			intr:  []bool{true},
		},
		{
			name:  "interrupt only",
			msg:   &genai.LiveServerMessage{ServerContent: &genai.LiveServerContent{Interrupted: true}},
			types: []live.EventType{live.EventMessage},
			audio: []bool{false},
			intr:  []bool{true},
		},
		{
			name: "text and empty parts skipped",
			msg: &genai.LiveServerMessage{ServerContent: &genai.LiveServerContent{
				ModelTurn: &genai.Content{Parts: []*genai.Part{
					{Text: "hello"},
					nil,
					{InlineData: &genai.Blob{MIMEType: "audio/pcm;rate=24000"}},
					{InlineData: &genai.Blob{Data: []byte{1}, MIMEType: "image/png"}},
				}},
				TurnComplete: true,
			}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := events(tt.msg)
			if len(got) != len(tt.types) {
				t.Fatalf("events() returned %d events, want %d", len(got), len(tt.types))
			}
			for i, ev := range got {
				if ev.Type != tt.types[i] {
					t.Errorf("event %d type = %v, want %v", i, ev.Type, tt.types[i])
				}
				if (ev.Audio != nil) != tt.audio[i] {
					t.Errorf("event %d audio = %v, want %v", i, ev.Audio != nil, tt.audio[i])
				}
				if ev.Interrupted != tt.intr[i] {
					t.Errorf("event %d interrupted = %v, want %v", i, ev.Interrupted, tt.intr[i])
				}
			}
		})
	}
}

func TestCloseEvent(t *testing.T) {
	tests := []struct {
		err  error
		want live.EventType
	}{
		{&websocket.CloseError{Code: websocket.CloseNormalClosure}, live.EventClose},
		{&websocket.CloseError{Code: websocket.CloseGoingAway}, live.EventClose},
		{&websocket.CloseError{Code: websocket.CloseInternalServerErr}, live.EventError},
		{errors.New("unexpected EOF"), live.EventError},
	}
	for _, tt := range tests {
		ev := closeEvent(tt.err)
		if ev.Type != tt.want {
			t.Errorf("closeEvent(%v) = %v, want %v", tt.err, ev.Type, tt.want)
		}
		if ev.Type == live.EventError && ev.Err == nil {
			t.Errorf("closeEvent(%v) dropped the cause", tt.err)
		}
	}
}

func TestRealtimeInput(t *testing.T) {
	in, err := realtimeInput(live.Media{Kind: live.MediaAudio, MIMEType: "audio/pcm;rate=16000", Data: []byte{1}})
	if err != nil || in.Audio == nil || in.Video != nil {
		t.Errorf("audio input = %+v, %v", in, err)
	}
	in, err = realtimeInput(live.Media{Kind: live.MediaImage, MIMEType: "image/jpeg", Data: []byte{1}})
	if err != nil || in.Video == nil || in.Audio != nil {
		t.Errorf("image input = %+v, %v", in, err)
	}
	if _, err := realtimeInput(live.Media{Kind: live.MediaKind(9)}); err == nil {
		t.Error("unknown kind should fail")
	}
}

func TestConnectRequiresKey(t *testing.T) {
	if _, err := (&Transport{}).Connect(context.Background()); err == nil {
		t.Error("Connect without an api key should fail")
	}
}

// fakeServer speaks just enough of the Live protocol for one session.
func fakeServer(t *testing.T, setup chan<- map[string]any, inputs chan<- string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()

		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		var body map[string]any
		json.Unmarshal(data, &body)
		setup <- body

		ws.WriteMessage(websocket.TextMessage, []byte(`{"setupComplete":{}}`))

		_, data, err = ws.ReadMessage()
		if err != nil {
			return
		}
		inputs <- string(data)

		ws.WriteMessage(websocket.TextMessage, []byte(
			`{"serverContent":{"modelTurn":{"parts":[{"inlineData":{"mimeType":"audio/pcm;rate=24000","data":"AAAAAA=="}}]},"interrupted":true}}`))
		ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
		ws.ReadMessage()
	}))
}

func next(t *testing.T, c live.Conn) (live.Event, bool) {
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
	setup := make(chan map[string]any, 1)
	inputs := make(chan string, 1)
	srv := fakeServer(t, setup, inputs)
	defer srv.Close()

	tr := &Transport{
		APIKey:  "test-key",
		Model:   "test-model",
		BaseURL: "ws" + strings.TrimPrefix(srv.URL, "http") + "/",
	}
	c, err := tr.Connect(context.Background())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer c.Close()

	body := <-setup
	raw, _ := json.Marshal(body)
	for _, want := range []string{"models/test-model", DefaultVoice, "AUDIO"} {
		if !strings.Contains(string(raw), want) {
			t.Errorf("setup message %s missing %q", raw, want)
		}
	}

	ev, ok := next(t, c)
	if !ok || ev.Type != live.EventOpen {
		t.Fatalf("first event = %v, %v; want open", ev.Type, ok)
	}

	if err := c.Send(context.Background(), live.Media{Kind: live.MediaAudio, MIMEType: "audio/pcm;rate=16000", Data: []byte{0, 0}}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got := <-inputs; !strings.Contains(got, "realtimeInput") {
		t.Errorf("sent %s, want a realtimeInput message", got)
	}

	ev, ok = next(t, c)
	if !ok || ev.Type != live.EventMessage || ev.Audio == nil || !ev.Interrupted {
		t.Fatalf("second event = %+v, %v; want interrupted audio", ev, ok)
	}
	if len(ev.Audio.Data) != 4 {
		t.Errorf("audio data = %d bytes, want 4", len(ev.Audio.Data))
	}

	ev, ok = next(t, c)
	if !ok || ev.Type != live.EventClose {
		t.Fatalf("third event = %+v, %v; want close", ev, ok)
	}
	if _, ok := next(t, c); ok {
		t.Error("events channel should be closed after close")
	}
}

func TestSendAfterClose(t *testing.T) {
	setup := make(chan map[string]any, 1)
	srv := fakeServer(t, setup, make(chan string, 1))
	defer srv.Close()

	c, err := (&Transport{APIKey: "k", BaseURL: "ws" + strings.TrimPrefix(srv.URL, "http") + "/"}).Connect(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	<-setup
	c.Close()
	c.Close()
	if err := c.Send(context.Background(), live.Media{Kind: live.MediaAudio}); err == nil {
		t.Error("Send after Close should fail")
	}
}
