package commands

import (
	"testing"

	"github.com/haivivi/gizlive/pkg/cli"
	"github.com/haivivi/gizlive/pkg/live"
	"github.com/haivivi/gizlive/pkg/live/gemini"
	"github.com/haivivi/gizlive/pkg/live/openai"
)

func TestTransportKind(t *testing.T) {
	tests := []struct {
		in, want string
		ok       bool
	}{
		{"", "gemini", true},
		{"gemini", "gemini", true},
		{"openai", "openai", true},
		{"dashscope", "", false},
	}
	for _, tt := range tests {
		got, err := transportKind(tt.in)
		if (err == nil) != tt.ok || got != tt.want {
			t.Errorf("transportKind(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestMergeOverrides(t *testing.T) {
	ctx := &cli.Context{Name: "prod", Transport: "gemini", APIKey: "k", Voice: "Kore", Model: "m1"}
	got := transportOptions{Voice: "Puck"}.merge(ctx)
	if got.Voice != "Puck" || got.Model != "m1" || got.APIKey != "k" {
		t.Errorf("merge = %+v", got)
	}
	if ctx.Voice != "Kore" {
		t.Error("merge modified the stored context")
	}
}

func TestNewTransport(t *testing.T) {
	tr, err := newTransport(cli.Context{Transport: "openai", APIKey: "sk", Voice: "verse"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	o, ok := tr.(*openai.Transport)
	if !ok || o.Voice != "verse" || o.APIKey != "sk" {
		t.Fatalf("transport = %#v", tr)
	}
	if tr.Accepts(live.MediaImage) {
		t.Error("openai transport should not take images")
	}

	t.Setenv("GEMINI_API_KEY", "from-env")
	tr, err = newTransport(cli.Context{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if g, ok := tr.(*gemini.Transport); !ok || g.APIKey != "from-env" {
		t.Errorf("transport = %#v", tr)
	}

	if _, err := newTransport(cli.Context{Transport: "bogus"}, nil); err == nil {
		t.Error("unknown transport should fail")
	}
}
