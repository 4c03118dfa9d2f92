package cli

import (
	"errors"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"

	"github.com/haivivi/gizlive/pkg/live"
)

func TestPanelRender(t *testing.T) {
	p := Panel{
		Styles: NewStyles(DefaultTheme),
		Title:  "gizlive",
		Status: "active",
		Sections: []Section{
			{Label: "Messages", Lines: []string{"Connection opened!", strings.Repeat("x", 200)}},
			{Label: "Log", Lines: []string{"first-line", "second-line", "third-line"}, Max: 2},
		},
		Help: "Ctrl-C to disconnect",
	}
	out := p.Render(40)
	for _, want := range []string{"gizlive", "Messages", "Connection opened!", "…", "Ctrl-C"} {
		if !strings.Contains(out, want) {
			t.Errorf("render missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "first-line") || !strings.Contains(out, "third-line") {
		t.Errorf("section Max not applied:\n%s", out)
	}
	for i, line := range strings.Split(out, "\n") {
		if w := lipgloss.Width(line); w > 40 {
			t.Errorf("line %d is %d columns wide: %q", i, w, line)
		}
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in    string
		width int
		want  string
	}{
		{"hello", 10, "hello"},
		{"hello", 3, "hel"},
		{"你好世界", 4, "你好"},
		{"abc", 0, ""},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.width); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.width, got, tt.want)
		}
	}
}

func TestStatusPanel(t *testing.T) {
	st := live.Status{
		ID:      "abc",
		State:   live.StateErrored,
		Err:     errors.New("live: permission denied"),
		Warning: "send audio failed",
		Logs:    []string{"Media permission denied", "Requesting media permissions..."},
	}
	out := StatusPanel(st, []string{"level=INFO msg=hi"}, NewStyles(DefaultTheme)).Render(80)
	for _, want := range []string{"errored", "id: abc", "permission denied", "warning: send audio failed", "Requesting media permissions...", "msg=hi"} {
		if !strings.Contains(out, want) {
			t.Errorf("status panel missing %q:\n%s", want, out)
		}
	}
}
