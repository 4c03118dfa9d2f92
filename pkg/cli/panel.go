package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/haivivi/gizlive/pkg/live"
)

// Theme is the color scheme of a Panel.
type Theme struct {
	Primary lipgloss.Color
	Dim     lipgloss.Color
	Good    lipgloss.Color
	Bad     lipgloss.Color
}

// DefaultTheme is a bright green scheme.
var DefaultTheme = Theme{
	Primary: lipgloss.Color("#00ff9f"),
	Dim:     lipgloss.Color("#6e7681"),
	Good:    lipgloss.Color("#3fb950"),
	Bad:     lipgloss.Color("#f85149"),
}

// Styles are the lipgloss styles derived from a Theme.
type Styles struct {
	Title lipgloss.Style
	Label lipgloss.Style
	Box   lipgloss.Style
	Help  lipgloss.Style
	Good  lipgloss.Style
	Bad   lipgloss.Style
}

// NewStyles derives styles from t.
func NewStyles(t Theme) Styles {
	return Styles{
		Title: lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Label: lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Box:   lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(t.Primary).Padding(0, 1),
		Help:  lipgloss.NewStyle().Foreground(t.Dim),
		Good:  lipgloss.NewStyle().Foreground(t.Good),
		Bad:   lipgloss.NewStyle().Foreground(t.Bad),
	}
}

// Section is a labeled block of lines.
type Section struct {
	Label string
	Lines []string
	// Max limits the section to its last Max lines. Zero shows all.
	Max int
}

// Panel is a bordered status box.
type Panel struct {
	Styles   Styles
	Title    string
	Status   string
	Sections []Section
	Help     string
}

// Render draws the panel width columns wide.
func (p Panel) Render(width int) string {
	width = max(width, 20)
	inner := width - 4

	var lines []string
	header := p.Styles.Title.Render(p.Title)
	if p.Status != "" {
		header += " " + p.Status
	}
	lines = append(lines, header)

	for _, sec := range p.Sections {
		lines = append(lines, "", p.Styles.Label.Render(sec.Label))
		content := sec.Lines
		if sec.Max > 0 && len(content) > sec.Max {
			content = content[len(content)-sec.Max:]
		}
		for _, l := range content {
			if lipgloss.Width(l) > inner {
				l = truncate(l, inner-1) + "…"
			}
			lines = append(lines, l)
		}
	}

	box := p.Styles.Box.Width(width - 2).Render(strings.Join(lines, "\n"))
	if p.Help == "" {
		return box
	}
	return box + "\n" + p.Styles.Help.Render(p.Help)
}

// truncate cuts s to at most width display columns.
func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	w := 0
	for i, r := range s {
		rw := lipgloss.Width(string(r))
		if w+rw > width {
			return s[:i]
		}
		w += rw
	}
	return s
}

// StatusPanel renders a session status together with captured log lines.
func StatusPanel(st live.Status, logs []string, styles Styles) Panel {
	state := st.State.String()
	switch st.State {
	case live.StateActive:
		state = styles.Good.Render("● " + state)
	case live.StateErrored:
		state = styles.Bad.Render("● " + state)
	default:
		state = styles.Help.Render("○ " + state)
	}

	session := []string{fmt.Sprintf("connected: %v", st.Connected)}
	if st.ID != "" {
		session = append([]string{"id: " + st.ID}, session...)
	}
	if st.Err != nil {
		session = append(session, styles.Bad.Render("error: "+st.Err.Error()))
	}
	if st.Warning != "" {
		session = append(session, styles.Bad.Render("warning: "+st.Warning))
	}

	sections := []Section{
		{Label: "Session", Lines: session},
		{Label: "Messages", Lines: st.Logs},
	}
	if len(logs) > 0 {
		sections = append(sections, Section{Label: "Log", Lines: logs, Max: 8})
	}
	return Panel{
		Styles:   styles,
		Title:    "gizlive",
		Status:   state,
		Sections: sections,
		Help:     "Ctrl-C to disconnect",
	}
}
