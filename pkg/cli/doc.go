// Package cli provides the configuration, output and terminal helpers of the
// gizlive command.
//
// Configuration lives in ~/.giztoy/<app>/config.yaml and holds named
// contexts, kubectl style:
//
//	cfg, err := cli.LoadConfig("gizlive")
//	ctx, err := cfg.ResolveContext("") // current context
//
// Panel renders a session status box with lipgloss; LogWriter captures log
// lines for display inside it.
package cli
