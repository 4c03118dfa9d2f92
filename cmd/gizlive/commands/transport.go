package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/haivivi/gizlive/pkg/cli"
	"github.com/haivivi/gizlive/pkg/live"
	"github.com/haivivi/gizlive/pkg/live/gemini"
	"github.com/haivivi/gizlive/pkg/live/openai"
)

const (
	transportGemini = "gemini"
	transportOpenAI = "openai"
)

func transportKind(s string) (string, error) {
	switch s {
	case "", transportGemini:
		return transportGemini, nil
	case transportOpenAI:
		return transportOpenAI, nil
	}
	return "", fmt.Errorf("unknown transport %q (want gemini or openai)", s)
}

// transportOptions are the command-line overrides of a context.
type transportOptions struct {
	Transport    string
	Model        string
	Voice        string
	Instructions string
}

// merge applies non-empty overrides to a copy of ctx.
func (o transportOptions) merge(ctx *cli.Context) cli.Context {
	c := *ctx
	if o.Transport != "" {
		c.Transport = o.Transport
	}
	if o.Model != "" {
		c.Model = o.Model
	}
	if o.Voice != "" {
		c.Voice = o.Voice
	}
	if o.Instructions != "" {
		c.Instructions = o.Instructions
	}
	return c
}

// newTransport builds the transport a context describes. A missing API key
// falls back to GEMINI_API_KEY or OPENAI_API_KEY.
func newTransport(c cli.Context, logger *slog.Logger) (live.Transport, error) {
	kind, err := transportKind(c.Transport)
	if err != nil {
		return nil, err
	}
	switch kind {
	case transportOpenAI:
		key := c.APIKey
		if key == "" {
			key = os.Getenv("OPENAI_API_KEY")
		}
		return &openai.Transport{
			APIKey:       key,
			Model:        c.Model,
			Voice:        c.Voice,
			Instructions: c.Instructions,
			URL:          c.BaseURL,
			Logger:       logger,
		}, nil
	default:
		key := c.APIKey
		if key == "" {
			key = os.Getenv("GEMINI_API_KEY")
		}
		return &gemini.Transport{
			APIKey:       key,
			Model:        c.Model,
			Voice:        c.Voice,
			Instructions: c.Instructions,
			BaseURL:      c.BaseURL,
			Logger:       logger,
		}, nil
	}
}
