package markdown

import (
	"fmt"

	"github.com/charmbracelet/glamour"
)

// Terminal renders markdown as ANSI text for the CLI.
type Terminal struct {
	r *glamour.TermRenderer
}

func NewTerminal(style string, width int) (*Terminal, error) {
	if style == "" {
		style = "dark"
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStylePath(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create terminal renderer: %w", err)
	}
	return &Terminal{r: r}, nil
}

func (t *Terminal) Render(source string) (string, error) {
	out, err := t.r.Render(source)
	if err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return out, nil
}
