package styles

import (
	"github.com/charmbracelet/glamour/v2"
)

// MarkdownRenderer returns a glamour renderer using the current theme's style.
func MarkdownRenderer(width int) (*glamour.TermRenderer, error) {
	t := CurrentTheme()
	return glamour.NewTermRenderer(
		glamour.WithStylePath(t.GlamourStyle),
		glamour.WithWordWrap(width),
		glamour.WithPreservedNewLines(),
	)
}
