package cli

import (
	"os"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"
)

const renderWidth = 80

// renderMarkdown renders markdown for the terminal, or returns content
// unchanged when no renderer can be built.
func renderMarkdown(content string) string {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(renderWidth),
	)
	if err != nil {
		return content
	}

	rendered, err := renderer.Render(content)
	if err != nil {
		return content
	}
	return rendered
}

// isStdoutTTY reports whether stdout is a terminal.
func isStdoutTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}
