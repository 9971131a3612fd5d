// Package console provides lipgloss-styled terminal output for the
// live session commands.
package console

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

// Theme defines the console color scheme.
type Theme struct {
	Primary lipgloss.Color
	Warn    lipgloss.Color
	Dim     lipgloss.Color
}

// DefaultTheme is the default bright green theme.
var DefaultTheme = Theme{
	Primary: lipgloss.Color("#00ff9f"),
	Warn:    lipgloss.Color("#ffb454"),
	Dim:     lipgloss.Color("#6e7681"),
}

// Console writes styled session output to a single writer.
type Console struct {
	w         io.Writer
	assistant lipgloss.Style
	user      lipgloss.Style
	status    lipgloss.Style
	errStyle  lipgloss.Style
}

// New creates a console on w with the given theme.
func New(w io.Writer, t Theme) *Console {
	return &Console{
		w:         w,
		assistant: lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		user:      lipgloss.NewStyle().Bold(true),
		status:    lipgloss.NewStyle().Foreground(t.Dim),
		errStyle:  lipgloss.NewStyle().Foreground(t.Warn),
	}
}

// Assistant prints one assistant text chunk.
func (c *Console) Assistant(text string) {
	fmt.Fprintf(c.w, "%s %s\n", c.assistant.Render("assistant>"), text)
}

// Prompt prints the user input prompt without a newline.
func (c *Console) Prompt() {
	fmt.Fprintf(c.w, "%s ", c.user.Render("you>"))
}

// Status prints a dimmed status line.
func (c *Console) Status(format string, args ...any) {
	fmt.Fprintln(c.w, c.status.Render(fmt.Sprintf(format, args...)))
}

// Error prints a highlighted error line.
func (c *Console) Error(err error) {
	fmt.Fprintln(c.w, c.errStyle.Render("error: "+err.Error()))
}
