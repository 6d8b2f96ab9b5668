package cmd

import (
	"os"

	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// statusColors renders agent-status words in color when stdout is a real
// terminal, gating termenv output behind a term.IsTerminal check rather
// than always emitting escape codes (which would corrupt piped/logged
// output).
type statusColors struct {
	out         *termenv.Output
	interactive bool
}

func newStatusColors() *statusColors {
	interactive := term.IsTerminal(int(os.Stdout.Fd()))
	return &statusColors{out: termenv.NewOutput(os.Stdout), interactive: interactive}
}

// Status colorizes the wire-level status vocabulary: green for
// active, yellow for the in-between states, red for inactive. Falls back to
// plain text when stdout isn't a terminal.
func (c *statusColors) Status(status string) string {
	if !c.interactive {
		return status
	}
	var color termenv.Color
	switch status {
	case "active":
		color = c.out.Color("2") // green
	case "activating", "started":
		color = c.out.Color("3") // yellow
	case "inactive":
		color = c.out.Color("1") // red
	default:
		return status
	}
	return c.out.String(status).Foreground(color).String()
}
