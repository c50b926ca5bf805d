package logger

import (
	"os"

	"golang.org/x/term"
)

// isTerminal reports whether f is attached to a terminal, in which case the
// text handler emits ANSI colors.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
