package render

import (
	"io"
	"os"

	"golang.org/x/term"
)

const (
	terminalWidthBackup = 80
	boldOn              = "\x1b[1m"
	colorReset          = "\x1b[0m"
)

// TerminalWidth returns the width of stdout, or a fallback when it is not a terminal.
func TerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return terminalWidthBackup
	}
	return width
}

// UseColor reports whether ANSI styling should be written to w.
func UseColor(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(file.Fd()))
}

// Bold wraps s in ANSI bold when enabled.
func Bold(s string, enabled bool) string {
	if !enabled {
		return s
	}
	return boldOn + s + colorReset
}
