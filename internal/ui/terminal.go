// Package ui provides terminal styling and output helpers for the rwm CLI.
package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// IsTerminal reports whether stdout is connected to a TTY.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// ShouldUseColor decides whether ANSI color belongs in the output.
// NO_COLOR (https://no-color.org/) and CLICOLOR=0 disable it,
// CLICOLOR_FORCE enables it even when piped, and otherwise color
// follows TTY detection.
func ShouldUseColor() bool {
	switch {
	case os.Getenv("NO_COLOR") != "":
		return false
	case os.Getenv("CLICOLOR") == "0":
		return false
	case os.Getenv("CLICOLOR_FORCE") != "":
		return true
	}
	return IsTerminal()
}

// DisableColor forces plain output for the whole process. Lipgloss
// styles degrade to no-ops under the ASCII profile.
func DisableColor() {
	lipgloss.SetColorProfile(termenv.Ascii)
}

// ShouldUseEmoji reports whether emoji decorations belong in the
// output. Piped output stays machine-readable, and RWM_NO_EMOJI
// disables them outright.
func ShouldUseEmoji() bool {
	if os.Getenv("RWM_NO_EMOJI") != "" {
		return false
	}
	return IsTerminal()
}

// GetWidth returns the terminal width, or 80 when it cannot be read.
func GetWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return 80
	}
	return w
}
