// Package tui provides the `craft attach` front ends: a Bubble Tea chat view
// for terminals and a line-oriented mode for pipes.
//
// The TUI is never used when stdout is not a terminal or --plain is set.
package tui

import (
	"os"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/whichguy/claude-craft/internal/client"
	"github.com/whichguy/claude-craft/internal/protocol"
	"github.com/whichguy/claude-craft/internal/ui"
)

// ShouldRunTUI returns true if the TUI should be launched.
//
// Parameters:
//   - plain: whether --plain was passed
//
// Returns:
//   - bool: true if the TUI should run
func ShouldRunTUI(plain bool) bool {
	if plain {
		return false
	}
	return terminal(os.Stdin.Fd()) && terminal(os.Stdout.Fd())
}

func terminal(fd uintptr) bool {
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Session is the part of the client the front ends drive.
type Session interface {
	SendLine(line string) error
	Lines() []string
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(ui.Accent)
	helpStyle   = lipgloss.NewStyle().Foreground(ui.Gray)
	promptStyle = lipgloss.NewStyle().Foreground(ui.Accent).Bold(true)
)

// serverMsg carries one message from the server into the model.
type serverMsg protocol.Message

// statusMsg carries a connection status change.
type statusMsg client.Status

// sendErrMsg reports a failed send.
type sendErrMsg struct{ err error }

// connectErrMsg reports a failed first dial; a retry is already scheduled.
type connectErrMsg struct{ err error }

// newSpinner creates a consistently styled braille spinner.
func newSpinner() spinner.Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(ui.Amber)
	return s
}
