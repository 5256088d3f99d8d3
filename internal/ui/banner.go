package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

const tagline = "Local console for Claude commands and agents"

// PrintBanner prints the product line with version info.
//
// Parameters:
//   - version: The CLI version string to display
func PrintBanner(version string) {
	if quietMode {
		return
	}
	name := lipgloss.NewStyle().Foreground(Accent).Bold(true).Render("claude-craft")
	info := lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	fmt.Fprintf(out, "%s %s\n", name, info.Render("v"+version))
	fmt.Fprintln(out, info.Italic(true).Render(tagline))
	fmt.Fprintln(out)
}
