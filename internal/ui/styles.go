// Package ui provides terminal styling and printing helpers for the craft CLI.
package ui

import (
	"github.com/charmbracelet/lipgloss"
)

// Palette.
var (
	// Accent is the primary accent color.
	Accent = lipgloss.Color("#D97757")

	Teal    = lipgloss.Color("#14B8A6")
	Red     = lipgloss.Color("#EF4444")
	Amber   = lipgloss.Color("#F59E0B")
	Green   = lipgloss.Color("#22C55E")
	Gray    = lipgloss.Color("#6B7280")
	DimGray = lipgloss.Color("#9CA3AF")
)

// Text styles.
var (
	// TitleStyle for main headings
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Accent)

	// SuccessStyle for success messages
	SuccessStyle = lipgloss.NewStyle().
			Foreground(Green).
			Bold(true)

	// ErrorStyle for error messages
	ErrorStyle = lipgloss.NewStyle().
			Foreground(Red).
			Bold(true)

	// WarningStyle for warning messages
	WarningStyle = lipgloss.NewStyle().
			Foreground(Amber)

	// InfoStyle for informational messages
	InfoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#E5E7EB"))

	// DimStyle for less important text
	DimStyle = lipgloss.NewStyle().
			Foreground(DimGray)

	// LinkStyle for URLs
	LinkStyle = lipgloss.NewStyle().
			Foreground(Accent).
			Underline(true)
)

// Transcript styles, used by the attach client.
var (
	// UserStyle prefixes the user's own lines
	UserStyle = lipgloss.NewStyle().
			Foreground(Teal).
			Bold(true)

	// AssistantStyle prefixes replies
	AssistantStyle = lipgloss.NewStyle().
			Foreground(Accent).
			Bold(true)

	// SystemStyle for welcome and file notifications
	SystemStyle = lipgloss.NewStyle().
			Foreground(DimGray).
			Italic(true)

	// BoxStyle frames command results
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Accent).
			Padding(0, 1)
)

// Table styles.
var (
	// TableHeaderStyle for table headers
	TableHeaderStyle = lipgloss.NewStyle().
				Foreground(DimGray).
				Bold(true)

	// TableCellStyle for table cells
	TableCellStyle = lipgloss.NewStyle()
)

// Connection status styles.
var (
	StatusConnectedStyle    = lipgloss.NewStyle().Foreground(Green)
	StatusReconnectingStyle = lipgloss.NewStyle().Foreground(Amber)
	StatusDownStyle         = lipgloss.NewStyle().Foreground(Red)
)
