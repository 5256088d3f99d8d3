package tui

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/whichguy/claude-craft/internal/protocol"
	"github.com/whichguy/claude-craft/internal/ui"
)

// Format renders a server message for the transcript. styled selects
// lipgloss styling; plain mode passes false.
func Format(m protocol.Message, styled bool) string {
	style := func(s lipgloss.Style, text string) string {
		if !styled {
			return text
		}
		return s.Render(text)
	}

	switch m.Type {
	case protocol.TypeSystem, protocol.TypeFileAdd, protocol.TypeFileChange:
		return style(ui.SystemStyle, "· "+m.Message)

	case protocol.TypeChat:
		if m.Role == protocol.RoleUser {
			return style(ui.UserStyle, "you") + " " + m.Message
		}
		return style(ui.AssistantStyle, "claude") + " " + m.Message

	case protocol.TypeCommandResult:
		label := m.Command
		if m.Source != "" {
			label += " · " + m.Source
		}
		body := fmt.Sprint(m.Result)
		if styled {
			return ui.BoxStyle.Render(ui.TitleStyle.Render(label) + "\n" + body)
		}
		return "[" + label + "]\n" + body

	case protocol.TypeProjectResult:
		raw, err := json.MarshalIndent(m.Result, "", "  ")
		if err != nil {
			raw = []byte(fmt.Sprint(m.Result))
		}
		return style(ui.TitleStyle, "project "+m.Action) + "\n" + string(raw)

	case protocol.TypeError:
		text := "error: " + m.Message
		if m.Error != "" {
			text += " (" + m.Error + ")"
		}
		return style(ui.ErrorStyle, text)

	default:
		return style(ui.DimStyle, strings.TrimSpace(m.Type+" "+m.Message))
	}
}

// statusLine renders the connection indicator shown in the header.
func statusLine(s string, styled bool) string {
	if !styled {
		return s
	}
	switch s {
	case "connected":
		return ui.StatusConnectedStyle.Render("● " + s)
	case "reconnecting", "connecting":
		return ui.StatusReconnectingStyle.Render(s)
	default:
		return ui.StatusDownStyle.Render("● " + s)
	}
}
