package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/whichguy/claude-craft/internal/client"
	"github.com/whichguy/claude-craft/internal/protocol"
)

// quitWords end the attach session without reaching the server.
var quitWords = map[string]bool{"/quit": true, "/exit": true}

// attachModel is the Bubble Tea model for `craft attach`.
type attachModel struct {
	url     string
	session Session
	connect func() error

	input   textinput.Model
	spinner spinner.Model
	status  client.Status

	// transcript holds rendered entries, oldest first.
	transcript []string

	// recall indexes into session.Lines() while browsing with up/down;
	// -1 when not browsing.
	recall int

	width  int
	height int
}

func newAttachModel(url string, session Session, connect func() error) attachModel {
	ti := textinput.New()
	ti.Placeholder = "message or /command"
	ti.Prompt = promptStyle.Render("› ")
	ti.CharLimit = 4096
	ti.Focus()

	return attachModel{
		url:     url,
		session: session,
		connect: connect,
		input:   ti,
		spinner: newSpinner(),
		status:  client.StatusConnecting,
		recall:  -1,
	}
}

func (m attachModel) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink, m.spinner.Tick}
	if m.connect != nil {
		connect := m.connect
		cmds = append(cmds, func() tea.Msg {
			if err := connect(); err != nil {
				return connectErrMsg{err: err}
			}
			return nil
		})
	}
	return tea.Batch(cmds...)
}

// Update handles all incoming messages and key events.
func (m attachModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = msg.Width - 4
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case serverMsg:
		m.transcript = append(m.transcript, Format(protocol.Message(msg), true))
		return m, nil

	case statusMsg:
		m.status = client.Status(msg)
		return m, nil

	case sendErrMsg:
		m.transcript = append(m.transcript, Format(protocol.Errorf(msg.err, "Message not sent"), true))
		return m, nil

	case connectErrMsg:
		m.transcript = append(m.transcript, Format(protocol.Message{Type: protocol.TypeSystem, Message: fmt.Sprintf("Server unavailable, retrying (%v)", msg.err)}, true))
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m attachModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		return m, tea.Quit

	case tea.KeyEnter:
		line := strings.TrimSpace(m.input.Value())
		m.input.SetValue("")
		m.recall = -1
		if line == "" {
			return m, nil
		}
		if quitWords[line] {
			return m, tea.Quit
		}
		session := m.session
		return m, func() tea.Msg {
			if err := session.SendLine(line); err != nil {
				return sendErrMsg{err: err}
			}
			return nil
		}

	case tea.KeyUp:
		lines := m.session.Lines()
		if len(lines) == 0 {
			return m, nil
		}
		switch {
		case m.recall == -1:
			m.recall = len(lines) - 1
		case m.recall > 0:
			m.recall--
		}
		m.input.SetValue(lines[m.recall])
		m.input.CursorEnd()
		return m, nil

	case tea.KeyDown:
		lines := m.session.Lines()
		if m.recall == -1 {
			return m, nil
		}
		if m.recall >= len(lines)-1 {
			m.recall = -1
			m.input.SetValue("")
			return m, nil
		}
		m.recall++
		m.input.SetValue(lines[m.recall])
		m.input.CursorEnd()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the header, the tail of the transcript, and the input line.
func (m attachModel) View() string {
	var b strings.Builder

	status := statusLine(string(m.status), true)
	if m.status == client.StatusReconnecting || m.status == client.StatusConnecting {
		status = m.spinner.View() + " " + status
	}
	b.WriteString(headerStyle.Render("claude-craft") + "  " + helpStyle.Render(m.url) + "  " + status)
	b.WriteString("\n\n")

	entries := m.transcript
	if m.height > 0 {
		// Header, blank line, input and help take four rows.
		entries = tail(entries, m.height-4)
	}
	for _, e := range entries {
		b.WriteString(e)
		b.WriteString("\n")
	}

	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("enter send · ↑/↓ history · /quit or esc to leave"))
	return b.String()
}

// tail returns the newest entries whose lines fit in rows.
func tail(entries []string, rows int) []string {
	if rows <= 0 {
		return nil
	}
	used := 0
	i := len(entries)
	for i > 0 {
		n := strings.Count(entries[i-1], "\n") + 1
		if used+n > rows {
			break
		}
		used += n
		i--
	}
	return entries[i:]
}

// Attach runs the chat TUI against the server until the user quits or ctx
// is cancelled.
//
// Parameters:
//   - ctx: Lifetime of the session
//   - opts: Client options; OnMessage and OnStatus are set here
//
// Returns:
//   - error: Client setup or Bubble Tea runtime errors
func Attach(ctx context.Context, opts client.Options) error {
	var p *tea.Program
	opts.OnMessage = func(m protocol.Message) { p.Send(serverMsg(m)) }
	opts.OnStatus = func(s client.Status) { p.Send(statusMsg(s)) }

	c, err := client.New(opts)
	if err != nil {
		return err
	}
	defer c.Close()

	model := newAttachModel(c.URL(), c, func() error { return c.Connect(ctx) })
	p = tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err = p.Run()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}
