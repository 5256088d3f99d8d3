// Package protocol defines the JSON messages exchanged over the console
// WebSocket. Every message is an object with a "type" discriminator.
package protocol

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Server-to-client message types.
const (
	TypeSystem        = "system"
	TypeChat          = "chat"
	TypeCommandResult = "command_result"
	TypeProjectResult = "project_result"
	TypeError         = "error"
	TypeFileChange    = "file_change"
	TypeFileAdd       = "file_add"
)

// Client-to-server message types. TypeChat is shared by both directions.
const (
	TypeCommand = "command"
	TypeProject = "project"
)

// Chat roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// WelcomeText is the message of the system greeting sent to every new session.
const WelcomeText = "Connected to Claude Craft Server"

// Message is a server-to-client message. Fields a type does not use are
// omitted; the fields it does use are always present, even when empty.
type Message struct {
	// Type is the discriminator.
	Type string `json:"type"`

	// Role is set on chat messages.
	Role string `json:"role,omitempty"`

	// Message is the human-readable text.
	Message string `json:"message,omitempty"`

	// Command is the verb of a command_result.
	Command string `json:"command,omitempty"`

	// Result is the command output (string) or project action result (object).
	Result any `json:"result,omitempty"`

	// Action is the project action of a project_result.
	Action string `json:"action,omitempty"`

	// Source is the tier a file-backed command resolved from.
	Source string `json:"source,omitempty"`

	// File is the path of a file_add or file_change event.
	File string `json:"file,omitempty"`

	// Error carries optional detail on error messages.
	Error string `json:"error,omitempty"`

	// Timestamp is RFC 3339.
	Timestamp string `json:"timestamp,omitempty"`
}

// required lists the fields each message type always carries.
var required = map[string][]string{
	TypeSystem:        {"message"},
	TypeChat:          {"role", "message"},
	TypeError:         {"message"},
	TypeFileAdd:       {"file", "message"},
	TypeFileChange:    {"file", "message"},
	TypeCommandResult: {"command", "result"},
	TypeProjectResult: {"action", "result"},
}

// MarshalJSON encodes m, adding empty values for required fields that
// omitempty dropped. A missing project result is encoded as null.
func (m Message) MarshalJSON() ([]byte, error) {
	type plain Message
	data, err := json.Marshal(plain(m))
	if err != nil {
		return nil, err
	}
	for _, field := range required[m.Type] {
		if gjson.GetBytes(data, field).Exists() {
			continue
		}
		var empty any = ""
		if field == "result" && m.Type == TypeProjectResult {
			empty = nil
		}
		if data, err = sjson.SetBytes(data, field, empty); err != nil {
			return nil, fmt.Errorf("encode %s field %s: %w", m.Type, field, err)
		}
	}
	return data, nil
}

// Request is a client-to-server message.
type Request struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// ChatData is the payload of a chat request.
type ChatData struct {
	Message string         `json:"message"`
	Context map[string]any `json:"context,omitempty"`
}

// CommandData is the payload of a command request.
type CommandData struct {
	Command string   `json:"command"`
	Args    []string `json:"args,omitempty"`
}

// ProjectData is the payload of a project request.
type ProjectData struct {
	Action string         `json:"action"`
	Params map[string]any `json:"params,omitempty"`
}

// Timestamp formats t for the wire.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// Welcome returns the greeting sent when a session opens.
func Welcome() Message {
	return Message{Type: TypeSystem, Message: WelcomeText}
}

// Errorf returns an error message with optional detail.
func Errorf(detail error, format string, args ...any) Message {
	m := Message{Type: TypeError, Message: fmt.Sprintf(format, args...)}
	if detail != nil {
		m.Error = detail.Error()
	}
	return m
}

// FileEvent returns the broadcast for a watched file. added selects file_add
// over file_change.
func FileEvent(path string, added bool) Message {
	if added {
		return Message{Type: TypeFileAdd, File: path, Message: "File added: " + filepath.Base(path)}
	}
	return Message{Type: TypeFileChange, File: path, Message: "File changed: " + filepath.Base(path)}
}

// NewRequest encodes a client request.
//
// Parameters:
//   - typ: TypeChat, TypeCommand or TypeProject
//   - data: The payload (ChatData, CommandData or ProjectData)
//
// Returns:
//   - []byte: The serialized request
//   - error: Any encoding error
func NewRequest(typ string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s data: %w", typ, err)
	}
	return json.Marshal(Request{Type: typ, Data: raw})
}
