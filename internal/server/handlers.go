package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"

	"github.com/whichguy/claude-craft/internal/definitions"
	"github.com/whichguy/claude-craft/internal/dispatch"
	"github.com/whichguy/claude-craft/internal/project"
	"github.com/whichguy/claude-craft/internal/protocol"
)

// handleMessage routes one inbound frame. Malformed input gets an error reply;
// the session stays open.
func (s *Server) handleMessage(ctx context.Context, sess *Session, data []byte) {
	if !gjson.ValidBytes(data) || !gjson.ParseBytes(data).IsObject() {
		sess.logger.Warn("malformed message", "bytes", len(data))
		sess.reply(protocol.Errorf(nil, "Invalid message format"))
		return
	}

	var req protocol.Request
	if err := json.Unmarshal(data, &req); err != nil {
		sess.reply(protocol.Errorf(err, "Invalid message format"))
		return
	}
	sess.logger.Debug("message", "type", req.Type)

	switch req.Type {
	case protocol.TypeChat:
		s.handleChat(ctx, sess, req.Data)
	case protocol.TypeCommand:
		s.handleCommand(ctx, sess, req.Data)
	case protocol.TypeProject:
		s.handleProject(sess, req.Data)
	default:
		sess.reply(protocol.Errorf(nil, "Unknown message type: %s", req.Type))
	}
}

func decodeData(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}

func (s *Server) handleChat(ctx context.Context, sess *Session, raw json.RawMessage) {
	var data protocol.ChatData
	if err := decodeData(raw, &data); err != nil {
		sess.reply(protocol.Errorf(err, "Invalid message format"))
		return
	}

	sess.reply(protocol.Message{Type: protocol.TypeChat, Role: protocol.RoleUser, Message: data.Message})

	res := s.dispatcher.Dispatch(ctx, data.Message, data.Context)
	if res.Err != nil {
		sess.reply(protocol.Errorf(res.Err, "Failed to process chat message"))
		return
	}
	sess.reply(protocol.Message{Type: protocol.TypeChat, Role: protocol.RoleAssistant, Message: res.Text})
}

func (s *Server) handleCommand(ctx context.Context, sess *Session, raw json.RawMessage) {
	var data protocol.CommandData
	if err := decodeData(raw, &data); err != nil {
		sess.reply(protocol.Errorf(err, "Invalid message format"))
		return
	}
	if data.Command == "" {
		sess.reply(protocol.Errorf(nil, "Missing command"))
		return
	}

	inv := dispatch.NewInvocation(data.Command, data.Args)
	res := s.dispatcher.Execute(ctx, inv)

	msg := protocol.Message{Type: protocol.TypeCommandResult, Command: inv.Verb, Result: res.Text}
	if res.Ref != nil {
		msg.Source = string(res.Ref.Tier)
	}
	sess.reply(msg)
}

func (s *Server) handleProject(sess *Session, raw json.RawMessage) {
	var data protocol.ProjectData
	if err := decodeData(raw, &data); err != nil {
		sess.reply(protocol.Errorf(err, "Invalid message format"))
		return
	}

	var result any
	switch data.Action {
	case "scan":
		result = project.Scan(s.opts.ProjectRoot, s.dispatcher.Resolver())
	case "analyze":
		analysis, err := project.Analyze(s.opts.ProjectRoot, s.dispatcher.Resolver(), data.Params)
		if err != nil {
			sess.logger.Warn("analyze incomplete", "err", err)
		}
		result = analysis
	default:
		result = map[string]string{"error": fmt.Sprintf("Unknown project action: %s", data.Action)}
	}

	sess.reply(protocol.Message{Type: protocol.TypeProjectResult, Action: data.Action, Result: result})
}

// Entry is one definition in the HTTP listings.
type Entry struct {
	definitions.Ref
	Description string `json:"description,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"server":      Name,
		"version":     Version,
		"timestamp":   protocol.Timestamp(s.now()),
		"connections": s.hub.Len(),
		"project":     project.Scan(s.opts.ProjectRoot, s.dispatcher.Resolver()),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "healthy",
		"timestamp":   protocol.Timestamp(s.now()),
		"connections": s.hub.Len(),
	})
}

func (s *Server) handleCommands(w http.ResponseWriter, r *http.Request) {
	s.writeListing(w, definitions.KindCommand, "commands")
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	s.writeListing(w, definitions.KindAgent, "agents")
}

func (s *Server) writeListing(w http.ResponseWriter, kind definitions.Kind, key string) {
	refs, err := s.dispatcher.Resolver().ListAll(kind)
	if err != nil {
		s.logger.Warn("listing incomplete", "kind", kind, "err", err)
	}

	entries := make([]Entry, 0, len(refs))
	for _, ref := range refs {
		entries = append(entries, Entry{Ref: ref, Description: definitions.Describe(ref)})
	}
	writeJSON(w, http.StatusOK, map[string]any{key: entries})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
