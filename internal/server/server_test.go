package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"

	"github.com/whichguy/claude-craft/internal/definitions"
	"github.com/whichguy/claude-craft/internal/dispatch"
	"github.com/whichguy/claude-craft/internal/hub"
	"github.com/whichguy/claude-craft/internal/protocol"
	"github.com/whichguy/claude-craft/internal/watcher"
)

type testEnv struct {
	srv     *Server
	hub     *hub.Hub
	ts      *httptest.Server
	project string
}

func newTestEnv(t *testing.T, responder dispatch.Responder) *testEnv {
	t.Helper()
	base := t.TempDir()
	projectDir := filepath.Join(base, "proj")
	user := filepath.Join(base, "user")
	shared := filepath.Join(base, "shared")

	writeFile(t, filepath.Join(projectDir, ".claude", "commands", "deploy.md"), "---\ndescription: Deploy\n---\nDeploying $1")
	writeFile(t, filepath.Join(shared, "commands", "deploy.md"), "shared deploy")
	writeFile(t, filepath.Join(user, "agents", "helper.json"), `{"description":"Helps"}`)

	h := hub.New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = h.Run(ctx)
		close(done)
	}()

	d := dispatch.New(dispatch.Options{
		Resolver:    definitions.NewLayeredResolver(projectDir, user, shared),
		Templates:   definitions.DefaultTemplatePaths(projectDir, user, base),
		ProjectRoot: projectDir,
		Responder:   responder,
	})
	srv := New(h, d, Options{ProjectRoot: projectDir})
	ts := httptest.NewServer(srv.Handler())

	t.Cleanup(func() {
		ts.Close()
		cancel()
		<-done
	})
	return &testEnv{srv: srv, hub: h, ts: ts, project: projectDir}
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

// dial connects and consumes the welcome message.
func (e *testEnv) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	welcome := readMessage(t, conn)
	if welcome.Type != protocol.TypeSystem || welcome.Message != protocol.WelcomeText {
		t.Fatalf("first message = %+v, want welcome", welcome)
	}
	if welcome.Timestamp == "" {
		t.Errorf("welcome has no timestamp")
	}
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) protocol.Message {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	var m protocol.Message
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return m
}

func send(t *testing.T, conn *websocket.Conn, typ string, data any) {
	t.Helper()
	msg, err := protocol.NewRequest(typ, data)
	if err != nil {
		t.Fatal(err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSession_Chat(t *testing.T) {
	env := newTestEnv(t, dispatch.ResponderFunc(func(_ context.Context, msg string, c map[string]any) (string, error) {
		return "echo: " + msg, nil
	}))
	conn := env.dial(t)

	send(t, conn, protocol.TypeChat, protocol.ChatData{Message: "hello"})

	user := readMessage(t, conn)
	if user.Type != protocol.TypeChat || user.Role != protocol.RoleUser || user.Message != "hello" {
		t.Errorf("first reply = %+v, want user echo", user)
	}
	reply := readMessage(t, conn)
	if reply.Role != protocol.RoleAssistant || reply.Message != "echo: hello" {
		t.Errorf("second reply = %+v, want assistant reply", reply)
	}
}

func TestSession_ChatSlashCommand(t *testing.T) {
	env := newTestEnv(t, nil)
	conn := env.dial(t)

	send(t, conn, protocol.TypeChat, protocol.ChatData{Message: "/deploy staging"})
	_ = readMessage(t, conn)
	reply := readMessage(t, conn)
	if !strings.HasSuffix(reply.Message, "Deploying staging") {
		t.Errorf("assistant reply = %q, want rendered command", reply.Message)
	}
}

func TestSession_ChatResponderFailure(t *testing.T) {
	env := newTestEnv(t, dispatch.ResponderFunc(func(context.Context, string, map[string]any) (string, error) {
		return "", errors.New("backend unavailable")
	}))
	conn := env.dial(t)

	send(t, conn, protocol.TypeChat, protocol.ChatData{Message: "hi"})
	_ = readMessage(t, conn)
	m := readMessage(t, conn)
	if m.Type != protocol.TypeError || m.Message != "Failed to process chat message" {
		t.Errorf("reply = %+v, want error", m)
	}
	if !strings.Contains(m.Error, "backend unavailable") {
		t.Errorf("error detail = %q", m.Error)
	}
}

func TestSession_Command(t *testing.T) {
	env := newTestEnv(t, nil)
	conn := env.dial(t)

	send(t, conn, protocol.TypeCommand, protocol.CommandData{Command: "deploy", Args: []string{"staging"}})
	m := readMessage(t, conn)
	if m.Type != protocol.TypeCommandResult || m.Command != "/deploy" {
		t.Fatalf("reply = %+v, want command_result for /deploy", m)
	}
	if m.Source != "project" {
		t.Errorf("Source = %q, want project", m.Source)
	}
	if result, _ := m.Result.(string); !strings.HasSuffix(result, "Deploying staging") {
		t.Errorf("Result = %v", m.Result)
	}

	send(t, conn, protocol.TypeCommand, protocol.CommandData{Command: "/ghost"})
	m = readMessage(t, conn)
	if result, _ := m.Result.(string); !strings.Contains(result, "not found") {
		t.Errorf("Result = %v, want not found", m.Result)
	}
}

func TestSession_MalformedInputKeepsConnection(t *testing.T) {
	env := newTestEnv(t, nil)
	conn := env.dial(t)

	tests := []struct {
		raw  string
		want string
	}{
		{`{not json`, "Invalid message format"},
		{`"just a string"`, "Invalid message format"},
		{`{"type":"bogus"}`, "Unknown message type: bogus"},
		{`{"type":"command","data":{"command":"x","args":[1,2]}}`, "Invalid message format"},
		{`{"type":"command","data":{}}`, "Missing command"},
	}
	for _, tt := range tests {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(tt.raw)); err != nil {
			t.Fatal(err)
		}
		m := readMessage(t, conn)
		if m.Type != protocol.TypeError || m.Message != tt.want {
			t.Errorf("reply to %s = %+v, want error %q", tt.raw, m, tt.want)
		}
	}

	send(t, conn, protocol.TypeCommand, protocol.CommandData{Command: "/help"})
	if m := readMessage(t, conn); m.Type != protocol.TypeCommandResult {
		t.Errorf("connection unusable after malformed input: %+v", m)
	}
}

func TestSession_Project(t *testing.T) {
	env := newTestEnv(t, nil)
	conn := env.dial(t)

	send(t, conn, protocol.TypeProject, protocol.ProjectData{Action: "scan"})
	m := readMessage(t, conn)
	raw, _ := json.Marshal(m.Result)
	if m.Type != protocol.TypeProjectResult || m.Action != "scan" {
		t.Fatalf("reply = %+v", m)
	}
	if !gjson.GetBytes(raw, "hasClaudeDir").Bool() || gjson.GetBytes(raw, "commands").Int() != 1 {
		t.Errorf("scan result = %s", raw)
	}

	send(t, conn, protocol.TypeProject, protocol.ProjectData{Action: "analyze"})
	m = readMessage(t, conn)
	raw, _ = json.Marshal(m.Result)
	if got := gjson.GetBytes(raw, "shadowedCommands.0").String(); got != "deploy" {
		t.Errorf("analyze shadowedCommands = %s", raw)
	}

	send(t, conn, protocol.TypeProject, protocol.ProjectData{Action: "explode"})
	m = readMessage(t, conn)
	raw, _ = json.Marshal(m.Result)
	if got := gjson.GetBytes(raw, "error").String(); got != "Unknown project action: explode" {
		t.Errorf("unknown action result = %s", raw)
	}
}

func TestFileEventBroadcast(t *testing.T) {
	env := newTestEnv(t, nil)
	open1 := env.dial(t)
	open2 := env.dial(t)
	gone := env.dial(t)
	eventually(t, func() bool { return env.hub.Len() == 3 })

	_ = gone.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = gone.Close()
	eventually(t, func() bool { return env.hub.Len() == 2 })

	path := filepath.Join(env.project, ".claude", "commands", "new.md")
	env.srv.HandleWatchEvent(context.Background(), watcher.Event{Kind: watcher.Added, Path: path})

	for _, conn := range []*websocket.Conn{open1, open2} {
		m := readMessage(t, conn)
		if m.Type != protocol.TypeFileAdd || m.File != path || m.Message != "File added: new.md" {
			t.Errorf("broadcast = %+v, want file_add for %s", m, path)
		}
		if m.Timestamp == "" {
			t.Errorf("broadcast has no timestamp")
		}
	}

	env.srv.HandleWatchEvent(context.Background(), watcher.Event{Kind: watcher.Changed, Path: path})
	if m := readMessage(t, open1); m.Type != protocol.TypeFileChange || m.Message != "File changed: new.md" {
		t.Errorf("broadcast = %+v, want file_change", m)
	}
}

func TestSlowPeerIsDisconnected(t *testing.T) {
	env := newTestEnv(t, dispatch.ResponderFunc(func(context.Context, string, map[string]any) (string, error) {
		return "still here", nil
	}))
	slow := env.dial(t)
	eventually(t, func() bool { return env.hub.Len() == 1 })

	// The peer reads nothing until its queue and socket buffers overflow.
	payload := strings.Repeat("x", 64<<10)
	for i := 0; i < 600 && env.hub.Len() > 0; i++ {
		if _, err := env.hub.Broadcast(context.Background(), protocol.Message{Type: protocol.TypeSystem, Message: payload}); err != nil {
			t.Fatalf("Broadcast() error = %v", err)
		}
	}
	eventually(t, func() bool { return env.hub.Len() == 0 })

	send(t, slow, protocol.TypeChat, protocol.ChatData{Message: "hello?"})

	for {
		_ = slow.SetReadDeadline(time.Now().Add(10 * time.Second))
		_, data, err := slow.ReadMessage()
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				t.Fatal("dropped session left the connection open")
			}
			return
		}
		if gjson.GetBytes(data, "role").String() == protocol.RoleAssistant {
			t.Fatalf("dropped session answered chat: %s", data)
		}
	}
}

func TestHTTP_Endpoints(t *testing.T) {
	env := newTestEnv(t, nil)
	env.dial(t)
	eventually(t, func() bool { return env.hub.Len() == 1 })

	get := func(path string) []byte {
		t.Helper()
		resp, err := http.Get(env.ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s error = %v", path, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("GET %s status = %d", path, resp.StatusCode)
		}
		if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("GET %s Content-Type = %q", path, ct)
		}
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			t.Fatal(err)
		}
		return body
	}

	health := get("/health")
	if gjson.GetBytes(health, "status").String() != "healthy" || gjson.GetBytes(health, "connections").Int() != 1 {
		t.Errorf("/health = %s", health)
	}

	status := get("/api/status")
	if gjson.GetBytes(status, "server").String() != Name || gjson.GetBytes(status, "version").String() != Version {
		t.Errorf("/api/status = %s", status)
	}
	if gjson.GetBytes(status, "project.root").String() != env.project {
		t.Errorf("/api/status project.root = %s", gjson.GetBytes(status, "project.root"))
	}
	if !gjson.GetBytes(status, "project.files").IsArray() {
		t.Errorf("/api/status project.files is not an array")
	}

	commands := get("/api/commands")
	if n := gjson.GetBytes(commands, "commands.#").Int(); n != 2 {
		t.Errorf("/api/commands count = %d, want 2 (shadowed entries included)", n)
	}
	first := gjson.GetBytes(commands, "commands.0")
	if first.Get("name").String() != "deploy" || first.Get("source").String() != "project" || first.Get("description").String() != "Deploy" {
		t.Errorf("/api/commands[0] = %s", first.Raw)
	}

	agents := get("/api/agents")
	if gjson.GetBytes(agents, "agents.0.description").String() != "Helps" {
		t.Errorf("/api/agents = %s", agents)
	}
}

func TestCheckLocalOrigin(t *testing.T) {
	tests := []struct {
		origin string
		host   string
		want   bool
	}{
		{"", "example.com", true},
		{"http://localhost:3000", "localhost:3000", true},
		{"http://127.0.0.1:5173", "localhost:3000", true},
		{"http://devbox:3000", "devbox:3000", true},
		{"http://evil.example", "localhost:3000", false},
		{"::bad", "localhost:3000", false},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		r.Host = tt.host
		if tt.origin != "" {
			r.Header.Set("Origin", tt.origin)
		}
		if got := checkLocalOrigin(r); got != tt.want {
			t.Errorf("checkLocalOrigin(%q, %q) = %v, want %v", tt.origin, tt.host, got, tt.want)
		}
	}
}

func TestState_String(t *testing.T) {
	for s, want := range map[State]string{StateConnecting: "connecting", StateOpen: "open", StateClosed: "closed", State(9): "unknown"} {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", s, got, want)
		}
	}
}
