// Package client provides the reconnecting WebSocket client used by
// `craft attach`.
//
// When the channel drops, the client schedules exactly one reconnect attempt
// after a fixed delay and keeps doing so until a dial succeeds or Close is
// called. Conversation and command history belong to the client, not to a
// connection, so they survive reconnects.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/whichguy/claude-craft/internal/dispatch"
	"github.com/whichguy/claude-craft/internal/protocol"
)

// Status is the connection status shown to the user.
type Status string

const (
	// StatusConnecting is the status before the first dial completes.
	StatusConnecting Status = "connecting"

	// StatusConnected means the channel is open.
	StatusConnected Status = "connected"

	// StatusReconnecting means the channel dropped and a retry is pending.
	StatusReconnecting Status = "reconnecting"

	// StatusDisconnected is terminal; set by Close.
	StatusDisconnected Status = "disconnected"
)

var (
	// ErrNotConnected is returned by sends while the channel is down.
	ErrNotConnected = errors.New("not connected")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("client closed")
)

// Options configures a Client.
type Options struct {
	// URL is the server address. http(s) schemes are rewritten to ws(s) and
	// an empty path becomes /ws.
	URL string

	// ReconnectDelay is the fixed wait before each reconnect attempt. Default 3s.
	ReconnectDelay time.Duration

	// PingInterval is the keepalive period. Default 25s.
	PingInterval time.Duration

	// HandshakeTimeout bounds each dial. Default 10s.
	HandshakeTimeout time.Duration

	// OnMessage receives every decoded server message, in order.
	OnMessage func(protocol.Message)

	// OnStatus receives status transitions.
	OnStatus func(Status)

	// Logger defaults to log.Default().
	Logger *log.Logger
}

// Client is a reconnecting console client.
type Client struct {
	url    string
	opts   Options
	dialer websocket.Dialer
	logger *log.Logger

	// mu guards everything below.
	mu      sync.Mutex
	ctx     context.Context
	conn    *websocket.Conn
	status  Status
	pending *time.Timer
	closed  bool
	done    chan struct{}

	// history is the conversation transcript; lines are the inputs the user sent.
	history []protocol.Message
	lines   []string

	// writeMu serializes writes; gorilla allows one concurrent writer.
	writeMu sync.Mutex

	// statusMu orders status callbacks.
	statusMu sync.Mutex
}

// New creates a client. No connection is made until Connect.
//
// Parameters:
//   - opts: Client options; URL is required
//
// Returns:
//   - *Client: A new client
//   - error: If the URL is invalid
func New(opts Options) (*Client, error) {
	wsURL, err := WebSocketURL(opts.URL)
	if err != nil {
		return nil, err
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = 3 * time.Second
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = 25 * time.Second
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = 10 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Client{
		url:    wsURL,
		opts:   opts,
		dialer: websocket.Dialer{HandshakeTimeout: opts.HandshakeTimeout},
		logger: logger.WithPrefix("client"),
		ctx:    context.Background(),
		status: StatusConnecting,
		done:   make(chan struct{}),
	}, nil
}

// WebSocketURL normalizes a server address into the /ws endpoint URL.
func WebSocketURL(raw string) (string, error) {
	if raw == "" {
		return "", fmt.Errorf("server URL is required")
	}
	if !strings.Contains(raw, "://") {
		raw = "ws://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid server URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported URL scheme %q", u.Scheme)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/ws"
	}
	return u.String(), nil
}

// URL returns the endpoint the client dials.
func (c *Client) URL() string {
	return c.url
}

// Connect dials the server. ctx bounds the client's lifetime: once it is
// done the client closes. If the first dial fails, a retry is scheduled as
// for a dropped channel and the dial error is returned.
//
// Parameters:
//   - ctx: Lifetime of the client
//
// Returns:
//   - error: The first dial error, or ErrClosed
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.ctx = ctx
	c.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			_ = c.Close()
		case <-c.done:
		}
	}()

	if err := c.dial(); err != nil {
		c.scheduleReconnect()
		return err
	}
	return nil
}

// dial opens a new channel unless one is already open.
func (c *Client) dial() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.conn != nil {
		c.mu.Unlock()
		return nil
	}
	ctx := c.ctx
	c.mu.Unlock()

	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("WebSocket connection failed: %w", err)
	}

	c.mu.Lock()
	if c.closed || c.conn != nil {
		c.mu.Unlock()
		_ = conn.Close()
		return nil
	}
	c.conn = conn
	c.mu.Unlock()

	c.logger.Debug("connected", "url", c.url)
	c.setStatus(StatusConnected)

	done := make(chan struct{})
	go c.readLoop(conn, done)
	go c.pingLoop(conn, done)
	return nil
}

// readLoop delivers messages from one connection until it fails.
func (c *Client) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer close(done)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.logger.Debug("read failed", "err", err)
			c.dropped(conn)
			return
		}

		var msg protocol.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Warn("undecodable message", "err", err)
			continue
		}

		c.mu.Lock()
		c.history = append(c.history, msg)
		c.mu.Unlock()

		if c.opts.OnMessage != nil {
			c.opts.OnMessage(msg)
		}
	}
}

// pingLoop keeps one connection alive until its read loop exits.
func (c *Client) pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.opts.HandshakeTimeout))
			c.writeMu.Unlock()
			if err != nil {
				c.logger.Debug("ping failed", "err", err)
				_ = conn.Close()
				return
			}
		}
	}
}

// dropped handles the loss of conn and schedules a reconnect.
func (c *Client) dropped(conn *websocket.Conn) {
	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	closed := c.closed
	c.mu.Unlock()

	_ = conn.Close()
	if closed {
		return
	}
	c.logger.Info("connection lost", "retry_in", c.opts.ReconnectDelay)
	c.scheduleReconnect()
}

// scheduleReconnect arms the retry timer unless one is already pending.
func (c *Client) scheduleReconnect() {
	c.mu.Lock()
	if c.closed || c.pending != nil {
		c.mu.Unlock()
		return
	}
	c.pending = time.AfterFunc(c.opts.ReconnectDelay, c.reconnect)
	c.mu.Unlock()

	c.setStatus(StatusReconnecting)
}

// reconnect is the timer callback. It is a no-op when the channel is
// already open again.
func (c *Client) reconnect() {
	c.mu.Lock()
	c.pending = nil
	open := c.conn != nil
	closed := c.closed
	c.mu.Unlock()
	if open || closed {
		return
	}

	if err := c.dial(); err != nil {
		if errors.Is(err, ErrClosed) {
			return
		}
		c.logger.Debug("reconnect failed", "err", err)
		c.scheduleReconnect()
	}
}

func (c *Client) setStatus(s Status) {
	c.statusMu.Lock()
	defer c.statusMu.Unlock()

	c.mu.Lock()
	if c.status == s || (c.closed && s != StatusDisconnected) {
		c.mu.Unlock()
		return
	}
	c.status = s
	c.mu.Unlock()

	if c.opts.OnStatus != nil {
		c.opts.OnStatus(s)
	}
}

// Status returns the current connection status.
func (c *Client) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// IsConnected reports whether the channel is open.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Send writes a request of the given type.
//
// Parameters:
//   - typ: protocol.TypeChat, TypeCommand or TypeProject
//   - data: The request payload
//
// Returns:
//   - error: ErrNotConnected while the channel is down, or a write error
func (c *Client) Send(typ string, data any) error {
	msg, err := protocol.NewRequest(typ, data)
	if err != nil {
		return err
	}

	c.mu.Lock()
	conn := c.conn
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// SendLine records line in the command history and sends it. Lines starting
// with "/" go out as command requests; anything else is chat.
func (c *Client) SendLine(line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	c.mu.Lock()
	c.lines = append(c.lines, line)
	c.mu.Unlock()

	if strings.HasPrefix(line, dispatch.Prefix) {
		fields := strings.Fields(line)
		return c.Send(protocol.TypeCommand, protocol.CommandData{Command: fields[0], Args: fields[1:]})
	}
	return c.Send(protocol.TypeChat, protocol.ChatData{Message: line})
}

// History returns a copy of every message received so far.
func (c *Client) History() []protocol.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]protocol.Message(nil), c.history...)
}

// Lines returns a copy of the inputs sent so far, oldest first.
func (c *Client) Lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.lines...)
}

// Close stops retries and closes the channel. Safe to call multiple times.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	if c.pending != nil {
		c.pending.Stop()
		c.pending = nil
	}
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	var closeErr error
	if conn != nil {
		c.writeMu.Lock()
		_ = conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client closing"),
			time.Now().Add(time.Second),
		)
		c.writeMu.Unlock()
		closeErr = conn.Close()
	}
	c.setStatus(StatusDisconnected)
	return closeErr
}
