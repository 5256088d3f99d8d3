package server

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/whichguy/claude-craft/internal/protocol"
)

// State is a session lifecycle state.
type State int32

const (
	// StateConnecting is the state between upgrade and registration.
	StateConnecting State = iota

	// StateOpen means the session is registered and receives broadcasts.
	StateOpen

	// StateClosed is terminal.
	StateClosed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

var (
	// ErrSessionClosed is returned by Send after the session has closed.
	ErrSessionClosed = errors.New("session closed")

	// ErrSendQueueFull is returned by Send when the peer is not draining messages.
	ErrSendQueueFull = errors.New("send queue full")
)

// sendQueueSize bounds messages waiting for the write pump.
const sendQueueSize = 256

// Session wraps one WebSocket connection.
type Session struct {
	id       string
	remote   string
	openedAt time.Time

	conn  *websocket.Conn
	srv   *Server
	state atomic.Int32

	// send is never closed; the write pump exits on closed.
	send      chan []byte
	closed    chan struct{}
	closeOnce sync.Once

	logger *log.Logger
}

func newSession(srv *Server, conn *websocket.Conn, id, remote string) *Session {
	return &Session{
		id:       id,
		remote:   remote,
		openedAt: srv.now(),
		conn:     conn,
		srv:      srv,
		send:     make(chan []byte, sendQueueSize),
		closed:   make(chan struct{}),
		logger:   srv.logger.With("session", id),
	}
}

// ID implements hub.Conn.
func (s *Session) ID() string { return s.id }

// OpenedAt returns when the connection was accepted.
func (s *Session) OpenedAt() time.Time { return s.openedAt }

// State returns the current lifecycle state.
func (s *Session) State() State { return State(s.state.Load()) }

// IsOpen implements hub.Conn.
func (s *Session) IsOpen() bool { return s.State() == StateOpen }

// Send implements hub.Conn. It queues msg without blocking; when the queue is
// full the session closes.
func (s *Session) Send(msg []byte) error {
	if !s.IsOpen() {
		return ErrSessionClosed
	}
	return s.enqueue(msg)
}

func (s *Session) enqueue(msg []byte) error {
	select {
	case <-s.closed:
		return ErrSessionClosed
	default:
	}
	select {
	case s.send <- msg:
		return nil
	default:
		// A peer that stops draining is disconnected. close unregisters, and
		// the hub may be the caller, so it runs on its own goroutine.
		go s.close()
		return ErrSendQueueFull
	}
}

// reply stamps and queues a message for this session only.
func (s *Session) reply(m protocol.Message) {
	if m.Timestamp == "" {
		m.Timestamp = protocol.Timestamp(s.srv.now())
	}
	data, err := json.Marshal(m)
	if err != nil {
		s.logger.Error("encode reply", "type", m.Type, "err", err)
		return
	}
	if err := s.enqueue(data); err != nil {
		s.logger.Debug("reply dropped", "type", m.Type, "err", err)
	}
}

// run drives the session from Connecting to Closed. It blocks until the
// connection ends or the server shuts down.
func (s *Session) run(ctx context.Context) {
	go s.writePump()
	go func() {
		select {
		case <-ctx.Done():
			s.close()
		case <-s.closed:
		}
	}()

	// The welcome is queued before registration so it precedes any broadcast.
	s.reply(protocol.Welcome())
	s.state.Store(int32(StateOpen))
	if err := s.srv.hub.Register(ctx, s); err != nil {
		s.logger.Error("register session", "err", err)
		s.close()
		return
	}
	s.logger.Info("client connected", "remote", s.remote)

	s.readPump(ctx)
}

// close moves the session to Closed and unregisters it. Safe to call repeatedly.
func (s *Session) close() {
	s.closeOnce.Do(func() {
		s.state.Store(int32(StateClosed))
		close(s.closed)

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := s.srv.hub.Unregister(ctx, s); err != nil {
			s.logger.Debug("unregister session", "err", err)
		}
		s.logger.Info("client disconnected", "remote", s.remote,
			"duration", s.srv.now().Sub(s.openedAt).Round(time.Millisecond))
	})
}

// readPump handles inbound messages one at a time until the connection fails.
func (s *Session) readPump(ctx context.Context) {
	defer s.close()

	s.conn.SetReadLimit(s.srv.opts.MaxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(s.srv.opts.PongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.srv.opts.PongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("read failed", "err", err)
			}
			return
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(s.srv.opts.PongWait))
		s.srv.handleMessage(ctx, s, data)
	}
}

// writePump is the only writer on the connection.
func (s *Session) writePump() {
	ticker := time.NewTicker(s.srv.opts.PingInterval)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()

	for {
		select {
		case msg := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.srv.opts.WriteWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				s.logger.Debug("write failed", "err", err)
				s.close()
				return
			}

		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.srv.opts.WriteWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.close()
				return
			}

		case <-s.closed:
			s.drain()
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.srv.opts.WriteWait))
			_ = s.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "server closing"))
			return
		}
	}
}

// drain flushes already-queued messages on a best-effort basis.
func (s *Session) drain() {
	for {
		select {
		case msg := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.srv.opts.WriteWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		default:
			return
		}
	}
}
