// Package hub provides the notification broadcaster: the registry of live
// sessions and best-effort fan-out of events to all of them.
//
// The session set is owned by a single goroutine (Run). Register, Unregister
// and Broadcast hand requests to that goroutine and wait for them to be
// applied, so a broadcast reaches exactly the sessions registered before it
// and none unregistered before it.
package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ErrClosed is returned once Run has exited.
var ErrClosed = errors.New("hub closed")

// ErrDuplicate is returned when registering an id that is already present.
var ErrDuplicate = errors.New("session already registered")

// Conn is the outbound side of a registered session.
type Conn interface {
	// ID returns the session's unique identity.
	ID() string

	// IsOpen reports whether the session can currently accept messages.
	IsOpen() bool

	// Send queues one serialized message. It must not block on the network.
	// A failing conn is removed from the set and must close itself; it is
	// never sent to again.
	Send(msg []byte) error
}

type membership struct {
	conn Conn
	add  bool
	ack  chan error
}

type fanout struct {
	data []byte
	ack  chan int
}

// Hub is the notification broadcaster.
type Hub struct {
	members chan membership
	fanouts chan fanout
	counts  chan chan int
	done    chan struct{}
	logger  *log.Logger
	now     func() time.Time
}

// New creates a hub. Call Run to start it.
//
// Parameters:
//   - logger: Logger for membership changes and send failures (nil for log.Default())
//
// Returns:
//   - *Hub: A new, not yet running hub
func New(logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.Default()
	}
	return &Hub{
		members: make(chan membership),
		fanouts: make(chan fanout),
		counts:  make(chan chan int),
		done:    make(chan struct{}),
		logger:  logger.WithPrefix("hub"),
		now:     time.Now,
	}
}

// Run owns the session set until ctx is cancelled. It must be called exactly once.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)

	var order []string
	conns := make(map[string]Conn)

	for {
		select {
		case <-ctx.Done():
			h.logger.Debug("stopped", "sessions", len(conns))
			return nil

		case m := <-h.members:
			id := m.conn.ID()
			if m.add {
				if _, ok := conns[id]; ok {
					m.ack <- ErrDuplicate
					continue
				}
				conns[id] = m.conn
				order = append(order, id)
				h.logger.Debug("registered", "session", id, "sessions", len(conns))
				m.ack <- nil
				continue
			}
			if _, ok := conns[id]; ok {
				delete(conns, id)
				order = remove(order, id)
				h.logger.Debug("unregistered", "session", id, "sessions", len(conns))
			}
			m.ack <- nil

		case f := <-h.fanouts:
			delivered := 0
			for _, id := range append([]string(nil), order...) {
				conn := conns[id]
				if !conn.IsOpen() {
					continue
				}
				if err := conn.Send(f.data); err != nil {
					h.logger.Warn("send failed, dropping session", "session", id, "err", err)
					delete(conns, id)
					order = remove(order, id)
					continue
				}
				delivered++
			}
			f.ack <- delivered

		case reply := <-h.counts:
			reply <- len(conns)
		}
	}
}

// Register adds conn to the session set.
//
// Returns:
//   - error: ErrDuplicate if conn.ID() is already registered, ErrClosed, or ctx.Err()
func (h *Hub) Register(ctx context.Context, conn Conn) error {
	return h.membership(ctx, membership{conn: conn, add: true})
}

// Unregister removes conn from the session set. Removing an absent session is a no-op.
func (h *Hub) Unregister(ctx context.Context, conn Conn) error {
	return h.membership(ctx, membership{conn: conn})
}

func (h *Hub) membership(ctx context.Context, m membership) error {
	m.ack = make(chan error, 1)
	select {
	case h.members <- m:
	case <-h.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	return <-m.ack
}

// Broadcast serializes v once and queues it to every open registered session.
//
// When the serialized object has no "timestamp" field, one is added in RFC 3339
// format. Sessions that are not open are skipped; a session whose Send fails is
// unregistered.
//
// Parameters:
//   - ctx: Bounds the wait for the hub goroutine
//   - v: A JSON-serializable object
//
// Returns:
//   - int: Number of sessions the message was queued to
//   - error: Encoding errors, ErrClosed, or ctx.Err()
func (h *Hub) Broadcast(ctx context.Context, v any) (int, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return 0, fmt.Errorf("encode broadcast: %w", err)
	}
	data, err = Stamp(data, h.now())
	if err != nil {
		return 0, err
	}

	f := fanout{data: data, ack: make(chan int, 1)}
	select {
	case h.fanouts <- f:
	case <-h.done:
		return 0, ErrClosed
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	return <-f.ack, nil
}

// Len returns the number of registered sessions.
func (h *Hub) Len() int {
	reply := make(chan int, 1)
	select {
	case h.counts <- reply:
		return <-reply
	case <-h.done:
		return 0
	}
}

// Stamp sets "timestamp" on a serialized JSON object if it is missing.
func Stamp(data []byte, now time.Time) ([]byte, error) {
	if gjson.GetBytes(data, "timestamp").Exists() {
		return data, nil
	}
	out, err := sjson.SetBytes(data, "timestamp", now.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("stamp timestamp: %w", err)
	}
	return out, nil
}

func remove(order []string, id string) []string {
	for i, v := range order {
		if v == id {
			return append(order[:i], order[i+1:]...)
		}
	}
	return order
}
