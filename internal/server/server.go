// Package server provides the console's HTTP and WebSocket surface.
//
// Each WebSocket connection becomes a Session registered with the hub.
// Inbound messages are handled in order, one at a time per session; replies go
// to the originating session only, while file events reach every session via
// the hub.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/whichguy/claude-craft/internal/dispatch"
	"github.com/whichguy/claude-craft/internal/hub"
	"github.com/whichguy/claude-craft/internal/protocol"
	"github.com/whichguy/claude-craft/internal/watcher"
)

// Name and Version are reported by /api/status.
const (
	Name    = "Claude Craft Server"
	Version = "1.0.0"
)

// Options configures a Server.
type Options struct {
	// ProjectRoot is the project directory reported by scans.
	ProjectRoot string

	// StaticDir, when set, is served at "/".
	StaticDir string

	// PingInterval is the keepalive period. Default 30s.
	PingInterval time.Duration

	// PongWait is how long a silent peer is kept. Default 60s.
	PongWait time.Duration

	// WriteWait bounds a single write. Default 10s.
	WriteWait time.Duration

	// MaxMessageSize limits inbound messages. Default 64 KiB.
	MaxMessageSize int64

	// Logger defaults to log.Default().
	Logger *log.Logger
}

func (o *Options) setDefaults() {
	if o.PingInterval == 0 {
		o.PingInterval = 30 * time.Second
	}
	if o.PongWait == 0 {
		o.PongWait = 60 * time.Second
	}
	if o.WriteWait == 0 {
		o.WriteWait = 10 * time.Second
	}
	if o.MaxMessageSize == 0 {
		o.MaxMessageSize = 64 * 1024
	}
	if o.Logger == nil {
		o.Logger = log.Default()
	}
}

// Server serves the console.
type Server struct {
	opts       Options
	hub        *hub.Hub
	dispatcher *dispatch.Dispatcher
	upgrader   websocket.Upgrader
	logger     *log.Logger
	now        func() time.Time

	// baseCtx bounds sessions; set by Serve.
	baseCtx context.Context
}

// New creates a server.
//
// Parameters:
//   - h: A running hub
//   - d: The command dispatcher
//   - opts: Server options
//
// Returns:
//   - *Server: A new server
func New(h *hub.Hub, d *dispatch.Dispatcher, opts Options) *Server {
	opts.setDefaults()
	return &Server{
		opts:       opts,
		hub:        h,
		dispatcher: d,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkLocalOrigin,
		},
		logger:  opts.Logger.WithPrefix("server"),
		now:     time.Now,
		baseCtx: context.Background(),
	}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/ws", s.handleWS)
	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/commands", s.handleCommands)
		r.Get("/agents", s.handleAgents)
	})

	if s.opts.StaticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(s.opts.StaticDir)))
	}
	return r
}

// Serve listens on addr until ctx is cancelled, then shuts down gracefully
// and closes every session.
//
// Parameters:
//   - ctx: Lifetime of the server
//   - addr: host:port to listen on
//
// Returns:
//   - error: Listen or serve errors; nil after a clean shutdown
func (s *Server) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener is Serve on an existing listener.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	s.baseCtx = ctx
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	s.logger.Info("listening", "addr", ln.Addr().String())

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// HandleWatchEvent broadcasts a file event to every open session.
func (s *Server) HandleWatchEvent(ctx context.Context, ev watcher.Event) {
	n, err := s.hub.Broadcast(ctx, protocol.FileEvent(ev.Path, ev.Kind == watcher.Added))
	if err != nil {
		s.logger.Warn("broadcast file event", "path", ev.Path, "err", err)
		return
	}
	s.logger.Debug("file event", "kind", ev.Kind, "path", ev.Path, "sessions", n)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	sess := newSession(s, conn, uuid.NewString(), r.RemoteAddr)
	sess.run(s.baseCtx)
}

// logRequests logs failed requests and, at debug level, every request.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			status := ww.Status()
			kv := []any{"method", r.Method, "path", r.URL.Path, "status", status,
				"bytes", ww.BytesWritten(), "duration", time.Since(start)}
			if status >= 500 {
				s.logger.Error("request", kv...)
			} else {
				s.logger.Debug("request", kv...)
			}
		}()
		next.ServeHTTP(ww, r)
	})
}

// checkLocalOrigin accepts same-host and loopback origins.
func checkLocalOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if u.Host == r.Host {
		return true
	}
	host := u.Hostname()
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
