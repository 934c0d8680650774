// Package bridge serves the locomotion controller to a WebXR page over a
// websocket. Every connection gets its own session and controller.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/Versifine/locomotion/internal/config"
	"github.com/Versifine/locomotion/internal/controller"
	"github.com/Versifine/locomotion/internal/event"
	"github.com/Versifine/locomotion/internal/rig"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeTimeout    = 5 * time.Second
	shutdownTimeout = 3 * time.Second
	maxMessageSize  = 64 << 10
)

type Server struct {
	cfg      *config.Config
	bus      *event.Bus
	log      *slog.Logger
	upgrader websocket.Upgrader

	mu       sync.RWMutex
	sessions map[string]*Session
	closing  bool
	active   sync.WaitGroup
	addr     net.Addr
}

type Option func(*Server)

func WithBus(bus *event.Bus) Option {
	return func(s *Server) { s.bus = bus }
}

func WithLogger(log *slog.Logger) Option {
	return func(s *Server) {
		if log != nil {
			s.log = log
		}
	}
}

func NewServer(cfg *config.Config, opts ...Option) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bridge config is nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Server{
		cfg:      cfg,
		log:      slog.Default(),
		sessions: make(map[string]*Session),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The page is usually served from a different origin than the bridge.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Handler returns the HTTP handler serving the websocket endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(s.cfg.Bridge.Path, s.handleWebSocket)
	return mux
}

func (s *Server) Start(ctx context.Context) error {
	addr := s.cfg.BridgeAddr()
	s.log.Info("Starting bridge server", "addr", addr, "path", s.cfg.Bridge.Path)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.addr = ln.Addr()
	s.mu.Unlock()

	srv := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		s.log.Info("Shutting down bridge server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		s.closeSessions()
	}()

	err = srv.Serve(ln)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.log.Error("Bridge server failed", "error", err)
		_ = srv.Close()
		s.closeSessions()
		s.active.Wait()
		return err
	}
	// Websocket connections are hijacked, so Shutdown does not wait for
	// them. Sessions must be done with their controllers before returning.
	<-stopped
	s.active.Wait()
	s.log.Info("Bridge server stopped")
	return nil
}

// Addr is the address Start is listening on, nil before it listens.
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}

func (s *Server) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("Websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	conn.SetReadLimit(maxMessageSize)

	sess, err := s.newSession(conn)
	if err != nil {
		s.log.Error("Create session failed", "error", err)
		_ = conn.WriteJSON(ErrorMessage{Type: TypeError, Message: err.Error()})
		_ = conn.Close()
		return
	}

	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	s.active.Add(1)
	defer s.active.Done()
	s.sessions[sess.ID] = sess
	count := len(s.sessions)
	s.mu.Unlock()
	s.log.Info("Session opened", "session", sess.ID, "remote", r.RemoteAddr, "sessions", count)

	defer func() {
		s.mu.Lock()
		delete(s.sessions, sess.ID)
		count := len(s.sessions)
		s.mu.Unlock()
		_ = conn.Close()
		s.log.Info("Session closed", "session", sess.ID, "sessions", count)
	}()

	if err := sess.send(HelloMessage{
		Type:     TypeHello,
		Session:  sess.ID,
		TurnMode: sess.ctrl.TurnMode().String(),
	}); err != nil {
		s.log.Warn("Send hello failed", "session", sess.ID, "error", err)
		return
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug("Session read ended", "session", sess.ID, "error", err)
			}
			return
		}
		if err := sess.handle(data); err != nil {
			s.log.Warn("Bad client message", "session", sess.ID, "error", err)
			if err := sess.send(ErrorMessage{Type: TypeError, Message: err.Error()}); err != nil {
				return
			}
		}
	}
}

func (s *Server) newSession(conn *websocket.Conn) (*Session, error) {
	id := uuid.NewString()
	sess := &Session{
		ID:    id,
		conn:  conn,
		poses: &framePoses{rig: rig.Identity(), head: rig.Identity()},
	}
	ctrl, err := controller.New(s.cfg, sess.poses,
		controller.WithBus(s.bus),
		controller.WithLogger(s.log),
		controller.WithSource(id),
	)
	if err != nil {
		return nil, err
	}
	sess.ctrl = ctrl
	return sess, nil
}

// closeSessions closes every open session and refuses new ones.
func (s *Server) closeSessions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closing = true
	for _, sess := range s.sessions {
		sess.close()
	}
}

// Session is one connected page. The page owns the rig: the session only
// mirrors the poses reported in the latest frame.
type Session struct {
	ID string

	conn  *websocket.Conn
	ctrl  *controller.Controller
	poses *framePoses

	writeMu sync.Mutex
}

func (s *Session) handle(data []byte) error {
	msg, err := decode(data)
	if err != nil {
		return err
	}

	switch m := msg.(type) {
	case *AxisMessage:
		if m.Hand == HandMove {
			s.ctrl.OnMoveInput(m.Axes)
		} else {
			s.ctrl.OnTurnInput(m.Axes)
		}
		return nil
	case *FrameMessage:
		return s.frame(m)
	}
	return nil
}

func (s *Session) frame(m *FrameMessage) error {
	rigT, err := m.Rig.Transform()
	if err != nil {
		return fmt.Errorf("rig: %w", err)
	}
	head, err := m.Head.Transform()
	if err != nil {
		return fmt.Errorf("head: %w", err)
	}
	s.poses.set(rigT, head)

	d := s.ctrl.Tick(m.dt())
	if !d.IsZero() {
		if err := s.send(newDeltaMessage(d)); err != nil {
			return err
		}
	}
	if d.Snap != nil {
		return s.send(newSnapMessage(*d.Snap))
	}
	return nil
}

func (s *Session) send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *Session) close() {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
		time.Now().Add(time.Second))
	_ = s.conn.Close()
}

// framePoses is the controller's pose source for a session.
type framePoses struct {
	mu   sync.RWMutex
	rig  rig.Transform
	head rig.Transform
}

func (p *framePoses) set(rigT, head rig.Transform) {
	p.mu.Lock()
	p.rig, p.head = rigT, head
	p.mu.Unlock()
}

func (p *framePoses) RigTransform() rig.Transform {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.rig
}

func (p *framePoses) HeadTransform() rig.Transform {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.head
}
