package signal

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"reelhub/internal/core/domain"
	"reelhub/internal/core/ports"
	"reelhub/internal/core/services"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var (
	ErrSessionClosed = errors.New("session closed")
	ErrSlowConsumer  = errors.New("session send buffer full")
)

type Options struct {
	PingInterval   time.Duration
	PongTimeout    time.Duration
	WriteTimeout   time.Duration
	SendBuffer     int
	MaxMessageSize int64
	AllowedOrigins []string
}

func DefaultOptions() Options {
	return Options{
		PingInterval:   30 * time.Second,
		PongTimeout:    60 * time.Second,
		WriteTimeout:   10 * time.Second,
		SendBuffer:     16,
		MaxMessageSize: 4 * 1024,
		AllowedOrigins: []string{"*"},
	}
}

// PresenceServer accepts authenticated websocket connections and registers
// each one as a presence session. Clients only receive; anything they send
// is read and discarded to keep the connection alive.
type PresenceServer struct {
	registry ports.PresenceRegistry
	auth     services.AuthService
	upgrader websocket.Upgrader
	opts     Options

	sessions map[domain.SessionID]*wsSession
	mu       sync.RWMutex
	closed   bool
	wg       sync.WaitGroup

	logger *zap.SugaredLogger
}

func NewPresenceServer(registry ports.PresenceRegistry, auth services.AuthService, opts Options, logger *zap.SugaredLogger) *PresenceServer {
	s := &PresenceServer{
		registry: registry,
		auth:     auth,
		opts:     opts,
		sessions: make(map[domain.SessionID]*wsSession),
		logger:   logger,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(opts.AllowedOrigins),
	}
	return s
}

var _ ports.PresenceHandler = (*PresenceServer)(nil)

func (s *PresenceServer) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	id, err := s.auth.IdentityFromToken(requestToken(r))
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warnw("websocket upgrade failed", "user_id", id.UserID, "error", err)
		return
	}

	session := newWSSession(id.UserID, conn, s.opts.SendBuffer)
	if !s.track(session) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(s.opts.WriteTimeout))
		conn.Close()
		return
	}
	defer s.untrack(session)

	go s.writePump(session)

	if !s.registry.Connect(id.UserID, session) {
		// The user was already online, so no broadcast follows; the new
		// session still needs the current list.
		if err := session.Send(domain.NewOnlineUsersMessage(s.registry.ListOnline())); err != nil {
			s.logger.Debugw("initial presence snapshot not delivered", "session_id", session.id, "error", err)
		}
	}
	s.logger.Infow("presence session connected", "user_id", id.UserID, "session_id", session.id)

	s.readPump(session)

	s.registry.Disconnect(id.UserID, session)
	session.close()
	s.logger.Infow("presence session disconnected", "user_id", id.UserID, "session_id", session.id)
}

// readPump drains the connection and enforces the pong deadline. It returns
// when the peer goes away or the session is closed.
func (s *PresenceServer) readPump(session *wsSession) {
	conn := session.conn
	if s.opts.MaxMessageSize > 0 {
		conn.SetReadLimit(s.opts.MaxMessageSize)
	}
	_ = conn.SetReadDeadline(time.Now().Add(s.opts.PongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.opts.PongTimeout))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.logger.Infow("presence session read failed", "session_id", session.id, "error", err)
			}
			return
		}
	}
}

// writePump is the only writer on the connection. It owns closing the
// connection, which also unblocks readPump.
func (s *PresenceServer) writePump(session *wsSession) {
	conn := session.conn
	ticker := time.NewTicker(s.opts.PingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case msg := <-session.send:
			_ = conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
			if err := conn.WriteJSON(msg); err != nil {
				s.logger.Debugw("presence write failed", "session_id", session.id, "error", err)
				session.close()
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.logger.Debugw("presence ping failed", "session_id", session.id, "error", err)
				session.close()
				return
			}

		case <-session.done:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(s.opts.WriteTimeout))
			return
		}
	}
}

func (s *PresenceServer) track(session *wsSession) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.sessions[session.id] = session
	s.wg.Add(1)
	return true
}

func (s *PresenceServer) untrack(session *wsSession) {
	s.mu.Lock()
	delete(s.sessions, session.id)
	s.mu.Unlock()
	s.wg.Done()
}

// ConnectedSessions returns the number of open websocket sessions.
func (s *PresenceServer) ConnectedSessions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Shutdown closes every session and waits for their handlers to finish
// unregistering, or for ctx to expire. New connections are refused.
func (s *PresenceServer) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	for _, session := range s.sessions {
		session.close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type wsSession struct {
	id     domain.SessionID
	userID domain.UserID
	conn   *websocket.Conn

	send      chan any
	done      chan struct{}
	closeOnce sync.Once
}

func newWSSession(userID domain.UserID, conn *websocket.Conn, buffer int) *wsSession {
	if buffer <= 0 {
		buffer = 1
	}
	return &wsSession{
		id:     domain.SessionID(uuid.NewString()),
		userID: userID,
		conn:   conn,
		send:   make(chan any, buffer),
		done:   make(chan struct{}),
	}
}

func (s *wsSession) ID() domain.SessionID {
	return s.id
}

// Send queues msg for the write pump without blocking. A session whose
// buffer is full is closed so the client reconnects and gets a fresh list.
func (s *wsSession) Send(msg any) error {
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}

	select {
	case s.send <- msg:
		return nil
	default:
		s.close()
		return ErrSlowConsumer
	}
}

func (s *wsSession) close() {
	s.closeOnce.Do(func() { close(s.done) })
}

func requestToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	return ""
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 || slices.Contains(allowed, "*") {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		// Non-browser clients send no Origin header.
		return origin == "" || slices.Contains(allowed, origin)
	}
}
