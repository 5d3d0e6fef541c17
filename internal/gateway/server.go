package gateway

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/rickgao/ledger-notify/internal/auth"
	"github.com/rickgao/ledger-notify/internal/ledger"
	"github.com/rickgao/ledger-notify/internal/notify"
	"github.com/rickgao/ledger-notify/internal/store"
)

// Config holds WebSocket session settings.
type Config struct {
	PingInterval   time.Duration // Default: 15s
	ReadTimeout    time.Duration // Default: 45s. Extended by every message and pong.
	WriteTimeout   time.Duration // Default: 10s
	SendBuffer     int           // Default: 256 outbound messages per session
	MaxMessageSize int64         // Default: 1 MiB
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{
		PingInterval:   15 * time.Second,
		ReadTimeout:    45 * time.Second,
		WriteTimeout:   10 * time.Second,
		SendBuffer:     256,
		MaxMessageSize: 1 << 20,
	}
}

// Option configures a Server.
type Option func(*Server)

// WithClassifier enables market subscriptions using c.
func WithClassifier(c notify.Classifier) Option {
	return func(s *Server) {
		s.classifier = c
	}
}

// WithObserver attaches o to every session engine.
func WithObserver(o notify.Observer) Option {
	return func(s *Server) {
		s.observer = o
	}
}

// WithAuthenticator requires sessions to log in when a has users.
func WithAuthenticator(a *auth.Authenticator) Option {
	return func(s *Server) {
		s.auth = a
	}
}

// Stats contains server statistics.
type Stats struct {
	Sessions int
	Accepted int64
	Closed   int64
}

// Server accepts WebSocket sessions. It implements http.Handler.
type Server struct {
	cfg        Config
	engineCfg  notify.Config
	feed       *ledger.Feed
	objects    store.ObjectStore
	classifier notify.Classifier
	observer   notify.Observer
	auth       *auth.Authenticator
	logger     *slog.Logger
	upgrader   websocket.Upgrader

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	sessions map[string]*session
	closed   bool

	accepted atomic.Int64
	ended    atomic.Int64
}

// NewServer creates a gateway. Sessions register their engines on feed and read
// object values from objects.
func NewServer(cfg Config, engineCfg notify.Config, feed *ledger.Feed, objects store.ObjectStore, logger *slog.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = def.PingInterval
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = def.ReadTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = def.SendBuffer
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = def.MaxMessageSize
	}

	s := &Server{
		cfg:       cfg,
		engineCfg: engineCfg,
		feed:      feed,
		objects:   objects,
		logger:    logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		sessions: make(map[string]*session),
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ServeHTTP upgrades the request and runs the session until it ends.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		http.Error(w, ErrServerClosed.Error(), http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	sess := s.newSession(conn)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.sessions[sess.id] = sess
	s.wg.Add(1)
	s.mu.Unlock()

	s.accepted.Add(1)
	sess.logger.Info("session opened", "remote", r.RemoteAddr)

	defer func() {
		s.mu.Lock()
		delete(s.sessions, sess.id)
		s.mu.Unlock()
		s.ended.Add(1)
		s.wg.Done()
	}()

	sess.run(s.ctx)
}

// SessionCount returns the number of open sessions.
func (s *Server) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Stats returns current statistics.
func (s *Server) Stats() Stats {
	return Stats{
		Sessions: s.SessionCount(),
		Accepted: s.accepted.Load(),
		Closed:   s.ended.Load(),
	}
}

// Close ends every session and waits for them to finish.
func (s *Server) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	open := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		open = append(open, sess)
	}
	s.mu.Unlock()

	s.logger.Info("closing gateway", "sessions", len(open))
	for _, sess := range open {
		sess.close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancel()
		return nil
	case <-ctx.Done():
		s.cancel()
		s.logger.Warn("gateway close timed out")
		return ctx.Err()
	}
}

func (s *Server) newSession(conn *websocket.Conn) *session {
	id := uuid.NewString()
	logger := s.logger.With("session", id)

	var opts []notify.Option
	if s.observer != nil {
		opts = append(opts, notify.WithObserver(s.observer))
	}

	return &session{
		id:        id,
		server:    s,
		conn:      conn,
		engine:    notify.NewEngine(s.engineCfg, s.objects, s.classifier, logger, opts...),
		logger:    logger,
		send:      make(chan []byte, s.cfg.SendBuffer),
		done:      make(chan struct{}),
		writeDone: make(chan struct{}),
	}
}
