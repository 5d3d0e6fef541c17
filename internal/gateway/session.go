package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/ledger-notify/internal/model"
	"github.com/rickgao/ledger-notify/internal/notify"
)

// session is one WebSocket client with its own broadcast engine.
type session struct {
	id     string
	server *Server
	conn   *websocket.Conn
	engine *notify.Engine
	logger *slog.Logger

	// Outbound messages; drained only by writeLoop.
	send      chan []byte
	done      chan struct{}
	writeDone chan struct{}
	closeOnce sync.Once

	loggedIn atomic.Bool
}

// run blocks until the connection ends.
func (s *session) run(ctx context.Context) {
	if err := s.engine.Start(ctx); err != nil {
		s.logger.Warn("engine start failed", "error", err)
		s.conn.Close()
		return
	}
	unregister := s.server.feed.Register(s.engine)

	go s.writeLoop()
	s.readLoop(ctx)

	s.close()
	unregister()

	stopCtx, cancel := context.WithTimeout(context.Background(), s.server.cfg.WriteTimeout)
	defer cancel()
	if err := s.engine.Stop(stopCtx); err != nil {
		s.logger.Warn("engine stop timed out", "error", err)
	}
	<-s.writeDone

	stats := s.engine.Stats()
	s.logger.Info("session closed",
		"rounds", stats.Rounds,
		"object_deliveries", stats.ObjectDeliveries,
		"market_deliveries", stats.MarketDeliveries,
	)
}

// close signals both loops to stop. Safe to call more than once.
func (s *session) close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
}

// enqueue hands data to the write loop, blocking while the send buffer is full.
func (s *session) enqueue(ctx context.Context, data []byte) error {
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}

	select {
	case s.send <- data:
		return nil
	case <-s.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// sink returns a Sink that pushes notices tagged with callback.
func (s *session) sink(callback string) *callbackSink {
	return &callbackSink{session: s, callback: callback}
}

func (s *session) readLoop(ctx context.Context) {
	cfg := s.server.cfg

	s.conn.SetReadLimit(cfg.MaxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("read failed", "error", err)
			}
			return
		}
		s.conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))

		resp := s.handle(ctx, data)
		out, err := json.Marshal(resp)
		if err != nil {
			s.logger.Warn("encode response failed", "id", resp.ID, "error", err)
			continue
		}
		if err := s.enqueue(ctx, out); err != nil {
			return
		}
	}
}

// writeLoop is the connection's only writer. It closes the connection on exit,
// which also unblocks readLoop.
func (s *session) writeLoop() {
	cfg := s.server.cfg
	ticker := time.NewTicker(cfg.PingInterval)
	defer func() {
		ticker.Stop()
		s.conn.Close()
		close(s.writeDone)
	}()

	for {
		select {
		case <-s.done:
			s.conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second),
			)
			return

		case data := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.logger.Debug("write failed", "error", err)
				s.close()
				return
			}

		case <-ticker.C:
			deadline := time.Now().Add(cfg.WriteTimeout)
			if err := s.conn.WriteControl(websocket.PingMessage, []byte("keepalive"), deadline); err != nil {
				s.logger.Debug("failed to send ping", "error", err)
				s.close()
				return
			}
		}
	}
}

// callbackSink delivers notifications to one client callback.
type callbackSink struct {
	session  *session
	callback string
}

func (c *callbackSink) Deliver(ctx context.Context, n model.Notification) error {
	data, err := json.Marshal(Notice{
		Method: MethodNotice,
		Params: NoticeParams{Callback: c.callback, Notification: n},
	})
	if err != nil {
		return err
	}
	return c.session.enqueue(ctx, data)
}
