package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/ledger-notify/internal/model"
)

// ClientConfig holds gateway client settings.
type ClientConfig struct {
	URL          string
	WriteTimeout time.Duration // Default: 5s
	BufferSize   int           // Default: 1000 buffered notices
}

// Client is a gateway WebSocket client.
type Client struct {
	cfg    ClientConfig
	logger *slog.Logger
	conn   *websocket.Conn

	notices chan Notice
	done    chan struct{}

	// Write serialization
	writeMu sync.Mutex

	mu      sync.Mutex
	nextID  int64
	pending map[int64]chan Response
	closed  bool
	err     error
}

// Dial connects to a gateway.
func Dial(ctx context.Context, cfg ClientConfig, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1000
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.URL, err)
	}

	c := &Client{
		cfg:     cfg,
		logger:  logger,
		conn:    conn,
		notices: make(chan Notice, cfg.BufferSize),
		done:    make(chan struct{}),
		pending: make(map[int64]chan Response),
	}
	go c.readLoop()

	c.logger.Debug("gateway connected", "url", cfg.URL)
	return c, nil
}

// Notices returns pushed notifications. It is closed when the connection ends.
func (c *Client) Notices() <-chan Notice {
	return c.notices
}

// Done is closed when the connection ends.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err returns the error that ended the connection, if any.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Call sends a request and waits for its response. result may be nil.
func (c *Client) Call(ctx context.Context, method string, params, result any) error {
	var raw json.RawMessage
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("encode params: %w", err)
		}
		raw = b
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrNotConnected
	}
	c.nextID++
	id := c.nextID
	ch := make(chan Response, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	data, err := json.Marshal(Request{ID: id, Method: method, Params: raw})
	if err != nil {
		return err
	}
	if err := c.send(data); err != nil {
		return err
	}

	select {
	case resp := <-ch:
		if resp.Error != nil {
			return resp.Error
		}
		if result != nil && len(resp.Result) > 0 {
			if err := json.Unmarshal(resp.Result, result); err != nil {
				return fmt.Errorf("decode %s result: %w", method, err)
			}
		}
		return nil
	case <-c.done:
		return ErrNotConnected
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Login authenticates the session. Returns false for rejected credentials.
func (c *Client) Login(ctx context.Context, user, password string) (bool, error) {
	var ok bool
	err := c.Call(ctx, MethodLogin, LoginParams{User: user, Password: password}, &ok)
	return ok, err
}

// GetObjects returns current values in the order of ids; missing objects are nil.
func (c *Client) GetObjects(ctx context.Context, ids ...model.ObjectID) ([]json.RawMessage, error) {
	var values []json.RawMessage
	err := c.Call(ctx, MethodGetObjects, ObjectsParams{IDs: ids}, &values)
	for i, v := range values {
		if string(v) == "null" {
			values[i] = nil
		}
	}
	return values, err
}

func (c *Client) SubscribeToObjects(ctx context.Context, callback string, ids ...model.ObjectID) error {
	return c.Call(ctx, MethodSubscribeToObjects, SubscribeObjectsParams{Callback: callback, IDs: ids}, nil)
}

func (c *Client) UnsubscribeFromObjects(ctx context.Context, ids ...model.ObjectID) error {
	return c.Call(ctx, MethodUnsubscribeFromObjects, ObjectsParams{IDs: ids}, nil)
}

func (c *Client) SubscribeToMarket(ctx context.Context, callback string, a, b model.ObjectID) error {
	return c.Call(ctx, MethodSubscribeToMarket, SubscribeMarketParams{Callback: callback, A: a, B: b}, nil)
}

func (c *Client) UnsubscribeFromMarket(ctx context.Context, a, b model.ObjectID) error {
	return c.Call(ctx, MethodUnsubscribeFromMarket, MarketParams{A: a, B: b}, nil)
}

func (c *Client) CancelAllSubscriptions(ctx context.Context) error {
	return c.Call(ctx, MethodCancelAll, nil, nil)
}

// Close gracefully closes the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	return c.conn.Close()
}

func (c *Client) send(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *Client) readLoop() {
	defer func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.done)
		close(c.notices)
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure) {
				c.mu.Lock()
				if !c.closed {
					c.err = err
				}
				c.mu.Unlock()
			}
			return
		}

		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.logger.Warn("undecodable message", "error", err)
			continue
		}

		if env.ID != nil {
			c.mu.Lock()
			ch, ok := c.pending[*env.ID]
			c.mu.Unlock()
			if ok {
				ch <- Response{ID: *env.ID, Result: env.Result, Error: env.Error}
			}
			continue
		}

		if env.Method != MethodNotice {
			c.logger.Debug("ignoring message", "method", env.Method)
			continue
		}
		var params NoticeParams
		if err := json.Unmarshal(env.Params, &params); err != nil {
			c.logger.Warn("undecodable notice", "error", err)
			continue
		}
		select {
		case c.notices <- Notice{Method: env.Method, Params: params}:
		default:
			c.logger.Warn("notice buffer full, dropping notice", "callback", params.Callback)
		}
	}
}
