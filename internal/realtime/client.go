package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"restaurante/internal/logger"
	"restaurante/internal/models"

	"github.com/fasthttp/websocket"
)

// Client is a consumer-side connection to the websocket transport. It
// re-joins every room after a reconnect; events missed while disconnected
// are not replayed.
type Client struct {
	url      string
	dialer   *websocket.Dialer
	minDelay time.Duration
	maxDelay time.Duration

	mu        sync.Mutex
	joins     []Frame
	handlers  map[string][]func(models.Order)
	onConn    []func(connected bool)
	onControl []func(ControlMessage)
	conn      *websocket.Conn
	writeMu   sync.Mutex
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithBackoff sets the reconnect delay bounds.
func WithBackoff(minDelay, maxDelay time.Duration) ClientOption {
	return func(c *Client) {
		c.minDelay = minDelay
		c.maxDelay = maxDelay
	}
}

// NewClient creates a client for the websocket url (ws://host/ws).
func NewClient(url string, opts ...ClientOption) *Client {
	c := &Client{
		url:      url,
		dialer:   websocket.DefaultDialer,
		minDelay: 500 * time.Millisecond,
		maxDelay: 30 * time.Second,
		handlers: make(map[string][]func(models.Order)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// On registers fn for an order event name.
func (c *Client) On(event string, fn func(models.Order)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[event] = append(c.handlers[event], fn)
}

// OnConnectionChange registers fn for connect and disconnect transitions.
func (c *Client) OnConnectionChange(fn func(connected bool)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onConn = append(c.onConn, fn)
}

// OnControl registers fn for joined/error frames.
func (c *Client) OnControl(fn func(ControlMessage)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onControl = append(c.onControl, fn)
}

// JoinAdmin subscribes to the operator room now and after every reconnect.
func (c *Client) JoinAdmin(token string) error {
	return c.join(Frame{Type: FrameJoinAdmin, Token: token})
}

// JoinOrder subscribes to the customer room of orderID.
func (c *Client) JoinOrder(orderID string) error {
	return c.join(Frame{Type: FrameJoinClient, OrderID: orderID})
}

func (c *Client) join(f Frame) error {
	c.mu.Lock()
	c.joins = append(c.joins, f)
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	return c.write(conn, f)
}

// Connected reports whether a connection is currently open.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Run keeps the connection alive until ctx is done.
func (c *Client) Run(ctx context.Context) error {
	delay := c.minDelay
	for {
		connected, err := c.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if connected {
			delay = c.minDelay
		}
		logger.Warn("realtime connection lost, reconnecting", "url", c.url, "err", err, "delay", delay)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
		delay *= 2
		if delay > c.maxDelay {
			delay = c.maxDelay
		}
	}
}

// session dials, re-joins and reads until the connection fails.
func (c *Client) session(ctx context.Context) (bool, error) {
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return false, fmt.Errorf("%w: dial %s: %v", models.ErrConnectivity, c.url, err)
	}

	c.mu.Lock()
	c.conn = conn
	joins := append([]Frame(nil), c.joins...)
	c.mu.Unlock()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer func() {
		stop()
		_ = conn.Close()
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		c.notifyConn(false)
	}()

	for _, f := range joins {
		if err := c.write(conn, f); err != nil {
			return true, err
		}
	}
	c.notifyConn(true)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return true, fmt.Errorf("%w: read: %v", models.ErrConnectivity, err)
		}
		c.dispatch(data)
	}
}

type inboundFrame struct {
	Event   string          `json:"event"`
	Data    json.RawMessage `json:"data"`
	Room    string          `json:"room"`
	Message string          `json:"message"`
}

func (c *Client) dispatch(data []byte) {
	var in inboundFrame
	if err := json.Unmarshal(data, &in); err != nil {
		logger.Warn("invalid realtime frame", "err", err)
		return
	}

	if in.Event == EventJoined || in.Event == EventError {
		c.mu.Lock()
		fns := slices.Clone(c.onControl)
		c.mu.Unlock()
		msg := ControlMessage{Event: in.Event, Room: in.Room, Message: in.Message}
		for _, fn := range fns {
			fn(msg)
		}
		return
	}

	var o models.Order
	if err := json.Unmarshal(in.Data, &o); err != nil {
		logger.Warn("invalid order payload", "event", in.Event, "err", err)
		return
	}

	c.mu.Lock()
	fns := slices.Clone(c.handlers[in.Event])
	c.mu.Unlock()
	for _, fn := range fns {
		fn(o)
	}
}

func (c *Client) notifyConn(connected bool) {
	c.mu.Lock()
	fns := slices.Clone(c.onConn)
	c.mu.Unlock()
	for _, fn := range fns {
		fn(connected)
	}
}

func (c *Client) write(conn *websocket.Conn, f Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.WriteJSON(f); err != nil {
		return fmt.Errorf("%w: write %s: %v", models.ErrConnectivity, f.Type, err)
	}
	return nil
}
