// Package realtime is the push side of the chat server: a websocket carrying
// JSON envelopes, with bounded automatic reconnection.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Wire and lifecycle event names.
const (
	EventConnect         = "connect"
	EventDisconnect      = "disconnect"
	EventConnectError    = "connect_error"
	EventReconnect       = "reconnect"
	EventReconnectFailed = "reconnect_failed"

	EventJoin           = "join"
	EventSendMessage    = "sendMessage"
	EventMessageDeleted = "messageDeleted"
)

const (
	writeWait = 10 * time.Second
	// ReasonClientDisconnect is reported when Disconnect tears the channel down.
	ReasonClientDisconnect = "client disconnect"
)

// ErrNotConnected is returned by Emit while no connection is established.
var ErrNotConnected = errors.New("realtime channel not connected")

// Envelope is one websocket text frame.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Event is delivered to the Handler for inbound frames and lifecycle changes.
type Event struct {
	Name    string
	Data    json.RawMessage
	Reason  string
	Err     error
	Attempt int
}

// Handler receives channel events on the channel's goroutine.
type Handler func(Event)

// Options configures dialing and reconnection.
type Options struct {
	URL          string
	Attempts     int
	Delay        time.Duration
	DelayMax     time.Duration
	PingInterval time.Duration
	PongWait     time.Duration
	Dialer       *websocket.Dialer
}

func (o *Options) normalize() {
	if o.Attempts <= 0 {
		o.Attempts = 5
	}
	if o.Delay <= 0 {
		o.Delay = time.Second
	}
	if o.DelayMax < o.Delay {
		o.DelayMax = o.Delay
	}
	if o.PongWait <= 0 {
		o.PongWait = 60 * time.Second
	}
	if o.PingInterval <= 0 || o.PingInterval >= o.PongWait {
		o.PingInterval = o.PongWait * 9 / 10
	}
	if o.Dialer == nil {
		o.Dialer = websocket.DefaultDialer
	}
}

// Backoff returns the wait before retry number attempt (1-based): the base
// delay doubling per attempt, capped at max.
func Backoff(attempt int, base, max time.Duration) time.Duration {
	d := base
	for i := 1; i < attempt && d < max; i++ {
		d *= 2
	}
	if d > max {
		d = max
	}
	return d
}

// Channel owns one logical realtime connection and its reconnect loop.
type Channel struct {
	opts   Options
	logger *zap.Logger

	mu      sync.Mutex
	handler Handler
	conn    *websocket.Conn
	cancel  context.CancelFunc
	done    chan struct{}

	writeMu sync.Mutex
}

// New creates a disconnected channel.
func New(opts Options, logger *zap.Logger) *Channel {
	opts.normalize()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Channel{opts: opts, logger: logger}
}

// SetHandler installs the event handler. It must be set before Connect.
func (c *Channel) SetHandler(h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = h
}

// Connect starts connecting in the background as userID. It never blocks and
// never returns an error: failures surface as connect_error events and, once
// attempts are exhausted, reconnect_failed. An existing connection is torn
// down first.
func (c *Channel) Connect(userID, token string) {
	c.Disconnect()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	c.mu.Lock()
	c.cancel = cancel
	c.done = done
	c.mu.Unlock()

	go func() {
		defer close(done)
		c.run(ctx, userID, token)
	}()
}

// Disconnect tears down the connection and stops reconnecting. Idempotent.
// It waits for the loop to exit, so it must not be called from the Handler.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	cancel, done, conn := c.cancel, c.done, c.conn
	c.cancel, c.done = nil, nil
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	if conn != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = conn.Close()
	}
	<-done
}

// Connected reports whether a connection is currently established.
func (c *Channel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Emit sends an event with a JSON payload.
func (c *Channel) Emit(event string, data any) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	return c.write(conn, event, data)
}

func (c *Channel) write(conn *websocket.Conn, event string, data any) error {
	env := Envelope{Event: event}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("encode %s: %w", event, err)
		}
		env.Data = raw
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(env); err != nil {
		return fmt.Errorf("write %s: %w", event, err)
	}
	return nil
}

func (c *Channel) dispatch(evt Event) {
	c.mu.Lock()
	h := c.handler
	c.mu.Unlock()
	if h != nil {
		h(evt)
	}
}

func (c *Channel) run(ctx context.Context, userID, token string) {
	failures := 0
	connectedBefore := false

	for {
		conn, err := c.dial(ctx, token)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			failures++
			c.logger.Warn("realtime connect failed", zap.Int("attempt", failures), zap.Error(err))
			c.dispatch(Event{Name: EventConnectError, Err: err, Attempt: failures})
			if failures >= c.opts.Attempts {
				c.logger.Error("realtime reconnect attempts exhausted", zap.Int("attempts", failures))
				c.dispatch(Event{Name: EventReconnectFailed, Attempt: failures})
				return
			}
			if !sleep(ctx, Backoff(failures, c.opts.Delay, c.opts.DelayMax)) {
				return
			}
			continue
		}

		c.mu.Lock()
		if ctx.Err() != nil {
			c.mu.Unlock()
			_ = conn.Close()
			return
		}
		c.conn = conn
		c.mu.Unlock()

		name := EventConnect
		if connectedBefore {
			name = EventReconnect
		}
		c.logger.Info("realtime connected", zap.String("event", name), zap.Int("after_failures", failures))
		failures = 0
		connectedBefore = true

		if err := c.write(conn, EventJoin, userID); err != nil {
			c.logger.Warn("realtime join failed", zap.Error(err))
		}
		c.dispatch(Event{Name: name})

		reason := c.readLoop(ctx, conn)

		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		_ = conn.Close()

		if ctx.Err() != nil {
			c.dispatch(Event{Name: EventDisconnect, Reason: ReasonClientDisconnect})
			return
		}
		c.logger.Warn("realtime disconnected", zap.String("reason", reason))
		c.dispatch(Event{Name: EventDisconnect, Reason: reason})

		if !sleep(ctx, c.opts.Delay) {
			return
		}
	}
}

func (c *Channel) dial(ctx context.Context, token string) (*websocket.Conn, error) {
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	conn, resp, err := c.opts.Dialer.DialContext(ctx, c.opts.URL, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", c.opts.URL, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", c.opts.URL, err)
	}
	return conn, nil
}

// readLoop delivers inbound frames until the connection fails, returning the reason.
func (c *Channel) readLoop(ctx context.Context, conn *websocket.Conn) string {
	_ = conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	})

	pingCtx, stopPing := context.WithCancel(ctx)
	defer stopPing()
	go func() {
		ticker := time.NewTicker(c.opts.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
					return
				}
			case <-pingCtx.Done():
				return
			}
		}
	}()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			var ce *websocket.CloseError
			if errors.As(err, &ce) {
				return fmt.Sprintf("server closed (%d)", ce.Code)
			}
			return "transport error: " + err.Error()
		}
		_ = conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
		if msgType != websocket.TextMessage {
			continue
		}
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil || env.Event == "" {
			c.logger.Warn("dropping malformed realtime frame", zap.Int("bytes", len(data)), zap.Error(err))
			continue
		}
		c.dispatch(Event{Name: env.Event, Data: env.Data})
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
