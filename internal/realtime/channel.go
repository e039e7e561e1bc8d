package realtime

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"reelpipe/internal/logging"
)

// Envelope is the wire shape shared by the socket and the relay.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Handler receives one event envelope.
type Handler func(Envelope)

// Conn is the transport surface the channel needs from a WebSocket
// connection. *websocket.Conn satisfies it; tests inject fakes.
type Conn interface {
	ReadMessage() (messageType int, payload []byte, err error)
	WriteMessage(messageType int, payload []byte) error
	Close() error
}

// DialFunc opens a connection to the event stream endpoint.
type DialFunc func(ctx context.Context, url string) (Conn, error)

const (
	defaultHeartbeatInterval = 30 * time.Second
	defaultReconnectBase     = time.Second
	defaultReconnectMax      = 30 * time.Second

	pingPayload = "ping"
	pongPayload = "pong"
)

// Options configures a Channel. Zero-valued durations fall back to defaults;
// a nil Dial uses the gorilla WebSocket dialer.
type Options struct {
	URL               string
	HeartbeatInterval time.Duration
	ReconnectBase     time.Duration
	ReconnectMax      time.Duration
	Dial              DialFunc
	Relay             Relay
	Logger            *slog.Logger
}

// Channel owns one connection to the backend event stream.
type Channel struct {
	url               string
	heartbeatInterval time.Duration
	reconnectBase     time.Duration
	reconnectMax      time.Duration
	dial              DialFunc
	relay             Relay
	logger            *slog.Logger

	mu            sync.Mutex
	handlers      map[string]map[int]Handler
	nextHandlerID int
	conn          Conn
	connected     bool
	connecting    bool
	attempt       int
	closed        bool
	reconnect     *time.Timer
	heartbeatStop chan struct{}
	relayOrigin   int
	relayCancel   func()

	wg sync.WaitGroup
}

// NewChannel constructs a channel; call Connect to open the socket.
func NewChannel(opts Options) *Channel {
	c := &Channel{
		url:               opts.URL,
		heartbeatInterval: opts.HeartbeatInterval,
		reconnectBase:     opts.ReconnectBase,
		reconnectMax:      opts.ReconnectMax,
		dial:              opts.Dial,
		relay:             opts.Relay,
		logger:            logging.NewComponentLogger(opts.Logger, "realtime"),
		handlers:          make(map[string]map[int]Handler),
	}
	if c.heartbeatInterval <= 0 {
		c.heartbeatInterval = defaultHeartbeatInterval
	}
	if c.reconnectBase <= 0 {
		c.reconnectBase = defaultReconnectBase
	}
	if c.reconnectMax < c.reconnectBase {
		c.reconnectMax = defaultReconnectMax
	}
	if c.dial == nil {
		c.dial = gorillaDial
	}
	if c.relay != nil {
		c.relayOrigin, c.relayCancel = c.relay.Subscribe(func(env Envelope) {
			// Relayed events are dispatched locally but never re-relayed.
			c.dispatch(env)
		})
	}
	return c
}

// Connect opens the socket. It is idempotent: calls while a connection is
// open, in flight, or after Close are no-ops. Failures are handled by the
// reconnect schedule, never returned.
func (c *Channel) Connect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.connected || c.connecting {
		return
	}
	c.connecting = true
	c.wg.Add(1)
	go c.runConnect()
}

// Connected reports whether the socket is currently open.
func (c *Channel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Subscribe registers a handler for one event type and returns its
// unsubscribe function. All handlers for a type run for every matching
// event; a panicking handler is logged and does not block the others.
func (c *Channel) Subscribe(eventType string, handler Handler) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextHandlerID
	c.nextHandlerID++
	if c.handlers[eventType] == nil {
		c.handlers[eventType] = make(map[int]Handler)
	}
	c.handlers[eventType][id] = handler
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if set, ok := c.handlers[eventType]; ok {
			delete(set, id)
			if len(set) == 0 {
				delete(c.handlers, eventType)
			}
		}
	}
}

// Close tears the channel down: pending reconnects are cancelled, the
// heartbeat stops, the socket closes, and no further callbacks fire. The
// connection reference is detached before closing so the read loop's exit
// never schedules a reconnect against a closed channel.
func (c *Channel) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.reconnect != nil {
		c.reconnect.Stop()
		c.reconnect = nil
	}
	c.stopHeartbeatLocked()
	conn := c.conn
	c.conn = nil
	c.connected = false
	relayCancel := c.relayCancel
	c.relayCancel = nil
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	if relayCancel != nil {
		relayCancel()
	}
	c.wg.Wait()
}

func (c *Channel) runConnect() {
	defer c.wg.Done()

	conn, err := c.dial(context.Background(), c.url)
	if err != nil {
		c.mu.Lock()
		c.connecting = false
		if !c.closed {
			c.logger.Debug("connect failed",
				logging.Error(err),
				logging.Int("attempt", c.attempt))
			c.scheduleReconnectLocked()
		}
		c.mu.Unlock()
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = conn.Close()
		return
	}
	c.conn = conn
	c.connected = true
	c.connecting = false
	c.attempt = 0
	stop := make(chan struct{})
	c.heartbeatStop = stop
	c.wg.Add(1)
	go c.heartbeatLoop(conn, stop)
	c.mu.Unlock()

	c.logger.Debug("event stream connected", logging.String("url", c.url))
	c.readLoop(conn)
}

func (c *Channel) readLoop(conn Conn) {
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			c.handleDisconnect(conn, err)
			return
		}
		c.handleMessage(payload)
	}
}

func (c *Channel) handleDisconnect(conn Conn, cause error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != conn {
		// Already detached by Close or superseded; nothing to do.
		return
	}
	c.conn = nil
	c.connected = false
	c.stopHeartbeatLocked()
	if c.closed {
		return
	}
	c.logger.Debug("event stream disconnected", logging.Error(cause))
	c.scheduleReconnectLocked()
}

// scheduleReconnectLocked arms the backoff timer. Caller holds c.mu.
func (c *Channel) scheduleReconnectLocked() {
	delay := backoffDelay(c.attempt, c.reconnectBase, c.reconnectMax)
	c.attempt++
	c.reconnect = time.AfterFunc(delay, func() {
		c.mu.Lock()
		c.reconnect = nil
		if c.closed || c.connected || c.connecting {
			c.mu.Unlock()
			return
		}
		c.connecting = true
		c.wg.Add(1)
		c.mu.Unlock()
		go c.runConnect()
	})
}

func (c *Channel) stopHeartbeatLocked() {
	if c.heartbeatStop != nil {
		close(c.heartbeatStop)
		c.heartbeatStop = nil
	}
}

func (c *Channel) heartbeatLoop(conn Conn, stop chan struct{}) {
	defer c.wg.Done()
	ticker := time.NewTicker(c.heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := conn.WriteMessage(textMessage, []byte(pingPayload)); err != nil {
				// The read loop observes the same failure and reconnects.
				c.logger.Debug("heartbeat send failed", logging.Error(err))
				return
			}
		}
	}
}

func (c *Channel) handleMessage(payload []byte) {
	trimmed := bytes.TrimSpace(payload)
	if string(trimmed) == pongPayload {
		return
	}
	var env Envelope
	if err := json.Unmarshal(trimmed, &env); err != nil || env.Event == "" {
		// Malformed and foreign frames are dropped silently.
		return
	}
	c.dispatch(env)
	if c.relay != nil {
		c.relay.Publish(c.relayOrigin, env)
	}
}

// dispatch invokes every handler registered for the envelope's event type.
// Handlers run isolated: a panic is logged and the rest still run.
func (c *Channel) dispatch(env Envelope) {
	c.mu.Lock()
	set := c.handlers[env.Event]
	snapshot := make([]Handler, 0, len(set))
	for _, handler := range set {
		snapshot = append(snapshot, handler)
	}
	c.mu.Unlock()

	for _, handler := range snapshot {
		c.invoke(handler, env)
	}
}

func (c *Channel) invoke(handler Handler, env Envelope) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("event handler panicked",
				logging.String(logging.FieldEvent, env.Event),
				logging.Any("panic", r))
		}
	}()
	handler(env)
}

// backoffDelay computes min(base << attempt, max) with overflow protection.
func backoffDelay(attempt int, base, max time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	// base is at least 1ns; 62 shifts would overflow regardless.
	if attempt > 32 {
		return max
	}
	delay := base << uint(attempt)
	if delay <= 0 || delay > max {
		return max
	}
	return delay
}
