package client

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"
)

const (
	sendChSize = 256
	writeWait  = 10 * time.Second
)

// BackoffConfig bounds the reconnect policy: the delay starts at Base,
// doubles each attempt, and is capped at Max; after MaxAttempts failed
// dials the connection gives up for good.
type BackoffConfig struct {
	Base        time.Duration
	Max         time.Duration
	MaxAttempts int
}

func (b BackoffConfig) withDefaults() BackoffConfig {
	if b.Base <= 0 {
		b.Base = time.Second
	}
	if b.Max <= 0 {
		b.Max = 30 * time.Second
	}
	if b.MaxAttempts <= 0 {
		b.MaxAttempts = 10
	}
	return b
}

// connection manages one WebSocket with a single write goroutine.
// Inbound frames go to onMessage; when reconnect attempts are exhausted
// onExhausted fires once and the connection stays down.
type connection struct {
	mu           sync.Mutex
	conn         *ws.Conn
	sendCh       chan []byte
	done         chan struct{} // closed on shutdown
	closed       bool
	reconnecting bool // a reconnect loop is already in flight

	wsURL   string
	backoff BackoffConfig

	// Cached join message replayed after every reconnect so the server
	// re-registers the membership.
	cachedJoinMsg []byte

	onMessage   func(data []byte)
	onReconnect func() // transport loss detected, retrying
	onRestored  func() // reconnect succeeded, join replayed
	onExhausted func() // retry attempts spent, staying down
	logger      *slog.Logger
}

func newConnection(backoff BackoffConfig, logger *slog.Logger) *connection {
	return &connection{
		sendCh:  make(chan []byte, sendChSize),
		done:    make(chan struct{}),
		backoff: backoff.withDefaults(),
		logger:  logger,
	}
}

// dial connects and starts the read/write loops.
func (c *connection) dial(rawURL string) error {
	c.wsURL = rawURL

	conn, err := c.dialOnce()
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	go c.writeLoop()
	go c.readLoop()

	return nil
}

func (c *connection) dialOnce() (*ws.Conn, error) {
	conn, _, err := ws.DefaultDialer.Dial(c.wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return conn, nil
}

// setJoinMessage records the join envelope for replay on reconnect.
func (c *connection) setJoinMessage(data []byte) {
	c.mu.Lock()
	c.cachedJoinMsg = data
	c.mu.Unlock()
}

// writeLoop drains sendCh onto the socket. Only one runs at a time; it
// returns on error or shutdown.
func (c *connection) writeLoop() {
	for {
		select {
		case <-c.done:
			return
		case data := <-c.sendCh:
			c.mu.Lock()
			conn := c.conn
			c.mu.Unlock()

			if conn == nil {
				continue
			}

			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Warn("WebSocket SetWriteDeadline error", "error", err)
				go c.reconnect()
				return
			}
			if err := conn.WriteMessage(ws.TextMessage, data); err != nil {
				c.logger.Warn("WebSocket write error", "error", err)
				go c.reconnect()
				return
			}
		}
	}
}

// readLoop hands inbound frames to onMessage until the socket drops.
func (c *connection) readLoop() {
	for {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()

		if conn == nil {
			return
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return
			default:
			}
			c.logger.Warn("WebSocket read error", "error", err)
			go c.reconnect()
			return
		}

		if c.onMessage != nil {
			c.onMessage(message)
		}
	}
}

// reconnect re-establishes the connection with exponential backoff. On
// success it replays the cached join message and restarts the loops; on
// exhausting the allowed attempts it fires onExhausted and stays down.
func (c *connection) reconnect() {
	c.mu.Lock()
	if c.closed || c.reconnecting {
		// A socket drop usually errors both loops; only the first gets
		// to retry.
		c.mu.Unlock()
		return
	}
	c.reconnecting = true
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.reconnecting = false
		c.mu.Unlock()
	}()

	if c.onReconnect != nil {
		c.onReconnect()
	}

	backoff := c.backoff.Base
	for attempt := 1; attempt <= c.backoff.MaxAttempts; attempt++ {
		c.logger.Info("Reconnecting to WebSocket", "attempt", attempt, "backoff", backoff)
		select {
		case <-c.done:
			return
		case <-time.After(backoff):
		}

		conn, err := c.dialOnce()
		if err != nil {
			c.logger.Warn("Reconnect dial failed", "attempt", attempt, "error", err)
			backoff *= 2
			if backoff > c.backoff.Max {
				backoff = c.backoff.Max
			}
			continue
		}

		c.mu.Lock()
		if c.closed {
			// Shut down while dialing; drop the fresh socket.
			c.mu.Unlock()
			_ = conn.Close()
			return
		}
		c.conn = conn
		cached := c.cachedJoinMsg
		c.mu.Unlock()

		// Replay the join so the server re-registers this viewer.
		if cached != nil {
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Warn("Failed to set deadline for join replay", "error", err)
				_ = conn.Close()
				continue
			}
			if err := conn.WriteMessage(ws.TextMessage, cached); err != nil {
				c.logger.Warn("Failed to replay join after reconnect", "error", err)
				_ = conn.Close()
				continue
			}
		}

		c.logger.Info("WebSocket reconnected", "attempt", attempt)
		go c.writeLoop()
		go c.readLoop()
		if c.onRestored != nil {
			c.onRestored()
		}
		return
	}

	c.logger.Error("WebSocket reconnect failed after max attempts",
		"maxAttempts", c.backoff.MaxAttempts)
	if c.onExhausted != nil {
		c.onExhausted()
	}
}

// send pushes data to the write loop. Non-blocking; drops if full.
func (c *connection) send(data []byte) {
	select {
	case c.sendCh <- data:
	default:
		c.logger.Warn("WebSocket send channel full, dropping message")
	}
}

// close sends a close frame and shuts down all goroutines. Idempotent.
func (c *connection) close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		deadline := time.Now().Add(writeWait)
		_ = conn.WriteControl(ws.CloseMessage,
			ws.FormatCloseMessage(ws.CloseNormalClosure, ""), deadline)
		return conn.Close()
	}
	return nil
}
