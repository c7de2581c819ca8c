// Package wsclient provides a reconnecting WebSocket client used to back
// the exchange's market-data and user-data streams. Message handlers run on
// the client's own read loop and must not mutate engine state directly —
// they post normalized work items elsewhere (see internal/bot).
package wsclient

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"spotengine/internal/logging"
)

// MessageHandler processes one raw inbound frame.
type MessageHandler func(message []byte)

// UnintendedCloseHandler is invoked when the read loop exits for a reason
// other than Stop() having been called — the caller decides whether and how
// to reconnect.
type UnintendedCloseHandler func()

// Client is a resilient WebSocket client with automatic reconnection and a
// ping/pong heartbeat.
type Client struct {
	url     string
	handler MessageHandler
	onClose UnintendedCloseHandler

	reconnectWait time.Duration
	pingInterval  time.Duration
	pingWait      time.Duration
	pongWait      time.Duration

	conn *websocket.Conn
	mu   sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// intendedClose is set before cancel() is invoked by Stop, so the read
	// loop can distinguish a deliberate shutdown from a dropped connection.
	intendedClose bool

	onConnected func()

	logger logging.ILogger
}

// New builds a Client. The handler runs on the read-loop goroutine; onClose
// fires once per unintended disconnect, after the read loop has exited.
func New(url string, handler MessageHandler, onClose UnintendedCloseHandler, logger logging.ILogger) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		url:           url,
		handler:       handler,
		onClose:       onClose,
		reconnectWait: 5 * time.Second,
		pingInterval:  30 * time.Second,
		pingWait:      10 * time.Second,
		pongWait:      60 * time.Second,
		ctx:           ctx,
		cancel:        cancel,
		logger:        logger.WithField("component", "wsclient"),
	}
}

// SetOnConnected sets a callback invoked after every successful (re)connect,
// typically used to resubscribe to streams.
func (c *Client) SetOnConnected(cb func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onConnected = cb
}

// Send writes a JSON message to the current connection.
func (c *Client) Send(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return websocket.ErrCloseSent
	}
	return c.conn.WriteJSON(v)
}

// Start connects and begins listening in a background goroutine.
func (c *Client) Start() {
	c.wg.Add(1)
	go c.runLoop()
}

// Stop marks the close as intended, cancels the context, and waits for the
// read loop to exit (with a bounded timeout, logging if it doesn't).
func (c *Client) Stop() {
	c.mu.Lock()
	c.intendedClose = true
	c.mu.Unlock()

	c.cancel()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		c.logger.Warn("wsclient stop: goroutines did not exit within timeout")
	}

	c.closeConn()
}

func (c *Client) runLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		if err := c.connect(); err != nil {
			c.logger.Error("websocket connect failed", "url", c.url, "error", err)
			select {
			case <-c.ctx.Done():
				return
			case <-time.After(c.reconnectWait):
			}
			continue
		}

		c.mu.Lock()
		onConnected := c.onConnected
		pingInterval := c.pingInterval
		c.mu.Unlock()

		if onConnected != nil {
			onConnected()
		}

		heartbeatCtx, heartbeatCancel := context.WithCancel(c.ctx)
		if pingInterval > 0 {
			c.wg.Add(1)
			go c.heartbeat(heartbeatCtx)
		}

		c.readLoop()
		heartbeatCancel()

		c.mu.Lock()
		intended := c.intendedClose
		c.mu.Unlock()

		if intended {
			return
		}

		if c.onClose != nil {
			c.onClose()
		}

		select {
		case <-c.ctx.Done():
			return
		case <-time.After(c.reconnectWait):
		}
	}
}

func (c *Client) heartbeat(ctx context.Context) {
	defer c.wg.Done()

	c.mu.Lock()
	interval, wait := c.pingInterval, c.pingWait
	c.mu.Unlock()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			conn := c.conn
			c.mu.Unlock()
			if conn == nil {
				return
			}
			if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(wait)); err != nil {
				c.closeConn()
				return
			}
		}
	}
}

func (c *Client) connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	conn, _, err := websocket.DefaultDialer.Dial(c.url, nil)
	if err != nil {
		return err
	}

	conn.SetReadDeadline(time.Now().Add(c.pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(c.pongWait))
		return nil
	})

	c.conn = conn
	return nil
}

func (c *Client) closeConn() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

func (c *Client) readLoop() {
	defer c.closeConn()

	for {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn == nil {
			return
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			return
		}

		if c.handler != nil {
			c.handler(message)
		}
	}
}
