// Package net provides the shared network layer: a reconnecting websocket
// client and a pooled HTTPS transport.
package net

import (
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"
)

// WSConfig configures a WSClient.
type WSConfig struct {
	URL              string
	Origin           string
	ReconnectDelay   time.Duration
	PingInterval     time.Duration // protocol-level ping; 0 disables
	HandshakeTimeout time.Duration
	ReadTimeout      time.Duration
}

func (c *WSConfig) normalize() {
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = 500 * time.Millisecond
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 60 * time.Second
	}
}

// WSClient is a reconnecting websocket client. A single worker goroutine
// owns the connection: open, dispatch, detect disconnect, sleep, retry.
// Send may be called from any goroutine.
type WSClient struct {
	cfg WSConfig
	log *slog.Logger

	onOpen    func()
	onMessage func([]byte)
	onClose   func(code int, reason string)

	running atomic.Bool
	done    chan struct{}
	connMu  sync.RWMutex
	conn    *websocket.Conn
	writeMu sync.Mutex
	wg      sync.WaitGroup
}

// NewWSClient creates a client. Callbacks must be installed before Start.
func NewWSClient(cfg WSConfig) *WSClient {
	cfg.normalize()
	return &WSClient{
		cfg:  cfg,
		done: make(chan struct{}),
		log:  slog.Default().With("module", "ws", "url", cfg.URL),
	}
}

func (c *WSClient) OnOpen(cb func())                        { c.onOpen = cb }
func (c *WSClient) OnMessage(cb func([]byte))               { c.onMessage = cb }
func (c *WSClient) OnClose(cb func(code int, reason string)) { c.onClose = cb }

// Start launches the worker. Second call is a no-op.
func (c *WSClient) Start() {
	if c.running.Swap(true) {
		return
	}
	c.wg.Add(1)
	go c.run()
}

// Stop signals the worker, force-closes the socket and joins. Idempotent.
func (c *WSClient) Stop() {
	if !c.running.Swap(false) {
		return
	}
	close(c.done)
	c.closeConn()
	c.wg.Wait()
}

// Send writes one text message. Serialized so messages from arbitrary
// goroutines do not interleave.
func (c *WSClient) Send(data string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.connMu.RLock()
	conn := c.conn
	c.connMu.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}
	return conn.WriteMessage(websocket.TextMessage, []byte(data))
}

func (c *WSClient) run() {
	defer c.wg.Done()
	// Fixed reconnect delay: multiplier 1 and no jitter.
	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = c.cfg.ReconnectDelay
	retry.MaxInterval = c.cfg.ReconnectDelay
	retry.Multiplier = 1.0
	retry.RandomizationFactor = 0

	for c.running.Load() {
		if err := c.connect(); err != nil {
			c.log.Warn("dial failed", slog.Any("error", err))
			c.sleep(retry.NextBackOff())
			continue
		}

		c.readLoop()
		c.closeConn()

		if !c.running.Load() {
			return
		}
		c.log.Warn("disconnected, reconnecting",
			slog.Duration("delay", c.cfg.ReconnectDelay))
		c.sleep(retry.NextBackOff())
	}
}

func (c *WSClient) connect() error {
	dialer := websocket.Dialer{
		HandshakeTimeout:  c.cfg.HandshakeTimeout,
		EnableCompression: false,
	}
	var hdr http.Header
	if c.cfg.Origin != "" {
		hdr = http.Header{"Origin": []string{c.cfg.Origin}}
	}
	conn, _, err := dialer.Dial(c.cfg.URL, hdr)
	if err != nil {
		return err
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()

	if c.onOpen != nil {
		c.onOpen()
	}
	if c.cfg.PingInterval > 0 {
		c.wg.Add(1)
		go c.pingLoop(conn)
	}
	return nil
}

func (c *WSClient) pingLoop(conn *websocket.Conn) {
	defer c.wg.Done()
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()
	for c.running.Load() {
		select {
		case <-c.done:
			return
		case <-ticker.C:
		}
		c.connMu.RLock()
		current := c.conn
		c.connMu.RUnlock()
		if current != conn {
			return
		}
		c.writeMu.Lock()
		err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
		c.writeMu.Unlock()
		if err != nil {
			return
		}
	}
}

func (c *WSClient) readLoop() {
	for c.running.Load() {
		c.connMu.RLock()
		conn := c.conn
		c.connMu.RUnlock()
		if conn == nil {
			return
		}
		conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			code, reason := websocket.CloseAbnormalClosure, err.Error()
			if ce, ok := err.(*websocket.CloseError); ok {
				code, reason = ce.Code, ce.Text
			}
			if c.onClose != nil {
				c.onClose(code, reason)
			}
			return
		}
		if c.onMessage != nil {
			c.onMessage(msg)
		}
	}
}

func (c *WSClient) closeConn() {
	c.connMu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()
}

// sleep waits for d, returning early on Stop.
func (c *WSClient) sleep(d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-c.done:
	case <-timer.C:
	}
}
