package net

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type wsEcho struct {
	upgrader websocket.Upgrader
	conns    atomic.Int32
	mu       sync.Mutex
	received []string
}

func (e *wsEcho) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := e.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	e.conns.Add(1)
	defer conn.Close()
	conn.WriteMessage(websocket.TextMessage, []byte("hello"))
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		e.mu.Lock()
		e.received = append(e.received, string(msg))
		e.mu.Unlock()
	}
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestWSClientOpenMessageSend(t *testing.T) {
	echo := &wsEcho{}
	srv := httptest.NewServer(echo)
	defer srv.Close()

	c := NewWSClient(WSConfig{URL: wsURL(srv), ReconnectDelay: 50 * time.Millisecond})

	var opened atomic.Bool
	var got atomic.Value
	c.OnOpen(func() {
		opened.Store(true)
		c.Send(`{"op":"subscribe"}`)
	})
	c.OnMessage(func(msg []byte) { got.Store(string(msg)) })

	c.Start()
	defer c.Stop()

	waitFor(t, opened.Load, "open callback not fired")
	waitFor(t, func() bool { v, _ := got.Load().(string); return v == "hello" }, "message not received")
	waitFor(t, func() bool {
		echo.mu.Lock()
		defer echo.mu.Unlock()
		return len(echo.received) == 1
	}, "send not delivered")
}

func TestWSClientReconnects(t *testing.T) {
	echo := &wsEcho{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := echo.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		echo.conns.Add(1)
		conn.Close() // drop immediately, client must retry
	}))
	defer srv.Close()

	c := NewWSClient(WSConfig{URL: wsURL(srv), ReconnectDelay: 20 * time.Millisecond})
	c.Start()
	defer c.Stop()

	waitFor(t, func() bool { return echo.conns.Load() >= 2 }, "client did not reconnect")
}

func TestWSClientStartStopIdempotent(t *testing.T) {
	echo := &wsEcho{}
	srv := httptest.NewServer(echo)
	defer srv.Close()

	c := NewWSClient(WSConfig{URL: wsURL(srv), ReconnectDelay: 20 * time.Millisecond})
	c.Start()
	c.Start()
	waitFor(t, func() bool { return echo.conns.Load() == 1 }, "double start must open one connection")

	c.Stop()
	c.Stop()
	assert.False(t, c.running.Load())
	assert.Error(t, c.Send("x"), "send after stop must fail")
}

func TestWSClientSendBeforeConnect(t *testing.T) {
	c := NewWSClient(WSConfig{URL: "ws://127.0.0.1:1"})
	require.ErrorIs(t, c.Send("x"), ErrNotConnected)
}
