package net

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// ErrNotConnected is returned by Send when no socket is open.
var ErrNotConnected = errors.New("websocket not connected")

// ErrPoolExhausted is returned when no session frees up within the acquire
// deadline.
var ErrPoolExhausted = errors.New("session pool exhausted")

// PoolConfig sizes the HTTPS session pool.
type PoolConfig struct {
	Initial        int
	Max            int
	AcquireTimeout time.Duration
	ConnectTimeout time.Duration
	RequestTimeout time.Duration
}

func (c PoolConfig) withDefaults() PoolConfig {
	if c.Initial == 0 {
		c.Initial = 2
	}
	if c.Max == 0 {
		c.Max = c.Initial
	}
	if c.AcquireTimeout <= 0 {
		c.AcquireTimeout = 1 * time.Second
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 5 * time.Second
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 10 * time.Second
	}
	return c
}

// Validate enforces 1 <= Initial <= Max.
func (c PoolConfig) Validate() error {
	if c.Initial < 1 {
		return fmt.Errorf("pool initial size must be >= 1, got %d", c.Initial)
	}
	if c.Max < c.Initial {
		return fmt.Errorf("pool max size %d must be >= initial size %d", c.Max, c.Initial)
	}
	return nil
}

// session is one pre-warmed HTTPS handle.
type session struct {
	client *http.Client
}

// SessionPool hands out pre-warmed HTTPS handles. Acquire blocks until a
// handle is released or the acquire deadline passes; the pool grows on
// demand up to Max.
type SessionPool struct {
	cfg  PoolConfig
	idle chan *session
	grow chan struct{} // one token per not-yet-created session
}

// NewSessionPool validates the config and pre-warms Initial sessions.
func NewSessionPool(cfg PoolConfig) (*SessionPool, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p := &SessionPool{
		cfg:  cfg,
		idle: make(chan *session, cfg.Max),
		grow: make(chan struct{}, cfg.Max),
	}
	for i := 0; i < cfg.Initial; i++ {
		p.idle <- p.newSession()
	}
	for i := cfg.Initial; i < cfg.Max; i++ {
		p.grow <- struct{}{}
	}
	return p, nil
}

func (p *SessionPool) newSession() *session {
	dialer := &net.Dialer{
		Timeout: p.cfg.ConnectTimeout,
		KeepAliveConfig: net.KeepAliveConfig{
			Enable:   true,
			Idle:     30 * time.Second,
			Interval: 15 * time.Second,
		},
	}
	transport := &http.Transport{
		DialContext:         dialer.DialContext,
		ForceAttemptHTTP2:   true,
		DisableKeepAlives:   false,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: p.cfg.ConnectTimeout,
	}
	return &session{client: &http.Client{Transport: transport}}
}

// acquire returns a handle or ErrPoolExhausted after AcquireTimeout.
func (p *SessionPool) acquire() (*session, error) {
	select {
	case s := <-p.idle:
		return s, nil
	case <-p.grow:
		return p.newSession(), nil
	default:
	}

	timer := time.NewTimer(p.cfg.AcquireTimeout)
	defer timer.Stop()
	select {
	case s := <-p.idle:
		return s, nil
	case <-timer.C:
		return nil, ErrPoolExhausted
	}
}

// release returns the handle. The pool never holds more than Max sessions,
// so the buffered send cannot block.
func (p *SessionPool) release(s *session) {
	if s == nil {
		return
	}
	select {
	case p.idle <- s:
	default:
		s.client.CloseIdleConnections()
	}
}
