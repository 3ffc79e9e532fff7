package net

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Header is one request header. Order is preserved on the wire.
type Header struct {
	Key   string
	Value string
}

// errorBodyLimit caps how much of a failed response is echoed to onError.
const errorBodyLimit = 1024

// Transport issues POSTs over a pooled HTTPS session. Continuations are
// invoked exactly once, on the caller's goroutine, after the synchronous
// round trip completes.
type Transport struct {
	pool *SessionPool
	log  *slog.Logger
}

// NewTransport builds a transport over a fresh session pool. Fails on
// invalid pool config.
func NewTransport(cfg PoolConfig) (*Transport, error) {
	pool, err := NewSessionPool(cfg)
	if err != nil {
		return nil, err
	}
	return &Transport{
		pool: pool,
		log:  slog.Default().With("module", "transport"),
	}, nil
}

// Post issues a POST with the pool's default request deadline.
func (t *Transport) Post(url, body string, headers []Header,
	onSuccess func([]byte), onError func(string)) {
	t.post(url, body, headers, t.pool.cfg.RequestTimeout, onSuccess, onError)
}

// PostWithTimeout overrides the request deadline for one call.
func (t *Transport) PostWithTimeout(url, body string, headers []Header,
	requestTimeout time.Duration, onSuccess func([]byte), onError func(string)) {
	if requestTimeout <= 0 {
		requestTimeout = t.pool.cfg.RequestTimeout
	}
	t.post(url, body, headers, requestTimeout, onSuccess, onError)
}

func (t *Transport) post(url, body string, headers []Header,
	requestTimeout time.Duration, onSuccess func([]byte), onError func(string)) {
	s, err := t.pool.acquire()
	if err != nil {
		if onError != nil {
			onError(err.Error())
		}
		return
	}
	defer t.pool.release(s)

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(body))
	if err != nil {
		if onError != nil {
			onError(err.Error())
		}
		return
	}
	req.Header.Set("Connection", "keep-alive")
	for _, h := range headers {
		req.Header.Set(h.Key, h.Value)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		if onError != nil {
			onError(err.Error())
		}
		return
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		if onError != nil {
			onError(err.Error())
		}
		return
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if onError != nil {
			trunc := data
			if len(trunc) > errorBodyLimit {
				trunc = trunc[:errorBodyLimit]
			}
			onError(fmt.Sprintf("HTTP %d: %s", resp.StatusCode, trunc))
		}
		return
	}

	if onSuccess != nil {
		onSuccess(data)
	}
}
