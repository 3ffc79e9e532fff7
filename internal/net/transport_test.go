package net

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTransport(t *testing.T, cfg PoolConfig) *Transport {
	t.Helper()
	tr, err := NewTransport(cfg)
	require.NoError(t, err)
	return tr
}

func TestTransportPostSuccess(t *testing.T) {
	var gotBody string
	var gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		gotHeader = r.Header.Get("X-Test")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	tr := newTestTransport(t, PoolConfig{Initial: 1, Max: 1, AcquireTimeout: time.Second})

	var success []byte
	var failure string
	tr.Post(srv.URL, `{"a":1}`, []Header{{Key: "X-Test", Value: "v"}},
		func(body []byte) { success = body },
		func(msg string) { failure = msg })

	assert.Empty(t, failure)
	assert.Equal(t, `{"ok":true}`, string(success))
	assert.Equal(t, `{"a":1}`, gotBody)
	assert.Equal(t, "v", gotHeader)
}

func TestTransportNon2xxSurfacesError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("short and stout"))
	}))
	defer srv.Close()

	tr := newTestTransport(t, PoolConfig{Initial: 1, Max: 1})

	var success []byte
	var failure string
	tr.Post(srv.URL, "", nil,
		func(body []byte) { success = body },
		func(msg string) { failure = msg })

	assert.Nil(t, success)
	assert.Equal(t, "HTTP 418: short and stout", failure)
}

func TestTransportErrorBodyTruncated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(strings.Repeat("x", 4096)))
	}))
	defer srv.Close()

	tr := newTestTransport(t, PoolConfig{Initial: 1, Max: 1})

	var failure string
	tr.Post(srv.URL, "", nil, nil, func(msg string) { failure = msg })

	assert.Equal(t, len("HTTP 500: ")+errorBodyLimit, len(failure))
}

func TestTransportPoolExhausted(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.Write([]byte("ok"))
	}))
	defer srv.Close()
	defer close(release)

	tr := newTestTransport(t, PoolConfig{
		Initial: 1, Max: 1,
		AcquireTimeout: 50 * time.Millisecond,
		RequestTimeout: 5 * time.Second,
	})

	started := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		close(started)
		tr.Post(srv.URL, "", nil, nil, nil)
	}()
	<-started
	time.Sleep(20 * time.Millisecond) // let the first call take the only session

	var failure string
	tr.Post(srv.URL, "", nil, nil, func(msg string) { failure = msg })
	assert.Contains(t, failure, "exhausted")

	release <- struct{}{}
	wg.Wait()
}

func TestTransportPerCallTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte("late"))
	}))
	defer srv.Close()

	tr := newTestTransport(t, PoolConfig{Initial: 1, Max: 1, RequestTimeout: 5 * time.Second})

	var failure string
	tr.PostWithTimeout(srv.URL, "", nil, 30*time.Millisecond,
		func([]byte) { t.Fatal("should not succeed") },
		func(msg string) { failure = msg })
	assert.NotEmpty(t, failure)
}

func TestPoolConfigValidate(t *testing.T) {
	assert.Error(t, PoolConfig{Initial: 0, Max: 4}.Validate())
	assert.Error(t, PoolConfig{Initial: 4, Max: 2}.Validate())
	assert.NoError(t, PoolConfig{Initial: 1, Max: 1}.Validate())

	_, err := NewTransport(PoolConfig{Initial: 3, Max: 2})
	assert.Error(t, err)
}

func TestPoolGrowsToMax(t *testing.T) {
	pool, err := NewSessionPool(PoolConfig{Initial: 1, Max: 2, AcquireTimeout: 20 * time.Millisecond})
	require.NoError(t, err)

	s1, err := pool.acquire()
	require.NoError(t, err)
	s2, err := pool.acquire()
	require.NoError(t, err, "pool should grow past initial up to max")

	_, err = pool.acquire()
	assert.ErrorIs(t, err, ErrPoolExhausted)

	pool.release(s1)
	s3, err := pool.acquire()
	require.NoError(t, err)
	pool.release(s2)
	pool.release(s3)
}
