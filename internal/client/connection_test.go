package client

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConnection(url string, backoff BackoffConfig) *connection {
	c := newConnection(backoff, slog.New(slog.DiscardHandler))
	c.wsURL = url
	return c
}

func TestCloseDuringBackoffStopsRedial(t *testing.T) {
	var dials atomic.Int32
	upgrader := ws.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		dials.Add(1)
		if conn, err := upgrader.Upgrade(w, req, nil); err == nil {
			_ = conn.Close()
		}
	}))
	defer srv.Close()

	c := newTestConnection("ws"+strings.TrimPrefix(srv.URL, "http"), BackoffConfig{
		Base:        300 * time.Millisecond,
		Max:         time.Second,
		MaxAttempts: 3,
	})

	finished := make(chan struct{})
	go func() {
		c.reconnect()
		close(finished)
	}()

	// Land the close inside the first backoff wait.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, c.close())

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("reconnect loop kept running after close")
	}
	assert.Zero(t, dials.Load(), "dialed after close")
}

func TestConcurrentLoopFailuresShareOneRetry(t *testing.T) {
	// Nothing listens here; the dial would fail, but with a 400ms base
	// backoff the loop is still waiting when we assert.
	c := newTestConnection("ws://127.0.0.1:1/ws", BackoffConfig{
		Base:        400 * time.Millisecond,
		Max:         time.Second,
		MaxAttempts: 1,
	})

	var retries atomic.Int32
	c.onReconnect = func() { retries.Add(1) }

	// A dropped socket errors the read and write loops together; both
	// call reconnect.
	go c.reconnect()
	go c.reconnect()

	assert.Eventually(t, func() bool { return retries.Load() == 1 },
		time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), retries.Load())
	require.NoError(t, c.close())
}
