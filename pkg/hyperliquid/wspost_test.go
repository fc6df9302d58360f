package hyperliquid

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/lxzan/gws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hyperwire/internal/transport"
	"hyperwire/pkg/core"
)

func newTestPoster(t *testing.T) *poster {
	t.Helper()
	ws := transport.NewWSClient(transport.WSConfig{URL: "wss://example.invalid/ws"})
	return newPoster(ws, 100*time.Millisecond)
}

// newSilentWSServer starts a websocket server that accepts connections and
// reads frames but never responds to anything.
func newSilentWSServer(t *testing.T) string {
	t.Helper()
	upgrader := gws.NewUpgrader(&gws.BuiltinEventHandler{}, &gws.ServerOption{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		socket, err := upgrader.Upgrade(w, r)
		if err != nil {
			return
		}
		go socket.ReadLoop()
	}))
	t.Cleanup(server.Close)
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestPoster_DoFailsWhenDisconnected(t *testing.T) {
	p := newTestPoster(t)

	_, err := p.Do(context.Background(), "info", core.Params{"type": "meta"})

	var venueErr *core.VenueError
	require.ErrorAs(t, err, &venueErr)
	assert.Equal(t, core.ErrorTypeNetwork, venueErr.Type)
	assert.Equal(t, 0, p.InFlight(), "failed send must not leak a pending waiter")
}

func TestPoster_CorrelatesResponseByID(t *testing.T) {
	p := newTestPoster(t)

	first := make(chan postResult, 1)
	second := make(chan postResult, 1)
	p.mu.Lock()
	p.pending[1] = first
	p.pending[2] = second
	p.mu.Unlock()

	p.handleFrame(json.RawMessage(`{"id":2,"response":{"type":"info","payload":{"mids":{}}}}`))

	select {
	case result := <-second:
		require.NoError(t, result.err)
		assert.JSONEq(t, `{"mids":{}}`, string(result.data))
	default:
		t.Fatal("waiter 2 did not receive its response")
	}

	select {
	case <-first:
		t.Fatal("response for id 2 must not resolve waiter 1")
	default:
	}
	assert.Equal(t, 1, p.InFlight())
}

func TestPoster_ErrorFrameBecomesVenueError(t *testing.T) {
	p := newTestPoster(t)

	waiter := make(chan postResult, 1)
	p.mu.Lock()
	p.pending[7] = waiter
	p.mu.Unlock()

	p.handleFrame(json.RawMessage(`{"id":7,"response":{"type":"error","payload":"Invalid request"}}`))

	result := <-waiter
	var venueErr *core.VenueError
	require.ErrorAs(t, result.err, &venueErr)
	assert.Equal(t, core.ErrorTypeAPI, venueErr.Type)
	assert.Equal(t, "post_error", venueErr.Code)
	assert.Equal(t, "Invalid request", venueErr.Message)
}

func TestPoster_LateFrameIsIgnored(t *testing.T) {
	p := newTestPoster(t)

	// No pending entry for id 99: the request already timed out.
	p.handleFrame(json.RawMessage(`{"id":99,"response":{"type":"info","payload":{}}}`))

	assert.Equal(t, 0, p.InFlight())
}

func TestPoster_FailAllRejectsPending(t *testing.T) {
	p := newTestPoster(t)

	waiter := make(chan postResult, 1)
	p.mu.Lock()
	p.pending[3] = waiter
	p.mu.Unlock()

	p.failAll()

	result := <-waiter
	require.ErrorIs(t, result.err, core.ErrClientClosed)
	assert.Equal(t, 0, p.InFlight())
}

func TestPoster_TimesOutWithoutCorrelatedFrame(t *testing.T) {
	ws := transport.NewWSClient(transport.WSConfig{URL: newSilentWSServer(t)})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, ws.Connect(ctx))
	t.Cleanup(func() { _ = ws.Close() })

	p := newPoster(ws, 200*time.Millisecond)

	// A second in-flight request must survive the other one's timeout.
	bystander := make(chan postResult, 1)
	p.mu.Lock()
	p.pending[999] = bystander
	p.mu.Unlock()

	start := time.Now()
	_, err := p.Do(ctx, "info", core.Params{"type": "allMids"})

	var venueErr *core.VenueError
	require.ErrorAs(t, err, &venueErr)
	assert.Equal(t, core.ErrorTypeTimeout, venueErr.Type)
	assert.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)

	assert.Equal(t, 1, p.InFlight(), "the timed-out waiter is removed, others stay")
	select {
	case <-bystander:
		t.Fatal("an unrelated waiter must be untouched by the timeout")
	default:
	}
}

func TestPoster_CloseRejectsNewRequests(t *testing.T) {
	p := newTestPoster(t)
	p.close()

	_, err := p.Do(context.Background(), "info", core.Params{"type": "meta"})
	require.ErrorIs(t, err, core.ErrClientClosed)
}
