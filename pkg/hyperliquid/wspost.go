package hyperliquid

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"

	"hyperwire/internal/transport"
	"hyperwire/pkg/core"
)

// postChannel is the websocket channel carrying correlated request/response
// envelopes.
const postChannel = "post"

// postRequest is the outbound framing for a correlated websocket request.
type postRequest struct {
	Method  string      `json:"method"`
	ID      int64       `json:"id"`
	Request postPayload `json:"request"`
}

type postPayload struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// postResponse is the inbound framing echoed on the post channel. The server
// copies the request id; Response.Type is "error" when the call failed.
type postResponse struct {
	ID       int64 `json:"id"`
	Response struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	} `json:"response"`
}

type postResult struct {
	data json.RawMessage
	err  error
}

// poster correlates websocket post requests with their response frames.
// Each in-flight request owns a one-shot waiter keyed by a locally unique id;
// concurrent requests cannot resolve each other's waiter.
type poster struct {
	ws      *transport.WSClient
	timeout time.Duration
	nextID  atomic.Int64

	mu      sync.Mutex
	pending map[int64]chan postResult
	closed  bool
}

func newPoster(ws *transport.WSClient, timeout time.Duration) *poster {
	p := &poster{
		ws:      ws,
		timeout: timeout,
		pending: make(map[int64]chan postResult),
	}
	ws.RegisterHandler(postChannel, p.handleFrame)
	ws.OnDisconnect(p.failAll)
	return p
}

// Do sends one correlated request and blocks until the matching response
// frame, the post timeout, context expiry or client shutdown.
func (p *poster) Do(ctx context.Context, kind string, payload any) (json.RawMessage, error) {
	id := p.nextID.Add(1)
	waiter := make(chan postResult, 1)

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, core.ErrClientClosed
	}
	p.pending[id] = waiter
	p.mu.Unlock()

	req := postRequest{
		Method: "post",
		ID:     id,
		Request: postPayload{
			Type:    kind,
			Payload: payload,
		},
	}
	if err := p.ws.SendJSON(req); err != nil {
		p.remove(id)
		return nil, core.NewVenueError(core.ErrorTypeNetwork, "send post request").WithCause(err)
	}

	timer := time.NewTimer(p.timeout)
	defer timer.Stop()

	select {
	case result := <-waiter:
		if result.err != nil {
			return nil, result.err
		}
		return result.data, nil
	case <-timer.C:
		p.remove(id)
		return nil, core.NewVenueError(core.ErrorTypeTimeout, "post request timed out awaiting correlated response")
	case <-ctx.Done():
		p.remove(id)
		return nil, classifyTransportError(ctx.Err())
	}
}

func (p *poster) handleFrame(data json.RawMessage) {
	var resp postResponse
	if err := sonic.Unmarshal(data, &resp); err != nil {
		return
	}

	p.mu.Lock()
	waiter, ok := p.pending[resp.ID]
	if ok {
		delete(p.pending, resp.ID)
	}
	p.mu.Unlock()
	if !ok {
		// Late frame for a request that already timed out.
		return
	}

	if resp.Response.Type == "error" {
		message := "post request failed"
		var text string
		if sonic.Unmarshal(resp.Response.Payload, &text) == nil && text != "" {
			message = text
		}
		waiter <- postResult{err: core.NewVenueError(core.ErrorTypeAPI, message).WithCode("post_error")}
		return
	}
	waiter <- postResult{data: resp.Response.Payload}
}

func (p *poster) remove(id int64) {
	p.mu.Lock()
	delete(p.pending, id)
	p.mu.Unlock()
}

// failAll rejects every in-flight request. Called when the connection drops or
// the client closes; callers must re-issue, nothing is resumable.
func (p *poster) failAll() {
	p.mu.Lock()
	pending := p.pending
	p.pending = make(map[int64]chan postResult)
	p.mu.Unlock()

	for _, waiter := range pending {
		waiter <- postResult{err: core.ErrClientClosed}
	}
}

func (p *poster) close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.failAll()
}

// InFlight returns the number of requests awaiting correlation.
func (p *poster) InFlight() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

