package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/lxzan/gws"
	"github.com/rs/zerolog"

	"hyperwire/internal/ws"
)

// Frame is one inbound websocket message in the venue's envelope shape.
type Frame struct {
	// Channel identifies the stream the frame belongs to.
	Channel string `json:"channel"`
	// Data is the channel-specific payload, left undecoded.
	Data json.RawMessage `json:"data"`
}

// WSConfig holds the websocket transport configuration.
type WSConfig struct {
	URL               string
	ReconnectEnabled  bool
	ReconnectMaxWait  time.Duration
	ReconnectBaseWait time.Duration
	PingInterval      time.Duration
	PongWait          time.Duration
	BufferSize        int
}

// FrameHandler receives the payload of every frame on its channel. Handlers
// run on the read loop and must not block.
type FrameHandler func(data json.RawMessage)

// WSClient maintains a persistent websocket connection, dispatching inbound
// frames to per-channel handlers and buffered subscription channels.
type WSClient struct {
	config  WSConfig
	state   *ws.State
	conn    *gws.Conn
	handler *wsEventHandler
	logger  zerolog.Logger

	mu                sync.RWMutex
	handlers          map[string]FrameHandler
	subs              map[string]*wsSubscription
	connectedChan     chan struct{}
	stopChan          chan struct{}
	closeHooks        []func()
	wg                sync.WaitGroup
	reconnectAttempts int
}

type wsSubscription struct {
	channel string
	dataCh  chan json.RawMessage
	closeCh chan struct{}
}

type wsEventHandler struct {
	client *WSClient
}

// NewWSClient creates a websocket client for the configured endpoint. Zero
// config values fall back to defaults.
func NewWSClient(config WSConfig) *WSClient {
	if config.ReconnectBaseWait == 0 {
		config.ReconnectBaseWait = 1 * time.Second
	}
	if config.ReconnectMaxWait == 0 {
		config.ReconnectMaxWait = 30 * time.Second
	}
	if config.PingInterval == 0 {
		config.PingInterval = 30 * time.Second
	}
	if config.PongWait == 0 {
		config.PongWait = 20 * time.Second
	}
	if config.BufferSize == 0 {
		config.BufferSize = 100
	}

	client := &WSClient{
		config:        config,
		state:         &ws.State{},
		handlers:      make(map[string]FrameHandler),
		subs:          make(map[string]*wsSubscription),
		connectedChan: make(chan struct{}),
		stopChan:      make(chan struct{}),
		logger:        zerolog.Nop(),
	}
	client.state.Store(ws.StateDisconnected)
	client.handler = &wsEventHandler{client: client}
	return client
}

// SetLogger replaces the client's logger.
func (c *WSClient) SetLogger(logger zerolog.Logger) {
	c.logger = logger
}

func (h *wsEventHandler) OnOpen(socket *gws.Conn) {
	h.client.state.Store(ws.StateConnected)

	h.client.mu.Lock()
	h.client.reconnectAttempts = 0
	select {
	case <-h.client.connectedChan:
	default:
		close(h.client.connectedChan)
	}
	h.client.mu.Unlock()

	h.client.logger.Info().
		Str("url", h.client.config.URL).
		Msg("websocket connected")

	_ = socket.SetDeadline(time.Now().Add(h.client.config.PingInterval + h.client.config.PongWait))
}

func (h *wsEventHandler) OnClose(socket *gws.Conn, err error) {
	h.client.state.Store(ws.StateDisconnected)

	h.client.mu.Lock()
	h.client.connectedChan = make(chan struct{})
	hooks := append([]func(){}, h.client.closeHooks...)
	h.client.mu.Unlock()

	for _, hook := range hooks {
		hook()
	}

	h.client.logger.Warn().
		Err(err).
		Str("url", h.client.config.URL).
		Msg("websocket disconnected")

	if h.client.config.ReconnectEnabled {
		select {
		case <-h.client.stopChan:
			return
		default:
			go h.client.attemptReconnect()
		}
	}
}

func (h *wsEventHandler) OnPing(socket *gws.Conn, payload []byte) {
	_ = socket.SetDeadline(time.Now().Add(h.client.config.PingInterval + h.client.config.PongWait))
	_ = socket.WritePong(nil)
}

func (h *wsEventHandler) OnPong(socket *gws.Conn, payload []byte) {
	_ = socket.SetDeadline(time.Now().Add(h.client.config.PingInterval + h.client.config.PongWait))
}

func (h *wsEventHandler) OnMessage(socket *gws.Conn, message *gws.Message) {
	defer message.Close()

	data := message.Bytes()
	if len(data) == 0 {
		return
	}

	var frame Frame
	if err := sonic.Unmarshal(data, &frame); err != nil {
		h.client.logger.Debug().Err(err).Msg("dropping unparseable frame")
		return
	}

	h.client.dispatch(frame)
}

func (c *WSClient) dispatch(frame Frame) {
	c.mu.RLock()
	handler := c.handlers[frame.Channel]
	sub := c.subs[frame.Channel]
	c.mu.RUnlock()

	if handler != nil {
		handler(frame.Data)
	}
	if sub != nil {
		select {
		case <-sub.closeCh:
		case sub.dataCh <- frame.Data:
		default:
			c.logger.Warn().Str("channel", frame.Channel).Msg("subscription buffer full, dropping frame")
		}
	}
	if handler == nil && sub == nil {
		c.logger.Debug().Str("channel", frame.Channel).Msg("frame for unclaimed channel")
	}
}

// Connect establishes the connection, blocking until open, context expiry or
// client shutdown.
func (c *WSClient) Connect(ctx context.Context) error {
	if !c.state.CompareAndSwap(ws.StateDisconnected, ws.StateConnecting) {
		current := c.state.Load()
		if current == ws.StateConnected {
			return nil
		}
		return fmt.Errorf("invalid state for connect: %s", current)
	}

	socket, _, err := gws.NewClient(c.handler, &gws.ClientOption{
		Addr: c.config.URL,
	})
	if err != nil {
		c.state.Store(ws.StateDisconnected)
		return fmt.Errorf("connect websocket: %w", err)
	}

	c.mu.Lock()
	c.conn = socket
	connected := c.connectedChan
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		socket.ReadLoop()
	}()

	select {
	case <-connected:
		return nil
	case <-ctx.Done():
		_ = socket.NetConn().Close()
		c.state.Store(ws.StateDisconnected)
		return ctx.Err()
	case <-c.stopChan:
		_ = socket.NetConn().Close()
		c.state.Store(ws.StateClosed)
		return fmt.Errorf("client stopped")
	}
}

// Close shuts the connection down and tears down all subscriptions.
func (c *WSClient) Close() error {
	if !c.state.CompareAndSwap(ws.StateConnected, ws.StateClosed) &&
		!c.state.CompareAndSwap(ws.StateConnecting, ws.StateClosed) &&
		!c.state.CompareAndSwap(ws.StateReconnecting, ws.StateClosed) &&
		!c.state.CompareAndSwap(ws.StateDisconnected, ws.StateClosed) {
		return nil
	}

	close(c.stopChan)

	c.mu.Lock()
	if c.conn != nil {
		_ = c.conn.NetConn().Close()
	}
	for _, sub := range c.subs {
		close(sub.closeCh)
		close(sub.dataCh)
	}
	c.subs = make(map[string]*wsSubscription)
	hooks := append([]func(){}, c.closeHooks...)
	c.mu.Unlock()

	for _, hook := range hooks {
		hook()
	}

	c.wg.Wait()
	return nil
}

// State returns the current connection state.
func (c *WSClient) State() ws.ConnState {
	return c.state.Load()
}

// IsConnected reports whether the connection is open.
func (c *WSClient) IsConnected() bool {
	return c.state.Load() == ws.StateConnected
}

// RegisterHandler installs an inline handler for one channel's frames.
// It replaces any previous handler for the channel.
func (c *WSClient) RegisterHandler(channel string, handler FrameHandler) {
	c.mu.Lock()
	c.handlers[channel] = handler
	c.mu.Unlock()
}

// UnregisterHandler removes the channel's inline handler.
func (c *WSClient) UnregisterHandler(channel string) {
	c.mu.Lock()
	delete(c.handlers, channel)
	c.mu.Unlock()
}

// OnDisconnect registers a hook invoked whenever the connection drops or the
// client closes. Used to fail in-flight correlated requests.
func (c *WSClient) OnDisconnect(hook func()) {
	c.mu.Lock()
	c.closeHooks = append(c.closeHooks, hook)
	c.mu.Unlock()
}

// SubscribeChannel returns a buffered channel of payloads for one stream.
// Frames are dropped, with a warning, when the buffer is full.
func (c *WSClient) SubscribeChannel(channel string) <-chan json.RawMessage {
	sub := &wsSubscription{
		channel: channel,
		dataCh:  make(chan json.RawMessage, c.config.BufferSize),
		closeCh: make(chan struct{}),
	}

	c.mu.Lock()
	c.subs[channel] = sub
	c.mu.Unlock()

	c.logger.Debug().Str("channel", channel).Msg("subscribed to channel")
	return sub.dataCh
}

// UnsubscribeChannel tears down the stream subscription for the channel.
func (c *WSClient) UnsubscribeChannel(channel string) {
	c.mu.Lock()
	if sub, ok := c.subs[channel]; ok {
		close(sub.closeCh)
		close(sub.dataCh)
		delete(c.subs, channel)
	}
	c.mu.Unlock()

	c.logger.Debug().Str("channel", channel).Msg("unsubscribed from channel")
}

// WriteMessage sends a raw text frame. It fails when not connected.
func (c *WSClient) WriteMessage(data []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.conn == nil || !c.state.Load().Writable() {
		return fmt.Errorf("websocket not connected")
	}

	return c.conn.WriteMessage(gws.OpcodeText, data)
}

// SendJSON marshals v with sonic and sends it as a text frame.
func (c *WSClient) SendJSON(v any) error {
	data, err := sonic.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	return c.WriteMessage(data)
}

// SendPing sends a ping control frame.
func (c *WSClient) SendPing() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.conn == nil || !c.state.Load().Writable() {
		return fmt.Errorf("websocket not connected")
	}

	return c.conn.WritePing(nil)
}

func (c *WSClient) attemptReconnect() {
	if !c.state.CompareAndSwap(ws.StateDisconnected, ws.StateReconnecting) {
		return
	}

	for {
		select {
		case <-c.stopChan:
			return
		default:
		}

		c.mu.Lock()
		attempts := c.reconnectAttempts
		c.reconnectAttempts++
		c.mu.Unlock()

		wait := c.backoff(attempts)
		c.logger.Info().
			Dur("wait", wait).
			Int("attempt", attempts+1).
			Msg("attempting reconnect")

		select {
		case <-time.After(wait):
		case <-c.stopChan:
			return
		}

		c.state.Store(ws.StateDisconnected)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := c.Connect(ctx); err != nil {
			c.logger.Error().Err(err).
				Int("attempt", attempts+1).
				Msg("reconnect failed")
			cancel()
			c.state.Store(ws.StateReconnecting)
			continue
		}
		cancel()

		c.logger.Info().Msg("reconnected successfully")
		return
	}
}

func (c *WSClient) backoff(attempts int) time.Duration {
	return min(c.config.ReconnectBaseWait*time.Duration(1<<uint(attempts)), c.config.ReconnectMaxWait)
}
