package hyperliquid

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog"

	"hyperwire/internal/circuitbreaker"
	"hyperwire/internal/ratelimit"
	"hyperwire/internal/transport"
	"hyperwire/pkg/core"
	"hyperwire/pkg/symbols"
)

// Client is the unauthenticated venue client. It exposes the public query
// surface and owns the symbol registry, rate limiter and transports shared
// with the authenticated variant. Safe for concurrent use.
type Client struct {
	config   *core.Config
	logger   zerolog.Logger
	http     *transport.HTTPClient
	registry *symbols.Registry
	pipeline *Pipeline

	mu      sync.RWMutex
	ws      *transport.WSClient
	post    *poster
	streams *streamManager

	closeOnce sync.Once
}

// Option customizes client construction.
type Option func(*clientOptions)

type clientOptions struct {
	logger zerolog.Logger
}

// WithLogger injects a logger. The default discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *clientOptions) {
		o.logger = logger
	}
}

// NewClient creates a Client for the configured network and starts the
// registry's background refresh. Translated calls block in EnsureReady until
// the first refresh lands; raw calls never wait.
func NewClient(config *core.Config, opts ...Option) (*Client, error) {
	if config == nil {
		config = core.DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	options := clientOptions{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&options)
	}

	httpClient, err := transport.NewHTTPClient(transport.HTTPConfig{
		BaseURL:      config.BaseURL(),
		Timeout:      config.Timeout,
		MaxRetries:   config.MaxRetries,
		RetryWaitMin: config.RetryWaitMin,
		RetryWaitMax: config.RetryWaitMax,
	}, options.logger)
	if err != nil {
		return nil, err
	}

	var breaker *circuitbreaker.Breaker
	if config.CircuitBreakerEnabled {
		breaker = circuitbreaker.New(circuitbreaker.Config{
			FailThreshold:    config.CircuitBreakerFailThreshold,
			SuccessThreshold: config.CircuitBreakerSuccessThreshold,
			Timeout:          config.CircuitBreakerTimeout,
		})
	}

	c := &Client{
		config: config,
		logger: options.logger,
		http:   httpClient,
	}

	limiter := ratelimit.New(config.RateLimitWeight, config.RateLimitPeriod)
	c.registry = symbols.New(metaSource{c}, config.RefreshInterval)
	c.registry.SetLogger(options.logger)
	c.pipeline = newPipeline(httpClient, limiter, c.registry, breaker, options.logger)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*config.Timeout)
		defer cancel()
		if err := c.registry.Refresh(ctx); err != nil {
			c.logger.Warn().Err(err).Msg("initial symbol registry refresh failed")
		}
	}()
	c.registry.Start()

	return c, nil
}

// metaSource feeds the registry from the venue's info endpoint. Metadata
// fetches are raw by construction: they must not wait on the readiness they
// themselves establish.
type metaSource struct {
	c *Client
}

func (m metaSource) PerpMeta(ctx context.Context) (*symbols.PerpMeta, error) {
	raw, err := m.c.pipeline.SendRaw(ctx, nil, core.NewRequest("/info").
		SetBody(core.Params{"type": "meta"}).
		SetWeight(weightInfo))
	if err != nil {
		return nil, err
	}
	return symbols.ParsePerpMeta(raw)
}

func (m metaSource) SpotMeta(ctx context.Context) (*symbols.SpotMeta, error) {
	raw, err := m.c.pipeline.SendRaw(ctx, nil, core.NewRequest("/info").
		SetBody(core.Params{"type": "spotMeta"}).
		SetWeight(weightInfo))
	if err != nil {
		return nil, err
	}
	return symbols.ParseSpotMeta(raw)
}

// Registry exposes the client's symbol registry.
func (c *Client) Registry() *symbols.Registry {
	return c.registry
}

// EnsureReady blocks until the registry has completed at least one refresh.
// Facades call it implicitly before every translated operation.
func (c *Client) EnsureReady(ctx context.Context) error {
	return c.registry.EnsureReady(ctx)
}

// ConnectWS establishes the websocket connection. Once connected, query
// methods route over correlated post requests instead of REST, and
// subscriptions become available.
func (c *Client) ConnectWS(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ws != nil {
		if c.ws.IsConnected() {
			return nil
		}
		// A previous connection dropped. Tear it down fully so its reconnect
		// loop stops dialing before the replacement takes over.
		if c.post != nil {
			c.post.close()
		}
		_ = c.ws.Close()
	}

	ws := transport.NewWSClient(transport.WSConfig{
		URL:              c.config.WebsocketURL(),
		ReconnectEnabled: true,
	})
	ws.SetLogger(c.logger)

	if err := ws.Connect(ctx); err != nil {
		return classifyTransportError(err)
	}

	c.ws = ws
	c.post = newPoster(ws, c.config.PostTimeout)
	c.streams = newStreamManager(ws, c.registry, c.logger)
	return nil
}

// Close stops the registry refresh, closes both transports and rejects any
// websocket post requests still awaiting correlation.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.registry.Close()

		c.mu.Lock()
		if c.post != nil {
			c.post.close()
		}
		if c.ws != nil {
			err = c.ws.Close()
		}
		c.mu.Unlock()

		if httpErr := c.http.Close(); err == nil {
			err = httpErr
		}
	})
	return err
}

// activePoster returns the websocket poster, or nil when REST should be used.
func (c *Client) activePoster() *poster {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.ws != nil && c.ws.IsConnected() {
		return c.post
	}
	return nil
}

// sendRaw dispatches a request over the preferred transport and returns the
// undecoded body.
func (c *Client) sendRaw(ctx context.Context, req *core.Request) ([]byte, error) {
	return c.pipeline.SendRaw(ctx, c.activePoster(), req)
}

// send dispatches a request over the preferred transport and returns the
// decoded, optionally translated, body.
func (c *Client) send(ctx context.Context, req *core.Request) (any, error) {
	return c.pipeline.Send(ctx, c.activePoster(), req)
}

// Info performs an arbitrary info query with the response translated through
// the registry for the given symbol fields. The escape hatch for endpoints the
// typed surface does not cover.
func (c *Client) Info(ctx context.Context, body core.Params, symbolFields ...string) (any, error) {
	return c.send(ctx, core.NewRequest("/info").
		SetBody(body).
		SetWeight(weightLight).
		SetTranslate(symbolFields...))
}

// InfoRaw performs an arbitrary info query with venue-native identifiers,
// skipping translation and the registry readiness wait.
func (c *Client) InfoRaw(ctx context.Context, body core.Params) ([]byte, error) {
	return c.sendRaw(ctx, core.NewRequest("/info").
		SetBody(body).
		SetWeight(weightLight))
}

// Meta returns the perpetual universe metadata. Metadata is venue-native by
// definition and never waits on the registry.
func (c *Client) Meta(ctx context.Context) (*symbols.PerpMeta, error) {
	return metaSource{c}.PerpMeta(ctx)
}

// SpotMeta returns the spot universe metadata.
func (c *Client) SpotMeta(ctx context.Context) (*symbols.SpotMeta, error) {
	return metaSource{c}.SpotMeta(ctx)
}

// AllMids returns current mid prices keyed by internal name. Unknown venue
// symbols keep their venue key.
func (c *Client) AllMids(ctx context.Context) (map[string]string, error) {
	if err := c.EnsureReady(ctx); err != nil {
		return nil, err
	}
	raw, err := c.AllMidsRaw(ctx)
	if err != nil {
		return nil, err
	}

	mids := make(map[string]string, len(raw))
	for coin, px := range raw {
		mids[c.registry.ResolveSymbol(coin, symbols.ClassAny)] = px
	}
	return mids, nil
}

// AllMidsRaw returns current mid prices keyed by venue symbol.
func (c *Client) AllMidsRaw(ctx context.Context) (map[string]string, error) {
	raw, err := c.sendRaw(ctx, core.NewRequest("/info").
		SetBody(core.Params{"type": "allMids"}).
		SetWeight(weightLight))
	if err != nil {
		return nil, err
	}

	var mids map[string]string
	if err := sonic.Unmarshal(raw, &mids); err != nil {
		return nil, core.NewVenueError(core.ErrorTypeAPI, "malformed allMids response").WithCause(err)
	}
	return mids, nil
}

// L2Book returns the order book for a listing addressed by internal name.
func (c *Client) L2Book(ctx context.Context, coin string) (*core.L2Book, error) {
	if err := c.EnsureReady(ctx); err != nil {
		return nil, err
	}
	raw, err := c.L2BookRaw(ctx, c.registry.VenueSymbol(coin))
	if err != nil {
		return nil, err
	}

	book, err := parseL2Book(raw)
	if err != nil {
		return nil, err
	}
	book.Coin = coin
	return book, nil
}

// L2BookRaw returns the undecoded order book for a venue-native coin.
func (c *Client) L2BookRaw(ctx context.Context, coin string) ([]byte, error) {
	return c.sendRaw(ctx, core.NewRequest("/info").
		SetBody(core.Params{"type": "l2Book", "coin": coin}).
		SetWeight(weightLight))
}

// OpenOrders returns a user's resting orders with listings translated to
// internal names.
func (c *Client) OpenOrders(ctx context.Context, user string) ([]core.OpenOrder, error) {
	if err := c.EnsureReady(ctx); err != nil {
		return nil, err
	}
	raw, err := c.OpenOrdersRaw(ctx, user)
	if err != nil {
		return nil, err
	}

	orders, err := parseOpenOrders(raw)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Coin = c.registry.ResolveSymbol(orders[i].Coin, symbols.ClassAny)
	}
	return orders, nil
}

// OpenOrdersRaw returns the undecoded open-orders response.
func (c *Client) OpenOrdersRaw(ctx context.Context, user string) ([]byte, error) {
	return c.sendRaw(ctx, core.NewRequest("/info").
		SetBody(core.Params{"type": "openOrders", "user": user}).
		SetWeight(weightInfo))
}

// UserState returns a user's account state with embedded listings translated.
func (c *Client) UserState(ctx context.Context, user string) (any, error) {
	return c.send(ctx, core.NewRequest("/info").
		SetBody(core.Params{"type": "clearinghouseState", "user": user}).
		SetWeight(weightInfo).
		SetTranslate("coin"))
}

// UserStateRaw returns the undecoded account state with venue identifiers.
func (c *Client) UserStateRaw(ctx context.Context, user string) ([]byte, error) {
	return c.sendRaw(ctx, core.NewRequest("/info").
		SetBody(core.Params{"type": "clearinghouseState", "user": user}).
		SetWeight(weightInfo))
}

// Candles returns OHLCV data for a listing addressed by internal name.
func (c *Client) Candles(ctx context.Context, coin, interval string, start, end time.Time) ([]core.Candle, error) {
	if err := c.EnsureReady(ctx); err != nil {
		return nil, err
	}
	raw, err := c.CandlesRaw(ctx, c.registry.VenueSymbol(coin), interval, start, end)
	if err != nil {
		return nil, err
	}

	candles, err := parseCandles(raw)
	if err != nil {
		return nil, err
	}
	for i := range candles {
		candles[i].Coin = c.registry.ResolveSymbol(candles[i].Coin, symbols.ClassAny)
	}
	return candles, nil
}

// CandlesRaw returns undecoded OHLCV data for a venue-native coin.
func (c *Client) CandlesRaw(ctx context.Context, coin, interval string, start, end time.Time) ([]byte, error) {
	return c.sendRaw(ctx, core.NewRequest("/info").
		SetBody(core.Params{
			"type": "candleSnapshot",
			"req": core.Params{
				"coin":      coin,
				"interval":  interval,
				"startTime": start.UnixMilli(),
				"endTime":   end.UnixMilli(),
			},
		}).
		SetWeight(weightLight))
}
