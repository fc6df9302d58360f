package hyperliquid

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cockroachdb/apd/v3"
	"github.com/rs/zerolog"

	"hyperwire/internal/transport"
	"hyperwire/pkg/core"
	"hyperwire/pkg/symbols"
)

const (
	channelTrades    = "trades"
	channelL2Book    = "l2Book"
	channelAllMids   = "allMids"
	channelUserFills = "userFills"

	streamBuffer = 64
)

type subscribeMessage struct {
	Method       string      `json:"method"`
	Subscription core.Params `json:"subscription"`
}

type wireTrade struct {
	Coin string `json:"coin"`
	Side string `json:"side"`
	Px   string `json:"px"`
	Sz   string `json:"sz"`
	Time int64  `json:"time"`
	TID  int64  `json:"tid"`
}

type wireAllMids struct {
	Mids map[string]string `json:"mids"`
}

type wireUserFills struct {
	User  string `json:"user"`
	Fills []struct {
		Coin      string `json:"coin"`
		Px        string `json:"px"`
		Sz        string `json:"sz"`
		Side      string `json:"side"`
		Time      int64  `json:"time"`
		OID       int64  `json:"oid"`
		TID       int64  `json:"tid"`
		Fee       string `json:"fee"`
		ClosedPnl string `json:"closedPnl"`
	} `json:"fills"`
}

// streamManager fans inbound market-data frames out to per-coin subscriber
// channels. One frame handler per venue channel, registered lazily. Slow
// consumers drop frames rather than stall the read loop.
type streamManager struct {
	ws       *transport.WSClient
	registry *symbols.Registry
	logger   zerolog.Logger

	mu     sync.Mutex
	trades map[string][]chan core.Trade
	books  map[string][]chan *core.L2Book
	mids   []chan map[string]string
	fills  map[string][]chan core.Fill
}

func newStreamManager(ws *transport.WSClient, registry *symbols.Registry, logger zerolog.Logger) *streamManager {
	return &streamManager{
		ws:       ws,
		registry: registry,
		logger:   logger,
		trades:   make(map[string][]chan core.Trade),
		books:    make(map[string][]chan *core.L2Book),
		fills:    make(map[string][]chan core.Fill),
	}
}

func (m *streamManager) subscribe(subscription core.Params) error {
	return m.ws.SendJSON(subscribeMessage{Method: "subscribe", Subscription: subscription})
}

func (m *streamManager) unsubscribe(subscription core.Params) {
	if err := m.ws.SendJSON(subscribeMessage{Method: "unsubscribe", Subscription: subscription}); err != nil {
		m.logger.Warn().Err(err).Msg("unsubscribe failed")
	}
}

func (m *streamManager) subscribeTrades(coin string) (<-chan core.Trade, func(), error) {
	venueCoin := m.registry.VenueSymbol(coin)

	m.mu.Lock()
	if len(m.trades) == 0 {
		m.ws.RegisterHandler(channelTrades, m.handleTrades)
	}
	ch := make(chan core.Trade, streamBuffer)
	m.trades[venueCoin] = append(m.trades[venueCoin], ch)
	m.mu.Unlock()

	if err := m.subscribe(core.Params{"type": channelTrades, "coin": venueCoin}); err != nil {
		m.removeTrades(venueCoin, ch)
		return nil, nil, classifyTransportError(err)
	}

	cancel := func() {
		if m.removeTrades(venueCoin, ch) {
			m.unsubscribe(core.Params{"type": channelTrades, "coin": venueCoin})
		}
	}
	return ch, cancel, nil
}

// removeTrades detaches one subscriber and reports whether it was the last
// for its coin.
func (m *streamManager) removeTrades(venueCoin string, ch chan core.Trade) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	subs := m.trades[venueCoin]
	for i, sub := range subs {
		if sub == ch {
			m.trades[venueCoin] = append(subs[:i], subs[i+1:]...)
			close(ch)
			break
		}
	}
	if len(m.trades[venueCoin]) == 0 {
		delete(m.trades, venueCoin)
		return true
	}
	return false
}

func (m *streamManager) handleTrades(data json.RawMessage) {
	var wire []wireTrade
	if err := sonic.Unmarshal(data, &wire); err != nil {
		m.logger.Warn().Err(err).Msg("malformed trades frame")
		return
	}

	for _, t := range wire {
		px, err := parseDecimal(t.Px)
		if err != nil {
			continue
		}
		sz, err := parseDecimal(t.Sz)
		if err != nil {
			continue
		}

		side := core.SideBuy
		if t.Side == "A" || t.Side == "sell" {
			side = core.SideSell
		}

		trade := core.Trade{
			Coin:  m.registry.ResolveSymbol(t.Coin, symbols.ClassAny),
			Side:  side,
			Price: px,
			Size:  sz,
			Time:  time.UnixMilli(t.Time),
			TID:   t.TID,
		}

		m.mu.Lock()
		for _, ch := range m.trades[t.Coin] {
			select {
			case ch <- trade:
			default:
				m.logger.Warn().Str("coin", t.Coin).Msg("trade subscriber full, dropping")
			}
		}
		m.mu.Unlock()
	}
}

func (m *streamManager) subscribeL2Book(coin string) (<-chan *core.L2Book, func(), error) {
	venueCoin := m.registry.VenueSymbol(coin)

	m.mu.Lock()
	if len(m.books) == 0 {
		m.ws.RegisterHandler(channelL2Book, m.handleL2Book)
	}
	ch := make(chan *core.L2Book, streamBuffer)
	m.books[venueCoin] = append(m.books[venueCoin], ch)
	m.mu.Unlock()

	if err := m.subscribe(core.Params{"type": channelL2Book, "coin": venueCoin}); err != nil {
		m.removeBooks(venueCoin, ch)
		return nil, nil, classifyTransportError(err)
	}

	cancel := func() {
		if m.removeBooks(venueCoin, ch) {
			m.unsubscribe(core.Params{"type": channelL2Book, "coin": venueCoin})
		}
	}
	return ch, cancel, nil
}

func (m *streamManager) removeBooks(venueCoin string, ch chan *core.L2Book) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	subs := m.books[venueCoin]
	for i, sub := range subs {
		if sub == ch {
			m.books[venueCoin] = append(subs[:i], subs[i+1:]...)
			close(ch)
			break
		}
	}
	if len(m.books[venueCoin]) == 0 {
		delete(m.books, venueCoin)
		return true
	}
	return false
}

func (m *streamManager) handleL2Book(data json.RawMessage) {
	book, err := parseL2Book(data)
	if err != nil {
		m.logger.Warn().Err(err).Msg("malformed l2Book frame")
		return
	}
	venueCoin := book.Coin
	book.Coin = m.registry.ResolveSymbol(venueCoin, symbols.ClassAny)

	m.mu.Lock()
	for _, ch := range m.books[venueCoin] {
		select {
		case ch <- book:
		default:
			m.logger.Warn().Str("coin", venueCoin).Msg("book subscriber full, dropping")
		}
	}
	m.mu.Unlock()
}

func (m *streamManager) subscribeAllMids() (<-chan map[string]string, func(), error) {
	m.mu.Lock()
	if len(m.mids) == 0 {
		m.ws.RegisterHandler(channelAllMids, m.handleAllMids)
	}
	ch := make(chan map[string]string, streamBuffer)
	m.mids = append(m.mids, ch)
	m.mu.Unlock()

	if err := m.subscribe(core.Params{"type": channelAllMids}); err != nil {
		m.removeMids(ch)
		return nil, nil, classifyTransportError(err)
	}

	cancel := func() {
		if m.removeMids(ch) {
			m.unsubscribe(core.Params{"type": channelAllMids})
		}
	}
	return ch, cancel, nil
}

func (m *streamManager) removeMids(ch chan map[string]string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, sub := range m.mids {
		if sub == ch {
			m.mids = append(m.mids[:i], m.mids[i+1:]...)
			close(ch)
			break
		}
	}
	return len(m.mids) == 0
}

func (m *streamManager) handleAllMids(data json.RawMessage) {
	var wire wireAllMids
	if err := sonic.Unmarshal(data, &wire); err != nil {
		m.logger.Warn().Err(err).Msg("malformed allMids frame")
		return
	}

	mids := make(map[string]string, len(wire.Mids))
	for coin, px := range wire.Mids {
		mids[m.registry.ResolveSymbol(coin, symbols.ClassAny)] = px
	}

	m.mu.Lock()
	for _, ch := range m.mids {
		select {
		case ch <- mids:
		default:
			m.logger.Warn().Msg("mids subscriber full, dropping")
		}
	}
	m.mu.Unlock()
}

func (m *streamManager) subscribeUserFills(user string) (<-chan core.Fill, func(), error) {
	key := strings.ToLower(user)

	m.mu.Lock()
	if len(m.fills) == 0 {
		m.ws.RegisterHandler(channelUserFills, m.handleUserFills)
	}
	ch := make(chan core.Fill, streamBuffer)
	m.fills[key] = append(m.fills[key], ch)
	m.mu.Unlock()

	if err := m.subscribe(core.Params{"type": channelUserFills, "user": user}); err != nil {
		m.removeFills(key, ch)
		return nil, nil, classifyTransportError(err)
	}

	cancel := func() {
		if m.removeFills(key, ch) {
			m.unsubscribe(core.Params{"type": channelUserFills, "user": user})
		}
	}
	return ch, cancel, nil
}

func (m *streamManager) removeFills(key string, ch chan core.Fill) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	subs := m.fills[key]
	for i, sub := range subs {
		if sub == ch {
			m.fills[key] = append(subs[:i], subs[i+1:]...)
			close(ch)
			break
		}
	}
	if len(m.fills[key]) == 0 {
		delete(m.fills, key)
		return true
	}
	return false
}

func (m *streamManager) handleUserFills(data json.RawMessage) {
	var wire wireUserFills
	if err := sonic.Unmarshal(data, &wire); err != nil {
		m.logger.Warn().Err(err).Msg("malformed userFills frame")
		return
	}
	key := strings.ToLower(wire.User)

	for _, f := range wire.Fills {
		px, err := parseDecimal(f.Px)
		if err != nil {
			continue
		}
		sz, err := parseDecimal(f.Sz)
		if err != nil {
			continue
		}
		var fee, pnl apd.Decimal
		_, _, _ = fee.SetString(f.Fee)
		_, _, _ = pnl.SetString(f.ClosedPnl)

		side := core.SideBuy
		if f.Side == "A" || f.Side == "sell" {
			side = core.SideSell
		}

		fill := core.Fill{
			Coin:      m.registry.ResolveSymbol(f.Coin, symbols.ClassAny),
			OID:       f.OID,
			Side:      side,
			Price:     px,
			Size:      sz,
			Fee:       fee,
			ClosedPnl: pnl,
			Time:      time.UnixMilli(f.Time),
			TID:       f.TID,
		}

		m.mu.Lock()
		for _, ch := range m.fills[key] {
			select {
			case ch <- fill:
			default:
				m.logger.Warn().Str("user", wire.User).Msg("fill subscriber full, dropping")
			}
		}
		m.mu.Unlock()
	}
}

// SubscribeTrades streams executed trades for a listing addressed by internal
// name. Requires ConnectWS. The returned cancel function detaches the
// subscriber and closes the channel.
func (c *Client) SubscribeTrades(coin string) (<-chan core.Trade, func(), error) {
	streams, err := c.activeStreams()
	if err != nil {
		return nil, nil, err
	}
	return streams.subscribeTrades(coin)
}

// SubscribeL2Book streams order-book snapshots for a listing addressed by
// internal name. Requires ConnectWS.
func (c *Client) SubscribeL2Book(coin string) (<-chan *core.L2Book, func(), error) {
	streams, err := c.activeStreams()
	if err != nil {
		return nil, nil, err
	}
	return streams.subscribeL2Book(coin)
}

// SubscribeAllMids streams mid-price updates for every listing, keyed by
// internal name. Requires ConnectWS.
func (c *Client) SubscribeAllMids() (<-chan map[string]string, func(), error) {
	streams, err := c.activeStreams()
	if err != nil {
		return nil, nil, err
	}
	return streams.subscribeAllMids()
}

// SubscribeUserFills streams executions for one account address. Requires
// ConnectWS.
func (c *Client) SubscribeUserFills(user string) (<-chan core.Fill, func(), error) {
	streams, err := c.activeStreams()
	if err != nil {
		return nil, nil, err
	}
	return streams.subscribeUserFills(user)
}

func (c *Client) activeStreams() (*streamManager, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.ws == nil || !c.ws.IsConnected() {
		return nil, core.ErrNotConnected
	}
	return c.streams, nil
}
