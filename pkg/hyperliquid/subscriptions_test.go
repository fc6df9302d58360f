package hyperliquid

import (
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hyperwire/internal/transport"
	"hyperwire/pkg/core"
)

func newTestStreams(t *testing.T) *streamManager {
	t.Helper()
	ws := transport.NewWSClient(transport.WSConfig{URL: "wss://example.invalid/ws"})
	return newStreamManager(ws, newTestRegistry(t), zerolog.Nop())
}

func TestStreams_TradesRouteByCoinAndTranslate(t *testing.T) {
	m := newTestStreams(t)

	btc := make(chan core.Trade, 1)
	eth := make(chan core.Trade, 1)
	m.trades["BTC"] = []chan core.Trade{btc}
	m.trades["ETH"] = []chan core.Trade{eth}

	m.handleTrades(json.RawMessage(`[
		{"coin":"BTC","side":"A","px":"65000.5","sz":"0.1","time":1700000000000,"tid":9}]`))

	select {
	case trade := <-btc:
		assert.Equal(t, "BTC-PERP-0", trade.Coin)
		assert.Equal(t, core.SideSell, trade.Side)
		assert.Equal(t, "65000.5", trade.Price.Text('f'))
		assert.Equal(t, int64(9), trade.TID)
	default:
		t.Fatal("BTC subscriber did not receive the trade")
	}

	select {
	case <-eth:
		t.Fatal("ETH subscriber must not receive BTC trades")
	default:
	}
}

func TestStreams_SlowTradeSubscriberDrops(t *testing.T) {
	m := newTestStreams(t)

	full := make(chan core.Trade) // unbuffered, nobody reading
	m.trades["BTC"] = []chan core.Trade{full}

	// Must not block the dispatch path.
	m.handleTrades(json.RawMessage(`[{"coin":"BTC","side":"B","px":"1","sz":"1","time":0,"tid":1}]`))
}

func TestStreams_AllMidsTranslatesKeys(t *testing.T) {
	m := newTestStreams(t)

	ch := make(chan map[string]string, 1)
	m.mids = []chan map[string]string{ch}

	m.handleAllMids(json.RawMessage(`{"mids":{"BTC":"65000.5","PURR/USDC":"0.21","UNKNOWN":"1.0"}}`))

	mids := <-ch
	assert.Equal(t, "65000.5", mids["BTC-PERP-0"])
	assert.Equal(t, "0.21", mids["PURR-SPOT-0"])
	assert.Equal(t, "1.0", mids["UNKNOWN"], "unknown symbols fail open")
}

func TestStreams_L2BookRoutesByVenueCoin(t *testing.T) {
	m := newTestStreams(t)

	ch := make(chan *core.L2Book, 1)
	m.books["BTC"] = []chan *core.L2Book{ch}

	m.handleL2Book(json.RawMessage(`{"coin":"BTC","time":1,"levels":[
		[{"px":"64999.0","sz":"1.0","n":1}],[{"px":"65001.0","sz":"1.0","n":1}]]}`))

	book := <-ch
	assert.Equal(t, "BTC-PERP-0", book.Coin)
	require.Len(t, book.Bids, 1)
}

func TestStreams_UserFillsRouteByAddress(t *testing.T) {
	m := newTestStreams(t)

	mine := make(chan core.Fill, 1)
	other := make(chan core.Fill, 1)
	m.fills["0xabc"] = []chan core.Fill{mine}
	m.fills["0xdef"] = []chan core.Fill{other}

	m.handleUserFills(json.RawMessage(`{"user":"0xABC","fills":[
		{"coin":"ETH","px":"3200.5","sz":"2.0","side":"B","time":1700000000000,
		 "oid":55,"tid":66,"fee":"0.4","closedPnl":"12.5"}]}`))

	select {
	case fill := <-mine:
		assert.Equal(t, "ETH-PERP-1", fill.Coin)
		assert.Equal(t, core.SideBuy, fill.Side)
		assert.Equal(t, int64(55), fill.OID)
		assert.Equal(t, "0.4", fill.Fee.Text('f'))
		assert.Equal(t, "12.5", fill.ClosedPnl.Text('f'))
	default:
		t.Fatal("subscriber did not receive the fill")
	}

	select {
	case <-other:
		t.Fatal("fills must not cross accounts")
	default:
	}
}

func TestStreams_UnsubscribeLastRemovesRoute(t *testing.T) {
	m := newTestStreams(t)

	ch := make(chan core.Trade, 1)
	m.trades["BTC"] = []chan core.Trade{ch}

	last := m.removeTrades("BTC", ch)
	assert.True(t, last)
	assert.NotContains(t, m.trades, "BTC")

	_, open := <-ch
	assert.False(t, open, "detached subscriber channel must be closed")
}
