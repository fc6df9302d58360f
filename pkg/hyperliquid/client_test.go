package hyperliquid

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hyperwire/pkg/core"
)

// fakeVenue is an httptest-backed stand-in for the venue's REST API serving
// canned metadata and info responses and capturing exchange actions.
type fakeVenue struct {
	server *httptest.Server

	mu      sync.Mutex
	infos   []map[string]any
	actions [][]byte
}

func newFakeVenue(t *testing.T) *fakeVenue {
	t.Helper()
	v := &fakeVenue{}
	mux := http.NewServeMux()
	mux.HandleFunc("/info", v.handleInfo)
	mux.HandleFunc("/exchange", v.handleExchange)
	v.server = httptest.NewServer(mux)
	t.Cleanup(v.server.Close)
	return v
}

func (v *fakeVenue) handleInfo(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	var body map[string]any
	_ = sonic.Unmarshal(raw, &body)

	v.mu.Lock()
	v.infos = append(v.infos, body)
	v.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch body["type"] {
	case "meta":
		_, _ = w.Write([]byte(`{"universe":[
			{"name":"BTC","szDecimals":5,"maxLeverage":50},
			{"name":"ETH","szDecimals":4,"maxLeverage":50}]}`))
	case "spotMeta":
		_, _ = w.Write([]byte(`{
			"universe":[{"name":"PURR/USDC","tokens":[1,0],"index":0}],
			"tokens":[{"name":"USDC","index":0},{"name":"PURR","index":1}]}`))
	case "allMids":
		_, _ = w.Write([]byte(`{"BTC":"65000.5","ETH":"3200.1","PURR/USDC":"0.21"}`))
	case "l2Book":
		_, _ = w.Write([]byte(`{"coin":"BTC","time":1700000000000,"levels":[
			[{"px":"64999.0","sz":"1.5","n":3}],
			[{"px":"65001.0","sz":"2.0","n":4}]]}`))
	case "openOrders":
		_, _ = w.Write([]byte(`[{"coin":"ETH","limitPx":"3200.5","oid":1234,"side":"B","sz":"1.25","timestamp":1700000000000}]`))
	case "clearinghouseState":
		_, _ = w.Write([]byte(`{
			"assetPositions":[{"position":{"coin":"BTC","szi":"0.5","entryPx":"64000.0"}}],
			"marginSummary":{"accountValue":"10000.0"}}`))
	case "candleSnapshot":
		_, _ = w.Write([]byte(`[{"t":1700000000000,"T":1700000060000,"s":"BTC","i":"1m",
			"o":"64000.0","c":"65000.0","h":"65500.0","l":"63900.0","v":"123.45","n":10}]`))
	default:
		_, _ = w.Write([]byte(`{"status":"err","response":"Unknown info type"}`))
	}
}

func (v *fakeVenue) handleExchange(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)

	v.mu.Lock()
	v.actions = append(v.actions, raw)
	v.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok","response":{"type":"default"}}`))
}

func (v *fakeVenue) lastInfo() map[string]any {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.infos) == 0 {
		return nil
	}
	return v.infos[len(v.infos)-1]
}

func (v *fakeVenue) lastAction(t *testing.T) map[string]any {
	t.Helper()
	v.mu.Lock()
	defer v.mu.Unlock()
	require.NotEmpty(t, v.actions)

	var envelope map[string]any
	require.NoError(t, sonic.Unmarshal(v.actions[len(v.actions)-1], &envelope))
	return envelope
}

func newTestClient(t *testing.T, venue *fakeVenue) *Client {
	t.Helper()
	config := core.DefaultConfig()
	config.APIURL = venue.server.URL

	client, err := NewClient(config)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, client.EnsureReady(ctx))
	return client
}

func TestClient_AllMidsTranslatesKeys(t *testing.T) {
	venue := newFakeVenue(t)
	client := newTestClient(t, venue)

	mids, err := client.AllMids(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "65000.5", mids["BTC-PERP-0"])
	assert.Equal(t, "3200.1", mids["ETH-PERP-1"])
	assert.Equal(t, "0.21", mids["PURR-SPOT-0"])
	assert.NotContains(t, mids, "PURR/USDC")
}

func TestClient_AllMidsRawKeepsVenueKeys(t *testing.T) {
	venue := newFakeVenue(t)
	client := newTestClient(t, venue)

	mids, err := client.AllMidsRaw(context.Background())
	require.NoError(t, err)

	assert.Contains(t, mids, "PURR/USDC")
	assert.NotContains(t, mids, "PURR-SPOT-0")
}

func TestClient_L2BookTranslatesCoinBothWays(t *testing.T) {
	venue := newFakeVenue(t)
	client := newTestClient(t, venue)

	book, err := client.L2Book(context.Background(), "BTC-PERP-0")
	require.NoError(t, err)

	// Outbound the venue saw its own symbol; the typed result is internal.
	assert.Equal(t, "BTC", venue.lastInfo()["coin"])
	assert.Equal(t, "BTC-PERP-0", book.Coin)

	require.Len(t, book.Bids, 1)
	require.Len(t, book.Asks, 1)
	assert.Equal(t, "64999.0", book.Bids[0].Price.Text('f'))
	assert.Equal(t, "2.0", book.Asks[0].Size.Text('f'))
	assert.Equal(t, 3, book.Bids[0].Orders)
	assert.Equal(t, time.UnixMilli(1700000000000), book.Time)
}

func TestClient_OpenOrdersTyped(t *testing.T) {
	venue := newFakeVenue(t)
	client := newTestClient(t, venue)

	orders, err := client.OpenOrders(context.Background(), "0xabc")
	require.NoError(t, err)
	require.Len(t, orders, 1)

	assert.Equal(t, "ETH-PERP-1", orders[0].Coin)
	assert.Equal(t, int64(1234), orders[0].OID)
	assert.Equal(t, core.SideBuy, orders[0].Side)
	assert.Equal(t, "3200.5", orders[0].LimitPrice.Text('f'))
	assert.Equal(t, "1.25", orders[0].Size.Text('f'))
}

func TestClient_UserStateTranslatesEmbedded(t *testing.T) {
	venue := newFakeVenue(t)
	client := newTestClient(t, venue)

	state, err := client.UserState(context.Background(), "0xabc")
	require.NoError(t, err)

	root, ok := state.(map[string]any)
	require.True(t, ok)
	positions := root["assetPositions"].([]any)
	position := positions[0].(map[string]any)["position"].(map[string]any)

	assert.Equal(t, "BTC-PERP-0", position["coin"])
	assert.Equal(t, 0.5, position["szi"], "numeric strings are coerced")
}

func TestClient_CandlesTyped(t *testing.T) {
	venue := newFakeVenue(t)
	client := newTestClient(t, venue)

	start := time.UnixMilli(1700000000000)
	end := start.Add(time.Hour)
	candles, err := client.Candles(context.Background(), "BTC-PERP-0", "1m", start, end)
	require.NoError(t, err)
	require.Len(t, candles, 1)

	assert.Equal(t, "BTC-PERP-0", candles[0].Coin)
	assert.Equal(t, "1m", candles[0].Interval)
	assert.Equal(t, "65000.0", candles[0].Close.Text('f'))
	assert.Equal(t, int64(10), candles[0].NumTrades)

	req := venue.lastInfo()["req"].(map[string]any)
	assert.Equal(t, "BTC", req["coin"])
}

func TestClient_InfoRawBypassesTranslation(t *testing.T) {
	venue := newFakeVenue(t)
	client := newTestClient(t, venue)

	raw, err := client.InfoRaw(context.Background(), core.Params{"type": "openOrders", "user": "0xabc"})
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"coin":"ETH"`)
}

func TestClient_MetaEndpoints(t *testing.T) {
	venue := newFakeVenue(t)
	client := newTestClient(t, venue)

	meta, err := client.Meta(context.Background())
	require.NoError(t, err)
	require.Len(t, meta.Universe, 2)
	assert.Equal(t, "BTC", meta.Universe[0].Name)

	spot, err := client.SpotMeta(context.Background())
	require.NoError(t, err)
	require.Len(t, spot.Universe, 1)
	assert.Equal(t, "PURR/USDC", spot.Universe[0].Name)
}

func TestClient_SubscriptionsRequireConnection(t *testing.T) {
	venue := newFakeVenue(t)
	client := newTestClient(t, venue)

	_, _, err := client.SubscribeTrades("BTC-PERP-0")
	require.ErrorIs(t, err, core.ErrNotConnected)

	_, _, err = client.SubscribeAllMids()
	require.ErrorIs(t, err, core.ErrNotConnected)
}

func TestClient_ConnectWSReplacesDroppedConnection(t *testing.T) {
	venue := newFakeVenue(t)
	config := core.DefaultConfig()
	config.APIURL = venue.server.URL
	config.WSURL = newSilentWSServer(t)

	client, err := NewClient(config)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, client.EnsureReady(ctx))
	require.NoError(t, client.ConnectWS(ctx))

	oldPoster := client.post
	require.NoError(t, client.ws.Close())
	require.False(t, client.ws.IsConnected())

	require.NoError(t, client.ConnectWS(ctx))
	require.True(t, client.ws.IsConnected())
	assert.NotSame(t, oldPoster, client.post)

	// The replaced poster was shut down, not abandoned.
	_, err = oldPoster.Do(ctx, "info", core.Params{"type": "meta"})
	require.ErrorIs(t, err, core.ErrClientClosed)
}

func TestNewClient_RejectsInvalidConfig(t *testing.T) {
	config := core.DefaultConfig()
	config.APIURL = "not a url"

	_, err := NewClient(config)
	require.Error(t, err)
}
