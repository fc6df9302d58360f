package hyperliquid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hyperwire/pkg/core"
)

func TestParseL2Book_MalformedDecimal(t *testing.T) {
	raw := []byte(`{"coin":"BTC","time":1,"levels":[[{"px":"not a number","sz":"1","n":1}],[]]}`)

	_, err := parseL2Book(raw)

	var venueErr *core.VenueError
	require.ErrorAs(t, err, &venueErr)
	assert.Equal(t, core.ErrorTypeAPI, venueErr.Type)
}

func TestParseOpenOrders_SideCodes(t *testing.T) {
	raw := []byte(`[
		{"coin":"BTC","limitPx":"1","oid":1,"side":"B","sz":"1","timestamp":0},
		{"coin":"BTC","limitPx":"1","oid":2,"side":"A","sz":"1","timestamp":0}]`)

	orders, err := parseOpenOrders(raw)
	require.NoError(t, err)
	require.Len(t, orders, 2)

	assert.Equal(t, core.SideBuy, orders[0].Side)
	assert.Equal(t, core.SideSell, orders[1].Side)
}

func TestParseCandles_Empty(t *testing.T) {
	candles, err := parseCandles([]byte(`[]`))
	require.NoError(t, err)
	assert.Empty(t, candles)
}
