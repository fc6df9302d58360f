package hyperliquid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hyperwire/pkg/core"
)

func TestOrderBuilder_Valid(t *testing.T) {
	order, err := NewOrderBuilder("BTC-PERP-0").
		Buy().
		Price("65000.5").
		Size("0.01").
		ALO().
		Cloid("0x00000000000000000000000000000001").
		Build()

	require.NoError(t, err)
	assert.Equal(t, "BTC-PERP-0", order.Coin)
	assert.Equal(t, core.SideBuy, order.Side)
	assert.Equal(t, "65000.5", order.Price.Text('f'))
	assert.Equal(t, "0.01", order.Size.Text('f'))
	assert.Equal(t, ALO, order.TimeInForce)
	assert.False(t, order.ReduceOnly)
}

func TestOrderBuilder_DefaultsToGTC(t *testing.T) {
	order, err := NewOrderBuilder("ETH-PERP-1").
		Sell().
		Price("3200").
		Size("1").
		Build()

	require.NoError(t, err)
	assert.Equal(t, GTC, order.TimeInForce)
}

func TestOrderBuilder_ReduceOnly(t *testing.T) {
	order, err := NewOrderBuilder("ETH-PERP-1").
		Sell().
		Price("3200").
		Size("1").
		ReduceOnly().
		Build()

	require.NoError(t, err)
	assert.True(t, order.ReduceOnly)
}

func TestOrderBuilder_Errors(t *testing.T) {
	tests := []struct {
		name    string
		builder *OrderBuilder
	}{
		{"missing coin", NewOrderBuilder("").Buy().Price("1").Size("1")},
		{"zero size", NewOrderBuilder("BTC-PERP-0").Buy().Price("1").Size("0")},
		{"negative size", NewOrderBuilder("BTC-PERP-0").Buy().Price("1").Size("-1")},
		{"zero price", NewOrderBuilder("BTC-PERP-0").Buy().Price("0").Size("1")},
		{"unparseable price", NewOrderBuilder("BTC-PERP-0").Buy().Price("abc").Size("1")},
		{"unparseable size", NewOrderBuilder("BTC-PERP-0").Buy().Price("1").Size("abc")},
		{"bad time in force", NewOrderBuilder("BTC-PERP-0").Buy().Price("1").Size("1").TimeInForce("Day")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.builder.Build()
			require.Error(t, err)
		})
	}
}

func TestOrderBuilder_FirstErrorSticks(t *testing.T) {
	_, err := NewOrderBuilder("BTC-PERP-0").
		Price("not a number").
		Size("also bad").
		Build()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "price")
}
