package hyperliquid

import (
	"fmt"

	"github.com/cockroachdb/apd/v3"

	"hyperwire/pkg/core"
)

// TimeInForce is the venue's resting policy for limit orders.
type TimeInForce string

const (
	// GTC rests until filled or cancelled.
	GTC TimeInForce = "Gtc"
	// IOC fills what it can immediately and cancels the rest.
	IOC TimeInForce = "Ioc"
	// ALO rests only if it adds liquidity, rejecting crossing orders.
	ALO TimeInForce = "Alo"
)

// OrderRequest is a fully specified order addressed by internal listing name.
type OrderRequest struct {
	Coin        string
	Side        core.OrderSide
	Price       apd.Decimal
	Size        apd.Decimal
	ReduceOnly  bool
	TimeInForce TimeInForce
	Cloid       string
}

// OrderBuilder provides a fluent interface for constructing order requests.
// It accumulates validation errors and reports them on Build.
//
// Example:
//
//	order, err := hyperliquid.NewOrderBuilder("BTC-PERP-0").
//	    Buy().
//	    Price("65000").
//	    Size("0.01").
//	    GTC().
//	    Build()
type OrderBuilder struct {
	order *OrderRequest
	err   error
}

// NewOrderBuilder creates a builder for the given internal listing name.
func NewOrderBuilder(coin string) *OrderBuilder {
	return &OrderBuilder{
		order: &OrderRequest{
			Coin:        coin,
			TimeInForce: GTC,
		},
	}
}

// Side sets the order direction.
func (b *OrderBuilder) Side(side core.OrderSide) *OrderBuilder {
	if b.err != nil {
		return b
	}
	b.order.Side = side
	return b
}

// Buy sets the order direction to buy.
func (b *OrderBuilder) Buy() *OrderBuilder {
	return b.Side(core.SideBuy)
}

// Sell sets the order direction to sell.
func (b *OrderBuilder) Sell() *OrderBuilder {
	return b.Side(core.SideSell)
}

// Price sets the limit price from a string representation.
func (b *OrderBuilder) Price(price string) *OrderBuilder {
	if b.err != nil {
		return b
	}
	_, _, err := b.order.Price.SetString(price)
	if err != nil {
		b.err = fmt.Errorf("parse price: %w", err)
	}
	return b
}

// PriceDecimal sets the limit price from an apd.Decimal value.
func (b *OrderBuilder) PriceDecimal(price apd.Decimal) *OrderBuilder {
	if b.err != nil {
		return b
	}
	b.order.Price.Set(&price)
	return b
}

// Size sets the order size from a string representation.
func (b *OrderBuilder) Size(size string) *OrderBuilder {
	if b.err != nil {
		return b
	}
	_, _, err := b.order.Size.SetString(size)
	if err != nil {
		b.err = fmt.Errorf("parse size: %w", err)
	}
	return b
}

// SizeDecimal sets the order size from an apd.Decimal value.
func (b *OrderBuilder) SizeDecimal(size apd.Decimal) *OrderBuilder {
	if b.err != nil {
		return b
	}
	b.order.Size.Set(&size)
	return b
}

// ReduceOnly marks the order as position reducing.
func (b *OrderBuilder) ReduceOnly() *OrderBuilder {
	if b.err != nil {
		return b
	}
	b.order.ReduceOnly = true
	return b
}

// TimeInForce sets the resting policy.
func (b *OrderBuilder) TimeInForce(tif TimeInForce) *OrderBuilder {
	if b.err != nil {
		return b
	}
	b.order.TimeInForce = tif
	return b
}

// GTC sets the resting policy to Good-Till-Cancelled.
func (b *OrderBuilder) GTC() *OrderBuilder {
	return b.TimeInForce(GTC)
}

// IOC sets the resting policy to Immediate-Or-Cancel.
func (b *OrderBuilder) IOC() *OrderBuilder {
	return b.TimeInForce(IOC)
}

// ALO sets the resting policy to Add-Liquidity-Only.
func (b *OrderBuilder) ALO() *OrderBuilder {
	return b.TimeInForce(ALO)
}

// Cloid sets a client-assigned order identifier. The venue requires a
// 128-bit hex string ("0x" followed by 32 hex digits).
func (b *OrderBuilder) Cloid(cloid string) *OrderBuilder {
	if b.err != nil {
		return b
	}
	b.order.Cloid = cloid
	return b
}

// Build validates and returns the constructed order request.
func (b *OrderBuilder) Build() (*OrderRequest, error) {
	if b.err != nil {
		return nil, b.err
	}
	if err := validateOrder(b.order); err != nil {
		return nil, err
	}
	return b.order, nil
}

func validateOrder(order *OrderRequest) error {
	if order.Coin == "" {
		return fmt.Errorf("coin is required")
	}
	if order.Size.IsZero() || order.Size.Negative {
		return fmt.Errorf("size must be positive")
	}
	if order.Price.IsZero() || order.Price.Negative {
		return fmt.Errorf("price must be positive")
	}
	if order.Side != core.SideBuy && order.Side != core.SideSell {
		return fmt.Errorf("invalid order side")
	}
	switch order.TimeInForce {
	case GTC, IOC, ALO:
	default:
		return fmt.Errorf("invalid time in force %q", order.TimeInForce)
	}
	return nil
}

// wireOrder is the venue's order placement shape.
type wireOrder struct {
	Asset      int           `json:"a"`
	IsBuy      bool          `json:"b"`
	Price      string        `json:"p"`
	Size       string        `json:"s"`
	ReduceOnly bool          `json:"r"`
	Type       wireOrderType `json:"t"`
	Cloid      string        `json:"c,omitempty"`
}

type wireOrderType struct {
	Limit wireLimitType `json:"limit"`
}

type wireLimitType struct {
	Tif string `json:"tif"`
}
