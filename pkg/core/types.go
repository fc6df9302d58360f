package core

import (
	"time"

	"github.com/cockroachdb/apd/v3"
)

// OrderSide represents the direction of an order (buy or sell).
type OrderSide int

const (
	// SideBuy indicates an order to purchase an asset.
	SideBuy OrderSide = iota
	// SideSell indicates an order to sell an asset.
	SideSell
)

// String returns the string representation of the order side ("buy" or "sell").
func (s OrderSide) String() string {
	return [...]string{"buy", "sell"}[s]
}

// MarshalJSON implements json.Marshaler for OrderSide.
func (s OrderSide) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler for OrderSide.
// It accepts the venue's single-letter codes as well as spelled-out values.
func (s *OrderSide) UnmarshalJSON(data []byte) error {
	switch string(data) {
	case `"B"`, `"buy"`, `"BUY"`:
		*s = SideBuy
	case `"A"`, `"sell"`, `"SELL"`:
		*s = SideSell
	}
	return nil
}

// Mid is the current mid price for one listing.
type Mid struct {
	// Coin is the listing identifier, internal name when translated.
	Coin string `json:"coin"`
	// Price is the mid price.
	Price apd.Decimal `json:"price"`
}

// BookLevel is a single price level of the order book.
type BookLevel struct {
	// Price is the limit price at this level.
	Price apd.Decimal `json:"px"`
	// Size is the resting size at this level.
	Size apd.Decimal `json:"sz"`
	// Orders is the number of resting orders at this level.
	Orders int `json:"n"`
}

// L2Book is an order-book snapshot for one listing.
type L2Book struct {
	// Coin is the listing identifier, internal name when translated.
	Coin string `json:"coin"`
	// Bids are buy levels sorted by price descending.
	Bids []BookLevel `json:"bids"`
	// Asks are sell levels sorted by price ascending.
	Asks []BookLevel `json:"asks"`
	// Time is when the snapshot was taken.
	Time time.Time `json:"time"`
}

// Trade is a single executed trade on the public feed.
type Trade struct {
	// Coin is the listing identifier, internal name when translated.
	Coin string `json:"coin"`
	// Side is the aggressor side.
	Side OrderSide `json:"side"`
	// Price is the execution price.
	Price apd.Decimal `json:"px"`
	// Size is the executed size.
	Size apd.Decimal `json:"sz"`
	// Time is the execution time.
	Time time.Time `json:"time"`
	// TID is the venue trade identifier.
	TID int64 `json:"tid"`
}

// Candle is one OHLCV interval for a listing.
type Candle struct {
	Coin      string      `json:"coin"`
	Interval  string      `json:"interval"`
	OpenTime  time.Time   `json:"open_time"`
	CloseTime time.Time   `json:"close_time"`
	Open      apd.Decimal `json:"open"`
	High      apd.Decimal `json:"high"`
	Low       apd.Decimal `json:"low"`
	Close     apd.Decimal `json:"close"`
	Volume    apd.Decimal `json:"volume"`
	NumTrades int64       `json:"num_trades"`
}

// Fill is one execution against the user's account.
type Fill struct {
	// Coin is the listing identifier, internal name when translated.
	Coin string `json:"coin"`
	// OID is the venue order identifier the fill executed against.
	OID int64 `json:"oid"`
	// Side is the filled order's direction.
	Side OrderSide `json:"side"`
	// Price is the execution price.
	Price apd.Decimal `json:"px"`
	// Size is the executed size.
	Size apd.Decimal `json:"sz"`
	// Fee is the fee charged for the fill.
	Fee apd.Decimal `json:"fee"`
	// ClosedPnl is the realized PnL, zero for opening fills.
	ClosedPnl apd.Decimal `json:"closed_pnl"`
	// Time is the execution time.
	Time time.Time `json:"time"`
	// TID is the venue trade identifier.
	TID int64 `json:"tid"`
}

// OpenOrder is one resting order as reported by the venue.
type OpenOrder struct {
	// Coin is the listing identifier, internal name when translated.
	Coin string `json:"coin"`
	// OID is the venue order identifier.
	OID int64 `json:"oid"`
	// Side is the order direction.
	Side OrderSide `json:"side"`
	// LimitPrice is the resting limit price.
	LimitPrice apd.Decimal `json:"limit_px"`
	// Size is the unfilled size.
	Size apd.Decimal `json:"sz"`
	// Timestamp is when the order was placed.
	Timestamp time.Time `json:"timestamp"`
}
