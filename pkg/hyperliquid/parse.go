package hyperliquid

import (
	"time"

	"github.com/bytedance/sonic"
	"github.com/cockroachdb/apd/v3"

	"hyperwire/pkg/core"
)

// Venue wire shapes for typed info endpoints. Field names follow the venue's
// JSON; the parsers map them onto core types.

type wireBookLevel struct {
	Px string `json:"px"`
	Sz string `json:"sz"`
	N  int    `json:"n"`
}

type wireL2Book struct {
	Coin   string             `json:"coin"`
	Time   int64              `json:"time"`
	Levels [2][]wireBookLevel `json:"levels"`
}

type wireOpenOrder struct {
	Coin      string `json:"coin"`
	LimitPx   string `json:"limitPx"`
	OID       int64  `json:"oid"`
	Side      string `json:"side"`
	Sz        string `json:"sz"`
	Timestamp int64  `json:"timestamp"`
}

type wireCandle struct {
	OpenTime  int64  `json:"t"`
	CloseTime int64  `json:"T"`
	Coin      string `json:"s"`
	Interval  string `json:"i"`
	Open      string `json:"o"`
	Close     string `json:"c"`
	High      string `json:"h"`
	Low       string `json:"l"`
	Volume    string `json:"v"`
	NumTrades int64  `json:"n"`
}

func parseDecimal(s string) (apd.Decimal, error) {
	var d apd.Decimal
	if _, _, err := d.SetString(s); err != nil {
		return apd.Decimal{}, core.NewVenueError(core.ErrorTypeAPI, "malformed decimal "+s).WithCause(err)
	}
	return d, nil
}

func parseBookSide(levels []wireBookLevel) ([]core.BookLevel, error) {
	side := make([]core.BookLevel, 0, len(levels))
	for _, lvl := range levels {
		px, err := parseDecimal(lvl.Px)
		if err != nil {
			return nil, err
		}
		sz, err := parseDecimal(lvl.Sz)
		if err != nil {
			return nil, err
		}
		side = append(side, core.BookLevel{Price: px, Size: sz, Orders: lvl.N})
	}
	return side, nil
}

func parseL2Book(raw []byte) (*core.L2Book, error) {
	var wire wireL2Book
	if err := sonic.Unmarshal(raw, &wire); err != nil {
		return nil, core.NewVenueError(core.ErrorTypeAPI, "malformed l2Book response").WithCause(err)
	}

	bids, err := parseBookSide(wire.Levels[0])
	if err != nil {
		return nil, err
	}
	asks, err := parseBookSide(wire.Levels[1])
	if err != nil {
		return nil, err
	}

	return &core.L2Book{
		Coin: wire.Coin,
		Bids: bids,
		Asks: asks,
		Time: time.UnixMilli(wire.Time),
	}, nil
}

func parseOpenOrders(raw []byte) ([]core.OpenOrder, error) {
	var wire []wireOpenOrder
	if err := sonic.Unmarshal(raw, &wire); err != nil {
		return nil, core.NewVenueError(core.ErrorTypeAPI, "malformed openOrders response").WithCause(err)
	}

	orders := make([]core.OpenOrder, 0, len(wire))
	for _, o := range wire {
		px, err := parseDecimal(o.LimitPx)
		if err != nil {
			return nil, err
		}
		sz, err := parseDecimal(o.Sz)
		if err != nil {
			return nil, err
		}

		side := core.SideBuy
		if o.Side == "A" || o.Side == "sell" {
			side = core.SideSell
		}

		orders = append(orders, core.OpenOrder{
			Coin:       o.Coin,
			OID:        o.OID,
			Side:       side,
			LimitPrice: px,
			Size:       sz,
			Timestamp:  time.UnixMilli(o.Timestamp),
		})
	}
	return orders, nil
}

func parseCandles(raw []byte) ([]core.Candle, error) {
	var wire []wireCandle
	if err := sonic.Unmarshal(raw, &wire); err != nil {
		return nil, core.NewVenueError(core.ErrorTypeAPI, "malformed candleSnapshot response").WithCause(err)
	}

	candles := make([]core.Candle, 0, len(wire))
	for _, c := range wire {
		open, err := parseDecimal(c.Open)
		if err != nil {
			return nil, err
		}
		high, err := parseDecimal(c.High)
		if err != nil {
			return nil, err
		}
		low, err := parseDecimal(c.Low)
		if err != nil {
			return nil, err
		}
		closePx, err := parseDecimal(c.Close)
		if err != nil {
			return nil, err
		}
		volume, err := parseDecimal(c.Volume)
		if err != nil {
			return nil, err
		}

		candles = append(candles, core.Candle{
			Coin:      c.Coin,
			Interval:  c.Interval,
			OpenTime:  time.UnixMilli(c.OpenTime),
			CloseTime: time.UnixMilli(c.CloseTime),
			Open:      open,
			High:      high,
			Low:       low,
			Close:     closePx,
			Volume:    volume,
			NumTrades: c.NumTrades,
		})
	}
	return candles, nil
}
