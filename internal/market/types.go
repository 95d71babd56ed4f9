package market

import (
	"time"
)

// Bar represents one OHLCV candle
type Bar struct {
	OpenTime  int64   `json:"openTime"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
	CloseTime int64   `json:"closeTime"` // Unix milliseconds
}

// Time returns the bar close time as time.Time
func (b Bar) Time() time.Time {
	return time.Unix(0, b.CloseTime*int64(time.Millisecond))
}

// IsBullish returns true if the bar closed above its open
func (b Bar) IsBullish() bool {
	return b.Close > b.Open
}

// Snapshot is an immutable view of one symbol's market state at a point in
// time. Produced once per polling tick in live mode and once per bar in a
// backtest; the Bars slice must never be mutated after construction.
type Snapshot struct {
	Symbol             string
	Price              float64
	Bars               []Bar
	OrderBookImbalance float64 // -1 (all sell) to +1 (all buy), 0 when unavailable
	Timestamp          time.Time
}

// NewSnapshot builds a snapshot from the given bars. Price defaults to the
// last close when zero.
func NewSnapshot(symbol string, bars []Bar, price, imbalance float64) Snapshot {
	ts := time.Time{}
	if len(bars) > 0 {
		ts = bars[len(bars)-1].Time()
		if price == 0 {
			price = bars[len(bars)-1].Close
		}
	}
	return Snapshot{
		Symbol:             symbol,
		Price:              price,
		Bars:               bars,
		OrderBookImbalance: imbalance,
		Timestamp:          ts,
	}
}

// TradeRecord represents one executed trade leg
type TradeRecord struct {
	ID        string     `json:"id"`
	Symbol    string     `json:"symbol"`
	Side      string     `json:"side"` // "BUY" or "SELL"
	Amount    float64    `json:"amount"`
	Price     float64    `json:"price"`
	Fee       float64    `json:"fee"`
	Timestamp time.Time  `json:"timestamp"`
	PnL       *float64   `json:"pnl,omitempty"` // nil until the position closes
}
