package market

import (
	"context"
	"time"
)

// MarketDataSource provides historical bars for a symbol
type MarketDataSource interface {
	GetBars(ctx context.Context, symbol string, lookback int) ([]Bar, error)
}

// SignalFeed provides external sentiment and order-book signals.
// Implementations should honour the context deadline; the pipeline degrades
// a timed-out source to a neutral result rather than failing the decision.
type SignalFeed interface {
	GetSentiment(ctx context.Context, symbol string) (map[string]float64, error)
	GetOrderBookImbalance(ctx context.Context, symbol string) (float64, error)
}

// TradeHistoryStore persists executed trades and serves the recent window
// used to seed the fee-protection state after a restart.
type TradeHistoryStore interface {
	RecentTrades(ctx context.Context, symbol string, window time.Duration) ([]TradeRecord, error)
	Record(ctx context.Context, trade TradeRecord) error
}

// Fill describes the execution outcome reported by the gateway
type Fill struct {
	Symbol   string
	Side     string
	Amount   float64
	Price    float64
	Fee      float64
	FilledAt time.Time
}

// ExecutionGateway submits permitted decisions to the exchange layer
type ExecutionGateway interface {
	Submit(ctx context.Context, symbol, side string, amount, price float64) (*Fill, error)
}

// Clock abstracts time so the backtest can drive the fee gate with bar
// timestamps while live mode uses the wall clock.
type Clock interface {
	Now() time.Time
}

// RealClock is the wall-clock implementation used in live mode
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// FixedClock always returns the time it was set to. The backtest advances it
// bar by bar; tests set it directly.
type FixedClock struct {
	Current time.Time
}

func (c *FixedClock) Now() time.Time { return c.Current }

// Advance moves the clock forward
func (c *FixedClock) Advance(d time.Duration) { c.Current = c.Current.Add(d) }
