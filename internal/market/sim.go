package market

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand"
	"sync"
	"time"
)

// SimulatedSource generates a deterministic random-walk bar series per
// symbol, seeded from the symbol name so repeated fetches extend the same
// series. It doubles as a SignalFeed deriving sentiment from its own
// momentum, which lets the binary run end-to-end without any exchange or
// feed connectivity.
type SimulatedSource struct {
	Interval  time.Duration // Bar width, default 1h
	BasePrice float64       // Starting price, default 50000

	mu     sync.Mutex
	series map[string][]Bar
}

// NewSimulatedSource creates a simulated source with hourly bars
func NewSimulatedSource() *SimulatedSource {
	return &SimulatedSource{
		Interval:  time.Hour,
		BasePrice: 50000,
		series:    make(map[string][]Bar),
	}
}

// GetBars returns the most recent lookback bars, generating the series on
// first use and extending it so the last bar always closes at the current
// interval boundary.
func (s *SimulatedSource) GetBars(_ context.Context, symbol string, lookback int) ([]Bar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bars := s.series[symbol]
	if len(bars) < lookback {
		bars = s.generate(symbol, lookback*2)
		s.series[symbol] = bars
	}

	out := make([]Bar, lookback)
	copy(out, bars[len(bars)-lookback:])
	return out, nil
}

// GetSentiment derives named scores from the walk's own recent momentum
func (s *SimulatedSource) GetSentiment(ctx context.Context, symbol string) (map[string]float64, error) {
	bars, err := s.GetBars(ctx, symbol, 12)
	if err != nil {
		return nil, err
	}

	change := (bars[len(bars)-1].Close - bars[0].Close) / bars[0].Close
	score := clampSignal(change / 0.05)
	return map[string]float64{
		"twitter": score,
		"news":    clampSignal(score * 0.8),
	}, nil
}

// GetOrderBookImbalance reports a small imbalance aligned with the last bar
func (s *SimulatedSource) GetOrderBookImbalance(ctx context.Context, symbol string) (float64, error) {
	bars, err := s.GetBars(ctx, symbol, 2)
	if err != nil {
		return 0, err
	}

	last := bars[len(bars)-1]
	if last.Open == 0 {
		return 0, nil
	}
	return clampSignal((last.Close - last.Open) / last.Open / 0.01 * 0.3), nil
}

// generate builds a seeded random walk ending at the current interval
// boundary. Identical symbol and count always yield identical bars.
func (s *SimulatedSource) generate(symbol string, count int) []Bar {
	h := fnv.New64a()
	h.Write([]byte(symbol))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	end := time.Now().Truncate(s.Interval)
	start := end.Add(-time.Duration(count) * s.Interval)

	bars := make([]Bar, 0, count)
	price := s.BasePrice
	for i := 0; i < count; i++ {
		openTime := start.Add(time.Duration(i) * s.Interval)

		drift := rng.NormFloat64() * 0.01
		open := price
		close := open * (1 + drift)
		high := math.Max(open, close) * (1 + rng.Float64()*0.005)
		low := math.Min(open, close) * (1 - rng.Float64()*0.005)

		bars = append(bars, Bar{
			OpenTime:  openTime.UnixMilli(),
			Open:      open,
			High:      high,
			Low:       low,
			Close:     close,
			Volume:    1000 + rng.Float64()*9000,
			CloseTime: openTime.Add(s.Interval).UnixMilli() - 1,
		})
		price = close
	}
	return bars
}

func clampSignal(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}

var (
	_ MarketDataSource = (*SimulatedSource)(nil)
	_ SignalFeed       = (*SimulatedSource)(nil)
)
