package backtest

import (
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"trading-decision-bot/internal/decision"
	"trading-decision-bot/internal/engine"
	"trading-decision-bot/internal/feegate"
	"trading-decision-bot/internal/market"
	"trading-decision-bot/internal/regime"
	"trading-decision-bot/internal/reversal"
	"trading-decision-bot/internal/risk"
	"trading-decision-bot/internal/sentiment"
)

func testPipeline() *engine.Pipeline {
	return engine.NewPipeline(
		regime.NewClassifier(regime.DefaultConfig()),
		sentiment.NewAggregator(sentiment.DefaultConfig()),
		reversal.NewDetector(reversal.DefaultConfig()),
		risk.NewCalculator(risk.DefaultConfig()),
		decision.NewAggregator(decision.DefaultConfig()),
	)
}

// syntheticBars builds a deterministic trending series with cyclical swings
func syntheticBars(n int) []market.Bar {
	bars := make([]market.Bar, n)
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	price := 50000.0

	for i := range bars {
		drift := math.Sin(float64(i)/8)*0.012 + 0.0015
		open := price
		close := open * (1 + drift)
		openTime := start.Add(time.Duration(i) * time.Hour)

		bars[i] = market.Bar{
			OpenTime:  openTime.UnixMilli(),
			Open:      open,
			High:      math.Max(open, close) * 1.002,
			Low:       math.Min(open, close) * 0.998,
			Close:     close,
			Volume:    5000,
			CloseTime: openTime.Add(time.Hour).UnixMilli() - 1,
		}
		price = close
	}
	return bars
}

// TestRunDeterministic tests that identical inputs reproduce the run exactly
func TestRunDeterministic(t *testing.T) {
	bt := NewEngine(testPipeline(), feegate.DefaultConfig(), zerolog.Nop())
	bars := syntheticBars(300)
	config := DefaultConfig("BTCUSDT")

	first, err := bt.Run(bars, config)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	second, err := bt.Run(bars, config)
	if err != nil {
		t.Fatalf("Second run failed: %v", err)
	}

	if !reflect.DeepEqual(first.Metrics, second.Metrics) {
		t.Errorf("Metrics differ between identical runs:\n%+v\n%+v", first.Metrics, second.Metrics)
	}
	if len(first.Trades) != len(second.Trades) {
		t.Errorf("Trade counts differ: %d vs %d", len(first.Trades), len(second.Trades))
	}
	if len(first.EquityCurve) != len(second.EquityCurve) {
		t.Fatalf("Curve lengths differ: %d vs %d", len(first.EquityCurve), len(second.EquityCurve))
	}
	for i := range first.EquityCurve {
		if first.EquityCurve[i] != second.EquityCurve[i] {
			t.Fatalf("Equity curves diverge at index %d", i)
		}
	}
}

// TestRunShape tests the structural invariants of a run
func TestRunShape(t *testing.T) {
	bt := NewEngine(testPipeline(), feegate.DefaultConfig(), zerolog.Nop())
	bars := syntheticBars(300)
	config := DefaultConfig("BTCUSDT")

	result, err := bt.Run(bars, config)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// One equity point per evaluated bar
	if got, want := len(result.EquityCurve), len(bars)-config.WarmupBars; got != want {
		t.Errorf("Equity curve length = %d, want %d", got, want)
	}
	if result.Metrics.FinalEquity <= 0 {
		t.Errorf("FinalEquity = %f, want positive", result.Metrics.FinalEquity)
	}
	if result.Metrics.TotalTrades != len(result.Trades) {
		t.Errorf("TotalTrades = %d, trades slice has %d", result.Metrics.TotalTrades, len(result.Trades))
	}
	if result.Metrics.MaxDrawdownPercent < 0 {
		t.Errorf("MaxDrawdownPercent = %f, want >= 0", result.Metrics.MaxDrawdownPercent)
	}

	// Trades alternate BUY/SELL starting with a BUY
	for i, trade := range result.Trades {
		want := "BUY"
		if i%2 == 1 {
			want = "SELL"
		}
		if trade.Side != want {
			t.Fatalf("Trade %d side = %s, want %s", i, trade.Side, want)
		}
	}
}

// TestRunInsufficientBars tests the warmup guard
func TestRunInsufficientBars(t *testing.T) {
	bt := NewEngine(testPipeline(), feegate.DefaultConfig(), zerolog.Nop())

	if _, err := bt.Run(syntheticBars(50), DefaultConfig("BTCUSDT")); err == nil {
		t.Error("Run with bars <= warmup should fail")
	}
}

// TestConfigValidate tests the run parameter checks
func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing symbol", func(c *Config) { c.Symbol = "" }},
		{"zero capital", func(c *Config) { c.InitialCapital = 0 }},
		{"fraction above 1", func(c *Config) { c.PositionFraction = 1.5 }},
		{"zero warmup", func(c *Config) { c.WarmupBars = 0 }},
		{"zero periods", func(c *Config) { c.PeriodsPerYear = 0 }},
	}

	for _, tc := range cases {
		cfg := DefaultConfig("BTCUSDT")
		tc.mutate(&cfg)
		if cfg.Validate() == nil {
			t.Errorf("%s should be rejected", tc.name)
		}
	}

	if err := DefaultConfig("BTCUSDT").Validate(); err != nil {
		t.Errorf("Default config should validate, got %v", err)
	}
}
