package regime

import (
	"errors"
	"testing"

	"trading-decision-bot/internal/market"
)

func trendingBars(n int, start, step float64) []market.Bar {
	bars := make([]market.Bar, n)
	for i := range bars {
		base := start + float64(i)*step
		if step >= 0 {
			bars[i] = market.Bar{Open: base, High: base + step + 0.2, Low: base - 0.2, Close: base + step}
		} else {
			bars[i] = market.Bar{Open: base, High: base + 0.2, Low: base + step - 0.2, Close: base + step}
		}
	}
	return bars
}

func flatBars(n int) []market.Bar {
	bars := make([]market.Bar, n)
	for i := range bars {
		bars[i] = market.Bar{Open: 100, High: 101, Low: 99, Close: 100}
	}
	return bars
}

func snapshot(bars []market.Bar) market.Snapshot {
	return market.NewSnapshot("BTCUSDT", bars, 0, 0)
}

// TestInsufficientHistory tests the forced-HALT error path
func TestInsufficientHistory(t *testing.T) {
	classifier := NewClassifier(DefaultConfig())

	_, err := classifier.Classify(snapshot(flatBars(29)))
	if err == nil {
		t.Fatal("Should return an error with fewer bars than the lookback")
	}
	if !errors.Is(err, ErrInsufficientHistory) {
		t.Errorf("Error should wrap ErrInsufficientHistory, got %v", err)
	}
}

// TestTrendingUp tests classification of a strong uptrend
func TestTrendingUp(t *testing.T) {
	classifier := NewClassifier(DefaultConfig())

	result, err := classifier.Classify(snapshot(trendingBars(30, 100, 1)))
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}

	if result.Regime != TrendingUp {
		t.Errorf("Regime = %s, want TRENDING_UP", result.Regime)
	}
	if result.Confidence < 0.5 {
		t.Errorf("Strong trend confidence = %f, want >= 0.5", result.Confidence)
	}
	if result.AllowMeanReversion {
		t.Error("Trending market should not allow mean reversion")
	}
	if result.ADX < 25 {
		t.Errorf("ADX = %f, want >= trend threshold", result.ADX)
	}
}

// TestTrendingDown tests classification of a strong downtrend
func TestTrendingDown(t *testing.T) {
	classifier := NewClassifier(DefaultConfig())

	result, err := classifier.Classify(snapshot(trendingBars(30, 200, -1)))
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}

	if result.Regime != TrendingDown {
		t.Errorf("Regime = %s, want TRENDING_DOWN", result.Regime)
	}
}

// TestSideways tests the quiet-market classification and the mean-reversion
// window
func TestSideways(t *testing.T) {
	classifier := NewClassifier(DefaultConfig())

	result, err := classifier.Classify(snapshot(flatBars(30)))
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}

	if result.Regime != Sideways {
		t.Errorf("Regime = %s, want SIDEWAYS", result.Regime)
	}
	// ADX 0 sits below the low-trend threshold
	if !result.AllowMeanReversion {
		t.Error("Quiet sideways market should allow mean reversion")
	}
	if result.Confidence < 0.5 || result.Confidence > 1 {
		t.Errorf("Sideways confidence = %f, want in [0.5,1]", result.Confidence)
	}
}

// TestConfigValidation tests the startup range checks
func TestConfigValidation(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("Default config should validate, got %v", err)
	}

	bad := DefaultConfig()
	bad.Lookback = 10
	if bad.Validate() == nil {
		t.Error("Lookback below 2x ADX period should be rejected")
	}

	bad = DefaultConfig()
	bad.LowTrendThreshold = 30 // above the trend threshold
	if bad.Validate() == nil {
		t.Error("Low-trend threshold above the trend threshold should be rejected")
	}
}
