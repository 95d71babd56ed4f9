package indicators

import (
	"math"
	"testing"

	"trading-decision-bot/internal/market"
)

func closeBars(closes ...float64) []market.Bar {
	bars := make([]market.Bar, len(closes))
	for i, c := range closes {
		bars[i] = market.Bar{Open: c, High: c, Low: c, Close: c}
	}
	return bars
}

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

// TestSMA tests the simple moving average
func TestSMA(t *testing.T) {
	bars := closeBars(1, 2, 3, 4, 5)

	if got := SMA(bars, 3); !approxEqual(got, 4) {
		t.Errorf("SMA(3) = %f, want 4", got)
	}
	if got := SMA(bars, 5); !approxEqual(got, 3) {
		t.Errorf("SMA(5) = %f, want 3", got)
	}

	// Insufficient bars
	if got := SMA(bars, 6); got != 0 {
		t.Errorf("SMA with insufficient bars = %f, want 0", got)
	}
	if got := SMA(bars, 0); got != 0 {
		t.Errorf("SMA with zero period = %f, want 0", got)
	}
}

// TestEMA tests the exponential moving average
func TestEMA(t *testing.T) {
	// Constant series: EMA equals the constant
	flat := closeBars(10, 10, 10, 10, 10, 10)
	if got := EMA(flat, 3); !approxEqual(got, 10) {
		t.Errorf("EMA of constant series = %f, want 10", got)
	}

	// Rising series: EMA sits between the SMA seed and the last close
	rising := closeBars(1, 2, 3, 4, 5, 6)
	ema := EMA(rising, 3)
	if ema <= SMA(rising[:3], 3) || ema >= 6 {
		t.Errorf("EMA of rising series = %f, want between seed and last close", ema)
	}
}

// TestATR tests the average true range
func TestATR(t *testing.T) {
	// Constant 20-point range around a constant close
	bars := make([]market.Bar, 6)
	for i := range bars {
		bars[i] = market.Bar{Open: 100, High: 110, Low: 90, Close: 100}
	}

	if got := ATR(bars, 3); !approxEqual(got, 20) {
		t.Errorf("ATR = %f, want 20", got)
	}

	// Needs period+1 bars
	if got := ATR(bars[:3], 3); got != 0 {
		t.Errorf("ATR with insufficient bars = %f, want 0", got)
	}
}

// TestATRGaps tests that the true range includes gaps from the prior close
func TestATRGaps(t *testing.T) {
	bars := []market.Bar{
		{Open: 100, High: 101, Low: 99, Close: 100},
		// Gaps up: TR = max(2, |112-100|, |110-100|) = 12
		{Open: 110, High: 112, Low: 110, Close: 111},
	}

	if got := ATR(bars, 1); !approxEqual(got, 12) {
		t.Errorf("ATR with gap = %f, want 12", got)
	}
}

// TestADX tests directional movement on a strongly trending series
func TestADX(t *testing.T) {
	up := make([]market.Bar, 30)
	for i := range up {
		base := 100.0 + float64(i)
		up[i] = market.Bar{Open: base, High: base + 1.2, Low: base - 0.2, Close: base + 1}
	}

	result := ADX(up, 14)
	if result.PlusDI <= result.MinusDI {
		t.Errorf("Uptrend should have +DI (%f) > -DI (%f)", result.PlusDI, result.MinusDI)
	}
	if result.MinusDI != 0 {
		t.Errorf("Monotonic uptrend should have -DI = 0, got %f", result.MinusDI)
	}
	if !approxEqual(result.ADX, 100) {
		t.Errorf("One-sided trend should have ADX = 100, got %f", result.ADX)
	}

	// Mirror for a downtrend
	down := make([]market.Bar, 30)
	for i := range down {
		base := 200.0 - float64(i)
		down[i] = market.Bar{Open: base, High: base + 0.2, Low: base - 1.2, Close: base - 1}
	}
	result = ADX(down, 14)
	if result.MinusDI <= result.PlusDI {
		t.Errorf("Downtrend should have -DI (%f) > +DI (%f)", result.MinusDI, result.PlusDI)
	}

	// Flat market has no directional movement
	flat := make([]market.Bar, 30)
	for i := range flat {
		flat[i] = market.Bar{Open: 100, High: 101, Low: 99, Close: 100}
	}
	result = ADX(flat, 14)
	if result.ADX != 0 {
		t.Errorf("Flat market should have ADX = 0, got %f", result.ADX)
	}

	// Insufficient history
	if got := ADX(up[:20], 14); got.ADX != 0 || got.PlusDI != 0 {
		t.Error("ADX with fewer than 2x period bars should be zero")
	}
}

// TestBollinger tests the volatility bands
func TestBollinger(t *testing.T) {
	// Constant closes collapse the bands onto the middle
	flat := closeBars(100, 100, 100, 100)
	bands := Bollinger(flat, 4, 2)
	if !approxEqual(bands.Upper, 100) || !approxEqual(bands.Lower, 100) {
		t.Errorf("Constant series should collapse bands, got upper %f lower %f", bands.Upper, bands.Lower)
	}
	if bands.Width() != 0 {
		t.Errorf("Constant series width = %f, want 0", bands.Width())
	}

	// Alternating 90/110: mean 100, stddev 10, bands at 80/120
	alternating := closeBars(90, 110, 90, 110)
	bands = Bollinger(alternating, 4, 2)
	if !approxEqual(bands.Middle, 100) {
		t.Errorf("Middle = %f, want 100", bands.Middle)
	}
	if !approxEqual(bands.Upper, 120) || !approxEqual(bands.Lower, 80) {
		t.Errorf("Bands = %f/%f, want 120/80", bands.Upper, bands.Lower)
	}
	if !approxEqual(bands.Width(), 0.4) {
		t.Errorf("Width = %f, want 0.4", bands.Width())
	}
}

// TestAverageVolume tests the mean volume helper
func TestAverageVolume(t *testing.T) {
	bars := []market.Bar{
		{Volume: 100}, {Volume: 200}, {Volume: 300},
	}
	if got := AverageVolume(bars, 2); !approxEqual(got, 250) {
		t.Errorf("AverageVolume(2) = %f, want 250", got)
	}
	// Shorter history shrinks the window instead of failing
	if got := AverageVolume(bars, 10); !approxEqual(got, 200) {
		t.Errorf("AverageVolume(10) = %f, want 200", got)
	}
	if got := AverageVolume(nil, 5); got != 0 {
		t.Errorf("AverageVolume(nil) = %f, want 0", got)
	}
}
