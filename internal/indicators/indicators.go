package indicators

import (
	"math"

	"trading-decision-bot/internal/market"
)

// SMA calculates the Simple Moving Average of closes over the last period bars
func SMA(bars []market.Bar, period int) float64 {
	if len(bars) < period || period <= 0 {
		return 0
	}

	sum := 0.0
	for i := len(bars) - period; i < len(bars); i++ {
		sum += bars[i].Close
	}

	return sum / float64(period)
}

// EMA calculates the Exponential Moving Average of closes
func EMA(bars []market.Bar, period int) float64 {
	if len(bars) < period || period <= 0 {
		return 0
	}

	// Seed with the SMA of the first period bars
	ema := SMA(bars[:period], period)
	multiplier := 2.0 / float64(period+1)

	for i := period; i < len(bars); i++ {
		ema = (bars[i].Close * multiplier) + (ema * (1 - multiplier))
	}

	return ema
}

// ATR calculates the Average True Range over the last period bars.
// Needs period+1 bars because the true range references the previous close.
func ATR(bars []market.Bar, period int) float64 {
	if len(bars) < period+1 || period <= 0 {
		return 0
	}

	trSum := 0.0
	for i := len(bars) - period; i < len(bars); i++ {
		high := bars[i].High
		low := bars[i].Low
		prevClose := bars[i-1].Close

		tr := math.Max(high-low, math.Max(math.Abs(high-prevClose), math.Abs(low-prevClose)))
		trSum += tr
	}

	return trSum / float64(period)
}

// ADXResult holds the directional movement values
type ADXResult struct {
	ADX     float64
	PlusDI  float64
	MinusDI float64
}

// ADX calculates the Average Directional Index with +DI/-DI over the last
// period bars. Requires 2*period bars of history.
func ADX(bars []market.Bar, period int) ADXResult {
	if len(bars) < period*2 || period <= 0 {
		return ADXResult{}
	}

	var plusDMSum, minusDMSum, trSum float64

	for i := len(bars) - period; i < len(bars); i++ {
		high := bars[i].High
		low := bars[i].Low
		prevHigh := bars[i-1].High
		prevLow := bars[i-1].Low
		prevClose := bars[i-1].Close

		upMove := high - prevHigh
		downMove := prevLow - low

		if upMove > downMove && upMove > 0 {
			plusDMSum += upMove
		}
		if downMove > upMove && downMove > 0 {
			minusDMSum += downMove
		}

		tr := math.Max(high-low, math.Max(math.Abs(high-prevClose), math.Abs(low-prevClose)))
		trSum += tr
	}

	var result ADXResult
	if trSum > 0 {
		result.PlusDI = (plusDMSum / trSum) * 100
		result.MinusDI = (minusDMSum / trSum) * 100
	}

	if result.PlusDI+result.MinusDI > 0 {
		result.ADX = math.Abs(result.PlusDI-result.MinusDI) / (result.PlusDI + result.MinusDI) * 100
	}

	return result
}

// BollingerBands holds the volatility band values
type BollingerBands struct {
	Upper  float64
	Middle float64
	Lower  float64
}

// Bollinger calculates Bollinger Bands over the last period bars
func Bollinger(bars []market.Bar, period int, stdDevMultiplier float64) BollingerBands {
	if len(bars) < period || period <= 0 {
		return BollingerBands{}
	}

	middle := SMA(bars, period)

	variance := 0.0
	for i := len(bars) - period; i < len(bars); i++ {
		diff := bars[i].Close - middle
		variance += diff * diff
	}
	stdDev := math.Sqrt(variance / float64(period))

	return BollingerBands{
		Upper:  middle + stdDev*stdDevMultiplier,
		Middle: middle,
		Lower:  middle - stdDev*stdDevMultiplier,
	}
}

// Width returns the band width normalized by the middle band, the sideways
// signal used by the regime classifier.
func (b BollingerBands) Width() float64 {
	if b.Middle == 0 {
		return 0
	}
	return (b.Upper - b.Lower) / b.Middle
}

// AverageVolume calculates the mean volume over the last period bars
func AverageVolume(bars []market.Bar, period int) float64 {
	if len(bars) == 0 {
		return 0
	}
	if len(bars) < period {
		period = len(bars)
	}

	sum := 0.0
	for i := len(bars) - period; i < len(bars); i++ {
		sum += bars[i].Volume
	}

	return sum / float64(period)
}
