package reversal

import (
	"math"

	"trading-decision-bot/internal/market"
)

// Pattern names reported in the decision response
const (
	BullishEngulfing = "bullish_engulfing"
	BearishEngulfing = "bearish_engulfing"
	Hammer           = "hammer"
	ShootingStar     = "shooting_star"
	MorningStar      = "morning_star"
	EveningStar      = "evening_star"
	DragonflyDoji    = "dragonfly_doji"
	GravestoneDoji   = "gravestone_doji"
)

// patternWeights drive the aggregated confidence; multi-candle formations
// carry more weight than single-candle ones.
var patternWeights = map[string]float64{
	BullishEngulfing: 0.75,
	BearishEngulfing: 0.75,
	MorningStar:      0.80,
	EveningStar:      0.80,
	Hammer:           0.65,
	ShootingStar:     0.65,
	DragonflyDoji:    0.60,
	GravestoneDoji:   0.60,
}

// bullishPatterns maps each pattern name to its direction
var bullishPatterns = map[string]bool{
	BullishEngulfing: true,
	MorningStar:      true,
	Hammer:           true,
	DragonflyDoji:    true,
	BearishEngulfing: false,
	EveningStar:      false,
	ShootingStar:     false,
	GravestoneDoji:   false,
}

// isBullishEngulfing checks whether c2's body fully engulfs a bearish c1
func isBullishEngulfing(c1, c2 market.Bar) bool {
	if c1.Close >= c1.Open {
		return false // C1 must be bearish
	}
	if c2.Close <= c2.Open {
		return false // C2 must be bullish
	}
	// C2 body engulfs C1 body: opens at or below C1 close, closes at or
	// above C1 open
	return c2.Open <= c1.Close && c2.Close >= c1.Open
}

// isBearishEngulfing checks whether c2's body fully engulfs a bullish c1
func isBearishEngulfing(c1, c2 market.Bar) bool {
	if c1.Close <= c1.Open {
		return false
	}
	if c2.Close >= c2.Open {
		return false
	}
	return c2.Open >= c1.Close && c2.Close <= c1.Open
}

// isHammer checks for a hammer after a bearish bar: long lower wick, small
// upper wick
func isHammer(c market.Bar, prev *market.Bar) bool {
	body := math.Abs(c.Close - c.Open)
	upperWick := c.High - math.Max(c.Open, c.Close)
	lowerWick := math.Min(c.Open, c.Close) - c.Low

	if lowerWick < body*2 {
		return false
	}
	if upperWick > body*0.3 {
		return false
	}
	// Needs a preceding downtrend bar to count as a reversal
	if prev != nil && prev.Close >= prev.Open {
		return false
	}
	return true
}

// isShootingStar is the bearish mirror of the hammer
func isShootingStar(c market.Bar, prev *market.Bar) bool {
	body := math.Abs(c.Close - c.Open)
	upperWick := c.High - math.Max(c.Open, c.Close)
	lowerWick := math.Min(c.Open, c.Close) - c.Low

	if upperWick < body*2 {
		return false
	}
	if lowerWick > body*0.3 {
		return false
	}
	if prev != nil && prev.Close <= prev.Open {
		return false
	}
	return true
}

// isMorningStar checks the three-bar bullish reversal: long bearish bar,
// indecision bar, long bullish bar closing above C1's midpoint
func isMorningStar(c1, c2, c3 market.Bar) bool {
	if c1.Close >= c1.Open {
		return false
	}
	body1 := c1.Open - c1.Close
	range1 := c1.High - c1.Low
	if range1 == 0 || body1 < range1*0.6 {
		return false
	}

	body2 := math.Abs(c2.Close - c2.Open)
	if body2 > body1*0.4 {
		return false
	}

	if c3.Close <= c3.Open {
		return false
	}
	body3 := c3.Close - c3.Open
	range3 := c3.High - c3.Low
	if range3 == 0 || body3 < range3*0.6 {
		return false
	}

	midpoint := (c1.Open + c1.Close) / 2
	return c3.Close >= midpoint
}

// isEveningStar is the bearish mirror of the morning star
func isEveningStar(c1, c2, c3 market.Bar) bool {
	if c1.Close <= c1.Open {
		return false
	}
	body1 := c1.Close - c1.Open
	range1 := c1.High - c1.Low
	if range1 == 0 || body1 < range1*0.6 {
		return false
	}

	body2 := math.Abs(c2.Close - c2.Open)
	if body2 > body1*0.4 {
		return false
	}

	if c3.Close >= c3.Open {
		return false
	}
	body3 := c3.Open - c3.Close
	range3 := c3.High - c3.Low
	if range3 == 0 || body3 < range3*0.6 {
		return false
	}

	midpoint := (c1.Open + c1.Close) / 2
	return c3.Close <= midpoint
}

// isDoji checks for an indecision bar with a tiny body relative to its range
func isDoji(c market.Bar) bool {
	body := math.Abs(c.Close - c.Open)
	barRange := c.High - c.Low
	if barRange == 0 {
		return false
	}
	return body/barRange < 0.10
}

// isDragonflyDoji checks for a doji with a long lower wick (bullish)
func isDragonflyDoji(c market.Bar) bool {
	if !isDoji(c) {
		return false
	}
	body := math.Abs(c.Close - c.Open)
	lowerWick := math.Min(c.Open, c.Close) - c.Low
	upperWick := c.High - math.Max(c.Open, c.Close)
	return lowerWick > body*3 && upperWick < body*0.3
}

// isGravestoneDoji checks for a doji with a long upper wick (bearish)
func isGravestoneDoji(c market.Bar) bool {
	if !isDoji(c) {
		return false
	}
	body := math.Abs(c.Close - c.Open)
	lowerWick := math.Min(c.Open, c.Close) - c.Low
	upperWick := c.High - math.Max(c.Open, c.Close)
	return upperWick > body*3 && lowerWick < body*0.3
}
