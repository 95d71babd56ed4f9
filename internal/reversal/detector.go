package reversal

import (
	"fmt"

	"trading-decision-bot/internal/market"
)

// Config holds reversal detection settings
type Config struct {
	ScanBars         int     `json:"scan_bars"`         // How many trailing bars to scan
	ImbalanceBoost   float64 `json:"imbalance_boost"`   // Max confidence adjustment from order-book imbalance
	ConfidenceScale  float64 `json:"confidence_scale"`  // Divisor turning summed weights into confidence
}

// DefaultConfig returns the default detector configuration
func DefaultConfig() Config {
	return Config{
		ScanBars:        5,
		ImbalanceBoost:  0.2,
		ConfidenceScale: 1.5,
	}
}

// Validate checks the configuration at startup
func (c Config) Validate() error {
	if c.ScanBars < 3 {
		return fmt.Errorf("reversal scan_bars %d must be >= 3", c.ScanBars)
	}
	if c.ImbalanceBoost < 0 || c.ImbalanceBoost > 1 {
		return fmt.Errorf("reversal imbalance_boost %.2f out of range [0,1]", c.ImbalanceBoost)
	}
	if c.ConfidenceScale <= 0 {
		return fmt.Errorf("reversal confidence_scale must be positive")
	}
	return nil
}

// Result is the reversal module output
type Result struct {
	IsBullishReversal  bool     `json:"is_bullish_reversal"`
	IsBearishReversal  bool     `json:"is_bearish_reversal"`
	Confidence         float64  `json:"confidence"`
	PatternsDetected   []string `json:"patterns_detected"`
	OrderBookImbalance float64  `json:"order_book_imbalance"`
}

// Detector scans recent bars for reversal patterns and order-book imbalance
type Detector struct {
	config Config
}

// NewDetector creates a reversal detector
func NewDetector(config Config) *Detector {
	return &Detector{config: config}
}

// Detect runs the pattern catalog against the trailing bars of the snapshot.
// No patterns matched means both flags false and confidence 0.
func (d *Detector) Detect(snapshot market.Snapshot) *Result {
	result := &Result{
		PatternsDetected:   []string{},
		OrderBookImbalance: clampImbalance(snapshot.OrderBookImbalance),
	}

	bars := snapshot.Bars
	if len(bars) > d.config.ScanBars {
		bars = bars[len(bars)-d.config.ScanBars:]
	}
	if len(bars) < 2 {
		return result
	}

	var bullishWeight, bearishWeight float64
	record := func(name string) {
		result.PatternsDetected = append(result.PatternsDetected, name)
		if bullishPatterns[name] {
			bullishWeight += patternWeights[name]
		} else {
			bearishWeight += patternWeights[name]
		}
	}

	// Two-candle patterns on the most recent pair
	c1, c2 := bars[len(bars)-2], bars[len(bars)-1]
	if isBullishEngulfing(c1, c2) {
		record(BullishEngulfing)
	}
	if isBearishEngulfing(c1, c2) {
		record(BearishEngulfing)
	}

	// Single-candle patterns on the latest bar
	prev := &c1
	if isHammer(c2, prev) {
		record(Hammer)
	}
	if isShootingStar(c2, prev) {
		record(ShootingStar)
	}
	if isDragonflyDoji(c2) {
		record(DragonflyDoji)
	}
	if isGravestoneDoji(c2) {
		record(GravestoneDoji)
	}

	// Three-candle formations
	if len(bars) >= 3 {
		c0 := bars[len(bars)-3]
		if isMorningStar(c0, c1, c2) {
			record(MorningStar)
		}
		if isEveningStar(c0, c1, c2) {
			record(EveningStar)
		}
	}

	if len(result.PatternsDetected) == 0 {
		return result
	}

	result.IsBullishReversal = bullishWeight > bearishWeight
	result.IsBearishReversal = bearishWeight > bullishWeight

	confidence := 0.0
	if result.IsBullishReversal {
		confidence = bullishWeight / d.config.ConfidenceScale
		confidence += result.OrderBookImbalance * d.config.ImbalanceBoost
	} else if result.IsBearishReversal {
		confidence = bearishWeight / d.config.ConfidenceScale
		confidence -= result.OrderBookImbalance * d.config.ImbalanceBoost
	}
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}
	result.Confidence = confidence

	return result
}

func clampImbalance(v float64) float64 {
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}
