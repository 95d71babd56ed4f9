package regime

import (
	"errors"
	"fmt"

	"trading-decision-bot/internal/indicators"
	"trading-decision-bot/internal/market"
)

// ErrInsufficientHistory is returned when fewer bars than the configured
// lookback are supplied. Callers must treat it as a forced HALT, never as a
// pipeline failure.
var ErrInsufficientHistory = errors.New("insufficient history for regime classification")

// Regime represents the classified market state
type Regime string

const (
	TrendingUp   Regime = "TRENDING_UP"
	TrendingDown Regime = "TRENDING_DOWN"
	Sideways     Regime = "SIDEWAYS"
)

// Config holds regime classifier thresholds
type Config struct {
	Lookback          int     `json:"lookback"`            // Minimum bars required
	ADXPeriod         int     `json:"adx_period"`          // ADX window
	TrendThreshold    float64 `json:"trend_threshold"`     // ADX at/above = trending
	LowTrendThreshold float64 `json:"low_trend_threshold"` // ADX below = mean reversion allowed
	BollingerPeriod   int     `json:"bollinger_period"`
	BollingerStdDev   float64 `json:"bollinger_std_dev"`
}

// DefaultConfig returns the default classifier configuration
func DefaultConfig() Config {
	return Config{
		Lookback:          30,
		ADXPeriod:         14,
		TrendThreshold:    25,
		LowTrendThreshold: 20,
		BollingerPeriod:   20,
		BollingerStdDev:   2.0,
	}
}

// Validate checks the configuration at startup
func (c Config) Validate() error {
	if c.Lookback < c.ADXPeriod*2 {
		return fmt.Errorf("regime lookback %d must be at least 2x adx_period %d", c.Lookback, c.ADXPeriod)
	}
	if c.TrendThreshold <= 0 || c.TrendThreshold > 100 {
		return fmt.Errorf("regime trend_threshold %.1f out of range (0,100]", c.TrendThreshold)
	}
	if c.LowTrendThreshold <= 0 || c.LowTrendThreshold > c.TrendThreshold {
		return fmt.Errorf("regime low_trend_threshold %.1f must be in (0, trend_threshold]", c.LowTrendThreshold)
	}
	if c.BollingerPeriod <= 1 {
		return fmt.Errorf("regime bollinger_period %d must be > 1", c.BollingerPeriod)
	}
	return nil
}

// Result is the regime module output
type Result struct {
	Regime             Regime  `json:"regime"`
	Confidence         float64 `json:"confidence"`
	AllowMeanReversion bool    `json:"allow_mean_reversion"`
	ADX                float64 `json:"adx"`
	BBWidth            float64 `json:"bb_width"`
}

// Classifier classifies the market regime from trend strength and
// volatility-band width
type Classifier struct {
	config Config
}

// NewClassifier creates a regime classifier
func NewClassifier(config Config) *Classifier {
	return &Classifier{config: config}
}

// Classify evaluates the snapshot's bars into a regime result
func (c *Classifier) Classify(snapshot market.Snapshot) (*Result, error) {
	if len(snapshot.Bars) < c.config.Lookback {
		return nil, fmt.Errorf("%w: got %d bars, need %d", ErrInsufficientHistory, len(snapshot.Bars), c.config.Lookback)
	}

	adx := indicators.ADX(snapshot.Bars, c.config.ADXPeriod)
	bands := indicators.Bollinger(snapshot.Bars, c.config.BollingerPeriod, c.config.BollingerStdDev)

	result := &Result{
		ADX:     adx.ADX,
		BBWidth: bands.Width(),
	}

	threshold := c.config.TrendThreshold
	switch {
	case adx.ADX >= threshold && adx.PlusDI > adx.MinusDI:
		result.Regime = TrendingUp
		result.Confidence = trendConfidence(adx.ADX, threshold)
	case adx.ADX >= threshold && adx.MinusDI > adx.PlusDI:
		result.Regime = TrendingDown
		result.Confidence = trendConfidence(adx.ADX, threshold)
	default:
		result.Regime = Sideways
		// Confidence grows as ADX falls away from the trend threshold
		result.Confidence = capConfidence(0.5 + (threshold-adx.ADX)/threshold*0.5)
		result.AllowMeanReversion = adx.ADX < c.config.LowTrendThreshold
	}

	return result, nil
}

// trendConfidence scales confidence by how far ADX sits past the threshold
func trendConfidence(adx, threshold float64) float64 {
	return capConfidence(0.5 + (adx-threshold)/50.0)
}

func capConfidence(v float64) float64 {
	if v > 1.0 {
		return 1.0
	}
	if v < 0 {
		return 0
	}
	return v
}
