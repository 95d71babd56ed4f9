package risk

import (
	"fmt"

	"trading-decision-bot/internal/indicators"
	"trading-decision-bot/internal/market"
)

// Direction hints which side of the price the stop and target belong on
type Direction int

const (
	Neutral Direction = iota
	Long
	Short
)

// Config holds risk calculation settings
type Config struct {
	ATRPeriod        int     `json:"atr_period"`
	StopLossATR      float64 `json:"stop_loss_atr"`       // Stop distance = k1 x ATR
	TakeProfitATR    float64 `json:"take_profit_atr"`     // Target distance = k2 x ATR
	MinRiskReward    float64 `json:"min_risk_reward"`     // Floor; target widened to satisfy it
}

// DefaultConfig returns defaults yielding a 1:1.67 risk:reward
func DefaultConfig() Config {
	return Config{
		ATRPeriod:     14,
		StopLossATR:   1.5,
		TakeProfitATR: 2.5,
		MinRiskReward: 1.5,
	}
}

// Validate checks the configuration at startup
func (c Config) Validate() error {
	if c.ATRPeriod < 2 {
		return fmt.Errorf("risk atr_period %d must be >= 2", c.ATRPeriod)
	}
	if c.StopLossATR <= 0 || c.TakeProfitATR <= 0 {
		return fmt.Errorf("risk ATR multipliers must be positive")
	}
	if c.MinRiskReward <= 0 {
		return fmt.Errorf("risk min_risk_reward must be positive")
	}
	return nil
}

// Levels is the risk module output
type Levels struct {
	StopLoss        float64 `json:"stop_loss_price"`
	TakeProfit      float64 `json:"take_profit_price"`
	StopLossPct     float64 `json:"stop_loss_pct"`
	TakeProfitPct   float64 `json:"take_profit_pct"`
	RiskRewardRatio float64 `json:"risk_reward_ratio"`
	ATR             float64 `json:"atr"`
	Volatility      float64 `json:"volatility"` // ATR as % of price
	Confidence      float64 `json:"confidence"`
}

// Calculator derives stop-loss and take-profit levels from volatility
type Calculator struct {
	config Config
}

// NewCalculator creates a risk calculator
func NewCalculator(config Config) *Calculator {
	return &Calculator{config: config}
}

// Calculate derives absolute and percentage risk levels for the intended
// direction. A Neutral hint uses the long-side convention. The risk:reward
// ratio never falls below the configured floor: the take-profit distance is
// widened instead.
func (c *Calculator) Calculate(snapshot market.Snapshot, direction Direction) *Levels {
	price := snapshot.Price
	atr := indicators.ATR(snapshot.Bars, c.config.ATRPeriod)

	levels := &Levels{ATR: atr}
	if price <= 0 || atr <= 0 {
		return levels
	}

	stopDistance := c.config.StopLossATR * atr
	targetDistance := c.config.TakeProfitATR * atr
	if targetDistance < stopDistance*c.config.MinRiskReward {
		targetDistance = stopDistance * c.config.MinRiskReward
	}

	switch direction {
	case Short:
		levels.StopLoss = price + stopDistance
		levels.TakeProfit = price - targetDistance
	default: // Long and Neutral
		levels.StopLoss = price - stopDistance
		levels.TakeProfit = price + targetDistance
	}

	levels.StopLossPct = stopDistance / price * 100
	levels.TakeProfitPct = targetDistance / price * 100
	levels.RiskRewardRatio = targetDistance / stopDistance
	levels.Volatility = atr / price * 100

	// Calmer markets give tighter, more reliable levels
	levels.Confidence = 1.0 - levels.Volatility/100
	if levels.Confidence < 0.1 {
		levels.Confidence = 0.1
	}

	return levels
}
