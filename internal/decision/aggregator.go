package decision

import (
	"fmt"
	"math"

	"trading-decision-bot/internal/regime"
	"trading-decision-bot/internal/reversal"
	"trading-decision-bot/internal/sentiment"
)

// Weights control how much each module contributes to the final confidence.
// They must sum to 1.
type Weights struct {
	Regime    float64 `json:"regime"`
	Sentiment float64 `json:"sentiment"`
	Reversal  float64 `json:"reversal"`
	Risk      float64 `json:"risk"`
}

// Config holds aggregation settings
type Config struct {
	Weights                   Weights `json:"weights"`
	MinConfidence             float64 `json:"min_confidence"`              // Below => HOLD
	ReversalOverrideThreshold float64 `json:"reversal_override_threshold"` // Opposing reversal above => HALT
}

// DefaultConfig returns the default aggregator configuration
func DefaultConfig() Config {
	return Config{
		Weights: Weights{
			Regime:    0.35,
			Sentiment: 0.20,
			Reversal:  0.20,
			Risk:      0.25,
		},
		MinConfidence:             0.5,
		ReversalOverrideThreshold: 0.6,
	}
}

// Validate checks the configuration at startup
func (c Config) Validate() error {
	sum := c.Weights.Regime + c.Weights.Sentiment + c.Weights.Reversal + c.Weights.Risk
	if math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("decision weights must sum to 1, got %.4f", sum)
	}
	if c.Weights.Regime < 0 || c.Weights.Sentiment < 0 || c.Weights.Reversal < 0 || c.Weights.Risk < 0 {
		return fmt.Errorf("decision weights must be non-negative")
	}
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return fmt.Errorf("decision min_confidence %.2f out of range [0,1]", c.MinConfidence)
	}
	if c.ReversalOverrideThreshold <= 0 || c.ReversalOverrideThreshold > 1 {
		return fmt.Errorf("decision reversal_override_threshold %.2f out of range (0,1]", c.ReversalOverrideThreshold)
	}
	return nil
}

// Aggregator fuses the four module results into one action. Identical inputs
// always produce the identical decision, including the reason string; there
// is no randomness or wall-clock access here, which is what lets the
// backtester reproduce live behavior exactly.
type Aggregator struct {
	config Config
}

// NewAggregator creates a decision aggregator
func NewAggregator(config Config) *Aggregator {
	return &Aggregator{config: config}
}

// Aggregate combines module results into the final decision
func (a *Aggregator) Aggregate(in Inputs) *Decision {
	if in.Regime == nil {
		return HaltDecision(in.Price, "Insufficient market history for regime classification")
	}

	action, directionReason := a.directionalBias(in)

	// Sentiment veto: an inconclusive or degraded sentiment read forces HOLD
	// regardless of the other signals.
	if action == Buy || action == Sell {
		if !in.Sentiment.ShouldTrade {
			return &Decision{
				Action:     Hold,
				Confidence: a.combineConfidence(Hold, in),
				Reason:     fmt.Sprintf("Sentiment inconclusive (score %.2f); standing aside", in.Sentiment.Score),
				Price:      in.Price,
			}
		}

		// A confident reversal against the regime bias means the signals
		// disagree. Halting beats guessing a direction.
		if opposing := a.opposingReversal(action, in.Reversal); opposing != "" {
			return &Decision{
				Action:     Halt,
				Confidence: in.Reversal.Confidence,
				Reason: fmt.Sprintf("Conflicting signals: %s regime against %s (confidence %.2f)",
					in.Regime.Regime, opposing, in.Reversal.Confidence),
				Price: in.Price,
			}
		}
	}

	confidence := a.combineConfidence(action, in)

	if (action == Buy || action == Sell) && confidence < a.config.MinConfidence {
		return &Decision{
			Action:     Hold,
			Confidence: confidence,
			Reason:     fmt.Sprintf("Confidence %.2f below minimum %.2f", confidence, a.config.MinConfidence),
			Price:      in.Price,
		}
	}

	d := &Decision{
		Action:     action,
		Confidence: confidence,
		Reason:     directionReason,
		Price:      in.Price,
	}

	// Risk levels arrive in long-side convention (neutral hint); a SELL
	// mirrors them so take-profit sits below and stop-loss above the price.
	switch action {
	case Buy:
		d.StopLoss = in.Risk.StopLoss
		d.TakeProfit = in.Risk.TakeProfit
		d.RiskRewardRatio = in.Risk.RiskRewardRatio
	case Sell:
		d.StopLoss = in.Price + (in.Price - in.Risk.StopLoss)
		d.TakeProfit = in.Price - (in.Risk.TakeProfit - in.Price)
		d.RiskRewardRatio = in.Risk.RiskRewardRatio
	}

	return d
}

// directionalBias derives the starting action from the regime, allowing a
// confident reversal to open a mean-reversion entry in quiet sideways
// markets.
func (a *Aggregator) directionalBias(in Inputs) (Action, string) {
	switch in.Regime.Regime {
	case regime.TrendingUp:
		reason := fmt.Sprintf("Uptrend (ADX %.1f) with %s sentiment (%.2f)",
			in.Regime.ADX, in.Sentiment.Interpretation, in.Sentiment.Score)
		return Buy, reason
	case regime.TrendingDown:
		reason := fmt.Sprintf("Downtrend (ADX %.1f) with %s sentiment (%.2f)",
			in.Regime.ADX, in.Sentiment.Interpretation, in.Sentiment.Score)
		return Sell, reason
	}

	// Sideways: only a confident reversal in a low-trend market justifies a
	// mean-reversion entry.
	if in.Regime.AllowMeanReversion && in.Reversal.Confidence >= a.config.ReversalOverrideThreshold {
		if in.Reversal.IsBullishReversal {
			return Buy, fmt.Sprintf("Sideways regime; mean-reversion buy on %s (confidence %.2f)",
				firstPattern(in.Reversal), in.Reversal.Confidence)
		}
		if in.Reversal.IsBearishReversal {
			return Sell, fmt.Sprintf("Sideways regime; mean-reversion sell on %s (confidence %.2f)",
				firstPattern(in.Reversal), in.Reversal.Confidence)
		}
	}

	return Hold, fmt.Sprintf("Sideways market (ADX %.1f); no edge", in.Regime.ADX)
}

// opposingReversal returns a description of a reversal that contradicts the
// intended action above the override threshold, or "" when there is none.
func (a *Aggregator) opposingReversal(action Action, rev *reversal.Result) string {
	if rev.Confidence < a.config.ReversalOverrideThreshold {
		return ""
	}
	if action == Buy && rev.IsBearishReversal {
		return "bearish reversal"
	}
	if action == Sell && rev.IsBullishReversal {
		return "bullish reversal"
	}
	return ""
}

// combineConfidence folds the four module confidences into one score using
// the configured weights, then applies sentiment alignment as a multiplier.
func (a *Aggregator) combineConfidence(action Action, in Inputs) float64 {
	w := a.config.Weights

	conf := w.Regime*in.Regime.Confidence +
		w.Sentiment*in.Sentiment.Confidence +
		w.Reversal*a.reversalComponent(action, in.Reversal) +
		w.Risk*in.Risk.Confidence

	conf *= sentimentMultiplier(action, in.Sentiment)

	if conf > 1 {
		conf = 1
	}
	if conf < 0 {
		conf = 0
	}
	return conf
}

// reversalComponent scores the reversal module relative to the intended
// direction: confirming patterns contribute their confidence, silence
// contributes a weak neutral value, and sub-threshold opposition contributes
// nothing.
func (a *Aggregator) reversalComponent(action Action, rev *reversal.Result) float64 {
	confirms := (action == Buy && rev.IsBullishReversal) || (action == Sell && rev.IsBearishReversal)
	opposes := (action == Buy && rev.IsBearishReversal) || (action == Sell && rev.IsBullishReversal)

	switch {
	case confirms:
		return rev.Confidence
	case opposes:
		return 0
	default:
		return 0.3
	}
}

// sentimentMultiplier damps confidence when sentiment leans against the
// action and leaves aligned or neutral sentiment mostly intact.
func sentimentMultiplier(action Action, sent *sentiment.Result) float64 {
	aligned := (action == Buy && sent.Interpretation == sentiment.Bullish) ||
		(action == Sell && sent.Interpretation == sentiment.Bearish)
	opposed := (action == Buy && sent.Interpretation == sentiment.Bearish) ||
		(action == Sell && sent.Interpretation == sentiment.Bullish)

	switch {
	case aligned:
		return 1.0
	case opposed:
		return 0.7
	default:
		return 0.9
	}
}

func firstPattern(rev *reversal.Result) string {
	if len(rev.PatternsDetected) == 0 {
		return "pattern"
	}
	return rev.PatternsDetected[0]
}
