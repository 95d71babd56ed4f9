package decision

import (
	"trading-decision-bot/internal/regime"
	"trading-decision-bot/internal/reversal"
	"trading-decision-bot/internal/risk"
	"trading-decision-bot/internal/sentiment"
)

// Action is the aggregated trading action
type Action string

const (
	Buy  Action = "BUY"
	Sell Action = "SELL"
	Hold Action = "HOLD"
	Halt Action = "HALT"
)

// Decision is the aggregated pipeline output consumed by the fee gate and,
// once permitted, by the execution gateway.
//
// Invariant: for BUY, StopLoss < Price < TakeProfit; for SELL,
// TakeProfit < Price < StopLoss. HOLD and HALT carry zero risk levels.
type Decision struct {
	Action          Action  `json:"action"`
	Confidence      float64 `json:"confidence"`
	Reason          string  `json:"reason"`
	Price           float64 `json:"current_price"`
	StopLoss        float64 `json:"stop_loss"`
	TakeProfit      float64 `json:"take_profit"`
	RiskRewardRatio float64 `json:"risk_reward_ratio"`
}

// Inputs carries the four module results into the aggregator. A nil Regime
// means the classifier failed with insufficient history and forces HALT; the
// other results must be non-nil (degraded sources supply neutral values).
type Inputs struct {
	Regime    *regime.Result
	Sentiment *sentiment.Result
	Reversal  *reversal.Result
	Risk      *risk.Levels
	Price     float64
}

// HaltDecision builds the forced-HALT decision used when a module cannot run
func HaltDecision(price float64, reason string) *Decision {
	return &Decision{
		Action:     Halt,
		Confidence: 0,
		Reason:     reason,
		Price:      price,
	}
}
