package backtest

import (
	"math"

	"trading-decision-bot/internal/market"
)

// InfiniteProfitFactor is reported when the run has gross profit but zero
// gross loss; JSON cannot carry +Inf, so a sentinel stands in.
const InfiniteProfitFactor = 9999.0

// Metrics summarizes a completed run
type Metrics struct {
	TotalReturnPercent float64 `json:"total_return_percent"`
	MaxDrawdownPercent float64 `json:"max_drawdown_percent"`
	SharpeRatio        float64 `json:"sharpe_ratio"`
	SortinoRatio       float64 `json:"sortino_ratio"`
	WinRatePercent     float64 `json:"win_rate_percent"`
	ProfitFactor       float64 `json:"profit_factor"`
	TotalTrades        int     `json:"total_trades"`
	CompletedRounds    int     `json:"completed_rounds"`
	FinalEquity        float64 `json:"final_equity"`
}

func computeMetrics(curve []EquityPoint, trades []market.TradeRecord, config Config) Metrics {
	m := Metrics{
		TotalTrades: len(trades),
		FinalEquity: config.InitialCapital,
	}

	if len(curve) > 0 {
		m.FinalEquity = curve[len(curve)-1].Equity
	}
	m.TotalReturnPercent = (m.FinalEquity/config.InitialCapital - 1) * 100
	m.MaxDrawdownPercent = maxDrawdown(curve)
	m.SharpeRatio, m.SortinoRatio = riskAdjustedReturns(curve, config.PeriodsPerYear)

	// Closed rounds carry realized P/L on the SELL leg
	var wins, rounds int
	var grossProfit, grossLoss float64
	for _, t := range trades {
		if t.Side != "SELL" || t.PnL == nil {
			continue
		}
		rounds++
		if *t.PnL > 0 {
			wins++
			grossProfit += *t.PnL
		} else {
			grossLoss += -*t.PnL
		}
	}
	m.CompletedRounds = rounds

	if rounds > 0 {
		m.WinRatePercent = float64(wins) / float64(rounds) * 100
	}
	switch {
	case grossLoss > 0:
		m.ProfitFactor = grossProfit / grossLoss
	case grossProfit > 0:
		m.ProfitFactor = InfiniteProfitFactor
	}

	return m
}

// maxDrawdown returns the largest peak-to-trough decline as a percentage
func maxDrawdown(curve []EquityPoint) float64 {
	if len(curve) == 0 {
		return 0
	}

	maxDD := 0.0
	peak := curve[0].Equity
	for _, point := range curve {
		if point.Equity > peak {
			peak = point.Equity
		}
		if peak > 0 {
			dd := (peak - point.Equity) / peak * 100
			if dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// riskAdjustedReturns computes annualized Sharpe and Sortino ratios from
// per-bar equity returns. Sortino penalizes only downside deviation.
func riskAdjustedReturns(curve []EquityPoint, periodsPerYear float64) (sharpe, sortino float64) {
	if len(curve) < 2 {
		return 0, 0
	}

	returns := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		if prev == 0 {
			continue
		}
		returns = append(returns, curve[i].Equity/prev-1)
	}
	if len(returns) == 0 {
		return 0, 0
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	var variance, downside float64
	for _, r := range returns {
		diff := r - mean
		variance += diff * diff
		if r < 0 {
			downside += r * r
		}
	}
	stdDev := math.Sqrt(variance / float64(len(returns)))
	downsideDev := math.Sqrt(downside / float64(len(returns)))

	annualize := math.Sqrt(periodsPerYear)
	if stdDev > 0 {
		sharpe = mean / stdDev * annualize
	}
	if downsideDev > 0 {
		sortino = mean / downsideDev * annualize
	}
	return sharpe, sortino
}
