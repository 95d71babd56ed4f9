package backtest

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"trading-decision-bot/internal/decision"
	"trading-decision-bot/internal/engine"
	"trading-decision-bot/internal/feegate"
	"trading-decision-bot/internal/market"
)

// Config holds one backtest run's parameters
type Config struct {
	Symbol           string             `json:"symbol"`
	InitialCapital   float64            `json:"initial_capital"`
	PositionFraction float64            `json:"position_fraction"` // Fraction of capital per entry
	WarmupBars       int                `json:"warmup_bars"`       // Bars consumed before the first evaluation
	PeriodsPerYear   float64            `json:"periods_per_year"`  // Annualization factor for Sharpe/Sortino
	SentimentScores  map[string]float64 `json:"sentiment_scores"`  // Static override; nil uses the momentum proxy
}

// DefaultConfig returns defaults for hourly bars
func DefaultConfig(symbol string) Config {
	return Config{
		Symbol:           symbol,
		InitialCapital:   10000,
		PositionFraction: 0.95,
		WarmupBars:       50,
		PeriodsPerYear:   8760, // hourly bars
	}
}

// Validate checks the configuration before a run
func (c Config) Validate() error {
	if c.Symbol == "" {
		return fmt.Errorf("backtest symbol is required")
	}
	if c.InitialCapital <= 0 {
		return fmt.Errorf("backtest initial_capital must be positive")
	}
	if c.PositionFraction <= 0 || c.PositionFraction > 1 {
		return fmt.Errorf("backtest position_fraction %.2f out of range (0,1]", c.PositionFraction)
	}
	if c.WarmupBars < 1 {
		return fmt.Errorf("backtest warmup_bars must be >= 1")
	}
	if c.PeriodsPerYear <= 0 {
		return fmt.Errorf("backtest periods_per_year must be positive")
	}
	return nil
}

// EquityPoint is one sample of the equity curve
type EquityPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Equity    float64   `json:"equity"`
}

// Result is the fully populated outcome of one run, immutable afterward
type Result struct {
	Metrics     Metrics              `json:"metrics"`
	EquityCurve []EquityPoint        `json:"equity_curve"`
	Trades      []market.TradeRecord `json:"trades"`
	Config      Config               `json:"config"`
}

// Engine replays the live pipeline over a historical bar series. It shares
// the decision and gate code with live trading; determinism comes from the
// bar-time clock and the absence of any random or wall-clock input inside
// the loop.
type Engine struct {
	pipeline   *engine.Pipeline
	gateConfig feegate.Config
	logger     zerolog.Logger
}

// NewEngine creates a backtest engine around the shared pipeline
func NewEngine(pipeline *engine.Pipeline, gateConfig feegate.Config, logger zerolog.Logger) *Engine {
	return &Engine{
		pipeline:   pipeline,
		gateConfig: gateConfig,
		logger:     logger.With().Str("component", "backtest").Logger(),
	}
}

// Run replays the bars through the pipeline. Each iteration sees only the
// bars up to and including the current one (no look-ahead), and the fee
// gate evolves on a state instance scoped to this run.
func (e *Engine) Run(bars []market.Bar, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if len(bars) <= config.WarmupBars {
		return nil, fmt.Errorf("insufficient history: got %d bars, need more than %d", len(bars), config.WarmupBars)
	}

	clock := &market.FixedClock{}
	gate := feegate.NewGate(e.gateConfig, clock, e.logger)

	cash := config.InitialCapital
	position := 0.0
	trades := make([]market.TradeRecord, 0)
	curve := make([]EquityPoint, 0, len(bars)-config.WarmupBars)

	for i := config.WarmupBars; i < len(bars); i++ {
		bar := bars[i]
		clock.Current = bar.Time()

		visible := bars[:i+1]
		snapshot := market.NewSnapshot(config.Symbol, visible, 0, 0)

		scores := config.SentimentScores
		if scores == nil {
			scores = momentumScores(visible)
		}

		analysis := e.pipeline.Analyze(snapshot, scores)

		quantity := 0.0
		if analysis.Decision.Action == decision.Buy && snapshot.Price > 0 {
			quantity = cash * config.PositionFraction / snapshot.Price
		}

		_, reservation := gate.Evaluate(config.Symbol, analysis.Decision, quantity)
		if reservation != nil {
			trade := reservation.Commit()
			trades = append(trades, trade)

			switch trade.Side {
			case "BUY":
				cash -= trade.Price*trade.Amount + trade.Fee
				position += trade.Amount
			case "SELL":
				cash += trade.Price*trade.Amount - trade.Fee
				position = 0
			}
		}

		// Equity sampled after every bar regardless of trade activity
		curve = append(curve, EquityPoint{
			Timestamp: bar.Time(),
			Equity:    cash + position*bar.Close,
		})
	}

	result := &Result{
		EquityCurve: curve,
		Trades:      trades,
		Config:      config,
	}
	result.Metrics = computeMetrics(curve, trades, config)

	e.logger.Info().Str("symbol", config.Symbol).
		Int("trades", result.Metrics.TotalTrades).
		Float64("return_pct", result.Metrics.TotalReturnPercent).
		Msg("backtest completed")

	return result, nil
}

// momentumScores derives a deterministic sentiment proxy from recent price
// momentum so historical replays exercise the full aggregation path without
// an external feed.
func momentumScores(bars []market.Bar) map[string]float64 {
	const window = 10
	if len(bars) < window+1 {
		return map[string]float64{"momentum": 0}
	}

	current := bars[len(bars)-1].Close
	past := bars[len(bars)-window-1].Close
	if past == 0 {
		return map[string]float64{"momentum": 0}
	}

	// ±5% over the window saturates the score
	score := (current - past) / past / 0.05
	if score > 1 {
		score = 1
	}
	if score < -1 {
		score = -1
	}
	return map[string]float64{"momentum": score}
}
