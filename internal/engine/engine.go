package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"trading-decision-bot/internal/decision"
	"trading-decision-bot/internal/events"
	"trading-decision-bot/internal/feegate"
	"trading-decision-bot/internal/market"
)

// Config holds live evaluation settings
type Config struct {
	Lookback      int           `json:"lookback"`        // Bars fetched per evaluation
	TradeAmount   float64       `json:"trade_amount"`    // Position size in quote currency
	SignalTimeout time.Duration `json:"signal_timeout"`  // Per-source budget before degrading to neutral
}

// DefaultConfig returns the default engine configuration
func DefaultConfig() Config {
	return Config{
		Lookback:      100,
		TradeAmount:   1000,
		SignalTimeout: 5 * time.Second,
	}
}

// Validate checks the configuration at startup
func (c Config) Validate() error {
	if c.Lookback < 1 {
		return fmt.Errorf("engine lookback %d must be >= 1", c.Lookback)
	}
	if c.TradeAmount <= 0 {
		return fmt.Errorf("engine trade_amount must be positive")
	}
	if c.SignalTimeout <= 0 {
		return fmt.Errorf("engine signal_timeout must be positive")
	}
	return nil
}

// Engine drives the live evaluation path: gather signals, aggregate,
// gate, emit. Symbols are independent and may be evaluated concurrently,
// but evaluations for one symbol are single-flight.
type Engine struct {
	config   Config
	pipeline *Pipeline
	gate     *feegate.Gate
	data     market.MarketDataSource
	feed     market.SignalFeed
	history  market.TradeHistoryStore
	gateway  market.ExecutionGateway
	bus      *events.Bus
	logger   zerolog.Logger

	mu      sync.Mutex
	symbols map[string]*sync.Mutex // per-symbol single-flight locks
}

// New creates a live engine
func New(config Config, pipeline *Pipeline, gate *feegate.Gate, data market.MarketDataSource,
	feed market.SignalFeed, history market.TradeHistoryStore, gateway market.ExecutionGateway,
	bus *events.Bus, logger zerolog.Logger) *Engine {
	return &Engine{
		config:   config,
		pipeline: pipeline,
		gate:     gate,
		data:     data,
		feed:     feed,
		history:  history,
		gateway:  gateway,
		bus:      bus,
		logger:   logger.With().Str("component", "engine").Logger(),
		symbols:  make(map[string]*sync.Mutex),
	}
}

// SeedFromHistory rebuilds the gate's per-symbol state from the trade store,
// called once at startup before the first evaluation.
func (e *Engine) SeedFromHistory(ctx context.Context, symbols []string) error {
	for _, symbol := range symbols {
		trades, err := e.history.RecentTrades(ctx, symbol, 24*time.Hour)
		if err != nil {
			return fmt.Errorf("seeding %s: %w", symbol, err)
		}
		e.gate.Seed(symbol, trades)
	}
	return nil
}

// EvaluateSymbol runs one full evaluation for a symbol: snapshot, fan-out
// analysis, aggregation, fee gate, and emission of a permitted trade. It
// always returns the (possibly gate-downgraded) decision; only data-source
// failures return an error.
func (e *Engine) EvaluateSymbol(ctx context.Context, symbol string) (*Analysis, error) {
	lock := e.symbolLock(symbol)
	lock.Lock()

	analysis, reservation, err := e.evaluate(ctx, symbol)

	// Emission can block on network I/O; never hold the per-symbol lock
	// across it. The gate state is already mutated optimistically and the
	// reservation rolls it back if the gateway rejects.
	lock.Unlock()

	if err != nil {
		return nil, err
	}

	if reservation != nil {
		e.emit(ctx, symbol, analysis.Decision, reservation)
	}

	e.bus.Publish(events.EventDecision, map[string]interface{}{
		"symbol":     symbol,
		"action":     string(analysis.Decision.Action),
		"confidence": analysis.Decision.Confidence,
		"reason":     analysis.Decision.Reason,
		"price":      analysis.Decision.Price,
	})

	return analysis, nil
}

// evaluate holds the per-symbol critical section: snapshot build, module
// fan-out, aggregation and the gate's read-prune-decide-mutate sequence.
func (e *Engine) evaluate(ctx context.Context, symbol string) (*Analysis, *feegate.Reservation, error) {
	bars, err := e.data.GetBars(ctx, symbol, e.config.Lookback)
	if err != nil {
		return nil, nil, fmt.Errorf("fetching bars for %s: %w", symbol, err)
	}

	scores, imbalance := e.gatherSignals(ctx, symbol)
	snapshot := market.NewSnapshot(symbol, bars, 0, imbalance)

	analysis := e.pipeline.Analyze(snapshot, scores)

	quantity := 0.0
	if analysis.Decision.Action == decision.Buy && snapshot.Price > 0 {
		quantity = e.config.TradeAmount / snapshot.Price
	}

	gated, reservation := e.gate.Evaluate(symbol, analysis.Decision, quantity)
	if gated.Action != analysis.Decision.Action {
		e.logger.Info().Str("symbol", symbol).
			Str("from", string(analysis.Decision.Action)).
			Str("reason", gated.Reason).Msg("decision downgraded by fee gate")
	}
	analysis.Decision = gated

	return analysis, reservation, nil
}

// gatherSignals fetches sentiment and order-book imbalance concurrently.
// A source that errors or exceeds its timeout degrades to neutral; losing
// advisory signals never aborts the decision.
func (e *Engine) gatherSignals(ctx context.Context, symbol string) (map[string]float64, float64) {
	ctx, cancel := context.WithTimeout(ctx, e.config.SignalTimeout)
	defer cancel()

	var (
		wg        sync.WaitGroup
		scores    map[string]float64
		imbalance float64
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		s, err := e.feed.GetSentiment(ctx, symbol)
		if err != nil {
			e.logger.Warn().Err(err).Str("symbol", symbol).Msg("sentiment feed degraded to neutral")
			return
		}
		scores = s
	}()
	go func() {
		defer wg.Done()
		v, err := e.feed.GetOrderBookImbalance(ctx, symbol)
		if err != nil {
			e.logger.Warn().Err(err).Str("symbol", symbol).Msg("order book feed degraded to neutral")
			return
		}
		imbalance = v
	}()
	wg.Wait()

	return scores, imbalance
}

// emit submits the permitted trade and settles the reservation: commit and
// record on fill, abort on rejection so the rate-limit slot is returned.
func (e *Engine) emit(ctx context.Context, symbol string, d *decision.Decision, reservation *feegate.Reservation) {
	trade := reservation.Trade()

	fill, err := e.gateway.Submit(ctx, symbol, string(d.Action), trade.Amount, d.Price)
	if err != nil {
		reservation.Abort()
		e.bus.Publish(events.EventTradeRejected, map[string]interface{}{
			"symbol": symbol,
			"side":   string(d.Action),
			"error":  err.Error(),
		})
		return
	}

	executed := reservation.Commit()
	if fill != nil {
		executed.Price = fill.Price
		executed.Fee = fill.Fee
	}

	if err := e.history.Record(ctx, executed); err != nil {
		e.logger.Error().Err(err).Str("symbol", symbol).Msg("failed to record executed trade")
	}

	e.bus.Publish(events.EventTradeExecuted, map[string]interface{}{
		"symbol": symbol,
		"side":   executed.Side,
		"amount": executed.Amount,
		"price":  executed.Price,
		"fee":    executed.Fee,
	})
}

func (e *Engine) symbolLock(symbol string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	lock, ok := e.symbols[symbol]
	if !ok {
		lock = &sync.Mutex{}
		e.symbols[symbol] = lock
	}
	return lock
}
