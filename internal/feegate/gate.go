package feegate

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"trading-decision-bot/internal/decision"
	"trading-decision-bot/internal/market"
)

// Fee roles select which configured rate applies to each leg of a round
// trip. The source system approximated breakeven with 2x a single rate;
// keeping the pairing configurable covers venues where entry and exit legs
// fill under different schedules.
const (
	RoleMaker = "maker"
	RoleTaker = "taker"
)

// Config holds the fee-protection rules
type Config struct {
	MakerFeeRate        float64 `json:"maker_fee_rate"`
	TakerFeeRate        float64 `json:"taker_fee_rate"`
	EntryFeeRole        string  `json:"entry_fee_role"`
	ExitFeeRole         string  `json:"exit_fee_role"`
	MinProfitMultiplier float64 `json:"min_profit_multiplier"`
	MaxTradesPerHour    int     `json:"max_trades_per_hour"`
	MaxTradesPerDay     int     `json:"max_trades_per_day"`
	MinHoldMinutes      int     `json:"min_hold_minutes"`
}

// DefaultConfig returns the default gate configuration
func DefaultConfig() Config {
	return Config{
		MakerFeeRate:        0.001,
		TakerFeeRate:        0.001,
		EntryFeeRole:        RoleTaker,
		ExitFeeRole:         RoleTaker,
		MinProfitMultiplier: 3,
		MaxTradesPerHour:    2,
		MaxTradesPerDay:     10,
		MinHoldMinutes:      30,
	}
}

// Validate checks the configuration at startup
func (c Config) Validate() error {
	if c.MakerFeeRate < 0 || c.MakerFeeRate >= 0.1 {
		return fmt.Errorf("maker_fee_rate %.4f out of range [0,0.1)", c.MakerFeeRate)
	}
	if c.TakerFeeRate < 0 || c.TakerFeeRate >= 0.1 {
		return fmt.Errorf("taker_fee_rate %.4f out of range [0,0.1)", c.TakerFeeRate)
	}
	if c.EntryFeeRole != RoleMaker && c.EntryFeeRole != RoleTaker {
		return fmt.Errorf("entry_fee_role must be %q or %q", RoleMaker, RoleTaker)
	}
	if c.ExitFeeRole != RoleMaker && c.ExitFeeRole != RoleTaker {
		return fmt.Errorf("exit_fee_role must be %q or %q", RoleMaker, RoleTaker)
	}
	if c.MinProfitMultiplier < 1 {
		return fmt.Errorf("min_profit_multiplier %.1f must be >= 1", c.MinProfitMultiplier)
	}
	if c.MaxTradesPerHour < 1 || c.MaxTradesPerDay < c.MaxTradesPerHour {
		return fmt.Errorf("trade caps invalid: %d/hour, %d/day", c.MaxTradesPerHour, c.MaxTradesPerDay)
	}
	if c.MinHoldMinutes < 0 {
		return fmt.Errorf("min_hold_minutes %d must be >= 0", c.MinHoldMinutes)
	}
	return nil
}

func (c Config) rate(role string) float64 {
	if role == RoleMaker {
		return c.MakerFeeRate
	}
	return c.TakerFeeRate
}

// EntryFeeRate returns the fee rate applied to the entry leg
func (c Config) EntryFeeRate() float64 { return c.rate(c.EntryFeeRole) }

// ExitFeeRate returns the fee rate applied to the exit leg
func (c Config) ExitFeeRate() float64 { return c.rate(c.ExitFeeRole) }

// BreakevenPrice is the exit price at which realized profit exactly offsets
// round-trip fees. Both legs are charged on the entry notional, which is the
// round-trip approximation the default taker/taker pairing reduces to
// entry * (1 + 2*fee_rate).
func (c Config) BreakevenPrice(entry float64) float64 {
	return entry * (1 + c.EntryFeeRate() + c.ExitFeeRate())
}

// MinProfitableExit is the lowest sell price the profit rule permits for a
// position entered at the given price.
func (c Config) MinProfitableExit(entry float64) float64 {
	return entry * (1 + (1+c.MinProfitMultiplier)*(c.EntryFeeRate()+c.ExitFeeRate()))
}

// Gate is the stateful per-symbol fee-protection layer. It downgrades or
// blocks aggregated decisions that would over-trade or sell at a fee-eroded
// profit, and exposes a two-phase reservation so a downstream execution
// failure can roll the optimistic state mutation back.
type Gate struct {
	config Config
	clock  market.Clock
	logger zerolog.Logger

	mu     sync.Mutex
	states map[string]*State
}

// NewGate creates a fee-protection gate. The clock is injected so backtests
// can drive the rolling windows with bar time.
func NewGate(config Config, clock market.Clock, logger zerolog.Logger) *Gate {
	return &Gate{
		config: config,
		clock:  clock,
		logger: logger.With().Str("component", "feegate").Logger(),
		states: make(map[string]*State),
	}
}

// Reservation captures the state mutated optimistically by a permitted
// trade. Exactly one of Commit or Abort must be called once the downstream
// execution outcome is known. prior records the position the mutation
// replaced; the rolling window may advance past it while the reservation is
// outstanding, so Abort never restores it wholesale.
type Reservation struct {
	gate   *Gate
	symbol string
	prior  *State
	trade  market.TradeRecord
	done   bool
}

// Trade returns the speculative trade record for this reservation
func (r *Reservation) Trade() market.TradeRecord { return r.trade }

// Commit finalizes the mutation and returns the executed trade record
func (r *Reservation) Commit() market.TradeRecord {
	r.gate.mu.Lock()
	defer r.gate.mu.Unlock()
	r.done = true
	return r.trade
}

// Abort reverses only this reservation's own mutation: the speculative
// trade timestamp is removed and the position change undone, so a rejected
// trade never consumes a rate-limit slot. The symbol lock is not held
// across gateway I/O, so trades permitted and committed while this
// reservation was outstanding are real; their timestamps and any position
// they opened stay counted.
func (r *Reservation) Abort() {
	r.gate.mu.Lock()
	defer r.gate.mu.Unlock()
	if r.done {
		return
	}
	r.done = true

	state := r.gate.state(r.symbol)
	state.removeTradeTime(r.trade.Timestamp)

	switch r.trade.Side {
	case "BUY":
		// Clear the speculative entry unless a later round already replaced it
		if state.EntryID == r.trade.ID {
			state.EntryID = ""
			state.EntryPrice = nil
			state.EntryTime = time.Time{}
			state.EntryFee = 0
			state.Quantity = 0
			state.Breakeven = 0
		}
	case "SELL":
		// Reopen the position the speculative sell closed, unless a later
		// buy already opened a new one
		if !state.Holding() && r.prior.EntryPrice != nil {
			entry := *r.prior.EntryPrice
			state.EntryID = r.prior.EntryID
			state.EntryPrice = &entry
			state.EntryTime = r.prior.EntryTime
			state.EntryFee = r.prior.EntryFee
			state.Quantity = r.prior.Quantity
			state.Breakeven = r.prior.Breakeven
		}
	}

	r.gate.logger.Warn().Str("symbol", r.symbol).Str("side", r.trade.Side).
		Msg("execution rejected, gate mutation reversed")
}

// Evaluate runs the gate rules for one symbol. Permitted trades mutate the
// state immediately and return a non-nil reservation; blocked trades return
// a HOLD decision with a descriptive reason and leave the state untouched.
// HALT passes through unmodified. The whole read-prune-decide-mutate
// sequence runs under the gate lock.
func (g *Gate) Evaluate(symbol string, d *decision.Decision, quantity float64) (*decision.Decision, *Reservation) {
	if d.Action == decision.Hold || d.Action == decision.Halt {
		return d, nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	state := g.state(symbol)
	now := g.clock.Now()
	state.prune(now)

	switch d.Action {
	case decision.Buy:
		return g.evaluateBuy(symbol, state, d, quantity, now)
	case decision.Sell:
		return g.evaluateSell(symbol, state, d, now)
	}
	return d, nil
}

func (g *Gate) evaluateBuy(symbol string, state *State, d *decision.Decision, quantity float64, now time.Time) (*decision.Decision, *Reservation) {
	// The aggregator does not know position state; a BUY while HOLDING is
	// invalid input, not a caller error.
	if state.Holding() {
		return downgrade(d, "No matching position"), nil
	}

	if n := state.countSince(now.Add(-time.Hour)); n >= g.config.MaxTradesPerHour {
		return downgrade(d, fmt.Sprintf("Trade limit: %d/%d trades in last hour", n, g.config.MaxTradesPerHour)), nil
	}
	if n := state.countSince(now.Add(-24 * time.Hour)); n >= g.config.MaxTradesPerDay {
		return downgrade(d, fmt.Sprintf("Trade limit: %d/%d trades in last day", n, g.config.MaxTradesPerDay)), nil
	}

	prior := state.clone()

	tradeID := uuid.New().String()
	entry := d.Price
	entryFee := entry * quantity * g.config.EntryFeeRate()
	state.TradeTimes = append(state.TradeTimes, now)
	state.LastTrade = now
	state.EntryID = tradeID
	state.EntryPrice = &entry
	state.EntryTime = now
	state.EntryFee = entryFee
	state.Quantity = quantity
	state.Breakeven = g.config.BreakevenPrice(entry)

	g.logger.Info().Str("symbol", symbol).Float64("entry", entry).
		Float64("breakeven", state.Breakeven).Msg("buy permitted")

	return d, &Reservation{
		gate:   g,
		symbol: symbol,
		prior:  prior,
		trade: market.TradeRecord{
			ID:        tradeID,
			Symbol:    symbol,
			Side:      "BUY",
			Amount:    quantity,
			Price:     entry,
			Fee:       entryFee,
			Timestamp: now,
		},
	}
}

func (g *Gate) evaluateSell(symbol string, state *State, d *decision.Decision, now time.Time) (*decision.Decision, *Reservation) {
	if !state.Holding() {
		return downgrade(d, "No matching position"), nil
	}

	minHold := time.Duration(g.config.MinHoldMinutes) * time.Minute
	if held := now.Sub(state.EntryTime); held < minHold {
		remaining := int(math.Ceil((minHold - held).Minutes()))
		return downgrade(d, fmt.Sprintf("Must hold for %d more minutes", remaining)), nil
	}

	entry := *state.EntryPrice
	quantity := state.Quantity
	// Exit fee charged on the entry notional: the same round-trip
	// approximation the breakeven price uses, so selling at breakeven nets
	// exactly zero.
	exitFee := entry * quantity * g.config.ExitFeeRate()
	fees := state.EntryFee + exitFee
	netProfit := (d.Price-entry)*quantity - fees

	if minNet := g.config.MinProfitMultiplier * fees; netProfit < minNet {
		return downgrade(d, fmt.Sprintf("Net profit $%.2f below %.0fx fees ($%.2f)",
			netProfit, g.config.MinProfitMultiplier, minNet)), nil
	}

	prior := state.clone()

	state.TradeTimes = append(state.TradeTimes, now)
	state.LastTrade = now
	state.EntryID = ""
	state.EntryPrice = nil
	state.EntryTime = time.Time{}
	state.EntryFee = 0
	state.Quantity = 0
	state.Breakeven = 0

	g.logger.Info().Str("symbol", symbol).Float64("exit", d.Price).
		Float64("net_profit", netProfit).Msg("sell permitted")

	pnl := netProfit
	return d, &Reservation{
		gate:   g,
		symbol: symbol,
		prior:  prior,
		trade: market.TradeRecord{
			ID:        uuid.New().String(),
			Symbol:    symbol,
			Side:      "SELL",
			Amount:    quantity,
			Price:     d.Price,
			Fee:       exitFee,
			Timestamp: now,
			PnL:       &pnl,
		},
	}
}

// Seed rebuilds one symbol's state from recent trade history
func (g *Gate) Seed(symbol string, trades []market.TradeRecord) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state(symbol).seed(trades, g.config.EntryFeeRate(), g.config.BreakevenPrice)
}

// Snapshot returns a copy of one symbol's state for persistence, or nil if
// the symbol has never traded.
func (g *Gate) Snapshot(symbol string) *State {
	g.mu.Lock()
	defer g.mu.Unlock()
	state, ok := g.states[symbol]
	if !ok {
		return nil
	}
	return state.clone()
}

// Restore replaces one symbol's state from a persisted snapshot
func (g *Gate) Restore(symbol string, state *State) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.states[symbol] = state.clone()
}

// Position returns the open entry price and quantity, or ok=false while IDLE
func (g *Gate) Position(symbol string) (entry, quantity float64, ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	state, exists := g.states[symbol]
	if !exists || !state.Holding() {
		return 0, 0, false
	}
	return *state.EntryPrice, state.Quantity, true
}

// state returns the symbol's state, creating it on first use. Caller holds
// the lock.
func (g *Gate) state(symbol string) *State {
	s, ok := g.states[symbol]
	if !ok {
		s = &State{}
		g.states[symbol] = s
	}
	return s
}

func downgrade(d *decision.Decision, reason string) *decision.Decision {
	return &decision.Decision{
		Action:     decision.Hold,
		Confidence: d.Confidence,
		Reason:     reason,
		Price:      d.Price,
	}
}
