// Package gateway provides execution gateways. Only paper trading ships;
// the interface leaves room for a real exchange adapter.
package gateway

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"trading-decision-bot/internal/market"
)

// PaperConfig holds the simulated execution settings
type PaperConfig struct {
	FeeRate     float64 `json:"fee_rate"`     // Applied to fill notional
	SlippageBps float64 `json:"slippage_bps"` // Adverse price movement per fill, in basis points
}

// DefaultPaperConfig returns paper-trading defaults matching a 0.1% taker
// schedule with no slippage.
func DefaultPaperConfig() PaperConfig {
	return PaperConfig{FeeRate: 0.001}
}

// Paper simulates fills at the requested price plus configured slippage.
// Failures can be injected per symbol to exercise the rollback path.
type Paper struct {
	config PaperConfig
	clock  market.Clock
	logger zerolog.Logger

	mu       sync.Mutex
	failures map[string]error
	fills    []market.Fill
}

// NewPaper creates a paper-trading gateway
func NewPaper(config PaperConfig, clock market.Clock, logger zerolog.Logger) *Paper {
	return &Paper{
		config:   config,
		clock:    clock,
		logger:   logger.With().Str("component", "paper_gateway").Logger(),
		failures: make(map[string]error),
	}
}

// FailNext makes the next Submit for the symbol return the given error
func (p *Paper) FailNext(symbol string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures[symbol] = err
}

// Fills returns a copy of every fill executed so far
func (p *Paper) Fills() []market.Fill {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]market.Fill, len(p.fills))
	copy(out, p.fills)
	return out
}

// Submit fills the order immediately at the requested price adjusted for
// slippage. Slippage always moves against the order.
func (p *Paper) Submit(ctx context.Context, symbol, side string, amount, price float64) (*market.Fill, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err, ok := p.failures[symbol]; ok {
		delete(p.failures, symbol)
		return nil, fmt.Errorf("simulated execution failure for %s: %w", symbol, err)
	}

	fillPrice := price
	slip := price * p.config.SlippageBps / 10000
	switch side {
	case "BUY":
		fillPrice += slip
	case "SELL":
		fillPrice -= slip
	default:
		return nil, fmt.Errorf("unsupported order side %q", side)
	}

	fill := market.Fill{
		Symbol:   symbol,
		Side:     side,
		Amount:   amount,
		Price:    fillPrice,
		Fee:      fillPrice * amount * p.config.FeeRate,
		FilledAt: p.clock.Now(),
	}
	p.fills = append(p.fills, fill)

	p.logger.Info().Str("symbol", symbol).Str("side", side).
		Float64("amount", amount).Float64("price", fillPrice).Msg("paper fill")

	return &fill, nil
}

var _ market.ExecutionGateway = (*Paper)(nil)
