package feegate

import (
	"time"

	"trading-decision-bot/internal/market"
)

// State tracks one symbol's position and trade-frequency history. It is
// owned exclusively by the Gate and mutated only under the gate's lock, and
// only when a trade is actually permitted.
type State struct {
	TradeTimes []time.Time `json:"trade_times"`           // Rolling window, pruned on every evaluation
	LastTrade  time.Time   `json:"last_trade"`
	EntryID    string      `json:"entry_id,omitempty"`    // Trade ID that opened the position
	EntryPrice *float64    `json:"entry_price,omitempty"` // nil while IDLE
	EntryTime  time.Time   `json:"entry_time"`
	EntryFee   float64     `json:"entry_fee"`
	Quantity   float64     `json:"quantity"`
	Breakeven  float64     `json:"breakeven"`             // Fee-adjusted crossover price, derived at entry
}

// Holding reports whether a position is open (the HOLDING state)
func (s *State) Holding() bool {
	return s.EntryPrice != nil
}

// clone takes a deep copy, used for persistence snapshots and as the
// reservation's record of the position it replaced.
func (s *State) clone() *State {
	c := &State{
		TradeTimes: make([]time.Time, len(s.TradeTimes)),
		LastTrade:  s.LastTrade,
		EntryID:    s.EntryID,
		EntryTime:  s.EntryTime,
		EntryFee:   s.EntryFee,
		Quantity:   s.Quantity,
		Breakeven:  s.Breakeven,
	}
	copy(c.TradeTimes, s.TradeTimes)
	if s.EntryPrice != nil {
		p := *s.EntryPrice
		c.EntryPrice = &p
	}
	return c
}

// prune drops trade timestamps older than the daily window. Counts for the
// hourly window are taken over the surviving entries.
func (s *State) prune(now time.Time) {
	cutoff := now.Add(-24 * time.Hour)
	kept := s.TradeTimes[:0]
	for _, t := range s.TradeTimes {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	s.TradeTimes = kept
}

// removeTradeTime drops one occurrence of the given timestamp from the
// rolling window, used when an optimistic mutation is reversed. Timestamps
// recorded by other trades are untouched.
func (s *State) removeTradeTime(ts time.Time) {
	for i := len(s.TradeTimes) - 1; i >= 0; i-- {
		if s.TradeTimes[i].Equal(ts) {
			s.TradeTimes = append(s.TradeTimes[:i], s.TradeTimes[i+1:]...)
			break
		}
	}
	if s.LastTrade.Equal(ts) {
		s.LastTrade = time.Time{}
		for _, t := range s.TradeTimes {
			if t.After(s.LastTrade) {
				s.LastTrade = t
			}
		}
	}
}

// countSince returns how many recorded trades fall inside the given window
func (s *State) countSince(cutoff time.Time) int {
	n := 0
	for _, t := range s.TradeTimes {
		if t.After(cutoff) {
			n++
		}
	}
	return n
}

// seed rebuilds frequency and position state from recent trade history,
// used after a restart before the first live evaluation.
func (s *State) seed(trades []market.TradeRecord, entryFeeRate float64, breakeven func(float64) float64) {
	s.TradeTimes = s.TradeTimes[:0]
	s.EntryID = ""
	s.EntryPrice = nil
	s.Quantity = 0
	s.Breakeven = 0

	for _, t := range trades {
		s.TradeTimes = append(s.TradeTimes, t.Timestamp)
		if t.Timestamp.After(s.LastTrade) {
			s.LastTrade = t.Timestamp
		}
		switch t.Side {
		case "BUY":
			p := t.Price
			s.EntryID = t.ID
			s.EntryPrice = &p
			s.EntryTime = t.Timestamp
			s.EntryFee = t.Price * t.Amount * entryFeeRate
			s.Quantity = t.Amount
			s.Breakeven = breakeven(t.Price)
		case "SELL":
			s.EntryID = ""
			s.EntryPrice = nil
			s.Quantity = 0
			s.Breakeven = 0
		}
	}
}
