package storage

import (
	"context"
	"sync"
	"time"

	"trading-decision-bot/internal/market"
)

// MemoryTradeStore is an in-process trade history used when PostgreSQL is
// not configured, and by tests.
type MemoryTradeStore struct {
	mu     sync.RWMutex
	trades map[string][]market.TradeRecord
}

// NewMemoryTradeStore creates an empty in-memory store
func NewMemoryTradeStore() *MemoryTradeStore {
	return &MemoryTradeStore{trades: make(map[string][]market.TradeRecord)}
}

// Record appends a trade
func (s *MemoryTradeStore) Record(_ context.Context, trade market.TradeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trades[trade.Symbol] = append(s.trades[trade.Symbol], trade)
	return nil
}

// RecentTrades returns trades within the window, oldest first
func (s *MemoryTradeStore) RecentTrades(_ context.Context, symbol string, window time.Duration) ([]market.TradeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := time.Now().Add(-window)
	var out []market.TradeRecord
	for _, t := range s.trades[symbol] {
		if !t.Timestamp.Before(cutoff) {
			out = append(out, t)
		}
	}
	return out, nil
}
